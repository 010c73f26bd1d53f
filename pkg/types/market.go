package types

import "time"

// PricePoint 价格数据点
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// NewsArticle 新闻条目
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Image       string    `json:"image,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}
