package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"crypto-alert-dashboard/pkg/types"
)

const defaultGNewsBaseURL = "https://gnews.io/api/v4"

// ErrAPIKeyMissing 未配置GNews API密钥
var ErrAPIKeyMissing = errors.New("gnews api key not configured")

// Client GNews新闻客户端
type Client struct {
	baseURL    string
	apiKey     string
	maxNews    int
	httpClient *http.Client
}

func NewClient(cfg types.NewsConfig, network types.NetworkConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGNewsBaseURL
	}
	maxNews := cfg.MaxNews
	if maxNews <= 0 {
		maxNews = 10
	}
	timeout := network.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		maxNews: maxNews,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type gnewsResponse struct {
	Articles []struct {
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		Image       string    `json:"image"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Search 搜索指定关键词的新闻
func (c *Client) Search(ctx context.Context, query string) ([]types.NewsArticle, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if query == "" {
		query = "cryptocurrency"
	}

	apiURL := fmt.Sprintf("%s/search?q=%s&lang=en&token=%s&max=%d",
		c.baseURL,
		url.QueryEscape(query),
		url.QueryEscape(c.apiKey),
		c.maxNews)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("获取新闻失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("新闻API状态码错误: %d", resp.StatusCode)
	}

	var apiResp gnewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("解析新闻响应失败: %v", err)
	}

	articles := make([]types.NewsArticle, 0, len(apiResp.Articles))
	for _, item := range apiResp.Articles {
		articles = append(articles, types.NewsArticle{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Image:       item.Image,
			Source:      item.Source.Name,
			PublishedAt: item.PublishedAt,
		})
	}

	zap.L().Debug("✅ 获取到新闻", zap.String("query", query), zap.Int("count", len(articles)))
	return articles, nil
}
