package types

import "time"

// AlertState 预警状态机状态，用于边沿触发去重
type AlertState string

const (
	AlertStateNone       AlertState = "NONE"        // 未触发，可再次预警
	AlertStateAboveFired AlertState = "ABOVE_FIRED" // 上穿已触发
	AlertStateBelowFired AlertState = "BELOW_FIRED" // 下穿已触发
)

// AlertDirection 预警方向
type AlertDirection string

const (
	DirectionAbove AlertDirection = "ABOVE"
	DirectionBelow AlertDirection = "BELOW"
)

// WatchlistEntry 监控列表条目
// Symbol创建后不可变；阈值可随时修改，修改后LastAlertState重置为NONE
type WatchlistEntry struct {
	Symbol         string     `json:"symbol"`
	UpperThreshold *float64   `json:"upper_threshold,omitempty"` // 价格升至该值及以上时预警
	LowerThreshold *float64   `json:"lower_threshold,omitempty"` // 价格降至该值及以下时预警
	Enabled        bool       `json:"enabled"`
	LastAlertState AlertState `json:"last_alert_state"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasThresholds 是否配置了至少一个阈值
func (e *WatchlistEntry) HasThresholds() bool {
	return e.UpperThreshold != nil || e.LowerThreshold != nil
}

// AlertEvent 一次阈值穿越产生的预警事件
// 每次穿越只产生一次，除Acknowledged/NotificationSent外不可变
type AlertEvent struct {
	ID               uint           `json:"id,omitempty"`
	Symbol           string         `json:"symbol"`
	Direction        AlertDirection `json:"direction"`
	ThresholdValue   float64        `json:"threshold_value"`
	ObservedPrice    float64        `json:"observed_price"`
	Timestamp        time.Time      `json:"timestamp"`
	Acknowledged     bool           `json:"acknowledged"`
	NotificationSent bool           `json:"notification_sent"`
}
