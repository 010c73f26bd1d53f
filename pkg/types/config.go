package types

import "time"

// Config 主配置结构
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Watchlist   WatchlistConfig   `mapstructure:"watchlist"`
	PriceSource PriceSourceConfig `mapstructure:"price_source"`
	Alert       AlertConfig       `mapstructure:"alert"`
	History     HistoryConfig     `mapstructure:"history"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	News        NewsConfig        `mapstructure:"news"`
	Server      ServerConfig      `mapstructure:"server"`
	Network     NetworkConfig     `mapstructure:"network"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别
	FilePath   string `mapstructure:"file_path"`   // 日志输出路径名
	MaxSize    int    `mapstructure:"max_size"`    // 日志文件大小 单位：MB，超限后会自动切割
	MaxAge     int    `mapstructure:"max_age"`     // 日志文件存放时间 单位：天
	MaxBackups int    `mapstructure:"max_backups"` // 日志文件备份数量
	Compress   bool   `mapstructure:"compress"`    // 日志文件压缩
}

// RedisConfig Redis配置
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
}

// MySQLConfig MySQL配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// WatchlistConfig 监控列表存储配置
type WatchlistConfig struct {
	Backend  string `mapstructure:"backend"`   // file 或 mysql
	FilePath string `mapstructure:"file_path"` // file模式下的JSON文件路径
}

// PriceSourceConfig 价格数据源配置
type PriceSourceConfig struct {
	Provider   string `mapstructure:"provider"`    // coingecko 或 okx
	BaseURL    string `mapstructure:"base_url"`    // API基础地址
	VsCurrency string `mapstructure:"vs_currency"` // 计价货币，默认usd
}

// AlertConfig 预警配置
type AlertConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // 一轮评估的周期
}

// HistoryConfig 价格历史配置
type HistoryConfig struct {
	Window    time.Duration `mapstructure:"window"`    // 内存滑动窗口时长
	Retention time.Duration `mapstructure:"retention"` // Redis中保留时长
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Email   EmailConfig   `mapstructure:"email"`
}

// WebhookConfig Webhook通知配置（钉钉机器人格式）
type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// EmailConfig 邮件通知配置
type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"` // 收件人，多人用逗号分隔
}

// NewsConfig 新闻数据源配置（GNews）
type NewsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	MaxNews int    `mapstructure:"max_news"`
}

// ServerConfig 仪表盘API服务配置
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// NetworkConfig 网络配置
type NetworkConfig struct {
	Proxy   string        `mapstructure:"proxy"`   // HTTP代理地址，如 http://127.0.0.1:7890
	Timeout time.Duration `mapstructure:"timeout"` // 网络超时时间
}
