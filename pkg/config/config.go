package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"

	"crypto-alert-dashboard/pkg/types"
)

// Load 加载配置
func Load() (*types.Config, error) {
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	setDefaults()

	// 读取环境变量
	viper.AutomaticEnv()

	// 优先尝试读取本地配置文件
	viper.SetConfigName("config.local")
	if err := viper.ReadInConfig(); err != nil {
		// 如果本地配置文件不存在，尝试读取默认配置文件
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, err
			}
		}
	}

	var config types.Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file_path", "logs/dashboard.log")
	viper.SetDefault("log.max_size", 200)
	viper.SetDefault("log.max_age", 30)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.compress", false)
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.mysql.host", "")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.max_idle_conns", 10)
	viper.SetDefault("database.mysql.max_open_conns", 100)
	viper.SetDefault("watchlist.backend", "file")
	viper.SetDefault("watchlist.file_path", "data/watchlist.json")
	viper.SetDefault("price_source.provider", "coingecko")
	viper.SetDefault("price_source.base_url", "")
	viper.SetDefault("price_source.vs_currency", "usd")
	viper.SetDefault("alert.refresh_interval", time.Minute)
	viper.SetDefault("history.window", time.Hour)
	viper.SetDefault("history.retention", 24*time.Hour)
	viper.SetDefault("notify.webhook.url", "")
	viper.SetDefault("notify.webhook.secret", "")
	viper.SetDefault("notify.email.smtp_host", "")
	viper.SetDefault("notify.email.smtp_port", 587)
	viper.SetDefault("news.base_url", "")
	viper.SetDefault("news.api_key", "")
	viper.SetDefault("news.max_news", 10)
	viper.SetDefault("server.listen", "0.0.0.0:8080")
	viper.SetDefault("network.proxy", "")
	viper.SetDefault("network.timeout", 30*time.Second)
}
