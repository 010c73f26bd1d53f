package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"crypto-alert-dashboard/pkg/types"
)

// ErrSymbolNotFound 数据源不认识该币种，与瞬时网络错误区分开
var ErrSymbolNotFound = errors.New("symbol not found")

// PriceSource 价格数据源适配器
type PriceSource interface {
	// FetchPrice 获取单个币种的当前价格
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	// FetchPrices 批量获取价格；数据源遗漏的币种直接从结果中缺席，不算错误
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// NewPriceSource 根据配置选择价格数据源
func NewPriceSource(cfg types.PriceSourceConfig, network types.NetworkConfig) PriceSource {
	switch cfg.Provider {
	case "okx":
		return NewOKXSource(network)
	default:
		return NewCoinGeckoSource(cfg, network)
	}
}

// newHTTPClient 创建带超时和可选代理的HTTP客户端
func newHTTPClient(network types.NetworkConfig) *http.Client {
	timeout := network.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
		},
	}

	if network.Proxy != "" {
		proxyURL, err := url.Parse(network.Proxy)
		if err == nil {
			client.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", network.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	return client
}
