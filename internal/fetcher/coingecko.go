package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"crypto-alert-dashboard/pkg/types"
)

const defaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoSource CoinGecko价格数据源
// 使用 /simple/price 接口，一次请求可覆盖整个监控列表
type CoinGeckoSource struct {
	baseURL    string
	vsCurrency string
	httpClient *http.Client
}

func NewCoinGeckoSource(cfg types.PriceSourceConfig, network types.NetworkConfig) *CoinGeckoSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultCoinGeckoBaseURL
	}
	vsCurrency := cfg.VsCurrency
	if vsCurrency == "" {
		vsCurrency = "usd"
	}

	zap.L().Info("✅ 初始化CoinGecko价格数据源",
		zap.String("base_url", baseURL),
		zap.String("vs_currency", vsCurrency))

	return &CoinGeckoSource{
		baseURL:    baseURL,
		vsCurrency: vsCurrency,
		httpClient: newHTTPClient(network),
	}
}

func (cg *CoinGeckoSource) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := cg.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return 0, err
	}

	price, ok := prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return price, nil
}

func (cg *CoinGeckoSource) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	// 重试机制：最多重试3次
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			zap.L().Info("🔄 重试获取价格数据", zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		prices, err := cg.fetchOnce(ctx, symbols, attempt)
		if err != nil {
			lastErr = err
			continue
		}
		return prices, nil
	}

	return nil, lastErr
}

func (cg *CoinGeckoSource) fetchOnce(ctx context.Context, symbols []string, attempt int) (map[string]float64, error) {
	apiURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		cg.baseURL,
		url.QueryEscape(strings.Join(symbols, ",")),
		url.QueryEscape(cg.vsCurrency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败(第%d次尝试): %v", attempt, err)
	}

	resp, err := cg.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败(第%d次尝试): %v", attempt, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP状态码错误(第%d次尝试): %d", attempt, resp.StatusCode)
	}

	// CoinGecko响应格式: {"bitcoin": {"usd": 50000.0}, ...}
	var apiResp map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("解析API响应失败(第%d次尝试): %v", attempt, err)
	}

	prices := make(map[string]float64, len(apiResp))
	for _, symbol := range symbols {
		quote, ok := apiResp[symbol]
		if !ok {
			continue // 未知币种从响应中缺席，由调用方决定如何处理
		}
		if price, ok := quote[cg.vsCurrency]; ok {
			prices[symbol] = price
		}
	}

	zap.L().Debug("✅ 获取到价格数据",
		zap.Int("requested", len(symbols)),
		zap.Int("returned", len(prices)))

	return prices, nil
}
