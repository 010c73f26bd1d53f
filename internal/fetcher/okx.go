package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	okxcommon "github.com/nntaoli-project/goex/v2/okx/common"
	"go.uber.org/zap"

	"crypto-alert-dashboard/pkg/types"
)

const okxTickersURL = "https://www.okx.com/api/v5/market/tickers?instType=SPOT"

// OKXSource OKX现货行情数据源，币种使用 BTC-USDT 形式的instId
type OKXSource struct {
	okxClient  *okxcommon.OKxV5
	httpClient *http.Client
}

func NewOKXSource(network types.NetworkConfig) *OKXSource {
	// goex v2 OKX客户端，行情接口直接走自定义HTTP客户端以支持代理
	client := okxcommon.New()

	zap.L().Info("✅ 初始化OKX V5价格数据源")

	return &OKXSource{
		okxClient:  client,
		httpClient: newHTTPClient(network),
	}
}

type okxTicker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

func (o *OKXSource) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := o.FetchPrices(ctx, []string{symbol})
	if err != nil {
		return 0, err
	}

	price, ok := prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return price, nil
}

func (o *OKXSource) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	tickers, err := o.getTickers(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	prices := make(map[string]float64, len(symbols))
	for _, ticker := range tickers {
		if !wanted[ticker.InstID] {
			continue
		}
		if price, err := strconv.ParseFloat(ticker.Last, 64); err == nil && price > 0 {
			prices[ticker.InstID] = price
		}
	}

	return prices, nil
}

// getTickers 获取全部SPOT交易对ticker，带重试
func (o *OKXSource) getTickers(ctx context.Context) ([]okxTicker, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			zap.L().Info("🔄 重试获取OKX行情", zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, okxTickersURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := o.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP请求失败(第%d次尝试): %v", attempt, err)
			continue
		}

		var body bytes.Buffer
		_, err = body.ReadFrom(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("读取响应失败(第%d次尝试): %v", attempt, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("HTTP状态码错误(第%d次尝试): %d", attempt, resp.StatusCode)
			continue
		}

		// 解析OKX API响应格式
		var apiResp struct {
			Code string      `json:"code"`
			Msg  string      `json:"msg"`
			Data []okxTicker `json:"data"`
		}
		if err := json.Unmarshal(body.Bytes(), &apiResp); err != nil {
			lastErr = fmt.Errorf("解析API响应失败(第%d次尝试): %v", attempt, err)
			continue
		}

		if apiResp.Code != "0" {
			lastErr = fmt.Errorf("API返回错误(第%d次尝试): %s - %s", attempt, apiResp.Code, apiResp.Msg)
			continue
		}

		return apiResp.Data, nil
	}

	return nil, lastErr
}
