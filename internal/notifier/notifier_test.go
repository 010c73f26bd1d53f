package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-alert-dashboard/pkg/types"
)

func testEvent(symbol string, direction types.AlertDirection, threshold, price float64) *types.AlertEvent {
	return &types.AlertEvent{
		Symbol:         symbol,
		Direction:      direction,
		ThresholdValue: threshold,
		ObservedPrice:  price,
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewSelectsByPriority(t *testing.T) {
	// Webhook优先于Email
	n := New(types.NotifyConfig{
		Webhook: types.WebhookConfig{URL: "https://oapi.dingtalk.com/robot/send?access_token=x"},
		Email:   types.EmailConfig{SMTPHost: "smtp.example.com", From: "a@b.c", To: "d@e.f"},
	})
	assert.IsType(t, &WebhookNotifier{}, n)

	// 只配置邮件时选择Email
	n = New(types.NotifyConfig{
		Email: types.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587, From: "a@b.c", To: "d@e.f"},
	})
	assert.IsType(t, &EmailNotifier{}, n)

	// 都未配置时回退到控制台
	n = New(types.NotifyConfig{})
	assert.IsType(t, &ConsoleNotifier{}, n)
}

func TestSplitByDirectionPreservesOrder(t *testing.T) {
	events := []*types.AlertEvent{
		testEvent("BTC", types.DirectionAbove, 50000, 52000),
		testEvent("ETH", types.DirectionBelow, 3000, 2800),
		testEvent("SOL", types.DirectionAbove, 150, 160),
	}

	above, below := splitByDirection(events)
	require.Len(t, above, 2)
	require.Len(t, below, 1)
	assert.Equal(t, "BTC", above[0].Symbol)
	assert.Equal(t, "SOL", above[1].Symbol)
	assert.Equal(t, "ETH", below[0].Symbol)
}

func TestWebhookSendAlert(t *testing.T) {
	var received webhookMessage
	var gotTimestamp, gotSign bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTimestamp = r.URL.Query().Get("timestamp") != ""
		gotSign = r.URL.Query().Get("sign") != ""
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(webhookResponse{ErrCode: 0, ErrMsg: "ok"})
	}))
	defer server.Close()

	wn := &WebhookNotifier{
		webhookURL: server.URL,
		secret:     "test-secret",
		enabled:    true,
		httpClient: server.Client(),
	}

	err := wn.SendAlert(testEvent("BTC", types.DirectionAbove, 50000, 52000))
	require.NoError(t, err)

	assert.True(t, gotTimestamp)
	assert.True(t, gotSign)
	assert.Equal(t, "markdown", received.MsgType)
	require.NotNil(t, received.Markdown)
	assert.Contains(t, received.Markdown.Text, "BTC")
	assert.Contains(t, received.Markdown.Text, "突破上限")
	assert.Contains(t, received.Markdown.Text, "52000")
}

func TestWebhookAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(webhookResponse{ErrCode: 310000, ErrMsg: "sign not match"})
	}))
	defer server.Close()

	wn := &WebhookNotifier{
		webhookURL: server.URL,
		httpClient: server.Client(),
	}

	err := wn.SendAlert(testEvent("BTC", types.DirectionAbove, 50000, 52000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "310000")
}

func TestWebhookBatchGroupsByDirection(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(webhookResponse{})
	}))
	defer server.Close()

	wn := &WebhookNotifier{
		webhookURL: server.URL,
		httpClient: server.Client(),
	}

	events := []*types.AlertEvent{
		testEvent("BTC", types.DirectionAbove, 50000, 52000),
		testEvent("ETH", types.DirectionBelow, 3000, 2800),
	}
	require.NoError(t, wn.SendBatchAlerts(events))

	require.NotNil(t, received.Markdown)
	assert.Contains(t, received.Markdown.Text, "突破上限币种")
	assert.Contains(t, received.Markdown.Text, "跌破下限币种")
	assert.Contains(t, received.Markdown.Text, "BTC")
	assert.Contains(t, received.Markdown.Text, "ETH")
}

func TestEmailSendAlert(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	en := &EmailNotifier{
		cfg: types.EmailConfig{
			SMTPHost: "smtp.example.com",
			SMTPPort: 587,
			Username: "user",
			Password: "pass",
			From:     "alerts@example.com",
			To:       "a@example.com, b@example.com",
		},
		sendMail: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	err := en.SendAlert(testEvent("ETH", types.DirectionBelow, 3000, 2800))
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)

	body := string(gotMsg)
	assert.True(t, strings.Contains(body, "Subject:"))
	assert.Contains(t, body, "ETH")
	assert.Contains(t, body, "跌破下限")
}

func TestEmailBatchBody(t *testing.T) {
	en := &EmailNotifier{cfg: types.EmailConfig{From: "a@b.c", To: "d@e.f"}}

	events := []*types.AlertEvent{
		testEvent("BTC", types.DirectionAbove, 50000, 52000),
		testEvent("ETH", types.DirectionBelow, 3000, 2800),
		testEvent("SOL", types.DirectionAbove, 150, 160),
	}

	body := en.buildBatchBody(events)
	assert.Contains(t, body, "突破上限: 2个")
	assert.Contains(t, body, "跌破下限: 1个")
	assert.Contains(t, body, "BTC")
	assert.Contains(t, body, "SOL")
	assert.Contains(t, body, "ETH")
}

func TestConsoleNotifierNeverFails(t *testing.T) {
	cn := NewConsoleNotifier()

	require.NoError(t, cn.SendAlert(testEvent("BTC", types.DirectionAbove, 50000, 52000)))
	require.NoError(t, cn.SendBatchAlerts([]*types.AlertEvent{
		testEvent("BTC", types.DirectionAbove, 50000, 52000),
		testEvent("ETH", types.DirectionBelow, 3000, 2800),
	}))
	require.NoError(t, cn.SendBatchAlerts(nil))
}
