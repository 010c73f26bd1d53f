package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto-alert-dashboard/pkg/types"
)

// WebhookNotifier Webhook通知器（钉钉机器人格式，支持加签验证）
type WebhookNotifier struct {
	webhookURL string
	secret     string
	enabled    bool
	httpClient *http.Client
}

// webhookMessage 钉钉消息结构
type webhookMessage struct {
	MsgType  string           `json:"msgtype"`
	Markdown *webhookMarkdown `json:"markdown,omitempty"`
	At       *webhookAt       `json:"at,omitempty"`
}

type webhookMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type webhookAt struct {
	AtAll bool `json:"isAtAll"`
}

// webhookResponse 钉钉API响应
type webhookResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewWebhookNotifier(webhookURL, secret string) Interface {
	// 如果没有配置webhook URL，返回控制台通知器
	if webhookURL == "" {
		fmt.Println("🔧 未配置Webhook URL，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	if secret != "" {
		fmt.Println("✅ 已配置Webhook通知服务（含加签验证）")
	} else {
		fmt.Println("⚠️ Webhook通知已配置，但未设置secret（建议配置加签验证）")
	}

	return &WebhookNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		enabled:    true,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (wn *WebhookNotifier) SendAlert(event *types.AlertEvent) error {
	title := fmt.Sprintf("%s 价格预警 - %s", directionArrow(event.Direction), event.Symbol)
	content := wn.buildMarkdownContent(event)

	if err := wn.sendMessage(title, content); err != nil {
		fmt.Printf("❌ Webhook发送失败: %v，降级为控制台输出\n", err)
		console := NewConsoleNotifier()
		if consoleErr := console.SendAlert(event); consoleErr != nil {
			return consoleErr
		}
		return err
	}

	fmt.Printf("✅ Webhook通知已发送: %s %s $%.6f\n",
		event.Symbol, directionText(event.Direction), event.ObservedPrice)
	return nil
}

func (wn *WebhookNotifier) SendBatchAlerts(events []*types.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	if len(events) == 1 {
		return wn.SendAlert(events[0])
	}

	title := fmt.Sprintf("📊 批量价格预警 - %d个币种", len(events))
	content := wn.buildBatchMarkdownContent(events)

	if err := wn.sendMessage(title, content); err != nil {
		fmt.Printf("❌ Webhook批量发送失败: %v，降级为控制台输出\n", err)
		console := NewConsoleNotifier()
		if consoleErr := console.SendBatchAlerts(events); consoleErr != nil {
			return consoleErr
		}
		return err
	}

	fmt.Printf("✅ Webhook批量通知已发送: %d个币种预警\n", len(events))
	return nil
}

// generateSignature 生成加签
func (wn *WebhookNotifier) generateSignature(timestamp int64) (string, error) {
	if wn.secret == "" {
		return "", nil // 没有secret则不加签
	}

	// 按照文档要求: timestamp + "\n" + secret
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, wn.secret)

	// HMAC-SHA256签名
	h := hmac.New(sha256.New, []byte(wn.secret))
	h.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(h.Sum(nil))

	// URL编码
	return url.QueryEscape(signature), nil
}

// buildSignedURL 构建带签名的URL
func (wn *WebhookNotifier) buildSignedURL() (string, error) {
	timestamp := time.Now().UnixNano() / 1e6 // 毫秒时间戳

	if wn.secret == "" {
		return wn.webhookURL, nil
	}

	signature, err := wn.generateSignature(timestamp)
	if err != nil {
		return "", err
	}

	separator := "&"
	if !strings.Contains(wn.webhookURL, "?") {
		separator = "?"
	}

	return fmt.Sprintf("%s%stimestamp=%d&sign=%s",
		wn.webhookURL, separator, timestamp, signature), nil
}

// buildMarkdownContent 构建单个预警的Markdown内容
func (wn *WebhookNotifier) buildMarkdownContent(event *types.AlertEvent) string {
	arrow := directionArrow(event.Direction)
	color := "green"
	if event.Direction == types.DirectionBelow {
		color = "red"
	}

	return fmt.Sprintf(`## %s 价格预警触发

**币种**: %s
**触发条件**: %s $%.6f
**当前价格**: <font color="%s">$%.6f</font>
**预警时间**: %s

> %s 价格已%s设定阈值，请关注市场动向！`,
		arrow,
		event.Symbol,
		directionText(event.Direction), event.ThresholdValue,
		color, event.ObservedPrice,
		formatTimestamp(event.Timestamp),
		arrow, directionText(event.Direction))
}

// buildBatchMarkdownContent 构建批量预警的Markdown内容
func (wn *WebhookNotifier) buildBatchMarkdownContent(events []*types.AlertEvent) string {
	above, below := splitByDirection(events)

	content := fmt.Sprintf(`## 🚨 批量价格预警触发

**预警统计**:
📈 突破上限: <font color="green">%d个</font>
📉 跌破下限: <font color="red">%d个</font>
🕐 预警时间: %s

**详细列表**:
`, len(above), len(below), formatTimestamp(events[0].Timestamp))

	appendGroup := func(header, color string, group []*types.AlertEvent) {
		if len(group) == 0 {
			return
		}
		content += header + "\n"
		for _, event := range group {
			content += fmt.Sprintf("- %s **%s**: $%.6f (<font color=\"%s\">阈值 $%.6f</font>)\n",
				directionArrow(event.Direction), event.Symbol,
				event.ObservedPrice, color, event.ThresholdValue)
		}
		content += "\n"
	}

	appendGroup("**📈 突破上限币种**:", "green", above)
	appendGroup("**📉 跌破下限币种**:", "red", below)

	content += "> ⚠️ 多个币种同时触发预警，请密切关注市场动向！"
	return content
}

// sendMessage 发送Webhook消息
func (wn *WebhookNotifier) sendMessage(title, content string) error {
	signedURL, err := wn.buildSignedURL()
	if err != nil {
		return fmt.Errorf("生成签名失败: %v", err)
	}

	message := &webhookMessage{
		MsgType: "markdown",
		Markdown: &webhookMarkdown{
			Title: title,
			Text:  content,
		},
		At: &webhookAt{
			AtAll: false, // 不@所有人，避免过度打扰
		},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	resp, err := wn.httpClient.Post(signedURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	var hookResp webhookResponse
	if err := json.NewDecoder(resp.Body).Decode(&hookResp); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if hookResp.ErrCode != 0 {
		return fmt.Errorf("Webhook API错误 [%d]: %s", hookResp.ErrCode, hookResp.ErrMsg)
	}

	return nil
}
