package notifier

import (
	"fmt"
	"net/smtp"
	"strings"

	"crypto-alert-dashboard/pkg/types"
)

// EmailNotifier SMTP邮件通知器
type EmailNotifier struct {
	cfg types.EmailConfig
	// 可替换的发送函数，便于测试
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotifier(cfg types.EmailConfig) Interface {
	if cfg.SMTPHost == "" || cfg.From == "" || cfg.To == "" {
		fmt.Println("🔧 邮件通知配置不完整，使用控制台输出模式")
		return NewConsoleNotifier()
	}

	fmt.Printf("✅ 已配置邮件通知服务: %s -> %s\n", cfg.From, cfg.To)
	return &EmailNotifier{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

func (en *EmailNotifier) SendAlert(event *types.AlertEvent) error {
	subject := fmt.Sprintf("%s 价格预警: %s %s $%.6f",
		directionArrow(event.Direction), event.Symbol,
		directionText(event.Direction), event.ThresholdValue)
	body := en.buildAlertBody(event)

	if err := en.send(subject, body); err != nil {
		fmt.Printf("❌ 邮件发送失败: %v，降级为控制台输出\n", err)
		console := NewConsoleNotifier()
		if consoleErr := console.SendAlert(event); consoleErr != nil {
			return consoleErr
		}
		return err
	}

	fmt.Printf("✅ 邮件通知已发送: %s %s\n", event.Symbol, directionText(event.Direction))
	return nil
}

func (en *EmailNotifier) SendBatchAlerts(events []*types.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	if len(events) == 1 {
		return en.SendAlert(events[0])
	}

	subject := fmt.Sprintf("📊 批量价格预警: %d个币种触发", len(events))
	body := en.buildBatchBody(events)

	if err := en.send(subject, body); err != nil {
		fmt.Printf("❌ 批量邮件发送失败: %v，降级为控制台输出\n", err)
		console := NewConsoleNotifier()
		if consoleErr := console.SendBatchAlerts(events); consoleErr != nil {
			return consoleErr
		}
		return err
	}

	fmt.Printf("✅ 批量邮件通知已发送: %d个币种预警\n", len(events))
	return nil
}

// buildAlertBody 构建单个预警的邮件正文
func (en *EmailNotifier) buildAlertBody(event *types.AlertEvent) string {
	return fmt.Sprintf(`价格预警触发

币种:     %s
触发条件: %s $%.6f
当前价格: $%.6f
预警时间: %s

价格已%s设定阈值，请关注市场动向。
`,
		event.Symbol,
		directionText(event.Direction), event.ThresholdValue,
		event.ObservedPrice,
		formatTimestamp(event.Timestamp),
		directionText(event.Direction))
}

// buildBatchBody 构建批量预警的邮件正文
func (en *EmailNotifier) buildBatchBody(events []*types.AlertEvent) string {
	above, below := splitByDirection(events)

	var sb strings.Builder
	sb.WriteString("批量价格预警触发\n\n")
	sb.WriteString(fmt.Sprintf("突破上限: %d个  跌破下限: %d个\n", len(above), len(below)))
	sb.WriteString(fmt.Sprintf("预警时间: %s\n\n", formatTimestamp(events[0].Timestamp)))

	writeGroup := func(header string, group []*types.AlertEvent) {
		if len(group) == 0 {
			return
		}
		sb.WriteString(header + "\n")
		for _, event := range group {
			sb.WriteString(fmt.Sprintf("  %s: $%.6f (阈值 $%.6f)\n",
				event.Symbol, event.ObservedPrice, event.ThresholdValue))
		}
		sb.WriteString("\n")
	}

	writeGroup("【突破上限】", above)
	writeGroup("【跌破下限】", below)

	sb.WriteString("多个币种同时触发预警，请密切关注市场动向。\n")
	return sb.String()
}

// send 组装RFC 822报文并通过SMTP发送
func (en *EmailNotifier) send(subject, body string) error {
	recipients := strings.Split(en.cfg.To, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		en.cfg.From, en.cfg.To, subject, body)

	addr := fmt.Sprintf("%s:%d", en.cfg.SMTPHost, en.cfg.SMTPPort)

	var auth smtp.Auth
	if en.cfg.Username != "" {
		auth = smtp.PlainAuth("", en.cfg.Username, en.cfg.Password, en.cfg.SMTPHost)
	}

	if err := en.sendMail(addr, auth, en.cfg.From, recipients, []byte(msg)); err != nil {
		return fmt.Errorf("SMTP发送失败: %v", err)
	}
	return nil
}
