package notifier

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"crypto-alert-dashboard/pkg/types"
)

// Interface 通知接口
type Interface interface {
	SendAlert(event *types.AlertEvent) error
	SendBatchAlerts(events []*types.AlertEvent) error
}

// New 根据配置选择通知服务（优先级：Webhook > 邮件 > 控制台）
func New(cfg types.NotifyConfig) Interface {
	if cfg.Webhook.URL != "" {
		return NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	}
	if cfg.Email.SMTPHost != "" {
		return NewEmailNotifier(cfg.Email)
	}
	fmt.Println("🔧 未配置通知渠道，使用控制台输出模式")
	return NewConsoleNotifier()
}

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	// 使用utf8.RuneCountInString计算实际显示字符数，而不是字节数
	runeCount := utf8.RuneCountInString(content)
	padding := totalWidth - runeCount - 4 // 4是边框字符数
	if padding < 0 {
		padding = 0
	}
	return padding
}

// directionArrow 预警方向对应的箭头
func directionArrow(direction types.AlertDirection) string {
	if direction == types.DirectionBelow {
		return "📉"
	}
	return "📈"
}

// directionText 预警方向的中文描述
func directionText(direction types.AlertDirection) string {
	if direction == types.DirectionBelow {
		return "跌破下限"
	}
	return "突破上限"
}

// splitByDirection 把事件按方向分组，组内保持原有顺序
func splitByDirection(events []*types.AlertEvent) (above, below []*types.AlertEvent) {
	for _, event := range events {
		if event.Direction == types.DirectionAbove {
			above = append(above, event)
		} else {
			below = append(below, event)
		}
	}
	return above, below
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct{}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (cn *ConsoleNotifier) SendAlert(event *types.AlertEvent) error {
	cn.printAlert(event)
	return nil
}

func (cn *ConsoleNotifier) SendBatchAlerts(events []*types.AlertEvent) error {
	if len(events) == 0 {
		return nil
	}

	if len(events) == 1 {
		return cn.SendAlert(events[0])
	}

	cn.printBatchAlerts(events)
	return nil
}

func (cn *ConsoleNotifier) printAlert(event *types.AlertEvent) {
	border := "╔" + strings.Repeat("═", 60) + "╗"
	bottomBorder := "╚" + strings.Repeat("═", 60) + "╝"

	arrow := directionArrow(event.Direction)

	fmt.Println()
	fmt.Println(border)
	fmt.Printf("║ %s 🚨 价格预警触发！%s ║\n", arrow, strings.Repeat(" ", 34))
	fmt.Println("║" + strings.Repeat(" ", 60) + "║")
	fmt.Printf("║ 币种: %-49s ║\n", event.Symbol)
	fmt.Printf("║ 触发条件: %s $%-33.6f ║\n", directionText(event.Direction), event.ThresholdValue)
	fmt.Printf("║ 当前价格: $%-43.6f ║\n", event.ObservedPrice)
	fmt.Printf("║ 预警时间: %-44s ║\n", event.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Println("║" + strings.Repeat(" ", 60) + "║")

	if event.Direction == types.DirectionAbove {
		fmt.Printf("║ 💡 价格已升至设定上限之上，请关注市场动向！%-13s ║\n", "")
	} else {
		fmt.Printf("║ 💡 价格已降至设定下限之下，请关注风险控制！%-13s ║\n", "")
	}

	fmt.Println(bottomBorder)
	fmt.Println()
}

func (cn *ConsoleNotifier) printBatchAlerts(events []*types.AlertEvent) {
	above, below := splitByDirection(events)

	border := "╔" + strings.Repeat("═", 80) + "╗"
	bottomBorder := "╚" + strings.Repeat("═", 80) + "╝"

	fmt.Println()
	fmt.Println(border)

	title := fmt.Sprintf("🚨 批量价格预警触发！- %d个币种", len(events))
	padding := safePadding(title, 80)
	fmt.Printf("║ %s%s ║\n", title, strings.Repeat(" ", padding))

	statsStr := fmt.Sprintf("📈 突破上限: %d个  📉 跌破下限: %d个", len(above), len(below))
	padding = safePadding(statsStr, 80)
	fmt.Printf("║ %s%s ║\n", statsStr, strings.Repeat(" ", padding))
	fmt.Println("║" + strings.Repeat(" ", 80) + "║")

	printGroup := func(sectionTitle string, group []*types.AlertEvent) {
		if len(group) == 0 {
			return
		}
		padding := safePadding(sectionTitle, 80)
		fmt.Printf("║ %s%s ║\n", sectionTitle, strings.Repeat(" ", padding))

		for i, event := range group {
			content := fmt.Sprintf("  %d. %s %s: $%.6f (阈值 $%.6f)",
				i+1, directionArrow(event.Direction), event.Symbol,
				event.ObservedPrice, event.ThresholdValue)
			padding := safePadding(content, 80)
			fmt.Printf("║ %s%s ║\n", content, strings.Repeat(" ", padding))
		}
		fmt.Println("║" + strings.Repeat(" ", 80) + "║")
	}

	printGroup("📈 突破上限币种:", above)
	printGroup("📉 跌破下限币种:", below)

	timeStr := fmt.Sprintf("预警时间: %s", events[0].Timestamp.Format("2006-01-02 15:04:05"))
	padding = safePadding(timeStr, 80)
	fmt.Printf("║ %s%s ║\n", timeStr, strings.Repeat(" ", padding))

	fmt.Println("║" + strings.Repeat(" ", 80) + "║")

	msg := "💡 多个币种同时触发预警，请密切关注市场动向！"
	padding = safePadding(msg, 80)
	fmt.Printf("║ %s%s ║\n", msg, strings.Repeat(" ", padding))

	fmt.Println(bottomBorder)
	fmt.Println()
}

// formatTimestamp 通知内容统一的时间格式
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
