package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crypto-alert-dashboard/internal/alertlog"
	"crypto-alert-dashboard/internal/evaluator"
	"crypto-alert-dashboard/internal/fetcher"
	"crypto-alert-dashboard/internal/notifier"
	"crypto-alert-dashboard/internal/storage"
	"crypto-alert-dashboard/internal/watchlist"
	"crypto-alert-dashboard/pkg/types"
)

// Scheduler 调度器：按固定间隔执行一轮完整的监控任务
type Scheduler struct {
	store           watchlist.Store
	priceSource     fetcher.PriceSource
	stateManager    *storage.StateManager
	log             alertlog.Log
	notify          notifier.Interface
	refreshInterval time.Duration
	now             func() time.Time // 可注入的时钟，便于测试
}

func NewScheduler(store watchlist.Store, priceSource fetcher.PriceSource,
	stateManager *storage.StateManager, log alertlog.Log,
	notify notifier.Interface, refreshInterval time.Duration) *Scheduler {

	if refreshInterval <= 0 {
		refreshInterval = 60 * time.Second
	}

	return &Scheduler{
		store:           store,
		priceSource:     priceSource,
		stateManager:    stateManager,
		log:             log,
		notify:          notify,
		refreshInterval: refreshInterval,
		now:             time.Now,
	}
}

// Start 启动调度循环，启动后立即执行第一轮，之后对齐到刷新间隔的整点执行
func (s *Scheduler) Start(ctx context.Context) {
	fmt.Printf("🚀 调度器启动，刷新间隔: %v\n", s.refreshInterval)

	s.RunPass(ctx)

	for {
		// 对齐到下一个间隔整点，多实例时各轮的时间戳可比
		next := s.now().Truncate(s.refreshInterval).Add(s.refreshInterval)
		waitDuration := time.Until(next)

		select {
		case <-ctx.Done():
			fmt.Println("📴 调度器已停止")
			return
		case <-time.After(waitDuration):
			s.RunPass(ctx)
		}
	}
}

// RunPass 执行一轮监控：取关注列表 -> 拉取价格 -> 判定预警 -> 落盘 -> 通知
func (s *Scheduler) RunPass(ctx context.Context) {
	fmt.Printf("\n--- 监控任务 [%s] ---\n", s.now().Format("15:04:05"))

	// 获取关注列表失败则整轮放弃，避免在不完整的列表上误判状态
	entries, err := s.store.List()
	if err != nil {
		zap.L().Error("❌ 获取关注列表失败，本轮放弃", zap.Error(err))
		return
	}

	symbols := enabledSymbols(entries)
	if len(symbols) == 0 {
		fmt.Println("📊 没有启用中的关注币种，本轮跳过")
		return
	}

	// 拉取失败只影响缺失的币种，其余正常判定
	prices, err := s.priceSource.FetchPrices(ctx, symbols)
	if err != nil {
		zap.L().Error("❌ 批量获取价格失败，本轮放弃", zap.Error(err))
		return
	}
	if missing := len(symbols) - len(prices); missing > 0 {
		zap.L().Warn("⚠️ 部分币种价格缺失，本轮跳过这些币种", zap.Int("missing", missing))
	}
	if len(prices) == 0 {
		return
	}

	// 记录价格历史
	ts := s.now()
	for symbol, price := range prices {
		s.stateManager.Store(symbol, price, ts)
	}

	events, evalErrs := evaluator.EvaluateBatch(entries, prices, ts)
	for _, evalErr := range evalErrs {
		zap.L().Warn("⚠️ 预警判定跳过异常观测", zap.Error(evalErr))
	}

	// 先持久化状态再通知：宁可漏发一次通知，也不能重复触发
	if err := s.store.SaveStates(entries); err != nil {
		zap.L().Error("❌ 保存预警状态失败", zap.Error(err))
		return
	}

	if len(events) == 0 {
		fmt.Printf("✅ 本轮检查完成: %d个币种，无预警触发\n", len(prices))
		return
	}

	s.dispatchEvents(events)
}

// dispatchEvents 记录预警并发送通知
func (s *Scheduler) dispatchEvents(events []*types.AlertEvent) {
	// 先写预警日志，保证即使通知失败记录也不丢
	logged := events[:0:0]
	for _, event := range events {
		if err := s.log.Append(event); err != nil {
			zap.L().Error("❌ 写入预警日志失败",
				zap.String("symbol", event.Symbol), zap.Error(err))
			continue
		}
		logged = append(logged, event)
	}

	if len(logged) == 0 {
		return
	}

	fmt.Printf("🚨 本轮触发%d个预警\n", len(logged))

	if err := s.notify.SendBatchAlerts(logged); err != nil {
		zap.L().Error("❌ 发送预警通知失败", zap.Error(err))
		return
	}

	for _, event := range logged {
		if err := s.log.MarkNotified(event.ID); err != nil && !errors.Is(err, alertlog.ErrNotFound) {
			zap.L().Warn("⚠️ 标记通知状态失败", zap.Uint("id", event.ID), zap.Error(err))
		}
	}
}

// enabledSymbols 提取启用中的币种符号，保持列表顺序
func enabledSymbols(entries []*types.WatchlistEntry) []string {
	symbols := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Enabled {
			symbols = append(symbols, entry.Symbol)
		}
	}
	return symbols
}
