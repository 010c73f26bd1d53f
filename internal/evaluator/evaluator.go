package evaluator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"crypto-alert-dashboard/pkg/types"
)

// ErrInvalidObservation 非法价格观测（负数、NaN或Inf）
var ErrInvalidObservation = errors.New("invalid price observation")

// Evaluate 对单个监控条目评估一次新的价格观测（边沿触发）
//
// 纯函数：不做任何I/O，唯一的副作用是更新entry.LastAlertState。
// 发生阈值穿越时返回预警事件，否则返回nil。
// 规则按固定顺序评估，上穿检查优先，因此lower >= upper的病态配置
// 也能得到确定性的结果而不会报错。
func Evaluate(entry *types.WatchlistEntry, observed float64, now time.Time) (*types.AlertEvent, error) {
	if math.IsNaN(observed) || math.IsInf(observed, 0) || observed < 0 {
		return nil, fmt.Errorf("%w: symbol=%s price=%v", ErrInvalidObservation, entry.Symbol, observed)
	}

	// 未启用的条目不参与评估，状态原样保留
	if !entry.Enabled {
		return nil, nil
	}

	// 两个阈值都未配置的条目永远停留在NONE
	if !entry.HasThresholds() {
		entry.LastAlertState = types.AlertStateNone
		return nil, nil
	}

	upper, lower := entry.UpperThreshold, entry.LowerThreshold

	// 1. 上穿检查（优先）
	if upper != nil && observed >= *upper && entry.LastAlertState != types.AlertStateAboveFired {
		entry.LastAlertState = types.AlertStateAboveFired
		return newEvent(entry.Symbol, types.DirectionAbove, *upper, observed, now), nil
	}

	// 2. 下穿检查
	if lower != nil && observed <= *lower && entry.LastAlertState != types.AlertStateBelowFired {
		entry.LastAlertState = types.AlertStateBelowFired
		return newEvent(entry.Symbol, types.DirectionBelow, *lower, observed, now), nil
	}

	// 3. 重新武装：只配置了单个阈值时，价格回到非触发一侧后重置状态，
	//    让下一次穿越可以再次预警。同时配置了上下两个阈值时构成滞回区间，
	//    价格处于区间内不重置，只有穿越另一侧才会再次触发。
	if upper != nil && lower == nil && observed < *upper {
		entry.LastAlertState = types.AlertStateNone
		return nil, nil
	}
	if lower != nil && upper == nil && observed > *lower {
		entry.LastAlertState = types.AlertStateNone
		return nil, nil
	}

	// 4. 其余情况：状态不变，不产生事件
	return nil, nil
}

func newEvent(symbol string, direction types.AlertDirection, threshold, observed float64, now time.Time) *types.AlertEvent {
	return &types.AlertEvent{
		Symbol:         symbol,
		Direction:      direction,
		ThresholdValue: threshold,
		ObservedPrice:  observed,
		Timestamp:      now,
	}
}

// EvaluateBatch 对一批监控条目执行一轮评估
//
// 按传入顺序（即监控列表的插入顺序）逐条处理，价格表中没有对应
// 价格的条目直接跳过（数据源可能遗漏个别币种，不算错误）。
// 非法观测只跳过该条目，已收集的错误随结果一并返回，评估不中断。
// 只修改条目的LastAlertState，落盘由调用方在整轮结束后批量提交。
func EvaluateBatch(entries []*types.WatchlistEntry, prices map[string]float64, now time.Time) ([]*types.AlertEvent, []error) {
	var events []*types.AlertEvent
	var errs []error

	for _, entry := range entries {
		price, ok := prices[entry.Symbol]
		if !ok {
			continue
		}

		event, err := Evaluate(entry, price, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if event != nil {
			events = append(events, event)
		}
	}

	return events, errs
}
