package alertlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crypto-alert-dashboard/pkg/types"
)

func newTestLog(t *testing.T) *FileLog {
	t.Helper()
	log, err := NewFileLog(filepath.Join(t.TempDir(), "alerts.jsonl"))
	require.NoError(t, err)
	return log
}

func newEvent(symbol string, direction types.AlertDirection) *types.AlertEvent {
	return &types.AlertEvent{
		Symbol:         symbol,
		Direction:      direction,
		ThresholdValue: 50000,
		ObservedPrice:  52000,
		Timestamp:      time.Now(),
	}
}

func TestFileLog_AppendAssignsIDs(t *testing.T) {
	log := newTestLog(t)

	first := newEvent("bitcoin", types.DirectionAbove)
	second := newEvent("ethereum", types.DirectionBelow)

	require.NoError(t, log.Append(first))
	require.NoError(t, log.Append(second))
	require.Equal(t, uint(1), first.ID)
	require.Equal(t, uint(2), second.ID)
}

func TestFileLog_RecentNewestFirst(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Append(newEvent("bitcoin", types.DirectionAbove)))
	require.NoError(t, log.Append(newEvent("bitcoin", types.DirectionBelow)))
	require.NoError(t, log.Append(newEvent("ethereum", types.DirectionAbove)))

	events, err := log.Recent("", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "ethereum", events[0].Symbol)
	require.Equal(t, types.DirectionBelow, events[1].Direction)

	// 按币种过滤
	events, err = log.Recent("bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// limit生效
	events, err = log.Recent("", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestFileLog_Acknowledge(t *testing.T) {
	log := newTestLog(t)
	event := newEvent("bitcoin", types.DirectionAbove)
	require.NoError(t, log.Append(event))

	require.NoError(t, log.Acknowledge(event.ID))

	events, err := log.Recent("bitcoin", 1)
	require.NoError(t, err)
	require.True(t, events[0].Acknowledged)

	require.ErrorIs(t, log.Acknowledge(999), ErrNotFound)
}

func TestFileLog_PersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	log, err := NewFileLog(path)
	require.NoError(t, err)

	event := newEvent("bitcoin", types.DirectionAbove)
	require.NoError(t, log.Append(event))
	require.NoError(t, log.MarkNotified(event.ID))

	reopened, err := NewFileLog(path)
	require.NoError(t, err)

	events, err := reopened.Recent("bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].NotificationSent)

	// ID序列接着已有记录继续
	next := newEvent("ethereum", types.DirectionBelow)
	require.NoError(t, reopened.Append(next))
	require.Equal(t, uint(2), next.ID)
}
