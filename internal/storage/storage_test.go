package storage

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crypto-alert-dashboard/pkg/types"
)

func newTestManager() *StateManager {
	// 不配置Redis，纯内存模式
	return NewStateManager(types.RedisConfig{}, types.HistoryConfig{
		Window: time.Hour,
	})
}

func TestStateManager_StoreAndLatest(t *testing.T) {
	sm := newTestManager()
	now := time.Now()

	sm.Store("bitcoin", 50000, now.Add(-time.Minute))
	sm.Store("bitcoin", 51000, now)

	latest := sm.Latest("bitcoin")
	require.NotNil(t, latest)
	require.Equal(t, 51000.0, latest.Price)

	require.Nil(t, sm.Latest("ethereum"))
}

func TestStateManager_HistoryAscending(t *testing.T) {
	sm := newTestManager()
	now := time.Now()

	for i := 0; i < 5; i++ {
		sm.Store("bitcoin", float64(50000+i), now.Add(time.Duration(i-5)*time.Minute))
	}

	history := sm.History("bitcoin")
	require.Len(t, history, 5)
	for i := 1; i < len(history); i++ {
		require.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}
}

func TestCircularQueue_TrimsOldData(t *testing.T) {
	queue := NewCircularQueue(10 * time.Minute)
	now := time.Now()

	queue.Add(types.PricePoint{Price: 1, Timestamp: now.Add(-time.Hour)})
	queue.Add(types.PricePoint{Price: 2, Timestamp: now})

	require.Equal(t, 1, queue.Length())
	require.Equal(t, 2.0, queue.Latest().Price)
}

func TestStateManager_LatestAll(t *testing.T) {
	sm := newTestManager()
	now := time.Now()

	sm.Store("bitcoin", 50000, now)
	sm.Store("ethereum", 3000, now)

	latest := sm.LatestAll()
	require.Len(t, latest, 2)
	require.Equal(t, 50000.0, latest["bitcoin"].Price)
	require.Equal(t, 3000.0, latest["ethereum"].Price)
}

func TestStateManager_ExportCSV(t *testing.T) {
	sm := newTestManager()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sm.Store("bitcoin", 50000.5, ts)

	var buf bytes.Buffer
	require.NoError(t, sm.ExportCSV("bitcoin", &buf))

	out := buf.String()
	require.Contains(t, out, "timestamp,price")
	require.Contains(t, out, "2025-06-01T12:00:00Z,50000.5")
}

func TestStateManager_ExportCSVEmpty(t *testing.T) {
	sm := newTestManager()

	var buf bytes.Buffer
	require.NoError(t, sm.ExportCSV("unknown", &buf))
	require.Equal(t, "timestamp,price\n", buf.String())
}
