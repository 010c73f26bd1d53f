package watchlist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"crypto-alert-dashboard/pkg/types"
)

func fptr(v float64) *float64 { return &v }

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "watchlist.json"))
	require.NoError(t, err)
	return store
}

func addEntry(t *testing.T, store *FileStore, symbol string, upper, lower *float64) {
	t.Helper()
	err := store.Add(&types.WatchlistEntry{
		Symbol:         symbol,
		UpperThreshold: upper,
		LowerThreshold: lower,
		Enabled:        true,
	})
	require.NoError(t, err)
}

func TestFileStore_AddAndList(t *testing.T) {
	store := newTestStore(t)
	addEntry(t, store, "bitcoin", fptr(50000), fptr(40000))
	addEntry(t, store, "ethereum", fptr(4000), nil)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// 插入顺序稳定
	require.Equal(t, "bitcoin", entries[0].Symbol)
	require.Equal(t, "ethereum", entries[1].Symbol)
	require.Equal(t, types.AlertStateNone, entries[0].LastAlertState)
	require.False(t, entries[0].CreatedAt.IsZero())
}

func TestFileStore_AddDuplicate(t *testing.T) {
	store := newTestStore(t)
	addEntry(t, store, "bitcoin", fptr(50000), nil)

	err := store.Add(&types.WatchlistEntry{Symbol: "bitcoin", Enabled: true})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestFileStore_AddEmptySymbol(t *testing.T) {
	store := newTestStore(t)
	err := store.Add(&types.WatchlistEntry{Enabled: true})
	require.ErrorIs(t, err, ErrEmptySymbol)
}

func TestFileStore_UpdateThresholdsResetsState(t *testing.T) {
	store := newTestStore(t)
	addEntry(t, store, "bitcoin", fptr(50000), nil)

	// 先把状态走到ABOVE_FIRED
	entries, err := store.List()
	require.NoError(t, err)
	entries[0].LastAlertState = types.AlertStateAboveFired
	require.NoError(t, store.SaveStates(entries))

	entry, err := store.Get("bitcoin")
	require.NoError(t, err)
	require.Equal(t, types.AlertStateAboveFired, entry.LastAlertState)

	// 修改阈值后状态重置，可以重新触发
	require.NoError(t, store.UpdateThresholds("bitcoin", fptr(55000), fptr(45000)))

	entry, err = store.Get("bitcoin")
	require.NoError(t, err)
	require.Equal(t, types.AlertStateNone, entry.LastAlertState)
	require.Equal(t, 55000.0, *entry.UpperThreshold)
	require.Equal(t, 45000.0, *entry.LowerThreshold)
}

func TestFileStore_ListReturnsCopies(t *testing.T) {
	store := newTestStore(t)
	addEntry(t, store, "bitcoin", fptr(50000), nil)

	entries, err := store.List()
	require.NoError(t, err)
	entries[0].LastAlertState = types.AlertStateAboveFired

	// SaveStates之前存储内的状态不可见变化
	entry, err := store.Get("bitcoin")
	require.NoError(t, err)
	require.Equal(t, types.AlertStateNone, entry.LastAlertState)
}

func TestFileStore_Remove(t *testing.T) {
	store := newTestStore(t)
	addEntry(t, store, "bitcoin", fptr(50000), nil)
	addEntry(t, store, "ethereum", nil, fptr(2000))

	require.NoError(t, store.Remove("bitcoin"))

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "ethereum", entries[0].Symbol)

	require.ErrorIs(t, store.Remove("bitcoin"), ErrNotFound)
}

func TestFileStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Add(&types.WatchlistEntry{
		Symbol:         "bitcoin",
		UpperThreshold: fptr(50000),
		Enabled:        true,
	}))

	// 重新打开后数据仍在
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	entry, err := reopened.Get("bitcoin")
	require.NoError(t, err)
	require.Equal(t, 50000.0, *entry.UpperThreshold)
	require.True(t, entry.Enabled)
}

func TestFileStore_SetEnabled(t *testing.T) {
	store := newTestStore(t)
	addEntry(t, store, "bitcoin", fptr(50000), nil)

	require.NoError(t, store.SetEnabled("bitcoin", false))
	entry, err := store.Get("bitcoin")
	require.NoError(t, err)
	require.False(t, entry.Enabled)
}

func TestFileStore_SaveStatesSkipsRemoved(t *testing.T) {
	store := newTestStore(t)
	addEntry(t, store, "bitcoin", fptr(50000), nil)

	entries, err := store.List()
	require.NoError(t, err)
	entries[0].LastAlertState = types.AlertStateAboveFired

	require.NoError(t, store.Remove("bitcoin"))
	// 评估期间被移除的条目不会被SaveStates复活
	require.NoError(t, store.SaveStates(entries))

	_, err = store.Get("bitcoin")
	require.ErrorIs(t, err, ErrNotFound)
}
