package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-alert-dashboard/internal/alertlog"
	"crypto-alert-dashboard/internal/news"
	"crypto-alert-dashboard/internal/storage"
	"crypto-alert-dashboard/internal/watchlist"
	"crypto-alert-dashboard/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *storage.StateManager, alertlog.Log) {
	t.Helper()
	dir := t.TempDir()

	store, err := watchlist.NewFileStore(filepath.Join(dir, "watchlist.json"))
	require.NoError(t, err)

	log, err := alertlog.NewFileLog(filepath.Join(dir, "alerts.jsonl"))
	require.NoError(t, err)

	sm := storage.NewStateManager(types.RedisConfig{}, types.HistoryConfig{})
	newsClient := news.NewClient(types.NewsConfig{}, types.NetworkConfig{})

	return NewServer("127.0.0.1:0", store, sm, log, newsClient, 50*time.Millisecond), sm, log
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWatchlistCRUD(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	// 添加
	rec := doJSON(t, h, http.MethodPost, "/api/watchlist", map[string]interface{}{
		"symbol":          "BTC",
		"upper_threshold": 50000.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// 重复添加返回409
	rec = doJSON(t, h, http.MethodPost, "/api/watchlist", map[string]interface{}{
		"symbol": "BTC",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// 空符号返回400
	rec = doJSON(t, h, http.MethodPost, "/api/watchlist", map[string]interface{}{
		"symbol": "  ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 列表
	rec = doJSON(t, h, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []*types.WatchlistEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "BTC", entries[0].Symbol)
	assert.True(t, entries[0].Enabled)

	// 更新阈值
	rec = doJSON(t, h, http.MethodPut, "/api/watchlist/BTC/thresholds", map[string]interface{}{
		"upper_threshold": 60000.0,
		"lower_threshold": 40000.0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated types.WatchlistEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.NotNil(t, updated.UpperThreshold)
	assert.Equal(t, 60000.0, *updated.UpperThreshold)
	assert.Equal(t, types.AlertStateNone, updated.LastAlertState)

	// 停用
	rec = doJSON(t, h, http.MethodPut, "/api/watchlist/BTC/enabled", map[string]interface{}{
		"enabled": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// 删除
	rec = doJSON(t, h, http.MethodDelete, "/api/watchlist/BTC", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 删除不存在的返回404
	rec = doJSON(t, h, http.MethodDelete, "/api/watchlist/BTC", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestPricesAndHistory(t *testing.T) {
	s, sm, _ := newTestServer(t)
	h := s.Handler()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sm.Store("BTC", 50000.5, ts)
	sm.Store("BTC", 51000, ts.Add(time.Minute))

	rec := doJSON(t, h, http.MethodGet, "/api/prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var latest map[string]types.PricePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, 51000.0, latest["BTC"].Price)

	rec = doJSON(t, h, http.MethodGet, "/api/history?symbol=BTC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var points []types.PricePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 2)
	assert.Equal(t, 50000.5, points[0].Price)

	// 缺少symbol参数
	rec = doJSON(t, h, http.MethodGet, "/api/history", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryCSVDownload(t *testing.T) {
	s, sm, _ := newTestServer(t)
	h := s.Handler()

	sm.Store("BTC", 50000.5, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, h, http.MethodGet, "/api/history/csv?symbol=BTC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "BTC_history.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "timestamp,price"))
	assert.Contains(t, rec.Body.String(), "2025-06-01T12:00:00Z,50000.5")
}

func TestAlertsListAndAck(t *testing.T) {
	s, _, log := newTestServer(t)
	h := s.Handler()

	event := &types.AlertEvent{
		Symbol:         "BTC",
		Direction:      types.DirectionAbove,
		ThresholdValue: 50000,
		ObservedPrice:  52000,
		Timestamp:      time.Now(),
	}
	require.NoError(t, log.Append(event))

	rec := doJSON(t, h, http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []*types.AlertEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.False(t, events[0].Acknowledged)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/alerts/%d/ack", event.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/alerts?symbol=BTC", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.True(t, events[0].Acknowledged)

	// 不存在的ID
	rec = doJSON(t, h, http.MethodPost, "/api/alerts/999/ack", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 非法的limit
	rec = doJSON(t, h, http.MethodGet, "/api/alerts?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewsWithoutAPIKey(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/news?q=bitcoin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestPriceStreamPushesLatest(t *testing.T) {
	s, sm, _ := newTestServer(t)

	sm.Store("BTC", 50000, time.Now())

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/prices"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 连接后立即收到一份快照
	var snapshot map[string]types.PricePoint
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, 50000.0, snapshot["BTC"].Price)

	// 后续推送周期带上新价格
	sm.Store("BTC", 51000, time.Now())
	for snapshot["BTC"].Price != 51000.0 {
		require.NoError(t, conn.ReadJSON(&snapshot))
	}
}
