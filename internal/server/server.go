package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crypto-alert-dashboard/internal/alertlog"
	"crypto-alert-dashboard/internal/news"
	"crypto-alert-dashboard/internal/storage"
	"crypto-alert-dashboard/internal/watchlist"
	"crypto-alert-dashboard/pkg/types"
)

// Server 看板HTTP服务：关注列表管理、价格/历史查询、预警记录和资讯
type Server struct {
	store        watchlist.Store
	stateManager *storage.StateManager
	alertLog     alertlog.Log
	newsClient   *news.Client
	pushInterval time.Duration
	upgrader     websocket.Upgrader
	httpServer   *http.Server
}

func NewServer(listen string, store watchlist.Store, stateManager *storage.StateManager,
	alertLog alertlog.Log, newsClient *news.Client, pushInterval time.Duration) *Server {

	if pushInterval <= 0 {
		pushInterval = 60 * time.Second
	}

	s := &Server{
		store:        store,
		stateManager: stateManager,
		alertLog:     alertLog,
		newsClient:   newsClient,
		pushInterval: pushInterval,
		upgrader: websocket.Upgrader{
			// 看板前端可能跑在不同端口上
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/watchlist", s.handleListWatchlist)
	mux.HandleFunc("POST /api/watchlist", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleRemoveWatchlist)
	mux.HandleFunc("PUT /api/watchlist/{symbol}/thresholds", s.handleUpdateThresholds)
	mux.HandleFunc("PUT /api/watchlist/{symbol}/enabled", s.handleSetEnabled)
	mux.HandleFunc("GET /api/prices", s.handleLatestPrices)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/csv", s.handleHistoryCSV)
	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.HandleFunc("POST /api/alerts/{id}/ack", s.handleAckAlert)
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("GET /ws/prices", s.handlePriceStream)

	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start 启动HTTP服务并在ctx取消时优雅关闭
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		fmt.Printf("🚀 看板服务启动: http://%s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("HTTP服务启动失败: %v", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP服务关闭失败: %v", err)
		}
		fmt.Println("📴 看板服务已停止")
		return nil
	}
}

// Handler 暴露路由表，便于测试
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// --- 关注列表 ---

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type addWatchlistRequest struct {
	Symbol         string   `json:"symbol"`
	UpperThreshold *float64 `json:"upper_threshold"`
	LowerThreshold *float64 `json:"lower_threshold"`
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	var req addWatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("请求体解析失败: %v", err))
		return
	}

	entry := &types.WatchlistEntry{
		Symbol:         strings.TrimSpace(req.Symbol),
		UpperThreshold: req.UpperThreshold,
		LowerThreshold: req.LowerThreshold,
		Enabled:        true,
	}

	if err := s.store.Add(entry); err != nil {
		switch {
		case errors.Is(err, watchlist.ErrEmptySymbol):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, watchlist.ErrDuplicate):
			writeError(w, http.StatusConflict, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if err := s.store.Remove(symbol); err != nil {
		if errors.Is(err, watchlist.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": symbol})
}

type updateThresholdsRequest struct {
	UpperThreshold *float64 `json:"upper_threshold"`
	LowerThreshold *float64 `json:"lower_threshold"`
}

func (s *Server) handleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	var req updateThresholdsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("请求体解析失败: %v", err))
		return
	}

	if err := s.store.UpdateThresholds(symbol, req.UpperThreshold, req.LowerThreshold); err != nil {
		if errors.Is(err, watchlist.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	entry, err := s.store.Get(symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("请求体解析失败: %v", err))
		return
	}

	if err := s.store.SetEnabled(symbol, req.Enabled); err != nil {
		if errors.Is(err, watchlist.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": symbol, "enabled": req.Enabled})
}

// --- 价格与历史 ---

func (s *Server) handleLatestPrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stateManager.LatestAll())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, errors.New("缺少symbol参数"))
		return
	}
	writeJSON(w, http.StatusOK, s.stateManager.History(symbol))
}

func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, errors.New("缺少symbol参数"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_history.csv", symbol))

	if err := s.stateManager.ExportCSV(symbol, w); err != nil {
		zap.L().Error("❌ 导出CSV失败", zap.String("symbol", symbol), zap.Error(err))
	}
}

// --- 预警记录 ---

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit参数必须是正整数"))
			return
		}
		limit = parsed
	}

	events, err := s.alertLog.Recent(symbol, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("预警ID必须是整数"))
		return
	}

	if err := s.alertLog.Acknowledge(uint(id)); err != nil {
		if errors.Is(err, alertlog.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": id})
}

// --- 资讯 ---

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	articles, err := s.newsClient.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, news.ErrAPIKeyMissing) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

// --- WebSocket价格推送 ---

// handlePriceStream 每个推送周期把全部币种的最新价格推给客户端
func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("⚠️ WebSocket升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	zap.L().Info("✅ WebSocket客户端已连接", zap.String("remote", r.RemoteAddr))

	// 连接建立后立即推一次，不用等下一个周期
	if err := conn.WriteJSON(s.stateManager.LatestAll()); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	// 读循环只用于感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			zap.L().Info("📴 WebSocket客户端已断开", zap.String("remote", r.RemoteAddr))
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.stateManager.LatestAll()); err != nil {
				return
			}
		}
	}
}

// --- 响应辅助 ---

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("⚠️ 写入响应失败", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
