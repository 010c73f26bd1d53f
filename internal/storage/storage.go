package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"crypto-alert-dashboard/pkg/types"
)

// CircularQueue 按时间窗口滑动的价格队列
type CircularQueue struct {
	data   []types.PricePoint
	maxAge time.Duration
	mutex  sync.RWMutex
}

func NewCircularQueue(maxAge time.Duration) *CircularQueue {
	return &CircularQueue{
		data:   make([]types.PricePoint, 0, 16),
		maxAge: maxAge,
	}
}

func (cq *CircularQueue) Add(point types.PricePoint) {
	cq.mutex.Lock()
	defer cq.mutex.Unlock()

	cq.data = append(cq.data, point)

	// 清理超过maxAge的旧数据
	cutoff := time.Now().Add(-cq.maxAge)
	newStart := len(cq.data)
	for i, p := range cq.data {
		if p.Timestamp.After(cutoff) {
			newStart = i
			break
		}
	}
	if newStart > 0 {
		cq.data = cq.data[newStart:]
	}
}

func (cq *CircularQueue) Latest() *types.PricePoint {
	cq.mutex.RLock()
	defer cq.mutex.RUnlock()

	if len(cq.data) == 0 {
		return nil
	}
	point := cq.data[len(cq.data)-1]
	return &point
}

// Snapshot 返回时间升序的副本
func (cq *CircularQueue) Snapshot() []types.PricePoint {
	cq.mutex.RLock()
	defer cq.mutex.RUnlock()

	snapshot := make([]types.PricePoint, len(cq.data))
	copy(snapshot, cq.data)
	return snapshot
}

func (cq *CircularQueue) Length() int {
	cq.mutex.RLock()
	defer cq.mutex.RUnlock()
	return len(cq.data)
}

// StateManager 价格历史状态管理器
// 内存中保存每个币种的滑动窗口，Redis可用时异步备份一份更长的历史
type StateManager struct {
	priceHistory map[string]*CircularQueue
	mutex        sync.RWMutex
	windowSize   time.Duration
	retention    time.Duration
	redisClient  *redis.Client
	useRedis     bool
}

func NewStateManager(redisConfig types.RedisConfig, historyConfig types.HistoryConfig) *StateManager {
	windowSize := historyConfig.Window
	if windowSize == 0 {
		windowSize = time.Hour
	}
	retention := historyConfig.Retention
	if retention == 0 {
		retention = 24 * time.Hour
	}

	sm := &StateManager{
		priceHistory: make(map[string]*CircularQueue),
		windowSize:   windowSize,
		retention:    retention,
	}

	// 尝试连接Redis
	if redisConfig.URL != "" {
		sm.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		// 测试连接
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := sm.redisClient.Ping(ctx).Result()
		if err != nil {
			fmt.Printf("⚠️  Redis连接失败，使用纯内存模式: %v\n", err)
			sm.useRedis = false
		} else {
			fmt.Println("✅ Redis连接成功")
			sm.useRedis = true
		}
	} else {
		fmt.Println("🔧 未配置Redis，使用纯内存模式")
		sm.useRedis = false
	}

	return sm
}

func (sm *StateManager) Store(symbol string, price float64, timestamp time.Time) {
	sm.mutex.Lock()
	if sm.priceHistory[symbol] == nil {
		sm.priceHistory[symbol] = NewCircularQueue(sm.windowSize)
	}
	queue := sm.priceHistory[symbol]
	sm.mutex.Unlock()

	point := types.PricePoint{
		Price:     price,
		Timestamp: timestamp,
	}
	queue.Add(point)

	// 异步备份到Redis
	if sm.useRedis {
		go sm.backupToRedis(symbol, point)
	}
}

// backupToRedis 备份数据到Redis（Sorted Set，时间戳为分数）
func (sm *StateManager) backupToRedis(symbol string, point types.PricePoint) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf("dashboard:price:%s", symbol)
	value, err := json.Marshal(point)
	if err != nil {
		fmt.Printf("序列化价格数据失败: %v\n", err)
		return
	}

	err = sm.redisClient.ZAdd(ctx, key, &redis.Z{
		Score:  float64(point.Timestamp.Unix()),
		Member: value,
	}).Err()
	if err != nil {
		fmt.Printf("Redis存储失败 %s: %v\n", symbol, err)
		return
	}

	// 只保留retention时长内的数据
	sm.redisClient.Expire(ctx, key, sm.retention)
	cutoff := float64(time.Now().Add(-sm.retention).Unix())
	sm.redisClient.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%.0f", cutoff))
}

// Latest 返回该币种的最新价格观测，没有数据时返回nil
func (sm *StateManager) Latest(symbol string) *types.PricePoint {
	sm.mutex.RLock()
	queue := sm.priceHistory[symbol]
	sm.mutex.RUnlock()

	if queue == nil {
		return nil
	}
	return queue.Latest()
}

// History 返回该币种窗口内的价格历史，时间升序
func (sm *StateManager) History(symbol string) []types.PricePoint {
	sm.mutex.RLock()
	queue := sm.priceHistory[symbol]
	sm.mutex.RUnlock()

	if queue == nil {
		return nil
	}
	return queue.Snapshot()
}

// LatestAll 返回所有币种的最新价格
func (sm *StateManager) LatestAll() map[string]types.PricePoint {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	latest := make(map[string]types.PricePoint, len(sm.priceHistory))
	for symbol, queue := range sm.priceHistory {
		if point := queue.Latest(); point != nil {
			latest[symbol] = *point
		}
	}
	return latest
}

func (sm *StateManager) GetAllSymbols() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	symbols := make([]string, 0, len(sm.priceHistory))
	for symbol := range sm.priceHistory {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// ExportCSV 把该币种的价格历史写成CSV（仪表盘下载用）
func (sm *StateManager) ExportCSV(symbol string, w io.Writer) error {
	history := sm.History(symbol)

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "price"}); err != nil {
		return err
	}
	for _, point := range history {
		record := []string{
			point.Timestamp.Format(time.RFC3339),
			strconv.FormatFloat(point.Price, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// GetRedisStats 获取存储统计信息
func (sm *StateManager) GetRedisStats() map[string]interface{} {
	sm.mutex.RLock()
	memorySymbols := len(sm.priceHistory)
	sm.mutex.RUnlock()

	stats := map[string]interface{}{
		"redis_enabled":  sm.useRedis,
		"memory_symbols": memorySymbols,
	}

	if sm.useRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		keys, err := sm.redisClient.Keys(ctx, "dashboard:price:*").Result()
		if err == nil {
			stats["redis_keys"] = len(keys)
		} else {
			stats["redis_error"] = err.Error()
		}
	}

	return stats
}
