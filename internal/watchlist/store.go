package watchlist

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crypto-alert-dashboard/pkg/types"
)

var (
	// ErrNotFound 监控列表中没有该币种
	ErrNotFound = errors.New("watchlist entry not found")
	// ErrDuplicate 币种已在监控列表中
	ErrDuplicate = errors.New("watchlist entry already exists")
	// ErrEmptySymbol 币种标识不能为空
	ErrEmptySymbol = errors.New("symbol must not be empty")
)

// Store 监控列表存储
// List返回的顺序是稳定的插入顺序，一轮评估内的事件顺序由此决定。
// List/Get返回副本，条目状态只在SaveStates批量提交时写回，
// 避免一轮评估中途的状态被其他读取方看到。
type Store interface {
	List() ([]*types.WatchlistEntry, error)
	Get(symbol string) (*types.WatchlistEntry, error)
	Add(entry *types.WatchlistEntry) error
	// UpdateThresholds 整体替换两个阈值并把LastAlertState重置为NONE，
	// 修改后的阈值可以重新触发
	UpdateThresholds(symbol string, upper, lower *float64) error
	SetEnabled(symbol string, enabled bool) error
	Remove(symbol string) error
	// SaveStates 一轮评估结束后批量提交条目的LastAlertState
	SaveStates(entries []*types.WatchlistEntry) error
}

// NewStore 根据配置选择存储后端，MySQL不可用时回退到JSON文件
func NewStore(cfg types.WatchlistConfig, db *gorm.DB) (Store, error) {
	if cfg.Backend == "mysql" && db != nil {
		store, err := NewMySQLStore(db)
		if err == nil {
			zap.L().Info("✅ 监控列表使用MySQL存储")
			return store, nil
		}
		zap.L().Warn("⚠️ MySQL监控列表初始化失败，回退到JSON文件存储", zap.Error(err))
	}

	path := cfg.FilePath
	if path == "" {
		path = "watchlist.json"
	}
	store, err := NewFileStore(path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("✅ 监控列表使用JSON文件存储", zap.String("path", path))
	return store, nil
}

// warnPathologicalThresholds 下阈值高于上阈值属于配置错误，
// 评估器会确定性地让上穿优先，这里只提醒不拒绝
func warnPathologicalThresholds(symbol string, upper, lower *float64) {
	if upper != nil && lower != nil && *lower >= *upper {
		zap.L().Warn("⚠️ 阈值配置异常：下阈值不低于上阈值",
			zap.String("symbol", symbol),
			zap.Float64("upper", *upper),
			zap.Float64("lower", *lower))
	}
}
