package watchlist

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"crypto-alert-dashboard/pkg/types"
)

// watchlistRecord 监控列表数据库模型
type watchlistRecord struct {
	ID             uint     `gorm:"primaryKey"`
	Symbol         string   `gorm:"type:varchar(64);not null;uniqueIndex:uk_symbol"`
	UpperThreshold *float64 `gorm:"type:decimal(20,8)"`
	LowerThreshold *float64 `gorm:"type:decimal(20,8)"`
	Enabled        bool     `gorm:"not null;default:true"`
	LastAlertState string   `gorm:"type:varchar(16);not null;default:'NONE'"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (watchlistRecord) TableName() string { return "watchlist" }

// MySQLStore MySQL监控列表存储
type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(db *gorm.DB) (*MySQLStore, error) {
	if err := db.AutoMigrate(&watchlistRecord{}); err != nil {
		return nil, fmt.Errorf("监控列表表迁移失败: %v", err)
	}
	return &MySQLStore{db: db}, nil
}

func recordToEntry(record *watchlistRecord) *types.WatchlistEntry {
	return &types.WatchlistEntry{
		Symbol:         record.Symbol,
		UpperThreshold: record.UpperThreshold,
		LowerThreshold: record.LowerThreshold,
		Enabled:        record.Enabled,
		LastAlertState: types.AlertState(record.LastAlertState),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func (ms *MySQLStore) List() ([]*types.WatchlistEntry, error) {
	var records []watchlistRecord
	// 自增id顺序即插入顺序
	if err := ms.db.Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	entries := make([]*types.WatchlistEntry, 0, len(records))
	for i := range records {
		entries = append(entries, recordToEntry(&records[i]))
	}
	return entries, nil
}

func (ms *MySQLStore) Get(symbol string) (*types.WatchlistEntry, error) {
	var record watchlistRecord
	err := ms.db.Where("symbol = ?", symbol).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if err != nil {
		return nil, err
	}
	return recordToEntry(&record), nil
}

func (ms *MySQLStore) Add(entry *types.WatchlistEntry) error {
	if entry.Symbol == "" {
		return ErrEmptySymbol
	}

	var count int64
	if err := ms.db.Model(&watchlistRecord{}).Where("symbol = ?", entry.Symbol).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, entry.Symbol)
	}

	warnPathologicalThresholds(entry.Symbol, entry.UpperThreshold, entry.LowerThreshold)

	record := watchlistRecord{
		Symbol:         entry.Symbol,
		UpperThreshold: entry.UpperThreshold,
		LowerThreshold: entry.LowerThreshold,
		Enabled:        entry.Enabled,
		LastAlertState: string(types.AlertStateNone),
	}
	return ms.db.Create(&record).Error
}

func (ms *MySQLStore) UpdateThresholds(symbol string, upper, lower *float64) error {
	warnPathologicalThresholds(symbol, upper, lower)

	result := ms.db.Model(&watchlistRecord{}).
		Where("symbol = ?", symbol).
		Updates(map[string]interface{}{
			"upper_threshold":  upper,
			"lower_threshold":  lower,
			"last_alert_state": string(types.AlertStateNone),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return nil
}

func (ms *MySQLStore) SetEnabled(symbol string, enabled bool) error {
	result := ms.db.Model(&watchlistRecord{}).
		Where("symbol = ?", symbol).
		Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return nil
}

func (ms *MySQLStore) Remove(symbol string) error {
	result := ms.db.Where("symbol = ?", symbol).Delete(&watchlistRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return nil
}

func (ms *MySQLStore) SaveStates(entries []*types.WatchlistEntry) error {
	if len(entries) == 0 {
		return nil
	}

	// 一轮评估的状态变更在单个事务里批量提交
	return ms.db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			err := tx.Model(&watchlistRecord{}).
				Where("symbol = ?", entry.Symbol).
				Update("last_alert_state", string(entry.LastAlertState)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
