package alertlog

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"crypto-alert-dashboard/pkg/types"
)

// alertRecord 预警记录数据库模型
type alertRecord struct {
	ID               uint    `gorm:"primaryKey"`
	Symbol           string  `gorm:"type:varchar(64);not null;index:idx_symbol_time"`
	Direction        string  `gorm:"type:varchar(8);not null"`
	ThresholdValue   float64 `gorm:"type:decimal(20,8);not null"`
	ObservedPrice    float64 `gorm:"type:decimal(20,8);not null"`
	TriggeredAt      int64   `gorm:"not null;index:idx_symbol_time"`
	Acknowledged     bool    `gorm:"not null;default:false;index:idx_acknowledged"`
	NotificationSent bool    `gorm:"not null;default:false"`
	CreatedAt        time.Time
}

func (alertRecord) TableName() string { return "alerts" }

// MySQLLog MySQL预警记录存储
type MySQLLog struct {
	db *gorm.DB
}

func NewMySQLLog(db *gorm.DB) (*MySQLLog, error) {
	if err := db.AutoMigrate(&alertRecord{}); err != nil {
		return nil, fmt.Errorf("预警记录表迁移失败: %v", err)
	}
	return &MySQLLog{db: db}, nil
}

func (ml *MySQLLog) Append(event *types.AlertEvent) error {
	record := alertRecord{
		Symbol:           event.Symbol,
		Direction:        string(event.Direction),
		ThresholdValue:   event.ThresholdValue,
		ObservedPrice:    event.ObservedPrice,
		TriggeredAt:      event.Timestamp.UnixMilli(),
		Acknowledged:     event.Acknowledged,
		NotificationSent: event.NotificationSent,
	}
	if err := ml.db.Create(&record).Error; err != nil {
		return err
	}
	event.ID = record.ID
	return nil
}

func (ml *MySQLLog) Recent(symbol string, limit int) ([]*types.AlertEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := ml.db.Model(&alertRecord{})
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var records []alertRecord
	err := query.Order("triggered_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}

	events := make([]*types.AlertEvent, 0, len(records))
	for i := range records {
		record := &records[i]
		events = append(events, &types.AlertEvent{
			ID:               record.ID,
			Symbol:           record.Symbol,
			Direction:        types.AlertDirection(record.Direction),
			ThresholdValue:   record.ThresholdValue,
			ObservedPrice:    record.ObservedPrice,
			Timestamp:        time.UnixMilli(record.TriggeredAt),
			Acknowledged:     record.Acknowledged,
			NotificationSent: record.NotificationSent,
		})
	}
	return events, nil
}

func (ml *MySQLLog) Acknowledge(id uint) error {
	return ml.setFlag(id, "acknowledged")
}

func (ml *MySQLLog) MarkNotified(id uint) error {
	return ml.setFlag(id, "notification_sent")
}

func (ml *MySQLLog) setFlag(id uint, column string) error {
	result := ml.db.Model(&alertRecord{}).Where("id = ?", id).Update(column, true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return nil
}
