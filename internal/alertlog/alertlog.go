package alertlog

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crypto-alert-dashboard/pkg/types"
)

// ErrNotFound 预警记录不存在
var ErrNotFound = errors.New("alert record not found")

// Log 已触发预警的追加式持久记录
// 核心只追加，从不删除；保留和清理策略属于外部运维
type Log interface {
	// Append 记录一条预警事件，成功后回填event.ID
	Append(event *types.AlertEvent) error
	// Recent 按触发时间倒序返回预警记录，symbol为空表示不过滤
	Recent(symbol string, limit int) ([]*types.AlertEvent, error)
	// Acknowledge 用户确认一条预警
	Acknowledge(id uint) error
	// MarkNotified 记录该预警已成功推送过通知
	MarkNotified(id uint) error
}

// NewLog 根据监控列表的后端选择相同的存储方式
func NewLog(cfg types.WatchlistConfig, db *gorm.DB) (Log, error) {
	if cfg.Backend == "mysql" && db != nil {
		log, err := NewMySQLLog(db)
		if err == nil {
			zap.L().Info("✅ 预警记录使用MySQL存储")
			return log, nil
		}
		zap.L().Warn("⚠️ MySQL预警记录初始化失败，回退到JSONL文件存储", zap.Error(err))
	}

	path := "alerts.jsonl"
	if cfg.FilePath != "" {
		path = cfg.FilePath + ".alerts.jsonl"
	}
	log, err := NewFileLog(path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("✅ 预警记录使用JSONL文件存储", zap.String("path", path))
	return log, nil
}
