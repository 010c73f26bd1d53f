package alertlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"crypto-alert-dashboard/pkg/types"
)

// FileLog JSONL文件预警记录存储
// 每行一个事件，正常路径只追加；确认/标记通知需要整体重写
type FileLog struct {
	path   string
	events []*types.AlertEvent
	nextID uint
	mutex  sync.RWMutex
}

func NewFileLog(path string) (*FileLog, error) {
	fl := &FileLog{path: path, nextID: 1}
	if err := fl.load(); err != nil {
		return nil, err
	}
	return fl, nil
}

func (fl *FileLog) load() error {
	file, err := os.Open(fl.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("打开预警记录文件失败: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event types.AlertEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return fmt.Errorf("解析预警记录失败: %v", err)
		}
		fl.events = append(fl.events, &event)
		if event.ID >= fl.nextID {
			fl.nextID = event.ID + 1
		}
	}
	return scanner.Err()
}

func (fl *FileLog) Append(event *types.AlertEvent) error {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	stored := *event
	stored.ID = fl.nextID

	if err := os.MkdirAll(filepath.Dir(fl.path), 0o755); err != nil {
		return fmt.Errorf("创建预警记录目录失败: %v", err)
	}

	file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开预警记录文件失败: %v", err)
	}
	defer file.Close()

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("序列化预警事件失败: %v", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("写入预警记录失败: %v", err)
	}

	fl.nextID++
	fl.events = append(fl.events, &stored)
	event.ID = stored.ID
	return nil
}

func (fl *FileLog) Recent(symbol string, limit int) ([]*types.AlertEvent, error) {
	fl.mutex.RLock()
	defer fl.mutex.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	// 倒序扫描，最新的在前
	events := make([]*types.AlertEvent, 0, limit)
	for i := len(fl.events) - 1; i >= 0 && len(events) < limit; i-- {
		event := fl.events[i]
		if symbol != "" && event.Symbol != symbol {
			continue
		}
		clone := *event
		events = append(events, &clone)
	}
	return events, nil
}

func (fl *FileLog) Acknowledge(id uint) error {
	return fl.setFlag(id, func(event *types.AlertEvent) { event.Acknowledged = true })
}

func (fl *FileLog) MarkNotified(id uint) error {
	return fl.setFlag(id, func(event *types.AlertEvent) { event.NotificationSent = true })
}

func (fl *FileLog) setFlag(id uint, update func(*types.AlertEvent)) error {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	for _, event := range fl.events {
		if event.ID == id {
			update(event)
			return fl.rewrite()
		}
	}
	return fmt.Errorf("%w: id=%d", ErrNotFound, id)
}

// rewrite 持锁调用，整体重写文件
func (fl *FileLog) rewrite() error {
	tmp := fl.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("写入预警记录临时文件失败: %v", err)
	}

	writer := bufio.NewWriter(file)
	for _, event := range fl.events {
		data, err := json.Marshal(event)
		if err != nil {
			file.Close()
			return fmt.Errorf("序列化预警事件失败: %v", err)
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			file.Close()
			return fmt.Errorf("写入预警记录失败: %v", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, fl.path)
}
