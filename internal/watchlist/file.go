package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"crypto-alert-dashboard/pkg/types"
)

// FileStore JSON文件监控列表存储
// 整个列表保存在一个JSON数组文件里，文件顺序即插入顺序。
// 写入采用临时文件+rename，避免进程中断留下半截文件。
type FileStore struct {
	path    string
	entries []*types.WatchlistEntry
	mutex   sync.RWMutex
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			fs.entries = nil
			return nil
		}
		return fmt.Errorf("读取监控列表文件失败: %v", err)
	}

	var entries []*types.WatchlistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("解析监控列表文件失败: %v", err)
	}

	for _, entry := range entries {
		if entry.LastAlertState == "" {
			entry.LastAlertState = types.AlertStateNone
		}
	}
	fs.entries = entries
	return nil
}

// save 持锁调用
func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化监控列表失败: %v", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建监控列表目录失败: %v", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("写入监控列表临时文件失败: %v", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("替换监控列表文件失败: %v", err)
	}
	return nil
}

func cloneEntry(entry *types.WatchlistEntry) *types.WatchlistEntry {
	clone := *entry
	if entry.UpperThreshold != nil {
		v := *entry.UpperThreshold
		clone.UpperThreshold = &v
	}
	if entry.LowerThreshold != nil {
		v := *entry.LowerThreshold
		clone.LowerThreshold = &v
	}
	return &clone
}

func (fs *FileStore) List() ([]*types.WatchlistEntry, error) {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()

	entries := make([]*types.WatchlistEntry, 0, len(fs.entries))
	for _, entry := range fs.entries {
		entries = append(entries, cloneEntry(entry))
	}
	return entries, nil
}

func (fs *FileStore) Get(symbol string) (*types.WatchlistEntry, error) {
	fs.mutex.RLock()
	defer fs.mutex.RUnlock()

	for _, entry := range fs.entries {
		if entry.Symbol == symbol {
			return cloneEntry(entry), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
}

func (fs *FileStore) Add(entry *types.WatchlistEntry) error {
	if entry.Symbol == "" {
		return ErrEmptySymbol
	}

	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	for _, existing := range fs.entries {
		if existing.Symbol == entry.Symbol {
			return fmt.Errorf("%w: %s", ErrDuplicate, entry.Symbol)
		}
	}

	warnPathologicalThresholds(entry.Symbol, entry.UpperThreshold, entry.LowerThreshold)

	now := time.Now()
	stored := cloneEntry(entry)
	stored.LastAlertState = types.AlertStateNone
	stored.CreatedAt = now
	stored.UpdatedAt = now

	fs.entries = append(fs.entries, stored)
	return fs.save()
}

func (fs *FileStore) UpdateThresholds(symbol string, upper, lower *float64) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	for _, entry := range fs.entries {
		if entry.Symbol != symbol {
			continue
		}

		warnPathologicalThresholds(symbol, upper, lower)

		entry.UpperThreshold = upper
		entry.LowerThreshold = lower
		entry.LastAlertState = types.AlertStateNone
		entry.UpdatedAt = time.Now()
		return fs.save()
	}
	return fmt.Errorf("%w: %s", ErrNotFound, symbol)
}

func (fs *FileStore) SetEnabled(symbol string, enabled bool) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	for _, entry := range fs.entries {
		if entry.Symbol != symbol {
			continue
		}
		entry.Enabled = enabled
		entry.UpdatedAt = time.Now()
		return fs.save()
	}
	return fmt.Errorf("%w: %s", ErrNotFound, symbol)
}

func (fs *FileStore) Remove(symbol string) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	for i, entry := range fs.entries {
		if entry.Symbol == symbol {
			fs.entries = append(fs.entries[:i], fs.entries[i+1:]...)
			return fs.save()
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, symbol)
}

func (fs *FileStore) SaveStates(entries []*types.WatchlistEntry) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	index := make(map[string]*types.WatchlistEntry, len(fs.entries))
	for _, entry := range fs.entries {
		index[entry.Symbol] = entry
	}

	changed := false
	now := time.Now()
	for _, updated := range entries {
		stored, ok := index[updated.Symbol]
		if !ok {
			continue // 评估期间被移除的条目，丢弃其状态
		}
		if stored.LastAlertState != updated.LastAlertState {
			stored.LastAlertState = updated.LastAlertState
			stored.UpdatedAt = now
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return fs.save()
}
