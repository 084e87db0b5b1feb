package runstats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

const runKeyPrefix = "run:"

// BadgerStore хранит итоги забегов в локальной BadgerDB
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает хранилище в dataPath/runs.
// Пустой dataPath открывает БД в памяти.
func NewBadgerStore(dataPath string) (*BadgerStore, error) {
	var opts badger.Options
	dbPath := ""
	if dataPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath = filepath.Join(dataPath, "runs")
		opts = badger.DefaultOptions(dbPath)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerStore{db: db, dbPath: dbPath, isReady: true}, nil
}

// Save сохраняет итог забега
func (bs *BadgerStore) Save(ctx context.Context, s Summary) error {
	if s.RunID == "" {
		return fmt.Errorf("пустой идентификатор забега")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.isReady {
		return ErrStoreClosed
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("ошибка сериализации итога: %w", err)
	}

	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runKeyPrefix+s.RunID), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load загружает итог забега
func (bs *BadgerStore) Load(ctx context.Context, runID string) (Summary, bool, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, false, err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.isReady {
		return Summary{}, false, ErrStoreClosed
	}

	var s Summary
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKeyPrefix + runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, fmt.Errorf("ошибка загрузки из BadgerDB: %w", err)
	}
	return s, true, nil
}

// Best перебирает все итоги по префиксу и сортирует их по Score
func (bs *BadgerStore) Best(ctx context.Context, limit int) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.isReady {
		return nil, ErrStoreClosed
	}

	var all []Summary
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var s Summary
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("итог %s: %w", strings.TrimPrefix(string(item.Key()), runKeyPrefix), err)
				}
				all = append(all, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения BadgerDB: %w", err)
	}

	sortByScore(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	if all == nil {
		all = []Summary{}
	}
	return all, nil
}

// Close закрывает хранилище
func (bs *BadgerStore) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if !bs.isReady {
		return nil
	}
	bs.isReady = false
	return bs.db.Close()
}
