package runstats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrStoreClosed возвращается при обращении к закрытому хранилищу
var ErrStoreClosed = errors.New("run store is closed")

// Store сохраняет итоги забегов и отдаёт таблицу лучших результатов
type Store interface {
	// Save сохраняет или перезаписывает итог забега
	Save(ctx context.Context, s Summary) error

	// Load возвращает итог по идентификатору; false, если забег не найден
	Load(ctx context.Context, runID string) (Summary, bool, error)

	// Best возвращает до limit лучших забегов по убыванию Score
	Best(ctx context.Context, limit int) ([]Summary, error)

	Close() error
}

// MemoryStore реализует Store в памяти.
// Используется по умолчанию и в тестах; данные теряются при перезапуске.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]Summary
	closed bool
}

// NewMemoryStore создаёт хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Summary)}
}

// Save сохраняет итог в памяти
func (m *MemoryStore) Save(ctx context.Context, s Summary) error {
	if s.RunID == "" {
		return fmt.Errorf("пустой идентификатор забега")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.runs[s.RunID] = s
	return nil
}

// Load загружает итог из памяти
func (m *MemoryStore) Load(ctx context.Context, runID string) (Summary, bool, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Summary{}, false, ErrStoreClosed
	}
	s, ok := m.runs[runID]
	return s, ok, nil
}

// Best возвращает лучшие забеги
func (m *MemoryStore) Best(ctx context.Context, limit int) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	all := make([]Summary, 0, len(m.runs))
	for _, s := range m.runs {
		all = append(all, s)
	}
	m.mu.RUnlock()

	sortByScore(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Close закрывает хранилище
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func sortByScore(runs []Summary) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].Score() != runs[j].Score() {
			return runs[i].Score() > runs[j].Score()
		}
		return runs[i].RunID < runs[j].RunID
	})
}
