package logging

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Component задаёт подсистему движка волн со своим логгером и файлом логов
type Component string

const (
	Director Component = "director"
	Spawner  Component = "spawner"
	API      Component = "api"
	RunStats Component = "runstats"
	Events   Component = "events"
	Sim      Component = "sim"
)

// Components перечисляет подсистемы в порядке сборки сервера
var Components = []Component{Director, Spawner, RunStats, Events, Sim, API}

// LoggerManager хранит логгеры подсистем и общие для них уровни.
// Уровни, заданные через SetLevels, применяются и к логгерам, открытым позже.
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[Component]*Logger
	levels  *[2]LogLevel
}

// NewLoggerManager создаёт пустой менеджер
func NewLoggerManager() *LoggerManager {
	return &LoggerManager{loggers: make(map[Component]*Logger)}
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает менеджер логгеров процесса
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() { globalManager = NewLoggerManager() })
	return globalManager
}

// Open возвращает логгер подсистемы, создавая его при первом обращении
func (lm *LoggerManager) Open(c Component) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[c]; ok {
		return l, nil
	}
	l, err := NewLogger(string(c))
	if err != nil {
		return nil, fmt.Errorf("logger %s: %w", c, err)
	}
	if lm.levels != nil {
		l.SetLevels(lm.levels[0], lm.levels[1])
	}
	lm.loggers[c] = l
	return l, nil
}

// Get работает как Open, но при ошибке файла отдаёт консольный логгер
func (lm *LoggerManager) Get(c Component) *Logger {
	l, err := lm.Open(c)
	if err == nil {
		return l
	}
	Warn("Логгер %s только в консоль: %v", c, err)

	fallback := &Logger{
		component:       string(c),
		consoleLogger:   defaultLogger.consoleLogger,
		minConsoleLevel: INFO,
		minFileLevel:    ERROR,
	}
	lm.mu.Lock()
	if lm.levels != nil {
		fallback.SetLevels(lm.levels[0], lm.levels[1])
	}
	lm.mu.Unlock()
	return fallback
}

// SetLevels меняет уровни всех открытых логгеров и запоминает их для новых
func (lm *LoggerManager) SetLevels(consoleLevel, fileLevel LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.levels = &[2]LogLevel{consoleLevel, fileLevel}
	for _, l := range lm.loggers {
		l.SetLevels(consoleLevel, fileLevel)
	}
}

// Opened возвращает отсортированный список открытых подсистем
func (lm *LoggerManager) Opened() []Component {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	out := make([]Component, 0, len(lm.loggers))
	for c := range lm.loggers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for c, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logger %s: %w", c, err))
		}
	}
	lm.loggers = make(map[Component]*Logger)
	return errors.Join(errs...)
}

// For возвращает логгер подсистемы из менеджера процесса
func For(c Component) *Logger {
	return GetLoggerManager().Get(c)
}

// SetComponentLevels задаёт уровни всем подсистемам процесса
func SetComponentLevels(consoleLevel, fileLevel LogLevel) {
	GetLoggerManager().SetLevels(consoleLevel, fileLevel)
}
