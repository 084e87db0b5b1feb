// Package runstats ведёт статистику забега: зачищенные волны, убитые
// противники, нанесённый и полученный урон, длительность.
package runstats

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Summary представляет итог забега, который сохраняется в хранилище
type Summary struct {
	RunID           string        `json:"run_id"`
	WavesCleared    int           `json:"waves_cleared"`
	EnemiesDefeated int           `json:"enemies_defeated"`
	DamageDealt     int           `json:"damage_dealt"`
	DamageTaken     int           `json:"damage_taken"`
	HighestWave     int           `json:"highest_wave"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         time.Time     `json:"ended_at,omitempty"`
	Duration        time.Duration `json:"duration"`
	Ended           bool          `json:"ended"`
}

// Score — ключ сортировки таблицы лучших забегов
func (s Summary) Score() float64 {
	// волны важнее убийств; убийства различают забеги с равным числом волн
	return float64(s.WavesCleared)*1e6 + float64(s.EnemiesDefeated)
}

// Recorder потокобезопасно считает статистику текущего забега
type Recorder struct {
	mu sync.RWMutex

	runID           string
	wavesCleared    int
	enemiesDefeated int
	damageDealt     int
	damageTaken     int
	highestWave     int
	startedAt       time.Time
	endedAt         time.Time
	ended           bool

	listeners []Listener
	now       func() time.Time
}

// Listener получает изменения статистики (например, метрики Prometheus)
type Listener interface {
	WaveCleared()
	EnemyDefeated()
	DamageTaken(amount int)
}

// NewRecorder создаёт счётчик и начинает новый забег
func NewRecorder() *Recorder {
	r := &Recorder{now: time.Now}
	r.Reset()
	return r
}

// AddListener подписывает слушателя на изменения
func (r *Recorder) AddListener(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Reset начинает новый забег с новым идентификатором
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runID = uuid.NewString()
	r.wavesCleared = 0
	r.enemiesDefeated = 0
	r.damageDealt = 0
	r.damageTaken = 0
	r.highestWave = 0
	r.startedAt = r.now()
	r.endedAt = time.Time{}
	r.ended = false
}

// EndRun фиксирует время окончания; повторные вызовы ничего не меняют
func (r *Recorder) EndRun() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ended {
		return
	}
	r.ended = true
	r.endedAt = r.now()
}

// RegisterWaveCleared засчитывает зачищенную волну
func (r *Recorder) RegisterWaveCleared() {
	r.mu.Lock()
	r.wavesCleared++
	listeners := r.listeners
	r.mu.Unlock()

	for _, l := range listeners {
		l.WaveCleared()
	}
}

// RegisterEnemyDefeated засчитывает убитого противника
func (r *Recorder) RegisterEnemyDefeated() {
	r.mu.Lock()
	r.enemiesDefeated++
	listeners := r.listeners
	r.mu.Unlock()

	for _, l := range listeners {
		l.EnemyDefeated()
	}
}

// RegisterDamageDealt учитывает урон игрока; неположительные значения игнорируются
func (r *Recorder) RegisterDamageDealt(amount int) {
	if amount <= 0 {
		return
	}
	r.mu.Lock()
	r.damageDealt += amount
	r.mu.Unlock()
}

// RegisterDamageTaken учитывает полученный урон; неположительные значения игнорируются
func (r *Recorder) RegisterDamageTaken(amount int) {
	if amount <= 0 {
		return
	}
	r.mu.Lock()
	r.damageTaken += amount
	listeners := r.listeners
	r.mu.Unlock()

	for _, l := range listeners {
		l.DamageTaken(amount)
	}
}

// ObserveWave запоминает наибольший достигнутый номер волны
func (r *Recorder) ObserveWave(waveNumber int) {
	r.mu.Lock()
	if waveNumber > r.highestWave {
		r.highestWave = waveNumber
	}
	r.mu.Unlock()
}

// Duration возвращает длительность забега; до EndRun считается от текущего момента
func (r *Recorder) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.durationLocked()
}

func (r *Recorder) durationLocked() time.Duration {
	if r.ended {
		return r.endedAt.Sub(r.startedAt)
	}
	return r.now().Sub(r.startedAt)
}

// Snapshot возвращает текущий итог забега
func (r *Recorder) Snapshot() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Summary{
		RunID:           r.runID,
		WavesCleared:    r.wavesCleared,
		EnemiesDefeated: r.enemiesDefeated,
		DamageDealt:     r.damageDealt,
		DamageTaken:     r.damageTaken,
		HighestWave:     r.highestWave,
		StartedAt:       r.startedAt,
		EndedAt:         r.endedAt,
		Duration:        r.durationLocked(),
		Ended:           r.ended,
	}
}
