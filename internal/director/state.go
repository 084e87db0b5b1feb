package director

import (
	"time"

	"github.com/annel0/horde-waves/internal/wave"
)

// State представляет фазу конечного автомата режиссёра
type State int

const (
	Idle State = iota
	Preparing
	Break
	Spawning
	Active
	Completing
	Stopped
)

var stateNames = [...]string{
	Idle:       "idle",
	Preparing:  "preparing",
	Break:      "break",
	Spawning:   "spawning",
	Active:     "active",
	Completing: "completing",
	Stopped:    "stopped",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText реализует encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RunState представляет снимок состояния текущей волны
type RunState struct {
	ActiveWave *wave.Definition `json:"active_wave,omitempty"`
	WaveNumber int              `json:"wave_number"`
	AliveCount int              `json:"alive_count"`
	WaveActive bool             `json:"wave_active"`
	Epoch      uint64           `json:"epoch"`
	State      State            `json:"state"`
	Paused     []PauseSource    `json:"paused,omitempty"`
}

// Config задаёт тайминги и режимы режиссёра
type Config struct {
	TimeBetweenWaves time.Duration `yaml:"time_between_waves" json:"time_between_waves"`
	BreakDuration    time.Duration `yaml:"break_duration" json:"break_duration"`
	BreakHealAmount  int           `yaml:"break_heal_amount" json:"break_heal_amount"`

	// StrictInvariants превращает нарушение инварианта в панику (тесты, отладка)
	StrictInvariants bool `yaml:"strict_invariants" json:"strict_invariants"`
}

// DefaultConfig возвращает тайминги по умолчанию
func DefaultConfig() Config {
	return Config{
		TimeBetweenWaves: 3 * time.Second,
		BreakDuration:    4 * time.Second,
		BreakHealAmount:  1,
	}
}
