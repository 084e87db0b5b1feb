package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/logging"
)

// Config настраивает безголовую стычку
type Config struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Tick    time.Duration `yaml:"tick" json:"tick"`
	// AttacksPerSecond задаёт базовую частоту ударов игрока при давлении 1
	AttacksPerSecond float64 `yaml:"attacks_per_second" json:"attacks_per_second"`
	PlayerDamage     int     `yaml:"player_damage" json:"player_damage"`
	// ContactChance задаёт вероятность удара одного противника по игроку за секунду
	ContactChance  float64 `yaml:"contact_chance" json:"contact_chance"`
	NoiseAmplitude float64 `yaml:"noise_amplitude" json:"noise_amplitude"`
	NoiseFrequency float64 `yaml:"noise_frequency" json:"noise_frequency"`
	// LevelUpPause — сколько длится пауза LevelUp, пока «выбирается» улучшение
	LevelUpPause time.Duration `yaml:"level_up_pause" json:"level_up_pause"`
}

// DefaultConfig возвращает параметры стычки по умолчанию
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Tick:             250 * time.Millisecond,
		AttacksPerSecond: 2.5,
		PlayerDamage:     6,
		ContactChance:    0.05,
		NoiseAmplitude:   0.6,
		NoiseFrequency:   0.15,
		LevelUpPause:     time.Second,
	}
}

// Arena отдаёт живых противников, по которым бьёт стычка
type Arena interface {
	Alive() []*enemy.Actor
}

// Target представляет игрока, получающего урон от противников
type Target interface {
	TakeDamage(amount int) bool
	IsDead() bool
}

// DamageRecorder получает нанесённый игроком урон
type DamageRecorder interface {
	RegisterDamageDealt(amount int)
}

// Skirmish периодически наносит урон живым противникам и игроку.
// Step можно вызывать напрямую (тесты), Run крутит его по тикеру.
type Skirmish struct {
	cfg      Config
	arena    Arena
	target   Target
	recorder DamageRecorder
	pressure *Pressure
	logger   *logging.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	elapsed time.Duration
	budget  float64
}

// NewSkirmish создаёт стычку. recorder может быть nil.
func NewSkirmish(cfg Config, arena Arena, target Target, recorder DamageRecorder, rng *rand.Rand, logger *logging.Logger) *Skirmish {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultConfig().Tick
	}
	if cfg.PlayerDamage <= 0 {
		cfg.PlayerDamage = DefaultConfig().PlayerDamage
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Skirmish{
		cfg:      cfg,
		arena:    arena,
		target:   target,
		recorder: recorder,
		pressure: NewPressure(rng.Int63(), cfg.NoiseAmplitude, cfg.NoiseFrequency),
		logger:   logger,
		rng:      rng,
	}
}

// Run выполняет Step каждый тик до отмены контекста
func (s *Skirmish) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.logger.Info("⚔️ Стычка запущена (тик %s, %.1f ударов/с)", s.cfg.Tick, s.cfg.AttacksPerSecond)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Стычка остановлена")
			return
		case <-ticker.C:
			s.Step(s.cfg.Tick)
		}
	}
}

// StepResult содержит итог одного шага стычки
type StepResult struct {
	Pressure    float64
	Attacks     int
	Kills       int
	DamageDealt int
	ContactHits int
}

// Step продвигает стычку на dt
func (s *Skirmish) Step(dt time.Duration) StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.elapsed += dt
	res := StepResult{Pressure: s.pressure.At(s.elapsed.Seconds())}

	if s.target != nil && s.target.IsDead() {
		// Игрок погиб: противники стоят, урон не наносится
		s.budget = 0
		return res
	}

	alive := s.arena.Alive()
	if len(alive) == 0 {
		s.budget = 0
		return res
	}

	// Атаки игрока: дробный остаток переносится на следующий шаг
	s.budget += s.cfg.AttacksPerSecond * dt.Seconds() * res.Pressure
	for s.budget >= 1 {
		s.budget--
		victim := alive[s.rng.Intn(len(alive))]
		if victim.IsDead() {
			continue
		}
		dealt := min(s.cfg.PlayerDamage, victim.Health())
		res.Attacks++
		res.DamageDealt += dealt
		if victim.TakeDamage(s.cfg.PlayerDamage) {
			res.Kills++
		}
	}
	if s.recorder != nil && res.DamageDealt > 0 {
		s.recorder.RegisterDamageDealt(res.DamageDealt)
	}

	if s.target == nil || s.cfg.ContactChance <= 0 {
		return res
	}
	chance := s.cfg.ContactChance * dt.Seconds() * res.Pressure
	for _, a := range alive {
		if a.IsDead() || s.rng.Float64() >= chance {
			continue
		}
		res.ContactHits++
		if s.target.TakeDamage(a.Stats().Damage) {
			s.logger.Warn("💀 Игрок погиб от %s #%d", a.Variant(), a.ID())
			break
		}
	}
	return res
}

// Elapsed возвращает время, прошедшее в стычке
func (s *Skirmish) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}
