// Package spawner размещает противников вокруг игрока и следит за
// ограничением числа живых акторов.
package spawner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/vec"
	"github.com/annel0/horde-waves/internal/wave"
)

// ErrSpawnRefused возвращается, когда достигнут предел живых акторов
var ErrSpawnRefused = errors.New("spawn refused: alive actor cap reached")

// ErrNoFactory возвращается, если фабрика акторов не задана
var ErrNoFactory = errors.New("spawner has no actor factory")

// Config настраивает размещение и выбор шаблонов
type Config struct {
	MinSpawnRadius  float64    `yaml:"min_spawn_radius" json:"min_spawn_radius"`
	MaxSpawnRadius  float64    `yaml:"max_spawn_radius" json:"max_spawn_radius"`
	VerticalOffset  float64    `yaml:"vertical_offset" json:"vertical_offset"`
	MaxAliveActors  int        `yaml:"max_alive_actors" json:"max_alive_actors"`
	FastChance      float64    `yaml:"fast_chance" json:"fast_chance"`
	TankChance      float64    `yaml:"tank_chance" json:"tank_chance"`
	FastOverride    string     `yaml:"fast_override" json:"fast_override"`
	RangedOverride  string     `yaml:"ranged_override" json:"ranged_override"`
	BossTemplate    string     `yaml:"boss_template" json:"boss_template"`
	BossSpawnPoints []vec.Vec3 `yaml:"boss_spawn_points" json:"boss_spawn_points"`
}

// DefaultConfig возвращает настройки спавнера по умолчанию
func DefaultConfig() Config {
	return Config{
		MinSpawnRadius: 8,
		MaxSpawnRadius: 14,
		VerticalOffset: 0.5,
		MaxAliveActors: 50,
		FastChance:     0.2,
		TankChance:     0.1,
		FastOverride:   "fast",
		RangedOverride: "ranged",
		BossTemplate:   "boss",
	}
}

// Transform содержит позицию и поворот нового актора
type Transform struct {
	Position vec.Vec3     `json:"position"`
	Rotation vec.Rotation `json:"rotation"`
}

// Spawner вычисляет точки появления и создаёт акторов через фабрику.
// Безопасен для конкурентного использования.
type Spawner struct {
	cfg     Config
	factory enemy.Factory
	logger  *logging.Logger

	fastVariant   enemy.Variant
	rangedVariant enemy.Variant
	bossVariant   enemy.Variant

	mu    sync.Mutex
	rng   *rand.Rand
	alive int
}

// NewSpawner создаёт спавнер. Неизвестные имена шаблонов в конфигурации
// считаются ошибкой конфигурации.
func NewSpawner(cfg Config, factory enemy.Factory, rng *rand.Rand, logger *logging.Logger) (*Spawner, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if logger == nil {
		logger = logging.For(logging.Spawner)
	}
	if cfg.MaxSpawnRadius < cfg.MinSpawnRadius {
		cfg.MinSpawnRadius, cfg.MaxSpawnRadius = cfg.MaxSpawnRadius, cfg.MinSpawnRadius
	}

	s := &Spawner{cfg: cfg, factory: factory, rng: rng, logger: logger}

	var err error
	if s.fastVariant, err = parseVariantOr(cfg.FastOverride, enemy.Fast); err != nil {
		return nil, fmt.Errorf("fast_override: %w", err)
	}
	if s.rangedVariant, err = parseVariantOr(cfg.RangedOverride, enemy.Ranged); err != nil {
		return nil, fmt.Errorf("ranged_override: %w", err)
	}
	if s.bossVariant, err = parseVariantOr(cfg.BossTemplate, enemy.BossVariant); err != nil {
		return nil, fmt.Errorf("boss_template: %w", err)
	}
	return s, nil
}

func parseVariantOr(name string, fallback enemy.Variant) (enemy.Variant, error) {
	if name == "" {
		return fallback, nil
	}
	return enemy.ParseVariant(name)
}

// HasFactory сообщает, задана ли фабрика акторов
func (s *Spawner) HasFactory() bool {
	return s.factory != nil
}

// ComputeSpawnTransform выбирает случайную точку на кольце вокруг ref
// и разворачивает актора лицом к ref.
func (s *Spawner) ComputeSpawnTransform(ref vec.Vec3) Transform {
	s.mu.Lock()
	angle := s.rng.Float64() * 2 * math.Pi
	radius := s.cfg.MinSpawnRadius + s.rng.Float64()*(s.cfg.MaxSpawnRadius-s.cfg.MinSpawnRadius)
	s.mu.Unlock()

	pos := ref.Add(vec.FromPolar(angle, radius).ToVec3(s.cfg.VerticalOffset))
	return Transform{Position: pos, Rotation: vec.LookRotation(pos, ref)}
}

// SelectVariant выбирает шаблон актора для типа волны
func (s *Spawner) SelectVariant(t wave.Type) enemy.Variant {
	switch t {
	case wave.FastVariant:
		return s.fastVariant
	case wave.RangedVariant:
		return s.rangedVariant
	case wave.Boss:
		return s.bossVariant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t == wave.PanicMix {
		mix := []enemy.Variant{enemy.Basic, enemy.Fast, enemy.Tank, enemy.Ranged}
		return mix[s.rng.Intn(len(mix))]
	}

	roll := s.rng.Float64()
	switch {
	case roll < s.cfg.FastChance:
		return enemy.Fast
	case roll < s.cfg.FastChance+s.cfg.TankChance:
		return enemy.Tank
	default:
		return enemy.Basic
	}
}

// TrySpawn создаёт актора для волны типа t вокруг ref.
// При достижении предела возвращает ErrSpawnRefused и ничего не создаёт.
func (s *Spawner) TrySpawn(ctx context.Context, t wave.Type, ref vec.Vec3) (enemy.Handle, error) {
	if s.factory == nil {
		return nil, ErrNoFactory
	}

	s.mu.Lock()
	if s.cfg.MaxAliveActors > 0 && s.alive >= s.cfg.MaxAliveActors {
		s.mu.Unlock()
		return nil, ErrSpawnRefused
	}
	// слот резервируется до вызова фабрики, чтобы параллельные запросы не превысили предел
	s.alive++
	s.mu.Unlock()

	variant := s.SelectVariant(t)
	tr := s.transformFor(t, ref)

	h, err := s.factory.Spawn(ctx, variant, tr.Position, tr.Rotation)
	if err != nil {
		s.Release()
		return nil, fmt.Errorf("spawn %s: %w", variant, err)
	}

	s.logger.Trace("Создан актор %d (%s) в (%.1f, %.1f, %.1f)", h.ID(), variant, tr.Position.X, tr.Position.Y, tr.Position.Z)
	return h, nil
}

func (s *Spawner) transformFor(t wave.Type, ref vec.Vec3) Transform {
	if t == wave.Boss && len(s.cfg.BossSpawnPoints) > 0 {
		s.mu.Lock()
		p := s.cfg.BossSpawnPoints[s.rng.Intn(len(s.cfg.BossSpawnPoints))]
		s.mu.Unlock()
		return Transform{Position: p, Rotation: vec.LookRotation(p, ref)}
	}
	return s.ComputeSpawnTransform(ref)
}

// Release освобождает слот живого актора. Вызывается режиссёром при гибели
// или принудительной очистке; счётчик не опускается ниже нуля.
func (s *Spawner) Release() {
	s.mu.Lock()
	if s.alive > 0 {
		s.alive--
	}
	s.mu.Unlock()
}

// Alive возвращает число занятых слотов
func (s *Spawner) Alive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Config возвращает конфигурацию спавнера
func (s *Spawner) Config() Config {
	return s.cfg
}
