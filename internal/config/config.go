// Package config загружает YAML-конфигурацию сервера волн.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/horde-waves/internal/director"
	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/eventbus"
	"github.com/annel0/horde-waves/internal/observability"
	"github.com/annel0/horde-waves/internal/player"
	"github.com/annel0/horde-waves/internal/runstats"
	"github.com/annel0/horde-waves/internal/scaling"
	"github.com/annel0/horde-waves/internal/sim"
	"github.com/annel0/horde-waves/internal/spawner"
	"github.com/annel0/horde-waves/internal/wave"
	"gopkg.in/yaml.v3"
)

// ErrInvalid возвращается Validate при некорректной конфигурации
var ErrInvalid = errors.New("invalid config")

// EnvConfigPath задаёт переменную окружения с путём к конфигу
const EnvConfigPath = "HORDE_CONFIG"

// Config корневая структура конфигурации приложения.
type Config struct {
	Seed      int64                `yaml:"seed"` // 0 — сид от текущего времени
	Waves     wave.GeneratorConfig `yaml:"waves"`
	Cadence   wave.Cadence         `yaml:"cadence"`
	Director  director.Config      `yaml:"director"`
	Scaling   scaling.Config       `yaml:"scaling"`
	Spawner   spawner.Config       `yaml:"spawner"`
	Enemies   enemy.Templates      `yaml:"enemies"`
	Player    player.Config        `yaml:"player"`
	Server    ServerConfig         `yaml:"server"`
	EventBus  EventBusConfig       `yaml:"eventbus"`
	Stats     StatsConfig          `yaml:"stats"`
	Telemetry observability.Config `yaml:"telemetry"`
	Sim       sim.Config           `yaml:"sim"`
	Logging   LoggingConfig        `yaml:"logging"`
}

// ServerConfig содержит параметры REST API
type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
	// AdminSecret — HMAC-секрет для JWT администратора; пусто — управляющие
	// эндпоинты открыты
	AdminSecret string        `yaml:"admin_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	AutoStart   bool          `yaml:"auto_start"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "HORDE_REST_PORT", 8088)
}

// EventBusConfig выбирает реализацию шины событий
type EventBusConfig struct {
	Backend    string                   `yaml:"backend"` // memory | jetstream
	BufferSize int                      `yaml:"buffer_size"`
	QueueSize  int                      `yaml:"queue_size"`
	JetStream  eventbus.JetStreamConfig `yaml:"jetstream"`
}

// StatsConfig выбирает хранилище итогов забегов
type StatsConfig struct {
	Backend         string               `yaml:"backend"` // memory | redis | badger
	Redis           runstats.RedisConfig `yaml:"redis"`
	BadgerPath      string               `yaml:"badger_path"`
	LeaderboardSize int                  `yaml:"leaderboard_size"`
}

// LoggingConfig задаёт уровни и каталог логов
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"` // пусто — только консоль
}

// Названия поддерживаемых бэкендов
const (
	BackendMemory    = "memory"
	BackendJetStream = "jetstream"
	BackendRedis     = "redis"
	BackendBadger    = "badger"
)

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Waves:    wave.DefaultGeneratorConfig(),
		Cadence:  wave.DefaultCadence(),
		Director: director.DefaultConfig(),
		Scaling:  scaling.DefaultConfig(),
		Spawner:  spawner.DefaultConfig(),
		Enemies:  enemy.DefaultTemplates(),
		Player:   player.DefaultConfig(),
		Server: ServerConfig{
			TokenTTL:  time.Hour,
			AutoStart: true,
		},
		EventBus: EventBusConfig{
			Backend:    BackendMemory,
			BufferSize: 1024,
			QueueSize:  256,
			JetStream:  eventbus.DefaultJetStreamConfig(),
		},
		Stats: StatsConfig{
			Backend:         BackendMemory,
			Redis:           runstats.DefaultRedisConfig(),
			LeaderboardSize: 10,
		},
		Telemetry: observability.DefaultConfig(),
		Sim:       sim.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берёт путь из ENV HORDE_CONFIG; если и он пуст,
// возвращает Default(). Результат проверяется Validate.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse разбирает YAML в cfg; незаданные поля сохраняют текущие значения.
// Шаблоны противников из YAML дополняют шаблоны по умолчанию.
func Parse(data []byte, cfg *Config) error {
	defaults := cfg.Enemies
	cfg.Enemies = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg.Enemies = defaults
		return err
	}
	merged := make(enemy.Templates, len(defaults)+len(cfg.Enemies))
	for v, s := range defaults {
		merged[v] = s
	}
	for v, s := range cfg.Enemies {
		merged[v] = s
	}
	cfg.Enemies = merged
	return nil
}

// Marshal сериализует конфигурацию в YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	w := c.Waves
	if w.StartingEnemyCount < 1 {
		fail("waves.starting_enemy_count must be >= 1, got %d", w.StartingEnemyCount)
	}
	if w.MinSpawnInterval < 0 || w.StartingSpawnInterval < w.MinSpawnInterval {
		fail("waves: need 0 <= min_spawn_interval (%s) <= starting_spawn_interval (%s)", w.MinSpawnInterval, w.StartingSpawnInterval)
	}
	if w.EnemyCountGrowth < 1 {
		fail("waves.enemy_count_growth must be >= 1, got %.2f", w.EnemyCountGrowth)
	}
	if w.SpawnIntervalDecay <= 0 || w.SpawnIntervalDecay > 1 {
		fail("waves.spawn_interval_decay must be in (0, 1], got %.2f", w.SpawnIntervalDecay)
	}

	cad := c.Cadence
	for name, v := range map[string]int{
		"break_every": cad.BreakEvery, "miniboss_every": cad.MiniBossEvery, "boss_every": cad.BossEvery,
		"power_every": cad.PowerEvery, "fast_every": cad.FastEvery, "ranged_every": cad.RangedEvery,
		"panic_every": cad.PanicEvery,
	} {
		if v < 0 {
			fail("cadence.%s must be >= 0, got %d", name, v)
		}
	}

	d := c.Director
	if d.TimeBetweenWaves < 0 || d.BreakDuration < 0 || d.BreakHealAmount < 0 {
		fail("director timings and heal amount must be non-negative")
	}

	s := c.Spawner
	if s.MinSpawnRadius < 0 || s.MaxSpawnRadius < s.MinSpawnRadius {
		fail("spawner: need 0 <= min_spawn_radius (%.1f) <= max_spawn_radius (%.1f)", s.MinSpawnRadius, s.MaxSpawnRadius)
	}
	if s.MaxAliveActors < 1 {
		fail("spawner.max_alive_actors must be >= 1, got %d", s.MaxAliveActors)
	}
	if s.FastChance < 0 || s.TankChance < 0 || s.FastChance+s.TankChance > 1 {
		fail("spawner: fast_chance + tank_chance must be within [0, 1]")
	}
	for _, name := range []string{s.FastOverride, s.RangedOverride, s.BossTemplate} {
		v, err := enemy.ParseVariant(name)
		if err != nil {
			fail("spawner: %v", err)
			continue
		}
		if _, ok := c.Enemies[v]; !ok {
			fail("spawner: no enemy template for %q", name)
		}
	}
	for v, st := range c.Enemies {
		if st.MaxHealth < 1 {
			fail("enemies.%s.max_health must be >= 1", v)
		}
	}

	if c.Player.MaxHealth < 1 {
		fail("player.max_health must be >= 1, got %d", c.Player.MaxHealth)
	}

	switch c.EventBus.Backend {
	case BackendMemory, BackendJetStream:
	default:
		fail("eventbus.backend %q is not one of memory, jetstream", c.EventBus.Backend)
	}
	switch c.Stats.Backend {
	case BackendMemory, BackendRedis, BackendBadger:
	default:
		fail("stats.backend %q is not one of memory, redis, badger", c.Stats.Backend)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		fail("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.Sim.AttacksPerSecond < 0 || c.Sim.ContactChance < 0 || c.Sim.LevelUpPause < 0 {
		fail("sim rates and level_up_pause must be non-negative")
	}

	return errors.Join(errs...)
}
