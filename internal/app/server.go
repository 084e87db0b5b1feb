// Package app собирает сервер волн из компонентов: игрок, противники,
// режиссёр, статистика забега, шина событий, WebSocket-хаб, стычка и REST API.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/horde-waves/internal/api"
	"github.com/annel0/horde-waves/internal/config"
	"github.com/annel0/horde-waves/internal/director"
	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/eventbus"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/player"
	"github.com/annel0/horde-waves/internal/runstats"
	"github.com/annel0/horde-waves/internal/scaling"
	"github.com/annel0/horde-waves/internal/sim"
	"github.com/annel0/horde-waves/internal/spawner"
	"github.com/annel0/horde-waves/internal/wave"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// EventSource задаёт имя источника событий сервера в шине
const EventSource = "horde-server"

const (
	saveTimeout         = 5 * time.Second
	busMetricsInterval  = 5 * time.Second
	defaultLevelUpPause = time.Second
)

// Server представляет собранный сервер волн
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	Registry *prometheus.Registry
	Player   *player.Player
	Enemies  *enemy.Manager
	Director *director.Director
	Recorder *runstats.Recorder
	Store    runstats.Store
	Bus      eventbus.EventBus
	Hub      *api.WaveHub
	API      *api.RestServer

	publisher *eventbus.Publisher
	exporter  *eventbus.MetricsExporter
	listener  eventbus.Subscription
	skirmish  *sim.Skirmish

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	levelMu    sync.Mutex
	levelTimer *time.Timer

	runOnce  sync.Once
	stopOnce sync.Once
}

// New собирает сервер по конфигурации. Сеть не открывается до Start.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info("🎲 Сид забега: %d", seed)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// === Игрок и противники ===
	s.Player = player.NewPlayer(cfg.Player)
	s.Enemies = enemy.NewManager(cfg.Enemies)

	// === Статистика забега ===
	s.Recorder = runstats.NewRecorder()
	collector, err := runstats.NewCollector(s.Registry)
	if err != nil {
		return nil, fmt.Errorf("runstats collector: %w", err)
	}
	s.Recorder.AddListener(collector)
	s.Player.SetDamageRecorder(s.Recorder)

	store, err := openStore(ctx, cfg.Stats)
	if err != nil {
		return nil, err
	}
	s.Store = store

	// === Шина событий ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	s.Bus = bus

	if s.exporter, err = eventbus.NewMetricsExporter(bus, s.Registry, busMetricsInterval); err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("eventbus metrics: %w", err)
	}
	if s.listener, err = eventbus.StartLoggingListener(s.ctx, bus, logging.For(logging.Events)); err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("eventbus listener: %w", err)
	}
	s.publisher = eventbus.NewPublisher(bus, EventSource, cfg.EventBus.QueueSize, logging.For(logging.Events))
	s.publisher.SetRunID(s.Recorder.Snapshot().RunID)

	s.Hub = api.NewWaveHub(logging.For(logging.API))

	// === Волны ===
	classifier := wave.NewClassifier(cfg.Cadence, rand.New(rand.NewSource(seed)))
	generator := wave.NewGenerator(cfg.Waves, classifier, rand.New(rand.NewSource(seed+1)))
	spawn, err := spawner.NewSpawner(cfg.Spawner, s.Enemies, rand.New(rand.NewSource(seed+2)), nil)
	if err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("spawner: %w", err)
	}
	metrics, err := director.NewMetrics(s.Registry)
	if err != nil {
		s.closeBackends()
		return nil, fmt.Errorf("director metrics: %w", err)
	}

	s.Director = director.New(cfg.Director, director.Deps{
		Generator: generator,
		Scaler:    scaling.NewScaler(cfg.Scaling),
		Spawner:   spawn,
		Player:    s.Player,
		Health:    s.Player,
		Stats:     s.Recorder,
		XP:        s.Player,
		Presenters: []director.Presenter{
			director.PresenterFunc(func(_ wave.Definition, n int) { s.Recorder.ObserveWave(n) }),
			s.publisher,
			s.Hub,
		},
		Metrics: metrics,
	})

	s.Player.OnLevelUp(s.onLevelUp)
	s.Player.OnDied(s.onPlayerDied)

	if cfg.Sim.Enabled {
		s.skirmish = sim.NewSkirmish(cfg.Sim, s.Enemies, s.Player, s.Recorder,
			rand.New(rand.NewSource(seed+3)), logging.For(logging.Sim))
	}

	// === REST API ===
	gin.SetMode(gin.ReleaseMode)
	s.API, err = api.NewRestServer(api.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		Waves:       s.Director,
		Player:      s.Player,
		Stats:       s.Recorder,
		Store:       s.Store,
		Hub:         s.Hub,
		AdminSecret: cfg.Server.AdminSecret,
		Registry:    s.Registry,
		Logger:      logging.For(logging.API),
	})
	if err != nil {
		s.closeBackends()
		return nil, err
	}

	return s, nil
}

func openStore(ctx context.Context, cfg config.StatsConfig) (runstats.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		st, err := runstats.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return st, nil
	case config.BackendBadger:
		st, err := runstats.NewBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("badger store: %w", err)
		}
		return st, nil
	default:
		return runstats.NewMemoryStore(), nil
	}
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.Backend == config.BackendJetStream {
		bus, err := eventbus.NewJetStreamBus(cfg.JetStream)
		if err != nil {
			return nil, fmt.Errorf("jetstream bus: %w", err)
		}
		return bus, nil
	}
	return eventbus.NewMemoryBus(cfg.BufferSize), nil
}

// Start открывает REST API, запускает стычку и (если включено) режиссёра
func (s *Server) Start() error {
	s.exporter.Start()

	if err := s.API.Start(); err != nil {
		return err
	}

	if s.skirmish != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.skirmish.Run(s.ctx)
		}()
	}

	if s.cfg.Server.AutoStart {
		if err := s.Director.Start(); err != nil {
			return fmt.Errorf("director start: %w", err)
		}
	} else {
		s.logger.Info("⏳ Режиссёр ждёт POST /api/wave/start")
	}
	return nil
}

// onLevelUp ставит режиссёра на паузу LevelUp на время выбора улучшения
func (s *Server) onLevelUp(level int) {
	pause := s.cfg.Sim.LevelUpPause
	if pause <= 0 {
		pause = defaultLevelUpPause
	}
	s.logger.Info("⭐ Игрок достиг уровня %d", level)

	s.Director.Pause(director.PauseLevelUp)

	s.levelMu.Lock()
	defer s.levelMu.Unlock()
	if s.levelTimer != nil {
		s.levelTimer.Stop()
	}
	s.levelTimer = time.AfterFunc(pause, func() {
		s.Director.Resume(director.PauseLevelUp)
	})
}

// onPlayerDied завершает забег: пауза GameOver, итог в хранилище и в шину
func (s *Server) onPlayerDied() {
	s.Director.Pause(director.PauseGameOver)
	s.logger.Warn("☠️ Игрок погиб на волне %d", s.Director.CurrentWaveNumber())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.finishRun()
	}()
}

// finishRun фиксирует итог забега ровно один раз
func (s *Server) finishRun() {
	s.runOnce.Do(func() {
		s.Recorder.EndRun()
		summary := s.Recorder.Snapshot()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.Store.Save(ctx, summary); err != nil {
			s.logger.Error("❌ Не удалось сохранить итог забега %s: %v", summary.RunID, err)
		} else {
			s.logger.Info("💾 Забег %s сохранён: волн %d, убито %d, %s",
				summary.RunID, summary.WavesCleared, summary.EnemiesDefeated, summary.Duration.Round(time.Second))
		}

		payload := eventbus.RunEndedPayload{
			RunID:           summary.RunID,
			WavesCleared:    summary.WavesCleared,
			EnemiesDefeated: summary.EnemiesDefeated,
			HighestWave:     summary.HighestWave,
			DurationSeconds: summary.Duration.Seconds(),
		}
		s.publisher.RunEnded(payload)
		s.Hub.Broadcast(eventbus.EventRunEnded, payload)
	})
}

// Shutdown останавливает компоненты в обратном порядке и сохраняет итог забега
func (s *Server) Shutdown(ctx context.Context) error {
	var apiErr error
	s.stopOnce.Do(func() {
		s.logger.Info("🛑 Остановка сервера волн...")

		s.cancel()
		s.levelMu.Lock()
		if s.levelTimer != nil {
			s.levelTimer.Stop()
		}
		s.levelMu.Unlock()

		s.Director.Shutdown()
		s.wg.Wait()
		s.finishRun()

		apiErr = s.API.Stop(ctx)
		s.closeBackends()
		s.logger.Info("👋 Сервер волн остановлен")
	})
	return apiErr
}

// closeBackends закрывает шину и хранилище; безопасно для частично собранного сервера
func (s *Server) closeBackends() {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.listener != nil {
		s.listener.Unsubscribe()
	}
	if s.exporter != nil {
		s.exporter.Stop()
	}
	if s.Bus != nil {
		if err := s.Bus.Close(); err != nil {
			s.logger.Warn("Ошибка закрытия шины событий: %v", err)
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			s.logger.Warn("Ошибка закрытия хранилища забегов: %v", err)
		}
	}
}
