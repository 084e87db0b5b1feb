package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/annel0/horde-waves/internal/director"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/middleware"
	"github.com/annel0/horde-waves/internal/player"
	"github.com/annel0/horde-waves/internal/runstats"
	"github.com/annel0/horde-waves/internal/wave"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Version — версия сервера, отдаётся в /api/server
const Version = "v0.3.0"

const shutdownTimeout = 10 * time.Second

// WaveControl описывает часть режиссёра, доступную через API
type WaveControl interface {
	Snapshot() director.RunState
	Progression() wave.Progression
	Start() error
	ForceWave(def wave.Definition, opts director.ForceOptions) error
	ForceWaveType(t wave.Type, opts director.ForceOptions) error
	Pause(source director.PauseSource)
	Resume(source director.PauseSource)
}

// PlayerView отдаёт снимок состояния игрока
type PlayerView interface {
	Snapshot() player.Snapshot
}

// StatsView отдаёт итоги текущего забега
type StatsView interface {
	Snapshot() runstats.Summary
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr        string // адрес для запуска сервера, например ":8088"
	Waves       WaveControl
	Player      PlayerView
	Stats       StatsView
	Store       runstats.Store // может быть nil
	Hub         *WaveHub       // может быть nil
	AdminSecret string
	Registry    *prometheus.Registry
	Logger      *logging.Logger
}

// RestServer представляет REST API сервер
type RestServer struct {
	router      *gin.Engine
	addr        string
	waves       WaveControl
	player      PlayerView
	stats       StatsView
	store       runstats.Store
	hub         *WaveHub
	adminSecret string
	metrics     *ServerMetrics
	logger      *logging.Logger

	mu         sync.Mutex
	httpServer *http.Server
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ForceWaveRequest представляет тело POST /api/wave/force.
// Если заданы enemy_count, spawn_interval или name, волна берётся как есть,
// иначе её составляет генератор по типу.
type ForceWaveRequest struct {
	Type          string `json:"type" binding:"required"`
	EnemyCount    *int   `json:"enemy_count,omitempty"`
	SpawnInterval string `json:"spawn_interval,omitempty"` // "1.5s"
	Name          string `json:"name,omitempty"`
	WaveNumber    int    `json:"wave_number,omitempty"`
	Chain         bool   `json:"chain"`
}

// PauseRequest представляет тело POST /api/wave/pause и /api/wave/resume
type PauseRequest struct {
	Source string `json:"source" binding:"required"`
}

// WaveInfo представляет ответ GET /api/wave
type WaveInfo struct {
	State       director.RunState `json:"state"`
	Progression wave.Progression  `json:"progression"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) (*RestServer, error) {
	if cfg.Waves == nil {
		return nil, errors.New("api: wave control is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.For(logging.API)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())
	router.Use(otelgin.Middleware("horde_api"))

	promMw, err := middleware.NewPrometheusMiddleware("horde_api", cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("api: prometheus middleware: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Registry)

	rs := &RestServer{
		router:      router,
		addr:        cfg.Addr,
		waves:       cfg.Waves,
		player:      cfg.Player,
		stats:       cfg.Stats,
		store:       cfg.Store,
		hub:         cfg.Hub,
		adminSecret: cfg.AdminSecret,
		metrics:     NewServerMetrics(),
		logger:      cfg.Logger,
	}
	rs.setupRoutes()

	if cfg.AdminSecret == "" {
		rs.logger.Warn("⚠️ admin_secret не задан: управляющие эндпоинты открыты")
	}
	return rs, nil
}

// Handler возвращает http.Handler роутера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)
	if rs.hub != nil {
		rs.router.GET("/ws", rs.hub.ServeWS)
	}

	api := rs.router.Group("/api")
	{
		api.GET("/wave", rs.handleWave)
		api.GET("/player", rs.handlePlayer)
		api.GET("/stats", rs.handleStats)
		api.GET("/stats/best", rs.handleBestRuns)
		api.GET("/stats/runs/:id", rs.handleRun)
		api.GET("/server", rs.handleServerInfo)
	}

	// Управление волнами (только для админов)
	admin := api.Group("/wave")
	admin.Use(rs.adminMiddleware())
	{
		admin.POST("/start", rs.handleStart)
		admin.POST("/force", rs.handleForceWave)
		admin.POST("/pause", rs.handlePause)
		admin.POST("/resume", rs.handleResume)
	}
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleWave возвращает снимок режиссёра и прогрессию
func (rs *RestServer) handleWave(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние волн",
		Data: WaveInfo{
			State:       rs.waves.Snapshot(),
			Progression: rs.waves.Progression(),
		},
	})
}

// handlePlayer возвращает состояние игрока
func (rs *RestServer) handlePlayer(c *gin.Context) {
	if rs.player == nil {
		rs.unavailable(c, "Игрок не подключён")
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние игрока",
		Data:    rs.player.Snapshot(),
	})
}

// handleStats возвращает итоги текущего забега
func (rs *RestServer) handleStats(c *gin.Context) {
	if rs.stats == nil {
		rs.unavailable(c, "Статистика забега недоступна")
		return
	}
	summary := rs.stats.Snapshot()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика забега",
		Data: gin.H{
			"run":   summary,
			"score": summary.Score(),
		},
	})
}

// handleBestRuns возвращает таблицу лучших забегов
func (rs *RestServer) handleBestRuns(c *gin.Context) {
	if rs.store == nil {
		rs.unavailable(c, "Хранилище забегов не настроено")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "limit должен быть от 1 до 100",
		})
		return
	}

	runs, err := rs.store.Best(c.Request.Context(), limit)
	if err != nil {
		rs.logger.Error("Ошибка чтения лучших забегов: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения хранилища",
		})
		return
	}
	if runs == nil {
		runs = []runstats.Summary{}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Лучшие забеги",
		Data:    runs,
	})
}

// handleRun возвращает сохранённый забег по идентификатору
func (rs *RestServer) handleRun(c *gin.Context) {
	if rs.store == nil {
		rs.unavailable(c, "Хранилище забегов не настроено")
		return
	}

	run, ok, err := rs.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		rs.logger.Error("Ошибка чтения забега %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка чтения хранилища",
		})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{
			Success: false,
			Message: "Забег не найден",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Забег",
		Data:    run,
	})
}

// handleServerInfo возвращает информацию о процессе сервера
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	info := map[string]interface{}{
		"version":     Version,
		"name":        "Horde Waves Server",
		"status":      "running",
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.1f", rs.metrics.GetMemoryUsage()),
		"cpu_percent": fmt.Sprintf("%.1f", cpuPercent),
		"memory":      rs.metrics.GetDetailedMemoryStats(),
		"server_time": time.Now().Unix(),
	}
	if rs.hub != nil {
		info["ws_clients"] = rs.hub.ClientCount()
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    info,
	})
}

// handleStart запускает последовательность волн
func (rs *RestServer) handleStart(c *gin.Context) {
	if err := rs.waves.Start(); err != nil {
		rs.directorError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Последовательность волн запущена",
		Data:    rs.waves.Snapshot(),
	})
}

// handleForceWave принудительно запускает волну
func (rs *RestServer) handleForceWave(c *gin.Context) {
	var req ForceWaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	t, err := wave.ParseType(req.Type)
	if err != nil {
		rs.directorError(c, err)
		return
	}
	if req.WaveNumber < 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "wave_number не может быть отрицательным",
		})
		return
	}
	opts := director.ForceOptions{WaveNumber: req.WaveNumber, Chain: req.Chain}

	if req.EnemyCount == nil && req.SpawnInterval == "" && req.Name == "" {
		err = rs.waves.ForceWaveType(t, opts)
	} else {
		def := wave.Definition{Name: req.Name, Type: t}
		if req.EnemyCount != nil {
			def.EnemyCount = *req.EnemyCount
		}
		if req.SpawnInterval != "" {
			interval, perr := time.ParseDuration(req.SpawnInterval)
			if perr != nil {
				c.JSON(http.StatusBadRequest, GenericResponse{
					Success: false,
					Message: "Неверный spawn_interval: " + perr.Error(),
				})
				return
			}
			def.SpawnInterval = interval
		}
		err = rs.waves.ForceWave(def, opts)
	}
	if err != nil {
		rs.directorError(c, err)
		return
	}

	rs.logger.Info("⏩ Принудительная волна %s (admin=%s)", t, c.GetString("admin_subject"))
	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Волна запущена",
		Data:    rs.waves.Snapshot(),
	})
}

func (rs *RestServer) handlePause(c *gin.Context) {
	rs.togglePause(c, true)
}

func (rs *RestServer) handleResume(c *gin.Context) {
	rs.togglePause(c, false)
}

func (rs *RestServer) togglePause(c *gin.Context, pause bool) {
	var req PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}
	source, err := director.ParsePauseSource(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	msg := "Пауза снята"
	if pause {
		rs.waves.Pause(source)
		msg = "Пауза включена"
	} else {
		rs.waves.Resume(source)
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: msg,
		Data:    rs.waves.Snapshot(),
	})
}

// directorError переводит ошибку режиссёра в HTTP-статус
func (rs *RestServer) directorError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, wave.ErrUnknownType), errors.Is(err, wave.ErrInvalidDefinition):
		status = http.StatusBadRequest
	case errors.Is(err, director.ErrShutdown):
		status = http.StatusServiceUnavailable
	case errors.Is(err, director.ErrMissingCollaborator):
		status = http.StatusConflict
	}
	if status >= http.StatusInternalServerError {
		rs.logger.Error("Ошибка режиссёра: %v", err)
	}
	c.JSON(status, GenericResponse{
		Success: false,
		Message: err.Error(),
	})
}

func (rs *RestServer) unavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, GenericResponse{
		Success: false,
		Message: msg,
	})
}

// Start запускает HTTP сервер в отдельной горутине
func (rs *RestServer) Start() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.httpServer != nil {
		return errors.New("api: server already started")
	}

	rs.httpServer = &http.Server{
		Addr:              rs.addr,
		Handler:           rs.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := rs.httpServer

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logger.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	rs.logger.Info("✅ REST API сервер запущен на %s", rs.addr)
	rs.logger.Info("📋 GET /health /metrics /ws /api/wave /api/player /api/stats /api/stats/best /api/server")
	rs.logger.Info("📋 POST /api/wave/{start,force,pause,resume}")
	return nil
}

// Stop останавливает HTTP сервер и отключает WebSocket-клиентов
func (rs *RestServer) Stop(ctx context.Context) error {
	rs.mu.Lock()
	srv := rs.httpServer
	rs.httpServer = nil
	rs.mu.Unlock()

	if rs.hub != nil {
		rs.hub.Close()
	}
	if srv == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}

	rs.logger.Info("🛑 Остановка REST API сервера...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}
