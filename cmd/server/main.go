package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/horde-waves/internal/app"
	"github.com/annel0/horde-waves/internal/config"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML-конфигурации (по умолчанию $HORDE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	if cfg.Logging.Dir != "" {
		logging.SetLogDir(cfg.Logging.Dir)
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
	}
	defer logging.CloseDefaultLogger()

	level := logging.ParseLevel(cfg.Logging.Level)
	logging.Default().SetLevels(level, logging.DEBUG)
	logging.SetComponentLevels(level, logging.DEBUG)

	logging.Info("🌊 Запуск сервера волн...")
	logging.Debug("Конфигурация: eventbus=%s, stats=%s, sim=%v", cfg.EventBus.Backend, cfg.Stats.Backend, cfg.Sim.Enabled)

	ctx := context.Background()

	// === ТРАССИРОВКА ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации телеметрии: %v", err)
	}

	// === СБОРКА СЕРВЕРА ===
	server, err := app.New(ctx, cfg, logging.Default())
	if err != nil {
		logging.Error("❌ Ошибка сборки сервера: %v", err)
		log.Fatalf("❌ Ошибка сборки сервера: %v", err)
	}

	if err := server.Start(); err != nil {
		logging.Error("❌ Ошибка запуска сервера: %v", err)
		_ = server.Shutdown(ctx)
		log.Fatalf("❌ Ошибка запуска сервера: %v", err)
	}

	port := cfg.Server.GetRESTPort()
	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d", port)
	logging.Info("   📡 WebSocket: ws://localhost:%d/ws", port)
	logging.Info("   📈 Метрики: http://localhost:%d/metrics", port)
	if cfg.Server.AdminSecret != "" {
		logging.Info("   🔐 Управление волнами требует токен (wave-cli -token)")
	}

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(stopCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера: %v", err)
	}
	if err := shutdownTelemetry(stopCtx); err != nil {
		logging.Error("❌ Ошибка остановки телеметрии: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}
