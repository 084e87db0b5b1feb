package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/annel0/horde-waves/internal/api"
	"github.com/annel0/horde-waves/internal/config"
	"github.com/annel0/horde-waves/internal/eventbus"
	"github.com/annel0/horde-waves/internal/scaling"
	"github.com/annel0/horde-waves/internal/wave"
)

func main() {
	var (
		command    = flag.String("cmd", "table", "Command: table, token, tail")
		configPath = flag.String("config", "", "YAML config path (default $HORDE_CONFIG)")
		waves      = flag.Int("waves", 30, "Number of waves to generate")
		seed       = flag.Int64("seed", 1, "Random seed for classifier and generator")
		level      = flag.Int("level", 1, "Player level used for multipliers")
		subject    = flag.String("subject", "wave-cli", "Token subject")
		ttl        = flag.Duration("ttl", time.Hour, "Token lifetime")
		types      = flag.String("types", "", "Event types filter for tail (comma-separated)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	switch *command {
	case "table":
		if err := printTable(os.Stdout, cfg, *seed, *waves, *level); err != nil {
			log.Fatalf("❌ %v", err)
		}
	case "token":
		token, err := api.IssueAdminToken(cfg.Server.AdminSecret, *subject, *ttl)
		if err != nil {
			log.Fatalf("❌ Failed to issue token: %v", err)
		}
		fmt.Println(token)
	case "tail":
		if err := tailEvents(cfg.EventBus.JetStream, parseStringList(*types)); err != nil {
			log.Fatalf("❌ %v", err)
		}
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: table, token, tail")
		os.Exit(1)
	}
}

// printTable печатает первые n волн, как их построит режиссёр без принудительных волн
func printTable(w io.Writer, cfg *config.Config, seed int64, n, level int) error {
	if n < 1 {
		return fmt.Errorf("waves must be >= 1, got %d", n)
	}
	classifier := wave.NewClassifier(cfg.Cadence, rand.New(rand.NewSource(seed)))
	generator := wave.NewGenerator(cfg.Waves, classifier, rand.New(rand.NewSource(seed+1)))
	scaler := scaling.NewScaler(cfg.Scaling)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tNAME\tENEMIES\tINTERVAL\tHP×\tDMG×\tSPD×\tXP×\tSCALE×")
	for i := 0; i < n; i++ {
		def := generator.Next()
		number := generator.Progression().WaveNumber
		m := scaler.Multipliers(number, level, def.Type, true)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			number, def.Type, def.Name, def.EnemyCount, def.SpawnInterval,
			m.Health, m.Damage, m.Speed, m.XP, m.Scale)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := generator.Progression()
	fmt.Fprintf(w, "\n📊 After %d waves: base enemy count %d, spawn interval %s\n", n, p.BaseEnemyCount, p.SpawnInterval)
	return nil
}

// tailEvents печатает события режиссёра из JetStream до Ctrl+C
func tailEvents(cfg eventbus.JetStreamConfig, types []string) error {
	bus, err := eventbus.NewJetStreamBus(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var count atomic.Int64
	_, err = bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(_ context.Context, ev *eventbus.Envelope) {
		count.Add(1)
		fmt.Printf("%s  %-14s run=%s  %s\n", ev.Timestamp.Format(time.RFC3339), ev.EventType, ev.CorrelationID, ev.Payload)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	fmt.Printf("🎬 Tailing %s (types: %v), Ctrl+C to stop\n", cfg.URL, types)
	<-ctx.Done()
	fmt.Printf("\n📊 Total events: %d\n", count.Load())
	return nil
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
