package runstats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/horde-waves/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        `yaml:"addr" json:"addr"`             // Адрес Redis сервера
	Password  string        `yaml:"password" json:"-"`            // Пароль (пустой если не требуется)
	DB        int           `yaml:"db" json:"db"`                 // Номер базы данных
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"` // Префикс для ключей
	TTL       time.Duration `yaml:"ttl" json:"ttl"`               // Время жизни итогов, 0 — бессрочно
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "horde:run:",
	}
}

// RedisStore хранит итоги забегов в Redis: JSON по ключу забега
// и отсортированное множество для таблицы лучших результатов.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *logging.Logger
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.For(logging.RunStats)
	logger.Info("🔴 Подключено к Redis %s", cfg.Addr)

	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
		logger:    logger,
	}, nil
}

func (rs *RedisStore) runKey(runID string) string {
	return rs.keyPrefix + runID
}

func (rs *RedisStore) leaderboardKey() string {
	return rs.keyPrefix + "leaderboard"
}

// Save записывает итог и обновляет таблицу лучших одним пайплайном
func (rs *RedisStore) Save(ctx context.Context, s Summary) error {
	if s.RunID == "" {
		return fmt.Errorf("пустой идентификатор забега")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.runKey(s.RunID), data, rs.ttl)
	pipe.ZAdd(ctx, rs.leaderboardKey(), &redis.Z{Score: s.Score(), Member: s.RunID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// Load получает итог забега
func (rs *RedisStore) Load(ctx context.Context, runID string) (Summary, bool, error) {
	data, err := rs.client.Get(ctx, rs.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Summary{}, false, nil
	} else if err != nil {
		return Summary{}, false, fmt.Errorf("failed to get summary: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, false, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return s, true, nil
}

// Best читает таблицу лучших и подгружает итоги пайплайном.
// Забеги с истёкшим TTL пропускаются.
func (rs *RedisStore) Best(ctx context.Context, limit int) ([]Summary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := rs.client.ZRevRange(ctx, rs.leaderboardKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(ids) == 0 {
		return []Summary{}, nil
	}

	pipe := rs.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, rs.runKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}

	result := make([]Summary, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}

		var s Summary
		if err := json.Unmarshal(data, &s); err != nil {
			rs.logger.Warn("⚠️ Не удалось разобрать итог %s: %v", ids[i], err)
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// Close закрывает соединение с Redis
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
