package runstats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsAndDuration(t *testing.T) {
	r := NewRecorder()
	clock := time.Unix(5000, 0)
	r.now = func() time.Time { return clock }
	r.Reset()
	firstRun := r.Snapshot().RunID

	r.RegisterWaveCleared()
	r.RegisterEnemyDefeated()
	r.RegisterEnemyDefeated()
	r.RegisterDamageDealt(7)
	r.RegisterDamageDealt(-2)
	r.RegisterDamageTaken(3)
	r.RegisterDamageTaken(0)
	r.ObserveWave(4)
	r.ObserveWave(2)

	clock = clock.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())

	r.EndRun()
	clock = clock.Add(time.Hour)
	r.EndRun()

	s := r.Snapshot()
	assert.Equal(t, 1, s.WavesCleared)
	assert.Equal(t, 2, s.EnemiesDefeated)
	assert.Equal(t, 7, s.DamageDealt)
	assert.Equal(t, 3, s.DamageTaken)
	assert.Equal(t, 4, s.HighestWave)
	assert.True(t, s.Ended)
	assert.Equal(t, 90*time.Second, s.Duration)

	r.Reset()
	s = r.Snapshot()
	assert.NotEqual(t, firstRun, s.RunID)
	assert.Zero(t, s.EnemiesDefeated)
	assert.False(t, s.Ended)
}

func TestCollectorFollowsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	r := NewRecorder()
	r.AddListener(c)

	r.RegisterWaveCleared()
	r.RegisterEnemyDefeated()
	r.RegisterEnemyDefeated()
	r.RegisterDamageTaken(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.wavesCleared))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.enemiesDefeated))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.damageTaken))

	_, err = NewCollector(reg)
	assert.Error(t, err, "повторная регистрация должна завершаться ошибкой")
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	runs := []Summary{
		{RunID: "run-a", WavesCleared: 3, EnemiesDefeated: 40},
		{RunID: "run-b", WavesCleared: 7, EnemiesDefeated: 10},
		{RunID: "run-c", WavesCleared: 3, EnemiesDefeated: 55},
	}
	for _, s := range runs {
		require.NoError(t, store.Save(ctx, s))
	}

	got, ok, err := store.Load(ctx, "run-b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.WavesCleared)

	_, ok, err = store.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	best, err := store.Best(ctx, 2)
	require.NoError(t, err)
	require.Len(t, best, 2)
	assert.Equal(t, "run-b", best[0].RunID)
	assert.Equal(t, "run-c", best[1].RunID)

	// перезапись обновляет позицию в таблице
	require.NoError(t, store.Save(ctx, Summary{RunID: "run-a", WavesCleared: 9}))
	best, err = store.Best(ctx, 0)
	require.NoError(t, err)
	require.Len(t, best, 3)
	assert.Equal(t, "run-a", best[0].RunID)

	assert.Error(t, store.Save(ctx, Summary{}))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)

	require.NoError(t, store.Close())
	_, err := store.Best(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestBadgerStoreInMemory(t *testing.T) {
	store, err := NewBadgerStore("")
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), Summary{RunID: "x", WavesCleared: 1}))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.Save(context.Background(), Summary{RunID: "y"})
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestRedisStore(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.KeyPrefix = fmt.Sprintf("horde:test:%d:", time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	store, err := NewRedisStore(ctx, cfg)
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
		return
	}
	defer store.Close()
	defer func() {
		keys, _ := store.client.Keys(context.Background(), cfg.KeyPrefix+"*").Result()
		if len(keys) > 0 {
			store.client.Del(context.Background(), keys...)
		}
	}()

	exerciseStore(t, store)
}
