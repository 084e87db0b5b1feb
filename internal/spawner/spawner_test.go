package spawner

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/vec"
	"github.com/annel0/horde-waves/internal/wave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingFactory struct{}

func (failingFactory) Spawn(context.Context, enemy.Variant, vec.Vec3, vec.Rotation) (enemy.Handle, error) {
	return nil, errors.New("pool exhausted")
}

func newTestSpawner(t *testing.T, cfg Config, factory enemy.Factory) *Spawner {
	t.Helper()
	s, err := NewSpawner(cfg, factory, rand.New(rand.NewSource(17)), logging.Discard())
	require.NoError(t, err)
	return s
}

func TestComputeSpawnTransformRing(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestSpawner(t, cfg, enemy.NewManager(nil))
	ref := vec.Vec3{X: 100, Y: 2, Z: -50}

	for i := 0; i < 500; i++ {
		tr := s.ComputeSpawnTransform(ref)

		d := tr.Position.Sub(ref)
		horizontal := math.Hypot(d.X, d.Z)
		require.GreaterOrEqual(t, horizontal, cfg.MinSpawnRadius-1e-9)
		require.LessOrEqual(t, horizontal, cfg.MaxSpawnRadius+1e-9)
		require.InDelta(t, cfg.VerticalOffset, d.Y, 1e-9)

		// поворот смотрит на точку отсчёта
		fwd := tr.Rotation.Forward()
		require.InDelta(t, -d.X/horizontal, fwd.X, 1e-9)
		require.InDelta(t, -d.Z/horizontal, fwd.Z, 1e-9)
	}
}

func TestSelectVariantOverrides(t *testing.T) {
	s := newTestSpawner(t, DefaultConfig(), enemy.NewManager(nil))

	assert.Equal(t, enemy.Fast, s.SelectVariant(wave.FastVariant))
	assert.Equal(t, enemy.Ranged, s.SelectVariant(wave.RangedVariant))
	assert.Equal(t, enemy.BossVariant, s.SelectVariant(wave.Boss))
}

func TestSelectVariantWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FastChance = 0.3
	cfg.TankChance = 0.2
	s := newTestSpawner(t, cfg, enemy.NewManager(nil))

	counts := map[enemy.Variant]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[s.SelectVariant(wave.Normal)]++
	}

	assert.InDelta(t, 0.3, float64(counts[enemy.Fast])/n, 0.03)
	assert.InDelta(t, 0.2, float64(counts[enemy.Tank])/n, 0.03)
	assert.InDelta(t, 0.5, float64(counts[enemy.Basic])/n, 0.03)
	assert.Zero(t, counts[enemy.Ranged])
	assert.Zero(t, counts[enemy.BossVariant])

	cfg.FastChance, cfg.TankChance = 0, 0
	only := newTestSpawner(t, cfg, enemy.NewManager(nil))
	for i := 0; i < 100; i++ {
		require.Equal(t, enemy.Basic, only.SelectVariant(wave.Normal))
	}
}

func TestPanicMixUsesAllRegularVariants(t *testing.T) {
	s := newTestSpawner(t, DefaultConfig(), enemy.NewManager(nil))
	seen := map[enemy.Variant]bool{}
	for i := 0; i < 400; i++ {
		seen[s.SelectVariant(wave.PanicMix)] = true
	}
	assert.Len(t, seen, 4)
	assert.False(t, seen[enemy.BossVariant])
}

func TestTrySpawnRespectsCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAliveActors = 3
	m := enemy.NewManager(nil)
	s := newTestSpawner(t, cfg, m)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		h, err := s.TrySpawn(ctx, wave.Normal, vec.Vec3{})
		require.NoError(t, err)
		require.NotNil(t, h)
	}
	assert.Equal(t, 3, s.Alive())

	_, err := s.TrySpawn(ctx, wave.Normal, vec.Vec3{})
	assert.ErrorIs(t, err, ErrSpawnRefused)
	assert.Equal(t, 3, s.Alive())
	assert.Equal(t, 3, m.AliveCount())

	s.Release()
	_, err = s.TrySpawn(ctx, wave.Normal, vec.Vec3{})
	assert.NoError(t, err)

	for i := 0; i < 10; i++ {
		s.Release()
	}
	assert.Equal(t, 0, s.Alive())
}

func TestTrySpawnFactoryFailureFreesSlot(t *testing.T) {
	s := newTestSpawner(t, DefaultConfig(), failingFactory{})

	_, err := s.TrySpawn(context.Background(), wave.Normal, vec.Vec3{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSpawnRefused)
	assert.Equal(t, 0, s.Alive())

	noFactory := newTestSpawner(t, DefaultConfig(), nil)
	_, err = noFactory.TrySpawn(context.Background(), wave.Normal, vec.Vec3{})
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestBossSpawnPoints(t *testing.T) {
	cfg := DefaultConfig()
	points := []vec.Vec3{{X: 30, Z: 30}, {X: -30, Z: 30}}
	cfg.BossSpawnPoints = points
	m := enemy.NewManager(nil)
	s := newTestSpawner(t, cfg, m)

	for i := 0; i < 20; i++ {
		h, err := s.TrySpawn(context.Background(), wave.Boss, vec.Vec3{})
		require.NoError(t, err)
		assert.Equal(t, enemy.BossVariant, h.Variant())
		assert.Contains(t, points, h.Position())
		s.Release()
	}
}

func TestUnknownOverrideIsConfigError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FastOverride = "goose"
	_, err := NewSpawner(cfg, nil, nil, logging.Discard())
	assert.ErrorIs(t, err, enemy.ErrUnknownVariant)
}
