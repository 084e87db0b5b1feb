package wave

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(cfg GeneratorConfig, cadence Cadence, seed int64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	return NewGenerator(cfg, NewClassifier(cadence, rng), rng)
}

func TestProgressionGrowthScenario(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.StartingEnemyCount = 3
	cfg.EnemyCountGrowth = 1.25

	g := newTestGenerator(cfg, Cadence{}, 1)
	def := g.Next()

	assert.Equal(t, 1, g.Progression().WaveNumber)
	assert.Equal(t, Normal, def.Type)
	assert.Equal(t, 4, g.Progression().BaseEnemyCount)
}

func TestBreakWaveLeavesProgression(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	g := newTestGenerator(cfg, Cadence{BreakEvery: 5}, 3)

	for i := 0; i < 4; i++ {
		g.Next()
	}
	before := g.Progression()

	def := g.Next()
	after := g.Progression()

	assert.Equal(t, Break, def.Type)
	assert.Equal(t, 0, def.EnemyCount)
	assert.Equal(t, time.Duration(0), def.SpawnInterval)
	assert.Equal(t, 5, after.WaveNumber)
	assert.Equal(t, before.BaseEnemyCount, after.BaseEnemyCount)
	assert.Equal(t, before.SpawnInterval, after.SpawnInterval)
}

func TestBaseEnemyCountNonDecreasing(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.EnemyCountGrowth = 1.05
	g := newTestGenerator(cfg, DefaultCadence(), 11)

	prev := g.Progression()
	for i := 0; i < 200; i++ {
		def := g.Next()
		cur := g.Progression()
		require.GreaterOrEqual(t, cur.BaseEnemyCount, prev.BaseEnemyCount)
		require.GreaterOrEqual(t, cur.SpawnInterval, cfg.MinSpawnInterval)
		if def.Type == Break {
			require.Equal(t, prev.BaseEnemyCount, cur.BaseEnemyCount)
			require.Equal(t, prev.SpawnInterval, cur.SpawnInterval)
		}
		prev = cur
	}
}

func TestBossWaveScenario(t *testing.T) {
	g := newTestGenerator(DefaultGeneratorConfig(), Cadence{BossEvery: 10}, 5)
	g.JumpTo(9)

	def := g.Next()
	assert.Equal(t, Boss, def.Type)
	assert.Equal(t, 1, def.EnemyCount)
	assert.Equal(t, DefaultGeneratorConfig().MinSpawnInterval, def.SpawnInterval)
	assert.Equal(t, "Wave 10 - BOSS", def.Name)
}

func TestComposeBounds(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.StartingEnemyCount = 20
	cfg.StartingSpawnInterval = time.Second
	cfg.MinSpawnInterval = 100 * time.Millisecond

	g := newTestGenerator(cfg, Cadence{}, 21)

	for i := 0; i < 100; i++ {
		normal := g.Compose(Normal)
		assert.GreaterOrEqual(t, normal.EnemyCount, 15)
		assert.LessOrEqual(t, normal.EnemyCount, 25)
		assert.Equal(t, time.Second, normal.SpawnInterval)

		power := g.Compose(Power)
		assert.GreaterOrEqual(t, power.EnemyCount, 24) // round(32*0.75)
		assert.LessOrEqual(t, power.EnemyCount, 40)
		assert.GreaterOrEqual(t, power.SpawnInterval, 550*time.Millisecond)
		assert.LessOrEqual(t, power.SpawnInterval, 750*time.Millisecond)

		fast := g.Compose(FastVariant)
		assert.GreaterOrEqual(t, fast.EnemyCount, 18)
		assert.LessOrEqual(t, fast.EnemyCount, 30)
		assert.GreaterOrEqual(t, fast.SpawnInterval, 600*time.Millisecond)
		assert.LessOrEqual(t, fast.SpawnInterval, 800*time.Millisecond)

		ranged := g.Compose(RangedVariant)
		assert.GreaterOrEqual(t, ranged.EnemyCount, 16) // round(22*0.75)
		assert.LessOrEqual(t, ranged.EnemyCount, 28)
		assert.GreaterOrEqual(t, ranged.SpawnInterval, 800*time.Millisecond)
		assert.LessOrEqual(t, ranged.SpawnInterval, time.Second)

		panicWave := g.Compose(PanicMix)
		assert.GreaterOrEqual(t, panicWave.EnemyCount, 18) // round(26*0.7)
		assert.LessOrEqual(t, panicWave.EnemyCount, 34)
		assert.Equal(t, cfg.MinSpawnInterval, panicWave.SpawnInterval)

		mini := g.Compose(MiniBoss)
		assert.Equal(t, 10, mini.EnemyCount)
		assert.Equal(t, time.Second, mini.SpawnInterval)
	}

	// Compose не трогает прогрессию
	assert.Equal(t, 20, g.Progression().BaseEnemyCount)
	assert.Equal(t, 0, g.Progression().WaveNumber)
}

func TestComposeMinimumCounts(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.StartingEnemyCount = 1
	g := newTestGenerator(cfg, Cadence{}, 2)

	assert.GreaterOrEqual(t, g.Compose(Normal).EnemyCount, 2)
	assert.GreaterOrEqual(t, g.Compose(Power).EnemyCount, 8)
	assert.GreaterOrEqual(t, g.Compose(FastVariant).EnemyCount, 6)
	assert.GreaterOrEqual(t, g.Compose(RangedVariant).EnemyCount, 4)
	assert.GreaterOrEqual(t, g.Compose(PanicMix).EnemyCount, 6)
	assert.Equal(t, 4, g.Compose(MiniBoss).EnemyCount)
}

func TestSpawnIntervalDecayFloors(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.StartingSpawnInterval = 200 * time.Millisecond
	cfg.MinSpawnInterval = 150 * time.Millisecond
	cfg.SpawnIntervalDecay = 0.5

	g := newTestGenerator(cfg, Cadence{}, 4)
	g.Next()
	assert.Equal(t, 150*time.Millisecond, g.Progression().SpawnInterval)
	g.Next()
	assert.Equal(t, 150*time.Millisecond, g.Progression().SpawnInterval)
}
