package director

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/player"
	"github.com/annel0/horde-waves/internal/scaling"
	"github.com/annel0/horde-waves/internal/spawner"
	"github.com/annel0/horde-waves/internal/wave"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

type statsStub struct {
	cleared  atomic.Int32
	defeated atomic.Int32
}

func (s *statsStub) RegisterWaveCleared()   { s.cleared.Add(1) }
func (s *statsStub) RegisterEnemyDefeated() { s.defeated.Add(1) }

type healStub struct{ healed atomic.Int32 }

func (h *healStub) Heal(amount int) { h.healed.Add(int32(amount)) }

type startedWave struct {
	def    wave.Definition
	number int
}

type presenterStub struct {
	mu      sync.Mutex
	started []startedWave
	cleared []int
}

func (p *presenterStub) WaveStarted(def wave.Definition, n int) {
	p.mu.Lock()
	p.started = append(p.started, startedWave{def, n})
	p.mu.Unlock()
}

func (p *presenterStub) WaveCleared(_ wave.Definition, n int) {
	p.mu.Lock()
	p.cleared = append(p.cleared, n)
	p.mu.Unlock()
}

func (p *presenterStub) snapshot() ([]startedWave, []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]startedWave(nil), p.started...), append([]int(nil), p.cleared...)
}

type harness struct {
	d         *Director
	actors    *enemy.Manager
	spawner   *spawner.Spawner
	player    *player.Player
	stats     *statsStub
	health    *healStub
	presenter *presenterStub
	registry  *prometheus.Registry
	metrics   *Metrics
}

type harnessOptions struct {
	cadence  wave.Cadence
	maxAlive int
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	rng := rand.New(rand.NewSource(42))
	genCfg := wave.DefaultGeneratorConfig()
	genCfg.StartingEnemyCount = 3
	genCfg.StartingSpawnInterval = time.Millisecond
	genCfg.MinSpawnInterval = time.Millisecond
	gen := wave.NewGenerator(genCfg, wave.NewClassifier(opts.cadence, rng), rng)

	actors := enemy.NewManager(nil)
	spCfg := spawner.DefaultConfig()
	if opts.maxAlive > 0 {
		spCfg.MaxAliveActors = opts.maxAlive
	}
	sp, err := spawner.NewSpawner(spCfg, actors, rand.New(rand.NewSource(7)), logging.Discard())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	h := &harness{
		actors:    actors,
		spawner:   sp,
		player:    player.NewPlayer(player.DefaultConfig()),
		stats:     &statsStub{},
		health:    &healStub{},
		presenter: &presenterStub{},
		registry:  reg,
		metrics:   metrics,
	}

	cfg := Config{
		TimeBetweenWaves: 5 * time.Millisecond,
		BreakDuration:    20 * time.Millisecond,
		BreakHealAmount:  2,
		StrictInvariants: true,
	}
	h.d = New(cfg, Deps{
		Generator:  gen,
		Scaler:     scaling.NewScaler(scaling.DefaultConfig()),
		Spawner:    sp,
		Player:     h.player,
		Health:     h.health,
		Stats:      h.stats,
		XP:         h.player,
		Presenters: []Presenter{h.presenter},
		Metrics:    metrics,
		Logger:     logging.Discard(),
	})
	t.Cleanup(h.d.Shutdown)
	return h
}

func (h *harness) killAll() int {
	n := 0
	for _, a := range h.actors.Alive() {
		if h.actors.Kill(a.ID()) {
			n++
		}
	}
	return n
}

func (h *harness) waitSpawned(t *testing.T, alive int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := h.d.Snapshot()
		return s.State == Active && s.AliveCount == alive
	}, waitFor, tick)
}

func normalWave(count int, interval time.Duration) wave.Definition {
	return wave.Definition{Name: "test", Type: wave.Normal, EnemyCount: count, SpawnInterval: interval}
}

func TestForcedWaveCompletesWhenAllActorsDie(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(4, time.Millisecond), ForceOptions{}))
	h.waitSpawned(t, 4)
	assert.True(t, h.d.IsWaveActive())
	assert.Equal(t, 4, h.spawner.Alive())

	assert.Equal(t, 4, h.killAll())

	require.Eventually(t, func() bool {
		return h.d.State() == Idle && h.stats.defeated.Load() == 4 && h.spawner.Alive() == 0
	}, waitFor, tick)
	assert.Equal(t, int32(1), h.stats.cleared.Load())
	assert.False(t, h.d.IsWaveActive())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.wavesCleared))

	// опыт убитых акторов дошёл до игрока
	assert.Positive(t, h.player.Snapshot().TotalXP)
}

func TestEachActorCountsExactlyOnce(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(6, 0), ForceOptions{}))
	h.waitSpawned(t, 6)
	epoch := h.d.Epoch()

	var wg sync.WaitGroup
	for _, a := range h.actors.Alive() {
		a := a
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.actors.Kill(a.ID())
				h.d.HandleActorDied(epoch, a)
			}()
		}
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return h.stats.cleared.Load() == 1 && h.stats.defeated.Load() == 6
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), h.stats.cleared.Load())
	assert.Equal(t, int32(6), h.stats.defeated.Load())
	assert.Equal(t, 0, h.d.Snapshot().AliveCount)

	_, cleared := h.presenter.snapshot()
	assert.Len(t, cleared, 1)
}

func TestForceWaveInvalidatesOldEpoch(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(3, 0), ForceOptions{}))
	h.waitSpawned(t, 3)
	oldEpoch := h.d.Epoch()
	old := h.actors.Alive()
	require.Len(t, old, 3)

	require.NoError(t, h.d.ForceWave(normalWave(2, 0), ForceOptions{}))
	assert.Equal(t, oldEpoch+1, h.d.Epoch())
	h.waitSpawned(t, 2)

	// прежние акторы убраны без засчитывания убийств
	assert.Equal(t, 2, h.actors.AliveCount())
	_, killed := h.actors.Counters()
	assert.Zero(t, killed)
	assert.Equal(t, 2, h.spawner.Alive())

	for _, a := range old {
		h.d.HandleActorDied(oldEpoch, a)
	}
	snap := h.d.Snapshot()
	assert.Equal(t, 2, snap.AliveCount)
	assert.True(t, snap.WaveActive)
	assert.Zero(t, h.stats.defeated.Load())
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.staleDeaths))

	h.killAll()
	require.Eventually(t, func() bool {
		return h.stats.cleared.Load() == 1 && h.stats.defeated.Load() == 2
	}, waitFor, tick)
}

func TestForceWaveDuringSpawningStopsOldSlots(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(10, 20*time.Millisecond), ForceOptions{}))
	require.Eventually(t, func() bool { return h.actors.AliveCount() >= 2 }, waitFor, tick)
	assert.Equal(t, Spawning, h.d.State())
	oldEpoch := h.d.Epoch()

	require.NoError(t, h.d.ForceWave(normalWave(2, 0), ForceOptions{}))
	assert.Equal(t, oldEpoch+1, h.d.Epoch())
	h.waitSpawned(t, 2)
	spawned, _ := h.actors.Counters()

	// слоты старой волны больше не спавнятся
	time.Sleep(60 * time.Millisecond)
	after, killed := h.actors.Counters()
	assert.Equal(t, spawned, after)
	assert.Zero(t, killed)
	assert.Equal(t, 2, h.actors.AliveCount())
	assert.Equal(t, 2, h.spawner.Alive())
	assert.Equal(t, 2, h.d.Snapshot().AliveCount)
}

func TestWaveClearsOnlyAfterSpawnLoopFinishes(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(3, 40*time.Millisecond), ForceOptions{}))
	require.Eventually(t, func() bool { return h.actors.AliveCount() == 1 }, waitFor, tick)

	require.Equal(t, 1, h.killAll())
	require.Eventually(t, func() bool { return h.stats.defeated.Load() == 1 }, waitFor, tick)

	// живых нет, но слоты ещё ждут интервала
	assert.True(t, h.d.IsWaveActive())
	assert.Zero(t, h.stats.cleared.Load())

	require.Eventually(t, func() bool {
		h.killAll()
		return h.stats.defeated.Load() == 3
	}, waitFor, tick)
	require.Eventually(t, func() bool { return h.stats.cleared.Load() == 1 }, waitFor, tick)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), h.stats.cleared.Load())
	assert.Equal(t, int32(3), h.stats.defeated.Load())
	assert.False(t, h.d.IsWaveActive())
	_, cleared := h.presenter.snapshot()
	assert.Len(t, cleared, 1)
}

func TestStartDuringForcedWaveContinuesWithGeneratedWaves(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(2, 0), ForceOptions{}))
	h.waitSpawned(t, 2)
	require.NoError(t, h.d.Start())

	h.killAll()
	require.Eventually(t, func() bool {
		started, _ := h.presenter.snapshot()
		return len(started) >= 2
	}, waitFor, tick)
	assert.NotEqual(t, Idle, h.d.State())

	started, _ := h.presenter.snapshot()
	assert.Equal(t, "test", started[0].def.Name)
	assert.NotEqual(t, "test", started[1].def.Name)
}

func TestStartAfterForcedWaveWentIdle(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(1, 0), ForceOptions{}))
	h.waitSpawned(t, 1)
	h.killAll()
	require.Eventually(t, func() bool { return h.d.State() == Idle }, waitFor, tick)

	require.NoError(t, h.d.Start())
	require.Eventually(t, func() bool {
		started, _ := h.presenter.snapshot()
		return len(started) >= 2
	}, waitFor, tick)
}

func TestBreakWaveHealsAndDoesNotCount(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(wave.Definition{Type: wave.Break}, ForceOptions{}))
	require.Eventually(t, func() bool { return h.health.healed.Load() == 2 }, waitFor, tick)
	assert.False(t, h.d.IsWaveActive())

	require.Eventually(t, func() bool { return h.d.State() == Idle }, waitFor, tick)
	assert.Zero(t, h.stats.cleared.Load())
	assert.Zero(t, h.actors.AliveCount())
	assert.Equal(t, int32(2), h.health.healed.Load())
}

func TestPanicMixSpawnsBackToBack(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	def := wave.Definition{Type: wave.PanicMix, EnemyCount: 5, SpawnInterval: time.Hour}
	require.NoError(t, h.d.ForceWave(def, ForceOptions{}))
	h.waitSpawned(t, 5)
}

func TestSpawnRefusalSkipsSlots(t *testing.T) {
	h := newHarness(t, harnessOptions{maxAlive: 2})

	require.NoError(t, h.d.ForceWave(normalWave(5, 0), ForceOptions{}))
	h.waitSpawned(t, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.spawnsRefused))

	h.killAll()
	require.Eventually(t, func() bool {
		return h.stats.cleared.Load() == 1 && h.stats.defeated.Load() == 2
	}, waitFor, tick)
}

func TestMiniBossPrimaryIsScaledWithJump(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	scaler := scaling.NewScaler(scaling.DefaultConfig())

	def := wave.Definition{Type: wave.MiniBoss, EnemyCount: 3}
	require.NoError(t, h.d.ForceWave(def, ForceOptions{WaveNumber: 7}))
	h.waitSpawned(t, 3)
	assert.Equal(t, 7, h.d.CurrentWaveNumber())
	assert.Equal(t, "Wave 7 - MINI-BOSS", h.d.Snapshot().ActiveWave.Name)

	templates := enemy.DefaultTemplates()
	for i, a := range h.actors.Alive() {
		m := scaler.Multipliers(7, 1, wave.MiniBoss, i == 0)
		assert.Equal(t, scaling.Apply(templates[a.Variant()], m), a.Stats(), "slot %d", i)
	}

	started, _ := h.presenter.snapshot()
	require.Len(t, started, 1)
	assert.Equal(t, 7, started[0].number)
}

func TestForceWaveTypeComposesWithoutAdvancing(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	before := h.d.Progression()

	require.NoError(t, h.d.ForceWaveType(wave.Boss, ForceOptions{WaveNumber: 10}))
	h.waitSpawned(t, 1)

	snap := h.d.Snapshot()
	require.NotNil(t, snap.ActiveWave)
	assert.Equal(t, wave.Boss, snap.ActiveWave.Type)
	assert.Equal(t, 1, snap.ActiveWave.EnemyCount)
	assert.Equal(t, wave.Name(10, wave.Boss), snap.ActiveWave.Name)

	alive := h.actors.Alive()
	require.Len(t, alive, 1)
	assert.Equal(t, enemy.BossVariant, alive[0].Variant())

	after := h.d.Progression()
	assert.Equal(t, 10, after.WaveNumber)
	assert.Equal(t, before.BaseEnemyCount, after.BaseEnemyCount)
	assert.Equal(t, before.SpawnInterval, after.SpawnInterval)

	assert.Error(t, h.d.ForceWaveType(wave.Type(99), ForceOptions{}))
}

func TestPauseFreezesSpawnSequence(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	h.d.Pause(PauseMenu)
	h.d.Pause(PauseLevelUp)
	require.NoError(t, h.d.ForceWave(normalWave(3, 10*time.Millisecond), ForceOptions{}))

	require.Eventually(t, func() bool { return h.actors.AliveCount() == 1 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.actors.AliveCount())
	assert.Equal(t, []PauseSource{PauseLevelUp, PauseMenu}, h.d.Snapshot().Paused)

	h.d.Resume(PauseMenu)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.actors.AliveCount(), "пауза держится, пока активен хоть один источник")

	h.d.Resume(PauseLevelUp)
	h.waitSpawned(t, 3)
	assert.False(t, h.d.Paused())
}

func TestClearPausesReleasesEverySource(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	h.d.Pause(PauseGameOver)
	h.d.Pause(PauseHitstop)
	require.NoError(t, h.d.ForceWave(normalWave(2, 10*time.Millisecond), ForceOptions{}))
	require.Eventually(t, func() bool { return h.actors.AliveCount() == 1 }, waitFor, tick)

	h.d.ClearPauses()
	assert.Empty(t, h.d.Snapshot().Paused)
	h.waitSpawned(t, 2)

	// повторный вызов без активных пауз ничего не делает
	h.d.ClearPauses()
	assert.False(t, h.d.Paused())
}

func TestSequenceChainsGeneratedWaves(t *testing.T) {
	h := newHarness(t, harnessOptions{cadence: wave.Cadence{BreakEvery: 2}})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.killAll()
			case <-stop:
				return
			}
		}
	}()

	require.NoError(t, h.d.Start())
	require.Eventually(t, func() bool { return h.d.CurrentWaveNumber() >= 4 }, waitFor, tick)
	h.d.Shutdown()

	started, cleared := h.presenter.snapshot()
	require.GreaterOrEqual(t, len(started), 4)
	for i, sw := range started {
		assert.Equal(t, i+1, sw.number)
		if sw.number%2 == 0 {
			assert.Equal(t, wave.Break, sw.def.Type)
		} else {
			assert.Equal(t, wave.Normal, sw.def.Type)
		}
	}
	assert.Contains(t, cleared, 1)
	assert.Contains(t, cleared, 3)
	assert.NotContains(t, cleared, 2)
	assert.GreaterOrEqual(t, h.health.healed.Load(), int32(2))
	assert.Equal(t, Stopped, h.d.State())
}

func TestStartWithoutCollaboratorsStaysIdle(t *testing.T) {
	d := New(DefaultConfig(), Deps{Logger: logging.Discard()})
	err := d.Start()
	assert.ErrorIs(t, err, ErrMissingCollaborator)
	assert.Equal(t, Idle, d.State())

	noFactory, err := spawner.NewSpawner(spawner.DefaultConfig(), nil, nil, logging.Discard())
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))
	d = New(DefaultConfig(), Deps{
		Generator: wave.NewGenerator(wave.DefaultGeneratorConfig(), wave.NewClassifier(wave.DefaultCadence(), rng), rng),
		Scaler:    scaling.NewScaler(scaling.DefaultConfig()),
		Spawner:   noFactory,
		Player:    player.NewPlayer(player.DefaultConfig()),
		Logger:    logging.Discard(),
	})
	assert.ErrorIs(t, d.Start(), ErrMissingCollaborator)
	assert.ErrorIs(t, d.ForceWave(normalWave(1, 0), ForceOptions{}), ErrMissingCollaborator)
	assert.Equal(t, Idle, d.State())
}

func TestShutdownMakesEverythingInert(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	require.NoError(t, h.d.ForceWave(normalWave(3, 0), ForceOptions{}))
	h.waitSpawned(t, 3)
	epoch := h.d.Epoch()

	h.d.Shutdown()
	assert.Equal(t, Stopped, h.d.State())

	for _, a := range h.actors.Alive() {
		h.actors.Kill(a.ID())
		h.d.HandleActorDied(epoch, a)
	}
	assert.Zero(t, h.stats.defeated.Load())
	assert.Zero(t, h.stats.cleared.Load())

	assert.ErrorIs(t, h.d.Start(), ErrShutdown)
	assert.ErrorIs(t, h.d.ForceWave(normalWave(1, 0), ForceOptions{}), ErrShutdown)
	h.d.Shutdown()
}

func TestForceWaveRejectsInvalidDefinition(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	err := h.d.ForceWave(wave.Definition{Type: wave.Break, EnemyCount: 3}, ForceOptions{})
	assert.ErrorIs(t, err, wave.ErrInvalidDefinition)
	assert.Equal(t, uint64(0), h.d.Epoch())
}

func TestParsePauseSource(t *testing.T) {
	p, err := ParsePauseSource("Level_Up")
	require.NoError(t, err)
	assert.Equal(t, PauseLevelUp, p)

	_, err = ParsePauseSource("nap")
	assert.ErrorIs(t, err, ErrUnknownPauseSource)
}
