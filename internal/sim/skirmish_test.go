package sim

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/player"
	"github.com/annel0/horde-waves/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type damageCounter struct {
	mu    sync.Mutex
	total int
}

func (d *damageCounter) RegisterDamageDealt(amount int) {
	d.mu.Lock()
	d.total += amount
	d.mu.Unlock()
}

func spawnN(t *testing.T, m *enemy.Manager, variant enemy.Variant, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := m.Spawn(context.Background(), variant, vec.Vec3{X: float64(i)}, vec.Rotation{})
		require.NoError(t, err)
	}
}

func TestPressureIsFlatWithoutAmplitude(t *testing.T) {
	p := NewPressure(42, 0, 0.3)
	for _, sec := range []float64{0, 1.7, 33, 250} {
		assert.Equal(t, 1.0, p.At(sec))
	}
}

func TestPressureVariesAndStaysNonNegative(t *testing.T) {
	p := NewPressure(42, 3, 0.37)
	seen := make(map[float64]struct{})
	for i := 0; i < 200; i++ {
		v := p.At(float64(i) * 0.9)
		assert.GreaterOrEqual(t, v, 0.0)
		seen[v] = struct{}{}
	}
	assert.Greater(t, len(seen), 10, "кривая давления должна меняться со временем")

	// Тот же сид — та же кривая
	q := NewPressure(42, 3, 0.37)
	assert.Equal(t, p.At(12.3), q.At(12.3))
}

func TestStepSpendsAttackBudget(t *testing.T) {
	templates := enemy.Templates{enemy.Tank: {MaxHealth: 100, Damage: 1, MoveSpeed: 1, XPValue: 1, Scale: 1}}
	m := enemy.NewManager(templates)
	spawnN(t, m, enemy.Tank, 1)

	cfg := DefaultConfig()
	cfg.NoiseAmplitude = 0
	cfg.AttacksPerSecond = 4
	cfg.PlayerDamage = 3
	cfg.ContactChance = 0

	rec := &damageCounter{}
	s := NewSkirmish(cfg, m, nil, rec, rand.New(rand.NewSource(1)), nil)

	res := s.Step(time.Second)
	assert.Equal(t, 1.0, res.Pressure)
	assert.Equal(t, 4, res.Attacks)
	assert.Equal(t, 12, res.DamageDealt)
	assert.Zero(t, res.Kills)
	assert.Equal(t, 12, rec.total)

	// Дробный бюджет переносится: 0.5с + 0.5с = ещё 4 удара
	first := s.Step(500 * time.Millisecond)
	second := s.Step(500 * time.Millisecond)
	assert.Equal(t, 4, first.Attacks+second.Attacks)
	assert.Equal(t, 2*time.Second, s.Elapsed())
}

func TestStepKillsActors(t *testing.T) {
	m := enemy.NewManager(enemy.DefaultTemplates())
	spawnN(t, m, enemy.Fast, 3)

	cfg := DefaultConfig()
	cfg.NoiseAmplitude = 0
	cfg.AttacksPerSecond = 50
	cfg.PlayerDamage = 100
	cfg.ContactChance = 0

	s := NewSkirmish(cfg, m, nil, nil, rand.New(rand.NewSource(3)), nil)
	res := s.Step(time.Second)
	assert.Equal(t, 3, res.Kills)
	assert.Equal(t, 9, res.DamageDealt, "урон ограничен оставшимся здоровьем")
	assert.Zero(t, m.AliveCount())

	// Пустая арена: бюджет не копится
	assert.Zero(t, s.Step(time.Second).Attacks)
}

func TestContactDamageStopsWhenPlayerDies(t *testing.T) {
	m := enemy.NewManager(enemy.DefaultTemplates())
	spawnN(t, m, enemy.Tank, 5)

	pcfg := player.DefaultConfig()
	pcfg.MaxHealth = 4
	pcfg.InvincibilityDuration = 0
	p := player.NewPlayer(pcfg)

	died := make(chan struct{})
	p.OnDied(func() { close(died) })

	cfg := DefaultConfig()
	cfg.NoiseAmplitude = 0
	cfg.AttacksPerSecond = 0
	cfg.ContactChance = 10

	s := NewSkirmish(cfg, m, p, nil, rand.New(rand.NewSource(5)), nil)
	res := s.Step(time.Second)
	assert.Equal(t, 2, res.ContactHits, "танки бьют по 2, игрок с 4 HP падает на втором ударе")

	select {
	case <-died:
	default:
		t.Fatal("игрок должен погибнуть")
	}
	assert.True(t, p.IsDead())

	res = s.Step(time.Second)
	assert.Zero(t, res.ContactHits)
	assert.Equal(t, 5, m.AliveCount())
}

func TestRunStopsOnCancel(t *testing.T) {
	m := enemy.NewManager(enemy.DefaultTemplates())
	cfg := DefaultConfig()
	cfg.Tick = time.Millisecond
	s := NewSkirmish(cfg, m, nil, nil, rand.New(rand.NewSource(9)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Elapsed() >= 5*time.Millisecond }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены")
	}
}
