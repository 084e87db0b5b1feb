package scaling

import (
	"math"
	"testing"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/wave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseFormula(t *testing.T) {
	s := NewScaler(DefaultConfig())

	m := s.Base(1, 1)
	assert.Equal(t, Identity(), m)

	m = s.Base(3, 4)
	assert.InDelta(t, 1+2*0.15+3*0.08, m.Health, 1e-9)
	assert.InDelta(t, 1+2*0.10+3*0.06, m.Damage, 1e-9)
	assert.InDelta(t, 1+2*0.05+3*0.04, m.Speed, 1e-9)
	assert.InDelta(t, 1+2*0.05+3*0.03, m.XP, 1e-9)

	// уровень ниже 1 ограничивается
	assert.Equal(t, s.Base(2, 1), s.Base(2, -5))
	assert.Equal(t, s.Base(1, 1), s.Base(0, 1))
}

func TestMultipliersMonotonic(t *testing.T) {
	s := NewScaler(DefaultConfig())

	for level := 1; level <= 20; level++ {
		prev := s.Base(1, level)
		for w := 2; w <= 60; w++ {
			cur := s.Base(w, level)
			require.GreaterOrEqual(t, cur.Health, prev.Health)
			require.GreaterOrEqual(t, cur.Damage, prev.Damage)
			require.GreaterOrEqual(t, cur.Speed, prev.Speed)
			require.GreaterOrEqual(t, cur.XP, prev.XP)
			prev = cur
		}
	}

	for w := 1; w <= 60; w++ {
		prev := s.Base(w, 1)
		for level := 2; level <= 20; level++ {
			cur := s.Base(w, level)
			require.GreaterOrEqual(t, cur.Health, prev.Health)
			require.GreaterOrEqual(t, cur.Damage, prev.Damage)
			require.GreaterOrEqual(t, cur.Speed, prev.Speed)
			require.GreaterOrEqual(t, cur.XP, prev.XP)
			prev = cur
		}
	}
}

func TestBossOverrideScenario(t *testing.T) {
	s := NewScaler(DefaultConfig())

	base := s.Base(10, 3)
	boss := s.Multipliers(10, 3, wave.Boss, false)

	assert.InDelta(t, base.Health*5, boss.Health, 1e-9)
	assert.InDelta(t, base.Damage*2.2, boss.Damage, 1e-9)
	assert.InDelta(t, base.XP*8, boss.XP, 1e-9)
	assert.Equal(t, 2.0, boss.Scale)
}

func TestMiniBossPrimaryAndEscort(t *testing.T) {
	s := NewScaler(DefaultConfig())
	base := s.Base(7, 1)

	primary := s.Multipliers(7, 1, wave.MiniBoss, true)
	escort := s.Multipliers(7, 1, wave.MiniBoss, false)

	assert.InDelta(t, base.Health*3, primary.Health, 1e-9)
	assert.InDelta(t, base.XP*4, primary.XP, 1e-9)
	assert.Equal(t, 1.5, primary.Scale)

	assert.InDelta(t, base.Health*1.2, escort.Health, 1e-9)
	assert.InDelta(t, base.Speed, escort.Speed, 1e-9)
	assert.Equal(t, 1.0, escort.Scale)

	// isPrimary вне MiniBoss-волны ничего не меняет
	assert.Equal(t, s.Multipliers(7, 1, wave.Normal, false), s.Multipliers(7, 1, wave.Normal, true))
}

func TestPowerWaveIsWeakerButRewarding(t *testing.T) {
	s := NewScaler(DefaultConfig())
	base := s.Base(4, 2)
	power := s.Multipliers(4, 2, wave.Power, false)

	assert.Less(t, power.Health, base.Health)
	assert.Less(t, power.Damage, base.Damage)
	assert.Greater(t, power.XP, base.XP)
}

func TestApplyNeverBelowOne(t *testing.T) {
	base := enemy.Stats{MaxHealth: 5, Damage: 1, MoveSpeed: 3, XPValue: 1, Scale: 1}

	for _, mult := range []float64{0, 0.01, 0.09, -3, math.NaN()} {
		m := Multipliers{Health: mult, Damage: mult, Speed: 1, XP: mult, Scale: 1}
		out := Apply(base, m)
		assert.Equal(t, 1, out.MaxHealth, "mult %v", mult)
		assert.Equal(t, 1, out.Damage, "mult %v", mult)
		assert.Equal(t, 1, out.XPValue, "mult %v", mult)
	}

	// округление раньше ограничения снизу: round(5 × 0.49) = 2
	out := Apply(base, Multipliers{Health: 0.49, Damage: 0.49, Speed: 1, XP: 0.49, Scale: 1})
	assert.Equal(t, 2, out.MaxHealth)
	assert.Equal(t, 1, out.Damage)
	assert.Equal(t, 1, out.XPValue)

	out = Apply(base, Multipliers{Health: 2.5, Damage: 3, Speed: 1.5, XP: 4, Scale: 2})
	assert.Equal(t, 13, out.MaxHealth) // round(12.5) = 13
	assert.Equal(t, 3, out.Damage)
	assert.Equal(t, 4, out.XPValue)
	assert.InDelta(t, 4.5, out.MoveSpeed, 1e-9)
	assert.Equal(t, 2.0, out.Scale)
}
