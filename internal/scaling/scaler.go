// Package scaling вычисляет множители сложности противников
// по номеру волны и уровню игрока.
package scaling

import (
	"math"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/wave"
)

// Multipliers содержит итоговые множители характеристик актора
type Multipliers struct {
	Health float64 `json:"health"`
	Damage float64 `json:"damage"`
	Speed  float64 `json:"speed"`
	XP     float64 `json:"xp"`
	Scale  float64 `json:"scale"`
}

// Identity возвращает единичные множители
func Identity() Multipliers {
	return Multipliers{Health: 1, Damage: 1, Speed: 1, XP: 1, Scale: 1}
}

// Override — мультипликативная поправка поверх линейной формулы.
// Нулевое поле трактуется как 1.
type Override struct {
	Health float64 `yaml:"health" json:"health"`
	Damage float64 `yaml:"damage" json:"damage"`
	Speed  float64 `yaml:"speed" json:"speed"`
	XP     float64 `yaml:"xp" json:"xp"`
	Scale  float64 `yaml:"scale" json:"scale"`
}

func (o Override) apply(m Multipliers) Multipliers {
	m.Health *= orOne(o.Health)
	m.Damage *= orOne(o.Damage)
	m.Speed *= orOne(o.Speed)
	m.XP *= orOne(o.XP)
	m.Scale *= orOne(o.Scale)
	return m
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// Rates задаёт прирост множителей за волну или за уровень игрока
type Rates struct {
	Health float64 `yaml:"health" json:"health"`
	Damage float64 `yaml:"damage" json:"damage"`
	Speed  float64 `yaml:"speed" json:"speed"`
	XP     float64 `yaml:"xp" json:"xp"`
}

// Config настраивает масштабирование
type Config struct {
	PerWave  Rates `yaml:"per_wave" json:"per_wave"`
	PerLevel Rates `yaml:"per_level" json:"per_level"`

	Power           Override `yaml:"power" json:"power"`
	MiniBossPrimary Override `yaml:"miniboss_primary" json:"miniboss_primary"`
	MiniBossEscort  Override `yaml:"miniboss_escort" json:"miniboss_escort"`
	Boss            Override `yaml:"boss" json:"boss"`
	Fast            Override `yaml:"fast" json:"fast"`
	Ranged          Override `yaml:"ranged" json:"ranged"`
	Panic           Override `yaml:"panic" json:"panic"`
}

// DefaultConfig возвращает настройки масштабирования по умолчанию
func DefaultConfig() Config {
	return Config{
		PerWave:         Rates{Health: 0.15, Damage: 0.10, Speed: 0.05, XP: 0.05},
		PerLevel:        Rates{Health: 0.08, Damage: 0.06, Speed: 0.04, XP: 0.03},
		Power:           Override{Health: 0.5, Damage: 0.8, Speed: 0.9, XP: 1.2},
		MiniBossPrimary: Override{Health: 3, Damage: 1.8, Speed: 0.9, XP: 4, Scale: 1.5},
		MiniBossEscort:  Override{Health: 1.2, Damage: 1.2, XP: 1.5},
		Boss:            Override{Health: 5, Damage: 2.2, Speed: 1.1, XP: 8, Scale: 2},
	}
}

// Scaler вычисляет множители сложности без побочных эффектов
type Scaler struct {
	cfg Config
}

// NewScaler создаёт масштабировщик
func NewScaler(cfg Config) *Scaler {
	return &Scaler{cfg: cfg}
}

// Base возвращает линейные множители без поправок типа волны.
// waveNumber и playerLevel ограничиваются снизу единицей.
func (s *Scaler) Base(waveNumber, playerLevel int) Multipliers {
	if waveNumber < 1 {
		waveNumber = 1
	}
	if playerLevel < 1 {
		playerLevel = 1
	}

	waves := float64(waveNumber - 1)
	levels := float64(playerLevel - 1)
	w, l := s.cfg.PerWave, s.cfg.PerLevel

	return Multipliers{
		Health: 1 + waves*w.Health + levels*l.Health,
		Damage: 1 + waves*w.Damage + levels*l.Damage,
		Speed:  1 + waves*w.Speed + levels*l.Speed,
		XP:     1 + waves*w.XP + levels*l.XP,
		Scale:  1,
	}
}

// Multipliers возвращает множители с учётом типа волны.
// isPrimary имеет смысл только для MiniBoss-волн.
func (s *Scaler) Multipliers(waveNumber, playerLevel int, t wave.Type, isPrimary bool) Multipliers {
	m := s.Base(waveNumber, playerLevel)

	switch t {
	case wave.Power:
		m = s.cfg.Power.apply(m)
	case wave.MiniBoss:
		if isPrimary {
			m = s.cfg.MiniBossPrimary.apply(m)
		} else {
			m = s.cfg.MiniBossEscort.apply(m)
		}
	case wave.Boss:
		m = s.cfg.Boss.apply(m)
	case wave.FastVariant:
		m = s.cfg.Fast.apply(m)
	case wave.RangedVariant:
		m = s.cfg.Ranged.apply(m)
	case wave.PanicMix:
		m = s.cfg.Panic.apply(m)
	}
	return m
}

// Apply применяет множители к базовым характеристикам.
// Здоровье, урон и опыт никогда не округляются ниже единицы.
func Apply(base enemy.Stats, m Multipliers) enemy.Stats {
	scale := base.Scale
	if scale == 0 {
		scale = 1
	}
	return enemy.Stats{
		MaxHealth: ScaleInt(base.MaxHealth, m.Health),
		Damage:    ScaleInt(base.Damage, m.Damage),
		XPValue:   ScaleInt(base.XPValue, m.XP),
		MoveSpeed: base.MoveSpeed * m.Speed,
		Scale:     scale * orOne(m.Scale),
	}
}

// ScaleInt возвращает max(1, round(base*mult))
func ScaleInt(base int, mult float64) int {
	v := math.Round(float64(base) * mult)
	if math.IsNaN(v) || v < 1 {
		return 1
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
