// Package enemy описывает контракт подсистемы акторов-противников,
// которую потребляет движок волн, и её in-memory реализацию.
package enemy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/horde-waves/internal/vec"
)

// Variant представляет шаблон актора, который запрашивает спавнер
type Variant int

const (
	Basic Variant = iota
	Fast
	Tank
	Ranged
	BossVariant
)

var variantNames = map[Variant]string{
	Basic:       "basic",
	Fast:        "fast",
	Tank:        "tank",
	Ranged:      "ranged",
	BossVariant: "boss",
}

// ErrUnknownVariant возвращается при разборе неизвестного шаблона
var ErrUnknownVariant = errors.New("unknown enemy variant")

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant разбирает шаблон из строки
func ParseVariant(s string) (Variant, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return Basic, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// MarshalText реализует encoding.TextMarshaler
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Stats содержит изменяемые характеристики актора
type Stats struct {
	MaxHealth int     `json:"max_health" yaml:"max_health"`
	Damage    int     `json:"damage" yaml:"damage"`
	MoveSpeed float64 `json:"move_speed" yaml:"move_speed"`
	XPValue   int     `json:"xp_value" yaml:"xp_value"`
	Scale     float64 `json:"scale" yaml:"scale"`
}

// Handle представляет непрозрачную ссылку на заспавненного актора
type Handle interface {
	// ID уникален в пределах фабрики
	ID() uint64
	Variant() Variant
	Position() vec.Vec3
	Stats() Stats
	SetStats(Stats)
	// Died закрывается ровно один раз, когда актор погибает
	Died() <-chan struct{}
	// Despawn убирает актора без засчитывания убийства
	Despawn()
}

// Factory создаёт акторов по запросу спавнера
type Factory interface {
	Spawn(ctx context.Context, variant Variant, pos vec.Vec3, rot vec.Rotation) (Handle, error)
}

// Templates содержит базовые характеристики шаблонов
type Templates map[Variant]Stats

// DefaultTemplates возвращает базовые характеристики по умолчанию
func DefaultTemplates() Templates {
	return Templates{
		Basic:       {MaxHealth: 5, Damage: 1, MoveSpeed: 3.5, XPValue: 1, Scale: 1},
		Fast:        {MaxHealth: 3, Damage: 1, MoveSpeed: 6.0, XPValue: 1, Scale: 0.8},
		Tank:        {MaxHealth: 15, Damage: 2, MoveSpeed: 2.0, XPValue: 3, Scale: 1.3},
		Ranged:      {MaxHealth: 4, Damage: 2, MoveSpeed: 3.0, XPValue: 2, Scale: 1},
		BossVariant: {MaxHealth: 60, Damage: 4, MoveSpeed: 2.5, XPValue: 10, Scale: 1},
	}
}
