// Package wave содержит классификацию и генерацию волн бесконечного режима
package wave

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type определяет тип волны. Порядок значений смысла не несёт,
// приоритет классификации задаётся в Classifier.
type Type int

const (
	Normal Type = iota
	Break
	Power
	MiniBoss
	Boss
	FastVariant
	RangedVariant
	PanicMix
)

// AllTypes перечисляет все типы волн
var AllTypes = []Type{Normal, Break, Power, MiniBoss, Boss, FastVariant, RangedVariant, PanicMix}

var typeNames = map[Type]string{
	Normal:        "normal",
	Break:         "break",
	Power:         "power",
	MiniBoss:      "miniboss",
	Boss:          "boss",
	FastVariant:   "fast",
	RangedVariant: "ranged",
	PanicMix:      "panic",
}

// ErrUnknownType возвращается при разборе неизвестного типа волны
var ErrUnknownType = errors.New("unknown wave type")

// String возвращает строковое представление типа
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("wave_type(%d)", int(t))
}

// ParseType разбирает тип волны из строки (регистр не важен)
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return Normal, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// MarshalText реализует encoding.TextMarshaler (JSON/YAML)
func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DisplayName возвращает заголовок баннера для типа волны
func (t Type) DisplayName() string {
	switch t {
	case MiniBoss:
		return "MINI-BOSS"
	case FastVariant:
		return "FAST HORDE"
	case RangedVariant:
		return "RANGED"
	case Power:
		return "POWER SURGE"
	case PanicMix:
		return "PANIC"
	default:
		return strings.ToUpper(t.String())
	}
}

// Subtitle возвращает подзаголовок баннера для типа волны
func (t Type) Subtitle() string {
	switch t {
	case Break:
		return "Catch your breath."
	case MiniBoss:
		return "A champion leads the pack."
	case Boss:
		return "Something big is coming."
	case Power:
		return "Weaker, but so many of them."
	case FastVariant:
		return "They are quick. Keep moving."
	case RangedVariant:
		return "Watch for projectiles."
	case PanicMix:
		return "Ambush!"
	default:
		return "Survive."
	}
}

// Definition описывает конкретную волну
type Definition struct {
	Name          string        `json:"name" yaml:"name"`
	Type          Type          `json:"type" yaml:"type"`
	EnemyCount    int           `json:"enemy_count" yaml:"enemy_count"`
	SpawnInterval time.Duration `json:"spawn_interval" yaml:"spawn_interval"`
}

// ErrInvalidDefinition возвращается Validate
var ErrInvalidDefinition = errors.New("invalid wave definition")

// Validate проверяет инварианты определения волны
func (d Definition) Validate() error {
	if d.EnemyCount < 0 {
		return fmt.Errorf("%w: negative enemy count %d", ErrInvalidDefinition, d.EnemyCount)
	}
	if d.SpawnInterval < 0 {
		return fmt.Errorf("%w: negative spawn interval %s", ErrInvalidDefinition, d.SpawnInterval)
	}
	if d.Type == Break && (d.EnemyCount != 0 || d.SpawnInterval != 0) {
		return fmt.Errorf("%w: break wave must be empty", ErrInvalidDefinition)
	}
	if _, ok := typeNames[d.Type]; !ok {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, d.Type)
	}
	return nil
}

// Normalize приводит определение к инвариантам: пустая Break-волна,
// неотрицательные значения, имя по умолчанию.
func (d Definition) Normalize(waveNumber int) Definition {
	if d.Type == Break {
		d.EnemyCount = 0
		d.SpawnInterval = 0
	}
	if d.EnemyCount < 0 {
		d.EnemyCount = 0
	}
	if d.SpawnInterval < 0 {
		d.SpawnInterval = 0
	}
	if d.Name == "" {
		d.Name = Name(waveNumber, d.Type)
	}
	return d
}

// Name формирует имя волны для баннера и логов
func Name(waveNumber int, t Type) string {
	return fmt.Sprintf("Wave %d - %s", waveNumber, t.DisplayName())
}

// Progression содержит бегущие счётчики прогрессии генератора
type Progression struct {
	WaveNumber     int           `json:"wave_number"`
	BaseEnemyCount int           `json:"base_enemy_count"`
	SpawnInterval  time.Duration `json:"spawn_interval"`
}
