// Package player хранит состояние игрока, которое нужно движку волн:
// позицию, уровень, опыт и здоровье.
package player

import (
	"math"
	"sync"
	"time"

	"github.com/annel0/horde-waves/internal/vec"
)

// Config настраивает прогрессию и здоровье игрока
type Config struct {
	MaxHealth             int           `yaml:"max_health" json:"max_health"`
	XPToFirstLevel        int           `yaml:"xp_to_first_level" json:"xp_to_first_level"`
	XPGrowthFactor        float64       `yaml:"xp_growth_factor" json:"xp_growth_factor"`
	InvincibilityDuration time.Duration `yaml:"invincibility_duration" json:"invincibility_duration"`
	SpawnPosition         vec.Vec3      `yaml:"spawn_position" json:"spawn_position"`
}

// DefaultConfig возвращает настройки игрока по умолчанию
func DefaultConfig() Config {
	return Config{
		MaxHealth:             10,
		XPToFirstLevel:        5,
		XPGrowthFactor:        1.5,
		InvincibilityDuration: 500 * time.Millisecond,
	}
}

// DamageRecorder получает урон, засчитанный игроку
type DamageRecorder interface {
	RegisterDamageTaken(amount int)
}

// Snapshot представляет копию состояния игрока для API
type Snapshot struct {
	Position      vec.Vec3 `json:"position"`
	Level         int      `json:"level"`
	XP            int      `json:"xp"`
	XPToNextLevel int      `json:"xp_to_next_level"`
	TotalXP       int      `json:"total_xp"`
	Health        int      `json:"health"`
	MaxHealth     int      `json:"max_health"`
	Dead          bool     `json:"dead"`
}

// Player хранит потокобезопасное состояние игрока
type Player struct {
	cfg Config

	mu         sync.RWMutex
	position   vec.Vec3
	level      int
	xp         int
	xpToNext   int
	totalXP    int
	health     int
	dead       bool
	lastDamage time.Time

	damage    DamageRecorder
	onLevelUp []func(level int)
	onDied    []func()

	now func() time.Time
}

// NewPlayer создаёт игрока с полным здоровьем на первом уровне
func NewPlayer(cfg Config) *Player {
	if cfg.MaxHealth <= 0 {
		cfg.MaxHealth = DefaultConfig().MaxHealth
	}
	if cfg.XPToFirstLevel <= 0 {
		cfg.XPToFirstLevel = DefaultConfig().XPToFirstLevel
	}
	if cfg.XPGrowthFactor < 1 {
		cfg.XPGrowthFactor = 1
	}
	return &Player{
		cfg:      cfg,
		position: cfg.SpawnPosition,
		level:    1,
		xpToNext: cfg.XPToFirstLevel,
		health:   cfg.MaxHealth,
		now:      time.Now,
	}
}

// SetDamageRecorder задаёт получателя статистики урона
func (p *Player) SetDamageRecorder(r DamageRecorder) {
	p.mu.Lock()
	p.damage = r
	p.mu.Unlock()
}

// OnLevelUp регистрирует обработчик повышения уровня
func (p *Player) OnLevelUp(fn func(level int)) {
	p.mu.Lock()
	p.onLevelUp = append(p.onLevelUp, fn)
	p.mu.Unlock()
}

// OnDied регистрирует обработчик гибели игрока
func (p *Player) OnDied(fn func()) {
	p.mu.Lock()
	p.onDied = append(p.onDied, fn)
	p.mu.Unlock()
}

// Position возвращает текущую позицию
func (p *Player) Position() vec.Vec3 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.position
}

// SetPosition перемещает игрока
func (p *Player) SetPosition(pos vec.Vec3) {
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
}

// Level возвращает текущий уровень
func (p *Player) Level() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// Health возвращает текущее и максимальное здоровье
func (p *Player) Health() (current, maximum int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health, p.cfg.MaxHealth
}

// IsDead сообщает, погиб ли игрок
func (p *Player) IsDead() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dead
}

// Heal восстанавливает здоровье, не превышая максимум. Мёртвого игрока не лечит.
func (p *Player) Heal(amount int) {
	if amount <= 0 {
		return
	}
	p.mu.Lock()
	if !p.dead {
		p.health = min(p.health+amount, p.cfg.MaxHealth)
	}
	p.mu.Unlock()
}

// TakeDamage наносит урон с учётом окна неуязвимости.
// Возвращает true, если урон оказался смертельным.
func (p *Player) TakeDamage(amount int) bool {
	if amount <= 0 {
		return false
	}

	p.mu.Lock()
	now := p.now()
	if p.dead || (!p.lastDamage.IsZero() && now.Sub(p.lastDamage) < p.cfg.InvincibilityDuration) {
		p.mu.Unlock()
		return false
	}
	p.lastDamage = now
	p.health = max(p.health-amount, 0)
	lethal := p.health == 0
	if lethal {
		p.dead = true
	}
	recorder := p.damage
	handlers := append([]func(){}, p.onDied...)
	p.mu.Unlock()

	if recorder != nil {
		recorder.RegisterDamageTaken(amount)
	}
	if lethal {
		for _, fn := range handlers {
			fn()
		}
	}
	return lethal
}

// GainXP начисляет опыт и повышает уровень столько раз, сколько позволяет накопленный опыт
func (p *Player) GainXP(amount int) {
	if amount <= 0 {
		return
	}

	p.mu.Lock()
	p.totalXP += amount
	p.xp += amount

	var reached []int
	for p.xp >= p.xpToNext {
		p.xp -= p.xpToNext
		p.level++
		p.xpToNext = max(1, int(math.Round(float64(p.xpToNext)*p.cfg.XPGrowthFactor)))
		reached = append(reached, p.level)
	}
	handlers := append([]func(int){}, p.onLevelUp...)
	p.mu.Unlock()

	for _, level := range reached {
		for _, fn := range handlers {
			fn(level)
		}
	}
}

// Reset возвращает игрока в начальное состояние
func (p *Player) Reset() {
	p.mu.Lock()
	p.position = p.cfg.SpawnPosition
	p.level = 1
	p.xp = 0
	p.totalXP = 0
	p.xpToNext = p.cfg.XPToFirstLevel
	p.health = p.cfg.MaxHealth
	p.dead = false
	p.lastDamage = time.Time{}
	p.mu.Unlock()
}

// Snapshot возвращает копию состояния
func (p *Player) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		Position:      p.position,
		Level:         p.level,
		XP:            p.xp,
		XPToNextLevel: p.xpToNext,
		TotalXP:       p.totalXP,
		Health:        p.health,
		MaxHealth:     p.cfg.MaxHealth,
		Dead:          p.dead,
	}
}
