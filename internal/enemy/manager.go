package enemy

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/annel0/horde-waves/internal/vec"
)

// ErrUnknownTemplate возвращается, если для шаблона нет базовых характеристик
var ErrUnknownTemplate = errors.New("no template for variant")

// Actor представляет in-memory актора, созданного Manager
type Actor struct {
	id       uint64
	variant  Variant
	position vec.Vec3
	rotation vec.Rotation

	mu      sync.RWMutex
	stats   Stats
	health  int
	dead    bool
	died    chan struct{}
	onceDie sync.Once

	manager *Manager
}

func (a *Actor) ID() uint64 { return a.id }

func (a *Actor) Variant() Variant { return a.variant }

func (a *Actor) Position() vec.Vec3 { return a.position }

func (a *Actor) Rotation() vec.Rotation { return a.rotation }

func (a *Actor) Died() <-chan struct{} { return a.died }

// Stats возвращает снимок характеристик
func (a *Actor) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// SetStats заменяет характеристики и восстанавливает здоровье до нового максимума
func (a *Actor) SetStats(s Stats) {
	a.mu.Lock()
	a.stats = s
	a.health = s.MaxHealth
	a.mu.Unlock()
}

// Health возвращает текущее здоровье
func (a *Actor) Health() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.health
}

// IsDead сообщает, погиб ли актор
func (a *Actor) IsDead() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dead
}

// TakeDamage наносит урон; возвращает true, если удар оказался смертельным
func (a *Actor) TakeDamage(amount int) bool {
	if amount <= 0 {
		return false
	}

	a.mu.Lock()
	if a.dead {
		a.mu.Unlock()
		return false
	}
	a.health -= amount
	lethal := a.health <= 0
	a.mu.Unlock()

	if lethal {
		a.kill()
	}
	return lethal
}

// Despawn убирает актора из мира без засчитывания гибели
func (a *Actor) Despawn() {
	a.mu.Lock()
	a.dead = true
	a.mu.Unlock()

	if a.manager != nil {
		a.manager.remove(a.id)
	}
}

func (a *Actor) kill() {
	a.onceDie.Do(func() {
		a.mu.Lock()
		a.dead = true
		a.health = 0
		a.mu.Unlock()

		if a.manager != nil {
			a.manager.retire(a.id)
		}
		close(a.died)
	})
}

// Manager управляет in-memory акторами: фабрика и реестр
type Manager struct {
	templates Templates
	actors    map[uint64]*Actor
	nextID    uint64
	spawned   uint64
	killed    uint64
	mu        sync.RWMutex
}

// NewManager создаёт менеджер с заданными шаблонами
func NewManager(templates Templates) *Manager {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Manager{
		templates: templates,
		actors:    make(map[uint64]*Actor),
	}
}

// Spawn реализует Factory
func (m *Manager) Spawn(ctx context.Context, variant Variant, pos vec.Vec3, rot vec.Rotation) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, ok := m.templates[variant]
	if !ok {
		return nil, ErrUnknownTemplate
	}
	if base.Scale == 0 {
		base.Scale = 1
	}

	actor := &Actor{
		id:       atomic.AddUint64(&m.nextID, 1),
		variant:  variant,
		position: pos,
		rotation: rot,
		stats:    base,
		health:   base.MaxHealth,
		died:     make(chan struct{}),
		manager:  m,
	}

	m.mu.Lock()
	m.actors[actor.id] = actor
	m.spawned++
	m.mu.Unlock()

	return actor, nil
}

// Get возвращает живого актора по ID
func (m *Manager) Get(id uint64) (*Actor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors[id]
	return a, ok
}

// Kill убивает актора; false, если такого нет среди живых
func (m *Manager) Kill(id uint64) bool {
	a, ok := m.Get(id)
	if !ok {
		return false
	}
	a.kill()
	return true
}

// Alive возвращает живых акторов, отсортированных по ID
func (m *Manager) Alive() []*Actor {
	m.mu.RLock()
	out := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		out = append(out, a)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// AliveCount возвращает число живых акторов
func (m *Manager) AliveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.actors)
}

// RandomAlive возвращает случайного живого актора
func (m *Manager) RandomAlive(rng *rand.Rand) (*Actor, bool) {
	alive := m.Alive()
	if len(alive) == 0 {
		return nil, false
	}
	return alive[rng.Intn(len(alive))], true
}

// Counters возвращает суммарное число созданных и убитых акторов
func (m *Manager) Counters() (spawned, killed uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.spawned, m.killed
}

func (m *Manager) retire(id uint64) {
	m.mu.Lock()
	delete(m.actors, id)
	m.killed++
	m.mu.Unlock()
}

func (m *Manager) remove(id uint64) {
	m.mu.Lock()
	delete(m.actors, id)
	m.mu.Unlock()
}
