package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/horde-waves/internal/enemy"
	"github.com/annel0/horde-waves/internal/logging"
	"github.com/annel0/horde-waves/internal/wave"
)

// Приоритеты событий режиссёра
const (
	PriorityDefeat = 3
	PriorityWave   = 7
	PriorityRun    = 9
)

const publishTimeout = 2 * time.Second

// Publisher переводит уведомления режиссёра в события шины.
// Методы-уведомления не блокируются: события ставятся в очередь и
// публикуются отдельной горутиной. При переполнении очереди событие отбрасывается.
type Publisher struct {
	bus    EventBus
	source string
	logger *logging.Logger

	queue   chan *Envelope
	done    chan struct{}
	mu      sync.RWMutex
	runID   string
	closed  bool
	dropped uint64
}

// NewPublisher создаёт публикатора и запускает его горутину
func NewPublisher(bus EventBus, source string, queueSize int, logger *logging.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logging.Warn("⚠️ EventBus Publisher создан без логгера")
		logger = logging.Discard()
	}
	p := &Publisher{
		bus:    bus,
		source: source,
		logger: logger,
		queue:  make(chan *Envelope, queueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// SetRunID задаёт идентификатор забега, который попадает в CorrelationID
func (p *Publisher) SetRunID(runID string) {
	p.mu.Lock()
	p.runID = runID
	p.mu.Unlock()
}

// WaveStarted реализует director.Presenter
func (p *Publisher) WaveStarted(def wave.Definition, waveNumber int) {
	p.enqueue(EventWaveStarted, PriorityWave, WaveStartedPayload{
		WaveNumber:    waveNumber,
		Name:          def.Name,
		Type:          def.Type.String(),
		Subtitle:      def.Type.Subtitle(),
		EnemyCount:    def.EnemyCount,
		SpawnInterval: def.SpawnInterval.String(),
	})
}

// WaveCleared реализует director.ClearPresenter
func (p *Publisher) WaveCleared(def wave.Definition, waveNumber int) {
	p.enqueue(EventWaveCleared, PriorityWave, WaveClearedPayload{
		WaveNumber: waveNumber,
		Name:       def.Name,
		Type:       def.Type.String(),
	})
}

// EnemyDefeated реализует director.DefeatPresenter
func (p *Publisher) EnemyDefeated(variant enemy.Variant, waveNumber int) {
	p.enqueue(EventEnemyDefeated, PriorityDefeat, EnemyDefeatedPayload{
		WaveNumber: waveNumber,
		Variant:    variant.String(),
	})
}

// RunEnded публикует итоги забега
func (p *Publisher) RunEnded(payload RunEndedPayload) {
	p.enqueue(EventRunEnded, PriorityRun, payload)
}

// Dropped возвращает число событий, не поместившихся в очередь
func (p *Publisher) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

func (p *Publisher) enqueue(eventType string, priority int, payload interface{}) {
	ev, err := NewEnvelope(p.source, eventType, priority, payload)
	if err != nil {
		p.logger.Error("Ошибка сериализации события %s: %v", eventType, err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	ev.CorrelationID = p.runID

	select {
	case p.queue <- ev:
	default:
		atomic.AddUint64(&p.dropped, 1)
		p.logger.Warn("Очередь событий переполнена, %s отброшено", eventType)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.bus.Publish(ctx, ev); err != nil {
			p.logger.Warn("Не удалось опубликовать %s: %v", ev.EventType, err)
		}
		cancel()
	}
}

// Close дожидается публикации поставленных в очередь событий
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
