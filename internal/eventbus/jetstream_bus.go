package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
)

// SubjectPrefix — префикс subject'ов событий волн
const SubjectPrefix = "waves"

const drainTimeout = 5 * time.Second

// JetStreamConfig содержит параметры подключения к NATS JetStream
type JetStreamConfig struct {
	URL       string        `yaml:"url"`
	Stream    string        `yaml:"stream"`
	Retention time.Duration `yaml:"retention"`
	// CompressThreshold — размер полезной нагрузки, начиная с которого
	// она сжимается zstd; 0 отключает сжатие
	CompressThreshold int `yaml:"compress_threshold"`
}

// DefaultJetStreamConfig возвращает параметры по умолчанию
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:       nats.DefaultURL,
		Stream:    "WAVES",
		Retention: 24 * time.Hour,
	}
}

// JetStreamBus реализует EventBus поверх NATS JetStream.
type JetStreamBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string
	codec  *Codec
	closed chan struct{}

	published uint64
	consumed  uint64
	dropped   uint64

	closeOnce sync.Once
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима
// с subject'ами waves.*.
func NewJetStreamBus(cfg JetStreamConfig) (*JetStreamBus, error) {
	if cfg.Stream == "" {
		cfg.Stream = "WAVES"
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	codec, err := NewCodec(cfg.CompressThreshold)
	if err != nil {
		return nil, err
	}

	closed := make(chan struct{})
	var closedOnce sync.Once
	nc, err := nats.Connect(cfg.URL,
		nats.Name("horde-waves"),
		nats.ClosedHandler(func(*nats.Conn) { closedOnce.Do(func() { close(closed) }) }),
	)
	if err != nil {
		codec.Close()
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		codec.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  []string{SubjectPrefix + ".*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    cfg.Retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			codec.Close()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: cfg.Stream, codec: codec, closed: closed}, nil
}

func subjectFor(eventType string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// Publish кодирует Envelope и публикует в subject waves.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := jb.codec.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	if _, err = jb.js.Publish(subjectFor(ev.EventType), data, nats.Context(ctx)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт эфемерный consumer на новые события и вызывает handler асинхронно.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := SubjectPrefix + ".*"
	if len(f.Types) == 1 {
		subj = subjectFor(f.Types[0])
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		ev, err := jb.codec.Unmarshal(msg.Data)
		if err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			_ = msg.Term()
			return
		}
		if matchFilter(ev, f) {
			h(ctx, ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.ManualAck(), nats.DeliverNew(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subj, err)
	}

	return &jetSub{natSub}, nil
}

// jetSub обёртка вокруг *nats.Subscription чтобы удовлетворить наш интерфейс.
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  0, // jetstream keeps its own queue
	}
}

// Close дожидается обработки полученных сообщений и закрывает соединение
func (jb *JetStreamBus) Close() error {
	var err error
	jb.closeOnce.Do(func() {
		if err = jb.nc.Drain(); err != nil {
			jb.nc.Close()
		}
		select {
		case <-jb.closed:
		case <-time.After(drainTimeout):
			jb.nc.Close()
		}
		jb.codec.Close()
	})
	return err
}
