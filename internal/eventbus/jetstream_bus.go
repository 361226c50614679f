package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack"
)

// JetStreamBus реализует EventBus поверх NATS JetStream.
// Несколько процессов сервера, подключённых к одному стриму, видят события друг друга.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	prefix    string
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к кластеру NATS и гарантирует наличие стрима.
// url: nats://127.0.0.1:4222, stream: "WORLD". Subject события: <stream>.<type>.
func NewJetStreamBus(url, stream string, retention time.Duration) (*JetStreamBus, error) {
	if stream == "" {
		stream = "WORLD"
	}
	prefix := strings.ToLower(stream)

	nc, err := nats.Connect(url, nats.Name("voxelgate"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err = js.StreamInfo(stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{prefix + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Drain()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	return &JetStreamBus{nc: nc, js: js, stream: stream, prefix: prefix}, nil
}

func (jb *JetStreamBus) subject(eventType string) string {
	return jb.prefix + "." + eventType
}

// Publish сериализует Envelope в msgpack и публикует в subject <stream>.<type>.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := msgpack.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	if _, err = jb.js.Publish(jb.subject(ev.EventType), data, nats.Context(ctx)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт эфемерного потребителя, получающего только новые события.
// Фильтр по типу с одним значением сужает subject, остальное проверяется на месте.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := jb.prefix + ".>"
	if len(f.Types) == 1 {
		subj = jb.subject(f.Types[0])
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := msgpack.Unmarshal(msg.Data, &ev); err != nil {
			atomic.AddUint64(&jb.dropped, 1)
			return
		}
		if !matchFilter(&ev, f) || ctx.Err() != nil {
			return
		}
		h(ctx, &ev)
		atomic.AddUint64(&jb.consumed, 1)
	}, nats.DeliverNew(), nats.AckNone())
	if err != nil {
		return nil, err
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
		InFlight:  0, // очередь держит сам JetStream
	}
}

// Close дожидается доставки исходящих сообщений и закрывает соединение.
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
