package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Envelope описывает универсальный контейнер события.
type Envelope struct {
	ID        string            `msgpack:"id"`       // Глобально уникальный идентификатор (UUID).
	Timestamp time.Time         `msgpack:"ts"`       // Время создания события (UTC).
	Source    string            `msgpack:"source"`   // Идентификатор сервера-источника.
	EventType string            `msgpack:"type"`     // Тип события (world.changed…).
	Version   int               `msgpack:"version"`  // Схема полезной нагрузки.
	Priority  int               `msgpack:"priority"` // 0=Low … 9=Critical (для backpressure).
	Payload   []byte            `msgpack:"payload"`  // Полезная нагрузка в msgpack.
	Metadata  map[string]string `msgpack:"metadata"` // Произвольные метаданные.
}

// NewEnvelope заполняет идентификатор и время события.
func NewEnvelope(source, eventType string, payload []byte) *Envelope {
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Payload:   payload,
	}
}

// Filter позволяет подписаться только на нужные события.
type Filter struct {
	Types   []string // Если пусто: все типы.
	Sources []string // Если пусто: все источники.
}

// Subscription возвращается при подписке; позволяет отписаться.
type Subscription interface {
	Unsubscribe()
}

// Handler потребляет события.
type Handler func(ctx context.Context, ev *Envelope)

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus определяет абстракцию шины событий.
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

//================ In-Memory implementation =================//

type memoryBus struct {
	mu          sync.RWMutex
	subscribers map[int]subscriber
	nextID      int
	stats       Stats
	buffer      chan *Envelope
	sendMu      sync.RWMutex // держится отправителями; Close ждёт их перед закрытием buffer
	closed      bool
	done        chan struct{}
}

type subscriber struct {
	filter  Filter
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMemoryBus создаёт in-memory Bus с указанным буфером.
func NewMemoryBus(capacity int) EventBus {
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, capacity),
		done:        make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	mb.sendMu.RLock()
	defer mb.sendMu.RUnlock()
	if mb.closed {
		mb.count(&mb.stats.Dropped)
		return nil
	}
	select {
	case mb.buffer <- ev:
		mb.count(&mb.stats.Published)
		return nil
	default:
	}
	// Буфер заполнен: дропаём низкий приоритет (<5)
	if ev.Priority < 5 {
		mb.count(&mb.stats.Dropped)
		return nil
	}
	// Для high-priority ждём освобождения места или отмены контекста
	select {
	case mb.buffer <- ev:
		mb.count(&mb.stats.Published)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (mb *memoryBus) count(c *uint64) {
	mb.mu.Lock()
	*c++
	mb.mu.Unlock()
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	mb.mu.Lock()
	id := mb.nextID
	mb.nextID++
	cctx, cancel := context.WithCancel(ctx)
	mb.subscribers[id] = subscriber{filter: f, handler: h, ctx: cctx, cancel: cancel}
	mb.mu.Unlock()

	return &memSub{bus: mb, id: id}, nil
}

func (mb *memoryBus) Metrics() Stats {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	s := mb.stats
	s.InFlight = len(mb.buffer)
	return s
}

// Close прекращает приём событий и дожидается рассылки уже принятых.
func (mb *memoryBus) Close() error {
	mb.sendMu.Lock()
	if mb.closed {
		mb.sendMu.Unlock()
		return nil
	}
	mb.closed = true
	close(mb.buffer)
	mb.sendMu.Unlock()
	<-mb.done
	return nil
}

// dispatchLoop рассылает события подписчикам в порядке публикации.
// Обработчики вызываются последовательно и не должны блокироваться.
func (mb *memoryBus) dispatchLoop() {
	defer close(mb.done)
	for ev := range mb.buffer {
		mb.mu.RLock()
		subs := make([]subscriber, 0, len(mb.subscribers))
		for _, sub := range mb.subscribers {
			subs = append(subs, sub)
		}
		mb.mu.RUnlock()

		for _, sub := range subs {
			if !matchFilter(ev, sub.filter) {
				continue
			}
			if sub.ctx.Err() != nil {
				continue
			}
			sub.handler(sub.ctx, ev)
			mb.count(&mb.stats.Consumed)
		}
	}
}

func matchFilter(ev *Envelope, f Filter) bool {
	match := func(val string, arr []string) bool {
		if len(arr) == 0 {
			return true
		}
		for _, v := range arr {
			if v == val {
				return true
			}
		}
		return false
	}
	return match(ev.EventType, f.Types) && match(ev.Source, f.Sources)
}

type memSub struct {
	bus *memoryBus
	id  int
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	if sub, ok := s.bus.subscribers[s.id]; ok {
		sub.cancel()
		delete(s.bus.subscribers, s.id)
	}
	s.bus.mu.Unlock()
}
