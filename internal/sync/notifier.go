package sync

import (
	"context"
	"sync"

	"github.com/annel0/voxelgate/internal/eventbus"
	"github.com/annel0/voxelgate/internal/logging"
	"github.com/annel0/voxelgate/internal/world"
)

// Notifier слушает события world.changed и будит циклы синхронизации
// соединений. Сигналы схлопываются: пока слушатель не проснулся, сколько бы
// событий ни пришло, в канале лежит одно.
type Notifier struct {
	sub eventbus.Subscription

	mu        sync.Mutex
	listeners map[int]chan struct{}
	nextID    int
	received  uint64
}

// NewNotifier подписывается на изменения мира в шине.
func NewNotifier(ctx context.Context, bus eventbus.EventBus) (*Notifier, error) {
	n := &Notifier{listeners: make(map[int]chan struct{})}
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: []string{world.EventWorldChanged}}, n.handle)
	if err != nil {
		return nil, err
	}
	n.sub = sub
	logging.GetSyncLogger().Info("🔄 Notifier подписан на %s", world.EventWorldChanged)
	return n, nil
}

func (n *Notifier) handle(_ context.Context, ev *eventbus.Envelope) {
	n.mu.Lock()
	n.received++
	for _, ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	n.mu.Unlock()
	logging.GetSyncLogger().Trace("world.changed от %s (%s)", ev.Source, ev.Metadata["kind"])
}

// Listen регистрирует слушателя. Возвращённую функцию нужно вызвать при
// закрытии соединения.
func (n *Notifier) Listen() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = ch
	n.mu.Unlock()
	return ch, func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// Listeners: число зарегистрированных слушателей.
func (n *Notifier) Listeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Received: число полученных событий.
func (n *Notifier) Received() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.received
}

// Stop отписывается от шины.
func (n *Notifier) Stop() { n.sub.Unsubscribe() }
