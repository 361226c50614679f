package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, bus EventBus, f Filter) (func() []*Envelope, Subscription) {
	t.Helper()
	var mu sync.Mutex
	var got []*Envelope
	sub, err := bus.Subscribe(context.Background(), f, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	return func() []*Envelope {
		mu.Lock()
		defer mu.Unlock()
		return append([]*Envelope(nil), got...)
	}, sub
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(16)
	all, _ := collect(t, bus, Filter{})

	for i := 0; i < 5; i++ {
		ev := NewEnvelope("s1", "world.changed", []byte{byte(i)})
		require.NoError(t, bus.Publish(context.Background(), ev))
	}
	require.NoError(t, bus.Close())

	got := all()
	require.Len(t, got, 5)
	for i, ev := range got {
		assert.Equal(t, []byte{byte(i)}, ev.Payload, "порядок публикации сохраняется")
	}
	assert.Equal(t, uint64(5), bus.Metrics().Published)
	assert.Equal(t, uint64(5), bus.Metrics().Consumed)
}

func TestMemoryBusFilters(t *testing.T) {
	bus := NewMemoryBus(16)
	byType, _ := collect(t, bus, Filter{Types: []string{"world.changed"}})
	bySource, _ := collect(t, bus, Filter{Sources: []string{"s2"}})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEnvelope("s1", "world.changed", nil)))
	require.NoError(t, bus.Publish(ctx, NewEnvelope("s2", "player.joined", nil)))
	require.NoError(t, bus.Close())

	require.Len(t, byType(), 1)
	assert.Equal(t, "s1", byType()[0].Source)
	require.Len(t, bySource(), 1)
	assert.Equal(t, "player.joined", bySource()[0].EventType)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	got, sub := collect(t, bus, Filter{})
	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope("s", "x", nil)))
	require.NoError(t, bus.Close())
	assert.Empty(t, got())
}

func TestMemoryBusDropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	block := make(chan struct{})
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) { <-block })
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEnvelope("s", "x", nil))) // забирает диспетчер
	// ждём, пока диспетчер займёт первое событие
	require.Eventually(t, func() bool { return bus.Metrics().InFlight == 0 }, time.Second, time.Millisecond)
	require.NoError(t, bus.Publish(ctx, NewEnvelope("s", "x", nil))) // лежит в буфере
	require.NoError(t, bus.Publish(ctx, NewEnvelope("s", "x", nil))) // отброшено

	assert.Equal(t, uint64(1), bus.Metrics().Dropped)

	high := NewEnvelope("s", "x", nil)
	high.Priority = 9
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Publish(cctx, high), context.DeadlineExceeded, "высокий приоритет ждёт места")

	close(block)
	require.NoError(t, bus.Close())
	assert.NoError(t, bus.Publish(ctx, NewEnvelope("s", "x", nil)), "после закрытия публикация молча отбрасывается")
	assert.Equal(t, uint64(2), bus.Metrics().Dropped)
}

func TestMetricsExporterObserve(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()
	me := NewMetricsExporter(bus, reg)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, NewEnvelope("s", "x", nil)))
	require.NoError(t, bus.Publish(ctx, NewEnvelope("s", "x", nil)))
	require.NoError(t, bus.Close())

	prev := me.observe(Stats{})
	assert.Equal(t, 2.0, testutil.ToFloat64(me.published))
	me.observe(prev)
	assert.Equal(t, 2.0, testutil.ToFloat64(me.published), "повторный снимок без изменений не увеличивает счётчик")
}
