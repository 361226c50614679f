package eventbus

import (
	"context"

	"github.com/annel0/voxelgate/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в отладочный лог.
// Функция неблокирующая.
func StartLoggingListener(bus EventBus) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		logging.Trace("[EventBus] %s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logging.Info("🪵 LoggingListener: подписка на все события активирована")
	return sub, nil
}
