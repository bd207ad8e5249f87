package worker

import (
	"context"

	"tournament-ticketing/internal/events"
	"tournament-ticketing/pkg/logger"

	"go.uber.org/zap"
)

// EventWorker 訂閱領域事件並寫審計日誌。
// 通知投遞 (email / push) 是外部協作者的事，這裡只消化事件流。
type EventWorker interface {
	Start(ctx context.Context) error
}

type EventWorkerImpl struct {
	bus events.EventBus
}

func NewEventWorker(bus events.EventBus) EventWorker {
	return &EventWorkerImpl{
		bus: bus,
	}
}

func (w *EventWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		log := logger.WithComponent("event-worker")
		for msg := range msgs {
			event := msg.Data
			log.Info("domain event",
				zap.String("type", string(event.Type)),
				zap.String("aggregate_id", event.AggregateID.String()),
				zap.String("status", event.Status),
				zap.Time("occurred_at", event.OccurredAt),
			)
			msg.Ack()
		}
	}()
	return nil
}
