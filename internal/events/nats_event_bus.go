package events

import (
	"context"
	"encoding/json"
	"fmt"

	"tournament-ticketing/config"
	"tournament-ticketing/internal/model"
	"tournament-ticketing/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsDurableName = "event-workers"

// NATSEventBusImpl JetStream 版 EventBus，跨服務部署時使用
type NATSEventBusImpl struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
}

func NewNATSEventBus(cfg *config.NATSConfig) (EventBus, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// stream 已存在時 AddStream 是冪等的
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: []string{cfg.Subject},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to add stream: %w", err)
	}

	return &NATSEventBusImpl{
		nc:      nc,
		js:      js,
		subject: cfg.Subject,
	}, nil
}

func (b *NATSEventBusImpl) Publish(ctx context.Context, event *model.DomainEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := b.js.Publish(b.subject, eventJSON, nats.Context(ctx)); err != nil {
		return fmt.Errorf("jetstream publish: %w", err)
	}
	return nil
}

func (b *NATSEventBusImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	sub, err := b.js.PullSubscribe(b.subject, natsDurableName)
	if err != nil {
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(10, nats.Context(ctx))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// fetch timeout 是正常情況，其他錯誤記錄後繼續
				if err != nats.ErrTimeout {
					logger.WithComponent("bus").Error("jetstream fetch failed", zap.Error(err))
				}
				continue
			}

			for _, msg := range msgs {
				d := b.newDelivery(msg)
				if d == nil {
					continue
				}
				select {
				case out <- *d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *NATSEventBusImpl) newDelivery(msg *nats.Msg) *Delivery {
	var event model.DomainEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.WithComponent("bus").Warn("unmarshal event failed", zap.Error(err))
		_ = msg.Term()
		return nil
	}
	return &Delivery{
		Data: &event,
		Ack: func() {
			if err := msg.Ack(); err != nil {
				logger.WithComponent("bus").Error("ack failed", zap.Error(err))
			}
		},
		Nack: func(requeue bool) {
			if requeue {
				if err := msg.Nak(); err != nil {
					logger.WithComponent("bus").Error("nak failed", zap.Error(err))
				}
				return
			}
			if err := msg.Term(); err != nil {
				logger.WithComponent("bus").Error("term failed", zap.Error(err))
			}
		},
	}
}

// Close 關閉底層 NATS 連線
func (b *NATSEventBusImpl) Close() {
	b.nc.Close()
}
