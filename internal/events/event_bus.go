package events

import (
	"context"

	"tournament-ticketing/internal/model"
)

type Delivery struct {
	Data *model.DomainEvent
	Ack  func()
	Nack func(requeue bool)
}

// EventBus 領域事件發佈點。每次成功的狀態轉換後 Publish 一筆，
// 投遞與順序保證屬於各實作 (memory / Redis Stream / NATS JetStream)。
type EventBus interface {
	Publish(ctx context.Context, event *model.DomainEvent) error
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

type MemoryEventBus struct {
	// 使用 Go channel 模擬 MQ，單機開發與測試用
	ch chan *model.DomainEvent
}

func NewMemoryEventBus(bufferSize int) EventBus {
	return &MemoryEventBus{
		ch: make(chan *model.DomainEvent, bufferSize),
	}
}

func (b *MemoryEventBus) Publish(ctx context.Context, event *model.DomainEvent) error {
	b.ch <- event
	return nil
}

func (b *MemoryEventBus) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-b.ch:
				if !ok {
					return
				}

				out <- Delivery{
					Data: event,
					Ack:  func() { /* 記憶體版不用做特別動作 */ },
					Nack: func(requeue bool) {
						if requeue {
							b.ch <- event // 簡單模擬重回隊列
						}
					},
				}
			}
		}
	}()

	return out, nil
}
