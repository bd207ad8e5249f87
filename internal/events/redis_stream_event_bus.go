package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tournament-ticketing/internal/model"
	"tournament-ticketing/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey          = "domain:events"
	ConsumerGroupName  = "event-workers"
	ConsumerNamePrefix = "worker"
)

// RedisStreamEventBusConfig 可注入的逾時與重試設定；nil 或零值時使用預設。
type RedisStreamEventBusConfig struct {
	ClaimMinIdleTime   time.Duration // PEL 中超過此時間才被 XAUTOCLAIM 領取
	MaxRetryCount      int           // 超過此次數視為毒藥消息並丟棄
	ReadGroupBlockTime time.Duration // XReadGroup 阻塞時間
}

func defaultRedisStreamConfig() RedisStreamEventBusConfig {
	return RedisStreamEventBusConfig{
		ClaimMinIdleTime:   5 * time.Second,
		MaxRetryCount:      5,
		ReadGroupBlockTime: 2 * time.Second,
	}
}

type RedisStreamEventBusImpl struct {
	client       *redis.Client
	streamKey    string
	groupName    string
	consumerName string
	cfg          RedisStreamEventBusConfig
}

// NewRedisStreamEventBus 建立 Redis Stream 版 EventBus。config 可為 nil，則使用預設逾時與重試次數。
func NewRedisStreamEventBus(client *redis.Client, consumerID string, config *RedisStreamEventBusConfig) (EventBus, error) {
	if consumerID == "" {
		consumerID = uuid.New().String()
	}
	cfg := defaultRedisStreamConfig()
	if config != nil {
		if config.ClaimMinIdleTime > 0 {
			cfg.ClaimMinIdleTime = config.ClaimMinIdleTime
		}
		if config.MaxRetryCount > 0 {
			cfg.MaxRetryCount = config.MaxRetryCount
		}
		if config.ReadGroupBlockTime > 0 {
			cfg.ReadGroupBlockTime = config.ReadGroupBlockTime
		}
	}
	b := &RedisStreamEventBusImpl{
		client:       client,
		streamKey:    StreamKey,
		groupName:    ConsumerGroupName,
		consumerName: fmt.Sprintf("%s:%s", ConsumerNamePrefix, consumerID),
		cfg:          cfg,
	}
	ctx := context.Background()
	if err := b.ensureConsumerGroup(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer group: %w", err)
	}
	return b, nil
}

func (b *RedisStreamEventBusImpl) ensureConsumerGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.streamKey, b.groupName, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (b *RedisStreamEventBusImpl) Publish(ctx context.Context, event *model.DomainEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.streamKey,
		ID:     "*",
		Values: map[string]interface{}{"event": string(eventJSON)},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

func (b *RedisStreamEventBusImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		go b.runAutoClaim(ctx, out)
		b.runReadLoop(ctx, out)
	}()
	return out, nil
}

// runReadLoop 主讀取循環
func (b *RedisStreamEventBusImpl) runReadLoop(ctx context.Context, out chan<- Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.readAndDeliver(ctx, out)
		}
	}
}

// readAndDeliver 執行一輪讀取並投遞到 out
// 只讀 ">"（新訊息）；Pending（"0"）的訊息已由本 consumer 領過、已投遞過，不再重複投遞，改由 XAUTOCLAIM 超時後領回重試。
func (b *RedisStreamEventBusImpl) readAndDeliver(ctx context.Context, out chan<- Delivery) {
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.groupName,
		Consumer: b.consumerName,
		Streams:  []string{b.streamKey, ">"},
		Count:    10,
		Block:    b.cfg.ReadGroupBlockTime,
	}).Result()

	if err == redis.Nil {
		return
	}
	if err != nil {
		logger.WithComponent("bus").Error("XReadGroup failed", zap.Error(err))
		time.Sleep(time.Second)
		return
	}

	for _, stream := range streams {
		if stream.Stream != b.streamKey {
			continue
		}
		for _, msg := range stream.Messages {
			d := b.newDelivery(ctx, msg)
			if d != nil {
				select {
				case out <- *d:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// shouldProcessMessage 檢查是否應處理（含毒藥消息判斷）
func (b *RedisStreamEventBusImpl) shouldProcessMessage(ctx context.Context, messageID string, isPending bool) bool {
	if !isPending {
		return true
	}
	n, err := b.getMessageRetryCount(ctx, messageID)
	if err != nil {
		logger.WithComponent("bus").Warn("getMessageRetryCount failed", zap.String("message_id", messageID), zap.Error(err))
		return true
	}
	if n >= b.cfg.MaxRetryCount {
		logger.WithComponent("bus").Warn("discard poison message", zap.String("message_id", messageID), zap.Int("retries", n), zap.Int("max_retries", b.cfg.MaxRetryCount))
		_ = b.client.XAck(ctx, b.streamKey, b.groupName, messageID).Err()
		return false
	}
	return true
}

func (b *RedisStreamEventBusImpl) getMessageRetryCount(ctx context.Context, messageID string) (int, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: b.streamKey,
		Group:  b.groupName,
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return int(pending[0].RetryCount), nil
}

// runAutoClaim 定時用 XAUTOCLAIM 領取超時未處理的消息
func (b *RedisStreamEventBusImpl) runAutoClaim(ctx context.Context, out chan<- Delivery) {
	ticker := time.NewTicker(b.cfg.ClaimMinIdleTime)
	defer ticker.Stop()
	startID := "0-0"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, nextID, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   b.streamKey,
				Group:    b.groupName,
				Consumer: b.consumerName,
				MinIdle:  b.cfg.ClaimMinIdleTime,
				Count:    10,
				Start:    startID,
			}).Result()

			if err != nil && err != redis.Nil {
				logger.WithComponent("bus").Error("XAutoClaim failed", zap.Error(err))
				continue
			}
			if nextID != "" && nextID != "0-0" {
				startID = nextID
			} else {
				startID = "0-0"
			}

			for _, msg := range claimed {
				if !b.shouldProcessMessage(ctx, msg.ID, true) {
					continue
				}
				d := b.newDelivery(ctx, msg)
				if d != nil {
					select {
					case out <- *d:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}
}

// newDelivery 從 Redis 消息組裝 Delivery（含 Ack/Nack）
func (b *RedisStreamEventBusImpl) newDelivery(ctx context.Context, msg redis.XMessage) *Delivery {
	eventJSON, ok := msg.Values["event"].(string)
	if !ok {
		logger.WithComponent("bus").Warn("invalid message: missing event field", zap.String("message_id", msg.ID))
		return nil
	}
	var event model.DomainEvent
	if err := json.Unmarshal([]byte(eventJSON), &event); err != nil {
		logger.WithComponent("bus").Warn("unmarshal event failed", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	msgID := msg.ID
	return &Delivery{
		Data: &event,
		Ack: func() {
			if err := b.client.XAck(ctx, b.streamKey, b.groupName, msgID).Err(); err != nil {
				logger.WithComponent("bus").Error("XAck failed", zap.String("message_id", msgID), zap.Error(err))
			}
		},
		Nack: func(requeue bool) {
			if requeue {
				// 不做任何事：消息留在 PEL，等 ClaimMinIdleTime 後由 XAUTOCLAIM 領取，形成延遲重試
				logger.WithComponent("bus").Info("message nack(requeue), will retry", zap.String("message_id", msgID), zap.Duration("claim_min_idle", b.cfg.ClaimMinIdleTime))
				return
			}
			if err := b.client.XAck(ctx, b.streamKey, b.groupName, msgID).Err(); err != nil {
				logger.WithComponent("bus").Error("XAck discard failed", zap.String("message_id", msgID), zap.Error(err))
			}
		},
	}
}
