package service

import (
	"context"
	"errors"

	"tournament-ticketing/internal/events"
	"tournament-ticketing/internal/model"
	"tournament-ticketing/internal/repository"
	apperrors "tournament-ticketing/pkg/app_errors"
	"tournament-ticketing/pkg/logger"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// SweeperService 批次把到期的 RESERVED / PAID 票轉成 EXPIRED。
// 冪等：沒有新到期的票時重跑不改任何東西。
type SweeperService interface {
	Sweep(ctx context.Context) (int, error)
}

type SweeperServiceImpl struct {
	repo      repository.TicketRepository
	bus       events.EventBus
	clock     clockwork.Clock
	batchSize int
}

func NewSweeperService(repo repository.TicketRepository, bus events.EventBus, clock clockwork.Clock, batchSize int) SweeperService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SweeperServiceImpl{
		repo:      repo,
		bus:       bus,
		clock:     clock,
		batchSize: batchSize,
	}
}

// Sweep 掃一輪並回傳實際轉成 EXPIRED 的張數。
// 每張票走獨立的版本檢查寫入：跟併發的 markPaid / use 搶輸了就跳過，
// 下一輪重新觀察新狀態，不會蓋掉別人的寫入。
func (s *SweeperServiceImpl) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()

	tickets, err := s.repo.ListExpirable(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, ticket := range tickets {
		if err := ticket.Expire(now); err != nil {
			// 查詢與處理之間狀態變了 (例如已被取消)，跳過
			continue
		}

		if _, err := s.repo.UpdateWithVersion(ctx, ticket); err != nil {
			if errors.Is(err, apperrors.ErrConcurrentModification) || errors.Is(err, apperrors.ErrTicketNotFound) {
				// 使用者操作贏了版本競爭，這張票留給下一輪重新判斷
				continue
			}
			return expired, err
		}

		expired++
		event := model.NewDomainEvent(model.EventTicketExpired, ticket.TicketID, string(ticket.Status), now)
		if err := s.bus.Publish(ctx, event); err != nil {
			logger.WithComponent("sweeper").Error("publish event failed",
				zap.String("ticket_id", ticket.TicketID.String()), zap.Error(err))
		}
	}

	if expired > 0 {
		logger.WithComponent("sweeper").Info("expired tickets swept",
			zap.Int("count", expired), zap.Time("now", now))
	}
	return expired, nil
}
