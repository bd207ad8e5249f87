package service

import (
	"context"
	"time"

	"tournament-ticketing/internal/events"
	"tournament-ticketing/internal/model"
	"tournament-ticketing/internal/repository"
	apperrors "tournament-ticketing/pkg/app_errors"
	"tournament-ticketing/pkg/logger"
	"tournament-ticketing/pkg/ticketcode"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type ReserveTicketRequest struct {
	TournamentID uuid.UUID
	UserID       int
	// TTL 為 0 時使用服務預設的保留時間
	TTL time.Duration
}

type TicketService interface {
	Reserve(ctx context.Context, req ReserveTicketRequest) (*model.Ticket, error)
	List(ctx context.Context) ([]*model.Ticket, error)
	GetByTicketID(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error)
	GetByCode(ctx context.Context, code string) (*model.Ticket, error)
	ListByTournamentID(ctx context.Context, tournamentID uuid.UUID) ([]*model.Ticket, error)
	ListByUserID(ctx context.Context, userID int) ([]*model.Ticket, error)
	MarkPaid(ctx context.Context, ticketID uuid.UUID, paymentRef string) (*model.Ticket, error)
	Use(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error)
	Cancel(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error)
	// IsValidForUse 純查詢：PAID 且尚未過期
	IsValidForUse(ctx context.Context, code string) (bool, error)
}

type TicketServiceImpl struct {
	repo           repository.TicketRepository
	tournamentRepo repository.TournamentRepository
	codeGen        ticketcode.Generator
	bus            events.EventBus
	clock          clockwork.Clock
	defaultTTL     time.Duration
}

func NewTicketService(
	repo repository.TicketRepository,
	tournamentRepo repository.TournamentRepository,
	codeGen ticketcode.Generator,
	bus events.EventBus,
	clock clockwork.Clock,
	defaultTTL time.Duration,
) TicketService {
	return &TicketServiceImpl{
		repo:           repo,
		tournamentRepo: tournamentRepo,
		codeGen:        codeGen,
		bus:            bus,
		clock:          clock,
		defaultTTL:     defaultTTL,
	}
}

// Reserve 預訂票券。價格與抽成費率在這一刻從賽事快照下來，
// 之後賽事怎麼改都不影響這張票。
func (s *TicketServiceImpl) Reserve(ctx context.Context, req ReserveTicketRequest) (*model.Ticket, error) {
	now := s.clock.Now().UTC()

	tournament, err := s.tournamentRepo.FindByTournamentID(ctx, req.TournamentID)
	if err != nil {
		return nil, err
	}
	// 付費入場票只存在於 PAID 類型、已發佈且未結束的賽事
	if tournament.Type != model.TournamentTypePaid {
		return nil, apperrors.ErrInvalidState
	}
	if tournament.Status != model.TournamentStatusPublished && tournament.Status != model.TournamentStatusInProgress {
		return nil, apperrors.ErrInvalidState
	}

	ttl := req.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	code := s.codeGen.Code()
	ticket, err := model.NewTicket(
		tournament.ID, req.UserID,
		tournament.EntryFee, tournament.CommissionRate,
		ttl, now, code, "",
	)
	if err != nil {
		return nil, err
	}
	ticket.QRPayload = s.codeGen.QRPayload(code, ticket.TicketID)

	created, err := s.repo.Create(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, model.EventTicketReserved, created.TicketID, string(created.Status))
	return created, nil
}

func (s *TicketServiceImpl) List(ctx context.Context) ([]*model.Ticket, error) {
	return s.repo.List(ctx)
}

func (s *TicketServiceImpl) GetByTicketID(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error) {
	return s.repo.FindByTicketID(ctx, ticketID)
}

func (s *TicketServiceImpl) GetByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return s.repo.FindByCode(ctx, code)
}

func (s *TicketServiceImpl) ListByTournamentID(ctx context.Context, tournamentID uuid.UUID) ([]*model.Ticket, error) {
	tournament, err := s.tournamentRepo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByTournamentID(ctx, tournament.ID)
}

func (s *TicketServiceImpl) ListByUserID(ctx context.Context, userID int) ([]*model.Ticket, error) {
	return s.repo.ListByUserID(ctx, userID)
}

func (s *TicketServiceImpl) MarkPaid(ctx context.Context, ticketID uuid.UUID, paymentRef string) (*model.Ticket, error) {
	now := s.clock.Now().UTC()

	ticket, err := s.repo.FindByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := ticket.MarkPaid(paymentRef, now); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateWithVersion(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, model.EventTicketPaid, updated.TicketID, string(updated.Status))
	return updated, nil
}

func (s *TicketServiceImpl) Use(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error) {
	now := s.clock.Now().UTC()

	ticket, err := s.repo.FindByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := ticket.Use(now); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateWithVersion(ctx, ticket)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, model.EventTicketUsed, updated.TicketID, string(updated.Status))
	return updated, nil
}

// Cancel 取消票券。取消 PAID 票發出的事件就是外部支付協作者的退款觸發點。
func (s *TicketServiceImpl) Cancel(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error) {
	ticket, err := s.repo.FindByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	wasPaid := ticket.Status == model.TicketStatusPaid
	if err := ticket.Cancel(); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateWithVersion(ctx, ticket)
	if err != nil {
		return nil, err
	}

	if wasPaid {
		logger.WithComponent("service").Info("paid ticket cancelled, refund is external",
			zap.String("ticket_id", updated.TicketID.String()),
			zap.Float64("price", updated.Price))
	}
	s.emit(ctx, model.EventTicketCancelled, updated.TicketID, string(updated.Status))
	return updated, nil
}

func (s *TicketServiceImpl) IsValidForUse(ctx context.Context, code string) (bool, error) {
	ticket, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return false, err
	}
	return ticket.IsValidForUse(s.clock.Now().UTC()), nil
}

func (s *TicketServiceImpl) emit(ctx context.Context, eventType model.EventType, aggregateID uuid.UUID, status string) {
	event := model.NewDomainEvent(eventType, aggregateID, status, s.clock.Now().UTC())
	if err := s.bus.Publish(ctx, event); err != nil {
		logger.WithComponent("service").Error("publish event failed",
			zap.String("event_type", string(eventType)), zap.String("aggregate_id", aggregateID.String()), zap.Error(err))
	}
}
