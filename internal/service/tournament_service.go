package service

import (
	"context"
	"errors"
	"time"

	"tournament-ticketing/internal/cache"
	"tournament-ticketing/internal/events"
	"tournament-ticketing/internal/model"
	"tournament-ticketing/internal/repository"
	apperrors "tournament-ticketing/pkg/app_errors"
	"tournament-ticketing/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type AdmitParticipantRequest struct {
	UserID   int
	TeamName *string
	Notes    *string
}

type TournamentService interface {
	Create(ctx context.Context, params model.NewTournamentParams) (*model.Tournament, error)
	List(ctx context.Context) ([]*model.Tournament, error)
	GetByTournamentID(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error)
	UpdateBasicInfo(ctx context.Context, tournamentID uuid.UUID, params model.UpdateTournamentInfoParams) (*model.Tournament, error)
	UpdateDates(ctx context.Context, tournamentID uuid.UUID, regStart, regEnd, start, end time.Time) (*model.Tournament, error)
	Publish(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error)
	Start(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error)
	Finish(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error)
	Cancel(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error)
	DeleteByTournamentID(ctx context.Context, tournamentID uuid.UUID) error

	AdmitParticipant(ctx context.Context, tournamentID uuid.UUID, req AdmitParticipantRequest) (*model.Participant, error)
	ListParticipants(ctx context.Context, tournamentID uuid.UUID) ([]*model.Participant, error)
	ConfirmParticipant(ctx context.Context, participantID uuid.UUID) (*model.Participant, error)
	CancelParticipant(ctx context.Context, participantID uuid.UUID) (*model.Participant, error)
	DisqualifyParticipant(ctx context.Context, participantID uuid.UUID, reason string) (*model.Participant, error)
}

type TournamentServiceImpl struct {
	repo            repository.TournamentRepository
	participantRepo repository.ParticipantRepository
	slotGate        cache.RegistrationSlotGate
	bus             events.EventBus
	clock           clockwork.Clock
}

func NewTournamentService(
	repo repository.TournamentRepository,
	participantRepo repository.ParticipantRepository,
	slotGate cache.RegistrationSlotGate,
	bus events.EventBus,
	clock clockwork.Clock,
) TournamentService {
	return &TournamentServiceImpl{
		repo:            repo,
		participantRepo: participantRepo,
		slotGate:        slotGate,
		bus:             bus,
		clock:           clock,
	}
}

func (s *TournamentServiceImpl) Create(ctx context.Context, params model.NewTournamentParams) (*model.Tournament, error) {
	tournament, err := model.NewTournament(params)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, tournament)
}

func (s *TournamentServiceImpl) List(ctx context.Context) ([]*model.Tournament, error) {
	return s.repo.List(ctx)
}

func (s *TournamentServiceImpl) GetByTournamentID(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	return s.repo.FindByTournamentID(ctx, tournamentID)
}

func (s *TournamentServiceImpl) UpdateBasicInfo(ctx context.Context, tournamentID uuid.UUID, params model.UpdateTournamentInfoParams) (*model.Tournament, error) {
	tournament, err := s.repo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := tournament.UpdateBasicInfo(params); err != nil {
		return nil, err
	}
	return s.repo.UpdateWithVersion(ctx, tournament)
}

func (s *TournamentServiceImpl) UpdateDates(ctx context.Context, tournamentID uuid.UUID, regStart, regEnd, start, end time.Time) (*model.Tournament, error) {
	tournament, err := s.repo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := tournament.UpdateDates(regStart, regEnd, start, end); err != nil {
		return nil, err
	}
	return s.repo.UpdateWithVersion(ctx, tournament)
}

// Publish 發佈賽事並預熱名額閘門
func (s *TournamentServiceImpl) Publish(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	tournament, err := s.repo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := tournament.Publish(); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateWithVersion(ctx, tournament)
	if err != nil {
		return nil, err
	}

	// 閘門只是快速失敗層，預熱失敗不影響發佈結果
	if err := s.slotGate.WarmUp(ctx, updated.ID, updated.MaxParticipants-updated.CurrentParticipants); err != nil {
		logger.WithComponent("service").Warn("slot gate warm up failed",
			zap.Int("tournament_id", updated.ID), zap.Error(err))
	}

	s.emit(ctx, model.EventTournamentPublished, updated.TournamentID, string(updated.Status))
	return updated, nil
}

func (s *TournamentServiceImpl) Start(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	updated, err := s.transition(ctx, tournamentID, (*model.Tournament).Start)
	if err != nil {
		return nil, err
	}
	s.invalidateGate(ctx, updated.ID)
	s.emit(ctx, model.EventTournamentStarted, updated.TournamentID, string(updated.Status))
	return updated, nil
}

func (s *TournamentServiceImpl) Finish(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	updated, err := s.transition(ctx, tournamentID, (*model.Tournament).Finish)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, model.EventTournamentFinished, updated.TournamentID, string(updated.Status))
	return updated, nil
}

func (s *TournamentServiceImpl) Cancel(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	updated, err := s.transition(ctx, tournamentID, (*model.Tournament).Cancel)
	if err != nil {
		return nil, err
	}
	s.invalidateGate(ctx, updated.ID)
	s.emit(ctx, model.EventTournamentCancelled, updated.TournamentID, string(updated.Status))
	return updated, nil
}

// transition 載入、套用領域轉換、版本檢查寫回
func (s *TournamentServiceImpl) transition(ctx context.Context, tournamentID uuid.UUID, op func(*model.Tournament) error) (*model.Tournament, error) {
	tournament, err := s.repo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := op(tournament); err != nil {
		return nil, err
	}
	return s.repo.UpdateWithVersion(ctx, tournament)
}

func (s *TournamentServiceImpl) DeleteByTournamentID(ctx context.Context, tournamentID uuid.UUID) error {
	tournament, err := s.repo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return err
	}
	// 只做軟刪除，票券還引用著這場賽事
	if err := s.repo.Delete(ctx, tournament.ID); err != nil {
		return err
	}
	s.invalidateGate(ctx, tournament.ID)
	return nil
}

// AdmitParticipant 報名。時間只在進入時讀一次，
// 窗口檢查與名額檢查看到的是同一個 now。
func (s *TournamentServiceImpl) AdmitParticipant(ctx context.Context, tournamentID uuid.UUID, req AdmitParticipantRequest) (*model.Participant, error) {
	now := s.clock.Now().UTC()

	tournament, err := s.repo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	// 1. 名額閘門快速失敗；Redis 故障時降級放行，資料庫仍是權威
	ok, err := s.slotGate.ReserveSlot(ctx, tournament.ID, req.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrCapacityExceeded) || errors.Is(err, apperrors.ErrInvalidInput) {
			return nil, err
		}
		logger.WithComponent("service").Warn("slot gate unavailable, falling back to database",
			zap.Int("tournament_id", tournament.ID), zap.Error(err))
		ok = true
	}
	if !ok {
		return nil, apperrors.ErrCapacityExceeded
	}

	// 2. 領域檢查：狀態、報名窗口、名額
	participant, err := tournament.AdmitParticipant(req.UserID, req.TeamName, req.Notes, now)
	if err != nil {
		s.releaseGate(tournament.ID, req.UserID)
		return nil, err
	}

	// 3. 版本檢查寫入 + 參賽者落地，同一交易
	if err := s.repo.AdmitParticipant(ctx, tournament, participant); err != nil {
		s.releaseGate(tournament.ID, req.UserID)
		return nil, err
	}

	s.emit(ctx, model.EventParticipantAdmitted, participant.ParticipantID, string(participant.Status))
	return participant, nil
}

func (s *TournamentServiceImpl) ListParticipants(ctx context.Context, tournamentID uuid.UUID) ([]*model.Participant, error) {
	tournament, err := s.repo.FindByTournamentID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return s.participantRepo.ListByTournamentID(ctx, tournament.ID)
}

func (s *TournamentServiceImpl) ConfirmParticipant(ctx context.Context, participantID uuid.UUID) (*model.Participant, error) {
	return s.participantTransition(ctx, participantID, (*model.Participant).Confirm)
}

func (s *TournamentServiceImpl) CancelParticipant(ctx context.Context, participantID uuid.UUID) (*model.Participant, error) {
	return s.participantTransition(ctx, participantID, (*model.Participant).Cancel)
}

func (s *TournamentServiceImpl) DisqualifyParticipant(ctx context.Context, participantID uuid.UUID, reason string) (*model.Participant, error) {
	return s.participantTransition(ctx, participantID, func(p *model.Participant) error {
		return p.Disqualify(reason)
	})
}

func (s *TournamentServiceImpl) participantTransition(ctx context.Context, participantID uuid.UUID, op func(*model.Participant) error) (*model.Participant, error) {
	participant, err := s.participantRepo.FindByParticipantID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	previous := participant.Status
	if err := op(participant); err != nil {
		return nil, err
	}
	return s.participantRepo.UpdateStatus(ctx, participant, previous)
}

// releaseGate 資料庫沒寫成功就把閘門名額吐回去。
// 用 context.Background() 確保請求被取消也會回滾。
func (s *TournamentServiceImpl) releaseGate(tournamentID, userID int) {
	if err := s.slotGate.ReleaseSlot(context.Background(), tournamentID, userID); err != nil {
		logger.WithComponent("service").Error("slot gate release failed",
			zap.Int("tournament_id", tournamentID), zap.Int("user_id", userID), zap.Error(err))
	}
}

func (s *TournamentServiceImpl) invalidateGate(ctx context.Context, tournamentID int) {
	if err := s.slotGate.Invalidate(ctx, tournamentID); err != nil {
		logger.WithComponent("service").Warn("slot gate invalidate failed",
			zap.Int("tournament_id", tournamentID), zap.Error(err))
	}
}

// emit 成功轉換後發佈領域事件，投遞失敗只記錄，不回滾已提交的操作
func (s *TournamentServiceImpl) emit(ctx context.Context, eventType model.EventType, aggregateID uuid.UUID, status string) {
	event := model.NewDomainEvent(eventType, aggregateID, status, s.clock.Now().UTC())
	if err := s.bus.Publish(ctx, event); err != nil {
		logger.WithComponent("service").Error("publish event failed",
			zap.String("event_type", string(eventType)), zap.String("aggregate_id", aggregateID.String()), zap.Error(err))
	}
}
