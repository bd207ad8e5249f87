package service

import (
	"context"
	"testing"
	"time"

	"tournament-ticketing/internal/model"
	apperrors "tournament-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketSvcNow = time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC)

func paidTypeTournament(t *testing.T) *model.Tournament {
	t.Helper()
	tournament := publishedTournament(t)
	return tournament
}

func passthroughTicketRepo() *mockTicketRepo {
	return &mockTicketRepo{
		onCreate: func(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
			ticket.ID = 11
			return ticket, nil
		},
		onUpdateWithVersion: func(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
			ticket.Version++
			return ticket, nil
		},
	}
}

func newTicketSvc(t *testing.T, tournament *model.Tournament, repo *mockTicketRepo, bus *recordingBus, now time.Time) TicketService {
	t.Helper()
	tournamentRepo := &mockTournamentRepo{
		onFindByTournamentID: func(ctx context.Context, id uuid.UUID) (*model.Tournament, error) {
			return tournament, nil
		},
	}
	gen := &stubCodeGen{codes: []string{"TKT-AAAAAAAAAAAA", "TKT-BBBBBBBBBBBB"}}
	return NewTicketService(repo, tournamentRepo, gen, bus, clockwork.NewFakeClockAt(now), 15*time.Minute)
}

func TestTicketService_Reserve(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		tournament := paidTypeTournament(t)
		repo := passthroughTicketRepo()
		bus := &recordingBus{}
		svc := newTicketSvc(t, tournament, repo, bus, ticketSvcNow)

		ticket, err := svc.Reserve(context.Background(), ReserveTicketRequest{
			TournamentID: tournament.TournamentID,
			UserID:       42,
		})

		require.NoError(t, err)
		assert.Equal(t, model.TicketStatusReserved, ticket.Status)
		assert.Equal(t, "TKT-AAAAAAAAAAAA", ticket.Code)
		assert.Equal(t, "qr:TKT-AAAAAAAAAAAA", ticket.QRPayload)
		// 價格與費率是預訂當下的賽事快照
		assert.Equal(t, 100.0, ticket.Price)
		assert.Equal(t, 0.05, ticket.CommissionRate)
		assert.Equal(t, ticketSvcNow, ticket.ReservedAt)
		assert.Equal(t, ticketSvcNow.Add(15*time.Minute), ticket.ExpiresAt)
		assert.Equal(t, []model.EventType{model.EventTicketReserved}, bus.eventTypes())
	})

	t.Run("ExplicitTTL", func(t *testing.T) {
		tournament := paidTypeTournament(t)
		svc := newTicketSvc(t, tournament, passthroughTicketRepo(), &recordingBus{}, ticketSvcNow)

		ticket, err := svc.Reserve(context.Background(), ReserveTicketRequest{
			TournamentID: tournament.TournamentID,
			UserID:       42,
			TTL:          30 * time.Minute,
		})

		require.NoError(t, err)
		assert.Equal(t, ticketSvcNow.Add(30*time.Minute), ticket.ExpiresAt)
	})

	t.Run("FreeTournament", func(t *testing.T) {
		tournament := paidTypeTournament(t)
		tournament.Type = model.TournamentTypeFree
		tournament.EntryFee = 0
		svc := newTicketSvc(t, tournament, passthroughTicketRepo(), &recordingBus{}, ticketSvcNow)

		_, err := svc.Reserve(context.Background(), ReserveTicketRequest{TournamentID: tournament.TournamentID, UserID: 42})
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	})

	t.Run("TournamentNotOpenForSales", func(t *testing.T) {
		for _, status := range []model.TournamentStatus{model.TournamentStatusDraft, model.TournamentStatusFinished, model.TournamentStatusCancelled} {
			tournament := paidTypeTournament(t)
			tournament.Status = status
			svc := newTicketSvc(t, tournament, passthroughTicketRepo(), &recordingBus{}, ticketSvcNow)

			_, err := svc.Reserve(context.Background(), ReserveTicketRequest{TournamentID: tournament.TournamentID, UserID: 42})
			assert.ErrorIs(t, err, apperrors.ErrInvalidState, "status %s", status)
		}
	})

	t.Run("InProgressStillSells", func(t *testing.T) {
		tournament := paidTypeTournament(t)
		tournament.Status = model.TournamentStatusInProgress
		svc := newTicketSvc(t, tournament, passthroughTicketRepo(), &recordingBus{}, ticketSvcNow)

		_, err := svc.Reserve(context.Background(), ReserveTicketRequest{TournamentID: tournament.TournamentID, UserID: 42})
		assert.NoError(t, err)
	})
}

func TestTicketService_MarkPaid(t *testing.T) {
	newRepoWith := func(ticket *model.Ticket) *mockTicketRepo {
		repo := passthroughTicketRepo()
		repo.onFindByTicketID = func(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
			return ticket, nil
		}
		return repo
	}

	t.Run("Success", func(t *testing.T) {
		ticket, err := model.NewTicket(7, 42, 100.0, 0.05, 15*time.Minute, ticketSvcNow, "TKT-AAAAAAAAAAAA", "")
		require.NoError(t, err)
		bus := &recordingBus{}
		svc := newTicketSvc(t, paidTypeTournament(t), newRepoWith(ticket), bus, ticketSvcNow.Add(5*time.Minute))

		updated, err := svc.MarkPaid(context.Background(), ticket.TicketID, "pay_123")

		require.NoError(t, err)
		assert.Equal(t, model.TicketStatusPaid, updated.Status)
		assert.Equal(t, 5.00, updated.Commission)
		assert.Equal(t, []model.EventType{model.EventTicketPaid}, bus.eventTypes())
	})

	t.Run("ReservationExpired", func(t *testing.T) {
		ticket, err := model.NewTicket(7, 42, 100.0, 0.05, 15*time.Minute, ticketSvcNow, "TKT-AAAAAAAAAAAA", "")
		require.NoError(t, err)
		bus := &recordingBus{}
		svc := newTicketSvc(t, paidTypeTournament(t), newRepoWith(ticket), bus, ticketSvcNow.Add(16*time.Minute))

		_, err = svc.MarkPaid(context.Background(), ticket.TicketID, "pay_123")

		assert.ErrorIs(t, err, apperrors.ErrReservationExpired)
		assert.Empty(t, bus.eventTypes())
	})

	t.Run("LostVersionRace", func(t *testing.T) {
		ticket, err := model.NewTicket(7, 42, 100.0, 0.05, 15*time.Minute, ticketSvcNow, "TKT-AAAAAAAAAAAA", "")
		require.NoError(t, err)
		repo := newRepoWith(ticket)
		repo.onUpdateWithVersion = func(ctx context.Context, tk *model.Ticket) (*model.Ticket, error) {
			return nil, apperrors.ErrConcurrentModification
		}
		svc := newTicketSvc(t, paidTypeTournament(t), repo, &recordingBus{}, ticketSvcNow.Add(5*time.Minute))

		_, err = svc.MarkPaid(context.Background(), ticket.TicketID, "pay_123")
		assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)
	})
}

func TestTicketService_UseAndCancel(t *testing.T) {
	newPaidTicketRepo := func(t *testing.T) (*model.Ticket, *mockTicketRepo) {
		t.Helper()
		ticket, err := model.NewTicket(7, 42, 100.0, 0.05, time.Hour, ticketSvcNow, "TKT-AAAAAAAAAAAA", "")
		require.NoError(t, err)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketSvcNow))
		repo := passthroughTicketRepo()
		repo.onFindByTicketID = func(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
			return ticket, nil
		}
		return ticket, repo
	}

	t.Run("Use", func(t *testing.T) {
		ticket, repo := newPaidTicketRepo(t)
		bus := &recordingBus{}
		svc := newTicketSvc(t, paidTypeTournament(t), repo, bus, ticketSvcNow.Add(30*time.Minute))

		updated, err := svc.Use(context.Background(), ticket.TicketID)

		require.NoError(t, err)
		assert.Equal(t, model.TicketStatusUsed, updated.Status)
		require.NotNil(t, updated.UsedAt)
		assert.Equal(t, ticketSvcNow.Add(30*time.Minute), *updated.UsedAt)
		assert.Equal(t, []model.EventType{model.EventTicketUsed}, bus.eventTypes())
	})

	t.Run("UseExpired", func(t *testing.T) {
		ticket, repo := newPaidTicketRepo(t)
		svc := newTicketSvc(t, paidTypeTournament(t), repo, &recordingBus{}, ticketSvcNow.Add(2*time.Hour))

		_, err := svc.Use(context.Background(), ticket.TicketID)
		assert.ErrorIs(t, err, apperrors.ErrTicketExpired)
	})

	t.Run("CancelPaidEmitsEvent", func(t *testing.T) {
		ticket, repo := newPaidTicketRepo(t)
		bus := &recordingBus{}
		svc := newTicketSvc(t, paidTypeTournament(t), repo, bus, ticketSvcNow)

		updated, err := svc.Cancel(context.Background(), ticket.TicketID)

		require.NoError(t, err)
		assert.Equal(t, model.TicketStatusCancelled, updated.Status)
		assert.Equal(t, []model.EventType{model.EventTicketCancelled}, bus.eventTypes())
	})
}

func TestTicketService_IsValidForUse(t *testing.T) {
	ticket, err := model.NewTicket(7, 42, 100.0, 0.05, time.Hour, ticketSvcNow, "TKT-AAAAAAAAAAAA", "")
	require.NoError(t, err)
	repo := passthroughTicketRepo()
	repo.onFindByCode = func(ctx context.Context, code string) (*model.Ticket, error) {
		if code == ticket.Code {
			return ticket, nil
		}
		return nil, apperrors.ErrTicketNotFound
	}

	t.Run("ReservedIsNotValid", func(t *testing.T) {
		svc := newTicketSvc(t, paidTypeTournament(t), repo, &recordingBus{}, ticketSvcNow)

		valid, err := svc.IsValidForUse(context.Background(), ticket.Code)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("PaidBeforeExpiryIsValid", func(t *testing.T) {
		require.NoError(t, ticket.MarkPaid("pay_123", ticketSvcNow))
		svc := newTicketSvc(t, paidTypeTournament(t), repo, &recordingBus{}, ticketSvcNow.Add(30*time.Minute))

		valid, err := svc.IsValidForUse(context.Background(), ticket.Code)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("PaidAfterExpiryIsNotValid", func(t *testing.T) {
		svc := newTicketSvc(t, paidTypeTournament(t), repo, &recordingBus{}, ticketSvcNow.Add(2*time.Hour))

		valid, err := svc.IsValidForUse(context.Background(), ticket.Code)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("UnknownCode", func(t *testing.T) {
		svc := newTicketSvc(t, paidTypeTournament(t), repo, &recordingBus{}, ticketSvcNow)

		_, err := svc.IsValidForUse(context.Background(), "TKT-UNKNOWN")
		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
	})
}
