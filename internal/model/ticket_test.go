package model

import (
	"testing"
	"time"

	apperrors "tournament-ticketing/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ticketNow = time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC)

func newReservedTicket(t *testing.T, ttl time.Duration) *Ticket {
	t.Helper()
	ticket, err := NewTicket(1, 42, 100.0, 0.05, ttl, ticketNow, "TKT-7MQ2KX9WBF4T", "payload")
	require.NoError(t, err)
	return ticket
}

func TestNewTicket(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)

		assert.Equal(t, TicketStatusReserved, ticket.Status)
		assert.Equal(t, ticketNow, ticket.ReservedAt)
		assert.Equal(t, ticketNow.Add(15*time.Minute), ticket.ExpiresAt)
		assert.Equal(t, 100.0, ticket.Price)
		assert.Equal(t, 0.05, ticket.CommissionRate)
		// 抽成在付款那一刻才算定
		assert.Equal(t, 0.0, ticket.Commission)
		assert.Nil(t, ticket.PaymentRef)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		_, err := NewTicket(0, 42, 100.0, 0.05, time.Minute, ticketNow, "CODE", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

		_, err = NewTicket(1, 42, -1, 0.05, time.Minute, ticketNow, "CODE", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

		_, err = NewTicket(1, 42, 100.0, 0.05, 0, ticketNow, "CODE", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

		_, err = NewTicket(1, 42, 100.0, 0.05, time.Minute, ticketNow, "", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	})
}

func TestTicketStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from    TicketStatus
		to      TicketStatus
		allowed bool
	}{
		{TicketStatusReserved, TicketStatusPaid, true},
		{TicketStatusReserved, TicketStatusExpired, true},
		{TicketStatusReserved, TicketStatusCancelled, true},
		{TicketStatusReserved, TicketStatusUsed, false},
		{TicketStatusPaid, TicketStatusUsed, true},
		{TicketStatusPaid, TicketStatusExpired, true},
		{TicketStatusPaid, TicketStatusCancelled, true},
		{TicketStatusPaid, TicketStatusReserved, false},
		{TicketStatusUsed, TicketStatusExpired, false},
		{TicketStatusExpired, TicketStatusPaid, false},
		{TicketStatusCancelled, TicketStatusReserved, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.allowed, c.from.CanTransitionTo(c.to),
			"%s -> %s", c.from, c.to)
	}
}

func TestTicket_MarkPaid(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)

		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow.Add(5*time.Minute)))
		assert.Equal(t, TicketStatusPaid, ticket.Status)
		require.NotNil(t, ticket.PaymentRef)
		assert.Equal(t, "pay_123", *ticket.PaymentRef)
		// 100 × 0.05 = 5.00
		assert.Equal(t, 5.00, ticket.Commission)
	})

	t.Run("AfterExpiry", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)

		err := ticket.MarkPaid("pay_123", ticketNow.Add(16*time.Minute))
		assert.ErrorIs(t, err, apperrors.ErrReservationExpired)
		assert.Equal(t, TicketStatusReserved, ticket.Status)
	})

	t.Run("ExactlyAtExpiry", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)

		err := ticket.MarkPaid("pay_123", ticket.ExpiresAt)
		assert.ErrorIs(t, err, apperrors.ErrReservationExpired)
	})

	t.Run("AlreadyPaid", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))

		err := ticket.MarkPaid("pay_456", ticketNow)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		assert.Equal(t, "pay_123", *ticket.PaymentRef)
	})
}

func TestTicket_Use(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ticket := newReservedTicket(t, time.Hour)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))
		usedAt := ticketNow.Add(30 * time.Minute)

		require.NoError(t, ticket.Use(usedAt))
		assert.Equal(t, TicketStatusUsed, ticket.Status)
		require.NotNil(t, ticket.UsedAt)
		assert.Equal(t, usedAt, *ticket.UsedAt)
	})

	t.Run("NotPaid", func(t *testing.T) {
		ticket := newReservedTicket(t, time.Hour)

		assert.ErrorIs(t, ticket.Use(ticketNow), apperrors.ErrInvalidTransition)
	})

	t.Run("Expired", func(t *testing.T) {
		ticket := newReservedTicket(t, time.Hour)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))

		err := ticket.Use(ticketNow.Add(2 * time.Hour))
		assert.ErrorIs(t, err, apperrors.ErrTicketExpired)
		assert.Equal(t, TicketStatusPaid, ticket.Status)
	})

	t.Run("OnlyOnce", func(t *testing.T) {
		ticket := newReservedTicket(t, time.Hour)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))
		require.NoError(t, ticket.Use(ticketNow.Add(time.Minute)))

		assert.ErrorIs(t, ticket.Use(ticketNow.Add(2*time.Minute)), apperrors.ErrInvalidTransition)
	})
}

func TestTicket_Cancel(t *testing.T) {
	t.Run("FromReserved", func(t *testing.T) {
		ticket := newReservedTicket(t, time.Hour)

		require.NoError(t, ticket.Cancel())
		assert.Equal(t, TicketStatusCancelled, ticket.Status)
	})

	t.Run("FromPaid", func(t *testing.T) {
		ticket := newReservedTicket(t, time.Hour)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))

		require.NoError(t, ticket.Cancel())
		assert.Equal(t, TicketStatusCancelled, ticket.Status)
	})

	t.Run("FromUsed", func(t *testing.T) {
		ticket := newReservedTicket(t, time.Hour)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))
		require.NoError(t, ticket.Use(ticketNow.Add(time.Minute)))

		assert.ErrorIs(t, ticket.Cancel(), apperrors.ErrInvalidTransition)
	})
}

func TestTicket_Expire(t *testing.T) {
	t.Run("ReservedPastExpiry", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)

		require.NoError(t, ticket.Expire(ticket.ExpiresAt))
		assert.Equal(t, TicketStatusExpired, ticket.Status)
	})

	t.Run("PaidPastExpiry", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)
		require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))

		require.NoError(t, ticket.Expire(ticket.ExpiresAt.Add(time.Second)))
		assert.Equal(t, TicketStatusExpired, ticket.Status)
	})

	t.Run("NotYetExpired", func(t *testing.T) {
		ticket := newReservedTicket(t, 15*time.Minute)

		err := ticket.Expire(ticketNow.Add(5 * time.Minute))
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
		assert.Equal(t, TicketStatusReserved, ticket.Status)
	})

	t.Run("TerminalStates", func(t *testing.T) {
		for _, status := range []TicketStatus{TicketStatusUsed, TicketStatusExpired, TicketStatusCancelled} {
			ticket := newReservedTicket(t, 15*time.Minute)
			ticket.Status = status

			assert.ErrorIs(t, ticket.Expire(ticket.ExpiresAt), apperrors.ErrInvalidTransition, "from %s", status)
		}
	})
}

func TestTicket_IsValidForUse(t *testing.T) {
	ticket := newReservedTicket(t, time.Hour)
	assert.False(t, ticket.IsValidForUse(ticketNow))

	require.NoError(t, ticket.MarkPaid("pay_123", ticketNow))
	assert.True(t, ticket.IsValidForUse(ticketNow.Add(30*time.Minute)))
	assert.False(t, ticket.IsValidForUse(ticket.ExpiresAt))
	assert.False(t, ticket.IsValidForUse(ticket.ExpiresAt.Add(time.Minute)))
}
