package model

import (
	"time"

	apperrors "tournament-ticketing/pkg/app_errors"
	"tournament-ticketing/pkg/money"

	"github.com/google/uuid"
)

// TicketStatus 票券狀態類型
type TicketStatus string

const (
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusPaid      TicketStatus = "paid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusExpired   TicketStatus = "expired"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// IsValid 驗證狀態是否有效
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusReserved, TicketStatusPaid, TicketStatusUsed,
		TicketStatusExpired, TicketStatusCancelled:
		return true
	}
	return false
}

// IsTerminal 終態不能再轉換
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusUsed || s == TicketStatusExpired || s == TicketStatusCancelled
}

// CanTransitionTo 檢查是否可以轉換到目標狀態。
// USED 只能從 PAID 進入。
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	transitions := map[TicketStatus][]TicketStatus{
		TicketStatusReserved:  {TicketStatusPaid, TicketStatusExpired, TicketStatusCancelled},
		TicketStatusPaid:      {TicketStatusUsed, TicketStatusExpired, TicketStatusCancelled},
		TicketStatusUsed:      {},
		TicketStatusExpired:   {},
		TicketStatusCancelled: {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Ticket 票券聚合根。價格與抽成費率是預訂當下的賽事快照，
// 賽事之後改費率不會回頭影響已發出的票。
type Ticket struct {
	ID             int          `json:"id" db:"id"`
	TicketID       uuid.UUID    `json:"ticket_id" db:"ticket_id"`
	Code           string       `json:"code" db:"code"`
	QRPayload      string       `json:"qr_payload" db:"qr_payload"`
	Status         TicketStatus `json:"status" db:"status"`
	Price          float64      `json:"price" db:"price"`
	Commission     float64      `json:"commission" db:"commission"`
	CommissionRate float64      `json:"commission_rate" db:"commission_rate"`
	TournamentID   int          `json:"tournament_id" db:"tournament_id"`
	UserID         int          `json:"user_id" db:"user_id"`
	PaymentRef     *string      `json:"payment_ref,omitempty" db:"payment_ref"`
	ReservedAt     time.Time    `json:"reserved_at" db:"reserved_at"`
	ExpiresAt      time.Time    `json:"expires_at" db:"expires_at"`
	UsedAt         *time.Time   `json:"used_at,omitempty" db:"used_at"`
	Version        int          `json:"version" db:"version"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty" db:"deleted_at"`
}

// NewTicket 預訂票券：RESERVED 狀態、expiresAt = now + ttl
func NewTicket(tournamentID, userID int, price, commissionRate float64, ttl time.Duration, now time.Time, code, qrPayload string) (*Ticket, error) {
	if tournamentID == 0 || userID == 0 {
		return nil, apperrors.ErrInvalidArgument
	}
	if price < 0 || commissionRate < 0 || commissionRate > 1 {
		return nil, apperrors.ErrInvalidArgument
	}
	if ttl <= 0 {
		return nil, apperrors.ErrInvalidArgument
	}
	if code == "" {
		return nil, apperrors.ErrInvalidArgument
	}

	return &Ticket{
		TicketID:       uuid.New(),
		Code:           code,
		QRPayload:      qrPayload,
		Status:         TicketStatusReserved,
		Price:          price,
		CommissionRate: commissionRate,
		TournamentID:   tournamentID,
		UserID:         userID,
		ReservedAt:     now,
		ExpiresAt:      now.Add(ttl),
	}, nil
}

// IsDeleted 檢查票券是否已刪除
func (t *Ticket) IsDeleted() bool {
	return t.DeletedAt != nil
}

// MarkPaid 付款：只有未過期的 RESERVED 可以付款。
// 抽成金額在這一刻用快照費率算定並存下，之後費率異動不追溯。
func (t *Ticket) MarkPaid(paymentRef string, now time.Time) error {
	if t.Status != TicketStatusReserved {
		return apperrors.ErrInvalidTransition
	}
	if !now.Before(t.ExpiresAt) {
		return apperrors.ErrReservationExpired
	}
	t.Commission = money.Commission(t.Price, t.CommissionRate)
	t.PaymentRef = &paymentRef
	t.Status = TicketStatusPaid
	return nil
}

// Use 入場核銷：只有未過期的 PAID 可以使用，且只能使用一次
func (t *Ticket) Use(now time.Time) error {
	if t.Status != TicketStatusPaid {
		return apperrors.ErrInvalidTransition
	}
	if !now.Before(t.ExpiresAt) {
		return apperrors.ErrTicketExpired
	}
	used := now
	t.UsedAt = &used
	t.Status = TicketStatusUsed
	return nil
}

// Cancel 取消票券：RESERVED 或 PAID 才可取消。
// PAID 被取消是退款觸發點，退款本身由外部支付協作者處理。
func (t *Ticket) Cancel() error {
	if !t.Status.CanTransitionTo(TicketStatusCancelled) {
		return apperrors.ErrInvalidTransition
	}
	t.Status = TicketStatusCancelled
	return nil
}

// Expire 過期：Sweeper 專用，只處理已到期且非終態的票
func (t *Ticket) Expire(now time.Time) error {
	if !t.Status.CanTransitionTo(TicketStatusExpired) {
		return apperrors.ErrInvalidTransition
	}
	if now.Before(t.ExpiresAt) {
		return apperrors.ErrInvalidState
	}
	t.Status = TicketStatusExpired
	return nil
}

// IsValidForUse 純判斷：PAID 且尚未過期
func (t *Ticket) IsValidForUse(now time.Time) bool {
	return t.Status == TicketStatusPaid && now.Before(t.ExpiresAt)
}
