package apperrors

import "errors"

// 領域錯誤：操作失敗時聚合狀態不變，呼叫端可重試或修正輸入
var (
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrInvalidState             = errors.New("operation not allowed in current state")
	ErrIncompleteConfiguration  = errors.New("tournament configuration incomplete")
	ErrInsufficientParticipants = errors.New("insufficient participants")
	ErrRegistrationClosed       = errors.New("registration closed")
	ErrRegistrationWindowClosed = errors.New("registration window closed")
	ErrCapacityExceeded         = errors.New("participant capacity exceeded")
	ErrReservationExpired       = errors.New("reservation expired")
	ErrTicketExpired            = errors.New("ticket expired")
	ErrConcurrentModification   = errors.New("concurrent modification detected")
)

// 基礎錯誤
var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInternalServerError = errors.New("internal server error")
)
