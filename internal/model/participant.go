package model

import (
	"time"

	apperrors "tournament-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

// ParticipantStatus 參賽者狀態類型
type ParticipantStatus string

const (
	ParticipantStatusRegistered   ParticipantStatus = "registered"
	ParticipantStatusConfirmed    ParticipantStatus = "confirmed"
	ParticipantStatusCancelled    ParticipantStatus = "cancelled"
	ParticipantStatusDisqualified ParticipantStatus = "disqualified"
)

// IsValid 驗證狀態是否有效
func (s ParticipantStatus) IsValid() bool {
	switch s {
	case ParticipantStatusRegistered, ParticipantStatusConfirmed,
		ParticipantStatusCancelled, ParticipantStatusDisqualified:
		return true
	}
	return false
}

// IsTerminal 終態不能再轉換
func (s ParticipantStatus) IsTerminal() bool {
	return s == ParticipantStatusCancelled || s == ParticipantStatusDisqualified
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s ParticipantStatus) CanTransitionTo(target ParticipantStatus) bool {
	transitions := map[ParticipantStatus][]ParticipantStatus{
		ParticipantStatusRegistered:   {ParticipantStatusConfirmed, ParticipantStatusCancelled, ParticipantStatusDisqualified},
		ParticipantStatusConfirmed:    {ParticipantStatusCancelled, ParticipantStatusDisqualified},
		ParticipantStatusCancelled:    {},
		ParticipantStatusDisqualified: {},
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

// Participant 參賽者，只能透過所屬賽事的 AdmitParticipant 建立。
// 自身的狀態轉換與賽事狀態機彼此獨立。
type Participant struct {
	ID            int               `json:"id" db:"id"`
	ParticipantID uuid.UUID         `json:"participant_id" db:"participant_id"`
	TournamentID  int               `json:"tournament_id" db:"tournament_id"`
	UserID        int               `json:"user_id" db:"user_id"`
	Status        ParticipantStatus `json:"status" db:"status"`
	TeamName      *string           `json:"team_name,omitempty" db:"team_name"`
	Notes         *string           `json:"notes,omitempty" db:"notes"`
	RegisteredAt  time.Time         `json:"registered_at" db:"registered_at"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// Confirm 確認參賽，只有 REGISTERED 可以確認
func (p *Participant) Confirm() error {
	if !p.Status.CanTransitionTo(ParticipantStatusConfirmed) {
		return apperrors.ErrInvalidTransition
	}
	p.Status = ParticipantStatusConfirmed
	return nil
}

// Cancel 取消參賽，終態後不可取消
func (p *Participant) Cancel() error {
	if !p.Status.CanTransitionTo(ParticipantStatusCancelled) {
		return apperrors.ErrInvalidTransition
	}
	p.Status = ParticipantStatusCancelled
	return nil
}

// Disqualify 取消資格：不可逆，原因附加到 notes
func (p *Participant) Disqualify(reason string) error {
	if !p.Status.CanTransitionTo(ParticipantStatusDisqualified) {
		return apperrors.ErrInvalidTransition
	}
	p.Status = ParticipantStatusDisqualified
	if reason != "" {
		note := "disqualified: " + reason
		if p.Notes != nil && *p.Notes != "" {
			note = *p.Notes + "; " + note
		}
		p.Notes = &note
	}
	return nil
}
