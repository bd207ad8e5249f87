package model

import (
	"time"

	apperrors "tournament-ticketing/pkg/app_errors"
	"tournament-ticketing/pkg/money"

	"github.com/google/uuid"
)

// TournamentType 賽事收費類型
type TournamentType string

const (
	TournamentTypeFree TournamentType = "free"
	TournamentTypePaid TournamentType = "paid"
)

func (t TournamentType) IsValid() bool {
	switch t {
	case TournamentTypeFree, TournamentTypePaid:
		return true
	}
	return false
}

// TournamentStatus 賽事狀態類型
type TournamentStatus string

const (
	TournamentStatusDraft      TournamentStatus = "draft"
	TournamentStatusPublished  TournamentStatus = "published"
	TournamentStatusInProgress TournamentStatus = "in_progress"
	TournamentStatusFinished   TournamentStatus = "finished"
	TournamentStatusCancelled  TournamentStatus = "cancelled"
)

// IsValid 驗證狀態是否有效
func (s TournamentStatus) IsValid() bool {
	switch s {
	case TournamentStatusDraft, TournamentStatusPublished, TournamentStatusInProgress,
		TournamentStatusFinished, TournamentStatusCancelled:
		return true
	}
	return false
}

// IsTerminal 終態不能再轉換
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentStatusFinished || s == TournamentStatusCancelled
}

// CanTransitionTo 檢查是否可以轉換到目標狀態。
// 完整轉換矩陣集中在這裡，自我轉換一律拒絕。
func (s TournamentStatus) CanTransitionTo(target TournamentStatus) bool {
	transitions := map[TournamentStatus][]TournamentStatus{
		TournamentStatusDraft:      {TournamentStatusPublished, TournamentStatusCancelled},
		TournamentStatusPublished:  {TournamentStatusInProgress, TournamentStatusCancelled},
		TournamentStatusInProgress: {TournamentStatusFinished, TournamentStatusCancelled},
		TournamentStatusFinished:   {},
		TournamentStatusCancelled:  {},
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

// Tournament 賽事聚合根。建立後只能透過自己的方法變更，
// 直接改欄位會破壞不變量。
type Tournament struct {
	ID                  int              `json:"id" db:"id"`
	TournamentID        uuid.UUID        `json:"tournament_id" db:"tournament_id"`
	Name                string           `json:"name" db:"name"`
	Description         *string          `json:"description,omitempty" db:"description"`
	Type                TournamentType   `json:"type" db:"type"`
	Status              TournamentStatus `json:"status" db:"status"`
	CategoryID          int              `json:"category_id" db:"category_id"`
	GameID              int              `json:"game_id" db:"game_id"`
	OrganizerID         int              `json:"organizer_id" db:"organizer_id"`
	MaxParticipants     int              `json:"max_participants" db:"max_participants"`
	CurrentParticipants int              `json:"current_participants" db:"current_participants"`
	EntryFee            float64          `json:"entry_fee" db:"entry_fee"`
	PrizePool           float64          `json:"prize_pool" db:"prize_pool"`
	CommissionRate      float64          `json:"commission_rate" db:"commission_rate"`
	RegistrationStart   time.Time        `json:"registration_start" db:"registration_start"`
	RegistrationEnd     time.Time        `json:"registration_end" db:"registration_end"`
	StartDate           time.Time        `json:"start_date" db:"start_date"`
	EndDate             time.Time        `json:"end_date" db:"end_date"`
	Version             int              `json:"version" db:"version"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
	DeletedAt           *time.Time       `json:"deleted_at,omitempty" db:"deleted_at"`

	Participants []*Participant `json:"participants,omitempty" db:"-"`
}

// NewTournamentParams 建立賽事的輸入
type NewTournamentParams struct {
	Name              string
	Description       *string
	Type              TournamentType
	CategoryID        int
	GameID            int
	OrganizerID       int
	MaxParticipants   int
	EntryFee          float64
	PrizePool         float64
	CommissionRate    float64
	RegistrationStart time.Time
	RegistrationEnd   time.Time
	StartDate         time.Time
	EndDate           time.Time
}

// NewTournament 建立 DRAFT 狀態的賽事，輸入不合法直接失敗，
// 不產生半合法物件。
func NewTournament(p NewTournamentParams) (*Tournament, error) {
	if !p.Type.IsValid() {
		return nil, apperrors.ErrInvalidArgument
	}
	if p.MaxParticipants <= 0 {
		return nil, apperrors.ErrInvalidArgument
	}
	if err := validateFee(p.Type, p.EntryFee); err != nil {
		return nil, err
	}
	if p.PrizePool < 0 {
		return nil, apperrors.ErrInvalidArgument
	}
	if p.CommissionRate < 0 || p.CommissionRate > 1 {
		return nil, apperrors.ErrInvalidArgument
	}
	if err := validateSchedule(p.RegistrationStart, p.RegistrationEnd, p.StartDate, p.EndDate); err != nil {
		return nil, err
	}

	return &Tournament{
		TournamentID:        uuid.New(),
		Name:                p.Name,
		Description:         p.Description,
		Type:                p.Type,
		Status:              TournamentStatusDraft,
		CategoryID:          p.CategoryID,
		GameID:              p.GameID,
		OrganizerID:         p.OrganizerID,
		MaxParticipants:     p.MaxParticipants,
		CurrentParticipants: 0,
		EntryFee:            p.EntryFee,
		PrizePool:           p.PrizePool,
		CommissionRate:      p.CommissionRate,
		RegistrationStart:   p.RegistrationStart,
		RegistrationEnd:     p.RegistrationEnd,
		StartDate:           p.StartDate,
		EndDate:             p.EndDate,
	}, nil
}

// validateFee FREE 必須 0 元，PAID 必須大於 0
func validateFee(t TournamentType, fee float64) error {
	if fee < 0 {
		return apperrors.ErrInvalidArgument
	}
	if t == TournamentTypeFree && fee != 0 {
		return apperrors.ErrInvalidArgument
	}
	if t == TournamentTypePaid && fee <= 0 {
		return apperrors.ErrInvalidArgument
	}
	return nil
}

// validateSchedule 驗證 registrationStart < registrationEnd <= startDate < endDate。
// DRAFT 階段允許日期尚未設定，只驗證已設定的配對。
func validateSchedule(regStart, regEnd, start, end time.Time) error {
	if !regStart.IsZero() && !regEnd.IsZero() && !regStart.Before(regEnd) {
		return apperrors.ErrInvalidArgument
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return apperrors.ErrInvalidArgument
	}
	if !regEnd.IsZero() && !start.IsZero() && regEnd.After(start) {
		return apperrors.ErrInvalidArgument
	}
	// 設定其中一個就必須設定整組
	if regStart.IsZero() != regEnd.IsZero() || start.IsZero() != end.IsZero() {
		return apperrors.ErrInvalidArgument
	}
	return nil
}

// IsDeleted 檢查賽事是否已刪除
func (t *Tournament) IsDeleted() bool {
	return t.DeletedAt != nil
}

// transitionTo 狀態機唯一入口
func (t *Tournament) transitionTo(target TournamentStatus) error {
	if !t.Status.CanTransitionTo(target) {
		return apperrors.ErrInvalidTransition
	}
	t.Status = target
	return nil
}

// Publish 發佈賽事：必須是 DRAFT 且名稱、分類、遊戲、兩組日期都已設定
func (t *Tournament) Publish() error {
	if t.Status != TournamentStatusDraft {
		return apperrors.ErrInvalidTransition
	}
	if t.Name == "" || t.CategoryID == 0 || t.GameID == 0 ||
		t.RegistrationStart.IsZero() || t.RegistrationEnd.IsZero() ||
		t.StartDate.IsZero() || t.EndDate.IsZero() {
		return apperrors.ErrIncompleteConfiguration
	}
	return t.transitionTo(TournamentStatusPublished)
}

// Start 開始賽事：至少 2 名已報名參賽者才能開打
func (t *Tournament) Start() error {
	if t.Status == TournamentStatusPublished && t.CurrentParticipants < 2 {
		return apperrors.ErrInsufficientParticipants
	}
	return t.transitionTo(TournamentStatusInProgress)
}

// Finish 結束賽事
func (t *Tournament) Finish() error {
	return t.transitionTo(TournamentStatusFinished)
}

// Cancel 取消賽事
func (t *Tournament) Cancel() error {
	return t.transitionTo(TournamentStatusCancelled)
}

// IsRegistrationOpen 報名是否開放的唯一權威判斷，
// DTO 上的衍生欄位一律從這裡重新計算，不另存旗標。
func (t *Tournament) IsRegistrationOpen(now time.Time) bool {
	return t.Status == TournamentStatusPublished &&
		now.After(t.RegistrationStart) &&
		now.Before(t.RegistrationEnd)
}

// HasAvailableSlots 是否還有名額
func (t *Tournament) HasAvailableSlots() bool {
	return t.CurrentParticipants < t.MaxParticipants
}

// AdmitParticipant 報名：三個檢查與變更必須在同一次版本檢查寫入中落地，
// (見 repository.AdmitParticipant)，這裡只負責記憶體內的不變量。
func (t *Tournament) AdmitParticipant(userID int, teamName, notes *string, now time.Time) (*Participant, error) {
	if t.Status != TournamentStatusPublished {
		return nil, apperrors.ErrRegistrationClosed
	}
	if !now.After(t.RegistrationStart) || !now.Before(t.RegistrationEnd) {
		return nil, apperrors.ErrRegistrationWindowClosed
	}
	if !t.HasAvailableSlots() {
		return nil, apperrors.ErrCapacityExceeded
	}

	participant := &Participant{
		ParticipantID: uuid.New(),
		TournamentID:  t.ID,
		UserID:        userID,
		Status:        ParticipantStatusRegistered,
		TeamName:      teamName,
		Notes:         notes,
		RegisteredAt:  now,
	}

	t.CurrentParticipants++
	t.Participants = append(t.Participants, participant)
	return participant, nil
}

// UpdateTournamentInfoParams 基本資料更新，nil 代表不變更
type UpdateTournamentInfoParams struct {
	Name            *string
	Description     *string
	CategoryID      *int
	GameID          *int
	MaxParticipants *int
	EntryFee        *float64
	PrizePool       *float64
	CommissionRate  *float64
}

// UpdateBasicInfo 只有 DRAFT 可以改基本資料，改完重新驗證所有不變量
func (t *Tournament) UpdateBasicInfo(p UpdateTournamentInfoParams) error {
	if t.Status != TournamentStatusDraft {
		return apperrors.ErrInvalidState
	}

	name := t.Name
	maxParticipants := t.MaxParticipants
	entryFee := t.EntryFee
	prizePool := t.PrizePool
	commissionRate := t.CommissionRate

	if p.Name != nil {
		name = *p.Name
	}
	if p.MaxParticipants != nil {
		maxParticipants = *p.MaxParticipants
	}
	if p.EntryFee != nil {
		entryFee = *p.EntryFee
	}
	if p.PrizePool != nil {
		prizePool = *p.PrizePool
	}
	if p.CommissionRate != nil {
		commissionRate = *p.CommissionRate
	}

	if name == "" {
		return apperrors.ErrInvalidArgument
	}
	if maxParticipants <= 0 || maxParticipants < t.CurrentParticipants {
		return apperrors.ErrInvalidArgument
	}
	if err := validateFee(t.Type, entryFee); err != nil {
		return err
	}
	if prizePool < 0 {
		return apperrors.ErrInvalidArgument
	}
	if commissionRate < 0 || commissionRate > 1 {
		return apperrors.ErrInvalidArgument
	}

	t.Name = name
	t.MaxParticipants = maxParticipants
	t.EntryFee = entryFee
	t.PrizePool = prizePool
	t.CommissionRate = commissionRate
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.GameID != nil {
		t.GameID = *p.GameID
	}
	return nil
}

// UpdateDates 只有 DRAFT 可以改日期，四個一起給、一起驗證
func (t *Tournament) UpdateDates(regStart, regEnd, start, end time.Time) error {
	if t.Status != TournamentStatusDraft {
		return apperrors.ErrInvalidState
	}
	if regStart.IsZero() || regEnd.IsZero() || start.IsZero() || end.IsZero() {
		return apperrors.ErrInvalidArgument
	}
	if err := validateSchedule(regStart, regEnd, start, end); err != nil {
		return err
	}
	t.RegistrationStart = regStart
	t.RegistrationEnd = regEnd
	t.StartDate = start
	t.EndDate = end
	return nil
}

// TotalCommission 平台總抽成：entryFee × currentParticipants × commissionRate。
// 純計算，無副作用；免費賽事固定為 0。
func (t *Tournament) TotalCommission() float64 {
	if t.Type == TournamentTypeFree {
		return 0
	}
	return money.Commission(t.EntryFee*float64(t.CurrentParticipants), t.CommissionRate)
}
