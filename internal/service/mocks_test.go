package service

import (
	"context"
	"sync"
	"time"

	"tournament-ticketing/internal/events"
	"tournament-ticketing/internal/model"

	"github.com/google/uuid"
)

// 簡單的函式欄位 Mock：沒設定的方法直接 panic，逼測試把依賴講清楚

type mockTournamentRepo struct {
	onCreate             func(ctx context.Context, t *model.Tournament) (*model.Tournament, error)
	onList               func(ctx context.Context) ([]*model.Tournament, error)
	onFindByID           func(ctx context.Context, id int) (*model.Tournament, error)
	onFindByTournamentID func(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error)
	onUpdateWithVersion  func(ctx context.Context, t *model.Tournament) (*model.Tournament, error)
	onAdmitParticipant   func(ctx context.Context, t *model.Tournament, p *model.Participant) error
	onDelete             func(ctx context.Context, id int) error
}

func (m *mockTournamentRepo) Create(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	return m.onCreate(ctx, t)
}

func (m *mockTournamentRepo) List(ctx context.Context) ([]*model.Tournament, error) {
	return m.onList(ctx)
}

func (m *mockTournamentRepo) FindByID(ctx context.Context, id int) (*model.Tournament, error) {
	return m.onFindByID(ctx, id)
}

func (m *mockTournamentRepo) FindByTournamentID(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	return m.onFindByTournamentID(ctx, tournamentID)
}

func (m *mockTournamentRepo) UpdateWithVersion(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	return m.onUpdateWithVersion(ctx, t)
}

func (m *mockTournamentRepo) AdmitParticipant(ctx context.Context, t *model.Tournament, p *model.Participant) error {
	return m.onAdmitParticipant(ctx, t, p)
}

func (m *mockTournamentRepo) Delete(ctx context.Context, id int) error {
	return m.onDelete(ctx, id)
}

type mockParticipantRepo struct {
	onFindByParticipantID func(ctx context.Context, participantID uuid.UUID) (*model.Participant, error)
	onListByTournamentID  func(ctx context.Context, tournamentID int) ([]*model.Participant, error)
	onUpdateStatus        func(ctx context.Context, p *model.Participant, previous model.ParticipantStatus) (*model.Participant, error)
}

func (m *mockParticipantRepo) FindByParticipantID(ctx context.Context, participantID uuid.UUID) (*model.Participant, error) {
	return m.onFindByParticipantID(ctx, participantID)
}

func (m *mockParticipantRepo) ListByTournamentID(ctx context.Context, tournamentID int) ([]*model.Participant, error) {
	return m.onListByTournamentID(ctx, tournamentID)
}

func (m *mockParticipantRepo) UpdateStatus(ctx context.Context, p *model.Participant, previous model.ParticipantStatus) (*model.Participant, error) {
	return m.onUpdateStatus(ctx, p, previous)
}

type mockTicketRepo struct {
	onCreate             func(ctx context.Context, t *model.Ticket) (*model.Ticket, error)
	onList               func(ctx context.Context) ([]*model.Ticket, error)
	onFindByID           func(ctx context.Context, id int) (*model.Ticket, error)
	onFindByTicketID     func(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error)
	onFindByCode         func(ctx context.Context, code string) (*model.Ticket, error)
	onListByTournamentID func(ctx context.Context, tournamentID int) ([]*model.Ticket, error)
	onListByUserID       func(ctx context.Context, userID int) ([]*model.Ticket, error)
	onListExpirable      func(ctx context.Context, now time.Time, limit int) ([]*model.Ticket, error)
	onUpdateWithVersion  func(ctx context.Context, t *model.Ticket) (*model.Ticket, error)
	onDelete             func(ctx context.Context, id int) error
}

func (m *mockTicketRepo) Create(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	return m.onCreate(ctx, t)
}

func (m *mockTicketRepo) List(ctx context.Context) ([]*model.Ticket, error) {
	return m.onList(ctx)
}

func (m *mockTicketRepo) FindByID(ctx context.Context, id int) (*model.Ticket, error) {
	return m.onFindByID(ctx, id)
}

func (m *mockTicketRepo) FindByTicketID(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error) {
	return m.onFindByTicketID(ctx, ticketID)
}

func (m *mockTicketRepo) FindByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return m.onFindByCode(ctx, code)
}

func (m *mockTicketRepo) ListByTournamentID(ctx context.Context, tournamentID int) ([]*model.Ticket, error) {
	return m.onListByTournamentID(ctx, tournamentID)
}

func (m *mockTicketRepo) ListByUserID(ctx context.Context, userID int) ([]*model.Ticket, error) {
	return m.onListByUserID(ctx, userID)
}

func (m *mockTicketRepo) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Ticket, error) {
	return m.onListExpirable(ctx, now, limit)
}

func (m *mockTicketRepo) UpdateWithVersion(ctx context.Context, t *model.Ticket) (*model.Ticket, error) {
	return m.onUpdateWithVersion(ctx, t)
}

func (m *mockTicketRepo) Delete(ctx context.Context, id int) error {
	return m.onDelete(ctx, id)
}

// mockSlotGate 預設全部放行，個別測試覆寫需要的行為
type mockSlotGate struct {
	onWarmUp      func(ctx context.Context, tournamentID int, slots int) error
	onOpenSlots   func(ctx context.Context, tournamentID int) (int, error)
	onReserveSlot func(ctx context.Context, tournamentID int, userID int) (bool, error)
	onReleaseSlot func(ctx context.Context, tournamentID int, userID int) error
	onInvalidate  func(ctx context.Context, tournamentID int) error

	mu            sync.Mutex
	releasedSlots []int // 記錄回滾過的 userID
}

func (m *mockSlotGate) WarmUp(ctx context.Context, tournamentID int, slots int) error {
	if m.onWarmUp != nil {
		return m.onWarmUp(ctx, tournamentID, slots)
	}
	return nil
}

func (m *mockSlotGate) OpenSlots(ctx context.Context, tournamentID int) (int, error) {
	if m.onOpenSlots != nil {
		return m.onOpenSlots(ctx, tournamentID)
	}
	return 0, nil
}

func (m *mockSlotGate) ReserveSlot(ctx context.Context, tournamentID int, userID int) (bool, error) {
	if m.onReserveSlot != nil {
		return m.onReserveSlot(ctx, tournamentID, userID)
	}
	return true, nil
}

func (m *mockSlotGate) ReleaseSlot(ctx context.Context, tournamentID int, userID int) error {
	m.mu.Lock()
	m.releasedSlots = append(m.releasedSlots, userID)
	m.mu.Unlock()
	if m.onReleaseSlot != nil {
		return m.onReleaseSlot(ctx, tournamentID, userID)
	}
	return nil
}

func (m *mockSlotGate) Invalidate(ctx context.Context, tournamentID int) error {
	if m.onInvalidate != nil {
		return m.onInvalidate(ctx, tournamentID)
	}
	return nil
}

// recordingBus 收集發佈的事件供斷言
type recordingBus struct {
	mu         sync.Mutex
	published  []*model.DomainEvent
	publishErr error
}

func (b *recordingBus) Publish(ctx context.Context, event *model.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context) (<-chan events.Delivery, error) {
	ch := make(chan events.Delivery)
	close(ch)
	return ch, nil
}

func (b *recordingBus) eventTypes() []model.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]model.EventType, 0, len(b.published))
	for _, e := range b.published {
		types = append(types, e.Type)
	}
	return types
}

// stubCodeGen 回傳固定序列的代碼，QR payload 可預測
type stubCodeGen struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *stubCodeGen) Code() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[g.next%len(g.codes)]
	g.next++
	return code
}

func (g *stubCodeGen) QRPayload(code string, ticketID uuid.UUID) string {
	return "qr:" + code
}
