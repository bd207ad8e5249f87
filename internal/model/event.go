package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType 領域事件類型
type EventType string

const (
	EventTournamentPublished EventType = "tournament.published"
	EventTournamentStarted   EventType = "tournament.started"
	EventTournamentFinished  EventType = "tournament.finished"
	EventTournamentCancelled EventType = "tournament.cancelled"
	EventParticipantAdmitted EventType = "participant.admitted"
	EventTicketReserved      EventType = "ticket.reserved"
	EventTicketPaid          EventType = "ticket.paid"
	EventTicketUsed          EventType = "ticket.used"
	EventTicketExpired       EventType = "ticket.expired"
	EventTicketCancelled     EventType = "ticket.cancelled"
)

// DomainEvent 每次成功的狀態轉換後發出一筆。
// 內容只有聚合 ID 與新狀態，投遞與順序保證屬於外部 bus。
type DomainEvent struct {
	Type        EventType `json:"type"`
	AggregateID uuid.UUID `json:"aggregate_id"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewDomainEvent 建立領域事件
func NewDomainEvent(eventType EventType, aggregateID uuid.UUID, status string, occurredAt time.Time) *DomainEvent {
	return &DomainEvent{
		Type:        eventType,
		AggregateID: aggregateID,
		Status:      status,
		OccurredAt:  occurredAt,
	}
}
