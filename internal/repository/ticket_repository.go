package repository

import (
	"context"
	"time"

	"tournament-ticketing/internal/model"
	apperrors "tournament-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `id, ticket_id, code, qr_payload, status,
		price, commission, commission_rate,
		tournament_id, user_id, payment_ref,
		reserved_at, expires_at, used_at,
		version, created_at, updated_at, deleted_at`

type TicketRepository interface {
	Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error)
	List(ctx context.Context) ([]*model.Ticket, error)
	FindByID(ctx context.Context, id int) (*model.Ticket, error)
	FindByTicketID(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error)
	FindByCode(ctx context.Context, code string) (*model.Ticket, error)
	ListByTournamentID(ctx context.Context, tournamentID int) ([]*model.Ticket, error)
	ListByUserID(ctx context.Context, userID int) ([]*model.Ticket, error)
	// ListExpirable 撈出已到期且尚未進終態的票，供 Sweeper 批次處理
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Ticket, error)
	// UpdateWithVersion 樂觀鎖寫入：版本不符回傳 ErrConcurrentModification
	UpdateWithVersion(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error)
	Delete(ctx context.Context, id int) error
}

type TicketRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &TicketRepositoryImpl{
		pool: pool,
	}
}

func scanTicket(row tournamentRow, t *model.Ticket) error {
	return row.Scan(
		&t.ID,
		&t.TicketID,
		&t.Code,
		&t.QRPayload,
		&t.Status,
		&t.Price,
		&t.Commission,
		&t.CommissionRate,
		&t.TournamentID,
		&t.UserID,
		&t.PaymentRef,
		&t.ReservedAt,
		&t.ExpiresAt,
		&t.UsedAt,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
}

func (r *TicketRepositoryImpl) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	query := `
		INSERT INTO tickets (
			ticket_id, code, qr_payload, status,
			price, commission, commission_rate,
			tournament_id, user_id, reserved_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + ticketColumns

	row := r.pool.QueryRow(ctx, query,
		ticket.TicketID, ticket.Code, ticket.QRPayload, ticket.Status,
		ticket.Price, ticket.Commission, ticket.CommissionRate,
		ticket.TournamentID, ticket.UserID, ticket.ReservedAt, ticket.ExpiresAt,
	)

	if err := scanTicket(row, ticket); err != nil {
		return nil, err
	}

	return ticket, nil
}

func (r *TicketRepositoryImpl) List(ctx context.Context) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`
	return r.queryTickets(ctx, query)
}

func (r *TicketRepositoryImpl) ListByTournamentID(ctx context.Context, tournamentID int) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE tournament_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	return r.queryTickets(ctx, query, tournamentID)
}

func (r *TicketRepositoryImpl) ListByUserID(ctx context.Context, userID int) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	return r.queryTickets(ctx, query, userID)
}

// ListExpirable RESERVED / PAID 且 expires_at <= now。
// USED 不會被撈到，因為 used 已是獨立終態。
func (r *TicketRepositoryImpl) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE status IN ($1, $2)
		  AND expires_at <= $3
		  AND deleted_at IS NULL
		ORDER BY expires_at ASC
		LIMIT $4
	`
	return r.queryTickets(ctx, query, model.TicketStatusReserved, model.TicketStatusPaid, now, limit)
}

func (r *TicketRepositoryImpl) queryTickets(ctx context.Context, query string, args ...any) ([]*model.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]*model.Ticket, 0)

	for rows.Next() {
		var ticket model.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tickets, nil
}

func (r *TicketRepositoryImpl) FindByID(ctx context.Context, id int) (*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.findOne(ctx, query, id)
}

func (r *TicketRepositoryImpl) FindByTicketID(ctx context.Context, ticketID uuid.UUID) (*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE ticket_id = $1 AND deleted_at IS NULL
	`
	return r.findOne(ctx, query, ticketID)
}

func (r *TicketRepositoryImpl) FindByCode(ctx context.Context, code string) (*model.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE code = $1 AND deleted_at IS NULL
	`
	return r.findOne(ctx, query, code)
}

func (r *TicketRepositoryImpl) findOne(ctx context.Context, query string, arg any) (*model.Ticket, error) {
	var ticket model.Ticket
	err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

// UpdateWithVersion 整個聚合一次寫回，WHERE 帶版本號。
// Sweeper 與使用者操作競爭同一張票時，誰先寫入誰贏，
// 輸的一方拿到 ErrConcurrentModification 後重讀新狀態。
func (r *TicketRepositoryImpl) UpdateWithVersion(ctx context.Context, ticket *model.Ticket) (*model.Ticket, error) {
	query := `
		UPDATE tickets
		SET status = $1, commission = $2, payment_ref = $3, used_at = $4,
			version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7 AND deleted_at IS NULL
		RETURNING ` + ticketColumns

	row := r.pool.QueryRow(ctx, query,
		ticket.Status, ticket.Commission, ticket.PaymentRef, ticket.UsedAt,
		time.Now().UTC(),
		ticket.ID, ticket.Version,
	)

	if err := scanTicket(row, ticket); err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.classifyVersionMiss(ctx, ticket.ID)
		}
		return nil, err
	}

	return ticket, nil
}

func (r *TicketRepositoryImpl) classifyVersionMiss(ctx context.Context, id int) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1 AND deleted_at IS NULL)`, id,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.ErrConcurrentModification
	}
	return apperrors.ErrTicketNotFound
}

func (r *TicketRepositoryImpl) Delete(ctx context.Context, id int) error {
	query := `
		UPDATE tickets
		SET deleted_at = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`

	now := time.Now().UTC()
	result, err := r.pool.Exec(ctx, query, now, now, id)
	if err != nil {
		return err
	}

	// check if ticket exists and not already deleted
	if result.RowsAffected() == 0 {
		return apperrors.ErrTicketNotFound
	}

	return nil
}
