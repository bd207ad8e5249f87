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

const participantColumns = `id, participant_id, tournament_id, user_id, status,
		team_name, notes, registered_at, created_at, updated_at`

type ParticipantRepository interface {
	FindByParticipantID(ctx context.Context, participantID uuid.UUID) (*model.Participant, error)
	ListByTournamentID(ctx context.Context, tournamentID int) ([]*model.Participant, error)
	// UpdateStatus 狀態轉換寫入，WHERE 帶舊狀態，輸掉競爭回傳 ErrConcurrentModification
	UpdateStatus(ctx context.Context, participant *model.Participant, previous model.ParticipantStatus) (*model.Participant, error)
}

type ParticipantRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) ParticipantRepository {
	return &ParticipantRepositoryImpl{
		pool: pool,
	}
}

func scanParticipant(row tournamentRow, p *model.Participant) error {
	return row.Scan(
		&p.ID,
		&p.ParticipantID,
		&p.TournamentID,
		&p.UserID,
		&p.Status,
		&p.TeamName,
		&p.Notes,
		&p.RegisteredAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *ParticipantRepositoryImpl) FindByParticipantID(ctx context.Context, participantID uuid.UUID) (*model.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE participant_id = $1
	`

	var participant model.Participant
	err := scanParticipant(r.pool.QueryRow(ctx, query, participantID), &participant)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrParticipantNotFound
		}
		return nil, err
	}

	return &participant, nil
}

func (r *ParticipantRepositoryImpl) ListByTournamentID(ctx context.Context, tournamentID int) ([]*model.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE tournament_id = $1
		ORDER BY registered_at ASC
	`

	rows, err := r.pool.Query(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]*model.Participant, 0)

	for rows.Next() {
		var participant model.Participant
		if err := scanParticipant(rows, &participant); err != nil {
			return nil, err
		}
		participants = append(participants, &participant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return participants, nil
}

// UpdateStatus 參賽者沒有版本欄位，改用舊狀態當樂觀檢查條件：
// 同一列的兩個併發轉換只會有一個命中 WHERE。
func (r *ParticipantRepositoryImpl) UpdateStatus(ctx context.Context, participant *model.Participant, previous model.ParticipantStatus) (*model.Participant, error) {
	query := `
		UPDATE participants
		SET status = $1, notes = $2, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + participantColumns

	row := r.pool.QueryRow(ctx, query,
		participant.Status, participant.Notes, time.Now().UTC(),
		participant.ID, previous,
	)

	if err := scanParticipant(row, participant); err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.classifyStatusMiss(ctx, participant.ID)
		}
		return nil, err
	}

	return participant, nil
}

func (r *ParticipantRepositoryImpl) classifyStatusMiss(ctx context.Context, id int) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.ErrConcurrentModification
	}
	return apperrors.ErrParticipantNotFound
}
