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

const tournamentColumns = `id, tournament_id, name, description, type, status,
		category_id, game_id, organizer_id,
		max_participants, current_participants,
		entry_fee, prize_pool, commission_rate,
		registration_start, registration_end, start_date, end_date,
		version, created_at, updated_at, deleted_at`

type TournamentRepository interface {
	Create(ctx context.Context, tournament *model.Tournament) (*model.Tournament, error)
	List(ctx context.Context) ([]*model.Tournament, error)
	FindByID(ctx context.Context, id int) (*model.Tournament, error)
	FindByTournamentID(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error)
	// UpdateWithVersion 樂觀鎖寫入：版本不符回傳 ErrConcurrentModification
	UpdateWithVersion(ctx context.Context, tournament *model.Tournament) (*model.Tournament, error)
	// AdmitParticipant 同一交易內完成賽事版本檢查寫入與參賽者寫入
	AdmitParticipant(ctx context.Context, tournament *model.Tournament, participant *model.Participant) error
	Delete(ctx context.Context, id int) error
}

type TournamentRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTournamentRepository(pool *pgxpool.Pool) TournamentRepository {
	return &TournamentRepositoryImpl{
		pool: pool,
	}
}

type tournamentRow interface {
	Scan(dest ...any) error
}

func scanTournament(row tournamentRow, t *model.Tournament) error {
	return row.Scan(
		&t.ID,
		&t.TournamentID,
		&t.Name,
		&t.Description,
		&t.Type,
		&t.Status,
		&t.CategoryID,
		&t.GameID,
		&t.OrganizerID,
		&t.MaxParticipants,
		&t.CurrentParticipants,
		&t.EntryFee,
		&t.PrizePool,
		&t.CommissionRate,
		&t.RegistrationStart,
		&t.RegistrationEnd,
		&t.StartDate,
		&t.EndDate,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
}

func (r *TournamentRepositoryImpl) Create(ctx context.Context, tournament *model.Tournament) (*model.Tournament, error) {
	query := `
		INSERT INTO tournaments (
			tournament_id, name, description, type, status,
			category_id, game_id, organizer_id,
			max_participants, current_participants,
			entry_fee, prize_pool, commission_rate,
			registration_start, registration_end, start_date, end_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + tournamentColumns

	row := r.pool.QueryRow(ctx, query,
		tournament.TournamentID, tournament.Name, tournament.Description,
		tournament.Type, tournament.Status,
		tournament.CategoryID, tournament.GameID, tournament.OrganizerID,
		tournament.MaxParticipants, tournament.CurrentParticipants,
		tournament.EntryFee, tournament.PrizePool, tournament.CommissionRate,
		tournament.RegistrationStart, tournament.RegistrationEnd,
		tournament.StartDate, tournament.EndDate,
	)

	if err := scanTournament(row, tournament); err != nil {
		return nil, err
	}

	return tournament, nil
}

func (r *TournamentRepositoryImpl) List(ctx context.Context) ([]*model.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]*model.Tournament, 0)

	for rows.Next() {
		var tournament model.Tournament
		if err := scanTournament(rows, &tournament); err != nil {
			return nil, err
		}
		tournaments = append(tournaments, &tournament)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tournaments, nil
}

func (r *TournamentRepositoryImpl) FindByID(ctx context.Context, id int) (*model.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE id = $1 AND deleted_at IS NULL
	`

	var tournament model.Tournament
	err := scanTournament(r.pool.QueryRow(ctx, query, id), &tournament)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrTournamentNotFound
		}
		return nil, err
	}

	return &tournament, nil
}

func (r *TournamentRepositoryImpl) FindByTournamentID(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE tournament_id = $1 AND deleted_at IS NULL
	`

	var tournament model.Tournament
	err := scanTournament(r.pool.QueryRow(ctx, query, tournamentID), &tournament)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrTournamentNotFound
		}
		return nil, err
	}

	return &tournament, nil
}

// UpdateWithVersion 整個聚合一次寫回，WHERE 帶版本號。
// 影響 0 列時區分「不存在」與「版本衝突」，絕不默默套用舊讀取。
func (r *TournamentRepositoryImpl) UpdateWithVersion(ctx context.Context, tournament *model.Tournament) (*model.Tournament, error) {
	updated, err := r.updateWithVersionTx(ctx, r.pool, tournament)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// queryRower pool 與 tx 共用的最小介面
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *TournamentRepositoryImpl) updateWithVersionTx(ctx context.Context, q queryRower, tournament *model.Tournament) (*model.Tournament, error) {
	query := `
		UPDATE tournaments
		SET name = $1, description = $2, status = $3,
			category_id = $4, game_id = $5,
			max_participants = $6, current_participants = $7,
			entry_fee = $8, prize_pool = $9, commission_rate = $10,
			registration_start = $11, registration_end = $12,
			start_date = $13, end_date = $14,
			version = version + 1, updated_at = $15
		WHERE id = $16 AND version = $17 AND deleted_at IS NULL
		RETURNING ` + tournamentColumns

	row := q.QueryRow(ctx, query,
		tournament.Name, tournament.Description, tournament.Status,
		tournament.CategoryID, tournament.GameID,
		tournament.MaxParticipants, tournament.CurrentParticipants,
		tournament.EntryFee, tournament.PrizePool, tournament.CommissionRate,
		tournament.RegistrationStart, tournament.RegistrationEnd,
		tournament.StartDate, tournament.EndDate,
		time.Now().UTC(),
		tournament.ID, tournament.Version,
	)

	if err := scanTournament(row, tournament); err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.classifyVersionMiss(ctx, tournament.ID)
		}
		return nil, err
	}

	return tournament, nil
}

// classifyVersionMiss 版本檢查沒命中：活著的列還在就是衝突，否則是不存在
func (r *TournamentRepositoryImpl) classifyVersionMiss(ctx context.Context, id int) error {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tournaments WHERE id = $1 AND deleted_at IS NULL)`, id,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.ErrConcurrentModification
	}
	return apperrors.ErrTournamentNotFound
}

// AdmitParticipant 名額檢查與佔位必須是同一個原子單位：
// 賽事的版本檢查寫入與參賽者 INSERT 綁在一個交易裡，
// 兩個併發報名只會有一個通過版本檢查。
func (r *TournamentRepositoryImpl) AdmitParticipant(ctx context.Context, tournament *model.Tournament, participant *model.Participant) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := r.updateWithVersionTx(ctx, tx, tournament); err != nil {
		return err
	}

	query := `
		INSERT INTO participants (
			participant_id, tournament_id, user_id, status, team_name, notes, registered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, participant_id, tournament_id, user_id, status,
			team_name, notes, registered_at, created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		participant.ParticipantID, participant.TournamentID, participant.UserID,
		participant.Status, participant.TeamName, participant.Notes, participant.RegisteredAt,
	).Scan(
		&participant.ID,
		&participant.ParticipantID,
		&participant.TournamentID,
		&participant.UserID,
		&participant.Status,
		&participant.TeamName,
		&participant.Notes,
		&participant.RegisteredAt,
		&participant.CreatedAt,
		&participant.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *TournamentRepositoryImpl) Delete(ctx context.Context, id int) error {
	query := `
		UPDATE tournaments
		SET deleted_at = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`

	now := time.Now().UTC()
	result, err := r.pool.Exec(ctx, query, now, now, id)
	if err != nil {
		return err
	}

	// check if tournament exists and not already deleted
	if result.RowsAffected() == 0 {
		return apperrors.ErrTournamentNotFound
	}

	return nil
}
