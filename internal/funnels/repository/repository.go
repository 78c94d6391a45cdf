package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("funnel not found")
var ErrStageNotFound = errors.New("stage not found")

// Funnel is a named pipeline owning an ordered set of stages.
type Funnel struct {
	ID              uuid.UUID
	Name            string
	CreatedByUserID uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stage is an ordered pipeline step. Stages flagged won or lost are terminal
// and excluded from the default board view; order_position totally orders the
// non-terminal stages of a funnel.
type Stage struct {
	ID            uuid.UUID
	FunnelID      uuid.UUID
	Title         string
	Color         string
	OrderPosition int
	IsWon         bool
	IsLost        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateFunnel(ctx context.Context, name string, ownerID uuid.UUID) (Funnel, error) {
	var funnel Funnel
	err := r.pool.QueryRow(ctx, `
		INSERT INTO funnels (name, created_by_user_id)
		VALUES ($1, $2)
		RETURNING id, name, created_by_user_id, created_at, updated_at
	`, name, ownerID).Scan(&funnel.ID, &funnel.Name, &funnel.CreatedByUserID, &funnel.CreatedAt, &funnel.UpdatedAt)
	return funnel, err
}

func (r *Repository) GetFunnel(ctx context.Context, id, ownerID uuid.UUID) (Funnel, error) {
	var funnel Funnel
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, created_by_user_id, created_at, updated_at
		FROM funnels WHERE id = $1 AND created_by_user_id = $2
	`, id, ownerID).Scan(&funnel.ID, &funnel.Name, &funnel.CreatedByUserID, &funnel.CreatedAt, &funnel.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Funnel{}, ErrNotFound
	}
	return funnel, err
}

// FunnelOwner returns the creating user of a funnel without tenant scoping.
// Used by unauthenticated intake paths that carry only a funnel id.
func (r *Repository) FunnelOwner(ctx context.Context, funnelID uuid.UUID) (uuid.UUID, error) {
	var ownerID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT created_by_user_id FROM funnels WHERE id = $1
	`, funnelID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return ownerID, err
}

func (r *Repository) ListFunnels(ctx context.Context, ownerID uuid.UUID) ([]Funnel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_by_user_id, created_at, updated_at
		FROM funnels WHERE created_by_user_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	funnels := make([]Funnel, 0)
	for rows.Next() {
		var funnel Funnel
		if err := rows.Scan(&funnel.ID, &funnel.Name, &funnel.CreatedByUserID, &funnel.CreatedAt, &funnel.UpdatedAt); err != nil {
			return nil, err
		}
		funnels = append(funnels, funnel)
	}
	return funnels, rows.Err()
}

func (r *Repository) RenameFunnel(ctx context.Context, id, ownerID uuid.UUID, name string) (Funnel, error) {
	var funnel Funnel
	err := r.pool.QueryRow(ctx, `
		UPDATE funnels SET name = $3, updated_at = now()
		WHERE id = $1 AND created_by_user_id = $2
		RETURNING id, name, created_by_user_id, created_at, updated_at
	`, id, ownerID, name).Scan(&funnel.ID, &funnel.Name, &funnel.CreatedByUserID, &funnel.CreatedAt, &funnel.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Funnel{}, ErrNotFound
	}
	return funnel, err
}

func (r *Repository) DeleteFunnel(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM funnels WHERE id = $1 AND created_by_user_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type CreateStageParams struct {
	FunnelID      uuid.UUID
	Title         string
	Color         string
	OrderPosition int
	IsWon         bool
	IsLost        bool
}

func (r *Repository) CreateStage(ctx context.Context, params CreateStageParams) (Stage, error) {
	var stage Stage
	err := r.pool.QueryRow(ctx, `
		INSERT INTO kanban_stages (funnel_id, title, color, order_position, is_won, is_lost)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, funnel_id, title, color, order_position, is_won, is_lost, created_at, updated_at
	`, params.FunnelID, params.Title, params.Color, params.OrderPosition, params.IsWon, params.IsLost).Scan(
		&stage.ID, &stage.FunnelID, &stage.Title, &stage.Color, &stage.OrderPosition,
		&stage.IsWon, &stage.IsLost, &stage.CreatedAt, &stage.UpdatedAt,
	)
	return stage, err
}

func (r *Repository) GetStage(ctx context.Context, id uuid.UUID) (Stage, error) {
	var stage Stage
	err := r.pool.QueryRow(ctx, `
		SELECT id, funnel_id, title, color, order_position, is_won, is_lost, created_at, updated_at
		FROM kanban_stages WHERE id = $1
	`, id).Scan(
		&stage.ID, &stage.FunnelID, &stage.Title, &stage.Color, &stage.OrderPosition,
		&stage.IsWon, &stage.IsLost, &stage.CreatedAt, &stage.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return stage, err
}

// ListStages returns all stages of a funnel ordered by position.
func (r *Repository) ListStages(ctx context.Context, funnelID uuid.UUID) ([]Stage, error) {
	return r.listStages(ctx, funnelID, false)
}

// ListBoardStages returns the non-terminal stages of a funnel ordered by
// position. Won and lost stages never appear on the default board.
func (r *Repository) ListBoardStages(ctx context.Context, funnelID uuid.UUID) ([]Stage, error) {
	return r.listStages(ctx, funnelID, true)
}

func (r *Repository) listStages(ctx context.Context, funnelID uuid.UUID, boardOnly bool) ([]Stage, error) {
	query := `
		SELECT id, funnel_id, title, color, order_position, is_won, is_lost, created_at, updated_at
		FROM kanban_stages WHERE funnel_id = $1`
	if boardOnly {
		query += ` AND is_won = false AND is_lost = false`
	}
	query += ` ORDER BY order_position ASC`

	rows, err := r.pool.Query(ctx, query, funnelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]Stage, 0)
	for rows.Next() {
		var stage Stage
		if err := rows.Scan(
			&stage.ID, &stage.FunnelID, &stage.Title, &stage.Color, &stage.OrderPosition,
			&stage.IsWon, &stage.IsLost, &stage.CreatedAt, &stage.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

type UpdateStageParams struct {
	ID     uuid.UUID
	Title  *string
	Color  *string
	IsWon  *bool
	IsLost *bool
}

func (r *Repository) UpdateStage(ctx context.Context, params UpdateStageParams) (Stage, error) {
	var stage Stage
	err := r.pool.QueryRow(ctx, `
		UPDATE kanban_stages SET
			title = COALESCE($2, title),
			color = COALESCE($3, color),
			is_won = COALESCE($4, is_won),
			is_lost = COALESCE($5, is_lost),
			updated_at = now()
		WHERE id = $1
		RETURNING id, funnel_id, title, color, order_position, is_won, is_lost, created_at, updated_at
	`, params.ID, params.Title, params.Color, params.IsWon, params.IsLost).Scan(
		&stage.ID, &stage.FunnelID, &stage.Title, &stage.Color, &stage.OrderPosition,
		&stage.IsWon, &stage.IsLost, &stage.CreatedAt, &stage.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrStageNotFound
	}
	return stage, err
}

// ReorderStages rewrites positions for all listed stages in one transaction
// so the strict total order never shows a torn intermediate state.
func (r *Repository) ReorderStages(ctx context.Context, funnelID uuid.UUID, orderedIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for position, stageID := range orderedIDs {
		tag, err := tx.Exec(ctx, `
			UPDATE kanban_stages SET order_position = $3, updated_at = now()
			WHERE id = $1 AND funnel_id = $2
		`, stageID, funnelID, position)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStageNotFound
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) DeleteStage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM kanban_stages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStageNotFound
	}
	return nil
}
