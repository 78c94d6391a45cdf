package repository

import (
	"context"
	"errors"
	"time"

	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("tag not found")
	ErrDuplicateName = errors.New("tag name already exists")
	ErrLeadNotFound  = errors.New("lead not found")
)

// Tag is a tenant-scoped label attachable to any number of leads.
type Tag struct {
	ID              uuid.UUID
	Name            string
	Color           string
	CreatedByUserID uuid.UUID
	CreatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, name, color string, ownerID uuid.UUID) (Tag, error) {
	var tag Tag
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tags (name, color, created_by_user_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, color, created_by_user_id, created_at
	`, name, color, ownerID).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedByUserID, &tag.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tag{}, ErrDuplicateName
		}
		return Tag{}, err
	}
	return tag, nil
}

func (r *Repository) Get(ctx context.Context, id, ownerID uuid.UUID) (Tag, error) {
	var tag Tag
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, color, created_by_user_id, created_at
		FROM tags WHERE id = $1 AND created_by_user_id = $2
	`, id, ownerID).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedByUserID, &tag.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tag{}, ErrNotFound
	}
	return tag, err
}

func (r *Repository) List(ctx context.Context, ownerID uuid.UUID) ([]Tag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, color, created_by_user_id, created_at
		FROM tags WHERE created_by_user_id = $1
		ORDER BY name ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]Tag, 0)
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedByUserID, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id, ownerID uuid.UUID, name, color *string) (Tag, error) {
	var tag Tag
	err := r.pool.QueryRow(ctx, `
		UPDATE tags SET
			name = COALESCE($3, name),
			color = COALESCE($4, color)
		WHERE id = $1 AND created_by_user_id = $2
		RETURNING id, name, color, created_by_user_id, created_at
	`, id, ownerID, name, color).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.CreatedByUserID, &tag.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tag{}, ErrDuplicateName
		}
		return Tag{}, err
	}
	return tag, nil
}

func (r *Repository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM tags WHERE id = $1 AND created_by_user_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LeadRef identifies a lead's tenant owner and funnel, for ownership checks
// and event payloads around tag mutations.
type LeadRef struct {
	OwnerID  uuid.UUID
	FunnelID uuid.UUID
}

func (r *Repository) GetLeadRef(ctx context.Context, leadID uuid.UUID) (LeadRef, error) {
	var ref LeadRef
	err := r.pool.QueryRow(ctx, `
		SELECT created_by_user_id, funnel_id FROM leads WHERE id = $1
	`, leadID).Scan(&ref.OwnerID, &ref.FunnelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadRef{}, ErrLeadNotFound
	}
	return ref, err
}

// AttachToLead links a tag to a lead. Re-attaching an already linked tag is a
// no-op, so double-clicks and replayed requests never fail or duplicate.
func (r *Repository) AttachToLead(ctx context.Context, leadID, tagID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_tags (lead_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (lead_id, tag_id) DO NOTHING
	`, leadID, tagID)
	return err
}

// DetachFromLead unlinks a tag from a lead. Detaching an absent link is a
// no-op for the same idempotency reason.
func (r *Repository) DetachFromLead(ctx context.Context, leadID, tagID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM lead_tags WHERE lead_id = $1 AND tag_id = $2
	`, leadID, tagID)
	return err
}

// AttachToLeads links one tag to many leads in a single statement. Existing
// links are skipped.
func (r *Repository) AttachToLeads(ctx context.Context, leadIDs []uuid.UUID, tagID uuid.UUID) error {
	if len(leadIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_tags (lead_id, tag_id)
		SELECT unnest($1::uuid[]), $2
		ON CONFLICT (lead_id, tag_id) DO NOTHING
	`, leadIDs, tagID)
	return err
}

// DetachFromLeads unlinks one tag from many leads in a single statement.
func (r *Repository) DetachFromLeads(ctx context.Context, leadIDs []uuid.UUID, tagID uuid.UUID) error {
	if len(leadIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM lead_tags WHERE lead_id = ANY($1::uuid[]) AND tag_id = $2
	`, leadIDs, tagID)
	return err
}

// FilterOwnedLeads returns the subset of the given lead ids that belong to
// the owner. Batch mutations only touch leads that pass this filter.
func (r *Repository) FilterOwnedLeads(ctx context.Context, leadIDs []uuid.UUID, ownerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM leads WHERE id = ANY($1::uuid[]) AND created_by_user_id = $2
	`, leadIDs, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owned := make([]uuid.UUID, 0, len(leadIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owned = append(owned, id)
	}
	return owned, rows.Err()
}

// ListForLead returns the lead's tags in the flattened board shape, ordered
// by name. A lead without tags gets an empty slice, never nil.
func (r *Repository) ListForLead(ctx context.Context, leadID uuid.UUID) ([]boardcache.Tag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, t.color
		FROM lead_tags lt
		JOIN tags t ON t.id = lt.tag_id
		WHERE lt.lead_id = $1
		ORDER BY t.name ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]boardcache.Tag, 0)
	for rows.Next() {
		var tag boardcache.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ListLeadIDsWithTag returns the ids of leads currently carrying the tag.
// The delete path uses it to re-patch cached copies after the tag is gone.
func (r *Repository) ListLeadIDsWithTag(ctx context.Context, tagID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lead_id FROM lead_tags WHERE tag_id = $1
	`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
