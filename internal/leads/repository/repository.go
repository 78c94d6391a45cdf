package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"funnelboard/internal/boardcache"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// StageCap is how many leads each stage contributes to the balanced first
// page. Keeping the cap per stage means one crowded stage cannot starve the
// rest of the board on initial paint.
const StageCap = 30

// PageSize is the row limit for offset-paginated fetches.
const PageSize = 30

const leadColumns = `
	id, funnel_id, kanban_stage_id, name, phone, email, company, notes,
	last_message_text, last_message_at, unread_count, purchase_value_cents,
	owner_id, created_by_user_id, ai_enabled, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLead(row pgx.Row) (boardcache.Lead, error) {
	var lead boardcache.Lead
	err := row.Scan(
		&lead.ID, &lead.FunnelID, &lead.KanbanStageID, &lead.Name, &lead.Phone,
		&lead.Email, &lead.Company, &lead.Notes,
		&lead.LastMessageText, &lead.LastMessageAt, &lead.UnreadCount,
		&lead.PurchaseValueCents, &lead.OwnerID, &lead.CreatedByUserID,
		&lead.AIEnabled, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return boardcache.Lead{}, err
	}
	lead.Tags = []boardcache.Tag{}
	return lead, nil
}

func (r *Repository) collectLeads(rows pgx.Rows) ([]boardcache.Lead, error) {
	defer rows.Close()

	leads := make([]boardcache.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// attachTags loads the tags of the given leads in one query and merges them
// in. A missing tag join never drops the lead itself.
func (r *Repository) attachTags(ctx context.Context, leads []boardcache.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(leads))
	for _, lead := range leads {
		ids = append(ids, lead.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT lt.lead_id, t.id, t.name, t.color
		FROM lead_tags lt
		JOIN tags t ON t.id = lt.tag_id
		WHERE lt.lead_id = ANY($1::uuid[])
		ORDER BY t.name ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byLead := make(map[uuid.UUID][]boardcache.Tag)
	for rows.Next() {
		var leadID uuid.UUID
		var tag boardcache.Tag
		if err := rows.Scan(&leadID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return err
		}
		byLead[leadID] = append(byLead[leadID], tag)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range leads {
		if tags, ok := byLead[leads[i].ID]; ok {
			leads[i].Tags = tags
		}
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (boardcache.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return boardcache.Lead{}, ErrNotFound
	}
	if err != nil {
		return boardcache.Lead{}, err
	}

	leads := []boardcache.Lead{lead}
	if err := r.attachTags(ctx, leads); err != nil {
		return boardcache.Lead{}, err
	}
	return leads[0], nil
}

// GetByID returns one lead with tags, scoped to the owner.
func (r *Repository) GetByID(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		SELECT`+leadColumns+`
		FROM leads WHERE id = $1 AND created_by_user_id = $2
	`, id, ownerID)
}

// GetByIDUnscoped returns one lead with tags regardless of owner. The
// realtime listener uses it to re-validate ownership before touching caches.
func (r *Repository) GetByIDUnscoped(ctx context.Context, id uuid.UUID) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		SELECT`+leadColumns+`
		FROM leads WHERE id = $1
	`, id)
}

// ListByStage returns up to StageCap leads of one stage, newest activity
// first. The balanced first page issues one of these per board stage with
// page zero; per-column incremental loads pass later pages.
func (r *Repository) ListByStage(ctx context.Context, funnelID, stageID, ownerID uuid.UUID, page int) ([]boardcache.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE funnel_id = $1 AND kanban_stage_id = $2 AND created_by_user_id = $3
		ORDER BY updated_at DESC
		LIMIT $4 OFFSET $5
	`, funnelID, stageID, ownerID, StageCap, page*StageCap)
	if err != nil {
		return nil, err
	}

	leads, err := r.collectLeads(rows)
	if err != nil {
		return nil, err
	}
	return leads, r.attachTags(ctx, leads)
}

// ListPage returns one offset page of the funnel's leads ordered by most
// recent activity.
func (r *Repository) ListPage(ctx context.Context, funnelID, ownerID uuid.UUID, page int) ([]boardcache.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE funnel_id = $1 AND created_by_user_id = $2
		ORDER BY updated_at DESC
		LIMIT $3 OFFSET $4
	`, funnelID, ownerID, PageSize, page*PageSize)
	if err != nil {
		return nil, err
	}

	leads, err := r.collectLeads(rows)
	if err != nil {
		return nil, err
	}
	return leads, r.attachTags(ctx, leads)
}

// CountByFunnel returns the total lead count for a funnel. The board derives
// its optimization level from it.
func (r *Repository) CountByFunnel(ctx context.Context, funnelID, ownerID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads WHERE funnel_id = $1 AND created_by_user_id = $2
	`, funnelID, ownerID).Scan(&count)
	return count, err
}

// SearchParams narrows a filtered fetch. A purely-digit term searches the
// normalized phone digits; anything else matches name, email, company and
// notes case-insensitively.
type SearchParams struct {
	FunnelID   uuid.UUID
	OwnerID    uuid.UUID
	Term       string
	DigitsTerm string
	AssigneeID *uuid.UUID
	Page       int
}

func (r *Repository) Search(ctx context.Context, params SearchParams) ([]boardcache.Lead, error) {
	query := `
		SELECT` + leadColumns + `
		FROM leads
		WHERE funnel_id = $1 AND created_by_user_id = $2`
	args := []any{params.FunnelID, params.OwnerID}

	if params.DigitsTerm != "" {
		args = append(args, "%"+params.DigitsTerm+"%")
		query += fmt.Sprintf(` AND phone_digits LIKE $%d`, len(args))
	} else if params.Term != "" {
		args = append(args, "%"+params.Term+"%")
		n := len(args)
		query += fmt.Sprintf(` AND (name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d OR notes ILIKE $%d)`, n, n, n, n)
	}

	if params.AssigneeID != nil {
		args = append(args, *params.AssigneeID)
		query += fmt.Sprintf(` AND owner_id = $%d`, len(args))
	}

	args = append(args, PageSize, params.Page*PageSize)
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	leads, err := r.collectLeads(rows)
	if err != nil {
		return nil, err
	}
	return leads, r.attachTags(ctx, leads)
}

// FindByPhone locates a lead in a funnel by normalized phone digits. The
// inbound webhook uses it for find-or-create intake.
func (r *Repository) FindByPhone(ctx context.Context, funnelID, ownerID uuid.UUID, digits string) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		SELECT`+leadColumns+`
		FROM leads
		WHERE funnel_id = $1 AND created_by_user_id = $2 AND phone_digits = $3
	`, funnelID, ownerID, digits)
}

type CreateParams struct {
	FunnelID           uuid.UUID
	KanbanStageID      *uuid.UUID
	Name               string
	Phone              string
	PhoneDigits        string
	Email              *string
	Company            *string
	Notes              *string
	PurchaseValueCents int64
	OwnerID            *uuid.UUID
	CreatedByUserID    uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (boardcache.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			funnel_id, kanban_stage_id, name, phone, phone_digits, email, company,
			notes, purchase_value_cents, owner_id, created_by_user_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING`+leadColumns+`
	`, params.FunnelID, params.KanbanStageID, params.Name, params.Phone,
		params.PhoneDigits, params.Email, params.Company, params.Notes,
		params.PurchaseValueCents, params.OwnerID, params.CreatedByUserID))
	if err != nil {
		return boardcache.Lead{}, err
	}
	return lead, nil
}

type UpdateParams struct {
	ID                 uuid.UUID
	OwnerScope         uuid.UUID
	Name               *string
	Phone              *string
	PhoneDigits        *string
	Email              *string
	Company            *string
	Notes              *string
	PurchaseValueCents *int64
	AIEnabled          *bool
}

func (r *Repository) Update(ctx context.Context, params UpdateParams) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		UPDATE leads SET
			name = COALESCE($3, name),
			phone = COALESCE($4, phone),
			phone_digits = COALESCE($5, phone_digits),
			email = COALESCE($6, email),
			company = COALESCE($7, company),
			notes = COALESCE($8, notes),
			purchase_value_cents = COALESCE($9, purchase_value_cents),
			ai_enabled = COALESCE($10, ai_enabled),
			updated_at = now()
		WHERE id = $1 AND created_by_user_id = $2
		RETURNING`+leadColumns+`
	`, params.ID, params.OwnerScope, params.Name, params.Phone, params.PhoneDigits,
		params.Email, params.Company, params.Notes, params.PurchaseValueCents,
		params.AIEnabled)
}

// MoveStage moves a lead to a new kanban stage.
func (r *Repository) MoveStage(ctx context.Context, id, ownerID, stageID uuid.UUID) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		UPDATE leads SET kanban_stage_id = $3, updated_at = now()
		WHERE id = $1 AND created_by_user_id = $2
		RETURNING`+leadColumns+`
	`, id, ownerID, stageID)
}

// Assign changes the lead's assigned agent. A nil newOwner unassigns.
func (r *Repository) Assign(ctx context.Context, id, ownerID uuid.UUID, newOwner *uuid.UUID) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		UPDATE leads SET owner_id = $3, updated_at = now()
		WHERE id = $1 AND created_by_user_id = $2
		RETURNING`+leadColumns+`
	`, id, ownerID, newOwner)
}

func (r *Repository) Delete(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		DELETE FROM leads WHERE id = $1 AND created_by_user_id = $2
		RETURNING`+leadColumns+`
	`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return boardcache.Lead{}, ErrNotFound
	}
	return lead, err
}

// RecordInboundMessage updates messaging metadata after an inbound WhatsApp
// message: last message text and time plus an unread increment.
func (r *Repository) RecordInboundMessage(ctx context.Context, id uuid.UUID, text string, at time.Time) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		UPDATE leads SET
			last_message_text = $2,
			last_message_at = $3,
			unread_count = unread_count + 1,
			updated_at = now()
		WHERE id = $1
		RETURNING`+leadColumns+`
	`, id, text, at)
}

// MarkRead resets the unread counter.
func (r *Repository) MarkRead(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error) {
	return r.getOne(ctx, `
		UPDATE leads SET unread_count = 0, updated_at = now()
		WHERE id = $1 AND created_by_user_id = $2
		RETURNING`+leadColumns+`
	`, id, ownerID)
}

// VerifyFunnelOwner reports whether the funnel belongs to the owner.
func (r *Repository) VerifyFunnelOwner(ctx context.Context, funnelID, ownerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM funnels WHERE id = $1 AND created_by_user_id = $2)
	`, funnelID, ownerID).Scan(&exists)
	return exists, err
}
