package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	funnelrepo "funnelboard/internal/funnels/repository"
	"funnelboard/internal/leads/repository"
	"funnelboard/internal/leads/transport"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/apperr"
	"funnelboard/platform/logger"
	"funnelboard/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StageSource is the narrow view of the funnels service the lead fetchers
// need: the board's stage list and individual stage rows.
type StageSource interface {
	BoardStages(ctx context.Context, funnelID uuid.UUID) ([]funnelrepo.Stage, error)
	StageByID(ctx context.Context, stageID uuid.UUID) (funnelrepo.Stage, error)
}

// LeadStore is the lead persistence surface the service drives. The pgx
// repository is the production implementation.
type LeadStore interface {
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error)
	GetByIDUnscoped(ctx context.Context, id uuid.UUID) (boardcache.Lead, error)
	ListByStage(ctx context.Context, funnelID, stageID, ownerID uuid.UUID, page int) ([]boardcache.Lead, error)
	ListPage(ctx context.Context, funnelID, ownerID uuid.UUID, page int) ([]boardcache.Lead, error)
	CountByFunnel(ctx context.Context, funnelID, ownerID uuid.UUID) (int, error)
	Search(ctx context.Context, params repository.SearchParams) ([]boardcache.Lead, error)
	FindByPhone(ctx context.Context, funnelID, ownerID uuid.UUID, digits string) (boardcache.Lead, error)
	Create(ctx context.Context, params repository.CreateParams) (boardcache.Lead, error)
	Update(ctx context.Context, params repository.UpdateParams) (boardcache.Lead, error)
	MoveStage(ctx context.Context, id, ownerID, stageID uuid.UUID) (boardcache.Lead, error)
	Assign(ctx context.Context, id, ownerID uuid.UUID, newOwner *uuid.UUID) (boardcache.Lead, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error)
	RecordInboundMessage(ctx context.Context, id uuid.UUID, text string, at time.Time) (boardcache.Lead, error)
	MarkRead(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error)
	VerifyFunnelOwner(ctx context.Context, funnelID, ownerID uuid.UUID) (bool, error)
}

var _ LeadStore = (*repository.Repository)(nil)

// Service implements lead fetchers and mutations. Reads go through the shared
// board cache; every mutation patches the cache in place and publishes a
// typed event for the realtime layer.
//
/// Read-path failures are soft: an errored fetch yields an empty page and a
// logged error, never a failed board.
type Service struct {
	repo     LeadStore
	stages   StageSource
	resolver *tenancy.Resolver
	cache    *boardcache.Store
	bus      events.Bus
	log      *logger.Logger
}

func New(repo LeadStore, stages StageSource, resolver *tenancy.Resolver, cache *boardcache.Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, stages: stages, resolver: resolver, cache: cache, bus: bus, log: log}
}

// FetchPage returns one page of a funnel's leads. Page zero is the balanced
// first page: one capped query per board stage, issued in parallel, so every
// column paints with content. Later pages are a single offset query.
func (s *Service) FetchPage(ctx context.Context, userID, funnelID uuid.UUID, page int) (transport.LeadPageResponse, error) {
	ownership, err := s.resolveFunnel(ctx, userID, funnelID)
	if err != nil {
		return transport.LeadPageResponse{}, err
	}

	key := boardcache.LeadsKey(funnelID, ownership.OwnerID)
	if page == 0 && !s.cache.IsStale(key) {
		if cached, ok := s.cache.Leads(key); ok {
			total, _ := s.repo.CountByFunnel(ctx, funnelID, ownership.OwnerID)
			return transport.LeadPageResponse{
				Leads:      cached,
				Page:       0,
				HasMore:    len(cached) >= repository.PageSize,
				TotalCount: total,
				FromCache:  true,
			}, nil
		}
	}

	var leads []boardcache.Lead
	if page == 0 {
		leads = s.balancedFirstPage(ctx, funnelID, ownership.OwnerID)
	} else {
		leads, err = s.repo.ListPage(ctx, funnelID, ownership.OwnerID, page)
		if err != nil {
			s.log.DatabaseError("leads.list_page", err)
			leads = []boardcache.Lead{}
		}
	}

	s.cache.SetPage(key, page, leads)

	total, err := s.repo.CountByFunnel(ctx, funnelID, ownership.OwnerID)
	if err != nil {
		s.log.DatabaseError("leads.count", err)
		total = len(leads)
	}

	return transport.LeadPageResponse{
		Leads:      leads,
		Page:       page,
		HasMore:    len(leads) >= repository.PageSize,
		TotalCount: total,
	}, nil
}

// balancedFirstPage runs one capped query per board stage in parallel and
// concatenates the results in stage order. Individual stage failures degrade
// to an empty column, not a failed board.
func (s *Service) balancedFirstPage(ctx context.Context, funnelID, ownerID uuid.UUID) []boardcache.Lead {
	stages, err := s.stages.BoardStages(ctx, funnelID)
	if err != nil {
		s.log.DatabaseError("leads.board_stages", err)
		return []boardcache.Lead{}
	}

	perStage := make([][]boardcache.Lead, len(stages))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, stage := range stages {
		group.Go(func() error {
			leads, err := s.repo.ListByStage(groupCtx, funnelID, stage.ID, ownerID, 0)
			if err != nil {
				s.log.DatabaseError("leads.list_by_stage", err)
				return nil
			}
			perStage[i] = leads
			return nil
		})
	}
	_ = group.Wait()

	out := make([]boardcache.Lead, 0)
	for _, leads := range perStage {
		out = append(out, leads...)
	}
	return out
}

// FetchFiltered returns one page of leads matching the filter. Purely-digit
// search terms match normalized phone digits; anything else matches name,
// email, company and notes. Tag membership is filtered after the fetch, so
// the reported total under a tag filter is the filtered page length.
func (s *Service) FetchFiltered(ctx context.Context, userID, funnelID uuid.UUID, query transport.FilterQuery) (transport.LeadPageResponse, error) {
	ownership, err := s.resolveFunnel(ctx, userID, funnelID)
	if err != nil {
		return transport.LeadPageResponse{}, err
	}

	key := boardcache.FilteredLeadsKey(funnelID, ownership.OwnerID, filterHash(query))
	if query.Page == 0 && !s.cache.IsStale(key) {
		if cached, ok := s.cache.Leads(key); ok {
			return transport.LeadPageResponse{
				Leads:      cached,
				Page:       0,
				HasMore:    len(cached) >= repository.PageSize,
				TotalCount: len(cached),
				FromCache:  true,
			}, nil
		}
	}

	params := repository.SearchParams{
		FunnelID:   funnelID,
		OwnerID:    ownership.OwnerID,
		AssigneeID: query.AssigneeID,
		Page:       query.Page,
	}
	term := strings.TrimSpace(query.Search)
	if phone.IsDigitsOnly(term) {
		params.DigitsTerm = phone.Digits(term)
	} else {
		params.Term = term
	}

	leads, err := s.repo.Search(ctx, params)
	if err != nil {
		s.log.DatabaseError("leads.search", err)
		leads = []boardcache.Lead{}
	}

	leads = filterByTags(leads, query.TagIDs)
	s.cache.SetPage(key, query.Page, leads)

	return transport.LeadPageResponse{
		Leads:      leads,
		Page:       query.Page,
		HasMore:    len(leads) >= repository.PageSize,
		TotalCount: len(leads),
	}, nil
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, userID, leadID uuid.UUID) (transport.LeadResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.repo.GetByID(ctx, leadID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return transport.LeadResponse{Lead: lead}, nil
}

// Create creates a lead manually. A missing stage defaults to the funnel's
// first board stage.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	ownership, err := s.resolveFunnel(ctx, userID, req.FunnelID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	stageID := req.KanbanStageID
	if stageID == nil {
		entry, err := s.entryStage(ctx, req.FunnelID)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		stageID = entry
	}

	normalized := phone.NormalizeE164(req.Phone)
	lead, err := s.repo.Create(ctx, repository.CreateParams{
		FunnelID:           req.FunnelID,
		KanbanStageID:      stageID,
		Name:               req.Name,
		Phone:              normalized,
		PhoneDigits:        phone.Digits(normalized),
		Email:              req.Email,
		Company:            req.Company,
		Notes:              req.Notes,
		PurchaseValueCents: req.PurchaseValueCents,
		OwnerID:            req.OwnerID,
		CreatedByUserID:    ownership.OwnerID,
	})
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		FunnelID:        lead.FunnelID,
		CreatedByUserID: lead.CreatedByUserID,
		Source:          "manual",
	})
	return transport.LeadResponse{Lead: lead}, nil
}

// Update applies a partial field update, patches every cached copy in place
// and publishes the same patch for the realtime layer.
func (s *Service) Update(ctx context.Context, userID, leadID uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	params := repository.UpdateParams{
		ID:                 leadID,
		OwnerScope:         ownership.OwnerID,
		Name:               req.Name,
		Email:              req.Email,
		Company:            req.Company,
		Notes:              req.Notes,
		PurchaseValueCents: req.PurchaseValueCents,
		AIEnabled:          req.AIEnabled,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		digits := phone.Digits(normalized)
		params.Phone = &normalized
		params.PhoneDigits = &digits
	}

	lead, err := s.repo.Update(ctx, params)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update lead", err)
	}

	patch := boardcache.LeadPatch{
		Name:               req.Name,
		Phone:              params.Phone,
		Email:              req.Email,
		Company:            req.Company,
		Notes:              req.Notes,
		PurchaseValueCents: req.PurchaseValueCents,
		AIEnabled:          req.AIEnabled,
		UpdatedAt:          &lead.UpdatedAt,
	}
	s.cache.PatchLead(lead.ID.String(), patch)
	s.bus.Publish(ctx, events.LeadUpdated{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		FunnelID:        lead.FunnelID,
		CreatedByUserID: lead.CreatedByUserID,
		Patch:           patch,
	})
	return transport.LeadResponse{Lead: lead}, nil
}

// MoveStage moves a lead to another stage of its funnel and publishes the
// stage transition with the destination's won/lost flags.
func (s *Service) MoveStage(ctx context.Context, userID, leadID uuid.UUID, req transport.MoveStageRequest) (transport.LeadResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	current, err := s.repo.GetByID(ctx, leadID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	stage, err := s.stages.StageByID(ctx, req.StageID)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	if stage.FunnelID != current.FunnelID {
		return transport.LeadResponse{}, apperr.Validation("stage belongs to a different funnel")
	}

	lead, err := s.repo.MoveStage(ctx, leadID, ownership.OwnerID, req.StageID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to move lead", err)
	}

	s.cache.PatchLead(lead.ID.String(), boardcache.LeadPatch{
		KanbanStageID: lead.KanbanStageID,
		UpdatedAt:     &lead.UpdatedAt,
	})
	s.bus.Publish(ctx, events.LeadStageChanged{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		FunnelID:        lead.FunnelID,
		CreatedByUserID: lead.CreatedByUserID,
		OldStageID:      current.KanbanStageID,
		NewStageID:      req.StageID,
		IsWon:           stage.IsWon,
		IsLost:          stage.IsLost,
	})
	return transport.LeadResponse{Lead: lead}, nil
}

// Assign changes the lead's assigned agent and notifies listeners.
func (s *Service) Assign(ctx context.Context, userID, leadID uuid.UUID, req transport.AssignRequest) (transport.LeadResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	current, err := s.repo.GetByID(ctx, leadID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	lead, err := s.repo.Assign(ctx, leadID, ownership.OwnerID, req.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to assign lead", err)
	}

	s.cache.PatchLead(lead.ID.String(), boardcache.LeadPatch{
		OwnerID:   lead.OwnerID,
		UpdatedAt: &lead.UpdatedAt,
	})
	s.bus.Publish(ctx, events.LeadAssigned{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		FunnelID:        lead.FunnelID,
		CreatedByUserID: lead.CreatedByUserID,
		PreviousOwner:   current.OwnerID,
		NewOwner:        req.OwnerID,
		AssignedByID:    userID,
		LeadName:        lead.Name,
	})
	return transport.LeadResponse{Lead: lead}, nil
}

// Delete removes a lead, drops it from every cached page immediately and
// publishes the deletion. Deletes are never debounced downstream.
func (s *Service) Delete(ctx context.Context, userID, leadID uuid.UUID) error {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	lead, err := s.repo.Delete(ctx, leadID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete lead", err)
	}

	s.cache.RemoveLead(lead.ID.String())
	s.bus.Publish(ctx, events.LeadDeleted{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		FunnelID:        lead.FunnelID,
		CreatedByUserID: lead.CreatedByUserID,
	})
	return nil
}

// MarkRead resets the lead's unread counter.
func (s *Service) MarkRead(ctx context.Context, userID, leadID uuid.UUID) (transport.LeadResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.repo.MarkRead(ctx, leadID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return transport.LeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to mark lead read", err)
	}

	zero := 0
	s.cache.PatchLead(lead.ID.String(), boardcache.LeadPatch{
		UnreadCount: &zero,
		UpdatedAt:   &lead.UpdatedAt,
	})
	return transport.LeadResponse{Lead: lead}, nil
}

// IntakeInboundMessage is the webhook path: find the lead by phone in the
// funnel or create it in the entry stage, then record the message. Returns
// the lead and whether it was created.
func (s *Service) IntakeInboundMessage(ctx context.Context, funnelID, ownerID uuid.UUID, rawPhone, name, text string, at time.Time) (boardcache.Lead, bool, error) {
	normalized := phone.NormalizeE164(rawPhone)
	digits := phone.Digits(normalized)

	created := false
	lead, err := s.repo.FindByPhone(ctx, funnelID, ownerID, digits)
	if errors.Is(err, repository.ErrNotFound) {
		entry, err := s.entryStage(ctx, funnelID)
		if err != nil {
			return boardcache.Lead{}, false, err
		}
		if name == "" {
			name = normalized
		}
		lead, err = s.repo.Create(ctx, repository.CreateParams{
			FunnelID:        funnelID,
			KanbanStageID:   entry,
			Name:            name,
			Phone:           normalized,
			PhoneDigits:     digits,
			CreatedByUserID: ownerID,
		})
		if err != nil {
			return boardcache.Lead{}, false, apperr.Wrap(apperr.KindInternal, "failed to create lead from message", err)
		}
		created = true
	} else if err != nil {
		return boardcache.Lead{}, false, apperr.Wrap(apperr.KindInternal, "failed to look up lead by phone", err)
	}

	lead, err = s.repo.RecordInboundMessage(ctx, lead.ID, text, at)
	if err != nil {
		return boardcache.Lead{}, false, apperr.Wrap(apperr.KindInternal, "failed to record inbound message", err)
	}

	if created {
		s.bus.Publish(ctx, events.LeadCreated{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          lead.ID,
			FunnelID:        lead.FunnelID,
			CreatedByUserID: lead.CreatedByUserID,
			Source:          "inbound_message",
		})
	} else {
		unread := lead.UnreadCount
		patch := boardcache.LeadPatch{
			LastMessageText: lead.LastMessageText,
			LastMessageAt:   lead.LastMessageAt,
			UnreadCount:     &unread,
			UpdatedAt:       &lead.UpdatedAt,
		}
		s.cache.PatchLead(lead.ID.String(), patch)
		s.bus.Publish(ctx, events.LeadUpdated{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          lead.ID,
			FunnelID:        lead.FunnelID,
			CreatedByUserID: lead.CreatedByUserID,
			Patch:           patch,
		})
	}

	s.bus.Publish(ctx, events.InboundMessageReceived{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          lead.ID,
		FunnelID:        lead.FunnelID,
		CreatedByUserID: lead.CreatedByUserID,
		Phone:           normalized,
		Text:            text,
		ReceivedAt:      at,
	})
	return lead, created, nil
}

// LeadByIDUnscoped exposes the unscoped read the realtime listener uses for
// ownership re-validation.
func (s *Service) LeadByIDUnscoped(ctx context.Context, leadID uuid.UUID) (boardcache.Lead, error) {
	lead, err := s.repo.GetByIDUnscoped(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return boardcache.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// TotalCount exposes the funnel lead count for the board's optimization level.
func (s *Service) TotalCount(ctx context.Context, funnelID, ownerID uuid.UUID) (int, error) {
	return s.repo.CountByFunnel(ctx, funnelID, ownerID)
}

// StageLeads exposes the capped per-stage fetch for board column loads.
func (s *Service) StageLeads(ctx context.Context, funnelID, stageID, ownerID uuid.UUID, page int) ([]boardcache.Lead, error) {
	return s.repo.ListByStage(ctx, funnelID, stageID, ownerID, page)
}

// ResolveFunnel verifies tenant ownership of a funnel and returns the
// resolved ownership. The board manager uses it before composing columns.
func (s *Service) ResolveFunnel(ctx context.Context, userID, funnelID uuid.UUID) (tenancy.Ownership, error) {
	return s.resolveFunnel(ctx, userID, funnelID)
}

func (s *Service) resolveFunnel(ctx context.Context, userID, funnelID uuid.UUID) (tenancy.Ownership, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return tenancy.Ownership{}, err
	}

	owned, err := s.repo.VerifyFunnelOwner(ctx, funnelID, ownership.OwnerID)
	if err != nil {
		return tenancy.Ownership{}, apperr.Wrap(apperr.KindInternal, "failed to verify funnel", err)
	}
	if !owned {
		return tenancy.Ownership{}, apperr.NotFound("funnel not found")
	}
	return ownership, nil
}

func (s *Service) entryStage(ctx context.Context, funnelID uuid.UUID) (*uuid.UUID, error) {
	stages, err := s.stages.BoardStages(ctx, funnelID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load stages", err)
	}
	if len(stages) == 0 {
		return nil, apperr.Validation("funnel has no stages")
	}
	id := stages[0].ID
	return &id, nil
}

// filterByTags keeps leads carrying every required tag. An empty requirement
// keeps everything; the filter only ever removes leads.
func filterByTags(leads []boardcache.Lead, tagIDs []uuid.UUID) []boardcache.Lead {
	if len(tagIDs) == 0 {
		return leads
	}

	out := make([]boardcache.Lead, 0, len(leads))
	for _, lead := range leads {
		carried := make(map[uuid.UUID]bool, len(lead.Tags))
		for _, tag := range lead.Tags {
			carried[tag.ID] = true
		}
		all := true
		for _, required := range tagIDs {
			if !carried[required] {
				all = false
				break
			}
		}
		if all {
			out = append(out, lead)
		}
	}
	return out
}

// filterHash digests the filter inputs into a stable cache key segment.
// Tag order does not change the hash.
func filterHash(query transport.FilterQuery) string {
	tags := make([]string, 0, len(query.TagIDs))
	for _, id := range query.TagIDs {
		tags = append(tags, id.String())
	}
	sort.Strings(tags)

	parts := []string{strings.ToLower(strings.TrimSpace(query.Search))}
	parts = append(parts, tags...)
	if query.AssigneeID != nil {
		parts = append(parts, query.AssigneeID.String())
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}
