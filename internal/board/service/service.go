// Package service composes stages, lead pages, filters and selection state
// into the board view, and coordinates drag gestures with the realtime layer.
package service

import (
	"context"

	"funnelboard/internal/board/transport"
	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	funnelrepo "funnelboard/internal/funnels/repository"
	leadsvc "funnelboard/internal/leads/service"
	"funnelboard/platform/apperr"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

// StageSource mirrors the funnels service surface the board needs.
type StageSource interface {
	BoardStages(ctx context.Context, funnelID uuid.UUID) ([]funnelrepo.Stage, error)
}

// Service is the board data manager.
type Service struct {
	leads      *leadsvc.Service
	stages     StageSource
	cache      *boardcache.Store
	bus        events.Bus
	selections *SelectionStore
	log        *logger.Logger
}

func New(leads *leadsvc.Service, stages StageSource, cache *boardcache.Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		leads:      leads,
		stages:     stages,
		cache:      cache,
		bus:        bus,
		selections: NewSelectionStore(),
		log:        log,
	}
}

// GetBoard returns the composed board: stage columns in position order,
// filled with the balanced first page of leads after the filter pipeline.
// Leads pointing at no loaded stage are excluded from columns but surfaced
// in OrphanedLeadCount.
func (s *Service) GetBoard(ctx context.Context, userID, funnelID uuid.UUID, query transport.BoardQuery) (transport.BoardResponse, error) {
	page, err := s.leads.FetchPage(ctx, userID, funnelID, 0)
	if err != nil {
		return transport.BoardResponse{}, err
	}

	stages, err := s.stages.BoardStages(ctx, funnelID)
	if err != nil {
		return transport.BoardResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load board stages", err)
	}

	visible := ApplyFilters(page.Leads, query)

	columns, orphaned := assembleColumns(stages, visible)
	if orphaned > 0 {
		s.log.Warn("board leads reference unknown stages", "funnelId", funnelID, "orphanedLeadCount", orphaned)
	}

	return transport.BoardResponse{
		FunnelID:          funnelID,
		Columns:           columns,
		OrphanedLeadCount: orphaned,
		TotalCount:        page.TotalCount,
		OptimizationLevel: OptimizationLevel(page.TotalCount),
		FromCache:         page.FromCache,
		SelectedLeadIDs:   s.selections.Retain(userID, funnelID, visible),
	}, nil
}

// LoadStageColumn appends one incremental page to a single column.
func (s *Service) LoadStageColumn(ctx context.Context, userID, funnelID, stageID uuid.UUID, page int) (transport.StageLoadResponse, error) {
	ownership, err := s.leads.ResolveFunnel(ctx, userID, funnelID)
	if err != nil {
		return transport.StageLoadResponse{}, err
	}

	leads, err := s.leads.StageLeads(ctx, funnelID, stageID, ownership.OwnerID, page)
	if err != nil {
		s.log.DatabaseError("board.load_stage_column", err)
		leads = []boardcache.Lead{}
	}

	return transport.StageLoadResponse{
		StageID: stageID,
		Page:    page,
		Leads:   leads,
		HasMore: len(leads) >= leadPageCap,
	}, nil
}

const leadPageCap = 30

// assembleColumns groups visible leads under the given stage list. Leads
// pointing at no listed stage are counted, not placed. Column lead lists are
// always non-nil.
func assembleColumns(stages []funnelrepo.Stage, visible []boardcache.Lead) ([]transport.Column, int) {
	byStage := make(map[uuid.UUID][]boardcache.Lead)
	known := make(map[uuid.UUID]bool, len(stages))
	for _, stage := range stages {
		known[stage.ID] = true
	}

	orphaned := 0
	for _, lead := range visible {
		if lead.KanbanStageID == nil || !known[*lead.KanbanStageID] {
			orphaned++
			continue
		}
		byStage[*lead.KanbanStageID] = append(byStage[*lead.KanbanStageID], lead)
	}

	columns := make([]transport.Column, 0, len(stages))
	for _, stage := range stages {
		leads := byStage[stage.ID]
		if leads == nil {
			leads = []boardcache.Lead{}
		}
		columns = append(columns, transport.Column{
			Stage: transport.StageInfo{
				ID:            stage.ID,
				Title:         stage.Title,
				Color:         stage.Color,
				OrderPosition: stage.OrderPosition,
			},
			Leads: leads,
			Count: len(leads),
		})
	}
	return columns, orphaned
}

// DragStart pauses realtime insert/update handling for the funnel while the
// gesture is in flight.
func (s *Service) DragStart(ctx context.Context, userID, funnelID uuid.UUID) error {
	if _, err := s.leads.ResolveFunnel(ctx, userID, funnelID); err != nil {
		return err
	}

	// Synchronous publish: the pause must hold before this request returns.
	if err := s.bus.PublishSync(ctx, events.DragStarted{
		BaseEvent: events.NewBaseEvent(),
		FunnelID:  funnelID,
		UserID:    userID,
	}); err != nil {
		s.log.Warn("drag start publish failed", "funnelId", funnelID, "error", err)
	}
	return nil
}

// DragEnd resumes realtime handling. An optional stage patch settles derived
// column fields (e.g. aiEnabled) in the cache immediately, without waiting
// for the refetch round-trip.
func (s *Service) DragEnd(ctx context.Context, userID, funnelID uuid.UUID, req transport.DragEndRequest) error {
	if _, err := s.leads.ResolveFunnel(ctx, userID, funnelID); err != nil {
		return err
	}

	if req.StageID != nil && req.AIEnabled != nil {
		s.cache.PatchStageLeads(req.StageID.String(), boardcache.LeadPatch{AIEnabled: req.AIEnabled})
	}

	if err := s.bus.PublishSync(ctx, events.DragEnded{
		BaseEvent: events.NewBaseEvent(),
		FunnelID:  funnelID,
		UserID:    userID,
		StageID:   req.StageID,
		AIEnabled: req.AIEnabled,
	}); err != nil {
		s.log.Warn("drag end publish failed", "funnelId", funnelID, "error", err)
	}
	return nil
}

// Select adds leads to the user's selection.
func (s *Service) Select(ctx context.Context, userID, funnelID uuid.UUID, leadIDs []uuid.UUID) (transport.SelectionResponse, error) {
	if _, err := s.leads.ResolveFunnel(ctx, userID, funnelID); err != nil {
		return transport.SelectionResponse{}, err
	}
	return transport.SelectionResponse{LeadIDs: s.selections.Select(userID, funnelID, leadIDs)}, nil
}

// Deselect removes leads from the user's selection.
func (s *Service) Deselect(ctx context.Context, userID, funnelID uuid.UUID, leadIDs []uuid.UUID) (transport.SelectionResponse, error) {
	if _, err := s.leads.ResolveFunnel(ctx, userID, funnelID); err != nil {
		return transport.SelectionResponse{}, err
	}
	return transport.SelectionResponse{LeadIDs: s.selections.Deselect(userID, funnelID, leadIDs)}, nil
}

// SelectAllVisible selects every lead currently visible in one column.
func (s *Service) SelectAllVisible(ctx context.Context, userID, funnelID, stageID uuid.UUID) (transport.SelectionResponse, error) {
	ownership, err := s.leads.ResolveFunnel(ctx, userID, funnelID)
	if err != nil {
		return transport.SelectionResponse{}, err
	}

	leads, err := s.leads.StageLeads(ctx, funnelID, stageID, ownership.OwnerID, 0)
	if err != nil {
		return transport.SelectionResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load stage leads", err)
	}
	return transport.SelectionResponse{LeadIDs: s.selections.SelectAll(userID, funnelID, leads)}, nil
}

// ClearSelection drops the user's selection for the funnel.
func (s *Service) ClearSelection(ctx context.Context, userID, funnelID uuid.UUID) error {
	if _, err := s.leads.ResolveFunnel(ctx, userID, funnelID); err != nil {
		return err
	}
	s.selections.Clear(userID, funnelID)
	return nil
}

// Selection returns the current selection.
func (s *Service) Selection(ctx context.Context, userID, funnelID uuid.UUID) (transport.SelectionResponse, error) {
	if _, err := s.leads.ResolveFunnel(ctx, userID, funnelID); err != nil {
		return transport.SelectionResponse{}, err
	}
	return transport.SelectionResponse{LeadIDs: s.selections.Selected(userID, funnelID)}, nil
}

