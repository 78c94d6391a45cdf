package service

import (
	"context"
	"errors"

	"funnelboard/internal/events"
	"funnelboard/internal/funnels/repository"
	"funnelboard/internal/funnels/transport"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/apperr"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

// Service implements funnel and stage management. All operations are scoped
// to the resolved tenant owner; stage mutations publish StageListChanged so
// board snapshots for the funnel get invalidated.
type Service struct {
	repo     *repository.Repository
	resolver *tenancy.Resolver
	bus      events.Bus
	seeds    []StageSeed
	log      *logger.Logger
}

func New(repo *repository.Repository, resolver *tenancy.Resolver, bus events.Bus, seeds []StageSeed, log *logger.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, bus: bus, seeds: seeds, log: log}
}

// CreateFunnel creates a funnel for the caller's tenant and seeds it with the
// default stage set.
func (s *Service) CreateFunnel(ctx context.Context, userID uuid.UUID, req transport.CreateFunnelRequest) (transport.FunnelResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.FunnelResponse{}, err
	}

	funnel, err := s.repo.CreateFunnel(ctx, req.Name, ownership.OwnerID)
	if err != nil {
		return transport.FunnelResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create funnel", err)
	}

	for position, seed := range s.seeds {
		_, err := s.repo.CreateStage(ctx, repository.CreateStageParams{
			FunnelID:      funnel.ID,
			Title:         seed.Title,
			Color:         seed.Color,
			OrderPosition: position,
			IsWon:         seed.IsWon,
			IsLost:        seed.IsLost,
		})
		if err != nil {
			return transport.FunnelResponse{}, apperr.Wrap(apperr.KindInternal, "failed to seed funnel stages", err)
		}
	}

	s.log.Info("funnel created", "funnelId", funnel.ID, "ownerId", ownership.OwnerID, "seededStages", len(s.seeds))
	s.publishStageChange(ctx, funnel.ID, ownership.OwnerID)

	return toFunnelResponse(funnel), nil
}

// ListFunnels returns the tenant's funnels in creation order.
func (s *Service) ListFunnels(ctx context.Context, userID uuid.UUID) (transport.FunnelListResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.FunnelListResponse{}, err
	}

	funnels, err := s.repo.ListFunnels(ctx, ownership.OwnerID)
	if err != nil {
		return transport.FunnelListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list funnels", err)
	}

	resp := transport.FunnelListResponse{Funnels: make([]transport.FunnelResponse, 0, len(funnels))}
	for _, funnel := range funnels {
		resp.Funnels = append(resp.Funnels, toFunnelResponse(funnel))
	}
	return resp, nil
}

// GetFunnel returns one funnel if it belongs to the caller's tenant.
func (s *Service) GetFunnel(ctx context.Context, userID, funnelID uuid.UUID) (transport.FunnelResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.FunnelResponse{}, err
	}

	funnel, err := s.repo.GetFunnel(ctx, funnelID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.FunnelResponse{}, apperr.NotFound("funnel not found")
	}
	if err != nil {
		return transport.FunnelResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load funnel", err)
	}
	return toFunnelResponse(funnel), nil
}

// RenameFunnel renames a tenant funnel.
func (s *Service) RenameFunnel(ctx context.Context, userID, funnelID uuid.UUID, req transport.RenameFunnelRequest) (transport.FunnelResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.FunnelResponse{}, err
	}

	funnel, err := s.repo.RenameFunnel(ctx, funnelID, ownership.OwnerID, req.Name)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.FunnelResponse{}, apperr.NotFound("funnel not found")
	}
	if err != nil {
		return transport.FunnelResponse{}, apperr.Wrap(apperr.KindInternal, "failed to rename funnel", err)
	}
	return toFunnelResponse(funnel), nil
}

// DeleteFunnel removes a tenant funnel and everything under it.
func (s *Service) DeleteFunnel(ctx context.Context, userID, funnelID uuid.UUID) error {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	err = s.repo.DeleteFunnel(ctx, funnelID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("funnel not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete funnel", err)
	}

	s.publishStageChange(ctx, funnelID, ownership.OwnerID)
	return nil
}

// ListStages returns all stages of a tenant funnel ordered by position.
func (s *Service) ListStages(ctx context.Context, userID, funnelID uuid.UUID) (transport.StageListResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.StageListResponse{}, err
	}
	if _, err := s.ownedFunnel(ctx, funnelID, ownership.OwnerID); err != nil {
		return transport.StageListResponse{}, err
	}

	stages, err := s.repo.ListStages(ctx, funnelID)
	if err != nil {
		return transport.StageListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}
	return toStageListResponse(stages), nil
}

// CreateStage appends a stage to the end of the funnel's order.
func (s *Service) CreateStage(ctx context.Context, userID, funnelID uuid.UUID, req transport.CreateStageRequest) (transport.StageResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.StageResponse{}, err
	}
	if _, err := s.ownedFunnel(ctx, funnelID, ownership.OwnerID); err != nil {
		return transport.StageResponse{}, err
	}
	if req.IsWon && req.IsLost {
		return transport.StageResponse{}, apperr.Validation("a stage cannot be both won and lost")
	}

	existing, err := s.repo.ListStages(ctx, funnelID)
	if err != nil {
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}

	stage, err := s.repo.CreateStage(ctx, repository.CreateStageParams{
		FunnelID:      funnelID,
		Title:         req.Title,
		Color:         req.Color,
		OrderPosition: len(existing),
		IsWon:         req.IsWon,
		IsLost:        req.IsLost,
	})
	if err != nil {
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create stage", err)
	}

	s.publishStageChange(ctx, funnelID, ownership.OwnerID)
	return toStageResponse(stage), nil
}

// UpdateStage applies a partial update to a stage.
func (s *Service) UpdateStage(ctx context.Context, userID, funnelID, stageID uuid.UUID, req transport.UpdateStageRequest) (transport.StageResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.StageResponse{}, err
	}
	if _, err := s.ownedFunnel(ctx, funnelID, ownership.OwnerID); err != nil {
		return transport.StageResponse{}, err
	}
	if err := s.stageInFunnel(ctx, stageID, funnelID); err != nil {
		return transport.StageResponse{}, err
	}

	stage, err := s.repo.UpdateStage(ctx, repository.UpdateStageParams{
		ID:     stageID,
		Title:  req.Title,
		Color:  req.Color,
		IsWon:  req.IsWon,
		IsLost: req.IsLost,
	})
	if errors.Is(err, repository.ErrStageNotFound) {
		return transport.StageResponse{}, apperr.NotFound("stage not found")
	}
	if err != nil {
		return transport.StageResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update stage", err)
	}

	s.publishStageChange(ctx, funnelID, ownership.OwnerID)
	return toStageResponse(stage), nil
}

// ReorderStages rewrites the funnel's stage order from the given id list.
// The list must cover every stage of the funnel exactly once.
func (s *Service) ReorderStages(ctx context.Context, userID, funnelID uuid.UUID, req transport.ReorderStagesRequest) (transport.StageListResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.StageListResponse{}, err
	}
	if _, err := s.ownedFunnel(ctx, funnelID, ownership.OwnerID); err != nil {
		return transport.StageListResponse{}, err
	}

	existing, err := s.repo.ListStages(ctx, funnelID)
	if err != nil {
		return transport.StageListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}
	if len(req.StageIDs) != len(existing) {
		return transport.StageListResponse{}, apperr.Validation("reorder must list every stage of the funnel")
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for _, stage := range existing {
		known[stage.ID] = true
	}
	for _, id := range req.StageIDs {
		if !known[id] {
			return transport.StageListResponse{}, apperr.Validation("reorder references a stage outside the funnel")
		}
		delete(known, id)
	}

	if err := s.repo.ReorderStages(ctx, funnelID, req.StageIDs); err != nil {
		return transport.StageListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to reorder stages", err)
	}

	stages, err := s.repo.ListStages(ctx, funnelID)
	if err != nil {
		return transport.StageListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list stages", err)
	}

	s.publishStageChange(ctx, funnelID, ownership.OwnerID)
	return toStageListResponse(stages), nil
}

// DeleteStage removes a stage from a tenant funnel.
func (s *Service) DeleteStage(ctx context.Context, userID, funnelID, stageID uuid.UUID) error {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.ownedFunnel(ctx, funnelID, ownership.OwnerID); err != nil {
		return err
	}
	if err := s.stageInFunnel(ctx, stageID, funnelID); err != nil {
		return err
	}

	err = s.repo.DeleteStage(ctx, stageID)
	if errors.Is(err, repository.ErrStageNotFound) {
		return apperr.NotFound("stage not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete stage", err)
	}

	s.publishStageChange(ctx, funnelID, ownership.OwnerID)
	return nil
}

// BoardStages returns the non-terminal stages used to build board columns.
// The board module reads through this instead of hitting the repository.
func (s *Service) BoardStages(ctx context.Context, funnelID uuid.UUID) ([]repository.Stage, error) {
	return s.repo.ListBoardStages(ctx, funnelID)
}

// StageByID returns one stage row. Callers are responsible for verifying the
// funnel it belongs to.
func (s *Service) StageByID(ctx context.Context, stageID uuid.UUID) (repository.Stage, error) {
	stage, err := s.repo.GetStage(ctx, stageID)
	if errors.Is(err, repository.ErrStageNotFound) {
		return repository.Stage{}, apperr.NotFound("stage not found")
	}
	if err != nil {
		return repository.Stage{}, apperr.Wrap(apperr.KindInternal, "failed to load stage", err)
	}
	return stage, nil
}

// VerifyOwnership checks a funnel belongs to the given owner without mapping
// the result to a transport type.
func (s *Service) VerifyOwnership(ctx context.Context, funnelID, ownerID uuid.UUID) error {
	_, err := s.ownedFunnel(ctx, funnelID, ownerID)
	return err
}

// FunnelOwner resolves the creating user of a funnel without tenant scoping.
// Only for trusted intake paths that authenticate by other means.
func (s *Service) FunnelOwner(ctx context.Context, funnelID uuid.UUID) (uuid.UUID, error) {
	ownerID, err := s.repo.FunnelOwner(ctx, funnelID)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, apperr.NotFound("funnel not found")
	}
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.KindInternal, "failed to resolve funnel owner", err)
	}
	return ownerID, nil
}

func (s *Service) ownedFunnel(ctx context.Context, funnelID, ownerID uuid.UUID) (repository.Funnel, error) {
	funnel, err := s.repo.GetFunnel(ctx, funnelID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Funnel{}, apperr.NotFound("funnel not found")
	}
	if err != nil {
		return repository.Funnel{}, apperr.Wrap(apperr.KindInternal, "failed to load funnel", err)
	}
	return funnel, nil
}

func (s *Service) stageInFunnel(ctx context.Context, stageID, funnelID uuid.UUID) error {
	stage, err := s.repo.GetStage(ctx, stageID)
	if errors.Is(err, repository.ErrStageNotFound) {
		return apperr.NotFound("stage not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to load stage", err)
	}
	if stage.FunnelID != funnelID {
		return apperr.NotFound("stage not found")
	}
	return nil
}

func (s *Service) publishStageChange(ctx context.Context, funnelID, ownerID uuid.UUID) {
	s.bus.Publish(ctx, events.StageListChanged{
		BaseEvent:       events.NewBaseEvent(),
		FunnelID:        funnelID,
		CreatedByUserID: ownerID,
	})
}

func toFunnelResponse(funnel repository.Funnel) transport.FunnelResponse {
	return transport.FunnelResponse{
		ID:        funnel.ID,
		Name:      funnel.Name,
		CreatedAt: funnel.CreatedAt,
		UpdatedAt: funnel.UpdatedAt,
	}
}

func toStageResponse(stage repository.Stage) transport.StageResponse {
	return transport.StageResponse{
		ID:            stage.ID,
		FunnelID:      stage.FunnelID,
		Title:         stage.Title,
		Color:         stage.Color,
		OrderPosition: stage.OrderPosition,
		IsWon:         stage.IsWon,
		IsLost:        stage.IsLost,
	}
}

func toStageListResponse(stages []repository.Stage) transport.StageListResponse {
	resp := transport.StageListResponse{Stages: make([]transport.StageResponse, 0, len(stages))}
	for _, stage := range stages {
		resp.Stages = append(resp.Stages, toStageResponse(stage))
	}
	return resp
}
