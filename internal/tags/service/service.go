package service

import (
	"context"
	"errors"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	"funnelboard/internal/tags/repository"
	"funnelboard/internal/tags/transport"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/apperr"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

// TagStore is the tag persistence surface the service drives. The pgx
// repository is the production implementation; AttachToLead and
// AttachToLeads are idempotent inserts there.
type TagStore interface {
	Create(ctx context.Context, name, color string, ownerID uuid.UUID) (repository.Tag, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (repository.Tag, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]repository.Tag, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, name, color *string) (repository.Tag, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	GetLeadRef(ctx context.Context, leadID uuid.UUID) (repository.LeadRef, error)
	AttachToLead(ctx context.Context, leadID, tagID uuid.UUID) error
	DetachFromLead(ctx context.Context, leadID, tagID uuid.UUID) error
	AttachToLeads(ctx context.Context, leadIDs []uuid.UUID, tagID uuid.UUID) error
	DetachFromLeads(ctx context.Context, leadIDs []uuid.UUID, tagID uuid.UUID) error
	FilterOwnedLeads(ctx context.Context, leadIDs []uuid.UUID, ownerID uuid.UUID) ([]uuid.UUID, error)
	ListForLead(ctx context.Context, leadID uuid.UUID) ([]boardcache.Tag, error)
	ListLeadIDsWithTag(ctx context.Context, tagID uuid.UUID) ([]uuid.UUID, error)
}

var _ TagStore = (*repository.Repository)(nil)

// Service implements tag management and the tag mutation path for leads.
// Attach and detach patch the shared board cache in place with the lead's
// full post-mutation tag list, so every open board converges without a
// refetch.
type Service struct {
	repo     TagStore
	resolver *tenancy.Resolver
	cache    *boardcache.Store
	bus      events.Bus
	log      *logger.Logger
}

func New(repo TagStore, resolver *tenancy.Resolver, cache *boardcache.Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, cache: cache, bus: bus, log: log}
}

// CreateTag creates a tenant tag. Names are unique per tenant.
func (s *Service) CreateTag(ctx context.Context, userID uuid.UUID, req transport.CreateTagRequest) (transport.TagResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.TagResponse{}, err
	}

	tag, err := s.repo.Create(ctx, req.Name, req.Color, ownership.OwnerID)
	if errors.Is(err, repository.ErrDuplicateName) {
		return transport.TagResponse{}, apperr.Conflict("a tag with this name already exists")
	}
	if err != nil {
		return transport.TagResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create tag", err)
	}
	return toTagResponse(tag), nil
}

// ListTags lists the tenant's tags ordered by name.
func (s *Service) ListTags(ctx context.Context, userID uuid.UUID) (transport.TagListResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.TagListResponse{}, err
	}

	tags, err := s.repo.List(ctx, ownership.OwnerID)
	if err != nil {
		return transport.TagListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list tags", err)
	}

	resp := transport.TagListResponse{Tags: make([]transport.TagResponse, 0, len(tags))}
	for _, tag := range tags {
		resp.Tags = append(resp.Tags, toTagResponse(tag))
	}
	return resp, nil
}

// UpdateTag renames or recolors a tag, then re-patches every cached lead that
// carries it so boards show the new name without a refetch.
func (s *Service) UpdateTag(ctx context.Context, userID, tagID uuid.UUID, req transport.UpdateTagRequest) (transport.TagResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.TagResponse{}, err
	}

	tag, err := s.repo.Update(ctx, tagID, ownership.OwnerID, req.Name, req.Color)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.TagResponse{}, apperr.NotFound("tag not found")
	}
	if errors.Is(err, repository.ErrDuplicateName) {
		return transport.TagResponse{}, apperr.Conflict("a tag with this name already exists")
	}
	if err != nil {
		return transport.TagResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update tag", err)
	}

	s.repatchLeadsWithTag(ctx, tagID)
	return toTagResponse(tag), nil
}

// DeleteTag removes a tag everywhere. Cached leads that carried it are
// re-patched with their remaining tags.
func (s *Service) DeleteTag(ctx context.Context, userID, tagID uuid.UUID) error {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	leadIDs, err := s.repo.ListLeadIDsWithTag(ctx, tagID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to list tagged leads", err)
	}

	err = s.repo.Delete(ctx, tagID, ownership.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("tag not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete tag", err)
	}

	for _, leadID := range leadIDs {
		s.patchCachedLeadTags(ctx, leadID)
	}
	return nil
}

// AttachTag links a tag to a lead. The link insert is idempotent and the
// result is always the lead's full current tag list.
func (s *Service) AttachTag(ctx context.Context, userID, leadID, tagID uuid.UUID) (transport.LeadTagsResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadTagsResponse{}, err
	}
	ref, err := s.verifyLeadAndTag(ctx, leadID, tagID, ownership.OwnerID)
	if err != nil {
		return transport.LeadTagsResponse{}, err
	}

	if err := s.repo.AttachToLead(ctx, leadID, tagID); err != nil {
		return transport.LeadTagsResponse{}, apperr.Wrap(apperr.KindInternal, "failed to attach tag", err)
	}
	return s.finishLeadTagMutation(ctx, leadID, ref)
}

// DetachTag unlinks a tag from a lead.
func (s *Service) DetachTag(ctx context.Context, userID, leadID, tagID uuid.UUID) (transport.LeadTagsResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadTagsResponse{}, err
	}
	ref, err := s.verifyLeadAndTag(ctx, leadID, tagID, ownership.OwnerID)
	if err != nil {
		return transport.LeadTagsResponse{}, err
	}

	if err := s.repo.DetachFromLead(ctx, leadID, tagID); err != nil {
		return transport.LeadTagsResponse{}, apperr.Wrap(apperr.KindInternal, "failed to detach tag", err)
	}
	return s.finishLeadTagMutation(ctx, leadID, ref)
}

// AttachTagBatch links one tag to every owned lead in the request. Leads the
// caller's tenant does not own are silently skipped; already-linked leads
// count as applied because the outcome is the same.
func (s *Service) AttachTagBatch(ctx context.Context, userID, tagID uuid.UUID, req transport.BatchTagRequest) (transport.BatchTagResponse, error) {
	_, owned, err := s.prepareBatch(ctx, userID, tagID, req.LeadIDs)
	if err != nil {
		return transport.BatchTagResponse{}, err
	}

	if err := s.repo.AttachToLeads(ctx, owned, tagID); err != nil {
		return transport.BatchTagResponse{}, apperr.Wrap(apperr.KindInternal, "failed to attach tag in batch", err)
	}

	for _, leadID := range owned {
		s.patchCachedLeadTags(ctx, leadID)
	}
	return transport.BatchTagResponse{
		TagID:        tagID,
		AppliedCount: len(owned),
		SkippedCount: len(req.LeadIDs) - len(owned),
	}, nil
}

// DetachTagBatch unlinks one tag from every owned lead in the request.
func (s *Service) DetachTagBatch(ctx context.Context, userID, tagID uuid.UUID, req transport.BatchTagRequest) (transport.BatchTagResponse, error) {
	_, owned, err := s.prepareBatch(ctx, userID, tagID, req.LeadIDs)
	if err != nil {
		return transport.BatchTagResponse{}, err
	}

	if err := s.repo.DetachFromLeads(ctx, owned, tagID); err != nil {
		return transport.BatchTagResponse{}, apperr.Wrap(apperr.KindInternal, "failed to detach tag in batch", err)
	}

	for _, leadID := range owned {
		s.patchCachedLeadTags(ctx, leadID)
	}
	return transport.BatchTagResponse{
		TagID:        tagID,
		AppliedCount: len(owned),
		SkippedCount: len(req.LeadIDs) - len(owned),
	}, nil
}

func (s *Service) prepareBatch(ctx context.Context, userID, tagID uuid.UUID, leadIDs []uuid.UUID) (tenancy.Ownership, []uuid.UUID, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return tenancy.Ownership{}, nil, err
	}

	if _, err := s.repo.Get(ctx, tagID, ownership.OwnerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return tenancy.Ownership{}, nil, apperr.NotFound("tag not found")
		}
		return tenancy.Ownership{}, nil, apperr.Wrap(apperr.KindInternal, "failed to load tag", err)
	}

	owned, err := s.repo.FilterOwnedLeads(ctx, leadIDs, ownership.OwnerID)
	if err != nil {
		return tenancy.Ownership{}, nil, apperr.Wrap(apperr.KindInternal, "failed to scope batch leads", err)
	}
	return ownership, owned, nil
}

// LeadTags returns the lead's current tag list.
func (s *Service) LeadTags(ctx context.Context, userID, leadID uuid.UUID) (transport.LeadTagsResponse, error) {
	ownership, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return transport.LeadTagsResponse{}, err
	}
	if _, err := s.verifyLeadOwner(ctx, leadID, ownership.OwnerID); err != nil {
		return transport.LeadTagsResponse{}, err
	}

	tags, err := s.repo.ListForLead(ctx, leadID)
	if err != nil {
		return transport.LeadTagsResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list lead tags", err)
	}
	return transport.LeadTagsResponse{LeadID: leadID, Tags: tags}, nil
}

func (s *Service) finishLeadTagMutation(ctx context.Context, leadID uuid.UUID, ref repository.LeadRef) (transport.LeadTagsResponse, error) {
	tags, err := s.repo.ListForLead(ctx, leadID)
	if err != nil {
		return transport.LeadTagsResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list lead tags", err)
	}

	s.cache.UpsertLeadTags(leadID.String(), tags)
	s.bus.Publish(ctx, events.LeadTagsChanged{
		BaseEvent:       events.NewBaseEvent(),
		LeadID:          leadID,
		FunnelID:        ref.FunnelID,
		CreatedByUserID: ref.OwnerID,
		Tags:            tags,
	})
	return transport.LeadTagsResponse{LeadID: leadID, Tags: tags}, nil
}

func (s *Service) patchCachedLeadTags(ctx context.Context, leadID uuid.UUID) {
	tags, err := s.repo.ListForLead(ctx, leadID)
	if err != nil {
		s.log.Error("failed to re-patch cached lead tags", "leadId", leadID, "error", err)
		return
	}
	s.cache.UpsertLeadTags(leadID.String(), tags)
}

func (s *Service) repatchLeadsWithTag(ctx context.Context, tagID uuid.UUID) {
	leadIDs, err := s.repo.ListLeadIDsWithTag(ctx, tagID)
	if err != nil {
		s.log.Error("failed to list tagged leads for cache patch", "tagId", tagID, "error", err)
		return
	}
	for _, leadID := range leadIDs {
		s.patchCachedLeadTags(ctx, leadID)
	}
}

func (s *Service) verifyLeadAndTag(ctx context.Context, leadID, tagID, ownerID uuid.UUID) (repository.LeadRef, error) {
	ref, err := s.verifyLeadOwner(ctx, leadID, ownerID)
	if err != nil {
		return repository.LeadRef{}, err
	}
	_, err = s.repo.Get(ctx, tagID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.LeadRef{}, apperr.NotFound("tag not found")
	}
	if err != nil {
		return repository.LeadRef{}, apperr.Wrap(apperr.KindInternal, "failed to load tag", err)
	}
	return ref, nil
}

func (s *Service) verifyLeadOwner(ctx context.Context, leadID, ownerID uuid.UUID) (repository.LeadRef, error) {
	ref, err := s.repo.GetLeadRef(ctx, leadID)
	if errors.Is(err, repository.ErrLeadNotFound) {
		return repository.LeadRef{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.LeadRef{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	if ref.OwnerID != ownerID {
		return repository.LeadRef{}, apperr.NotFound("lead not found")
	}
	return ref, nil
}

func toTagResponse(tag repository.Tag) transport.TagResponse {
	return transport.TagResponse{
		ID:        tag.ID,
		Name:      tag.Name,
		Color:     tag.Color,
		CreatedAt: tag.CreatedAt,
	}
}
