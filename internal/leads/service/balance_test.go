package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"funnelboard/internal/boardcache"
	"funnelboard/internal/events"
	funnelrepo "funnelboard/internal/funnels/repository"
	"funnelboard/internal/leads/repository"
	"funnelboard/internal/tenancy"
	"funnelboard/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadStore struct {
	byStage  map[uuid.UUID][]boardcache.Lead
	stageErr map[uuid.UUID]error
	total    int
}

func (f *fakeLeadStore) ListByStage(ctx context.Context, funnelID, stageID, ownerID uuid.UUID, page int) ([]boardcache.Lead, error) {
	if err := f.stageErr[stageID]; err != nil {
		return nil, err
	}
	leads := f.byStage[stageID]
	offset := page * repository.StageCap
	if offset >= len(leads) {
		return []boardcache.Lead{}, nil
	}
	leads = leads[offset:]
	if len(leads) > repository.StageCap {
		leads = leads[:repository.StageCap]
	}
	return leads, nil
}

func (f *fakeLeadStore) CountByFunnel(ctx context.Context, funnelID, ownerID uuid.UUID) (int, error) {
	return f.total, nil
}

func (f *fakeLeadStore) VerifyFunnelOwner(ctx context.Context, funnelID, ownerID uuid.UUID) (bool, error) {
	return true, nil
}

func (f *fakeLeadStore) GetByID(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error) {
	return boardcache.Lead{}, repository.ErrNotFound
}

func (f *fakeLeadStore) GetByIDUnscoped(ctx context.Context, id uuid.UUID) (boardcache.Lead, error) {
	return boardcache.Lead{}, repository.ErrNotFound
}

func (f *fakeLeadStore) ListPage(ctx context.Context, funnelID, ownerID uuid.UUID, page int) ([]boardcache.Lead, error) {
	return []boardcache.Lead{}, nil
}

func (f *fakeLeadStore) Search(ctx context.Context, params repository.SearchParams) ([]boardcache.Lead, error) {
	return []boardcache.Lead{}, nil
}

func (f *fakeLeadStore) FindByPhone(ctx context.Context, funnelID, ownerID uuid.UUID, digits string) (boardcache.Lead, error) {
	return boardcache.Lead{}, repository.ErrNotFound
}

func (f *fakeLeadStore) Create(ctx context.Context, params repository.CreateParams) (boardcache.Lead, error) {
	return boardcache.Lead{}, errors.New("not implemented")
}

func (f *fakeLeadStore) Update(ctx context.Context, params repository.UpdateParams) (boardcache.Lead, error) {
	return boardcache.Lead{}, errors.New("not implemented")
}

func (f *fakeLeadStore) MoveStage(ctx context.Context, id, ownerID, stageID uuid.UUID) (boardcache.Lead, error) {
	return boardcache.Lead{}, errors.New("not implemented")
}

func (f *fakeLeadStore) Assign(ctx context.Context, id, ownerID uuid.UUID, newOwner *uuid.UUID) (boardcache.Lead, error) {
	return boardcache.Lead{}, errors.New("not implemented")
}

func (f *fakeLeadStore) Delete(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error) {
	return boardcache.Lead{}, errors.New("not implemented")
}

func (f *fakeLeadStore) RecordInboundMessage(ctx context.Context, id uuid.UUID, text string, at time.Time) (boardcache.Lead, error) {
	return boardcache.Lead{}, errors.New("not implemented")
}

func (f *fakeLeadStore) MarkRead(ctx context.Context, id, ownerID uuid.UUID) (boardcache.Lead, error) {
	return boardcache.Lead{}, errors.New("not implemented")
}

type fakeStages struct {
	stages []funnelrepo.Stage
}

func (f *fakeStages) BoardStages(ctx context.Context, funnelID uuid.UUID) ([]funnelrepo.Stage, error) {
	return f.stages, nil
}

func (f *fakeStages) StageByID(ctx context.Context, stageID uuid.UUID) (funnelrepo.Stage, error) {
	for _, stage := range f.stages {
		if stage.ID == stageID {
			return stage, nil
		}
	}
	return funnelrepo.Stage{}, errors.New("stage not found")
}

type adminLookup struct{}

func (adminLookup) LookupAccount(ctx context.Context, userID uuid.UUID) (string, *uuid.UUID, error) {
	return tenancy.RoleAdmin, nil, nil
}

func stageLeads(stageID uuid.UUID, ownerID uuid.UUID, n int) []boardcache.Lead {
	leads := make([]boardcache.Lead, 0, n)
	for i := 0; i < n; i++ {
		leads = append(leads, boardcache.Lead{
			ID:              uuid.New(),
			KanbanStageID:   &stageID,
			Name:            "lead",
			Phone:           "+5511999998888",
			CreatedByUserID: ownerID,
			Tags:            []boardcache.Tag{},
		})
	}
	return leads
}

func newBalanceService(store *fakeLeadStore, stages *fakeStages) (*Service, *boardcache.Store) {
	log := logger.New("test")
	cache := boardcache.New(log)
	resolver := tenancy.NewResolver(adminLookup{})
	return New(store, stages, resolver, cache, events.NewInMemoryBus(log), log), cache
}

func TestFetchPageZeroDrawsFromEveryStage(t *testing.T) {
	userID, funnelID := uuid.New(), uuid.New()
	stages := &fakeStages{stages: []funnelrepo.Stage{
		{ID: uuid.New(), FunnelID: funnelID, Title: "Entrada", OrderPosition: 0},
		{ID: uuid.New(), FunnelID: funnelID, Title: "Em Atendimento", OrderPosition: 1},
		{ID: uuid.New(), FunnelID: funnelID, Title: "Proposta", OrderPosition: 2},
	}}

	store := &fakeLeadStore{byStage: map[uuid.UUID][]boardcache.Lead{
		stages.stages[0].ID: stageLeads(stages.stages[0].ID, userID, 2),
		stages.stages[1].ID: stageLeads(stages.stages[1].ID, userID, 1),
		stages.stages[2].ID: stageLeads(stages.stages[2].ID, userID, 3),
	}, total: 6}

	svc, _ := newBalanceService(store, stages)

	page, err := svc.FetchPage(context.Background(), userID, funnelID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Leads) != 6 {
		t.Fatalf("expected 6 leads, got %d", len(page.Leads))
	}
	if page.TotalCount != 6 || page.HasMore {
		t.Fatalf("unexpected pagination: total=%d hasMore=%v", page.TotalCount, page.HasMore)
	}

	// Every board stage contributes, concatenated in stage order.
	perStage := make(map[uuid.UUID]int)
	for _, lead := range page.Leads {
		perStage[*lead.KanbanStageID]++
	}
	wantCounts := []int{2, 1, 3}
	for i, stage := range stages.stages {
		if perStage[stage.ID] != wantCounts[i] {
			t.Fatalf("stage %q contributed %d leads, want %d", stage.Title, perStage[stage.ID], wantCounts[i])
		}
	}
	if *page.Leads[0].KanbanStageID != stages.stages[0].ID {
		t.Fatal("expected first stage's leads first")
	}
	if *page.Leads[5].KanbanStageID != stages.stages[2].ID {
		t.Fatal("expected last stage's leads last")
	}
}

func TestFetchPageZeroCapsEachStage(t *testing.T) {
	userID, funnelID := uuid.New(), uuid.New()
	big := funnelrepo.Stage{ID: uuid.New(), FunnelID: funnelID, Title: "Entrada", OrderPosition: 0}
	small := funnelrepo.Stage{ID: uuid.New(), FunnelID: funnelID, Title: "Proposta", OrderPosition: 1}
	stages := &fakeStages{stages: []funnelrepo.Stage{big, small}}

	store := &fakeLeadStore{byStage: map[uuid.UUID][]boardcache.Lead{
		big.ID:   stageLeads(big.ID, userID, repository.StageCap+10),
		small.ID: stageLeads(small.ID, userID, 2),
	}, total: repository.StageCap + 12}

	svc, _ := newBalanceService(store, stages)

	page, err := svc.FetchPage(context.Background(), userID, funnelID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Leads) != repository.StageCap+2 {
		t.Fatalf("expected %d leads, got %d", repository.StageCap+2, len(page.Leads))
	}

	fromBig := 0
	for _, lead := range page.Leads {
		if *lead.KanbanStageID == big.ID {
			fromBig++
		}
	}
	if fromBig != repository.StageCap {
		t.Fatalf("expected the large stage capped at %d, got %d", repository.StageCap, fromBig)
	}
}

func TestFetchPageZeroDegradesFailedStageToEmptyColumn(t *testing.T) {
	userID, funnelID := uuid.New(), uuid.New()
	healthy := funnelrepo.Stage{ID: uuid.New(), FunnelID: funnelID, Title: "Entrada", OrderPosition: 0}
	broken := funnelrepo.Stage{ID: uuid.New(), FunnelID: funnelID, Title: "Proposta", OrderPosition: 1}
	stages := &fakeStages{stages: []funnelrepo.Stage{healthy, broken}}

	store := &fakeLeadStore{
		byStage:  map[uuid.UUID][]boardcache.Lead{healthy.ID: stageLeads(healthy.ID, userID, 3)},
		stageErr: map[uuid.UUID]error{broken.ID: errors.New("connection reset")},
		total:    3,
	}

	svc, _ := newBalanceService(store, stages)

	page, err := svc.FetchPage(context.Background(), userID, funnelID, 0)
	if err != nil {
		t.Fatalf("expected soft failure, got error: %v", err)
	}
	if len(page.Leads) != 3 {
		t.Fatalf("expected the healthy stage's leads, got %d", len(page.Leads))
	}
}

func TestFetchPageZeroServesSecondReadFromCache(t *testing.T) {
	userID, funnelID := uuid.New(), uuid.New()
	stage := funnelrepo.Stage{ID: uuid.New(), FunnelID: funnelID, Title: "Entrada", OrderPosition: 0}
	stages := &fakeStages{stages: []funnelrepo.Stage{stage}}
	store := &fakeLeadStore{
		byStage: map[uuid.UUID][]boardcache.Lead{stage.ID: stageLeads(stage.ID, userID, 2)},
		total:   2,
	}

	svc, _ := newBalanceService(store, stages)
	ctx := context.Background()

	first, err := svc.FetchPage(ctx, userID, funnelID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.FromCache {
		t.Fatal("expected first fetch to miss the cache")
	}

	second, err := svc.FetchPage(ctx, userID, funnelID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.FromCache {
		t.Fatal("expected second fetch served from cache")
	}
	if len(second.Leads) != 2 {
		t.Fatalf("expected cached page intact, got %d leads", len(second.Leads))
	}
}
