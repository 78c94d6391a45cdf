package service

import (
	"testing"

	"funnelboard/internal/boardcache"
	funnelrepo "funnelboard/internal/funnels/repository"

	"github.com/google/uuid"
)

func TestAssembleColumnsSingleStageBoard(t *testing.T) {
	// A funnel whose only other stage is terminal produces exactly one column.
	entry := funnelrepo.Stage{ID: uuid.New(), Title: "Entrada", Color: "#94a3b8", OrderPosition: 0}

	vip := boardcache.Tag{ID: uuid.New(), Name: "vip", Color: "#fff"}
	tagged := boardLead("Maria", "+5511000000001")
	tagged.KanbanStageID = uuidptr(entry.ID)
	tagged.Tags = []boardcache.Tag{vip}
	untagged := boardLead("João", "+5511000000002")
	untagged.KanbanStageID = uuidptr(entry.ID)

	columns, orphaned := assembleColumns([]funnelrepo.Stage{entry}, []boardcache.Lead{tagged, untagged})
	if len(columns) != 1 {
		t.Fatalf("expected exactly one column, got %d", len(columns))
	}
	if orphaned != 0 {
		t.Fatalf("expected no orphans, got %d", orphaned)
	}

	col := columns[0]
	if col.Stage.ID != entry.ID || col.Count != 2 {
		t.Fatalf("unexpected column: stage=%s count=%d", col.Stage.ID, col.Count)
	}
	for _, lead := range col.Leads {
		if lead.Tags == nil {
			t.Fatalf("lead %s carries nil tags, want empty or populated slice", lead.Name)
		}
	}
	if len(col.Leads[0].Tags) != 1 || col.Leads[0].Tags[0].ID != vip.ID {
		t.Fatal("expected first lead's tags populated")
	}
	if len(col.Leads[1].Tags) != 0 {
		t.Fatal("expected second lead's tags empty")
	}
}

func TestAssembleColumnsKeepsStageOrder(t *testing.T) {
	stages := []funnelrepo.Stage{
		{ID: uuid.New(), Title: "Entrada", OrderPosition: 0},
		{ID: uuid.New(), Title: "Em Atendimento", OrderPosition: 1},
		{ID: uuid.New(), Title: "Proposta", OrderPosition: 2},
	}

	columns, _ := assembleColumns(stages, nil)
	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	for i, col := range columns {
		if col.Stage.ID != stages[i].ID {
			t.Fatalf("column %d out of order", i)
		}
		if col.Leads == nil {
			t.Fatalf("column %d has nil lead list", i)
		}
	}
}

func TestAssembleColumnsCountsOrphans(t *testing.T) {
	stage := funnelrepo.Stage{ID: uuid.New(), Title: "Entrada", OrderPosition: 0}

	placed := boardLead("placed", "+5511000000001")
	placed.KanbanStageID = uuidptr(stage.ID)
	unknownStage := boardLead("ghost", "+5511000000002")
	unknownStage.KanbanStageID = uuidptr(uuid.New())
	unstaged := boardLead("floating", "+5511000000003")

	columns, orphaned := assembleColumns([]funnelrepo.Stage{stage}, []boardcache.Lead{placed, unknownStage, unstaged})
	if orphaned != 2 {
		t.Fatalf("expected 2 orphans, got %d", orphaned)
	}
	if columns[0].Count != 1 {
		t.Fatalf("expected only the placed lead in the column, got %d", columns[0].Count)
	}
}
