package service

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadStageSeedsEmptyPathUsesDefaults(t *testing.T) {
	seeds, err := LoadStageSeeds("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDefaultPipeline(t, seeds)
}

func TestLoadStageSeedsMissingFileUsesDefaults(t *testing.T) {
	seeds, err := LoadStageSeeds(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDefaultPipeline(t, seeds)
}

func TestLoadStageSeedsReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	content := `stages:
  - title: Novo
    color: "#aabbcc"
  - title: Fechado
    color: "#112233"
    isWon: true
  - title: Descartado
    color: "#445566"
    isLost: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	seeds, err := LoadStageSeeds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seeds) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(seeds))
	}
	if seeds[0].Title != "Novo" || seeds[0].Color != "#aabbcc" {
		t.Fatalf("unexpected first stage: %+v", seeds[0])
	}
	if !seeds[1].IsWon || seeds[1].IsLost {
		t.Fatalf("expected second stage won-only, got %+v", seeds[1])
	}
	if !seeds[2].IsLost {
		t.Fatalf("expected third stage lost, got %+v", seeds[2])
	}
}

func TestLoadStageSeedsEmptyStageListFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	if err := os.WriteFile(path, []byte("stages: []\n"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	seeds, err := LoadStageSeeds(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDefaultPipeline(t, seeds)
}

func TestLoadStageSeedsRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	if err := os.WriteFile(path, []byte("stages: [unclosed"), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	if _, err := LoadStageSeeds(path); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}

func assertDefaultPipeline(t *testing.T, seeds []StageSeed) {
	t.Helper()

	if len(seeds) != 5 {
		t.Fatalf("expected 5 default stages, got %d", len(seeds))
	}
	if seeds[0].Title != "Entrada" {
		t.Fatalf("expected first stage Entrada, got %q", seeds[0].Title)
	}

	var won, lost int
	for _, seed := range seeds {
		if seed.IsWon {
			won++
		}
		if seed.IsLost {
			lost++
		}
		if seed.IsWon && seed.IsLost {
			t.Fatalf("stage %q is both won and lost", seed.Title)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("expected exactly one won and one lost stage, got %d/%d", won, lost)
	}
}
