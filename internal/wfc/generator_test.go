package wfc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(10, 12, 42)

	if cfg.Rows != 10 || cfg.Cols != 12 {
		t.Errorf("size = %dx%d, want 10x12", cfg.Rows, cfg.Cols)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.Propagation != PropagateSingleHop {
		t.Errorf("Propagation = %s, want %s", cfg.Propagation, PropagateSingleHop)
	}
	if cfg.Collapse != CollapseWeighted {
		t.Errorf("Collapse = %s, want %s", cfg.Collapse, CollapseWeighted)
	}
	if cfg.MaxAttempts != 10 {
		t.Errorf("MaxAttempts = %d, want 10", cfg.MaxAttempts)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
}

func TestGeneratorGenerate(t *testing.T) {
	m := mustBuild(t, "AB", "BA")
	cfg := DefaultConfig(6, 9, 42)

	gen := NewGenerator(m, cfg)
	result, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	if !result.Success() {
		t.Error("result should be a success")
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if result.Steps != 54 {
		t.Errorf("Steps = %d, want 54", result.Steps)
	}
	if result.Seed != 42 {
		t.Errorf("Seed = %d, want 42", result.Seed)
	}
	if len(result.Tiles) != 6 || len(result.Tiles[0]) != 9 {
		t.Fatalf("Tiles size = %dx%d, want 6x9", len(result.Tiles), len(result.Tiles[0]))
	}
	assertAdjacency(t, m, result.Tiles)
}

func TestGeneratorRetriesAfterContradiction(t *testing.T) {
	m, err := NewModel(map[Tile]int{'A': 1, 'B': 1}, nil)
	if err != nil {
		t.Fatalf("NewModel() failed: %v", err)
	}
	cfg := DefaultConfig(2, 2, 1)
	cfg.MaxAttempts = 3

	var attemptsSeen = make(map[int]bool)
	gen := NewGenerator(m, cfg)
	gen.SetObserver(func(attempt int, e Event) {
		attemptsSeen[attempt] = true
	})

	result, err := gen.Generate(context.Background())
	if !errors.Is(err, ErrNoSolution) {
		t.Errorf("Generate() error = %v, want %v", err, ErrNoSolution)
	}
	if !errors.Is(err, ErrContradiction) {
		t.Errorf("Generate() error = %v, should wrap %v", err, ErrContradiction)
	}
	if result == nil {
		t.Fatal("Generate() should return the last attempt on failure")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if result.Seed != 1+2000 {
		t.Errorf("Seed = %d, want %d", result.Seed, 1+2000)
	}
	if result.Success() || len(result.Conflicts) == 0 {
		t.Error("failed result should carry conflicts")
	}
	if len(attemptsSeen) != 3 {
		t.Errorf("observer saw %d attempts, want 3", len(attemptsSeen))
	}
}

func TestGeneratorSeedContradictionNotRetried(t *testing.T) {
	m := mustBuild(t, "AB", "BA")
	cfg := DefaultConfig(2, 2, 5)
	cfg.MaxAttempts = 5
	// Both seeds are legal on their own but leave (0,1) and (1,0) with nothing
	cfg.SeedTiles = []SeedTile{{Row: 0, Col: 0, Tile: 'A'}, {Row: 1, Col: 1, Tile: 'B'}}

	attempts := 0
	gen := NewGenerator(m, cfg)
	gen.SetObserver(func(attempt int, e Event) { attempts = attempt + 1 })

	result, err := gen.Generate(context.Background())
	if !errors.Is(err, ErrContradiction) {
		t.Fatalf("Generate() error = %v, want %v", err, ErrContradiction)
	}
	if errors.Is(err, ErrNoSolution) {
		t.Errorf("Generate() error = %v, should not be %v", err, ErrNoSolution)
	}
	if result == nil {
		t.Fatal("Generate() should return the contradicted grid")
	}
	if result.Attempts != 1 || result.Steps != 0 {
		t.Errorf("Attempts = %d, Steps = %d, want 1 and 0", result.Attempts, result.Steps)
	}
	if len(result.Conflicts) != 2 {
		t.Errorf("len(Conflicts) = %d, want 2", len(result.Conflicts))
	}
	if attempts != 0 {
		t.Errorf("observer saw attempt %d, want no steps run", attempts)
	}
}

func TestGeneratorStepBound(t *testing.T) {
	m := mustBuild(t, "AA", "AA")
	cfg := DefaultConfig(3, 3, 7)
	cfg.MaxSteps = 4

	result, err := NewGenerator(m, cfg).Generate(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Generate() error = %v, want %v", err, ErrTimeout)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (timeouts are not retried)", result.Attempts)
	}
	if result.Steps != 4 || result.Complete {
		t.Errorf("Steps = %d, Complete = %v, want 4 steps and incomplete", result.Steps, result.Complete)
	}
}

func TestGeneratorInvalidConfig(t *testing.T) {
	m := mustBuild(t, "AB", "BA")

	result, err := NewGenerator(m, DefaultConfig(0, 4, 1)).Generate(context.Background())
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Generate() error = %v, want %v", err, ErrInvalidDimensions)
	}
	if result != nil {
		t.Error("Generate() should return nil result for invalid dimensions")
	}
}

func TestGenerateBatch(t *testing.T) {
	m := mustBuild(t, "AB", "BA")
	cfg := DefaultConfig(4, 4, 10)

	results, err := GenerateBatch(context.Background(), m, cfg, 5, 2, nil)
	if err != nil {
		t.Fatalf("GenerateBatch() failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}

	seeds := make(map[int64]bool)
	for i, res := range results {
		if res == nil || !res.Success() {
			t.Errorf("member %d did not succeed", i)
			continue
		}
		if want := int64(10 + i*batchSeedStride); res.Seed != want {
			t.Errorf("member %d seed = %d, want %d", i, res.Seed, want)
		}
		seeds[res.Seed] = true
	}
	if len(seeds) != 5 {
		t.Errorf("got %d distinct seeds, want 5", len(seeds))
	}

	if results, err := GenerateBatch(context.Background(), m, cfg, 0, 2, nil); err != nil || results != nil {
		t.Errorf("GenerateBatch(n=0) = (%v, %v), want (nil, nil)", results, err)
	}
}

func TestParseOptionNames(t *testing.T) {
	for _, p := range []Propagation{PropagateSingleHop, PropagateFixpoint} {
		got, err := ParsePropagation(p.String())
		if err != nil || got != p {
			t.Errorf("ParsePropagation(%q) = (%s, %v), want %s", p.String(), got, err, p)
		}
	}
	if _, err := ParsePropagation("deep"); err == nil {
		t.Error("ParsePropagation(\"deep\") should fail")
	}

	for _, p := range []CollapsePolicy{CollapseWeighted, CollapseUniform} {
		got, err := ParseCollapsePolicy(p.String())
		if err != nil || got != p {
			t.Errorf("ParseCollapsePolicy(%q) = (%s, %v), want %s", p.String(), got, err, p)
		}
	}
	if _, err := ParseCollapsePolicy("greedy"); err == nil {
		t.Error("ParseCollapsePolicy(\"greedy\") should fail")
	}
}
