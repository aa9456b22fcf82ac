package wfc

import (
	"errors"
	"math"
	"testing"
)

// sampleOf converts rows of symbols into a sample grid
func sampleOf(rows ...string) [][]Tile {
	out := make([][]Tile, len(rows))
	for r, row := range rows {
		for _, ch := range row {
			out[r] = append(out[r], Tile(ch))
		}
	}
	return out
}

func mustBuild(t *testing.T, rows ...string) *Model {
	t.Helper()
	m, err := Build(sampleOf(rows...))
	if err != nil {
		t.Fatalf("Build(%v) failed: %v", rows, err)
	}
	return m
}

func TestBuildCheckerboard(t *testing.T) {
	m := mustBuild(t, "AB", "BA")

	if got := m.Weight('A'); got != 2 {
		t.Errorf("Weight(A) = %d, want 2", got)
	}
	if got := m.Weight('B'); got != 2 {
		t.Errorf("Weight(B) = %d, want 2", got)
	}

	// Four directional rules per ordered pair, nothing between equal tiles
	for _, dir := range AllDirections() {
		if !m.Allows('A', 'B', dir) {
			t.Errorf("Allows(A, B, %s) = false, want true", dir)
		}
		if !m.Allows('B', 'A', dir) {
			t.Errorf("Allows(B, A, %s) = false, want true", dir)
		}
		if m.Allows('A', 'A', dir) {
			t.Errorf("Allows(A, A, %s) = true, want false", dir)
		}
		if m.Allows('B', 'B', dir) {
			t.Errorf("Allows(B, B, %s) = true, want false", dir)
		}
	}

	if got := m.RuleCount(); got != 8 {
		t.Errorf("RuleCount() = %d, want 8", got)
	}
}

func TestBuildRulesMatchSampleAdjacency(t *testing.T) {
	rows := []string{"SSS", "CCS", "LLC"}
	sample := sampleOf(rows...)
	m := mustBuild(t, rows...)

	// Brute-force the expected rule set
	want := make(map[Rule]bool)
	for r := range sample {
		for c := range sample[r] {
			for _, dir := range AllDirections() {
				dr, dc := dir.Offset()
				nr, nc := r+dr, c+dc
				if nr < 0 || nr >= len(sample) || nc < 0 || nc >= len(sample[r]) {
					continue
				}
				want[Rule{From: sample[r][c], To: sample[nr][nc], Dir: dir}] = true
			}
		}
	}

	got := m.Rules()
	if len(got) != len(want) {
		t.Errorf("len(Rules()) = %d, want %d", len(got), len(want))
	}
	seen := make(map[Rule]bool)
	for _, rule := range got {
		if seen[rule] {
			t.Errorf("Duplicate rule %s", rule)
		}
		seen[rule] = true
		if !want[rule] {
			t.Errorf("Rule %s does not occur in the sample", rule)
		}
	}
	for rule := range want {
		if !seen[rule] {
			t.Errorf("Sample adjacency %s missing from rules", rule)
		}
	}
}

func TestBuildDirectionConvention(t *testing.T) {
	// L sits below C in the sample, so C allows L in direction Down and L allows C Up
	m := mustBuild(t, "C", "L")

	if !m.Allows('C', 'L', Down) {
		t.Error("Allows(C, L, down) = false, want true")
	}
	if !m.Allows('L', 'C', Up) {
		t.Error("Allows(L, C, up) = false, want true")
	}
	if m.Allows('C', 'L', Up) {
		t.Error("Allows(C, L, up) = true, want false")
	}
}

func TestBuildWeights(t *testing.T) {
	m := mustBuild(t, "SSS", "CCS", "LLC")

	tests := []struct {
		tile Tile
		want int
	}{
		{'S', 4},
		{'C', 3},
		{'L', 2},
		{'X', 0},
	}
	for _, tc := range tests {
		if got := m.Weight(tc.tile); got != tc.want {
			t.Errorf("Weight(%s) = %d, want %d", tc.tile, got, tc.want)
		}
	}

	sum := 0
	for _, w := range m.Weights() {
		sum += w
	}
	if sum != 9 || m.TotalWeight() != 9 {
		t.Errorf("weight sum = %d, TotalWeight() = %d, want 9", sum, m.TotalWeight())
	}

	tiles := m.Tiles()
	if len(tiles) != 3 || tiles[0] != 'C' || tiles[1] != 'L' || tiles[2] != 'S' {
		t.Errorf("Tiles() = %v, want [C L S]", tiles)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		sample [][]Tile
		want   error
	}{
		{"nil", nil, ErrEmptySample},
		{"empty rows", [][]Tile{{}, {}}, ErrEmptySample},
		{"ragged", sampleOf("AB", "A"), ErrRaggedSample},
	}

	for _, tc := range tests {
		_, err := Build(tc.sample)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: Build() error = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(map[Tile]int{'A': 1, 'B': 3}, []Rule{
		{From: 'A', To: 'B', Dir: Right},
		{From: 'A', To: 'B', Dir: Right},
	})
	if err != nil {
		t.Fatalf("NewModel() failed: %v", err)
	}
	if got := m.RuleCount(); got != 1 {
		t.Errorf("RuleCount() = %d, want 1 (duplicates collapsed)", got)
	}
	if got := m.TotalWeight(); got != 4 {
		t.Errorf("TotalWeight() = %d, want 4", got)
	}

	if _, err := NewModel(nil, nil); !errors.Is(err, ErrEmptySample) {
		t.Errorf("NewModel(nil) error = %v, want %v", err, ErrEmptySample)
	}
	if _, err := NewModel(map[Tile]int{'A': 0}, nil); err == nil {
		t.Error("NewModel with zero weight should fail")
	}
	_, err = NewModel(map[Tile]int{'A': 1}, []Rule{{From: 'A', To: 'Z', Dir: Up}})
	if !errors.Is(err, ErrUnknownTile) {
		t.Errorf("NewModel with unknown tile error = %v, want %v", err, ErrUnknownTile)
	}
}

func TestModelEntropyClosedForm(t *testing.T) {
	// Weights 1, 1, 2
	m := mustBuild(t, "ABCC")

	want := -(0.25*math.Log(0.25)*2 + 0.5*math.Log(0.5))
	if got := m.Entropy(m.Tiles()); math.Abs(got-want) > 1e-12 {
		t.Errorf("Entropy(full) = %v, want %v", got, want)
	}

	if got := m.Probability('C'); got != 0.5 {
		t.Errorf("Probability(C) = %v, want 0.5", got)
	}

	// Removing candidates strictly lowers the non-renormalized entropy
	if m.Entropy([]Tile{'A', 'C'}) >= want {
		t.Error("Entropy should drop when a candidate is removed")
	}
}
