package sample

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"gopkg.in/yaml.v3"
)

// GridYAML represents a generated grid in YAML format
type GridYAML struct {
	Sample     string         `yaml:"sample,omitempty"`
	Rows       int            `yaml:"rows"`
	Cols       int            `yaml:"cols"`
	Seed       int64          `yaml:"seed"`
	Attempts   int            `yaml:"attempts"`
	Steps      int            `yaml:"steps"`
	Success    bool           `yaml:"success"`
	DurationMS int64          `yaml:"duration_ms"`
	Tiles      []string       `yaml:"tiles"`
	Conflicts  []ConflictYAML `yaml:"conflicts,omitempty"`
}

// ConflictYAML represents a contradicted cell in YAML
type ConflictYAML struct {
	Cell    string `yaml:"cell"`
	Source  string `yaml:"source"`
	Tile    string `yaml:"tile,omitempty"`
	Dir     string `yaml:"dir"`
	Removed string `yaml:"removed"`
}

// ToYAML converts a generation result to its YAML form
func ToYAML(name string, result *wfc.Result) *GridYAML {
	out := &GridYAML{
		Sample:     name,
		Rows:       result.Rows,
		Cols:       result.Cols,
		Seed:       result.Seed,
		Attempts:   result.Attempts,
		Steps:      result.Steps,
		Success:    result.Success(),
		DurationMS: result.Duration.Milliseconds(),
		Tiles:      make([]string, 0, len(result.Tiles)),
	}
	for _, row := range result.Tiles {
		out.Tiles = append(out.Tiles, string(row))
	}
	for _, c := range result.Conflicts {
		cy := ConflictYAML{
			Cell:    c.Cell.String(),
			Source:  c.Source.String(),
			Dir:     c.Dir.String(),
			Removed: tilesString(c.Removed),
		}
		if c.SourceCollapsed {
			cy.Tile = c.Tile.String()
		}
		out.Conflicts = append(out.Conflicts, cy)
	}
	return out
}

// WriteYAML writes a generation result to path, creating parent directories as needed
func WriteYAML(path, name string, result *wfc.Result) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return EncodeYAML(f, name, result)
}

// EncodeYAML writes the YAML form of a result, preceded by a short header comment
func EncodeYAML(w io.Writer, name string, result *wfc.Result) error {
	if name != "" {
		fmt.Fprintf(w, "# Generated from sample %q\n", name)
	}
	fmt.Fprintf(w, "# Grid: %dx%d, seed %d\n\n", result.Rows, result.Cols, result.Seed)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(ToYAML(name, result)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// FormatText renders tiles one row per line, with sep between symbols
func FormatText(tiles [][]rune, sep string) string {
	var sb strings.Builder
	for _, row := range tiles {
		for c, ch := range row {
			if c > 0 {
				sb.WriteString(sep)
			}
			sb.WriteRune(ch)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteText writes the plain text rendering of a result to path
func WriteText(path string, result *wfc.Result) error {
	if err := os.WriteFile(path, []byte(FormatText(result.Tiles, "")), 0644); err != nil {
		return fmt.Errorf("failed to write grid: %w", err)
	}
	return nil
}

func tilesString(tiles []wfc.Tile) string {
	var sb strings.Builder
	for _, t := range tiles {
		sb.WriteRune(rune(t))
	}
	return sb.String()
}
