// Package sample loads WFC sample grids and writes generated grids to disk.
package sample

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lawnchairsociety/wfcgen/internal/wfc"
	"gopkg.in/yaml.v3"
)

// SampleYAML represents a sample grid in YAML format
type SampleYAML struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Rows        []string `yaml:"rows"`
}

// Sample is a named sample grid
type Sample struct {
	Name        string
	Description string
	Rows        []string
}

// Load reads a sample from a .yaml/.yml file or a plain text file
func Load(path string) (*Sample, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return LoadFromYAML(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample file: %w", err)
	}
	s, err := ParseText(string(data))
	if err != nil {
		return nil, err
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

// LoadFromYAML loads a sample from a YAML file
func LoadFromYAML(path string) (*Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample file: %w", err)
	}

	var sy SampleYAML
	if err := yaml.Unmarshal(data, &sy); err != nil {
		return nil, fmt.Errorf("failed to parse sample YAML: %w", err)
	}

	rows := make([]string, 0, len(sy.Rows))
	for _, row := range sy.Rows {
		if row = stripSpaces(row); row != "" {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sample %q: %w", sy.Name, wfc.ErrEmptySample)
	}

	return &Sample{Name: sy.Name, Description: sy.Description, Rows: rows}, nil
}

// ParseText parses a plain text sample: one row per line, spaces between tiles ignored,
// blank lines and lines starting with '#' skipped
func ParseText(text string) (*Sample, error) {
	var rows []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, stripSpaces(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sample: %w", err)
	}
	if len(rows) == 0 {
		return nil, wfc.ErrEmptySample
	}
	return &Sample{Rows: rows}, nil
}

// Grid converts the sample rows to tiles
func (s *Sample) Grid() [][]wfc.Tile {
	grid := make([][]wfc.Tile, len(s.Rows))
	for r, row := range s.Rows {
		grid[r] = make([]wfc.Tile, 0, utf8.RuneCountInString(row))
		for _, ch := range row {
			grid[r] = append(grid[r], wfc.Tile(ch))
		}
	}
	return grid
}

// Model builds the adjacency model for the sample
func (s *Sample) Model() (*wfc.Model, error) {
	m, err := wfc.Build(s.Grid())
	if err != nil {
		return nil, fmt.Errorf("sample %q: %w", s.Name, err)
	}
	return m, nil
}

// ParseSeeds parses seed specs of the form "row,col,tile"
func ParseSeeds(specs []string) ([]wfc.SeedTile, error) {
	seeds := make([]wfc.SeedTile, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ",", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid seed %q: want row,col,tile", spec)
		}
		row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid seed row in %q: %w", spec, err)
		}
		col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid seed column in %q: %w", spec, err)
		}
		tile := strings.TrimSpace(parts[2])
		if utf8.RuneCountInString(tile) != 1 {
			return nil, fmt.Errorf("invalid seed tile in %q: want one symbol", spec)
		}
		r, _ := utf8.DecodeRuneInString(tile)
		seeds = append(seeds, wfc.SeedTile{Row: row, Col: col, Tile: wfc.Tile(r)})
	}
	return seeds, nil
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
