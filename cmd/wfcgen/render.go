package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lawnchairsociety/wfcgen/internal/wfc"
)

// renderBox draws tiles inside a border with row and column rulers
func renderBox(tiles [][]rune) string {
	var output strings.Builder
	if len(tiles) == 0 {
		return ""
	}
	cols := len(tiles[0])

	output.WriteString("    ")
	for c := 0; c < cols; c++ {
		output.WriteByte(byte('0' + c%10))
	}
	output.WriteString("\n   +" + strings.Repeat("-", cols) + "+\n")

	for r, row := range tiles {
		output.WriteString(fmt.Sprintf("%3d|", r))
		output.WriteString(string(row))
		output.WriteString("|\n")
	}

	output.WriteString("   +" + strings.Repeat("-", cols) + "+\n")
	return output.String()
}

// renderLegend lists each tile with its weight and probability
func renderLegend(model *wfc.Model) string {
	var output strings.Builder
	output.WriteString("Legend:\n")
	for _, t := range model.Tiles() {
		output.WriteString(fmt.Sprintf("  [%s] weight %-4d p=%.4f\n", t, model.Weight(t), model.Probability(t)))
	}
	return output.String()
}

// renderRules groups the adjacency rules by tile and direction
func renderRules(model *wfc.Model, only *wfc.Direction) string {
	var output strings.Builder

	byTile := make(map[wfc.Tile]map[wfc.Direction][]string)
	for _, rule := range model.Rules() {
		if only != nil && rule.Dir != *only {
			continue
		}
		if byTile[rule.From] == nil {
			byTile[rule.From] = make(map[wfc.Direction][]string)
		}
		byTile[rule.From][rule.Dir] = append(byTile[rule.From][rule.Dir], rule.To.String())
	}

	tiles := model.Tiles()
	sort.Slice(tiles, func(i, j int) bool { return tiles[i] < tiles[j] })

	for _, t := range tiles {
		output.WriteString(fmt.Sprintf("%s\n", t))
		dirs := byTile[t]
		for _, d := range wfc.AllDirections() {
			if only != nil && d != *only {
				continue
			}
			allowed := dirs[d]
			if len(allowed) == 0 {
				output.WriteString(fmt.Sprintf("  %-5s -\n", d))
				continue
			}
			output.WriteString(fmt.Sprintf("  %-5s %s\n", d, strings.Join(allowed, " ")))
		}
	}
	return output.String()
}
