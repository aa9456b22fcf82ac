package wfc

import "fmt"

// Tile is a single symbol that can occupy a grid cell
type Tile rune

// String returns the tile's symbol as a one-character string
func (t Tile) String() string {
	return string(rune(t))
}

// Direction represents where a neighbor lies relative to a reference cell
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

// numDirections is the number of Direction values
const numDirections = 4

// String returns the string representation of a Direction
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Opposite returns the opposite direction
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Right:
		return Left
	case Down:
		return Up
	case Left:
		return Right
	default:
		return d
	}
}

// Offset returns the row and column delta for one step in the direction
func (d Direction) Offset() (dr, dc int) {
	switch d {
	case Up:
		return -1, 0
	case Right:
		return 0, 1
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	}
	return 0, 0
}

// ParseDirection converts a direction name back to a Direction
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "right":
		return Right, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	}
	return 0, fmt.Errorf("wfc: unknown direction %q", s)
}

// AllDirections returns all four directions in a fixed order
func AllDirections() []Direction {
	return []Direction{Up, Right, Down, Left}
}

// Position identifies a cell by row and column
type Position struct {
	Row, Col int
}

// String formats the position as "row,col"
func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.Row, p.Col)
}

// Step returns the position one cell away in the given direction
func (p Position) Step(d Direction) Position {
	dr, dc := d.Offset()
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}
