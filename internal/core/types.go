// Package core defines domain models for rail conflict observations.
package core

import "fmt"

// Orientation is a train heading inside a cell.
type Orientation int

const (
	North Orientation = iota
	East
	South
	West
)

func (o Orientation) String() string {
	return [...]string{"N", "E", "S", "W"}[o]
}

// Reverse returns the opposite heading.
func (o Orientation) Reverse() Orientation {
	return (o + 2) % 4
}

// Cell is a track cell on the rail grid.
type Cell struct {
	Row, Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Node is a routing-graph node: a cell entered with a given heading.
type Node struct {
	Row, Col    int
	Orientation Orientation
}

// NodeAt builds a node from a cell and heading.
func NodeAt(c Cell, o Orientation) Node {
	return Node{Row: c.Row, Col: c.Col, Orientation: o}
}

// Cell drops the heading.
func (n Node) Cell() Cell {
	return Cell{Row: n.Row, Col: n.Col}
}

func (n Node) String() string {
	return fmt.Sprintf("(%d,%d,%s)", n.Row, n.Col, n.Orientation)
}

// Edge connects two consecutive nodes of a path.
type Edge struct {
	From, To Node
	Weight   int // Turns needed to traverse, in cells
	Length   int // Cells covered, including To
}
