// Package analysis aggregates engine search output into a depth×PV grid.
package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/eval"
	"github.com/seekerror/stdlib/pkg/lang"
)

// WDL is a win/draw/loss triple of integers summing to a fixed total, reported by
// engines as a probability-like breakdown.
type WDL struct {
	Win, Draw, Loss int
}

func (w WDL) String() string {
	return fmt.Sprintf("%v/%v/%v", w.Win, w.Draw, w.Loss)
}

// Bound qualifies a reported score as exact or a one-sided bound.
type Bound uint8

const (
	Exact Bound = iota
	Lower
	Upper
)

func (b Bound) String() string {
	switch b {
	case Lower:
		return "lowerbound"
	case Upper:
		return "upperbound"
	default:
		return "exact"
	}
}

// Output is one parsed engine info line: the state of one principal variation at
// one search depth.
type Output struct {
	PV       int           // principal variation index, 1-based
	Depth    int           // search depth in plies
	SelDepth int           // selective search depth
	Nodes    uint64        // nodes searched
	NPS      uint64        // nodes per second
	Time     time.Duration // elapsed search time
	Score    eval.Score
	WDL      lang.Optional[WDL]
	Bound    lang.Optional[Bound]
	Moves    []board.Move // the principal variation
}

// BestMove returns the first move of the variation, or NoMove.
func (o *Output) BestMove() board.Move {
	if len(o.Moves) == 0 {
		return board.NoMove
	}
	return o.Moves[0]
}

func (o *Output) String() string {
	return fmt.Sprintf("pv=%v depth=%v score=%v moves=%v", o.PV, o.Depth, o.Score, board.PrintMoves(o.Moves))
}

type gridKey struct {
	pv, depth int
}

// Analysis is a grid of engine outputs keyed by (pv, depth). Adding an output for
// an occupied key overwrites it. The raw engine lines are retained alongside for
// serialization. Not thread-safe.
type Analysis struct {
	grid map[gridKey]*Output
	raw  []string
}

// New returns an empty analysis.
func New() *Analysis {
	return &Analysis{grid: map[gridKey]*Output{}}
}

// Add inserts the output at its (pv, depth) cell, overwriting any previous value.
func (a *Analysis) Add(o *Output) {
	a.grid[gridKey{pv: o.PV, depth: o.Depth}] = o
}

// AddRaw retains a raw engine line for serialization.
func (a *Analysis) AddRaw(line string) {
	a.raw = append(a.raw, line)
}

// Raw returns the retained raw engine lines.
func (a *Analysis) Raw() []string {
	return a.raw
}

// BestOutput returns the output at the deepest populated depth for the PV.
func (a *Analysis) BestOutput(pv int) (*Output, bool) {
	var best *Output
	for k, o := range a.grid {
		if k.pv != pv {
			continue
		}
		if best == nil || o.Depth > best.Depth {
			best = o
		}
	}
	return best, best != nil
}

// BestMove returns the first move of the deepest output for the PV, or NoMove.
func (a *Analysis) BestMove(pv int) board.Move {
	o, ok := a.BestOutput(pv)
	if !ok {
		return board.NoMove
	}
	return o.BestMove()
}

// Size returns the number of populated grid cells.
func (a *Analysis) Size() int {
	return len(a.grid)
}

// Pivots returns the number of distinct PV rows.
func (a *Analysis) Pivots() int {
	seen := map[int]bool{}
	for k := range a.grid {
		seen[k.pv] = true
	}
	return len(seen)
}

func (a *Analysis) IsEmpty() bool {
	return len(a.grid) == 0
}

// Outputs returns all populated outputs ordered by (pv, depth).
func (a *Analysis) Outputs() []*Output {
	ret := make([]*Output, 0, len(a.grid))
	for _, o := range a.grid {
		ret = append(ret, o)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].PV != ret[j].PV {
			return ret[i].PV < ret[j].PV
		}
		return ret[i].Depth < ret[j].Depth
	})
	return ret
}

func (a *Analysis) String() string {
	var lines []string
	for _, o := range a.Outputs() {
		lines = append(lines, o.String())
	}
	return strings.Join(lines, "\n")
}
