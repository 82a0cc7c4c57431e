package analysis

import (
	"fmt"

	"github.com/herohde/puzzlemine/pkg/board"
)

// Record is the unit of work in the mining pipeline: a position, its optional
// parent, the engine that analyzed it and the accumulated analysis. Records are
// moved into and out of pool workers by pointer; a record is owned by exactly one
// goroutine at a time.
type Record struct {
	Position    *board.Position
	Parent      *board.Position // nil if a seed position
	Engine      string
	Tags        []string
	Description string

	Analysis *Analysis
	Err      error // analysis failure, if any
}

// NewRecord returns a record for the position with an empty analysis.
func NewRecord(pos *board.Position) *Record {
	return &Record{Position: pos, Analysis: New()}
}

// NewChildRecord returns a record for a position reached from the given parent.
func NewChildRecord(pos, parent *board.Position) *Record {
	return &Record{Position: pos, Parent: parent, Analysis: New()}
}

func (r *Record) String() string {
	return fmt.Sprintf("record{%v engine=%v tags=%v outputs=%v err=%v}", r.Position, r.Engine, r.Tags, r.Analysis.Size(), r.Err)
}
