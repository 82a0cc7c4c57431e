// Package filter implements a small predicate language over analysis grids.
//
// A filter combines leaf predicates with AND/OR gates:
//
//	cp(1) >= 200 AND (cp(2) < 50 OR mate(1) > 0)
//
// A leaf reads the deepest output of the given PV row and compares one of its
// fields against an integer. Leaves over missing rows or mismatched score kinds
// evaluate to false, never to an error.
package filter

import (
	"fmt"

	"github.com/herohde/puzzlemine/pkg/analysis"
)

// Filter is a compiled predicate over an analysis grid. Immutable and safe for
// concurrent use.
type Filter struct {
	root node
	expr string
}

// Eval evaluates the filter against the analysis. Gates short-circuit in
// definition order.
func (f *Filter) Eval(a *analysis.Analysis) bool {
	return f.root.eval(a)
}

func (f *Filter) String() string {
	return f.expr
}

type node interface {
	eval(a *analysis.Analysis) bool
}

type gateOp uint8

const (
	andGate gateOp = iota
	orGate
)

type gate struct {
	op   gateOp
	kids []node
}

func (g *gate) eval(a *analysis.Analysis) bool {
	for _, k := range g.kids {
		v := k.eval(a)
		if g.op == andGate && !v {
			return false
		}
		if g.op == orGate && v {
			return true
		}
	}
	return g.op == andGate
}

type cmpOp uint8

const (
	cmpLT cmpOp = iota
	cmpLE
	cmpEQ
	cmpNE
	cmpGE
	cmpGT
)

func (c cmpOp) apply(a, b int64) bool {
	switch c {
	case cmpLT:
		return a < b
	case cmpLE:
		return a <= b
	case cmpEQ:
		return a == b
	case cmpNE:
		return a != b
	case cmpGE:
		return a >= b
	default:
		return a > b
	}
}

type leaf struct {
	field string
	pv    int
	cmp   cmpOp
	value int64
}

func (l *leaf) eval(a *analysis.Analysis) bool {
	o, ok := a.BestOutput(l.pv)
	if !ok {
		return false
	}

	var v int64
	switch l.field {
	case "cp":
		cp, ok := o.Score.IsCP()
		if !ok {
			return false
		}
		v = int64(cp)
	case "mate":
		n, ok := o.Score.IsMate()
		if !ok {
			return false
		}
		v = int64(n)
	case "depth":
		v = int64(o.Depth)
	case "seldepth":
		v = int64(o.SelDepth)
	case "nodes":
		v = int64(o.Nodes)
	case "wdl_w", "wdl_d", "wdl_l":
		wdl, ok := o.WDL.V()
		if !ok {
			return false
		}
		switch l.field {
		case "wdl_w":
			v = int64(wdl.Win)
		case "wdl_d":
			v = int64(wdl.Draw)
		default:
			v = int64(wdl.Loss)
		}
	default:
		return false
	}
	return l.cmp.apply(v, l.value)
}

func (l *leaf) String() string {
	return fmt.Sprintf("%v(%v) %v %v", l.field, l.pv, l.cmp, l.value)
}

func (c cmpOp) String() string {
	switch c {
	case cmpLT:
		return "<"
	case cmpLE:
		return "<="
	case cmpEQ:
		return "="
	case cmpNE:
		return "!="
	case cmpGE:
		return ">="
	default:
		return ">"
	}
}
