package filter_test

import (
	"testing"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/eval"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/seekerror/stdlib/pkg/lang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid returns an analysis with pv1 at +250cp (depth 18) and pv2 at +30cp.
func grid() *analysis.Analysis {
	a := analysis.New()
	a.Add(&analysis.Output{PV: 1, Depth: 10, Score: eval.CP(90)})
	a.Add(&analysis.Output{PV: 1, Depth: 18, Score: eval.CP(250), Nodes: 500000})
	a.Add(&analysis.Output{PV: 2, Depth: 18, Score: eval.CP(30)})
	return a
}

func TestEval(t *testing.T) {
	tests := []struct {
		expr     string
		expected bool
	}{
		{"cp(1) >= 200", true},
		{"cp(1) > 250", false},
		{"cp(1) = 250", true},
		{"cp(1) != 250", false},
		{"cp(2) < 50", true},
		{"cp(1) >= 200 AND cp(2) < 50", true},
		{"cp(1) >= 200 AND cp(2) < 10", false},
		{"cp(1) >= 500 OR cp(2) < 50", true},
		{"depth(1) >= 18", true},
		{"nodes(1) >= 100000", true},
		{"mate(1) > 0", false},              // pv1 is a cp score
		{"cp(3) > 0", false},                // missing pv row
		{"wdl_w(1) > 0", false},             // no wdl reported
		{"(cp(1) >= 200 OR mate(1) > 0) AND cp(2) < 50", true},
		{"cp(1) >= 200 AND (cp(2) < 10 OR cp(2) < 50)", true},
	}

	for _, tt := range tests {
		f, err := filter.Parse(tt.expr)
		require.NoError(t, err, "expr '%v'", tt.expr)
		assert.Equal(t, tt.expected, f.Eval(grid()), "expr '%v'", tt.expr)
	}
}

func TestEvalUsesDeepestOutput(t *testing.T) {
	// The pv1 row holds 90cp at depth 10 and 250cp at depth 18: leaves read the
	// deepest entry.
	f := filter.MustParse("cp(1) < 100")
	assert.False(t, f.Eval(grid()))
}

func TestEvalMate(t *testing.T) {
	a := analysis.New()
	a.Add(&analysis.Output{PV: 1, Depth: 12, Score: eval.Mate(2)})

	assert.True(t, filter.MustParse("mate(1) > 0").Eval(a))
	assert.True(t, filter.MustParse("mate(1) <= 2").Eval(a))
	assert.False(t, filter.MustParse("cp(1) > 0").Eval(a))
}

func TestEvalWDL(t *testing.T) {
	a := analysis.New()
	out := &analysis.Output{PV: 1, Depth: 12, Score: eval.CP(100)}
	out.WDL = lang.Some(analysis.WDL{Win: 700, Draw: 250, Loss: 50})
	a.Add(out)

	assert.True(t, filter.MustParse("wdl_w(1) >= 700").Eval(a))
	assert.True(t, filter.MustParse("wdl_l(1) < 100").Eval(a))
	assert.False(t, filter.MustParse("wdl_d(1) > 500").Eval(a))
}

func TestMonotonicity(t *testing.T) {
	// OR is true whenever any child is; AND iff all children are.
	a := grid()

	tr := "cp(1) >= 200"
	fa := "cp(1) < 0"

	assert.True(t, filter.MustParse(tr+" OR "+fa).Eval(a))
	assert.True(t, filter.MustParse(fa+" OR "+tr).Eval(a))
	assert.False(t, filter.MustParse(fa+" OR "+fa).Eval(a))

	assert.True(t, filter.MustParse(tr+" AND "+tr).Eval(a))
	assert.False(t, filter.MustParse(tr+" AND "+fa).Eval(a))
	assert.False(t, filter.MustParse(fa+" AND "+tr).Eval(a))
}

func TestEmptyGrid(t *testing.T) {
	f := filter.MustParse("cp(1) >= 0 OR mate(1) > 0")
	assert.False(t, f.Eval(analysis.New()))
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"cp(1)",
		"cp(1) >=",
		"cp >= 200",
		"cp(0) >= 200",
		"cp(x) >= 200",
		"banana(1) >= 200",
		"cp(1) >= 200 AND",
		"cp(1) >= 200 OR OR cp(2) < 50",
		"(cp(1) >= 200",
		"cp(1) >= 200)",
		"cp(1) ~ 200",
	}

	for _, expr := range tests {
		_, err := filter.Parse(expr)
		assert.Error(t, err, "expr '%v'", expr)
		if err != nil {
			assert.Contains(t, err.Error(), expr, "error carries the expression")
		}
	}
}
