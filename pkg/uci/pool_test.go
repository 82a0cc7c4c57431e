package uci_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/board/fen"
	"github.com/herohde/puzzlemine/pkg/eval"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/herohde/puzzlemine/pkg/uci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAnalyser scores every position at +100cp, or fails if broken.
type fakeAnalyser struct {
	id     string
	broken bool

	mu    sync.Mutex
	count int
}

func (f *fakeAnalyser) ID() string {
	return f.id
}

func (f *fakeAnalyser) Analyse(ctx context.Context, pos *board.Position, maxNodes uint64, maxTime time.Duration, accel *filter.Filter) (*analysis.Analysis, error) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()

	a := analysis.New()
	if f.broken {
		return a, errors.New("engine crashed")
	}
	a.Add(&analysis.Output{PV: 1, Depth: 10, Score: eval.CP(100), Moves: []board.Move{board.NewMove(board.E2, board.E4)}})
	return a, nil
}

func (f *fakeAnalyser) Close(ctx context.Context) {}

func records(n int) []*analysis.Record {
	pos := fen.MustDecode(fen.Initial)

	var recs []*analysis.Record
	for _, sub := range pos.SubPositions() {
		if len(recs) == n {
			break
		}
		recs = append(recs, analysis.NewRecord(sub))
	}
	return recs
}

func TestAnalyseAll(t *testing.T) {
	ctx := context.Background()

	a1 := &fakeAnalyser{id: "one"}
	a2 := &fakeAnalyser{id: "two"}
	pool := uci.NewPool([]uci.Analyser{a1, a2})
	assert.Equal(t, 2, pool.Size())

	recs := records(10)
	inputOrder := append([]*analysis.Record(nil), recs...)

	pool.AnalyseAll(ctx, recs, nil, 1000, time.Second)

	assert.Equal(t, inputOrder, recs, "input order preserved")
	for _, r := range recs {
		require.NoError(t, r.Err)
		assert.False(t, r.Analysis.IsEmpty())
		assert.Contains(t, []string{"one", "two"}, r.Engine)
	}
	assert.Equal(t, 10, a1.count+a2.count, "every record analyzed exactly once")
}

func TestAnalyseEach(t *testing.T) {
	ctx := context.Background()

	pool := uci.NewPool([]uci.Analyser{&fakeAnalyser{id: "one"}, &fakeAnalyser{id: "two"}})

	var mu sync.Mutex
	var done []*analysis.Record

	recs := records(8)
	pool.AnalyseEach(ctx, recs, nil, 1000, time.Second, func(r *analysis.Record) {
		mu.Lock()
		defer mu.Unlock()
		done = append(done, r)
	})

	assert.Len(t, done, 8, "callback invoked once per record")
	assert.ElementsMatch(t, recs, done)
}

func TestAnalyseAllBrokenEngine(t *testing.T) {
	ctx := context.Background()

	// A broken driver marks its records failed instead of dropping them.
	pool := uci.NewPool([]uci.Analyser{&fakeAnalyser{id: "bad", broken: true}})

	recs := records(5)
	pool.AnalyseAll(ctx, recs, nil, 1000, time.Second)

	for _, r := range recs {
		require.Error(t, r.Err)
		assert.Equal(t, "bad", r.Engine)
		assert.True(t, r.Analysis.IsEmpty(), "partial analysis is still attached")
	}
}
