package mine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/board/fen"
	"github.com/herohde/puzzlemine/pkg/eval"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/herohde/puzzlemine/pkg/mine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePool scores records with the given function, in order.
type fakePool struct {
	score func(pos *board.Position) (*analysis.Analysis, error)
	calls int
}

func (p *fakePool) AnalyseAll(ctx context.Context, recs []*analysis.Record, accel *filter.Filter, maxNodes uint64, maxTime time.Duration) {
	p.AnalyseEach(ctx, recs, accel, maxNodes, maxTime, nil)
}

func (p *fakePool) AnalyseEach(ctx context.Context, recs []*analysis.Record, accel *filter.Filter, maxNodes uint64, maxTime time.Duration, callback func(*analysis.Record)) {
	for _, r := range recs {
		p.calls++
		r.Analysis, r.Err = p.score(r.Position)
		r.Engine = "fake"
		if callback != nil {
			callback(r)
		}
	}
}

func (p *fakePool) Size() int {
	return 1
}

// memSink collects emissions in memory.
type memSink struct {
	mu      sync.Mutex
	records []*analysis.Record
	kinds   []string
}

func (s *memSink) Emit(rec *analysis.Record, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	s.kinds = append(s.kinds, kind)
	return nil
}

func (s *memSink) Close() error {
	return nil
}

func (s *memSink) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// scoreInitialOnly marks the standard start a puzzle with best move e2e4 and
// everything else a non-puzzle.
func scoreInitialOnly(pos *board.Position) (*analysis.Analysis, error) {
	a := analysis.New()
	if pos.Equal(fen.MustDecode(fen.Initial)) {
		a.Add(&analysis.Output{PV: 1, Depth: 10, Score: eval.CP(200), Moves: []board.Move{board.NewMove(board.E2, board.E4)}})
	} else {
		a.Add(&analysis.Output{PV: 1, Depth: 10, Score: eval.CP(0)})
	}
	return a, nil
}

func newMiner(t *testing.T, pool mine.Pool, sink mine.Sink, mutate func(*mine.Config)) *mine.Miner {
	cfg := mine.Config{
		Verify:   filter.MustParse("cp(1) >= 100"),
		NodesCap: 1000,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	m, err := mine.New(pool, sink, nil, cfg)
	require.NoError(t, err)
	return m
}

func seedRecords(fens ...string) []*analysis.Record {
	var recs []*analysis.Record
	for _, f := range fens {
		recs = append(recs, analysis.NewRecord(fen.MustDecode(f)))
	}
	return recs
}

func TestMinerExpandsPuzzles(t *testing.T) {
	ctx := context.Background()

	pool := &fakePool{score: scoreInitialOnly}
	sink := &memSink{}
	m := newMiner(t, pool, sink, nil)

	stats, err := m.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)

	// Wave 1 mines the seed as a puzzle; wave 2 analyzes the 20 children behind
	// the forced reply 1. e4, none of which verifies.
	assert.Equal(t, 2, stats.Waves)
	assert.Equal(t, 21, stats.Processed)
	assert.Equal(t, 1, stats.Puzzles)
	assert.Equal(t, 20, stats.NonPuzzles)

	assert.Equal(t, 1, sink.count(mine.KindPuzzle))
	assert.Equal(t, 20, sink.count(mine.KindNonPuzzle))

	// No two emitted records share a position signature.
	seen := map[uint64]bool{}
	for _, r := range sink.records {
		sig := r.Position.Signature()
		assert.False(t, seen[sig], "duplicate emission of %v", r.Position)
		seen[sig] = true
	}

	// Children carry the intermediate position as parent.
	for _, r := range sink.records[1:] {
		require.NotNil(t, r.Parent)
		assert.Equal(t, board.Black, r.Parent.Turn())
	}
}

func TestMinerMaxTotal(t *testing.T) {
	ctx := context.Background()

	pool := &fakePool{score: scoreInitialOnly}
	sink := &memSink{}
	m := newMiner(t, pool, sink, func(cfg *mine.Config) {
		cfg.MaxTotal = 5
	})

	stats, err := m.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Processed)
}

func TestMinerMaxFrontier(t *testing.T) {
	ctx := context.Background()

	pool := &fakePool{score: scoreInitialOnly}
	sink := &memSink{}
	m := newMiner(t, pool, sink, func(cfg *mine.Config) {
		cfg.MaxFrontier = 7
	})

	stats, err := m.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)

	// Wave 2 is capped at 7 of the 20 children.
	assert.Equal(t, 8, pool.calls)
	assert.Equal(t, 8, stats.Processed)
}

func TestMinerMaxWaves(t *testing.T) {
	ctx := context.Background()

	pool := &fakePool{score: scoreInitialOnly}
	sink := &memSink{}
	m := newMiner(t, pool, sink, func(cfg *mine.Config) {
		cfg.MaxWaves = 1
	})

	stats, err := m.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Waves)
	assert.Equal(t, 1, stats.Processed)
}

func TestMinerDeduplicatesSeeds(t *testing.T) {
	ctx := context.Background()

	pool := &fakePool{score: scoreInitialOnly}
	sink := &memSink{}
	m := newMiner(t, pool, sink, func(cfg *mine.Config) {
		cfg.MaxWaves = 1
	})

	stats, err := m.Run(ctx, seedRecords(fen.Initial, fen.Initial, fen.Initial))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed, "duplicate seeds analyzed once")
	assert.Equal(t, 2, stats.Duplicates)
}

func TestMinerSkipsFailedRecords(t *testing.T) {
	ctx := context.Background()

	pool := &fakePool{score: func(pos *board.Position) (*analysis.Analysis, error) {
		return analysis.New(), assert.AnError
	}}
	sink := &memSink{}
	m := newMiner(t, pool, sink, nil)

	stats, err := m.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Processed)
	assert.Empty(t, sink.records, "failed records are neither emitted nor expanded")
}

func TestMinerStreaming(t *testing.T) {
	ctx := context.Background()

	pool := &fakePool{score: scoreInitialOnly}
	sink := &memSink{}
	m := newMiner(t, pool, sink, func(cfg *mine.Config) {
		cfg.Stream = true
	})

	stats, err := m.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)

	assert.Equal(t, 21, stats.Processed)
	assert.Equal(t, 1, sink.count(mine.KindPuzzle))
	assert.Equal(t, 20, sink.count(mine.KindNonPuzzle))
}

func TestMinerPersistentStore(t *testing.T) {
	ctx := context.Background()

	store, err := mine.OpenStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	pool := &fakePool{score: scoreInitialOnly}
	m, err := mine.New(pool, &memSink{}, store, mine.Config{
		Verify:   filter.MustParse("cp(1) >= 100"),
		NodesCap: 1000,
		MaxWaves: 1,
	})
	require.NoError(t, err)

	_, err = m.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)

	assert.True(t, store.Has(fen.MustDecode(fen.Initial).Signature()))

	// A second run against the same store skips the stored position.
	pool2 := &fakePool{score: scoreInitialOnly}
	sink2 := &memSink{}
	m2, err := mine.New(pool2, sink2, store, mine.Config{
		Verify:   filter.MustParse("cp(1) >= 100"),
		NodesCap: 1000,
		MaxWaves: 1,
	})
	require.NoError(t, err)

	stats, err := m2.Run(ctx, seedRecords(fen.Initial))
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Equal(t, 1, stats.Duplicates)
}
