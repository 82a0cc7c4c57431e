package mine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/board/fen"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/contextx"
)

// Pool is the analysis surface the miner schedules waves over. *uci.Pool
// implements it.
type Pool interface {
	AnalyseAll(ctx context.Context, recs []*analysis.Record, accel *filter.Filter, maxNodes uint64, maxTime time.Duration)
	AnalyseEach(ctx context.Context, recs []*analysis.Record, accel *filter.Filter, maxNodes uint64, maxTime time.Duration, callback func(*analysis.Record))
	Size() int
}

// Config holds the mining limits and filters. The zero value of a limit means
// unlimited, except MaxFrontier and RandomSeeds which default sensibly.
type Config struct {
	// Accel is the pre-filter that lets drivers stop unpromising searches early.
	// Optional.
	Accel *filter.Filter
	// Verify classifies a finished analysis as puzzle or non-puzzle. Required.
	Verify *filter.Filter

	// MaxWaves bounds the number of waves. Zero means unlimited.
	MaxWaves int
	// MaxFrontier caps the number of records analyzed per wave.
	MaxFrontier int
	// MaxTotal bounds the number of records processed in the run. Zero means
	// unlimited.
	MaxTotal int

	// NodesCap and TimeCap bound each position's search. At least one must be set.
	NodesCap uint64
	TimeCap  time.Duration

	// Infinite refills an exhausted frontier with RandomSeeds random positions
	// instead of exiting.
	Infinite    bool
	RandomSeeds int
	// Chess960 generates Fischer-Random seeds.
	Chess960 bool
	// SeedPlies is the random playout length for generated seeds.
	SeedPlies int

	// AnalyzedCapacity bounds the analyzed-signature LRU cache.
	AnalyzedCapacity int

	// Stream emits each record as soon as its analysis completes, in completion
	// order, instead of after the wave.
	Stream bool

	// Seed is the random source seed for generated positions.
	Seed int64
}

// Stats summarizes a mining run.
type Stats struct {
	Waves      int
	Processed  int
	Puzzles    int
	NonPuzzles int
	Skipped    int
	Duplicates int
}

func (s Stats) String() string {
	return fmt.Sprintf("waves=%v processed=%v puzzles=%v nonpuzzles=%v skipped=%v duplicates=%v",
		s.Waves, s.Processed, s.Puzzles, s.NonPuzzles, s.Skipped, s.Duplicates)
}

// queued is a frontier entry. Children arrive already registered in the seen set;
// seeds register during wave deduplication.
type queued struct {
	rec        *analysis.Record
	registered bool
}

// Miner runs the wave loop: deduplicate the frontier, analyze it through the
// engine pool, classify each record, emit it, and expand verified puzzles into
// the next frontier. The miner owns its caches; records are handed to pool
// workers by pointer and returned on completion.
type Miner struct {
	pool  Pool
	sink  Sink
	store *Store // optional
	cfg   Config

	seen     *SeenSet
	analyzed *AnalyzedCache
	rng      *rand.Rand

	stats Stats
}

// New returns a miner over the pool and sink.
func New(pool Pool, sink Sink, store *Store, cfg Config) (*Miner, error) {
	if cfg.Verify == nil {
		return nil, fmt.Errorf("no verify filter")
	}
	if cfg.NodesCap == 0 && cfg.TimeCap == 0 {
		return nil, fmt.Errorf("no node or time cap")
	}
	if cfg.MaxFrontier <= 0 {
		cfg.MaxFrontier = 1000
	}
	if cfg.RandomSeeds <= 0 {
		cfg.RandomSeeds = 10 * pool.Size()
	}
	if cfg.SeedPlies <= 0 {
		cfg.SeedPlies = 20
	}

	analyzed, err := NewAnalyzedCache(cfg.AnalyzedCapacity)
	if err != nil {
		return nil, err
	}

	return &Miner{
		pool:     pool,
		sink:     sink,
		store:    store,
		cfg:      cfg,
		seen:     NewSeenSet(),
		analyzed: analyzed,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Run mines from the given seed records until the frontier is exhausted or a
// limit is hit. Returns the run statistics.
func (m *Miner) Run(ctx context.Context, seeds []*analysis.Record) (Stats, error) {
	frontier := make([]queued, 0, len(seeds))
	for _, rec := range seeds {
		frontier = append(frontier, queued{rec: rec})
	}

	for !contextx.IsCancelled(ctx) {
		if len(frontier) == 0 {
			if !m.cfg.Infinite {
				break
			}
			frontier = m.refill()
		}
		if m.cfg.MaxWaves > 0 && m.stats.Waves >= m.cfg.MaxWaves {
			break
		}
		if m.cfg.MaxTotal > 0 && m.stats.Processed >= m.cfg.MaxTotal {
			break
		}
		m.stats.Waves++

		wave := m.dedup(frontier)
		if len(wave) > m.cfg.MaxFrontier {
			wave = wave[:m.cfg.MaxFrontier]
		}
		if len(wave) == 0 {
			frontier = nil
			continue
		}

		logw.Infof(ctx, "Wave %v: analyzing %v positions", m.stats.Waves, len(wave))
		m.analyse(ctx, wave)

		frontier = m.classify(ctx, wave)
		logw.Infof(ctx, "Wave %v done: %v", m.stats.Waves, m.stats)
	}
	return m.stats, nil
}

func (m *Miner) refill() []queued {
	ret := make([]queued, 0, m.cfg.RandomSeeds)
	for i := 0; i < m.cfg.RandomSeeds; i++ {
		pos := RandomPosition(m.rng, m.cfg.Chess960, m.cfg.SeedPlies)
		rec := analysis.NewRecord(pos)
		rec.Tags = append(rec.Tags, "random")
		ret = append(ret, queued{rec: rec})
	}
	return ret
}

// dedup drops already-analyzed and already-seen positions from the frontier and
// registers the survivors. Children were registered when enqueued, so only their
// analyzed status is rechecked.
func (m *Miner) dedup(frontier []queued) []*analysis.Record {
	var wave []*analysis.Record
	for _, q := range frontier {
		sig := q.rec.Position.Signature()

		if m.analyzed.Has(sig) || (m.store != nil && m.store.Has(sig)) {
			m.stats.Duplicates++
			continue
		}
		if !q.registered && !m.seen.Add(sig) {
			m.stats.Duplicates++
			continue
		}
		wave = append(wave, q.rec)
	}
	return wave
}

func (m *Miner) analyse(ctx context.Context, wave []*analysis.Record) {
	if !m.cfg.Stream {
		m.pool.AnalyseAll(ctx, wave, m.cfg.Accel, m.cfg.NodesCap, m.cfg.TimeCap)
		return
	}

	// Streaming mode: emit on the completion goroutine as each record finishes.
	// The sink serializes concurrent writes.
	m.pool.AnalyseEach(ctx, wave, m.cfg.Accel, m.cfg.NodesCap, m.cfg.TimeCap, func(rec *analysis.Record) {
		if rec.Err != nil {
			return
		}
		if err := m.emit(ctx, rec); err != nil {
			logw.Errorf(ctx, "Emit failed on %v: %v", rec.Position, err)
		}
	})
}

func (m *Miner) emit(ctx context.Context, rec *analysis.Record) error {
	kind := KindNonPuzzle
	if m.cfg.Verify.Eval(rec.Analysis) {
		kind = KindPuzzle
	}
	return m.sink.Emit(rec, kind)
}

// classify scores each analyzed record, emits it (batched mode), and expands
// verified puzzles through the best reply into the next frontier.
func (m *Miner) classify(ctx context.Context, wave []*analysis.Record) []queued {
	var next []queued

	for _, rec := range wave {
		if rec.Err != nil {
			m.stats.Skipped++
			continue
		}

		sig := rec.Position.Signature()
		m.analyzed.Add(sig)

		puzzle := m.cfg.Verify.Eval(rec.Analysis)
		kind := KindNonPuzzle
		if puzzle {
			kind = KindPuzzle
		}

		if m.store != nil {
			if err := m.store.Add(sig, fen.Encode(rec.Position), kind); err != nil {
				logw.Errorf(ctx, "Store write failed: %v", err)
			}
		}
		if !m.cfg.Stream {
			if err := m.sink.Emit(rec, kind); err != nil {
				logw.Errorf(ctx, "Emit failed on %v: %v", rec.Position, err)
			}
		}

		if puzzle {
			m.stats.Puzzles++
			next = append(next, m.expand(rec)...)
		} else {
			m.stats.NonPuzzles++
		}

		m.stats.Processed++
		if m.cfg.MaxTotal > 0 && m.stats.Processed >= m.cfg.MaxTotal {
			break
		}
	}
	return next
}

// expand returns records for the unseen children of the position reached by the
// best PV1 move: the puzzle's forced reply subtree grows one ply per wave.
func (m *Miner) expand(rec *analysis.Record) []queued {
	best := rec.Analysis.BestMove(1)
	if best == board.NoMove {
		return nil
	}

	intermediate := rec.Position.Copy().Play(best)

	var next []queued
	for _, child := range intermediate.SubPositions() {
		sig := child.Signature()
		if m.analyzed.Has(sig) {
			continue
		}
		if !m.seen.Add(sig) {
			continue
		}
		next = append(next, queued{rec: analysis.NewChildRecord(child, intermediate), registered: true})
	}
	return next
}
