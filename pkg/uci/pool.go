package uci

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/seekerror/logw"
)

// Analyser is the per-engine analysis surface the pool schedules over. *Engine
// implements it.
type Analyser interface {
	// ID identifies the engine on analyzed records.
	ID() string
	// Analyse searches the position under the node and time caps.
	Analyse(ctx context.Context, pos *board.Position, maxNodes uint64, maxTime time.Duration, accel *filter.Filter) (*analysis.Analysis, error)
	// Close shuts the engine down.
	Close(ctx context.Context)
}

// Pool is a fixed-size set of engine drivers analyzing records concurrently. Each
// driver is owned by exactly one worker; records move into a worker, are analyzed,
// and move out. Not thread-safe beyond that contract: one batch at a time.
type Pool struct {
	engines []Analyser
}

// NewPool returns a pool over the given drivers.
func NewPool(engines []Analyser) *Pool {
	return &Pool{engines: engines}
}

// LaunchPool eagerly launches size engines with the protocol and applies the
// configure hook to each. Any launch or configuration failure closes the engines
// already running and fails the pool.
func LaunchPool(ctx context.Context, proto *Protocol, size int, configure func(*Engine) error) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid pool size: %v", size)
	}

	var engines []Analyser
	for i := 0; i < size; i++ {
		e, err := Launch(ctx, proto)
		if err == nil && configure != nil {
			if cerr := configure(e); cerr != nil {
				e.Close(ctx)
				err = cerr
			}
		}
		if err != nil {
			for _, running := range engines {
				running.Close(ctx)
			}
			return nil, fmt.Errorf("failed to launch engine %v/%v: %w", i+1, size, err)
		}
		engines = append(engines, e)
	}

	logw.Infof(ctx, "Launched engine pool: %v x %v", size, proto.Path)
	return NewPool(engines), nil
}

// Size returns the number of drivers.
func (p *Pool) Size() int {
	return len(p.engines)
}

// AnalyseAll analyzes every record and returns once all are updated in place. The
// slice order is unchanged.
func (p *Pool) AnalyseAll(ctx context.Context, recs []*analysis.Record, accel *filter.Filter, maxNodes uint64, maxTime time.Duration) {
	p.AnalyseEach(ctx, recs, accel, maxNodes, maxTime, nil)
}

// AnalyseEach analyzes every record, invoking the callback on the completing
// worker's goroutine as each record finishes, in completion order. The callback
// must be safe for concurrent invocation or serialize itself.
func (p *Pool) AnalyseEach(ctx context.Context, recs []*analysis.Record, accel *filter.Filter, maxNodes uint64, maxTime time.Duration, callback func(*analysis.Record)) {
	jobs := make(chan *analysis.Record, len(recs))
	for _, r := range recs {
		jobs <- r
	}
	close(jobs)

	var wg sync.WaitGroup
	for _, e := range p.engines {
		wg.Add(1)
		go func(e Analyser) {
			defer wg.Done()
			for r := range jobs {
				a, err := e.Analyse(ctx, r.Position, maxNodes, maxTime, accel)
				r.Analysis = a
				r.Engine = e.ID()
				r.Err = err
				if err != nil {
					logw.Errorf(ctx, "Analysis failed on %v: %v", r.Position, err)
				}
				if callback != nil {
					callback(r)
				}
			}
		}(e)
	}
	wg.Wait()
}

// Close shuts down every driver. Workers live only inside AnalyseEach, which
// joins them before it returns, so Close has none to join; it must not race an
// in-flight batch.
func (p *Pool) Close(ctx context.Context) {
	for _, e := range p.engines {
		e.Close(ctx)
	}
}
