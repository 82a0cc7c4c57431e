// minepuzzles mines chess puzzles: it expands waves of candidate positions through
// a pool of external engines, classifies each analysis with a verify filter, and
// streams or appends JSON-Lines records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/herohde/puzzlemine/pkg/mine"
	"github.com/herohde/puzzlemine/pkg/uci"
	"github.com/seekerror/build"
	"github.com/seekerror/logw"
)

var version = build.NewVersion(0, 3, 0)

var (
	engine   = flag.String("engine", "stockfish", "Engine executable path")
	protocol = flag.String("protocol", "", "Engine protocol document (default to standard UCI)")
	poolSize = flag.Int("pool", 4, "Number of engine processes")

	accel  = flag.String("accel", "", "Accelerate pre-filter expression (optional)")
	verify = flag.String("verify", "cp(1) >= 200 AND cp(2) < 50", "Puzzle verify filter expression")

	seedsFile = flag.String("seeds", "", "JSON-Lines seed records (default to random seeds)")
	puzzles   = flag.String("puzzles", "puzzles.jsonl", "Puzzle output file (batched mode)")
	others    = flag.String("nonpuzzles", "nonpuzzles.jsonl", "Non-puzzle output file (batched mode)")
	stream    = flag.Bool("stream", false, "Stream records to stdout in completion order")
	storeDir  = flag.String("store", "", "Persistent signature store directory (optional)")

	maxWaves    = flag.Int("max_waves", 0, "Wave limit (zero for unlimited)")
	maxFrontier = flag.Int("max_frontier", 1000, "Positions analyzed per wave")
	maxTotal    = flag.Int("max_total", 0, "Processed record limit (zero for unlimited)")
	nodesCap    = flag.Uint64("nodes", 500000, "Node cap per position")
	timeCap     = flag.Duration("movetime", 2*time.Second, "Time cap per position")

	infinite    = flag.Bool("infinite", false, "Refill an exhausted frontier with random seeds")
	randomSeeds = flag.Int("random_seeds", 0, "Random seeds per refill (default to ten per engine)")
	chess960    = flag.Bool("chess960", false, "Generate Fischer-Random seeds")
	seedPlies   = flag.Int("seed_plies", 20, "Random playout length for generated seeds")
	cacheSize   = flag.Int("analyzed_cache", mine.DefaultAnalyzedCapacity, "Analyzed-signature cache bound")
	seed        = flag.Int64("seed", 0, "Random source seed")

	multiPV = flag.Int("multipv", 2, "Number of principal variations")
	threads = flag.Int("threads", 1, "Engine search threads")
	hash    = flag.Int("hash", 0, "Engine hash table size in MB (zero to leave default)")
	wdl     = flag.Bool("wdl", false, "Request win/draw/loss output")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: minepuzzles [options]

MINEPUZZLES mines chess puzzles with a pool of external engines.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	logw.Infof(ctx, "minepuzzles %v", version)

	verifyFilter, err := filter.Parse(*verify)
	if err != nil {
		logw.Exitf(ctx, "Invalid verify filter: %v", err)
	}
	var accelFilter *filter.Filter
	if *accel != "" {
		accelFilter, err = filter.Parse(*accel)
		if err != nil {
			logw.Exitf(ctx, "Invalid accel filter: %v", err)
		}
	}

	proto := uci.DefaultProtocol(*engine)
	if *protocol != "" {
		proto, err = uci.LoadProtocol(*protocol)
		if err != nil {
			logw.Exitf(ctx, "Invalid protocol: %v", err)
		}
	}

	pool, err := uci.LaunchPool(ctx, proto, *poolSize, func(e *uci.Engine) error {
		if err := e.SetMultiPV(ctx, *multiPV); err != nil {
			return err
		}
		if err := e.SetThreads(ctx, *threads); err != nil {
			return err
		}
		if *hash > 0 {
			if err := e.SetHash(ctx, *hash); err != nil {
				return err
			}
		}
		if *wdl {
			if err := e.SetWDL(ctx, true); err != nil {
				return err
			}
		}
		if *chess960 {
			if err := e.SetChess960(ctx, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logw.Exitf(ctx, "Failed to launch engine pool: %v", err)
	}
	defer pool.Close(ctx)

	var sink mine.Sink
	if *stream {
		sink = mine.NewStreamSink(os.Stdout)
	} else {
		sink, err = mine.NewFileSink(*puzzles, *others)
		if err != nil {
			logw.Exitf(ctx, "Failed to open output files: %v", err)
		}
	}
	defer sink.Close()

	var store *mine.Store
	if *storeDir != "" {
		store, err = mine.OpenStore(*storeDir)
		if err != nil {
			logw.Exitf(ctx, "Failed to open signature store: %v", err)
		}
		defer store.Close()
	}

	var seeds []*analysis.Record
	if *seedsFile != "" {
		f, err := os.Open(*seedsFile)
		if err != nil {
			logw.Exitf(ctx, "Failed to open seeds: %v", err)
		}
		var invalid int
		seeds, invalid = mine.ReadRecords(ctx, f)
		_ = f.Close()
		logw.Infof(ctx, "Read %v seeds (%v invalid)", len(seeds), invalid)
	}

	if len(seeds) == 0 && !*infinite {
		logw.Warningf(ctx, "No seed records and -infinite not set: nothing to mine")
	}

	miner, err := mine.New(pool, sink, store, mine.Config{
		Accel:            accelFilter,
		Verify:           verifyFilter,
		MaxWaves:         *maxWaves,
		MaxFrontier:      *maxFrontier,
		MaxTotal:         *maxTotal,
		NodesCap:         *nodesCap,
		TimeCap:          *timeCap,
		Infinite:         *infinite,
		RandomSeeds:      *randomSeeds,
		Chess960:         *chess960,
		SeedPlies:        *seedPlies,
		AnalyzedCapacity: *cacheSize,
		Stream:           *stream,
		Seed:             *seed,
	})
	if err != nil {
		logw.Exitf(ctx, "Invalid mining configuration: %v", err)
	}

	stats, err := miner.Run(ctx, seeds)
	if err != nil {
		logw.Exitf(ctx, "Mining failed: %v", err)
	}
	logw.Infof(ctx, "Mining done: %v", stats)
}
