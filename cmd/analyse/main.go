// analyse runs an external engine over a single position and prints the analysis
// grid.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/herohde/puzzlemine/pkg/board/fen"
	"github.com/herohde/puzzlemine/pkg/uci"
	"github.com/seekerror/logw"
)

var (
	engine   = flag.String("engine", "stockfish", "Engine executable path")
	protocol = flag.String("protocol", "", "Engine protocol document (default to standard UCI)")
	position = flag.String("fen", "", "Position to analyse (default to standard)")
	nodes    = flag.Uint64("nodes", 0, "Node cap (zero for none)")
	movetime = flag.Duration("movetime", 5*time.Second, "Time cap")
	multipv  = flag.Int("multipv", 1, "Number of principal variations")
)

func init() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `usage: analyse [options]

ANALYSE runs an external chess engine over a single position.
Options:
`)
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	ctx := context.Background()

	if *position == "" {
		*position = fen.Initial
	}
	pos, err := fen.Decode(*position)
	if err != nil {
		logw.Exitf(ctx, "Invalid fen '%v': %v", *position, err)
	}

	proto := uci.DefaultProtocol(*engine)
	if *protocol != "" {
		proto, err = uci.LoadProtocol(*protocol)
		if err != nil {
			logw.Exitf(ctx, "Invalid protocol: %v", err)
		}
	}

	e, err := uci.Launch(ctx, proto)
	if err != nil {
		logw.Exitf(ctx, "Failed to launch engine: %v", err)
	}
	defer e.Close(ctx)

	if *multipv > 1 {
		if err := e.SetMultiPV(ctx, *multipv); err != nil {
			logw.Exitf(ctx, "Failed to configure engine: %v", err)
		}
	}
	if pos.IsChess960() {
		if err := e.SetChess960(ctx, true); err != nil {
			logw.Exitf(ctx, "Failed to configure engine: %v", err)
		}
	}

	a, err := e.Analyse(ctx, pos, *nodes, *movetime, nil)
	if err != nil {
		logw.Exitf(ctx, "Analysis failed: %v", err)
	}

	fmt.Println(a)
	for pv := 1; pv <= a.Pivots(); pv++ {
		if o, ok := a.BestOutput(pv); ok {
			fmt.Printf("best pv%v: %v (%v)\n", pv, o.BestMove(), o.Score)
		}
	}
}
