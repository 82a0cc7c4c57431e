package uci_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/herohde/puzzlemine/pkg/board/fen"
	"github.com/herohde/puzzlemine/pkg/eval"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/herohde/puzzlemine/pkg/uci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveEngine runs a scripted engine on in-process pipes. The handler receives
// each command line and replies through the callback. The response pipe closes
// after "quit" or when the handler returns done.
func serveEngine(handle func(cmd string, reply func(string)) bool) (io.WriteCloser, io.Reader) {
	cmdR, cmdW := io.Pipe()
	respR, respW := io.Pipe()

	go func() {
		defer respW.Close()

		scanner := bufio.NewScanner(cmdR)
		for scanner.Scan() {
			cmd := scanner.Text()
			if cmd == "quit" {
				return
			}
			if done := handle(cmd, func(line string) { _, _ = fmt.Fprintln(respW, line) }); done {
				return
			}
		}
	}()
	return cmdW, respR
}

// handshakeOK answers the activation handshake and ignores everything else.
func handshakeOK(cmd string, reply func(string)) bool {
	switch cmd {
	case "uci":
		reply("id name faketool 1.0")
		reply("id author nobody")
		reply("uciok")
	case "isready":
		reply("readyok")
	}
	return false
}

func TestConnectHandshake(t *testing.T) {
	ctx := context.Background()

	in, out := serveEngine(handshakeOK)
	e, err := uci.Connect(ctx, uci.DefaultProtocol("fake"), in, out)
	require.NoError(t, err)
	defer e.Close(ctx)

	assert.Equal(t, "faketool 1.0", e.Name())
}

func TestConnectHandshakeTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	in, out := serveEngine(func(cmd string, reply func(string)) bool {
		return false // never answer
	})

	_, err := uci.Connect(ctx, uci.DefaultProtocol("fake"), in, out)
	assert.Error(t, err)
}

func TestAnalyse(t *testing.T) {
	ctx := context.Background()

	in, out := serveEngine(func(cmd string, reply func(string)) bool {
		if strings.HasPrefix(cmd, "go ") {
			assert.Equal(t, "go nodes 100000 movetime 1000", cmd)
			reply("info depth 1 multipv 1 score cp 20 nodes 50 pv e2e4")
			reply("info depth 2 multipv 1 score cp 35 nodes 300 pv e2e4 e7e5")
			reply("this line is garbage and is skipped")
			reply("info depth 2 multipv 2 score cp -10 nodes 250 pv d2d4")
			reply("bestmove e2e4 ponder e7e5")
			return false
		}
		return handshakeOK(cmd, reply)
	})

	e, err := uci.Connect(ctx, uci.DefaultProtocol("fake"), in, out)
	require.NoError(t, err)
	defer e.Close(ctx)

	a, err := e.Analyse(ctx, fen.MustDecode(fen.Initial), 100000, time.Second, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, a.Size())
	assert.Equal(t, 2, a.Pivots())

	best, ok := a.BestOutput(1)
	require.True(t, ok)
	assert.Equal(t, 2, best.Depth)
	assert.Equal(t, eval.CP(35), best.Score)
	assert.Equal(t, "e2e4", a.BestMove(1).String())
	assert.Equal(t, "d2d4", a.BestMove(2).String())
	assert.Len(t, a.Raw(), 3)
}

func TestAnalyseAccelStop(t *testing.T) {
	ctx := context.Background()

	in, out := serveEngine(func(cmd string, reply func(string)) bool {
		switch {
		case strings.HasPrefix(cmd, "go "):
			// A hopeless score: the accel filter cannot pass anymore.
			reply("info depth 1 multipv 1 score cp -300 nodes 50 pv e2e4")
		case cmd == "stop":
			reply("bestmove e2e4")
		default:
			return handshakeOK(cmd, reply)
		}
		return false
	})

	e, err := uci.Connect(ctx, uci.DefaultProtocol("fake"), in, out)
	require.NoError(t, err)
	defer e.Close(ctx)

	accel := filter.MustParse("cp(1) >= 100")
	a, err := e.Analyse(ctx, fen.MustDecode(fen.Initial), 100000, time.Second, accel)
	require.NoError(t, err)

	assert.Equal(t, 1, a.Size(), "search was cut short after the hopeless line")
}

func TestAnalyseEngineExit(t *testing.T) {
	ctx := context.Background()

	in, out := serveEngine(func(cmd string, reply func(string)) bool {
		if strings.HasPrefix(cmd, "go ") {
			reply("info depth 1 multipv 1 score cp 10 nodes 50 pv e2e4")
			return true // die mid-search
		}
		return handshakeOK(cmd, reply)
	})

	e, err := uci.Connect(ctx, uci.DefaultProtocol("fake"), in, out)
	require.NoError(t, err)

	a, err := e.Analyse(ctx, fen.MustDecode(fen.Initial), 100000, time.Second, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, uci.ErrEngineExited))
	assert.Equal(t, 1, a.Size(), "partial analysis is returned")
}

func TestSetOptions(t *testing.T) {
	ctx := context.Background()

	var seen []string
	in, out := serveEngine(func(cmd string, reply func(string)) bool {
		if strings.HasPrefix(cmd, "setoption ") {
			seen = append(seen, cmd)
		}
		return handshakeOK(cmd, reply)
	})

	e, err := uci.Connect(ctx, uci.DefaultProtocol("fake"), in, out)
	require.NoError(t, err)

	require.NoError(t, e.SetMultiPV(ctx, 3))
	require.NoError(t, e.SetThreads(ctx, 2))
	require.NoError(t, e.SetHash(ctx, 256))
	require.NoError(t, e.SetWDL(ctx, true))
	require.NoError(t, e.SetChess960(ctx, true))

	// Synchronize so the fake has consumed every option command.
	require.NoError(t, e.Sync(ctx, nil))
	e.Close(ctx)

	assert.Equal(t, []string{
		"setoption name MultiPV value 3",
		"setoption name Threads value 2",
		"setoption name Hash value 256",
		"setoption name UCI_ShowWDL value true",
		"setoption name UCI_Chess960 value true",
	}, seen)
}

func TestSetOptionUnsupported(t *testing.T) {
	ctx := context.Background()

	proto := uci.DefaultProtocol("fake")
	proto.MultiPV = ""
	proto.WDL = ""

	in, out := serveEngine(handshakeOK)
	e, err := uci.Connect(ctx, proto, in, out)
	require.NoError(t, err)
	defer e.Close(ctx)

	assert.Error(t, e.SetMultiPV(ctx, 2))
	assert.Error(t, e.SetWDL(ctx, true))
}
