package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/board/fen"
	"github.com/herohde/puzzlemine/pkg/filter"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
	"go.uber.org/atomic"
)

// HandshakeTimeout bounds the engine activation handshake. An engine that does not
// complete the handshake in time is unusable and its driver is closed.
const HandshakeTimeout = 10 * time.Second

// ErrEngineExited indicates that the engine process terminated mid-command. The
// analysis accumulated so far is still returned.
var ErrEngineExited = errors.New("engine process exited")

// Engine drives one external engine subprocess. An Engine is owned by a single
// goroutine at a time: commands and responses are strictly sequential.
type Engine struct {
	proto *Protocol
	name  string

	in   io.WriteCloser
	out  <-chan string
	kill func()
	wait func() error

	newGame bool

	quit   iox.AsyncCloser
	closed atomic.Bool
}

// Launch spawns the engine process and performs the activation handshake.
func Launch(ctx context.Context, proto *Protocol) (*Engine, error) {
	cmd := exec.Command(proto.Path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine '%v': %w", proto.Path, err)
	}

	e := newEngine(ctx, proto, stdin, stdout)
	e.kill = func() { _ = cmd.Process.Kill() }
	e.wait = cmd.Wait

	if err := e.handshake(ctx); err != nil {
		e.Close(ctx)
		return nil, err
	}
	logw.Infof(ctx, "Launched engine %v: %v", e.Name(), proto.Path)
	return e, nil
}

// Connect wraps an engine reachable over the given pipes and performs the
// activation handshake. Used where the process lifecycle is managed elsewhere.
func Connect(ctx context.Context, proto *Protocol, in io.WriteCloser, out io.Reader) (*Engine, error) {
	e := newEngine(ctx, proto, in, out)
	if err := e.handshake(ctx); err != nil {
		e.Close(ctx)
		return nil, err
	}
	return e, nil
}

func newEngine(ctx context.Context, proto *Protocol, in io.WriteCloser, out io.Reader) *Engine {
	return &Engine{
		proto:   proto,
		name:    proto.Name,
		in:      in,
		out:     readLines(ctx, out),
		newGame: true,
		quit:    iox.NewAsyncCloser(),
	}
}

// readLines reads engine output lines into a chan. Async. The chan is closed when
// the engine closes its output, i.e. exits.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ret := make(chan string, 100)
	go func() {
		defer close(ret)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			logw.Debugf(ctx, "<< %v", scanner.Text())
			ret <- scanner.Text()
		}
	}()
	return ret
}

func (e *Engine) send(ctx context.Context, line string) error {
	logw.Debugf(ctx, ">> %v", line)
	if _, err := io.WriteString(e.in, line+"\n"); err != nil {
		return fmt.Errorf("failed to send '%v': %w", line, err)
	}
	return nil
}

// handshake performs protocol activation: the show-UCI exchange, the configured
// setup lines and the readiness probe, under HandshakeTimeout. Failure is fatal
// for the driver.
func (e *Engine) handshake(ctx context.Context) error {
	deadline := time.After(HandshakeTimeout)

	if e.proto.ShowUCI != "" {
		if err := e.send(ctx, e.proto.ShowUCI); err != nil {
			return err
		}
		for {
			line, err := e.recv(ctx, deadline)
			if err != nil {
				return fmt.Errorf("engine handshake failed: %w", err)
			}
			if name, found := strings.CutPrefix(line, "id name "); found {
				e.name = name
			}
			if line == e.proto.UCIOK {
				break
			}
		}
	}

	for _, line := range e.proto.Setup {
		if err := e.send(ctx, line); err != nil {
			return err
		}
	}

	return e.Sync(ctx, deadline)
}

// Sync sends the readiness probe and awaits its response.
func (e *Engine) Sync(ctx context.Context, deadline <-chan time.Time) error {
	if deadline == nil {
		deadline = time.After(HandshakeTimeout)
	}
	if err := e.send(ctx, e.proto.IsReady); err != nil {
		return err
	}
	for {
		line, err := e.recv(ctx, deadline)
		if err != nil {
			return fmt.Errorf("engine readiness probe failed: %w", err)
		}
		if line == e.proto.ReadyOK {
			return nil
		}
	}
}

// recv returns the next line. An error means the engine exited, the deadline
// passed or the context was cancelled.
func (e *Engine) recv(ctx context.Context, deadline <-chan time.Time) (string, error) {
	select {
	case line, ok := <-e.out:
		if !ok {
			return "", ErrEngineExited
		}
		return line, nil
	case <-deadline:
		return "", fmt.Errorf("timeout after %v", HandshakeTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Name returns the engine's self-reported name, or the configured one.
func (e *Engine) Name() string {
	if e.name == "" {
		return e.proto.Path
	}
	return e.name
}

// ID returns the engine identifier recorded on analyzed records.
func (e *Engine) ID() string {
	return e.Name()
}

// SetMultiPV configures the number of principal variations reported.
func (e *Engine) SetMultiPV(ctx context.Context, n int) error {
	return e.setOption(ctx, "multipv", e.proto.MultiPV, n)
}

// SetThreads configures the engine search thread count.
func (e *Engine) SetThreads(ctx context.Context, n int) error {
	return e.setOption(ctx, "threads", e.proto.Threads, n)
}

// SetHash configures the engine transposition table size in MB.
func (e *Engine) SetHash(ctx context.Context, mb int) error {
	return e.setOption(ctx, "hash", e.proto.Hash, mb)
}

// SetWDL toggles win/draw/loss output.
func (e *Engine) SetWDL(ctx context.Context, enabled bool) error {
	if e.proto.WDL == "" {
		return fmt.Errorf("protocol does not support the 'wdl' option")
	}
	return e.send(ctx, fmt.Sprintf(e.proto.WDL, enabled))
}

// SetChess960 toggles Fischer-Random mode.
func (e *Engine) SetChess960(ctx context.Context, enabled bool) error {
	if e.proto.Chess960 == "" {
		return fmt.Errorf("protocol does not support the 'chess960' option")
	}
	return e.send(ctx, fmt.Sprintf(e.proto.Chess960, enabled))
}

func (e *Engine) setOption(ctx context.Context, key, tmpl string, v int) error {
	if tmpl == "" {
		return fmt.Errorf("protocol does not support the '%v' option", key)
	}
	return e.send(ctx, fmt.Sprintf(tmpl, v))
}

// Analyse searches the position under both a node cap and a wall-time cap and
// returns the aggregated analysis once the engine reports its best move.
//
// If an accel filter is given, it is consulted after every info line: as soon as
// the accumulated grid can no longer pass, the search is stopped early. The engine
// still reports a best move, so the partial grid is aggregated normally.
//
// Per-line parse failures are logged and skipped. If the engine process exits
// mid-search, the analysis accumulated so far is returned with ErrEngineExited.
func (e *Engine) Analyse(ctx context.Context, pos *board.Position, maxNodes uint64, maxTime time.Duration, accel *filter.Filter) (*analysis.Analysis, error) {
	a := analysis.New()

	goCmd, err := e.proto.goCommand(maxNodes, maxTime.Milliseconds())
	if err != nil {
		return a, err
	}

	if e.newGame && e.proto.NewGame != "" {
		if err := e.send(ctx, e.proto.NewGame); err != nil {
			return a, err
		}
	}
	e.newGame = false

	if err := e.send(ctx, fmt.Sprintf(e.proto.Position, fen.Encode(pos))); err != nil {
		return a, err
	}
	if err := e.send(ctx, goCmd); err != nil {
		return a, err
	}

	stopped := false
	for {
		select {
		case line, ok := <-e.out:
			if !ok {
				return a, fmt.Errorf("analysis of %v incomplete: %w", fen.Encode(pos), ErrEngineExited)
			}

			if strings.HasPrefix(line, "bestmove") {
				return a, nil
			}

			out, ok, err := analysis.ParseInfo(line)
			if err != nil {
				logw.Errorf(ctx, "Skipping engine line '%v': %v", line, err)
				continue
			}
			if !ok {
				continue
			}
			a.Add(out)
			a.AddRaw(line)

			if accel != nil && !stopped && !accel.Eval(a) {
				// The grid can no longer pass: cut the search short.
				if err := e.send(ctx, e.proto.Stop); err != nil {
					return a, err
				}
				stopped = true
			}

		case <-ctx.Done():
			_ = e.send(ctx, e.proto.Stop)
			return a, ctx.Err()
		}
	}
}

// Close sends quit, closes the pipes and reaps the process. Idempotent.
func (e *Engine) Close(ctx context.Context) {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	defer e.quit.Close()

	if e.proto.Quit != "" {
		_ = e.send(ctx, e.proto.Quit)
	}
	_ = e.in.Close()

	if e.wait != nil {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = e.wait()
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			if e.kill != nil {
				e.kill()
			}
			<-done
		}
	}
}

// Closed returns a channel closed when the driver has shut down.
func (e *Engine) Closed() <-chan struct{} {
	return e.quit.Closed()
}
