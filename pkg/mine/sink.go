package mine

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/herohde/puzzlemine/pkg/analysis"
)

// Sink consumes classified records. Implementations serialize concurrent Emit
// calls, so completion callbacks can write directly.
type Sink interface {
	Emit(rec *analysis.Record, kind string) error
	Close() error
}

// FileSink appends puzzles and non-puzzles to two JSON-Lines files. Both files are
// created up front, so downstream tooling sees them even when a run mines nothing.
type FileSink struct {
	puzzles, others *os.File
	mu              sync.Mutex
}

func NewFileSink(puzzlesPath, othersPath string) (*FileSink, error) {
	puzzles, err := os.OpenFile(puzzlesPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open puzzles file: %w", err)
	}
	others, err := os.OpenFile(othersPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		_ = puzzles.Close()
		return nil, fmt.Errorf("failed to open non-puzzles file: %w", err)
	}
	return &FileSink{puzzles: puzzles, others: others}, nil
}

// Emit appends the record to the file matching its kind. The record object itself
// carries no kind field in this mode: the file is the classification.
func (s *FileSink) Emit(rec *analysis.Record, kind string) error {
	line, err := EncodeRecord(rec, "")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.others
	if kind == KindPuzzle {
		f = s.puzzles
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.puzzles.Close()
	if cerr := s.others.Close(); err == nil {
		err = cerr
	}
	return err
}

// StreamSink prints one JSON object per record to the writer as soon as each
// record is emitted, with the kind as the first key of the object.
type StreamSink struct {
	w  io.Writer
	mu sync.Mutex
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Emit(rec *analysis.Record, kind string) error {
	line, err := EncodeRecord(rec, kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.w.Write(append(line, '\n'))
	return err
}

func (s *StreamSink) Close() error {
	return nil
}
