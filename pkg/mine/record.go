// Package mine implements the wave-based puzzle mining pipeline: seed sources,
// deduplication caches, JSON-Lines sinks and the wave scheduler itself.
package mine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/herohde/puzzlemine/pkg/analysis"
	"github.com/herohde/puzzlemine/pkg/board/fen"
	"github.com/seekerror/logw"
)

// Classification kinds emitted on mined records.
const (
	KindPuzzle    = "puzzle"
	KindNonPuzzle = "nonpuzzle"
)

// wireRecord is the JSON-Lines shape of a record. When a kind is present, it is
// the first key of the emitted object.
type wireRecord struct {
	Kind        string   `json:"kind,omitempty"`
	Position    string   `json:"position"`
	Parent      string   `json:"parent,omitempty"`
	Engine      string   `json:"engine,omitempty"`
	Tags        []string `json:"tags"`
	Description string   `json:"description,omitempty"`
	Analysis    []string `json:"analysis"`
}

// EncodeRecord serializes a record as one JSON line. kind may be empty.
func EncodeRecord(r *analysis.Record, kind string) ([]byte, error) {
	w := wireRecord{
		Kind:        kind,
		Position:    fen.Encode(r.Position),
		Engine:      r.Engine,
		Tags:        r.Tags,
		Description: r.Description,
		Analysis:    r.Analysis.Raw(),
	}
	if r.Parent != nil {
		w.Parent = fen.Encode(r.Parent)
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	if w.Analysis == nil {
		w.Analysis = []string{}
	}
	return json.Marshal(w)
}

// DecodeRecord parses a JSON record line. The raw analysis lines are re-parsed
// into the grid; unparseable lines are retained raw and otherwise ignored.
func DecodeRecord(line []byte) (*analysis.Record, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}

	pos, err := fen.Decode(w.Position)
	if err != nil {
		return nil, fmt.Errorf("invalid record position: %w", err)
	}

	r := analysis.NewRecord(pos)
	r.Engine = w.Engine
	r.Tags = w.Tags
	r.Description = w.Description

	if w.Parent != "" {
		parent, err := fen.Decode(w.Parent)
		if err != nil {
			return nil, fmt.Errorf("invalid record parent: %w", err)
		}
		r.Parent = parent
	}

	for _, raw := range w.Analysis {
		r.Analysis.AddRaw(raw)
		if out, ok, err := analysis.ParseInfo(raw); err == nil && ok {
			r.Analysis.Add(out)
		}
	}
	return r, nil
}

// ReadRecords reads JSON-Lines records until EOF. Invalid records are counted,
// logged and skipped.
func ReadRecords(ctx context.Context, r io.Reader) ([]*analysis.Record, int) {
	var recs []*analysis.Record
	invalid := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := DecodeRecord(line)
		if err != nil {
			invalid++
			logw.Warningf(ctx, "Skipping invalid record: %v", err)
			continue
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		logw.Errorf(ctx, "Record read failed: %v", err)
	}
	return recs, invalid
}
