package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/eval"
	"github.com/seekerror/stdlib/pkg/lang"
)

// ParseInfo parses a UCI "info" line into an Output. The parser tolerates field
// reordering and missing optional tokens; unrecognized tokens are skipped. Returns
// an error for lines that are not info lines or carry malformed values, and false
// for info lines without analysis content (such as "info string ...").
func ParseInfo(line string) (*Output, bool, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || tokens[0] != "info" {
		return nil, false, fmt.Errorf("not an info line: '%v'", line)
	}

	out := &Output{PV: 1}
	seen := false

	i := 1
	for i < len(tokens) {
		key := tokens[i]
		i++

		switch key {
		case "depth":
			n, err := intField(tokens, i, key, line)
			if err != nil {
				return nil, false, err
			}
			out.Depth = n
			i++
			seen = true

		case "seldepth":
			n, err := intField(tokens, i, key, line)
			if err != nil {
				return nil, false, err
			}
			out.SelDepth = n
			i++
			seen = true

		case "multipv":
			n, err := intField(tokens, i, key, line)
			if err != nil {
				return nil, false, err
			}
			out.PV = n
			i++
			seen = true

		case "nodes":
			n, err := intField(tokens, i, key, line)
			if err != nil {
				return nil, false, err
			}
			out.Nodes = uint64(n)
			i++
			seen = true

		case "nps":
			n, err := intField(tokens, i, key, line)
			if err != nil {
				return nil, false, err
			}
			out.NPS = uint64(n)
			i++
			seen = true

		case "time":
			n, err := intField(tokens, i, key, line)
			if err != nil {
				return nil, false, err
			}
			out.Time = time.Duration(n) * time.Millisecond
			i++
			seen = true

		case "score":
			if i >= len(tokens) {
				return nil, false, fmt.Errorf("truncated score in info line: '%v'", line)
			}
			kind := tokens[i]
			i++
			n, err := intField(tokens, i, kind, line)
			if err != nil {
				return nil, false, err
			}
			i++
			switch kind {
			case "cp":
				out.Score = eval.CP(int32(n))
			case "mate":
				out.Score = eval.Mate(int32(n))
			default:
				return nil, false, fmt.Errorf("invalid score kind '%v' in info line: '%v'", kind, line)
			}
			seen = true

		case "upperbound":
			out.Bound = lang.Some(Upper)

		case "lowerbound":
			out.Bound = lang.Some(Lower)

		case "wdl":
			if i+2 >= len(tokens) {
				return nil, false, fmt.Errorf("truncated wdl in info line: '%v'", line)
			}
			var wdl [3]int
			for j := 0; j < 3; j++ {
				n, err := intField(tokens, i, "wdl", line)
				if err != nil {
					return nil, false, err
				}
				wdl[j] = n
				i++
			}
			out.WDL = lang.Some(WDL{Win: wdl[0], Draw: wdl[1], Loss: wdl[2]})
			seen = true

		case "pv":
			for ; i < len(tokens); i++ {
				m, err := board.ParseMove(tokens[i])
				if err != nil {
					return nil, false, fmt.Errorf("invalid pv move '%v' in info line: '%v'", tokens[i], line)
				}
				out.Moves = append(out.Moves, m)
			}
			seen = true

		case "string":
			// Free-form remainder. No analysis content.
			i = len(tokens)

		default:
			// Unknown token: skip. Numeric arguments of unknown keys are skipped the
			// same way on the next iteration.
		}
	}

	if !seen {
		return nil, false, nil
	}
	return out, true, nil
}

func intField(tokens []string, i int, key, line string) (int, error) {
	if i >= len(tokens) {
		return 0, fmt.Errorf("missing %v value in info line: '%v'", key, line)
	}
	n, err := strconv.Atoi(tokens[i])
	if err != nil {
		return 0, fmt.Errorf("invalid %v value '%v' in info line: '%v'", key, tokens[i], line)
	}
	return n, nil
}
