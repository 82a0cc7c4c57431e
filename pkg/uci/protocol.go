// Package uci drives external chess engines speaking line-oriented protocols in
// the UCI family. The wire commands are not hardcoded: a Protocol document maps
// each command to a template, so engines with dialect differences can be driven
// from configuration.
package uci

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Protocol describes the wire commands of an engine. Template fields contain
// exactly one placeholder of the indicated kind: %d for integers, %s for strings
// and %t for booleans. Required fields are validated by Validate.
type Protocol struct {
	// Path is the engine executable path.
	Path string `yaml:"path"`
	// Name optionally identifies the engine when it does not identify itself.
	Name string `yaml:"name,omitempty"`
	// Description optionally documents the settings in use.
	Description string `yaml:"description,omitempty"`

	// ShowUCI is the protocol activation command, if any. UCIOK is its terminal
	// response token; required when ShowUCI is set.
	ShowUCI string `yaml:"uci,omitempty"`
	UCIOK   string `yaml:"uciok,omitempty"`

	// IsReady is the readiness probe and ReadyOK its response token.
	IsReady string `yaml:"isready"`
	ReadyOK string `yaml:"readyok"`

	// NewGame optionally announces a new game.
	NewGame string `yaml:"newgame,omitempty"`

	// Position sets the position to search. One %s placeholder for the FEN.
	Position string `yaml:"position"`

	// GoDepth, GoNodes and GoTime start a search bounded by depth, node count or
	// wall time in milliseconds. One %d placeholder each.
	GoDepth string `yaml:"go_depth"`
	GoNodes string `yaml:"go_nodes"`
	GoTime  string `yaml:"go_time"`

	// Stop interrupts a running search; the engine still reports its best move.
	Stop string `yaml:"stop"`
	// Quit optionally terminates the engine.
	Quit string `yaml:"quit,omitempty"`

	// Chess960 and WDL toggle Fischer-Random mode and win/draw/loss output. One %t
	// placeholder each.
	Chess960 string `yaml:"chess960,omitempty"`
	WDL      string `yaml:"wdl,omitempty"`

	// Hash, MultiPV and Threads configure the transposition table size in MB, the
	// number of principal variations and the search thread count. One %d each.
	Hash    string `yaml:"hash,omitempty"`
	MultiPV string `yaml:"multipv,omitempty"`
	Threads string `yaml:"threads,omitempty"`

	// Setup lines are sent verbatim after the activation handshake.
	Setup []string `yaml:"setup,omitempty"`
}

// DefaultProtocol returns the standard UCI wiring for the given executable.
func DefaultProtocol(path string) *Protocol {
	return &Protocol{
		Path:     path,
		ShowUCI:  "uci",
		UCIOK:    "uciok",
		IsReady:  "isready",
		ReadyOK:  "readyok",
		NewGame:  "ucinewgame",
		Position: "position fen %s",
		GoDepth:  "go depth %d",
		GoNodes:  "go nodes %d",
		GoTime:   "go movetime %d",
		Stop:     "stop",
		Quit:     "quit",
		Chess960: "setoption name UCI_Chess960 value %t",
		WDL:      "setoption name UCI_ShowWDL value %t",
		Hash:     "setoption name Hash value %d",
		MultiPV:  "setoption name MultiPV value %d",
		Threads:  "setoption name Threads value %d",
	}
}

// ParseProtocol parses and validates a protocol document.
func ParseProtocol(data []byte) (*Protocol, error) {
	var p Protocol
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid protocol document: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProtocol reads and validates a protocol document from a file.
func LoadProtocol(filename string) (*Protocol, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol document: %w", err)
	}
	return ParseProtocol(data)
}

// Validate checks that every required field is present and that every template
// contains exactly one placeholder of the expected kind.
func (p *Protocol) Validate() error {
	required := []struct {
		key, value, placeholder string
	}{
		{"path", p.Path, ""},
		{"isready", p.IsReady, ""},
		{"readyok", p.ReadyOK, ""},
		{"position", p.Position, "%s"},
		{"go_depth", p.GoDepth, "%d"},
		{"go_nodes", p.GoNodes, "%d"},
		{"go_time", p.GoTime, "%d"},
		{"stop", p.Stop, ""},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("protocol is missing required key '%v'", r.key)
		}
		if err := checkPlaceholders(r.key, r.value, r.placeholder); err != nil {
			return err
		}
	}

	if p.ShowUCI != "" && p.UCIOK == "" {
		return fmt.Errorf("protocol key 'uci' requires the 'uciok' response token")
	}

	optional := []struct {
		key, value, placeholder string
	}{
		{"newgame", p.NewGame, ""},
		{"chess960", p.Chess960, "%t"},
		{"wdl", p.WDL, "%t"},
		{"hash", p.Hash, "%d"},
		{"multipv", p.MultiPV, "%d"},
		{"threads", p.Threads, "%d"},
	}
	for _, o := range optional {
		if o.value == "" {
			continue
		}
		if err := checkPlaceholders(o.key, o.value, o.placeholder); err != nil {
			return err
		}
	}
	return nil
}

// checkPlaceholders requires the template to contain exactly one occurrence of the
// expected placeholder and no other placeholders. An empty expectation means the
// template is a literal command.
func checkPlaceholders(key, tmpl, expected string) error {
	counts := map[string]int{}

	runes := []rune(tmpl)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '%' {
			continue
		}
		if i+1 >= len(runes) {
			return fmt.Errorf("protocol key '%v' has a dangling %%", key)
		}
		i++
		switch runes[i] {
		case '%':
			// Literal percent.
		case 'd', 's', 't':
			counts["%"+string(runes[i])]++
		default:
			return fmt.Errorf("protocol key '%v' has unsupported placeholder %%%v", key, string(runes[i]))
		}
	}

	if expected == "" {
		if len(counts) != 0 {
			return fmt.Errorf("protocol key '%v' must not contain placeholders", key)
		}
		return nil
	}
	if counts[expected] != 1 || len(counts) != 1 {
		return fmt.Errorf("protocol key '%v' must contain exactly one %v placeholder", key, expected)
	}
	return nil
}

// goCommand assembles the search command bounded by both a node cap and a time cap.
// The caps are merged into a single command line: the engine honors whichever
// limit hits first. A zero cap is omitted; at least one must be set.
func (p *Protocol) goCommand(nodes uint64, ms int64) (string, error) {
	var parts []string
	if nodes > 0 {
		parts = append(parts, fmt.Sprintf(p.GoNodes, nodes))
	}
	if ms > 0 {
		cmd := fmt.Sprintf(p.GoTime, ms)
		if len(parts) > 0 {
			// Merge "go nodes N" and "go movetime M" into one go command.
			cmd = strings.TrimSpace(strings.TrimPrefix(cmd, firstWord(p.GoTime)))
		}
		parts = append(parts, cmd)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no node or time cap for search")
	}
	return strings.Join(parts, " "), nil
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
