// Package san converts moves to and from Standard Algebraic Notation, and cleans
// PGN-style movetext.
package san

import (
	"fmt"
	"strings"

	"github.com/herohde/puzzlemine/pkg/board"
)

// Encode returns the SAN string for the move in the position. The move must be
// legal in the position.
func Encode(pos *board.Position, m board.Move) string {
	var sb strings.Builder

	if side, ok := pos.CastleSide(m); ok {
		sb.WriteString(side.String())
		sb.WriteString(checkSuffix(pos, m))
		return sb.String()
	}

	from, to := m.From(), m.To()
	_, piece, _ := pos.Square(from)

	_, _, occupied := pos.Square(to)
	ep, hasEP := pos.EnPassant()
	isCapture := occupied || (piece == board.Pawn && hasEP && to == ep)

	if piece == board.Pawn {
		if isCapture {
			sb.WriteString(from.File().String())
		}
	} else {
		sb.WriteString(strings.ToUpper(piece.String()))
		sb.WriteString(disambiguate(pos, m, piece))
	}

	if isCapture {
		sb.WriteString("x")
	}
	sb.WriteString(to.String())

	if promo := m.Promotion(); promo != board.NoPromotion {
		sb.WriteString("=")
		sb.WriteString(strings.ToUpper(promo.Piece().String()))
	}

	sb.WriteString(checkSuffix(pos, m))
	return sb.String()
}

// disambiguate returns the minimal source prefix distinguishing the move from other
// legal moves of the same piece type to the same destination: file if sufficient,
// else rank, else both.
func disambiguate(pos *board.Position, m board.Move, piece board.Piece) string {
	from, to := m.From(), m.To()

	ambiguous, sameFile, sameRank := false, false, false
	for _, o := range pos.LegalMoves() {
		if o.From() == from || o.To() != to {
			continue
		}
		if _, ok := pos.CastleSide(o); ok {
			continue
		}
		if _, p, _ := pos.Square(o.From()); p != piece {
			continue
		}

		ambiguous = true
		if o.From().File() == from.File() {
			sameFile = true
		}
		if o.From().Rank() == from.Rank() {
			sameRank = true
		}
	}

	switch {
	case !ambiguous:
		return ""
	case !sameFile:
		return from.File().String()
	case !sameRank:
		return from.Rank().String()
	default:
		return from.File().String() + from.Rank().String()
	}
}

func checkSuffix(pos *board.Position, m board.Move) string {
	next := pos.Copy().Play(m)
	if !next.IsChecked(next.Turn()) {
		return ""
	}
	if !next.HasLegalMoves() {
		return "#"
	}
	return "+"
}

// Decode returns the legal move whose canonical SAN matches the given text, after
// stripping "!" and "?" annotation glyphs.
func Decode(pos *board.Position, text string) (board.Move, error) {
	want := strings.TrimRight(strings.TrimSpace(text), "!?")
	if want == "" {
		return board.NoMove, fmt.Errorf("empty SAN")
	}

	for _, m := range pos.LegalMoves() {
		have := Encode(pos, m)
		if have == want || strings.TrimRight(have, "+#") == strings.TrimRight(want, "+#") {
			return m, nil
		}
	}
	return board.NoMove, fmt.Errorf("no legal move matches SAN '%v' in %v", text, pos)
}

// CleanMovetext strips block comments "{...}", line comments ";...", numeric
// annotation glyphs "$N", move-number indicators and result tokens from PGN-style
// movetext. If keepVariations is set, "(" and ")" are preserved as tokens with
// single-space normalization; otherwise parenthesized variations are removed
// entirely.
func CleanMovetext(text string, keepVariations bool) string {
	var sb strings.Builder

	depth := 0
	inBrace, inLine := false, false
	for _, r := range text {
		switch {
		case inBrace:
			if r == '}' {
				inBrace = false
			}
		case inLine:
			if r == '\n' {
				inLine = false
				sb.WriteRune(' ')
			}
		case r == '{':
			inBrace = true
		case r == ';':
			inLine = true
		case r == '(':
			if keepVariations {
				sb.WriteString(" ( ")
			}
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
			if keepVariations {
				sb.WriteString(" ) ")
			}
		case depth > 0 && !keepVariations:
			// Inside a dropped variation.
		default:
			sb.WriteRune(r)
		}
	}

	var out []string
	for _, tok := range strings.Fields(sb.String()) {
		if isMoveNumber(tok) || isResult(tok) || strings.HasPrefix(tok, "$") {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

func isMoveNumber(tok string) bool {
	trimmed := strings.TrimRight(tok, ".")
	if trimmed == tok || trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if r < '0' || '9' < r {
			return false
		}
	}
	return true
}

func isResult(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	default:
		return false
	}
}
