// Package fen contains utilities for reading and writing positions in FEN notation,
// including the Shredder-FEN castling letters used by Fischer-Random games.
package fen

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/herohde/puzzlemine/pkg/board"
)

const (
	Initial = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

// Decode returns a new position from a FEN description. The halfmove clock and
// fullmove number fields are optional and default to 0 and 1. The position is
// validated: structurally broken or illegal descriptions are rejected.
//
// Example:
//
//	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
func Decode(fen string) (*board.Position, error) {
	parts := strings.Fields(strings.TrimSpace(fen))
	if len(parts) < 4 || len(parts) > 6 {
		return nil, fmt.Errorf("invalid number of sections in FEN: '%v'", fen)
	}

	// (1) Piece placement (from white's perspective). Each rank is described,
	// starting with rank 8 and ending with rank 1; within each rank, the contents
	// of each square are described from file a through file h.

	var pieces []board.Placement

	sq := board.A8
	for _, r := range []rune(parts[0]) {
		switch {
		case r == '/':
			// "/" separate ranks. Cosmetic.

		case unicode.IsDigit(r):
			// Blank squares are noted using digits 1 through 8.

			sq += board.Square(r - '0')

		case unicode.IsLetter(r):
			// White pieces are designated using upper-case letters ("PNBRQK") while
			// black take lowercase ("pnbrqk").

			color, piece, ok := parsePiece(r)
			if !ok {
				return nil, fmt.Errorf("invalid piece '%v' in FEN: '%v'", string(r), fen)
			}
			pieces = append(pieces, board.Placement{Square: sq, Color: color, Piece: piece})
			sq++

		default:
			return nil, fmt.Errorf("invalid character in FEN: '%v'", fen)
		}
	}
	if sq != board.NumSquares {
		return nil, fmt.Errorf("invalid number of squares in FEN: '%v'", fen)
	}

	// (2) Active color. "w" means white moves next, "b" means black.

	active, ok := parseColor(parts[1])
	if !ok {
		return nil, fmt.Errorf("invalid active color in FEN: '%v'", fen)
	}

	// (3) Castling availability. Either "-", a subsequence of "KQkq" for standard
	// chess, or Shredder file letters for Fischer-Random.

	castling, chess960, err := parseCastling(parts[2], pieces)
	if err != nil {
		return nil, fmt.Errorf("invalid castling in FEN: '%v': %v", fen, err)
	}

	// (4) En passant target square in algebraic notation, or "-".

	ep := board.NoSquare
	if parts[3] != "-" {
		t, err := board.ParseSquareStr(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid en passant in FEN: '%v'", fen)
		}
		ep = t
	}

	// (5) Halfmove clock: plies since the last pawn advance or capture.

	halfmove := 0
	if len(parts) > 4 {
		np, err := strconv.Atoi(parts[4])
		if err != nil || np < 0 {
			return nil, fmt.Errorf("invalid halfmove in FEN: '%v'", fen)
		}
		halfmove = np
	}

	// (6) Fullmove number: starts at 1 and is incremented after Black's move.

	fullmove := 1
	if len(parts) > 5 {
		fm, err := strconv.Atoi(parts[5])
		if err != nil || fm < 1 {
			return nil, fmt.Errorf("invalid full moves in FEN: '%v'", fen)
		}
		fullmove = fm
	}

	pos, err := board.NewPosition(pieces, active, castling, ep, halfmove, fullmove, chess960)
	if err != nil {
		return nil, fmt.Errorf("illegal position in FEN: '%v': %w", fen, err)
	}
	return pos, nil
}

// Encode encodes the position in FEN notation. Fischer-Random positions emit their
// castling rights as Shredder file letters.
func Encode(pos *board.Position) string {
	var sb strings.Builder
	for r := board.NumRanks; r > 0; r-- {
		blanks := 0
		for f := board.ZeroFile; f < board.NumFiles; f++ {
			color, piece, ok := pos.Square(board.NewSquare(f, r-1))
			if !ok {
				blanks++
				continue
			}

			if blanks > 0 {
				sb.WriteString(strconv.Itoa(blanks))
				blanks = 0
			}
			sb.WriteString(printPiece(color, piece))
		}

		if blanks > 0 {
			sb.WriteString(strconv.Itoa(blanks))
		}
		if r > 1 {
			sb.WriteString("/")
		}
	}

	ep := "-"
	if sq, ok := pos.EnPassant(); ok {
		ep = sq.String()
	}

	return fmt.Sprintf("%v %v %v %v %v %v", sb.String(), pos.Turn(), printCastling(pos), ep, pos.HalfMoves(), pos.FullMoves())
}

// MustDecode decodes the FEN or panics. For tests and fixed positions.
func MustDecode(fen string) *board.Position {
	pos, err := Decode(fen)
	if err != nil {
		panic(err)
	}
	return pos
}

func parseCastling(str string, pieces []board.Placement) (board.CastlingRights, bool, error) {
	ret := board.NoCastlingRights()
	if str == "-" {
		return ret, false, nil
	}

	if isSubsequence(str, "KQkq") {
		// Standard chess: the rights refer to the corner rooks.
		for _, r := range []rune(str) {
			switch r {
			case 'K':
				ret[board.White][board.KingSide] = board.H1
			case 'Q':
				ret[board.White][board.QueenSide] = board.A1
			case 'k':
				ret[board.Black][board.KingSide] = board.H8
			case 'q':
				ret[board.Black][board.QueenSide] = board.A8
			}
		}
		return ret, false, nil
	}

	// Fischer-Random: file letters, uppercase for white. The side of each right is
	// determined by the rook file relative to the king file.
	kings := [board.NumColors]board.Square{board.NoSquare, board.NoSquare}
	for _, p := range pieces {
		if p.Piece == board.King {
			kings[p.Color] = p.Square
		}
	}

	for _, r := range []rune(str) {
		var c board.Color
		var home board.Rank
		switch {
		case 'A' <= r && r <= 'H':
			c, home = board.White, board.Rank1
		case 'a' <= r && r <= 'h':
			c, home = board.Black, board.Rank8
		default:
			return ret, false, fmt.Errorf("invalid castling letter: %v", string(r))
		}

		file, _ := board.ParseFile(r)
		if kings[c] == board.NoSquare || kings[c].Rank() != home {
			return ret, false, fmt.Errorf("no %v king on the back rank", c)
		}

		side := board.KingSide
		if file < kings[c].File() {
			side = board.QueenSide
		}
		if ret[c][side] != board.NoSquare {
			return ret, false, fmt.Errorf("duplicate %v %v right", c, side)
		}
		ret[c][side] = board.NewSquare(file, home)
	}
	return ret, true, nil
}

func printCastling(pos *board.Position) string {
	rights := pos.Castling()
	if rights.IsEmpty() {
		return "-"
	}
	if pos.IsChess960() {
		return rights.String()
	}

	ret := ""
	if rights.IsAllowed(board.White, board.KingSide) {
		ret += "K"
	}
	if rights.IsAllowed(board.White, board.QueenSide) {
		ret += "Q"
	}
	if rights.IsAllowed(board.Black, board.KingSide) {
		ret += "k"
	}
	if rights.IsAllowed(board.Black, board.QueenSide) {
		ret += "q"
	}
	return ret
}

// isSubsequence returns true iff str is a non-empty subsequence of the canonical
// letter order.
func isSubsequence(str, canonical string) bool {
	if str == "" {
		return false
	}
	i := 0
	for _, r := range []rune(str) {
		j := strings.IndexRune(canonical[i:], r)
		if j < 0 {
			return false
		}
		i += j + 1
	}
	return true
}

func parseColor(str string) (board.Color, bool) {
	switch str {
	case "w":
		return board.White, true
	case "b":
		return board.Black, true
	default:
		return 0, false
	}
}

func parsePiece(r rune) (board.Color, board.Piece, bool) {
	piece, ok := board.ParsePiece(unicode.ToLower(r))
	if !ok {
		return 0, 0, false
	}
	if unicode.IsUpper(r) {
		return board.White, piece, true
	}
	return board.Black, piece, true
}

func printPiece(c board.Color, p board.Piece) string {
	if c == board.White {
		return strings.ToUpper(p.String())
	}
	return p.String()
}
