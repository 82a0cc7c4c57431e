package mine

import (
	"math/rand"

	"github.com/herohde/puzzlemine/pkg/board"
	"github.com/herohde/puzzlemine/pkg/board/fen"
)

// RandomPosition returns a random playable position: a playout of up to the given
// number of uniformly random legal moves from the standard or a random
// Fischer-Random start. The returned position always has at least one legal move.
func RandomPosition(rng *rand.Rand, chess960 bool, plies int) *board.Position {
	pos := startPosition(rng, chess960)

	for i := 0; i < plies; i++ {
		list := board.NewMoveList(pos.LegalMoves()...)
		if list.Len() == 0 {
			break
		}
		next := pos.Copy().Play(list.Pick(rng))
		if !next.HasLegalMoves() {
			break
		}
		pos = next
	}
	return pos
}

func startPosition(rng *rand.Rand, chess960 bool) *board.Position {
	if !chess960 {
		return fen.MustDecode(fen.Initial)
	}

	backRank := chess960BackRank(rng)

	var pieces []board.Placement
	castling := board.NoCastlingRights()
	for f := board.ZeroFile; f < board.NumFiles; f++ {
		white := board.NewSquare(f, board.Rank1)
		black := board.NewSquare(f, board.Rank8)
		pieces = append(pieces,
			board.Placement{Square: white, Color: board.White, Piece: backRank[f]},
			board.Placement{Square: black, Color: board.Black, Piece: backRank[f]},
			board.Placement{Square: board.NewSquare(f, board.Rank2), Color: board.White, Piece: board.Pawn},
			board.Placement{Square: board.NewSquare(f, board.Rank7), Color: board.Black, Piece: board.Pawn},
		)

		if backRank[f] == board.Rook {
			side := board.QueenSide
			if kingFile(backRank) < f {
				side = board.KingSide
			}
			castling[board.White][side] = white
			castling[board.Black][side] = black
		}
	}

	pos, err := board.NewPosition(pieces, board.White, castling, board.NoSquare, 0, 1, true)
	if err != nil {
		panic(err) // the generated arrangement is always legal
	}
	return pos
}

// chess960BackRank returns a random Fischer-Random back rank: bishops on opposite
// square colors and the king between the rooks.
func chess960BackRank(rng *rand.Rand) [board.NumFiles]board.Piece {
	var rank [board.NumFiles]board.Piece

	// Bishops on opposite colors.
	rank[2*rng.Intn(4)] = board.Bishop
	rank[2*rng.Intn(4)+1] = board.Bishop

	// Queen and knights on random free files.
	place := func(p board.Piece, free int) {
		n := rng.Intn(free)
		for f := range rank {
			if rank[f] != board.NoPiece {
				continue
			}
			if n == 0 {
				rank[f] = p
				return
			}
			n--
		}
	}
	place(board.Queen, 6)
	place(board.Knight, 5)
	place(board.Knight, 4)

	// Rook, king, rook on the remaining three files, left to right.
	order := []board.Piece{board.Rook, board.King, board.Rook}
	for f := range rank {
		if rank[f] == board.NoPiece {
			rank[f] = order[0]
			order = order[1:]
		}
	}
	return rank
}

func kingFile(rank [board.NumFiles]board.Piece) board.File {
	for f := board.ZeroFile; f < board.NumFiles; f++ {
		if rank[f] == board.King {
			return f
		}
	}
	return board.FileE
}
