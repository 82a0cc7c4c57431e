package board

// IsAttacked returns true iff the square is attacked by the given color.
func (p *Position) IsAttacked(sq Square, by Color) bool {
	for _, t := range knightJumps[sq] {
		if cl := p.board[t]; cl == newCell(by, Knight) {
			return true
		}
	}
	for _, t := range kingSteps[sq] {
		if cl := p.board[t]; cl == newCell(by, King) {
			return true
		}
	}

	// A pawn of color 'by' attacks sq from the squares a 'by'-colored capture would
	// reach when walked backwards, i.e. the opposite color's capture table from sq.
	for _, t := range pawnCaptures[by.Opponent()][sq] {
		if cl := p.board[t]; cl == newCell(by, Pawn) {
			return true
		}
	}

	for _, ray := range diagonalRays[sq] {
		for _, t := range ray {
			cl := p.board[t]
			if cl.isEmpty() {
				continue
			}
			if cl.color() == by && (cl.piece() == Bishop || cl.piece() == Queen) {
				return true
			}
			break
		}
	}
	for _, ray := range orthogonalRays[sq] {
		for _, t := range ray {
			cl := p.board[t]
			if cl.isEmpty() {
				continue
			}
			if cl.color() == by && (cl.piece() == Rook || cl.piece() == Queen) {
				return true
			}
			break
		}
	}
	return false
}

// IsChecked returns true iff the color's king is attacked.
func (p *Position) IsChecked(c Color) bool {
	return p.IsAttacked(p.kings[c], c.Opponent())
}

// tryMove speculatively applies a candidate move, reports whether the mover's own
// king is left safe, and restores the board byte-exactly before returning. capture
// is the square of an en passant victim, or NoSquare.
func (p *Position) tryMove(from, to, capture Square) bool {
	mover := p.board[from]
	saved := p.board[to]
	var savedCapture cell
	if capture != NoSquare {
		savedCapture = p.board[capture]
		p.board[capture] = 0
	}
	p.board[to] = mover
	p.board[from] = 0

	c := mover.color()
	savedKing := p.kings[c]
	if mover.piece() == King {
		p.kings[c] = to
	}

	safe := !p.IsChecked(c)

	p.kings[c] = savedKing
	p.board[from] = mover
	p.board[to] = saved
	if capture != NoSquare {
		p.board[capture] = savedCapture
	}
	return safe
}

// enPassantMoves returns the legal en passant captures for the side to move:
// zero, one or two.
func (p *Position) enPassantMoves() []Move {
	if p.ep == NoSquare {
		return nil
	}

	captured := NewSquare(p.ep.File(), p.ep.Rank()-1)
	if p.turn == Black {
		captured = NewSquare(p.ep.File(), p.ep.Rank()+1)
	}

	var moves []Move
	for _, from := range pawnCaptures[p.turn.Opponent()][p.ep] {
		if p.board[from] != newCell(p.turn, Pawn) {
			continue
		}
		if p.tryMove(from, p.ep, captured) {
			moves = append(moves, NewMove(from, p.ep))
		}
	}
	return moves
}

// castleTargets returns the king and rook destination squares for the castle.
func castleTargets(c Color, s Side) (Square, Square) {
	home := Rank1
	if c == Black {
		home = Rank8
	}
	if s == KingSide {
		return NewSquare(FileG, home), NewSquare(FileF, home)
	}
	return NewSquare(FileC, home), NewSquare(FileD, home)
}

// castleMove returns the castling move for the side, if legal. Castling is encoded
// as the king moving onto its own rook for both conventions.
func (p *Position) castleMove(c Color, s Side) (Move, bool) {
	rook, ok := p.castling.Rook(c, s)
	if !ok {
		return NoMove, false
	}
	if p.IsChecked(c) {
		return NoMove, false
	}

	king := p.kings[c]
	kingTo, rookTo := castleTargets(c, s)

	// The king's path must be empty except for the castling rook, with no square
	// attacked by the opponent. The rook's path must be empty except for the king.
	if !p.walkPath(king, kingTo, rook, king, true, c.Opponent()) {
		return NoMove, false
	}
	if !p.walkPath(rook, rookTo, rook, king, false, 0) {
		return NoMove, false
	}

	// The rook may have shielded the king along the back rank; verify the final
	// placement directly.
	next := p.Copy()
	next.makeCastle(c, s)
	if next.IsChecked(c) {
		return NoMove, false
	}

	return NewMove(king, rook), true
}

// walkPath checks the squares from one square to another (exclusive of the source,
// inclusive of the target) for emptiness modulo the two castling pieces, and
// optionally for opponent attacks.
func (p *Position) walkPath(from, to, rook, king Square, checkAttacks bool, by Color) bool {
	step := 1
	if to < from {
		step = -1
	}
	for sq := from; sq != to; {
		sq = Square(int(sq) + step)
		if !p.board[sq].isEmpty() && sq != rook && sq != king {
			return false
		}
		if checkAttacks && p.IsAttacked(sq, by) {
			return false
		}
	}
	return true
}

// castlingMoves returns the legal castling moves for the side to move: kingside
// first, then queenside.
func (p *Position) castlingMoves() []Move {
	var moves []Move
	for s := ZeroSide; s < NumSides; s++ {
		if m, ok := p.castleMove(p.turn, s); ok {
			moves = append(moves, m)
		}
	}
	return moves
}

// appendMove appends the candidate if the mover's king stays safe, fanning out
// promotions for pawns reaching the last rank.
func (p *Position) appendMove(moves []Move, from, to Square) []Move {
	if !p.tryMove(from, to, NoSquare) {
		return moves
	}

	if p.board[from].piece() == Pawn && (to.Rank() == Rank1 || to.Rank() == Rank8) {
		for _, promo := range []Promotion{PromoteQueen, PromoteRook, PromoteBishop, PromoteKnight} {
			moves = append(moves, NewPromotionMove(from, to, promo))
		}
		return moves
	}
	return append(moves, NewMove(from, to))
}

// slideMoves generates moves along the rays: each ray stops on the first occupied
// square, which is included only when it holds an opposing piece.
func (p *Position) slideMoves(moves []Move, from Square, rays [][]Square) []Move {
	for _, ray := range rays {
		for _, to := range ray {
			cl := p.board[to]
			if cl.isEmpty() {
				moves = p.appendMove(moves, from, to)
				continue
			}
			if cl.color() != p.turn {
				moves = p.appendMove(moves, from, to)
			}
			break
		}
	}
	return moves
}

func (p *Position) stepMoves(moves []Move, from Square, targets []Square) []Move {
	for _, to := range targets {
		cl := p.board[to]
		if cl.isEmpty() || cl.color() != p.turn {
			moves = p.appendMove(moves, from, to)
		}
	}
	return moves
}

func (p *Position) pawnMoves(moves []Move, from Square) []Move {
	// Pushes are ordered one-square first, so the two-square push is only reached
	// when the intermediate square is empty.
	for _, to := range pawnPushes[p.turn][from] {
		if !p.board[to].isEmpty() {
			break
		}
		moves = p.appendMove(moves, from, to)
	}
	for _, to := range pawnCaptures[p.turn][from] {
		cl := p.board[to]
		if !cl.isEmpty() && cl.color() != p.turn {
			moves = p.appendMove(moves, from, to)
		}
	}
	return moves
}

// LegalMoves returns the legal moves for the side to move in deterministic order:
// en passant captures, castlings, then piece moves in square order.
func (p *Position) LegalMoves() []Move {
	moves := p.enPassantMoves()
	moves = append(moves, p.castlingMoves()...)

	for sq := ZeroSquare; sq < NumSquares; sq++ {
		cl := p.board[sq]
		if cl.isEmpty() || cl.color() != p.turn {
			continue
		}

		switch cl.piece() {
		case Pawn:
			moves = p.pawnMoves(moves, sq)
		case Knight:
			moves = p.stepMoves(moves, sq, knightJumps[sq])
		case Bishop:
			moves = p.slideMoves(moves, sq, diagonalRays[sq])
		case Rook:
			moves = p.slideMoves(moves, sq, orthogonalRays[sq])
		case Queen:
			moves = p.slideMoves(moves, sq, diagonalRays[sq])
			moves = p.slideMoves(moves, sq, orthogonalRays[sq])
		case King:
			moves = p.stepMoves(moves, sq, kingSteps[sq])
		}
	}
	return moves
}

// HasLegalMoves returns true iff the side to move has at least one legal move.
func (p *Position) HasLegalMoves() bool {
	return len(p.LegalMoves()) > 0
}

// Perft returns the number of leaf nodes exactly depth plies from the position.
func (p *Position) Perft(depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	moves := p.LegalMoves()
	if depth == 1 {
		return uint64(len(moves))
	}

	var nodes uint64
	for _, m := range moves {
		nodes += p.Copy().Play(m).Perft(depth - 1)
	}
	return nodes
}

// SubPositions returns the positions reached by each legal move, in move order.
func (p *Position) SubPositions() []*Position {
	moves := p.LegalMoves()
	ret := make([]*Position, 0, len(moves))
	for _, m := range moves {
		ret = append(ret, p.Copy().Play(m))
	}
	return ret
}
