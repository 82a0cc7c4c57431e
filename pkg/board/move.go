package board

import "fmt"

// Promotion represents the promotion piece encoded in a move. 3 bits.
type Promotion uint8

const (
	NoPromotion Promotion = iota
	PromoteKnight
	PromoteBishop
	PromoteRook
	PromoteQueen
)

func (p Promotion) IsValid() bool {
	return p <= PromoteQueen
}

// Piece returns the board piece for the promotion.
func (p Promotion) Piece() Piece {
	switch p {
	case PromoteKnight:
		return Knight
	case PromoteBishop:
		return Bishop
	case PromoteRook:
		return Rook
	case PromoteQueen:
		return Queen
	default:
		return NoPiece
	}
}

func (p Promotion) String() string {
	return p.Piece().String()
}

// Move represents a move as a compact 16-bit value: bits 0-5 hold the from square,
// bits 6-11 the to square and bits 12-14 the promotion. Bit 15 is reserved zero.
// Castling moves are encoded as the king capturing its own rook, for both standard
// and Fischer-Random games. Equality is bitwise.
type Move uint16

// NoMove is the all-ones absence marker, "0000" on the wire.
const NoMove Move = 0xffff

// NewMove returns the move between the two squares.
func NewMove(from, to Square) Move {
	return Move(from)&0x3f | (Move(to)&0x3f)<<6
}

// NewPromotionMove returns the pawn move between the two squares promoting to
// the given piece.
func NewPromotionMove(from, to Square, p Promotion) Move {
	return NewMove(from, to) | (Move(p)&0x7)<<12
}

// ParseMove parses a move in pure algebraic coordinate notation, such as "a2a4" or
// "a7a8q". "0000" parses as NoMove.
func ParseMove(str string) (Move, error) {
	if str == "0000" {
		return NoMove, nil
	}

	runes := []rune(str)
	if len(runes) < 4 || len(runes) > 5 {
		return NoMove, fmt.Errorf("invalid move: '%v'", str)
	}

	from, err := ParseSquare(runes[0], runes[1])
	if err != nil {
		return NoMove, fmt.Errorf("invalid from: '%v': %v", str, err)
	}
	to, err := ParseSquare(runes[2], runes[3])
	if err != nil {
		return NoMove, fmt.Errorf("invalid to: '%v': %v", str, err)
	}

	if len(runes) == 5 {
		var promo Promotion
		switch runes[4] {
		case 'n':
			promo = PromoteKnight
		case 'b':
			promo = PromoteBishop
		case 'r':
			promo = PromoteRook
		case 'q':
			promo = PromoteQueen
		default:
			return NoMove, fmt.Errorf("invalid promotion: '%v'", str)
		}
		return NewPromotionMove(from, to, promo), nil
	}

	return NewMove(from, to), nil
}

func (m Move) From() Square {
	return Square(m & 0x3f)
}

func (m Move) To() Square {
	return Square(m >> 6 & 0x3f)
}

func (m Move) Promotion() Promotion {
	return Promotion(m >> 12 & 0x7)
}

func (m Move) IsPromotion() bool {
	return m.Promotion() != NoPromotion
}

// IsUnderPromotion returns true iff the move promotes to anything but a queen.
func (m Move) IsUnderPromotion() bool {
	p := m.Promotion()
	return p != NoPromotion && p != PromoteQueen
}

// Reverse returns the move with from and to squares swapped, preserving the promotion.
func (m Move) Reverse() Move {
	if m == NoMove {
		return NoMove
	}
	return NewPromotionMove(m.To(), m.From(), m.Promotion())
}

// IsValid returns true iff both squares and the promotion are in range.
func (m Move) IsValid() bool {
	return m != NoMove && m&0x8000 == 0 && m.Promotion().IsValid()
}

// Compare orders moves by (from, to, promotion) lexicographically.
func (m Move) Compare(o Move) int {
	switch {
	case m.From() != o.From():
		return int(m.From()) - int(o.From())
	case m.To() != o.To():
		return int(m.To()) - int(o.To())
	default:
		return int(m.Promotion()) - int(o.Promotion())
	}
}

func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	if m.IsPromotion() {
		return fmt.Sprintf("%v%v%v", m.From(), m.To(), m.Promotion())
	}
	return fmt.Sprintf("%v%v", m.From(), m.To())
}

// PrintMoves prints a space-separated move list.
func PrintMoves(moves []Move) string {
	ret := ""
	for i, m := range moves {
		if i > 0 {
			ret += " "
		}
		ret += m.String()
	}
	return ret
}
