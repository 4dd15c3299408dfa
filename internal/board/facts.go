package board

import (
	"fmt"

	"github.com/notnil/chess"

	pkgerrors "github.com/chesschat/coach-backend/internal/pkg/errors"
)

// PieceName mirrors notnil piece types without leaking them to callers.
type PieceName string

const (
	PiecePawn   PieceName = "pawn"
	PieceKnight PieceName = "knight"
	PieceBishop PieceName = "bishop"
	PieceRook   PieceName = "rook"
	PieceQueen  PieceName = "queen"
	PieceKing   PieceName = "king"
)

// MoveFacts describes a single legal move on a given position, used by the
// concept extractor to compare the played move against the engine's choice.
type MoveFacts struct {
	Piece     PieceName
	IsCapture bool
	IsCheck   bool
	ToCenter  bool // destination inside the extended center (c3-f6)
}

// FactsFor decodes a UCI move against a FEN and reports its features.
func FactsFor(fen, uciMove string) (*MoveFacts, error) {
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidPosition, err)
	}
	pos := chess.NewGame(fenOpt).Position()
	decoded, err := (chess.UCINotation{}).Decode(pos, uciMove)
	if err != nil {
		return nil, fmt.Errorf("%w: move %q: %v", pkgerrors.ErrInvalidPosition, uciMove, err)
	}
	// Decode is syntactic only. Resolve against the legal move list so
	// illegal moves fail here and the Check/Capture tags are trustworthy.
	var m *chess.Move
	for _, vm := range pos.ValidMoves() {
		if vm.S1() == decoded.S1() && vm.S2() == decoded.S2() && vm.Promo() == decoded.Promo() {
			m = vm
			break
		}
	}
	if m == nil {
		return nil, fmt.Errorf("%w: illegal move %q", pkgerrors.ErrInvalidPosition, uciMove)
	}
	piece := pos.Board().Piece(m.S1())
	return &MoveFacts{
		Piece:     pieceName(piece.Type()),
		IsCapture: m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
		IsCheck:   m.HasTag(chess.Check),
		ToCenter:  inExtendedCenter(m.S2()),
	}, nil
}

// BackRankVulnerable reports whether a side's king sits on its own back
// rank behind an unbroken pawn shield, the precondition for back-rank
// mating patterns.
func BackRankVulnerable(fen string, side Side) bool {
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return false
	}
	b := chess.NewGame(fenOpt).Position().Board()

	color := chess.White
	backRank := chess.Rank1
	shieldRank := chess.Rank2
	if side == Black {
		color = chess.Black
		backRank = chess.Rank8
		shieldRank = chess.Rank7
	}

	var kingSq chess.Square
	found := false
	for sq, p := range b.SquareMap() {
		if p.Type() == chess.King && p.Color() == color {
			kingSq = sq
			found = true
			break
		}
	}
	if !found || kingSq.Rank() != backRank {
		return false
	}

	// Every escape square in front of the king must be blocked by an own pawn.
	file := int(kingSq.File())
	blocked := 0
	candidates := 0
	for df := -1; df <= 1; df++ {
		f := file + df
		if f < 0 || f > 7 {
			continue
		}
		candidates++
		sq := chess.Square(int(shieldRank)*8 + f)
		p := b.Piece(sq)
		if p.Type() == chess.Pawn && p.Color() == color {
			blocked++
		}
	}
	return candidates > 0 && blocked == candidates
}

func pieceName(t chess.PieceType) PieceName {
	switch t {
	case chess.Pawn:
		return PiecePawn
	case chess.Knight:
		return PieceKnight
	case chess.Bishop:
		return PieceBishop
	case chess.Rook:
		return PieceRook
	case chess.Queen:
		return PieceQueen
	case chess.King:
		return PieceKing
	}
	return ""
}

func inExtendedCenter(sq chess.Square) bool {
	f := sq.File()
	r := sq.Rank()
	return f >= chess.FileC && f <= chess.FileF && r >= chess.Rank3 && r <= chess.Rank6
}
