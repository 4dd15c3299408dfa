package board

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	pkgerrors "github.com/chesschat/coach-backend/internal/pkg/errors"
)

// Side is the mover of a ply.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// Phase buckets used by the concept extractor.
type Phase string

const (
	PhaseOpening    Phase = "opening"
	PhaseMiddlegame Phase = "middlegame"
	PhaseEndgame    Phase = "endgame"
)

// Centipawn piece values for material accounting.
var pieceValues = map[chess.PieceType]int{
	chess.Pawn:   100,
	chess.Knight: 320,
	chess.Bishop: 330,
	chess.Rook:   500,
	chess.Queen:  900,
}

// Ply is one replayed half-move with the features the sampler and the
// concept extractor key on.
type Ply struct {
	Index     int
	Side      Side
	MoveUCI   string
	MoveSAN   string
	FENBefore string
	FENAfter  string

	IsCapture     bool
	IsCheck       bool
	IsPromotion   bool
	IsMate        bool
	MaterialSwing int // absolute centipawn change in material balance
}

// Game is a fully replayed game. Immutable once built.
type Game struct {
	StartFEN string
	Plies    []Ply
}

// Replay validates and replays a move list from startFEN (standard start
// position when empty). Moves are accepted in UCI or SAN. Any malformed FEN
// or illegal move fails the whole replay with ErrInvalidPosition.
func Replay(startFEN string, moves []string) (*Game, error) {
	opts := []func(*chess.Game){}
	if strings.TrimSpace(startFEN) != "" {
		fenOpt, err := chess.FEN(startFEN)
		if err != nil {
			return nil, fmt.Errorf("%w: bad start FEN %q: %v", pkgerrors.ErrInvalidPosition, startFEN, err)
		}
		opts = append(opts, fenOpt)
	}
	game := chess.NewGame(opts...)

	plies := make([]Ply, 0, len(moves))
	for i, raw := range moves {
		mv := strings.TrimSpace(raw)
		if mv == "" {
			return nil, fmt.Errorf("%w: empty move at ply %d", pkgerrors.ErrInvalidPosition, i)
		}
		pos := game.Position()
		before := pos.String()
		side := White
		if pos.Turn() == chess.Black {
			side = Black
		}

		m, err := decodeMove(pos, mv)
		if err != nil {
			return nil, fmt.Errorf("%w: illegal move %q at ply %d: %v", pkgerrors.ErrInvalidPosition, mv, i, err)
		}
		san := chess.AlgebraicNotation{}.Encode(pos, m)
		uci := chess.UCINotation{}.Encode(pos, m)
		if err := game.Move(m); err != nil {
			return nil, fmt.Errorf("%w: move %q rejected at ply %d: %v", pkgerrors.ErrInvalidPosition, mv, i, err)
		}
		after := game.Position().String()

		plies = append(plies, Ply{
			Index:         i,
			Side:          side,
			MoveUCI:       uci,
			MoveSAN:       san,
			FENBefore:     before,
			FENAfter:      after,
			IsCapture:     m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
			IsCheck:       m.HasTag(chess.Check),
			IsPromotion:   m.Promo() != chess.NoPieceType,
			IsMate:        game.Position().Status() == chess.Checkmate,
			MaterialSwing: materialSwing(before, after),
		})
	}

	start := startFEN
	if strings.TrimSpace(start) == "" {
		start = chess.NewGame().Position().String()
	}
	return &Game{StartFEN: start, Plies: plies}, nil
}

func decodeMove(pos *chess.Position, mv string) (*chess.Move, error) {
	if m, err := (chess.UCINotation{}).Decode(pos, mv); err == nil {
		return m, nil
	}
	return chess.AlgebraicNotation{}.Decode(pos, mv)
}

// NormalizedKey strips the halfmove clock and fullmove number from a FEN so
// transposed positions hit the same cache entry regardless of move counters.
func NormalizedKey(fen string) string {
	parts := strings.Fields(fen)
	if len(parts) >= 4 {
		return strings.Join(parts[:4], " ")
	}
	return fen
}

// ParseFEN validates a FEN string.
func ParseFEN(fen string) error {
	if _, err := chess.FEN(fen); err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrInvalidPosition, err)
	}
	return nil
}

// NonPawnMaterial counts non-pawn, non-king pieces on the board for both
// sides. Drives phase detection.
func NonPawnMaterial(fen string) int {
	n := 0
	for _, p := range squareMap(fen) {
		switch p.Type() {
		case chess.Knight, chess.Bishop, chess.Rook, chess.Queen:
			n++
		}
	}
	return n
}

// MaterialBalance returns material in centipawns from white's perspective.
func MaterialBalance(fen string) int {
	bal := 0
	for _, p := range squareMap(fen) {
		v := pieceValues[p.Type()]
		if p.Color() == chess.White {
			bal += v
		} else {
			bal -= v
		}
	}
	return bal
}

// PhaseOf derives the game phase from the ply index and remaining material:
// six or fewer non-pawn pieces is an endgame, an early ply with most material
// still on the board is the opening, everything else is the middlegame.
func PhaseOf(plyIndex int, fen string) Phase {
	material := NonPawnMaterial(fen)
	switch {
	case material <= 6:
		return PhaseEndgame
	case plyIndex <= 15 && material >= 10:
		return PhaseOpening
	default:
		return PhaseMiddlegame
	}
}

func materialSwing(fenBefore, fenAfter string) int {
	d := MaterialBalance(fenAfter) - MaterialBalance(fenBefore)
	if d < 0 {
		d = -d
	}
	return d
}

func squareMap(fen string) map[chess.Square]chess.Piece {
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return nil
	}
	return chess.NewGame(fenOpt).Position().Board().SquareMap()
}
