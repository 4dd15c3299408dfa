package services

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/chesschat/coach-backend/internal/board"
	"github.com/chesschat/coach-backend/internal/engine"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/taxonomy"
	"github.com/chesschat/coach-backend/internal/types"
)

// Severity thresholds in centipawns lost from the mover's perspective.
const (
	blunderCP    = 300
	mistakeCP    = 150
	inaccuracyCP = 75

	// Eval from the mover's perspective above which the mover is "winning"
	// and a mistake counts against conversion technique.
	winningCP = 300

	earlyQueenMaxPly = 10
)

type ExtractorService interface {
	Extract(userID uuid.UUID, gameID string, game *board.Game, sampled []int, evals map[string]*engine.Result) []*types.GameEvent
}

type extractorService struct {
	registry *taxonomy.Registry
	log      *logger.Logger
}

func NewExtractorService(registry *taxonomy.Registry, baseLog *logger.Logger) ExtractorService {
	return &extractorService{
		registry: registry,
		log:      baseLog.With("service", "ExtractorService"),
	}
}

// Extract turns the sampled, analyzed plies of a game into ordered game
// events. Evals are keyed by normalized FEN; a sampled ply missing either
// side of its evaluation is skipped, never failed. Events come back sorted
// by ply index regardless of the order the engine produced evaluations in.
func (s *extractorService) Extract(userID uuid.UUID, gameID string, game *board.Game, sampled []int, evals map[string]*engine.Result) []*types.GameEvent {
	events := make([]*types.GameEvent, 0, len(sampled))
	for _, idx := range sampled {
		if idx < 0 || idx >= len(game.Plies) {
			continue
		}
		ply := &game.Plies[idx]
		before, okB := evals[board.NormalizedKey(ply.FENBefore)]
		after, okA := evals[board.NormalizedKey(ply.FENAfter)]
		if !okB || !okA {
			continue
		}
		events = append(events, s.eventFor(userID, gameID, game, ply, before, after))
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Ply < events[j].Ply })
	return events
}

func (s *extractorService) eventFor(userID uuid.UUID, gameID string, game *board.Game, ply *board.Ply, before, after *engine.Result) *types.GameEvent {
	evalBefore := scoreCP(before)
	evalAfter := scoreCP(after)

	// Engine scores are white-perspective; delta is the mover's, negative
	// when the move made the mover's position worse.
	delta := evalAfter - evalBefore
	if ply.Side == board.Black {
		delta = -delta
	}
	severity := severityFor(delta)

	concepts := s.conceptsFor(game, ply, before, delta, severity)
	conceptsJSON, err := marshalStrings(concepts)
	if err != nil {
		s.log.Warn("Failed to encode event concepts", "game_id", gameID, "ply", ply.Index, "error", err)
	}

	return &types.GameEvent{
		ID:         uuid.New(),
		UserID:     userID,
		GameID:     gameID,
		Ply:        ply.Index,
		Side:       string(ply.Side),
		PlayedMove: ply.MoveUCI,
		BestMove:   before.BestMove,
		FENBefore:  ply.FENBefore,
		FENAfter:   ply.FENAfter,
		EvalBefore: evalBefore,
		EvalAfter:  evalAfter,
		Delta:      delta,
		Severity:   severity,
		Concepts:   conceptsJSON,
		Phase:      string(board.PhaseOf(ply.Index, ply.FENBefore)),
		CreatedAt:  time.Now().UTC(),
	}
}

// conceptsFor applies the deterministic tagging rules. Each rule fires
// independently; a ply may carry zero or several concepts. Rules tag both
// faults (on lost-eval plies) and demonstrated skills (on clean plies) so
// the mastery tracker sees successes as well as mistakes.
func (s *extractorService) conceptsFor(game *board.Game, ply *board.Ply, before *engine.Result, delta int, severity string) []string {
	phase := board.PhaseOf(ply.Index, ply.FENBefore)
	faulty := severity == types.SeverityMistake || severity == types.SeverityBlunder

	playedFacts, _ := board.FactsFor(ply.FENBefore, ply.MoveUCI)
	var bestFacts *board.MoveFacts
	if before.BestMove != "" && before.BestMove != ply.MoveUCI {
		bestFacts, _ = board.FactsFor(ply.FENBefore, before.BestMove)
	}

	var next *board.Ply
	if ply.Index+1 < len(game.Plies) {
		next = &game.Plies[ply.Index+1]
	}

	moverEvalBefore := scoreCP(before)
	if ply.Side == board.Black {
		moverEvalBefore = -moverEvalBefore
	}

	set := map[string]bool{}

	// The opponent's immediate capture after a losing move means a piece
	// was left or put en prise.
	if faulty && next != nil && next.IsCapture {
		if playedFacts != nil && !playedFacts.IsCapture {
			set[taxonomy.ConceptHangingPiece] = true
		} else {
			set[taxonomy.ConceptPieceSafety] = true
		}
	}
	if severity == types.SeverityBlunder && (next == nil || !next.IsCapture) {
		set[taxonomy.ConceptPieceSafety] = true
	}

	// The engine wanted a forcing move the player did not find.
	if faulty && bestFacts != nil && (bestFacts.IsCapture || bestFacts.IsCheck) {
		set[taxonomy.ConceptMissedTactic] = true
	}

	if faulty && board.BackRankVulnerable(ply.FENAfter, ply.Side) {
		set[taxonomy.ConceptBackRank] = true
	}

	if phase == board.PhaseOpening && playedFacts != nil {
		if severity != types.SeverityNone && !playedFacts.ToCenter && bestFacts != nil && bestFacts.ToCenter {
			set[taxonomy.ConceptCenterControl] = true
		}
		if severity == types.SeverityNone && playedFacts.ToCenter {
			set[taxonomy.ConceptCenterControl] = true
		}
		if ply.Index <= earlyQueenMaxPly && playedFacts.Piece == board.PieceQueen && severity != types.SeverityNone {
			set[taxonomy.ConceptEarlyQueen] = true
		}
	}

	if phase == board.PhaseEndgame && playedFacts != nil {
		if severity != types.SeverityNone && bestFacts != nil && bestFacts.Piece == board.PieceKing && playedFacts.Piece != board.PieceKing {
			set[taxonomy.ConceptKingActivity] = true
		}
		if severity == types.SeverityNone && playedFacts.Piece == board.PieceKing {
			set[taxonomy.ConceptKingActivity] = true
		}
	}

	if moverEvalBefore >= winningCP {
		set[taxonomy.ConceptConversion] = true
	}

	out := make([]string, 0, len(set))
	for id := range set {
		if s.registry.Has(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func severityFor(delta int) string {
	loss := -delta
	switch {
	case loss >= blunderCP:
		return types.SeverityBlunder
	case loss >= mistakeCP:
		return types.SeverityMistake
	case loss >= inaccuracyCP:
		return types.SeverityInaccuracy
	default:
		return types.SeverityNone
	}
}

// scoreCP collapses a mate score into a large centipawn value so deltas
// stay comparable across mate and non-mate evaluations.
func scoreCP(res *engine.Result) int {
	if res.MateIn != 0 {
		if res.MateIn > 0 {
			return 10000 - res.MateIn
		}
		return -10000 - res.MateIn
	}
	return res.ScoreCP
}

func marshalStrings(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unmarshalStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
