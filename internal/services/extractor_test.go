package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/chesschat/coach-backend/internal/board"
	"github.com/chesschat/coach-backend/internal/engine"
	"github.com/chesschat/coach-backend/internal/repos/testutil"
	"github.com/chesschat/coach-backend/internal/taxonomy"
	"github.com/chesschat/coach-backend/internal/types"
)

func newExtractorForTest(t *testing.T) ExtractorService {
	t.Helper()
	return NewExtractorService(taxonomy.Default(), testutil.NewLogger(t))
}

func scholarsMate(t *testing.T) *board.Game {
	t.Helper()
	game, err := board.Replay("", []string{"e4", "e5", "Bc4", "Nc6", "Qh5", "Nf6", "Qxf7#"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	return game
}

func evalsFor(game *board.Game, scores map[int]int) map[string]*engine.Result {
	evals := map[string]*engine.Result{}
	for i := range game.Plies {
		ply := &game.Plies[i]
		if cp, ok := scores[i]; ok {
			evals[board.NormalizedKey(ply.FENBefore)] = &engine.Result{FEN: ply.FENBefore, ScoreCP: cp}
		}
	}
	if cp, ok := scores[len(game.Plies)]; ok {
		last := &game.Plies[len(game.Plies)-1]
		evals[board.NormalizedKey(last.FENAfter)] = &engine.Result{FEN: last.FENAfter, ScoreCP: cp}
	}
	return evals
}

func TestExtractDeltaIsMoverPerspective(t *testing.T) {
	svc := newExtractorForTest(t)
	game := scholarsMate(t)

	// White-perspective evals around black's Nf6 (ply 5): the position
	// jumps from +50 to +900 for white, an 850cp loss for black.
	evals := evalsFor(game, map[int]int{5: 50, 6: 900})
	events := svc.Extract(uuid.New(), "g1", game, []int{5}, evals)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Side != "black" {
		t.Fatalf("side: %s", ev.Side)
	}
	if ev.Delta != -850 {
		t.Fatalf("delta: got %d want -850", ev.Delta)
	}
	if ev.Severity != types.SeverityBlunder {
		t.Fatalf("severity: got %s", ev.Severity)
	}
}

func TestExtractWinningMoveIsNotAMistake(t *testing.T) {
	svc := newExtractorForTest(t)
	game := scholarsMate(t)

	// White's Qxf7# (ply 6) from a winning position stays severity none
	// and demonstrates conversion.
	evals := evalsFor(game, map[int]int{6: 900, 7: 9990})
	events := svc.Extract(uuid.New(), "g1", game, []int{6}, evals)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Severity != types.SeverityNone {
		t.Fatalf("severity: got %s", ev.Severity)
	}
	found := false
	for _, id := range unmarshalStrings(ev.Concepts) {
		if id == taxonomy.ConceptConversion {
			found = true
		}
	}
	if !found {
		t.Fatalf("winning move should carry %s, got %s", taxonomy.ConceptConversion, ev.Concepts)
	}
}

func TestExtractSortsByPly(t *testing.T) {
	svc := newExtractorForTest(t)
	game := scholarsMate(t)

	evals := evalsFor(game, map[int]int{0: 20, 1: 30, 5: 50, 6: 900, 7: 9990})
	events := svc.Extract(uuid.New(), "g1", game, []int{6, 0, 5}, evals)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Ply <= events[i-1].Ply {
			t.Fatalf("events not in ply order: %d then %d", events[i-1].Ply, events[i].Ply)
		}
	}
}

func TestExtractSkipsPliesWithoutEvals(t *testing.T) {
	svc := newExtractorForTest(t)
	game := scholarsMate(t)

	evals := evalsFor(game, map[int]int{5: 50, 6: 900})
	events := svc.Extract(uuid.New(), "g1", game, []int{2, 5}, evals)
	if len(events) != 1 || events[0].Ply != 5 {
		t.Fatalf("unanalyzed ply should be skipped: %+v", events)
	}
}

func TestExtractTagsOpeningPhase(t *testing.T) {
	svc := newExtractorForTest(t)
	game := scholarsMate(t)

	evals := evalsFor(game, map[int]int{0: 0, 1: 20})
	events := svc.Extract(uuid.New(), "g1", game, []int{0}, evals)
	if len(events) != 1 {
		t.Fatalf("expected 1 event")
	}
	if events[0].Phase != string(board.PhaseOpening) {
		t.Fatalf("phase: got %s", events[0].Phase)
	}
}

func TestSeverityThresholds(t *testing.T) {
	cases := []struct {
		delta int
		want  string
	}{
		{-320, types.SeverityBlunder},
		{-300, types.SeverityBlunder},
		{-299, types.SeverityMistake},
		{-150, types.SeverityMistake},
		{-149, types.SeverityInaccuracy},
		{-75, types.SeverityInaccuracy},
		{-74, types.SeverityNone},
		{0, types.SeverityNone},
		{120, types.SeverityNone},
	}
	for _, tc := range cases {
		if got := severityFor(tc.delta); got != tc.want {
			t.Fatalf("severityFor(%d): got %s want %s", tc.delta, got, tc.want)
		}
	}
}

func TestScoreCPCollapsesMate(t *testing.T) {
	if got := scoreCP(&engine.Result{MateIn: 2}); got != 9998 {
		t.Fatalf("mate in 2: got %d", got)
	}
	if got := scoreCP(&engine.Result{MateIn: -3}); got != -9997 {
		t.Fatalf("mated in 3: got %d", got)
	}
	if got := scoreCP(&engine.Result{ScoreCP: 42}); got != 42 {
		t.Fatalf("plain score: got %d", got)
	}
}
