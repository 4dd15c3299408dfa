package repos_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/chesschat/coach-backend/internal/pkg/errors"
	"github.com/chesschat/coach-backend/internal/repos"
	"github.com/chesschat/coach-backend/internal/repos/testutil"
	"github.com/chesschat/coach-backend/internal/types"
)

func seedEvent(userID uuid.UUID, gameID string, ply int, severity string, concepts string, createdAt time.Time) *types.GameEvent {
	return &types.GameEvent{
		UserID:     userID,
		GameID:     gameID,
		Ply:        ply,
		Side:       "white",
		PlayedMove: "e2e4",
		FENBefore:  "before",
		FENAfter:   "after",
		Severity:   severity,
		Concepts:   []byte(concepts),
		Phase:      "opening",
		CreatedAt:  createdAt,
	}
}

func TestGameEventCreateAndGetByGame(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repos.NewGameEventRepo(db, testutil.NewLogger(t))
	userID := uuid.New()
	now := time.Now().UTC()

	batch := []*types.GameEvent{
		seedEvent(userID, "g1", 8, types.SeverityMistake, `["hanging_piece"]`, now),
		seedEvent(userID, "g1", 2, types.SeverityNone, `[]`, now),
	}
	if err := repo.CreateBatch(nil, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	rows, err := repo.GetByGame(nil, userID, "g1")
	if err != nil {
		t.Fatalf("get by game: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Ply != 2 || rows[1].Ply != 8 {
		t.Fatalf("rows not ordered by ply: %d, %d", rows[0].Ply, rows[1].Ply)
	}
}

func TestGameEventCountGames(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repos.NewGameEventRepo(db, testutil.NewLogger(t))
	userID := uuid.New()
	now := time.Now().UTC()

	batch := []*types.GameEvent{
		seedEvent(userID, "g1", 1, types.SeverityNone, `[]`, now),
		seedEvent(userID, "g1", 2, types.SeverityNone, `[]`, now),
		seedEvent(userID, "g2", 1, types.SeverityNone, `[]`, now),
	}
	if err := repo.CreateBatch(nil, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	count, err := repo.CountGamesByUser(nil, userID)
	if err != nil {
		t.Fatalf("count games: %v", err)
	}
	if count != 2 {
		t.Fatalf("distinct games: got %d want 2", count)
	}
}

func TestGameEventCountMistakesByConcept(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repos.NewGameEventRepo(db, testutil.NewLogger(t))
	userID := uuid.New()
	now := time.Now().UTC()

	batch := []*types.GameEvent{
		seedEvent(userID, "g1", 1, types.SeverityBlunder, `["hanging_piece","missed_tactic"]`, now),
		seedEvent(userID, "g1", 2, types.SeverityMistake, `["hanging_piece"]`, now),
		// Clean ply carrying the concept does not count as a mistake.
		seedEvent(userID, "g1", 3, types.SeverityNone, `["hanging_piece"]`, now),
		// Old mistake outside the window.
		seedEvent(userID, "g0", 1, types.SeverityBlunder, `["hanging_piece"]`, now.Add(-60*24*time.Hour)),
	}
	if err := repo.CreateBatch(nil, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	count, err := repo.CountMistakesByConcept(nil, userID, "hanging_piece", now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("count mistakes: %v", err)
	}
	if count != 2 {
		t.Fatalf("mistakes in window: got %d want 2", count)
	}
}

func TestConceptStateSaveUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repos.NewConceptStateRepo(db, testutil.NewLogger(t))
	userID := uuid.New()

	state := &types.ConceptState{UserID: userID, ConceptID: "piece_safety", Mastery: 0.5}
	if err := repo.Save(nil, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	state.Mastery = 0.65
	if err := repo.Save(nil, state); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := repo.GetByUserAndConcept(nil, userID, "piece_safety")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Mastery != 0.65 {
		t.Fatalf("upsert did not apply: %v", got.Mastery)
	}

	all, err := repo.GetByUser(nil, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("save must not duplicate rows: %d", len(all))
	}
}

func TestConceptStateNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repos.NewConceptStateRepo(db, testutil.NewLogger(t))

	_, err := repo.GetByUserAndConcept(nil, uuid.New(), "piece_safety")
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
