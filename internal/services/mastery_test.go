package services

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chesschat/coach-backend/internal/repos"
	"github.com/chesschat/coach-backend/internal/repos/testutil"
	"github.com/chesschat/coach-backend/internal/types"
)

func newMasteryForTest(t *testing.T) (*masteryService, repos.ConceptStateRepo) {
	t.Helper()
	db := testutil.NewDB(t)
	stateRepo := repos.NewConceptStateRepo(db, testutil.NewLogger(t))
	svc := NewMasteryService(stateRepo, testutil.NewLogger(t)).(*masteryService)
	svc.rand = rand.New(rand.NewSource(1))
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return svc, stateRepo
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// failingStateRepo fails reads; any other call panics through the nil
// embedded interface, so a failed read reaching a write is caught loudly.
type failingStateRepo struct {
	repos.ConceptStateRepo
	err error
}

func (f *failingStateRepo) GetByUserAndConcept(tx *gorm.DB, userID uuid.UUID, conceptID string) (*types.ConceptState, error) {
	return nil, f.err
}

func TestMasteryUpdatePropagatesReadErrors(t *testing.T) {
	svc, _ := newMasteryForTest(t)
	readErr := errors.New("connection reset by peer")
	svc.states = &failingStateRepo{err: readErr}

	if _, err := svc.Update(uuid.New(), "piece_safety", OutcomeMistake, nil); !errors.Is(err, readErr) {
		t.Fatalf("transient read failure must not fabricate a fresh state, got %v", err)
	}
}

func TestMasteryBlunderCase(t *testing.T) {
	svc, stateRepo := newMasteryForTest(t)
	userID := uuid.New()

	seed := &types.ConceptState{
		UserID:     userID,
		ConceptID:  "hanging_piece",
		Mastery:    0.8,
		Confidence: 0.9,
	}
	if err := stateRepo.Create(nil, seed); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	state, err := svc.Update(userID, "hanging_piece", OutcomeMistake, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// 0.8 - 0.15 * max(0.1, 1-0.9) = 0.785
	if !almostEqual(state.Mastery, 0.785) {
		t.Fatalf("mastery: got %v want 0.785", state.Mastery)
	}
	if !almostEqual(state.Confidence, 0.95) {
		t.Fatalf("confidence: got %v", state.Confidence)
	}
}

func TestMasteryCreatesStateLazily(t *testing.T) {
	svc, stateRepo := newMasteryForTest(t)
	userID := uuid.New()

	state, err := svc.Update(userID, "missed_tactic", OutcomeSuccess, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// New state starts at 0.5 with confidence 0: 0.5 + 0.10*1.0 = 0.6.
	if !almostEqual(state.Mastery, 0.6) {
		t.Fatalf("mastery: got %v", state.Mastery)
	}
	if _, err := stateRepo.GetByUserAndConcept(nil, userID, "missed_tactic"); err != nil {
		t.Fatalf("state not persisted: %v", err)
	}
}

func TestMasteryStaysInBounds(t *testing.T) {
	svc, stateRepo := newMasteryForTest(t)
	userID := uuid.New()

	var last *types.ConceptState
	var err error
	for i := 0; i < 50; i++ {
		last, err = svc.Update(userID, "piece_safety", OutcomeMistake, nil)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if last.Mastery < 0 || last.Mastery > 1 {
			t.Fatalf("mastery out of bounds: %v", last.Mastery)
		}
		if last.Confidence < 0 || last.Confidence > 1 {
			t.Fatalf("confidence out of bounds: %v", last.Confidence)
		}
	}
	if last.Mastery != 0 {
		t.Fatalf("repeated mistakes should floor at 0, got %v", last.Mastery)
	}
	if last.Confidence != 1 {
		t.Fatalf("confidence should cap at 1, got %v", last.Confidence)
	}
	// The floor must survive the round trip: a zero mastery written to the
	// database must not come back as a column default.
	stored, err := stateRepo.GetByUserAndConcept(nil, userID, "piece_safety")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Mastery != 0 {
		t.Fatalf("stored mastery should stay floored at 0, got %v", stored.Mastery)
	}
}

func TestMasteryConfidenceNeverDecreases(t *testing.T) {
	svc, _ := newMasteryForTest(t)
	userID := uuid.New()

	prev := 0.0
	outcomes := []string{OutcomeMistake, OutcomeSuccess, OutcomeMistake, OutcomeSuccess, OutcomeMistake}
	for _, outcome := range outcomes {
		state, err := svc.Update(userID, "center_control", outcome, nil)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if state.Confidence < prev {
			t.Fatalf("confidence regressed: %v -> %v", prev, state.Confidence)
		}
		prev = state.Confidence
	}
}

func TestMasteryDueDateBands(t *testing.T) {
	svc, stateRepo := newMasteryForTest(t)
	now := svc.now()

	for _, mastery := range []float64{0.1, 0.4, 0.6, 0.8, 0.95} {
		userID := uuid.New()
		seed := &types.ConceptState{
			UserID:     userID,
			ConceptID:  "back_rank_weakness",
			Mastery:    mastery,
			Confidence: 1, // minimum learning rate keeps mastery near the band
		}
		if err := stateRepo.Create(nil, seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
		state, err := svc.Update(userID, "back_rank_weakness", OutcomeSuccess, nil)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if state.DueAt == nil {
			t.Fatalf("due date not set")
		}
		base := svc.nextDueBase(state.Mastery)
		gap := state.DueAt.Sub(now)
		if gap < time.Duration(0.8*float64(base)) || gap > time.Duration(1.2*float64(base)) {
			t.Fatalf("mastery %v: due gap %s outside jitter band around %s", mastery, gap, base)
		}
	}
}

func TestMasteryEvidenceRingIsBounded(t *testing.T) {
	svc, stateRepo := newMasteryForTest(t)
	userID := uuid.New()

	for i := 0; i < types.EvidenceRingSize+5; i++ {
		ref := &types.EvidenceRef{GameID: "g1", Ply: i, FEN: "fen", Severity: types.SeverityMistake, SeenAt: svc.now()}
		if _, err := svc.Update(userID, "piece_safety", OutcomeMistake, ref); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	state, err := stateRepo.GetByUserAndConcept(nil, userID, "piece_safety")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ring := decodeEvidence(t, state)
	if len(ring) != types.EvidenceRingSize {
		t.Fatalf("ring size: got %d want %d", len(ring), types.EvidenceRingSize)
	}
	if ring[len(ring)-1].Ply != types.EvidenceRingSize+4 {
		t.Fatalf("ring should keep the newest entries, last=%d", ring[len(ring)-1].Ply)
	}
}

func TestMarkPracticedKeepsDueAfterPractice(t *testing.T) {
	svc, _ := newMasteryForTest(t)
	userID := uuid.New()

	if _, err := svc.Update(userID, "piece_safety", OutcomeSuccess, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	state, err := svc.MarkPracticed(userID, "piece_safety")
	if err != nil {
		t.Fatalf("mark practiced: %v", err)
	}
	if state.LastPracticedAt == nil || state.DueAt == nil {
		t.Fatalf("practice timestamps missing: %+v", state)
	}
	if state.DueAt.Before(*state.LastPracticedAt) {
		t.Fatalf("dueAt %s precedes lastPracticedAt %s", state.DueAt, state.LastPracticedAt)
	}
}

func decodeEvidence(t *testing.T, state *types.ConceptState) []types.EvidenceRef {
	t.Helper()
	var ring []types.EvidenceRef
	if len(state.Evidence) > 0 {
		if err := json.Unmarshal(state.Evidence, &ring); err != nil {
			t.Fatalf("decode evidence: %v", err)
		}
	}
	return ring
}
