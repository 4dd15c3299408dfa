package services

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	pkgerrors "github.com/chesschat/coach-backend/internal/pkg/errors"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/repos"
	"github.com/chesschat/coach-backend/internal/types"
)

// Outcome of one concept observation.
const (
	OutcomeMistake = "mistake"
	OutcomeSuccess = "success"
)

const (
	mistakeDelta    = -0.15
	successDelta    = 0.10
	minLearningRate = 0.1
	confidenceStep  = 0.05
	emaAlpha        = 0.2
	jitterFraction  = 0.2
)

// Spaced-repetition intervals by mastery band.
var dueBands = []struct {
	maxMastery float64
	interval   time.Duration
}{
	{0.3, 2 * 24 * time.Hour},
	{0.5, 3 * 24 * time.Hour},
	{0.75, 7 * 24 * time.Hour},
	{0.9, 14 * 24 * time.Hour},
	{1.01, 28 * 24 * time.Hour},
}

type MasteryService interface {
	Update(userID uuid.UUID, conceptID, outcome string, evidence *types.EvidenceRef) (*types.ConceptState, error)
	GetStates(userID uuid.UUID) ([]*types.ConceptState, error)
	MarkPracticed(userID uuid.UUID, conceptID string) (*types.ConceptState, error)
}

type masteryService struct {
	states repos.ConceptStateRepo
	log    *logger.Logger

	// userLocks serializes updates per user. Concurrent ingestions for the
	// same user must not interleave read-modify-write cycles on the same
	// concept state rows.
	mu        sync.Mutex
	userLocks map[uuid.UUID]*sync.Mutex

	now  func() time.Time
	rand *rand.Rand
}

func NewMasteryService(states repos.ConceptStateRepo, baseLog *logger.Logger) MasteryService {
	return &masteryService{
		states:    states,
		log:       baseLog.With("service", "MasteryService"),
		userLocks: make(map[uuid.UUID]*sync.Mutex),
		now:       func() time.Time { return time.Now().UTC() },
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *masteryService) lockFor(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// Update applies one observation to the user's state for a concept,
// creating the state lazily on first evidence. Mastery moves by a
// confidence-scaled step, confidence only ever rises, and the next due
// date is rescheduled from the new mastery band with jitter.
func (s *masteryService) Update(userID uuid.UUID, conceptID, outcome string, evidence *types.EvidenceRef) (*types.ConceptState, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	state, err := s.states.GetByUserAndConcept(nil, userID, conceptID)
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}
		state = &types.ConceptState{
			ID:        uuid.New(),
			UserID:    userID,
			ConceptID: conceptID,
			Mastery:   0.5,
		}
	}

	learningRate := 1 - state.Confidence
	if learningRate < minLearningRate {
		learningRate = minLearningRate
	}
	step := successDelta
	mistake := outcome == OutcomeMistake
	if mistake {
		step = mistakeDelta
	}
	state.Mastery = clamp01(state.Mastery + step*learningRate)
	state.Confidence = clamp01(state.Confidence + confidenceStep)

	if mistake {
		state.MistakeRateEMA = ema(state.MistakeRateEMA, 1)
		state.SuccessRateEMA = ema(state.SuccessRateEMA, 0)
	} else {
		state.MistakeRateEMA = ema(state.MistakeRateEMA, 0)
		state.SuccessRateEMA = ema(state.SuccessRateEMA, 1)
	}

	state.LastSeenAt = &now
	due := s.nextDue(state.Mastery, now)
	state.DueAt = &due

	if evidence != nil {
		s.appendEvidence(state, evidence)
	}

	if err := s.states.Save(nil, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *masteryService) GetStates(userID uuid.UUID) ([]*types.ConceptState, error) {
	return s.states.GetByUser(nil, userID)
}

// MarkPracticed stamps lastPracticedAt and reschedules dueAt from it, so
// dueAt never precedes the last practice.
func (s *masteryService) MarkPracticed(userID uuid.UUID, conceptID string) (*types.ConceptState, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.states.GetByUserAndConcept(nil, userID, conceptID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	state.LastPracticedAt = &now
	due := s.nextDue(state.Mastery, now)
	state.DueAt = &due
	if err := s.states.Save(nil, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *masteryService) nextDue(mastery float64, from time.Time) time.Time {
	base := s.nextDueBase(mastery)
	jitter := 1 + jitterFraction*(2*s.rand.Float64()-1)
	return from.Add(time.Duration(float64(base) * jitter))
}

func (s *masteryService) nextDueBase(mastery float64) time.Duration {
	for _, band := range dueBands {
		if mastery < band.maxMastery {
			return band.interval
		}
	}
	return dueBands[len(dueBands)-1].interval
}

func (s *masteryService) appendEvidence(state *types.ConceptState, ref *types.EvidenceRef) {
	var ring []types.EvidenceRef
	if len(state.Evidence) > 0 {
		if err := json.Unmarshal(state.Evidence, &ring); err != nil {
			s.log.Warn("Dropping unreadable evidence ring", "concept_id", state.ConceptID, "error", err)
			ring = nil
		}
	}
	ring = append(ring, *ref)
	if len(ring) > types.EvidenceRingSize {
		ring = ring[len(ring)-types.EvidenceRingSize:]
	}
	b, err := json.Marshal(ring)
	if err != nil {
		s.log.Warn("Failed to encode evidence ring", "concept_id", state.ConceptID, "error", err)
		return
	}
	state.Evidence = datatypes.JSON(b)
}

func ema(old, sample float64) float64 {
	return old + emaAlpha*(sample-old)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
