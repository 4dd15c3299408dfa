package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/chesschat/coach-backend/internal/pkg/errors"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/repos"
	"github.com/chesschat/coach-backend/internal/taxonomy"
	"github.com/chesschat/coach-backend/internal/types"
)

const (
	defaultEvaluationGames = 5

	// Lookback window for the pre-advice baseline mistake rate.
	baselineWindow = 30 * 24 * time.Hour

	// Improvement (reduction of the mistake rate relative to baseline)
	// required for a success / partial outcome.
	successImprovement = 0.5
	partialImprovement = 0.2
)

type InterventionService interface {
	Record(userID uuid.UUID, conceptIDs []string, adviceText string) (*types.AdviceIntervention, error)
	OnGameIngested(userID uuid.UUID, events []*types.GameEvent) error
	RecentOutcomeCounts(since time.Time) (map[string]int64, error)
}

type interventionService struct {
	interventions repos.AdviceInterventionRepo
	events        repos.GameEventRepo
	registry      *taxonomy.Registry
	log           *logger.Logger
	now           func() time.Time
}

func NewInterventionService(interventions repos.AdviceInterventionRepo, events repos.GameEventRepo, registry *taxonomy.Registry, baseLog *logger.Logger) InterventionService {
	return &interventionService{
		interventions: interventions,
		events:        events,
		registry:      registry,
		log:           baseLog.With("service", "InterventionService"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Record persists issued advice with its measurement criteria. Identical
// advice text for the same user dedupes to the existing intervention
// instead of opening a second measurement window.
func (s *interventionService) Record(userID uuid.UUID, conceptIDs []string, adviceText string) (*types.AdviceIntervention, error) {
	text := strings.TrimSpace(adviceText)
	if text == "" {
		return nil, fmt.Errorf("%w: empty advice text", pkgerrors.ErrInvalidArgument)
	}
	if len(conceptIDs) == 0 {
		return nil, fmt.Errorf("%w: no targeted concepts", pkgerrors.ErrInvalidArgument)
	}
	for _, id := range conceptIDs {
		if !s.registry.Has(id) {
			return nil, fmt.Errorf("%w: unknown concept %q", pkgerrors.ErrInvalidArgument, id)
		}
	}

	hash := contentHash(text)
	existing, err := s.interventions.GetByUserAndHash(nil, userID, hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		return nil, err
	}

	preRate, err := s.baselineRate(userID, conceptIDs)
	if err != nil {
		return nil, err
	}
	conceptsJSON, err := marshalStrings(conceptIDs)
	if err != nil {
		return nil, err
	}

	intervention := &types.AdviceIntervention{
		ID:                  uuid.New(),
		UserID:              userID,
		ContentHash:         hash,
		TargetedConcepts:    conceptsJSON,
		AdviceText:          text,
		ExpectedBehavior:    fmt.Sprintf("fewer mistakes tagged %s", strings.Join(conceptIDs, ", ")),
		MeasurementCriteria: fmt.Sprintf("mistake rate on targeted concepts over the next %d games vs a %.2f baseline", defaultEvaluationGames, preRate),
		EvaluationGames:     defaultEvaluationGames,
		PreRate:             preRate,
		Outcome:             types.OutcomePending,
	}
	if err := s.interventions.Create(nil, intervention); err != nil {
		return nil, err
	}
	s.log.Info("Recorded advice intervention", "user_id", userID, "intervention_id", intervention.ID, "concepts", conceptIDs)
	return intervention, nil
}

// OnGameIngested advances every pending intervention for the user by one
// evaluated game, counting mistakes on its targeted concepts. When the
// window closes the outcome is computed once and never revisited.
func (s *interventionService) OnGameIngested(userID uuid.UUID, events []*types.GameEvent) error {
	pending, err := s.interventions.GetPendingByUser(nil, userID)
	if err != nil {
		return err
	}
	for _, intervention := range pending {
		if intervention.Terminal() || intervention.GamesEvaluated >= intervention.EvaluationGames {
			continue
		}
		targeted := unmarshalStrings(intervention.TargetedConcepts)
		intervention.GamesEvaluated++
		intervention.PostMistakes += countConceptMistakes(events, targeted)

		if intervention.GamesEvaluated >= intervention.EvaluationGames {
			s.finalize(intervention)
		}
		if err := s.interventions.Update(nil, intervention); err != nil {
			return err
		}
	}
	return nil
}

func (s *interventionService) finalize(intervention *types.AdviceIntervention) {
	postRate := float64(intervention.PostMistakes) / float64(intervention.EvaluationGames)
	delta := postRate - intervention.PreRate
	intervention.MeasuredDelta = &delta

	switch {
	case intervention.PreRate == 0:
		intervention.Outcome = types.OutcomeUnknown
	case -delta >= successImprovement*intervention.PreRate:
		intervention.Outcome = types.OutcomeSuccess
	case -delta >= partialImprovement*intervention.PreRate:
		intervention.Outcome = types.OutcomePartial
	default:
		intervention.Outcome = types.OutcomeFailure
	}
	s.log.Info("Intervention evaluation complete",
		"intervention_id", intervention.ID,
		"outcome", intervention.Outcome,
		"measured_delta", delta)
}

func (s *interventionService) RecentOutcomeCounts(since time.Time) (map[string]int64, error) {
	return s.interventions.RecentOutcomeCounts(nil, since)
}

// baselineRate is mistakes per game on the targeted concepts over the
// lookback window. Zero games means no baseline.
func (s *interventionService) baselineRate(userID uuid.UUID, conceptIDs []string) (float64, error) {
	games, err := s.events.CountGamesByUser(nil, userID)
	if err != nil {
		return 0, err
	}
	if games == 0 {
		return 0, nil
	}
	from := s.now().Add(-baselineWindow)
	var mistakes int64
	for _, id := range conceptIDs {
		n, err := s.events.CountMistakesByConcept(nil, userID, id, from)
		if err != nil {
			return 0, err
		}
		mistakes += n
	}
	return float64(mistakes) / float64(games), nil
}

func countConceptMistakes(events []*types.GameEvent, targeted []string) int {
	if len(targeted) == 0 {
		return 0
	}
	targetSet := make(map[string]bool, len(targeted))
	for _, id := range targeted {
		targetSet[id] = true
	}
	n := 0
	for _, ev := range events {
		if ev.Severity == types.SeverityNone {
			continue
		}
		for _, id := range unmarshalStrings(ev.Concepts) {
			if targetSet[id] {
				n++
				break
			}
		}
	}
	return n
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))
	return hex.EncodeToString(sum[:])
}
