package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/repos"
	"github.com/chesschat/coach-backend/internal/taxonomy"
	"github.com/chesschat/coach-backend/internal/types"
)

const (
	planMinTargets = 3
	planMaxTargets = 5

	// Recent-mistake pressure that outranks every other reason.
	highMistakeEMA = 0.5
	lowMasteryBar  = 0.4
	overdueDays    = 7
	recentMissDays = 3
)

type PracticeTarget struct {
	ConceptID string     `json:"concept_id"`
	Name      string     `json:"name"`
	Score     float64    `json:"score"`
	Mastery   float64    `json:"mastery"`
	Reason    string     `json:"reason"`
	DueAt     *time.Time `json:"due_at,omitempty"`
}

type PracticeDrill struct {
	ConceptID string `json:"concept_id"`
	Kind      string `json:"kind"`
	Prompt    string `json:"prompt"`
	FEN       string `json:"fen,omitempty"`
}

type PracticePlan struct {
	UserID      uuid.UUID        `json:"user_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	NewUser     bool             `json:"new_user"`
	Targets     []PracticeTarget `json:"targets"`
	Drills      []PracticeDrill  `json:"drills"`
}

type PlannerService interface {
	Plan(userID uuid.UUID) (*PracticePlan, error)
}

type plannerService struct {
	states   repos.ConceptStateRepo
	registry *taxonomy.Registry
	log      *logger.Logger
	now      func() time.Time
}

func NewPlannerService(states repos.ConceptStateRepo, registry *taxonomy.Registry, baseLog *logger.Logger) PlannerService {
	return &plannerService{
		states:   states,
		registry: registry,
		log:      baseLog.With("service", "PlannerService"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Plan scores every tracked concept and returns the top three to five as
// practice targets, each with a drill built from its recent evidence. A
// user with no tracked concepts gets the fixed starter plan, never an
// empty one.
func (s *plannerService) Plan(userID uuid.UUID) (*PracticePlan, error) {
	states, err := s.states.GetByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return s.newUserPlan(userID), nil
	}

	now := s.now()
	type scored struct {
		state *types.ConceptState
		score float64
	}
	ranked := make([]scored, 0, len(states))
	for _, st := range states {
		ranked = append(ranked, scored{state: st, score: s.score(st, now)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].state.ConceptID < ranked[j].state.ConceptID
	})

	n := planMaxTargets
	if len(ranked) < n {
		n = len(ranked)
	}
	if n < planMinTargets && len(ranked) >= planMinTargets {
		n = planMinTargets
	}

	plan := &PracticePlan{UserID: userID, GeneratedAt: now}
	for _, r := range ranked[:n] {
		concept, _ := s.registry.Get(r.state.ConceptID)
		name := concept.Name
		if name == "" {
			name = r.state.ConceptID
		}
		plan.Targets = append(plan.Targets, PracticeTarget{
			ConceptID: r.state.ConceptID,
			Name:      name,
			Score:     r.score,
			Mastery:   r.state.Mastery,
			Reason:    s.reason(r.state, now),
			DueAt:     r.state.DueAt,
		})
		plan.Drills = append(plan.Drills, s.drillFor(r.state, name))
	}
	s.padWithStarters(plan)
	return plan, nil
}

// padWithStarters tops a short plan up to the minimum target count with
// starter concepts the user is not already practicing.
func (s *plannerService) padWithStarters(plan *PracticePlan) {
	if len(plan.Targets) >= planMinTargets {
		return
	}
	have := make(map[string]bool, len(plan.Targets))
	for _, t := range plan.Targets {
		have[t.ConceptID] = true
	}
	for _, st := range starterHabits {
		if len(plan.Targets) >= planMinTargets {
			break
		}
		if have[st.target.ConceptID] {
			continue
		}
		plan.Targets = append(plan.Targets, st.target)
		plan.Drills = append(plan.Drills, st.drill)
	}
}

// score is 3*(1-mastery) + min(2, daysOverdue/7) + 0.5*confidence
// + max(0, 1 - daysSinceLastSeen/30).
func (s *plannerService) score(st *types.ConceptState, now time.Time) float64 {
	score := 3 * (1 - st.Mastery)

	if st.DueAt != nil && now.After(*st.DueAt) {
		overdue := now.Sub(*st.DueAt).Hours() / 24 / 7
		if overdue > 2 {
			overdue = 2
		}
		score += overdue
	}

	score += 0.5 * st.Confidence

	if st.LastSeenAt != nil {
		recency := 1 - now.Sub(*st.LastSeenAt).Hours()/24/30
		if recency > 0 {
			score += recency
		}
	}
	return score
}

// reason picks a one-line explanation by fixed precedence: mistake
// frequency, then low mastery, then overdue, then a recent miss, then the
// default.
func (s *plannerService) reason(st *types.ConceptState, now time.Time) string {
	switch {
	case st.MistakeRateEMA >= highMistakeEMA:
		return "frequent recent mistakes in this area"
	case st.Mastery < lowMasteryBar:
		return "mastery is still low"
	case st.DueAt != nil && now.Sub(*st.DueAt) > overdueDays*24*time.Hour:
		return "long overdue for review"
	case st.LastSeenAt != nil && now.Sub(*st.LastSeenAt) < recentMissDays*24*time.Hour && st.MistakeRateEMA > 0:
		return "missed in a recent game"
	default:
		return "scheduled review"
	}
}

func (s *plannerService) drillFor(st *types.ConceptState, name string) PracticeDrill {
	drill := PracticeDrill{
		ConceptID: st.ConceptID,
		Kind:      "review",
		Prompt:    fmt.Sprintf("Review the idea behind %s and replay one of your recent games with it in mind.", name),
	}
	var ring []types.EvidenceRef
	if len(st.Evidence) > 0 {
		if err := json.Unmarshal(st.Evidence, &ring); err == nil && len(ring) > 0 {
			last := ring[len(ring)-1]
			drill.Kind = "position"
			drill.FEN = last.FEN
			drill.Prompt = fmt.Sprintf("Find the best move in this position from your game; you went wrong here on %s.", name)
		}
	}
	return drill
}

// starterHabits are the fallback targets used for brand-new users and for
// padding plans when fewer than planMinTargets concepts are tracked.
var starterHabits = []struct {
	target PracticeTarget
	drill  PracticeDrill
}{
	{
		target: PracticeTarget{ConceptID: taxonomy.ConceptPieceSafety, Name: "Piece safety", Mastery: 0.5, Reason: "a good first habit while we learn your game"},
		drill:  PracticeDrill{ConceptID: taxonomy.ConceptPieceSafety, Kind: "habit", Prompt: "Before every move, check which of your pieces are undefended."},
	},
	{
		target: PracticeTarget{ConceptID: taxonomy.ConceptCenterControl, Name: "Center control", Mastery: 0.5, Reason: "a good first habit while we learn your game"},
		drill:  PracticeDrill{ConceptID: taxonomy.ConceptCenterControl, Kind: "habit", Prompt: "Play a game aiming to occupy or control the four central squares by move 10."},
	},
	{
		target: PracticeTarget{ConceptID: taxonomy.ConceptHangingPiece, Name: "Hanging pieces", Mastery: 0.5, Reason: "a good first habit while we learn your game"},
		drill:  PracticeDrill{ConceptID: taxonomy.ConceptHangingPiece, Kind: "habit", Prompt: "After each opponent move, name every piece of yours it attacks before replying."},
	},
}

func (s *plannerService) newUserPlan(userID uuid.UUID) *PracticePlan {
	plan := &PracticePlan{
		UserID:      userID,
		GeneratedAt: s.now(),
		NewUser:     true,
	}
	for _, st := range starterHabits {
		plan.Targets = append(plan.Targets, st.target)
		plan.Drills = append(plan.Drills, st.drill)
	}
	return plan
}
