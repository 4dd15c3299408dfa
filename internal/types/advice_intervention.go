package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Intervention outcomes. Pending until the evaluation window closes; the
// terminal value is never re-evaluated.
const (
	OutcomePending = "pending"
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailure = "failure"
	OutcomeUnknown = "unknown"
)

// AdviceIntervention records one piece of issued advice and the measurement
// of its effect over the user's next EvaluationGames games.
type AdviceIntervention struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_advice_user_hash,unique,priority:1" json:"user_id"`

	// Hash of the advice text; identical repeated advice dedupes to the
	// existing open intervention.
	ContentHash string `gorm:"column:content_hash;not null;index:idx_advice_user_hash,unique,priority:2" json:"content_hash"`

	TargetedConcepts    datatypes.JSON `gorm:"column:targeted_concepts;not null" json:"targeted_concepts"` // []string
	AdviceText          string         `gorm:"column:advice_text;not null" json:"advice_text"`
	ExpectedBehavior    string         `gorm:"column:expected_behavior" json:"expected_behavior"`
	MeasurementCriteria string         `gorm:"column:measurement_criteria" json:"measurement_criteria"`

	EvaluationGames int `gorm:"column:evaluation_games;not null" json:"evaluation_games"`
	GamesEvaluated  int `gorm:"column:games_evaluated;not null;default:0" json:"games_evaluated"`

	// Baseline mistake rate on the targeted concepts at issuance, and the
	// mistake count accumulated during the evaluation window.
	PreRate      float64 `gorm:"column:pre_rate" json:"pre_rate"`
	PostMistakes int     `gorm:"column:post_mistakes;not null;default:0" json:"post_mistakes"`

	MeasuredDelta *float64 `gorm:"column:measured_delta" json:"measured_delta,omitempty"`
	Outcome       string   `gorm:"column:outcome;not null;default:pending;index" json:"outcome"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (AdviceIntervention) TableName() string { return "advice_intervention" }

// Terminal reports whether the intervention has reached a final outcome.
func (a *AdviceIntervention) Terminal() bool {
	return a.Outcome != "" && a.Outcome != OutcomePending
}
