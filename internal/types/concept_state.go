package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConceptState tracks one user's standing on one taxonomy concept. Created
// lazily on first evidence, mutated only by the mastery tracker, archived
// instead of deleted.
type ConceptState struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_concept_state_user_concept,unique,priority:1" json:"user_id"`
	ConceptID string    `gorm:"column:concept_id;not null;index:idx_concept_state_user_concept,unique,priority:2" json:"concept_id"`

	// No DB-side defaults here: a default tag makes gorm omit zero values
	// on insert, which would resurrect a mastery legitimately clamped to 0.
	// The starting 0.5 is set in code when a state is first created.
	Mastery        float64 `gorm:"column:mastery;not null" json:"mastery"`       // 0..1
	Confidence     float64 `gorm:"column:confidence;not null" json:"confidence"` // 0..1, never decreases
	MistakeRateEMA float64 `gorm:"column:mistake_rate_ema;not null" json:"mistake_rate_ema"`
	SuccessRateEMA float64 `gorm:"column:success_rate_ema;not null" json:"success_rate_ema"`

	DueAt           *time.Time `gorm:"column:due_at;index" json:"due_at,omitempty"`
	LastSeenAt      *time.Time `gorm:"column:last_seen_at" json:"last_seen_at,omitempty"`
	LastPracticedAt *time.Time `gorm:"column:last_practiced_at" json:"last_practiced_at,omitempty"`

	// Bounded ring of recent evidence refs (game, ply, fen, severity).
	Evidence datatypes.JSON `gorm:"column:evidence" json:"evidence,omitempty"`

	Archived bool `gorm:"column:archived;not null;default:false" json:"archived"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ConceptState) TableName() string { return "concept_state" }

// EvidenceRef is one entry of the ConceptState evidence ring.
type EvidenceRef struct {
	GameID   string    `json:"game_id"`
	Ply      int       `json:"ply"`
	FEN      string    `json:"fen"`
	Severity string    `json:"severity"`
	SeenAt   time.Time `json:"seen_at"`
}

// EvidenceRingSize bounds the evidence ring per concept state.
const EvidenceRingSize = 10
