package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Severity classification of one analyzed ply.
const (
	SeverityNone       = "none"
	SeverityInaccuracy = "inaccuracy"
	SeverityMistake    = "mistake"
	SeverityBlunder    = "blunder"
)

// GameEvent is one analyzed ply, appended to the audit log. Rows are
// immutable: no updates, no soft delete.
type GameEvent struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	GameID string    `gorm:"column:game_id;not null;index" json:"game_id"`

	Ply        int    `gorm:"column:ply;not null" json:"ply"`
	Side       string `gorm:"column:side;not null" json:"side"`
	PlayedMove string `gorm:"column:played_move;not null" json:"played_move"`
	BestMove   string `gorm:"column:best_move" json:"best_move"`
	FENBefore  string `gorm:"column:fen_before;not null" json:"fen_before"`
	FENAfter   string `gorm:"column:fen_after;not null" json:"fen_after"`

	EvalBefore int `gorm:"column:eval_before" json:"eval_before"` // centipawns, white perspective
	EvalAfter  int `gorm:"column:eval_after" json:"eval_after"`
	Delta      int `gorm:"column:delta" json:"delta"` // mover perspective, negative = worse

	Severity string         `gorm:"column:severity;not null;index" json:"severity"`
	Concepts datatypes.JSON `gorm:"column:concepts" json:"concepts,omitempty"` // []string of taxonomy ids
	Phase    string         `gorm:"column:phase;not null" json:"phase"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (GameEvent) TableName() string { return "game_event" }
