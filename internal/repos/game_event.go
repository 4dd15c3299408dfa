package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/types"
)

type GameEventRepo interface {
	CreateBatch(tx *gorm.DB, events []*types.GameEvent) error
	GetByUser(tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.GameEvent, error)
	GetByGame(tx *gorm.DB, userID uuid.UUID, gameID string) ([]*types.GameEvent, error)
	CountGamesByUser(tx *gorm.DB, userID uuid.UUID) (int64, error)
	CountMistakesByConcept(tx *gorm.DB, userID uuid.UUID, conceptID string, from time.Time) (int64, error)
}

type gameEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGameEventRepo(db *gorm.DB, baseLog *logger.Logger) GameEventRepo {
	repoLog := baseLog.With("repo", "GameEventRepo")
	return &gameEventRepo{db: db, log: repoLog}
}

func (r *gameEventRepo) CreateBatch(tx *gorm.DB, events []*types.GameEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
	}
	if err := transaction.Create(&events).Error; err != nil {
		r.log.Error("Failed to create game events", "count", len(events), "error", err)
		return err
	}
	return nil
}

func (r *gameEventRepo) GetByUser(tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.GameEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var events []*types.GameEvent
	query := transaction.Where("user_id = ?", userID).Order("created_at desc, ply asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		r.log.Error("Failed to list game events", "user_id", userID, "error", err)
		return nil, err
	}
	return events, nil
}

func (r *gameEventRepo) GetByGame(tx *gorm.DB, userID uuid.UUID, gameID string) ([]*types.GameEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var events []*types.GameEvent
	if err := transaction.Where("user_id = ? AND game_id = ?", userID, gameID).Order("ply asc").Find(&events).Error; err != nil {
		r.log.Error("Failed to list game events", "user_id", userID, "game_id", gameID, "error", err)
		return nil, err
	}
	return events, nil
}

func (r *gameEventRepo) CountGamesByUser(tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.Model(&types.GameEvent{}).
		Where("user_id = ?", userID).
		Distinct("game_id").
		Count(&count).Error; err != nil {
		r.log.Error("Failed to count games", "user_id", userID, "error", err)
		return 0, err
	}
	return count, nil
}

func (r *gameEventRepo) CountMistakesByConcept(tx *gorm.DB, userID uuid.UUID, conceptID string, from time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.Model(&types.GameEvent{}).
		Where("user_id = ? AND severity <> ? AND created_at >= ? AND concepts LIKE ?",
			userID, types.SeverityNone, from, "%\""+conceptID+"\"%").
		Count(&count).Error; err != nil {
		r.log.Error("Failed to count mistakes", "user_id", userID, "concept_id", conceptID, "error", err)
		return 0, err
	}
	return count, nil
}
