package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chesschat/coach-backend/internal/pkg/errors"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/types"
)

type ConceptStateRepo interface {
	Create(tx *gorm.DB, state *types.ConceptState) error
	GetByUserAndConcept(tx *gorm.DB, userID uuid.UUID, conceptID string) (*types.ConceptState, error)
	GetByUser(tx *gorm.DB, userID uuid.UUID) ([]*types.ConceptState, error)
	Save(tx *gorm.DB, state *types.ConceptState) error
}

type conceptStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptStateRepo(db *gorm.DB, baseLog *logger.Logger) ConceptStateRepo {
	repoLog := baseLog.With("repo", "ConceptStateRepo")
	return &conceptStateRepo{db: db, log: repoLog}
}

func (r *conceptStateRepo) Create(tx *gorm.DB, state *types.ConceptState) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if err := transaction.Create(state).Error; err != nil {
		r.log.Error("Failed to create concept state", "user_id", state.UserID, "concept_id", state.ConceptID, "error", err)
		return err
	}
	return nil
}

func (r *conceptStateRepo) GetByUserAndConcept(tx *gorm.DB, userID uuid.UUID, conceptID string) (*types.ConceptState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var state types.ConceptState
	if err := transaction.Where("user_id = ? AND concept_id = ?", userID, conceptID).First(&state).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		r.log.Error("Failed to get concept state", "user_id", userID, "concept_id", conceptID, "error", err)
		return nil, err
	}
	return &state, nil
}

func (r *conceptStateRepo) GetByUser(tx *gorm.DB, userID uuid.UUID) ([]*types.ConceptState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var states []*types.ConceptState
	if err := transaction.Where("user_id = ? AND archived = ?", userID, false).Order("concept_id asc").Find(&states).Error; err != nil {
		r.log.Error("Failed to list concept states", "user_id", userID, "error", err)
		return nil, err
	}
	return states, nil
}

func (r *conceptStateRepo) Save(tx *gorm.DB, state *types.ConceptState) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if err := transaction.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "concept_id"}},
		UpdateAll: true,
	}).Create(state).Error; err != nil {
		r.log.Error("Failed to save concept state", "user_id", state.UserID, "concept_id", state.ConceptID, "error", err)
		return err
	}
	return nil
}
