package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chesschat/coach-backend/internal/pkg/errors"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/types"
)

type AdviceInterventionRepo interface {
	Create(tx *gorm.DB, intervention *types.AdviceIntervention) error
	GetByID(tx *gorm.DB, id uuid.UUID) (*types.AdviceIntervention, error)
	GetByUserAndHash(tx *gorm.DB, userID uuid.UUID, contentHash string) (*types.AdviceIntervention, error)
	GetPendingByUser(tx *gorm.DB, userID uuid.UUID) ([]*types.AdviceIntervention, error)
	Update(tx *gorm.DB, intervention *types.AdviceIntervention) error
	RecentOutcomeCounts(tx *gorm.DB, since time.Time) (map[string]int64, error)
}

type adviceInterventionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdviceInterventionRepo(db *gorm.DB, baseLog *logger.Logger) AdviceInterventionRepo {
	repoLog := baseLog.With("repo", "AdviceInterventionRepo")
	return &adviceInterventionRepo{db: db, log: repoLog}
}

func (r *adviceInterventionRepo) Create(tx *gorm.DB, intervention *types.AdviceIntervention) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if intervention.ID == uuid.Nil {
		intervention.ID = uuid.New()
	}
	if err := transaction.Create(intervention).Error; err != nil {
		r.log.Error("Failed to create advice intervention", "user_id", intervention.UserID, "error", err)
		return err
	}
	return nil
}

func (r *adviceInterventionRepo) GetByID(tx *gorm.DB, id uuid.UUID) (*types.AdviceIntervention, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var intervention types.AdviceIntervention
	if err := transaction.Where("id = ?", id).First(&intervention).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		r.log.Error("Failed to get advice intervention by id", "id", id, "error", err)
		return nil, err
	}
	return &intervention, nil
}

func (r *adviceInterventionRepo) GetByUserAndHash(tx *gorm.DB, userID uuid.UUID, contentHash string) (*types.AdviceIntervention, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var intervention types.AdviceIntervention
	if err := transaction.Where("user_id = ? AND content_hash = ?", userID, contentHash).First(&intervention).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrNotFound
		}
		r.log.Error("Failed to get advice intervention by hash", "user_id", userID, "error", err)
		return nil, err
	}
	return &intervention, nil
}

func (r *adviceInterventionRepo) GetPendingByUser(tx *gorm.DB, userID uuid.UUID) ([]*types.AdviceIntervention, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var interventions []*types.AdviceIntervention
	if err := transaction.Where("user_id = ? AND outcome = ?", userID, types.OutcomePending).
		Order("created_at asc").
		Find(&interventions).Error; err != nil {
		r.log.Error("Failed to list pending interventions", "user_id", userID, "error", err)
		return nil, err
	}
	return interventions, nil
}

func (r *adviceInterventionRepo) Update(tx *gorm.DB, intervention *types.AdviceIntervention) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.Save(intervention).Error; err != nil {
		r.log.Error("Failed to update advice intervention", "id", intervention.ID, "error", err)
		return err
	}
	return nil
}

func (r *adviceInterventionRepo) RecentOutcomeCounts(tx *gorm.DB, since time.Time) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		Outcome string
		Count   int64
	}
	var rows []row
	if err := transaction.Model(&types.AdviceIntervention{}).
		Select("outcome, count(*) as count").
		Where("updated_at >= ?", since).
		Group("outcome").
		Find(&rows).Error; err != nil {
		r.log.Error("Failed to count recent intervention outcomes", "error", err)
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Outcome] = r.Count
	}
	return counts, nil
}
