package app

import (
	"gorm.io/gorm"

	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/repos"
)

type Repos struct {
	ConceptStates repos.ConceptStateRepo
	GameEvents    repos.GameEventRepo
	Interventions repos.AdviceInterventionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		ConceptStates: repos.NewConceptStateRepo(db, log),
		GameEvents:    repos.NewGameEventRepo(db, log),
		Interventions: repos.NewAdviceInterventionRepo(db, log),
	}
}
