package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chesschat/coach-backend/internal/repos"
	"github.com/chesschat/coach-backend/internal/repos/testutil"
	"github.com/chesschat/coach-backend/internal/services"
	"github.com/chesschat/coach-backend/internal/taxonomy"
)

func newPlanRouterForTest(t *testing.T) (*gin.Engine, services.MasteryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	log := testutil.NewLogger(t)
	stateRepo := repos.NewConceptStateRepo(db, log)
	mastery := services.NewMasteryService(stateRepo, log)
	planner := services.NewPlannerService(stateRepo, taxonomy.Default(), log)

	h := NewPlanHandler(planner, mastery)
	r := gin.New()
	r.GET("/api/users/:userId/practice-plan", h.GetPracticePlan)
	r.POST("/api/users/:userId/practice/:conceptId/complete", h.CompletePractice)
	return r, mastery
}

func TestCompletePractice(t *testing.T) {
	r, mastery := newPlanRouterForTest(t)
	userID := uuid.New()
	if _, err := mastery.Update(userID, taxonomy.ConceptPieceSafety, services.OutcomeMistake, nil); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/"+userID.String()+"/practice/"+taxonomy.ConceptPieceSafety+"/complete", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("complete practice: status %d body %s", w.Code, w.Body.String())
	}

	states, err := mastery.GetStates(userID)
	if err != nil {
		t.Fatalf("states: %v", err)
	}
	if len(states) != 1 || states[0].LastPracticedAt == nil {
		t.Fatalf("practice completion must stamp lastPracticedAt: %+v", states)
	}
}

func TestCompletePracticeUnknownConcept(t *testing.T) {
	r, _ := newPlanRouterForTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/"+uuid.NewString()+"/practice/never_tracked/complete", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("untracked concept: status %d body %s", w.Code, w.Body.String())
	}
}

func TestCompletePracticeBadUserID(t *testing.T) {
	r, _ := newPlanRouterForTest(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/not-a-uuid/practice/piece_safety/complete", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad user id: status %d body %s", w.Code, w.Body.String())
	}
}
