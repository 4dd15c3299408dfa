package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chesschat/coach-backend/internal/analysis/cache"
	"github.com/chesschat/coach-backend/internal/analysis/sampler"
	"github.com/chesschat/coach-backend/internal/analysis/tier"
	"github.com/chesschat/coach-backend/internal/board"
	"github.com/chesschat/coach-backend/internal/engine"
	pkgerrors "github.com/chesschat/coach-backend/internal/pkg/errors"
	"github.com/chesschat/coach-backend/internal/platform/logger"
	"github.com/chesschat/coach-backend/internal/repos"
	"github.com/chesschat/coach-backend/internal/types"
)

// IngestConfig is fixed at construction.
type IngestConfig struct {
	// Outer deadline for one ingestion. New engine calls stop at 90% of it.
	Deadline time.Duration
	// Per-position engine timeout.
	PositionTimeout time.Duration
	// Cache TTL for analyzed positions.
	CacheTTL time.Duration
	// Shadow mode computes everything but suppresses mastery and event
	// writes, for safe rollout of rule changes.
	ShadowMode bool
	// Candidate list size handed to the sampler before tier limits apply.
	MaxCandidates int
}

func (c *IngestConfig) withDefaults() IngestConfig {
	out := *c
	if out.Deadline <= 0 {
		out.Deadline = 12 * time.Second
	}
	if out.PositionTimeout <= 0 {
		out.PositionTimeout = 3 * time.Second
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = time.Hour
	}
	if out.MaxCandidates <= 0 {
		out.MaxCandidates = 12
	}
	return out
}

// IngestRequest is one finished game.
type IngestRequest struct {
	UserID   uuid.UUID
	GameID   string
	StartFEN string
	Moves    []string
	// Side the user played ("white"/"black"). Empty tracks both sides.
	Side     string
	Priority string
}

// AccuracySummary aggregates the analyzed plies of one game.
type AccuracySummary struct {
	PliesAnalyzed int     `json:"plies_analyzed"`
	Blunders      int     `json:"blunders"`
	Mistakes      int     `json:"mistakes"`
	Inaccuracies  int     `json:"inaccuracies"`
	AvgLossCP     float64 `json:"avg_loss_cp"`
}

// IngestResult is the caller-visible outcome. Always best-effort: a partial
// analysis is flagged, never silently presented as complete.
type IngestResult struct {
	GameID            string          `json:"game_id"`
	Tier              string          `json:"tier"`
	PositionsAnalyzed int             `json:"positions_analyzed"`
	ConceptsUpdated   []string        `json:"concepts_updated"`
	ShadowMode        bool            `json:"shadow_mode"`
	Partial           bool            `json:"partial"`
	Accuracy          AccuracySummary `json:"accuracy"`
}

type IngestService interface {
	IngestGame(ctx context.Context, req IngestRequest) (*IngestResult, error)
}

type ingestService struct {
	cfg           IngestConfig
	pool          *engine.Pool
	store         cache.Store
	extractor     ExtractorService
	mastery       MasteryService
	interventions InterventionService
	events        repos.GameEventRepo
	log           *logger.Logger
	now           func() time.Time
}

func NewIngestService(cfg IngestConfig, pool *engine.Pool, store cache.Store, extractor ExtractorService, mastery MasteryService, interventions InterventionService, events repos.GameEventRepo, baseLog *logger.Logger) IngestService {
	return &ingestService{
		cfg:           cfg.withDefaults(),
		pool:          pool,
		store:         store,
		extractor:     extractor,
		mastery:       mastery,
		interventions: interventions,
		events:        events,
		log:           baseLog.With("service", "IngestService"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// IngestGame runs the full pipeline: replay and validate the game, sample
// candidate plies, pick an analysis tier against the remaining budget,
// evaluate the sampled positions through the cache and the engine pool,
// extract mistakes and concepts, apply mastery updates in game order, log
// the events, and advance any pending advice interventions. Only malformed
// input is a hard failure; engine trouble degrades to a partial result.
func (s *ingestService) IngestGame(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user id", pkgerrors.ErrInvalidArgument)
	}
	if req.GameID == "" {
		return nil, fmt.Errorf("%w: missing game id", pkgerrors.ErrInvalidArgument)
	}
	if len(req.Moves) == 0 {
		return nil, fmt.Errorf("%w: empty move list", pkgerrors.ErrInvalidArgument)
	}

	started := s.now()
	game, err := board.Replay(req.StartFEN, req.Moves)
	if err != nil {
		return nil, err
	}

	candidates := sampler.SelectCandidates(game.Plies, s.cfg.MaxCandidates)

	budget := int(s.cfg.Deadline / time.Millisecond)
	snap := s.pool.Health().Snapshot()
	chosen := tier.Select(tier.Inputs{
		RemainingBudgetMs: budget,
		Priority:          req.Priority,
		PlyCount:          len(game.Plies),
		Engine:            snap,
	})
	allowed := tier.ShrinkPositions(chosen, budget, snap.AvgPositionTime)

	plies, fens := s.planPositions(game, candidates, allowed)
	evals, partial := s.analyze(ctx, started, chosen, fens)

	events := s.extractor.Extract(req.UserID, req.GameID, game, plies, evals)
	result := &IngestResult{
		GameID:            req.GameID,
		Tier:              chosen.Name,
		PositionsAnalyzed: len(evals),
		ShadowMode:        s.cfg.ShadowMode,
		Partial:           partial || len(events) < len(plies),
		Accuracy:          summarize(events),
		ConceptsUpdated:   []string{},
	}

	if s.cfg.ShadowMode {
		s.log.Info("Shadow mode: suppressing writes",
			"user_id", req.UserID, "game_id", req.GameID, "events", len(events))
		result.ConceptsUpdated = conceptUnion(events, req.Side)
		return result, nil
	}

	result.ConceptsUpdated = s.applyMastery(req, events)

	if err := s.events.CreateBatch(nil, events); err != nil {
		s.log.Error("Failed to append game events", "game_id", req.GameID, "error", err)
	}
	if err := s.interventions.OnGameIngested(req.UserID, events); err != nil {
		s.log.Error("Failed to advance interventions", "user_id", req.UserID, "error", err)
	}

	s.log.Info("Game ingested",
		"user_id", req.UserID,
		"game_id", req.GameID,
		"tier", chosen.Name,
		"positions", len(evals),
		"events", len(events),
		"partial", result.Partial,
		"elapsed", s.now().Sub(started))
	return result, nil
}

// planPositions walks the ranked candidates and collects plies until the
// set of distinct positions they need exceeds the tier allowance. A ply
// needs evaluations on both sides of its move; consecutive plies share one.
func (s *ingestService) planPositions(game *board.Game, candidates []sampler.Candidate, allowed int) ([]int, []string) {
	seen := map[string]bool{}
	fens := []string{}
	plies := []int{}
	for _, c := range candidates {
		ply := &game.Plies[c.Ply]
		kb := board.NormalizedKey(ply.FENBefore)
		ka := board.NormalizedKey(ply.FENAfter)
		need := 0
		if !seen[kb] {
			need++
		}
		if !seen[ka] {
			need++
		}
		if len(seen)+need > allowed {
			continue
		}
		if !seen[kb] {
			seen[kb] = true
			fens = append(fens, ply.FENBefore)
		}
		if !seen[ka] {
			seen[ka] = true
			fens = append(fens, ply.FENAfter)
		}
		plies = append(plies, c.Ply)
	}
	return plies, fens
}

// analyze evaluates the given positions concurrently across the pool,
// through the cache. Engine failures skip the position; once elapsed time
// crosses 90% of the deadline no new engine calls are issued and the run
// is marked partial.
func (s *ingestService) analyze(ctx context.Context, started time.Time, chosen tier.Tier, fens []string) (map[string]*engine.Result, bool) {
	softDeadline := started.Add(s.cfg.Deadline * 9 / 10)

	var mu sync.Mutex
	evals := make(map[string]*engine.Result, len(fens))
	partial := false

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.pool.Stats().Size)

	for _, fen := range fens {
		fen := fen
		g.Go(func() error {
			if cached, ok := s.store.Get(gctx, fen, chosen.Depth); ok {
				mu.Lock()
				evals[board.NormalizedKey(fen)] = cached
				mu.Unlock()
				return nil
			}
			if s.now().After(softDeadline) {
				return pkgerrors.ErrBudgetExceeded
			}
			res, err := s.evaluate(gctx, fen, chosen.Depth)
			if err != nil {
				mu.Lock()
				partial = true
				mu.Unlock()
				return nil
			}
			s.store.Put(gctx, fen, chosen.Depth, res, s.cfg.CacheTTL)
			mu.Lock()
			evals[board.NormalizedKey(fen)] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		partial = true
		if errors.Is(err, pkgerrors.ErrBudgetExceeded) {
			s.log.Warn("Analysis budget exhausted before all positions were evaluated",
				"evaluated", len(evals), "requested", len(fens))
		}
	}
	return evals, partial
}

// evaluate runs one engine call, recording health signals. Timeouts and
// crashes are absorbed here; the handle goes back to the pool which drops
// it if unhealthy.
func (s *ingestService) evaluate(ctx context.Context, fen string, depth int) (*engine.Result, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(h)

	start := s.now()
	res, err := h.Analyze(ctx, engine.Request{
		FEN:        fen,
		Depth:      depth,
		SkillLevel: -1,
		Timeout:    s.cfg.PositionTimeout,
	})
	health := s.pool.Health()
	switch {
	case errors.Is(err, engine.ErrEngineTimeout):
		health.RecordTimeout()
		s.log.Warn("Engine timeout, skipping position", "fen", fen)
		return nil, err
	case errors.Is(err, engine.ErrEngineCrashed):
		health.RecordCrash()
		s.log.Warn("Engine crashed, skipping position", "fen", fen)
		return nil, err
	case err != nil:
		return nil, err
	}
	health.RecordLatency(s.now().Sub(start))
	return res, nil
}

// applyMastery feeds extractor events to the mastery tracker in ply order.
// Events stay ordered even though the engine evaluated positions out of
// order, so state updates replay the game chronologically.
func (s *ingestService) applyMastery(req IngestRequest, events []*types.GameEvent) []string {
	updated := map[string]bool{}
	for _, ev := range events {
		if req.Side != "" && ev.Side != req.Side {
			continue
		}
		outcome := OutcomeSuccess
		if ev.Severity == types.SeverityMistake || ev.Severity == types.SeverityBlunder {
			outcome = OutcomeMistake
		}
		for _, conceptID := range unmarshalStrings(ev.Concepts) {
			evidence := &types.EvidenceRef{
				GameID:   ev.GameID,
				Ply:      ev.Ply,
				FEN:      ev.FENBefore,
				Severity: ev.Severity,
				SeenAt:   ev.CreatedAt,
			}
			if _, err := s.mastery.Update(req.UserID, conceptID, outcome, evidence); err != nil {
				s.log.Error("Mastery update failed", "concept_id", conceptID, "error", err)
				continue
			}
			updated[conceptID] = true
		}
	}
	return sortedKeys(updated)
}

func conceptUnion(events []*types.GameEvent, side string) []string {
	set := map[string]bool{}
	for _, ev := range events {
		if side != "" && ev.Side != side {
			continue
		}
		for _, id := range unmarshalStrings(ev.Concepts) {
			set[id] = true
		}
	}
	return sortedKeys(set)
}

func summarize(events []*types.GameEvent) AccuracySummary {
	sum := AccuracySummary{PliesAnalyzed: len(events)}
	totalLoss := 0
	for _, ev := range events {
		switch ev.Severity {
		case types.SeverityBlunder:
			sum.Blunders++
		case types.SeverityMistake:
			sum.Mistakes++
		case types.SeverityInaccuracy:
			sum.Inaccuracies++
		}
		if ev.Delta < 0 {
			totalLoss += -ev.Delta
		}
	}
	if len(events) > 0 {
		sum.AvgLossCP = float64(totalLoss) / float64(len(events))
	}
	return sum
}
