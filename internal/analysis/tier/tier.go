package tier

import (
	"time"

	"github.com/chesschat/coach-backend/internal/engine"
)

// Tier is a fixed (position-count, search-depth) analysis budget level.
// Fixed tiers keep cost predictable; the dynamic shrink below adapts the
// position count to live engine behavior.
type Tier struct {
	Name         string
	MaxPositions int
	Depth        int
	EstimatedMs  int
}

var (
	TierA = Tier{Name: "A", MaxPositions: 2, Depth: 12, EstimatedMs: 1000}
	TierB = Tier{Name: "B", MaxPositions: 4, Depth: 14, EstimatedMs: 2500}
	TierC = Tier{Name: "C", MaxPositions: 6, Depth: 16, EstimatedMs: 5000}
)

const (
	minBudgetMs    = 2000
	slowEngineP90  = 300 * time.Millisecond
	shortGamePlies = 20
	budgetSafety   = 0.8
	PriorityHigh   = "high"
)

// Inputs for one selection. Deterministic: identical inputs always produce
// the identical tier.
type Inputs struct {
	RemainingBudgetMs int
	Priority          string
	PlyCount          int
	Engine            engine.Snapshot
}

// Select picks the analysis tier. Rule order, first match wins:
// a tight budget or a slow engine forces Tier A; high-priority or short
// games get Tier C when the engine is healthy and the budget covers it;
// a healthy engine with a Tier B budget gets B; everything else gets A.
// A cold-started engine is downgraded one tier.
func Select(in Inputs) Tier {
	t := selectBase(in)
	if in.Engine.ColdStart {
		t = downgrade(t)
	}
	return t
}

func selectBase(in Inputs) Tier {
	healthy := in.Engine.Healthy
	budget := in.RemainingBudgetMs
	switch {
	case budget < minBudgetMs:
		return TierA
	case in.Engine.P90 > slowEngineP90:
		return TierA
	case in.Priority == PriorityHigh && healthy && budget >= TierC.EstimatedMs:
		return TierC
	case in.PlyCount <= shortGamePlies && healthy && budget >= TierC.EstimatedMs:
		return TierC
	case healthy && budget >= TierB.EstimatedMs:
		return TierB
	default:
		return TierA
	}
}

func downgrade(t Tier) Tier {
	switch t.Name {
	case TierC.Name:
		return TierB
	case TierB.Name:
		return TierA
	default:
		return t
	}
}

// ShrinkPositions adapts the tier's position count to observed per-position
// engine time, leaving a safety margin against the remaining budget. At
// least one position always survives.
func ShrinkPositions(t Tier, remainingBudgetMs int, avgPositionTime time.Duration) int {
	avgMs := int(avgPositionTime / time.Millisecond)
	if avgMs <= 0 {
		avgMs = t.EstimatedMs / t.MaxPositions
	}
	n := int(budgetSafety * float64(remainingBudgetMs) / float64(avgMs))
	if n > t.MaxPositions {
		n = t.MaxPositions
	}
	if n < 1 {
		n = 1
	}
	return n
}
