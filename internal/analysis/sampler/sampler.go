package sampler

import (
	"sort"

	"github.com/chesschat/coach-backend/internal/board"
)

// Priority scores per ply feature. A ply takes the highest score among the
// features it carries; ties between plies break by ply order.
const (
	priorityMate      = 10
	priorityPromotion = 5
	priorityCheck     = 4
	priorityCapture   = 3
	prioritySwing     = 2
	priorityDefault   = 1

	// A material swing of a minor piece or more counts as "large" even when
	// the move itself was not a capture (promotions, missed recaptures).
	largeSwingCP = 250

	// Plies at both ends of the game are always kept: openings and final
	// sequences anchor the coaching narrative regardless of priority.
	bookendPlies = 2
)

// Candidate is a scored ply.
type Candidate struct {
	Ply      int
	Priority int
}

// SelectCandidates ranks the plies of a finished game by tactical interest,
// independent of any budget decision. The result is capped at maxCandidates
// and sorted by (priority desc, ply asc).
func SelectCandidates(plies []board.Ply, maxCandidates int) []Candidate {
	if len(plies) == 0 || maxCandidates <= 0 {
		return nil
	}

	scored := make([]Candidate, len(plies))
	for i := range plies {
		scored[i] = Candidate{Ply: i, Priority: scorePly(&plies[i])}
	}

	picked := make(map[int]bool, maxCandidates)
	out := make([]Candidate, 0, maxCandidates)

	// Bookends first.
	for i := 0; i < len(plies) && i < bookendPlies; i++ {
		if len(out) < maxCandidates && !picked[i] {
			picked[i] = true
			out = append(out, scored[i])
		}
	}
	for i := len(plies) - bookendPlies; i < len(plies); i++ {
		if i >= 0 && len(out) < maxCandidates && !picked[i] {
			picked[i] = true
			out = append(out, scored[i])
		}
	}

	// Then the rest by priority.
	rest := make([]Candidate, 0, len(scored))
	for _, c := range scored {
		if !picked[c.Ply] {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Priority != rest[j].Priority {
			return rest[i].Priority > rest[j].Priority
		}
		return rest[i].Ply < rest[j].Ply
	})
	for _, c := range rest {
		if len(out) >= maxCandidates {
			break
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Ply < out[j].Ply
	})
	return out
}

func scorePly(p *board.Ply) int {
	switch {
	case p.IsMate:
		return priorityMate
	case p.IsPromotion:
		return priorityPromotion
	case p.IsCheck:
		return priorityCheck
	case p.IsCapture:
		return priorityCapture
	case p.MaterialSwing >= largeSwingCP:
		return prioritySwing
	default:
		return priorityDefault
	}
}
