package sampler

import (
	"testing"

	"github.com/chesschat/coach-backend/internal/board"
)

func plainPlies(n int) []board.Ply {
	plies := make([]board.Ply, n)
	for i := range plies {
		plies[i] = board.Ply{Index: i}
	}
	return plies
}

func TestSelectCandidatesCapAndOrder(t *testing.T) {
	plies := plainPlies(30)
	plies[10].IsCapture = true
	plies[15].IsCheck = true
	plies[20].IsMate = true

	out := SelectCandidates(plies, 6)
	if len(out) != 6 {
		t.Fatalf("expected 6 candidates, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if cur.Priority > prev.Priority {
			t.Fatalf("not sorted by priority desc: %+v", out)
		}
		if cur.Priority == prev.Priority && cur.Ply < prev.Ply {
			t.Fatalf("ties must break by ply asc: %+v", out)
		}
	}
	if out[0].Ply != 20 || out[0].Priority != 10 {
		t.Fatalf("mate ply should rank first: %+v", out[0])
	}
}

func TestSelectCandidatesBookends(t *testing.T) {
	plies := plainPlies(40)
	for i := 5; i < 35; i++ {
		plies[i].IsCapture = true
	}

	out := SelectCandidates(plies, 8)
	got := map[int]bool{}
	for _, c := range out {
		got[c.Ply] = true
	}
	for _, want := range []int{0, 1, 38, 39} {
		if !got[want] {
			t.Fatalf("bookend ply %d missing from %v", want, out)
		}
	}
}

func TestSelectCandidatesPriorities(t *testing.T) {
	plies := plainPlies(12)
	plies[4].IsMate = true
	plies[5].IsPromotion = true
	plies[6].IsCheck = true
	plies[7].IsCapture = true
	plies[8].MaterialSwing = 300

	out := SelectCandidates(plies, 12)
	want := map[int]int{4: 10, 5: 5, 6: 4, 7: 3, 8: 2, 0: 1}
	for _, c := range out {
		if p, ok := want[c.Ply]; ok && c.Priority != p {
			t.Fatalf("ply %d priority: got %d want %d", c.Ply, c.Priority, p)
		}
	}
}

func TestSelectCandidatesEmpty(t *testing.T) {
	if out := SelectCandidates(nil, 5); out != nil {
		t.Fatalf("nil plies should give nil candidates")
	}
	if out := SelectCandidates(plainPlies(5), 0); out != nil {
		t.Fatalf("zero cap should give nil candidates")
	}
}

func TestSelectCandidatesShortGame(t *testing.T) {
	out := SelectCandidates(plainPlies(3), 10)
	if len(out) != 3 {
		t.Fatalf("short game should return every ply, got %d", len(out))
	}
}
