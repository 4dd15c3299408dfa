package engine

import (
	"reflect"
	"testing"
)

func TestParseInfoScoreCP(t *testing.T) {
	line := "info depth 14 seldepth 20 multipv 1 score cp 35 nodes 123456 nps 800000 pv e2e4 e7e5 g1f3"
	info, ok := parseInfo(line)
	if !ok {
		t.Fatalf("expected scored info line")
	}
	if info.Depth != 14 {
		t.Fatalf("depth: got %d", info.Depth)
	}
	if info.ScoreCP != 35 || info.MateIn != 0 {
		t.Fatalf("score: %+v", info)
	}
	if info.Nodes != 123456 {
		t.Fatalf("nodes: got %d", info.Nodes)
	}
	if !reflect.DeepEqual(info.PV, []string{"e2e4", "e7e5", "g1f3"}) {
		t.Fatalf("pv: %v", info.PV)
	}
}

func TestParseInfoMate(t *testing.T) {
	info, ok := parseInfo("info depth 10 score mate -3 nodes 500 pv h7h8q")
	if !ok {
		t.Fatalf("expected scored info line")
	}
	if info.MateIn != -3 || info.ScoreCP != 0 {
		t.Fatalf("mate: %+v", info)
	}
}

func TestParseInfoUnscored(t *testing.T) {
	if _, ok := parseInfo("info depth 12 currmove e2e4 currmovenumber 1"); ok {
		t.Fatalf("currmove line must not count as scored")
	}
	if _, ok := parseInfo("bestmove e2e4"); ok {
		t.Fatalf("bestmove line is not an info line")
	}
}

func TestParseBestMove(t *testing.T) {
	mv, ok := parseBestMove("bestmove e2e4 ponder e7e5")
	if !ok || mv != "e2e4" {
		t.Fatalf("got %q ok=%v", mv, ok)
	}
	mv, ok = parseBestMove("bestmove (none)")
	if !ok || mv != "" {
		t.Fatalf("(none): got %q ok=%v", mv, ok)
	}
	if _, ok := parseBestMove("info depth 1"); ok {
		t.Fatalf("info line is not a bestmove")
	}
}

func TestNormalizePerspective(t *testing.T) {
	res := &Result{ScoreCP: 50, MateIn: 2}
	normalizePerspective(res, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1")
	if res.ScoreCP != -50 || res.MateIn != -2 {
		t.Fatalf("black to move should negate: %+v", res)
	}

	res = &Result{ScoreCP: 50}
	normalizePerspective(res, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if res.ScoreCP != 50 {
		t.Fatalf("white to move should pass through: %+v", res)
	}
}
