package taxonomy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	if r.Len() == 0 {
		t.Fatalf("default taxonomy is empty")
	}
	for _, id := range []string{ConceptHangingPiece, ConceptMissedTactic, ConceptBackRank, ConceptCenterControl, ConceptEarlyQueen, ConceptKingActivity, ConceptPieceSafety, ConceptConversion} {
		if !r.Has(id) {
			t.Fatalf("default taxonomy missing %q", id)
		}
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Concept{
		{ID: "a", Name: "A", Difficulty: 1},
		{ID: "a", Name: "A again", Difficulty: 2},
	})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestNewRegistryRejectsBadDifficulty(t *testing.T) {
	_, err := NewRegistry([]Concept{{ID: "a", Name: "A", Difficulty: 9}})
	if err == nil {
		t.Fatalf("expected difficulty range error")
	}
}

func TestNewRegistryRejectsUnknownPrerequisite(t *testing.T) {
	_, err := NewRegistry([]Concept{{ID: "a", Name: "A", Difficulty: 1, Prerequisites: []string{"missing"}}})
	if err == nil {
		t.Fatalf("expected unknown prerequisite error")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	data := `concepts:
  - id: fork
    name: Forks
    category: tactics
    difficulty: 2
  - id: pin
    name: Pins
    category: tactics
    difficulty: 2
    prerequisites: [fork]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Len() != 2 || !r.Has("pin") {
		t.Fatalf("loaded registry: %d concepts", r.Len())
	}
	pin, _ := r.Get("pin")
	if len(pin.Prerequisites) != 1 || pin.Prerequisites[0] != "fork" {
		t.Fatalf("prerequisites: %+v", pin)
	}
}

func TestLoadEmptyPathFallsBack(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if r.Len() != Default().Len() {
		t.Fatalf("empty path should return the built-in taxonomy")
	}
}
