package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Concept is a static taxonomy entry. The registry is loaded once at
// startup and never mutated.
type Concept struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Category      string   `yaml:"category" json:"category"`
	Difficulty    int      `yaml:"difficulty" json:"difficulty"`
	Prerequisites []string `yaml:"prerequisites,omitempty" json:"prerequisites,omitempty"`
}

type Registry struct {
	byID    map[string]Concept
	ordered []Concept
}

type taxonomyFile struct {
	Concepts []Concept `yaml:"concepts"`
}

// Load reads a taxonomy YAML file. Falls back to the built-in set when the
// path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	var f taxonomyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	return NewRegistry(f.Concepts)
}

func NewRegistry(concepts []Concept) (*Registry, error) {
	if len(concepts) == 0 {
		return nil, fmt.Errorf("taxonomy has no concepts")
	}
	byID := make(map[string]Concept, len(concepts))
	for _, c := range concepts {
		if c.ID == "" {
			return nil, fmt.Errorf("taxonomy concept with empty id")
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate concept id %q", c.ID)
		}
		if c.Difficulty < 1 || c.Difficulty > 5 {
			return nil, fmt.Errorf("concept %q difficulty %d out of range 1-5", c.ID, c.Difficulty)
		}
		byID[c.ID] = c
	}
	for _, c := range concepts {
		for _, pre := range c.Prerequisites {
			if _, ok := byID[pre]; !ok {
				return nil, fmt.Errorf("concept %q prerequisite %q not in taxonomy", c.ID, pre)
			}
		}
	}
	return &Registry{byID: byID, ordered: append([]Concept(nil), concepts...)}, nil
}

func (r *Registry) Get(id string) (Concept, bool) {
	c, ok := r.byID[id]
	return c, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Registry) All() []Concept {
	return append([]Concept(nil), r.ordered...)
}

func (r *Registry) Len() int { return len(r.ordered) }

// Concept ids the extractor emits. Kept in one place so the extractor and
// the built-in taxonomy cannot drift apart.
const (
	ConceptHangingPiece  = "hanging_piece"
	ConceptMissedTactic  = "missed_tactic"
	ConceptBackRank      = "back_rank_weakness"
	ConceptCenterControl = "center_control"
	ConceptEarlyQueen    = "early_queen_development"
	ConceptKingActivity  = "endgame_king_activity"
	ConceptPieceSafety   = "piece_safety"
	ConceptConversion    = "winning_conversion"
)

// Default is the built-in taxonomy used when no file is configured.
func Default() *Registry {
	r, err := NewRegistry([]Concept{
		{ID: ConceptPieceSafety, Name: "Piece safety", Category: "tactics", Difficulty: 1},
		{ID: ConceptHangingPiece, Name: "Hanging pieces", Category: "tactics", Difficulty: 1, Prerequisites: []string{ConceptPieceSafety}},
		{ID: ConceptMissedTactic, Name: "Missed tactics", Category: "tactics", Difficulty: 2, Prerequisites: []string{ConceptPieceSafety}},
		{ID: ConceptBackRank, Name: "Back-rank weakness", Category: "king-safety", Difficulty: 2},
		{ID: ConceptCenterControl, Name: "Center control", Category: "opening", Difficulty: 1},
		{ID: ConceptEarlyQueen, Name: "Early queen development", Category: "opening", Difficulty: 1},
		{ID: ConceptKingActivity, Name: "King activity in the endgame", Category: "endgame", Difficulty: 3},
		{ID: ConceptConversion, Name: "Converting winning positions", Category: "strategy", Difficulty: 4, Prerequisites: []string{ConceptMissedTactic}},
	})
	if err != nil {
		panic(err)
	}
	return r
}
