package canary

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	sharederrors "github.com/jqsirls/character-canary/pkg/shared/errors"
)

// Pool names selectable from the command line.
const (
	PoolMatrix   = "matrix"
	PoolTargeted = "targeted"
)

// MatrixPool is the broad coverage pool: one canary per interesting corner
// of the species/trait space.
func MatrixPool() []Definition {
	return []Definition{
		{
			ID:          "happy-path-human",
			Name:        "Maya",
			Age:         7,
			Species:     "human",
			Gender:      "girl",
			Ethnicities: []string{"hispanic_latino"},
			Appearance:  "curly dark hair and a yellow raincoat",
			Personality: "loves puddles and frogs",
		},
		{
			ID:                "dragon-drift",
			Name:              "Ember",
			Age:               6,
			Species:           "dragon",
			SpeciesDescriptor: "a small copper dragon with folded wings",
			PersonalityTraits: []string{"brave", "curious"},
			Expectations: &Expectations{
				RequireSpeciesTruthiness: true,
			},
		},
		{
			ID:                "elemental-embodiment",
			Name:              "Cinder",
			Age:               9,
			Species:           "elemental",
			SpeciesDescriptor: "a flickering flame spirit",
			Expectations: &Expectations{
				RequireSpeciesTruthiness: true,
			},
		},
		{
			ID:                "alien-cues",
			Name:              "Zex",
			Age:               8,
			Species:           "alien",
			SpeciesDescriptor: "teal skin and three luminous eyes",
			Expectations: &Expectations{
				RequireSpeciesTruthiness: true,
			},
		},
		{
			ID:                "superhero-human",
			Name:              "Captain Comet",
			Age:               10,
			Species:           "superhero",
			SpeciesDescriptor: "a human hero with a star-spangled cape",
			Ethnicities:       []string{"black_african_american"},
		},
		{
			ID:                "robot-reader",
			Name:              "Bolt",
			Age:               5,
			Species:           "robot",
			CharacterLanguage: "es",
			ReaderLanguage:    "es",
		},
	}
}

// TargetedPool is the expectation-driven pool exercising the inclusivity
// assertions.
func TargetedPool() []Definition {
	return []Definition{
		{
			ID:                "wheelchair-presence",
			Name:              "Rosa",
			Age:               8,
			Species:           "human",
			InclusivityTraits: []string{"wheelchair"},
			TraitUserDescriptions: map[string]string{
				"wheelchair": "a bright red wheelchair with racing stripes",
			},
			Expectations: &Expectations{
				RequireWheelchairPresence: true,
				RequireSupportWorldFit:    true,
			},
		},
		{
			ID:                "limb-difference",
			Name:              "Theo",
			Age:               9,
			Species:           "human",
			InclusivityTraits: []string{"limb_difference"},
			Expectations: &Expectations{
				RequireLimbDifference: true,
			},
		},
		{
			ID:                "mermaid-support-fit",
			Name:              "Coral",
			Age:               7,
			Species:           "mermaid",
			InclusivityTraits: []string{"hearing_aid"},
			Expectations: &Expectations{
				RequireSpeciesTruthiness: true,
				RequireSupportWorldFit:   true,
			},
		},
		{
			ID:                "fairy-glasses",
			Name:              "Wren",
			Age:               6,
			Species:           "fairy",
			InclusivityTraits: []string{"glasses"},
			PersonalityTraits: []string{"kind", "creative"},
		},
	}
}

// SelectPool returns the named built-in pool.
func SelectPool(name string) []Definition {
	switch name {
	case PoolTargeted:
		return TargetedPool()
	default:
		return MatrixPool()
	}
}

// LoadPoolFile reads additional canaries from a YAML fixture file.
func LoadPoolFile(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, sharederrors.FailedTo("read canary pool file", err)
	}
	var defs []Definition
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, sharederrors.ParseError("canary pool", "YAML", err)
	}
	return defs, nil
}

// FilterByIDs keeps the canaries whose ids appear in the comma-separated
// list; an empty filter keeps everything.
func FilterByIDs(defs []Definition, onlyCSV string) []Definition {
	onlyCSV = strings.TrimSpace(onlyCSV)
	if onlyCSV == "" {
		return defs
	}
	wanted := map[string]bool{}
	for _, id := range strings.Split(onlyCSV, ",") {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = true
		}
	}
	var filtered []Definition
	for _, def := range defs {
		if wanted[def.ID] {
			filtered = append(filtered, def)
		}
	}
	return filtered
}
