package canary

import (
	"github.com/jqsirls/character-canary/pkg/canonical"
)

// Defaults applied during normalization.
const (
	DefaultLanguage  = "en"
	DefaultAgeBucket = "early_reader"
)

// Normalize produces the canonical invocation payload for a validated
// definition: species resolved to its canonical key, descriptor merged into
// appearance, about-them merged into personality, language and age-bucket
// defaults applied.
func Normalize(dict canonical.Dictionary, def *Definition) NormalizedInput {
	species := def.Species
	if res, ok := dict.Resolve(canonical.DomainSpecies, def.Species); ok {
		species = res.Value
	}

	input := NormalizedInput{
		CanaryID:          def.ID,
		Name:              def.Name,
		Age:               def.Age,
		AgeBucket:         def.AgeBucket,
		Gender:            def.Gender,
		Species:           species,
		Appearance:        mergeFreeText(def.Appearance, def.SpeciesDescriptor),
		Personality:       mergeFreeText(def.Personality, def.AboutThem),
		PersonalityTraits: append([]string(nil), def.PersonalityTraits...),
		Ethnicities:       append([]string(nil), def.Ethnicities...),
		InclusivityTraits: append([]string(nil), def.InclusivityTraits...),
		CharacterLanguage: def.CharacterLanguage,
		ReaderLanguage:    def.ReaderLanguage,
	}

	if len(def.TraitUserDescriptions) > 0 {
		input.TraitUserDescriptions = make(map[string]string, len(def.TraitUserDescriptions))
		for key, description := range def.TraitUserDescriptions {
			input.TraitUserDescriptions[key] = description
		}
	}

	if input.AgeBucket == "" {
		input.AgeBucket = bucketForAge(def.Age)
	}
	if input.CharacterLanguage == "" {
		input.CharacterLanguage = DefaultLanguage
	}
	if input.ReaderLanguage == "" {
		input.ReaderLanguage = DefaultLanguage
	}
	if def.Expectations != nil {
		input.Expectations = *def.Expectations
	}

	return input
}

func bucketForAge(age int) string {
	switch {
	case age <= 4:
		return "toddler"
	case age <= 7:
		return "early_reader"
	case age <= 12:
		return "middle_grade"
	default:
		return "young_teen"
	}
}
