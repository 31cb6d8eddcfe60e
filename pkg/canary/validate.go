package canary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jqsirls/character-canary/internal/validation"
	"github.com/jqsirls/character-canary/pkg/canonical"
)

// speciesAllowingEthnicity lists the species for which an ethnicity array is
// meaningful.
var speciesAllowingEthnicity = map[string]bool{
	"human":     true,
	"superhero": true,
}

var structValidator = validator.New()

// ValidateBatch applies the authoring rules to a canary pool and returns one
// human-readable error per violation. It never aborts early; the author sees
// every problem at once.
func ValidateBatch(dict canonical.Dictionary, canaries []Definition) []error {
	var errs []error
	for i := range canaries {
		errs = append(errs, validateOne(dict, &canaries[i])...)
	}
	return errs
}

func validateOne(dict canonical.Dictionary, def *Definition) []error {
	var errs []error

	if err := validation.ValidateCanaryID(def.ID); err != nil {
		errs = append(errs, fmt.Errorf("[%s] %v", def.ID, err))
	}
	if err := structValidator.Struct(def); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("[%s] %s failed %s validation", def.ID, strings.ToLower(fe.Field()), fe.Tag()))
			}
		} else {
			errs = append(errs, fmt.Errorf("[%s] %v", def.ID, err))
		}
	}

	check := func(domain, field, token string) {
		if token == "" {
			return
		}
		if err := checkCanonical(dict, domain, field, token, def.ID); err != nil {
			errs = append(errs, err)
		}
	}

	check(canonical.DomainSpecies, "species", def.Species)
	check(canonical.DomainGenders, "gender", def.Gender)
	check(canonical.DomainAgeBuckets, "ageBucket", def.AgeBucket)
	check(canonical.DomainLanguages, "characterSpokenLanguage", def.CharacterLanguage)
	check(canonical.DomainLanguages, "readerLanguage", def.ReaderLanguage)
	for _, trait := range def.PersonalityTraits {
		check(canonical.DomainPersonalityTraits, "personalityTraits", trait)
	}
	for _, trait := range def.InclusivityTraits {
		check(canonical.DomainInclusivityTraits, "inclusivityTraits", trait)
	}

	if len(def.Ethnicities) > 0 {
		speciesKey := def.Species
		if res, ok := dict.Resolve(canonical.DomainSpecies, def.Species); ok {
			speciesKey = res.Value
		}
		if !speciesAllowingEthnicity[speciesKey] {
			errs = append(errs, fmt.Errorf("[%s] ethnicity not allowed for species %q", def.ID, speciesKey))
		}
		for _, ethnicity := range def.Ethnicities {
			check(canonical.DomainEthnicities, "ethnicity", ethnicity)
		}
	}

	if len(def.TraitUserDescriptions) > 0 {
		declared := map[string]bool{}
		for _, trait := range def.InclusivityTraits {
			declared[trait] = true
		}
		keys := make([]string, 0, len(def.TraitUserDescriptions))
		for key := range def.TraitUserDescriptions {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := checkCanonical(dict, canonical.DomainInclusivityTraits, "traitUserDescriptions", key, def.ID); err != nil {
				errs = append(errs, err)
				continue
			}
			if !declared[key] {
				errs = append(errs, fmt.Errorf("[%s] traitUserDescriptions key %q not present in inclusivityTraits", def.ID, key))
			}
		}
	}

	return errs
}

// checkCanonical enforces the two-tier rule: the token must resolve, and it
// must already be the canonical spelling rather than an alias or a variant
// that merely normalizes to it.
func checkCanonical(dict canonical.Dictionary, domain, field, token, canaryID string) error {
	res, ok := dict.Resolve(domain, token)
	if !ok {
		suggestions := dict.Closest(domain, token, 3)
		return fmt.Errorf("[%s] %s is not canonical: %q (closest: %s)",
			canaryID, field, token, strings.Join(suggestions, ", "))
	}
	if token != res.Value {
		return fmt.Errorf("[%s] %s must use canonical value %q, not %q",
			canaryID, field, res.Value, token)
	}
	return nil
}
