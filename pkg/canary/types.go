// Package canary defines the authored canary inputs, their normalized form,
// the built-in pools, authoring validation and the per-canary run report.
package canary

import (
	"regexp"
	"strings"
	"time"

	"github.com/jqsirls/character-canary/pkg/genservice"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

// Expectations are the per-canary assertion toggles.
type Expectations struct {
	RequireLimbDifference     bool `json:"requireLimbDifference,omitempty" yaml:"requireLimbDifference,omitempty"`
	RequireWheelchairPresence bool `json:"requireWheelchairPresence,omitempty" yaml:"requireWheelchairPresence,omitempty"`
	RequireSpeciesTruthiness  bool `json:"requireSpeciesTruthiness,omitempty" yaml:"requireSpeciesTruthiness,omitempty"`
	RequireSupportWorldFit    bool `json:"requireSupportWorldFit,omitempty" yaml:"requireSupportWorldFit,omitempty"`
}

// Definition is one authored canary. Immutable once validated.
type Definition struct {
	ID                    string            `json:"id" yaml:"id" validate:"required"`
	Name                  string            `json:"name" yaml:"name" validate:"required"`
	Age                   int               `json:"age" yaml:"age" validate:"gte=1"`
	AgeBucket             string            `json:"ageBucket,omitempty" yaml:"ageBucket,omitempty"`
	Gender                string            `json:"gender,omitempty" yaml:"gender,omitempty"`
	Species               string            `json:"species" yaml:"species" validate:"required"`
	SpeciesDescriptor     string            `json:"speciesDescriptor,omitempty" yaml:"speciesDescriptor,omitempty"`
	Appearance            string            `json:"appearance,omitempty" yaml:"appearance,omitempty"`
	Personality           string            `json:"personality,omitempty" yaml:"personality,omitempty"`
	AboutThem             string            `json:"aboutThem,omitempty" yaml:"aboutThem,omitempty"`
	PersonalityTraits     []string          `json:"personalityTraits,omitempty" yaml:"personalityTraits,omitempty"`
	Ethnicities           []string          `json:"ethnicity,omitempty" yaml:"ethnicity,omitempty"`
	InclusivityTraits     []string          `json:"inclusivityTraits,omitempty" yaml:"inclusivityTraits,omitempty"`
	TraitUserDescriptions map[string]string `json:"traitUserDescriptions,omitempty" yaml:"traitUserDescriptions,omitempty"`
	CharacterLanguage     string            `json:"characterSpokenLanguage,omitempty" yaml:"characterSpokenLanguage,omitempty"`
	ReaderLanguage        string            `json:"readerLanguage,omitempty" yaml:"readerLanguage,omitempty"`
	Expectations          *Expectations     `json:"expectations,omitempty" yaml:"expectations,omitempty"`
}

// NormalizedInput is the canonical invocation payload for one canary.
type NormalizedInput struct {
	CanaryID              string            `json:"canaryId"`
	Name                  string            `json:"name"`
	Age                   int               `json:"age"`
	AgeBucket             string            `json:"ageBucket"`
	Gender                string            `json:"gender,omitempty"`
	Species               string            `json:"species"`
	Appearance            string            `json:"appearance,omitempty"`
	Personality           string            `json:"personality,omitempty"`
	PersonalityTraits     []string          `json:"personalityTraits,omitempty"`
	Ethnicities           []string          `json:"ethnicity,omitempty"`
	InclusivityTraits     []string          `json:"inclusivityTraits,omitempty"`
	TraitUserDescriptions map[string]string `json:"traitUserDescriptions,omitempty"`
	CharacterLanguage     string            `json:"characterSpokenLanguage"`
	ReaderLanguage        string            `json:"readerLanguage"`
	Expectations          Expectations      `json:"expectations"`
}

var wholeWordHuman = regexp.MustCompile(`(?i)\bhuman\b`)

// IsExplicitHuman reports whether a species resolves to an explicitly human
// depiction: the human species itself, or a superhero whose descriptor names
// a human.
func IsExplicitHuman(speciesKey, descriptor string) bool {
	switch speciesKey {
	case "human":
		return true
	case "superhero":
		return wholeWordHuman.MatchString(descriptor)
	}
	return false
}

// TraceSnapshot preserves a fetched trace for the artifact stream.
type TraceSnapshot struct {
	AssetType string                 `json:"asset_type"`
	URL       string                 `json:"url"`
	Trace     map[string]interface{} `json:"trace,omitempty"`
}

// AssetReport is the resolved view of one asset in the run report.
type AssetReport struct {
	URL        string `json:"url,omitempty"`
	TraceURL   string `json:"trace_url,omitempty"`
	Status     string `json:"status,omitempty"`
	PromptHash string `json:"prompt_hash,omitempty"`
}

// FireRateStats counts how often each validator failure code fired during
// one canary.
type FireRateStats struct {
	Total   int            `json:"total"`
	ByCode  map[string]int `json:"by_code,omitempty"`
	ByClass map[string]int `json:"by_class,omitempty"`
}

// RunReport is the per-canary verdict appended to the canary JSONL.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Input NormalizedInput `json:"input"`
	Mode  string          `json:"mode"`

	Status string `json:"status"`

	InstrumentationErrors []string `json:"instrumentation_errors"`
	HardFailErrors        []string `json:"hard_fail_errors"`
	SoftIssues            []string `json:"soft_issues"`

	CharacterID string `json:"character_id,omitempty"`

	Headshot AssetReport `json:"headshot"`
	Bodyshot AssetReport `json:"bodyshot"`

	Attempts  []statestore.AttemptRecord  `json:"attempts,omitempty"`
	Summaries []AttemptSummary            `json:"validation_summaries,omitempty"`
	FireRates FireRateStats               `json:"validator_fire_rates"`
	Snapshot  *genservice.SnapshotReceipt `json:"public_snapshot,omitempty"`
	Traces    []TraceSnapshot             `json:"trace_snapshots,omitempty"`
}

// AttemptSummary pairs an attempt with its validation summary for the
// report.
type AttemptSummary struct {
	AttemptID string                        `json:"attempt_id"`
	AssetType string                        `json:"asset_type"`
	Summary   *statestore.ValidationSummary `json:"summary,omitempty"`
}

// Passed reports whether the canary passed: any hard failure or
// instrumentation error fails it, soft issues never do.
func (r *RunReport) Passed() bool {
	return len(r.HardFailErrors) == 0 && len(r.InstrumentationErrors) == 0
}

// FinalizeStatus sets the status field from the error lists.
func (r *RunReport) FinalizeStatus() {
	if r.Passed() {
		r.Status = "pass"
	} else {
		r.Status = "fail"
	}
}

// mergeFreeText joins two free-text fragments with a single space.
func mergeFreeText(primary, secondary string) string {
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)
	switch {
	case primary == "":
		return secondary
	case secondary == "":
		return primary
	}
	return primary + " " + secondary
}
