// Package statestore reads and writes the Postgres rows the generation
// pipeline leaves behind: one row per character plus one row per generation
// attempt.
package statestore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Asset types the pipeline generates per character.
const (
	AssetHeadshot = "headshot"
	AssetBodyshot = "bodyshot"
)

// Attempt statuses observed in the attempt rows.
const (
	AttemptStatusOK       = "ok"
	AttemptStatusSoftFail = "soft_fail"
	AttemptStatusHardFail = "hard_fail"
)

// StringList is a JSONB-backed list of strings.
type StringList []string

func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// TraitMap is a JSONB-backed map of trait name to value.
type TraitMap map[string]interface{}

func (m *TraitMap) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func (m TraitMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// ReferenceImage is one entry of a character's reference_images column.
// When present these entries are authoritative over the top-level URL,
// trace and hash fields.
type ReferenceImage struct {
	Type            string `json:"type"`
	URL             string `json:"url"`
	TraceURL        string `json:"traceUrl"`
	PromptHash      string `json:"promptHash"`
	OpenAIRequestID string `json:"openaiRequestId,omitempty"`
}

// ReferenceImageList is the JSONB-backed reference_images column.
type ReferenceImageList []ReferenceImage

func (l *ReferenceImageList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func (l ReferenceImageList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// TraitVisibility is one validator verdict about a single trait.
type TraitVisibility struct {
	Trait   string `json:"trait"`
	Visible bool   `json:"visible"`
}

// LimbsSummary carries the limb portion of a validation verdict.
type LimbsSummary struct {
	LimbDifferenceConfirmed *bool `json:"limb_difference_confirmed,omitempty"`
}

// SupportWorldFit is one verdict about a mobility or sensory support fitting
// the character's world.
type SupportWorldFit struct {
	Support  string `json:"support"`
	WorldFit *bool  `json:"world_fit"`
}

// ValidationSummary is the subset of the trace validation payload persisted
// on each attempt row.
type ValidationSummary struct {
	Rating                         string            `json:"rating,omitempty"`
	IsChildSafe                    *bool             `json:"is_child_safe,omitempty"`
	TraitVisibilityPass            *bool             `json:"trait_visibility_pass,omitempty"`
	MissingTraits                  []string          `json:"missing_traits,omitempty"`
	Limbs                          *LimbsSummary     `json:"limbs,omitempty"`
	SpeciesAnatomyConfirmed        *bool             `json:"species_anatomy_confirmed,omitempty"`
	SupportWorldFit                []SupportWorldFit `json:"support_world_fit,omitempty"`
	NonhumanHumanDefault           *bool             `json:"nonhuman_human_default,omitempty"`
	NonhumanHumanDefaultConfidence *float64          `json:"nonhuman_human_default_confidence,omitempty"`
	NonhumanHumanDefaultReason     string            `json:"nonhuman_human_default_reason,omitempty"`
	TraitsVisible                  []TraitVisibility `json:"traits_visible,omitempty"`
}

// SummaryColumn is the nullable JSONB validation_summary column.
type SummaryColumn struct {
	Summary *ValidationSummary
}

func (c *SummaryColumn) Scan(src interface{}) error {
	if src == nil {
		c.Summary = nil
		return nil
	}
	c.Summary = &ValidationSummary{}
	return scanJSON(src, c.Summary)
}

func (c SummaryColumn) Value() (driver.Value, error) {
	if c.Summary == nil {
		return nil, nil
	}
	return json.Marshal(c.Summary)
}

func (c SummaryColumn) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Summary)
}

func (c *SummaryColumn) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		c.Summary = nil
		return nil
	}
	c.Summary = &ValidationSummary{}
	return json.Unmarshal(data, c.Summary)
}

// CharacterRecord is one row of the characters table.
type CharacterRecord struct {
	ID                 string             `db:"id" json:"id"`
	Name               string             `db:"name" json:"name"`
	Species            string             `db:"species" json:"species"`
	SpeciesDescription *string            `db:"species_description" json:"species_description,omitempty"`
	Traits             TraitMap           `db:"traits" json:"traits,omitempty"`
	HeadshotURL        *string            `db:"headshot_url" json:"headshot_url,omitempty"`
	BodyshotURL        *string            `db:"bodyshot_url" json:"bodyshot_url,omitempty"`
	HeadshotTraceURL   *string            `db:"headshot_trace_url" json:"headshot_trace_url,omitempty"`
	BodyshotTraceURL   *string            `db:"bodyshot_trace_url" json:"bodyshot_trace_url,omitempty"`
	HeadshotPromptHash *string            `db:"headshot_prompt_hash" json:"headshot_prompt_hash,omitempty"`
	BodyshotPromptHash *string            `db:"bodyshot_prompt_hash" json:"bodyshot_prompt_hash,omitempty"`
	GlobalStyleHash    *string            `db:"global_style_hash" json:"global_style_hash,omitempty"`
	HeadshotStatus     *string            `db:"headshot_status" json:"headshot_status,omitempty"`
	BodyshotStatus     *string            `db:"bodyshot_status" json:"bodyshot_status,omitempty"`
	CharacterState     *string            `db:"character_state" json:"character_state,omitempty"`
	GenerationStarted  *time.Time         `db:"generation_started_at" json:"generation_started_at,omitempty"`
	GenerationFinished *time.Time         `db:"generation_completed_at" json:"generation_completed_at,omitempty"`
	AppliedTraits      StringList         `db:"applied_inclusivity_traits" json:"applied_inclusivity_traits,omitempty"`
	ExcludedTraits     StringList         `db:"excluded_inclusivity_traits" json:"excluded_inclusivity_traits,omitempty"`
	ImageModel         *string            `db:"image_model" json:"image_model,omitempty"`
	CurrentHeadshotID  *string            `db:"current_headshot_attempt_id" json:"current_headshot_attempt_id,omitempty"`
	LastGoodHeadshotID *string            `db:"last_good_headshot_attempt_id" json:"last_good_headshot_attempt_id,omitempty"`
	CurrentBodyshotID  *string            `db:"current_bodyshot_attempt_id" json:"current_bodyshot_attempt_id,omitempty"`
	LastGoodBodyshotID *string            `db:"last_good_bodyshot_attempt_id" json:"last_good_bodyshot_attempt_id,omitempty"`
	FailureCodes       StringList         `db:"failure_codes" json:"failure_codes,omitempty"`
	ReferenceImages    ReferenceImageList `db:"reference_images" json:"reference_images,omitempty"`
	CanaryNonce        *string            `db:"canary_nonce" json:"canary_nonce,omitempty"`
	UserID             *string            `db:"user_id" json:"user_id,omitempty"`
	LibraryID          *string            `db:"library_id" json:"library_id,omitempty"`
}

// AttemptRecord is one row of the character_generation_attempts table.
type AttemptRecord struct {
	ID              string        `db:"id" json:"id"`
	CharacterID     string        `db:"character_id" json:"character_id"`
	AssetType       string        `db:"asset_type" json:"asset_type"`
	AttemptIndex    *int          `db:"attempt_index" json:"attempt_index"`
	Status          string        `db:"status" json:"status"`
	ImageURL        *string       `db:"image_url" json:"image_url,omitempty"`
	FailImageURL    *string       `db:"fail_image_url" json:"fail_image_url,omitempty"`
	TraceURL        *string       `db:"trace_url" json:"trace_url,omitempty"`
	OpenAIRequestID *string       `db:"openai_request_id" json:"openai_request_id,omitempty"`
	FailureCodes    StringList    `db:"failure_codes" json:"failure_codes,omitempty"`
	FailureReason   *string       `db:"failure_reason" json:"failure_reason,omitempty"`
	Validation      SummaryColumn `db:"validation_summary" json:"validation_summary"`
	FixOfAttemptID  *string       `db:"fix_of_attempt_id" json:"fix_of_attempt_id,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// IsEdit reports whether the attempt is a remediation of another attempt.
func (a *AttemptRecord) IsEdit() bool {
	return a.FixOfAttemptID != nil && *a.FixOfAttemptID != ""
}

// Index returns the attempt index, treating null as 0.
func (a *AttemptRecord) Index() int {
	if a.AttemptIndex == nil {
		return 0
	}
	return *a.AttemptIndex
}

// HasFailureCode reports whether the attempt carries the given code.
func (a *AttemptRecord) HasFailureCode(code string) bool {
	for _, c := range a.FailureCodes {
		if c == code {
			return true
		}
	}
	return false
}

// ResolvedAsset is the authoritative URL/trace/hash tuple for one asset of a
// character, preferring reference_images over the top-level columns.
type ResolvedAsset struct {
	URL             string
	TraceURL        string
	PromptHash      string
	OpenAIRequestID string
}

// ResolveAsset derives the authoritative asset tuple for the given asset type.
func (c *CharacterRecord) ResolveAsset(assetType string) ResolvedAsset {
	for _, ref := range c.ReferenceImages {
		if ref.Type == assetType {
			return ResolvedAsset{
				URL:             ref.URL,
				TraceURL:        ref.TraceURL,
				PromptHash:      ref.PromptHash,
				OpenAIRequestID: ref.OpenAIRequestID,
			}
		}
	}
	resolved := ResolvedAsset{}
	switch assetType {
	case AssetHeadshot:
		resolved.URL = deref(c.HeadshotURL)
		resolved.TraceURL = deref(c.HeadshotTraceURL)
		resolved.PromptHash = deref(c.HeadshotPromptHash)
	case AssetBodyshot:
		resolved.URL = deref(c.BodyshotURL)
		resolved.TraceURL = deref(c.BodyshotTraceURL)
		resolved.PromptHash = deref(c.BodyshotPromptHash)
	}
	return resolved
}

// AssetStatus returns the persisted status for the given asset type.
func (c *CharacterRecord) AssetStatus(assetType string) string {
	switch assetType {
	case AssetHeadshot:
		return deref(c.HeadshotStatus)
	case AssetBodyshot:
		return deref(c.BodyshotStatus)
	}
	return ""
}

// State returns the character state, empty when null.
func (c *CharacterRecord) State() string {
	return deref(c.CharacterState)
}

// LatestAttempt picks the attempt of the given asset type with the highest
// attempt index; null indices sort as 0 and ties fall to the most recent
// created_at.
func LatestAttempt(attempts []AttemptRecord, assetType string) *AttemptRecord {
	var latest *AttemptRecord
	for i := range attempts {
		attempt := &attempts[i]
		if attempt.AssetType != assetType {
			continue
		}
		if latest == nil ||
			attempt.Index() > latest.Index() ||
			(attempt.Index() == latest.Index() && attempt.CreatedAt.After(latest.CreatedAt)) {
			latest = attempt
		}
	}
	return latest
}

// EditAttempts returns the remediation attempts for the given asset type,
// preserving input order.
func EditAttempts(attempts []AttemptRecord, assetType string) []AttemptRecord {
	var edits []AttemptRecord
	for _, attempt := range attempts {
		if attempt.AssetType == assetType && attempt.IsEdit() {
			edits = append(edits, attempt)
		}
	}
	return edits
}

func scanJSON(src, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	}
	return fmt.Errorf("unsupported JSONB source type %T", src)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
