// Package validation holds input-hygiene helpers used by the authoring
// validator. Canary ids and free-text fields end up
// in SQL parameters, file paths and log lines, so they are screened here
// before anything else touches them.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	sharederrors "github.com/jqsirls/character-canary/pkg/shared/errors"
)

var (
	unsafePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)union\s+select`),
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`--`),
		regexp.MustCompile(`(?i)drop\s+table`),
		regexp.MustCompile(`(?i);\s*delete\s+from`),
	}

	canaryIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// ValidateStringInput screens a free-text value bound for SQL or logs.
func ValidateStringInput(field, value string, maxLength int) error {
	if len(value) > maxLength {
		return sharederrors.ValidationError(field, fmt.Sprintf("must be %d characters or less", maxLength))
	}
	for _, pattern := range unsafePatterns {
		if pattern.MatchString(value) {
			return sharederrors.ValidationError(field, "contains potentially unsafe characters")
		}
	}
	for _, r := range value {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return sharederrors.ValidationError(field, "contains invalid control characters")
		}
	}
	return nil
}

// ValidateCanaryID checks the shape of an authored canary id.
func ValidateCanaryID(id string) error {
	if id == "" {
		return sharederrors.ValidationError("id", "is required")
	}
	if len(id) > 64 {
		return sharederrors.ValidationError("id", "must be 64 characters or less")
	}
	if !canaryIDPattern.MatchString(id) {
		return sharederrors.ValidationError("id", "must be lowercase alphanumeric with _ or -")
	}
	return nil
}

// ValidateAssetType checks an asset type token.
func ValidateAssetType(assetType string) error {
	switch assetType {
	case "headshot", "bodyshot":
		return nil
	}
	return sharederrors.ValidationError("asset_type", fmt.Sprintf("%q is not a recognized asset type", assetType))
}

// ValidateMode checks a run mode token.
func ValidateMode(mode string) error {
	switch mode {
	case "e2e", "component":
		return nil
	}
	return sharederrors.ValidationError("mode", fmt.Sprintf("%q is not a recognized mode", mode))
}

// SanitizeForLogging strips control characters and truncates long values so a
// hostile canary description cannot mangle the log stream.
func SanitizeForLogging(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			b.WriteRune('?')
			continue
		}
		b.WriteRune(r)
	}
	result := b.String()
	if len(result) > 200 {
		result = result[:197] + "..."
	}
	return result
}
