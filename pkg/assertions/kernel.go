// Package assertions implements the invariant checks the canary runner
// applies to a completed generation: URL hygiene, cross-consistency with the
// invocation echo, expectation-driven contract checks and the nonhuman drift
// chain. Every finding lands in exactly one of three classes.
package assertions

import (
	"encoding/json"

	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/genservice"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

// Class partitions findings by consequence.
type Class string

const (
	// ClassInstrumentation means the harness cannot observe what it must
	// observe; the canary fails.
	ClassInstrumentation Class = "instrumentation"
	// ClassHardFail means the pipeline violated its contract; the canary
	// fails.
	ClassHardFail Class = "hard_fail"
	// ClassSoftIssue is a non-blocking divergence; never fails a canary.
	ClassSoftIssue Class = "soft_issue"
)

// Failure codes the pipeline must always remediate or block on.
var mustHaveCodes = map[string]bool{
	"safety":                              true,
	"headshot_transparent_background":     true,
	"wheelchair_not_present":              true,
	"limb_difference_missing_not_present": true,
	"missing_traits":                      true,
}

// CodeSeverity partitions a failure code; unknown codes are should-have.
func CodeSeverity(code string) string {
	if mustHaveCodes[code] {
		return "must_have"
	}
	return "should_have"
}

// Character states with special handling in the checks.
const (
	stateNeedsRetry = "needs_retry"
	statusSoftFail  = "soft_fail"
	statusReady     = "ready"
)

// Evidence is everything one canary produced, gathered by the runner.
type Evidence struct {
	Input         *canary.NormalizedInput
	Character     *statestore.CharacterRecord
	Attempts      []statestore.AttemptRecord
	Invoke        *genservice.InvokeResult
	Traces        map[string]map[string]interface{}
	ExplicitHuman bool
}

// Kernel evaluates the invariant matrix for one canary.
type Kernel struct {
	Strict       bool
	AllowedHosts []string

	stats *fireStats
}

// NewKernel builds a kernel with a fresh fire-rate collector.
func NewKernel(strict bool, allowedHosts []string) *Kernel {
	return &Kernel{
		Strict:       strict,
		AllowedHosts: allowedHosts,
		stats:        newFireStats(),
	}
}

// Evaluate runs every check and appends findings plus fire-rate statistics
// to the report.
func (k *Kernel) Evaluate(ev Evidence, report *canary.RunReport) {
	k.recordObservedCodes(ev)

	k.checkAllowlistConfigured(report)
	k.checkAssetURLs(ev, report)
	k.checkAttemptObservability(ev, report)
	k.checkInvokeEcho(ev, report)
	k.checkPromptHashes(ev, report)
	k.checkTraceURLsDistinct(ev, report)
	k.checkOpenAIRequestIDs(ev, report)
	k.checkExpectations(ev, report)
	k.checkNonhumanDrift(ev, report)

	report.FireRates = k.stats.snapshot()
}

func (k *Kernel) add(report *canary.RunReport, class Class, message string) {
	k.stats.recordFinding(string(class))
	switch class {
	case ClassInstrumentation:
		report.InstrumentationErrors = append(report.InstrumentationErrors, message)
	case ClassHardFail:
		report.HardFailErrors = append(report.HardFailErrors, message)
	case ClassSoftIssue:
		report.SoftIssues = append(report.SoftIssues, message)
	}
}

func (k *Kernel) recordObservedCodes(ev Evidence) {
	for _, attempt := range ev.Attempts {
		for _, code := range attempt.FailureCodes {
			k.stats.recordCode(code, CodeSeverity(code))
		}
	}
}

// validationFor resolves the effective validation summary for an attempt:
// the persisted summary when present, otherwise the fetched trace's
// validation payload.
func validationFor(attempt *statestore.AttemptRecord, trace map[string]interface{}) *statestore.ValidationSummary {
	if attempt != nil && attempt.Validation.Summary != nil {
		return attempt.Validation.Summary
	}
	return summaryFromTrace(trace)
}

// summaryFromTrace decodes the validation payload embedded in a trace.
func summaryFromTrace(trace map[string]interface{}) *statestore.ValidationSummary {
	if trace == nil {
		return nil
	}
	payload, ok := trace["validation"]
	if !ok {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var summary statestore.ValidationSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}
