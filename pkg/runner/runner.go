// Package runner drives one canary at a time through the generation
// pipeline: invoke, snapshot receipt, state-store poll, trace fetch,
// remediation, assertion and artifact emission.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jqsirls/character-canary/internal/config"
	"github.com/jqsirls/character-canary/pkg/artifacts"
	"github.com/jqsirls/character-canary/pkg/assertions"
	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/genservice"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
	"github.com/jqsirls/character-canary/pkg/statestore"
	"github.com/jqsirls/character-canary/pkg/traces"
)

// Remediation polling defaults.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollBudget   = 180 * time.Second
)

// Runner executes canaries sequentially against a frozen RunConfig.
type Runner struct {
	Config  *config.RunConfig
	Store   *statestore.Store
	Gen     *genservice.Client
	Traces  *traces.Fetcher
	Emitter *artifacts.Emitter
	Log     *logrus.Logger
	Strict  bool

	PollInterval time.Duration
	PollBudget   time.Duration
}

// Outcome is the result of one canary run.
type Outcome struct {
	Report canary.RunReport
	// SnapshotFatal marks a public-snapshot-receipt failure; the driver
	// terminates the whole run after this canary.
	SnapshotFatal bool
}

// Run drives a single normalized canary to a verdict. Per-canary failures
// land in the report; only artifact-write failures surface as errors.
func (r *Runner) Run(ctx context.Context, input canary.NormalizedInput) (*Outcome, error) {
	report := canary.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Input:     input,
		Mode:      string(r.Config.Mode),
	}
	outcome := &Outcome{}

	r.Log.WithFields(logging.CanaryFields("start", input.CanaryID).
		Custom("mode", report.Mode).
		ToLogrus()).Info("Canary starting")

	characterID, invoke := r.invoke(ctx, input, &report)
	report.CharacterID = characterID

	if characterID == "" {
		err := r.finishAndEmit(&report, nil, nil)
		outcome.Report = report
		return outcome, err
	}

	r.snapshotReceipt(ctx, characterID, &report, outcome)

	character, attempts := r.fetchState(ctx, characterID, &report)
	traceMap := r.fetchTraces(ctx, attempts, character, &report)

	if character != nil {
		if r.remediate(ctx, character, attempts, &report) {
			character, attempts = r.fetchState(ctx, characterID, &report)
			traceMap = r.fetchTraces(ctx, attempts, character, &report)
		}
	}

	explicitHuman := input.Species == "human"
	if character != nil {
		descriptor := ""
		if character.SpeciesDescription != nil {
			descriptor = *character.SpeciesDescription
		}
		explicitHuman = canary.IsExplicitHuman(character.Species, descriptor)
	}

	kernel := assertions.NewKernel(r.Strict, r.Config.AllowedAssetHosts)
	kernel.Evaluate(assertions.Evidence{
		Input:         &input,
		Character:     character,
		Attempts:      attempts,
		Invoke:        invoke,
		Traces:        traceMap,
		ExplicitHuman: explicitHuman,
	}, &report)

	r.populateAssetReports(character, attempts, &report)

	err := r.finishAndEmit(&report, character, attempts)
	outcome.Report = report
	return outcome, err
}

// invoke runs step A and returns the character id plus the raw invocation
// echo. A missing character id after an e2e invoke is fatal for the canary.
func (r *Runner) invoke(ctx context.Context, input canary.NormalizedInput, report *canary.RunReport) (string, *genservice.InvokeResult) {
	switch r.Config.Mode {
	case config.ModeComponent:
		characterID := uuid.NewString()
		err := r.Store.InsertCanaryCharacter(ctx, statestore.InsertCharacterInput{
			ID:          characterID,
			Name:        input.Name,
			Species:     input.Species,
			Traits:      traitsOf(input),
			UserID:      r.Config.TestUserID,
			LibraryID:   r.Config.TestLibraryID,
			CanaryNonce: r.Config.RunNonce,
		})
		if err != nil {
			report.InstrumentationErrors = append(report.InstrumentationErrors,
				fmt.Sprintf("component-mode insert failed: %v", err))
			return "", nil
		}
		result, err := r.Gen.Invoke(ctx, r.Config.AccessToken, genservice.ActionGenerateArt,
			map[string]string{"characterId": characterID})
		if err != nil {
			report.InstrumentationErrors = append(report.InstrumentationErrors,
				fmt.Sprintf("component invocation failed: %v", err))
			return characterID, nil
		}
		return characterID, result

	default: // e2e
		result, err := r.Gen.Invoke(ctx, r.Config.AccessToken, genservice.ActionCompleteCreation, input)
		if err != nil {
			report.InstrumentationErrors = append(report.InstrumentationErrors,
				fmt.Sprintf("e2e invocation failed: %v", err))
			return "", nil
		}
		if result.CharacterID == "" {
			report.InstrumentationErrors = append(report.InstrumentationErrors,
				"e2e invocation returned no characterId")
			return "", nil
		}
		return result.CharacterID, result
	}
}

// snapshotReceipt runs step B. A failed receipt is instrumentation and
// terminates the whole run after this canary; a tpose leak is
// instrumentation only.
func (r *Runner) snapshotReceipt(ctx context.Context, characterID string, report *canary.RunReport, outcome *Outcome) {
	receipt, err := r.Gen.FetchSnapshot(ctx, r.Config.AccessToken, characterID)
	if err != nil {
		report.InstrumentationErrors = append(report.InstrumentationErrors,
			fmt.Sprintf("public snapshot fetch failed (token %s, issuer %s): %v",
				r.Config.Token.Type, r.Config.Token.Issuer, err))
		outcome.SnapshotFatal = true
		return
	}
	report.Snapshot = receipt
	if !receipt.OK {
		report.InstrumentationErrors = append(report.InstrumentationErrors,
			fmt.Sprintf("public snapshot returned %d at %s (token %s, issuer %s)",
				receipt.Status, receipt.URL, r.Config.Token.Type, r.Config.Token.Issuer))
		outcome.SnapshotFatal = true
		return
	}
	if path, found := genservice.FindTposeKey(receipt.Data); found {
		report.InstrumentationErrors = append(report.InstrumentationErrors,
			fmt.Sprintf("public snapshot leaks rig-internal key %q", path))
	}
}

// fetchState runs step C.
func (r *Runner) fetchState(ctx context.Context, characterID string, report *canary.RunReport) (*statestore.CharacterRecord, []statestore.AttemptRecord) {
	character, err := r.Store.GetCharacter(ctx, characterID)
	if err != nil {
		report.InstrumentationErrors = append(report.InstrumentationErrors,
			fmt.Sprintf("character fetch failed: %v", err))
		return nil, nil
	}
	attempts, err := r.Store.ListAttempts(ctx, characterID)
	if err != nil {
		report.InstrumentationErrors = append(report.InstrumentationErrors,
			fmt.Sprintf("attempt list failed: %v", err))
		return character, nil
	}
	return character, attempts
}

// fetchTraces runs step D: the latest attempt's trace per asset, falling
// back to the character's resolved trace URL. Fetch failures degrade to nil.
func (r *Runner) fetchTraces(ctx context.Context, attempts []statestore.AttemptRecord, character *statestore.CharacterRecord, report *canary.RunReport) map[string]map[string]interface{} {
	traceMap := map[string]map[string]interface{}{}
	report.Traces = nil
	for _, assetType := range []string{statestore.AssetHeadshot, statestore.AssetBodyshot} {
		url := ""
		if attempt := statestore.LatestAttempt(attempts, assetType); attempt != nil && attempt.TraceURL != nil {
			url = *attempt.TraceURL
		}
		if url == "" && character != nil {
			url = character.ResolveAsset(assetType).TraceURL
		}
		if url == "" {
			continue
		}
		trace := r.Traces.Fetch(ctx, url)
		if trace != nil {
			traceMap[assetType] = trace
		}
		report.Traces = append(report.Traces, canary.TraceSnapshot{
			AssetType: assetType,
			URL:       url,
			Trace:     trace,
		})
	}
	return traceMap
}

func (r *Runner) populateAssetReports(character *statestore.CharacterRecord, attempts []statestore.AttemptRecord, report *canary.RunReport) {
	report.Attempts = attempts
	for _, attempt := range attempts {
		report.Summaries = append(report.Summaries, canary.AttemptSummary{
			AttemptID: attempt.ID,
			AssetType: attempt.AssetType,
			Summary:   attempt.Validation.Summary,
		})
	}
	if character == nil {
		return
	}
	headshot := character.ResolveAsset(statestore.AssetHeadshot)
	bodyshot := character.ResolveAsset(statestore.AssetBodyshot)
	report.Headshot = canary.AssetReport{
		URL:        headshot.URL,
		TraceURL:   headshot.TraceURL,
		Status:     character.AssetStatus(statestore.AssetHeadshot),
		PromptHash: headshot.PromptHash,
	}
	report.Bodyshot = canary.AssetReport{
		URL:        bodyshot.URL,
		TraceURL:   bodyshot.TraceURL,
		Status:     character.AssetStatus(statestore.AssetBodyshot),
		PromptHash: bodyshot.PromptHash,
	}
}

// finishAndEmit runs step G.
func (r *Runner) finishAndEmit(report *canary.RunReport, character *statestore.CharacterRecord, attempts []statestore.AttemptRecord) error {
	report.FinishedAt = time.Now().UTC()
	report.FinalizeStatus()

	characterID := report.CharacterID
	if characterID == "" {
		characterID = report.Input.CanaryID
	}

	if err := r.Emitter.AppendCanaryReport(report, characterID); err != nil {
		return err
	}

	if len(attempts) == 0 {
		entry := map[string]interface{}{
			"canary_id":    report.Input.CanaryID,
			"character_id": characterID,
			"kind":         "no_attempts",
			"status":       report.Status,
		}
		return r.Emitter.AppendAttemptEntry(artifacts.NoAttemptsHeading(characterID), entry)
	}

	for _, attempt := range attempts {
		entry := map[string]interface{}{
			"canary_id":     report.Input.CanaryID,
			"character_id":  characterID,
			"attempt":       attempt,
			"run_id":        report.RunID,
			"canary_status": report.Status,
		}
		heading := artifacts.AttemptHeading(characterID, attempt.AssetType, attempt.Index())
		if err := r.Emitter.AppendAttemptEntry(heading, entry); err != nil {
			return err
		}
	}

	r.Log.WithFields(logging.CanaryFields("finish", report.Input.CanaryID).
		Custom("status", report.Status).
		Custom("instrumentation", len(report.InstrumentationErrors)).
		Custom("hard_fail", len(report.HardFailErrors)).
		Custom("soft_issues", len(report.SoftIssues)).
		ToLogrus()).Info("Canary finished")
	return nil
}

func traitsOf(input canary.NormalizedInput) statestore.TraitMap {
	traits := statestore.TraitMap{
		"gender":     input.Gender,
		"age":        input.Age,
		"age_bucket": input.AgeBucket,
	}
	if len(input.PersonalityTraits) > 0 {
		traits["personality_traits"] = input.PersonalityTraits
	}
	if len(input.Ethnicities) > 0 {
		traits["ethnicity"] = input.Ethnicities
	}
	if len(input.InclusivityTraits) > 0 {
		traits["inclusivity_traits"] = input.InclusivityTraits
	}
	return traits
}
