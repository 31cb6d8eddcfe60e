package runner

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/genservice"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

// bodyshotEditCodes are the failure codes that make a bodyshot eligible for
// an edit-fix, provided safety did not block the attempt.
var bodyshotEditCodes = []string{
	"nonhuman_drift_human_default",
	"species_anatomy_unconfirmed",
	"elemental_embodiment_missing",
	"missing_traits",
	"wheelchair_not_present",
	"limb_difference_missing_not_present",
	"wheelchair_unconfirmed",
	"world_native_support_missing",
}

// remediate runs step E: enqueue edit-fix invocations for eligible latest
// attempts and poll until an edit attempt appears or the budget expires.
// Returns true when the state should be refetched.
func (r *Runner) remediate(ctx context.Context, character *statestore.CharacterRecord, attempts []statestore.AttemptRecord, report *canary.RunReport) bool {
	descriptor := ""
	if character.SpeciesDescription != nil {
		descriptor = *character.SpeciesDescription
	}
	explicitHuman := canary.IsExplicitHuman(character.Species, descriptor)

	pending := map[string]bool{}

	if attempt := statestore.LatestAttempt(attempts, statestore.AssetHeadshot); attempt != nil {
		if !explicitHuman &&
			attempt.HasFailureCode("nonhuman_drift_human_default") &&
			len(statestore.EditAttempts(attempts, statestore.AssetHeadshot)) == 0 {
			if r.enqueue(ctx, character.ID, attempt, report) {
				pending[statestore.AssetHeadshot] = true
			}
		}
	}

	bodyshotEligible := false
	if attempt := statestore.LatestAttempt(attempts, statestore.AssetBodyshot); attempt != nil {
		if !attempt.HasFailureCode("safety") && hasAnyCode(attempt, bodyshotEditCodes) {
			bodyshotEligible = true
			if len(statestore.EditAttempts(attempts, statestore.AssetBodyshot)) == 0 {
				if r.enqueue(ctx, character.ID, attempt, report) {
					pending[statestore.AssetBodyshot] = true
				}
			} else {
				bodyshotEligible = false
			}
		}
	}

	if len(pending) == 0 {
		return false
	}

	observed := r.pollForEdits(ctx, character.ID, pending)

	if bodyshotEligible && !observed[statestore.AssetBodyshot] {
		report.InstrumentationErrors = append(report.InstrumentationErrors,
			"pipeline bug: bodyshot edit-fix enqueued but no edit attempt appeared")
	}
	return true
}

func (r *Runner) enqueue(ctx context.Context, characterID string, attempt *statestore.AttemptRecord, report *canary.RunReport) bool {
	err := r.Gen.EnqueueEdit(ctx, r.Config.AccessToken, genservice.EditRequest{
		CharacterID: characterID,
		AttemptID:   attempt.ID,
		AssetType:   attempt.AssetType,
	})
	if err != nil {
		report.InstrumentationErrors = append(report.InstrumentationErrors,
			fmt.Sprintf("edit-fix enqueue failed for %s: %v", attempt.AssetType, err))
		return false
	}
	return true
}

// pollForEdits watches the attempt list at a fixed interval within the
// wall-clock budget, stopping as soon as every enqueued asset shows an edit
// attempt. The edit invocation is never retried.
func (r *Runner) pollForEdits(ctx context.Context, characterID string, pending map[string]bool) map[string]bool {
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	budget := r.PollBudget
	if budget <= 0 {
		budget = DefaultPollBudget
	}

	observed := map[string]bool{}
	backoff := retry.WithMaxDuration(budget, retry.NewConstant(interval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts, err := r.Store.ListAttempts(ctx, characterID)
		if err != nil {
			return retry.RetryableError(err)
		}
		done := true
		for assetType := range pending {
			if len(statestore.EditAttempts(attempts, assetType)) > 0 {
				observed[assetType] = true
			} else {
				done = false
			}
		}
		if !done {
			return retry.RetryableError(fmt.Errorf("no edit attempt yet"))
		}
		return nil
	})

	r.Log.WithFields(logging.CanaryFields("remediation_poll", characterID).
		Custom("observed", len(observed)).
		Custom("pending", len(pending)).
		Error(err).
		ToLogrus()).Info("Remediation polling finished")
	return observed
}

func hasAnyCode(attempt *statestore.AttemptRecord, codes []string) bool {
	for _, code := range codes {
		if attempt.HasFailureCode(code) {
			return true
		}
	}
	return false
}
