package assertions

import (
	"fmt"

	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

// checkNonhumanDrift enforces the drift chain for nonhuman species: every
// asset must carry a drift verdict, and a confirmed drift without a safety
// block must have been remediated by a later validated edit attempt.
func (k *Kernel) checkNonhumanDrift(ev Evidence, report *canary.RunReport) {
	if ev.ExplicitHuman {
		return
	}
	for _, assetType := range []string{statestore.AssetHeadshot, statestore.AssetBodyshot} {
		k.checkDriftForAsset(ev, report, assetType)
	}
}

func (k *Kernel) checkDriftForAsset(ev Evidence, report *canary.RunReport, assetType string) {
	base := latestOriginalAttempt(ev.Attempts, assetType)
	if base == nil {
		base = statestore.LatestAttempt(ev.Attempts, assetType)
	}
	if base == nil {
		return
	}

	summary := validationFor(base, ev.Traces[assetType])
	if summary == nil || summary.NonhumanHumanDefault == nil {
		k.add(report, ClassInstrumentation,
			fmt.Sprintf("%s validation missing nonhuman_human_default", assetType))
		return
	}
	if !*summary.NonhumanHumanDefault {
		return
	}
	if base.HasFailureCode("safety") {
		return
	}

	edit := latestValidatedEditAfter(ev.Attempts, assetType, base)
	if edit == nil {
		k.add(report, ClassInstrumentation,
			fmt.Sprintf("nonhuman drift on %s has no validated edit attempt", assetType))
		return
	}

	editSummary := edit.Validation.Summary
	if editSummary.NonhumanHumanDefault != nil && *editSummary.NonhumanHumanDefault {
		if k.Strict {
			k.add(report, ClassHardFail,
				fmt.Sprintf("Nonhuman drift persisted after edit for %s", assetType))
			return
		}
		confidence := "unknown"
		if editSummary.NonhumanHumanDefaultConfidence != nil {
			confidence = fmt.Sprintf("%.2f", *editSummary.NonhumanHumanDefaultConfidence)
		}
		k.add(report, ClassSoftIssue,
			fmt.Sprintf("Nonhuman drift persisted after edit for %s (confidence %s)", assetType, confidence))
	}
}

// latestOriginalAttempt returns the newest non-edit attempt for an asset.
func latestOriginalAttempt(attempts []statestore.AttemptRecord, assetType string) *statestore.AttemptRecord {
	var originals []statestore.AttemptRecord
	for _, attempt := range attempts {
		if attempt.AssetType == assetType && !attempt.IsEdit() {
			originals = append(originals, attempt)
		}
	}
	return statestore.LatestAttempt(originals, assetType)
}

// latestValidatedEditAfter returns the newest edit attempt for the asset
// that both follows the base attempt and carries a validation summary.
func latestValidatedEditAfter(attempts []statestore.AttemptRecord, assetType string, base *statestore.AttemptRecord) *statestore.AttemptRecord {
	var candidates []statestore.AttemptRecord
	for _, attempt := range attempts {
		if attempt.AssetType != assetType || !attempt.IsEdit() {
			continue
		}
		if attempt.Validation.Summary == nil {
			continue
		}
		if attempt.Index() > base.Index() || attempt.CreatedAt.After(base.CreatedAt) {
			candidates = append(candidates, attempt)
		}
	}
	return statestore.LatestAttempt(candidates, assetType)
}
