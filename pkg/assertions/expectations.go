package assertions

import (
	"fmt"
	"regexp"

	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

var wheelchairTrait = regexp.MustCompile(`(?i)wheelchair`)

// checkExpectations dispatches on the canary's expectation tags.
func (k *Kernel) checkExpectations(ev Evidence, report *canary.RunReport) {
	if ev.Input == nil {
		return
	}
	expectations := ev.Input.Expectations

	if expectations.RequireLimbDifference {
		k.checkLimbDifference(ev, report)
	}
	if expectations.RequireWheelchairPresence {
		k.checkWheelchairPresence(ev, report)
	}
	if expectations.RequireSpeciesTruthiness {
		k.checkSpeciesTruthiness(ev, report)
	}
	if expectations.RequireSupportWorldFit {
		k.checkSupportWorldFit(ev, report)
	}
}

func (k *Kernel) bodyshotValidation(ev Evidence) *statestore.ValidationSummary {
	attempt := statestore.LatestAttempt(ev.Attempts, statestore.AssetBodyshot)
	return validationFor(attempt, ev.Traces[statestore.AssetBodyshot])
}

func (k *Kernel) characterState(ev Evidence) string {
	if ev.Character == nil {
		return ""
	}
	return ev.Character.State()
}

func (k *Kernel) checkLimbDifference(ev Evidence, report *canary.RunReport) {
	summary := k.bodyshotValidation(ev)
	confirmed := summary != nil &&
		summary.Limbs != nil &&
		summary.Limbs.LimbDifferenceConfirmed != nil &&
		*summary.Limbs.LimbDifferenceConfirmed

	if confirmed {
		return
	}
	if k.characterState(ev) == stateNeedsRetry {
		return
	}
	k.add(report, ClassHardFail, "Limb difference not confirmed should hard_fail bodyshot")
}

func (k *Kernel) checkWheelchairPresence(ev Evidence, report *canary.RunReport) {
	summary := k.bodyshotValidation(ev)
	if summary == nil {
		return
	}
	for _, visibility := range summary.TraitsVisible {
		if wheelchairTrait.MatchString(visibility.Trait) && !visibility.Visible {
			if k.characterState(ev) == stateNeedsRetry {
				return
			}
			k.add(report, ClassHardFail, "Wheelchair not visible should hard_fail bodyshot")
			return
		}
	}
}

func (k *Kernel) checkSpeciesTruthiness(ev Evidence, report *canary.RunReport) {
	summary := k.bodyshotValidation(ev)
	confirmed := summary != nil &&
		summary.SpeciesAnatomyConfirmed != nil &&
		*summary.SpeciesAnatomyConfirmed

	if confirmed {
		return
	}
	if k.Strict && k.characterState(ev) != stateNeedsRetry {
		k.add(report, ClassHardFail, "Species anatomy not confirmed should hard_fail bodyshot")
		return
	}
	k.add(report, ClassSoftIssue, "Species anatomy not confirmed for bodyshot")
}

func (k *Kernel) checkSupportWorldFit(ev Evidence, report *canary.RunReport) {
	summary := k.bodyshotValidation(ev)
	if summary == nil {
		return
	}
	var failedSupport string
	for _, fit := range summary.SupportWorldFit {
		if fit.WorldFit != nil && !*fit.WorldFit {
			failedSupport = fit.Support
			break
		}
	}
	if failedSupport == "" {
		return
	}

	status := ""
	if ev.Character != nil {
		status = ev.Character.AssetStatus(statestore.AssetBodyshot)
	}
	if status != statusSoftFail && status != statusReady {
		k.add(report, ClassSoftIssue,
			fmt.Sprintf("support_world_fit failed for %q but bodyshot_status is %q", failedSupport, status))
	}

	edits := statestore.EditAttempts(ev.Attempts, statestore.AssetBodyshot)
	if len(edits) == 0 {
		k.add(report, ClassSoftIssue,
			fmt.Sprintf("support_world_fit failed for %q but no edit attempt exists for bodyshot", failedSupport))
		return
	}

	if ev.Character != nil {
		persisted := ev.Character.ResolveAsset(statestore.AssetBodyshot).URL
		for _, edit := range edits {
			if edit.ImageURL != nil && *edit.ImageURL != "" && *edit.ImageURL == persisted {
				k.add(report, ClassSoftIssue,
					"edited bodyshot URL matches the persisted bodyshot URL")
				return
			}
		}
	}
}
