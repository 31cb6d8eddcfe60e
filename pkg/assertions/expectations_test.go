package assertions

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

var _ = Describe("Expectation checks", func() {
	var ev Evidence

	setBodyshotSummary := func(summary *statestore.ValidationSummary) {
		for i := range ev.Attempts {
			if ev.Attempts[i].AssetType == statestore.AssetBodyshot {
				ev.Attempts[i].Validation = statestore.SummaryColumn{Summary: summary}
			}
		}
	}

	BeforeEach(func() {
		ev = Evidence{
			Input:         &canary.NormalizedInput{CanaryID: "expectation-canary", Species: "human"},
			Character:     readyCharacter(),
			Attempts:      passingAttempts(),
			ExplicitHuman: true,
		}
	})

	Describe("requireLimbDifference", func() {
		BeforeEach(func() {
			ev.Input.Expectations = canary.Expectations{RequireLimbDifference: true}
		})

		It("should pass when limb difference is confirmed", func() {
			setBodyshotSummary(&statestore.ValidationSummary{
				Limbs: &statestore.LimbsSummary{LimbDifferenceConfirmed: boolp(true)},
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.HardFailErrors).To(BeEmpty())
		})

		It("should hard-fail when unconfirmed on a ready character", func() {
			setBodyshotSummary(&statestore.ValidationSummary{
				Limbs: &statestore.LimbsSummary{LimbDifferenceConfirmed: boolp(false)},
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.HardFailErrors).To(ContainElement(
				"Limb difference not confirmed should hard_fail bodyshot"))
			Expect(report.Status).To(Equal("fail"))
		})

		It("should tolerate unconfirmed on needs_retry", func() {
			ev.Character.CharacterState = strp("needs_retry")
			setBodyshotSummary(&statestore.ValidationSummary{
				Limbs: &statestore.LimbsSummary{LimbDifferenceConfirmed: boolp(false)},
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.HardFailErrors).To(BeEmpty())
		})
	})

	Describe("requireWheelchairPresence", func() {
		BeforeEach(func() {
			ev.Input.Expectations = canary.Expectations{RequireWheelchairPresence: true}
		})

		It("should hard-fail when the wheelchair is not visible", func() {
			setBodyshotSummary(&statestore.ValidationSummary{
				TraitsVisible: []statestore.TraitVisibility{
					{Trait: "Wheelchair", Visible: false},
				},
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.HardFailErrors).To(ContainElement(
				"Wheelchair not visible should hard_fail bodyshot"))
		})

		It("should pass when the wheelchair is visible", func() {
			setBodyshotSummary(&statestore.ValidationSummary{
				TraitsVisible: []statestore.TraitVisibility{
					{Trait: "wheelchair", Visible: true},
				},
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.HardFailErrors).To(BeEmpty())
		})

		It("should tolerate invisibility on needs_retry", func() {
			ev.Character.CharacterState = strp("needs_retry")
			setBodyshotSummary(&statestore.ValidationSummary{
				TraitsVisible: []statestore.TraitVisibility{
					{Trait: "wheelchair", Visible: false},
				},
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.HardFailErrors).To(BeEmpty())
		})
	})

	Describe("requireSpeciesTruthiness", func() {
		BeforeEach(func() {
			ev.Input.Expectations = canary.Expectations{RequireSpeciesTruthiness: true}
		})

		It("should soft-issue when unconfirmed in default mode", func() {
			setBodyshotSummary(&statestore.ValidationSummary{
				SpeciesAnatomyConfirmed: boolp(false),
				NonhumanHumanDefault:    boolp(false),
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.HardFailErrors).To(BeEmpty())
			Expect(report.SoftIssues).To(ContainElement(
				"Species anatomy not confirmed for bodyshot"))
			Expect(report.Status).To(Equal("pass"))
		})

		It("should hard-fail when unconfirmed in strict mode", func() {
			setBodyshotSummary(&statestore.ValidationSummary{
				SpeciesAnatomyConfirmed: boolp(false),
				NonhumanHumanDefault:    boolp(false),
			})
			report := evaluate(NewKernel(true, allowedHosts), ev)
			Expect(report.HardFailErrors).To(ContainElement(
				"Species anatomy not confirmed should hard_fail bodyshot"))
		})

		It("should soft-issue even in strict mode on needs_retry", func() {
			ev.Character.CharacterState = strp("needs_retry")
			setBodyshotSummary(&statestore.ValidationSummary{
				SpeciesAnatomyConfirmed: boolp(false),
				NonhumanHumanDefault:    boolp(false),
			})
			report := evaluate(NewKernel(true, allowedHosts), ev)
			Expect(report.HardFailErrors).To(BeEmpty())
			Expect(report.SoftIssues).NotTo(BeEmpty())
		})
	})

	Describe("requireSupportWorldFit", func() {
		failedFit := &statestore.ValidationSummary{
			SupportWorldFit: []statestore.SupportWorldFit{
				{Support: "wheelchair", WorldFit: boolp(false)},
			},
		}

		BeforeEach(func() {
			ev.Input.Expectations = canary.Expectations{RequireSupportWorldFit: true}
		})

		It("should record soft issues when no edit attempt exists", func() {
			setBodyshotSummary(failedFit)
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.SoftIssues).To(ContainElement(ContainSubstring(
				"no edit attempt exists for bodyshot")))
			Expect(report.Status).To(Equal("pass"))
		})

		It("should flag an unexpected bodyshot status", func() {
			ev.Character.BodyshotStatus = strp("pending")
			setBodyshotSummary(failedFit)
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.SoftIssues).To(ContainElement(ContainSubstring(
				`bodyshot_status is "pending"`)))
		})

		It("should flag an edit whose URL matches the persisted bodyshot", func() {
			setBodyshotSummary(failedFit)
			ev.Attempts = append(ev.Attempts, statestore.AttemptRecord{
				ID: "att-b2", AssetType: statestore.AssetBodyshot,
				AttemptIndex: intp(2), Status: statestore.AttemptStatusOK,
				ImageURL:       strp("https://cdn.example.com/b.png"),
				TraceURL:       strp("https://a.trace-store.example.com/b2.json"),
				FixOfAttemptID: strp("att-b1"),
				Validation: statestore.SummaryColumn{Summary: &statestore.ValidationSummary{
					NonhumanHumanDefault: boolp(false),
				}},
				CreatedAt: time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC),
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.SoftIssues).To(ContainElement(
				"edited bodyshot URL matches the persisted bodyshot URL"))
		})

		It("should stay quiet when every support fits", func() {
			setBodyshotSummary(&statestore.ValidationSummary{
				SupportWorldFit: []statestore.SupportWorldFit{
					{Support: "wheelchair", WorldFit: boolp(true)},
				},
			})
			report := evaluate(NewKernel(false, allowedHosts), ev)
			Expect(report.SoftIssues).To(BeEmpty())
		})
	})
})

var _ = Describe("Nonhuman drift chain", func() {
	var ev Evidence

	driftedBodyshot := func(codes ...string) {
		for i := range ev.Attempts {
			if ev.Attempts[i].AssetType == statestore.AssetBodyshot {
				ev.Attempts[i].Validation = statestore.SummaryColumn{Summary: &statestore.ValidationSummary{
					NonhumanHumanDefault: boolp(true),
				}}
				ev.Attempts[i].FailureCodes = codes
			}
		}
	}

	addEdit := func(drift bool, confidence *float64) {
		ev.Attempts = append(ev.Attempts, statestore.AttemptRecord{
			ID: "att-b-edit", AssetType: statestore.AssetBodyshot,
			AttemptIndex: intp(2), Status: statestore.AttemptStatusOK,
			ImageURL:       strp("https://cdn.example.com/b-edit.png"),
			TraceURL:       strp("https://a.trace-store.example.com/b-edit.json"),
			FixOfAttemptID: strp("att-b1"),
			Validation: statestore.SummaryColumn{Summary: &statestore.ValidationSummary{
				NonhumanHumanDefault:           boolp(drift),
				NonhumanHumanDefaultConfidence: confidence,
			}},
			CreatedAt: time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC),
		})
	}

	BeforeEach(func() {
		ev = Evidence{
			Input:         &canary.NormalizedInput{CanaryID: "dragon-drift", Species: "dragon"},
			Character:     readyCharacter(),
			Attempts:      passingAttempts(),
			ExplicitHuman: false,
		}
	})

	It("should skip explicit humans entirely", func() {
		ev.ExplicitHuman = true
		for i := range ev.Attempts {
			ev.Attempts[i].Validation = statestore.SummaryColumn{Summary: &statestore.ValidationSummary{Rating: "pass"}}
		}
		report := evaluate(NewKernel(false, allowedHosts), ev)
		Expect(report.InstrumentationErrors).To(BeEmpty())
	})

	It("should require a drift verdict on every asset", func() {
		for i := range ev.Attempts {
			ev.Attempts[i].Validation = statestore.SummaryColumn{Summary: &statestore.ValidationSummary{Rating: "pass"}}
		}
		report := evaluate(NewKernel(false, allowedHosts), ev)
		Expect(report.InstrumentationErrors).To(ContainElement(
			"headshot validation missing nonhuman_human_default"))
		Expect(report.InstrumentationErrors).To(ContainElement(
			"bodyshot validation missing nonhuman_human_default"))
	})

	It("should demand a validated edit after an unblocked drift", func() {
		driftedBodyshot("nonhuman_drift_human_default")
		report := evaluate(NewKernel(false, allowedHosts), ev)
		Expect(report.InstrumentationErrors).To(ContainElement(
			"nonhuman drift on bodyshot has no validated edit attempt"))
	})

	It("should not demand an edit when safety blocked the attempt", func() {
		driftedBodyshot("nonhuman_drift_human_default", "safety")
		report := evaluate(NewKernel(false, allowedHosts), ev)
		Expect(report.InstrumentationErrors).NotTo(ContainElement(
			"nonhuman drift on bodyshot has no validated edit attempt"))
	})

	It("should pass when the edit cleared the drift", func() {
		driftedBodyshot("nonhuman_drift_human_default")
		addEdit(false, nil)
		report := evaluate(NewKernel(false, allowedHosts), ev)
		Expect(report.InstrumentationErrors).To(BeEmpty())
		Expect(report.HardFailErrors).To(BeEmpty())
		Expect(report.SoftIssues).To(BeEmpty())
		Expect(report.Status).To(Equal("pass"))
	})

	It("should hard-fail persistent drift in strict mode", func() {
		driftedBodyshot("nonhuman_drift_human_default")
		addEdit(true, floatp(0.91))
		report := evaluate(NewKernel(true, allowedHosts), ev)
		Expect(report.HardFailErrors).To(ContainElement(
			"Nonhuman drift persisted after edit for bodyshot"))
		Expect(report.Status).To(Equal("fail"))
	})

	It("should soft-issue persistent drift with confidence otherwise", func() {
		driftedBodyshot("nonhuman_drift_human_default")
		addEdit(true, floatp(0.91))
		report := evaluate(NewKernel(false, allowedHosts), ev)
		Expect(report.SoftIssues).To(ContainElement(
			"Nonhuman drift persisted after edit for bodyshot (confidence 0.91)"))
		Expect(report.Status).To(Equal("pass"))
	})

	It("should count validator fire rates", func() {
		driftedBodyshot("nonhuman_drift_human_default")
		addEdit(false, nil)
		report := evaluate(NewKernel(false, allowedHosts), ev)
		Expect(report.FireRates.Total).To(Equal(1))
		Expect(report.FireRates.ByCode).To(HaveKeyWithValue("nonhuman_drift_human_default", 1))
	})
})

var _ = Describe("CodeSeverity", func() {
	It("should classify must-have codes", func() {
		for _, code := range []string{
			"safety",
			"headshot_transparent_background",
			"wheelchair_not_present",
			"limb_difference_missing_not_present",
			"missing_traits",
		} {
			Expect(CodeSeverity(code)).To(Equal("must_have"), code)
		}
	})

	It("should classify known and unknown should-have codes", func() {
		Expect(CodeSeverity("nonhuman_drift_human_default")).To(Equal("should_have"))
		Expect(CodeSeverity("style_drift")).To(Equal("should_have"))
		Expect(CodeSeverity("never_seen_before_code")).To(Equal("should_have"))
	})
})
