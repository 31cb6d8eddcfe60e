package canary

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jqsirls/character-canary/pkg/canonical"
)

var _ = Describe("Normalize", func() {
	var dict canonical.Dictionary

	BeforeEach(func() {
		dict = canonical.Builtin()
	})

	It("should carry the canonical species key through", func() {
		input := Normalize(dict, &Definition{ID: "c", Name: "N", Age: 6, Species: "dragon"})
		Expect(input.Species).To(Equal("dragon"))
		Expect(input.CanaryID).To(Equal("c"))
	})

	It("should merge the species descriptor into appearance", func() {
		input := Normalize(dict, &Definition{
			ID: "c", Name: "N", Age: 6, Species: "dragon",
			Appearance:        "copper scales",
			SpeciesDescriptor: "a small dragon with folded wings",
		})
		Expect(input.Appearance).To(Equal("copper scales a small dragon with folded wings"))
	})

	It("should merge about-them into personality", func() {
		input := Normalize(dict, &Definition{
			ID: "c", Name: "N", Age: 6, Species: "human",
			Personality: "brave",
			AboutThem:   "collects bottle caps",
		})
		Expect(input.Personality).To(Equal("brave collects bottle caps"))
	})

	It("should default the languages", func() {
		input := Normalize(dict, &Definition{ID: "c", Name: "N", Age: 6, Species: "human"})
		Expect(input.CharacterLanguage).To(Equal("en"))
		Expect(input.ReaderLanguage).To(Equal("en"))
	})

	It("should keep explicit languages", func() {
		input := Normalize(dict, &Definition{
			ID: "c", Name: "N", Age: 6, Species: "human",
			CharacterLanguage: "es", ReaderLanguage: "fr",
		})
		Expect(input.CharacterLanguage).To(Equal("es"))
		Expect(input.ReaderLanguage).To(Equal("fr"))
	})

	It("should derive the age bucket from age when absent", func() {
		Expect(Normalize(dict, &Definition{ID: "c", Name: "N", Age: 3, Species: "human"}).AgeBucket).To(Equal("toddler"))
		Expect(Normalize(dict, &Definition{ID: "c", Name: "N", Age: 6, Species: "human"}).AgeBucket).To(Equal("early_reader"))
		Expect(Normalize(dict, &Definition{ID: "c", Name: "N", Age: 10, Species: "human"}).AgeBucket).To(Equal("middle_grade"))
		Expect(Normalize(dict, &Definition{ID: "c", Name: "N", Age: 14, Species: "human"}).AgeBucket).To(Equal("young_teen"))
	})

	It("should keep an explicit age bucket", func() {
		input := Normalize(dict, &Definition{ID: "c", Name: "N", Age: 10, Species: "human", AgeBucket: "toddler"})
		Expect(input.AgeBucket).To(Equal("toddler"))
	})

	It("should copy the expectations", func() {
		input := Normalize(dict, &Definition{
			ID: "c", Name: "N", Age: 6, Species: "human",
			Expectations: &Expectations{RequireWheelchairPresence: true},
		})
		Expect(input.Expectations.RequireWheelchairPresence).To(BeTrue())
		Expect(input.Expectations.RequireLimbDifference).To(BeFalse())
	})

	It("should deep-copy the trait descriptions", func() {
		def := &Definition{
			ID: "c", Name: "N", Age: 6, Species: "human",
			TraitUserDescriptions: map[string]string{"wheelchair": "red"},
		}
		input := Normalize(dict, def)
		input.TraitUserDescriptions["wheelchair"] = "blue"
		Expect(def.TraitUserDescriptions["wheelchair"]).To(Equal("red"))
	})
})

var _ = Describe("IsExplicitHuman", func() {
	It("should treat the human species as explicit", func() {
		Expect(IsExplicitHuman("human", "")).To(BeTrue())
	})

	It("should treat a superhero with a human descriptor as explicit", func() {
		Expect(IsExplicitHuman("superhero", "a human hero with a cape")).To(BeTrue())
		Expect(IsExplicitHuman("superhero", "A Human in tights")).To(BeTrue())
	})

	It("should require the whole word human", func() {
		Expect(IsExplicitHuman("superhero", "a humanoid robot suit")).To(BeFalse())
		Expect(IsExplicitHuman("superhero", "")).To(BeFalse())
	})

	It("should treat every other species as nonhuman", func() {
		Expect(IsExplicitHuman("dragon", "practically human")).To(BeFalse())
		Expect(IsExplicitHuman("elemental", "")).To(BeFalse())
	})
})

var _ = Describe("Pools", func() {
	It("should select pools by name", func() {
		Expect(SelectPool(PoolMatrix)).NotTo(BeEmpty())
		Expect(SelectPool(PoolTargeted)).NotTo(BeEmpty())
		Expect(SelectPool("")).To(Equal(MatrixPool()))
	})

	It("should keep pool ids unique", func() {
		seen := map[string]bool{}
		for _, def := range append(MatrixPool(), TargetedPool()...) {
			Expect(seen).NotTo(HaveKey(def.ID))
			seen[def.ID] = true
		}
	})

	Describe("FilterByIDs", func() {
		It("should keep everything on an empty filter", func() {
			Expect(FilterByIDs(MatrixPool(), "")).To(HaveLen(len(MatrixPool())))
		})

		It("should keep only the named ids", func() {
			filtered := FilterByIDs(MatrixPool(), "dragon-drift, happy-path-human")
			Expect(filtered).To(HaveLen(2))
			Expect(filtered[0].ID).To(Equal("happy-path-human"))
			Expect(filtered[1].ID).To(Equal("dragon-drift"))
		})

		It("should drop unknown ids silently", func() {
			Expect(FilterByIDs(MatrixPool(), "does-not-exist")).To(BeEmpty())
		})
	})

	Describe("RunReport verdict", func() {
		It("should pass with only soft issues", func() {
			report := RunReport{SoftIssues: []string{"minor"}}
			report.FinalizeStatus()
			Expect(report.Status).To(Equal("pass"))
		})

		It("should fail on any instrumentation error", func() {
			report := RunReport{InstrumentationErrors: []string{"broken"}}
			report.FinalizeStatus()
			Expect(report.Status).To(Equal("fail"))
		})

		It("should fail on any hard failure", func() {
			report := RunReport{HardFailErrors: []string{"contract"}}
			report.FinalizeStatus()
			Expect(report.Status).To(Equal("fail"))
		})
	})
})
