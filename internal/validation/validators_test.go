package validation

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Validation", func() {
	Describe("ValidateCanaryID", func() {
		Context("with valid ids", func() {
			validIDs := []string{
				"happy-path-human",
				"dragon_drift",
				"canary01",
				"wheelchair-presence",
			}

			for _, id := range validIDs {
				id := id
				It("should accept "+id, func() {
					err := ValidateCanaryID(id)
					Expect(err).NotTo(HaveOccurred())
				})
			}
		})

		Context("with invalid ids", func() {
			It("should reject empty id", func() {
				err := ValidateCanaryID("")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("is required"))
			})

			It("should reject too long id", func() {
				err := ValidateCanaryID(strings.Repeat("a", 65))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("must be 64 characters or less"))
			})

			It("should reject uppercase", func() {
				err := ValidateCanaryID("Dragon-Drift")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("must be lowercase alphanumeric"))
			})

			It("should reject leading dash", func() {
				err := ValidateCanaryID("-dragon")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("must be lowercase alphanumeric"))
			})
		})
	})

	Describe("ValidateStringInput", func() {
		Context("with valid input", func() {
			It("should pass validation", func() {
				err := ValidateStringInput("appearance", "green scales and golden eyes", 100)
				Expect(err).NotTo(HaveOccurred())
			})
		})

		Context("when input is too long", func() {
			It("should return validation error", func() {
				err := ValidateStringInput("appearance", "toolong", 5)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("must be 5 characters or less"))
			})
		})

		Context("when input contains SQL injection patterns", func() {
			It("should detect UNION attacks", func() {
				err := ValidateStringInput("appearance", "'; UNION SELECT * FROM characters", 100)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("contains potentially unsafe characters"))
			})

			It("should detect script injection", func() {
				err := ValidateStringInput("appearance", "<script>alert('xss')</script>", 100)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("contains potentially unsafe characters"))
			})

			It("should detect SQL comments", func() {
				err := ValidateStringInput("appearance", "input-- comment", 100)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("contains potentially unsafe characters"))
			})
		})

		Context("when input contains control characters", func() {
			It("should detect control characters", func() {
				controlChar := string(rune(0x01))
				err := ValidateStringInput("appearance", "input"+controlChar, 100)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("contains invalid control characters"))
			})

			It("should allow valid whitespace", func() {
				err := ValidateStringInput("appearance", "input\twith\nlines\r", 100)
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("ValidateAssetType", func() {
		Context("with valid asset types", func() {
			validAssets := []string{"headshot", "bodyshot"}

			for _, asset := range validAssets {
				asset := asset
				It("should accept "+asset, func() {
					err := ValidateAssetType(asset)
					Expect(err).NotTo(HaveOccurred())
				})
			}
		})

		Context("with invalid asset types", func() {
			It("should reject unknown assets", func() {
				err := ValidateAssetType("portrait")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("is not a recognized asset type"))
			})
		})
	})

	Describe("ValidateMode", func() {
		Context("with valid modes", func() {
			validModes := []string{"e2e", "component"}

			for _, mode := range validModes {
				mode := mode
				It("should accept "+mode, func() {
					err := ValidateMode(mode)
					Expect(err).NotTo(HaveOccurred())
				})
			}
		})

		Context("with invalid modes", func() {
			It("should reject unknown modes", func() {
				err := ValidateMode("dry-run")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("is not a recognized mode"))
			})
		})
	})

	Describe("SanitizeForLogging", func() {
		Context("with clean input", func() {
			It("should return input unchanged", func() {
				input := "clean input text"
				result := SanitizeForLogging(input)
				Expect(result).To(Equal(input))
			})
		})

		Context("with control characters", func() {
			It("should replace control characters", func() {
				controlChar := string(rune(0x01))
				input := "text" + controlChar + "more"
				result := SanitizeForLogging(input)
				Expect(result).To(Equal("text?more"))
			})

			It("should preserve valid whitespace", func() {
				input := "text\twith\nlines\r"
				result := SanitizeForLogging(input)
				Expect(result).To(Equal(input))
			})
		})

		Context("with long input", func() {
			It("should truncate long strings", func() {
				longInput := strings.Repeat("a", 300)

				result := SanitizeForLogging(longInput)
				Expect(len(result)).To(Equal(200))
				Expect(result).To(HaveSuffix("..."))
			})
		})
	})
})
