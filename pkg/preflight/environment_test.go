package preflight

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)
	return log
}

var _ = Describe("InferEnv", func() {
	It("should recognize known staging hosts", func() {
		Expect(InferEnv("https://api-staging.storyteller.app")).To(Equal(EnvStaging))
		Expect(InferEnv("https://staging.storyteller.app/api")).To(Equal(EnvStaging))
	})

	It("should recognize staging anywhere in host or path", func() {
		Expect(InferEnv("https://canary-staging.internal.example.com")).To(Equal(EnvStaging))
		Expect(InferEnv("https://api.example.com/staging/v2")).To(Equal(EnvStaging))
	})

	It("should recognize known production hosts", func() {
		Expect(InferEnv("https://api.storyteller.app")).To(Equal(EnvProduction))
	})

	It("should default unknown hosts to production", func() {
		Expect(InferEnv("https://api.unknown.example.com")).To(Equal(EnvProduction))
	})
})

var _ = Describe("IsProductionAPI", func() {
	It("should only match the production host list", func() {
		Expect(IsProductionAPI("https://api.storyteller.app")).To(BeTrue())
		Expect(IsProductionAPI("https://storyteller.app")).To(BeTrue())
		Expect(IsProductionAPI("https://api-staging.storyteller.app")).To(BeFalse())
		Expect(IsProductionAPI("https://api.unknown.example.com")).To(BeFalse())
	})
})

var _ = Describe("CheckGuardrails", func() {
	It("should refuse a production API without confirmation", func() {
		err := CheckGuardrails(GuardrailInput{
			APIBaseURL:  "https://api.storyteller.app",
			Environment: EnvProduction,
		}, quietLogger())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("--confirm-production"))
	})

	It("should allow a confirmed production API", func() {
		err := CheckGuardrails(GuardrailInput{
			APIBaseURL:        "https://api.storyteller.app",
			Environment:       EnvProduction,
			ConfirmProduction: true,
		}, quietLogger())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should gate ensure-user in production behind both flags", func() {
		base := GuardrailInput{
			APIBaseURL:          "https://api.storyteller.app",
			Environment:         EnvProduction,
			ConfirmProduction:   true,
			EnsureUserRequested: true,
		}
		Expect(CheckGuardrails(base, quietLogger())).To(HaveOccurred())

		base.AllowProdEnsureUser = true
		Expect(CheckGuardrails(base, quietLogger())).NotTo(HaveOccurred())
	})

	It("should refuse a production-named target outside production", func() {
		err := CheckGuardrails(GuardrailInput{
			APIBaseURL:       "https://api-staging.storyteller.app",
			Environment:      EnvStaging,
			InvocationTarget: "character-pipeline-PRODUCTION",
		}, quietLogger())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("names production"))
	})

	It("should only warn when staging points at a production host", func() {
		err := CheckGuardrails(GuardrailInput{
			APIBaseURL:        "https://api.storyteller.app",
			Environment:       EnvStaging,
			ConfirmProduction: true,
		}, quietLogger())
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("ClassifyToken", func() {
	It("should classify supabase issuers", func() {
		Expect(ClassifyToken("https://abc.supabase.co/auth/v1")).To(Equal("supabase_jwt"))
		Expect(ClassifyToken("SUPABASE")).To(Equal("supabase_jwt"))
	})

	It("should classify everything else as custom", func() {
		Expect(ClassifyToken("https://auth.storyteller.app")).To(Equal("custom_jwt"))
		Expect(ClassifyToken("")).To(Equal("custom_jwt"))
	})
})
