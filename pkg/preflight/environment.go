// Package preflight runs the hard gates that precede any canary: secret
// scan, connectivity, auth-prefix detection, credential resolution, schema
// parity and the auth receipt, plus the production guardrails.
package preflight

import (
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/jqsirls/character-canary/internal/errors"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
)

// Environment tags.
const (
	EnvStaging    = "staging"
	EnvProduction = "production"
)

var stagingHosts = map[string]bool{
	"api-staging.storyteller.app": true,
	"staging.storyteller.app":     true,
}

var productionHosts = map[string]bool{
	"api.storyteller.app": true,
	"storyteller.app":     true,
}

// InferEnv derives the environment tag from the API base URL. Unknown hosts
// default to production so the guardrails err on the safe side.
func InferEnv(apiBaseURL string) string {
	parsed, err := url.Parse(apiBaseURL)
	if err != nil {
		return EnvProduction
	}
	host := strings.ToLower(parsed.Hostname())
	if stagingHosts[host] || strings.Contains(host, "staging") || strings.Contains(parsed.Path, "staging") {
		return EnvStaging
	}
	return EnvProduction
}

// IsProductionAPI reports whether the API host is a known production host.
func IsProductionAPI(apiBaseURL string) bool {
	parsed, err := url.Parse(apiBaseURL)
	if err != nil {
		return false
	}
	return productionHosts[strings.ToLower(parsed.Hostname())]
}

// GuardrailInput carries everything the production guardrails inspect.
type GuardrailInput struct {
	APIBaseURL          string
	Environment         string
	InvocationTarget    string
	ConfirmProduction   bool
	EnsureUserRequested bool
	AllowProdEnsureUser bool
}

// CheckGuardrails enforces the production protections before any
// invocation. The staging-host-looks-production case only warns.
func CheckGuardrails(in GuardrailInput, log *logrus.Logger) error {
	if IsProductionAPI(in.APIBaseURL) && !in.ConfirmProduction {
		return apperrors.New(apperrors.ErrorTypePreflight,
			"refusing to run against a production API host without --confirm-production")
	}

	if in.Environment == EnvProduction && in.EnsureUserRequested {
		if !in.ConfirmProduction || !in.AllowProdEnsureUser {
			return apperrors.New(apperrors.ErrorTypePreflight,
				"ensure-canary-user in production requires both --confirm-production and --allow-prod-ensure-user")
		}
	}

	if in.Environment != EnvProduction &&
		strings.Contains(strings.ToLower(in.InvocationTarget), "production") {
		return apperrors.Newf(apperrors.ErrorTypePreflight,
			"environment is %s but invocation target %q names production", in.Environment, in.InvocationTarget)
	}

	if in.Environment == EnvStaging && IsProductionAPI(in.APIBaseURL) {
		log.WithFields(logging.PreflightFields("guardrails").
			Custom("api_base", in.APIBaseURL).
			ToLogrus()).Warn("Environment resolved to staging but the API host looks production")
	}

	return nil
}
