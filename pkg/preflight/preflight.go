package preflight

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jqsirls/character-canary/internal/config"
	apperrors "github.com/jqsirls/character-canary/internal/errors"
	"github.com/jqsirls/character-canary/pkg/genservice"
	"github.com/jqsirls/character-canary/pkg/paramstore"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

// legacyCredentialSunset is when the legacy parameter paths stop working.
const legacyCredentialSunset = "2026-12-31"

// Options selects the optional preflight behaviors.
type Options struct {
	RecoveryDir         string
	SkipAuthPreflight   bool
	PreflightOnly       bool
	EnsureUserRequested bool
	ConfirmProduction   bool
	AllowProdEnsureUser bool
	EmailOverride       string
	PasswordOverride    string
	PersistSSM          bool
}

// Preflight wires the collaborators the gates probe.
type Preflight struct {
	Config   *config.RunConfig
	Resolver *config.Resolver
	Store    *statestore.Store
	Gen      *genservice.Client
	Params   paramstore.Client
	Log      *logrus.Logger
}

// Run executes the gates in order. It returns stop=true when the process
// should exit successfully without running canaries (--preflight-only).
func (p *Preflight) Run(ctx context.Context, opts Options) (stop bool, err error) {
	if err := ScanRecoveryDir(opts.RecoveryDir); err != nil {
		return false, err
	}
	p.gatePassed("secret_scan")

	if err := p.connectivity(ctx); err != nil {
		return false, err
	}
	p.gatePassed("connectivity")

	prefix, detected := p.Gen.DetectAuthPrefix(ctx)
	if !detected {
		p.Log.WithFields(logging.PreflightFields("auth_prefix").ToLogrus()).
			Warn("Neither auth prefix answered; defaulting to /api/v1")
	}
	p.Config.SetAuthBasePath(prefix)
	p.Gen.AuthBasePath = prefix
	p.gatePassed("auth_prefix")

	if err := p.resolveCredentials(ctx, opts); err != nil {
		return false, err
	}
	p.gatePassed("credentials")

	if err := p.maybeEnsureUser(ctx, opts); err != nil {
		return false, err
	}

	if err := p.schemaParity(ctx); err != nil {
		return false, err
	}
	p.gatePassed("schema_parity")

	if opts.PreflightOnly {
		return true, nil
	}

	if !opts.SkipAuthPreflight {
		if err := p.authPreflight(ctx); err != nil {
			return false, err
		}
		p.gatePassed("auth")
	}

	return false, nil
}

func (p *Preflight) gatePassed(gate string) {
	p.Log.WithFields(logging.PreflightFields(gate).ToLogrus()).Info("Preflight gate passed")
}

// connectivity probes the ready endpoint and maps failures to actionable
// remediation text.
func (p *Preflight) connectivity(ctx context.Context) error {
	status, err := p.Gen.ProbeReady(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "no such host") {
			return apperrors.New(apperrors.ErrorTypePreflight, "API host does not resolve").
				WithDetails("check the API base URL, your VPN, and the DNS search domain")
		}
		return apperrors.NewPreflightError("connectivity", err)
	}
	switch {
	case status == http.StatusNotFound:
		return apperrors.New(apperrors.ErrorTypePreflight, "ready endpoint not found").
			WithDetails("confirm the API base URL points at the generation service root, not a sub-path; confirm the deployment exposes /ready")
	case status >= 500:
		return apperrors.Newf(apperrors.ErrorTypePreflight, "ready endpoint returned %d", status).
			WithDetails("the generation service is unhealthy; check its deployment before rerunning")
	}
	return nil
}

// resolveCredentials finds the canary user credentials: explicit overrides,
// env vars, primary parameter paths, then legacy paths with a deprecation
// warning.
func (p *Preflight) resolveCredentials(ctx context.Context, opts Options) error {
	prefix := p.Config.ParamPrefix

	email, emailSource, err := p.resolveCredential(ctx, config.Spec{
		Name:   "canary.auth_email",
		EnvVar: "CANARY_EMAIL",
		ParamPaths: []string{
			prefix + "/canary/auth_email",
			prefix + "/test/user-email",
		},
	}, opts.EmailOverride)
	if err != nil {
		return err
	}
	password, passwordSource, err := p.resolveCredential(ctx, config.Spec{
		Name:   "canary.auth_password",
		EnvVar: "CANARY_PASSWORD",
		ParamPaths: []string{
			prefix + "/canary/auth_password",
			prefix + "/test/user-password",
		},
		Secret: true,
	}, opts.PasswordOverride)
	if err != nil {
		return err
	}

	for _, source := range []string{emailSource, passwordSource} {
		if strings.Contains(source, "/test/user-") {
			p.Log.WithFields(logging.PreflightFields("credentials").
				Custom("source", source).
				ToLogrus()).Warnf("Legacy credential path in use; migrate to %s/canary/* before %s", prefix, legacyCredentialSunset)
		}
	}

	p.Config.CanaryEmail = email
	p.Config.CanaryPassword = password
	return nil
}

func (p *Preflight) resolveCredential(ctx context.Context, spec config.Spec, override string) (string, string, error) {
	if override != "" {
		return override, "flag", nil
	}
	value, err := p.Resolver.Resolve(ctx, spec)
	if err != nil {
		return "", "", err
	}
	return value.Value, value.Source, nil
}

// maybeEnsureUser provisions the canary user when requested, or when the
// environment is staging and no credentials were found.
func (p *Preflight) maybeEnsureUser(ctx context.Context, opts Options) error {
	missing := p.Config.CanaryEmail == "" || p.Config.CanaryPassword == ""
	wanted := opts.EnsureUserRequested || (p.Config.Environment == EnvStaging && missing)
	if !wanted {
		if missing {
			return apperrors.New(apperrors.ErrorTypeConfig,
				"canary credentials missing and ensure-user not requested")
		}
		return nil
	}

	if p.Config.Environment == EnvProduction &&
		(!opts.ConfirmProduction || !opts.AllowProdEnsureUser) {
		return apperrors.New(apperrors.ErrorTypePreflight,
			"ensure-canary-user in production requires both --confirm-production and --allow-prod-ensure-user")
	}

	if missing {
		p.Config.CanaryEmail = fmt.Sprintf("canary+%s@storyteller.app", p.Config.RunNonce)
		p.Config.CanaryPassword = uuid.NewString()
	}

	if err := p.Gen.EnsureCanaryUser(ctx, p.Config.StateStoreCredential, p.Config.CanaryEmail, p.Config.CanaryPassword); err != nil {
		return apperrors.NewPreflightError("ensure_user", err)
	}
	p.gatePassed("ensure_user")

	if opts.PersistSSM {
		return p.persistCredentials(ctx)
	}
	return nil
}

// persistCredentials writes the working credentials back to the primary
// parameter paths.
func (p *Preflight) persistCredentials(ctx context.Context) error {
	prefix := p.Config.ParamPrefix
	if err := p.Params.PutParameter(ctx, prefix+"/canary/auth_email", p.Config.CanaryEmail, false); err != nil {
		return apperrors.NewPreflightError("persist_ssm", err)
	}
	if err := p.Params.PutParameter(ctx, prefix+"/canary/auth_password", p.Config.CanaryPassword, true); err != nil {
		return apperrors.NewPreflightError("persist_ssm", err)
	}
	p.Log.WithFields(logging.PreflightFields("persist_ssm").ToLogrus()).
		Info("Canary credentials persisted to the primary parameter paths")
	return nil
}

// authPreflight logs in, fetches the profile and classifies the token.
func (p *Preflight) authPreflight(ctx context.Context) error {
	result, status, err := p.Gen.Login(ctx, p.Config.CanaryEmail, p.Config.CanaryPassword)
	if err != nil {
		return apperrors.NewPreflightError("auth login", err)
	}
	if result == nil || status < 200 || status >= 300 {
		return apperrors.Newf(apperrors.ErrorTypeAuth, "canary login returned %d", status)
	}

	meStatus, err := p.Gen.Me(ctx, result.AccessToken)
	if err != nil {
		return apperrors.NewPreflightError("auth profile", err)
	}
	if meStatus < 200 || meStatus >= 300 {
		return apperrors.Newf(apperrors.ErrorTypeAuth, "auth profile returned %d", meStatus)
	}

	issuer := genservice.PeekIssuer(result.AccessToken)
	meta := config.TokenMetadata{Issuer: issuer, Type: ClassifyToken(issuer)}
	p.Config.SetAccessToken(result.AccessToken, meta)

	p.Log.WithFields(logging.PreflightFields("auth").
		Custom("token_type", meta.Type).
		Custom("issuer", issuer).
		ToLogrus()).Info("Auth receipt verified")

	return nil
}

// ClassifyToken maps a JWT issuer to the token type recorded in RunConfig.
func ClassifyToken(issuer string) string {
	if strings.Contains(strings.ToLower(issuer), "supabase") {
		return "supabase_jwt"
	}
	return "custom_jwt"
}

// requiredColumns is the schema-parity contract on the characters table.
var requiredColumns = []struct {
	Name    string
	SQLType string
}{
	{"headshot_url", "text"},
	{"bodyshot_url", "text"},
	{"headshot_trace_url", "text"},
	{"bodyshot_trace_url", "text"},
	{"headshot_prompt_hash", "text"},
	{"bodyshot_prompt_hash", "text"},
	{"global_style_hash", "text"},
	{"headshot_status", "text"},
	{"bodyshot_status", "text"},
	{"character_state", "text"},
	{"applied_inclusivity_traits", "jsonb"},
	{"excluded_inclusivity_traits", "jsonb"},
	{"image_model", "text"},
	{"current_headshot_attempt_id", "uuid"},
	{"last_good_headshot_attempt_id", "uuid"},
	{"current_bodyshot_attempt_id", "uuid"},
	{"last_good_bodyshot_attempt_id", "uuid"},
	{"failure_codes", "jsonb"},
	{"reference_images", "jsonb"},
	{"canary_nonce", "text"},
}

// schemaParity probes every required column and, when any are missing,
// fails with a ready-to-apply remediation block.
func (p *Preflight) schemaParity(ctx context.Context) error {
	var missing []string
	for _, column := range requiredColumns {
		exists, err := p.Store.ColumnExists(ctx, column.Name)
		if err != nil {
			return apperrors.NewPreflightError("schema_parity", err)
		}
		if !exists {
			missing = append(missing, fmt.Sprintf(
				"ALTER TABLE characters ADD COLUMN IF NOT EXISTS %s %s;",
				statestore.QuoteIdentifier(column.Name), column.SQLType))
		}
	}
	if len(missing) > 0 {
		return apperrors.New(apperrors.ErrorTypePreflight, "characters table is missing required columns").
			WithDetails("apply this remediation and rerun:\n" + strings.Join(missing, "\n"))
	}
	return nil
}
