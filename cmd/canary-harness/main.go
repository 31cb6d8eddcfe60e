// Command canary-harness drives the character-image generation canaries:
// preflight gates, per-canary execution, assertions and review artifacts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/jqsirls/character-canary/internal/config"
	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/canonical"
	"github.com/jqsirls/character-canary/pkg/driver"
	"github.com/jqsirls/character-canary/pkg/paramstore"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := flag.NewFlagSet("canary-harness", flag.ContinueOnError)

	var (
		matrix        = flags.Bool("matrix", false, "run the broad matrix pool")
		targeted      = flags.Bool("targeted", false, "run the expectation-driven targeted pool")
		canonicalOnly = flags.Bool("canonical", false, "validate the pool and exit")
		mode          = flags.String("mode", "e2e", "execution mode: e2e|component (alias end-to-end)")
		only          = flags.String("only", "", "comma-separated canary ids to run")
		poolFile      = flags.String("pool-file", "", "YAML canary pool file")
		preflightOnly = flags.Bool("preflight-only", false, "stop after the schema-parity gate")
		listTraits    = flags.Bool("list-traits", false, "print the inclusivity traits and exit")
		listEnums     = flags.Bool("list-enums", false, "print every canonical domain and exit")
		resolveToken  = flags.String("resolve", "", "resolve a token across domains and exit")
		strict        = flags.Bool("strict", false, "upgrade strict-eligible soft issues to hard failures")
		strictAlias   = flags.Bool("strict-mode", false, "alias for --strict")
		email         = flags.String("canary-email", "", "canary user email override")
		password      = flags.String("canary-password", "", "canary user password override")
		skipAuth      = flags.Bool("skip-auth-preflight", false, "skip the login/profile preflight")
		confirmProd   = flags.Bool("confirm-production", false, "acknowledge running against production")
		ensureUser    = flags.Bool("ensure-canary-user", false, "create or reset the canary user")
		allowProdUser = flags.Bool("allow-prod-ensure-user", false, "allow ensure-canary-user in production")
		forceBadHost  = flags.Bool("force-bad-host", false, "restrict the asset allowlist to bad.example.com")
		env           = flags.String("env", "", "environment override: staging|production")
		persistSSM    = flags.Bool("persist-ssm", false, "write working credentials to the primary parameter paths")
		recoveryDir   = flags.String("recovery-dir", "recovery", "directory scanned for leaked secrets")
		dictFile      = flags.String("dictionary", "", "canonical dictionary YAML (defaults to the compiled-in snapshot)")
	)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := newLogger()

	parsedMode, err := config.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *env != "" && *env != "staging" && *env != "production" {
		fmt.Fprintf(os.Stderr, "unknown --env value %q\n", *env)
		return 1
	}

	dict, err := loadDictionary(*dictFile)
	if err != nil {
		log.WithError(err).Error("Dictionary load failed")
		return 1
	}

	ctx := context.Background()

	params, err := newParamStore(ctx, log)
	if err != nil {
		log.WithError(err).Error("Parameter store initialization failed")
		return 1
	}

	pool := canary.PoolMatrix
	if *targeted && !*matrix {
		pool = canary.PoolTargeted
	}

	d := &driver.Driver{
		Log:    log,
		Dict:   dict,
		Params: params,
	}
	return d.Run(ctx, driver.Options{
		Pool:     pool,
		PoolFile: *poolFile,
		Only:     *only,
		Mode:     parsedMode,
		Strict:   *strict || *strictAlias,

		CanonicalOnly: *canonicalOnly,
		PreflightOnly: *preflightOnly,

		SkipAuthPreflight:   *skipAuth,
		ConfirmProduction:   *confirmProd,
		EnsureUser:          *ensureUser,
		AllowProdEnsureUser: *allowProdUser,
		ForceBadHost:        *forceBadHost,
		PersistSSM:          *persistSSM,

		EnvOverride:    *env,
		CanaryEmail:    *email,
		CanaryPassword: *password,
		RecoveryDir:    *recoveryDir,

		ListTraits:   *listTraits,
		ListEnums:    *listEnums,
		ResolveToken: *resolveToken,
	})
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}
	return log
}

func loadDictionary(path string) (canonical.Dictionary, error) {
	if path == "" {
		return canonical.Builtin(), nil
	}
	return canonical.LoadFile(path)
}

func newParamStore(ctx context.Context, log *logrus.Logger) (paramstore.Client, error) {
	// Offline development without AWS credentials still needs the env-var
	// and fallback layers to work.
	if os.Getenv("CANARY_DISABLE_PARAMSTORE") == "1" {
		log.Warn("Parameter store disabled; resolving from env and fallbacks only")
		return paramstore.NewFake(), nil
	}
	return paramstore.NewAWSClient(ctx)
}
