// Package driver composes the harness: pool selection, config resolution,
// guardrails, preflight, the per-canary loop and the final verdict.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/jqsirls/character-canary/internal/config"
	"github.com/jqsirls/character-canary/internal/database"
	"github.com/jqsirls/character-canary/pkg/artifacts"
	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/canonical"
	"github.com/jqsirls/character-canary/pkg/genservice"
	"github.com/jqsirls/character-canary/pkg/paramstore"
	"github.com/jqsirls/character-canary/pkg/preflight"
	"github.com/jqsirls/character-canary/pkg/runner"
	sharedhttp "github.com/jqsirls/character-canary/pkg/shared/http"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
	"github.com/jqsirls/character-canary/pkg/statestore"
	"github.com/jqsirls/character-canary/pkg/traces"
)

// Options mirrors the CLI surface.
type Options struct {
	Pool     string
	PoolFile string
	Only     string
	Mode     config.Mode
	Strict   bool

	CanonicalOnly bool
	PreflightOnly bool

	SkipAuthPreflight   bool
	ConfirmProduction   bool
	EnsureUser          bool
	AllowProdEnsureUser bool
	ForceBadHost        bool
	PersistSSM          bool

	EnvOverride    string
	CanaryEmail    string
	CanaryPassword string
	RecoveryDir    string

	ListTraits   bool
	ListEnums    bool
	ResolveToken string
}

// Driver runs the whole harness. DB may be pre-wired by tests; when nil the
// state store is connected from the resolved URL.
type Driver struct {
	Log    *logrus.Logger
	Dict   canonical.Dictionary
	Params paramstore.Client
	DB     *sqlx.DB

	// Stdout receives the final JSON summary; defaults to os.Stdout.
	Stdout *os.File
}

// CanarySummary is one entry of the final stdout summary.
type CanarySummary struct {
	ID                    string   `json:"id"`
	Status                string   `json:"status"`
	InstrumentationErrors []string `json:"instrumentation_errors"`
	HardFailErrors        []string `json:"hard_fail_errors"`
	SoftIssues            []string `json:"soft_issues"`
}

// Run executes the harness and returns the process exit code.
func (d *Driver) Run(ctx context.Context, opts Options) int {
	if handled, code := d.runUtility(opts); handled {
		return code
	}

	pool, err := d.selectPool(opts)
	if err != nil {
		d.Log.WithError(err).Error("Canary pool selection failed")
		return 1
	}

	if errs := canary.ValidateBatch(d.Dict, pool); len(errs) > 0 {
		for _, validationErr := range errs {
			fmt.Fprintln(os.Stderr, validationErr)
		}
		return 1
	}
	if opts.CanonicalOnly {
		d.Log.Info("Canary pool is canonical")
		return 0
	}

	cfg, err := d.resolveConfig(ctx, opts)
	if err != nil {
		d.Log.WithError(err).Error("Configuration resolution failed")
		return 1
	}

	if err := preflight.CheckGuardrails(preflight.GuardrailInput{
		APIBaseURL:          cfg.APIBaseURL,
		Environment:         cfg.Environment,
		InvocationTarget:    cfg.InvocationTarget.Value,
		ConfirmProduction:   opts.ConfirmProduction,
		EnsureUserRequested: opts.EnsureUser,
		AllowProdEnsureUser: opts.AllowProdEnsureUser,
	}, d.Log); err != nil {
		d.Log.WithError(err).Error("Production guardrail violated")
		return 1
	}

	db := d.DB
	if db == nil {
		db, err = database.ConnectURL(cfg.StateStoreURL, d.Log)
		if err != nil {
			d.Log.WithError(err).Error("State store connection failed")
			return 1
		}
		defer db.Close()
	}
	store := statestore.New(db, d.Log)

	gen := &genservice.Client{
		BaseURL:          cfg.APIBaseURL,
		AuthBasePath:     cfg.AuthBasePath,
		SnapshotBasePath: cfg.SnapshotBasePath,
		HTTP:             sharedhttp.NewClient(sharedhttp.GenerationServiceClientConfig(sharedhttp.DefaultClientConfig().Timeout)),
		Log:              d.Log,
	}

	pf := &preflight.Preflight{
		Config:   cfg,
		Resolver: config.NewResolver(d.Params, d.Log),
		Store:    store,
		Gen:      gen,
		Params:   d.Params,
		Log:      d.Log,
	}
	stop, err := pf.Run(ctx, preflight.Options{
		RecoveryDir:         opts.RecoveryDir,
		SkipAuthPreflight:   opts.SkipAuthPreflight,
		PreflightOnly:       opts.PreflightOnly,
		EnsureUserRequested: opts.EnsureUser,
		ConfirmProduction:   opts.ConfirmProduction,
		AllowProdEnsureUser: opts.AllowProdEnsureUser,
		EmailOverride:       opts.CanaryEmail,
		PasswordOverride:    opts.CanaryPassword,
		PersistSSM:          opts.PersistSSM,
	})
	if err != nil {
		d.Log.WithError(err).Error("Preflight failed")
		return 1
	}
	if stop {
		d.Log.Info("Preflight complete; exiting per --preflight-only")
		return 0
	}

	cfg.Freeze()

	emitter := artifacts.NewEmitter(artifacts.DefaultPaths(cfg.RunNonce), d.Log)
	if err := emitter.InitRun(reviewHeader(cfg)); err != nil {
		d.Log.WithError(err).Error("Review initialization failed")
		return 1
	}

	run := &runner.Runner{
		Config:  cfg,
		Store:   store,
		Gen:     gen,
		Traces:  &traces.Fetcher{HTTP: sharedhttp.NewClient(sharedhttp.TraceFetchClientConfig(sharedhttp.DefaultClientConfig().Timeout)), Log: d.Log},
		Emitter: emitter,
		Log:     d.Log,
		Strict:  opts.Strict,
	}

	summaries, failed := d.loop(ctx, run, pool)

	d.printSummary(summaries)
	if failed {
		return 1
	}
	return 0
}

// loop drives the canaries sequentially; a snapshot-receipt failure
// terminates the run after the current canary.
func (d *Driver) loop(ctx context.Context, run *runner.Runner, pool []canary.Definition) ([]CanarySummary, bool) {
	var summaries []CanarySummary
	failed := false

	for i := range pool {
		input := canary.Normalize(d.Dict, &pool[i])

		outcome, err := run.Run(ctx, input)
		if err != nil {
			d.Log.WithFields(logging.CanaryFields("emit", input.CanaryID).
				Error(err).
				ToLogrus()).Error("Artifact emission failed")
			failed = true
			break
		}

		report := outcome.Report
		summaries = append(summaries, CanarySummary{
			ID:                    input.CanaryID,
			Status:                report.Status,
			InstrumentationErrors: emptyIfNil(report.InstrumentationErrors),
			HardFailErrors:        emptyIfNil(report.HardFailErrors),
			SoftIssues:            emptyIfNil(report.SoftIssues),
		})
		if report.Status != "pass" {
			failed = true
		}
		if outcome.SnapshotFatal {
			d.Log.WithFields(logging.CanaryFields("abort", input.CanaryID).ToLogrus()).
				Error("Public snapshot receipt failed; terminating the run")
			break
		}
	}
	return summaries, failed
}

func (d *Driver) printSummary(summaries []CanarySummary) {
	out := d.Stdout
	if out == nil {
		out = os.Stdout
	}
	encoded, err := json.MarshalIndent(map[string]interface{}{"canaries": summaries}, "", "  ")
	if err != nil {
		d.Log.WithError(err).Error("Summary encoding failed")
		return
	}
	fmt.Fprintln(out, string(encoded))
}

// runUtility handles the dictionary utility flags.
func (d *Driver) runUtility(opts Options) (bool, int) {
	switch {
	case opts.ListTraits:
		for _, entry := range d.Dict.Enumerate(canonical.DomainInclusivityTraits) {
			fmt.Printf("%s\t%s\n", entry.Key, entry.Label)
		}
		return true, 0
	case opts.ListEnums:
		for _, domain := range d.Dict.Domains() {
			fmt.Printf("%s:\n", domain)
			for _, entry := range d.Dict.Enumerate(domain) {
				fmt.Printf("  %s\t%s\n", entry.Key, entry.Label)
			}
		}
		return true, 0
	case opts.ResolveToken != "":
		found := false
		for _, domain := range d.Dict.Domains() {
			if res, ok := d.Dict.Resolve(domain, opts.ResolveToken); ok {
				fmt.Printf("%s: %s (alias=%t)\n", domain, res.Value, res.IsAlias)
				found = true
			}
		}
		if !found {
			fmt.Printf("no match for %q\n", opts.ResolveToken)
			return true, 1
		}
		return true, 0
	}
	return false, 0
}

func (d *Driver) selectPool(opts Options) ([]canary.Definition, error) {
	var pool []canary.Definition
	if opts.PoolFile != "" {
		loaded, err := canary.LoadPoolFile(opts.PoolFile)
		if err != nil {
			return nil, err
		}
		pool = loaded
	} else {
		pool = canary.SelectPool(opts.Pool)
	}
	pool = canary.FilterByIDs(pool, opts.Only)
	if len(pool) == 0 {
		return nil, fmt.Errorf("no canaries selected (pool %q, only %q)", opts.Pool, opts.Only)
	}
	return pool, nil
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func reviewHeader(cfg *config.RunConfig) artifacts.ReviewHeader {
	return artifacts.ReviewHeader{
		WindowStart:      timeNow(),
		Environment:      cfg.Environment,
		EnvInferred:      cfg.EnvInferred,
		Mode:             string(cfg.Mode),
		RunNonce:         cfg.RunNonce,
		APIBase:          cfg.APIBaseURL,
		AuthBasePath:     cfg.AuthBasePath,
		SnapshotBasePath: cfg.SnapshotBasePath,
		InvocationTarget: cfg.InvocationTarget.Value,
		TargetProvenance: cfg.InvocationTarget.Source,
	}
}

func fallbackHosts() []string {
	return []string{
		"cdn.storyteller.app",
		"*.storyteller.app",
		"s3.amazonaws.com",
	}
}

func splitHosts(csv string) []string {
	var hosts []string
	for _, host := range strings.Split(csv, ",") {
		if host = strings.TrimSpace(host); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

func newRunNonce() string {
	return uuid.NewString()[:8]
}
