package driver

import (
	"context"
	"time"

	"github.com/jqsirls/character-canary/internal/config"
	apperrors "github.com/jqsirls/character-canary/internal/errors"
	"github.com/jqsirls/character-canary/pkg/preflight"
)

// Defaults used when neither the environment nor the parameter store
// supplies a value.
const (
	defaultAPIBase          = "https://api-staging.storyteller.app"
	defaultParamPrefix      = "/storyteller"
	defaultSnapshotBasePath = "/public/v1"
)

func timeNow() time.Time {
	return time.Now().UTC()
}

// resolveConfig builds the RunConfig from the layered sources and the CLI
// options, recording provenance for the invocation target.
func (d *Driver) resolveConfig(ctx context.Context, opts Options) (*config.RunConfig, error) {
	resolver := config.NewResolver(d.Params, d.Log)

	paramPrefix, err := resolver.Resolve(ctx, config.Spec{
		Name:     "paramstore.prefix",
		EnvVar:   "CANARY_PARAM_PREFIX",
		Fallback: config.String(defaultParamPrefix),
	})
	if err != nil {
		return nil, err
	}
	prefix := paramPrefix.Value

	apiBase, err := resolver.Resolve(ctx, config.Spec{
		Name:       "api.base_url",
		EnvVar:     "CANARY_API_BASE_URL",
		ParamPaths: []string{prefix + "/canary/api_base_url"},
		Fallback:   config.String(defaultAPIBase),
	})
	if err != nil {
		return nil, err
	}

	snapshotBase, err := resolver.Resolve(ctx, config.Spec{
		Name:       "api.snapshot_base_path",
		ParamPaths: []string{prefix + "/canary/snapshot_base_path"},
		Fallback:   config.String(defaultSnapshotBasePath),
	})
	if err != nil {
		return nil, err
	}

	invocationTarget, err := resolver.Resolve(ctx, config.Spec{
		Name:       "canary.invocation_target",
		EnvVar:     "CANARY_INVOCATION_TARGET",
		ParamPaths: []string{prefix + "/canary/invocation_target"},
		Fallback:   config.String("character-pipeline-staging"),
	})
	if err != nil {
		return nil, err
	}

	stateStoreURL, err := resolver.Resolve(ctx, config.Spec{
		Name:       "statestore.url",
		EnvVar:     "CANARY_STATESTORE_URL",
		ParamPaths: []string{prefix + "/statestore/url"},
		Required:   true,
	})
	if err != nil {
		return nil, err
	}

	stateStoreKey, err := resolver.Resolve(ctx, config.Spec{
		Name:       "statestore.service_key",
		EnvVar:     "CANARY_STATESTORE_SERVICE_KEY",
		ParamPaths: []string{prefix + "/statestore/service_key"},
		Required:   true,
		Secret:     true,
	})
	if err != nil {
		return nil, err
	}

	testUser, err := resolver.Resolve(ctx, config.Spec{
		Name:       "canary.test_user_id",
		ParamPaths: []string{prefix + "/canary/test_user_id"},
		Fallback:   config.String("00000000-0000-0000-0000-00000000c0de"),
	})
	if err != nil {
		return nil, err
	}

	testLibrary, err := resolver.Resolve(ctx, config.Spec{
		Name:       "canary.test_library_id",
		ParamPaths: []string{prefix + "/canary/test_library_id"},
		Fallback:   config.String("00000000-0000-0000-0000-00000000cafe"),
	})
	if err != nil {
		return nil, err
	}

	hostsValue, err := resolver.Resolve(ctx, config.Spec{
		Name:       "canary.public_asset_hosts",
		ParamPaths: []string{prefix + "/canary/public_asset_hosts"},
	})
	if err != nil {
		return nil, err
	}
	hosts := splitHosts(hostsValue.Value)
	if len(hosts) == 0 {
		hosts = fallbackHosts()
	}
	if opts.ForceBadHost {
		hosts = []string{"bad.example.com"}
	}

	inferred := preflight.InferEnv(apiBase.Value)
	environment := inferred
	envInferred := true
	if opts.EnvOverride != "" {
		if opts.EnvOverride == preflight.EnvProduction && inferred == preflight.EnvStaging {
			return nil, apperrors.New(apperrors.ErrorTypeConfig,
				"conflicting environment selection: --env=production against a staging API base")
		}
		environment = opts.EnvOverride
		envInferred = false
	}

	cfg := &config.RunConfig{
		APIBaseURL:       apiBase.Value,
		SnapshotBasePath: snapshotBase.Value,
		ParamPrefix:      prefix,
		Environment:      environment,
		EnvInferred:      envInferred,

		StateStoreURL:        stateStoreURL.Value,
		StateStoreCredential: stateStoreKey.Value,

		InvocationTarget: config.Provenanced{
			Value:  invocationTarget.Value,
			Source: invocationTarget.Source,
		},

		TestUserID:    testUser.Value,
		TestLibraryID: testLibrary.Value,

		AllowedAssetHosts: hosts,

		RunNonce: newRunNonce(),
		Mode:     opts.Mode,
	}
	return cfg, nil
}
