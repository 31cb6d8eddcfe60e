// Package config resolves every harness setting through the layered
// env → parameter store → fallback chain and carries the frozen RunConfig
// the rest of the process reads.
package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	apperrors "github.com/jqsirls/character-canary/internal/errors"
	"github.com/jqsirls/character-canary/pkg/paramstore"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
)

var secretNamePattern = regexp.MustCompile(`(?i)(key|secret|password|token)`)

// Spec names one setting and the sources it may resolve from, in order.
type Spec struct {
	Name       string
	EnvVar     string
	ParamPaths []string
	Fallback   *string
	Required   bool
	Secret     bool
}

// Value is a resolved setting with its provenance.
type Value struct {
	Value  string
	Source string
}

// Resolver walks the source chain for each Spec. It never retries a source.
type Resolver struct {
	Store paramstore.Client
	Log   *logrus.Logger
}

// NewResolver builds a resolver over the given parameter store.
func NewResolver(store paramstore.Client, log *logrus.Logger) *Resolver {
	return &Resolver{Store: store, Log: log}
}

// Resolve produces a value and provenance for the spec, or a config error
// naming every attempted source when a required setting has none.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (Value, error) {
	var attempts []string

	if spec.EnvVar != "" {
		if value := os.Getenv(spec.EnvVar); value != "" {
			resolved := Value{Value: value, Source: fmt.Sprintf("env %s", spec.EnvVar)}
			r.logResolution(spec, resolved)
			return resolved, nil
		}
		attempts = append(attempts, fmt.Sprintf("env %s: unset or empty", spec.EnvVar))
	}

	for _, path := range spec.ParamPaths {
		value, err := r.Store.GetParameter(ctx, path, true)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("paramstore %s: %v", path, err))
			continue
		}
		if value == "" {
			attempts = append(attempts, fmt.Sprintf("paramstore %s: empty value", path))
			continue
		}
		resolved := Value{Value: value, Source: fmt.Sprintf("paramstore %s", path)}
		r.logResolution(spec, resolved)
		return resolved, nil
	}

	if spec.Fallback != nil {
		resolved := Value{Value: *spec.Fallback, Source: "fallback"}
		r.logResolution(spec, resolved)
		return resolved, nil
	}

	if spec.Required {
		return Value{}, apperrors.NewConfigError(spec.Name,
			fmt.Sprintf("no source produced a value; attempted: %s", strings.Join(attempts, "; ")))
	}

	return Value{}, nil
}

// isSecret reports whether the resolved value must be masked in logs.
func (r *Resolver) isSecret(spec Spec) bool {
	return spec.Secret || secretNamePattern.MatchString(spec.Name)
}

func (r *Resolver) logResolution(spec Spec, resolved Value) {
	if r.Log == nil {
		return
	}
	display := resolved.Value
	if r.isSecret(spec) {
		display = "***"
	}
	r.Log.WithFields(logging.ConfigFields(spec.Name, resolved.Source).
		Custom("value", display).
		ToLogrus()).Info("Resolved setting")
}

// String is a convenience for building Spec fallbacks.
func String(s string) *string {
	return &s
}
