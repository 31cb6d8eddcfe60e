// Package artifacts owns the five local output files of a harness run: the
// canary JSONL + markdown pair, the attempts JSONL and the two review
// markdowns. All writes are UTF-8, newline-terminated appends.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	sharederrors "github.com/jqsirls/character-canary/pkg/shared/errors"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
)

// Environment overrides for the artifact paths.
const (
	EnvCanaryJSONL   = "CANARY_RESULTS_JSONL"
	EnvCanaryMD      = "CANARY_RESULTS_MD"
	EnvAttemptsJSONL = "CANARY_ATTEMPTS_JSONL"
	EnvReviewMD      = "CANARY_REVIEW_MD"
	EnvReviewRunMD   = "CANARY_REVIEW_RUN_MD"
)

// Paths locates the five artifact files.
type Paths struct {
	CanaryJSONL   string
	CanaryMD      string
	AttemptsJSONL string
	ReviewMD      string
	ReviewRunMD   string
}

// DefaultPaths places the artifacts under the system temp directory,
// honoring the env overrides. The per-run review markdown embeds the run
// nonce so successive runs never collide.
func DefaultPaths(runNonce string) Paths {
	base := os.TempDir()
	pick := func(envVar, fallback string) string {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
		return fallback
	}
	return Paths{
		CanaryJSONL:   pick(EnvCanaryJSONL, filepath.Join(base, "canary-results.jsonl")),
		CanaryMD:      pick(EnvCanaryMD, filepath.Join(base, "canary-results.md")),
		AttemptsJSONL: pick(EnvAttemptsJSONL, filepath.Join(base, "canary-attempts.jsonl")),
		ReviewMD:      pick(EnvReviewMD, filepath.Join(base, "canary-review-latest.md")),
		ReviewRunMD:   pick(EnvReviewRunMD, filepath.Join(base, fmt.Sprintf("canary-review-%s.md", runNonce))),
	}
}

// ReviewHeader is the metadata block regenerated at the top of both review
// markdowns at run start.
type ReviewHeader struct {
	WindowStart      time.Time
	Environment      string
	EnvInferred      bool
	Mode             string
	RunNonce         string
	APIBase          string
	AuthBasePath     string
	SnapshotBasePath string
	InvocationTarget string
	TargetProvenance string
}

func (h ReviewHeader) render() string {
	return fmt.Sprintf(`# Canary review

- window_start: %s
- window_end: _(filled in by reviewer)_
- total_runs: _(filled in by reviewer)_
- env: %s
- env_inferred: %t
- mode: %s
- run_nonce: %s
- api_base: %s
- auth_base_path: %s
- snapshot_base_path: %s
- invocation_target: %s (%s)

`,
		h.WindowStart.UTC().Format(time.RFC3339),
		h.Environment,
		h.EnvInferred,
		h.Mode,
		h.RunNonce,
		h.APIBase,
		h.AuthBasePath,
		h.SnapshotBasePath,
		h.InvocationTarget,
		h.TargetProvenance,
	)
}

// Emitter appends run artifacts under a single mutex so parallel callers
// cannot interleave writes within one file.
type Emitter struct {
	paths Paths
	log   *logrus.Logger
	mu    sync.Mutex
}

// NewEmitter builds an emitter over the given paths.
func NewEmitter(paths Paths, log *logrus.Logger) *Emitter {
	return &Emitter{paths: paths, log: log}
}

// Paths exposes the resolved file locations.
func (e *Emitter) Paths() Paths {
	return e.paths
}

// InitRun regenerates both review markdown headers. The persistent review
// file is reset alongside the per-run file so each window starts clean.
func (e *Emitter) InitRun(header ReviewHeader) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rendered := header.render()
	for _, path := range []string{e.paths.ReviewMD, e.paths.ReviewRunMD} {
		if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
			return sharederrors.FailedTo("initialize review markdown", err)
		}
		e.log.WithFields(logging.ArtifactFields("init", path).ToLogrus()).
			Info("Review header written")
	}
	return nil
}

// AppendJSONL writes one JSON object as a single line of the given file.
func (e *Emitter) AppendJSONL(path string, record interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	line, err := json.Marshal(record)
	if err != nil {
		return sharederrors.FailedTo("marshal artifact record", err)
	}
	return e.appendLine(path, string(line))
}

// AppendCanaryReport appends a run report to the canary JSONL and the
// canary markdown.
func (e *Emitter) AppendCanaryReport(report interface{}, characterID string) error {
	if err := e.AppendJSONL(e.paths.CanaryJSONL, report); err != nil {
		return err
	}
	return e.AppendReviewBlock(e.paths.CanaryMD, fmt.Sprintf("## %s / run_summary", characterID), report)
}

// AppendAttemptEntry appends one attempt entry to the attempts JSONL and
// both review markdowns.
func (e *Emitter) AppendAttemptEntry(heading string, entry interface{}) error {
	if err := e.AppendJSONL(e.paths.AttemptsJSONL, entry); err != nil {
		return err
	}
	for _, path := range []string{e.paths.ReviewMD, e.paths.ReviewRunMD} {
		if err := e.AppendReviewBlock(path, heading, entry); err != nil {
			return err
		}
	}
	return nil
}

// AppendReviewBlock appends a heading plus a fenced JSON block to a
// markdown file.
func (e *Emitter) AppendReviewBlock(path, heading string, record interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return sharederrors.FailedTo("marshal review block", err)
	}
	block := fmt.Sprintf("%s\n\n```json\n%s\n```\n", heading, body)
	return e.appendLine(path, block)
}

// AttemptHeading formats the markdown heading for one attempt entry.
func AttemptHeading(characterID, assetType string, attemptIndex int) string {
	return fmt.Sprintf("## %s / %s / attempt %d", characterID, assetType, attemptIndex)
}

// NoAttemptsHeading formats the heading used when a character produced no
// attempts at all.
func NoAttemptsHeading(characterID string) string {
	return fmt.Sprintf("## %s / no_attempts", characterID)
}

func (e *Emitter) appendLine(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return sharederrors.FailedTo("open artifact file", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content + "\n"); err != nil {
		return sharederrors.FailedTo("append artifact", err)
	}
	return nil
}
