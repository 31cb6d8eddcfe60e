package config

import "fmt"

// Mode selects the canary execution path.
type Mode string

const (
	ModeE2E       Mode = "e2e"
	ModeComponent Mode = "component"
)

// ParseMode normalizes a mode token, accepting the end-to-end alias.
func ParseMode(token string) (Mode, error) {
	switch token {
	case "e2e", "end-to-end":
		return ModeE2E, nil
	case "component":
		return ModeComponent, nil
	}
	return "", fmt.Errorf("unknown mode %q (expected e2e or component)", token)
}

// TokenMetadata describes the access token obtained during auth preflight.
type TokenMetadata struct {
	Type   string `json:"type"`
	Issuer string `json:"issuer"`
}

// Provenanced is a string value that remembers where it came from.
type Provenanced struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// RunConfig is the resolved environment for one harness run. Preflight
// populates it; Freeze marks the end of mutation.
type RunConfig struct {
	APIBaseURL       string
	AuthBasePath     string
	SnapshotBasePath string
	ParamPrefix      string
	Environment      string
	EnvInferred      bool

	StateStoreURL        string
	StateStoreCredential string

	InvocationTarget Provenanced

	TestUserID    string
	TestLibraryID string

	CanaryEmail    string
	CanaryPassword string

	AllowedAssetHosts []string

	RunNonce string
	Mode     Mode

	AccessToken string
	Token       TokenMetadata

	frozen bool
}

// Freeze marks the config read-only. Mutating helpers must not be called
// afterwards.
func (c *RunConfig) Freeze() {
	c.frozen = true
}

// Frozen reports whether preflight has completed.
func (c *RunConfig) Frozen() bool {
	return c.frozen
}

// SetAccessToken records the preflight access token. Panics if the config is
// already frozen, which would indicate a phase-ordering bug.
func (c *RunConfig) SetAccessToken(token string, meta TokenMetadata) {
	c.mustBeMutable()
	c.AccessToken = token
	c.Token = meta
}

// SetAuthBasePath records the detected auth prefix.
func (c *RunConfig) SetAuthBasePath(prefix string) {
	c.mustBeMutable()
	c.AuthBasePath = prefix
}

func (c *RunConfig) mustBeMutable() {
	if c.frozen {
		panic("run config mutated after freeze")
	}
}
