// Package genservice is the HTTP client for the character-image generation
// service: auth, canary invocations, remediation enqueues and the public
// snapshot receipt.
package genservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	sharederrors "github.com/jqsirls/character-canary/pkg/shared/errors"
	"github.com/jqsirls/character-canary/pkg/shared/logging"
)

// Invocation actions understood by the generation service.
const (
	ActionCompleteCreation = "complete_character_creation_with_visuals"
	ActionGenerateArt      = "generate_character_art"
	ActionEditImage        = "edit_character_image"
)

// Auth prefixes probed during preflight.
const (
	AuthPrefixAPI    = "/api/v1"
	AuthPrefixLegacy = "/v1"
)

// Client talks to the generation service. AuthBasePath is mutable until
// preflight detects the live prefix.
type Client struct {
	BaseURL          string
	AuthBasePath     string
	SnapshotBasePath string
	HTTP             *http.Client
	Log              *logrus.Logger
}

// LoginResult is the token payload returned by the auth endpoint.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// InvokeImage is one image entry echoed by an invocation response.
type InvokeImage struct {
	Type            string `json:"type"`
	URL             string `json:"url"`
	TraceURL        string `json:"traceUrl"`
	PromptHash      string `json:"promptHash"`
	OpenAIRequestID string `json:"openaiRequestId,omitempty"`
}

// InvokeResult is the generation-service invocation response.
type InvokeResult struct {
	CharacterID string        `json:"characterId"`
	Images      []InvokeImage `json:"images,omitempty"`
}

// ImageFor returns the echoed image entry for an asset type, if any.
func (r *InvokeResult) ImageFor(assetType string) *InvokeImage {
	if r == nil {
		return nil
	}
	for i := range r.Images {
		if r.Images[i].Type == assetType {
			return &r.Images[i]
		}
	}
	return nil
}

// ProbeReady issues the connectivity probe. The status code is returned even
// for non-2xx responses; only transport failures produce an error.
func (c *Client) ProbeReady(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/ready", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, sharederrors.NetworkError("probe ready endpoint", c.BaseURL+"/ready", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// DetectAuthPrefix probes the login route under both known prefixes. The
// first prefix that answers anything but 404 wins; when both 404, the caller
// falls back to the default and logs a warning.
func (c *Client) DetectAuthPrefix(ctx context.Context) (string, bool) {
	for _, prefix := range []string{AuthPrefixAPI, AuthPrefixLegacy} {
		status, err := c.postLogin(ctx, prefix, "probe@invalid.example", "probe")
		if err != nil {
			continue
		}
		if status != http.StatusNotFound {
			return prefix, true
		}
	}
	return AuthPrefixAPI, false
}

// Login authenticates the canary user under the detected prefix.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, int, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, 0, err
	}
	url := c.BaseURL + c.AuthBasePath + "/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, sharederrors.NetworkError("login", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, nil
	}

	var result LoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, resp.StatusCode, sharederrors.ParseError("login response", "JSON", err)
	}
	return &result, resp.StatusCode, nil
}

// Me fetches the authenticated profile, returning only the status code.
func (c *Client) Me(ctx context.Context, token string) (int, error) {
	url := c.BaseURL + c.AuthBasePath + "/auth/me"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, sharederrors.NetworkError("fetch auth profile", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Invoke issues a synchronous generation action and decodes the response.
func (c *Client) Invoke(ctx context.Context, token, action string, payload interface{}) (*InvokeResult, error) {
	raw, status, err := c.invoke(ctx, token, action, payload, false)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, sharederrors.FailedTo(
			fmt.Sprintf("invoke %s", action),
			fmt.Errorf("status %d: %s", status, truncate(raw, 200)))
	}
	var result InvokeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, sharederrors.ParseError("invocation response", "JSON", err)
	}
	c.Log.WithFields(logging.HTTPFields(http.MethodPost, action, status).
		Custom("character_id", result.CharacterID).
		ToLogrus()).Info("Invocation accepted")
	return &result, nil
}

// EditRequest targets one attempt for remediation.
type EditRequest struct {
	CharacterID string `json:"characterId"`
	AttemptID   string `json:"attemptId"`
	AssetType   string `json:"assetType"`
}

// EnqueueEdit dispatches an asynchronous edit-fix invocation. The service
// acknowledges the enqueue; completion is observed via the state store.
func (c *Client) EnqueueEdit(ctx context.Context, token string, edit EditRequest) error {
	raw, status, err := c.invoke(ctx, token, ActionEditImage, edit, true)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return sharederrors.FailedTo("enqueue edit",
			fmt.Errorf("status %d: %s", status, truncate(raw, 200)))
	}
	c.Log.WithFields(logging.CanaryFields("enqueue_edit", edit.CharacterID).
		Custom("attempt_id", edit.AttemptID).
		Custom("asset_type", edit.AssetType).
		ToLogrus()).Info("Edit-fix enqueued")
	return nil
}

// EnsureCanaryUser creates or resets the canary user through the admin API
// using the state-store service credential.
func (c *Client) EnsureCanaryUser(ctx context.Context, serviceKey, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}
	url := c.BaseURL + c.AuthBasePath + "/admin/canary-user"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+serviceKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return sharederrors.NetworkError("ensure canary user", url, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return sharederrors.FailedTo("ensure canary user",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200)))
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, token, action string, payload interface{}, async bool) ([]byte, int, error) {
	body, err := json.Marshal(map[string]interface{}{
		"action":  action,
		"payload": payload,
		"async":   async,
	})
	if err != nil {
		return nil, 0, err
	}
	url := c.BaseURL + c.AuthBasePath + "/ai/invoke"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, sharederrors.NetworkError(fmt.Sprintf("invoke %s", action), url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) postLogin(ctx context.Context, prefix, email, password string) (int, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	url := c.BaseURL + prefix + "/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func truncate(raw []byte, limit int) string {
	s := string(raw)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
