package genservice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// SnapshotReceipt records the public snapshot fetch for one character.
type SnapshotReceipt struct {
	URL    string                 `json:"url"`
	Status int                    `json:"status"`
	OK     bool                   `json:"ok"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Prefix string                 `json:"prefix"`
}

// FetchSnapshot GETs the public character snapshot. A 404 on the snapshot
// prefix triggers a single retry under the auth prefix; every other status is
// returned as-is.
func (c *Client) FetchSnapshot(ctx context.Context, token, characterID string) (*SnapshotReceipt, error) {
	receipt, err := c.fetchSnapshotAt(ctx, token, c.SnapshotBasePath, characterID)
	if err != nil {
		return nil, err
	}
	if receipt.Status == http.StatusNotFound {
		fallback, err := c.fetchSnapshotAt(ctx, token, c.AuthBasePath, characterID)
		if err != nil {
			return nil, err
		}
		return fallback, nil
	}
	return receipt, nil
}

func (c *Client) fetchSnapshotAt(ctx context.Context, token, prefix, characterID string) (*SnapshotReceipt, error) {
	url := c.BaseURL + prefix + "/characters/" + characterID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	receipt := &SnapshotReceipt{
		URL:    url,
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Prefix: prefix,
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return receipt, nil
	}
	if receipt.OK {
		var data map[string]interface{}
		if json.Unmarshal(raw, &data) == nil {
			receipt.Data = data
		}
	}
	return receipt, nil
}

// FindTposeKey walks a decoded JSON payload looking for any key that begins
// with "tpose" (case-insensitive) at any depth. Rig-internal fields must
// never leak through the public snapshot surface.
func FindTposeKey(value interface{}) (string, bool) {
	return findTposeKey(value, "")
}

func findTposeKey(value interface{}, path string) (string, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			if strings.HasPrefix(strings.ToLower(key), "tpose") {
				return childPath, true
			}
			if found, ok := findTposeKey(child, childPath); ok {
				return found, true
			}
		}
	case []interface{}:
		for _, child := range v {
			if found, ok := findTposeKey(child, path); ok {
				return found, true
			}
		}
	}
	return "", false
}

// PeekIssuer decodes the unverified JWT payload and returns its issuer
// claim. The harness only classifies tokens; it never validates them.
func PeekIssuer(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ""
	}
	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return ""
	}
	var claims struct {
		Issuer string `json:"iss"`
	}
	if json.Unmarshal(payload, &claims) != nil {
		return ""
	}
	return claims.Issuer
}

func base64URLDecode(segment string) ([]byte, error) {
	if m := len(segment) % 4; m != 0 {
		segment += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(segment)
}
