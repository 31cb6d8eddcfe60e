// Package traces downloads the JSON trace artifacts the pipeline uploads to
// signed URLs.
package traces

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jqsirls/character-canary/pkg/shared/logging"
)

// Fetcher downloads trace JSON. Failures degrade to a nil trace; the
// assertion kernel flags any required trace that is missing.
type Fetcher struct {
	HTTP *http.Client
	Log  *logrus.Logger
}

// Fetch GETs one trace URL and decodes it as a JSON object. Any failure
// (transport, status, decode) returns nil.
func (f *Fetcher) Fetch(ctx context.Context, url string) map[string]interface{} {
	if url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.warn(url, err)
		return nil
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		f.warn(url, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.Log.WithFields(logging.HTTPFields(http.MethodGet, url, resp.StatusCode).
			Component("traces").
			ToLogrus()).Warn("Trace fetch returned non-2xx")
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		f.warn(url, err)
		return nil
	}
	var trace map[string]interface{}
	if err := json.Unmarshal(raw, &trace); err != nil {
		f.warn(url, err)
		return nil
	}
	return trace
}

func (f *Fetcher) warn(url string, err error) {
	f.Log.WithFields(logging.NewFields().
		Component("traces").
		Operation("fetch").
		URL(url).
		Error(err).
		ToLogrus()).Warn("Trace fetch failed")
}
