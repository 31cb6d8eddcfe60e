package assertions

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jqsirls/character-canary/pkg/canary"
	"github.com/jqsirls/character-canary/pkg/statestore"
)

// HostAllowed matches a host against the allowlist: exact entries, `*.`
// suffix wildcards, and the S3 special case where `s3.amazonaws.com` also
// covers bucket-prefixed hosts.
func HostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, entry := range allowed {
		entry = strings.ToLower(entry)
		switch {
		case entry == host:
			return true
		case strings.HasPrefix(entry, "*.") && strings.HasSuffix(host, entry[1:]):
			return true
		case entry == "s3.amazonaws.com" && strings.HasSuffix(host, ".s3.amazonaws.com"):
			return true
		}
	}
	return false
}

// CheckURL validates one asset URL against the scheme, data-URI and host
// rules. Returns an empty string when the URL is acceptable.
func CheckURL(field, rawURL string, allowed []string) string {
	if rawURL == "" {
		return fmt.Sprintf("%s missing", field)
	}
	if strings.HasPrefix(strings.ToLower(rawURL), "data:") {
		return fmt.Sprintf("%s must not be a data URI", field)
	}
	if !strings.HasPrefix(rawURL, "https://") {
		return fmt.Sprintf("%s must be https: %s", field, rawURL)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("%s unparsable: %s", field, rawURL)
	}
	if !HostAllowed(parsed.Hostname(), allowed) {
		return fmt.Sprintf("%s host not allowed: %s", field, rawURL)
	}
	return ""
}

func (k *Kernel) checkAllowlistConfigured(report *canary.RunReport) {
	if len(k.AllowedHosts) == 0 {
		k.add(report, ClassInstrumentation, "publicAssetHosts is empty")
	}
}

func (k *Kernel) checkAssetURLs(ev Evidence, report *canary.RunReport) {
	if ev.Character == nil {
		k.add(report, ClassInstrumentation, "character row missing from state store")
		return
	}
	for _, assetType := range []string{statestore.AssetHeadshot, statestore.AssetBodyshot} {
		resolved := ev.Character.ResolveAsset(assetType)
		if msg := CheckURL(assetType+"_url", resolved.URL, k.AllowedHosts); msg != "" {
			k.add(report, ClassInstrumentation, msg)
		}
	}
}

func (k *Kernel) checkAttemptObservability(ev Evidence, report *canary.RunReport) {
	for _, assetType := range []string{statestore.AssetHeadshot, statestore.AssetBodyshot} {
		attempt := statestore.LatestAttempt(ev.Attempts, assetType)
		if attempt == nil {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s has no generation attempts", assetType))
			continue
		}
		if attempt.TraceURL == nil || *attempt.TraceURL == "" {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s attempt %s missing trace_url", assetType, attempt.ID))
		}
		if attempt.Validation.Summary == nil && attempt.Status != statestore.AttemptStatusHardFail {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s attempt %s missing validation_summary", assetType, attempt.ID))
		}
	}
}

func (k *Kernel) checkInvokeEcho(ev Evidence, report *canary.RunReport) {
	if ev.Invoke == nil || ev.Character == nil {
		return
	}
	for _, assetType := range []string{statestore.AssetHeadshot, statestore.AssetBodyshot} {
		echoed := ev.Invoke.ImageFor(assetType)
		if echoed == nil {
			continue
		}
		resolved := ev.Character.ResolveAsset(assetType)
		if echoed.URL != "" && resolved.URL != echoed.URL {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s_url mismatch: state store %q vs invocation %q", assetType, resolved.URL, echoed.URL))
		}
		if echoed.PromptHash != "" && resolved.PromptHash != echoed.PromptHash {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s prompt hash mismatch: state store %q vs invocation %q", assetType, resolved.PromptHash, echoed.PromptHash))
		}
		if echoed.TraceURL != "" {
			if resolved.TraceURL != echoed.TraceURL {
				k.add(report, ClassInstrumentation,
					fmt.Sprintf("%s trace_url mismatch: state store %q vs invocation %q", assetType, resolved.TraceURL, echoed.TraceURL))
			}
			if msg := CheckURL(assetType+"_trace_url (invocation)", echoed.TraceURL, k.AllowedHosts); msg != "" {
				k.add(report, ClassInstrumentation, msg)
			}
		}
	}
}

func (k *Kernel) checkPromptHashes(ev Evidence, report *canary.RunReport) {
	if ev.Character == nil {
		return
	}
	for _, assetType := range []string{statestore.AssetHeadshot, statestore.AssetBodyshot} {
		if ev.Character.ResolveAsset(assetType).PromptHash == "" {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s prompt hash missing", assetType))
		}
	}
}

func (k *Kernel) checkTraceURLsDistinct(ev Evidence, report *canary.RunReport) {
	if ev.Character == nil {
		return
	}
	headshot := ev.Character.ResolveAsset(statestore.AssetHeadshot).TraceURL
	bodyshot := ev.Character.ResolveAsset(statestore.AssetBodyshot).TraceURL
	if headshot != "" && headshot == bodyshot {
		k.add(report, ClassInstrumentation,
			fmt.Sprintf("headshot_trace_url equals bodyshot_trace_url: %s", headshot))
	}
}

func (k *Kernel) checkOpenAIRequestIDs(ev Evidence, report *canary.RunReport) {
	if ev.Invoke == nil {
		return
	}
	for _, assetType := range []string{statestore.AssetHeadshot, statestore.AssetBodyshot} {
		echoed := ev.Invoke.ImageFor(assetType)
		if echoed == nil || echoed.OpenAIRequestID == "" {
			continue
		}
		persisted, found := traceRequestID(ev.Traces[assetType], assetType)
		if !found {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s trace missing openai_request_id (invocation returned %q)", assetType, echoed.OpenAIRequestID))
			continue
		}
		if persisted != echoed.OpenAIRequestID {
			k.add(report, ClassInstrumentation,
				fmt.Sprintf("%s openai_request_id mismatch: trace %q vs invocation %q", assetType, persisted, echoed.OpenAIRequestID))
		}
	}
}

// traceRequestID finds the request id either at the trace top level or
// nested under the asset key.
func traceRequestID(trace map[string]interface{}, assetType string) (string, bool) {
	if trace == nil {
		return "", false
	}
	if id, ok := trace["openai_request_id"].(string); ok && id != "" {
		return id, true
	}
	if nested, ok := trace[assetType].(map[string]interface{}); ok {
		if id, ok := nested["openai_request_id"].(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
