package source

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// blockPageLimit is the body size above which body markers are ignored.
// Real result pages link Cloudflare CDNs and embed captcha scripts in their
// login widgets; interstitials are small.
const blockPageLimit = 20000

// DetectBlock checks an HTTP response for signs of anti-bot protection.
// JSON responses are never treated as blocked.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp != nil {
		if strings.Contains(resp.Header.Get("Content-Type"), "json") {
			return false, BlockNone
		}

		// Cloudflare: 403/503 with cf-* headers.
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
			if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
				return true, BlockCloudflare
			}
			if strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
				return true, BlockCloudflare
			}
		}
	}

	return detectBlockBody(body)
}

func detectBlockBody(body []byte) (bool, BlockType) {
	if len(body) >= blockPageLimit {
		return false, BlockNone
	}
	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
