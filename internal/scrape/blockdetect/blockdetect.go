// Package blockdetect implements the HTML/status pattern matcher mapping a
// fetch response to a block taxonomy (§4.6).
package blockdetect

import "strings"

// BlockType enumerates the block taxonomy. Empty string means not blocked.
type BlockType string

const (
	RateLimited    BlockType = "RATE_LIMITED"
	NotFound       BlockType = "NOT_FOUND"
	EmptyResponse  BlockType = "EMPTY_RESPONSE"
	BotDetection   BlockType = "BOT_DETECTION"
	Captcha        BlockType = "CAPTCHA"
	AccessDenied   BlockType = "ACCESS_DENIED"
	Maintenance    BlockType = "MAINTENANCE"
	GeoBlocked     BlockType = "GEO_BLOCKED"
	AgeGate        BlockType = "AGE_GATE"
	LoginRequired  BlockType = "LOGIN_REQUIRED"
)

// Verdict is the outcome of block detection on one response.
type Verdict struct {
	IsBlocked  bool
	BlockType  BlockType
	Confidence float64
	Indicators []string
}

var botHeaders = []string{"cf-ray", "x-sucuri-id", "x-akamai-request-id", "x-cdn"}

var captchaPatterns = []string{"recaptcha", "hcaptcha", "cf-turnstile", "datadome"}

var botDetectionPatterns = []string{
	"pardon our interruption", "unusual traffic", "checking your browser", "cloudflare",
}

var rateLimitPhrases = []string{"too many requests", "rate limit exceeded", "slow down"}

var maintenancePatterns = []string{"scheduled maintenance", "temporarily unavailable", "down for maintenance"}

var geoBlockPhrases = []string{"not available in your region", "not available in your country"}

var ageGatePhrases = []string{"confirm your age", "you must be 18", "age verification"}

var loginRequiredPhrases = []string{"sign in to continue", "log in to continue"}

// Detect applies the fixed, first-match-wins rule chain from §4.6.
func Detect(html string, statusCode int, headers map[string]string) Verdict {
	trimmed := strings.TrimSpace(html)
	lower := strings.ToLower(html)

	if statusCode == 429 {
		return Verdict{IsBlocked: true, BlockType: RateLimited, Confidence: 0.9, Indicators: []string{"status=429"}}
	}
	if statusCode == 404 {
		return Verdict{IsBlocked: true, BlockType: NotFound, Confidence: 0.95, Indicators: []string{"status=404"}}
	}
	if len(trimmed) < 100 {
		return Verdict{IsBlocked: true, BlockType: EmptyResponse, Confidence: 0.7, Indicators: []string{"body_len<100"}}
	}
	if statusCode == 403 {
		if hdr, ok := matchHeader(headers, botHeaders); ok {
			return Verdict{IsBlocked: true, BlockType: BotDetection, Confidence: 0.85, Indicators: []string{"header=" + hdr}}
		}
		if match, ok := matchAny(lower, captchaPatterns); ok {
			return Verdict{IsBlocked: true, BlockType: Captcha, Confidence: 0.8, Indicators: []string{match}}
		}
		return Verdict{IsBlocked: true, BlockType: AccessDenied, Confidence: 0.7, Indicators: []string{"status=403"}}
	}
	if statusCode == 503 {
		if match, ok := matchAny(lower, maintenancePatterns); ok {
			return Verdict{IsBlocked: true, BlockType: Maintenance, Confidence: 0.75, Indicators: []string{match}}
		}
	}
	if match, ok := matchAny(lower, captchaPatterns); ok {
		return Verdict{IsBlocked: true, BlockType: Captcha, Confidence: 0.85, Indicators: []string{match}}
	}
	if match, ok := matchAny(lower, loginRequiredPhrases); ok {
		return Verdict{IsBlocked: true, BlockType: LoginRequired, Confidence: 0.6, Indicators: []string{match}}
	}
	if match, ok := matchAny(lower, botDetectionPatterns); ok {
		return Verdict{IsBlocked: true, BlockType: BotDetection, Confidence: 0.75, Indicators: []string{match}}
	}
	if match, ok := matchAny(lower, rateLimitPhrases); ok {
		return Verdict{IsBlocked: true, BlockType: RateLimited, Confidence: 0.6, Indicators: []string{match}}
	}
	if match, ok := matchAny(lower, geoBlockPhrases); ok {
		return Verdict{IsBlocked: true, BlockType: GeoBlocked, Confidence: 0.7, Indicators: []string{match}}
	}
	if match, ok := matchAny(lower, ageGatePhrases); ok {
		return Verdict{IsBlocked: true, BlockType: AgeGate, Confidence: 0.7, Indicators: []string{match}}
	}

	return Verdict{}
}

func matchHeader(headers map[string]string, names []string) (string, bool) {
	for _, name := range names {
		for k := range headers {
			if strings.EqualFold(k, name) {
				return name, true
			}
		}
	}
	return "", false
}

func matchAny(lower string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// EvasionPolicy is the retry policy paired with a block type (§4.6).
type EvasionPolicy struct {
	Terminal     bool
	Delay        int // seconds
	RotateUA     bool
	MaxAttempts  int
}

// PolicyFor returns the evasion policy for a block type.
func PolicyFor(t BlockType) EvasionPolicy {
	switch t {
	case Captcha, LoginRequired, GeoBlocked, AgeGate, NotFound:
		return EvasionPolicy{Terminal: true}
	case RateLimited:
		return EvasionPolicy{Delay: 60, MaxAttempts: 1}
	case BotDetection, AccessDenied:
		return EvasionPolicy{RotateUA: true, Delay: 5, MaxAttempts: 2}
	case EmptyResponse, Maintenance:
		return EvasionPolicy{Delay: 10, MaxAttempts: 2}
	default:
		return EvasionPolicy{}
	}
}
