package domain

import "errors"

// Sentinel errors returned by stores and caches. Callers use errors.Is to
// distinguish them from wrapped infrastructure failures.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrLockHeld       = errors.New("lock already held")
	ErrRateLimited    = errors.New("rate limited")
	ErrBudgetExceeded = errors.New("daily token budget exceeded")
)

// ErrorKind enumerates the scrape/agent/persistence failure taxonomy from
// the error-handling design. It replaces exception-based control flow: every
// fallible step returns a value carrying one of these kinds instead of a
// language-level exception.
type ErrorKind int

const (
	ErrKindUnknown ErrorKind = iota

	// Scrape domain.
	ErrKindNetwork
	ErrKindTimeout
	ErrKindBlocked
	ErrKindBlockedTerminal
	ErrKindBlockedEvasive
	ErrKindNotFound
	ErrKindParseFailure
	ErrKindPriceValidation
	ErrKindStructureChange
	ErrKindRobotsBlocked

	// URL domain.
	ErrKindInvalidURL
	ErrKindUnsupportedStore
	ErrKindPrivateIP

	// Agent/LLM domain.
	ErrKindTokenLimit
	ErrKindLLMRateLimit

	// Persistence domain.
	ErrKindRecordNotFound
	ErrKindDuplicateRecord

	// Notifier domain.
	ErrKindEmailDelivery
)

// String renders the ErrorKind as the lowercase snake_case machine tag
// surfaced to inline tool callers per the error-handling design.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindNetwork:
		return "network"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindBlocked:
		return "blocked"
	case ErrKindBlockedTerminal:
		return "blocked_terminal"
	case ErrKindBlockedEvasive:
		return "blocked_evasive"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindParseFailure:
		return "parse_failure"
	case ErrKindPriceValidation:
		return "price_validation"
	case ErrKindStructureChange:
		return "structure_change"
	case ErrKindRobotsBlocked:
		return "robots_blocked"
	case ErrKindInvalidURL:
		return "invalid_url"
	case ErrKindUnsupportedStore:
		return "unsupported_store"
	case ErrKindPrivateIP:
		return "private_ip"
	case ErrKindTokenLimit:
		return "token_limit"
	case ErrKindLLMRateLimit:
		return "rate_limit"
	case ErrKindRecordNotFound:
		return "record_not_found"
	case ErrKindDuplicateRecord:
		return "duplicate_record"
	case ErrKindEmailDelivery:
		return "email_delivery"
	default:
		return "unknown"
	}
}

// Healable reports whether the failure category is plausibly fixed by
// regenerating selectors (glossary: "Healable category").
func (k ErrorKind) Healable() bool {
	switch k {
	case ErrKindParseFailure, ErrKindStructureChange, ErrKindPriceValidation:
		return true
	default:
		return false
	}
}

// CanonicalMessage returns the canned, user-visible sentence for a terminal
// failure category (§4.7).
func (k ErrorKind) CanonicalMessage() string {
	switch k {
	case ErrKindNotFound:
		return "Product page not found (404). The URL may be incorrect."
	case ErrKindRobotsBlocked:
		return "This page cannot be scraped because the store's robots.txt disallows it."
	case ErrKindPrivateIP:
		return "The URL resolves to a private or internal address and was rejected."
	case ErrKindInvalidURL:
		return "The product URL is not a valid http(s) address."
	case ErrKindTokenLimit:
		return "The daily AI token budget has been exhausted; try again after midnight UTC."
	case ErrKindParseFailure:
		return "Could not extract price information from this page."
	case ErrKindStructureChange:
		return "The store appears to have changed its page layout."
	case ErrKindPriceValidation:
		return "The extracted price failed validation."
	case ErrKindBlocked:
		return "The store blocked this request."
	case ErrKindBlockedTerminal:
		return "The store presented a challenge (CAPTCHA, login wall, or gate) that cannot be retried automatically."
	case ErrKindBlockedEvasive:
		return "The store blocked this request; retrying with a rotated user agent."
	case ErrKindTimeout:
		return "The request to the store timed out."
	case ErrKindNetwork:
		return "A network error occurred while contacting the store."
	default:
		return "An unexpected error occurred while scraping this product."
	}
}

// ParseErrorKind reverses ErrorKind.String, used when reloading a ScrapeLog's
// persisted ErrorType column for healing analysis (§4.14).
func ParseErrorKind(s string) (ErrorKind, bool) {
	for k := ErrorKind(0); k <= ErrKindEmailDelivery; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return ErrKindUnknown, false
}

// ScrapeError is the concrete error type carrying an ErrorKind through the
// retry engine and up to callers. It wraps an optional underlying cause.
type ScrapeError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter int // seconds; set by the rate limiter on long waits
	Cause      error
}

func (e *ScrapeError) Error() string {
	if e.Message != "" {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String() + ": " + e.Kind.CanonicalMessage()
}

func (e *ScrapeError) Unwrap() error {
	return e.Cause
}

// NewScrapeError constructs a ScrapeError of the given kind.
func NewScrapeError(kind ErrorKind, message string) *ScrapeError {
	return &ScrapeError{Kind: kind, Message: message}
}

// WrapScrapeError constructs a ScrapeError wrapping cause.
func WrapScrapeError(kind ErrorKind, cause error) *ScrapeError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &ScrapeError{Kind: kind, Message: msg, Cause: cause}
}

// AsScrapeError extracts the ScrapeError and its ErrorKind from err, if any.
func AsScrapeError(err error) (*ScrapeError, bool) {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
