package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure for retry and surfacing decisions.
type Kind int

const (
	// KindNotInitialized means no access token has been seeded.
	KindNotInitialized Kind = iota
	// KindAuthInvalid means the provider rejected the token (401/403).
	KindAuthInvalid
	// KindTransient covers network failures, 5xx responses and timeouts.
	KindTransient
	// KindPermanent covers 4xx responses other than 401/403.
	KindPermanent
	// KindParse means the response body had an unexpected shape. Treated
	// like a permanent failure.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNotInitialized:
		return "not_initialized"
	case KindAuthInvalid:
		return "auth_invalid"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// Error is the error type returned by every Client operation.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider %s: %s: %s", e.Op, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the retry loop may attempt the call again.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// KindOf extracts the failure kind from err, defaulting to KindTransient
// for errors that did not originate here (raw transport failures).
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuthInvalid
	case status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}
