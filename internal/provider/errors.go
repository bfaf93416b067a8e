package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure for fallback decisions.
type Kind int

const (
	// KindTransient covers network failures, timeouts and 5xx
	// responses. Worth one retry.
	KindTransient Kind = iota
	// KindNotFound means the provider does not know the symbol.
	KindNotFound
	// KindRateLimited means the provider throttled us.
	KindRateLimited
	// KindMalformed means the response arrived but not in the
	// expected shape.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed"
	default:
		return "transient"
	}
}

// Error is the failure shape every provider returns.
type Error struct {
	Provider string
	Symbol   string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Symbol, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Symbol, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports that the provider has no data for the symbol.
func NotFound(provider, symbol string) *Error {
	return &Error{Provider: provider, Symbol: symbol, Kind: KindNotFound}
}

// RateLimited reports that the provider throttled the request.
func RateLimited(provider, symbol string, err error) *Error {
	return &Error{Provider: provider, Symbol: symbol, Kind: KindRateLimited, Err: err}
}

// Transient reports a failure that may pass on retry.
func Transient(provider, symbol string, err error) *Error {
	return &Error{Provider: provider, Symbol: symbol, Kind: KindTransient, Err: err}
}

// Malformed reports a response that could not be interpreted.
func Malformed(provider, symbol string, err error) *Error {
	return &Error{Provider: provider, Symbol: symbol, Kind: KindMalformed, Err: err}
}

// KindOf extracts the failure kind. Errors that are not *Error, such
// as context deadlines, classify as transient.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

func IsNotFound(err error) bool    { return isKind(err, KindNotFound) }
func IsRateLimited(err error) bool { return isKind(err, KindRateLimited) }
func IsTransient(err error) bool   { return isKind(err, KindTransient) }
func IsMalformed(err error) bool   { return isKind(err, KindMalformed) }

func isKind(err error, k Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == k
}
