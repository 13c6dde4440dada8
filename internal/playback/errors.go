package playback

import (
	"errors"
	"fmt"
)

type FetchErrorKind int

const (
	FetchNetwork FetchErrorKind = iota
	FetchUnauthorized
	FetchRateLimited
	FetchMalformed
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchUnauthorized:
		return "unauthorized"
	case FetchRateLimited:
		return "rate limited"
	case FetchMalformed:
		return "malformed"
	default:
		return "network"
	}
}

// FetchError is returned by playback sources. Errors that are not a
// *FetchError are treated as network failures.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return "fetch failed: " + e.Kind.String()
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func NewFetchError(kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

// KindOf classifies any error returned by a source.
func KindOf(err error) FetchErrorKind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return FetchNetwork
}

func IsUnauthorized(err error) bool {
	return err != nil && KindOf(err) == FetchUnauthorized
}
