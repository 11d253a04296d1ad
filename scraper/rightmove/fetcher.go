package rightmove

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrBlocked is returned when the portal served a captcha or block page
// instead of search results.
var ErrBlocked = errors.New("captcha or block page detected")

// Fetcher retrieves one page of HTML.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (Page, error)
	Close() error
}

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	HTML       string
	FetchedAt  time.Time
}

// FailureKind separates failures worth retrying from those that are not.
type FailureKind int

const (
	Transient FailureKind = iota + 1
	Permanent
)

func (k FailureKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// FetchError describes why a page could not be fetched.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       FailureKind
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s failure (HTTP %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s failure: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func newFetchError(pageURL string, status int, err error) *FetchError {
	return &FetchError{
		URL:        pageURL,
		StatusCode: status,
		Kind:       classify(status, err),
		Err:        err,
	}
}

// classify maps a status code and transport error to a failure kind.
// Timeouts, connection errors, 429 and 5xx are transient; other 4xx and
// block pages are permanent.
func classify(status int, err error) FailureKind {
	if errors.Is(err, ErrBlocked) {
		return Permanent
	}
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return Transient
	case status >= 500:
		return Transient
	case status >= 400:
		return Permanent
	}
	return Transient
}

// IsTransient reports whether err is a fetch failure worth retrying.
// Context cancellation is never retried.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Transient
}

// KindOf returns the failure kind of err; errors that are not fetch
// failures count as transient.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Transient
}

// looksBlocked mirrors the portal's interstitials: the block and captcha
// pages are served with 200.
func looksBlocked(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "captcha") || strings.Contains(lower, "access blocked")
}
