package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCategory labels a failed request in metrics and the run summary.
type ErrorCategory string

const (
	CategoryTimeout     ErrorCategory = "timeout"
	CategoryConnection  ErrorCategory = "connection"
	CategoryForbidden   ErrorCategory = "forbidden"
	CategoryNotFound    ErrorCategory = "not_found"
	CategoryRateLimited ErrorCategory = "rate_limited"
	CategoryOther       ErrorCategory = "other"
	CategoryUnknown     ErrorCategory = "unknown"
)

// RequestError is a failed fetch of one work item.
type RequestError struct {
	URL        string
	StatusCode int
	Category   ErrorCategory
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Category, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Category, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt.
func (e *RequestError) Retryable() bool {
	switch e.Category {
	case CategoryNotFound, CategoryForbidden:
		return false
	}
	return true
}

func errorTypeLabel(err error) string {
	if err == nil {
		return string(CategoryUnknown)
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return string(reqErr.Category)
	}
	return string(CategoryOther)
}

func classifyError(rawURL string, err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	wrap := func(category ErrorCategory) error {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		return &RequestError{URL: rawURL, StatusCode: statusCode, Category: category, Err: wrapped}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return wrap(CategoryTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(CategoryTimeout)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return wrap(CategoryConnection)
	}

	switch statusCode {
	case http.StatusForbidden:
		return wrap(CategoryForbidden)
	case http.StatusNotFound:
		return wrap(CategoryNotFound)
	case http.StatusTooManyRequests:
		return wrap(CategoryRateLimited)
	}
	return wrap(CategoryOther)
}
