package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// LoginPath is the API path that starts an interactive login.
const LoginPath = "/user/login"

// ErrorClass is the classification of a failed request outcome. Every
// caller that must decide between serving stale data, emptying state,
// redirecting to login or showing an error consults it.
type ErrorClass string

const (
	// ClassUnreachable covers connection, DNS and timeout failures.
	ClassUnreachable ErrorClass = "unreachable"

	// ClassUnauthorized covers 401 and redirects to the login endpoint.
	ClassUnauthorized ErrorClass = "unauthorized"

	// ClassNotFound is a 404: the resource is confirmed absent.
	ClassNotFound ErrorClass = "not_found"

	// ClassServer covers 5xx responses.
	ClassServer ErrorClass = "server"

	// ClassUnknown is everything else.
	ClassUnknown ErrorClass = "unknown"
)

// Action is what a caller should do about a classified failure.
type Action string

const (
	ActionRetryLocally    Action = "retry_locally"
	ActionFallBackToEmpty Action = "fall_back_to_empty"
	ActionRedirectLogin   Action = "redirect_to_login"
	ActionSurfaceError    Action = "surface_error"
)

// Action maps the class to its default handling.
func (c ErrorClass) Action() Action {
	switch c {
	case ClassUnreachable:
		return ActionRetryLocally
	case ClassUnauthorized:
		return ActionRedirectLogin
	case ClassNotFound:
		return ActionFallBackToEmpty
	default:
		return ActionSurfaceError
	}
}

// Outcome is the observable result of one transport round trip.
type Outcome struct {
	// StatusCode is zero when no response was received.
	StatusCode int

	// Location is the redirect target for 3xx responses.
	Location string

	// Err is the transport error, if any.
	Err error
}

// OutcomeOf captures an http.Client result as an Outcome.
func OutcomeOf(resp *http.Response, err error) Outcome {
	if err != nil || resp == nil {
		return Outcome{Err: err}
	}
	return Outcome{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
	}
}

// Classify maps an outcome to its ErrorClass. 2xx and 304 outcomes return
// the empty class. Classify is pure: it performs no navigation or I/O.
func Classify(o Outcome) ErrorClass {
	if o.Err != nil {
		return classifyTransport(o.Err)
	}

	switch {
	case o.StatusCode == 0:
		return ClassUnreachable
	case o.StatusCode == http.StatusUnauthorized:
		return ClassUnauthorized
	case isRedirect(o.StatusCode) && strings.Contains(o.Location, LoginPath):
		return ClassUnauthorized
	case o.StatusCode == http.StatusNotFound:
		return ClassNotFound
	case o.StatusCode >= 500:
		return ClassServer
	case o.StatusCode >= 200 && o.StatusCode < 300, o.StatusCode == http.StatusNotModified:
		return ""
	default:
		return ClassUnknown
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func classifyTransport(err error) ErrorClass {
	switch {
	case errors.Is(err, context.Canceled):
		return ClassUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return ClassUnreachable
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return ClassUnreachable
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ClassUnreachable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassUnreachable
	}
	return ClassUnknown
}

// ClassOf recovers the classification carried by err. Errors that are
// not *APIError are classified as transport failures. A nil error has
// the empty class.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return classifyTransport(err)
}

// APIError is a classified request failure.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storefront %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("storefront %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the user for this failure.
func (e *APIError) UserMessage() string {
	return UserMessage(e.Class, e.Message)
}

// UserMessage returns the user-facing text for a class. detail is used
// for unknown failures when present.
func UserMessage(class ErrorClass, detail string) string {
	switch class {
	case ClassUnreachable:
		return "Could not connect to the server. Check your internet connection."
	case ClassServer:
		return "Server error. Please try again later."
	case ClassNotFound:
		return "The requested resource was not found."
	case ClassUnauthorized:
		return "Please log in to continue."
	default:
		if detail != "" {
			return detail
		}
		return "An unknown error occurred."
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ClassServer, ClassUnreachable:
		return true
	default:
		// 401/404 are answers, not glitches; unknown failures are surfaced as is.
		return false
	}
}
