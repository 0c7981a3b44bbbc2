package driven

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Sentinel errors shared by every backend adapter and the application layer.
var (
	// ErrNoCachedData is returned when a read failed for connectivity reasons
	// and the resource cache holds nothing for the requested key.
	ErrNoCachedData = errors.New("network unavailable and no cached data")

	// ErrConversationLocked indicates the host rejected a write because the
	// pull request's conversation is locked.
	ErrConversationLocked = errors.New("conversation is locked")

	// ErrNotFound indicates the requested record does not exist in the backend.
	ErrNotFound = errors.New("not found")
)

// NetworkError is a failure to reach the remote host. It is the only error
// class that triggers offline marking and cache fallback.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network unavailable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HostError is a failure reported by the remote host itself: the request
// reached the host and was rejected.
type HostError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *HostError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: host returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *HostError) Unwrap() error { return e.Err }

// NewHostError builds a HostError. A message carrying the locked-conversation
// signature is tagged with ErrConversationLocked so callers can match it with
// errors.Is.
func NewHostError(op string, statusCode int, message string, err error) *HostError {
	if lockedPattern.MatchString(message) {
		if err == nil {
			err = ErrConversationLocked
		} else {
			err = fmt.Errorf("%w: %w", ErrConversationLocked, err)
		}
	}
	return &HostError{Op: op, StatusCode: statusCode, Message: message, Err: err}
}

// ValidationError rejects a request before any backend is called.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// networkSignatures is the mapping table for legacy failures that only carry
// a message. Matching is case-insensitive on substrings.
var networkSignatures = []string{
	"connection refused",
	"econnrefused",
	"connection reset",
	"no such host",
	"enotfound",
	"dns",
	"timeout",
	"timed out",
	"deadline exceeded",
	"transport",
	"fetch failed",
	"failed to fetch",
	"network",
}

var lockedPattern = regexp.MustCompile(`(?i)\block(ed)?\b`)

// MatchesNetworkSignature reports whether msg looks like a connectivity failure.
func MatchesNetworkSignature(msg string) bool {
	lower := strings.ToLower(msg)
	for _, sig := range networkSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// ClassifyError wraps a failure returned by a backend call into the structured
// error taxonomy. Already-classified errors and cancellations pass through.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var (
		netErr   *NetworkError
		hostErr  *HostError
		validErr *ValidationError
	)
	if errors.As(err, &netErr) || errors.As(err, &hostErr) || errors.As(err, &validErr) {
		return err
	}

	var transportErr net.Error
	if errors.As(err, &transportErr) || MatchesNetworkSignature(err.Error()) {
		return &NetworkError{Op: op, Err: err}
	}

	if lockedPattern.MatchString(err.Error()) {
		return NewHostError(op, 0, err.Error(), err)
	}

	return err
}

// IsNetworkError reports whether err is a connectivity failure, either
// structured or recognisable by its message. ErrNoCachedData is the outcome of
// an already-handled connectivity failure and is not one itself.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNoCachedData) {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return false
	}
	return MatchesNetworkSignature(err.Error())
}

// IsConversationLocked reports whether err is the host's locked-conversation
// rejection. Only errors tagged at the remote boundary by NewHostError or
// ClassifyError match; local store failures such as SQLITE_BUSY never do.
func IsConversationLocked(err error) bool {
	return errors.Is(err, ErrConversationLocked)
}

// UserMessage returns the text shown to the reviewer for err. Locked
// conversations and missing offline data get a dedicated explanation; any
// other error is surfaced with its original message.
func UserMessage(err error) string {
	var validErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validErr):
		return validErr.Message
	case IsConversationLocked(err):
		return "This pull request's conversation is locked. Only collaborators can comment until it is unlocked."
	case errors.Is(err, ErrNoCachedData):
		return "Network unavailable and no cached data."
	default:
		return err.Error()
	}
}
