// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed domain validation.
var ErrValidation = errors.New("validation failed")

// ErrInvalidState indicates a lifecycle transition was attempted on an
// entity that is not in the required state.
var ErrInvalidState = errors.New("invalid state for requested transition")

// ErrPolicyViolation indicates a tool call was rejected by the security
// policy before any side effect occurred.
var ErrPolicyViolation = errors.New("policy violation")

// ErrRateLimited indicates a workspace exceeded its per-minute request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrQuotaExceeded indicates a workspace fully consumed its plan quota.
var ErrQuotaExceeded = errors.New("plan quota exceeded")
