package model

import (
	"errors"
	"fmt"
)

// Kind is the stable machine-readable class of a failure
type Kind string

const (
	KindInvalidDemand             Kind = "InvalidDemand"
	KindIdentityMismatch          Kind = "IdentityMismatch"
	KindUnauthorized              Kind = "Unauthorized"
	KindExternalDependencyFailure Kind = "ExternalDependencyFailure"
	KindInsufficientCapacity      Kind = "InsufficientCapacity"
	KindNotFound                  Kind = "NotFound"
)

// Reason codes attached to rejected and failed jobs
const (
	CodeInvalidDemand    = "INVALID_DEMAND"
	CodeIdentityMismatch = "IDENTITY_MISMATCH"
	CodeBadCredentials   = "BAD_CREDENTIALS"
	CodeDirectiveReject  = "DIRECTIVE_REJECT"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInvalidBody      = "INVALID_BODY"
	CodeTimeout          = "TIMEOUT"
	CodeResourceExceeded = "RESOURCE_EXCEEDED"
	CodeNoEligibleNode   = "NO_ELIGIBLE_NODE"
	CodeQuotaExhausted   = "QUOTA_EXHAUSTED"
	CodeJobNotFound      = "JOB_NOT_FOUND"
	CodeNodeNotFound     = "NODE_NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
)

// Reason describes why a job was rejected or could not be scheduled
type Reason struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r Reason) String() string {
	return fmt.Sprintf("%s/%s: %s", r.Kind, r.Code, r.Message)
}

// Error carries a Reason across a function boundary
type Error struct {
	Reason Reason
}

// NewError creates a new domain error
func NewError(kind Kind, code, message string) *Error {
	return &Error{Reason: Reason{Kind: kind, Code: code, Message: message}}
}

func (e *Error) Error() string {
	return e.Reason.String()
}

// ReasonOf extracts the Reason from err if it wraps an *Error
func ReasonOf(err error) (Reason, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason, true
	}
	return Reason{}, false
}

// IsKind reports whether err wraps an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	reason, ok := ReasonOf(err)
	return ok && reason.Kind == kind
}
