// Package chain evaluates a job request against an ordered list of
// validators. The first validator that does not defer decides the outcome;
// a request that every validator defers is approved.
package chain

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// Directive is an instruction carried by the request for the validators
type Directive string

const (
	DirectiveEvaluate Directive = "evaluate"
	DirectiveReject   Directive = "reject"
)

// ParseDirective maps an empty string to DirectiveEvaluate
func ParseDirective(s string) (Directive, bool) {
	switch Directive(s) {
	case "", DirectiveEvaluate:
		return DirectiveEvaluate, true
	case DirectiveReject:
		return DirectiveReject, true
	default:
		return "", false
	}
}

// Request is the transient context a job is evaluated in
type Request struct {
	Job       *model.Job
	Requester model.Identity
	Directive Directive
	// Date is the day the demand is checked against
	Date time.Time
	// Quota is filled in by the resource validator with the faculty quota it observed
	Quota *model.Resources
}

// Verdict is the decision of a single validator
type Verdict int

const (
	Defer Verdict = iota
	Approve
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Approve:
		return "approve"
	case Reject:
		return "reject"
	default:
		return "defer"
	}
}

// Result is a verdict with the reason of a rejection
type Result struct {
	Verdict Verdict
	Reason  *model.Reason
}

// Approved returns an approving result
func Approved() Result {
	return Result{Verdict: Approve}
}

// Deferred returns a result passing the request to the next validator
func Deferred() Result {
	return Result{Verdict: Defer}
}

// Rejected returns a rejecting result with the given reason
func Rejected(kind model.Kind, code, message string) Result {
	return Result{Verdict: Reject, Reason: &model.Reason{Kind: kind, Code: code, Message: message}}
}

// Validator is one admission check
type Validator interface {
	Name() string
	Handle(ctx context.Context, req *Request) Result
}

// Chain is a fixed ordered list of validators
type Chain struct {
	validators []Validator
	logger     *slog.Logger
}

// New creates a chain evaluating validators in the given order
func New(logger *slog.Logger, validators ...Validator) *Chain {
	return &Chain{
		validators: validators,
		logger:     logger,
	}
}

// Names returns the validator names in evaluation order
func (c *Chain) Names() []string {
	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return names
}

// Evaluate runs the validators until one approves or rejects.
// A context that is done between validators yields a TIMEOUT rejection.
func (c *Chain) Evaluate(ctx context.Context, req *Request) Result {
	for _, v := range c.validators {
		if err := ctx.Err(); err != nil {
			return ExternalFailure(err)
		}

		result := v.Handle(ctx, req)
		switch result.Verdict {
		case Defer:
			continue
		case Reject:
			c.logger.Info("job rejected",
				slog.String("job_id", req.Job.ID),
				slog.String("validator", v.Name()),
				slog.String("code", result.Reason.Code),
				slog.String("message", result.Reason.Message),
			)
			return result
		default:
			c.logger.Debug("job approved by validator",
				slog.String("job_id", req.Job.ID),
				slog.String("validator", v.Name()),
			)
			return result
		}
	}

	return Approved()
}
