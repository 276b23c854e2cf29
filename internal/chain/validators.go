package chain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kirychukyurii/faculty-scheduler/internal/directory"
	"github.com/kirychukyurii/faculty-scheduler/internal/ledger"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// DemandValidator rejects negative demand without any external call
type DemandValidator struct{}

func (DemandValidator) Name() string { return "demand" }

func (DemandValidator) Handle(_ context.Context, req *Request) Result {
	if req.Job.Demand.IsNegative() {
		return Rejected(model.KindInvalidDemand, model.CodeInvalidDemand,
			fmt.Sprintf("demand %s must not be negative", req.Job.Demand))
	}
	return Deferred()
}

// IdentityValidator rejects requests whose requester is not the job owner
type IdentityValidator struct{}

func (IdentityValidator) Name() string { return "identity" }

func (IdentityValidator) Handle(_ context.Context, req *Request) Result {
	if req.Requester.UserID == "" {
		return Rejected(model.KindIdentityMismatch, model.CodeIdentityMismatch, "requester identity is missing")
	}
	if req.Requester.UserID != req.Job.Owner {
		return Rejected(model.KindIdentityMismatch, model.CodeIdentityMismatch,
			fmt.Sprintf("requester %q does not own the job", req.Requester.UserID))
	}
	return Deferred()
}

// FacultyValidator checks that the requester may submit against the job's faculty
type FacultyValidator struct {
	directory directory.FacultyDirectory
	logger    *slog.Logger
}

// NewFacultyValidator creates a faculty membership validator
func NewFacultyValidator(dir directory.FacultyDirectory, logger *slog.Logger) *FacultyValidator {
	return &FacultyValidator{directory: dir, logger: logger}
}

func (v *FacultyValidator) Name() string { return "faculty" }

func (v *FacultyValidator) Handle(ctx context.Context, req *Request) Result {
	if req.Directive == DirectiveReject {
		return Rejected(model.KindUnauthorized, model.CodeDirectiveReject, "request carries a reject directive")
	}
	if !req.Requester.Role.IsFacultyScoped() {
		return Rejected(model.KindUnauthorized, model.CodeBadCredentials,
			fmt.Sprintf("role %q may not submit jobs", req.Requester.Role))
	}

	memberships, err := v.directory.ResolveFacultyMembership(ctx, req.Requester.UserID)
	if err != nil {
		v.logger.Warn("faculty directory lookup failed",
			slog.String("job_id", req.Job.ID),
			slog.String("user", req.Requester.UserID),
			slog.String("error", err.Error()),
		)
		return ExternalFailure(err)
	}

	if !slices.Contains(memberships, req.Job.Faculty) || !req.Requester.MemberOf(req.Job.Faculty) {
		return Rejected(model.KindUnauthorized, model.CodeBadCredentials,
			fmt.Sprintf("user %q is not a member of faculty %q", req.Requester.UserID, req.Job.Faculty))
	}
	return Deferred()
}

// ResourceValidator checks the demand against the faculty quota left for the day
type ResourceValidator struct {
	quota  directory.QuotaProvider
	ledger ledger.Ledger
	logger *slog.Logger
}

// NewResourceValidator creates a faculty quota validator
func NewResourceValidator(quota directory.QuotaProvider, l ledger.Ledger, logger *slog.Logger) *ResourceValidator {
	return &ResourceValidator{quota: quota, ledger: l, logger: logger}
}

func (v *ResourceValidator) Name() string { return "resource" }

func (v *ResourceValidator) Handle(ctx context.Context, req *Request) Result {
	quota, err := v.quota.GetFacultyResource(ctx, req.Job.Faculty, req.Date)
	if err != nil {
		v.logger.Warn("quota lookup failed",
			slog.String("job_id", req.Job.ID),
			slog.String("faculty", req.Job.Faculty),
			slog.String("error", err.Error()),
		)
		return ExternalFailure(err)
	}

	usage, err := v.ledger.FacultyUsage(ctx, req.Job.Faculty, req.Date)
	if err != nil {
		v.logger.Error("ledger usage lookup failed",
			slog.String("job_id", req.Job.ID),
			slog.String("faculty", req.Job.Faculty),
			slog.String("error", err.Error()),
		)
		return ExternalFailure(err)
	}

	req.Quota = &quota

	if !req.Job.Demand.FitsWithin(usage, quota) {
		return Rejected(model.KindInsufficientCapacity, model.CodeResourceExceeded,
			fmt.Sprintf("faculty %s has %s of %s used on %s, demand %s",
				req.Job.Faculty, usage, quota, model.DayKey(req.Date), req.Job.Demand))
	}
	return Deferred()
}

var (
	_ Validator = DemandValidator{}
	_ Validator = IdentityValidator{}
	_ Validator = (*FacultyValidator)(nil)
	_ Validator = (*ResourceValidator)(nil)
)
