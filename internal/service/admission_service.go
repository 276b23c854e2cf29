package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/chain"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
	"github.com/kirychukyurii/faculty-scheduler/internal/repository"
	"github.com/kirychukyurii/faculty-scheduler/internal/scheduler"
)

// SubmitRequest is a job submission as received from the boundary
type SubmitRequest struct {
	Requester model.Identity
	// Owner defaults to the requester
	Owner        string
	Faculty      string
	Demand       model.Resources
	ScheduleDate *time.Time
	Directive    chain.Directive
}

// SubmitResult is the outcome of a submission
type SubmitResult struct {
	JobID        string          `json:"job_id"`
	Status       model.JobStatus `json:"status"`
	Reason       *model.Reason   `json:"reason,omitempty"`
	NodeID       string          `json:"node_id,omitempty"`
	ScheduleDate *time.Time      `json:"schedule_date,omitempty"`
}

// Placer places accepted jobs and releases their commitments
type Placer interface {
	Schedule(ctx context.Context, job *model.Job, quota *model.Resources) (scheduler.Placement, error)
	Release(ctx context.Context, job *model.Job) error
}

// AdmissionService defines the interface for job admission and lookup
type AdmissionService interface {
	SubmitJob(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	GetJobStatus(ctx context.Context, jobID string, requester model.Identity) (model.JobStatus, error)
	GetJob(ctx context.Context, jobID string, requester model.Identity) (*model.Job, error)
	ListJobs(ctx context.Context, requester model.Identity, owner string) ([]*model.Job, error)
	ListAllJobs(ctx context.Context, requester model.Identity) ([]*model.Job, error)
	ListScheduledJobs(ctx context.Context, requester model.Identity) ([]*model.Job, error)
	DeleteJob(ctx context.Context, jobID string, requester model.Identity) error
}

// admissionService implements AdmissionService interface
type admissionService struct {
	jobs    repository.JobRepository
	chain   *chain.Chain
	placer  Placer
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures the admission service
type Option func(*admissionService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *admissionService) {
		s.now = now
	}
}

// NewAdmissionService creates a new admission service
func NewAdmissionService(
	jobs repository.JobRepository,
	c *chain.Chain,
	placer Placer,
	timeout time.Duration,
	logger *slog.Logger,
	opts ...Option,
) AdmissionService {
	s := &admissionService{
		jobs:    jobs,
		chain:   c,
		placer:  placer,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitJob runs the job through admission and, once accepted, scheduling.
// Rejections are not errors: they are reported in the result and persisted.
func (s *admissionService) SubmitJob(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	owner := req.Owner
	if owner == "" {
		owner = req.Requester.UserID
	}
	directive := req.Directive
	if directive == "" {
		directive = chain.DirectiveEvaluate
	}

	job := model.NewJob(owner, req.Faculty, req.Demand, req.ScheduleDate, s.now())
	date := model.Day(s.now())
	if job.RequestedFor != nil {
		date = *job.RequestedFor
	}

	s.logger.Info("job submitted",
		slog.String("job_id", job.ID),
		slog.String("owner", job.Owner),
		slog.String("faculty", job.Faculty),
		slog.String("demand", job.Demand.String()),
	)

	verdict, quota := s.admit(ctx, &chain.Request{
		Job:       job.Clone(),
		Requester: req.Requester,
		Directive: directive,
		Date:      date,
	})

	if verdict.Verdict == chain.Reject {
		if err := job.Reject(*verdict.Reason, s.now()); err != nil {
			return nil, err
		}
		if err := s.jobs.Save(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to save rejected job %s: %w", job.ID, err)
		}
		return resultOf(job), nil
	}

	if err := job.Accept(s.now()); err != nil {
		return nil, err
	}

	// stored only in a final state
	s.schedule(ctx, job, quota)

	if err := s.jobs.Save(ctx, job); err != nil {
		s.releaseUnsaved(ctx, job)
		return nil, fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return resultOf(job), nil
}

// releaseUnsaved returns the commitment of a job that could not be stored.
// It runs even if the request was cancelled.
func (s *admissionService) releaseUnsaved(ctx context.Context, job *model.Job) {
	if err := s.placer.Release(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("failed to release commitment of unsaved job",
			slog.String("job_id", job.ID),
			slog.String("node_id", job.NodeID),
			slog.String("error", err.Error()),
		)
	}
}

// admit evaluates the chain within the admission timeout. If no verdict
// arrives in time the job is rejected with TIMEOUT.
func (s *admissionService) admit(ctx context.Context, req *chain.Request) (chain.Result, *model.Resources) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type outcome struct {
		result chain.Result
		quota  *model.Resources
	}
	done := make(chan outcome, 1)

	go func() {
		result := s.chain.Evaluate(ctx, req)
		done <- outcome{result: result, quota: req.Quota}
	}()

	select {
	case o := <-done:
		return o.result, o.quota
	case <-ctx.Done():
		s.logger.Warn("admission timed out",
			slog.String("job_id", req.Job.ID),
			slog.String("error", ctx.Err().Error()),
		)
		return chain.ExternalFailure(ctx.Err()), nil
	}
}

// schedule places an accepted job and records the outcome on it
func (s *admissionService) schedule(ctx context.Context, job *model.Job, quota *model.Resources) {
	placement, err := s.placer.Schedule(ctx, job, quota)
	if err == nil {
		if err := job.MarkScheduled(placement.NodeID, placement.Date, s.now()); err != nil {
			s.logger.Error("failed to mark job scheduled",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	reason, ok := model.ReasonOf(err)
	if !ok {
		s.logger.Error("scheduling failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		reason = *chain.ExternalFailure(err).Reason
	}

	s.logger.Info("job could not be scheduled",
		slog.String("job_id", job.ID),
		slog.String("code", reason.Code),
	)
	if err := job.MarkSchedulingFailed(reason, s.now()); err != nil {
		s.logger.Error("failed to mark job scheduling failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// GetJobStatus returns the current status of a job the requester may read
func (s *admissionService) GetJobStatus(ctx context.Context, jobID string, requester model.Identity) (model.JobStatus, error) {
	job, err := s.GetJob(ctx, jobID, requester)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// GetJob returns a job the requester may read
func (s *admissionService) GetJob(ctx context.Context, jobID string, requester model.Identity) (*model.Job, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewError(model.KindNotFound, model.CodeJobNotFound, fmt.Sprintf("job %s not found", jobID))
		}
		return nil, fmt.Errorf("failed to find job %s: %w", jobID, err)
	}

	if !requester.CanAccess(job.Owner) {
		return nil, model.NewError(model.KindIdentityMismatch, model.CodeIdentityMismatch,
			fmt.Sprintf("user %q may not read job %s", requester.UserID, jobID))
	}
	return job, nil
}

// ListJobs returns the jobs of owner; owner defaults to the requester
func (s *admissionService) ListJobs(ctx context.Context, requester model.Identity, owner string) ([]*model.Job, error) {
	if owner == "" {
		owner = requester.UserID
	}
	if !requester.CanAccess(owner) {
		return nil, model.NewError(model.KindIdentityMismatch, model.CodeIdentityMismatch,
			fmt.Sprintf("user %q may not list jobs of %q", requester.UserID, owner))
	}

	jobs, err := s.jobs.FindAllByUser(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs of %s: %w", owner, err)
	}
	return jobs, nil
}

// ListAllJobs returns every job; admins only
func (s *admissionService) ListAllJobs(ctx context.Context, requester model.Identity) ([]*model.Job, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}

	jobs, err := s.jobs.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ListScheduledJobs returns every SCHEDULED job; admins only
func (s *admissionService) ListScheduledJobs(ctx context.Context, requester model.Identity) ([]*model.Job, error) {
	jobs, err := s.ListAllJobs(ctx, requester)
	if err != nil {
		return nil, err
	}

	scheduled := make([]*model.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Status == model.JobScheduled {
			scheduled = append(scheduled, job)
		}
	}
	return scheduled, nil
}

// DeleteJob removes a job and then returns its ledger commitment. If the
// release fails the job is stored again so the delete can be retried.
func (s *admissionService) DeleteJob(ctx context.Context, jobID string, requester model.Identity) error {
	job, err := s.GetJob(ctx, jobID, requester)
	if err != nil {
		return err
	}

	if err := s.jobs.DeleteByID(ctx, jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewError(model.KindNotFound, model.CodeJobNotFound, fmt.Sprintf("job %s not found", jobID))
		}
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}

	detached := context.WithoutCancel(ctx)
	if err := s.placer.Release(detached, job); err != nil {
		if saveErr := s.jobs.Save(detached, job); saveErr != nil {
			s.logger.Error("failed to restore job after release failure",
				slog.String("job_id", jobID),
				slog.String("error", saveErr.Error()),
			)
		}
		return fmt.Errorf("failed to release job %s: %w", jobID, err)
	}

	s.logger.Info("job deleted",
		slog.String("job_id", jobID),
		slog.String("by", requester.UserID),
	)
	return nil
}

func requireAdmin(requester model.Identity) error {
	if !requester.Role.IsElevated() {
		return model.NewError(model.KindUnauthorized, model.CodeForbidden,
			fmt.Sprintf("role %q may not perform this operation", requester.Role))
	}
	return nil
}

func resultOf(job *model.Job) *SubmitResult {
	return &SubmitResult{
		JobID:        job.ID,
		Status:       job.Status,
		Reason:       job.Reason,
		NodeID:       job.NodeID,
		ScheduleDate: job.ScheduleDate,
	}
}
