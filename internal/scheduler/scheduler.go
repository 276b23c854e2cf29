// Package scheduler places accepted jobs on a node of their faculty with
// enough spare capacity and commits the demand to the ledger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/config"
	"github.com/kirychukyurii/faculty-scheduler/internal/ledger"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
	"github.com/kirychukyurii/faculty-scheduler/internal/repository"
)

// Placement is where and when a job was committed
type Placement struct {
	NodeID string
	Date   time.Time
}

// Scheduler selects nodes and commits demand to the ledger
type Scheduler struct {
	nodes       repository.NodeRepository
	ledger      ledger.Ledger
	lookahead   int
	maxParallel int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler
func New(nodes repository.NodeRepository, l ledger.Ledger, cfg config.SchedulerConfig, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		nodes:       nodes,
		ledger:      l,
		lookahead:   cfg.LookaheadDays,
		maxParallel: cfg.MaxParallel,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule places the job on the lowest-id node that can absorb its demand.
// quota, when set, is the faculty ceiling enforced at commit time.
// Placement failures are returned as *model.Error; anything else is an
// infrastructure error.
func (s *Scheduler) Schedule(ctx context.Context, job *model.Job, quota *model.Resources) (Placement, error) {
	nodes, err := s.nodes.ListByFaculty(ctx, job.Faculty)
	if err != nil {
		return Placement{}, fmt.Errorf("failed to list nodes of faculty %s: %w", job.Faculty, err)
	}

	quotaHit := false
	for _, date := range s.dates(job) {
		placement, err := s.scheduleOn(ctx, job, nodes, date, quota)
		switch {
		case err == nil:
			return placement, nil
		case errors.Is(err, ledger.ErrQuotaExceeded):
			quotaHit = true
		case errors.Is(err, errNoCandidate):
		default:
			return Placement{}, err
		}
	}

	if quotaHit {
		return Placement{}, model.NewError(model.KindInsufficientCapacity, model.CodeQuotaExhausted,
			fmt.Sprintf("faculty %s quota exhausted", job.Faculty))
	}
	return Placement{}, model.NewError(model.KindInsufficientCapacity, model.CodeNoEligibleNode,
		fmt.Sprintf("no node of faculty %s can hold %s", job.Faculty, job.Demand))
}

var errNoCandidate = errors.New("no candidate node")

// scheduleOn tries the candidates of one day in order
func (s *Scheduler) scheduleOn(ctx context.Context, job *model.Job, nodes []*model.Node, date time.Time, quota *model.Resources) (Placement, error) {
	candidates, err := s.filterFitting(ctx, s.filterAvailable(nodes, date), job.Demand, date)
	if err != nil {
		return Placement{}, err
	}
	orderCandidates(candidates)

	for _, c := range candidates {
		err := s.ledger.Commit(ctx, ledger.Commitment{
			Node:         *c.node,
			Date:         date,
			Demand:       job.Demand,
			FacultyQuota: quota,
		})
		switch {
		case err == nil:
			s.logger.Info("job placed",
				slog.String("job_id", job.ID),
				slog.String("node_id", c.node.ID),
				slog.String("date", model.DayKey(date)),
			)
			return Placement{NodeID: c.node.ID, Date: date}, nil
		case errors.Is(err, ledger.ErrInsufficientCapacity), errors.Is(err, ledger.ErrNodeUnavailable):
			// another commit won the node since capacity was read
			s.logger.Debug("commit lost, trying next candidate",
				slog.String("job_id", job.ID),
				slog.String("node_id", c.node.ID),
				slog.String("error", err.Error()),
			)
		case errors.Is(err, ledger.ErrQuotaExceeded):
			s.logger.Info("faculty quota exhausted at commit",
				slog.String("job_id", job.ID),
				slog.String("faculty", job.Faculty),
				slog.String("date", model.DayKey(date)),
			)
			return Placement{}, err
		default:
			return Placement{}, fmt.Errorf("failed to commit job %s to node %s: %w", job.ID, c.node.ID, err)
		}
	}

	return Placement{}, errNoCandidate
}

// dates returns the days a job may be placed on, earliest first
func (s *Scheduler) dates(job *model.Job) []time.Time {
	if job.RequestedFor != nil {
		return []time.Time{model.Day(*job.RequestedFor)}
	}

	today := model.Day(s.now())
	dates := make([]time.Time, 0, s.lookahead+1)
	for i := 0; i <= s.lookahead; i++ {
		dates = append(dates, today.AddDate(0, 0, i))
	}
	return dates
}

// Release returns the commitment of a scheduled job to the ledger
func (s *Scheduler) Release(ctx context.Context, job *model.Job) error {
	if job.Status != model.JobScheduled || job.ScheduleDate == nil {
		return nil
	}

	// the job was committed under its own faculty; the node may have changed since
	node := model.Node{ID: job.NodeID, Faculty: job.Faculty}
	if err := s.ledger.Release(ctx, ledger.Commitment{Node: node, Date: *job.ScheduleDate, Demand: job.Demand}); err != nil {
		return fmt.Errorf("failed to release job %s: %w", job.ID, err)
	}

	s.logger.Info("job commitment released",
		slog.String("job_id", job.ID),
		slog.String("node_id", node.ID),
	)
	return nil
}
