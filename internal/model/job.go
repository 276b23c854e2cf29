package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus tracks where the job is in its admission lifecycle
type JobStatus string

const (
	JobCreated          JobStatus = "CREATED"
	JobAccepted         JobStatus = "ACCEPTED"
	JobRejected         JobStatus = "REJECTED"
	JobScheduled        JobStatus = "SCHEDULED"
	JobSchedulingFailed JobStatus = "SCHEDULING_FAILED"
)

// IsTerminal returns true if no further transition is possible
func (s JobStatus) IsTerminal() bool {
	return s == JobRejected || s == JobScheduled || s == JobSchedulingFailed
}

// ErrInvalidTransition is returned when a status change is not allowed
var ErrInvalidTransition = errors.New("invalid job status transition")

// Job represents a unit of work submitted by a user
type Job struct {
	ID           string     `json:"id"`
	Owner        string     `json:"owner"`
	Faculty      string     `json:"faculty"`
	Demand       Resources  `json:"demand"`
	Status       JobStatus  `json:"status"`
	RequestedFor *time.Time `json:"requested_for,omitempty"` // day asked for by the user
	ScheduleDate *time.Time `json:"schedule_date,omitempty"`
	NodeID       string     `json:"node_id,omitempty"`
	Reason       *Reason    `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewJob creates a job in CREATED status with a fresh id.
// The demand is not validated here so that an invalid submission can still be
// recorded as REJECTED; admission checks it first.
func NewJob(owner, faculty string, demand Resources, requestedFor *time.Time, now time.Time) *Job {
	var day *time.Time
	if requestedFor != nil {
		d := Day(*requestedFor)
		day = &d
	}
	return &Job{
		ID:           uuid.NewString(),
		Owner:        strings.TrimSpace(owner),
		Faculty:      strings.TrimSpace(faculty),
		Demand:       demand,
		Status:       JobCreated,
		RequestedFor: day,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Accept moves a created job to ACCEPTED
func (j *Job) Accept(now time.Time) error {
	return j.transition(JobCreated, JobAccepted, nil, now)
}

// Reject moves a created job to REJECTED with a reason
func (j *Job) Reject(reason Reason, now time.Time) error {
	return j.transition(JobCreated, JobRejected, &reason, now)
}

// MarkScheduled moves an accepted job to SCHEDULED on the given node and day
func (j *Job) MarkScheduled(nodeID string, date time.Time, now time.Time) error {
	if nodeID == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidTransition)
	}
	if err := j.transition(JobAccepted, JobScheduled, nil, now); err != nil {
		return err
	}
	day := Day(date)
	j.NodeID = nodeID
	j.ScheduleDate = &day
	return nil
}

// MarkSchedulingFailed moves an accepted job to SCHEDULING_FAILED with a reason
func (j *Job) MarkSchedulingFailed(reason Reason, now time.Time) error {
	return j.transition(JobAccepted, JobSchedulingFailed, &reason, now)
}

func (j *Job) transition(from, to JobStatus, reason *Reason, now time.Time) error {
	if j.Status != from {
		return fmt.Errorf("%w: job %s is %s, cannot move to %s", ErrInvalidTransition, j.ID, j.Status, to)
	}
	if (to == JobRejected || to == JobSchedulingFailed) && (reason == nil || reason.Code == "") {
		return fmt.Errorf("%w: %s requires a reason", ErrInvalidTransition, to)
	}
	j.Status = to
	j.Reason = reason
	j.UpdatedAt = now
	return nil
}

// Clone returns a deep copy of the job
func (j *Job) Clone() *Job {
	c := *j
	if j.RequestedFor != nil {
		t := *j.RequestedFor
		c.RequestedFor = &t
	}
	if j.ScheduleDate != nil {
		t := *j.ScheduleDate
		c.ScheduleDate = &t
	}
	if j.Reason != nil {
		r := *j.Reason
		c.Reason = &r
	}
	return &c
}
