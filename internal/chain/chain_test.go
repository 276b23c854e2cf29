package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/faculty-scheduler/internal/config"
	"github.com/kirychukyurii/faculty-scheduler/internal/directory"
	"github.com/kirychukyurii/faculty-scheduler/internal/ledger"
	"github.com/kirychukyurii/faculty-scheduler/internal/logger"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

var today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

type fakeDirectory struct {
	faculties []string
	err       error
	calls     int
}

func (f *fakeDirectory) ResolveFacultyMembership(_ context.Context, _ string) ([]string, error) {
	f.calls++
	return f.faculties, f.err
}

type fakeQuota struct {
	quota model.Resources
	err   error
	calls int
}

func (f *fakeQuota) GetFacultyResource(_ context.Context, _ string, _ time.Time) (model.Resources, error) {
	f.calls++
	return f.quota, f.err
}

// recorder remembers that it ran and returns a fixed result
type recorder struct {
	name   string
	result Result
	ran    *[]string
}

func (r recorder) Name() string { return r.name }

func (r recorder) Handle(_ context.Context, _ *Request) Result {
	*r.ran = append(*r.ran, r.name)
	return r.result
}

func newRequest(cpu, gpu, mem int) *Request {
	job := model.NewJob("alice", "EEMCS", model.Resources{CPU: cpu, GPU: gpu, Memory: mem}, nil, today)
	return &Request{
		Job:       job,
		Requester: model.Identity{UserID: "alice", Role: model.RoleEmployee, Faculties: []string{"EEMCS"}},
		Directive: DirectiveEvaluate,
		Date:      today,
	}
}

func TestChainStopsAtFirstDecision(t *testing.T) {
	var ran []string
	c := New(logger.Discard(),
		recorder{name: "a", result: Deferred(), ran: &ran},
		recorder{name: "b", result: Rejected(model.KindUnauthorized, model.CodeBadCredentials, "no"), ran: &ran},
		recorder{name: "c", result: Approved(), ran: &ran},
	)

	result := c.Evaluate(context.Background(), newRequest(1, 0, 1))
	assert.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.CodeBadCredentials, result.Reason.Code)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestChainApprovesWhenExhausted(t *testing.T) {
	var ran []string
	c := New(logger.Discard(),
		recorder{name: "a", result: Deferred(), ran: &ran},
		recorder{name: "b", result: Deferred(), ran: &ran},
	)

	result := c.Evaluate(context.Background(), newRequest(1, 0, 1))
	assert.Equal(t, Approve, result.Verdict)
	assert.Nil(t, result.Reason)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestChainExplicitApproveShortCircuits(t *testing.T) {
	var ran []string
	c := New(logger.Discard(),
		recorder{name: "a", result: Approved(), ran: &ran},
		recorder{name: "b", result: Rejected(model.KindUnauthorized, model.CodeBadCredentials, "no"), ran: &ran},
	)

	assert.Equal(t, Approve, c.Evaluate(context.Background(), newRequest(1, 0, 1)).Verdict)
	assert.Equal(t, []string{"a"}, ran)
}

func TestChainDoneContextTimesOut(t *testing.T) {
	var ran []string
	c := New(logger.Discard(), recorder{name: "a", result: Approved(), ran: &ran})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	result := c.Evaluate(ctx, newRequest(1, 0, 1))
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.CodeTimeout, result.Reason.Code)
	assert.Empty(t, ran)
}

func TestBuildOrder(t *testing.T) {
	deps := Dependencies{Directory: &fakeDirectory{}, Quota: &fakeQuota{}, Ledger: ledger.NewMemoryLedger()}

	c, err := Build([]string{config.ValidatorResource, config.ValidatorFaculty}, deps, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"demand", "identity", "resource", "faculty"}, c.Names())

	c, err = Build(nil, deps, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"demand", "identity"}, c.Names())

	_, err = Build([]string{"billing"}, deps, logger.Discard())
	assert.Error(t, err)

	_, err = Build([]string{config.ValidatorFaculty}, Dependencies{}, logger.Discard())
	assert.Error(t, err)
}

// Scenario: user not in the target faculty is rejected before any quota lookup
func TestUnauthorizedFacultyStopsBeforeQuota(t *testing.T) {
	dir := &fakeDirectory{faculties: []string{"AE"}}
	quota := &fakeQuota{quota: model.Resources{CPU: 100, GPU: 100, Memory: 100}}
	c, err := Build([]string{config.ValidatorFaculty, config.ValidatorResource},
		Dependencies{Directory: dir, Quota: quota, Ledger: ledger.NewMemoryLedger()}, logger.Discard())
	require.NoError(t, err)

	req := newRequest(1, 0, 1)
	req.Requester.Faculties = []string{"EEMCS", "AE"}

	result := c.Evaluate(context.Background(), req)
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.KindUnauthorized, result.Reason.Kind)
	assert.Equal(t, model.CodeBadCredentials, result.Reason.Code)
	assert.Equal(t, 1, dir.calls)
	assert.Equal(t, 0, quota.calls)
}

// Scenario: negative demand never reaches a collaborator
func TestNegativeDemandHasNoExternalCalls(t *testing.T) {
	dir := &fakeDirectory{faculties: []string{"EEMCS"}}
	quota := &fakeQuota{}
	c, err := Build([]string{config.ValidatorFaculty, config.ValidatorResource},
		Dependencies{Directory: dir, Quota: quota, Ledger: ledger.NewMemoryLedger()}, logger.Discard())
	require.NoError(t, err)

	result := c.Evaluate(context.Background(), newRequest(-1, 0, 0))
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.KindInvalidDemand, result.Reason.Kind)
	assert.Equal(t, model.CodeInvalidDemand, result.Reason.Code)
	assert.Zero(t, dir.calls)
	assert.Zero(t, quota.calls)
}

func TestIdentityValidator(t *testing.T) {
	req := newRequest(1, 0, 1)
	assert.Equal(t, Defer, IdentityValidator{}.Handle(context.Background(), req).Verdict)

	req.Requester.UserID = "mallory"
	result := IdentityValidator{}.Handle(context.Background(), req)
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.CodeIdentityMismatch, result.Reason.Code)

	req.Requester.UserID = ""
	result = IdentityValidator{}.Handle(context.Background(), req)
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.KindIdentityMismatch, result.Reason.Kind)
}

func TestFacultyValidator(t *testing.T) {
	tests := []struct {
		name       string
		role       model.Role
		declared   []string
		directory  []string
		directive  Directive
		err        error
		wantVerdict Verdict
		wantCode   string
		wantCalls  int
	}{
		{name: "member", role: model.RoleEmployee, declared: []string{"EEMCS"}, directory: []string{"EEMCS"}, wantVerdict: Defer, wantCalls: 1},
		{name: "faculty role", role: model.RoleFaculty, declared: []string{"EEMCS"}, directory: []string{"AE", "EEMCS"}, wantVerdict: Defer, wantCalls: 1},
		{name: "admin role", role: model.RoleAdmin, declared: []string{"EEMCS"}, directory: []string{"EEMCS"}, wantVerdict: Reject, wantCode: model.CodeBadCredentials},
		{name: "directory disagrees", role: model.RoleEmployee, declared: []string{"EEMCS"}, directory: []string{"AE"}, wantVerdict: Reject, wantCode: model.CodeBadCredentials, wantCalls: 1},
		{name: "not declared", role: model.RoleEmployee, declared: []string{"AE"}, directory: []string{"EEMCS"}, wantVerdict: Reject, wantCode: model.CodeBadCredentials, wantCalls: 1},
		{name: "reject directive", role: model.RoleEmployee, declared: []string{"EEMCS"}, directory: []string{"EEMCS"}, directive: DirectiveReject, wantVerdict: Reject, wantCode: model.CodeDirectiveReject},
		{name: "bad status", role: model.RoleEmployee, declared: []string{"EEMCS"}, err: directory.ErrBadStatus, wantVerdict: Reject, wantCode: model.CodeBadRequest, wantCalls: 1},
		{name: "empty body", role: model.RoleEmployee, declared: []string{"EEMCS"}, err: directory.ErrEmptyBody, wantVerdict: Reject, wantCode: model.CodeInvalidBody, wantCalls: 1},
		{name: "deadline", role: model.RoleEmployee, declared: []string{"EEMCS"}, err: context.DeadlineExceeded, wantVerdict: Reject, wantCode: model.CodeTimeout, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &fakeDirectory{faculties: tt.directory, err: tt.err}
			v := NewFacultyValidator(dir, logger.Discard())

			req := newRequest(1, 0, 1)
			req.Requester.Role = tt.role
			req.Requester.Faculties = tt.declared
			if tt.directive != "" {
				req.Directive = tt.directive
			}

			result := v.Handle(context.Background(), req)
			assert.Equal(t, tt.wantVerdict, result.Verdict)
			if tt.wantCode != "" {
				require.NotNil(t, result.Reason)
				assert.Equal(t, tt.wantCode, result.Reason.Code)
			}
			assert.Equal(t, tt.wantCalls, dir.calls)
		})
	}
}

// Scenario: usage 7 of quota 8 cpu, demand 2 is rejected
func TestResourceValidatorExceeded(t *testing.T) {
	l := ledger.NewMemoryLedger()
	node := model.Node{ID: "n1", Faculty: "EEMCS", Capacity: model.Resources{CPU: 32, GPU: 8, Memory: 64}}
	require.NoError(t, l.Commit(context.Background(), ledger.Commitment{Node: node, Date: today, Demand: model.Resources{CPU: 7}}))

	v := NewResourceValidator(&fakeQuota{quota: model.Resources{CPU: 8, GPU: 4, Memory: 16}}, l, logger.Discard())

	req := newRequest(2, 0, 0)
	result := v.Handle(context.Background(), req)
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.KindInsufficientCapacity, result.Reason.Kind)
	assert.Equal(t, model.CodeResourceExceeded, result.Reason.Code)

	req = newRequest(1, 4, 16)
	result = v.Handle(context.Background(), req)
	assert.Equal(t, Defer, result.Verdict)
	require.NotNil(t, req.Quota)
	assert.Equal(t, model.Resources{CPU: 8, GPU: 4, Memory: 16}, *req.Quota)
}

func TestResourceValidatorRejectsOverflowingDemand(t *testing.T) {
	l := ledger.NewMemoryLedger()
	node := model.Node{ID: "n1", Faculty: "EEMCS", Capacity: model.Resources{CPU: 32, GPU: 8, Memory: 64}}
	require.NoError(t, l.Commit(context.Background(), ledger.Commitment{Node: node, Date: today, Demand: model.Resources{CPU: 1}}))

	v := NewResourceValidator(&fakeQuota{quota: model.Resources{CPU: 10, GPU: 10, Memory: 10}}, l, logger.Discard())

	result := v.Handle(context.Background(), newRequest(math.MaxInt, 0, 0))
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.CodeResourceExceeded, result.Reason.Code)
}

func TestResourceValidatorFailsClosed(t *testing.T) {
	v := NewResourceValidator(&fakeQuota{err: fmt.Errorf("wrapped: %w", directory.ErrEmptyBody)}, ledger.NewMemoryLedger(), logger.Discard())

	req := newRequest(1, 0, 0)
	result := v.Handle(context.Background(), req)
	require.Equal(t, Reject, result.Verdict)
	assert.Equal(t, model.KindExternalDependencyFailure, result.Reason.Kind)
	assert.Equal(t, model.CodeInvalidBody, result.Reason.Code)
	assert.Nil(t, req.Quota)
}

func TestExternalFailure(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{err: context.DeadlineExceeded, code: model.CodeTimeout},
		{err: fmt.Errorf("get: %w", context.Canceled), code: model.CodeTimeout},
		{err: directory.ErrBadStatus, code: model.CodeBadRequest},
		{err: directory.ErrUnavailable, code: model.CodeBadRequest},
		{err: directory.ErrEmptyBody, code: model.CodeInvalidBody},
		{err: errors.New("boom"), code: model.CodeBadRequest},
	}

	for _, tt := range tests {
		result := ExternalFailure(tt.err)
		assert.Equal(t, Reject, result.Verdict, tt.err.Error())
		assert.Equal(t, model.KindExternalDependencyFailure, result.Reason.Kind, tt.err.Error())
		assert.Equal(t, tt.code, result.Reason.Code, tt.err.Error())
	}
}

func TestParseDirective(t *testing.T) {
	d, ok := ParseDirective("")
	assert.True(t, ok)
	assert.Equal(t, DirectiveEvaluate, d)

	d, ok = ParseDirective("reject")
	assert.True(t, ok)
	assert.Equal(t, DirectiveReject, d)

	_, ok = ParseDirective("approve")
	assert.False(t, ok)
}
