package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

var today = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

// LedgerSuite runs against every Ledger implementation
type LedgerSuite struct {
	suite.Suite
	newLedger func() Ledger
	ctx       context.Context
	ledger    Ledger
	node      model.Node
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledger = s.newLedger()
	s.node = model.Node{ID: "node-1", Faculty: "EEMCS", Capacity: model.Resources{CPU: 10, GPU: 4, Memory: 32}}
}

func TestMemoryLedgerSuite(t *testing.T) {
	suite.Run(t, &LedgerSuite{newLedger: func() Ledger { return NewMemoryLedger() }})
}

func (s *LedgerSuite) commitment(cpu, gpu, mem int) Commitment {
	return Commitment{Node: s.node, Date: today, Demand: model.Resources{CPU: cpu, GPU: gpu, Memory: mem}}
}

func (s *LedgerSuite) TestEmptyLedger() {
	usage, err := s.ledger.FacultyUsage(s.ctx, "EEMCS", today)
	s.NoError(err)
	s.True(usage.IsZero())

	spare, err := s.ledger.NodeSpareCapacity(s.ctx, s.node, today)
	s.NoError(err)
	s.Equal(s.node.Capacity, spare)
}

func (s *LedgerSuite) TestCommitAndRelease() {
	s.Require().NoError(s.ledger.Commit(s.ctx, s.commitment(3, 2, 1)))

	spare, err := s.ledger.NodeSpareCapacity(s.ctx, s.node, today)
	s.NoError(err)
	s.Equal(model.Resources{CPU: 7, GPU: 2, Memory: 31}, spare)

	usage, err := s.ledger.FacultyUsage(s.ctx, "EEMCS", today)
	s.NoError(err)
	s.Equal(model.Resources{CPU: 3, GPU: 2, Memory: 1}, usage)

	// other days are independent
	usage, err = s.ledger.FacultyUsage(s.ctx, "EEMCS", today.AddDate(0, 0, 1))
	s.NoError(err)
	s.True(usage.IsZero())

	s.Require().NoError(s.ledger.Release(s.ctx, s.commitment(3, 2, 1)))
	usage, err = s.ledger.FacultyUsage(s.ctx, "EEMCS", today)
	s.NoError(err)
	s.True(usage.IsZero())
}

func (s *LedgerSuite) TestCommitRejectsOvercommit() {
	s.Require().NoError(s.ledger.Commit(s.ctx, s.commitment(6, 0, 0)))

	err := s.ledger.Commit(s.ctx, s.commitment(6, 0, 0))
	s.ErrorIs(err, ErrInsufficientCapacity)

	usage, _ := s.ledger.FacultyUsage(s.ctx, "EEMCS", today)
	s.Equal(6, usage.CPU, "failed commit must not change usage")
}

func (s *LedgerSuite) TestCommitRejectsOverflowingDemand() {
	s.Require().NoError(s.ledger.Commit(s.ctx, s.commitment(1, 0, 0)))

	s.ErrorIs(s.ledger.Commit(s.ctx, s.commitment(math.MaxInt, 0, 0)), ErrInsufficientCapacity)

	quota := model.Resources{CPU: 10, GPU: 10, Memory: 10}
	huge := Commitment{
		Node:         model.Node{ID: "node-big", Faculty: "EEMCS", Capacity: model.Resources{CPU: math.MaxInt, GPU: 1, Memory: 1}},
		Date:         today,
		Demand:       model.Resources{CPU: math.MaxInt},
		FacultyQuota: &quota,
	}
	s.ErrorIs(s.ledger.Commit(s.ctx, huge), ErrQuotaExceeded)

	huge.FacultyQuota = nil
	s.ErrorIs(s.ledger.Commit(s.ctx, huge), ErrQuotaExceeded)

	usage, err := s.ledger.FacultyUsage(s.ctx, "EEMCS", today)
	s.NoError(err)
	s.Equal(model.Resources{CPU: 1}, usage)
}

func (s *LedgerSuite) TestCommitEnforcesFacultyQuota() {
	quota := model.Resources{CPU: 4, GPU: 4, Memory: 4}
	other := model.Node{ID: "node-2", Faculty: "EEMCS", Capacity: s.node.Capacity}

	c := s.commitment(3, 0, 0)
	c.FacultyQuota = &quota
	s.Require().NoError(s.ledger.Commit(s.ctx, c))

	c2 := Commitment{Node: other, Date: today, Demand: model.Resources{CPU: 2}, FacultyQuota: &quota}
	s.ErrorIs(s.ledger.Commit(s.ctx, c2), ErrQuotaExceeded)

	spare, _ := s.ledger.NodeSpareCapacity(s.ctx, other, today)
	s.Equal(other.Capacity, spare)
}

func (s *LedgerSuite) TestUnavailableNode() {
	removed := today
	s.node.RemovedDate = &removed

	spare, err := s.ledger.NodeSpareCapacity(s.ctx, s.node, today)
	s.NoError(err)
	s.True(spare.IsZero())

	s.ErrorIs(s.ledger.Commit(s.ctx, s.commitment(1, 0, 0)), ErrNodeUnavailable)

	// still available the day before
	spare, _ = s.ledger.NodeSpareCapacity(s.ctx, s.node, today.AddDate(0, 0, -1))
	s.Equal(s.node.Capacity, spare)
}

func (s *LedgerSuite) TestReleaseUnderflow() {
	s.Require().NoError(s.ledger.Commit(s.ctx, s.commitment(1, 0, 0)))
	s.ErrorIs(s.ledger.Release(s.ctx, s.commitment(2, 0, 0)), ErrReleaseUnderflow)
}

func (s *LedgerSuite) TestInvalidCommitment() {
	s.Error(s.ledger.Commit(s.ctx, Commitment{Date: today}))
	s.Error(s.ledger.Commit(s.ctx, s.commitment(-1, 0, 0)))
}

func (s *LedgerSuite) TestCommitCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.Error(s.ledger.Commit(ctx, s.commitment(1, 0, 0)))

	usage, err := s.ledger.FacultyUsage(s.ctx, "EEMCS", today)
	s.NoError(err)
	s.True(usage.IsZero())
}

func (s *LedgerSuite) TestConcurrentCommitsSameNode() {
	node := model.Node{ID: "node-1", Faculty: "EEMCS", Capacity: model.Resources{CPU: 10}}

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.ledger.Commit(s.ctx, Commitment{Node: node, Date: today, Demand: model.Resources{CPU: 6}})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.Require().True(errors.Is(err, ErrInsufficientCapacity), "unexpected error %v", err)
	}
	s.Require().Equal(1, succeeded)

	spare, err := s.ledger.NodeSpareCapacity(s.ctx, node, today)
	s.Require().NoError(err)
	s.Require().Equal(4, spare.CPU)
}

func (s *LedgerSuite) TestConcurrentCommitsRespectFacultyQuota() {
	quota := model.Resources{CPU: 10, GPU: 10, Memory: 10}

	const workers = 12
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node := model.Node{ID: fmt.Sprintf("node-%02d", i), Faculty: "EEMCS", Capacity: model.Resources{CPU: 8, GPU: 8, Memory: 8}}
			errs[i] = s.ledger.Commit(s.ctx, Commitment{Node: node, Date: today, Demand: model.Resources{CPU: 3}, FacultyQuota: &quota})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.Require().True(errors.Is(err, ErrQuotaExceeded), "unexpected error %v", err)
	}
	s.Equal(3, succeeded)

	usage, err := s.ledger.FacultyUsage(s.ctx, "EEMCS", today)
	s.Require().NoError(err)
	s.Equal(model.Resources{CPU: 9}, usage)
}

func TestConcurrentCommitsNeverOvercommit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("committed usage never exceeds node capacity", prop.ForAll(
		func(capacity int, demands []int) bool {
			ledger := NewMemoryLedger()
			node := model.Node{ID: "n", Faculty: "F", Capacity: model.Resources{CPU: capacity, Memory: capacity}}

			var wg sync.WaitGroup
			for _, d := range demands {
				wg.Add(1)
				go func(d int) {
					defer wg.Done()
					_ = ledger.Commit(context.Background(), Commitment{
						Node: node, Date: today, Demand: model.Resources{CPU: d, Memory: d},
					})
				}(d)
			}
			wg.Wait()

			usage, _ := ledger.FacultyUsage(context.Background(), "F", today)
			spare, _ := ledger.NodeSpareCapacity(context.Background(), node, today)
			return usage.Fits(node.Capacity) && usage.Add(spare) == node.Capacity
		},
		gen.IntRange(0, 50),
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	properties.TestingRun(t)
}
