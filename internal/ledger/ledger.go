// Package ledger tracks committed cpu, gpu and memory per (faculty, day) and
// per (node, day). Commit is check-then-act atomic for both keys it touches.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

var (
	// ErrInsufficientCapacity is returned when the node cannot absorb the demand
	ErrInsufficientCapacity = errors.New("insufficient node capacity")
	// ErrQuotaExceeded is returned when the faculty quota for the day would be exceeded
	ErrQuotaExceeded = errors.New("faculty quota exceeded")
	// ErrNodeUnavailable is returned when the node is removed or withdrawn on the day
	ErrNodeUnavailable = errors.New("node unavailable on date")
	// ErrReleaseUnderflow is returned when releasing more than was committed
	ErrReleaseUnderflow = errors.New("release exceeds committed usage")
)

// Commitment is a demand placed on a node for one day
type Commitment struct {
	Node   model.Node
	Date   time.Time
	Demand model.Resources
	// FacultyQuota, when set, is enforced against the faculty's usage for the day
	FacultyQuota *model.Resources
}

func (c Commitment) validate() error {
	if c.Node.ID == "" || c.Node.Faculty == "" {
		return fmt.Errorf("commitment requires a node with id and faculty")
	}
	if c.Demand.IsNegative() {
		return fmt.Errorf("commitment demand %s is negative", c.Demand)
	}
	return nil
}

// Ledger is the authoritative source of committed versus available capacity
type Ledger interface {
	// FacultyUsage returns the sum of all commitments of the faculty on date
	FacultyUsage(ctx context.Context, faculty string, date time.Time) (model.Resources, error)

	// NodeSpareCapacity returns capacity minus committed usage of the node on
	// date, or zero if the node is removed or withdrawn on that date
	NodeSpareCapacity(ctx context.Context, node model.Node, date time.Time) (model.Resources, error)

	// Commit atomically adds the demand to the node and faculty usage
	Commit(ctx context.Context, c Commitment) error

	// Release subtracts a previously committed demand
	Release(ctx context.Context, c Commitment) error
}

// spare computes what is left on a node given its committed usage
func spare(node model.Node, date time.Time, used model.Resources) model.Resources {
	if !node.IsAvailableOn(date) {
		return model.Resources{}
	}
	left := node.Capacity.Sub(used)
	if left.IsNegative() {
		// capacity was lowered administratively below what is already committed
		return model.Resources{
			CPU:    max(left.CPU, 0),
			GPU:    max(left.GPU, 0),
			Memory: max(left.Memory, 0),
		}
	}
	return left
}

// checkCommit applies the admission rules of a commitment to the current usage
// and returns the new node and faculty usage
func checkCommit(c Commitment, nodeUsed, facultyUsed model.Resources) (model.Resources, model.Resources, error) {
	if !c.Node.IsAvailableOn(c.Date) {
		return model.Resources{}, model.Resources{}, fmt.Errorf("%w: node %s on %s", ErrNodeUnavailable, c.Node.ID, model.DayKey(c.Date))
	}

	if !c.Demand.FitsWithin(nodeUsed, c.Node.Capacity) {
		return model.Resources{}, model.Resources{}, fmt.Errorf("%w: node %s has %s committed of %s, demand %s",
			ErrInsufficientCapacity, c.Node.ID, nodeUsed, c.Node.Capacity, c.Demand)
	}
	newNode := nodeUsed.Add(c.Demand)

	if c.FacultyQuota != nil && !c.Demand.FitsWithin(facultyUsed, *c.FacultyQuota) {
		return model.Resources{}, model.Resources{}, fmt.Errorf("%w: faculty %s has %s committed of %s, demand %s",
			ErrQuotaExceeded, c.Node.Faculty, facultyUsed, *c.FacultyQuota, c.Demand)
	}
	newFaculty, ok := facultyUsed.AddChecked(c.Demand)
	if !ok {
		return model.Resources{}, model.Resources{}, fmt.Errorf("%w: faculty %s usage %s cannot grow by %s",
			ErrQuotaExceeded, c.Node.Faculty, facultyUsed, c.Demand)
	}

	return newNode, newFaculty, nil
}

// checkRelease returns the usage left after releasing the commitment
func checkRelease(c Commitment, nodeUsed, facultyUsed model.Resources) (model.Resources, model.Resources, error) {
	newNode := nodeUsed.Sub(c.Demand)
	newFaculty := facultyUsed.Sub(c.Demand)
	if newNode.IsNegative() || newFaculty.IsNegative() {
		return model.Resources{}, model.Resources{}, fmt.Errorf("%w: node %s on %s", ErrReleaseUnderflow, c.Node.ID, model.DayKey(c.Date))
	}
	return newNode, newFaculty, nil
}
