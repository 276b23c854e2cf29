package model

import (
	"errors"
	"time"
)

// Node represents a schedulable compute node owned by a faculty
type Node struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Faculty  string    `json:"faculty"`
	Capacity Resources `json:"capacity"`

	// ReleasedStart and ReleasedEnd bound the window [start, end) during which
	// the node is withdrawn from scheduling. A nil end withdraws it indefinitely.
	ReleasedStart *time.Time `json:"released_start,omitempty"`
	ReleasedEnd   *time.Time `json:"released_end,omitempty"`

	// RemovedDate is the first day on which the node is permanently ineligible
	RemovedDate *time.Time `json:"removed_date,omitempty"`

	// Cluster names the inventory cluster reporting the node; empty for
	// nodes registered administratively
	Cluster string `json:"cluster,omitempty"`
	// Cordoned is set while the cluster refuses new work on the node
	Cordoned bool `json:"cordoned,omitempty"`
}

// IsRemovedOn returns true if the node has been removed on or before date
func (n *Node) IsRemovedOn(date time.Time) bool {
	return n.RemovedDate != nil && !Day(*n.RemovedDate).After(Day(date))
}

// IsWithdrawnOn returns true if date falls inside the node's withdrawal window
func (n *Node) IsWithdrawnOn(date time.Time) bool {
	if n.ReleasedStart == nil {
		return false
	}
	day := Day(date)
	if day.Before(Day(*n.ReleasedStart)) {
		return false
	}
	return n.ReleasedEnd == nil || day.Before(Day(*n.ReleasedEnd))
}

// IsAvailableOn returns true if the node may receive allocations on date
func (n *Node) IsAvailableOn(date time.Time) bool {
	return !n.Cordoned && !n.IsRemovedOn(date) && !n.IsWithdrawnOn(date)
}

// Merge applies a fresh cluster report to the stored node. Capacity, name,
// faculty and cordon state follow the report. A withdrawal window is taken
// from the report only if it carries one; a removal date never goes away and
// only moves earlier.
func (n *Node) Merge(reported *Node) *Node {
	merged := *reported
	if merged.ReleasedStart == nil && merged.ReleasedEnd == nil {
		merged.ReleasedStart = n.ReleasedStart
		merged.ReleasedEnd = n.ReleasedEnd
	}
	if n.RemovedDate != nil && (merged.RemovedDate == nil || n.RemovedDate.Before(*merged.RemovedDate)) {
		merged.RemovedDate = n.RemovedDate
	}
	return &merged
}

// Validate checks the administrative invariants of a node
func (n *Node) Validate() error {
	if n.ID == "" || n.Faculty == "" {
		return errors.New("node id and faculty are required")
	}
	return n.Capacity.Validate()
}
