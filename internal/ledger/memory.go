package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// entry is a single ledger key with its own lock
type entry struct {
	mu   sync.Mutex
	used model.Resources
}

// MemoryLedger keeps usage in process. Each (faculty, day) and (node, day)
// key has its own mutex; a commit locks the faculty key before the node key,
// so commits against different faculties never contend.
type MemoryLedger struct {
	entries sync.Map // string -> *entry
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func facultyKey(faculty string, date time.Time) string {
	return "faculty/" + faculty + "/" + model.DayKey(date)
}

func nodeKey(nodeID string, date time.Time) string {
	return "node/" + nodeID + "/" + model.DayKey(date)
}

func (l *MemoryLedger) entry(key string) *entry {
	if e, ok := l.entries.Load(key); ok {
		return e.(*entry)
	}
	e, _ := l.entries.LoadOrStore(key, &entry{})
	return e.(*entry)
}

func (l *MemoryLedger) read(key string) model.Resources {
	e := l.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.used
}

// FacultyUsage returns the sum of all commitments of the faculty on date
func (l *MemoryLedger) FacultyUsage(_ context.Context, faculty string, date time.Time) (model.Resources, error) {
	return l.read(facultyKey(faculty, date)), nil
}

// NodeSpareCapacity returns the capacity left on the node on date
func (l *MemoryLedger) NodeSpareCapacity(_ context.Context, node model.Node, date time.Time) (model.Resources, error) {
	if !node.IsAvailableOn(date) {
		return model.Resources{}, nil
	}
	return spare(node, date, l.read(nodeKey(node.ID, date))), nil
}

// Commit atomically adds the demand to the node and faculty usage
func (l *MemoryLedger) Commit(ctx context.Context, c Commitment) error {
	if err := c.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fe, ne := l.lockPair(c)
	defer fe.mu.Unlock()
	defer ne.mu.Unlock()

	newNode, newFaculty, err := checkCommit(c, ne.used, fe.used)
	if err != nil {
		return err
	}
	ne.used = newNode
	fe.used = newFaculty
	return nil
}

// Release subtracts a previously committed demand
func (l *MemoryLedger) Release(ctx context.Context, c Commitment) error {
	if err := c.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fe, ne := l.lockPair(c)
	defer fe.mu.Unlock()
	defer ne.mu.Unlock()

	newNode, newFaculty, err := checkRelease(c, ne.used, fe.used)
	if err != nil {
		return err
	}
	ne.used = newNode
	fe.used = newFaculty
	return nil
}

// lockPair locks the faculty entry then the node entry of a commitment
func (l *MemoryLedger) lockPair(c Commitment) (*entry, *entry) {
	fe := l.entry(facultyKey(c.Node.Faculty, c.Date))
	ne := l.entry(nodeKey(c.Node.ID, c.Date))
	fe.mu.Lock()
	ne.mu.Lock()
	return fe, ne
}

// compile-time check that MemoryLedger implements Ledger
var _ Ledger = (*MemoryLedger)(nil)
