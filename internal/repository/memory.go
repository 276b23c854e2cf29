package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// MemoryJobRepository stores jobs in a map protected by a RWMutex.
// Jobs are copied on the way in and out so callers cannot mutate stored state.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryJobRepository creates an empty job repository
func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*model.Job)}
}

func (r *MemoryJobRepository) Save(_ context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryJobRepository) FindByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job.Clone(), nil
}

func (r *MemoryJobRepository) FindAllByUser(_ context.Context, userID string) ([]*model.Job, error) {
	return r.filter(func(j *model.Job) bool { return j.Owner == userID }), nil
}

func (r *MemoryJobRepository) FindAll(_ context.Context) ([]*model.Job, error) {
	return r.filter(func(*model.Job) bool { return true }), nil
}

func (r *MemoryJobRepository) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryJobRepository) filter(keep func(*model.Job) bool) []*model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if keep(job) {
			result = append(result, job.Clone())
		}
	}
	sortJobs(result)
	return result
}

// MemoryNodeRepository stores nodes in a map protected by a RWMutex
type MemoryNodeRepository struct {
	mu    sync.RWMutex
	nodes map[string]*model.Node
}

// NewMemoryNodeRepository creates an empty node repository
func NewMemoryNodeRepository() *MemoryNodeRepository {
	return &MemoryNodeRepository{nodes: make(map[string]*model.Node)}
}

func (r *MemoryNodeRepository) Save(_ context.Context, node *model.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.ID] = cloneNode(node)
	return nil
}

func (r *MemoryNodeRepository) Get(_ context.Context, id string) (*model.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	node, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return cloneNode(node), nil
}

func (r *MemoryNodeRepository) List(_ context.Context) ([]*model.Node, error) {
	return r.filter(func(*model.Node) bool { return true }), nil
}

func (r *MemoryNodeRepository) ListByFaculty(_ context.Context, faculty string) ([]*model.Node, error) {
	return r.filter(func(n *model.Node) bool { return n.Faculty == faculty }), nil
}

func (r *MemoryNodeRepository) filter(keep func(*model.Node) bool) []*model.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*model.Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		if keep(node) {
			result = append(result, cloneNode(node))
		}
	}
	sortNodes(result)
	return result
}

var (
	_ JobRepository  = (*MemoryJobRepository)(nil)
	_ NodeRepository = (*MemoryNodeRepository)(nil)
)
