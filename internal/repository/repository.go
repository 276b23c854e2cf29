package repository

import (
	"context"
	"errors"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// ErrNotFound is returned when a job or node does not exist
var ErrNotFound = errors.New("not found")

// JobRepository defines the persistence capability for jobs
type JobRepository interface {
	// Save creates or replaces a job
	Save(ctx context.Context, job *model.Job) error

	// FindByID returns the job or ErrNotFound
	FindByID(ctx context.Context, id string) (*model.Job, error)

	// FindAllByUser returns the jobs owned by a user, oldest first
	FindAllByUser(ctx context.Context, userID string) ([]*model.Job, error)

	// FindAll returns every job, oldest first
	FindAll(ctx context.Context) ([]*model.Job, error)

	// DeleteByID removes a job or returns ErrNotFound
	DeleteByID(ctx context.Context, id string) error
}

// NodeRepository defines the persistence capability for nodes
type NodeRepository interface {
	// Save creates or replaces a node
	Save(ctx context.Context, node *model.Node) error

	// Get returns the node or ErrNotFound
	Get(ctx context.Context, id string) (*model.Node, error)

	// List returns every node ordered by id
	List(ctx context.Context) ([]*model.Node, error)

	// ListByFaculty returns the nodes owned by a faculty ordered by id
	ListByFaculty(ctx context.Context, faculty string) ([]*model.Node, error)
}
