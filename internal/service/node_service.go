package service

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

// NodeService defines node administration and capacity queries
type NodeService interface {
	ListNodes(ctx context.Context, faculty string) ([]*model.Node, error)
	GetNode(ctx context.Context, nodeID string) (*model.Node, error)
	SaveNode(ctx context.Context, requester model.Identity, node *model.Node) error
	NodeCapacity(ctx context.Context, nodeID string, date time.Time) (*NodeCapacity, error)
	FacultyUsage(ctx context.Context, requester model.Identity, faculty string, date time.Time) (model.Resources, error)
	Seed(ctx context.Context, seeds []config.NodeSeedConfig) error
}

// NodeCapacity is a node's capacity and what is left of it on a day
type NodeCapacity struct {
	NodeID    string          `json:"node_id"`
	Date      string          `json:"date"`
	Available bool            `json:"available"`
	Capacity  model.Resources `json:"capacity"`
	Spare     model.Resources `json:"spare"`
}

// nodeService implements NodeService interface
type nodeService struct {
	nodes  repository.NodeRepository
	ledger ledger.Ledger
	logger *slog.Logger
}

// NewNodeService creates a new node service
func NewNodeService(nodes repository.NodeRepository, l ledger.Ledger, logger *slog.Logger) NodeService {
	return &nodeService{
		nodes:  nodes,
		ledger: l,
		logger: logger,
	}
}

// ListNodes returns all nodes, or those of one faculty
func (s *nodeService) ListNodes(ctx context.Context, faculty string) ([]*model.Node, error) {
	var (
		nodes []*model.Node
		err   error
	)
	if faculty == "" {
		nodes, err = s.nodes.List(ctx)
	} else {
		nodes, err = s.nodes.ListByFaculty(ctx, faculty)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return nodes, nil
}

// GetNode returns a node by id
func (s *nodeService) GetNode(ctx context.Context, nodeID string) (*model.Node, error) {
	node, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewError(model.KindNotFound, model.CodeNodeNotFound, fmt.Sprintf("node %s not found", nodeID))
		}
		return nil, fmt.Errorf("failed to get node %s: %w", nodeID, err)
	}
	return node, nil
}

// SaveNode creates or replaces a node; admins only
func (s *nodeService) SaveNode(ctx context.Context, requester model.Identity, node *model.Node) error {
	if err := requireAdmin(requester); err != nil {
		return err
	}
	if err := node.Validate(); err != nil {
		return model.NewError(model.KindInvalidDemand, model.CodeInvalidDemand, err.Error())
	}

	// cluster ownership and cordon state belong to the inventory
	existing, err := s.nodes.Get(ctx, node.ID)
	switch {
	case err == nil:
		node.Cluster = existing.Cluster
		node.Cordoned = existing.Cordoned
	case errors.Is(err, repository.ErrNotFound):
		node.Cluster = ""
		node.Cordoned = false
	default:
		return fmt.Errorf("failed to get node %s: %w", node.ID, err)
	}

	if err := s.nodes.Save(ctx, node); err != nil {
		return fmt.Errorf("failed to save node %s: %w", node.ID, err)
	}

	s.logger.Info("node saved",
		slog.String("node_id", node.ID),
		slog.String("faculty", node.Faculty),
		slog.String("capacity", node.Capacity.String()),
		slog.String("by", requester.UserID),
	)
	return nil
}

// NodeCapacity reports the spare capacity of a node on a day
func (s *nodeService) NodeCapacity(ctx context.Context, nodeID string, date time.Time) (*NodeCapacity, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	spare, err := s.ledger.NodeSpareCapacity(ctx, *node, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read spare capacity of node %s: %w", nodeID, err)
	}

	return &NodeCapacity{
		NodeID:    node.ID,
		Date:      model.DayKey(date),
		Available: node.IsAvailableOn(date),
		Capacity:  node.Capacity,
		Spare:     spare,
	}, nil
}

// FacultyUsage returns what a faculty has committed on a day.
// Members of the faculty and admins may read it.
func (s *nodeService) FacultyUsage(ctx context.Context, requester model.Identity, faculty string, date time.Time) (model.Resources, error) {
	if !requester.Role.IsElevated() && !requester.MemberOf(faculty) {
		return model.Resources{}, model.NewError(model.KindUnauthorized, model.CodeForbidden,
			fmt.Sprintf("user %q is not a member of faculty %q", requester.UserID, faculty))
	}

	usage, err := s.ledger.FacultyUsage(ctx, faculty, date)
	if err != nil {
		return model.Resources{}, fmt.Errorf("failed to read usage of faculty %s: %w", faculty, err)
	}
	return usage, nil
}

// Seed registers the statically configured nodes
func (s *nodeService) Seed(ctx context.Context, seeds []config.NodeSeedConfig) error {
	for _, seed := range seeds {
		node, err := nodeFromSeed(seed)
		if err != nil {
			return fmt.Errorf("node %s: %w", seed.ID, err)
		}
		if err := node.Validate(); err != nil {
			return fmt.Errorf("node %s: %w", seed.ID, err)
		}
		if err := s.nodes.Save(ctx, node); err != nil {
			return fmt.Errorf("failed to save node %s: %w", seed.ID, err)
		}
	}

	s.logger.Info("seed nodes registered", slog.Int("count", len(seeds)))
	return nil
}

func nodeFromSeed(seed config.NodeSeedConfig) (*model.Node, error) {
	node := &model.Node{
		ID:       seed.ID,
		Name:     seed.Name,
		Faculty:  seed.Faculty,
		Capacity: model.Resources{CPU: seed.CPU, GPU: seed.GPU, Memory: seed.Memory},
	}

	var err error
	if node.ReleasedStart, err = optionalDay(seed.ReleasedStart); err != nil {
		return nil, fmt.Errorf("released_start: %w", err)
	}
	if node.ReleasedEnd, err = optionalDay(seed.ReleasedEnd); err != nil {
		return nil, fmt.Errorf("released_end: %w", err)
	}
	if node.RemovedDate, err = optionalDay(seed.RemovedDate); err != nil {
		return nil, fmt.Errorf("removed_date: %w", err)
	}
	return node, nil
}

func optionalDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	day, err := model.ParseDay(s)
	if err != nil {
		return nil, err
	}
	return &day, nil
}
