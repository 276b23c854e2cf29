package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/concurrent"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// candidate is a node with its spare capacity on a day
type candidate struct {
	node  *model.Node
	spare model.Resources
}

// filterAvailable drops nodes that are removed or withdrawn on date
func (s *Scheduler) filterAvailable(nodes []*model.Node, date time.Time) []*model.Node {
	available := make([]*model.Node, 0, len(nodes))
	for _, node := range nodes {
		if !node.IsAvailableOn(date) {
			s.logger.Debug("node filtered: unavailable",
				slog.String("node_id", node.ID),
				slog.String("date", model.DayKey(date)),
			)
			continue
		}
		available = append(available, node)
	}
	return available
}

// filterFitting queries spare capacity of every node in parallel and keeps
// the ones that fit the demand on all dimensions
func (s *Scheduler) filterFitting(ctx context.Context, nodes []*model.Node, demand model.Resources, date time.Time) ([]candidate, error) {
	results := concurrent.MapWithLimit(ctx, nodes, func(ctx context.Context, node *model.Node) (model.Resources, error) {
		return s.ledger.NodeSpareCapacity(ctx, *node, date)
	}, s.maxParallel)

	if err := concurrent.FirstError(results); err != nil {
		return nil, fmt.Errorf("failed to read spare capacity: %w", err)
	}

	fitting := make([]candidate, 0, len(nodes))
	for i, result := range results {
		node := nodes[i]
		if !demand.Fits(result.Value) {
			s.logger.Debug("node filtered: insufficient capacity",
				slog.String("node_id", node.ID),
				slog.String("spare", result.Value.String()),
				slog.String("demand", demand.String()),
			)
			continue
		}
		fitting = append(fitting, candidate{node: node, spare: result.Value})
	}
	return fitting, nil
}
