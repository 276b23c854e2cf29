package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kirychukyurii/faculty-scheduler/internal/concurrent"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
	"github.com/kirychukyurii/faculty-scheduler/internal/repository"
)

// Syncer periodically copies cluster nodes into the node repository
type Syncer struct {
	sources  []Source
	nodes    repository.NodeRepository
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu sync.Mutex
}

// NewSyncer creates a new inventory syncer
func NewSyncer(sources []Source, nodes repository.NodeRepository, interval time.Duration, logger *slog.Logger) *Syncer {
	return &Syncer{
		sources:  sources,
		nodes:    nodes,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one sync and then keeps syncing in a background goroutine
func (s *Syncer) Start(ctx context.Context) {
	s.logger.Info("starting inventory syncer",
		slog.Duration("interval", s.interval),
		slog.Int("clusters", len(s.sources)),
	)

	if err := s.Sync(ctx); err != nil {
		s.logger.Error("initial inventory sync failed",
			slog.String("error", err.Error()),
		)
	}

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the syncer
func (s *Syncer) Stop() {
	s.logger.Info("stopping inventory syncer")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("inventory syncer stopped")
}

// run is the main sync loop
func (s *Syncer) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				s.logger.Error("inventory sync failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Sync reads every cluster in parallel and applies what they report.
// A cluster that fails to answer is left untouched.
func (s *Syncer) Sync(ctx context.Context) error {
	results := concurrent.MapWithLimit(ctx, s.sources, func(ctx context.Context, source Source) ([]*model.Node, error) {
		return source.Nodes(ctx)
	}, len(s.sources))

	var result *multierror.Error
	for i, r := range results {
		source := s.sources[i]
		if r.Error != nil {
			result = multierror.Append(result, fmt.Errorf("cluster %s: %w", source.Name(), r.Error))
			continue
		}
		if err := s.apply(ctx, source.Name(), r.Value); err != nil {
			result = multierror.Append(result, fmt.Errorf("cluster %s: %w", source.Name(), err))
		}
	}
	return result.ErrorOrNil()
}

// apply merges the reported nodes into the repository and marks stored
// nodes of the cluster that it no longer reports as removed from today.
// Stored nodes are the reference so that disappearances while the service
// was down are caught.
func (s *Syncer) apply(ctx context.Context, source string, reported []*model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.nodes.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored nodes: %w", err)
	}
	stored := make(map[string]*model.Node, len(all))
	for _, node := range all {
		stored[node.ID] = node
	}

	seen := make(map[string]bool, len(reported))
	for _, node := range reported {
		node.Cluster = source
		if existing, ok := stored[node.ID]; ok {
			node = existing.Merge(node)
		}
		if err := s.nodes.Save(ctx, node); err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
		seen[node.ID] = true
	}

	today := model.Day(s.now())
	removed := 0
	for _, node := range all {
		if node.Cluster != source || seen[node.ID] {
			continue
		}
		if node.RemovedDate != nil && !node.RemovedDate.After(today) {
			continue
		}
		if err := s.markRemoved(ctx, node, today); err != nil {
			return err
		}
		removed++
	}

	s.logger.Info("inventory synced",
		slog.String("cluster", source),
		slog.Int("nodes", len(reported)),
		slog.Int("removed", removed),
	)
	return nil
}

func (s *Syncer) markRemoved(ctx context.Context, node *model.Node, today time.Time) error {
	node.RemovedDate = &today
	if err := s.nodes.Save(ctx, node); err != nil {
		return fmt.Errorf("failed to mark node %s removed: %w", node.ID, err)
	}

	s.logger.Info("node disappeared from cluster, marked removed",
		slog.String("node_id", node.ID),
		slog.String("cluster", node.Cluster),
		slog.String("removed_date", model.DayKey(today)),
	)
	return nil
}
