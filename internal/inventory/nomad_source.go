// Package inventory keeps the node repository in line with the nodes the
// faculties' Nomad clusters report.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	nomad "github.com/hashicorp/nomad/api"

	"github.com/kirychukyurii/faculty-scheduler/internal/config"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
	"github.com/kirychukyurii/faculty-scheduler/internal/util"
)

// Node meta keys read from Nomad
const (
	MetaFaculty       = "faculty"
	MetaReleasedStart = "released_start"
	MetaReleasedEnd   = "released_end"
	MetaRemovedDate   = "removed_date"
)

// Source lists the nodes currently present in one cluster
type Source interface {
	Name() string
	Nodes(ctx context.Context) ([]*model.Node, error)
}

// NomadSource reads nodes from a Nomad cluster
type NomadSource struct {
	name    string
	faculty string
	client  *nomad.Client
	logger  *slog.Logger
}

// NewNomadSources creates a source for each configured cluster
func NewNomadSources(clusters []config.ClusterConfig, logger *slog.Logger) ([]*NomadSource, error) {
	sources := make([]*NomadSource, 0, len(clusters))
	for i, cluster := range clusters {
		client, err := createNomadClient(cluster)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for cluster at index %d: %w", i, err)
		}

		name := cluster.Name
		if name == "" {
			name = fmt.Sprintf("cluster-%d", i)
		}

		logger.Info("initialized cluster",
			slog.String("name", name),
			slog.String("faculty", cluster.Faculty),
			slog.String("region", cluster.Region),
			slog.String("address", cluster.Address),
		)

		sources = append(sources, &NomadSource{
			name:    name,
			faculty: cluster.Faculty,
			client:  client,
			logger:  logger,
		})
	}
	return sources, nil
}

// createNomadClient creates a Nomad API client for a cluster
func createNomadClient(cluster config.ClusterConfig) (*nomad.Client, error) {
	nomadConfig := nomad.DefaultConfig()
	nomadConfig.Address = cluster.Address

	// Set region if specified (used for API calls)
	if cluster.Region != "" {
		nomadConfig.Region = cluster.Region
	}

	httpClient, err := util.NewHTTPClient(30*time.Second, cluster.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS config: %w", err)
	}
	nomadConfig.HttpClient = httpClient

	client, err := nomad.NewClient(nomadConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nomad client: %w", err)
	}
	return client, nil
}

// Name returns the cluster name
func (s *NomadSource) Name() string {
	return s.name
}

// Nodes lists the cluster's nodes with their resources and meta
func (s *NomadSource) Nodes(ctx context.Context) ([]*model.Node, error) {
	stubs, _, err := s.client.Nodes().List((&nomad.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of cluster %s: %w", s.name, err)
	}

	nodes := make([]*model.Node, 0, len(stubs))
	for _, stub := range stubs {
		info, _, err := s.client.Nodes().Info(stub.ID, (&nomad.QueryOptions{}).WithContext(ctx))
		if err != nil {
			// a node that cannot be read now is retried on the next sync
			return nil, fmt.Errorf("failed to get node %s of cluster %s: %w", stub.ID, s.name, err)
		}

		node, err := nodeFromNomad(info, s.faculty)
		if err != nil {
			s.logger.Warn("skipping node",
				slog.String("cluster", s.name),
				slog.String("node_id", stub.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

// nodeFromNomad maps a Nomad node onto a schedulable node.
// A node Nomad will not place work on is cordoned.
func nodeFromNomad(n *nomad.Node, defaultFaculty string) (*model.Node, error) {
	faculty := n.Meta[MetaFaculty]
	if faculty == "" {
		faculty = defaultFaculty
	}

	node := &model.Node{
		ID:       n.ID,
		Name:     n.Name,
		Faculty:  faculty,
		Capacity: capacityOf(n.NodeResources),
	}

	var err error
	if node.ReleasedStart, err = metaDay(n.Meta, MetaReleasedStart); err != nil {
		return nil, err
	}
	if node.ReleasedEnd, err = metaDay(n.Meta, MetaReleasedEnd); err != nil {
		return nil, err
	}
	if node.RemovedDate, err = metaDay(n.Meta, MetaRemovedDate); err != nil {
		return nil, err
	}

	node.Cordoned = !schedulable(n)

	if err := node.Validate(); err != nil {
		return nil, err
	}
	return node, nil
}

// capacityOf converts Nomad resources: cores, memory in GiB, GPU instances
func capacityOf(res *nomad.NodeResources) model.Resources {
	if res == nil {
		return model.Resources{}
	}

	capacity := model.Resources{
		CPU:    int(res.Cpu.TotalCpuCores),
		Memory: int(res.Memory.MemoryMB / 1024),
	}
	for _, device := range res.Devices {
		if device != nil && device.Type == "gpu" {
			capacity.GPU += len(device.Instances)
		}
	}
	return capacity
}

func schedulable(n *nomad.Node) bool {
	return n.Status == nomad.NodeStatusReady && !n.Drain && n.SchedulingEligibility == nomad.NodeSchedulingEligible
}

func metaDay(meta map[string]string, key string) (*time.Time, error) {
	raw, ok := meta[key]
	if !ok || raw == "" {
		return nil, nil
	}
	day, err := model.ParseDay(raw)
	if err != nil {
		return nil, fmt.Errorf("meta %s: %w", key, err)
	}
	return &day, nil
}

var _ Source = (*NomadSource)(nil)
