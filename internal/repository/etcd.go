package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kirychukyurii/faculty-scheduler/internal/config"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
	"github.com/kirychukyurii/faculty-scheduler/internal/util"
)

// NewEtcdClient creates an etcd client and checks that the cluster answers
func NewEtcdClient(cfg config.EtcdConfig, logger *slog.Logger) (*clientv3.Client, error) {
	etcdCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	}

	// Configure TLS if provided
	if cfg.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		etcdCfg.TLS = tlsConfig
	}

	client, err := clientv3.New(etcdCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	logger.Info("connected to etcd cluster", "endpoints", cfg.Endpoints)

	return client, nil
}

// etcdStore holds the JSON helpers shared by the etcd repositories
type etcdStore struct {
	client *clientv3.Client
	prefix string
	logger *slog.Logger
}

func (s *etcdStore) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if _, err := s.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s to etcd: %w", key, err)
	}
	return nil
}

func (s *etcdStore) get(ctx context.Context, key string, out any) error {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read %s from etcd: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err := json.Unmarshal(resp.Kvs[0].Value, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// list decodes every value under prefix with decode, skipping corrupt entries
func (s *etcdStore) list(ctx context.Context, prefix string, decode func([]byte) error) error {
	resp, err := s.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("failed to list %s from etcd: %w", prefix, err)
	}
	for _, kv := range resp.Kvs {
		if err := decode(kv.Value); err != nil {
			s.logger.Warn("skipping corrupt etcd entry",
				slog.String("key", string(kv.Key)),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// EtcdJobRepository stores jobs as JSON under /<prefix>/jobs/<id>
type EtcdJobRepository struct {
	store etcdStore
}

// NewEtcdJobRepository creates an etcd-backed job repository
func NewEtcdJobRepository(client *clientv3.Client, prefix string, logger *slog.Logger) *EtcdJobRepository {
	return &EtcdJobRepository{store: etcdStore{client: client, prefix: "/" + prefix + "/jobs/", logger: logger}}
}

func (r *EtcdJobRepository) Save(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	return r.store.put(ctx, r.store.prefix+job.ID, job)
}

func (r *EtcdJobRepository) FindByID(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := r.store.get(ctx, r.store.prefix+id, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *EtcdJobRepository) FindAllByUser(ctx context.Context, userID string) ([]*model.Job, error) {
	return r.filter(ctx, func(j *model.Job) bool { return j.Owner == userID })
}

func (r *EtcdJobRepository) FindAll(ctx context.Context) ([]*model.Job, error) {
	return r.filter(ctx, func(*model.Job) bool { return true })
}

func (r *EtcdJobRepository) DeleteByID(ctx context.Context, id string) error {
	resp, err := r.store.client.Delete(ctx, r.store.prefix+id)
	if err != nil {
		return fmt.Errorf("failed to delete job %s from etcd: %w", id, err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *EtcdJobRepository) filter(ctx context.Context, keep func(*model.Job) bool) ([]*model.Job, error) {
	jobs := make([]*model.Job, 0)
	err := r.store.list(ctx, r.store.prefix, func(data []byte) error {
		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if keep(&job) {
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortJobs(jobs)
	return jobs, nil
}

// EtcdNodeRepository stores nodes as JSON under /<prefix>/nodes/<id>
type EtcdNodeRepository struct {
	store etcdStore
}

// NewEtcdNodeRepository creates an etcd-backed node repository
func NewEtcdNodeRepository(client *clientv3.Client, prefix string, logger *slog.Logger) *EtcdNodeRepository {
	return &EtcdNodeRepository{store: etcdStore{client: client, prefix: "/" + prefix + "/nodes/", logger: logger}}
}

func (r *EtcdNodeRepository) Save(ctx context.Context, node *model.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	return r.store.put(ctx, r.store.prefix+node.ID, node)
}

func (r *EtcdNodeRepository) Get(ctx context.Context, id string) (*model.Node, error) {
	var node model.Node
	if err := r.store.get(ctx, r.store.prefix+id, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *EtcdNodeRepository) List(ctx context.Context) ([]*model.Node, error) {
	return r.filter(ctx, func(*model.Node) bool { return true })
}

func (r *EtcdNodeRepository) ListByFaculty(ctx context.Context, faculty string) ([]*model.Node, error) {
	return r.filter(ctx, func(n *model.Node) bool { return n.Faculty == faculty })
}

func (r *EtcdNodeRepository) filter(ctx context.Context, keep func(*model.Node) bool) ([]*model.Node, error) {
	nodes := make([]*model.Node, 0)
	err := r.store.list(ctx, r.store.prefix, func(data []byte) error {
		var node model.Node
		if err := json.Unmarshal(data, &node); err != nil {
			return err
		}
		if keep(&node) {
			nodes = append(nodes, &node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNodes(nodes)
	return nodes, nil
}

var (
	_ JobRepository  = (*EtcdJobRepository)(nil)
	_ NodeRepository = (*EtcdNodeRepository)(nil)
)
