package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// EtcdLedger stores usage in etcd so that every service replica shares it.
// Commits run as serializable software transactions, so two replicas racing
// on the same node or faculty key cannot both pass the capacity check.
type EtcdLedger struct {
	client *clientv3.Client
	prefix string
	logger *slog.Logger
}

// NewEtcdLedger creates a ledger under /<prefix>/ledger/
func NewEtcdLedger(client *clientv3.Client, prefix string, logger *slog.Logger) *EtcdLedger {
	return &EtcdLedger{
		client: client,
		prefix: "/" + prefix + "/ledger/",
		logger: logger,
	}
}

func (l *EtcdLedger) key(kind, id string, date time.Time) string {
	return l.prefix + kind + "/" + id + "/" + model.DayKey(date)
}

// FacultyUsage returns the sum of all commitments of the faculty on date
func (l *EtcdLedger) FacultyUsage(ctx context.Context, faculty string, date time.Time) (model.Resources, error) {
	return l.read(ctx, l.key("faculty", faculty, date))
}

// NodeSpareCapacity returns the capacity left on the node on date
func (l *EtcdLedger) NodeSpareCapacity(ctx context.Context, node model.Node, date time.Time) (model.Resources, error) {
	if !node.IsAvailableOn(date) {
		return model.Resources{}, nil
	}
	used, err := l.read(ctx, l.key("node", node.ID, date))
	if err != nil {
		return model.Resources{}, err
	}
	return spare(node, date, used), nil
}

// Commit atomically adds the demand to the node and faculty usage
func (l *EtcdLedger) Commit(ctx context.Context, c Commitment) error {
	if err := c.validate(); err != nil {
		return err
	}
	err := l.apply(ctx, c, checkCommit)
	if err == nil {
		l.logger.Debug("committed usage to etcd",
			slog.String("node", c.Node.ID),
			slog.String("faculty", c.Node.Faculty),
			slog.String("date", model.DayKey(c.Date)),
		)
	}
	return err
}

// Release subtracts a previously committed demand
func (l *EtcdLedger) Release(ctx context.Context, c Commitment) error {
	if err := c.validate(); err != nil {
		return err
	}
	return l.apply(ctx, c, checkRelease)
}

type updateFunc func(c Commitment, nodeUsed, facultyUsed model.Resources) (model.Resources, model.Resources, error)

func (l *EtcdLedger) apply(ctx context.Context, c Commitment, update updateFunc) error {
	nk := l.key("node", c.Node.ID, c.Date)
	fk := l.key("faculty", c.Node.Faculty, c.Date)

	_, err := concurrency.NewSTM(l.client, func(stm concurrency.STM) error {
		nodeUsed, err := decodeUsage(stm.Get(nk))
		if err != nil {
			return err
		}
		facultyUsed, err := decodeUsage(stm.Get(fk))
		if err != nil {
			return err
		}

		newNode, newFaculty, err := update(c, nodeUsed, facultyUsed)
		if err != nil {
			return err
		}

		nodeVal, err := json.Marshal(newNode)
		if err != nil {
			return fmt.Errorf("failed to marshal node usage: %w", err)
		}
		facultyVal, err := json.Marshal(newFaculty)
		if err != nil {
			return fmt.Errorf("failed to marshal faculty usage: %w", err)
		}
		stm.Put(nk, string(nodeVal))
		stm.Put(fk, string(facultyVal))
		return nil
	}, concurrency.WithAbortContext(ctx), concurrency.WithIsolation(concurrency.SerializableSnapshot))

	return err
}

func (l *EtcdLedger) read(ctx context.Context, key string) (model.Resources, error) {
	resp, err := l.client.Get(ctx, key)
	if err != nil {
		return model.Resources{}, fmt.Errorf("failed to read ledger key %s from etcd: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return model.Resources{}, nil
	}
	return decodeUsage(string(resp.Kvs[0].Value))
}

// decodeUsage treats a missing key as zero usage
func decodeUsage(value string) (model.Resources, error) {
	var used model.Resources
	if value == "" {
		return used, nil
	}
	if err := json.Unmarshal([]byte(value), &used); err != nil {
		return used, fmt.Errorf("failed to unmarshal ledger usage: %w", err)
	}
	return used, nil
}

// compile-time check that EtcdLedger implements Ledger
var _ Ledger = (*EtcdLedger)(nil)
