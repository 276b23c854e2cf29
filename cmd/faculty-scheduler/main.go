package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kirychukyurii/faculty-scheduler/internal/api"
	"github.com/kirychukyurii/faculty-scheduler/internal/cache"
	"github.com/kirychukyurii/faculty-scheduler/internal/chain"
	"github.com/kirychukyurii/faculty-scheduler/internal/config"
	"github.com/kirychukyurii/faculty-scheduler/internal/directory"
	"github.com/kirychukyurii/faculty-scheduler/internal/inventory"
	"github.com/kirychukyurii/faculty-scheduler/internal/ledger"
	"github.com/kirychukyurii/faculty-scheduler/internal/logger"
	"github.com/kirychukyurii/faculty-scheduler/internal/repository"
	"github.com/kirychukyurii/faculty-scheduler/internal/scheduler"
	"github.com/kirychukyurii/faculty-scheduler/internal/service"
	"github.com/kirychukyurii/faculty-scheduler/internal/util"
	"github.com/kirychukyurii/faculty-scheduler/pkg/httpserver"
)

// storage bundles the repositories and ledger of one backend
type storage struct {
	jobs   repository.JobRepository
	nodes  repository.NodeRepository
	ledger ledger.Ledger
	close  func()
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Initialize logger
	log := logger.New()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration",
			"error", err.Error(),
		)
		os.Exit(1)
	}

	if cfg.Log.Level != "" {
		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			log.Error("invalid log level", "error", err.Error())
			os.Exit(1)
		}
		log = logger.NewWithLevel(level)
	}

	log.Info("configuration loaded",
		"storage", cfg.Storage.Backend,
		"validators", cfg.Admission.Validators,
		"clusters", len(cfg.Inventory.Clusters),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStorage(cfg, log)
	if err != nil {
		log.Error("failed to initialize storage",
			"error", err.Error(),
		)
		os.Exit(1)
	}
	defer store.close()

	// External collaborators, cached
	dirHTTP, err := util.NewHTTPClient(cfg.Directory.Timeout, cfg.Directory.TLS)
	if err != nil {
		log.Error("failed to create directory client", "error", err.Error())
		os.Exit(1)
	}
	quotaHTTP, err := util.NewHTTPClient(cfg.Quota.Timeout, cfg.Quota.TLS)
	if err != nil {
		log.Error("failed to create quota client", "error", err.Error())
		os.Exit(1)
	}

	lookups := directory.NewCached(
		directory.NewHTTPClient(cfg.Directory.Address, "", dirHTTP, log),
		directory.NewHTTPClient("", cfg.Quota.Address, quotaHTTP, log),
		cache.New(cfg.Cache.TTL),
		cfg.Cache.TTL,
		log,
	)

	admission, err := chain.Build(cfg.Admission.Validators, chain.Dependencies{
		Directory: lookups,
		Quota:     lookups,
		Ledger:    store.ledger,
	}, log)
	if err != nil {
		log.Error("failed to build validation chain", "error", err.Error())
		os.Exit(1)
	}

	log.Info("validation chain built", "validators", admission.Names())

	// Services
	sched := scheduler.New(store.nodes, store.ledger, cfg.Scheduler, log)
	jobService := service.NewAdmissionService(store.jobs, admission, sched, cfg.Admission.Timeout, log)
	nodeService := service.NewNodeService(store.nodes, store.ledger, log)

	if err := nodeService.Seed(ctx, cfg.Nodes); err != nil {
		log.Error("failed to register seed nodes", "error", err.Error())
		os.Exit(1)
	}

	// Node inventory from Nomad
	var syncer *inventory.Syncer
	if cfg.Inventory.Enabled {
		nomadSources, err := inventory.NewNomadSources(cfg.Inventory.Clusters, log)
		if err != nil {
			log.Error("failed to create nomad clients", "error", err.Error())
			os.Exit(1)
		}

		sources := make([]inventory.Source, len(nomadSources))
		for i, source := range nomadSources {
			sources[i] = source
		}

		syncer = inventory.NewSyncer(sources, store.nodes, cfg.Inventory.Interval, log)
		syncer.Start(ctx)
	}

	// Create HTTP handler
	handler := api.NewHandler(jobService, nodeService, api.Status{
		Storage:    cfg.Storage.Backend,
		Validators: admission.Names(),
		Inventory:  cfg.Inventory.Enabled,
	}, cfg.Server.BasePath, log)

	srv := httpserver.New(
		cfg.Server.Addr,
		handler.Router(),
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		log,
	)

	log.Info("starting faculty-scheduler service")

	if err := srv.Run(ctx); err != nil {
		log.Error("server error",
			"error", err.Error(),
		)
	}

	if syncer != nil {
		log.Info("shutting down inventory syncer")
		syncer.Stop()
	}

	log.Info("shutdown complete")
}

// newStorage creates the repositories and ledger of the configured backend
func newStorage(cfg *config.Config, log *slog.Logger) (*storage, error) {
	if cfg.Storage.Backend != config.BackendEtcd {
		return &storage{
			jobs:   repository.NewMemoryJobRepository(),
			nodes:  repository.NewMemoryNodeRepository(),
			ledger: ledger.NewMemoryLedger(),
			close:  func() {},
		}, nil
	}

	client, err := repository.NewEtcdClient(cfg.Etcd, log)
	if err != nil {
		return nil, err
	}

	return &storage{
		jobs:   repository.NewEtcdJobRepository(client, cfg.Etcd.Prefix, log),
		nodes:  repository.NewEtcdNodeRepository(client, cfg.Etcd.Prefix, log),
		ledger: ledger.NewEtcdLedger(client, cfg.Etcd.Prefix, log),
		close:  func() { closeEtcd(client, log) },
	}, nil
}

func closeEtcd(client *clientv3.Client, log *slog.Logger) {
	if err := client.Close(); err != nil {
		log.Warn("failed to close etcd client", "error", err.Error())
	}
}
