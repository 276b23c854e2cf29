package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendEtcd   = "etcd"
)

// Remote validator names accepted in admission.validators
const (
	ValidatorFaculty  = "faculty"
	ValidatorResource = "resource"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Log       LogConfig        `koanf:"log"`
	Storage   StorageConfig    `koanf:"storage"`
	Etcd      EtcdConfig       `koanf:"etcd"`
	Cache     CacheConfig      `koanf:"cache"`
	Directory EndpointConfig   `koanf:"directory"`
	Quota     EndpointConfig   `koanf:"quota"`
	Admission AdmissionConfig  `koanf:"admission"`
	Scheduler SchedulerConfig  `koanf:"scheduler"`
	Inventory InventoryConfig  `koanf:"inventory"`
	Nodes     []NodeSeedConfig `koanf:"nodes"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	BasePath     string        `koanf:"base_path"` // Optional base path for reverse proxy (e.g., "/scheduler")
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level string `koanf:"level"`
}

// StorageConfig selects where jobs, nodes and the ledger live
type StorageConfig struct {
	Backend string `koanf:"backend"` // memory | etcd
}

// EtcdConfig represents etcd client configuration
type EtcdConfig struct {
	Endpoints   []string      `koanf:"endpoints"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	Prefix      string        `koanf:"prefix"`
	TLS         *TLSConfig    `koanf:"tls"`
}

// CacheConfig represents cache configuration for directory and quota lookups
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// EndpointConfig represents an external HTTP collaborator
type EndpointConfig struct {
	Address string        `koanf:"address"`
	Timeout time.Duration `koanf:"timeout"`
	TLS     *TLSConfig    `koanf:"tls"`
}

// AdmissionConfig controls the validation chain
type AdmissionConfig struct {
	// Timeout bounds a whole chain evaluation
	Timeout time.Duration `koanf:"timeout"`
	// Validators orders the remote validators; local checks always run first
	Validators []string `koanf:"validators"`
}

// SchedulerConfig controls node selection
type SchedulerConfig struct {
	LookaheadDays int `koanf:"lookahead_days"`
	MaxParallel   int `koanf:"max_parallel"`
}

// InventoryConfig represents Nomad node inventory synchronisation
type InventoryConfig struct {
	Enabled  bool            `koanf:"enabled"`
	Interval time.Duration   `koanf:"interval"`
	Clusters []ClusterConfig `koanf:"clusters"`
}

// ClusterConfig represents a single Nomad cluster owned by a faculty
type ClusterConfig struct {
	Name    string     `koanf:"name"`
	Region  string     `koanf:"region"`
	Address string     `koanf:"address"`
	Faculty string     `koanf:"faculty"` // default owner of nodes without faculty meta
	TLS     *TLSConfig `koanf:"tls"`
}

// NodeSeedConfig is a node registered administratively at startup
type NodeSeedConfig struct {
	ID            string `koanf:"id"`
	Name          string `koanf:"name"`
	Faculty       string `koanf:"faculty"`
	CPU           int    `koanf:"cpu"`
	GPU           int    `koanf:"gpu"`
	Memory        int    `koanf:"memory"`
	ReleasedStart string `koanf:"released_start"`
	ReleasedEnd   string `koanf:"released_end"`
	RemovedDate   string `koanf:"removed_date"`
}

// TLSConfig represents TLS configuration for outgoing clients
type TLSConfig struct {
	CA   string `koanf:"ca"`
	Cert string `koanf:"cert"`
	Key  string `koanf:"key"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML config
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Etcd.DialTimeout == 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.Etcd.Prefix == "" {
		c.Etcd.Prefix = "faculty-scheduler"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * time.Second
	}
	if c.Directory.Timeout == 0 {
		c.Directory.Timeout = 5 * time.Second
	}
	if c.Quota.Timeout == 0 {
		c.Quota.Timeout = 5 * time.Second
	}
	if c.Admission.Timeout == 0 {
		c.Admission.Timeout = 10 * time.Second
	}
	if len(c.Admission.Validators) == 0 {
		c.Admission.Validators = []string{ValidatorFaculty, ValidatorResource}
	}
	if c.Scheduler.MaxParallel == 0 {
		c.Scheduler.MaxParallel = 8
	}
	if c.Inventory.Interval == 0 {
		c.Inventory.Interval = time.Minute
	}
}

// Validate validates the configuration and reports every problem found
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("server.addr is required"))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendEtcd:
		if len(c.Etcd.Endpoints) == 0 {
			result = multierror.Append(result, fmt.Errorf("etcd.endpoints is required for the etcd backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend))
	}

	seen := make(map[string]bool)
	for i, name := range c.Admission.Validators {
		switch name {
		case ValidatorFaculty:
			if c.Directory.Address == "" {
				result = multierror.Append(result, fmt.Errorf("directory.address is required by the faculty validator"))
			}
		case ValidatorResource:
			if c.Quota.Address == "" {
				result = multierror.Append(result, fmt.Errorf("quota.address is required by the resource validator"))
			}
		default:
			result = multierror.Append(result, fmt.Errorf("admission.validators[%d]: unknown validator %q", i, name))
		}
		if seen[name] {
			result = multierror.Append(result, fmt.Errorf("admission.validators[%d]: duplicate validator %q", i, name))
		}
		seen[name] = true
	}

	if c.Admission.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("admission.timeout must be positive"))
	}
	if c.Scheduler.LookaheadDays < 0 {
		result = multierror.Append(result, fmt.Errorf("scheduler.lookahead_days must not be negative"))
	}

	if c.Inventory.Enabled {
		if c.Inventory.Interval <= 0 {
			result = multierror.Append(result, fmt.Errorf("inventory.interval must be positive when inventory is enabled"))
		}
		if len(c.Inventory.Clusters) == 0 {
			result = multierror.Append(result, fmt.Errorf("at least one cluster must be configured when inventory is enabled"))
		}
		for i, cluster := range c.Inventory.Clusters {
			if cluster.Address == "" {
				result = multierror.Append(result, fmt.Errorf("inventory.clusters[%d].address is required", i))
			}
		}
	}

	for i, node := range c.Nodes {
		if node.ID == "" || node.Faculty == "" {
			result = multierror.Append(result, fmt.Errorf("nodes[%d]: id and faculty are required", i))
		}
		if node.CPU < 0 || node.GPU < 0 || node.Memory < 0 {
			result = multierror.Append(result, fmt.Errorf("nodes[%d]: capacity must not be negative", i))
		}
	}

	return result.ErrorOrNil()
}
