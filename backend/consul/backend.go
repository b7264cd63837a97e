// Package consul provides a backend on top of the HashiCorp Consul KV store.
package consul

import (
	"context"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
)

// MaxValueSize is the default Consul limit for a single KV value.
const MaxValueSize = 512 * 1024

// ConsulBackend stores the tree in Consul KV.
//
// Architecture:
// - Files are stored directly in Consul KV with their path as the key
// - Directories are keys ending with "/" holding no value
// - Permissions are kept in the KV flags
//
// Limitations:
// - Consul KV has a 512KB limit per value
// - Best suited for configuration files, small assets, and metadata storage
type ConsulBackend struct {
	guard  *backend.Guard
	client *api.Client
	kv     *api.KV

	// Configuration
	config *ConsulBackendConfig
}

// ConsulBackendConfig contains configuration options for the Consul backend
type ConsulBackendConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// Namespace for Consul Enterprise (optional)
	Namespace string

	// Prefix for all keys in Consul KV (default: "/")
	// This allows rooting the backend at a specific path
	Prefix string
}

// NewConsulBackend creates a new Consul-backed backend
func NewConsulBackend(config *ConsulBackendConfig) (*ConsulBackend, error) {
	if config == nil {
		config = &ConsulBackendConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}

	if config.Prefix == "" {
		config.Prefix = "/"
	}

	// Create Consul client
	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}
	if config.Namespace != "" {
		clientConfig.Namespace = config.Namespace
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulBackend{
		guard:  backend.NewGuard(),
		client: client,
		kv:     client.KV(),
		config: config,
	}, nil
}

// Name returns the identifier name defined for this backend
func (*ConsulBackend) Name() string {
	return "consul"
}

// Open verifies that the agent is reachable.
func (cb *ConsulBackend) Open(ctx context.Context) error {
	if _, err := cb.client.Status().Leader(); err != nil {
		return data.NewError(data.ErrOperationFailed, "open", cb.config.Address, err)
	}
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend
func (cb *ConsulBackend) Close(ctx context.Context) error {
	// Nothing to clean up - Consul client is stateless
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend
func (cb *ConsulBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityAppend,
		},
		MaxObjectSize: MaxValueSize,
	}
}

// fileKey constructs the Consul KV key of a file.
func (cb *ConsulBackend) fileKey(p data.Path) string {
	// Handle "/" prefix specially - it means no prefix, just use the key
	prefix := strings.Trim(cb.config.Prefix, "/")
	if prefix == "" {
		return p.Key()
	}
	if p.IsRoot() {
		return prefix
	}
	return prefix + "/" + p.Key()
}

// dirKey constructs the Consul KV key of a directory, which is also the
// prefix of everything stored below it.
func (cb *ConsulBackend) dirKey(p data.Path) string {
	key := cb.fileKey(p)
	if key == "" {
		return ""
	}
	return key + "/"
}

func (cb *ConsulBackend) queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func (cb *ConsulBackend) writeOptions(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}
