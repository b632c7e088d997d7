// Package registry tracks the scanners that feed findings into the
// platform. Each scanner instance self-registers in etcd under a lease and
// keeps it alive while running; the API service discovers and watches the
// entries to surface ingest-source health on the dashboard. Entries expire
// automatically when a scanner crashes or loses connectivity.
package registry

import (
	"context"
	"time"
)

// ScannerInfo describes a registered scanner instance. Multiple instances
// of the same scanner can run concurrently, each with its own InstanceID.
type ScannerInfo struct {
	// Name is the scanner name (e.g., "subfinder", "httpx", "trivy").
	Name string `json:"name"`

	// Version is the scanner's semantic version.
	Version string `json:"version"`

	// InstanceID uniquely identifies this running instance, typically a uuid.
	InstanceID string `json:"instance_id"`

	// Endpoint is where the instance's control API can be reached,
	// "host:port" or "unix:///path/to/socket".
	Endpoint string `json:"endpoint"`

	// AssetKinds lists the asset kinds this scanner produces findings for
	// (e.g., "domain", "website").
	AssetKinds []string `json:"asset_kinds,omitempty"`

	// Metadata holds scanner-specific attributes such as scan profiles or
	// rate limits.
	Metadata map[string]string `json:"metadata,omitempty"`

	// StartedAt is when this instance started.
	StartedAt time.Time `json:"started_at"`
}

// Registry is the scanner registration and discovery interface.
// Implementations must be safe for concurrent use. Stale entries are
// removed automatically when their lease expires.
type Registry interface {
	// Register adds the scanner instance and starts renewing its lease in
	// the background. Re-registering the same InstanceID updates the entry.
	Register(ctx context.Context, info ScannerInfo) error

	// Deregister removes the instance by revoking its lease. Unknown
	// instances are a no-op.
	Deregister(ctx context.Context, info ScannerInfo) error

	// Discover returns all running instances of the named scanner. The
	// result may be empty; order is arbitrary.
	Discover(ctx context.Context, name string) ([]ScannerInfo, error)

	// DiscoverAll returns every registered scanner instance, for the
	// dashboard's source-health view.
	DiscoverAll(ctx context.Context) ([]ScannerInfo, error)

	// Watch emits the current instance list for the named scanner whenever
	// it changes. The initial state is sent immediately. The channel closes
	// when ctx is canceled or the registry is closed.
	Watch(ctx context.Context, name string) (<-chan []ScannerInfo, error)

	// Close stops background goroutines and releases the connection. All
	// other methods error after Close.
	Close() error
}

// Config holds registry connection settings.
type Config struct {
	// Endpoints lists the etcd endpoints, e.g. ["etcd-1:2379", "etcd-2:2379"].
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// Namespace prefixes every key; entries live under
	// /{namespace}/scanners/{name}/{instance-id}. Default "surface".
	Namespace string `yaml:"namespace" json:"namespace"`

	// TTL is the lease time-to-live in seconds. An instance that fails to
	// renew within this window disappears from discovery. Default 30.
	TTL int `yaml:"ttl" json:"ttl"`

	// TLS enables mutual TLS towards etcd when set.
	TLS *TLSConfig `yaml:"tls" json:"tls"`
}

// TLSConfig holds certificate paths for mutual TLS towards etcd.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
	CAFile   string `yaml:"ca_file" json:"ca_file"`
}
