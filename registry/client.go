package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	surface "github.com/surfacehq/surface"
)

const (
	defaultNamespace = "surface"
	defaultTTL       = 30

	// EndpointsEnv is the comma-separated etcd endpoint list scanners use
	// to bootstrap registration.
	EndpointsEnv = "SURFACE_REGISTRY_ENDPOINTS"
)

// Client implements Registry over an etcd cluster. Leases are renewed
// every TTL/3 by a background goroutine per registered instance. All
// methods are safe for concurrent use.
type Client struct {
	client    *clientv3.Client
	namespace string
	ttl       int
	logger    *slog.Logger

	mu         sync.RWMutex
	leases     map[string]clientv3.LeaseID // instance ID -> lease
	cancelFns  map[string]context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	closedChan chan struct{}
}

// NewClient connects to etcd and verifies reachability. Close the client
// when done to stop keepalive goroutines.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, surface.NewConfigurationError("registry.NewClient",
			fmt.Errorf("registry endpoints cannot be empty"))
	}
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, surface.NewConfigurationError("registry.NewClient", err)
		}
		clientCfg.TLS = tlsConfig
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, surface.NewNetworkError("registry.NewClient", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, surface.NewNetworkError("registry.NewClient",
			fmt.Errorf("etcd health check failed: %w", err))
	}

	return &Client{
		client:     cli,
		namespace:  cfg.Namespace,
		ttl:        cfg.TTL,
		logger:     logger.With("component", "registry"),
		leases:     make(map[string]clientv3.LeaseID),
		cancelFns:  make(map[string]context.CancelFunc),
		closedChan: make(chan struct{}),
	}, nil
}

// NewClientFromEnv creates a client from SURFACE_REGISTRY_ENDPOINTS. When
// the variable is unset it returns (nil, nil): the scanner runs fine, it
// just isn't discoverable.
func NewClientFromEnv(logger *slog.Logger) (*Client, error) {
	endpoints := os.Getenv(EndpointsEnv)
	if endpoints == "" {
		return nil, nil
	}

	list := strings.Split(endpoints, ",")
	for i, ep := range list {
		list[i] = strings.TrimSpace(ep)
	}
	return NewClient(Config{Endpoints: list}, logger)
}

// Register adds the scanner instance under a fresh lease and starts the
// keepalive goroutine. Re-registering the same InstanceID replaces the
// entry and restarts its keepalive.
func (c *Client) Register(ctx context.Context, info ScannerInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}

	if cancelFn, exists := c.cancelFns[info.InstanceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.InstanceID)
	}

	leaseResp, err := c.client.Grant(ctx, int64(c.ttl))
	if err != nil {
		return surface.NewNetworkError("registry.Register",
			fmt.Errorf("failed to create lease: %w", err))
	}

	data, err := json.Marshal(info)
	if err != nil {
		return surface.NewInternalError("registry.Register", err)
	}

	key := c.buildKey(info.Name, info.InstanceID)
	if _, err := c.client.Put(ctx, key, string(data), clientv3.WithLease(leaseResp.ID)); err != nil {
		return surface.NewNetworkError("registry.Register", err)
	}
	c.leases[info.InstanceID] = leaseResp.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	c.cancelFns[info.InstanceID] = cancel
	c.wg.Add(1)
	go c.keepalive(keepaliveCtx, leaseResp.ID, info.InstanceID)

	c.logger.Info("scanner registered",
		"scanner", info.Name, "instance", info.InstanceID, "endpoint", info.Endpoint)
	return nil
}

// Deregister revokes the instance's lease, removing the entry immediately.
// Unknown instances are a no-op.
func (c *Client) Deregister(ctx context.Context, info ScannerInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}

	if cancelFn, exists := c.cancelFns[info.InstanceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.InstanceID)
	}

	leaseID, exists := c.leases[info.InstanceID]
	if !exists {
		return nil
	}
	if _, err := c.client.Revoke(ctx, leaseID); err != nil {
		return surface.NewNetworkError("registry.Deregister", err)
	}
	delete(c.leases, info.InstanceID)

	c.logger.Info("scanner deregistered", "scanner", info.Name, "instance", info.InstanceID)
	return nil
}

// Discover returns all running instances of the named scanner.
func (c *Client) Discover(ctx context.Context, name string) ([]ScannerInfo, error) {
	return c.discoverPrefix(ctx, fmt.Sprintf("/%s/scanners/%s/", c.namespace, name))
}

// DiscoverAll returns every registered scanner instance.
func (c *Client) DiscoverAll(ctx context.Context) ([]ScannerInfo, error) {
	return c.discoverPrefix(ctx, fmt.Sprintf("/%s/scanners/", c.namespace))
}

func (c *Client) discoverPrefix(ctx context.Context, prefix string) ([]ScannerInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("registry client is closed")
	}

	resp, err := c.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, surface.NewNetworkError("registry.Discover", err)
	}

	instances := make([]ScannerInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var info ScannerInfo
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			// Skip entries written by incompatible versions.
			c.logger.Warn("skipping malformed registry entry", "key", string(kv.Key))
			continue
		}
		instances = append(instances, info)
	}
	return instances, nil
}

// Watch emits the current instance list for the named scanner on every
// change. The initial state is sent immediately; the channel closes when
// ctx is canceled or the client is closed.
func (c *Client) Watch(ctx context.Context, name string) (<-chan []ScannerInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("registry client is closed")
	}

	ch := make(chan []ScannerInfo, 1)

	prefix := fmt.Sprintf("/%s/scanners/%s/", c.namespace, name)
	instances, err := c.discoverLocked(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ch <- instances

	watchChan := c.client.Watch(ctx, prefix, clientv3.WithPrefix())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closedChan:
				return
			case watchResp, ok := <-watchChan:
				if !ok || watchResp.Err() != nil {
					return
				}

				// Re-read the full state; individual events don't carry
				// enough to maintain the list incrementally across lease
				// expirations.
				instances, err := c.discoverPrefix(context.Background(), prefix)
				if err != nil {
					continue
				}

				select {
				case ch <- instances:
				case <-ctx.Done():
					return
				case <-c.closedChan:
					return
				}
			}
		}
	}()

	return ch, nil
}

// discoverLocked is discoverPrefix for callers already holding c.mu.
func (c *Client) discoverLocked(ctx context.Context, prefix string) ([]ScannerInfo, error) {
	resp, err := c.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, surface.NewNetworkError("registry.Watch", err)
	}
	instances := make([]ScannerInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var info ScannerInfo
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			continue
		}
		instances = append(instances, info)
	}
	return instances, nil
}

// Close stops keepalive goroutines and closes the etcd connection. After
// Close all other methods return errors.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	for _, cancel := range c.cancelFns {
		cancel()
	}
	c.cancelFns = make(map[string]context.CancelFunc)

	close(c.closedChan)
	c.mu.Unlock()

	c.wg.Wait()
	return c.client.Close()
}

// keepalive renews the lease every TTL/3. It stops when the context is
// canceled, the client closes, or the lease becomes invalid.
func (c *Client) keepalive(ctx context.Context, leaseID clientv3.LeaseID, instanceID string) {
	defer c.wg.Done()

	interval := time.Duration(c.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedChan:
			return
		case <-ticker.C:
			if _, err := c.client.KeepAliveOnce(context.Background(), leaseID); err != nil {
				c.logger.Warn("lease renewal failed, instance dropped",
					"instance", instanceID, "error", err)
				c.mu.Lock()
				delete(c.leases, instanceID)
				delete(c.cancelFns, instanceID)
				c.mu.Unlock()
				return
			}
		}
	}
}

// buildKey returns /namespace/scanners/name/instance-id.
func (c *Client) buildKey(name, instanceID string) string {
	return fmt.Sprintf("/%s/scanners/%s/%s", c.namespace, name, instanceID)
}
