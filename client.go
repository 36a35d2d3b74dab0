package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jsp-lqk/sharded-memcached/internal"
)

var (
	// ErrNoActiveServers means an operation ran before any server was configured.
	ErrNoActiveServers = errors.New("memcache: no active servers configured")
	// ErrNoServersAvailable means every candidate server is inside its dead cooldown.
	ErrNoServersAvailable = errors.New("memcache: no servers available")
	// ErrNoConnection means the selected server could not be opened.
	ErrNoConnection = errors.New("memcache: could not connect to server")
	// ErrReadOnly means a mutation was attempted on a read-only client.
	ErrReadOnly = errors.New("memcache: client is read-only")
	// ErrProtocol means the server response could not be parsed.
	ErrProtocol = errors.New("memcache: malformed server response")
	// ErrIO wraps socket failures, including read timeouts.
	ErrIO = errors.New("memcache: i/o failure")
	// ErrUsage wraps argument validation failures.
	ErrUsage = errors.New("memcache: usage")
)

// Config carries the construction-time options. The zero value is usable:
// no namespace, writable, no read timeout, RawCodec.
type Config struct {
	// Namespace, when non-empty, prefixes every wire key as "namespace:key".
	Namespace string
	// ReadOnly rejects Set/Add/Replace/Delete before any network I/O.
	ReadOnly bool
	// RequestTimeout bounds each wait for a server response. Zero means no bound.
	RequestTimeout time.Duration
	// Codec converts caller values to and from stored bytes. Nil means RawCodec.
	Codec Codec
}

// MemcacheClient talks the memcached ASCII protocol to a weighted pool of
// servers. It owns its sockets exclusively and is NOT safe for concurrent
// use; share one via SharedClient instead.
type MemcacheClient struct {
	cfg    Config
	codec  Codec
	router Router
}

// DefaultClient returns a writable client with default options for the
// given "host[:port[:weight]]" servers.
func DefaultClient(servers ...string) (*MemcacheClient, error) {
	return New(Config{}, servers...)
}

// New returns a client with the given options. Servers may be empty; every
// operation then fails with ErrNoActiveServers until SetServers is called.
func New(cfg Config, servers ...string) (*MemcacheClient, error) {
	codec := cfg.Codec
	if codec == nil {
		codec = RawCodec{}
	}
	c := &MemcacheClient{cfg: cfg, codec: codec}
	if len(servers) > 0 {
		if err := c.SetServers(servers...); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetServers replaces the server pool. The bucket ring is rebuilt from
// scratch; previous endpoints are closed.
func (c *MemcacheClient) SetServers(servers ...string) error {
	endpoints, err := parseServers(servers)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("%w: empty server list", ErrUsage)
	}
	if c.router != nil {
		c.router.Shutdown()
	}
	c.router = NewRouter(endpoints)
	return nil
}

// SetServerSpecs is SetServers for pre-built specs.
func (c *MemcacheClient) SetServerSpecs(specs ...ServerSpec) error {
	endpoints, err := specsToEndpoints(specs)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("%w: empty server list", ErrUsage)
	}
	if c.router != nil {
		c.router.Shutdown()
	}
	c.router = NewRouter(endpoints)
	return nil
}

// Reset closes every server connection without marking anything dead, so
// the next operation reconnects immediately.
func (c *MemcacheClient) Reset() {
	if c.router == nil {
		return
	}
	for _, e := range c.router.Endpoints() {
		e.Close()
	}
}

// Shutdown closes every server connection. The client may be reused; the
// next operation reconnects.
func (c *MemcacheClient) Shutdown() {
	if c.router != nil {
		c.router.Shutdown()
	}
}

// ServerStatuses reports a state string per configured server, keyed by
// "host:port".
func (c *MemcacheClient) ServerStatuses() map[string]string {
	statuses := make(map[string]string)
	if c.router == nil {
		return statuses
	}
	for _, e := range c.router.Endpoints() {
		statuses[e.Addr()] = e.Status()
	}
	return statuses
}

// qualify maps a caller key to its wire form.
func (c *MemcacheClient) qualify(key string) string {
	if c.cfg.Namespace == "" {
		return key
	}
	return c.cfg.Namespace + ":" + key
}

// unqualify maps a wire key back to the caller's key.
func (c *MemcacheClient) unqualify(key string) string {
	if c.cfg.Namespace == "" {
		return key
	}
	prefix := c.cfg.Namespace + ":"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

// route selects the live endpoint owning a wire key.
func (c *MemcacheClient) route(qkey string) (*internal.Endpoint, error) {
	if c.router == nil {
		return nil, ErrNoActiveServers
	}
	return c.router.Route(qkey)
}

// SharedClient wraps a MemcacheClient with a single mutex that serializes
// every operation end to end, making it safe to share across goroutines.
type SharedClient struct {
	mu sync.Mutex
	c  *MemcacheClient
}

// NewShared returns a goroutine-safe client with the given options.
func NewShared(cfg Config, servers ...string) (*SharedClient, error) {
	c, err := New(cfg, servers...)
	if err != nil {
		return nil, err
	}
	return &SharedClient{c: c}, nil
}

// Share wraps an existing client. The caller must stop using the wrapped
// client directly.
func Share(c *MemcacheClient) *SharedClient {
	return &SharedClient{c: c}
}

func (s *SharedClient) Get(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Get(key)
}

func (s *SharedClient) GetMany(keys []string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.GetMany(keys)
}

func (s *SharedClient) Set(key string, value any, expiry int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Set(key, value, expiry)
}

func (s *SharedClient) Add(key string, value any, expiry int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Add(key, value, expiry)
}

func (s *SharedClient) Replace(key string, value any, expiry int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Replace(key, value, expiry)
}

func (s *SharedClient) Delete(key string, delay int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Delete(key, delay)
}

func (s *SharedClient) Stats() (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Stats()
}

func (s *SharedClient) SetServers(servers ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.SetServers(servers...)
}

func (s *SharedClient) SetServerSpecs(specs ...ServerSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.SetServerSpecs(specs...)
}

func (s *SharedClient) ServerStatuses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.ServerStatuses()
}

func (s *SharedClient) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Reset()
}

func (s *SharedClient) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Shutdown()
}
