package realtime

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/pulselink/pulselink/internal/core/observability/log"
)

const registryShards = 16

// Registry is a process-scoped store of named clients with explicit
// construction and disposal, replacing ambient module-level globals.
// Sharded to keep unrelated clients from contending on one lock.
type Registry struct {
	shards [registryShards]registryShard
	logger log.Log
}

type registryShard struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry(logger log.Log) *Registry {
	r := &Registry{
		logger: logger.With(log.String("component", "registry")),
	}
	for i := range r.shards {
		r.shards[i].clients = make(map[string]*Client)
	}
	return r
}

func (r *Registry) shard(name string) *registryShard {
	return &r.shards[xxhash.Sum64String(name)%registryShards]
}

// Register stores a client under a name. Names are unique.
func (r *Registry) Register(name string, c *Client) error {
	s := r.shard(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[name]; exists {
		return ErrAlreadyRegistered
	}
	s.clients[name] = c
	r.logger.Debug("Client registered", log.String("name", name), log.String("client_id", c.ID()))
	return nil
}

// Get looks a client up by name.
func (r *Registry) Get(name string) (*Client, bool) {
	s := r.shard(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[name]
	return c, ok
}

// Remove drops a client from the registry without closing it.
func (r *Registry) Remove(name string) error {
	s := r.shard(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[name]; !exists {
		return ErrNotRegistered
	}
	delete(s.clients, name)
	return nil
}

// CloseAll closes every registered client and empties the registry. The
// first close error is returned; remaining clients are still closed.
func (r *Registry) CloseAll() error {
	var firstErr error
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for name, c := range s.clients {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			delete(s.clients, name)
		}
		s.mu.Unlock()
	}
	return firstErr
}

// Len reports the number of registered clients.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.clients)
		s.mu.RUnlock()
	}
	return n
}
