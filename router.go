package client

import (
	"strconv"

	"github.com/jsp-lqk/sharded-memcached/internal"
)

// maxRouteAttempts bounds the perturbation retries when the hashed server
// is dead.
const maxRouteAttempts = 20

// Router picks the endpoint owning a wire key. Route only returns endpoints
// whose connection is open.
type Router interface {
	Route(key string) (*internal.Endpoint, error)
	Endpoints() []*internal.Endpoint
	Shutdown()
}

// DirectRouter serves single-server pools without hashing.
type DirectRouter struct {
	endpoint *internal.Endpoint
}

func (r *DirectRouter) Route(key string) (*internal.Endpoint, error) {
	if r.endpoint.EnsureOpen() == nil {
		return nil, ErrNoConnection
	}
	return r.endpoint, nil
}

func (r *DirectRouter) Endpoints() []*internal.Endpoint {
	return []*internal.Endpoint{r.endpoint}
}

func (r *DirectRouter) Shutdown() {
	r.endpoint.Close()
}

// WeightedRouter hashes keys onto a ring of buckets in which each server
// appears once per unit of weight. When the hashed server is unreachable
// the key is rehashed with a perturbed input, which routes around dead
// servers without remapping the rest of the space.
type WeightedRouter struct {
	endpoints []*internal.Endpoint
	buckets   []*internal.Endpoint
}

// NewRouter builds the router for a set of endpoints: a DirectRouter for a
// single server, a WeightedRouter otherwise.
func NewRouter(endpoints []*internal.Endpoint) Router {
	if len(endpoints) == 1 {
		return &DirectRouter{endpoint: endpoints[0]}
	}
	var buckets []*internal.Endpoint
	for _, e := range endpoints {
		for i := 0; i < e.Weight; i++ {
			buckets = append(buckets, e)
		}
	}
	return &WeightedRouter{endpoints: endpoints, buckets: buckets}
}

func (r *WeightedRouter) Route(key string) (*internal.Endpoint, error) {
	h := bucketHash(key)
	for try := 0; try < maxRouteAttempts; try++ {
		e := r.buckets[h%uint32(len(r.buckets))]
		if e.EnsureOpen() != nil {
			return e, nil
		}
		h += bucketHash(strconv.Itoa(try) + key)
	}
	return nil, ErrNoServersAvailable
}

func (r *WeightedRouter) Endpoints() []*internal.Endpoint {
	return r.endpoints
}

func (r *WeightedRouter) Shutdown() {
	for _, e := range r.endpoints {
		e.Close()
	}
}
