package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jsp-lqk/sharded-memcached/internal"
)

// DefaultPort is the conventional memcached port.
const DefaultPort = 11211

// ServerSpec identifies one pool member. Weight controls how many buckets
// the server occupies in the ring.
type ServerSpec struct {
	Host   string
	Port   int
	Weight int
}

// ParseServer parses "host", "host:port" or "host:port:weight". The port
// defaults to 11211 and the weight to 1.
func ParseServer(s string) (ServerSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return ServerSpec{}, fmt.Errorf("%w: malformed server %q", ErrUsage, s)
	}
	spec := ServerSpec{Host: parts[0], Port: DefaultPort, Weight: 1}
	if spec.Host == "" {
		return ServerSpec{}, fmt.Errorf("%w: empty host in server %q", ErrUsage, s)
	}
	if len(parts) >= 2 {
		port, err := strconv.Atoi(parts[1])
		if err != nil || port <= 0 {
			return ServerSpec{}, fmt.Errorf("%w: bad port in server %q", ErrUsage, s)
		}
		spec.Port = port
	}
	if len(parts) == 3 {
		weight, err := strconv.Atoi(parts[2])
		if err != nil || weight < 1 {
			return ServerSpec{}, fmt.Errorf("%w: bad weight in server %q", ErrUsage, s)
		}
		spec.Weight = weight
	}
	return spec, nil
}

// Validate checks a hand-built spec the same way ParseServer does.
func (s ServerSpec) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("%w: empty host", ErrUsage)
	}
	if s.Port <= 0 {
		return fmt.Errorf("%w: bad port %d", ErrUsage, s.Port)
	}
	if s.Weight < 1 {
		return fmt.Errorf("%w: bad weight %d", ErrUsage, s.Weight)
	}
	return nil
}

func specsToEndpoints(specs []ServerSpec) ([]*internal.Endpoint, error) {
	endpoints := make([]*internal.Endpoint, 0, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, internal.NewEndpoint(spec.Host, spec.Port, spec.Weight))
	}
	return endpoints, nil
}

func parseServers(servers []string) ([]*internal.Endpoint, error) {
	endpoints := make([]*internal.Endpoint, 0, len(servers))
	for _, s := range servers {
		spec, err := ParseServer(s)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, internal.NewEndpoint(spec.Host, spec.Port, spec.Weight))
	}
	return endpoints, nil
}
