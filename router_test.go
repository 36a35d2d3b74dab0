package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jsp-lqk/sharded-memcached/internal"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestBucketMultiplicities(t *testing.T) {
	a := internal.NewEndpoint("a.example.com", 11211, 1)
	b := internal.NewEndpoint("b.example.com", 11211, 2)
	c := internal.NewEndpoint("c.example.com", 11211, 3)

	r := NewRouter([]*internal.Endpoint{a, b, c}).(*WeightedRouter)
	assert.Equal(t, 6, len(r.buckets))

	counts := make(map[*internal.Endpoint]int)
	for _, e := range r.buckets {
		counts[e]++
	}
	assert.Equal(t, 1, counts[a])
	assert.Equal(t, 2, counts[b])
	assert.Equal(t, 3, counts[c])
}

func TestSingleServerFastPath(t *testing.T) {
	s := newMockServer(t)
	endpoints, err := parseServers([]string{s.server(1)})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(endpoints)
	assert.IsType(t, &DirectRouter{}, r)

	e, err := r.Route("anything")
	if err != nil {
		t.Fatal(err)
	}
	assert.Same(t, endpoints[0], e)
}

func TestSingleServerDownIsNoConnection(t *testing.T) {
	endpoints, err := parseServers([]string{deadAddr(t)})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(endpoints)

	_, err = r.Route("anything")
	assert.ErrorIs(t, err, ErrNoConnection)
}

func TestSelectionStability(t *testing.T) {
	s1 := newMockServer(t)
	s2 := newMockServer(t)
	endpoints, err := parseServers([]string{s1.server(1), s2.server(2)})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(endpoints)

	for _, key := range []string{"k1", "k2", "k3", "ns:k1"} {
		first, err := r.Route(key)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 10; i++ {
			e, err := r.Route(key)
			if err != nil {
				t.Fatal(err)
			}
			assert.Same(t, first, e, "key %q must keep routing to the same server", key)
		}
	}
}

func TestFailoverRoutesAroundDeadServer(t *testing.T) {
	alive := newMockServer(t)
	endpoints, err := parseServers([]string{deadAddr(t), alive.server(1)})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(endpoints)

	for _, key := range []string{"k1", "k2", "k3", "k4", "k5"} {
		e, err := r.Route(key)
		if err != nil {
			t.Fatal(err)
		}
		assert.Same(t, endpoints[1], e, "key %q must land on the live server", key)
	}
	assert.Contains(t, endpoints[0].Status(), "DEAD:")
}

func TestAllServersDead(t *testing.T) {
	endpoints, err := parseServers([]string{deadAddr(t), deadAddr(t)})
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(endpoints)

	_, err = r.Route("k1")
	assert.ErrorIs(t, err, ErrNoServersAvailable)
}

func TestDeadCooldownExpires(t *testing.T) {
	s := newMockServer(t)
	endpoints, err := parseServers([]string{s.server(1), s.server(1)})
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Now()}
	endpoints[0].SetClock(clock)
	endpoints[0].MarkDead("boom")

	// Inside the cooldown the endpoint refuses to dial.
	assert.Nil(t, endpoints[0].EnsureOpen())
	clock.now = clock.now.Add(internal.DeadRetryDelay - time.Second)
	assert.Nil(t, endpoints[0].EnsureOpen())

	// Past the cooldown it reconnects.
	clock.now = clock.now.Add(2 * time.Second)
	assert.NotNil(t, endpoints[0].EnsureOpen())
	assert.True(t, endpoints[0].IsConnected())
}
