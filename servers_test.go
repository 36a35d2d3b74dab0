package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseServer(t *testing.T) {
	spec, err := ParseServer("cache1.example.com")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, ServerSpec{Host: "cache1.example.com", Port: 11211, Weight: 1}, spec)

	spec, err = ParseServer("cache1.example.com:11212")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, ServerSpec{Host: "cache1.example.com", Port: 11212, Weight: 1}, spec)

	spec, err = ParseServer("cache1.example.com:11212:3")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, ServerSpec{Host: "cache1.example.com", Port: 11212, Weight: 3}, spec)
}

func TestParseServerErrors(t *testing.T) {
	for _, s := range []string{
		"",
		":11211",
		"host:0",
		"host:-1",
		"host:notaport",
		"host:11211:0",
		"host:11211:nope",
		"host:11211:1:extra",
	} {
		_, err := ParseServer(s)
		assert.ErrorIs(t, err, ErrUsage, "spec %q must be rejected", s)
	}
}

func TestSetServerSpecs(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	err = c.SetServerSpecs(ServerSpec{Host: "cache1.example.com", Port: 11211, Weight: 2})
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, c.ServerStatuses(), 1)

	assert.ErrorIs(t, c.SetServerSpecs(ServerSpec{Host: "", Port: 11211, Weight: 1}), ErrUsage)
	assert.ErrorIs(t, c.SetServerSpecs(ServerSpec{Host: "h", Port: 0, Weight: 1}), ErrUsage)
	assert.ErrorIs(t, c.SetServerSpecs(ServerSpec{Host: "h", Port: 11211, Weight: 0}), ErrUsage)
}

func TestSetServersRejectsEmptyList(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	assert.ErrorIs(t, c.SetServers(), ErrUsage)
}

func TestNoActiveServers(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrNoActiveServers)
	err = c.Set("k", []byte("v"), 0)
	assert.ErrorIs(t, err, ErrNoActiveServers)
	_, err = c.Stats()
	assert.ErrorIs(t, err, ErrNoActiveServers)
}
