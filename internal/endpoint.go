package internal

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// ConnectTimeout bounds the TCP dial to a single server.
	ConnectTimeout = 250 * time.Millisecond
	// DeadRetryDelay is how long a server that failed to connect is skipped.
	DeadRetryDelay = 30 * time.Second
)

// Endpoint owns the single TCP connection to one cache server. It is not
// safe for concurrent use; the owning client serializes access.
type Endpoint struct {
	Host   string
	Port   int
	Weight int

	clock     Clock
	conn      net.Conn
	rw        *bufio.ReadWriter
	deadUntil time.Time
	status    string
}

func NewEndpoint(host string, port, weight int) *Endpoint {
	return &Endpoint{
		Host:   host,
		Port:   port,
		Weight: weight,
		clock:  RealClock{},
		status: "not connected",
	}
}

// SetClock replaces the wall clock. Only tests need this.
func (e *Endpoint) SetClock(c Clock) {
	e.clock = c
}

func (e *Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// EnsureOpen returns a buffered read/writer over a live connection, opening
// one if needed. It returns nil while the endpoint is inside its dead
// cooldown or when the dial fails; a failed dial starts a new cooldown.
func (e *Endpoint) EnsureOpen() *bufio.ReadWriter {
	if e.conn != nil {
		return e.rw
	}
	now := e.clock.Now()
	if !e.deadUntil.IsZero() && now.Before(e.deadUntil) {
		return nil
	}
	conn, err := net.DialTimeout("tcp", e.Addr(), ConnectTimeout)
	if err != nil {
		e.MarkDead(err.Error())
		return nil
	}
	if !e.deadUntil.IsZero() {
		logrus.Infof("server %s recovered", e.Addr())
	}
	e.conn = conn
	e.rw = bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	e.deadUntil = time.Time{}
	e.status = "connected"
	return e.rw
}

// IsConnected reports whether a connection is currently open. It never
// dials; use EnsureOpen for that.
func (e *Endpoint) IsConnected() bool {
	return e.conn != nil
}

// Close drops the connection without starting a cooldown, so the next use
// reconnects immediately. The client calls this after I/O errors on an
// established connection, where the server itself may be healthy.
func (e *Endpoint) Close() {
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
		e.rw = nil
	}
	e.deadUntil = time.Time{}
	e.status = "not connected"
}

// MarkDead drops the connection and starts the retry cooldown. Reserved for
// connect-time failures.
func (e *Endpoint) MarkDead(reason string) {
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
		e.rw = nil
	}
	e.deadUntil = e.clock.Now().Add(DeadRetryDelay)
	e.status = fmt.Sprintf("DEAD: %s, will retry at %s", reason, e.deadUntil.Format(time.RFC3339))
	logrus.Warnf("server %s marked dead: %s, retry at %s", e.Addr(), reason, e.deadUntil.Format(time.RFC3339))
}

// Status returns a human-readable state string, e.g. for operator surfaces.
func (e *Endpoint) Status() string {
	return e.status
}

// SetReadTimeout arms the read deadline for the next response. A zero
// timeout clears the deadline.
func (e *Endpoint) SetReadTimeout(d time.Duration) {
	if e.conn == nil {
		return
	}
	if d <= 0 {
		e.conn.SetReadDeadline(time.Time{})
		return
	}
	e.conn.SetReadDeadline(e.clock.Now().Add(d))
}
