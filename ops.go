package client

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/jsp-lqk/sharded-memcached/internal"
)

var statLine = regexp.MustCompile(`^STAT ([A-Za-z0-9_]+) ([0-9.]+)$`)

// Get fetches one key. A missing key returns (nil, nil).
func (c *MemcacheClient) Get(key string) (any, error) {
	qkey := c.qualify(key)
	e, err := c.route(qkey)
	if err != nil {
		return nil, err
	}
	raw, found, err := c.fetchOne(e, qkey)
	if err != nil || !found {
		return nil, err
	}
	return c.codec.Decode(raw)
}

// GetMany fetches a batch of keys with one request per owning server.
// Missing keys are absent from the result; the map is keyed by the caller's
// keys, not the wire keys.
func (c *MemcacheClient) GetMany(keys []string) (map[string]any, error) {
	if c.router == nil {
		return nil, ErrNoActiveServers
	}
	groups := make(map[*internal.Endpoint][]string)
	for _, key := range keys {
		qkey := c.qualify(key)
		e, err := c.route(qkey)
		if err != nil {
			return nil, err
		}
		groups[e] = append(groups[e], qkey)
	}
	raw := make(map[string][]byte)
	for e, qkeys := range groups {
		if err := c.fetchGroup(e, qkeys, raw); err != nil {
			return nil, err
		}
	}
	result := make(map[string]any, len(raw))
	for qkey, b := range raw {
		v, err := c.codec.Decode(b)
		if err != nil {
			return nil, err
		}
		result[c.unqualify(qkey)] = v
	}
	return result, nil
}

// Set stores a value unconditionally. The server's status line is read but
// not interpreted.
func (c *MemcacheClient) Set(key string, value any, expiry int) error {
	_, err := c.store("set", key, value, expiry)
	return err
}

// Add stores a value only if the key is absent. It reports whether the
// server stored it.
func (c *MemcacheClient) Add(key string, value any, expiry int) (bool, error) {
	line, err := c.store("add", key, value, expiry)
	if err != nil {
		return false, err
	}
	return line == "STORED", nil
}

// Replace stores a value only if the key is already present. It reports
// whether the server stored it.
func (c *MemcacheClient) Replace(key string, value any, expiry int) (bool, error) {
	line, err := c.store("replace", key, value, expiry)
	if err != nil {
		return false, err
	}
	return line == "STORED", nil
}

// Delete removes a key. delay is the server-side blocking window in
// seconds. The status line is read but not interpreted.
func (c *MemcacheClient) Delete(key string, delay int) error {
	if c.router == nil {
		return ErrNoActiveServers
	}
	if c.cfg.ReadOnly {
		return ErrReadOnly
	}
	qkey := c.qualify(key)
	e, err := c.route(qkey)
	if err != nil {
		return err
	}
	rw := e.EnsureOpen()
	if rw == nil {
		return ErrNoConnection
	}
	if err := c.send(e, rw, []byte(fmt.Sprintf("delete %s %d\r\n", qkey, delay))); err != nil {
		return err
	}
	_, err = c.readLine(e, rw.Reader)
	return err
}

// Stats collects the STAT lines from every reachable server, keyed by
// "host:port". Values stay strings; callers parse them as needed.
func (c *MemcacheClient) Stats() (map[string]map[string]string, error) {
	if c.router == nil {
		return nil, ErrNoActiveServers
	}
	stats := make(map[string]map[string]string)
	for _, e := range c.router.Endpoints() {
		rw := e.EnsureOpen()
		if rw == nil {
			continue
		}
		if err := c.send(e, rw, []byte("stats\r\n")); err != nil {
			return nil, err
		}
		server := make(map[string]string)
		for {
			line, err := c.readLine(e, rw.Reader)
			if err != nil {
				return nil, err
			}
			if line == "END" {
				break
			}
			if m := statLine.FindStringSubmatch(line); m != nil {
				server[m[1]] = m[2]
			}
		}
		stats[e.Addr()] = server
	}
	return stats, nil
}

// store frames and sends one storage command and returns the status line.
func (c *MemcacheClient) store(verb, key string, value any, expiry int) (string, error) {
	if c.router == nil {
		return "", ErrNoActiveServers
	}
	if c.cfg.ReadOnly {
		return "", ErrReadOnly
	}
	b, err := c.codec.Encode(value)
	if err != nil {
		return "", err
	}
	qkey := c.qualify(key)
	e, err := c.route(qkey)
	if err != nil {
		return "", err
	}
	rw := e.EnsureOpen()
	if rw == nil {
		return "", ErrNoConnection
	}
	command := fmt.Sprintf("%s %s 0 %d %d\r\n", verb, qkey, expiry, len(b))
	frame := append(append([]byte(command), b...), '\r', '\n')
	if err := c.send(e, rw, frame); err != nil {
		return "", err
	}
	return c.readLine(e, rw.Reader)
}

// fetchOne reads the single-key get response: either END or one VALUE block
// followed by END.
func (c *MemcacheClient) fetchOne(e *internal.Endpoint, qkey string) ([]byte, bool, error) {
	rw := e.EnsureOpen()
	if rw == nil {
		return nil, false, ErrNoConnection
	}
	if err := c.send(e, rw, []byte(fmt.Sprintf("get %s\r\n", qkey))); err != nil {
		return nil, false, err
	}
	line, err := c.readLine(e, rw.Reader)
	if err != nil {
		return nil, false, err
	}
	if line == "END" {
		return nil, false, nil
	}
	_, value, err := c.readValueBlock(e, rw.Reader, line)
	if err != nil {
		return nil, false, err
	}
	line, err = c.readLine(e, rw.Reader)
	if err != nil {
		return nil, false, err
	}
	if line != "END" {
		return nil, false, c.protocolError(e, line)
	}
	return value, true, nil
}

// fetchGroup reads the multi-key get response for one server into raw.
func (c *MemcacheClient) fetchGroup(e *internal.Endpoint, qkeys []string, raw map[string][]byte) error {
	rw := e.EnsureOpen()
	if rw == nil {
		return ErrNoConnection
	}
	if err := c.send(e, rw, []byte(fmt.Sprintf("get %s\r\n", strings.Join(qkeys, " ")))); err != nil {
		return err
	}
	for {
		line, err := c.readLine(e, rw.Reader)
		if err != nil {
			return err
		}
		if line == "END" {
			return nil
		}
		key, value, err := c.readValueBlock(e, rw.Reader, line)
		if err != nil {
			return err
		}
		raw[key] = value
	}
}

// readValueBlock parses a "VALUE {key} {flags} {bytes}" header line and
// reads the value payload plus its trailing CRLF.
func (c *MemcacheClient) readValueBlock(e *internal.Endpoint, r *bufio.Reader, line string) (string, []byte, error) {
	header := strings.Fields(line)
	if len(header) != 4 || header[0] != "VALUE" {
		return "", nil, c.protocolError(e, line)
	}
	size, err := strconv.Atoi(header[3])
	if err != nil || size < 0 {
		return "", nil, c.protocolError(e, line)
	}
	value := make([]byte, size+2)
	if _, err := io.ReadFull(r, value); err != nil {
		return "", nil, c.ioError(e, err)
	}
	if value[size] != '\r' || value[size+1] != '\n' {
		return "", nil, c.protocolError(e, "value not CRLF-terminated")
	}
	return header[1], value[:size], nil
}

// send writes a framed request and flushes it, arming the response
// deadline.
func (c *MemcacheClient) send(e *internal.Endpoint, rw *bufio.ReadWriter, frame []byte) error {
	if _, err := rw.Write(frame); err != nil {
		return c.ioError(e, err)
	}
	if err := rw.Flush(); err != nil {
		return c.ioError(e, err)
	}
	e.SetReadTimeout(c.cfg.RequestTimeout)
	return nil
}

// readLine reads one CRLF-terminated response line, without the CRLF.
func (c *MemcacheClient) readLine(e *internal.Endpoint, r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", c.ioError(e, err)
	}
	if !strings.HasSuffix(line, "\r\n") {
		return "", c.protocolError(e, line)
	}
	return strings.TrimSuffix(line, "\r\n"), nil
}

// ioError closes the socket so the next call reconnects from a known
// state. The server is not marked dead; only connect failures are.
func (c *MemcacheClient) ioError(e *internal.Endpoint, err error) error {
	e.Close()
	return fmt.Errorf("%w: %v", ErrIO, err)
}

func (c *MemcacheClient) protocolError(e *internal.Endpoint, detail string) error {
	e.Close()
	return fmt.Errorf("%w: %q", ErrProtocol, detail)
}
