package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// TCPSource reads newline-delimited JSON points from a persistent TCP
// connection, the shape a local SDR decoder (dump1090-style) typically
// emits on its raw output port.
type TCPSource struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// DialTCP connects to addr and returns a ready TCPSource.
func DialTCP(ctx context.Context, addr string) (*TCPSource, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingest: dial %s: %w", addr, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &TCPSource{conn: conn, scanner: scanner}, nil
}

// Next implements pkg/engine.Source. A read deadline is set from ctx's
// own deadline if present, so reaching that deadline unblocks a stalled
// read; cancelling a ctx that has no deadline does not interrupt a read
// in progress. A connection closed by the peer is reported as io.EOF.
func (s *TCPSource) Next(ctx context.Context) (map[string]any, float64, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(dl)
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, 0, fmt.Errorf("ingest: tcp source: %w", err)
		}
		return nil, 0, fmt.Errorf("ingest: tcp connection closed: %w", io.EOF)
	}

	var raw map[string]any
	if err := json.Unmarshal(s.scanner.Bytes(), &raw); err != nil {
		return nil, 0, fmt.Errorf("ingest: malformed line: %w", err)
	}
	return raw, float64(time.Now().Unix()), nil
}

// Close releases the underlying connection.
func (s *TCPSource) Close() error {
	return s.conn.Close()
}
