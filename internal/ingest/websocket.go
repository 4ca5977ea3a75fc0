package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSource reads one JSON point per text frame from a live feed
// (e.g. a readsb/tar1090 aircraft.json push stream relayed over ws://).
type WebSocketSource struct {
	conn *websocket.Conn
}

// DialWebSocket connects to url and returns a ready WebSocketSource.
func DialWebSocket(ctx context.Context, url string) (*WebSocketSource, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: websocket dial %s: %w", url, err)
	}
	return &WebSocketSource{conn: conn}, nil
}

// Next implements pkg/engine.Source.
func (s *WebSocketSource) Next(ctx context.Context) (map[string]any, float64, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(dl)
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, 0, fmt.Errorf("ingest: websocket read: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("ingest: malformed frame: %w", err)
	}
	return raw, float64(time.Now().Unix()), nil
}

// Close releases the underlying connection.
func (s *WebSocketSource) Close() error {
	return s.conn.Close()
}
