package render

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// frame is one outbound websocket message: JSON status updates go out as
// text, RTP payloads as binary.
type frame struct {
	kind int
	data []byte
}

func statusFrame(msg string) frame {
	payload := struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{
		Type:    "status",
		Message: msg,
	}
	b, _ := json.Marshal(payload)
	return frame{kind: websocket.TextMessage, data: b}
}

func mediaFrame(raw []byte) frame {
	return frame{kind: websocket.BinaryMessage, data: raw}
}

// Subscriber is one dashboard websocket client.
type Subscriber struct {
	conn *websocket.Conn
	send chan frame

	mu     sync.RWMutex
	closed bool
}

func NewSubscriber(conn *websocket.Conn) *Subscriber {
	return &Subscriber{
		conn: conn,
		send: make(chan frame, 64),
	}
}

func (s *Subscriber) TrySend(f frame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("subscriber closed")
	}
	select {
	case s.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.send)
	_ = s.conn.Close()
	s.mu.Unlock()
}

// WritePump drains the send queue onto the wire.
func (s *Subscriber) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "render").Msg("writePump ctx done")
			return
		case f, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "render").Msg("writePump set deadline")
				return
			}
			if err := s.conn.WriteMessage(f.kind, f.data); err != nil {
				log.Error().Err(err).Str("module", "render").Msg("writePump write error")
				return
			}
		}
	}
}

// ReadPump consumes the connection until the client goes away. The feed is
// one-way; inbound payloads are discarded.
func (s *Subscriber) ReadPump(ctx context.Context, onGone func()) {
	defer func() {
		s.Close()
		if onGone != nil {
			onGone()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := s.conn.ReadMessage(); err != nil {
				log.Info().Err(err).Str("module", "render").Msg("subscriber gone")
				return
			}
		}
	}
}
