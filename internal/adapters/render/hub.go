// Package render fans the previewed media out to dashboard websocket
// clients. The hub is the production RenderTarget: it owns the binding to
// the current composite stream and never keeps a stale one.
package render

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	stream string
	tracks map[string]context.CancelFunc
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		tracks: make(map[string]context.CancelFunc),
	}
}

// Attach binds a remote track of the given composite stream and starts
// forwarding its RTP payloads. Repeated attaches of the same track are
// no-ops; tracks of a foreign stream are refused.
func (h *Hub) Attach(streamID string, track *webrtc.TrackRemote) {
	h.mu.Lock()
	if h.stream == "" {
		h.stream = streamID
	}
	if h.stream != streamID {
		h.mu.Unlock()
		log.Warn().Str("module", "render").Str("stream_id", streamID).Str("bound", h.stream).Msg("refusing track of foreign stream")
		return
	}
	if _, ok := h.tracks[track.ID()]; ok {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.tracks[track.ID()] = cancel
	h.mu.Unlock()

	log.Info().Str("module", "render").Str("stream_id", streamID).Str("track_id", track.ID()).Msg("forwarding track")
	go h.forward(ctx, track)
}

// Clear detaches everything. Idempotent; subscribers stay connected and
// simply stop receiving frames.
func (h *Hub) Clear() {
	h.mu.Lock()
	for _, cancel := range h.tracks {
		cancel()
	}
	h.tracks = make(map[string]context.CancelFunc)
	h.stream = ""
	h.mu.Unlock()
}

// PushStatus broadcasts a user-facing status message to every subscriber.
func (h *Hub) PushStatus(msg string) {
	h.broadcast(statusFrame(msg))
}

// forward reads RTP packets from the source track and fans them out.
func (h *Hub) forward(ctx context.Context, track *webrtc.TrackRemote) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "render").Str("track_id", track.ID()).Msg("forward ctx done")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Info().Err(err).Str("module", "render").Str("track_id", track.ID()).Msg("forward read RTP ended")
			return
		}
		h.broadcastRTP(pkt)
	}
}

func (h *Hub) broadcastRTP(pkt *rtp.Packet) {
	raw, err := pkt.Marshal()
	if err != nil {
		log.Error().Err(err).Str("module", "render").Msg("marshal RTP")
		return
	}
	h.broadcast(mediaFrame(raw))
}

func (h *Hub) broadcast(f frame) {
	h.mu.RLock()
	snapshot := make(map[*Subscriber]struct{}, len(h.subs))
	maps.Copy(snapshot, h.subs)
	h.mu.RUnlock()

	for sub := range snapshot {
		if err := sub.TrySend(f); err != nil {
			log.Warn().Err(err).Str("module", "render").Msg("dropping slow subscriber")
			h.Unsubscribe(sub)
		}
	}
}

// Subscribe registers a websocket subscriber.
func (h *Hub) Subscribe(sub *Subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
}

// Unsubscribe removes and closes a subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	h.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// SubscriberCount reports the current fan-out width.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
