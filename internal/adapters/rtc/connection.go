package rtc

import (
	"context"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ralten/Argus/internal/core"
)

// Connection is the viewer side of one peer connection. It registers the
// pion callbacks exactly once and fans them out to revocable subscribers,
// so the owner can unhook everything during teardown.
type Connection struct {
	pc  *webrtc.PeerConnection
	sid core.SessionID

	mu        sync.Mutex
	closed    bool
	nextSub   int
	stateSubs map[int]func(webrtc.PeerConnectionState)
	iceSubs   map[int]func(webrtc.ICEConnectionState)

	onTrack   func(streamID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onChannel func(core.ControlChannel)
}

// ConfigFor builds a pion configuration from a plain STUN/TURN URL list.
// An empty list means host-only connectivity.
func ConfigFor(servers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(servers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: servers}}
	}
	return cfg
}

// New allocates a peer connection with one receive-only video transceiver.
func New(cfg webrtc.Configuration, sid core.SessionID) (*Connection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pc.AddTransceiverFromKind(
		webrtc.RTPCodecTypeVideo,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
	); err != nil {
		_ = pc.Close()
		return nil, err
	}

	c := &Connection{
		pc:        pc,
		sid:       sid,
		stateSubs: make(map[int]func(webrtc.PeerConnectionState)),
		iceSubs:   make(map[int]func(webrtc.ICEConnectionState)),
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("sid", string(c.sid)).Str("peer_connection_state", s.String()).Msg("peer state")
		for _, fn := range c.stateSnapshot() {
			fn(s)
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("sid", string(c.sid)).Str("ice_state", s.String()).Msg("ICE state")
		for _, fn := range c.iceSnapshot() {
			fn(s)
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("sid", string(c.sid)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("track received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(track.StreamID(), track, receiver)
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Info().Str("module", "rtc").Str("sid", string(c.sid)).Str("label", dc.Label()).Msg("incoming data channel")
		c.mu.Lock()
		fn := c.onChannel
		c.mu.Unlock()
		if fn != nil {
			fn(wrapChannel(dc))
		}
	})

	return c, nil
}

func (c *Connection) stateSnapshot() []func(webrtc.PeerConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(webrtc.PeerConnectionState), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		out = append(out, fn)
	}
	return out
}

func (c *Connection) iceSnapshot() []func(webrtc.ICEConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(webrtc.ICEConnectionState), 0, len(c.iceSubs))
	for _, fn := range c.iceSubs {
		out = append(out, fn)
	}
	return out
}

// SubscribeState registers fn for aggregate state changes. The returned
// disposer removes the subscription and is safe to call repeatedly.
func (c *Connection) SubscribeState(fn func(webrtc.PeerConnectionState)) core.Disposer {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.stateSubs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.stateSubs, id)
		c.mu.Unlock()
	}
}

// SubscribeICEState registers fn for ICE-connection-state changes.
func (c *Connection) SubscribeICEState(fn func(webrtc.ICEConnectionState)) core.Disposer {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.iceSubs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.iceSubs, id)
		c.mu.Unlock()
	}
}

// CreateOfferWithGathering creates and applies the local offer, then waits
// for ICE gathering up to wait. On timeout the offer is sent as-is; host-only
// connectivity is still attempted with the partial candidate set.
func (c *Connection) CreateOfferWithGathering(ctx context.Context, wait time.Duration) (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-gatherComplete:
	case <-t.C:
		log.Warn().Str("module", "rtc").Str("sid", string(c.sid)).Dur("wait", wait).Msg("ICE gathering timed out, sending offer anyway")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.pc.LocalDescription(), nil
}

// ApplyAnswer sets the remote description.
func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

// CreateControlChannel opens the locally-initiated control channel.
// SCTP defaults give the ordered, reliable delivery the protocol needs.
func (c *Connection) CreateControlChannel(label string) (core.ControlChannel, error) {
	dc, err := c.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return wrapChannel(dc), nil
}

// OnIncomingChannel sets the callback for remotely-initiated data channels.
func (c *Connection) OnIncomingChannel(fn func(core.ControlChannel)) {
	c.mu.Lock()
	c.onChannel = fn
	c.mu.Unlock()
}

// OnTrack sets the callback for remote media tracks.
func (c *Connection) OnTrack(fn func(streamID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

// Close releases the transport. Idempotent and safe on a connection that
// never finished connecting.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("sid", string(c.sid)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("sid", string(c.sid)).Msg("closed")
	}
}
