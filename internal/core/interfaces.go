package core

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
)

// SessionID identifies one logical preview attempt.
type SessionID string

// Disposer revokes a subscription. Safe to call more than once.
type Disposer func()

// MediaConnection is the viewer side of one peer connection.
// Owned by the preview controller; it is the only component allowed
// to create or close one.
type MediaConnection interface {
	// SubscribeState registers a callback for aggregate connection-state
	// changes and returns a disposer the owner must invoke on teardown.
	SubscribeState(func(webrtc.PeerConnectionState)) Disposer
	// SubscribeICEState registers a callback for ICE-connection-state changes.
	SubscribeICEState(func(webrtc.ICEConnectionState)) Disposer
	// CreateOfferWithGathering creates an offer, applies it locally and waits
	// for ICE gathering up to wait. On timeout the offer is returned as-is.
	CreateOfferWithGathering(ctx context.Context, wait time.Duration) (*webrtc.SessionDescription, error)
	// ApplyAnswer sets the remote description. Errors are terminal for the session.
	ApplyAnswer(webrtc.SessionDescription) error
	// CreateControlChannel opens the locally-initiated control channel.
	CreateControlChannel(label string) (ControlChannel, error)
	// OnIncomingChannel sets a callback for remotely-initiated data channels.
	OnIncomingChannel(func(ControlChannel))
	// OnTrack sets a callback that will be invoked when a remote track arrives.
	OnTrack(func(streamID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// Close releases the underlying transport. Idempotent, never panics.
	Close()
}

// ControlChannel is an ordered, reliable side-channel on the same transport
// as the media. Non-owning holders must re-acquire it on reconnect.
type ControlChannel interface {
	Label() string
	OnOpen(func())
	OnClose(func())
	OnMessage(func([]byte))
	// Send delivers one message. Callers must only send while open.
	Send([]byte) error
	IsOpen() bool
	Close() error
}

// RenderTarget is the sink that receives decoded media. It is bound to at
// most one composite stream at a time and must never point at a stale one.
type RenderTarget interface {
	// Attach binds a remote track of the given composite stream.
	Attach(streamID string, track *webrtc.TrackRemote)
	// Clear detaches everything. Idempotent.
	Clear()
}

// StatusFunc receives short user-facing status strings. An empty string
// clears the current message.
type StatusFunc func(msg string)
