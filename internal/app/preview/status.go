package preview

import "github.com/pion/webrtc/v4"

// User-facing status strings. The dashboard renders them verbatim, so the
// exact wording is part of the upstream contract.
const (
	MsgConnecting        = "connecting"
	MsgInterrupted       = "connection interrupted, retrying"
	MsgFailed            = "connection failed"
	MsgClosed            = "connection closed"
	MsgNegotiationFailed = "negotiation failed"
)

// StatusText maps an aggregate connection state to the status message shown
// to the viewer. The second return reports whether anything should be
// emitted at all; connected emits an empty string to clear the banner.
func StatusText(s webrtc.PeerConnectionState) (string, bool) {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return MsgConnecting, true
	case webrtc.PeerConnectionStateConnected:
		return "", true
	case webrtc.PeerConnectionStateDisconnected:
		return MsgInterrupted, true
	case webrtc.PeerConnectionStateFailed:
		return MsgFailed, true
	case webrtc.PeerConnectionStateClosed:
		return MsgClosed, true
	}
	return "", false
}
