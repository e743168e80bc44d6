package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/ralten/Argus/internal/core"
)

// channel adapts a pion data channel to core.ControlChannel so the app
// layer handles locally- and remotely-initiated channels the same way.
type channel struct {
	dc *webrtc.DataChannel
}

func wrapChannel(dc *webrtc.DataChannel) core.ControlChannel {
	return &channel{dc: dc}
}

func (ch *channel) Label() string { return ch.dc.Label() }

func (ch *channel) OnOpen(fn func()) { ch.dc.OnOpen(fn) }

func (ch *channel) OnClose(fn func()) { ch.dc.OnClose(fn) }

func (ch *channel) OnMessage(fn func([]byte)) {
	ch.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (ch *channel) Send(data []byte) error { return ch.dc.Send(data) }

func (ch *channel) IsOpen() bool {
	return ch.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (ch *channel) Close() error { return ch.dc.Close() }
