package preview

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/ralten/Argus/internal/core"
	"github.com/ralten/Argus/internal/domain"
)

// controlMessage is the wire shape of one toggle command. Delivery is
// ordered and reliable, at most once per send, no application-level ack.
type controlMessage struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// bindChannel wires a control channel into the session, regardless of
// which side created it. Both the local and the remote open path end here,
// so open/close handling exists exactly once.
func (c *Controller) bindChannel(s *session, ch core.ControlChannel) {
	s.channel = ch

	ch.OnOpen(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !s.alive.Load() {
			return
		}
		log.Info().Str("module", "preview.control").Str("sid", string(s.id)).Str("label", ch.Label()).Msg("control channel open")
		s.sender = ch
		c.resendTogglesLocked(s)
	})

	ch.OnClose(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// Revoke the send capability even mid-teardown so late UI toggles
		// are dropped instead of hitting a dead channel.
		if s.sender == ch {
			s.sender = nil
		}
		log.Info().Str("module", "preview.control").Str("sid", string(s.id)).Msg("control channel closed")
	})

	ch.OnMessage(func(data []byte) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !s.alive.Load() {
			return
		}
		c.onControlMessageLocked(s, data)
	})
}

// onIncomingChannel handles the remote-initiated open path. Only a channel
// whose label matches the agreed control label is accepted.
func (c *Controller) onIncomingChannel(s *session, ch core.ControlChannel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.alive.Load() {
		return
	}
	if ch.Label() != c.label {
		log.Warn().Str("module", "preview.control").Str("sid", string(s.id)).Str("label", ch.Label()).Msg("ignoring data channel with foreign label")
		return
	}
	c.bindChannel(s, ch)
}

// resendTogglesLocked replays the full desired toggle state. Nothing is
// buffered before open, so partial resends would desync the remote side.
func (c *Controller) resendTogglesLocked(s *session) {
	for _, name := range domain.ToggleNames() {
		c.sendToggleLocked(s, name, c.toggles[name])
	}
}

// sendToggleLocked is a silent no-op unless the channel is open.
func (c *Controller) sendToggleLocked(s *session, name domain.ToggleName, value bool) {
	if s == nil || s.sender == nil {
		return
	}
	data, err := json.Marshal(controlMessage{Type: "toggle", Name: string(name), Value: value})
	if err != nil {
		log.Error().Err(err).Str("module", "preview.control").Msg("marshal toggle")
		return
	}
	if err := s.sender.Send(data); err != nil {
		log.Warn().Err(err).Str("module", "preview.control").Str("sid", string(s.id)).Str("name", string(name)).Msg("toggle send failed")
	}
}

// onControlMessageLocked applies an inbound state notification from the
// analysis worker.
func (c *Controller) onControlMessageLocked(s *session, data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("module", "preview.control").Str("sid", string(s.id)).Msg("bad control payload")
		return
	}
	if msg.Type != "toggle" || !domain.ToggleName(msg.Name).Valid() {
		log.Warn().Str("module", "preview.control").Str("sid", string(s.id)).Str("type", msg.Type).Str("name", msg.Name).Msg("unknown control message")
		return
	}
	c.confirmed[domain.ToggleName(msg.Name)] = msg.Value
	log.Debug().Str("module", "preview.control").Str("sid", string(s.id)).Str("name", msg.Name).Bool("value", msg.Value).Msg("toggle confirmed")
}
