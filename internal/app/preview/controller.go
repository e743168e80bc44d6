// Package preview drives the live-preview transport engine: one peer
// connection per active session, negotiated over a one-shot HTTP exchange,
// with a control data channel for overlay toggles multiplexed on the same
// transport.
package preview

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ralten/Argus/internal/core"
	"github.com/ralten/Argus/internal/domain"
)

// Phase is the controller's user-visible lifecycle state.
type Phase string

const (
	PhaseInactive  Phase = "inactive"
	PhaseStarting  Phase = "starting"
	PhaseConnected Phase = "connected"
	PhaseRetrying  Phase = "retrying"
	PhaseFailed    Phase = "failed"
)

// Dialer allocates a media connection for one session.
type Dialer func(sid core.SessionID) (core.MediaConnection, error)

// Exchanger performs the single offer/answer round-trip.
type Exchanger interface {
	Exchange(ctx context.Context, endpoint string, offer *webrtc.SessionDescription) (*webrtc.SessionDescription, error)
}

// Options wires the controller's collaborators.
type Options struct {
	Dial          Dialer
	Exchange      Exchanger
	Target        core.RenderTarget
	Status        core.StatusFunc
	GatherTimeout time.Duration
	ControlLabel  string
}

// Snapshot is the read-only view handed to the API layer.
type Snapshot struct {
	Phase     Phase            `json:"phase"`
	Status    string           `json:"status"`
	Task      *domain.Task     `json:"task,omitempty"`
	Toggles   domain.ToggleSet `json:"toggles"`
	Confirmed domain.ToggleSet `json:"confirmed"`
}

// Controller owns at most one live session and is the only component that
// creates or destroys it. All callback mutation is serialized on mu; a
// superseded session's late callbacks are filtered by its liveness flag.
type Controller struct {
	mu sync.Mutex

	dial          Dialer
	exchange      Exchanger
	target        core.RenderTarget
	status        core.StatusFunc
	gatherTimeout time.Duration
	label         string

	cur        *session
	phase      Phase
	lastStatus string
	toggles    domain.ToggleSet
	confirmed  domain.ToggleSet
}

func NewController(opts Options) *Controller {
	if opts.GatherTimeout <= 0 {
		opts.GatherTimeout = 2 * time.Second
	}
	if opts.ControlLabel == "" {
		opts.ControlLabel = "control"
	}
	return &Controller{
		dial:          opts.Dial,
		exchange:      opts.Exchange,
		target:        opts.Target,
		status:        opts.Status,
		gatherTimeout: opts.GatherTimeout,
		label:         opts.ControlLabel,
		phase:         PhaseInactive,
		toggles:       domain.NewToggleSet(),
		confirmed:     domain.NewToggleSet(),
	}
}

// Update applies the external inputs (task identity, run flag). A change of
// task identity while active tears the old session fully down before the
// new connection attempt begins; the two never overlap.
func (c *Controller) Update(task *domain.Task, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil {
		if active && task != nil && task.ID == c.cur.task.ID {
			return
		}
		c.teardownLocked()
		c.phase = PhaseInactive
		c.pushStatusLocked("")
	}

	if active && task != nil {
		c.startLocked(*task)
	}
}

// Stop deactivates the current session, if any. Idempotent.
func (c *Controller) Stop() {
	c.Update(nil, false)
}

// Toggle records the desired state of one overlay feature and sends it if
// the control channel is open. While it is not, the send is silently
// dropped; the full state is replayed on the next open.
func (c *Controller) Toggle(name domain.ToggleName, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !name.Valid() {
		return
	}
	c.toggles[name] = value
	c.sendToggleLocked(c.cur, name, value)
}

// Snapshot returns the current lifecycle view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Phase:     c.phase,
		Status:    c.lastStatus,
		Toggles:   c.toggles.Clone(),
		Confirmed: c.confirmed.Clone(),
	}
	if c.cur != nil {
		t := c.cur.task
		snap.Task = &t
	}
	return snap
}

func (c *Controller) startLocked(task domain.Task) {
	s := newSession(task, uuid.NewString(), c.target)
	logger := log.With().Str("module", "preview").Str("sid", string(s.id)).Str("attempt", s.attempt).Logger()
	logger.Info().Str("endpoint", task.StreamEndpoint).Msg("starting session")

	conn, err := c.dial(s.id)
	if err != nil {
		// Resource errors surface through the same status stream as
		// negotiation failures, never as a separate error path.
		logger.Error().Err(err).Msg("transport allocation failed")
		c.phase = PhaseFailed
		c.pushStatusLocked(MsgFailed)
		return
	}
	s.conn = conn
	c.cur = s
	c.phase = PhaseStarting

	s.disposers = append(s.disposers,
		conn.SubscribeState(func(st webrtc.PeerConnectionState) { c.onConnState(s, st) }),
		conn.SubscribeICEState(func(st webrtc.ICEConnectionState) { c.onICEState(s, st) }),
	)
	conn.OnTrack(func(streamID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.onTrack(s, streamID, track, receiver)
	})
	conn.OnIncomingChannel(func(ch core.ControlChannel) { c.onIncomingChannel(s, ch) })

	ch, err := conn.CreateControlChannel(c.label)
	if err != nil {
		logger.Error().Err(err).Msg("control channel allocation failed")
		c.failLocked(s)
		return
	}
	c.bindChannel(s, ch)

	go c.negotiate(s, conn)
}

// negotiate runs the offer/answer round-trip off the caller's goroutine.
// It holds its own reference to the connection: the session's fields may be
// nilled by a concurrent teardown. Signaling failures are terminal and
// indistinguishable upstream from media failures.
func (c *Controller) negotiate(s *session, conn core.MediaConnection) {
	offer, err := conn.CreateOfferWithGathering(s.ctx, c.gatherTimeout)
	if err != nil {
		c.failAsync(s, err, "create offer")
		return
	}
	answer, err := c.exchange.Exchange(s.ctx, s.task.StreamEndpoint, offer)
	if err != nil {
		c.failAsync(s, err, "exchange")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.alive.Load() {
		return
	}
	if err := conn.ApplyAnswer(*answer); err != nil {
		log.Error().Err(err).Str("module", "preview").Str("sid", string(s.id)).Msg("apply answer")
		c.failLocked(s)
	}
}

func (c *Controller) failAsync(s *session, err error, op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.alive.Load() {
		return
	}
	log.Error().Err(err).Str("module", "preview").Str("sid", string(s.id)).Str("op", op).Msg("negotiation failed")
	c.failLocked(s)
}

// failLocked terminates the session. failed is terminal: no internal retry,
// the caller starts a brand-new session by toggling the run flag.
func (c *Controller) failLocked(s *session) {
	if c.cur == s {
		c.teardownLocked()
	}
	c.phase = PhaseFailed
	c.pushStatusLocked(MsgFailed)
}

func (c *Controller) onConnState(s *session, st webrtc.PeerConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.alive.Load() {
		return
	}
	if msg, emit := StatusText(st); emit {
		c.pushStatusLocked(msg)
	}

	switch st {
	case webrtc.PeerConnectionStateConnected:
		c.phase = PhaseConnected
	case webrtc.PeerConnectionStateDisconnected:
		// Transient: the transport's own recovery is relied upon.
		c.phase = PhaseRetrying
	case webrtc.PeerConnectionStateFailed:
		c.teardownLocked()
		c.phase = PhaseFailed
	case webrtc.PeerConnectionStateClosed:
		// Unsolicited closure; caller-initiated teardown never reaches
		// here because the liveness flag is already down.
		c.teardownLocked()
		c.phase = PhaseInactive
	}
}

func (c *Controller) onICEState(s *session, st webrtc.ICEConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.alive.Load() {
		return
	}
	if st == webrtc.ICEConnectionStateFailed {
		c.pushStatusLocked(MsgNegotiationFailed)
	}
}

func (c *Controller) onTrack(s *session, streamID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !s.alive.Load() {
		return
	}
	s.sink.attach(streamID, track, receiver)
}

func (c *Controller) teardownLocked() {
	s := c.cur
	if s == nil {
		return
	}
	c.cur = nil
	s.release()
	log.Info().Str("module", "preview").Str("sid", string(s.id)).Str("attempt", s.attempt).Msg("session released")
}

func (c *Controller) pushStatusLocked(msg string) {
	c.lastStatus = msg
	if c.status != nil {
		c.status(msg)
	}
}
