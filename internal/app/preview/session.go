package preview

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ralten/Argus/internal/core"
	"github.com/ralten/Argus/internal/domain"
)

// session is one logical preview attempt. The controller is the only owner;
// nothing else creates or destroys one.
//
// alive is the liveness token: every asynchronous continuation checks it
// before mutating shared state, so late callbacks of a superseded session
// degrade to no-ops instead of corrupting the successor's view.
type session struct {
	id        core.SessionID
	attempt   string
	task      domain.Task
	createdAt time.Time

	alive  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc

	conn      core.MediaConnection
	channel   core.ControlChannel
	sender    core.ControlChannel // non-nil only while the channel is open
	disposers []core.Disposer
	sink      *sinkBinding
}

func newSession(task domain.Task, attempt string, target core.RenderTarget) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:        core.SessionID(task.ID),
		attempt:   attempt,
		task:      task,
		createdAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		sink:      newSinkBinding(target),
	}
	s.alive.Store(true)
	return s
}

// release runs the teardown steps in the required order: revoke the send
// capability, close the control channel, close the peer connection, clear
// the render target. Each step tolerates the previous one never existing.
func (s *session) release() {
	s.alive.Store(false)
	s.cancel()
	for _, d := range s.disposers {
		d()
	}
	s.disposers = nil

	s.sender = nil
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.sink.teardown()
}
