package preview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/ralten/Argus/internal/core"
)

// recorder collects cross-component events so tests can assert ordering,
// not just end state.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) indexOf(ev string) int {
	for i, e := range r.snapshot() {
		if e == ev {
			return i
		}
	}
	return -1
}

type fakeChannel struct {
	mu        sync.Mutex
	label     string
	open      bool
	sent      [][]byte
	rec       *recorder
	onOpen    func()
	onClose   func()
	onMessage func([]byte)
}

func newFakeChannel(label string, rec *recorder) *fakeChannel {
	return &fakeChannel{label: label, rec: rec}
}

func (ch *fakeChannel) Label() string     { return ch.label }
func (ch *fakeChannel) OnOpen(fn func())  { ch.mu.Lock(); ch.onOpen = fn; ch.mu.Unlock() }
func (ch *fakeChannel) OnClose(fn func()) { ch.mu.Lock(); ch.onClose = fn; ch.mu.Unlock() }
func (ch *fakeChannel) OnMessage(fn func([]byte)) {
	ch.mu.Lock()
	ch.onMessage = fn
	ch.mu.Unlock()
}

func (ch *fakeChannel) Send(data []byte) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.sent = append(ch.sent, data)
	return nil
}

func (ch *fakeChannel) IsOpen() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.open
}

// Close only records; like the real transport, the close notification is
// delivered asynchronously, never from inside Close itself.
func (ch *fakeChannel) Close() error {
	ch.mu.Lock()
	ch.open = false
	ch.mu.Unlock()
	ch.rec.add("channel.close:%s", ch.label)
	return nil
}

func (ch *fakeChannel) fireOpen() {
	ch.mu.Lock()
	ch.open = true
	fn := ch.onOpen
	ch.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (ch *fakeChannel) fireClose() {
	ch.mu.Lock()
	ch.open = false
	fn := ch.onClose
	ch.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (ch *fakeChannel) fireMessage(data []byte) {
	ch.mu.Lock()
	fn := ch.onMessage
	ch.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (ch *fakeChannel) sentCount() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.sent)
}

func (ch *fakeChannel) sentSnapshot() [][]byte {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	out := make([][]byte, len(ch.sent))
	copy(out, ch.sent)
	return out
}

func (ch *fakeChannel) resetSent() {
	ch.mu.Lock()
	ch.sent = nil
	ch.mu.Unlock()
}

type fakeConn struct {
	mu        sync.Mutex
	sid       core.SessionID
	rec       *recorder
	stateSubs map[int]func(webrtc.PeerConnectionState)
	iceSubs   map[int]func(webrtc.ICEConnectionState)
	nextSub   int
	onTrack   func(string, *webrtc.TrackRemote, *webrtc.RTPReceiver)
	onChannel func(core.ControlChannel)
	local     *fakeChannel
	chanErr   error
}

func newFakeConn(sid core.SessionID, rec *recorder) *fakeConn {
	return &fakeConn{
		sid:       sid,
		rec:       rec,
		stateSubs: make(map[int]func(webrtc.PeerConnectionState)),
		iceSubs:   make(map[int]func(webrtc.ICEConnectionState)),
	}
}

func (f *fakeConn) SubscribeState(fn func(webrtc.PeerConnectionState)) core.Disposer {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.stateSubs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.stateSubs, id)
		f.mu.Unlock()
	}
}

func (f *fakeConn) SubscribeICEState(fn func(webrtc.ICEConnectionState)) core.Disposer {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.iceSubs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.iceSubs, id)
		f.mu.Unlock()
	}
}

func (f *fakeConn) CreateOfferWithGathering(ctx context.Context, wait time.Duration) (*webrtc.SessionDescription, error) {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (f *fakeConn) ApplyAnswer(webrtc.SessionDescription) error { return nil }

func (f *fakeConn) CreateControlChannel(label string) (core.ControlChannel, error) {
	if f.chanErr != nil {
		return nil, f.chanErr
	}
	f.mu.Lock()
	f.local = newFakeChannel(label, f.rec)
	ch := f.local
	f.mu.Unlock()
	return ch, nil
}

func (f *fakeConn) OnIncomingChannel(fn func(core.ControlChannel)) {
	f.mu.Lock()
	f.onChannel = fn
	f.mu.Unlock()
}

func (f *fakeConn) OnTrack(fn func(string, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	f.mu.Lock()
	f.onTrack = fn
	f.mu.Unlock()
}

func (f *fakeConn) Close() {
	f.rec.add("conn.close:%s", f.sid)
}

func (f *fakeConn) fireState(s webrtc.PeerConnectionState) {
	f.mu.Lock()
	subs := make([]func(webrtc.PeerConnectionState), 0, len(f.stateSubs))
	for _, fn := range f.stateSubs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (f *fakeConn) fireICEState(s webrtc.ICEConnectionState) {
	f.mu.Lock()
	subs := make([]func(webrtc.ICEConnectionState), 0, len(f.iceSubs))
	for _, fn := range f.iceSubs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (f *fakeConn) fireTrack(streamID string) {
	f.mu.Lock()
	fn := f.onTrack
	f.mu.Unlock()
	if fn != nil {
		fn(streamID, nil, nil)
	}
}

func (f *fakeConn) fireIncomingChannel(ch core.ControlChannel) {
	f.mu.Lock()
	fn := f.onChannel
	f.mu.Unlock()
	if fn != nil {
		fn(ch)
	}
}

func (f *fakeConn) localChannel() *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local
}

// savedStateSub returns one live state subscriber so tests can replay a
// stale event after teardown disposed the registration.
func (f *fakeConn) savedStateSub() func(webrtc.PeerConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.stateSubs {
		return fn
	}
	return nil
}

func (f *fakeConn) stateSubCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stateSubs)
}

type fakeTarget struct {
	mu      sync.Mutex
	rec     *recorder
	streams []string
}

func newFakeTarget(rec *recorder) *fakeTarget {
	return &fakeTarget{rec: rec}
}

func (t *fakeTarget) Attach(streamID string, _ *webrtc.TrackRemote) {
	t.mu.Lock()
	t.streams = append(t.streams, streamID)
	t.mu.Unlock()
	t.rec.add("target.attach:%s", streamID)
}

func (t *fakeTarget) Clear() {
	t.mu.Lock()
	t.streams = nil
	t.mu.Unlock()
	t.rec.add("target.clear")
}

func (t *fakeTarget) attached() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.streams))
	copy(out, t.streams)
	return out
}

// fakeExchange answers immediately unless gate is set, in which case it
// blocks until the gate closes or the session context ends.
type fakeExchange struct {
	mu   sync.Mutex
	rec  *recorder
	err  error
	gate chan struct{}
}

func newFakeExchange(rec *recorder) *fakeExchange {
	return &fakeExchange{rec: rec}
}

func (e *fakeExchange) Exchange(ctx context.Context, endpoint string, offer *webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	e.rec.add("exchange:%s", endpoint)
	e.mu.Lock()
	gate := e.gate
	err := e.err
	e.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

// statusLog records every status push in order.
type statusLog struct {
	mu   sync.Mutex
	msgs []string
}

func (s *statusLog) push(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *statusLog) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.msgs))
	copy(out, s.msgs)
	return out
}
