package preview

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/ralten/Argus/internal/core"
)

// sinkBinding bridges incoming tracks to the render target. The first track
// binds its composite stream; later tracks of the same stream attach
// idempotently, tracks of any other stream are ignored.
type sinkBinding struct {
	target      core.RenderTarget
	boundStream string
	receivers   []*webrtc.RTPReceiver
}

func newSinkBinding(target core.RenderTarget) *sinkBinding {
	return &sinkBinding{target: target}
}

func (b *sinkBinding) attach(streamID string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	if b.boundStream == "" {
		b.boundStream = streamID
		log.Info().Str("module", "preview.sink").Str("stream_id", streamID).Msg("stream bound to render target")
	}
	if b.boundStream != streamID {
		log.Warn().Str("module", "preview.sink").Str("stream_id", streamID).Str("bound", b.boundStream).Msg("ignoring track of foreign stream")
		return
	}
	b.receivers = append(b.receivers, receiver)
	b.target.Attach(streamID, track)
}

// teardown stops held receivers best-effort and detaches the render target.
// Stop errors are swallowed; the target must never keep a stale stream.
func (b *sinkBinding) teardown() {
	for _, r := range b.receivers {
		if r != nil {
			_ = r.Stop()
		}
	}
	b.receivers = nil
	b.boundStream = ""
	b.target.Clear()
}
