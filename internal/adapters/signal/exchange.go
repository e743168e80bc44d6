// Package signal implements the one-shot HTTP offer/answer exchange
// against an analysis worker's stream endpoint.
package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrBadAnswer = errors.New("malformed answer from stream endpoint")

// description is the wire shape of both halves of the exchange.
type description struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Client performs exactly one POST per session. No retry, no auth,
// no idempotency key; a failed exchange terminates the session.
type Client struct {
	http *http.Client
}

// NewClient builds an exchange client. timeout zero means no client-side
// deadline; failures then surface through terminal connection states.
func NewClient(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Exchange posts the local offer to endpoint and parses the remote answer.
// Any transport error, non-2xx response or malformed body is a negotiation
// failure; the caller does not distinguish it from a media failure.
func (c *Client) Exchange(ctx context.Context, endpoint string, offer *webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	body, err := json.Marshal(description{SDP: offer.SDP, Type: offer.Type.String()})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Str("module", "signal").Str("endpoint", endpoint).Int("status", resp.StatusCode).Msg("exchange rejected")
		return nil, fmt.Errorf("stream endpoint returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var answer description
	if err := json.Unmarshal(raw, &answer); err != nil || answer.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Str("endpoint", endpoint).Msg("bad answer payload")
		return nil, ErrBadAnswer
	}

	log.Info().Str("module", "signal").Str("endpoint", endpoint).Msg("exchange complete")
	return &webrtc.SessionDescription{
		Type: webrtc.NewSDPType(answer.Type),
		SDP:  answer.SDP,
	}, nil
}
