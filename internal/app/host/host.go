// Package host runs the native messaging serve loop: one reader on stdin,
// request handlers fanned out to goroutines, all writes funneled through
// the codec's serialized writer.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/avierx/tabdeck/internal/app/bridge"
	"github.com/avierx/tabdeck/internal/app/messaging"
	"github.com/avierx/tabdeck/internal/app/nativemsg"
	"github.com/avierx/tabdeck/internal/logging"
)

// ResultType tags inbound frames that answer an outbound browser call.
const ResultType = "BROWSER_RESULT"

// envelope is the minimal shape peeked from every inbound frame to decide
// where it routes.
type envelope struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Host owns the serve loop.
type Host struct {
	codec   *nativemsg.Codec
	bridge  *bridge.Bridge
	handler *messaging.Handler
}

// New creates a host over a framed channel.
func New(codec *nativemsg.Codec, b *bridge.Bridge, handler *messaging.Handler) *Host {
	return &Host{codec: codec, bridge: b, handler: handler}
}

// Run reads frames until the browser closes the channel. Browser call
// results are resolved inline; requests run in their own goroutine because
// handling one may itself issue browser calls whose replies only this loop
// can deliver.
func (h *Host) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)
	log.Info().Msg("host: serving native messaging channel")

	for {
		raw, err := h.codec.RawRead()
		if err != nil {
			h.bridge.FailAll(errors.New("messaging channel closed"))
			if errors.Is(err, io.EOF) {
				log.Info().Msg("host: channel closed, exiting")
				return nil
			}
			return err
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Warn().Err(err).Msg("host: dropping malformed frame")
			continue
		}

		if env.Type == ResultType {
			var result bridge.Result
			if err := json.Unmarshal(raw, &result); err != nil {
				log.Warn().Err(err).Msg("host: dropping malformed call result")
				continue
			}
			if !h.bridge.Resolve(result.ID, result.Result, result.Error) {
				log.Debug().Str("id", result.ID).Msg("host: stray call result")
			}
			continue
		}

		var req messaging.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			log.Warn().Err(err).Msg("host: dropping malformed request")
			continue
		}
		go h.serve(ctx, req)
	}
}

func (h *Host) serve(ctx context.Context, req messaging.Request) {
	log := logging.FromContext(ctx)

	resp, err := h.handler.Handle(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("type", req.Type).Msg("host: request failed")
		resp = &messaging.Response{
			Type:      req.Type,
			RequestID: req.RequestID,
			OK:        false,
			Reason:    "internal error",
		}
	}
	if resp == nil {
		return
	}
	if err := h.codec.Write(resp); err != nil {
		log.Error().Err(err).Str("type", req.Type).Msg("host: response write failed")
	}
}
