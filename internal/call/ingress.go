package call

import (
	"context"
	"log/slog"
	"time"

	"github.com/vaanilabs/vaani/pkg/telephony"
)

// ingress reads envelopes from the socket, feeds media frames into the
// utterance buffer, and forwards control events to the dialog loop. It is
// the only task that touches the buffer, so the buffer needs no locking.
func (s *Session) ingress(ctx context.Context) error {
	raw := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := s.conn.Read(ctx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case raw <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	// The poll tick closes utterances on quiet. A third of the quiet window
	// keeps the segmentation error well under one frame budget.
	poll := s.cfg.Buffer.QuietWindow / 3
	if poll <= 0 {
		poll = 20 * time.Millisecond
	}
	tick := time.NewTicker(poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			s.sendCtrl(ctx, event{kind: evClosed, err: err})
			return nil

		case <-tick.C:
			if u := s.buf.Poll(time.Now()); u != nil {
				s.pushUtterance(u)
			}

		case data := <-raw:
			env, err := telephony.Decode(data)
			if err != nil {
				s.log.Warn("dropping malformed envelope",
					slog.String("kind", string(KindProviderTransport)),
					slog.String("error", err.Error()))
				continue
			}
			switch env.Event {
			case telephony.EventConnected, telephony.EventMark:
				// Connected is informational; marks are our own, echoed.
			case telephony.EventStart:
				s.sendCtrl(ctx, event{kind: evStart, start: env.Start})
			case telephony.EventStop:
				if u := s.buf.Flush(); u != nil {
					s.pushUtterance(u)
				}
				s.sendCtrl(ctx, event{kind: evStop})
			case telephony.EventMedia:
				pcm, err := env.PCM()
				if err != nil {
					s.log.Warn("dropping bad media frame",
						slog.String("kind", string(KindProviderTransport)),
						slog.String("error", err.Error()))
					continue
				}
				if u := s.buf.Append(pcm, time.Now()); u != nil {
					s.pushUtterance(u)
				}
			}
		}
	}
}

// pushUtterance hands a closed utterance to the dialog loop. When the queue
// is full (ASR backlog) the utterance is dropped with a warning rather than
// stalling the socket reader.
func (s *Session) pushUtterance(u []byte) {
	select {
	case s.utts <- u:
	default:
		s.log.Warn("utterance queue full, dropping audio",
			slog.Int("bytes", len(u)))
	}
}

// sendCtrl forwards a control event without blocking past cancellation.
func (s *Session) sendCtrl(ctx context.Context, ev event) {
	select {
	case s.ctrl <- ev:
	case <-ctx.Done():
	}
}
