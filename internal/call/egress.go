package call

import (
	"context"
	"time"
)

// outMsg is one outbound WebSocket message. pace is set on media frames so
// egress holds real-time cadence; done, when non-nil, is closed after the
// message is written and marks the end of one playback.
type outMsg struct {
	data []byte
	pace bool
	done chan struct{}
}

// egress drains the outbound queue and writes messages to the socket, pacing
// media frames at the configured interval so audio arrives at real time.
// The bounded queue provides back-pressure: when egress falls behind, the
// dialog loop blocks on enqueue instead of piling up synthesized audio.
func (s *Session) egress(ctx context.Context) error {
	var t *time.Timer
	defer func() {
		if t != nil {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.out:
			if err := s.conn.Write(ctx, msg.data); err != nil {
				if msg.done != nil {
					close(msg.done)
				}
				return err
			}
			if msg.pace && s.cfg.FrameInterval > 0 {
				if t == nil {
					t = time.NewTimer(s.cfg.FrameInterval)
				} else {
					t.Reset(s.cfg.FrameInterval)
				}
				select {
				case <-t.C:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if msg.done != nil {
				close(msg.done)
			}
		}
	}
}
