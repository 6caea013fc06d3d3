package fixsession

import (
	"context"
	"time"
)

// Run drives Connect with exponential-backoff reconnection: on an
// unintentional disconnect it waits InitialReconnectDelay·2^(attempt−1),
// capped at MaxReconnectDelay, and tries again, up to MaxReconnectAttempts.
// Each attempt is a fresh Connect, so sequence numbers and the sent-store
// reset. An intentional Disconnect call stops Run without retrying. Run
// blocks until ctx is cancelled or reconnect attempts are exhausted.
func (s *Session) Run(ctx context.Context) error {
	attempt := 0
	delay := s.cfg.InitialReconnectDelay

	for {
		err := s.Connect(ctx)
		if err != nil {
			if s.isIntentional() {
				return nil
			}
			attempt++
			if attempt > s.cfg.MaxReconnectAttempts {
				return err
			}
			if !s.wait(ctx, delay) {
				return ctx.Err()
			}
			delay = nextBackoff(delay, s.cfg.MaxReconnectDelay)
			continue
		}

		// Connected: wait for the session to go down.
		s.wg.Wait()

		if s.isIntentional() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt = 0
		delay = s.cfg.InitialReconnectDelay
		if !s.wait(ctx, delay) {
			return ctx.Err()
		}
	}
}

func (s *Session) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
