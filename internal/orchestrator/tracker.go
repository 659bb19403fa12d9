package orchestrator

import (
	"context"
	"time"
)

// tracker keeps the session's elapsed time current.
type tracker struct {
	session  *Session
	interval time.Duration
	now      func() time.Time
}

func (t *tracker) run(ctx context.Context) error {
	start := t.now()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.session.setElapsed(t.now().Sub(start))
			return nil
		case <-ticker.C:
			t.session.setElapsed(t.now().Sub(start))
		}
	}
}
