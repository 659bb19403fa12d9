package orchestrator

import (
	"context"
	"log/slog"
	"time"
)

// poller samples backend telemetry into the session.
type poller struct {
	backend  Backend
	session  *Session
	interval time.Duration
	now      func() time.Time
}

// run polls immediately, then on every tick until ctx is done. Failed polls
// are logged and skipped.
func (p *poller) run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *poller) poll(ctx context.Context) {
	if !p.session.isProcessing() {
		return
	}

	m, err := p.backend.Metrics(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("performance metrics poll failed", "error", err)
		}
		return
	}
	p.session.recordSample(m, p.now())
}
