// Package monitor tracks hardware utilization during a processing session.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/objcounter/internal/analysis"
	"github.com/kiranshivaraju/objcounter/internal/cache"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

const (
	snapshotTTL  = time.Minute
	cacheTimeout = 2 * time.Second
)

// Monitor is the backend's performance monitor. At most one session is
// active at a time; starting a new one discards the previous history.
// Safe for concurrent use.
type Monitor struct {
	sampler    Sampler
	cache      cache.Cache
	interval   time.Duration
	maxHistory int
	now        func() time.Time

	// lifecycle serializes Start and Stop so a sampler is never orphaned
	// between stopping the old loop and installing the new one.
	lifecycle sync.Mutex

	mu         sync.Mutex
	monitoring bool
	sessionID  uuid.UUID
	startedAt  time.Time
	stage      string
	total      int
	processed  int
	history    []models.PerformanceMetrics
	latest     models.PerformanceMetrics
	stopLoop   context.CancelFunc
	loopDone   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithCache publishes every sample and stage change to c.
func WithCache(c cache.Cache) Option {
	return func(m *Monitor) { m.cache = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(sampler Sampler, interval time.Duration, maxHistory int, opts ...Option) *Monitor {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	m := &Monitor{
		sampler:    sampler,
		interval:   interval,
		maxHistory: maxHistory,
		now:        time.Now,
		stage:      models.StageIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins a monitoring session for totalImages images and launches the
// background sampler. A running session is stopped first.
func (m *Monitor) Start(totalImages int) uuid.UUID {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.stopSampler()

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	previous, hadSession := m.sessionID, m.monitoring
	m.monitoring = true
	m.sessionID = uuid.New()
	m.startedAt = m.now()
	m.stage = models.StageInitializing
	m.total = totalImages
	m.processed = 0
	m.history = m.history[:0]
	m.latest = models.PerformanceMetrics{}
	m.stopLoop = cancel
	m.loopDone = done
	id := m.sessionID
	m.mu.Unlock()

	if hadSession {
		m.clearStage(previous)
	}
	slog.Info("performance monitoring started", "session_id", id, "total_images", totalImages)
	m.publishStage(loopCtx, id, models.StageInitializing)

	go m.loop(loopCtx, done)
	return id
}

// Stop ends the session and returns its summary. Stopping an idle monitor
// returns the summary of the last session.
func (m *Monitor) Stop() models.PerformanceSummary {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	summary := m.Summary()
	m.stopSampler()

	m.mu.Lock()
	wasMonitoring := m.monitoring
	m.monitoring = false
	m.stage = models.StageIdle
	id := m.sessionID
	m.mu.Unlock()

	if wasMonitoring {
		m.clearStage(id)
		slog.Info("performance monitoring stopped",
			"session_id", id,
			"readings", summary.TotalReadings,
			"processing_time", summary.ProcessingTime,
		)
	}
	return summary
}

// UpdateStage records the current stage. A non-nil imageIndex marks
// imageIndex+1 images as processed.
func (m *Monitor) UpdateStage(ctx context.Context, stage string, imageIndex *int) {
	m.mu.Lock()
	m.stage = stage
	if imageIndex != nil {
		m.processed = *imageIndex + 1
	}
	processed, total, id := m.processed, m.total, m.sessionID
	m.mu.Unlock()

	slog.Debug("processing stage updated", "stage", stage, "processed", processed, "total", total)
	m.publishStage(ctx, id, stage)
}

// Current samples the hardware and returns a full snapshot, recording it in
// the history. When no session is active it returns {Monitoring: false}.
func (m *Monitor) Current(ctx context.Context) (models.PerformanceMetrics, error) {
	m.mu.Lock()
	active := m.monitoring
	m.mu.Unlock()
	if !active {
		return models.PerformanceMetrics{Monitoring: false}, nil
	}
	return m.collect(ctx)
}

// Summary aggregates the session history.
func (m *Monitor) Summary() models.PerformanceSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return models.PerformanceSummary{Available: false}
	}

	cpu := make([]float64, 0, len(m.history))
	gpu := make([]float64, 0, len(m.history))
	memory := make([]float64, 0, len(m.history))
	for _, h := range m.history {
		cpu = append(cpu, h.CPU.UsagePercent)
		memory = append(memory, h.Memory.UsagePercent)
		if h.GPU.Available {
			gpu = append(gpu, h.GPU.UsagePercent)
		}
	}

	gpuStats := analysis.Usage(gpu)
	gpuAvailable := len(gpu) > 0
	gpuStats.Available = &gpuAvailable

	return models.PerformanceSummary{
		Available:      true,
		TotalReadings:  len(m.history),
		CPU:            analysis.Usage(cpu),
		GPU:            gpuStats,
		Memory:         analysis.Usage(memory),
		ProcessingTime: m.latest.ElapsedTime,
	}
}

// Monitoring reports whether a session is active.
func (m *Monitor) Monitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.collect(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("background sample failed", "error", err)
			}
		}
	}
}

func (m *Monitor) collect(ctx context.Context) (models.PerformanceMetrics, error) {
	reading, err := m.sampler.Sample(ctx)
	if err != nil {
		return models.PerformanceMetrics{}, err
	}

	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return models.PerformanceMetrics{Monitoring: false}, nil
	}
	now := m.now()
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.processed) / float64(m.total) * 100
	}
	snap := models.PerformanceMetrics{
		Monitoring:   true,
		Timestamp:    now.UTC(),
		ElapsedTime:  now.Sub(m.startedAt).Seconds(),
		CurrentStage: m.stage,
		Progress: models.Progress{
			TotalImages:     m.total,
			ProcessedImages: m.processed,
			Percentage:      pct,
		},
		CPU:    reading.CPU,
		GPU:    reading.GPU,
		Memory: reading.Memory,
		Disk:   reading.Disk,
	}
	m.latest = snap
	m.history = append(m.history, snap)
	if len(m.history) > m.maxHistory {
		m.history = append(m.history[:0], m.history[len(m.history)-m.maxHistory:]...)
	}
	m.mu.Unlock()

	m.publishSnapshot(ctx, snap)
	return snap, nil
}

func (m *Monitor) stopSampler() {
	m.mu.Lock()
	cancel, done := m.stopLoop, m.loopDone
	m.stopLoop, m.loopDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *Monitor) publishSnapshot(ctx context.Context, snap models.PerformanceMetrics) {
	if m.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, cache.PerformanceSnapshotKey(), data, snapshotTTL); err != nil && ctx.Err() == nil {
		slog.Warn("publish performance snapshot failed", "error", err)
	}
}

func (m *Monitor) publishStage(ctx context.Context, id uuid.UUID, stage string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.SetSessionStage(ctx, id, stage, snapshotTTL); err != nil && ctx.Err() == nil {
		slog.Warn("publish session stage failed", "session_id", id, "error", err)
	}
}

// clearStage drops the published stage of a finished session.
func (m *Monitor) clearStage(id uuid.UUID) {
	if m.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := m.cache.Delete(ctx, cache.SessionStageKey(id)); err != nil {
		slog.Warn("clear session stage failed", "session_id", id, "error", err)
	}
}
