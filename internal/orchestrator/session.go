package orchestrator

import (
	"slices"
	"sync"
	"time"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// Session is the state of one batch run. Each field has a single writer:
// the job loop owns results, index, processing flag, error and summary; the
// poller owns metrics, history and the backend-reported stage; the tracker
// owns elapsed. The mutex lets renderers read consistent snapshots.
type Session struct {
	mu sync.RWMutex

	jobs       []models.ImageJob
	results    []models.ProcessedResult
	current    int
	stage      string
	processing bool
	elapsed    time.Duration
	metrics    *models.PerformanceMetrics
	history    *History
	err        error
	summary    *models.PerformanceSummary
}

func newSession(jobs []models.ImageJob, historyCapacity int) *Session {
	return &Session{
		jobs:    slices.Clone(jobs),
		results: make([]models.ProcessedResult, 0, len(jobs)),
		stage:   models.StageIdle,
		history: NewHistory(historyCapacity),
	}
}

// SessionSnapshot is a copy of a Session safe to hold after the run moves on.
type SessionSnapshot struct {
	TotalJobs    int
	Results      []models.ProcessedResult
	CurrentIndex int
	Stage        string
	Processing   bool
	Elapsed      time.Duration
	Metrics      *models.PerformanceMetrics
	History      HistorySnapshot
	Err          error
	Summary      *models.PerformanceSummary
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		TotalJobs:    len(s.jobs),
		Results:      slices.Clone(s.results),
		CurrentIndex: s.current,
		Stage:        s.stage,
		Processing:   s.processing,
		Elapsed:      s.elapsed,
		History:      s.history.Snapshot(),
		Err:          s.err,
	}
	if s.metrics != nil {
		m := *s.metrics
		snap.Metrics = &m
	}
	if s.summary != nil {
		sum := *s.summary
		snap.Summary = &sum
	}
	return snap
}

func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = true
	s.stage = models.StageInitializing
}

func (s *Session) isProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing
}

func (s *Session) setCurrent(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = i
}

// appendResult adds r and returns a copy of all results so far.
func (s *Session) appendResult(r models.ProcessedResult) []models.ProcessedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return slices.Clone(s.results)
}

// recordSample stores the latest backend metrics and, while the backend is
// monitoring, extends the history.
func (s *Session) recordSample(m models.PerformanceMetrics, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = &m
	if m.CurrentStage != "" {
		s.stage = m.CurrentStage
	}
	if m.Monitoring {
		s.history.Append(m, at)
	}
}

func (s *Session) setElapsed(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = d
}

func (s *Session) finish(summary *models.PerformanceSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	s.stage = models.StageCompleted
	s.summary = summary
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	s.err = err
}
