package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

func TestRing_EvictsOldestWhenFull(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Values())
}

func TestRing_PartiallyFilled(t *testing.T) {
	r := NewRing[string](4)
	r.Push("a")
	r.Push("b")

	assert.Equal(t, []string{"a", "b"}, r.Values())
	assert.Equal(t, 4, r.Cap())
}

func TestRing_NonPositiveCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Values())
}

func TestHistory_CapsEveryChannel(t *testing.T) {
	h := NewHistory(DefaultHistoryCapacity)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 60 {
		m := models.PerformanceMetrics{Monitoring: true}
		m.CPU.UsagePercent = float64(i)
		m.Memory.UsagePercent = float64(100 + i)
		h.Append(m, base.Add(time.Duration(i)*time.Second))
	}

	snap := h.Snapshot()
	require.Len(t, snap.CPU, 50)
	require.Len(t, snap.GPU, 50)
	require.Len(t, snap.Memory, 50)
	require.Len(t, snap.Timestamps, 50)

	assert.Equal(t, 10.0, snap.CPU[0])
	assert.Equal(t, 59.0, snap.CPU[49])
	assert.Equal(t, 110.0, snap.Memory[0])
	assert.Equal(t, base.Add(10*time.Second), snap.Timestamps[0])
	assert.Equal(t, 0.0, snap.GPU[0], "unavailable GPU records zero")
}

func TestSession_RecordSample(t *testing.T) {
	s := newSession([]models.ImageJob{{Filename: "a.png"}}, 5)
	now := time.Now()

	s.recordSample(models.PerformanceMetrics{Monitoring: false}, now)
	snap := s.Snapshot()
	assert.NotNil(t, snap.Metrics)
	assert.Empty(t, snap.History.CPU, "idle samples are not appended")
	assert.Equal(t, models.StageIdle, snap.Stage)

	m := models.PerformanceMetrics{Monitoring: true, CurrentStage: models.StageProcessingImage}
	m.CPU.UsagePercent = 42
	s.recordSample(m, now)

	snap = s.Snapshot()
	assert.Equal(t, models.StageProcessingImage, snap.Stage)
	assert.Equal(t, []float64{42}, snap.History.CPU)
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s := newSession([]models.ImageJob{{Filename: "a.png"}, {Filename: "b.png"}}, 5)
	s.appendResult(models.ProcessedResult{Filename: "a.png"})

	snap := s.Snapshot()
	snap.Results[0].Filename = "changed"

	assert.Equal(t, "a.png", s.Snapshot().Results[0].Filename)
	assert.Equal(t, 2, snap.TotalJobs)
}
