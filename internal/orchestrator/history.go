package orchestrator

import (
	"time"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// DefaultHistoryCapacity is the number of telemetry points kept per channel.
const DefaultHistoryCapacity = 50

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring evicts the
// oldest value. Not safe for concurrent use.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Values returns a copy of the contents, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// History holds the rolling utilization trend of a session, one ring per
// channel. All rings always have the same length.
type History struct {
	cpu        *Ring[float64]
	gpu        *Ring[float64]
	memory     *Ring[float64]
	timestamps *Ring[time.Time]
}

func NewHistory(capacity int) *History {
	return &History{
		cpu:        NewRing[float64](capacity),
		gpu:        NewRing[float64](capacity),
		memory:     NewRing[float64](capacity),
		timestamps: NewRing[time.Time](capacity),
	}
}

// Append records one sample captured at the given client time. An
// unavailable GPU is recorded as 0.
func (h *History) Append(m models.PerformanceMetrics, at time.Time) {
	h.cpu.Push(m.CPU.UsagePercent)
	h.gpu.Push(m.GPU.UsagePercent)
	h.memory.Push(m.Memory.UsagePercent)
	h.timestamps.Push(at)
}

func (h *History) Len() int { return h.cpu.Len() }

// HistorySnapshot is a point-in-time copy of a History.
type HistorySnapshot struct {
	CPU        []float64
	GPU        []float64
	Memory     []float64
	Timestamps []time.Time
}

func (h *History) Snapshot() HistorySnapshot {
	return HistorySnapshot{
		CPU:        h.cpu.Values(),
		GPU:        h.gpu.Values(),
		Memory:     h.memory.Values(),
		Timestamps: h.timestamps.Values(),
	}
}
