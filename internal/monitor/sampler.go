package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kiranshivaraju/objcounter/pkg/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerMB = 1024 * 1024
const bytesPerGB = 1024 * 1024 * 1024

// Reading is one hardware sample, without session fields.
type Reading struct {
	CPU    models.CPUMetrics
	GPU    models.GPUMetrics
	Memory models.MemoryMetrics
	Disk   models.DiskMetrics
}

// Sampler collects hardware readings.
type Sampler interface {
	Sample(ctx context.Context) (Reading, error)
}

// SystemSampler reads host metrics through gopsutil. GPU metrics are always
// reported unavailable.
type SystemSampler struct {
	diskPath string

	mu       sync.Mutex
	lastIO   time.Time
	lastRead uint64
	lastWrit uint64
}

func NewSystemSampler(diskPath string) *SystemSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemSampler{diskPath: diskPath}
}

// Sample collects every channel it can. A channel that fails is left zero;
// an error is returned only when all of them fail.
func (s *SystemSampler) Sample(ctx context.Context) (Reading, error) {
	var r Reading
	var errs []error

	if c, err := s.cpu(ctx); err != nil {
		errs = append(errs, err)
	} else {
		r.CPU = c
	}
	if m, err := s.memory(ctx); err != nil {
		errs = append(errs, err)
	} else {
		r.Memory = m
	}
	if d, err := s.disk(ctx); err != nil {
		errs = append(errs, err)
	} else {
		r.Disk = d
	}

	if len(errs) == 3 {
		return Reading{}, errors.Join(errs...)
	}
	return r, nil
}

func (s *SystemSampler) cpu(ctx context.Context) (models.CPUMetrics, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return models.CPUMetrics{}, err
	}
	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		perCore = []float64{}
	}
	cores, _ := cpu.CountsWithContext(ctx, true)

	m := models.CPUMetrics{
		Cores:        cores,
		PerCoreUsage: perCore,
		Temperature:  cpuTemperature(ctx),
	}
	if len(total) > 0 {
		m.UsagePercent = total[0]
	}
	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		m.FrequencyMHz = info[0].Mhz
	}
	return m, nil
}

func cpuTemperature(ctx context.Context) float64 {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return 0
	}
	for _, key := range []string{"coretemp", "cpu_thermal", "k10temp"} {
		for _, t := range temps {
			if strings.HasPrefix(t.SensorKey, key) {
				return t.Temperature
			}
		}
	}
	return 0
}

func (s *SystemSampler) memory(ctx context.Context) (models.MemoryMetrics, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.MemoryMetrics{}, err
	}
	m := models.MemoryMetrics{
		TotalGB:      float64(vm.Total) / bytesPerGB,
		UsedGB:       float64(vm.Used) / bytesPerGB,
		AvailableGB:  float64(vm.Available) / bytesPerGB,
		UsagePercent: vm.UsedPercent,
	}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		m.SwapTotalGB = float64(sw.Total) / bytesPerGB
		m.SwapUsedGB = float64(sw.Used) / bytesPerGB
		m.SwapPercent = sw.UsedPercent
	}
	return m, nil
}

func (s *SystemSampler) disk(ctx context.Context) (models.DiskMetrics, error) {
	usage, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return models.DiskMetrics{}, err
	}
	d := models.DiskMetrics{
		TotalGB:      float64(usage.Total) / bytesPerGB,
		UsedGB:       float64(usage.Used) / bytesPerGB,
		FreeGB:       float64(usage.Free) / bytesPerGB,
		UsagePercent: usage.UsedPercent,
	}

	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return d, nil
	}
	var read, write uint64
	for _, c := range counters {
		read += c.ReadBytes
		write += c.WriteBytes
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastIO.IsZero() && read >= s.lastRead && write >= s.lastWrit {
		secs := now.Sub(s.lastIO).Seconds()
		if secs > 0 {
			d.ReadMB = float64(read-s.lastRead) / bytesPerMB / secs
			d.WriteMB = float64(write-s.lastWrit) / bytesPerMB / secs
		}
	}
	s.lastIO, s.lastRead, s.lastWrit = now, read, write
	return d, nil
}

var _ Sampler = (*SystemSampler)(nil)
