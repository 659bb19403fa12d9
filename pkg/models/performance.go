package models

import "time"

// Processing stages reported through the telemetry API.
const (
	StageIdle            = "idle"
	StageInitializing    = "initializing"
	StageProcessingImage = "processing_image"
	StageCompleted       = "completed"
)

// PerformanceMetrics is one telemetry snapshot as served by GET /api/performance/metrics.
// When Monitoring is false every other field is zero.
type PerformanceMetrics struct {
	Monitoring   bool          `json:"monitoring"`
	Timestamp    time.Time     `json:"timestamp,omitzero"`
	ElapsedTime  float64       `json:"elapsed_time,omitempty"`
	CurrentStage string        `json:"current_stage,omitempty"`
	Progress     Progress      `json:"progress,omitzero"`
	CPU          CPUMetrics    `json:"cpu,omitzero"`
	GPU          GPUMetrics    `json:"gpu,omitzero"`
	Memory       MemoryMetrics `json:"memory,omitzero"`
	Disk         DiskMetrics   `json:"disk,omitzero"`
}

type Progress struct {
	TotalImages     int     `json:"total_images"`
	ProcessedImages int     `json:"processed_images"`
	Percentage      float64 `json:"percentage"`
}

type CPUMetrics struct {
	UsagePercent float64   `json:"usage_percent"`
	FrequencyMHz float64   `json:"frequency_mhz"`
	Cores        int       `json:"cores"`
	PerCoreUsage []float64 `json:"per_core_usage"`
	Temperature  float64   `json:"temperature"`
}

type GPUMetrics struct {
	Available     bool    `json:"available"`
	Name          string  `json:"name,omitempty"`
	UsagePercent  float64 `json:"usage_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	MemoryPercent float64 `json:"memory_percent"`
	Temperature   float64 `json:"temperature"`
}

type MemoryMetrics struct {
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	AvailableGB  float64 `json:"available_gb"`
	UsagePercent float64 `json:"usage_percent"`
	SwapTotalGB  float64 `json:"swap_total_gb"`
	SwapUsedGB   float64 `json:"swap_used_gb"`
	SwapPercent  float64 `json:"swap_percent"`
}

type DiskMetrics struct {
	ReadMB       float64 `json:"read_mb_per_s"`
	WriteMB      float64 `json:"write_mb_per_s"`
	TotalGB      float64 `json:"total_gb"`
	UsedGB       float64 `json:"used_gb"`
	FreeGB       float64 `json:"free_gb"`
	UsagePercent float64 `json:"usage_percent"`
}

// PerformanceSummary aggregates a monitoring session's history.
type PerformanceSummary struct {
	Available      bool       `json:"available"`
	TotalReadings  int        `json:"total_readings,omitempty"`
	CPU            UsageStats `json:"cpu,omitzero"`
	GPU            UsageStats `json:"gpu,omitzero"`
	Memory         UsageStats `json:"memory,omitzero"`
	ProcessingTime float64    `json:"processing_time,omitempty"`
}

// UsageStats holds average, peak and minimum utilization for one channel.
type UsageStats struct {
	AvgUsage  float64 `json:"avg_usage"`
	PeakUsage float64 `json:"peak_usage"`
	MinUsage  float64 `json:"min_usage"`
	Available *bool   `json:"available,omitempty"`
}
