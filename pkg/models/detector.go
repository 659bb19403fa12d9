// Package models contains shared data models used across the object counter codebase.
package models

import (
	"context"
)

// Detector is the core interface that every counting backend must implement.
// Handlers and services depend on this interface, never on a concrete detector.
type Detector interface {
	// CountAll detects every object in the image and returns per-type counts.
	CountAll(ctx context.Context, req DetectionRequest) (DetectionResult, error)
	// Name returns the detector identifier (e.g., "mock", "remote").
	Name() string
}

// DetectionRequest is the input to a detection run.
// A non-empty ObjectType restricts detection to that one type.
type DetectionRequest struct {
	Image      []byte
	Filename   string
	Prompt     string
	ObjectType string
}

// DetectionResult is the raw output of a detection run.
type DetectionResult struct {
	Objects        []ObjectCount `json:"objects"`
	TotalSegments  int           `json:"total_segments"`
	ProcessingTime float64       `json:"processing_time"` // seconds
}

// TotalObjects sums the counts across all detected object types.
func (r DetectionResult) TotalObjects() int {
	total := 0
	for _, o := range r.Objects {
		total += o.Count
	}
	return total
}

// Primary returns the object type with the highest count, or false when nothing was detected.
func (r DetectionResult) Primary() (ObjectCount, bool) {
	if len(r.Objects) == 0 {
		return ObjectCount{}, false
	}
	best := r.Objects[0]
	for _, o := range r.Objects[1:] {
		if o.Count > best.Count {
			best = o
		}
	}
	return best, true
}

// CountOf returns the count reported for objectType, or 0.
func (r DetectionResult) CountOf(objectType string) int {
	total := 0
	for _, o := range r.Objects {
		if o.Type == objectType {
			total += o.Count
		}
	}
	return total
}

// ObjectCount is one (label, count) pair.
type ObjectCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}
