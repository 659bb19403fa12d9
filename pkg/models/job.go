package models

import (
	"github.com/google/uuid"
)

// DefaultPrompt is sent with an image when the caller leaves the prompt empty.
const DefaultPrompt = "Detect and count all objects in this image"

// ImageJob is one image submitted for counting. It is never mutated after submission.
type ImageJob struct {
	Filename string
	Data     []byte
	Prompt   string
}

// ProcessedResult is the outcome of one ImageJob. A non-empty Error marks the
// error variant, in which case ResultID is nil and Objects is empty.
type ProcessedResult struct {
	ID             uuid.UUID     `json:"id"`
	Filename       string        `json:"filename"`
	ResultID       *int64        `json:"result_id"`
	Objects        []ObjectCount `json:"objects"`
	TotalSegments  int           `json:"total_segments"`
	ProcessingTime float64       `json:"processing_time"`
	Error          string        `json:"error,omitempty"`
}

// Failed reports whether r is an error-variant result.
func (r ProcessedResult) Failed() bool {
	return r.Error != ""
}

// CountResponse is the body returned by POST /api/count-all.
type CountResponse struct {
	Success        bool          `json:"success"`
	ResultID       int64         `json:"result_id"`
	Objects        []ObjectCount `json:"objects"`
	TotalObjects   int           `json:"total_objects"`
	TotalSegments  int           `json:"total_segments"`
	ProcessingTime float64       `json:"processing_time"`
	ImagePath      string        `json:"image_path"`
	CreatedAt      string        `json:"created_at"`
}

// TypeCountResponse is the body returned by POST /api/count, which counts a
// single named object type.
type TypeCountResponse struct {
	Success        bool    `json:"success"`
	ResultID       int64   `json:"result_id"`
	ObjectType     string  `json:"object_type"`
	PredictedCount int     `json:"predicted_count"`
	TotalSegments  int     `json:"total_segments"`
	ProcessingTime float64 `json:"processing_time"`
	ImagePath      string  `json:"image_path"`
	CreatedAt      string  `json:"created_at"`
}
