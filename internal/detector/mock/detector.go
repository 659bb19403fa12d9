package mock

import (
	"context"

	"github.com/kiranshivaraju/objcounter/internal/detector"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// Detector satisfies models.Detector for testing.
type Detector struct {
	Name_        string
	CountAllFunc func(ctx context.Context, req models.DetectionRequest) (models.DetectionResult, error)
	Calls        int
}

func (d *Detector) Name() string { return d.Name_ }

func (d *Detector) CountAll(ctx context.Context, req models.DetectionRequest) (models.DetectionResult, error) {
	d.Calls++
	if d.CountAllFunc != nil {
		return d.CountAllFunc(ctx, req)
	}
	return models.DetectionResult{Objects: []models.ObjectCount{}}, nil
}

// NewDetector returns a Detector that reports the given objects instantly.
func NewDetector(objects ...models.ObjectCount) *Detector {
	return &Detector{
		Name_: "mock",
		CountAllFunc: func(_ context.Context, _ models.DetectionRequest) (models.DetectionResult, error) {
			return models.DetectionResult{
				Objects:        append([]models.ObjectCount{}, objects...),
				TotalSegments:  len(objects) + 4,
				ProcessingTime: 0.5,
			}, nil
		},
	}
}

// NewFailingDetector returns a Detector that always returns the given error.
func NewFailingDetector(err error) *Detector {
	return &Detector{
		Name_: "mock-failing",
		CountAllFunc: func(_ context.Context, _ models.DetectionRequest) (models.DetectionResult, error) {
			return models.DetectionResult{}, err
		},
	}
}

// NewTimeoutDetector returns a Detector that blocks until context is cancelled.
func NewTimeoutDetector() *Detector {
	return &Detector{
		Name_: "mock-timeout",
		CountAllFunc: func(ctx context.Context, _ models.DetectionRequest) (models.DetectionResult, error) {
			<-ctx.Done()
			return models.DetectionResult{}, detector.ErrDetectionTimeout
		},
	}
}

// Compile-time check that Detector implements models.Detector.
var _ models.Detector = (*Detector)(nil)
