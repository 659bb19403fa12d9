// Package counting coordinates a count request end to end: image storage,
// detection and persistence of the prediction.
package counting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/objcounter/internal/analysis"
	"github.com/kiranshivaraju/objcounter/internal/cache"
	"github.com/kiranshivaraju/objcounter/internal/store"
	"github.com/kiranshivaraju/objcounter/internal/upload"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// ErrObjectTypeRequired is returned by Count when no object type is named.
var ErrObjectTypeRequired = errors.New("object type is required")

// UnknownObjectTypeError reports a requested object type that is not in the
// catalogue, together with the names that are.
type UnknownObjectTypeError struct {
	Name      string
	Available []string
}

func (e *UnknownObjectTypeError) Error() string {
	return fmt.Sprintf("invalid object type: %s", e.Name)
}

// CountParams is one validated count request. ObjectType is only read by Count.
type CountParams struct {
	Filename    string
	Image       []byte
	Prompt      string
	Description string
	ObjectType  string
}

// Service implements the backend's counting operations.
type Service struct {
	detector       models.Detector
	store          store.Store
	cache          cache.Cache
	uploads        *upload.Store
	timeout        time.Duration
	objectTypesTTL time.Duration
}

// NewService creates a new Service.
func NewService(d models.Detector, st store.Store, ca cache.Cache, uploads *upload.Store, timeout, objectTypesTTL time.Duration) *Service {
	return &Service{
		detector:       d,
		store:          st,
		cache:          ca,
		uploads:        uploads,
		timeout:        timeout,
		objectTypesTTL: objectTypesTTL,
	}
}

// DetectorName reports the configured detector.
func (s *Service) DetectorName() string {
	return s.detector.Name()
}

// CountAll stores the image, runs detection and persists the prediction
// under the most frequent object type.
func (s *Service) CountAll(ctx context.Context, p CountParams) (*models.CountResponse, error) {
	p.ObjectType = ""
	run, err := s.process(ctx, p, func(r models.DetectionResult) (string, int) {
		primary, _ := r.Primary()
		return primary.Type, r.TotalObjects()
	})
	if err != nil {
		return nil, err
	}

	return &models.CountResponse{
		Success:        true,
		ResultID:       run.saved.ID,
		Objects:        run.result.Objects,
		TotalObjects:   run.result.TotalObjects(),
		TotalSegments:  run.result.TotalSegments,
		ProcessingTime: run.result.ProcessingTime,
		ImagePath:      "uploads/" + run.image,
		CreatedAt:      run.saved.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// Count counts a single named object type. The type must exist in the
// catalogue; otherwise an *UnknownObjectTypeError lists the valid names and
// nothing is stored.
func (s *Service) Count(ctx context.Context, p CountParams) (*models.TypeCountResponse, error) {
	if p.ObjectType == "" {
		return nil, ErrObjectTypeRequired
	}
	if err := s.requireObjectType(ctx, p.ObjectType); err != nil {
		return nil, err
	}

	run, err := s.process(ctx, p, func(r models.DetectionResult) (string, int) {
		return p.ObjectType, r.CountOf(p.ObjectType)
	})
	if err != nil {
		return nil, err
	}

	return &models.TypeCountResponse{
		Success:        true,
		ResultID:       run.saved.ID,
		ObjectType:     run.saved.ObjectType,
		PredictedCount: run.saved.PredictedCount,
		TotalSegments:  run.result.TotalSegments,
		ProcessingTime: run.result.ProcessingTime,
		ImagePath:      "uploads/" + run.image,
		CreatedAt:      run.saved.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

type processed struct {
	image  string
	result models.DetectionResult
	saved  *models.Result
}

// process stores the image, runs detection and persists the prediction that
// pick selects. The stored file is removed again if detection or
// persistence fails.
func (s *Service) process(ctx context.Context, p CountParams, pick func(models.DetectionResult) (string, int)) (*processed, error) {
	name, err := s.uploads.Save(p.Filename, p.Image)
	if err != nil {
		return nil, err
	}

	cleanup := func() {
		if err := s.uploads.Remove(name); err != nil {
			slog.Warn("removing upload after failure", "image", name, "error", err)
		}
	}

	prompt := p.Prompt
	if prompt == "" {
		prompt = models.DefaultPrompt
	}

	detectCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.detector.CountAll(detectCtx, models.DetectionRequest{
		Image:      p.Image,
		Filename:   p.Filename,
		Prompt:     prompt,
		ObjectType: p.ObjectType,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("detecting objects: %w", err)
	}
	if result.Objects == nil {
		result.Objects = []models.ObjectCount{}
	}

	objectType, predicted := pick(result)
	saved, err := s.store.SaveResult(ctx, models.NewResult{
		ImagePath:      name,
		Description:    p.Description,
		ObjectType:     objectType,
		PredictedCount: predicted,
		TotalSegments:  result.TotalSegments,
		ProcessingTime: result.ProcessingTime,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("saving result: %w", err)
	}

	slog.Info("image counted",
		"result_id", saved.ID,
		"detector", s.detector.Name(),
		"object_type", objectType,
		"predicted_count", predicted,
		"object_types", len(result.Objects),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &processed{image: name, result: result, saved: saved}, nil
}

func (s *Service) requireObjectType(ctx context.Context, name string) error {
	_, err := s.store.GetObjectTypeByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("looking up object type: %w", err)
	}

	types, err := s.ObjectTypes(ctx)
	if err != nil {
		return err
	}
	available := make([]string, 0, len(types))
	for _, t := range types {
		available = append(available, t.Name)
	}
	return &UnknownObjectTypeError{Name: name, Available: available}
}

// ObjectTypes returns the configured object types, served from the cache
// when possible. Cache failures fall through to the store.
func (s *Service) ObjectTypes(ctx context.Context) ([]*models.ObjectType, error) {
	if raw, found, err := s.cache.Get(ctx, cache.ObjectTypesKey()); err == nil && found {
		var types []*models.ObjectType
		if err := json.Unmarshal(raw, &types); err == nil {
			return types, nil
		}
	}

	types, err := s.store.ListObjectTypes(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(types); err == nil {
		if err := s.cache.Set(ctx, cache.ObjectTypesKey(), data, s.objectTypesTTL); err != nil {
			slog.Warn("caching object types failed", "error", err)
		}
	}
	return types, nil
}

// Correct records the user's count for a result.
func (s *Service) Correct(ctx context.Context, id int64, corrected int, objectType string) (*models.Result, error) {
	if corrected < 0 {
		return nil, fmt.Errorf("corrected count must be non-negative, got %d", corrected)
	}
	var opts []store.CorrectionOption
	if objectType != "" {
		opts = append(opts, store.WithObjectType(objectType))
	}
	return s.store.UpdateCorrection(ctx, id, corrected, opts...)
}

func (s *Service) Results(ctx context.Context, filter store.ResultFilter) ([]*models.Result, int, error) {
	return s.store.ListResults(ctx, filter)
}

// Result loads one result and scores it when feedback exists.
func (s *Service) Result(ctx context.Context, id int64) (*models.ResultDetail, error) {
	r, err := s.store.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &models.ResultDetail{Result: r, HasFeedback: r.HasFeedback()}
	if r.CorrectedCount != nil {
		m := analysis.Score(r.PredictedCount, *r.CorrectedCount)
		legacy := analysis.LegacyAccuracy(r.PredictedCount, *r.CorrectedCount)
		diff := r.PredictedCount - *r.CorrectedCount
		if diff < 0 {
			diff = -diff
		}
		d.PerformanceMetrics = &m
		d.F1Score, d.Precision, d.Recall = &m.F1Score, &m.Precision, &m.Recall
		d.PerformanceExplanation = &m.Explanation
		d.Accuracy, d.Difference = &legacy, &diff
	}
	return d, nil
}

// Delete removes a result and its stored image.
func (s *Service) Delete(ctx context.Context, id int64) error {
	r, err := s.store.DeleteResult(ctx, id)
	if err != nil {
		return err
	}
	s.removeImage(r.ImagePath)
	return nil
}

// BulkDelete removes every existing result in ids together with its image.
// DeletedFiles lists the images actually removed from disk.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (*store.BulkDeleteResult, []string, error) {
	res, err := s.store.BulkDelete(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	files := []string{}
	for _, p := range res.ImagePaths {
		if s.removeImage(p) {
			files = append(files, p)
		}
	}
	return res, files, nil
}

func (s *Service) removeImage(name string) bool {
	if name == "" {
		return false
	}
	if _, err := s.uploads.Resolve(name); err != nil {
		if !errors.Is(err, upload.ErrFileNotFound) {
			slog.Warn("stored image path rejected", "image", name, "error", err)
		}
		return false
	}
	if err := s.uploads.Remove(name); err != nil {
		slog.Warn("could not delete image file", "image", name, "error", err)
		return false
	}
	return true
}
