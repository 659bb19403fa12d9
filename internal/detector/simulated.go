package detector

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// countRange is an inclusive [Min, Max] range of simulated counts.
type countRange struct {
	Min, Max int
}

// Catalogue lists the object types the simulated detector can report,
// with the count range each one is drawn from.
var Catalogue = map[string]countRange{
	"person":     {1, 6},
	"car":        {1, 5},
	"bus":        {1, 3},
	"bicycle":    {1, 4},
	"motorcycle": {1, 3},
	"dog":        {1, 3},
	"cat":        {1, 3},
	"bird":       {1, 8},
	"tree":       {2, 9},
	"building":   {1, 4},
	"road":       {1, 1},
	"sky":        {1, 1},
}

// uncataloguedRange applies to requested types missing from Catalogue.
var uncataloguedRange = countRange{1, 3}

// catalogueOrder fixes iteration order so a seeded source is reproducible.
var catalogueOrder = []string{
	"person", "car", "bus", "bicycle", "motorcycle", "dog",
	"cat", "bird", "tree", "building", "road", "sky",
}

// Simulated satisfies models.Detector without running inference. After a fixed
// delay it reports 1-4 object types with counts drawn from Catalogue.
type Simulated struct {
	delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated returns a Simulated detector seeded from the runtime source.
func NewSimulated(delay time.Duration) *Simulated {
	return NewSimulatedWithSource(delay, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewSimulatedWithSource is NewSimulated with an explicit random source.
func NewSimulatedWithSource(delay time.Duration, src rand.Source) *Simulated {
	return &Simulated{delay: delay, rng: rand.New(src)}
}

func (s *Simulated) Name() string { return "mock" }

func (s *Simulated) CountAll(ctx context.Context, req models.DetectionRequest) (models.DetectionResult, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.DetectionResult{}, ErrDetectionTimeout
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ObjectType != "" {
		r, ok := Catalogue[req.ObjectType]
		if !ok {
			r = uncataloguedRange
		}
		return models.DetectionResult{
			Objects:        []models.ObjectCount{{Type: req.ObjectType, Count: s.draw(r)}},
			TotalSegments:  5 + s.rng.IntN(15),
			ProcessingTime: 2 + s.rng.Float64()*5,
		}, nil
	}

	picks := s.rng.Perm(len(catalogueOrder))[:1+s.rng.IntN(4)]
	objects := make([]models.ObjectCount, 0, len(picks))
	for _, i := range picks {
		name := catalogueOrder[i]
		r := Catalogue[name]
		objects = append(objects, models.ObjectCount{
			Type:  name,
			Count: s.draw(r),
		})
	}

	return models.DetectionResult{
		Objects:        objects,
		TotalSegments:  5 + s.rng.IntN(15),
		ProcessingTime: 2 + s.rng.Float64()*5,
	}, nil
}

func (s *Simulated) draw(r countRange) int {
	return r.Min + s.rng.IntN(r.Max-r.Min+1)
}

var _ models.Detector = (*Simulated)(nil)
