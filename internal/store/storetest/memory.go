// Package storetest provides an in-memory store.Store for handler and service tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kiranshivaraju/objcounter/internal/store"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// DefaultTypes mirrors the seeded object types of the initial migration.
var DefaultTypes = []string{"car", "cat", "tree", "dog", "building", "person", "sky", "ground", "hardware"}

// Memory is a goroutine-safe in-memory Store. Err, when set, is returned by every call.
type Memory struct {
	mu      sync.Mutex
	types   []*models.ObjectType
	results map[int64]*models.Result
	nextID  int64
	now     func() time.Time

	Err error
}

func NewMemory(typeNames ...string) *Memory {
	if len(typeNames) == 0 {
		typeNames = DefaultTypes
	}
	m := &Memory{results: map[int64]*models.Result{}, now: time.Now}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range typeNames {
		m.types = append(m.types, &models.ObjectType{
			ID: int64(i + 1), Name: name, CreatedAt: base, UpdatedAt: base,
		})
	}
	return m
}

func (m *Memory) Ping(_ context.Context) error { return m.Err }

func (m *Memory) ListObjectTypes(_ context.Context) ([]*models.ObjectType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*models.ObjectType, 0, len(m.types))
	for _, t := range m.types {
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (m *Memory) GetObjectTypeByName(_ context.Context, name string) (*models.ObjectType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if t := m.typeByName(name); t != nil {
		c := *t
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (m *Memory) CountObjectTypes(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.types), m.Err
}

func (m *Memory) SaveResult(_ context.Context, in models.NewResult) (*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t := m.typeByName(in.ObjectType)
	if t == nil {
		if len(m.types) == 0 {
			return nil, store.ErrNoObjectTypes
		}
		t = m.types[0]
	}
	m.nextID++
	now := m.now().UTC().Add(time.Duration(m.nextID) * time.Millisecond)
	r := &models.Result{
		ID:             m.nextID,
		InputID:        m.nextID,
		ObjectTypeID:   t.ID,
		ObjectType:     t.Name,
		PredictedCount: in.PredictedCount,
		ImagePath:      in.ImagePath,
		Description:    in.Description,
		TotalSegments:  in.TotalSegments,
		ProcessingTime: in.ProcessingTime,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.results[r.ID] = r
	return clone(r), nil
}

func (m *Memory) GetResult(_ context.Context, id int64) (*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	r, ok := m.results[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(r), nil
}

func (m *Memory) UpdateCorrection(_ context.Context, id int64, corrected int, opts ...store.CorrectionOption) (*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	r, ok := m.results[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if params := store.ApplyCorrectionOptions(opts...); params.ObjectType != nil {
		if t := m.typeByName(*params.ObjectType); t != nil {
			r.ObjectTypeID, r.ObjectType = t.ID, t.Name
		}
	}
	c := corrected
	r.CorrectedCount = &c
	r.UpdatedAt = m.now().UTC()
	return clone(r), nil
}

func (m *Memory) ListResults(_ context.Context, filter store.ResultFilter) ([]*models.Result, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}
	var matched []*models.Result
	for _, r := range m.results {
		if filter.ObjectType == "" || filter.ObjectType == "all" || r.ObjectType == filter.ObjectType {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	page, perPage := store.NormalizePage(filter.Page, filter.PerPage)
	start := min((page-1)*perPage, len(matched))
	end := min(start+perPage, len(matched))

	out := []*models.Result{}
	for _, r := range matched[start:end] {
		out = append(out, clone(r))
	}
	return out, len(matched), nil
}

func (m *Memory) DeleteResult(_ context.Context, id int64) (*models.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	r, ok := m.results[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(m.results, id)
	return r, nil
}

func (m *Memory) BulkDelete(_ context.Context, ids []int64) (*store.BulkDeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := &store.BulkDeleteResult{Deleted: []int64{}, ImagePaths: []string{}, Failures: []store.DeleteFailure{}}
	for _, id := range ids {
		r, ok := m.results[id]
		if !ok {
			out.Failures = append(out.Failures, store.DeleteFailure{ID: id, Reason: "Result not found"})
			continue
		}
		delete(m.results, id)
		out.Deleted = append(out.Deleted, id)
		if r.ImagePath != "" {
			out.ImagePaths = append(out.ImagePaths, r.ImagePath)
		}
	}
	return out, nil
}

func (m *Memory) typeByName(name string) *models.ObjectType {
	for _, t := range m.types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func clone(r *models.Result) *models.Result {
	c := *r
	if r.CorrectedCount != nil {
		v := *r.CorrectedCount
		c.CorrectedCount = &v
	}
	return &c
}

var _ store.Store = (*Memory)(nil)
