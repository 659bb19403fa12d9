package counting_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kiranshivaraju/objcounter/internal/cache"
	"github.com/kiranshivaraju/objcounter/internal/counting"
	"github.com/kiranshivaraju/objcounter/internal/detector"
	"github.com/kiranshivaraju/objcounter/internal/detector/mock"
	"github.com/kiranshivaraju/objcounter/internal/store"
	"github.com/kiranshivaraju/objcounter/internal/store/storetest"
	"github.com/kiranshivaraju/objcounter/internal/upload"
	"github.com/kiranshivaraju/objcounter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *counting.Service
	store *storetest.Memory
	cache *cache.RedisCache
	redis *miniredis.Miniredis
	dir   string
}

func newFixture(t *testing.T, d models.Detector) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })

	dir := t.TempDir()
	st := storetest.NewMemory()
	svc := counting.NewService(d, st, rc, upload.NewStore(dir, 1<<20), time.Second, time.Minute)
	return &fixture{svc: svc, store: st, cache: rc, redis: mr, dir: dir}
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// --- CountAll ---

func TestCountAll_Success(t *testing.T) {
	f := newFixture(t, mock.NewDetector(
		models.ObjectCount{Type: "car", Count: 2},
		models.ObjectCount{Type: "tree", Count: 5},
	))

	resp, err := f.svc.CountAll(context.Background(), counting.CountParams{
		Filename:    "street.png",
		Image:       pngImage(t),
		Description: "corner",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 7, resp.TotalObjects)
	assert.Len(t, resp.Objects, 2)
	assert.Regexp(t, `^uploads/[0-9a-f-]{36}_street\.png$`, resp.ImagePath)
	assert.NotEmpty(t, resp.CreatedAt)

	saved, err := f.store.GetResult(context.Background(), resp.ResultID)
	require.NoError(t, err)
	assert.Equal(t, "tree", saved.ObjectType, "primary type is the most frequent")
	assert.Equal(t, 7, saved.PredictedCount)
	assert.Equal(t, "corner", saved.Description)
	assert.Len(t, storedFiles(t, f.dir), 1)
}

func TestCountAll_DefaultPrompt(t *testing.T) {
	var gotPrompt string
	d := &mock.Detector{CountAllFunc: func(_ context.Context, req models.DetectionRequest) (models.DetectionResult, error) {
		gotPrompt = req.Prompt
		return models.DetectionResult{}, nil
	}}
	f := newFixture(t, d)

	resp, err := f.svc.CountAll(context.Background(), counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPrompt, gotPrompt)
	assert.NotNil(t, resp.Objects)
	assert.Zero(t, resp.TotalObjects)

	saved, err := f.store.GetResult(context.Background(), resp.ResultID)
	require.NoError(t, err)
	assert.Equal(t, "car", saved.ObjectType, "nothing detected falls back to the first type")
}

func TestCountAll_InvalidUpload(t *testing.T) {
	d := mock.NewDetector()
	f := newFixture(t, d)

	_, err := f.svc.CountAll(context.Background(), counting.CountParams{Filename: "notes.txt", Image: []byte("hi")})
	assert.ErrorIs(t, err, upload.ErrInvalidType)
	assert.Zero(t, d.Calls)
}

func TestCountAll_DetectorFailureRemovesUpload(t *testing.T) {
	f := newFixture(t, mock.NewFailingDetector(detector.ErrDetectorUnavailable))

	_, err := f.svc.CountAll(context.Background(), counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, detector.ErrDetectorUnavailable)
	assert.Empty(t, storedFiles(t, f.dir))
}

func TestCountAll_DetectorTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	defer rc.Close()

	svc := counting.NewService(mock.NewTimeoutDetector(), storetest.NewMemory(), rc,
		upload.NewStore(t.TempDir(), 1<<20), 20*time.Millisecond, time.Minute)

	_, err = svc.CountAll(context.Background(), counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	assert.ErrorIs(t, err, detector.ErrDetectionTimeout)
}

func TestCountAll_StoreFailureRemovesUpload(t *testing.T) {
	f := newFixture(t, mock.NewDetector(models.ObjectCount{Type: "dog", Count: 1}))
	f.store.Err = errors.New("db down")

	_, err := f.svc.CountAll(context.Background(), counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving result")
	assert.Empty(t, storedFiles(t, f.dir))
}

// --- ObjectTypes ---

// --- Count ---

func TestCount_SingleType(t *testing.T) {
	var got models.DetectionRequest
	d := &mock.Detector{
		Name_: "mock",
		CountAllFunc: func(_ context.Context, req models.DetectionRequest) (models.DetectionResult, error) {
			got = req
			return models.DetectionResult{
				Objects:        []models.ObjectCount{{Type: "dog", Count: 2}, {Type: "car", Count: 9}},
				TotalSegments:  6,
				ProcessingTime: 1.25,
			}, nil
		},
	}
	f := newFixture(t, d)

	resp, err := f.svc.Count(context.Background(), counting.CountParams{
		Filename:    "park.png",
		Image:       pngImage(t),
		ObjectType:  "dog",
		Description: "morning walk",
	})
	require.NoError(t, err)

	assert.Equal(t, "dog", got.ObjectType)
	assert.True(t, resp.Success)
	assert.Equal(t, "dog", resp.ObjectType)
	assert.Equal(t, 2, resp.PredictedCount, "only the requested type is counted")
	assert.Equal(t, 6, resp.TotalSegments)
	assert.InDelta(t, 1.25, resp.ProcessingTime, 0.001)
	assert.Regexp(t, `^uploads/[0-9a-f-]{36}_park\.png$`, resp.ImagePath)

	saved, err := f.store.GetResult(context.Background(), resp.ResultID)
	require.NoError(t, err)
	assert.Equal(t, "dog", saved.ObjectType)
	assert.Equal(t, 2, saved.PredictedCount)
	assert.Equal(t, "morning walk", saved.Description)
}

func TestCount_TypeNotDetected(t *testing.T) {
	f := newFixture(t, mock.NewDetector(models.ObjectCount{Type: "car", Count: 4}))

	resp, err := f.svc.Count(context.Background(), counting.CountParams{
		Filename: "a.png", Image: pngImage(t), ObjectType: "cat",
	})
	require.NoError(t, err)
	assert.Zero(t, resp.PredictedCount)
}

func TestCount_UnknownType(t *testing.T) {
	d := mock.NewDetector()
	f := newFixture(t, d)

	_, err := f.svc.Count(context.Background(), counting.CountParams{
		Filename: "a.png", Image: pngImage(t), ObjectType: "unicorn",
	})

	var unknown *counting.UnknownObjectTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "unicorn", unknown.Name)
	assert.ElementsMatch(t, storetest.DefaultTypes, unknown.Available)
	assert.Zero(t, d.Calls)
	assert.Empty(t, storedFiles(t, f.dir), "nothing is stored for an unknown type")
}

func TestCount_RequiresObjectType(t *testing.T) {
	f := newFixture(t, mock.NewDetector())

	_, err := f.svc.Count(context.Background(), counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	assert.ErrorIs(t, err, counting.ErrObjectTypeRequired)
}

func TestCount_StoreDown(t *testing.T) {
	f := newFixture(t, mock.NewDetector())
	f.store.Err = errors.New("db down")

	_, err := f.svc.Count(context.Background(), counting.CountParams{
		Filename: "a.png", Image: pngImage(t), ObjectType: "car",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "looking up object type")
}

func TestObjectTypes_CachesInRedis(t *testing.T) {
	f := newFixture(t, mock.NewDetector())
	ctx := context.Background()

	types, err := f.svc.ObjectTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(storetest.DefaultTypes))
	assert.True(t, f.redis.Exists(cache.ObjectTypesKey()))

	// served from cache even when the store is down
	f.store.Err = errors.New("db down")
	types, err = f.svc.ObjectTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "car", types[0].Name)
}

func TestObjectTypes_CacheDownFallsThrough(t *testing.T) {
	f := newFixture(t, mock.NewDetector())
	f.redis.Close()

	types, err := f.svc.ObjectTypes(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, types)
}

// --- Correct / Result ---

func TestCorrectAndScore(t *testing.T) {
	f := newFixture(t, mock.NewDetector(models.ObjectCount{Type: "cat", Count: 6}))
	ctx := context.Background()

	resp, err := f.svc.CountAll(ctx, counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	require.NoError(t, err)

	detail, err := f.svc.Result(ctx, resp.ResultID)
	require.NoError(t, err)
	assert.False(t, detail.HasFeedback)
	assert.Nil(t, detail.F1Score)

	updated, err := f.svc.Correct(ctx, resp.ResultID, 4, "")
	require.NoError(t, err)
	require.NotNil(t, updated.CorrectedCount)
	assert.Equal(t, 4, *updated.CorrectedCount)

	detail, err = f.svc.Result(ctx, resp.ResultID)
	require.NoError(t, err)
	require.NotNil(t, detail.PerformanceMetrics)
	assert.True(t, detail.HasFeedback)
	assert.InDelta(t, 80.0, *detail.F1Score, 0.001)
	assert.InDelta(t, 50.0, *detail.Accuracy, 0.001)
	assert.Equal(t, 2, *detail.Difference)
	assert.Equal(t, 2, detail.PerformanceMetrics.FalsePositives)
}

func TestCorrect_WithObjectType(t *testing.T) {
	f := newFixture(t, mock.NewDetector(models.ObjectCount{Type: "cat", Count: 1}))
	ctx := context.Background()
	resp, err := f.svc.CountAll(ctx, counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	require.NoError(t, err)

	updated, err := f.svc.Correct(ctx, resp.ResultID, 1, "dog")
	require.NoError(t, err)
	assert.Equal(t, "dog", updated.ObjectType)
}

func TestCorrect_Negative(t *testing.T) {
	f := newFixture(t, mock.NewDetector())
	_, err := f.svc.Correct(context.Background(), 1, -1, "")
	assert.Error(t, err)
}

func TestCorrect_NotFound(t *testing.T) {
	f := newFixture(t, mock.NewDetector())
	_, err := f.svc.Correct(context.Background(), 99, 1, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Delete ---

func TestDelete_RemovesImage(t *testing.T) {
	f := newFixture(t, mock.NewDetector(models.ObjectCount{Type: "car", Count: 1}))
	ctx := context.Background()
	resp, err := f.svc.CountAll(ctx, counting.CountParams{Filename: "a.png", Image: pngImage(t)})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, resp.ResultID))
	assert.Empty(t, storedFiles(t, f.dir))

	assert.ErrorIs(t, f.svc.Delete(ctx, resp.ResultID), store.ErrNotFound)
}

func TestBulkDelete(t *testing.T) {
	f := newFixture(t, mock.NewDetector(models.ObjectCount{Type: "car", Count: 1}))
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 2; i++ {
		resp, err := f.svc.CountAll(ctx, counting.CountParams{Filename: "a.png", Image: pngImage(t)})
		require.NoError(t, err)
		ids = append(ids, resp.ResultID)
	}
	// one image already gone from disk
	first, err := f.store.GetResult(ctx, ids[0])
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, first.ImagePath)))

	res, files, err := f.svc.BulkDelete(ctx, append(ids, 404))
	require.NoError(t, err)
	assert.Equal(t, ids, res.Deleted)
	assert.Len(t, res.Failures, 1)
	assert.Len(t, files, 1)
	assert.Empty(t, storedFiles(t, f.dir))
}
