package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"visionstream/internal/dto"
	"visionstream/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func artifact(name string, kind model.ArtifactKind, ts time.Time, size int64) *model.Artifact {
	return &model.Artifact{
		Filename:  name,
		Kind:      kind,
		Timestamp: ts,
		FilePath:  filepath.Join("static", name),
		FileSize:  size,
	}
}

func TestNew_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := New(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestArtifactRepository_UpsertAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewArtifactRepository(db)
	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	a := artifact("snapshot_20250615_143000.jpg", model.ArtifactSnapshot, ts, 2048)
	id, err := repo.Upsert(a)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, id, a.ID)

	got, err := repo.GetByFilename("snapshot_20250615_143000.jpg")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ArtifactSnapshot, got.Kind)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.True(t, ts.Equal(got.Timestamp))

	missing, err := repo.GetByFilename("nope.jpg")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestArtifactRepository_UpsertReplacesDetections(t *testing.T) {
	db := openTestDB(t)
	artifacts := NewArtifactRepository(db)
	detections := NewDetectionRepository(db)
	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)

	id, err := artifacts.Upsert(artifact("snapshot_20250615_143000.jpg", model.ArtifactSnapshot, ts, 100))
	require.NoError(t, err)
	require.NoError(t, detections.InsertBatch([]model.DetectionRecord{
		{ArtifactID: id, Label: "mask", Attribute: "Happy"},
		{ArtifactID: id, Label: "no mask", Attribute: "Sad"},
	}))

	again, err := artifacts.Upsert(artifact("snapshot_20250615_143000.jpg", model.ArtifactSnapshot, ts, 300))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	recs, err := detections.GetByArtifactID(id)
	require.NoError(t, err)
	assert.Empty(t, recs)

	size, err := artifacts.GetTotalSize()
	require.NoError(t, err)
	assert.Equal(t, int64(300), size)
}

func TestArtifactRepository_FilterAndPaginate(t *testing.T) {
	db := openTestDB(t)
	artifacts := NewArtifactRepository(db)
	detections := NewDetectionRepository(db)
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		kind := model.ArtifactSnapshot
		if i%2 == 1 {
			kind = model.ArtifactAnalysis
		}
		id, err := artifacts.Upsert(artifact(fmt.Sprintf("a%d.jpg", i), kind, base.Add(time.Duration(i)*time.Hour), 10))
		require.NoError(t, err)
		if i < 2 {
			require.NoError(t, detections.InsertBatch([]model.DetectionRecord{
				{ArtifactID: id, Label: "no mask"},
				{ArtifactID: id, Label: "no mask"},
			}))
		}
	}

	all, err := artifacts.GetAll(&dto.ArtifactFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "a4.jpg", all[0].Filename)

	analyses, err := artifacts.GetAll(&dto.ArtifactFilter{Kind: model.ArtifactAnalysis})
	require.NoError(t, err)
	assert.Len(t, analyses, 2)

	labelled, err := artifacts.GetAll(&dto.ArtifactFilter{Label: "no mask"})
	require.NoError(t, err)
	assert.Len(t, labelled, 2)

	count, err := artifacts.GetTotalCount(&dto.ArtifactFilter{Label: "no mask"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	page, err := artifacts.GetAll(&dto.ArtifactFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a2.jpg", page[0].Filename)

	after, err := artifacts.GetTotalCount(&dto.ArtifactFilter{DateAfter: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, after)
}

func TestArtifactRepository_StatsAndDelete(t *testing.T) {
	db := openTestDB(t)
	artifacts := NewArtifactRepository(db)
	detections := NewDetectionRepository(db)
	now := time.Now().UTC()

	id, err := artifacts.Upsert(artifact("analysis_1.jpg", model.ArtifactAnalysis, now, 40))
	require.NoError(t, err)
	_, err = artifacts.Upsert(artifact("snapshot_1.jpg", model.ArtifactSnapshot, now, 60))
	require.NoError(t, err)
	require.NoError(t, detections.InsertBatch([]model.DetectionRecord{
		{ArtifactID: id, Label: "mask", Attribute: "Neutral", X2: 10, Y2: 10, Confidence: 0.9},
	}))

	stats, err := artifacts.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalArtifacts)
	assert.Equal(t, int64(100), stats.TotalSizeBytes)
	assert.Equal(t, 1, stats.PerKind["analysis"])
	assert.Equal(t, 1, stats.LabelCounts["mask"])

	labels, err := detections.GetLabelsByArtifactID(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"mask"}, labels)

	require.NoError(t, artifacts.DeleteByFilename("analysis_1.jpg"))
	require.NoError(t, artifacts.DeleteByFilename("analysis_1.jpg"))

	recs, err := detections.GetByArtifactID(id)
	require.NoError(t, err)
	assert.Empty(t, recs)

	all, err := detections.GetAllLabels()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDetectionRepository_InsertBatchEmpty(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, NewDetectionRepository(db).InsertBatch(nil))
}

func TestArtifactRepository_ConcurrentUpserts(t *testing.T) {
	db := openTestDB(t)
	repo := NewArtifactRepository(db)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := repo.Upsert(artifact(fmt.Sprintf("concurrent_%d.jpg", idx), model.ArtifactSnapshot, time.Now().UTC(), 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := repo.GetTotalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
