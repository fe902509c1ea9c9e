package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"time-capsule-app/internal/media"
	"time-capsule-app/internal/models"
	"time-capsule-app/internal/storage"
	apperrors "time-capsule-app/pkg/errors"
)

// fakeMediaStore records uploads and deletes in memory for manager tests
type fakeMediaStore struct {
	blobs      map[string]string // media path -> source file
	deleted    []string
	failDelete bool
	failUpload bool
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{blobs: make(map[string]string)}
}

func (f *fakeMediaStore) Upload(ctx context.Context, path, filePath, contentType string, progressCh chan<- media.UploadProgress) error {
	if f.failUpload {
		return fmt.Errorf("upload failed")
	}
	f.blobs[path] = filePath
	return nil
}

func (f *fakeMediaStore) GetAccessURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if _, ok := f.blobs[path]; !ok {
		return "", fmt.Errorf("blob not found")
	}
	return "https://media.test/" + path + "?signed=1", nil
}

func (f *fakeMediaStore) Delete(ctx context.Context, path string) error {
	if f.failDelete {
		return fmt.Errorf("delete failed")
	}
	delete(f.blobs, path)
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeMediaStore) Head(ctx context.Context, path string) (*s3.HeadObjectOutput, error) {
	if _, ok := f.blobs[path]; !ok {
		return nil, fmt.Errorf("blob not found")
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeMediaStore) TestConnection(ctx context.Context) error {
	return nil
}

// createTempDatabaseForManager creates a temporary SQLite database for manager tests
func createTempDatabaseForManager(t *testing.T) *storage.SQLiteDatabase {
	dbPath := filepath.Join(t.TempDir(), "manager_test.db")

	db, err := storage.NewSQLiteDatabase(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

// sealTestCapsule builds and stores a text capsule created at the given time
func sealTestCapsule(t *testing.T, db storage.Database, id string, createdAt time.Time, viewDuration float64) *models.Capsule {
	remaining := viewDuration
	capsule := &models.Capsule{
		ID:                id,
		Name:              "Lifecycle Test",
		Type:              models.TypeText,
		Content:           "sealed message",
		CreatedAt:         createdAt,
		AvailableAt:       createdAt,
		ExpiresAt:         createdAt.Add(models.CapsuleLifetime),
		ViewDuration:      viewDuration,
		RemainingDuration: &remaining,
	}
	require.NoError(t, db.SaveCapsule(capsule))
	return capsule
}

func TestLifecycleManager_Classify(t *testing.T) {
	db := createTempDatabaseForManager(t)
	lm := NewLifecycleManager(db, nil, clock.NewMock())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	opened := base.Add(time.Hour)

	tests := []struct {
		name    string
		capsule models.Capsule
		now     time.Time
		want    models.LifecycleState
	}{
		{
			name: "before availability",
			capsule: models.Capsule{
				AvailableAt: base.Add(time.Hour),
				ExpiresAt:   base.Add(models.CapsuleLifetime),
			},
			now:  base,
			want: models.StateLocked,
		},
		{
			name: "available and untouched",
			capsule: models.Capsule{
				AvailableAt: base,
				ExpiresAt:   base.Add(models.CapsuleLifetime),
			},
			now:  base.Add(time.Minute),
			want: models.StateUnlocked,
		},
		{
			name: "opened with budget left",
			capsule: models.Capsule{
				AvailableAt:   base,
				ExpiresAt:     base.Add(models.CapsuleLifetime),
				ViewDuration:  30,
				IsOpened:      true,
				FirstOpenedAt: &opened,
			},
			now:  opened.Add(10 * time.Second),
			want: models.StateOpened,
		},
		{
			name: "budget exhausted before the ceiling",
			capsule: models.Capsule{
				AvailableAt:   base,
				ExpiresAt:     base.Add(models.CapsuleLifetime),
				ViewDuration:  30,
				IsOpened:      true,
				FirstOpenedAt: &opened,
			},
			now:  opened.Add(31 * time.Second),
			want: models.StateExpired,
		},
		{
			name: "past the ceiling without ever opening",
			capsule: models.Capsule{
				AvailableAt: base,
				ExpiresAt:   base.Add(models.CapsuleLifetime),
			},
			now:  base.Add(models.CapsuleLifetime + time.Second),
			want: models.StateExpired,
		},
		{
			name: "ceiling wins over a still-locked availability",
			capsule: models.Capsule{
				AvailableAt: base.Add(48 * time.Hour),
				ExpiresAt:   base.Add(models.CapsuleLifetime),
			},
			now:  base.Add(models.CapsuleLifetime + time.Second),
			want: models.StateExpired,
		},
		{
			name: "exactly at the ceiling is not yet expired",
			capsule: models.Capsule{
				AvailableAt: base,
				ExpiresAt:   base.Add(models.CapsuleLifetime),
			},
			now:  base.Add(models.CapsuleLifetime),
			want: models.StateUnlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lm.Classify(&tt.capsule, tt.now))
		})
	}
}

func TestLifecycleManager_Open_AnchorsOnce(t *testing.T) {
	db := createTempDatabaseForManager(t)
	mockClock := clock.NewMock()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mockClock.Set(base)

	lm := NewLifecycleManager(db, nil, mockClock)
	sealTestCapsule(t, db, "anchor-1", base, 30)

	opened, err := lm.Open(context.Background(), "anchor-1")
	require.NoError(t, err)
	require.NotNil(t, opened.FirstOpenedAt)
	assert.True(t, opened.FirstOpenedAt.Equal(base))

	// Resuming ten seconds later keeps the original anchor, so the viewing
	// window keeps draining from the first open
	mockClock.Add(10 * time.Second)
	resumed, err := lm.Open(context.Background(), "anchor-1")
	require.NoError(t, err)
	require.NotNil(t, resumed.FirstOpenedAt)
	assert.True(t, resumed.FirstOpenedAt.Equal(base))
	assert.InDelta(t, 20.0, resumed.RemainingTime(mockClock.Now()), 0.001)
}

func TestLifecycleManager_Open_Locked(t *testing.T) {
	db := createTempDatabaseForManager(t)
	mockClock := clock.NewMock()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mockClock.Set(base)

	lm := NewLifecycleManager(db, nil, mockClock)

	capsule := sealTestCapsule(t, db, "locked-1", base, 30)
	capsule.AvailableAt = base.Add(time.Hour)
	require.NoError(t, db.DeleteCapsule("locked-1"))
	require.NoError(t, db.SaveCapsule(capsule))

	_, err := lm.Open(context.Background(), "locked-1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotYetAvailable))

	// Still locked one second before the threshold
	mockClock.Add(time.Hour - time.Second)
	_, err = lm.Open(context.Background(), "locked-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotYetAvailable))

	// Unlocks exactly at the threshold
	mockClock.Add(time.Second)
	_, err = lm.Open(context.Background(), "locked-1")
	assert.NoError(t, err)
}

func TestLifecycleManager_Open_ExpiredCleansUp(t *testing.T) {
	db := createTempDatabaseForManager(t)
	mockClock := clock.NewMock()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mockClock.Set(base)

	lm := NewLifecycleManager(db, nil, mockClock)
	sealTestCapsule(t, db, "expired-1", base, 30)

	mockClock.Set(base.Add(models.CapsuleLifetime + time.Minute))

	_, err := lm.Open(context.Background(), "expired-1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrAlreadyExpired))

	// Opening an expired capsule converges the store
	_, err = db.GetCapsule("expired-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLifecycleManager_Open_NotFound(t *testing.T) {
	db := createTempDatabaseForManager(t)
	lm := NewLifecycleManager(db, nil, clock.NewMock())

	_, err := lm.Open(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCapsuleNotFound))

	_, err = lm.Open(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidInput))
}

func TestLifecycleManager_ExpireAndDelete_RemovesMediaFirst(t *testing.T) {
	db := createTempDatabaseForManager(t)
	mediaStore := newFakeMediaStore()
	mediaStore.blobs["blob-1.jpg"] = "/tmp/photo.jpg"

	mockClock := clock.NewMock()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mockClock.Set(base)

	lm := NewLifecycleManager(db, mediaStore, mockClock)

	remaining := 30.0
	capsule := &models.Capsule{
		ID:                "media-1",
		Type:              models.TypeImage,
		Content:           "photo.jpg",
		MediaPath:         "blob-1.jpg",
		CreatedAt:         base,
		AvailableAt:       base,
		ExpiresAt:         base.Add(models.CapsuleLifetime),
		ViewDuration:      30,
		RemainingDuration: &remaining,
	}
	require.NoError(t, db.SaveCapsule(capsule))

	require.NoError(t, lm.ExpireAndDelete(context.Background(), capsule))

	assert.Equal(t, []string{"blob-1.jpg"}, mediaStore.deleted)
	_, err := db.GetCapsule("media-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLifecycleManager_ExpireAndDelete_KeepsRecordWhenMediaFails(t *testing.T) {
	db := createTempDatabaseForManager(t)
	mediaStore := newFakeMediaStore()
	mediaStore.failDelete = true

	mockClock := clock.NewMock()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mockClock.Set(base)

	lm := NewLifecycleManager(db, mediaStore, mockClock)

	remaining := 30.0
	capsule := &models.Capsule{
		ID:                "media-2",
		Type:              models.TypeImage,
		Content:           "photo.jpg",
		MediaPath:         "blob-2.jpg",
		CreatedAt:         base,
		AvailableAt:       base,
		ExpiresAt:         base.Add(models.CapsuleLifetime),
		ViewDuration:      30,
		RemainingDuration: &remaining,
	}
	require.NoError(t, db.SaveCapsule(capsule))

	err := lm.ExpireAndDelete(context.Background(), capsule)
	require.Error(t, err)

	// The record stays so a later sweep retries the whole cleanup
	_, err = db.GetCapsule("media-2")
	assert.NoError(t, err)
}

func TestLifecycleManager_ExpireAndDelete_IsIdempotent(t *testing.T) {
	db := createTempDatabaseForManager(t)
	mockClock := clock.NewMock()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mockClock.Set(base)

	lm := NewLifecycleManager(db, newFakeMediaStore(), mockClock)
	capsule := sealTestCapsule(t, db, "twice-1", base, 30)

	require.NoError(t, lm.ExpireAndDelete(context.Background(), capsule))
	assert.NoError(t, lm.ExpireAndDelete(context.Background(), capsule))
}
