package project

import (
	"context"
	"sync"
	"testing"
	"time"

	"dublab/internal/database"
	"dublab/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewStore(&database.DB{DB: sqlDB}), mock, func() { sqlDB.Close() }
}

func TestAppendVersionInsertsOnly(t *testing.T) {
	store, mock, done := newStore(t)
	defer done()

	rec := models.VersionRecord{
		ID:        uuid.New(),
		ProjectID: uuid.New(),
		Kind:      models.VersionVoiceover,
		Asset: models.MediaAsset{
			Key:             "outputs/x/final.mp4",
			DurationSeconds: 12.0,
			Kind:            models.AssetVideo,
		},
		LanguageCode: "en",
		CreatedAt:    time.Now(),
	}

	mock.ExpectExec(`INSERT INTO versions`).
		WithArgs(rec.ID, rec.ProjectID, string(rec.Kind), "en", "", "",
			rec.Asset.Key, string(rec.Asset.Kind), 12.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.AppendVersion(context.Background(), rec); err != nil {
		t.Fatalf("AppendVersion returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unfulfilled expectations: %v", err)
	}
}

func TestDeleteVersionRefusesOriginal(t *testing.T) {
	store, mock, done := newStore(t)
	defer done()

	projectID := uuid.New()
	versionID := uuid.New()

	// The delete is guarded by kind <> 'original'; zero rows affected means
	// the row was the original or absent, and both are errors.
	mock.ExpectExec(`DELETE FROM versions WHERE id = \$1 AND project_id = \$2 AND kind <> \$3`).
		WithArgs(versionID, projectID, string(models.VersionOriginal)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteVersion(context.Background(), projectID, versionID); err == nil {
		t.Fatal("expected error when deleting the original version")
	}
}

func TestReplaceCaptionSetUpserts(t *testing.T) {
	store, mock, done := newStore(t)
	defer done()

	projectID := uuid.New()
	set := models.CaptionSet{
		LanguageCode: "fr",
		Segments: []models.CaptionSegment{
			{StartSeconds: 0, EndSeconds: 5, Text: "bonjour"},
		},
	}

	mock.ExpectExec(`INSERT INTO caption_sets .* ON CONFLICT \(project_id\) DO UPDATE`).
		WithArgs(projectID, "fr", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.ReplaceCaptionSet(context.Background(), projectID, set); err != nil {
		t.Fatalf("ReplaceCaptionSet returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unfulfilled expectations: %v", err)
	}
}

func TestLocksSerializeSameProject(t *testing.T) {
	locks := NewLocks()
	projectID := uuid.New()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(projectID)
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected serialized access, saw %d concurrent holders", maxActive)
	}
}

func TestLocksIndependentProjects(t *testing.T) {
	locks := NewLocks()
	a := locks.Lock(uuid.New())
	defer a()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock(uuid.New())
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different projects must not block each other")
	}
}
