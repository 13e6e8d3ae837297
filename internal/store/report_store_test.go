package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/plantdoc/internal/db"
	"github.com/vbonduro/plantdoc/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func sampleReport(plant string) *domain.Report {
	return &domain.Report{
		ClientID:  "client-1",
		PlantName: plant,
		Findings:  "Yellowing lower leaves",
		Questions: []string{"How often do you water?", "How much sun?"},
		Answers:   "Daily, full sun",
		Report:    "## Diagnosis\nEarly blight.",
		PhotoKey:  "report/abc.jpg",
		MimeType:  "image/jpeg",
	}
}

func TestReportStoreCreate(t *testing.T) {
	store := NewReportStore(openTestDB(t))
	ctx := context.Background()

	r, err := store.Create(ctx, sampleReport("Tomato"))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.NotZero(t, r.ID)
	assert.Equal(t, "client-1", r.ClientID)
	assert.Equal(t, "Tomato", r.PlantName)
	assert.Equal(t, []string{"How often do you water?", "How much sun?"}, r.Questions)
	assert.Equal(t, "Daily, full sun", r.Answers)
	assert.Equal(t, "## Diagnosis\nEarly blight.", r.Report)
	assert.Equal(t, "report/abc.jpg", r.PhotoKey)
	assert.False(t, r.CompletedAt.IsZero())
}

func TestReportStoreCreateWithoutQuestions(t *testing.T) {
	store := NewReportStore(openTestDB(t))

	in := sampleReport("Basil")
	in.Questions = nil
	r, err := store.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, r.Questions)
}

func TestReportStoreGetByIDMissing(t *testing.T) {
	store := NewReportStore(openTestDB(t))

	r, err := store.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestReportStoreListNewestFirst(t *testing.T) {
	store := NewReportStore(openTestDB(t))
	ctx := context.Background()

	for _, plant := range []string{"Tomato", "Basil", "Monstera"} {
		_, err := store.Create(ctx, sampleReport(plant))
		require.NoError(t, err)
	}

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Monstera", all[0].PlantName)
	assert.Equal(t, "Tomato", all[2].PlantName)

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "Basil", limited[1].PlantName)
}

func TestReportStoreDelete(t *testing.T) {
	store := NewReportStore(openTestDB(t))
	ctx := context.Background()

	created, err := store.Create(ctx, sampleReport("Tomato"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))

	retrieved, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, retrieved)

	assert.Error(t, store.Delete(ctx, created.ID))
}
