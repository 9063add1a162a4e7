package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")
	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))
	return NewRepo(db)
}

func TestRecordAndPriorSubmissions(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	repo := newTestRepo(t)

	prior, err := repo.PriorSubmissions(ctx, "/tmp/p-1.csv")
	require.NoError(t, err)
	require.Empty(t, prior)

	id, err := repo.Record(ctx, Submission{
		PreviewURL:   "/tmp/p-1.csv",
		DataSourceID: "ds-1",
		Filename:     "jan.csv",
		DateFormat:   "02/01/2006",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	prior, err = repo.PriorSubmissions(ctx, "/tmp/p-1.csv")
	require.NoError(t, err)
	require.Len(t, prior, 1)
	require.Equal(t, OutcomeSubmitted, prior[0].Outcome)
	require.Equal(t, "jan.csv", prior[0].Filename)
	require.Nil(t, prior[0].ImportID)

	// a different preview url is a different file
	other, err := repo.PriorSubmissions(ctx, "/tmp/p-2.csv")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestSetOutcome(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Record(ctx, Submission{PreviewURL: "/tmp/p.csv", DataSourceID: "ds-1", Filename: "f.csv", DateFormat: "2006-01-02"})
	require.NoError(t, err)

	importID := "imp-9"
	require.NoError(t, repo.SetOutcome(ctx, id, OutcomeAccepted, &importID))

	subs, err := repo.PriorSubmissions(ctx, "/tmp/p.csv")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, OutcomeAccepted, subs[0].Outcome)
	require.NotNil(t, subs[0].ImportID)
	require.Equal(t, "imp-9", *subs[0].ImportID)
}

func TestRecentOrderAndLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	for i := 0; i < 3; i++ {
		_, err := repo.Record(ctx, Submission{
			PreviewURL:   "/tmp/p.csv",
			DataSourceID: "ds-1",
			Filename:     "f.csv",
			DateFormat:   "2006-01-02",
		})
		require.NoError(t, err)
	}

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
}

func TestResubmissionIsVisible(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)

	for i := 0; i < 2; i++ {
		_, err := repo.Record(ctx, Submission{PreviewURL: "/tmp/dup.csv", DataSourceID: "ds-1", Filename: "dup.csv", DateFormat: "2006-01-02"})
		require.NoError(t, err)
	}

	subs, err := repo.PriorSubmissions(ctx, "/tmp/dup.csv")
	require.NoError(t, err)
	require.Len(t, subs, 2, "both submissions of the same preview must be journaled")
}
