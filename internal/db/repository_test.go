// Package db tests for repository operations.
package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/models"
)

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	database, err := Open(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(database.DB)
	t.Cleanup(func() {
		repo.Close()
		database.Close()
	})
	return repo
}

func TestGeoCache_roundTrip(t *testing.T) {
	repo := setupRepo(t)

	_, ok, err := repo.GetGeoInfo("200.1.2.3")
	require.NoError(t, err)
	assert.False(t, ok)

	info := models.GeoInfo{Query: "200.1.2.3", Status: "success", City: "Recife", Lat: -8.05, Mobile: true}
	require.NoError(t, repo.PutGeoInfo(info))
	info.City = "Olinda"
	require.NoError(t, repo.PutGeoInfo(info))

	got, ok, err := repo.GetGeoInfo("200.1.2.3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Olinda", got.City)
	assert.True(t, got.Mobile)

	assert.True(t, apperrors.Is(repo.PutGeoInfo(models.GeoInfo{}), apperrors.ErrInvalid))
}

func TestVerificationHistory(t *testing.T) {
	repo := setupRepo(t)
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	report := &models.VerificationReport{
		RunID:        "run-1",
		Folder:       "/evidence",
		ManifestPath: "/evidence/hashes.txt",
		Algorithm:    models.SHA256,
		HashesCount:  2,
		StartedAt:    started,
	}
	require.NoError(t, repo.CreateRun(report))

	report.Files = []models.FileReport{
		{Path: "/evidence/b.zip", Name: "b.zip", Classification: models.Collision, ExpectedHash: "aa", ComputedHash: "bb"},
		{Path: "/evidence/a.zip", Name: "a.zip", Classification: models.Verified, ExpectedHash: "cc", ComputedHash: "cc"},
	}
	for _, f := range report.Files {
		require.NoError(t, repo.AddFileResult(report.RunID, f))
	}
	report.FinishedAt = started.Add(time.Minute)
	require.NoError(t, repo.FinishRun(report, "# report"))

	runs, err := repo.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].VerifiedFiles)
	assert.Equal(t, 1, runs[0].Collisions)
	require.NotNil(t, runs[0].FinishedAt)

	md, err := repo.GetRunReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, "# report", md)

	files, err := repo.GetRunFiles("run-1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.zip", files[0].Name)

	_, err = repo.GetRunReport("missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	assert.True(t, apperrors.Is(repo.FinishRun(&models.VerificationReport{RunID: "nope"}, ""), apperrors.ErrNotFound))
}
