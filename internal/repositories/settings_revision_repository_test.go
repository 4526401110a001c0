package repositories_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharazmi/internal/database"
	"kharazmi/internal/models"
	"kharazmi/internal/repositories"
)

func newRevisionRepo(t *testing.T) repositories.SettingsRevisionRepository {
	t.Helper()
	db, err := database.Init(database.Config{Path: filepath.Join(t.TempDir(), "journal.db")})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return repositories.NewSettingsRevisionRepository(db)
}

func TestSettingsRevisionRepository_LatestEmpty(t *testing.T) {
	repo := newRevisionRepo(t)

	rev, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rev)
}

func TestSettingsRevisionRepository_CreateAndList(t *testing.T) {
	repo := newRevisionRepo(t)
	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		err := repo.Create(ctx, &models.SettingsRevision{
			Revision:        i,
			Source:          models.RevisionSourceApply,
			ChangedSections: "websocket",
			Endpoint:        "ws://127.0.0.1:8765",
			CreatedAt:       time.Now(),
		})
		require.NoError(t, err)
	}

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(3), latest.Revision)

	revs, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, uint64(3), revs[0].Revision)
	assert.Equal(t, uint64(2), revs[1].Revision)

	revs, err = repo.List(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, uint64(1), revs[0].Revision)
}

func TestSettingsRevisionRepository_RevisionIsUnique(t *testing.T) {
	repo := newRevisionRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.SettingsRevision{Revision: 1, Source: models.RevisionSourceApply, CreatedAt: time.Now()}))
	err := repo.Create(ctx, &models.SettingsRevision{Revision: 1, Source: models.RevisionSourceReset, CreatedAt: time.Now()})
	assert.Error(t, err)
}
