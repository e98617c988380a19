package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/kv"
)

func TestGrievanceRepositoryIndexesNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewGrievanceRepository(store)

	first := &models.Grievance{ID: "g1", Title: "Fees", SubmitterID: "u1", Status: models.StatusPending}
	second := &models.Grievance{ID: "g2", Title: "WiFi", SubmitterID: "anonymous", Status: models.StatusPending}
	require.NoError(t, repo.Create(ctx, first, true))
	require.NoError(t, repo.Create(ctx, second, false))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "g2", all[0].ID)
	assert.Equal(t, "g1", all[1].ID)

	mine, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "g1", mine[0].ID)

	none, err := repo.ListByUser(ctx, "anonymous")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGrievanceRepositorySkipsMissingDocuments(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewGrievanceRepository(store)

	require.NoError(t, repo.Create(ctx, &models.Grievance{ID: "g1"}, false))
	require.NoError(t, store.PushFront(ctx, allGrievancesKey, "ghost"))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "g1", all[0].ID)

	_, err = repo.FindByID(ctx, "ghost")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestGrievanceRepositorySaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewGrievanceRepository(kv.NewMemoryStore())
	g := &models.Grievance{ID: "g1", Status: models.StatusPending, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, g, false))

	g.Status = models.StatusResolved
	require.NoError(t, repo.Save(ctx, g))

	loaded, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, loaded.Status)
}

func TestDepartmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDepartmentRepository(kv.NewMemoryStore())

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	require.NoError(t, repo.ReplaceAll(ctx, []models.Department{{ID: "d1", Name: "Accounts"}, {ID: "d2", Name: "Security"}}))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Accounts", list[0].Name)
}

func TestAILogRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewAILogRepository(kv.NewMemoryStore())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &models.AILog{ID: "a", GrievanceID: "g1", Timestamp: base}))
	require.NoError(t, repo.Create(ctx, &models.AILog{ID: "b", GrievanceID: "g2", Timestamp: base.Add(2 * time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.AILog{ID: "c", GrievanceID: "g3", Timestamp: base.Add(time.Minute)}))

	logs, err := repo.ListRecent(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"g2", "g3", "g1"}, []string{logs[0].GrievanceID, logs[1].GrievanceID, logs[2].GrievanceID})
}
