package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/repository"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/kv"
)

type queryFixture struct {
	svc        *QueryService
	grievances *repository.GrievanceRepository
	logs       *repository.AILogRepository
}

func newQueryFixture(t *testing.T, cache statsCache) *queryFixture {
	t.Helper()
	store := kv.NewMemoryStore()
	f := &queryFixture{
		grievances: repository.NewGrievanceRepository(store),
		logs:       repository.NewAILogRepository(store),
	}
	f.svc = NewQueryService(f.grievances, f.logs, cache, time.Minute, nil)
	return f
}

func (f *queryFixture) add(t *testing.T, g models.Grievance, personal bool) {
	t.Helper()
	g.Comments = []models.Comment{}
	require.NoError(t, f.grievances.Create(context.Background(), &g, personal))
}

func seedQueryGrievances(t *testing.T, f *queryFixture) {
	email := "asha@college.edu"
	f.add(t, models.Grievance{ID: "g1", Title: "WiFi", Department: "IT Section", Priority: models.PriorityHigh, Status: models.StatusPending, SubmitterID: "u-student", SubmitterName: "Asha", SubmitterEmail: &email}, true)
	f.add(t, models.Grievance{ID: "g2", Title: "Ragging", Department: "Security", Priority: models.PriorityHigh, Status: models.StatusInProgress, IsAnonymous: true, SubmitterID: "u-student", SubmitterName: "Asha", SubmitterEmail: &email}, false)
	f.add(t, models.Grievance{ID: "g3", Title: "Dust", Department: "Housekeeping", Priority: models.PriorityLow, Status: models.StatusResolved, SubmitterID: "u-other", SubmitterName: "Ravi"}, true)
	f.add(t, models.Grievance{ID: "g4", Title: "Router", Department: "IT Section", Priority: models.PriorityMedium, Status: models.StatusRejected, SubmitterID: "u-other", SubmitterName: "Ravi"}, true)
}

func ids(items []models.Grievance) []string {
	out := make([]string, 0, len(items))
	for _, g := range items {
		out = append(out, g.ID)
	}
	return out
}

func TestListVisibility(t *testing.T) {
	f := newQueryFixture(t, nil)
	seedQueryGrievances(t, f)
	ctx := context.Background()

	all, err := f.svc.List(ctx, models.GrievanceFilter{}, models.AnonymousViewer())
	require.NoError(t, err)
	assert.Equal(t, []string{"g4", "g3", "g2", "g1"}, ids(all))
	assert.Equal(t, models.AnonymousName, all[2].SubmitterName)
	assert.Nil(t, all[2].SubmitterEmail)

	guestOnly, err := f.svc.List(ctx, models.GrievanceFilter{UserOnly: true}, models.AnonymousViewer())
	require.NoError(t, err)
	assert.Len(t, guestOnly, 4)

	mine, err := f.svc.List(ctx, models.GrievanceFilter{UserOnly: true}, studentViewer)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ids(mine))

	admin, err := f.svc.List(ctx, models.GrievanceFilter{}, adminViewer)
	require.NoError(t, err)
	assert.Equal(t, "Asha", admin[2].SubmitterName)

	hod, err := f.svc.List(ctx, models.GrievanceFilter{Department: "Security"}, itHODViewer)
	require.NoError(t, err)
	assert.Equal(t, []string{"g4", "g1"}, ids(hod))
}

func TestListFilters(t *testing.T) {
	f := newQueryFixture(t, nil)
	seedQueryGrievances(t, f)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter models.GrievanceFilter
		want   []string
	}{
		{"all sentinel", models.GrievanceFilter{Priority: "All", Status: "All", Department: "All"}, []string{"g4", "g3", "g2", "g1"}},
		{"priority", models.GrievanceFilter{Priority: "High"}, []string{"g2", "g1"}},
		{"status", models.GrievanceFilter{Status: "Resolved"}, []string{"g3"}},
		{"department", models.GrievanceFilter{Department: "IT Section"}, []string{"g4", "g1"}},
		{"combined", models.GrievanceFilter{Priority: "High", Department: "IT Section"}, []string{"g1"}},
		{"case sensitive", models.GrievanceFilter{Priority: "high"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.List(ctx, tt.filter, adminViewer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestStats(t *testing.T) {
	f := newQueryFixture(t, nil)
	ctx := context.Background()

	_, _, err := f.svc.Stats(ctx, studentViewer)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	empty, _, err := f.svc.Stats(ctx, adminViewer)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.ByDepartment)

	seedQueryGrievances(t, f)
	stats, hit, err := f.svc.Stats(ctx, adminViewer)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.GrievanceStats{
		Total: 4, HighPriority: 2, MediumPriority: 1, LowPriority: 1,
		Pending: 1, InProgress: 1, Resolved: 1, Rejected: 1,
		ByDepartment: map[string]int{"IT Section": 2, "Security": 1, "Housekeeping": 1},
	}, stats)

	hod, _, err := f.svc.Stats(ctx, itHODViewer)
	require.NoError(t, err)
	assert.Equal(t, 2, hod.Total)
	assert.Equal(t, map[string]int{"IT Section": 2}, hod.ByDepartment)
}

func TestStatsCacheHitAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewCacheService(repository.NewCacheRepository(client, "test:", nil), nil, time.Minute, nil, true)

	f := newQueryFixture(t, cache)
	seedQueryGrievances(t, f)
	ctx := context.Background()

	first, hit, err := f.svc.Stats(ctx, adminViewer)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, mr.Exists("test:cache:stats:all"))

	f.add(t, models.Grievance{ID: "g5", Department: "Security", Priority: models.PriorityLow, Status: models.StatusPending}, false)
	cached, hit, err := f.svc.Stats(ctx, adminViewer)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, cached)

	_, _, err = f.svc.Stats(ctx, itHODViewer)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:cache:stats:hod:IT Section"))

	cache.Invalidate(ctx, statsCachePattern)
	fresh, hit, err := f.svc.Stats(ctx, adminViewer)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5, fresh.Total)
}

func TestUserStats(t *testing.T) {
	f := newQueryFixture(t, nil)
	seedQueryGrievances(t, f)

	_, err := f.svc.UserStats(context.Background(), models.AnonymousViewer())
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	stats, err := f.svc.UserStats(context.Background(), otherStudent)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{Total: 2, Resolved: 1, Rejected: 1}, stats)

	stats, err = f.svc.UserStats(context.Background(), models.Viewer{UserID: "nobody", Authenticated: true})
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{}, stats)
}

func TestAILogsScopedAndCapped(t *testing.T) {
	f := newQueryFixture(t, nil)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		dept := "Security"
		if i%3 == 0 {
			dept = "IT Section"
		}
		require.NoError(t, f.logs.Create(ctx, &models.AILog{
			ID:             fmt.Sprintf("log-%02d", i),
			GrievanceID:    fmt.Sprintf("g-%02d", i),
			Classification: models.Classification{Department: dept, Source: models.SourceFallback},
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	_, err := f.svc.AILogs(ctx, teacherViewer)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	all, err := f.svc.AILogs(ctx, adminViewer)
	require.NoError(t, err)
	require.Len(t, all, models.MaxAILogs)
	assert.Equal(t, "log-59", all[0].ID)
	assert.True(t, all[0].Timestamp.After(all[1].Timestamp))

	// HODs filter the newest window, so IT entries older than it are not returned.
	hod, err := f.svc.AILogs(ctx, itHODViewer)
	require.NoError(t, err)
	assert.Len(t, hod, 16)
	for _, e := range hod {
		assert.Equal(t, "IT Section", e.Classification.Department)
	}
	assert.Equal(t, "log-57", hod[0].ID)
	assert.Equal(t, "log-12", hod[len(hod)-1].ID)
}
