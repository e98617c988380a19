package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type grievanceLister interface {
	ListAll(ctx context.Context) ([]models.Grievance, error)
	ListByUser(ctx context.Context, userID string) ([]models.Grievance, error)
}

type aiLogReader interface {
	ListRecent(ctx context.Context) ([]models.AILog, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// QueryService answers list, stats and AI log reads with role-based visibility applied.
type QueryService struct {
	grievances grievanceLister
	logs       aiLogReader
	cache      statsCache
	statsTTL   time.Duration
	logger     *zap.Logger
}

// NewQueryService constructs a QueryService. A nil cache computes stats on every call.
func NewQueryService(grievances grievanceLister, logs aiLogReader, cache statsCache, statsTTL time.Duration, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{grievances: grievances, logs: logs, cache: cache, statsTTL: statsTTL, logger: logger}
}

// List returns the grievances viewer may see, filtered and redacted, most recent first.
func (s *QueryService) List(ctx context.Context, filter models.GrievanceFilter, viewer models.Viewer) ([]models.Grievance, error) {
	var (
		items []models.Grievance
		err   error
	)
	if filter.UserOnly && viewer.Authenticated {
		items, err = s.grievances.ListByUser(ctx, viewer.UserID)
	} else {
		items, err = s.grievances.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load grievances")
	}

	if viewer.IsHOD() {
		filter.Department = viewer.Department
	}

	out := make([]models.Grievance, 0, len(items))
	for _, g := range items {
		if !filter.Matches(g) {
			continue
		}
		out = append(out, g.RedactedFor(viewer))
	}
	return out, nil
}

// Stats aggregates every grievance for admins, or the HOD's department. The second return
// reports whether the result came from the cache.
func (s *QueryService) Stats(ctx context.Context, viewer models.Viewer) (models.GrievanceStats, bool, error) {
	if !viewer.IsPrivileged() {
		return models.GrievanceStats{}, false, appErrors.Clone(appErrors.ErrUnauthorized, "only admins and heads of department can view statistics")
	}

	key := statsCacheKey(viewer)
	var cached models.GrievanceStats
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		if cached.ByDepartment == nil {
			cached.ByDepartment = map[string]int{}
		}
		return cached, true, nil
	}

	items, err := s.grievances.ListAll(ctx)
	if err != nil {
		return models.GrievanceStats{}, false, appErrors.Internal(err, "failed to load grievances")
	}
	stats := models.GrievanceStats{ByDepartment: map[string]int{}}
	for _, g := range items {
		if viewer.IsHOD() && g.Department != viewer.Department {
			continue
		}
		stats.Add(g)
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, stats, s.statsTTL)
	}
	return stats, false, nil
}

// UserStats counts the viewer's own grievances by status.
func (s *QueryService) UserStats(ctx context.Context, viewer models.Viewer) (models.UserStats, error) {
	if !viewer.Authenticated {
		return models.UserStats{}, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to view your statistics")
	}
	items, err := s.grievances.ListByUser(ctx, viewer.UserID)
	if err != nil {
		return models.UserStats{}, appErrors.Internal(err, "failed to load grievances")
	}
	var stats models.UserStats
	for _, g := range items {
		stats.Add(g)
	}
	return stats, nil
}

// AILogs returns the newest MaxAILogs classification records. HODs see the subset of that
// window classified into their department, so they may get fewer than MaxAILogs entries.
func (s *QueryService) AILogs(ctx context.Context, viewer models.Viewer) ([]models.AILog, error) {
	if !viewer.IsPrivileged() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins and heads of department can view ai logs")
	}
	entries, err := s.logs.ListRecent(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load ai logs")
	}
	if len(entries) > models.MaxAILogs {
		entries = entries[:models.MaxAILogs]
	}

	out := make([]models.AILog, 0, len(entries))
	for _, e := range entries {
		if viewer.IsHOD() && e.Classification.Department != viewer.Department {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func statsCacheKey(viewer models.Viewer) string {
	if viewer.IsHOD() {
		return "stats:hod:" + viewer.Department
	}
	return "stats:all"
}
