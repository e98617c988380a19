package service

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/lock"
)

// statsCachePattern matches every cached statistics entry.
const statsCachePattern = "stats:*"

type grievanceStore interface {
	FindByID(ctx context.Context, id string) (*models.Grievance, error)
	Create(ctx context.Context, g *models.Grievance, personal bool) error
	Save(ctx context.Context, g *models.Grievance) error
}

type departmentLister interface {
	List(ctx context.Context) ([]models.Department, error)
}

type aiLogWriter interface {
	Create(ctx context.Context, entry *models.AILog) error
}

type grievanceClassifier interface {
	Classify(ctx context.Context, title, description string, departments []models.Department) models.Classification
}

// GrievanceNotifier receives grievance events. Implementations must not block or fail the caller.
type GrievanceNotifier interface {
	GrievanceSubmitted(ctx context.Context, g models.Grievance, c models.Classification)
	StatusChanged(ctx context.Context, g models.Grievance, previous models.GrievanceStatus)
	CommentAdded(ctx context.Context, g models.Grievance, c models.Comment)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// GrievanceServiceConfig tunes write authorization.
type GrievanceServiceConfig struct {
	// HODDepartmentScopedWrites limits HOD status changes and comments to their own department.
	HODDepartmentScopedWrites bool
}

// GrievanceService handles submission, status changes and comments.
type GrievanceService struct {
	grievances  grievanceStore
	departments departmentLister
	logs        aiLogWriter
	classifier  grievanceClassifier
	notifier    GrievanceNotifier
	cache       cacheInvalidator
	locker      lock.Locker
	validator   *validator.Validate
	logger      *zap.Logger
	config      GrievanceServiceConfig
	now         func() time.Time
	newID       func() string
}

// NewGrievanceService constructs a GrievanceService.
func NewGrievanceService(
	grievances grievanceStore,
	departments departmentLister,
	logs aiLogWriter,
	classifier grievanceClassifier,
	notifier GrievanceNotifier,
	cache cacheInvalidator,
	locker lock.Locker,
	validate *validator.Validate,
	logger *zap.Logger,
	config GrievanceServiceConfig,
) *GrievanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocalLocker(0)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &GrievanceService{
		grievances:  grievances,
		departments: departments,
		logs:        logs,
		classifier:  classifier,
		notifier:    notifier,
		cache:       cache,
		locker:      locker,
		validator:   validate,
		logger:      logger,
		config:      config,
		now:         utcNow,
		newID:       NewID,
	}
}

// Submit classifies, stores and indexes a new grievance and queues its notifications.
func (s *GrievanceService) Submit(ctx context.Context, req dto.SubmitGrievanceRequest, viewer models.Viewer) (*dto.SubmitGrievanceResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.ManualDepartment = strings.TrimSpace(req.ManualDepartment)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title and description are required")
	}

	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load departments")
	}

	manual := req.ManualDepartment != ""
	var classification models.Classification
	if manual {
		name, ok := matchDepartment(req.ManualDepartment, departments)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department: "+req.ManualDepartment)
		}
		classification = ManualClassification(name)
	} else {
		classification = s.classifier.Classify(ctx, req.Title, req.Description, departments)
	}

	now := s.now()
	g := &models.Grievance{
		ID:                 s.newID(),
		Title:              req.Title,
		Description:        req.Description,
		Department:         classification.Department,
		Priority:           classification.Priority,
		Status:             models.StatusPending,
		IsAnonymous:        req.IsAnonymous,
		SubmitterID:        models.AnonymousSubmitterID,
		SubmitterName:      models.UnknownName,
		Attachment:         normalizeAttachment(req.Attachment),
		CreatedAt:          now,
		UpdatedAt:          now,
		Comments:           []models.Comment{},
		ManuallyClassified: manual,
	}
	if viewer.Authenticated {
		g.SubmitterID = viewer.UserID
		if viewer.Name != "" {
			g.SubmitterName = viewer.Name
		}
		if viewer.Email != "" {
			email := viewer.Email
			g.SubmitterEmail = &email
		}
	}

	personal := viewer.Authenticated && !req.IsAnonymous
	if err := s.grievances.Create(ctx, g, personal); err != nil {
		return nil, appErrors.Internal(err, "failed to save grievance")
	}

	if !manual {
		entry := &models.AILog{ID: s.newID(), GrievanceID: g.ID, Classification: classification, Timestamp: now}
		if err := s.logs.Create(ctx, entry); err != nil {
			s.logger.Error("failed to write ai log", zap.String("grievance_id", g.ID), zap.Error(err))
		}
	}

	s.invalidateStats(ctx)
	s.notifier.GrievanceSubmitted(ctx, *g, classification)

	s.logger.Info("grievance submitted",
		zap.String("grievance_id", g.ID),
		zap.String("department", g.Department),
		zap.String("priority", string(g.Priority)),
		zap.String("source", string(classification.Source)),
	)

	return &dto.SubmitGrievanceResponse{Grievance: g.RedactedFor(viewer), Classification: classification}, nil
}

// UpdateStatus moves a grievance to status. Checks run in order: role, status value, existence.
func (s *GrievanceService) UpdateStatus(ctx context.Context, id, status string, viewer models.Viewer) (*models.Grievance, error) {
	if !viewer.IsPrivileged() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins and heads of department can update status")
	}
	next := models.GrievanceStatus(status)
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of Pending, In Progress, Resolved, Rejected")
	}

	release, err := s.locker.Acquire(ctx, "grievance:"+id)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	g, err := s.grievances.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "grievance not found", "failed to load grievance")
	}
	if err := s.checkWriteScope(g, viewer); err != nil {
		return nil, err
	}

	previous := g.Status
	g.Status = next
	g.UpdatedAt = s.now()
	if err := s.grievances.Save(ctx, g); err != nil {
		return nil, appErrors.Internal(err, "failed to update grievance")
	}

	s.invalidateStats(ctx)
	s.notifier.StatusChanged(ctx, *g, previous)

	out := g.RedactedFor(viewer)
	return &out, nil
}

// AddComment appends a comment by an authenticated viewer.
func (s *GrievanceService) AddComment(ctx context.Context, id, text string, viewer models.Viewer) (*models.Comment, error) {
	if !viewer.Authenticated {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to comment")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment is required")
	}

	release, err := s.locker.Acquire(ctx, "grievance:"+id)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	g, err := s.grievances.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "grievance not found", "failed to load grievance")
	}
	if err := s.checkWriteScope(g, viewer); err != nil {
		return nil, err
	}

	authorName := viewer.Name
	if authorName == "" {
		authorName = "User"
	}
	now := s.now()
	comment := models.Comment{
		ID:           s.newID(),
		Text:         text,
		AuthorID:     viewer.UserID,
		AuthorName:   authorName,
		AuthorRole:   viewer.Role,
		IsPrivileged: viewer.Role.IsPrivileged(),
		CreatedAt:    now,
	}
	g.Comments = append(g.Comments, comment)
	g.UpdatedAt = now
	if err := s.grievances.Save(ctx, g); err != nil {
		return nil, appErrors.Internal(err, "failed to save comment")
	}

	s.notifier.CommentAdded(ctx, *g, comment)
	return &comment, nil
}

// Get returns one grievance as viewer may see it.
func (s *GrievanceService) Get(ctx context.Context, id string, viewer models.Viewer) (*models.Grievance, error) {
	g, err := s.grievances.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "grievance not found", "failed to load grievance")
	}
	out := g.RedactedFor(viewer)
	return &out, nil
}

func (s *GrievanceService) checkWriteScope(g *models.Grievance, viewer models.Viewer) error {
	if s.config.HODDepartmentScopedWrites && viewer.IsHOD() && g.Department != viewer.Department {
		return appErrors.Clone(appErrors.ErrUnauthorized, "grievance belongs to another department")
	}
	return nil
}

func (s *GrievanceService) invalidateStats(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, statsCachePattern)
	}
}

// normalizeAttachment drops empty and null attachments so they are stored as null.
func normalizeAttachment(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
