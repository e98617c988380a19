package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/lock"
)

const departmentsLockKey = "departments"

// DefaultDepartments are seeded into an empty store.
var DefaultDepartments = []models.DepartmentRequest{
	{Name: "Accounts", Description: "Handles all fee payments, financial documents, scholarships, refunds, and student billing matters"},
	{Name: "IT Section", Description: "Manages student and faculty accounts, WiFi access, computer labs, software issues, and technical support"},
	{Name: "Housekeeping", Description: "Responsible for cleaning and maintenance of classrooms, labs, corridors, restrooms, and all college premises"},
	{Name: "Security", Description: "Handles lost and found items, security cameras, access control, campus safety, and security concerns"},
}

type departmentStore interface {
	List(ctx context.Context) ([]models.Department, error)
	ReplaceAll(ctx context.Context, departments []models.Department) error
}

// DepartmentService manages the department list used for routing.
type DepartmentService struct {
	repo      departmentStore
	locker    lock.Locker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo departmentStore, locker lock.Locker, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocalLocker(0)
	}
	return &DepartmentService{repo: repo, locker: locker, validator: validate, logger: logger, now: utcNow, newID: NewID}
}

// List returns every department. It is public.
func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	departments, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load departments")
	}
	return departments, nil
}

// Create adds a department with a unique name.
func (s *DepartmentService) Create(ctx context.Context, req models.DepartmentRequest, viewer models.Viewer) (*models.Department, error) {
	if !viewer.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins can manage departments")
	}
	req, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	var created models.Department
	err = s.mutate(ctx, func(departments []models.Department) ([]models.Department, error) {
		if nameTaken(departments, req.Name, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department name already exists")
		}
		created = models.Department{ID: s.newID(), Name: req.Name, Description: req.Description, CreatedAt: s.now()}
		return append(departments, created), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("department created", zap.String("department_id", created.ID), zap.String("name", created.Name))
	return &created, nil
}

// Update renames or re-describes a department. Renames must stay unique.
func (s *DepartmentService) Update(ctx context.Context, id string, req models.DepartmentRequest, viewer models.Viewer) (*models.Department, error) {
	if !viewer.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins can manage departments")
	}
	req, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	var updated models.Department
	err = s.mutate(ctx, func(departments []models.Department) ([]models.Department, error) {
		idx := indexOfDepartment(departments, id)
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		if nameTaken(departments, req.Name, id) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department name already exists")
		}
		now := s.now()
		departments[idx].Name = req.Name
		departments[idx].Description = req.Description
		departments[idx].UpdatedAt = &now
		updated = departments[idx]
		return departments, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("department updated", zap.String("department_id", id))
	return &updated, nil
}

// Delete removes a department. Existing grievances keep the department name they were routed to.
func (s *DepartmentService) Delete(ctx context.Context, id string, viewer models.Viewer) error {
	if !viewer.IsAdmin() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "only admins can manage departments")
	}
	err := s.mutate(ctx, func(departments []models.Department) ([]models.Department, error) {
		idx := indexOfDepartment(departments, id)
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return append(departments[:idx], departments[idx+1:]...), nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("department deleted", zap.String("department_id", id))
	return nil
}

// SeedDefaults writes DefaultDepartments when no department exists. It reports whether it seeded.
func (s *DepartmentService) SeedDefaults(ctx context.Context) (bool, error) {
	seeded := false
	err := s.mutate(ctx, func(departments []models.Department) ([]models.Department, error) {
		if len(departments) > 0 {
			return departments, nil
		}
		now := s.now()
		for _, d := range DefaultDepartments {
			departments = append(departments, models.Department{ID: s.newID(), Name: d.Name, Description: d.Description, CreatedAt: now})
		}
		seeded = true
		return departments, nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.logger.Info("default departments seeded", zap.Int("count", len(DefaultDepartments)))
	}
	return seeded, nil
}

func (s *DepartmentService) validate(req models.DepartmentRequest) (models.DepartmentRequest, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name and description are required")
	}
	return req, nil
}

// mutate runs fn over the current list under the departments lock and stores the result.
func (s *DepartmentService) mutate(ctx context.Context, fn func([]models.Department) ([]models.Department, error)) error {
	release, err := s.locker.Acquire(ctx, departmentsLockKey)
	if err != nil {
		return lockError(err)
	}
	defer release()

	departments, err := s.repo.List(ctx)
	if err != nil {
		return appErrors.Internal(err, "failed to load departments")
	}
	next, err := fn(departments)
	if err != nil {
		return err
	}
	if err := s.repo.ReplaceAll(ctx, next); err != nil {
		return appErrors.Internal(err, "failed to save departments")
	}
	return nil
}

func indexOfDepartment(departments []models.Department, id string) int {
	for i, d := range departments {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func nameTaken(departments []models.Department, name, exceptID string) bool {
	for _, d := range departments {
		if d.ID != exceptID && strings.EqualFold(d.Name, name) {
			return true
		}
	}
	return false
}
