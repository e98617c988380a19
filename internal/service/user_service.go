package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, user *models.User) error
}

// UserService handles admin user management.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns every account, newest first.
func (s *UserService) List(ctx context.Context, viewer models.Viewer) ([]models.UserInfo, error) {
	if !viewer.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins can list users")
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	out := make([]models.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, models.NewUserInfo(u))
	}
	return out, nil
}

// Delete removes an account. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id string, viewer models.Viewer) error {
	if !viewer.IsAdmin() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "only admins can delete users")
	}
	if id == viewer.UserID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete your own account")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "user not found", "failed to load user")
	}
	if err := s.repo.Delete(ctx, user); err != nil {
		return appErrors.Internal(err, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("deleted_by", viewer.UserID))
	return nil
}
