package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/repository"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/kv"
	"github.com/noah-isme/grievance-api/pkg/lock"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	// AnonKey is the shared bearer value public clients send instead of a user token.
	AnonKey string
}

// AuthService registers users, issues access tokens and resolves request identities.
type AuthService struct {
	repo      authUserRepository
	locker    lock.Locker
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
	newID     func() string
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, locker lock.Locker, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if locker == nil {
		locker = lock.NewLocalLocker(0)
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{repo: repo, locker: locker, validator: validate, logger: logger, config: config, now: utcNow, newID: NewID}
}

// Signup creates an account. Role defaults to student; HODs must name their department.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.UserInfo, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = repository.NormalizeEmail(req.Email)
	req.Department = strings.TrimSpace(req.Department)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name, valid email and a password of at least 6 characters are required")
	}
	if req.Role == "" {
		req.Role = models.RoleStudent
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be one of student, teacher, hod, admin")
	}
	if req.Role == models.RoleHOD && req.Department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department is required for heads of department")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	release, err := s.locker.Acquire(ctx, "user_email:"+req.Email)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	user := &models.User{
		ID:           s.newID(),
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if req.Role == models.RoleHOD {
		user.Department = req.Department
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	info := models.UserInfo{ID: user.ID, Email: user.Email, Name: user.Name}
	return &info, nil
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = repository.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInvalidLogin, "")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("login rejected", zap.String("user_id", user.ID))
		return nil, appErrors.Clone(appErrors.ErrInvalidLogin, "")
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate token")
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		User:        models.NewUserInfo(*user),
	}, nil
}

// ValidateToken parses and validates an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ResolveViewer turns a bearer value into a request identity. Empty, anonymous-key and
// invalid tokens all resolve to the anonymous viewer, as do tokens of deleted accounts.
// Role and department come from the stored account, not the token.
func (s *AuthService) ResolveViewer(ctx context.Context, bearer string) models.Viewer {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" || (s.config.AnonKey != "" && bearer == s.config.AnonKey) {
		return models.AnonymousViewer()
	}
	claims, err := s.ValidateToken(bearer)
	if err != nil {
		s.logger.Debug("bearer token rejected, continuing anonymously", zap.Error(err))
		return models.AnonymousViewer()
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			s.logger.Info("token for deleted account, continuing anonymously", zap.String("user_id", claims.UserID))
		} else {
			s.logger.Warn("failed to load token owner, continuing anonymously", zap.String("user_id", claims.UserID), zap.Error(err))
		}
		return models.AnonymousViewer()
	}
	return models.Viewer{
		UserID:        user.ID,
		Name:          user.Name,
		Email:         user.Email,
		Role:          user.Role,
		Department:    user.Department,
		Authenticated: true,
	}
}

// Me returns the stored profile of the authenticated viewer.
func (s *AuthService) Me(ctx context.Context, viewer models.Viewer) (*models.UserInfo, error) {
	if !viewer.Authenticated {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	user, err := s.repo.FindByID(ctx, viewer.UserID)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	info := models.NewUserInfo(*user)
	return &info, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:     user.ID,
		Role:       user.Role,
		Email:      user.Email,
		Name:       user.Name,
		Department: user.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
