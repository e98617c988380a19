package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/kv"
)

const (
	userKeyPrefix      = "user:"
	userEmailKeyPrefix = "user_email:"
	allUsersKey        = "all_users"
)

// userRecord is the stored form of a user; unlike models.User it keeps the hash.
type userRecord struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

// UserRepository persists accounts and an email lookup index.
type UserRepository struct {
	store kv.Store
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(store kv.Store) *UserRepository {
	return &UserRepository{store: store}
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByID loads a user including the password hash.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var rec userRecord
	if err := kv.GetJSON(ctx, r.store, userKeyPrefix+id, &rec); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	user := rec.User
	user.PasswordHash = rec.PasswordHash
	return &user, nil
}

// FindByEmail resolves the email index then loads the user.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var id string
	if err := kv.GetJSON(ctx, r.store, userEmailKeyPrefix+NormalizeEmail(email), &id); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	return r.FindByID(ctx, id)
}

// Create stores user, its email index entry and appends it to the user index.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	rec := userRecord{User: *user, PasswordHash: user.PasswordHash}
	if err := kv.SetJSON(ctx, r.store, userKeyPrefix+user.ID, rec); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	if err := kv.SetJSON(ctx, r.store, userEmailKeyPrefix+user.Email, user.ID); err != nil {
		return fmt.Errorf("index user email: %w", err)
	}
	if err := r.store.PushFront(ctx, allUsersKey, user.ID); err != nil {
		return fmt.Errorf("index user %s: %w", user.ID, err)
	}
	return nil
}

// List returns all users newest first. Deleted ids left in the index are skipped.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	ids, err := r.store.Members(ctx, allUsersKey)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, err := r.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

// ListByRole filters List by role.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0)
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// Delete removes the user document and its email index entry.
func (r *UserRepository) Delete(ctx context.Context, user *models.User) error {
	if err := r.store.Delete(ctx, userKeyPrefix+user.ID); err != nil {
		return fmt.Errorf("delete user %s: %w", user.ID, err)
	}
	if err := r.store.Delete(ctx, userEmailKeyPrefix+NormalizeEmail(user.Email)); err != nil {
		return fmt.Errorf("delete user email index: %w", err)
	}
	return nil
}
