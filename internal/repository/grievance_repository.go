package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/kv"
)

const (
	grievanceKeyPrefix      = "grievance:"
	allGrievancesKey        = "all_grievances"
	userGrievancesKeyPrefix = "user_grievances:"
)

// GrievanceRepository persists grievances as documents plus newest-first id indexes.
type GrievanceRepository struct {
	store kv.Store
}

// NewGrievanceRepository constructs a GrievanceRepository.
func NewGrievanceRepository(store kv.Store) *GrievanceRepository {
	return &GrievanceRepository{store: store}
}

// FindByID loads one grievance. Missing ids return kv.ErrNotFound.
func (r *GrievanceRepository) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	var g models.Grievance
	if err := kv.GetJSON(ctx, r.store, grievanceKeyPrefix+id, &g); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get grievance %s: %w", id, err)
	}
	return &g, nil
}

// Create stores g and prepends it to the global index and, when personal is set,
// to the submitter's own index.
func (r *GrievanceRepository) Create(ctx context.Context, g *models.Grievance, personal bool) error {
	if err := r.Save(ctx, g); err != nil {
		return err
	}
	if err := r.store.PushFront(ctx, allGrievancesKey, g.ID); err != nil {
		return fmt.Errorf("index grievance %s: %w", g.ID, err)
	}
	if personal {
		if err := r.store.PushFront(ctx, userGrievancesKeyPrefix+g.SubmitterID, g.ID); err != nil {
			return fmt.Errorf("index grievance %s for %s: %w", g.ID, g.SubmitterID, err)
		}
	}
	return nil
}

// Save overwrites the stored document for g.
func (r *GrievanceRepository) Save(ctx context.Context, g *models.Grievance) error {
	if err := kv.SetJSON(ctx, r.store, grievanceKeyPrefix+g.ID, g); err != nil {
		return fmt.Errorf("save grievance %s: %w", g.ID, err)
	}
	return nil
}

// ListAll returns every indexed grievance, newest first.
func (r *GrievanceRepository) ListAll(ctx context.Context) ([]models.Grievance, error) {
	ids, err := r.store.Members(ctx, allGrievancesKey)
	if err != nil {
		return nil, fmt.Errorf("list grievance ids: %w", err)
	}
	return r.load(ctx, ids)
}

// ListByUser returns the grievances in userID's personal index, newest first.
func (r *GrievanceRepository) ListByUser(ctx context.Context, userID string) ([]models.Grievance, error) {
	ids, err := r.store.Members(ctx, userGrievancesKeyPrefix+userID)
	if err != nil {
		return nil, fmt.Errorf("list grievance ids for %s: %w", userID, err)
	}
	return r.load(ctx, ids)
}

// load resolves ids in order, skipping ids whose document is missing.
func (r *GrievanceRepository) load(ctx context.Context, ids []string) ([]models.Grievance, error) {
	out := make([]models.Grievance, 0, len(ids))
	for _, id := range ids {
		g, err := r.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}
