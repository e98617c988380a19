package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/pkg/kv"
)

const departmentsKey = "departments"

// DepartmentRepository keeps the department list as a single JSON array.
type DepartmentRepository struct {
	store kv.Store
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(store kv.Store) *DepartmentRepository {
	return &DepartmentRepository{store: store}
}

// List returns the configured departments in stored order.
func (r *DepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	if err := kv.GetJSON(ctx, r.store, departmentsKey, &departments); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []models.Department{}, nil
		}
		return nil, fmt.Errorf("list departments: %w", err)
	}
	if departments == nil {
		departments = []models.Department{}
	}
	return departments, nil
}

// ReplaceAll overwrites the department list.
func (r *DepartmentRepository) ReplaceAll(ctx context.Context, departments []models.Department) error {
	if departments == nil {
		departments = []models.Department{}
	}
	if err := kv.SetJSON(ctx, r.store, departmentsKey, departments); err != nil {
		return fmt.Errorf("save departments: %w", err)
	}
	return nil
}
