package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
)

type customRoleRepo struct {
	db *gorm.DB
}

func (r *customRoleRepo) GetByID(ctx context.Context, id string) (*models.CustomRole, error) {
	return getByID[models.CustomRole](ctx, r.db, id)
}

func (r *customRoleRepo) List(ctx context.Context, filter store.CustomRoleFilter, opts store.ListOptions) ([]models.CustomRole, error) {
	var roles []models.CustomRole
	q := paginate(r.filtered(ctx, filter), opts).Order("name ASC")
	if err := q.Find(&roles).Error; err != nil {
		return nil, translate(err)
	}
	return roles, nil
}

func (r *customRoleRepo) Count(ctx context.Context, filter store.CustomRoleFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *customRoleRepo) filtered(ctx context.Context, filter store.CustomRoleFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.CustomRole{})
	if filter.AccountID != "" {
		q = q.Where("account_id = ?", filter.AccountID)
	}
	return q
}

func (r *customRoleRepo) Create(ctx context.Context, role *models.CustomRole) error {
	return translate(r.db.WithContext(ctx).Create(role).Error)
}

func (r *customRoleRepo) Update(ctx context.Context, id string, fields map[string]any) (*models.CustomRole, error) {
	return updateByID[models.CustomRole](ctx, r.db, id, fields)
}

func (r *customRoleRepo) Delete(ctx context.Context, id string) error {
	return deleteByID[models.CustomRole](ctx, r.db, id)
}
