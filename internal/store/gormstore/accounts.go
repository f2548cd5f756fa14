package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
)

type accountRepo struct {
	db *gorm.DB
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return getByID[models.Account](ctx, r.db, id)
}

func (r *accountRepo) List(ctx context.Context, filter store.AccountFilter, opts store.ListOptions) ([]models.Account, error) {
	var accounts []models.Account
	q := paginate(r.filtered(ctx, filter), opts).Order("created_at ASC")
	if err := q.Find(&accounts).Error; err != nil {
		return nil, translate(err)
	}
	return accounts, nil
}

func (r *accountRepo) Count(ctx context.Context, filter store.AccountFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *accountRepo) filtered(ctx context.Context, filter store.AccountFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Account{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	return q
}

func (r *accountRepo) Create(ctx context.Context, account *models.Account) error {
	return translate(r.db.WithContext(ctx).Create(account).Error)
}
