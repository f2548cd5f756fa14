package gormstore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
)

type agentRepo struct {
	db *gorm.DB
}

func (r *agentRepo) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	return getByID[models.Agent](ctx, r.db, id)
}

func (r *agentRepo) GetByEmail(ctx context.Context, accountID, email string) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND email = ?", accountID, models.NormalizeEmail(email)).
		First(&agent).Error
	if err != nil {
		return nil, translate(err)
	}
	return &agent, nil
}

func (r *agentRepo) List(ctx context.Context, filter store.AgentFilter, opts store.ListOptions) ([]models.Agent, error) {
	var agents []models.Agent
	q := paginate(r.filtered(ctx, filter), opts).Order("created_at ASC").Order("id ASC")
	if err := q.Find(&agents).Error; err != nil {
		return nil, translate(err)
	}
	return agents, nil
}

func (r *agentRepo) Count(ctx context.Context, filter store.AgentFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *agentRepo) filtered(ctx context.Context, filter store.AgentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Agent{})
	if filter.AccountID != "" {
		q = q.Where("account_id = ?", filter.AccountID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if query := strings.ToLower(strings.TrimSpace(filter.Query)); query != "" {
		like := "%" + query + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?", like, like)
	}
	return q
}

func (r *agentRepo) Create(ctx context.Context, agent *models.Agent) error {
	agent.Email = models.NormalizeEmail(agent.Email)
	return translate(r.db.WithContext(ctx).Create(agent).Error)
}

func (r *agentRepo) Update(ctx context.Context, id string, fields map[string]any) (*models.Agent, error) {
	return updateByID[models.Agent](ctx, r.db, id, fields)
}

func (r *agentRepo) Delete(ctx context.Context, id string) error {
	return deleteByID[models.Agent](ctx, r.db, id)
}

func (r *agentRepo) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Agent{}).
			Where("id = ?", id).
			UpdateColumn("failed_login_count", gorm.Expr("failed_login_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Agent{}).
			Where("id = ?", id).
			Pluck("failed_login_count", &count).Error
	})
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}
