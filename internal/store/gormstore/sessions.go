package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
)

type sessionRepo struct {
	db *gorm.DB
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*models.AgentSession, error) {
	return getByID[models.AgentSession](ctx, r.db, id)
}

func (r *sessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.AgentSession, error) {
	var session models.AgentSession
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *sessionRepo) List(ctx context.Context, filter store.SessionFilter, opts store.ListOptions) ([]models.AgentSession, error) {
	var sessions []models.AgentSession
	q := paginate(r.filtered(ctx, filter), opts).Order("created_at DESC").Order("id ASC")
	if err := q.Find(&sessions).Error; err != nil {
		return nil, translate(err)
	}
	return sessions, nil
}

func (r *sessionRepo) Count(ctx context.Context, filter store.SessionFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *sessionRepo) filtered(ctx context.Context, filter store.SessionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.AgentSession{})
	if filter.AgentID != "" {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	if filter.AccountID != "" {
		q = q.Where("account_id = ?", filter.AccountID)
	}
	return q
}

func (r *sessionRepo) Create(ctx context.Context, session *models.AgentSession) error {
	return translate(r.db.WithContext(ctx).Create(session).Error)
}

func (r *sessionRepo) Update(ctx context.Context, id string, fields map[string]any) (*models.AgentSession, error) {
	return updateByID[models.AgentSession](ctx, r.db, id, fields)
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	return deleteByID[models.AgentSession](ctx, r.db, id)
}

func (r *sessionRepo) DeleteByAgent(ctx context.Context, agentID, exceptID string) (int64, error) {
	q := r.db.WithContext(ctx).Where("agent_id = ?", agentID)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	res := q.Delete(&models.AgentSession{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&models.AgentSession{})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}
