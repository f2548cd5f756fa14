package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/store"
)

type invitationRepo struct {
	db *gorm.DB
}

func (r *invitationRepo) GetByID(ctx context.Context, id string) (*models.AgentInvitation, error) {
	return getByID[models.AgentInvitation](ctx, r.db, id)
}

func (r *invitationRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.AgentInvitation, error) {
	var inv models.AgentInvitation
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&inv).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r *invitationRepo) List(ctx context.Context, filter store.InvitationFilter, opts store.ListOptions) ([]models.AgentInvitation, error) {
	var invitations []models.AgentInvitation
	q := paginate(r.filtered(ctx, filter), opts).Order("created_at DESC").Order("id ASC")
	if err := q.Find(&invitations).Error; err != nil {
		return nil, translate(err)
	}
	return invitations, nil
}

func (r *invitationRepo) Count(ctx context.Context, filter store.InvitationFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *invitationRepo) filtered(ctx context.Context, filter store.InvitationFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.AgentInvitation{})
	if filter.AccountID != "" {
		q = q.Where("account_id = ?", filter.AccountID)
	}

	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	switch filter.State {
	case store.InvitationPending:
		q = q.Where("used_at IS NULL AND expires_at > ?", now)
	case store.InvitationUsed:
		q = q.Where("used_at IS NOT NULL")
	case store.InvitationExpired:
		q = q.Where("used_at IS NULL AND expires_at <= ?", now)
	}
	return q
}

func (r *invitationRepo) Create(ctx context.Context, invitation *models.AgentInvitation) error {
	return translate(r.db.WithContext(ctx).Create(invitation).Error)
}

func (r *invitationRepo) Delete(ctx context.Context, id string) error {
	return deleteByID[models.AgentInvitation](ctx, r.db, id)
}

func (r *invitationRepo) MarkUsed(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.AgentInvitation{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", at)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var exists int64
	if err := r.db.WithContext(ctx).Model(&models.AgentInvitation{}).Where("id = ?", id).Count(&exists).Error; err != nil {
		return translate(err)
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}
