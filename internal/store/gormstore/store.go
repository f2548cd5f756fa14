// Package gormstore implements store.Store on top of gorm, supporting the
// SQLite, PostgreSQL and MySQL drivers opened by internal/database.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/store"
)

// Store is the gorm backed store.Store.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gormstore: db is required")
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Agents() store.Agents           { return &agentRepo{db: s.db} }
func (s *Store) Invitations() store.Invitations { return &invitationRepo{db: s.db} }
func (s *Store) Sessions() store.Sessions       { return &sessionRepo{db: s.db} }
func (s *Store) CustomRoles() store.CustomRoles { return &customRoleRepo{db: s.db} }
func (s *Store) Accounts() store.Accounts       { return &accountRepo{db: s.db} }

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case isUniqueConstraintError(err):
		return fmt.Errorf("%w: %v", store.ErrAlreadyExists, err)
	default:
		return err
	}
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

func paginate(q *gorm.DB, opts store.ListOptions) *gorm.DB {
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	return q
}

// updateByID applies fields to the row and reloads it so callers observe the
// persisted state. Empty updates only reload.
func updateByID[T any](ctx context.Context, db *gorm.DB, id string, fields map[string]any) (*T, error) {
	if len(fields) > 0 {
		var model T
		if err := db.WithContext(ctx).Model(&model).Where("id = ?", id).Updates(fields).Error; err != nil {
			return nil, translate(err)
		}
	}
	return getByID[T](ctx, db, id)
}

func getByID[T any](ctx context.Context, db *gorm.DB, id string) (*T, error) {
	var out T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func deleteByID[T any](ctx context.Context, db *gorm.DB, id string) error {
	var model T
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&model)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
