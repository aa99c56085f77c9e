package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jason-s-yu/badluck/service/internal/apperr"
	"github.com/jason-s-yu/badluck/service/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{db: s.DB}
}

// GetByUsername fails with ErrNotFound when no such user exists.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// Upsert creates the user or replaces the password hash of an existing one.
func (r *UserRepository) Upsert(ctx context.Context, u *models.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash"}),
	}).Create(u).Error
	if err != nil {
		return fmt.Errorf("upsert user %q: %w", u.Username, err)
	}
	return nil
}
