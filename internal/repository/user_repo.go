package repository

import (
	"context"
	"errors"
	"fmt"

	"dispatch/internal/domain"
	"dispatch/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return persistErr("create user", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get user", err)
	}
	return &u, nil
}

// UpdateFCMToken stores the device token used for mobile push.
func (r *UserRepository) UpdateFCMToken(ctx context.Context, id uint, token string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("fcm_token", token).Error
	if err != nil {
		return persistErr("update fcm token", err)
	}
	return nil
}

// ListIDsByScope returns the ids of users in the given city and/or country.
// Both constraints apply when both are set. At least one must be set.
func (r *UserRepository) ListIDsByScope(ctx context.Context, cityID, countryID *uint) ([]uint, error) {
	if cityID == nil && countryID == nil {
		return nil, fmt.Errorf("%w: city or country scope required", domain.ErrValidation)
	}
	q := r.db.WithContext(ctx).Model(&models.User{})
	if cityID != nil {
		q = q.Where("city_id = ?", *cityID)
	}
	if countryID != nil {
		q = q.Where("country_id = ?", *countryID)
	}
	var ids []uint
	if err := q.Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, persistErr("list users by scope", err)
	}
	return ids, nil
}
