package models

import (
	"time"

	"dispatch/internal/domain"

	"gorm.io/gorm"
)

// User is a notification recipient. City and country scope broadcast targeting.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:128" json:"name"`
	Role      string         `gorm:"size:20;not null;index" json:"role"` // CUSTOMER | DRIVER | ADMIN
	CityID    *uint          `gorm:"index:idx_users_scope,priority:2" json:"city_id"`
	CountryID *uint          `gorm:"index:idx_users_scope,priority:1" json:"country_id"`
	FCMToken  string         `gorm:"size:512" json:"-"` // For mobile push
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsDriver() bool { return u.Role == domain.RoleDriver }
func (u *User) IsAdmin() bool  { return u.Role == domain.RoleAdmin }
