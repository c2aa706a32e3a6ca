package models

import (
	"time"

	"little_lemon/internal/access"
)

// RoleMembership is one (user, role) pair. Only staff roles are stored.
type RoleMembership struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	UserID    uint        `json:"user" gorm:"not null;uniqueIndex:idx_role_membership_user_role"`
	User      *User       `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Role      access.Role `json:"role" gorm:"type:varchar(32);not null;uniqueIndex:idx_role_membership_user_role;index"`
	CreatedAt time.Time   `json:"created_at"`
}
