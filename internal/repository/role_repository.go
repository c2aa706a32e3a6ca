package repository

import (
	"context"

	"little_lemon/internal/access"
	"little_lemon/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRepository interface {
	RolesOf(ctx context.Context, userID uint) ([]access.Role, error)
	Members(ctx context.Context, role access.Role) ([]models.User, error)
	// Add returns false when the user already held the role.
	Add(ctx context.Context, userID uint, role access.Role) (bool, error)
	// Remove returns false when the user did not hold the role.
	Remove(ctx context.Context, userID uint, role access.Role) (bool, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) RolesOf(ctx context.Context, userID uint) ([]access.Role, error) {
	var roles []access.Role
	err := r.db.WithContext(ctx).Model(&models.RoleMembership{}).
		Where("user_id = ?", userID).
		Order("role").
		Pluck("role", &roles).Error
	return roles, err
}

func (r *roleRepository) Members(ctx context.Context, role access.Role) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN role_memberships ON role_memberships.user_id = users.id").
		Where("role_memberships.role = ?", string(role)).
		Order("users.id").
		Find(&users).Error
	return users, err
}

func (r *roleRepository) Add(ctx context.Context, userID uint, role access.Role) (bool, error) {
	membership := &models.RoleMembership{UserID: userID, Role: role}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(membership)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *roleRepository) Remove(ctx context.Context, userID uint, role access.Role) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND role = ?", userID, string(role)).
		Delete(&models.RoleMembership{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
