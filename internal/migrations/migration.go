package migrations

import (
	"context"
	"errors"
	"fmt"

	"little_lemon/internal/access"
	"little_lemon/internal/models"
	"little_lemon/internal/repository"
	"little_lemon/internal/services"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Admin is the account seeded with the Manager role on first start.
type Admin struct {
	Username string
	Email    string
	Password string
}

// RunMigrations brings the schema up to date and seeds the admin account.
// Existing tables and rows are kept.
func RunMigrations(ctx context.Context, db *gorm.DB, admin Admin, log *zap.Logger) error {
	log.Info("running database migrations")

	err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.RoleMembership{},
		&models.Category{},
		&models.MenuItem{},
		&models.CartLine{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := SeedAdmin(ctx, repository.NewUserRepository(db), repository.NewRoleRepository(db), admin, log); err != nil {
		return err
	}

	log.Info("database migrations completed")
	return nil
}

// SeedAdmin creates the admin account if it is missing and makes sure it
// holds the Manager role.
func SeedAdmin(ctx context.Context, users repository.UserRepository, roles repository.RoleRepository, admin Admin, log *zap.Logger) error {
	user, err := users.GetByUsername(ctx, admin.Username)
	switch {
	case err == nil:
		log.Debug("admin user already exists", zap.String("username", admin.Username))
	case errors.Is(err, gorm.ErrRecordNotFound):
		userService := services.NewUserService(users, nil, 0, log)
		user, err = userService.Register(ctx, services.RegisterInput{
			Username: admin.Username,
			Email:    admin.Email,
			Password: admin.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		log.Info("admin user created", zap.String("username", user.Username))
	default:
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	added, err := roles.Add(ctx, user.ID, access.Manager)
	if err != nil {
		return fmt.Errorf("failed to grant admin the %s role: %w", access.Manager, err)
	}
	if added {
		log.Info("admin granted role", zap.String("username", user.Username), zap.String("role", string(access.Manager)))
	}
	return nil
}
