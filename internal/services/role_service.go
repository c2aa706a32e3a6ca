package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"little_lemon/internal/access"
	"little_lemon/internal/models"
	"little_lemon/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RoleService owns staff membership: who is a Manager and who is on the
// Delivery Crew.
type RoleService interface {
	Resolve(ctx context.Context, user *models.User) (access.Principal, error)
	ListMembers(ctx context.Context, actor access.Principal, role access.Role) ([]models.User, error)
	// AddMember returns added=false when the user already held the role.
	AddMember(ctx context.Context, actor access.Principal, role access.Role, username string) (*models.User, bool, error)
	RemoveMember(ctx context.Context, actor access.Principal, role access.Role, userID uint) (*models.User, error)
}

type roleService struct {
	roleRepo repository.RoleRepository
	userRepo repository.UserRepository
	logger   *zap.Logger
}

func NewRoleService(roleRepo repository.RoleRepository, userRepo repository.UserRepository, log *zap.Logger) RoleService {
	return &roleService{roleRepo: roleRepo, userRepo: userRepo, logger: log}
}

func (s *roleService) Resolve(ctx context.Context, user *models.User) (access.Principal, error) {
	roles, err := s.roleRepo.RolesOf(ctx, user.ID)
	if err != nil {
		return access.Principal{}, err
	}
	return access.Principal{UserID: user.ID, Username: user.Username, Roles: roles}, nil
}

func (s *roleService) checkStaffRole(actor access.Principal, role access.Role) error {
	if !actor.Can(access.ManageStaff) {
		return forbidden("only managers can manage staff groups")
	}
	if !role.IsStaff() {
		return invalid("role", fmt.Sprintf("unknown group %q", role))
	}
	return nil
}

func (s *roleService) ListMembers(ctx context.Context, actor access.Principal, role access.Role) ([]models.User, error) {
	if err := s.checkStaffRole(actor, role); err != nil {
		return nil, err
	}
	members, err := s.roleRepo.Members(ctx, role)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []models.User{}
	}
	return members, nil
}

func (s *roleService) AddMember(ctx context.Context, actor access.Principal, role access.Role, username string) (*models.User, bool, error) {
	if err := s.checkStaffRole(actor, role); err != nil {
		return nil, false, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, invalid("username", "this field is required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, invalid("username", fmt.Sprintf("user '%s' does not exist", username))
		}
		return nil, false, err
	}

	added, err := s.roleRepo.Add(ctx, user.ID, role)
	if err != nil {
		return nil, false, err
	}
	if added {
		s.logger.Info("role granted",
			zap.Uint("user_id", user.ID),
			zap.String("role", string(role)),
			zap.Uint("granted_by", actor.UserID))
	}
	return user, added, nil
}

func (s *roleService) RemoveMember(ctx context.Context, actor access.Principal, role access.Role, userID uint) (*models.User, error) {
	if err := s.checkStaffRole(actor, role); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	removed, err := s.roleRepo.Remove(ctx, user.ID, role)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, invalid("", fmt.Sprintf("user '%s' is not in the %s group", user.Username, role))
	}

	s.logger.Info("role revoked",
		zap.Uint("user_id", user.ID),
		zap.String("role", string(role)),
		zap.Uint("revoked_by", actor.UserID))
	return user, nil
}
