package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"little_lemon/internal/models"
	"little_lemon/internal/redis"
	"little_lemon/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SessionStore keeps issued auth tokens. *redis.Client implements it.
type SessionStore interface {
	SetToken(ctx context.Context, token string, userID uint, ttl time.Duration) error
	GetToken(ctx context.Context, token string) (uint, error)
	DeleteToken(ctx context.Context, token string) error
}

type RegisterInput struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

type userService struct {
	userRepo   repository.UserRepository
	sessions   SessionStore
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, sessions SessionStore, sessionTTL time.Duration, log *zap.Logger) UserService {
	return &userService{userRepo: userRepo, sessions: sessions, sessionTTL: sessionTTL, logger: log}
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, invalid("username", "this field is required")
	}
	if len(input.Password) < 8 {
		return nil, invalid("password", "must be at least 8 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: string(hashedPassword),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("username", "a user with that username already exists")
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login checks the password and issues a new token.
func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", invalid("", "unable to log in with provided credentials")
		}
		return "", err
	}
	if !user.IsActive || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", invalid("", "unable to log in with provided credentials")
	}

	token := uuid.New().String()
	if err := s.sessions.SetToken(ctx, token, user.ID, s.sessionTTL); err != nil {
		return "", err
	}
	return token, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteToken(ctx, token)
}

func (s *userService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	userID, err := s.sessions.GetToken(ctx, token)
	if err != nil {
		if errors.Is(err, redis.ErrTokenNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return user, nil
}
