package services

import (
	"context"
	"strings"

	"github.com/vladimiradmaev/dish-journal/internal/database"
	apperrors "github.com/vladimiradmaev/dish-journal/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type UserStore interface {
	Create(ctx context.Context, user *database.User) error
	GetByUsername(ctx context.Context, username string) (*database.User, error)
	GetByID(ctx context.Context, id uint) (*database.User, error)
	GetOrCreateByTelegramID(ctx context.Context, telegramID int64, username string) (*database.User, error)
}

type UserService struct {
	users UserStore
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Register(ctx context.Context, username, password string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperrors.NewValidationError("Username is required")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("Password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &database.User{
		Username:       username,
		HashedPassword: string(hash),
		Role:           "user",
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks a login. Unknown users and wrong passwords produce the
// same error.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.New(apperrors.ErrorTypePermission, "INVALID_CREDENTIALS", "Invalid username or password")
		}
		return nil, err
	}
	if user.HashedPassword == "" || bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return nil, apperrors.New(apperrors.ErrorTypePermission, "INVALID_CREDENTIALS", "Invalid username or password")
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*database.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetOrCreateTelegramUser returns the account of a bot user, creating it on
// first contact.
func (s *UserService) GetOrCreateTelegramUser(ctx context.Context, telegramID int64, username string) (*database.User, error) {
	return s.users.GetOrCreateByTelegramID(ctx, telegramID, username)
}
