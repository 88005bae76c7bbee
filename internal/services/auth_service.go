package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/checkmate-app/checkmate-api/internal/constants"
	"github.com/checkmate-app/checkmate-api/internal/models"
	"github.com/checkmate-app/checkmate-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameRequired     = errors.New("username is required")
	ErrEmailRequired        = errors.New("email is required")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrEmailTaken           = errors.New("email already registered")
	ErrPasswordTooShort     = errors.New("password too short")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrWrongPassword        = errors.New("incorrect old password")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

// AuthService handles registration, credential verification and profile
// changes.
type AuthService struct {
	userRepo repository.UserRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// RegisterInput represents the required information to create a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new user after uniqueness and password checks.
func (s *AuthService) Register(input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if taken, err := s.userRepo.UsernameTaken(username, 0); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	} else if taken {
		return nil, ErrUsernameTaken
	}

	if taken, err := s.userRepo.EmailTaken(email, 0); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	} else if taken {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// LoginInput holds the credentials for authentication. Identifier is a
// username or an email address.
type LoginInput struct {
	Identifier string
	Password   string
}

// Login verifies credentials and returns the authenticated user.
func (s *AuthService) Login(input LoginInput) (*models.User, error) {
	user, err := s.userRepo.FindByUsernameOrEmail(input.Identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// UpdateProfileInput holds the editable profile fields.
type UpdateProfileInput struct {
	Username string
	Email    string
}

// UpdateProfile changes a user's username and email, re-checking
// uniqueness against everyone but the user themselves.
func (s *AuthService) UpdateProfile(userID uint64, input UpdateProfileInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	if username == "" {
		return nil, ErrUsernameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}

	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	if taken, err := s.userRepo.UsernameTaken(username, userID); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	} else if taken {
		return nil, ErrUsernameTaken
	}

	if taken, err := s.userRepo.EmailTaken(email, userID); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	} else if taken {
		return nil, ErrEmailTaken
	}

	user.Username = username
	user.Email = email

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user, nil
}

// ChangePassword replaces the user's password after verifying the old one.
func (s *AuthService) ChangePassword(userID uint64, oldPassword, newPassword string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrWrongPassword
	}

	if len(newPassword) < constants.MinPasswordLength {
		return ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrFailedToHashPassword
	}

	user.PasswordHash = string(hashedPassword)

	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}

	return nil
}
