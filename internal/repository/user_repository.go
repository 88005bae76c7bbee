package repository

import (
	"github.com/checkmate-app/checkmate-api/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsernameOrEmail finds a user whose username or email matches identifier
func (r *GormUserRepository) FindByUsernameOrEmail(identifier string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update persists changes to a user
func (r *GormUserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UsernameTaken reports whether a different user already holds the username
func (r *GormUserRepository) UsernameTaken(username string, excludeID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("username = ? AND id <> ?", username, excludeID).
		Count(&count).Error
	return count > 0, err
}

// EmailTaken reports whether a different user already holds the email
func (r *GormUserRepository) EmailTaken(email string, excludeID uint64) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&count).Error
	return count > 0, err
}
