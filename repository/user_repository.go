package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/models"
)

// UserRepository handles database operations for operator accounts
type UserRepository struct {
	DB *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// Create creates a new user record in the database
func (r *UserRepository) Create(user *models.User) error {
	err := r.DB.Create(user).Error
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.DB.First(&user, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by ID %d: %w", id, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.DB.Where("username = ?", username).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return &user, nil
}

// CountAll returns the number of operator accounts
func (r *UserRepository) CountAll() (int64, error) {
	var count int64
	err := r.DB.Model(&models.User{}).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
