package repository

import (
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/models"
)

// GalleryRepository handles database operations for Gallery entities
type GalleryRepository struct {
	DB *gorm.DB
}

// NewGalleryRepository creates a new instance of GalleryRepository
func NewGalleryRepository(db *gorm.DB) *GalleryRepository {
	return &GalleryRepository{DB: db}
}

// Create creates a new gallery record in the database
func (r *GalleryRepository) Create(gallery *models.Gallery) error {
	now := time.Now().Unix()
	if gallery.CreatedAt == 0 {
		gallery.CreatedAt = now
	}
	gallery.UpdatedAt = now
	gallery.Path = filepath.ToSlash(gallery.Path)
	if gallery.Status == "" {
		gallery.Status = models.GalleryStatusPending
	}

	err := r.DB.Create(gallery).Error
	if err != nil {
		return fmt.Errorf("failed to create gallery for student %s: %w", gallery.StudentRegNo, err)
	}
	return nil
}

// GetByID retrieves a gallery by its ID
func (r *GalleryRepository) GetByID(id uint) (*models.Gallery, error) {
	var gallery models.Gallery
	err := r.DB.First(&gallery, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get gallery by ID %d: %w", id, err)
	}
	return &gallery, nil
}

// GetByStudentRegNo retrieves the gallery for one student
func (r *GalleryRepository) GetByStudentRegNo(regNo string) (*models.Gallery, error) {
	var gallery models.Gallery
	err := r.DB.Where("student_reg_no = ?", regNo).First(&gallery).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get gallery for student %s: %w", regNo, err)
	}
	return &gallery, nil
}

// GetByPath retrieves a gallery by its on-disk path
func (r *GalleryRepository) GetByPath(path string) (*models.Gallery, error) {
	cleanPath := filepath.ToSlash(path)
	var gallery models.Gallery
	err := r.DB.Where("path = ?", cleanPath).First(&gallery).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get gallery by path %s: %w", cleanPath, err)
	}
	return &gallery, nil
}

// ListAll retrieves every gallery record, ordered by path for deterministic sweeps
func (r *GalleryRepository) ListAll() ([]models.Gallery, error) {
	var galleries []models.Gallery
	err := r.DB.Order("path ASC").Find(&galleries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list galleries: %w", err)
	}
	return galleries, nil
}

// ListByDepartmentAndBatch retrieves the galleries of one department/batch group
func (r *GalleryRepository) ListByDepartmentAndBatch(departmentID, batchYear string) ([]models.Gallery, error) {
	var galleries []models.Gallery
	err := r.DB.Where("department_id = ? AND batch_year = ?", departmentID, batchYear).
		Order("student_reg_no ASC").Find(&galleries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list galleries for %s/%s: %w", departmentID, batchYear, err)
	}
	return galleries, nil
}

// UpdateImageCount sets the stored accepted-image count for a gallery
func (r *GalleryRepository) UpdateImageCount(id uint, count int) error {
	updates := map[string]interface{}{
		"image_count": count,
		"updated_at":  time.Now().Unix(),
	}
	result := r.DB.Model(&models.Gallery{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update image count for gallery ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetStatus updates a gallery's status (pending/ready/orphaned)
func (r *GalleryRepository) SetStatus(id uint, status string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().Unix(),
	}
	result := r.DB.Model(&models.Gallery{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set status for gallery ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a gallery row by its ID
func (r *GalleryRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Gallery{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete gallery ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
