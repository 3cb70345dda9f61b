package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/models"
)

// StudentRepository handles database operations for Student entities
type StudentRepository struct {
	DB *gorm.DB
}

// NewStudentRepository creates a new instance of StudentRepository
func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{DB: db}
}

// Create creates a new student record in the database
func (r *StudentRepository) Create(student *models.Student) error {
	now := time.Now().Unix()
	if student.CreatedAt == 0 {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	err := r.DB.Create(student).Error
	if err != nil {
		return fmt.Errorf("failed to create student %s: %w", student.RegNo, err)
	}
	return nil
}

// GetByRegNo retrieves a student by register number
func (r *StudentRepository) GetByRegNo(regNo string) (*models.Student, error) {
	var student models.Student
	err := r.DB.Where("reg_no = ?", regNo).First(&student).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get student %s: %w", regNo, err)
	}
	return &student, nil
}

// ListByDepartmentAndBatch retrieves all students of one department/batch group
func (r *StudentRepository) ListByDepartmentAndBatch(departmentID, batchYear string) ([]models.Student, error) {
	var students []models.Student
	err := r.DB.Where("department_id = ? AND batch_year = ?", departmentID, batchYear).
		Order("reg_no ASC").Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students for %s/%s: %w", departmentID, batchYear, err)
	}
	return students, nil
}

// ListAll retrieves every student record
func (r *StudentRepository) ListAll() ([]models.Student, error) {
	var students []models.Student
	err := r.DB.Order("reg_no ASC").Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// Update saves changes to an existing student
func (r *StudentRepository) Update(student *models.Student) error {
	student.UpdatedAt = time.Now().Unix()
	err := r.DB.Save(student).Error
	if err != nil {
		return fmt.Errorf("failed to update student %s: %w", student.RegNo, err)
	}
	return nil
}

// Delete removes a student by ID
func (r *StudentRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Student{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete student ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
