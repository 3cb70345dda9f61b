package repository

import (
	"github.com/campusface/enrollbackend/models"
)

// GalleryRepositoryInterface defines the methods for gallery metadata operations
type GalleryRepositoryInterface interface {
	Create(gallery *models.Gallery) error
	GetByID(id uint) (*models.Gallery, error)
	GetByStudentRegNo(regNo string) (*models.Gallery, error)
	GetByPath(path string) (*models.Gallery, error)
	ListAll() ([]models.Gallery, error)
	ListByDepartmentAndBatch(departmentID, batchYear string) ([]models.Gallery, error)
	UpdateImageCount(id uint, count int) error
	SetStatus(id uint, status string) error
	Delete(id uint) error
}

// StudentRepositoryInterface defines the methods for student data operations
type StudentRepositoryInterface interface {
	Create(student *models.Student) error
	GetByRegNo(regNo string) (*models.Student, error)
	ListByDepartmentAndBatch(departmentID, batchYear string) ([]models.Student, error)
	ListAll() ([]models.Student, error)
	Update(student *models.Student) error
	Delete(id uint) error
}

// QualityReportRepositoryInterface defines the methods for quality report persistence
type QualityReportRepositoryInterface interface {
	Create(report *models.QualityReport) error
	GetByID(id uint) (*models.QualityReport, error)
	Search(filter ReportFilter) ([]ReportSummary, error)
}

// UserRepositoryInterface defines the methods for operator account operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	CountAll() (int64, error)
}
