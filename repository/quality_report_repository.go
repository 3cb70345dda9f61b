package repository

import (
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/models"
)

// QualityReportRepository handles persistence of quality-check reports
type QualityReportRepository struct {
	DB *gorm.DB
}

// NewQualityReportRepository creates a new instance of QualityReportRepository
func NewQualityReportRepository(db *gorm.DB) *QualityReportRepository {
	return &QualityReportRepository{DB: db}
}

// Create stores a report together with its per-student results
func (r *QualityReportRepository) Create(report *models.QualityReport) error {
	if report.CreatedAt == 0 {
		report.CreatedAt = time.Now().Unix()
	}
	err := r.DB.Create(report).Error
	if err != nil {
		return fmt.Errorf("failed to create quality report for %s/%s: %w", report.DepartmentID, report.BatchYear, err)
	}
	return nil
}

// GetByID retrieves a report with its per-student results preloaded
func (r *QualityReportRepository) GetByID(id uint) (*models.QualityReport, error) {
	var report models.QualityReport
	err := r.DB.Preload("Results").First(&report, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get quality report ID %d: %w", id, err)
	}
	return &report, nil
}

// ReportFilter narrows a report search; zero values mean "any"
type ReportFilter struct {
	DepartmentID string
	BatchYear    string
	Since        int64 // Unix timestamp; 0 means no lower bound
	Limit        int
}

// ReportSummary is one row of a report search
type ReportSummary struct {
	ID              uint   `json:"id"`
	DepartmentID    string `json:"department_id"`
	BatchYear       string `json:"batch_year"`
	TotalChecked    int    `json:"total_checked"`
	PassedCount     int    `json:"passed_count"`
	FailedCount     int    `json:"failed_count"`
	BorderlineCount int    `json:"borderline_count"`
	CreatedAt       int64  `json:"created_at"`
}

// Search runs a dynamic filtered query over reports, newest first. Built with
// squirrel so optional filters compose without string assembly.
func (r *QualityReportRepository) Search(filter ReportFilter) ([]ReportSummary, error) {
	builder := sq.Select(
		"id", "department_id", "batch_year",
		"total_checked", "passed_count", "failed_count", "borderline_count",
		"created_at",
	).From("quality_reports").OrderBy("created_at DESC")

	if filter.DepartmentID != "" {
		builder = builder.Where(sq.Eq{"department_id": filter.DepartmentID})
	}
	if filter.BatchYear != "" {
		builder = builder.Where(sq.Eq{"batch_year": filter.BatchYear})
	}
	if filter.Since > 0 {
		builder = builder.Where(sq.GtOrEq{"created_at": filter.Since})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build report query: %w", err)
	}

	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	rows, err := sqlDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quality reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var s ReportSummary
		if err := rows.Scan(
			&s.ID, &s.DepartmentID, &s.BatchYear,
			&s.TotalChecked, &s.PassedCount, &s.FailedCount, &s.BorderlineCount,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quality report row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quality report rows: %w", err)
	}

	return summaries, nil
}
