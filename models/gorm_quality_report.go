package models

// QualityReport summarizes one quality-check sweep over a department/batch
// folder. It corresponds to the 'quality_reports' table.
type QualityReport struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DepartmentID    string `gorm:"not null;index" json:"department_id"`
	BatchYear       string `gorm:"not null;index" json:"batch_year"`
	TotalChecked    int    `gorm:"not null" json:"total_checked"`
	PassedCount     int    `gorm:"not null" json:"passed_count"`
	FailedCount     int    `gorm:"not null" json:"failed_count"`
	BorderlineCount int    `gorm:"not null" json:"borderline_count"`
	CreatedAt       int64  `gorm:"not null" json:"created_at"` // Unix timestamp

	Results []QualityResult `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (QualityReport) TableName() string {
	return "quality_reports"
}

// Per-student outcome categories within a report.
const (
	QualityOutcomePass       = "pass"
	QualityOutcomeBorderline = "borderline"
	QualityOutcomeFail       = "fail"
)

// QualityResult is the per-student line item of a QualityReport.
// Issues holds the human-readable fail/borderline reasons, one per line.
type QualityResult struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ReportID     uint   `gorm:"not null;index" json:"report_id"`
	StudentRegNo string `gorm:"not null" json:"student_reg_no"`
	Outcome      string `gorm:"not null" json:"outcome"`
	Issues       string `json:"issues,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (QualityResult) TableName() string {
	return "quality_results"
}
