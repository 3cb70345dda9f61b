package models

// Department represents an academic department using GORM.
// It corresponds to the 'departments' table. DepartmentID is the
// campus-assigned code (e.g. "DPT001"), distinct from the row ID.
type Department struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DepartmentID string `gorm:"not null;uniqueIndex" json:"department_id"`
	Name         string `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt    int64  `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Department) TableName() string {
	return "departments"
}

// BatchYear represents an admissible batch year (e.g. "2027").
// It corresponds to the 'batch_years' table.
type BatchYear struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Year      string `gorm:"not null;uniqueIndex" json:"year"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (BatchYear) TableName() string {
	return "batch_years"
}
