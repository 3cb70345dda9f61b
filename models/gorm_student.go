package models

// Student represents an enrollable student using GORM.
// It corresponds to the 'students' table.
type Student struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	RegNo        string  `gorm:"not null;uniqueIndex" json:"reg_no"`
	Name         string  `gorm:"not null" json:"name"`
	DepartmentID string  `gorm:"not null;index" json:"department_id"`
	BatchYear    string  `gorm:"not null;index" json:"batch_year"`
	Semester     *string `json:"semester,omitempty"`
	Section      *string `json:"section,omitempty"`
	CreatedAt    int64   `gorm:"not null" json:"created_at"` // Unix timestamp
	UpdatedAt    int64   `gorm:"not null" json:"updated_at"` // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Student) TableName() string {
	return "students"
}
