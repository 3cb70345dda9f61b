package models

// Gallery statuses. A gallery is "pending" while its enrollment video is
// still being processed, "ready" once accepted face crops exist on disk, and
// "orphaned" when the reconciler finds its path missing or empty. Orphaned
// rows are kept for operator review, never deleted automatically.
const (
	GalleryStatusPending  = "pending"
	GalleryStatusReady    = "ready"
	GalleryStatusOrphaned = "orphaned"
)

// Gallery represents the stored set of accepted face images for one enrolled
// student, using GORM. It corresponds to the 'galleries' table. The image
// bytes live on disk under Path; this row holds the metadata, and the
// reconciler keeps ImageCount equal to the number of files under Path.
type Gallery struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentRegNo string `gorm:"not null;uniqueIndex" json:"student_reg_no"`
	DepartmentID string `gorm:"not null;index" json:"department_id"`
	BatchYear    string `gorm:"not null;index" json:"batch_year"`
	Path         string `gorm:"not null;uniqueIndex" json:"path"` // relative to the galleries root
	ImageCount   int    `gorm:"not null;default:0" json:"image_count"`
	Status       string `gorm:"not null;default:pending" json:"status"`
	CreatedAt    int64  `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt    int64  `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Gallery) TableName() string {
	return "galleries"
}
