package workers

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusface/enrollbackend/config"
	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
)

type fakeReportRepo struct {
	mu      sync.Mutex
	reports []*models.QualityReport
}

func (f *fakeReportRepo) Create(report *models.QualityReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeReportRepo) GetByID(id uint) (*models.QualityReport, error) {
	return nil, nil
}

func (f *fakeReportRepo) Search(filter repository.ReportFilter) ([]repository.ReportSummary, error) {
	return nil, nil
}

type recordingInvalidator struct {
	mu     sync.Mutex
	groups []string
}

func (r *recordingInvalidator) InvalidateGroup(departmentID, batchYear string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, departmentID+"_"+batchYear)
}

// newTestProcessor builds a processor without starting workers so the
// pipeline methods can be driven directly
func newTestProcessor(store media.GalleryStore, repo *fakeGalleryRepo, reports *fakeReportRepo, inv GroupInvalidator) *EnrollProcessor {
	return &EnrollProcessor{
		JobQueue:    make(chan EnrollJob, 4),
		Config:      config.Config{FrameSampleCount: 5},
		Gate:        media.NewGate(media.Thresholds{}),
		Store:       store,
		GalleryRepo: repo,
		ReportRepo:  reports,
		Locks:       NewPathLocker(),
		Invalidator: inv,
		StopChan:    make(chan struct{}),
		Pending:     make(map[string]bool),
	}
}

func TestProcessEnrollmentSettlesRowWhenDetectorDisabled(t *testing.T) {
	store := newTestStore(t)
	repo := newFakeGalleryRepo()
	reports := &fakeReportRepo{}
	inv := &recordingInvalidator{}
	proc := newTestProcessor(store, repo, reports, inv)

	job := EnrollJob{
		VideoPath:    filepath.Join(t.TempDir(), "clip.mp4"),
		StudentRegNo: "CS2024001",
		DepartmentID: "cs",
		BatchYear:    "2024",
	}
	proc.processEnrollment(job, nil, nil)

	gallery, err := repo.GetByStudentRegNo("CS2024001")
	require.NoError(t, err)
	assert.Equal(t, models.GalleryStatusOrphaned, gallery.Status)
	assert.Equal(t, 0, gallery.ImageCount)
	assert.Equal(t, []string{"cs_2024"}, inv.groups)
}

func TestProcessEnrollmentSettlesRowWhenVideoMissing(t *testing.T) {
	store := newTestStore(t)
	repo := newFakeGalleryRepo()
	reports := &fakeReportRepo{}
	inv := &recordingInvalidator{}
	proc := newTestProcessor(store, repo, reports, inv)

	detector := &media.FaceDetector{Enabled: true}
	job := EnrollJob{
		VideoPath:    filepath.Join(t.TempDir(), "does-not-exist.mp4"),
		StudentRegNo: "CS2024002",
		DepartmentID: "cs",
		BatchYear:    "2024",
	}
	proc.processEnrollment(job, detector, nil)

	gallery, err := repo.GetByStudentRegNo("CS2024002")
	require.NoError(t, err)
	assert.Equal(t, models.GalleryStatusOrphaned, gallery.Status)
	assert.Len(t, inv.groups, 1)
}

func TestProcessEnrollmentMarksExistingImagesReady(t *testing.T) {
	store := newTestStore(t)
	repo := newFakeGalleryRepo()
	reports := &fakeReportRepo{}
	inv := &recordingInvalidator{}
	proc := newTestProcessor(store, repo, reports, inv)

	// a prior photo upload already populated the gallery directory
	galleryDir := store.GalleryDir("cs", "2024", "CS2024003")
	seedGalleryFiles(t, store, galleryDir, 2)

	job := EnrollJob{
		VideoPath:    filepath.Join(t.TempDir(), "clip.mp4"),
		StudentRegNo: "CS2024003",
		DepartmentID: "cs",
		BatchYear:    "2024",
	}
	proc.processEnrollment(job, nil, nil)

	gallery, err := repo.GetByStudentRegNo("CS2024003")
	require.NoError(t, err)
	assert.Equal(t, models.GalleryStatusReady, gallery.Status)
	assert.Equal(t, 2, gallery.ImageCount)
	assert.Equal(t, []string{"cs_2024"}, inv.groups)
}

func TestQueueJobDeduplicatesByStudent(t *testing.T) {
	proc := newTestProcessor(newTestStore(t), newFakeGalleryRepo(), &fakeReportRepo{}, nil)

	job := EnrollJob{StudentRegNo: "CS2024004", DepartmentID: "cs", BatchYear: "2024"}
	assert.True(t, proc.QueueJob(job))
	assert.False(t, proc.QueueJob(job), "second queue for the same student should be rejected")
}

func yaws(vals ...float64) []float64 { return vals }

func TestCategorize(t *testing.T) {
	tests := []struct {
		name        string
		tally       videoTally
		wantOutcome string
		wantIssue   string
	}{
		{
			name:        "enough varied faces pass",
			tally:       videoTally{accepted: 5, acceptedYaws: yaws(-12, 0, 14, 5, -3)},
			wantOutcome: models.QualityOutcomePass,
		},
		{
			name:        "too few accepted faces fail",
			tally:       videoTally{accepted: 2, acceptedYaws: yaws(-12, 14)},
			wantOutcome: models.QualityOutcomeFail,
			wantIssue:   "too few usable faces",
		},
		{
			name:        "crowded video fails",
			tally:       videoTally{accepted: 6, multiFaceFrames: multiFaceFrameLimit, acceptedYaws: yaws(-12, 0, 14, 5, -3, 9)},
			wantOutcome: models.QualityOutcomeFail,
			wantIssue:   "multiple people",
		},
		{
			name: "rejected frames are borderline",
			tally: videoTally{
				accepted:     4,
				acceptedYaws: yaws(-12, 0, 14, 5),
				rejects:      map[media.FailReason]int{media.FailBlurry: 3},
			},
			wantOutcome: models.QualityOutcomeBorderline,
			wantIssue:   "blurry",
		},
		{
			name:        "occasional second face is borderline",
			tally:       videoTally{accepted: 4, multiFaceFrames: 2, acceptedYaws: yaws(-12, 0, 14, 5)},
			wantOutcome: models.QualityOutcomeBorderline,
			wantIssue:   "multiple people in 2 frames",
		},
		{
			name:        "motion smear is borderline",
			tally:       videoTally{accepted: 4, motionBlurFrames: 3, acceptedYaws: yaws(-12, 0, 14, 5)},
			wantOutcome: models.QualityOutcomeBorderline,
			wantIssue:   "motion blur in 3 frames",
		},
		{
			name:        "narrow yaw spread is borderline",
			tally:       videoTally{accepted: 4, acceptedYaws: yaws(1, 2, 3, 2.5)},
			wantOutcome: models.QualityOutcomeBorderline,
			wantIssue:   "little head-pose variety",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			outcome, issues := categorize(tc.tally)
			assert.Equal(t, tc.wantOutcome, outcome)
			if tc.wantIssue == "" {
				assert.Empty(t, issues)
				return
			}
			found := false
			for _, issue := range issues {
				if strings.Contains(issue, tc.wantIssue) {
					found = true
				}
			}
			assert.True(t, found, "expected an issue mentioning %q, got %v", tc.wantIssue, issues)
		})
	}
}
