package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
)

type stubGalleryRepo struct {
	galleries []models.Gallery
}

func (s *stubGalleryRepo) Create(*models.Gallery) error { return nil }
func (s *stubGalleryRepo) GetByID(uint) (*models.Gallery, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubGalleryRepo) GetByStudentRegNo(string) (*models.Gallery, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubGalleryRepo) GetByPath(string) (*models.Gallery, error) {
	return nil, gorm.ErrRecordNotFound
}
func (s *stubGalleryRepo) ListAll() ([]models.Gallery, error) { return s.galleries, nil }
func (s *stubGalleryRepo) ListByDepartmentAndBatch(departmentID, batchYear string) ([]models.Gallery, error) {
	var out []models.Gallery
	for _, g := range s.galleries {
		if g.DepartmentID == departmentID && g.BatchYear == batchYear {
			out = append(out, g)
		}
	}
	return out, nil
}
func (s *stubGalleryRepo) UpdateImageCount(uint, int) error { return nil }
func (s *stubGalleryRepo) SetStatus(uint, string) error     { return nil }
func (s *stubGalleryRepo) Delete(uint) error                { return nil }

// enrollStudent writes an embeddings sidecar and registers a ready gallery
// row for a student whose identity is a unit vector.
func enrollStudent(t *testing.T, store *media.LocalGalleryStore, repo *stubGalleryRepo, regNo string, vectors [][]float32) {
	t.Helper()
	dir := store.GalleryDir("DPT001", "2027", regNo)
	require.NoError(t, media.SaveGalleryEmbeddings(store, dir, media.GalleryEmbeddings{
		StudentRegNo: regNo,
		ModelName:    "arcface",
		Vectors:      vectors,
	}))
	repo.galleries = append(repo.galleries, models.Gallery{
		StudentRegNo: regNo,
		DepartmentID: "DPT001",
		BatchYear:    "2027",
		Path:         dir,
		ImageCount:   len(vectors),
		Status:       models.GalleryStatusReady,
	})
}

func newTestService(t *testing.T) (*RecognitionService, *media.LocalGalleryStore, *stubGalleryRepo) {
	t.Helper()
	store, err := media.NewLocalGalleryStore(t.TempDir())
	require.NoError(t, err)
	repo := &stubGalleryRepo{}
	return NewRecognitionService(repo, store, 0.5), store, repo
}

func TestMatchProbesFindsEnrolledStudent(t *testing.T) {
	svc, store, repo := newTestService(t)
	enrollStudent(t, store, repo, "7376221CS101", [][]float32{{1, 0, 0}})
	enrollStudent(t, store, repo, "7376221CS102", [][]float32{{0, 1, 0}})

	matches, err := svc.MatchProbes("DPT001", "2027", [][]float32{{1, 0, 0}})
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "7376221CS101", matches[0].StudentRegNo)
	assert.InDelta(t, 1.0, float64(matches[0].Similarity), 1e-6)
}

func TestMatchProbesNeverAssignsStudentTwice(t *testing.T) {
	svc, store, repo := newTestService(t)
	enrollStudent(t, store, repo, "7376221CS101", [][]float32{{1, 0, 0}})

	// two probes both resemble the same student; the closer one wins
	probes := [][]float32{
		media.NormalizeEmbedding([]float32{0.9, 0.1, 0}),
		{1, 0, 0},
	}
	matches, err := svc.MatchProbes("DPT001", "2027", probes)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "7376221CS101", matches[0].StudentRegNo)
	assert.InDelta(t, 1.0, float64(matches[0].Similarity), 1e-6)
}

func TestMatchProbesRespectsThreshold(t *testing.T) {
	svc, store, repo := newTestService(t)
	enrollStudent(t, store, repo, "7376221CS101", [][]float32{{1, 0, 0}})

	// orthogonal probe: similarity 0, below the 0.5 threshold
	matches, err := svc.MatchProbes("DPT001", "2027", [][]float32{{0, 0, 1}})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchProbesUsesBestGalleryVector(t *testing.T) {
	svc, store, repo := newTestService(t)
	enrollStudent(t, store, repo, "7376221CS101", [][]float32{
		{0, 1, 0},
		{1, 0, 0},
	})

	matches, err := svc.MatchProbes("DPT001", "2027", [][]float32{{1, 0, 0}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, float64(matches[0].Similarity), 1e-6)
}

func TestMatchProbesSkipsGalleriesWithoutSidecar(t *testing.T) {
	svc, store, repo := newTestService(t)
	enrollStudent(t, store, repo, "7376221CS101", [][]float32{{1, 0, 0}})

	// a ready gallery with no embeddings file must not break matching
	repo.galleries = append(repo.galleries, models.Gallery{
		StudentRegNo: "7376221CS999",
		DepartmentID: "DPT001",
		BatchYear:    "2027",
		Path:         store.GalleryDir("DPT001", "2027", "7376221CS999"),
		Status:       models.GalleryStatusReady,
	})

	matches, err := svc.MatchProbes("DPT001", "2027", [][]float32{{1, 0, 0}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "7376221CS101", matches[0].StudentRegNo)
}

func TestInvalidateGroupReloadsFromDisk(t *testing.T) {
	svc, store, repo := newTestService(t)
	enrollStudent(t, store, repo, "7376221CS101", [][]float32{{1, 0, 0}})

	_, err := svc.MatchProbes("DPT001", "2027", [][]float32{{1, 0, 0}})
	require.NoError(t, err)

	// a new enrollment after the cache warmed is invisible until invalidation
	enrollStudent(t, store, repo, "7376221CS102", [][]float32{{0, 1, 0}})

	matches, err := svc.MatchProbes("DPT001", "2027", [][]float32{{0, 1, 0}})
	require.NoError(t, err)
	assert.Empty(t, matches)

	svc.InvalidateGroup("DPT001", "2027")
	matches, err = svc.MatchProbes("DPT001", "2027", [][]float32{{0, 1, 0}})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "7376221CS102", matches[0].StudentRegNo)
}
