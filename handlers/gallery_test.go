package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
)

type stubGalleryRepo struct {
	galleries map[uint]*models.Gallery
	nextID    uint
}

func newStubGalleryRepo() *stubGalleryRepo {
	return &stubGalleryRepo{galleries: make(map[uint]*models.Gallery), nextID: 1}
}

func (s *stubGalleryRepo) Create(gallery *models.Gallery) error {
	gallery.ID = s.nextID
	s.nextID++
	copied := *gallery
	s.galleries[gallery.ID] = &copied
	return nil
}

func (s *stubGalleryRepo) GetByID(id uint) (*models.Gallery, error) {
	g, ok := s.galleries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *g
	return &copied, nil
}

func (s *stubGalleryRepo) GetByStudentRegNo(regNo string) (*models.Gallery, error) {
	for _, g := range s.galleries {
		if g.StudentRegNo == regNo {
			copied := *g
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGalleryRepo) GetByPath(path string) (*models.Gallery, error) {
	for _, g := range s.galleries {
		if g.Path == path {
			copied := *g
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubGalleryRepo) ListAll() ([]models.Gallery, error) {
	out := make([]models.Gallery, 0, len(s.galleries))
	for id := uint(1); id < s.nextID; id++ {
		if g, ok := s.galleries[id]; ok {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *stubGalleryRepo) ListByDepartmentAndBatch(departmentID, batchYear string) ([]models.Gallery, error) {
	all, _ := s.ListAll()
	var out []models.Gallery
	for _, g := range all {
		if g.DepartmentID == departmentID && g.BatchYear == batchYear {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *stubGalleryRepo) UpdateImageCount(id uint, count int) error {
	g, ok := s.galleries[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	g.ImageCount = count
	return nil
}

func (s *stubGalleryRepo) SetStatus(id uint, status string) error {
	g, ok := s.galleries[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	g.Status = status
	return nil
}

func (s *stubGalleryRepo) Delete(id uint) error {
	if _, ok := s.galleries[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.galleries, id)
	return nil
}

type stubInvalidator struct {
	groups []string
}

func (s *stubInvalidator) InvalidateGroup(departmentID, batchYear string) {
	s.groups = append(s.groups, departmentID+"_"+batchYear)
}

func TestGalleryDeleteRemovesRowAndDropsCachedGroup(t *testing.T) {
	store, err := media.NewLocalGalleryStore(t.TempDir())
	require.NoError(t, err)
	repo := newStubGalleryRepo()
	inv := &stubInvalidator{}

	galleryDir := store.GalleryDir("cs", "2024", "CS2024010")
	_, err = store.Save(galleryDir, "face_1.jpg", strings.NewReader("jpegdata"))
	require.NoError(t, err)
	require.NoError(t, repo.Create(&models.Gallery{
		StudentRegNo: "CS2024010",
		DepartmentID: "cs",
		BatchYear:    "2024",
		Path:         galleryDir,
		Status:       models.GalleryStatusReady,
		ImageCount:   1,
	}))

	h := NewGalleryHandler(repo, store, nil, inv)
	r := chi.NewRouter()
	r.Delete("/api/galleries/{id}", h.Delete)

	req := httptest.NewRequest(http.MethodDelete, "/api/galleries/1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = repo.GetByID(1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Equal(t, []string{"cs_2024"}, inv.groups)

	_, err = store.ListFiles(galleryDir)
	assert.Error(t, err, "gallery directory should be gone after delete")
}

func TestGalleryDeleteUnknownIDReturnsNotFound(t *testing.T) {
	store, err := media.NewLocalGalleryStore(t.TempDir())
	require.NoError(t, err)
	inv := &stubInvalidator{}

	h := NewGalleryHandler(newStubGalleryRepo(), store, nil, inv)
	r := chi.NewRouter()
	r.Delete("/api/galleries/{id}", h.Delete)

	req := httptest.NewRequest(http.MethodDelete, "/api/galleries/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, inv.groups, "no cache group should be dropped for a missing row")
}
