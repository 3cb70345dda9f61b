package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/config"
	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
	"github.com/campusface/enrollbackend/workers"
)

const maxUploadBytes = 512 << 20 // videos from phone cameras get large

// EnrollmentHandler accepts enrollment uploads. Videos are queued for the
// worker pool; still photos are orientation-corrected and stored directly.
type EnrollmentHandler struct {
	Config      config.Config
	Processor   *workers.EnrollProcessor
	StudentRepo repository.StudentRepositoryInterface
	GalleryRepo repository.GalleryRepositoryInterface
	Store       media.GalleryStore
	Locks       *workers.PathLocker
	Invalidator workers.GroupInvalidator
}

func NewEnrollmentHandler(
	cfg config.Config,
	processor *workers.EnrollProcessor,
	studentRepo repository.StudentRepositoryInterface,
	galleryRepo repository.GalleryRepositoryInterface,
	store media.GalleryStore,
	locks *workers.PathLocker,
	invalidator workers.GroupInvalidator,
) *EnrollmentHandler {
	return &EnrollmentHandler{
		Config:      cfg,
		Processor:   processor,
		StudentRepo: studentRepo,
		GalleryRepo: galleryRepo,
		Store:       store,
		Locks:       locks,
		Invalidator: invalidator,
	}
}

// UploadVideo handles POST /api/enrollments/video. The video lands in the
// uploads directory and a job is queued; processing is asynchronous.
func (h *EnrollmentHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "failed to parse multipart form: "+err.Error())
		return
	}

	student, ok := h.lookupStudent(w, r.FormValue("reg_no"))
	if !ok {
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "video file is required")
		return
	}
	defer file.Close()

	if !media.IsVideoFile(header.Filename) {
		WriteAPIError(w, http.StatusUnsupportedMediaType, "unsupported_format", "unsupported video format")
		return
	}

	videoPath, err := h.saveUpload(file, filepath.Ext(header.Filename))
	if err != nil {
		log.Printf("enrollment: ERROR saving uploaded video for %s: %v", student.RegNo, err)
		WriteAPIError(w, http.StatusInternalServerError, "storage_error", "failed to store uploaded video")
		return
	}

	queued := h.Processor.QueueJob(workers.EnrollJob{
		VideoPath:    videoPath,
		StudentRegNo: student.RegNo,
		DepartmentID: student.DepartmentID,
		BatchYear:    student.BatchYear,
	})
	if !queued {
		os.Remove(videoPath)
		WriteAPIError(w, http.StatusConflict, "already_queued", "an enrollment for this student is already queued or the queue is full")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "queued",
		"reg_no":  student.RegNo,
		"gallery": h.Store.GalleryDir(student.DepartmentID, student.BatchYear, student.RegNo),
	})
}

// UploadPhotos handles POST /api/enrollments/photos: operator-curated stills
// that bypass the video pipeline. EXIF orientation is applied before storing.
func (h *EnrollmentHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "failed to parse multipart form: "+err.Error())
		return
	}

	student, ok := h.lookupStudent(w, r.FormValue("reg_no"))
	if !ok {
		return
	}

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "at least one photo is required")
		return
	}

	galleryDir := h.Store.GalleryDir(student.DepartmentID, student.BatchYear, student.RegNo)
	gallery, err := h.ensureGalleryRow(student, galleryDir)
	if err != nil {
		log.Printf("enrollment: ERROR preparing gallery row for %s: %v", student.RegNo, err)
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to prepare gallery record")
		return
	}

	h.Locks.Lock(galleryDir)
	defer h.Locks.Unlock(galleryDir)

	saved := 0
	for _, fh := range files {
		if !media.IsRasterImage(fh.Filename) {
			continue
		}
		if err := h.savePhoto(galleryDir, fh); err != nil {
			log.Printf("enrollment: ERROR storing photo %s for %s: %v. Skipping photo.", fh.Filename, student.RegNo, err)
			continue
		}
		saved++
	}
	h.refreshGallery(gallery, galleryDir, student)
	if saved == 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "no usable photos in upload")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"reg_no":      student.RegNo,
		"gallery":     galleryDir,
		"photos_used": saved,
	})
}

// refreshGallery settles the row from disk truth and drops cached
// recognition state for the student's group. An empty gallery is flagged
// for review rather than left pending, so reconciliation still covers it.
func (h *EnrollmentHandler) refreshGallery(gallery *models.Gallery, galleryDir string, student *models.Student) {
	count, err := h.Store.CountFiles(galleryDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("enrollment: ERROR counting gallery files for %s: %v", student.RegNo, err)
			return
		}
		count = 0
	}
	if err := h.GalleryRepo.UpdateImageCount(gallery.ID, count); err != nil {
		log.Printf("enrollment: ERROR updating image count for %s: %v", student.RegNo, err)
	}
	status := models.GalleryStatusOrphaned
	if count > 0 {
		status = models.GalleryStatusReady
	}
	if err := h.GalleryRepo.SetStatus(gallery.ID, status); err != nil {
		log.Printf("enrollment: ERROR updating gallery status for %s: %v", student.RegNo, err)
	}
	if h.Invalidator != nil {
		h.Invalidator.InvalidateGroup(student.DepartmentID, student.BatchYear)
	}
}

func (h *EnrollmentHandler) lookupStudent(w http.ResponseWriter, regNo string) (*models.Student, bool) {
	if regNo == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "reg_no is required")
		return nil, false
	}
	student, err := h.StudentRepo.GetByRegNo(regNo)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			WriteAPIError(w, http.StatusNotFound, "student_not_found", "no student with that registration number")
			return nil, false
		}
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to look up student")
		return nil, false
	}
	return student, true
}

func (h *EnrollmentHandler) ensureGalleryRow(student *models.Student, galleryDir string) (*models.Gallery, error) {
	gallery, err := h.GalleryRepo.GetByStudentRegNo(student.RegNo)
	if err == nil {
		return gallery, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	gallery = &models.Gallery{
		StudentRegNo: student.RegNo,
		DepartmentID: student.DepartmentID,
		BatchYear:    student.BatchYear,
		Path:         galleryDir,
		Status:       models.GalleryStatusPending,
	}
	if err := h.GalleryRepo.Create(gallery); err != nil {
		return nil, err
	}
	return gallery, nil
}

func (h *EnrollmentHandler) saveUpload(file io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(h.Config.UploadsPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}
	uploadUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate upload UUID: %w", err)
	}
	dest := filepath.Join(h.Config.UploadsPath, uploadUUID.String()+ext)

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return dest, nil
}

func (h *EnrollmentHandler) savePhoto(galleryDir string, fh *multipart.FileHeader) error {
	file, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded photo: %w", err)
	}
	defer file.Close()

	img, err := media.DecodeOriented(file)
	if err != nil {
		return fmt.Errorf("failed to decode photo: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(92)); err != nil {
		return fmt.Errorf("failed to encode photo: %w", err)
	}

	photoUUID, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("failed to generate photo UUID: %w", err)
	}
	_, err = h.Store.Save(galleryDir, "photo_"+photoUUID.String()+".jpg", &buf)
	return err
}
