package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
	"github.com/campusface/enrollbackend/workers"
)

// GalleryHandler exposes gallery metadata and the manual reconciliation
// trigger
type GalleryHandler struct {
	GalleryRepo repository.GalleryRepositoryInterface
	Store       media.GalleryStore
	Reconciler  *workers.Reconciler
	Invalidator workers.GroupInvalidator
}

func NewGalleryHandler(galleryRepo repository.GalleryRepositoryInterface, store media.GalleryStore, reconciler *workers.Reconciler, invalidator workers.GroupInvalidator) *GalleryHandler {
	return &GalleryHandler{GalleryRepo: galleryRepo, Store: store, Reconciler: reconciler, Invalidator: invalidator}
}

// List handles GET /api/galleries with optional department_id and batch_year
// query filters
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	departmentID := r.URL.Query().Get("department_id")
	batchYear := r.URL.Query().Get("batch_year")

	var galleries []models.Gallery
	var err error
	if departmentID != "" && batchYear != "" {
		galleries, err = h.GalleryRepo.ListByDepartmentAndBatch(departmentID, batchYear)
	} else {
		galleries, err = h.GalleryRepo.ListAll()
	}
	if err != nil {
		log.Printf("gallery: ERROR listing galleries: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to list galleries")
		return
	}

	if galleries == nil {
		galleries = []models.Gallery{}
	}
	writeJSON(w, http.StatusOK, galleries)
}

// Get handles GET /api/galleries/{regNo}, returning the gallery row plus its
// current file listing
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	regNo := chi.URLParam(r, "regNo")

	gallery, err := h.GalleryRepo.GetByStudentRegNo(regNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "gallery_not_found", "no gallery for that registration number")
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to fetch gallery")
		return
	}

	files, err := h.Store.ListFiles(gallery.Path)
	if err != nil {
		// a missing directory is exactly what the orphaned status reports
		files = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gallery": gallery,
		"files":   files,
	})
}

// Delete handles DELETE /api/galleries/{id}: removes the metadata row and the
// gallery directory. Intended for rows an operator reviewed after they were
// flagged orphaned.
func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "gallery id must be numeric")
		return
	}

	gallery, err := h.GalleryRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "gallery_not_found", "no gallery with that id")
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to fetch gallery")
		return
	}

	if err := h.GalleryRepo.Delete(gallery.ID); err != nil {
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to delete gallery record")
		return
	}
	if err := h.Store.RemoveGallery(gallery.Path); err != nil {
		// the next reconciliation sweep will remove the now-orphaned directory
		log.Printf("gallery: WARN failed to remove directory %s after row delete: %v", gallery.Path, err)
	}
	if h.Invalidator != nil {
		h.Invalidator.InvalidateGroup(gallery.DepartmentID, gallery.BatchYear)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reconcile handles POST /api/galleries/reconcile, running one sweep
// synchronously and returning its stats
func (h *GalleryHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reconciler.ReconcileAll()
	if err != nil {
		if errors.Is(err, workers.ErrSweepInProgress) {
			WriteAPIError(w, http.StatusConflict, "sweep_in_progress", "a reconciliation sweep is already running")
			return
		}
		log.Printf("gallery: ERROR manual reconciliation failed: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "reconcile_error", "reconciliation sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
