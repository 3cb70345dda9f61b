package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/repository"
)

const defaultReportLimit = 50

// ReportHandler exposes quality report search and retrieval
type ReportHandler struct {
	ReportRepo repository.QualityReportRepositoryInterface
}

func NewReportHandler(reportRepo repository.QualityReportRepositoryInterface) *ReportHandler {
	return &ReportHandler{ReportRepo: reportRepo}
}

// Search handles GET /api/reports with optional department_id, batch_year,
// since (unix seconds), and limit query parameters
func (h *ReportHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.ReportFilter{
		DepartmentID: q.Get("department_id"),
		BatchYear:    q.Get("batch_year"),
		Limit:        defaultReportLimit,
	}
	if s := q.Get("since"); s != "" {
		since, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, "invalid_filter", "since must be a unix timestamp")
			return
		}
		filter.Since = since
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_filter", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	summaries, err := h.ReportRepo.Search(filter)
	if err != nil {
		log.Printf("reports: ERROR searching reports: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to search reports")
		return
	}
	if summaries == nil {
		summaries = []repository.ReportSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Get handles GET /api/reports/{id}, returning the full report with its
// per-student results
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "report id must be numeric")
		return
	}

	report, err := h.ReportRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "report_not_found", "no report with that id")
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to fetch report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
