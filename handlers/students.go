package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
)

// StudentHandler manages the student roster that enrollments attach to
type StudentHandler struct {
	StudentRepo repository.StudentRepositoryInterface
}

func NewStudentHandler(studentRepo repository.StudentRepositoryInterface) *StudentHandler {
	return &StudentHandler{StudentRepo: studentRepo}
}

type CreateStudentPayload struct {
	RegNo        string  `json:"reg_no"`
	Name         string  `json:"name"`
	DepartmentID string  `json:"department_id"`
	BatchYear    string  `json:"batch_year"`
	Semester     *string `json:"semester,omitempty"`
	Section      *string `json:"section,omitempty"`
}

// Create handles POST /api/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload CreateStudentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "invalid request payload")
		return
	}
	if payload.RegNo == "" || payload.Name == "" || payload.DepartmentID == "" || payload.BatchYear == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "reg_no, name, department_id, and batch_year are required")
		return
	}

	if _, err := h.StudentRepo.GetByRegNo(payload.RegNo); err == nil {
		WriteAPIError(w, http.StatusConflict, "duplicate_reg_no", "a student with that registration number already exists")
		return
	}

	student := &models.Student{
		RegNo:        payload.RegNo,
		Name:         payload.Name,
		DepartmentID: payload.DepartmentID,
		BatchYear:    payload.BatchYear,
		Semester:     payload.Semester,
		Section:      payload.Section,
	}
	if err := h.StudentRepo.Create(student); err != nil {
		log.Printf("students: ERROR creating student %s: %v", payload.RegNo, err)
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to create student")
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

// List handles GET /api/students with optional department_id and batch_year
// filters
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	departmentID := r.URL.Query().Get("department_id")
	batchYear := r.URL.Query().Get("batch_year")

	var students []models.Student
	var err error
	if departmentID != "" && batchYear != "" {
		students, err = h.StudentRepo.ListByDepartmentAndBatch(departmentID, batchYear)
	} else {
		students, err = h.StudentRepo.ListAll()
	}
	if err != nil {
		log.Printf("students: ERROR listing students: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to list students")
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

// Get handles GET /api/students/{regNo}
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	regNo := chi.URLParam(r, "regNo")

	student, err := h.StudentRepo.GetByRegNo(regNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "student_not_found", "no student with that registration number")
			return
		}
		WriteAPIError(w, http.StatusInternalServerError, "db_error", "failed to fetch student")
		return
	}
	writeJSON(w, http.StatusOK, student)
}
