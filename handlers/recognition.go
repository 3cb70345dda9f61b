package handlers

import (
	"io"
	"log"
	"net/http"

	"gocv.io/x/gocv"

	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/services"
)

// RecognitionHandler matches faces in a probe photo against the enrolled
// galleries of one department/batch group. The detector and embedding model
// are shared instances loaded at startup.
type RecognitionHandler struct {
	Detector *media.FaceDetector
	Embedder *media.EmbeddingModel
	Service  *services.RecognitionService
}

func NewRecognitionHandler(detector *media.FaceDetector, embedder *media.EmbeddingModel, service *services.RecognitionService) *RecognitionHandler {
	return &RecognitionHandler{Detector: detector, Embedder: embedder, Service: service}
}

// Recognize handles POST /api/recognize: multipart photo plus department_id
// and batch_year fields
func (h *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if h.Detector == nil || !h.Detector.Enabled {
		WriteAPIError(w, http.StatusServiceUnavailable, "detector_unavailable", "face detection model is not loaded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "failed to parse multipart form: "+err.Error())
		return
	}

	departmentID := r.FormValue("department_id")
	batchYear := r.FormValue("batch_year")
	if departmentID == "" || batchYear == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "department_id and batch_year are required")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "photo file is required")
		return
	}
	defer file.Close()

	if !media.IsRasterImage(header.Filename) {
		WriteAPIError(w, http.StatusUnsupportedMediaType, "unsupported_format", "unsupported image format")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "failed to read photo")
		return
	}
	frame, err := gocv.IMDecode(raw, gocv.IMReadColor)
	if err != nil || frame.Empty() {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "could not decode photo")
		return
	}
	defer frame.Close()

	probes := h.extractProbes(frame)
	if len(probes) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"faces_detected": 0,
			"matches":        []services.Match{},
		})
		return
	}

	matches, err := h.Service.MatchProbes(departmentID, batchYear, probes)
	if err != nil {
		log.Printf("recognition: ERROR matching probes: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "recognition_error", "failed to match against galleries")
		return
	}
	if matches == nil {
		matches = []services.Match{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"faces_detected": len(probes),
		"matches":        matches,
	})
}

// extractProbes embeds every detected face in the frame
func (h *RecognitionHandler) extractProbes(frame gocv.Mat) [][]float32 {
	var probes [][]float32
	for _, det := range h.Detector.DetectFaces(frame) {
		_, crop, err := media.BuildFaceCandidate(frame, det)
		if err != nil {
			continue
		}
		if emb := h.Embedder.ExtractEmbedding(crop); emb != nil {
			probes = append(probes, emb)
		}
		crop.Close()
	}
	return probes
}
