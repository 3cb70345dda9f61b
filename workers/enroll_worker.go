package workers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
	"gorm.io/gorm"

	"github.com/campusface/enrollbackend/config"
	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
)

// Video-level acceptance rules, carried over from the collection pilot: a
// usable enrollment needs at least this many accepted faces, and a video
// where most sampled frames show multiple people is rejected outright.
const (
	minAcceptedFaces    = 3
	multiFaceFrameLimit = 8
)

// Minor-signal cutoffs for the report notes: a gradient imbalance above the
// ratio suggests directional motion smear, and accepted faces whose yaw
// spread stays under the floor give the recognizer little pose variety.
const (
	motionBlurRatioFlag = 2.5
	minYawSpreadDegrees = 8.0
)

// GroupInvalidator drops cached recognition state for one department/batch
// group after its galleries change
type GroupInvalidator interface {
	InvalidateGroup(departmentID, batchYear string)
}

// EnrollJob describes one student enrollment video to process
type EnrollJob struct {
	VideoPath    string
	StudentRegNo string
	DepartmentID string
	BatchYear    string
}

// EnrollProcessor is the worker pool that turns uploaded enrollment videos
// into quality-filtered gallery images. Each worker loads its own detector
// and embedding network.
type EnrollProcessor struct {
	JobQueue    chan EnrollJob
	Config      config.Config
	Gate        *media.Gate
	Store       media.GalleryStore
	GalleryRepo repository.GalleryRepositoryInterface
	ReportRepo  repository.QualityReportRepositoryInterface
	Locks       *PathLocker
	Invalidator GroupInvalidator
	Wg          sync.WaitGroup
	StopChan    chan struct{}
	Pending     map[string]bool
	Mutex       sync.Mutex
}

// NewEnrollProcessor creates the processor and starts its workers
func NewEnrollProcessor(
	cfg config.Config,
	gate *media.Gate,
	store media.GalleryStore,
	galleryRepo repository.GalleryRepositoryInterface,
	reportRepo repository.QualityReportRepositoryInterface,
	locks *PathLocker,
	invalidator GroupInvalidator,
	queueSize, numWorkers int,
) *EnrollProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if locks == nil {
		locks = NewPathLocker()
	}
	proc := &EnrollProcessor{
		JobQueue:    make(chan EnrollJob, queueSize),
		Config:      cfg,
		Gate:        gate,
		Store:       store,
		GalleryRepo: galleryRepo,
		ReportRepo:  reportRepo,
		Locks:       locks,
		Invalidator: invalidator,
		StopChan:    make(chan struct{}),
		Pending:     make(map[string]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d enrollment worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

// worker loads its models and processes jobs from the queue
func (ep *EnrollProcessor) worker(id int) {
	defer ep.Wg.Done()

	log.Printf("Worker %d: Loading face detector...", id)
	detector := media.NewFaceDetector(ep.Config.FaceDetectorModelPath, ep.Config.DetectorConfThreshold)
	defer detector.Close()
	if !detector.Enabled {
		log.Printf("Worker %d: face detector failed to load or is disabled", id)
	}

	embedder := media.NewEmbeddingModel(ep.Config.EmbeddingModelPath, ep.Config.EmbeddingModelName)
	defer embedder.Close()

	log.Printf("Enrollment worker %d started", id)
	for {
		select {
		case job, ok := <-ep.JobQueue:
			if !ok {
				log.Printf("Enrollment worker %d stopping: Job queue closed", id)
				return
			}
			log.Printf("Worker %d: Received enrollment job for student %s", id, job.StudentRegNo)
			ep.processEnrollment(job, detector, embedder)

			ep.Mutex.Lock()
			delete(ep.Pending, job.StudentRegNo)
			ep.Mutex.Unlock()

		case <-ep.StopChan:
			log.Printf("Enrollment worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// videoTally accumulates the per-frame outcomes of one enrollment video
type videoTally struct {
	accepted         int
	multiFaceFrames  int
	motionBlurFrames int
	rejects          map[media.FailReason]int
	acceptedYaws     []float64
}

// processEnrollment runs the full pipeline for one video: sample frames,
// detect faces, gate candidates, persist accepted crops and embeddings,
// settle the gallery row, and write a quality report. Every exit path
// settles the row so it never stays parked in pending.
func (ep *EnrollProcessor) processEnrollment(job EnrollJob, detector *media.FaceDetector, embedder *media.EmbeddingModel) {
	galleryDir := ep.Store.GalleryDir(job.DepartmentID, job.BatchYear, job.StudentRegNo)

	gallery, err := ep.ensureGalleryRow(job, galleryDir)
	if err != nil {
		log.Printf("Worker: ERROR preparing gallery row for %s: %v. Skipping job.", job.StudentRegNo, err)
		return
	}

	if detector == nil || !detector.Enabled {
		log.Printf("Worker: Skipping enrollment for %s: detector disabled", job.StudentRegNo)
		ep.settle(gallery, galleryDir, job)
		return
	}

	if _, statErr := os.Stat(job.VideoPath); statErr != nil {
		log.Printf("Worker: Skipping enrollment for %s: video not readable: %v", job.StudentRegNo, statErr)
		ep.settle(gallery, galleryDir, job)
		return
	}

	frames, err := media.SampleFrames(job.VideoPath, ep.Config.FrameSampleCount)
	if err != nil {
		log.Printf("Worker: ERROR sampling frames for %s: %v", job.StudentRegNo, err)
		ep.writeReport(job, models.QualityOutcomeFail, []string{"could not extract frames from video"})
		ep.settle(gallery, galleryDir, job)
		return
	}
	defer media.CloseFrames(frames)

	ep.Locks.Lock(galleryDir)
	defer ep.Locks.Unlock(galleryDir)

	tally := videoTally{rejects: make(map[media.FailReason]int)}
	var vectors [][]float32

	for _, frame := range frames {
		detections := detector.DetectFaces(frame)
		if len(detections) == 0 {
			continue
		}
		if len(detections) > 1 {
			tally.multiFaceFrames++
		}

		// take the most confident face in the frame; NMS already sorted
		cand, crop, err := media.BuildFaceCandidate(frame, detections[0])
		if err != nil {
			tally.rejects[media.FailOccluded]++
			continue
		}
		if cand.MotionBlurRatio > motionBlurRatioFlag {
			tally.motionBlurFrames++
		}

		verdict := ep.Gate.Evaluate(cand)
		if !verdict.Pass {
			crop.Close()
			tally.rejects[verdict.Reason]++
			continue
		}

		if err := ep.saveCrop(galleryDir, crop); err != nil {
			crop.Close()
			log.Printf("Worker: ERROR saving accepted crop for %s: %v", job.StudentRegNo, err)
			continue
		}
		if emb := embedder.ExtractEmbedding(crop); emb != nil {
			vectors = append(vectors, emb)
		}
		crop.Close()
		tally.accepted++
		if cand.Pose != nil {
			tally.acceptedYaws = append(tally.acceptedYaws, cand.Pose.Yaw)
		}
	}

	if len(vectors) > 0 {
		err := media.SaveGalleryEmbeddings(ep.Store, galleryDir, media.GalleryEmbeddings{
			StudentRegNo: job.StudentRegNo,
			ModelName:    ep.Config.EmbeddingModelName,
			Vectors:      vectors,
		})
		if err != nil {
			log.Printf("Worker: ERROR saving embeddings for %s: %v", job.StudentRegNo, err)
		}
	}

	outcome, issues := categorize(tally)
	ep.settle(gallery, galleryDir, job)
	ep.writeReport(job, outcome, issues)

	log.Printf("Worker: Enrollment for %s complete: %d accepted, outcome %s", job.StudentRegNo, tally.accepted, outcome)
}

func (ep *EnrollProcessor) ensureGalleryRow(job EnrollJob, galleryDir string) (*models.Gallery, error) {
	gallery, err := ep.GalleryRepo.GetByStudentRegNo(job.StudentRegNo)
	if err == nil {
		return gallery, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	gallery = &models.Gallery{
		StudentRegNo: job.StudentRegNo,
		DepartmentID: job.DepartmentID,
		BatchYear:    job.BatchYear,
		Path:         galleryDir,
		Status:       models.GalleryStatusPending,
	}
	if err := ep.GalleryRepo.Create(gallery); err != nil {
		return nil, err
	}
	return gallery, nil
}

func (ep *EnrollProcessor) saveCrop(galleryDir string, crop gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, crop)
	if err != nil {
		return fmt.Errorf("jpeg encode failed: %w", err)
	}
	defer buf.Close()

	cropUUID, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("failed to generate UUID for crop: %w", err)
	}
	filename := "face_" + cropUUID.String() + ".jpg"

	if _, err := ep.Store.Save(galleryDir, filename, bytes.NewReader(buf.GetBytes())); err != nil {
		return fmt.Errorf("store save failed: %w", err)
	}
	return nil
}

// settle writes the row's final count and status from disk truth and drops
// any cached recognition state for the group. After settle the row is out of
// pending, so reconciliation sweeps cover it again.
func (ep *EnrollProcessor) settle(gallery *models.Gallery, galleryDir string, job EnrollJob) {
	ep.updateGalleryRow(gallery, galleryDir, job.StudentRegNo)
	if ep.Invalidator != nil {
		ep.Invalidator.InvalidateGroup(job.DepartmentID, job.BatchYear)
	}
}

func (ep *EnrollProcessor) updateGalleryRow(gallery *models.Gallery, galleryDir, regNo string) {
	count, err := ep.Store.CountFiles(galleryDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Worker: ERROR counting gallery files for %s: %v", regNo, err)
			return
		}
		count = 0
	}
	if err := ep.GalleryRepo.UpdateImageCount(gallery.ID, count); err != nil {
		log.Printf("Worker: ERROR updating image count for %s: %v", regNo, err)
	}
	// an empty gallery is flagged for operator review, same as the
	// reconciler treats a missing or drained directory
	status := models.GalleryStatusOrphaned
	if count > 0 {
		status = models.GalleryStatusReady
	}
	if err := ep.GalleryRepo.SetStatus(gallery.ID, status); err != nil {
		log.Printf("Worker: ERROR setting gallery status for %s: %v", regNo, err)
	}
}

func (ep *EnrollProcessor) writeReport(job EnrollJob, outcome string, issues []string) {
	report := &models.QualityReport{
		DepartmentID: job.DepartmentID,
		BatchYear:    job.BatchYear,
		TotalChecked: 1,
		Results: []models.QualityResult{{
			StudentRegNo: job.StudentRegNo,
			Outcome:      outcome,
			Issues:       strings.Join(issues, "\n"),
		}},
	}
	switch outcome {
	case models.QualityOutcomePass:
		report.PassedCount = 1
	case models.QualityOutcomeBorderline:
		report.BorderlineCount = 1
	default:
		report.FailedCount = 1
	}

	if err := ep.ReportRepo.Create(report); err != nil {
		log.Printf("Worker: ERROR saving quality report for %s: %v", job.StudentRegNo, err)
	}
}

// categorize maps the per-video tallies to an outcome: critical problems
// fail the video, anything noteworthy but survivable is borderline.
func categorize(tally videoTally) (string, []string) {
	var critical, minor []string

	if tally.accepted < minAcceptedFaces {
		critical = append(critical, fmt.Sprintf("too few usable faces (%d accepted)", tally.accepted))
	}
	if tally.multiFaceFrames >= multiFaceFrameLimit {
		critical = append(critical, "multiple people detected in most frames")
	}

	for reason, n := range tally.rejects {
		minor = append(minor, fmt.Sprintf("%s (%d frames): %s", reason, n, reason.Message()))
	}
	if tally.multiFaceFrames > 0 && tally.multiFaceFrames < multiFaceFrameLimit {
		minor = append(minor, fmt.Sprintf("multiple people in %d frames", tally.multiFaceFrames))
	}
	if tally.motionBlurFrames > 0 {
		minor = append(minor, fmt.Sprintf("possible motion blur in %d frames; ask the student to hold still", tally.motionBlurFrames))
	}
	if tally.accepted >= 2 && yawSpread(tally.acceptedYaws) < minYawSpreadDegrees {
		minor = append(minor, "little head-pose variety across accepted frames")
	}

	if len(critical) > 0 {
		return models.QualityOutcomeFail, append(critical, minor...)
	}
	if len(minor) > 0 {
		return models.QualityOutcomeBorderline, minor
	}
	return models.QualityOutcomePass, nil
}

func yawSpread(yaws []float64) float64 {
	if len(yaws) == 0 {
		return 0
	}
	min, max := yaws[0], yaws[0]
	for _, y := range yaws[1:] {
		if y < min {
			min = y
		}
		if y > max {
			max = y
		}
	}
	return max - min
}

// QueueJob queues an enrollment job if one is not already pending for the
// same student
func (ep *EnrollProcessor) QueueJob(job EnrollJob) bool {
	ep.Mutex.Lock()
	if ep.Pending[job.StudentRegNo] {
		ep.Mutex.Unlock()
		return false
	}
	ep.Pending[job.StudentRegNo] = true
	ep.Mutex.Unlock()

	select {
	case ep.JobQueue <- job:
		log.Printf("Queued enrollment job for student %s", job.StudentRegNo)
		return true
	default:
		log.Printf("WARNING: Enrollment job queue full. Failed to queue job for student %s", job.StudentRegNo)
		ep.Mutex.Lock()
		delete(ep.Pending, job.StudentRegNo)
		ep.Mutex.Unlock()
		return false
	}
}

// Stop shuts down the worker pool and waits for in-flight jobs
func (ep *EnrollProcessor) Stop() {
	log.Println("Stopping enrollment workers...")
	close(ep.StopChan)
	ep.Wg.Wait()
	log.Println("All enrollment workers stopped")
}
