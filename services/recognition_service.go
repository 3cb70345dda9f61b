package services

import (
	"errors"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
)

// Match pairs a probe face with the student it most resembles
type Match struct {
	StudentRegNo string  `json:"student_reg_no"`
	Similarity   float32 `json:"similarity"`
}

// RecognitionService matches probe embeddings against the enrolled galleries
// of one department/batch group. Gallery embeddings are loaded from the
// per-gallery sidecar files and cached in memory per group.
type RecognitionService struct {
	galleryRepo repository.GalleryRepositoryInterface
	store       media.GalleryStore
	threshold   float32

	mu    sync.Mutex
	cache map[string][]galleryEntry // keyed by departmentID + "_" + batchYear
}

type galleryEntry struct {
	studentRegNo string
	vectors      [][]float32
}

func NewRecognitionService(galleryRepo repository.GalleryRepositoryInterface, store media.GalleryStore, threshold float32) *RecognitionService {
	return &RecognitionService{
		galleryRepo: galleryRepo,
		store:       store,
		threshold:   threshold,
		cache:       make(map[string][]galleryEntry),
	}
}

// InvalidateGroup drops the cached embeddings for one department/batch group.
// Called after an enrollment changes a gallery in that group.
func (rs *RecognitionService) InvalidateGroup(departmentID, batchYear string) {
	rs.mu.Lock()
	delete(rs.cache, departmentID+"_"+batchYear)
	rs.mu.Unlock()
}

// MatchProbes assigns each probe embedding to at most one enrolled student.
// Candidate pairs are considered best-similarity first, and a student already
// claimed by a stronger probe is not assigned again. Pairs below the
// similarity threshold are discarded.
func (rs *RecognitionService) MatchProbes(departmentID, batchYear string, probes [][]float32) ([]Match, error) {
	entries, err := rs.groupEntries(departmentID, batchYear)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 || len(probes) == 0 {
		return nil, nil
	}

	type pair struct {
		probeIdx     int
		studentRegNo string
		similarity   float32
	}

	var pairs []pair
	for i, probe := range probes {
		for _, entry := range entries {
			best := bestSimilarity(probe, entry.vectors)
			if best >= rs.threshold {
				pairs = append(pairs, pair{probeIdx: i, studentRegNo: entry.studentRegNo, similarity: best})
			}
		}
	}

	sort.Slice(pairs, func(a, b int) bool {
		return pairs[a].similarity > pairs[b].similarity
	})

	usedProbe := make(map[int]bool)
	usedStudent := make(map[string]bool)
	var matches []Match
	for _, p := range pairs {
		if usedProbe[p.probeIdx] || usedStudent[p.studentRegNo] {
			continue
		}
		usedProbe[p.probeIdx] = true
		usedStudent[p.studentRegNo] = true
		matches = append(matches, Match{StudentRegNo: p.studentRegNo, Similarity: p.similarity})
	}
	return matches, nil
}

// groupEntries returns the cached embeddings for a group, loading them from
// disk on first use. Galleries without a sidecar file are skipped.
func (rs *RecognitionService) groupEntries(departmentID, batchYear string) ([]galleryEntry, error) {
	key := departmentID + "_" + batchYear

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if entries, ok := rs.cache[key]; ok {
		return entries, nil
	}

	galleries, err := rs.galleryRepo.ListByDepartmentAndBatch(departmentID, batchYear)
	if err != nil {
		return nil, err
	}

	var entries []galleryEntry
	for _, g := range galleries {
		if g.Status != models.GalleryStatusReady {
			continue
		}
		ge, err := media.LoadGalleryEmbeddings(rs.store, g.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			log.Printf("recognition: ERROR loading embeddings for gallery %s: %v. Skipping gallery.", g.Path, err)
			continue
		}
		if len(ge.Vectors) == 0 {
			continue
		}
		entries = append(entries, galleryEntry{studentRegNo: g.StudentRegNo, vectors: ge.Vectors})
	}

	rs.cache[key] = entries
	return entries, nil
}

func bestSimilarity(probe []float32, vectors [][]float32) float32 {
	var best float32 = -1
	for _, v := range vectors {
		if sim := media.CosineSimilarity(probe, v); sim > best {
			best = sim
		}
	}
	return best
}
