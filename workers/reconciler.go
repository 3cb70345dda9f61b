package workers

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/campusface/enrollbackend/media"
	"github.com/campusface/enrollbackend/models"
	"github.com/campusface/enrollbackend/repository"
)

// ErrSweepInProgress is returned when ReconcileAll is invoked while a
// previous sweep has not finished. Sweeps never overlap.
var ErrSweepInProgress = errors.New("reconciliation sweep already in progress")

// ReconcileStats reports what one sweep did. A sweep over an already
// consistent state performs zero writes.
type ReconcileStats struct {
	RecordsChecked int `json:"records_checked"`
	RecordsSkipped int `json:"records_skipped"` // pending galleries, left alone
	CountsRepaired int `json:"counts_repaired"`
	RowsFlagged    int `json:"rows_flagged"`
	RowsRestored   int `json:"rows_restored"`
	OrphansRemoved int `json:"orphans_removed"`
	RecordErrors   int `json:"record_errors"`
}

// Writes returns the total number of mutations the sweep performed
func (s ReconcileStats) Writes() int {
	return s.CountsRepaired + s.RowsFlagged + s.RowsRestored + s.OrphansRemoved
}

// Reconciler restores consistency between gallery files on disk and gallery
// metadata rows. It runs as a scheduled job and can also be triggered by an
// operator. A single record's failure is logged and skipped; only a failure
// to enumerate the records at all aborts the sweep (the scheduler retries on
// the next tick).
type Reconciler struct {
	galleryRepo repository.GalleryRepositoryInterface
	store       media.GalleryStore
	locks       *PathLocker

	running atomic.Bool
}

// NewReconciler creates a reconciler over the given metadata repository and
// gallery store
func NewReconciler(galleryRepo repository.GalleryRepositoryInterface, store media.GalleryStore, locks *PathLocker) *Reconciler {
	if locks == nil {
		locks = NewPathLocker()
	}
	return &Reconciler{
		galleryRepo: galleryRepo,
		store:       store,
		locks:       locks,
	}
}

// ReconcileAll sweeps every gallery record once. Repair policy, per record:
//   - path missing or empty on disk: flag the row orphaned, keep it for
//     operator review
//   - stored count differs from disk count: correct the row to disk truth
//   - row flagged orphaned but files are back: restore it to ready
//
// Disk gallery directories with no matching row are removed as orphans.
// Running it twice with no intervening changes performs zero writes on the
// second run.
func (r *Reconciler) ReconcileAll() (ReconcileStats, error) {
	var stats ReconcileStats

	if !r.running.CompareAndSwap(false, true) {
		return stats, ErrSweepInProgress
	}
	defer r.running.Store(false)

	galleries, err := r.galleryRepo.ListAll()
	if err != nil {
		// database unavailable is unrecoverable here; the scheduler retries
		return stats, fmt.Errorf("failed to enumerate gallery records: %w", err)
	}

	known := make(map[string]bool, len(galleries))
	for _, g := range galleries {
		known[g.Path] = true
	}

	for _, g := range galleries {
		if g.Status == models.GalleryStatusPending {
			// an enrollment job owns this gallery until it finishes
			stats.RecordsSkipped++
			continue
		}
		stats.RecordsChecked++
		r.reconcileRecord(g, &stats)
	}

	r.removeOrphanDirs(known, &stats)

	log.Printf("reconciler: sweep complete: %d checked, %d skipped, %d counts repaired, %d flagged, %d restored, %d orphan dirs removed, %d errors",
		stats.RecordsChecked, stats.RecordsSkipped, stats.CountsRepaired, stats.RowsFlagged, stats.RowsRestored, stats.OrphansRemoved, stats.RecordErrors)
	return stats, nil
}

func (r *Reconciler) reconcileRecord(g models.Gallery, stats *ReconcileStats) {
	r.locks.Lock(g.Path)
	defer r.locks.Unlock(g.Path)

	count, err := r.store.CountFiles(g.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.flagOrphaned(g, stats)
			return
		}
		log.Printf("reconciler: ERROR reading gallery %s (student %s): %v. Skipping record.", g.Path, g.StudentRegNo, err)
		stats.RecordErrors++
		return
	}

	if count == 0 {
		r.flagOrphaned(g, stats)
		return
	}

	if g.Status == models.GalleryStatusOrphaned {
		if err := r.galleryRepo.SetStatus(g.ID, models.GalleryStatusReady); err != nil {
			log.Printf("reconciler: ERROR restoring gallery %s: %v", g.Path, err)
			stats.RecordErrors++
			return
		}
		stats.RowsRestored++
	}

	if g.ImageCount != count {
		if err := r.galleryRepo.UpdateImageCount(g.ID, count); err != nil {
			log.Printf("reconciler: ERROR correcting count for gallery %s: %v", g.Path, err)
			stats.RecordErrors++
			return
		}
		log.Printf("reconciler: corrected count for gallery %s: %d -> %d", g.Path, g.ImageCount, count)
		stats.CountsRepaired++
	}
}

// flagOrphaned marks a row whose path is missing or empty. The row is never
// deleted automatically; an operator decides its fate.
func (r *Reconciler) flagOrphaned(g models.Gallery, stats *ReconcileStats) {
	if g.Status == models.GalleryStatusOrphaned {
		return // already flagged, nothing to write
	}
	if err := r.galleryRepo.SetStatus(g.ID, models.GalleryStatusOrphaned); err != nil {
		log.Printf("reconciler: ERROR flagging gallery %s as orphaned: %v", g.Path, err)
		stats.RecordErrors++
		return
	}
	log.Printf("reconciler: flagged gallery %s (student %s) as orphaned", g.Path, g.StudentRegNo)
	stats.RowsFlagged++
}

// removeOrphanDirs deletes disk gallery directories that have no metadata row
func (r *Reconciler) removeOrphanDirs(known map[string]bool, stats *ReconcileStats) {
	dirs, err := r.store.ListGalleryDirs()
	if err != nil {
		log.Printf("reconciler: ERROR listing gallery directories: %v", err)
		stats.RecordErrors++
		return
	}

	for _, dir := range dirs {
		if known[dir] {
			continue
		}
		r.locks.Lock(dir)
		err := r.store.RemoveGallery(dir)
		r.locks.Unlock(dir)
		if err != nil {
			log.Printf("reconciler: ERROR removing orphan gallery directory %s: %v", dir, err)
			stats.RecordErrors++
			continue
		}
		log.Printf("reconciler: removed orphan gallery directory %s", dir)
		stats.OrphansRemoved++
	}
}
