package workers

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupJob copies the sqlite database into the backup directory on a
// schedule and prunes old copies beyond the retention count.
type BackupJob struct {
	DatabasePath string
	BackupsPath  string
	Keep         int
}

func NewBackupJob(databasePath, backupsPath string, keep int) *BackupJob {
	if keep <= 0 {
		keep = 7
	}
	return &BackupJob{
		DatabasePath: databasePath,
		BackupsPath:  backupsPath,
		Keep:         keep,
	}
}

// Run takes one backup and prunes old ones
func (b *BackupJob) Run() error {
	if err := os.MkdirAll(b.BackupsPath, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	dest := filepath.Join(b.BackupsPath, fmt.Sprintf("enroll_%s.db", stamp))

	if err := copyFile(b.DatabasePath, dest); err != nil {
		return fmt.Errorf("database backup failed: %w", err)
	}
	log.Printf("backup: wrote %s", dest)

	if err := b.prune(); err != nil {
		// a failed prune should not mark the backup itself as failed
		log.Printf("backup: WARN prune failed: %v", err)
	}
	return nil
}

// prune removes the oldest backups once more than Keep exist. Backup
// filenames embed a sortable UTC timestamp, so lexical order is age order.
func (b *BackupJob) prune() error {
	entries, err := os.ReadDir(b.BackupsPath)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "enroll_") && strings.HasSuffix(name, ".db") {
			names = append(names, name)
		}
	}
	if len(names) <= b.Keep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-b.Keep] {
		path := filepath.Join(b.BackupsPath, name)
		if err := os.Remove(path); err != nil {
			log.Printf("backup: WARN failed to remove old backup %s: %v", path, err)
			continue
		}
		log.Printf("backup: pruned %s", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
