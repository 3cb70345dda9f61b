package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
)

// GalleryStore defines the interface for persisting and enumerating gallery
// image files. Galleries are addressed by a deterministic relative directory:
// <department>_<batch>/<regno>.
type GalleryStore interface {
	// GalleryDir returns the store-relative directory for a student's gallery
	GalleryDir(departmentID, batchYear, regNo string) string
	// Save stores data as a file inside the gallery directory, creating it if
	// needed. Returns the final relative path used.
	Save(galleryDir, filename string, data io.Reader) (string, error)
	// Delete removes a single file
	Delete(relativePath string) error
	// ListFiles lists the image files of a gallery in natural order
	ListFiles(galleryDir string) ([]string, error)
	// CountFiles counts the image files physically present in a gallery
	CountFiles(galleryDir string) (int, error)
	// ListGalleryDirs enumerates every gallery directory on disk
	ListGalleryDirs() ([]string, error)
	// RemoveGallery deletes a gallery directory and its contents
	RemoveGallery(galleryDir string) error
	// FullPath returns the absolute filesystem path for a relative path
	FullPath(relativePath string) (string, error)
}

// LocalGalleryStore implements GalleryStore on the local filesystem
type LocalGalleryStore struct {
	basePath string // absolute path to the galleries root
}

// NewLocalGalleryStore creates a gallery store rooted at basePath
func NewLocalGalleryStore(basePath string) (*LocalGalleryStore, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid gallery base path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create gallery base directory '%s': %w", absBasePath, err)
	}

	log.Printf("media.store: Initialized gallery store at %s", absBasePath)
	return &LocalGalleryStore{basePath: absBasePath}, nil
}

// GalleryDir builds the deterministic relative directory for one student
func (ls *LocalGalleryStore) GalleryDir(departmentID, batchYear, regNo string) string {
	return filepath.ToSlash(filepath.Join(fmt.Sprintf("%s_%s", departmentID, batchYear), regNo))
}

// Save writes data to <galleryDir>/<filename>, creating the directory tree
func (ls *LocalGalleryStore) Save(galleryDir, filename string, data io.Reader) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty for LocalGalleryStore.Save")
	}

	targetDir, err := ls.FullPath(galleryDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create gallery directory '%s': %w", targetDir, err)
	}

	fullSavePath := filepath.Join(targetDir, filename)
	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}
	return filepath.ToSlash(relativePath), nil
}

// Delete removes a single asset file. A missing file is not an error.
func (ls *LocalGalleryStore) Delete(relativePath string) error {
	fullPath, err := ls.FullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	return nil
}

// ListFiles lists the raster image files of a gallery in natural order, so
// frame_2.jpg sorts before frame_10.jpg
func (ls *LocalGalleryStore) ListFiles(galleryDir string) ([]string, error) {
	fullDir, err := ls.FullPath(galleryDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory '%s': %w", galleryDir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsRasterImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)
	return names, nil
}

// CountFiles counts the image files physically present in a gallery
func (ls *LocalGalleryStore) CountFiles(galleryDir string) (int, error) {
	names, err := ls.ListFiles(galleryDir)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// ListGalleryDirs walks the two-level <dept>_<batch>/<regno> layout and
// returns every gallery directory found on disk
func (ls *LocalGalleryStore) ListGalleryDirs() ([]string, error) {
	groups, err := os.ReadDir(ls.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read galleries root '%s': %w", ls.basePath, err)
	}

	var dirs []string
	for _, group := range groups {
		if !group.IsDir() {
			continue
		}
		students, err := os.ReadDir(filepath.Join(ls.basePath, group.Name()))
		if err != nil {
			log.Printf("media.store: skipping unreadable group directory %s: %v", group.Name(), err)
			continue
		}
		for _, student := range students {
			if !student.IsDir() {
				continue
			}
			dirs = append(dirs, filepath.ToSlash(filepath.Join(group.Name(), student.Name())))
		}
	}
	natsort.Sort(dirs)
	return dirs, nil
}

// RemoveGallery deletes a gallery directory and everything under it
func (ls *LocalGalleryStore) RemoveGallery(galleryDir string) error {
	fullDir, err := ls.FullPath(galleryDir)
	if err != nil {
		return err
	}
	if fullDir == ls.basePath {
		return fmt.Errorf("refusing to remove galleries root")
	}
	if err := os.RemoveAll(fullDir); err != nil {
		return fmt.Errorf("failed to remove gallery '%s': %w", galleryDir, err)
	}
	log.Printf("media.store: Removed gallery %s", galleryDir)
	return nil
}

// FullPath calculates the absolute path and performs security check
func (ls *LocalGalleryStore) FullPath(relativePath string) (string, error) {
	cleanRelativePath := filepath.Clean(relativePath)
	fullPath := filepath.Join(ls.basePath, cleanRelativePath)

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !strings.HasPrefix(absFullPath, ls.basePath) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}
