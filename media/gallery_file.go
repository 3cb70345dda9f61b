package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// GalleryEmbeddingFile is the per-gallery sidecar holding the embedding
// vectors of the accepted face crops. It lives next to the images but is not
// counted as one (CountFiles only counts raster images).
const GalleryEmbeddingFile = "embeddings.json"

// GalleryEmbeddings is the serialized identity data for one student gallery
type GalleryEmbeddings struct {
	StudentRegNo string      `json:"student_reg_no"`
	ModelName    string      `json:"model_name"`
	Vectors      [][]float32 `json:"vectors"`
}

// SaveGalleryEmbeddings writes the embedding sidecar into the gallery directory
func SaveGalleryEmbeddings(store GalleryStore, galleryDir string, ge GalleryEmbeddings) error {
	data, err := json.Marshal(ge)
	if err != nil {
		return fmt.Errorf("failed to marshal embeddings for %s: %w", ge.StudentRegNo, err)
	}
	if _, err := store.Save(galleryDir, GalleryEmbeddingFile, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save embeddings sidecar in %s: %w", galleryDir, err)
	}
	return nil
}

// LoadGalleryEmbeddings reads the embedding sidecar of a gallery. A missing
// sidecar surfaces as os.ErrNotExist.
func LoadGalleryEmbeddings(store GalleryStore, galleryDir string) (*GalleryEmbeddings, error) {
	fullPath, err := store.FullPath(galleryDir + "/" + GalleryEmbeddingFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	var ge GalleryEmbeddings
	if err := json.Unmarshal(data, &ge); err != nil {
		return nil, fmt.Errorf("failed to parse embeddings sidecar in %s: %w", galleryDir, err)
	}
	return &ge, nil
}
