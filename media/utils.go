package media

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

var supportedVideoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// IsVideoFile checks if the filename has a common video container extension
func IsVideoFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedVideoExtensions[ext]
}

// DecodeOriented decodes an uploaded photo and applies its EXIF orientation
// tag, so phone photos arrive upright before detection runs. Images without
// EXIF data decode as-is.
func DecodeOriented(r io.Reader) (image.Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	exifData, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return img, nil // no EXIF block, nothing to correct
	}
	tag, err := exifData.Get(exif.Orientation)
	if err != nil {
		return img, nil
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return img, nil
	}

	switch orientation {
	case 2:
		img = imaging.FlipH(img)
	case 3:
		img = imaging.Rotate180(img)
	case 4:
		img = imaging.FlipV(img)
	case 5:
		img = imaging.Transpose(img)
	case 6:
		img = imaging.Rotate270(img)
	case 7:
		img = imaging.Transverse(img)
	case 8:
		img = imaging.Rotate90(img)
	}
	return img, nil
}
