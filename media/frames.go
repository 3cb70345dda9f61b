package media

import (
	"fmt"
	"log"

	"gocv.io/x/gocv"
)

// SampleFrames reads up to count frames evenly spaced across the video's
// timeline. Returned Mats are owned by the caller; CloseFrames releases them.
func SampleFrames(videoPath string, count int) ([]gocv.Mat, error) {
	if count <= 0 {
		return nil, fmt.Errorf("frame sample count must be positive, got %d", count)
	}

	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", videoPath, err)
	}
	defer capture.Close()

	totalFrames := int(capture.Get(gocv.VideoCaptureFrameCount))
	if totalFrames <= 0 {
		return nil, fmt.Errorf("video %s reports no frames", videoPath)
	}
	if totalFrames < count {
		count = totalFrames
	}

	var frames []gocv.Mat
	for i := 0; i < count; i++ {
		// evenly spaced indices across the timeline, endpoints included
		idx := 0
		if count > 1 {
			idx = i * (totalFrames - 1) / (count - 1)
		}
		capture.Set(gocv.VideoCapturePosFrames, float64(idx))

		frame := gocv.NewMat()
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			frame.Close()
			log.Printf("frames: could not read frame %d of %s, skipping", idx, videoPath)
			continue
		}
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("could not extract any frames from %s", videoPath)
	}
	return frames, nil
}

// CloseFrames releases every Mat in the slice
func CloseFrames(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}
