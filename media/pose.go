package media

import (
	"image"
	"math"
)

// Nose position between the eye line and mouth line for a frontal face.
// Empirically around the midpoint for the RetinaFace five-point layout.
const frontalNoseRatio = 0.5

// EstimatePose derives a coarse yaw/pitch/roll estimate from the five-point
// landmark geometry. It is intentionally cheap: the gate only needs to reject
// clearly off-frontal faces, not produce a precise head pose. Returns nil
// when the geometry is degenerate (collapsed eye line, inverted mouth/eye
// ordering, empty box), which the gate treats as occluded/undetectable.
func EstimatePose(l Landmarks, box image.Rectangle) *Pose {
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return nil
	}

	eyeDX := float64(l.RightEye.X - l.LeftEye.X)
	eyeDY := float64(l.RightEye.Y - l.LeftEye.Y)
	eyeDist := math.Hypot(eyeDX, eyeDY)
	if eyeDist < 2 {
		return nil
	}

	roll := math.Atan2(eyeDY, eyeDX) * 180 / math.Pi

	// yaw from the nose's horizontal offset off the eye midpoint, normalized
	// by eye distance; a profile face pushes the nose past an eye
	eyeMidX := (float64(l.LeftEye.X) + float64(l.RightEye.X)) / 2
	noseOffset := (float64(l.Nose.X) - eyeMidX) / eyeDist
	yaw := clampDegrees(noseOffset * 90)

	// pitch from the nose's vertical position between eye line and mouth line
	eyeMidY := (float64(l.LeftEye.Y) + float64(l.RightEye.Y)) / 2
	mouthMidY := (float64(l.MouthLeft.Y) + float64(l.MouthRight.Y)) / 2
	faceVert := mouthMidY - eyeMidY
	if faceVert < 2 {
		return nil
	}
	noseRatio := (float64(l.Nose.Y) - eyeMidY) / faceVert
	pitch := clampDegrees((frontalNoseRatio - noseRatio) * 90)

	return &Pose{Yaw: yaw, Pitch: pitch, Roll: roll}
}

func clampDegrees(v float64) float64 {
	if v > 90 {
		return 90
	}
	if v < -90 {
		return -90
	}
	return v
}
