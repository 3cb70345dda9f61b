package media

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// padding applied around a detection box before cropping, as a fraction of
// the box size. Keeps chin and hairline context for the embedding model.
const cropPadFraction = 0.2

// SharpnessScore computes the variance of the Laplacian over the image.
// Low variance means few edges survive, i.e. a blurry image.
func SharpnessScore(img gocv.Mat) float64 {
	if img.Empty() {
		return 0
	}
	gray := toGray(img)
	defer gray.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	_, stdDev := lap.MeanStdDev()
	return stdDev.Val1 * stdDev.Val1
}

// LumaStats returns the mean and standard deviation of the grayscale
// intensity of the image
func LumaStats(img gocv.Mat) (mean, stdDev float64) {
	if img.Empty() {
		return 0, 0
	}
	gray := toGray(img)
	defer gray.Close()

	m, s := gray.MeanStdDev()
	return m.Val1, s.Val1
}

// MotionBlurRatio compares horizontal and vertical gradient energy over the
// crop. Values well above 1 mean edges survive in only one direction, the
// signature of directional smear from camera or subject motion rather than a
// simple focus miss.
func MotionBlurRatio(img gocv.Mat) float64 {
	if img.Empty() {
		return 1
	}
	gray := toGray(img)
	defer gray.Close()

	dx := gocv.NewMat()
	defer dx.Close()
	dy := gocv.NewMat()
	defer dy.Close()
	gocv.Sobel(gray, &dx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &dy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absDx := gocv.NewMat()
	defer absDx.Close()
	absDy := gocv.NewMat()
	defer absDy.Close()
	gocv.ConvertScaleAbs(dx, &absDx, 1, 0)
	gocv.ConvertScaleAbs(dy, &absDy, 1, 0)

	meanDx := absDx.Mean().Val1
	meanDy := absDy.Mean().Val1
	lo, hi := meanDx, meanDy
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo < 1e-6 {
		return 1
	}
	return hi / lo
}

func toGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if img.Channels() == 3 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		gray = img.Clone()
	}
	return gray
}

// PaddedBox expands a detection box by cropPadFraction on each side, clamped
// to the frame bounds
func PaddedBox(det Detection, frameW, frameH int) image.Rectangle {
	padX := int(float64(det.W) * cropPadFraction)
	padY := int(float64(det.H) * cropPadFraction)
	x1 := maxInt(0, det.X-padX)
	y1 := maxInt(0, det.Y-padY)
	x2 := minInt(frameW, det.X+det.W+padX)
	y2 := minInt(frameH, det.Y+det.H+padY)
	return image.Rect(x1, y1, x2, y2)
}

// BuildFaceCandidate crops the detected face out of the frame and computes
// the quality metrics the gate consumes. The returned crop is an independent
// Mat the caller must Close; it outlives the frame.
func BuildFaceCandidate(frame gocv.Mat, det Detection) (*FaceCandidate, gocv.Mat, error) {
	if frame.Empty() {
		return nil, gocv.Mat{}, fmt.Errorf("empty frame")
	}

	box := PaddedBox(det, frame.Cols(), frame.Rows())
	if box.Dx() <= 0 || box.Dy() <= 0 {
		return nil, gocv.Mat{}, fmt.Errorf("degenerate detection box %v", box)
	}

	region := frame.Region(box)
	crop := region.Clone()
	region.Close()

	lumaMean, lumaStd := LumaStats(crop)
	cand := &FaceCandidate{
		Box:             det.Box(),
		DetectionConf:   det.Confidence,
		Landmarks:       det.Landmarks,
		Sharpness:       SharpnessScore(crop),
		LumaMean:        lumaMean,
		LumaStdDev:      lumaStd,
		MotionBlurRatio: MotionBlurRatio(crop),
	}
	if det.Landmarks != nil {
		cand.Pose = EstimatePose(*det.Landmarks, det.Box())
	}

	return cand, crop, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
