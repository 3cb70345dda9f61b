package media

import (
	"image"
	"log"
	"math"

	"gocv.io/x/gocv"
)

// RetinaFace prior box generation and box decoding utilities

// PriorBox defines an anchor box (center_x, center_y, width, height)
type PriorBox struct {
	Cx, Cy, W, H float32
}

// GenerateFacePriors generates priors for the RetinaFace input resolution
func GenerateFacePriors(imgW, imgH int) []PriorBox {
	// These settings match the standard RetinaFace/ONNX config
	minSizes := [][]int{{16, 32}, {64, 128}, {256, 512}}
	steps := []int{8, 16, 32}
	featureMapSizes := [][]int{
		{imgH / 8, imgW / 8},
		{imgH / 16, imgW / 16},
		{imgH / 32, imgW / 32},
	}
	priors := []PriorBox{}
	for k, fms := range featureMapSizes {
		fmH, fmW := fms[0], fms[1]
		for i := 0; i < fmH; i++ {
			for j := 0; j < fmW; j++ {
				for _, minSize := range minSizes[k] {
					cx := (float32(j) + 0.5) * float32(steps[k]) / float32(imgW)
					cy := (float32(i) + 0.5) * float32(steps[k]) / float32(imgH)
					w := float32(minSize) / float32(imgW)
					h := float32(minSize) / float32(imgH)
					priors = append(priors, PriorBox{Cx: cx, Cy: cy, W: w, H: h})
				}
			}
		}
	}
	return priors
}

// DecodeBox decodes a single box prediction using the prior and variances
func DecodeBox(rawBox [4]float32, prior PriorBox, variances [2]float32) [4]float32 {
	// rawBox: [dx, dy, dw, dh]
	cx := prior.Cx + rawBox[0]*variances[0]*prior.W
	cy := prior.Cy + rawBox[1]*variances[0]*prior.H
	w := prior.W * float32Exp(rawBox[2]*variances[1])
	h := prior.H * float32Exp(rawBox[3]*variances[1])
	// Convert center to corner
	x1 := cx - w/2
	y1 := cy - h/2
	x2 := cx + w/2
	y2 := cy + h/2
	return [4]float32{x1, y1, x2, y2}
}

// DecodeLandmark decodes one landmark offset pair against its prior
func DecodeLandmark(dx, dy float32, prior PriorBox, variances [2]float32) (float32, float32) {
	return prior.Cx + dx*variances[0]*prior.W, prior.Cy + dy*variances[0]*prior.H
}

func float32Exp(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// FaceDetector provides face detection with five-point landmarks using a
// RetinaFace-style DNN. The model is treated as an opaque box: given a frame
// it yields boxes, landmark points, and confidences.
type FaceDetector struct {
	Net     gocv.Net
	Enabled bool

	// Configuration parameters
	InputSizeW    int
	InputSizeH    int
	MeanVal       gocv.Scalar
	ConfThreshold float32
	IoUThreshold  float32

	priors []PriorBox
}

// NewFaceDetector loads the detection model. A missing or unreadable model
// disables the detector rather than failing startup; enrollment jobs then
// error per-job.
func NewFaceDetector(modelPath string, confThreshold float32) *FaceDetector {
	if modelPath == "" {
		log.Println("detector: model path is empty, disabling face detector")
		return &FaceDetector{Enabled: false}
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		log.Printf("detector: ERROR - ReadNet returned an empty network for %s. Check file path and integrity.", modelPath)
		return &FaceDetector{Enabled: false}
	}
	log.Printf("detector: successfully loaded face detection model from %s", modelPath)

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)

	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Println("detector: Set backend/target to CUDA")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
		log.Println("detector: Set backend/target to CPU (Default)")
	}

	if confThreshold <= 0 {
		confThreshold = 0.5
	}

	return &FaceDetector{
		Net:           net,
		Enabled:       true,
		InputSizeW:    640,
		InputSizeH:    640,
		MeanVal:       gocv.NewScalar(104.0, 117.0, 123.0, 0),
		ConfThreshold: confThreshold,
		IoUThreshold:  0.5,
		priors:        GenerateFacePriors(640, 640),
	}
}

func (d *FaceDetector) Close() {
	if d != nil && d.Enabled {
		d.Net.Close()
		log.Println("detector: closed network")
		d.Enabled = false
	}
}

// DetectFaces runs face detection on a single frame
func (d *FaceDetector) DetectFaces(img gocv.Mat) []Detection {
	if d == nil || !d.Enabled || img.Empty() {
		return nil
	}

	imgWidth := float32(img.Cols())
	imgHeight := float32(img.Rows())

	blob := gocv.BlobFromImage(img, 1.0, image.Pt(d.InputSizeW, d.InputSizeH), d.MeanVal, false, false)
	defer blob.Close()

	d.Net.SetInput(blob, "input")

	outputNames := []string{"bbox", "confidence", "landmark"}
	outputs := d.Net.ForwardLayers(outputNames)
	if len(outputs) < 3 {
		log.Printf("detector: Expected 3 outputs (boxes, scores, landmarks), got %d", len(outputs))
		for _, mat := range outputs {
			mat.Close()
		}
		return nil
	}
	defer func() {
		for _, mat := range outputs {
			mat.Close()
		}
	}()

	return d.parseOutputs(outputs[0], outputs[1], outputs[2], imgWidth, imgHeight)
}

func (d *FaceDetector) parseOutputs(boxes, scores, landmarks gocv.Mat, imgWidth, imgHeight float32) []Detection {
	numDetections := boxes.Size()[1]
	if numDetections == 0 {
		return nil
	}
	if len(d.priors) != numDetections {
		log.Printf("detector: WARNING - priors count (%d) != detections (%d)", len(d.priors), numDetections)
		return nil
	}
	variances := [2]float32{0.1, 0.2}

	var detections []Detection
	for i := 0; i < numDetections; i++ {
		scoreFace := scores.GetFloatAt(0, i*2+1)
		if scoreFace < d.ConfThreshold {
			continue
		}

		var rawBox [4]float32
		for j := 0; j < 4; j++ {
			rawBox[j] = boxes.GetFloatAt(0, i*4+j)
		}
		decoded := DecodeBox(rawBox, d.priors[i], variances)
		x1 := maxFloat32(0, decoded[0]*imgWidth)
		y1 := maxFloat32(0, decoded[1]*imgHeight)
		x2 := minFloat32(imgWidth, decoded[2]*imgWidth)
		y2 := minFloat32(imgHeight, decoded[3]*imgHeight)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		var pts [5]Point2D
		for j := 0; j < 5; j++ {
			lx, ly := DecodeLandmark(
				landmarks.GetFloatAt(0, i*10+j*2+0),
				landmarks.GetFloatAt(0, i*10+j*2+1),
				d.priors[i], variances,
			)
			pts[j] = Point2D{X: lx * imgWidth, Y: ly * imgHeight}
		}

		detections = append(detections, Detection{
			X:          int(x1),
			Y:          int(y1),
			W:          int(x2 - x1),
			H:          int(y2 - y1),
			Confidence: scoreFace,
			Landmarks: &Landmarks{
				LeftEye:    pts[0],
				RightEye:   pts[1],
				Nose:       pts[2],
				MouthLeft:  pts[3],
				MouthRight: pts[4],
				Confidence: scoreFace,
			},
		})
	}

	return nonMaxSuppression(detections, d.IoUThreshold)
}

// nonMaxSuppression removes overlapping detections, keeping the most
// confident of each overlapping cluster
func nonMaxSuppression(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	// Sort by confidence (highest first)
	for i := 0; i < len(detections)-1; i++ {
		for j := i + 1; j < len(detections); j++ {
			if detections[i].Confidence < detections[j].Confidence {
				detections[i], detections[j] = detections[j], detections[i]
			}
		}
	}

	var result []Detection
	used := make([]bool, len(detections))

	for i := 0; i < len(detections); i++ {
		if used[i] {
			continue
		}
		result = append(result, detections[i])
		used[i] = true

		for j := i + 1; j < len(detections); j++ {
			if used[j] {
				continue
			}
			if boxIoU(detections[i], detections[j]) > iouThreshold {
				used[j] = true
			}
		}
	}

	return result
}

func boxIoU(a, b Detection) float32 {
	x1 := maxInt(a.X, b.X)
	y1 := maxInt(a.Y, b.Y)
	x2 := minInt(a.X+a.W, b.X+b.W)
	y2 := minInt(a.Y+a.H, b.Y+b.H)

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := float32((x2 - x1) * (y2 - y1))
	areaA := float32(a.W * a.H)
	areaB := float32(b.W * b.H)
	union := areaA + areaB - intersection

	return intersection / union
}

func maxFloat32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minFloat32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
