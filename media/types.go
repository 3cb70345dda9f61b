// media/types.go
package media

import "image"

// Point2D is a landmark coordinate in image space
type Point2D struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Landmarks holds the five RetinaFace-style facial reference points.
// Confidence is the detector's landmark localization confidence; the
// occlusion check rejects candidates where it is too low.
type Landmarks struct {
	LeftEye    Point2D `json:"left_eye"`
	RightEye   Point2D `json:"right_eye"`
	Nose       Point2D `json:"nose"`
	MouthLeft  Point2D `json:"mouth_left"`
	MouthRight Point2D `json:"mouth_right"`
	Confidence float32 `json:"confidence"`
}

// Pose is a head pose estimate in degrees relative to frontal
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Detection is a single detected face within a frame
type Detection struct {
	X          int        `json:"x"`
	Y          int        `json:"y"`
	W          int        `json:"w"`
	H          int        `json:"h"`
	Confidence float32    `json:"confidence"`
	Landmarks  *Landmarks `json:"landmarks,omitempty"`
}

// Box returns the detection's bounding box as an image.Rectangle
func (d Detection) Box() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.W, d.Y+d.H)
}

// FaceCandidate is one cropped face considered for enrollment. The derived
// metrics are computed once when the candidate is built from a frame; the
// quality gate consumes only these scalars, so it stays a pure function.
// Candidates are transient: rejected ones are dropped on the spot, accepted
// ones are persisted to the student's gallery and then dropped.
type FaceCandidate struct {
	Box           image.Rectangle
	DetectionConf float32
	Landmarks     *Landmarks

	Sharpness       float64 // variance of Laplacian over the face crop
	LumaMean        float64
	LumaStdDev      float64
	MotionBlurRatio float64 // directional gradient imbalance; ~1 is isotropic
	Pose            *Pose   // nil when landmark geometry was degenerate
}

// FailReason enumerates why a candidate was rejected by the quality gate
type FailReason string

const (
	FailBlurry      FailReason = "blurry"
	FailOffPose     FailReason = "off_pose"
	FailUnderLit    FailReason = "under_lit"
	FailOverExposed FailReason = "over_exposed"
	FailTooSmall    FailReason = "too_small"
	FailOccluded    FailReason = "occluded"
)

// Message returns the operator-facing retake hint for a fail reason
func (r FailReason) Message() string {
	switch r {
	case FailBlurry:
		return "image too blurry, retake"
	case FailOffPose:
		return "face turned too far from the camera"
	case FailUnderLit:
		return "image too dark, find better lighting"
	case FailOverExposed:
		return "image overexposed, avoid direct light"
	case FailTooSmall:
		return "face too small in frame, move closer"
	case FailOccluded:
		return "face partially covered or not clearly visible"
	default:
		return string(r)
	}
}

// Verdict is the outcome of evaluating one candidate. Reason and Check are
// set only on failure; Check names the gate check that rejected it.
type Verdict struct {
	Pass   bool       `json:"pass"`
	Reason FailReason `json:"reason,omitempty"`
	Check  string     `json:"check,omitempty"`
}
