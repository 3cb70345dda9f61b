package media

import "math"

// Thresholds holds the configured bounds for all quality gate checks
type Thresholds struct {
	MinSharpness    float64
	MaxYawDegrees   float64
	MaxPitchDegrees float64
	MaxRollDegrees  float64
	MinLumaMean     float64
	MaxLumaMean     float64
	MinLumaStdDev   float64
	MinFacePixels   int
	MinLandmarkConf float64
}

// Check is a single named quality predicate. Evaluate returns nil when the
// candidate passes, or a failure verdict. Checks must not mutate the
// candidate.
type Check struct {
	Name     string
	Evaluate func(c *FaceCandidate, t Thresholds) *Verdict
}

// Gate decides whether a face candidate is fit for enrollment. Checks run in
// order and the first failure short-circuits. Evaluate is pure, so a single
// Gate is safe to share across workers.
type Gate struct {
	thresholds Thresholds
	checks     []Check
}

// NewGate creates a gate with the default check order: blur, pose,
// illumination, minimum size, occlusion.
func NewGate(t Thresholds) *Gate {
	return NewGateWithChecks(t, DefaultChecks())
}

// NewGateWithChecks creates a gate running the given checks in order. Used by
// tests to target one check in isolation and by deployments that swap the
// occlusion heuristic.
func NewGateWithChecks(t Thresholds, checks []Check) *Gate {
	return &Gate{thresholds: t, checks: checks}
}

// Evaluate applies the gate's checks in order to a single candidate
func (g *Gate) Evaluate(c *FaceCandidate) Verdict {
	for _, check := range g.checks {
		if v := check.Evaluate(c, g.thresholds); v != nil {
			v.Check = check.Name
			return *v
		}
	}
	return Verdict{Pass: true}
}

// DefaultChecks returns the standard ordered check list
func DefaultChecks() []Check {
	return []Check{
		BlurCheck(),
		PoseCheck(),
		IlluminationCheck(),
		MinSizeCheck(),
		OcclusionCheck(),
	}
}

// BlurCheck rejects candidates whose variance-of-Laplacian sharpness score is
// below the configured floor
func BlurCheck() Check {
	return Check{
		Name: "blur",
		Evaluate: func(c *FaceCandidate, t Thresholds) *Verdict {
			if c.Sharpness < t.MinSharpness {
				return &Verdict{Reason: FailBlurry}
			}
			return nil
		},
	}
}

// PoseCheck rejects candidates turned too far from frontal. A candidate with
// no usable pose estimate is treated as occluded/undetectable, not a crash.
func PoseCheck() Check {
	return Check{
		Name: "pose",
		Evaluate: func(c *FaceCandidate, t Thresholds) *Verdict {
			if c.Pose == nil {
				return &Verdict{Reason: FailOccluded}
			}
			if math.Abs(c.Pose.Yaw) > t.MaxYawDegrees ||
				math.Abs(c.Pose.Pitch) > t.MaxPitchDegrees ||
				math.Abs(c.Pose.Roll) > t.MaxRollDegrees {
				return &Verdict{Reason: FailOffPose}
			}
			return nil
		},
	}
}

// IlluminationCheck rejects candidates whose luma statistics fall outside the
// configured bounds: mean below the floor means under-lit, above the ceiling
// means over-exposed, and a stddev below the contrast floor means flat,
// washed-out lighting (also reported as under-lit).
func IlluminationCheck() Check {
	return Check{
		Name: "illumination",
		Evaluate: func(c *FaceCandidate, t Thresholds) *Verdict {
			if c.LumaMean < t.MinLumaMean {
				return &Verdict{Reason: FailUnderLit}
			}
			if c.LumaMean > t.MaxLumaMean {
				return &Verdict{Reason: FailOverExposed}
			}
			if c.LumaStdDev < t.MinLumaStdDev {
				return &Verdict{Reason: FailUnderLit}
			}
			return nil
		},
	}
}

// MinSizeCheck rejects candidates whose bounding box does not meet the pixel
// floor on either side
func MinSizeCheck() Check {
	return Check{
		Name: "min_size",
		Evaluate: func(c *FaceCandidate, t Thresholds) *Verdict {
			if c.Box.Dx() < t.MinFacePixels || c.Box.Dy() < t.MinFacePixels {
				return &Verdict{Reason: FailTooSmall}
			}
			return nil
		},
	}
}

// OcclusionCheck is the conservative default occlusion heuristic: reject when
// the detector's landmark localization confidence is low or landmarks are
// missing entirely. Deployments with a dedicated occlusion model can replace
// it via NewGateWithChecks.
func OcclusionCheck() Check {
	return Check{
		Name: "occlusion",
		Evaluate: func(c *FaceCandidate, t Thresholds) *Verdict {
			if c.Landmarks == nil || float64(c.Landmarks.Confidence) < t.MinLandmarkConf {
				return &Verdict{Reason: FailOccluded}
			}
			return nil
		},
	}
}
