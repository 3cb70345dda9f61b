package media

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frontalLandmarks() Landmarks {
	return Landmarks{
		LeftEye:    Point2D{X: 45, Y: 55},
		RightEye:   Point2D{X: 95, Y: 55},
		Nose:       Point2D{X: 70, Y: 85},
		MouthLeft:  Point2D{X: 52, Y: 115},
		MouthRight: Point2D{X: 88, Y: 115},
		Confidence: 0.9,
	}
}

func TestEstimatePoseFrontal(t *testing.T) {
	pose := EstimatePose(frontalLandmarks(), image.Rect(10, 10, 130, 150))
	require.NotNil(t, pose)

	assert.InDelta(t, 0, pose.Yaw, 1)
	assert.InDelta(t, 0, pose.Pitch, 1)
	assert.InDelta(t, 0, pose.Roll, 1)
}

func TestEstimatePoseYawFromNoseOffset(t *testing.T) {
	l := frontalLandmarks()
	l.Nose.X = 90 // nose pushed toward the right eye

	pose := EstimatePose(l, image.Rect(10, 10, 130, 150))
	require.NotNil(t, pose)
	assert.Greater(t, pose.Yaw, 30.0)
}

func TestEstimatePoseRollFromEyeTilt(t *testing.T) {
	l := frontalLandmarks()
	l.RightEye.Y = 65 // right eye lower than left

	pose := EstimatePose(l, image.Rect(10, 10, 130, 150))
	require.NotNil(t, pose)
	assert.InDelta(t, 11.3, pose.Roll, 0.5)
}

func TestEstimatePosePitchFromNoseHeight(t *testing.T) {
	l := frontalLandmarks()
	l.Nose.Y = 65 // nose close to the eye line, head tipped back

	pose := EstimatePose(l, image.Rect(10, 10, 130, 150))
	require.NotNil(t, pose)
	assert.Greater(t, pose.Pitch, 20.0)
}

func TestEstimatePoseDegenerateGeometry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(l *Landmarks)
		box    image.Rectangle
	}{
		{
			name:   "collapsed eye line",
			mutate: func(l *Landmarks) { l.RightEye = l.LeftEye },
			box:    image.Rect(10, 10, 130, 150),
		},
		{
			name:   "mouth above eye line",
			mutate: func(l *Landmarks) { l.MouthLeft.Y = 40; l.MouthRight.Y = 40 },
			box:    image.Rect(10, 10, 130, 150),
		},
		{
			name:   "empty box",
			mutate: func(l *Landmarks) {},
			box:    image.Rectangle{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := frontalLandmarks()
			tt.mutate(&l)
			assert.Nil(t, EstimatePose(l, tt.box))
		})
	}
}

func TestPoseYawClamped(t *testing.T) {
	l := frontalLandmarks()
	l.Nose.X = 500

	pose := EstimatePose(l, image.Rect(10, 10, 130, 150))
	require.NotNil(t, pose)
	assert.Equal(t, 90.0, pose.Yaw)
}
