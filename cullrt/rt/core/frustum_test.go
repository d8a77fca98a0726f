package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestFrustumCulling(t *testing.T) {
	// Camera at origin looking down -Z, 90 deg FOV, near 1, far 100.
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 0, -1},
		mgl32.Vec3{0, 1, 0},
	)
	planes := ExtractFrustum(proj.Mul4(view))

	tests := []struct {
		name     string
		aabbMin  mgl32.Vec3
		aabbMax  mgl32.Vec3
		expected bool
	}{
		{name: "inside", aabbMin: mgl32.Vec3{-1, -1, -10}, aabbMax: mgl32.Vec3{1, 1, -5}, expected: true},
		{name: "left", aabbMin: mgl32.Vec3{-20, -1, -10}, aabbMax: mgl32.Vec3{-15, 1, -5}, expected: false},
		{name: "right", aabbMin: mgl32.Vec3{15, -1, -10}, aabbMax: mgl32.Vec3{20, 1, -5}, expected: false},
		{name: "below", aabbMin: mgl32.Vec3{-1, -20, -10}, aabbMax: mgl32.Vec3{1, -15, -5}, expected: false},
		{name: "behind", aabbMin: mgl32.Vec3{-1, -1, 2}, aabbMax: mgl32.Vec3{1, 1, 5}, expected: false},
		{name: "past far", aabbMin: mgl32.Vec3{-1, -1, -200}, aabbMax: mgl32.Vec3{1, 1, -150}, expected: false},
		{name: "straddles left plane", aabbMin: mgl32.Vec3{-15, -1, -10}, aabbMax: mgl32.Vec3{-5, 1, -5}, expected: true},
		{name: "encloses camera", aabbMin: mgl32.Vec3{-1000, -1000, -1000}, aabbMax: mgl32.Vec3{1000, 1000, 1000}, expected: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			aabb := [2]mgl32.Vec3{tc.aabbMin, tc.aabbMax}
			assert.Equal(t, tc.expected, AABBInFrustum(aabb, planes))
		})
	}
}

func TestExtractFrustum_Normalized(t *testing.T) {
	planes := ExtractFrustum(NewCameraState().ViewProj())
	for i, p := range planes {
		assert.InDelta(t, 1.0, p.Vec3().Len(), 1e-4, "plane %d", i)
	}
}

func TestCameraState_WorldSpin(t *testing.T) {
	c := NewCameraState()
	assert.True(t, c.GetWorldMatrix().ApproxEqual(mgl32.Translate3D(-7, -7, -7)))

	c.Advance(10)
	assert.InDelta(t, 0.6, c.Angle, 1e-5)

	c.Paused = true
	c.Advance(10)
	assert.InDelta(t, 0.6, c.Angle, 1e-5)

	// The pivot-translated chunk centre sits in front of the camera.
	center := c.ViewProj().Mul4x1(mgl32.Vec4{8, 8, 8, 1})
	assert.Greater(t, center.W(), float32(0))
	assert.Less(t, mgl32.Abs(center.X()), center.W())
	assert.Less(t, mgl32.Abs(center.Y()), center.W())
}

func TestCameraState_SetViewport(t *testing.T) {
	c := NewCameraState()
	c.SetViewport(800, 400)
	assert.Equal(t, float32(2), c.Aspect)
	c.SetViewport(0, 400)
	assert.Equal(t, float32(2), c.Aspect)
}
