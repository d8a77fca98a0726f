package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is a fixed look-at camera over a world that spins around the
// Y axis. The world transform is rotate(Angle) * translate(Pivot).
type CameraState struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3

	FovY   float32 // degrees
	Near   float32
	Far    float32
	Aspect float32

	Pivot        mgl32.Vec3
	Angle        float32 // radians
	AngularSpeed float32 // radians per second
	Paused       bool
}

func NewCameraState() *CameraState {
	return &CameraState{
		Eye:          mgl32.Vec3{-15, -13, -12},
		Target:       mgl32.Vec3{0, 0, 0},
		Up:           mgl32.Vec3{0, 1, 0},
		FovY:         30,
		Near:         0.1,
		Far:          1000,
		Aspect:       1280.0 / 720.0,
		Pivot:        mgl32.Vec3{-7, -7, -7},
		AngularSpeed: 0.06,
	}
}

// SetViewport updates the aspect ratio; zero sizes are ignored.
func (c *CameraState) SetViewport(width, height int) {
	if width > 0 && height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

// Advance spins the world by dt seconds.
func (c *CameraState) Advance(dt float64) {
	if c.Paused {
		return
	}
	c.Angle += c.AngularSpeed * float32(dt)
}

func (c *CameraState) GetWorldMatrix() mgl32.Mat4 {
	return mgl32.HomogRotate3DY(c.Angle).Mul4(mgl32.Translate3D(c.Pivot[0], c.Pivot[1], c.Pivot[2]))
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Target, c.Up)
}

func (c *CameraState) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), c.Aspect, c.Near, c.Far)
}

// ViewProj is projection * view * world, the matrix both the draw and the
// cull pass transform chunk-space positions with.
func (c *CameraState) ViewProj() mgl32.Mat4 {
	return c.GetProjectionMatrix().Mul4(c.GetViewMatrix()).Mul4(c.GetWorldMatrix())
}
