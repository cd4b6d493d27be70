package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is either a PerspectiveCamera or an OrthographicCamera. The
// projection matrix is precomputed at construction.
type Camera interface {
	Projection() mgl32.Mat4
}

type PerspectiveCamera struct {
	Aspect        float32
	YFov          float32
	ZNear         float32
	ZFar          float32
	FocalDistance float32
	Aperture      float32

	Proj mgl32.Mat4
}

// NewPerspectiveCamera builds a perspective camera with a reverse-Z
// infinite-far projection (depth range 1 at the near plane to 0 at
// infinity).
func NewPerspectiveCamera(aspect, yfov, znear, zfar, focalDistance, aperture float32) *PerspectiveCamera {
	return &PerspectiveCamera{
		Aspect:        aspect,
		YFov:          yfov,
		ZNear:         znear,
		ZFar:          zfar,
		FocalDistance: focalDistance,
		Aperture:      aperture,
		Proj:          perspectiveInfiniteReverse(yfov, aspect, znear),
	}
}

func (c *PerspectiveCamera) Projection() mgl32.Mat4 { return c.Proj }

// perspectiveInfiniteReverse is the right-handed infinite-far projection
// with reversed depth. mgl32 has no ready-made variant.
func perspectiveInfiniteReverse(yfov, aspect, znear float32) mgl32.Mat4 {
	f := 1.0 / math32.Tan(yfov*0.5)
	var m mgl32.Mat4
	m[0] = f / aspect // (0,0)
	m[5] = f          // (1,1)
	m[11] = -1        // (3,2)
	m[14] = znear     // (2,3)
	return m
}

type OrthographicCamera struct {
	XMag float32
	YMag float32

	Proj mgl32.Mat4
}

func NewOrthographicCamera(xmag, ymag, znear, zfar float32) *OrthographicCamera {
	return &OrthographicCamera{
		XMag: xmag,
		YMag: ymag,
		Proj: mgl32.Ortho(-xmag, xmag, -ymag, ymag, znear, zfar),
	}
}

func (c *OrthographicCamera) Projection() mgl32.Mat4 { return c.Proj }
