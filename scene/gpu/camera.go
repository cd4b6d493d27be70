package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zhing2006/hala-renderer/scene"
)

// SizeOfCamera is the byte size of one packed camera record.
const SizeOfCamera = 80

const (
	cameraTypePerspective  = 0
	cameraTypeOrthographic = 1
)

// Camera is the device-side camera record: the world-space basis of the
// owning node plus projection parameters. For orthographic cameras the
// FocalDistance/Aperture slots carry xmag/ymag and YFov is zero.
//
// Packed layout, 80 bytes:
//
//	position.xyz, pad
//	right.xyz, pad
//	up.xyz, pad
//	forward.xyz, yfov
//	focalDistance, aperture, type, pad
type Camera struct {
	Position mgl32.Vec3
	Right    mgl32.Vec3
	Up       mgl32.Vec3
	Forward  mgl32.Vec3

	YFov          float32
	FocalDistance float32
	Aperture      float32
	Type          uint32
}

// NewCamera derives the packed record from the owning node's world
// transform and the CPU camera variant.
func NewCamera(node *scene.Node, camera scene.Camera) Camera {
	w := node.WorldTransform
	c := Camera{
		Position: w.Col(3).Vec3(),
		Right:    w.Col(0).Vec3(),
		Up:       w.Col(1).Vec3(),
		Forward:  w.Col(2).Vec3().Mul(-1),
	}
	switch cam := camera.(type) {
	case *scene.PerspectiveCamera:
		c.YFov = cam.YFov
		c.FocalDistance = cam.FocalDistance
		c.Aperture = cam.Aperture
		c.Type = cameraTypePerspective
	case *scene.OrthographicCamera:
		c.FocalDistance = cam.XMag
		c.Aperture = cam.YMag
		c.Type = cameraTypeOrthographic
	}
	return c
}

func (c *Camera) ToBytes() []byte {
	buf := make([]byte, SizeOfCamera)
	putVec3(buf[0:], c.Position)
	putVec3(buf[16:], c.Right)
	putVec3(buf[32:], c.Up)
	putVec3(buf[48:], c.Forward)
	binary.LittleEndian.PutUint32(buf[60:], math.Float32bits(c.YFov))
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(c.FocalDistance))
	binary.LittleEndian.PutUint32(buf[68:], math.Float32bits(c.Aperture))
	binary.LittleEndian.PutUint32(buf[72:], c.Type)
	return buf
}

func putVec3(buf []byte, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z()))
}

func putMat4(buf []byte, m mgl32.Mat4) {
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(m[i]))
	}
}
