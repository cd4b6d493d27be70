package gpu

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	halarenderer "github.com/zhing2006/hala-renderer"
	"github.com/zhing2006/hala-renderer/gfx"
	"github.com/zhing2006/hala-renderer/scene"
)

// SizeOfLight is the byte size of one packed light record.
const SizeOfLight = 80

// Light is the device-side light record. The meaning of U and V depends on
// the type:
//
//	point:       both unused
//	directional: U is the direction, V.x the cosine of the soft edge angle
//	spot:        U is the direction, V.x/V.y the inner/outer angle cosines
//	quad:        U/V are the right/up edge vectors scaled by width/height
//	sphere:      both unused, Radius is the radius
//
// Packed layout, 80 bytes:
//
//	intensity.xyz, pad
//	position.xyz, pad
//	u.xyz, pad
//	v.xyz, radius
//	area, type, pad, pad
type Light struct {
	Intensity mgl32.Vec3
	Position  mgl32.Vec3
	U         mgl32.Vec3
	V         mgl32.Vec3
	Radius    float32
	Area      float32
	Type      uint32
}

func (l *Light) ToBytes() []byte {
	buf := make([]byte, SizeOfLight)
	putVec3(buf[0:], l.Intensity)
	putVec3(buf[16:], l.Position)
	putVec3(buf[32:], l.U)
	putVec3(buf[48:], l.V)
	binary.LittleEndian.PutUint32(buf[60:], math.Float32bits(l.Radius))
	binary.LittleEndian.PutUint32(buf[64:], math.Float32bits(l.Area))
	binary.LittleEndian.PutUint32(buf[68:], l.Type)
	return buf
}

// BuildLightRecord converts one CPU light plus its owning node into the
// packed device record and a conservative AABB for acceleration-structure
// inclusion. The returned AABB always satisfies min <= max per axis.
func BuildLightRecord(node *scene.Node, light *scene.Light) (Light, gfx.AABB, error) {
	w := node.WorldTransform
	xAxis := w.Col(0).Vec3()
	yAxis := w.Col(1).Vec3()
	zAxis := w.Col(2).Vec3()
	position := w.Col(3).Vec3()

	var record Light
	var aabb gfx.AABB
	switch light.Type {
	case scene.LightTypePoint:
		record = Light{
			Intensity: light.Color.Mul(light.Intensity),
			Position:  position,
			Type:      uint32(scene.LightTypePoint),
		}
		aabb = gfx.AABB{Min: position, Max: position}
	case scene.LightTypeDirectional:
		record = Light{
			Intensity: light.Color.Mul(light.Intensity),
			U:         zAxis.Mul(-1),
			V:         mgl32.Vec3{math32.Cos(0.5 * light.Params[0]), 0, 0},
			Type:      uint32(scene.LightTypeDirectional),
		}
	case scene.LightTypeSpot:
		record = Light{
			Intensity: light.Color.Mul(light.Intensity),
			Position:  position,
			U:         zAxis.Mul(-1),
			V:         mgl32.Vec3{math32.Cos(light.Params[0]), math32.Cos(light.Params[1]), 0},
			Type:      uint32(scene.LightTypeSpot),
		}
		aabb = gfx.AABB{Min: position, Max: position}
	case scene.LightTypeQuad:
		width := light.Params[0]
		height := light.Params[1]
		area := width * height
		intensity := light.Intensity
		// Content tools author quad lights with an isotropic point
		// intensity; a quad is a single-sided emitter over its area.
		if area > 0 {
			intensity /= 0.5 * area
		}
		corner := position.
			Sub(xAxis.Mul(width * 0.5)).
			Sub(yAxis.Mul(height * 0.5))
		another := corner.
			Add(xAxis.Mul(width)).
			Add(yAxis.Mul(height)).
			Add(zAxis.Mul(0.01))
		record = Light{
			Intensity: light.Color.Mul(intensity),
			Position:  corner,
			U:         xAxis.Mul(width),
			V:         yAxis.Mul(height),
			Area:      area,
			Type:      uint32(scene.LightTypeQuad),
		}
		aabb = gfx.AABB{Min: corner, Max: another}
	case scene.LightTypeSphere:
		radius := light.Params[0]
		record = Light{
			Intensity: light.Color.Mul(light.Intensity),
			Position:  position,
			Radius:    radius,
			Area:      4 * math32.Pi * radius * radius,
			Type:      uint32(scene.LightTypeSphere),
		}
		extent := mgl32.Vec3{radius, radius, radius}
		aabb = gfx.AABB{Min: position.Sub(extent), Max: position.Add(extent)}
	default:
		return Light{}, gfx.AABB{}, halarenderer.NewError("invalid light type", nil)
	}

	return record, normalizeAABB(aabb), nil
}

// normalizeAABB reorders swapped bounds per axis. Quad lights with reversed
// edge vectors arrive here with min > max.
func normalizeAABB(a gfx.AABB) gfx.AABB {
	return gfx.AABB{
		Min: mgl32.Vec3{
			math32.Min(a.Min.X(), a.Max.X()),
			math32.Min(a.Min.Y(), a.Max.Y()),
			math32.Min(a.Min.Z(), a.Max.Z()),
		},
		Max: mgl32.Vec3{
			math32.Max(a.Min.X(), a.Max.X()),
			math32.Max(a.Min.Y(), a.Max.Y()),
			math32.Max(a.Min.Z(), a.Max.Z()),
		},
	}
}
