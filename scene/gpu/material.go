package gpu

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zhing2006/hala-renderer/scene"
)

// SizeOfMaterial is the byte size of one packed material record.
const SizeOfMaterial = 144

// Medium is the device layout of a participating medium.
type Medium struct {
	Color      mgl32.Vec3
	Density    float32
	Anisotropy float32
	Type       uint32
}

// Material is the device layout of a material, with the derived
// anisotropic-roughness terms Ax/Ay the shading model consumes directly.
//
// Packed layout, 144 bytes:
//
//	medium.color.xyz, medium.density
//	medium.anisotropy, medium.type, pad, pad
//	baseColor.xyz, opacity
//	emission.xyz, anisotropic
//	metallic, roughness, subsurface, specularTint
//	sheen, sheenTint, clearcoat, clearcoatRoughness
//	specularTransmission, ior, ax, ay
//	baseColorMap, normalMap, metallicRoughnessMap, emissionMap
//	type, pad, pad, pad
type Material struct {
	Medium Medium

	BaseColor            mgl32.Vec3
	Opacity              float32
	Emission             mgl32.Vec3
	Anisotropic          float32
	Metallic             float32
	Roughness            float32
	Subsurface           float32
	SpecularTint         float32
	Sheen                float32
	SheenTint            float32
	Clearcoat            float32
	ClearcoatRoughness   float32
	SpecularTransmission float32
	IOR                  float32

	Ax float32
	Ay float32

	BaseColorMapIndex         uint32
	NormalMapIndex            uint32
	MetallicRoughnessMapIndex uint32
	EmissionMapIndex          uint32

	Type uint32
}

// NewMaterial derives the device record from a CPU material. For diffuse
// materials Ax/Ay carry the Oren-Nayar A/B terms of the stored roughness;
// for principled materials roughness is squared and split into anisotropic
// ax/ay with an aspect derived from the anisotropic input.
func NewMaterial(m *scene.Material) Material {
	var roughness, ax, ay float32
	if m.Type == scene.MaterialTypeDiffuse {
		sigma := m.Roughness * 0.5 * (math32.Pi / 2)
		sigma2 := sigma * sigma
		roughness = m.Roughness
		ax = 1 - sigma2/(2*(sigma2+0.33))
		ay = 0.45 * sigma2 / (sigma2 + 0.09)
	} else {
		roughness = m.Roughness * m.Roughness
		aspect := math32.Sqrt(1 - clamp01(m.Anisotropic)*0.9)
		ax = math32.Max(0.001, roughness/aspect)
		ay = math32.Max(0.001, roughness*aspect)
	}

	return Material{
		Medium: Medium{
			Color:      m.Medium.Color,
			Density:    m.Medium.Density,
			Anisotropy: m.Medium.Anisotropy,
			Type:       uint32(m.Medium.Type),
		},
		BaseColor:            m.BaseColor,
		Opacity:              m.Opacity,
		Emission:             m.Emission,
		Anisotropic:          m.Anisotropic,
		Metallic:             m.Metallic,
		Roughness:            roughness,
		Subsurface:           m.Subsurface,
		SpecularTint:         m.SpecularTint,
		Sheen:                m.Sheen,
		SheenTint:            m.SheenTint,
		Clearcoat:            m.Clearcoat,
		ClearcoatRoughness:   m.ClearcoatRoughness,
		SpecularTransmission: m.SpecularTransmission,
		IOR:                  m.IOR,
		Ax:                   ax,
		Ay:                   ay,
		BaseColorMapIndex:    m.BaseColorMapIndex,
		NormalMapIndex:       m.NormalMapIndex,
		MetallicRoughnessMapIndex: m.MetallicRoughnessMapIndex,
		EmissionMapIndex:          m.EmissionMapIndex,
		Type:                      uint32(m.Type),
	}
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}

func (m *Material) ToBytes() []byte {
	buf := make([]byte, SizeOfMaterial)
	putVec3(buf[0:], m.Medium.Color)
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(m.Medium.Density))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(m.Medium.Anisotropy))
	binary.LittleEndian.PutUint32(buf[20:], m.Medium.Type)

	putVec3(buf[32:], m.BaseColor)
	binary.LittleEndian.PutUint32(buf[44:], math.Float32bits(m.Opacity))
	putVec3(buf[48:], m.Emission)
	binary.LittleEndian.PutUint32(buf[60:], math.Float32bits(m.Anisotropic))

	for i, f := range []float32{
		m.Metallic, m.Roughness, m.Subsurface, m.SpecularTint,
		m.Sheen, m.SheenTint, m.Clearcoat, m.ClearcoatRoughness,
		m.SpecularTransmission, m.IOR, m.Ax, m.Ay,
	} {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(f))
	}

	binary.LittleEndian.PutUint32(buf[112:], m.BaseColorMapIndex)
	binary.LittleEndian.PutUint32(buf[116:], m.NormalMapIndex)
	binary.LittleEndian.PutUint32(buf[120:], m.MetallicRoughnessMapIndex)
	binary.LittleEndian.PutUint32(buf[124:], m.EmissionMapIndex)
	binary.LittleEndian.PutUint32(buf[128:], m.Type)
	return buf
}
