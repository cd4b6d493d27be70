package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	halarenderer "github.com/zhing2006/hala-renderer"
)

type MaterialType uint8

const (
	MaterialTypeDiffuse MaterialType = 0
	MaterialTypeDisney  MaterialType = 1
)

// MaterialTypeFromUint8 parses a material type tag from content data.
func MaterialTypeFromUint8(v uint8) (MaterialType, error) {
	switch v {
	case 0, 1:
		return MaterialType(v), nil
	default:
		return 0, halarenderer.NewError("invalid material type", nil)
	}
}

type MediumType uint8

const (
	MediumTypeNone     MediumType = 0
	MediumTypeAbsorb   MediumType = 1
	MediumTypeScatter  MediumType = 2
	MediumTypeEmissive MediumType = 3
)

// MediumTypeFromUint8 parses a medium type tag from content data.
func MediumTypeFromUint8(v uint8) (MediumType, error) {
	switch v {
	case 0, 1, 2, 3:
		return MediumType(v), nil
	default:
		return 0, halarenderer.NewError("invalid medium type", nil)
	}
}

// Medium is an optional participating medium attached to a material.
type Medium struct {
	Type       MediumType
	Color      mgl32.Vec3
	Density    float32
	Anisotropy float32
}

// Material holds physically-based shading parameters. Map indices are
// texture indices or NoIndex.
type Material struct {
	Type                 MaterialType
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
	ClearcoatTint        mgl32.Vec3
	SpecularTransmission float32
	IOR                  float32

	Medium Medium

	BaseColorMapIndex         uint32
	EmissionMapIndex          uint32
	NormalMapIndex            uint32
	MetallicRoughnessMapIndex uint32
}
