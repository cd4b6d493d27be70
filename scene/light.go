package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	halarenderer "github.com/zhing2006/hala-renderer"
)

type LightType uint8

const (
	LightTypePoint       LightType = 0
	LightTypeDirectional LightType = 1
	LightTypeSpot        LightType = 2
	LightTypeQuad        LightType = 3
	LightTypeSphere      LightType = 4
)

// LightTypeFromUint8 parses a light type tag from content data.
func LightTypeFromUint8(v uint8) (LightType, error) {
	switch v {
	case 0, 1, 2, 3, 4:
		return LightType(v), nil
	default:
		return 0, halarenderer.NewError("invalid light type", nil)
	}
}

// Light is one light source. Params are type-specific:
// directional: Params[0] is the soft shadow edge angle (radians);
// spot: Params[0]/Params[1] are the inner/outer cone angles (radians);
// quad: Params[0]/Params[1] are width/height;
// sphere: Params[0] is the radius.
type Light struct {
	Color     mgl32.Vec3
	Intensity float32
	Type      LightType
	Params    [2]float32
}
