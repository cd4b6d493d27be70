package gltf

import "encoding/json"

// JSON-level document model, limited to the subset of glTF 2.0 the scene
// model consumes. Index fields use pointers to distinguish 0 from absent.

type document struct {
	Scenes      []docScene    `json:"scenes"`
	Scene       *uint32       `json:"scene"`
	Nodes       []docNode     `json:"nodes"`
	Meshes      []docMesh     `json:"meshes"`
	Accessors   []docAccessor `json:"accessors"`
	BufferViews []docView     `json:"bufferViews"`
	Buffers     []docBuffer   `json:"buffers"`
	Materials   []docMaterial `json:"materials"`
	Textures    []docTexture  `json:"textures"`
	Images      []docImage    `json:"images"`
	Cameras     []docCamera   `json:"cameras"`
	Extensions  struct {
		LightsPunctual *struct {
			Lights []docLight `json:"lights"`
		} `json:"KHR_lights_punctual"`
	} `json:"extensions"`
}

type docScene struct {
	Name  string   `json:"name"`
	Nodes []uint32 `json:"nodes"`
}

type docNode struct {
	Name        string       `json:"name"`
	Children    []uint32     `json:"children"`
	Matrix      *[16]float32 `json:"matrix"`
	Translation *[3]float32  `json:"translation"`
	Rotation    *[4]float32  `json:"rotation"` // x, y, z, w
	Scale       *[3]float32  `json:"scale"`
	Mesh        *uint32      `json:"mesh"`
	Camera      *uint32      `json:"camera"`
	Extensions  struct {
		LightsPunctual *struct {
			Light uint32 `json:"light"`
		} `json:"KHR_lights_punctual"`
	} `json:"extensions"`
}

type docMesh struct {
	Name       string         `json:"name"`
	Primitives []docPrimitive `json:"primitives"`
}

type docPrimitive struct {
	Attributes map[string]uint32 `json:"attributes"`
	Indices    *uint32           `json:"indices"`
	Material   *uint32           `json:"material"`
	Mode       *uint32           `json:"mode"`
}

// Component types per the glTF spec.
const (
	componentByte          = 5120
	componentUnsignedByte  = 5121
	componentShort         = 5122
	componentUnsignedShort = 5123
	componentUnsignedInt   = 5125
	componentFloat         = 5126
)

type docAccessor struct {
	BufferView    *uint32 `json:"bufferView"`
	ByteOffset    uint32  `json:"byteOffset"`
	ComponentType uint32  `json:"componentType"`
	Normalized    bool    `json:"normalized"`
	Count         uint32  `json:"count"`
	Type          string  `json:"type"` // SCALAR, VEC2, VEC3, VEC4
}

type docView struct {
	Buffer     uint32  `json:"buffer"`
	ByteOffset uint32  `json:"byteOffset"`
	ByteLength uint32  `json:"byteLength"`
	ByteStride *uint32 `json:"byteStride"`
}

type docBuffer struct {
	URI        string `json:"uri"`
	ByteLength uint32 `json:"byteLength"`
}

type docMaterial struct {
	Name                 string `json:"name"`
	PBRMetallicRoughness struct {
		BaseColorFactor          *[4]float32 `json:"baseColorFactor"`
		BaseColorTexture         *docTexRef  `json:"baseColorTexture"`
		MetallicFactor           *float32    `json:"metallicFactor"`
		RoughnessFactor          *float32    `json:"roughnessFactor"`
		MetallicRoughnessTexture *docTexRef  `json:"metallicRoughnessTexture"`
	} `json:"pbrMetallicRoughness"`
	NormalTexture   *docTexRef  `json:"normalTexture"`
	EmissiveTexture *docTexRef  `json:"emissiveTexture"`
	EmissiveFactor  *[3]float32 `json:"emissiveFactor"`
	Extensions      struct {
		EmissiveStrength *struct {
			EmissiveStrength float32 `json:"emissiveStrength"`
		} `json:"KHR_materials_emissive_strength"`
		Transmission *struct {
			TransmissionFactor float32 `json:"transmissionFactor"`
		} `json:"KHR_materials_transmission"`
		IOR *struct {
			IOR float32 `json:"ior"`
		} `json:"KHR_materials_ior"`
	} `json:"extensions"`
	Extras json.RawMessage `json:"extras"`
}

type docTexRef struct {
	Index uint32 `json:"index"`
}

type docTexture struct {
	Source *uint32 `json:"source"`
}

type docImage struct {
	Name       string  `json:"name"`
	URI        string  `json:"uri"`
	MimeType   string  `json:"mimeType"`
	BufferView *uint32 `json:"bufferView"`
}

type docCamera struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Perspective *struct {
		AspectRatio *float32 `json:"aspectRatio"`
		YFov        float32  `json:"yfov"`
		ZNear       float32  `json:"znear"`
		ZFar        *float32 `json:"zfar"`
	} `json:"perspective"`
	Orthographic *struct {
		XMag  float32 `json:"xmag"`
		YMag  float32 `json:"ymag"`
		ZNear float32 `json:"znear"`
		ZFar  float32 `json:"zfar"`
	} `json:"orthographic"`
	Extras json.RawMessage `json:"extras"`
}

type docLight struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"` // directional, point, spot
	Color     *[3]float32 `json:"color"`
	Intensity *float32    `json:"intensity"`
	Spot      *struct {
		InnerConeAngle float32  `json:"innerConeAngle"`
		OuterConeAngle *float32 `json:"outerConeAngle"`
	} `json:"spot"`
	Extras json.RawMessage `json:"extras"`
}

// Authoring-tool extras blocks carried on materials, lights and cameras.

type materialExtras struct {
	Type               uint8      `json:"type"`
	Opacity            float32    `json:"opacity"`
	Anisotropic        float32    `json:"anisotropic"`
	Subsurface         float32    `json:"subsurface"`
	SpecularTint       float32    `json:"specular_tint"`
	Sheen              float32    `json:"sheen"`
	SheenTint          float32    `json:"sheen_tint"`
	Clearcoat          float32    `json:"clearcoat"`
	ClearcoatRoughness float32    `json:"clearcoat_roughness"`
	ClearcoatTint      [3]float32 `json:"clearcoat_tint"`
	MediumType         uint8      `json:"medium_type"`
	MediumColor        [3]float32 `json:"medium_color"`
	MediumDensity      float32    `json:"medium_density"`
	MediumAnisotropy   float32    `json:"medium_anisotropy"`
}

func defaultMaterialExtras() materialExtras {
	return materialExtras{
		Opacity:       1.0,
		ClearcoatTint: [3]float32{1, 1, 1},
	}
}

type lightExtras struct {
	Type   uint8   `json:"type"` // 1: quad, 2: sphere
	Param0 float32 `json:"param0"`
	Param1 float32 `json:"param1"`
}

type cameraExtras struct {
	FocalDist float32 `json:"focal_dist"`
	Aperture  float32 `json:"aperture"`
}
