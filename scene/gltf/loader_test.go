package gltf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhing2006/hala-renderer/scene"
)

// One triangle: positions at 0, normals at 36, UVs at 72, u16 indices at 96.
const triangleBuffer = "AAAAAAAAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAAAAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAABAAIAAAA="

// 1x1 RGB PNG, exercises the RGBA widening path.
const whitePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAIAAACQd1PeAAAADElEQVR4nGP43+AAAARBAcAM0e2RAAAAAElFTkSuQmCC"

const testDocument = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"name": "main", "nodes": [0, 1, 2]}],
  "nodes": [
    {"name": "tri", "mesh": 0, "translation": [1, 2, 3], "children": [3]},
    {"name": "cam", "camera": 0, "translation": [0, 0, 5]},
    {"name": "lamp", "extensions": {"KHR_lights_punctual": {"light": 0}}, "translation": [0, 5, 0]},
    {"name": "child", "translation": [0, 0, 1]}
  ],
  "meshes": [{
    "name": "triangle",
    "primitives": [{
      "attributes": {"POSITION": 0, "NORMAL": 1, "TEXCOORD_0": 2},
      "indices": 3,
      "material": 0
    }]
  }],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
    {"bufferView": 1, "componentType": 5126, "count": 3, "type": "VEC3"},
    {"bufferView": 2, "componentType": 5126, "count": 3, "type": "VEC2"},
    {"bufferView": 3, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 36},
    {"buffer": 0, "byteOffset": 72, "byteLength": 24},
    {"buffer": 0, "byteOffset": 96, "byteLength": 6}
  ],
  "buffers": [{"uri": "data:application/octet-stream;base64,` + triangleBuffer + `", "byteLength": 104}],
  "materials": [{
    "name": "mat",
    "pbrMetallicRoughness": {
      "baseColorFactor": [0.5, 0.5, 0.5, 1.0],
      "baseColorTexture": {"index": 0},
      "metallicFactor": 0.0,
      "roughnessFactor": 0.4
    },
    "emissiveFactor": [1, 0, 0],
    "extensions": {
      "KHR_materials_emissive_strength": {"emissiveStrength": 2.0},
      "KHR_materials_ior": {"ior": 1.33}
    },
    "extras": {"type": 1, "anisotropic": 0.5, "medium_type": 2, "medium_density": 1.5}
  }],
  "textures": [{"source": 0}],
  "images": [{"name": "white", "uri": "data:image/png;base64,` + whitePixelPNG + `"}],
  "cameras": [{
    "name": "cam",
    "type": "perspective",
    "perspective": {"aspectRatio": 1.5, "yfov": 0.8, "znear": 0.1, "zfar": 500},
    "extras": {"focal_dist": 4.0, "aperture": 0.2}
  }],
  "extensions": {
    "KHR_lights_punctual": {
      "lights": [{
        "name": "lamp",
        "type": "point",
        "color": [1, 0.9, 0.8],
        "intensity": 40,
        "extras": {"type": 1, "param0": 2, "param1": 3}
      }]
    }
  }
}`

func writeDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.gltf")
	if err := os.WriteFile(path, []byte(testDocument), 0o644); err != nil {
		t.Fatalf("write glTF fixture: %v", err)
	}
	return path
}

func TestLoadScene(t *testing.T) {
	s, err := Load(writeDocument(t), nil)
	require.NoError(t, err)

	require.Len(t, s.Nodes, 4)
	assert.Equal(t, "tri", s.Nodes[0].Name)
	assert.Equal(t, uint32(0), s.Nodes[0].MeshIndex)
	assert.Equal(t, uint32(0), s.Nodes[1].CameraIndex)
	assert.Equal(t, uint32(0), s.Nodes[2].LightIndex)
	// BFS places the child last, parented to node 0.
	assert.Equal(t, "child", s.Nodes[3].Name)
	assert.Equal(t, uint32(0), s.Nodes[3].Parent)

	// World transforms are already derived.
	assert.Equal(t, mgl32.Vec3{1, 2, 4}, s.Nodes[3].WorldTransform.Col(3).Vec3())
}

func TestLoadMeshGeometry(t *testing.T) {
	s, err := Load(writeDocument(t), nil)
	require.NoError(t, err)

	require.Len(t, s.Meshes, 1)
	require.Len(t, s.Meshes[0].Primitives, 1)
	prim := &s.Meshes[0].Primitives[0]

	assert.Equal(t, []uint32{0, 1, 2}, prim.Indices)
	require.Len(t, prim.Vertices, 3)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, prim.Vertices[1].Position)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, prim.Vertices[1].Normal)
	assert.Equal(t, mgl32.Vec2{1, 0}, prim.Vertices[1].TexCoord)
	assert.Equal(t, uint32(0), prim.MaterialIndex)

	// No authored tangents: generated from positions and UVs.
	assert.InDelta(t, 1, prim.Vertices[0].Tangent.Len(), 1e-5)
}

func TestLoadMaterial(t *testing.T) {
	s, err := Load(writeDocument(t), nil)
	require.NoError(t, err)

	require.Len(t, s.Materials, 1)
	m := &s.Materials[0]
	assert.Equal(t, scene.MaterialTypeDisney, m.Type)
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0.5}, m.BaseColor)
	assert.Equal(t, float32(0.4), m.Roughness)
	assert.Equal(t, float32(0), m.Metallic)
	assert.Equal(t, float32(0.5), m.Anisotropic)
	assert.Equal(t, float32(1.33), m.IOR)
	// Emissive factor scaled by emissive strength.
	assert.Equal(t, mgl32.Vec3{2, 0, 0}, m.Emission)
	assert.Equal(t, scene.MediumTypeScatter, m.Medium.Type)
	assert.Equal(t, float32(1.5), m.Medium.Density)
	assert.Equal(t, uint32(0), m.BaseColorMapIndex)
	assert.Equal(t, scene.NoIndex, m.NormalMapIndex)
	// Extras default when absent.
	assert.Equal(t, float32(1), m.Opacity)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, m.ClearcoatTint)
}

func TestLoadImages(t *testing.T) {
	s, err := Load(writeDocument(t), nil)
	require.NoError(t, err)

	assert.Equal(t, map[uint32]uint32{0: 0}, s.TextureToImage)
	require.Len(t, s.ImageData, 1)
	img := &s.ImageData[0]
	assert.Equal(t, uint32(1), img.Width)
	assert.Equal(t, uint32(1), img.Height)
	// RGB source widens to 4 bytes per texel.
	assert.Equal(t, 4, img.NumBytes)
	require.Len(t, img.Bytes, 4)
	assert.Equal(t, uint8(255), img.Bytes[3])
}

func TestLoadQuadLightFromExtras(t *testing.T) {
	s, err := Load(writeDocument(t), nil)
	require.NoError(t, err)

	require.Len(t, s.Lights, 1)
	light := &s.Lights[0]
	assert.Equal(t, scene.LightTypeQuad, light.Type)
	assert.Equal(t, [2]float32{2, 3}, light.Params)
	// Intensity is not corrected here; the light record builder owns that.
	assert.Equal(t, float32(40), light.Intensity)
	assert.Equal(t, mgl32.Vec3{1, 0.9, 0.8}, light.Color)
}

func TestLoadCamera(t *testing.T) {
	s, err := Load(writeDocument(t), nil)
	require.NoError(t, err)

	require.Len(t, s.Cameras, 1)
	cam, ok := s.Cameras[0].(*scene.PerspectiveCamera)
	require.True(t, ok)
	assert.Equal(t, float32(1.5), cam.Aspect)
	assert.Equal(t, float32(0.8), cam.YFov)
	assert.Equal(t, float32(4), cam.FocalDistance)
	assert.Equal(t, float32(0.2), cam.Aperture)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.gltf"), nil)
	require.Error(t, err)
}

func TestLoadRejectsUnknownLightType(t *testing.T) {
	doc := `{
	  "scenes": [{"nodes": []}],
	  "extensions": {"KHR_lights_punctual": {"lights": [{"type": "laser"}]}}
	}`
	path := filepath.Join(t.TempDir(), "bad.gltf")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "light type")
}
