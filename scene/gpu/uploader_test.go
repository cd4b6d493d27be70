package gpu

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhing2006/hala-renderer/gfx"
	"github.com/zhing2006/hala-renderer/gfx/gfxtest"
	"github.com/zhing2006/hala-renderer/scene"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) DebugEnabled() bool                { return false }
func (l *recordingLogger) SetDebug(enabled bool)             {}
func (l *recordingLogger) Debugf(format string, args ...any) {}
func (l *recordingLogger) Infof(format string, args ...any)  {}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}
func (l *recordingLogger) Errorf(format string, args ...any) {}

func unitTriangle() scene.Primitive {
	return scene.Primitive{
		Vertices: []scene.Vertex{
			{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 0, 1}},
			{Position: mgl32.Vec3{0, 1, 0}, Normal: mgl32.Vec3{0, 0, 1}},
		},
		Indices:       []uint32{0, 1, 2},
		MaterialIndex: 0,
	}
}

// minimalScene has 1 camera, 1 point light at (0,5,0), 1 single-primitive
// mesh and 1 material.
func minimalScene() *scene.Scene {
	s := &scene.Scene{
		TextureToImage: map[uint32]uint32{},
		ImageToData:    map[uint32]uint32{},
	}

	cameraNode := scene.NewNode("camera")
	cameraNode.CameraIndex = 0
	cameraNode.LocalTransform = mgl32.Translate3D(0, 1, 5)

	lightNode := scene.NewNode("light")
	lightNode.LightIndex = 0
	lightNode.LocalTransform = mgl32.Translate3D(0, 5, 0)

	meshNode := scene.NewNode("mesh")
	meshNode.MeshIndex = 0

	s.Nodes = []scene.Node{cameraNode, lightNode, meshNode}
	s.Cameras = []scene.Camera{scene.NewPerspectiveCamera(1, 1, 0.1, 100, 10, 0)}
	s.Lights = []scene.Light{{Color: mgl32.Vec3{1, 1, 1}, Intensity: 1, Type: scene.LightTypePoint}}
	s.Meshes = []scene.Mesh{{Primitives: []scene.Primitive{unitTriangle()}}}
	s.Materials = []scene.Material{{Type: scene.MaterialTypeDiffuse, BaseColor: mgl32.Vec3{1, 1, 1}, Opacity: 1}}
	s.UpdateNodeHierarchies()
	return s
}

func uploadStreams() (*gfxtest.CommandBuffers, *gfxtest.CommandBuffers) {
	return &gfxtest.CommandBuffers{Name: "graphics"}, &gfxtest.CommandBuffers{Name: "transfer"}
}

func TestUploadMinimalScene(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()

	gpuScene, err := Upload(device, graphics, transfer, minimalScene(), false, false, nil)
	require.NoError(t, err)

	require.Len(t, gpuScene.CameraViewMatrices, 1)
	require.Len(t, gpuScene.CameraProjMatrices, 1)
	require.Len(t, gpuScene.LightData, 1)
	assert.Equal(t, uint32(scene.LightTypePoint), gpuScene.LightData[0].Type)
	assert.Equal(t, mgl32.Vec3{0, 5, 0}, gpuScene.LightData[0].Position)

	require.Len(t, gpuScene.Meshes, 1)
	require.Len(t, gpuScene.Meshes[0].Primitives, 1)
	prim := gpuScene.Meshes[0].Primitives[0]
	assert.Equal(t, uint32(3), prim.VertexCount)
	assert.Equal(t, uint32(3), prim.IndexCount)
	assert.Equal(t, uint32(0), prim.MeshletCount)
	assert.Nil(t, prim.BTlas)
	assert.Nil(t, gpuScene.TPlas)
	assert.Nil(t, gpuScene.LightBTlas)

	// View matrix is the inverse of the camera node's world transform.
	view := gpuScene.CameraViewMatrices[0]
	back := view.Mul4x1(mgl32.Vec4{0, 1, 5, 1})
	assert.InDelta(t, 0, back.X(), 1e-5)
	assert.InDelta(t, 0, back.Y(), 1e-5)
	assert.InDelta(t, 0, back.Z(), 1e-5)

	// Light record payload landed in the light buffer.
	lights := device.FindBuffer("lights.buffer")
	require.NotNil(t, lights)
	require.GreaterOrEqual(t, len(lights.Data), SizeOfLight)
	assert.Equal(t, uint32(scene.LightTypePoint), binary.LittleEndian.Uint32(lights.Data[68:72]))

	require.NotNil(t, device.FindBuffer("cameras.buffer"))
	require.NotNil(t, device.FindBuffer("material_0.buffer"))
	require.NotNil(t, device.FindBuffer("mesh_0_prim_0_vertex.buffer"))
	require.NotNil(t, device.FindBuffer("mesh_0_prim_0_index.buffer"))

	// Staging buffers do not outlive the upload.
	assert.Contains(t, device.DestroyLog, "staging.buffer")
	assert.Contains(t, device.DestroyLog, "mesh_staging.buffer")
}

func TestUploadCameraTruncation(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()
	logger := &recordingLogger{}

	s := &scene.Scene{
		TextureToImage: map[uint32]uint32{},
		ImageToData:    map[uint32]uint32{},
	}
	for i := 0; i < 10; i++ {
		node := scene.NewNode(fmt.Sprintf("camera_%d", i))
		node.CameraIndex = uint32(i)
		node.LocalTransform = mgl32.Translate3D(float32(i), 0, 0)
		s.Nodes = append(s.Nodes, node)
		s.Cameras = append(s.Cameras, scene.NewPerspectiveCamera(1, 1, 0.1, 100, 10, 0))
	}
	s.UpdateNodeHierarchies()

	gpuScene, err := Upload(device, graphics, transfer, s, false, false, logger)
	require.NoError(t, err)

	require.Len(t, gpuScene.CameraViewMatrices, MaxCameraCount)
	require.Len(t, logger.warnings, 1)

	// The first 8 cameras survive in original order.
	for i := 0; i < MaxCameraCount; i++ {
		inv := gpuScene.CameraViewMatrices[i].Inv()
		assert.InDelta(t, float32(i), inv.Col(3).X(), 1e-4)
	}

	cameras := device.FindBuffer("cameras.buffer")
	require.NotNil(t, cameras)
	assert.Equal(t, MaxCameraCount*SizeOfCamera, len(cameras.Data))
}

func TestUploadMissingCameraNode(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()

	s := &scene.Scene{
		TextureToImage: map[uint32]uint32{},
		ImageToData:    map[uint32]uint32{},
		Cameras:        []scene.Camera{scene.NewPerspectiveCamera(1, 1, 0.1, 100, 10, 0)},
	}

	_, err := Upload(device, graphics, transfer, s, false, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera node")
}

func TestUploadAllocationFailure(t *testing.T) {
	device := gfxtest.NewDevice()
	device.BufferFailAfter = 2
	graphics, transfer := uploadStreams()

	_, err := Upload(device, graphics, transfer, minimalScene(), false, false, nil)
	require.Error(t, err)
}

func TestUploadInstanceOrdering(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()

	s := &scene.Scene{
		TextureToImage: map[uint32]uint32{},
		ImageToData:    map[uint32]uint32{},
	}
	lightNode := scene.NewNode("light")
	lightNode.LightIndex = 0
	meshNodeA := scene.NewNode("a")
	meshNodeA.MeshIndex = 0
	meshNodeA.LocalTransform = mgl32.Translate3D(1, 0, 0)
	meshNodeB := scene.NewNode("b")
	meshNodeB.MeshIndex = 1
	meshNodeB.LocalTransform = mgl32.Translate3D(0, 2, 0)

	s.Nodes = []scene.Node{lightNode, meshNodeA, meshNodeB}
	s.Lights = []scene.Light{{Color: mgl32.Vec3{1, 1, 1}, Intensity: 1, Type: scene.LightTypePoint}}
	s.Meshes = []scene.Mesh{
		{Primitives: []scene.Primitive{unitTriangle()}},
		{Primitives: []scene.Primitive{unitTriangle(), unitTriangle()}},
	}
	s.Materials = []scene.Material{{Type: scene.MaterialTypeDiffuse, Opacity: 1}}
	s.UpdateNodeHierarchies()

	gpuScene, err := Upload(device, graphics, transfer, s, false, true, nil)
	require.NoError(t, err)

	require.Len(t, gpuScene.PrimitiveData, 3)
	require.NotNil(t, gpuScene.TPlas)
	require.NotNil(t, gpuScene.LightBTlas)
	require.NotNil(t, gpuScene.Primitives)
	for _, name := range []string{"mesh_0_prim_0.btlas", "mesh_1_prim_0.btlas", "mesh_1_prim_1.btlas", "light.btlas", "scene.tplas"} {
		found := false
		for _, as := range device.Structures {
			if as.Name == name {
				found = true
				break
			}
		}
		assert.True(t, found, "missing acceleration structure %q", name)
	}

	instances := device.FindBuffer("scene.instance_buffer")
	require.NotNil(t, instances)
	require.Equal(t, 4*gfx.SizeOfInstance, len(instances.Data))

	for i := 0; i < 4; i++ {
		record := instances.Data[i*gfx.SizeOfInstance:]
		customAndMask := binary.LittleEndian.Uint32(record[48:52])
		sbtAndFlags := binary.LittleEndian.Uint32(record[52:56])
		custom := customAndMask & 0x00ffffff
		mask := customAndMask >> 24
		sbt := sbtAndFlags & 0x00ffffff

		assert.Equal(t, uint32(0xff), mask, "instance %d mask", i)
		if i < 3 {
			assert.Equal(t, uint32(i), custom, "mesh instance %d custom index", i)
			assert.Equal(t, uint32(0), sbt, "mesh instance %d SBT offset", i)
		} else {
			assert.Equal(t, uint32(0), custom, "light instance custom index")
			assert.Equal(t, uint32(1), sbt, "light instance SBT offset")
		}
	}

	// Primitive descriptions carry each owning node's world transform.
	assert.Equal(t, mgl32.Translate3D(1, 0, 0), gpuScene.PrimitiveData[0].Transform)
	assert.Equal(t, mgl32.Translate3D(0, 2, 0), gpuScene.PrimitiveData[1].Transform)
	assert.Equal(t, mgl32.Translate3D(0, 2, 0), gpuScene.PrimitiveData[2].Transform)

	primitives := device.FindBuffer("scene.primitives_buffer")
	require.NotNil(t, primitives)
	assert.Equal(t, 3*SizeOfMeshData, len(primitives.Data))
}

func TestUploadMeshShading(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()

	s := minimalScene()
	gpuScene, err := Upload(device, graphics, transfer, s, true, false, nil)
	require.NoError(t, err)

	prim := gpuScene.Meshes[0].Primitives[0]
	require.Equal(t, uint32(1), prim.MeshletCount)
	require.NotNil(t, prim.MeshletBuffer)
	require.NotNil(t, prim.MeshletVertexBuffer)
	require.NotNil(t, prim.MeshletPrimitiveBuffer)
	assert.NotNil(t, device.FindBuffer("mesh_0_prim_0_meshlet.buffer"))
	assert.Contains(t, device.DestroyLog, "meshlet_staging.buffer")

	meshlets := device.FindBuffer("mesh_0_prim_0_meshlet.buffer")
	require.NotNil(t, meshlets)
	assert.Equal(t, scene.SizeOfMeshlet, len(meshlets.Data))
}

func TestUploadTexturesAndImages(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()

	s := minimalScene()
	s.TextureToImage = map[uint32]uint32{0: 0, 1: 1}
	s.ImageToData = map[uint32]uint32{0: 0, 1: 1}
	s.ImageData = []scene.ImageData{
		{Format: gfx.FormatR8G8B8A8Srgb, Width: 2, Height: 2, Bytes: make([]byte, 16), NumBytes: 16},
		{Format: gfx.FormatR32G32B32A32Sfloat, Width: 1, Height: 1, Floats: make([]float32, 4), NumBytes: 16},
	}

	gpuScene, err := Upload(device, graphics, transfer, s, false, false, nil)
	require.NoError(t, err)

	require.Len(t, gpuScene.Samplers, 2)
	require.Len(t, gpuScene.Images, 2)
	require.Equal(t, []uint32{0, 1}, gpuScene.Textures)

	var byteImage, floatImage *gfxtest.Image
	for _, img := range device.Images {
		switch img.Name {
		case "texture_0.image":
			byteImage = img
		case "texture_1.image":
			floatImage = img
		}
	}
	require.NotNil(t, byteImage)
	require.NotNil(t, floatImage)

	// Byte images feed raster stages; float images are compute/trace only.
	assert.NotZero(t, byteImage.Stages&gfx.PipelineStageFragmentShader)
	assert.Zero(t, floatImage.Stages&gfx.PipelineStageFragmentShader)
	assert.Contains(t, device.DestroyLog, "image_staging.buffer")
}

func TestUploadMissingImage(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()

	s := minimalScene()
	s.TextureToImage = map[uint32]uint32{0: 5}

	_, err := Upload(device, graphics, transfer, s, false, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "image 5")
}

func TestSceneDestroyOrder(t *testing.T) {
	device := gfxtest.NewDevice()
	graphics, transfer := uploadStreams()

	gpuScene, err := Upload(device, graphics, transfer, minimalScene(), false, true, nil)
	require.NoError(t, err)

	logStart := len(device.DestroyLog)
	gpuScene.Destroy()
	destroyed := device.DestroyLog[logStart:]
	require.NotEmpty(t, destroyed)

	indexOf := func(name string) int {
		for i, n := range destroyed {
			if n == name {
				return i
			}
		}
		t.Fatalf("%q was not destroyed", name)
		return -1
	}

	// Acceleration structures drop before the buffers their builds read.
	assert.Less(t, indexOf("scene.tplas"), indexOf("scene.instance_buffer"))
	assert.Less(t, indexOf("mesh_0_prim_0.btlas"), indexOf("mesh_0_prim_0_vertex.buffer"))
	assert.Less(t, indexOf("light.btlas"), indexOf("light_aabbs.buffer"))

	// Destroy is idempotent.
	gpuScene.Destroy()
	assert.Equal(t, destroyed, device.DestroyLog[logStart:])
}
