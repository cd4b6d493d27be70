package gpu

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	halarenderer "github.com/zhing2006/hala-renderer"
	"github.com/zhing2006/hala-renderer/gfx"
	"github.com/zhing2006/hala-renderer/meshlet"
	"github.com/zhing2006/hala-renderer/scene"
)

const (
	// MaxCameraCount and MaxLightCount bound the fixed-capacity device
	// arrays. Excess cameras/lights are dropped with a warning.
	MaxCameraCount = 8
	MaxLightCount  = 32
)

// Upload moves the CPU scene to the GPU through reusable staging buffers,
// recording all copies into the supplied command streams. The transfer
// stream takes pure copies; the graphics stream takes work that must run on
// an acceleration-structure-capable queue. The caller submits and
// synchronizes both streams; Upload only records.
//
// When useForMeshShader is set, primitives without meshlet data are
// clustered first and the meshlet arrays are uploaded alongside the
// geometry. When useForRayTracing is set, vertex/index buffers get
// build-input usage and the two-level acceleration structure is built.
func Upload(
	device gfx.Device,
	graphicsCmds gfx.CommandBuffers,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	useForMeshShader bool,
	useForRayTracing bool,
	logger halarenderer.Logger,
) (*Scene, error) {
	if logger == nil {
		logger = halarenderer.NewNopLogger()
	}

	cameraBufferSize := uint64(SizeOfCamera * MaxCameraCount)
	lightBufferSize := uint64(SizeOfLight * MaxLightCount)
	lightAABBBufferSize := uint64(gfx.SizeOfAABB * MaxLightCount)
	materialBufferSize := uint64(SizeOfMaterial)

	stagingSize := max64(max64(cameraBufferSize, lightBufferSize), materialBufferSize)
	staging, err := device.CreateBuffer(stagingSize, gfx.BufferUsageTransferSrc, gfx.MemoryLocationCpuToGpu, "staging.buffer")
	if err != nil {
		return nil, halarenderer.NewError("create staging buffer failed", err)
	}
	defer staging.Destroy()

	out := &Scene{}

	if err := uploadCameras(device, transferCmds, sceneInCPU, staging, cameraBufferSize, out, logger); err != nil {
		return nil, err
	}
	if err := uploadLights(device, transferCmds, sceneInCPU, staging, lightBufferSize, lightAABBBufferSize, useForRayTracing, out, logger); err != nil {
		return nil, err
	}
	if err := uploadMaterials(device, transferCmds, sceneInCPU, staging, materialBufferSize, out); err != nil {
		return nil, err
	}
	if err := uploadImages(device, transferCmds, sceneInCPU, useForMeshShader, useForRayTracing, out); err != nil {
		return nil, err
	}
	if err := uploadMeshes(device, transferCmds, sceneInCPU, useForRayTracing, out, logger); err != nil {
		return nil, err
	}
	if useForMeshShader {
		if err := uploadMeshlets(device, transferCmds, sceneInCPU, out); err != nil {
			return nil, err
		}
	}
	if useForRayTracing {
		if err := buildAccelerationStructures(device, graphicsCmds, transferCmds, sceneInCPU, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func uploadCameras(
	device gfx.Device,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	staging gfx.Buffer,
	cameraBufferSize uint64,
	out *Scene,
	logger halarenderer.Logger,
) error {
	cameraBuffer, err := device.CreateBuffer(
		cameraBufferSize,
		gfx.BufferUsageUniform|gfx.BufferUsageTransferDst,
		gfx.MemoryLocationGpuOnly,
		"cameras.buffer")
	if err != nil {
		return halarenderer.NewError("create camera buffer failed", err)
	}
	out.Cameras = cameraBuffer

	if len(sceneInCPU.Cameras) > MaxCameraCount {
		logger.Warnf("The camera count %d exceeds the maximum camera count %d. Only the first %d cameras will be uploaded to the GPU.",
			len(sceneInCPU.Cameras), MaxCameraCount, MaxCameraCount)
	}

	var packed []byte
	for index, camera := range sceneInCPU.Cameras {
		if index >= MaxCameraCount {
			break
		}
		cameraNode := findNodeByCameraIndex(sceneInCPU, uint32(index))
		if cameraNode == nil {
			return halarenderer.NewError(fmt.Sprintf("the camera node of the camera %d is not found", index), nil)
		}
		out.CameraViewMatrices = append(out.CameraViewMatrices, cameraNode.WorldTransform.Inv())
		out.CameraProjMatrices = append(out.CameraProjMatrices, camera.Projection())
		record := NewCamera(cameraNode, camera)
		packed = append(packed, record.ToBytes()...)
	}

	if len(packed) == 0 {
		return nil
	}
	if err := cameraBuffer.Upload(packed, staging, transferCmds); err != nil {
		return halarenderer.NewError("upload camera buffer failed", err)
	}
	return nil
}

func findNodeByCameraIndex(sceneInCPU *scene.Scene, index uint32) *scene.Node {
	for i := range sceneInCPU.Nodes {
		if sceneInCPU.Nodes[i].CameraIndex == index {
			return &sceneInCPU.Nodes[i]
		}
	}
	return nil
}

func uploadLights(
	device gfx.Device,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	staging gfx.Buffer,
	lightBufferSize uint64,
	lightAABBBufferSize uint64,
	useForRayTracing bool,
	out *Scene,
	logger halarenderer.Logger,
) error {
	lightBuffer, err := device.CreateBuffer(
		lightBufferSize,
		gfx.BufferUsageUniform|gfx.BufferUsageTransferDst,
		gfx.MemoryLocationGpuOnly,
		"lights.buffer")
	if err != nil {
		return halarenderer.NewError("create light buffer failed", err)
	}
	out.Lights = lightBuffer

	aabbUsage := gfx.BufferUsageStorage | gfx.BufferUsageTransferDst | gfx.BufferUsageShaderDeviceAddress
	if useForRayTracing {
		aabbUsage |= gfx.BufferUsageAccelerationStructureBuildInput
	}
	lightAABBBuffer, err := device.CreateBuffer(lightAABBBufferSize, aabbUsage, gfx.MemoryLocationGpuOnly, "light_aabbs.buffer")
	if err != nil {
		return halarenderer.NewError("create light AABB buffer failed", err)
	}
	out.LightAABBs = lightAABBBuffer

	if len(sceneInCPU.Lights) > MaxLightCount {
		logger.Warnf("The light count %d exceeds the maximum light count %d. Only the first %d lights will be uploaded to the GPU.",
			len(sceneInCPU.Lights), MaxLightCount, MaxLightCount)
	}

	// Lights are gathered in node order, not light-array order.
	var packedLights, packedAABBs []byte
	for i := range sceneInCPU.Nodes {
		node := &sceneInCPU.Nodes[i]
		if node.LightIndex == scene.NoIndex {
			continue
		}
		light := &sceneInCPU.Lights[node.LightIndex]
		record, aabb, err := BuildLightRecord(node, light)
		if err != nil {
			return err
		}
		out.LightData = append(out.LightData, record)
		packedLights = append(packedLights, record.ToBytes()...)
		packedAABBs = append(packedAABBs, aabb.ToBytes()...)
		if len(out.LightData) >= MaxLightCount {
			break
		}
	}

	if len(out.LightData) == 0 {
		return nil
	}
	if err := lightBuffer.Upload(packedLights, staging, transferCmds); err != nil {
		return halarenderer.NewError("upload light buffer failed", err)
	}
	if err := lightAABBBuffer.Upload(packedAABBs, staging, transferCmds); err != nil {
		return halarenderer.NewError("upload light AABB buffer failed", err)
	}
	return nil
}

func uploadMaterials(
	device gfx.Device,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	staging gfx.Buffer,
	materialBufferSize uint64,
	out *Scene,
) error {
	// One buffer per material so descriptors can bind and reload materials
	// independently.
	for materialIndex := range sceneInCPU.Materials {
		material := NewMaterial(&sceneInCPU.Materials[materialIndex])

		materialBuffer, err := device.CreateBuffer(
			materialBufferSize,
			gfx.BufferUsageUniform|gfx.BufferUsageTransferDst,
			gfx.MemoryLocationGpuOnly,
			fmt.Sprintf("material_%d.buffer", materialIndex))
		if err != nil {
			return halarenderer.NewError(fmt.Sprintf("create material buffer %d failed", materialIndex), err)
		}
		out.Materials = append(out.Materials, materialBuffer)
		out.MaterialTypes = append(out.MaterialTypes, material.Type)

		if err := materialBuffer.Upload(material.ToBytes(), staging, transferCmds); err != nil {
			return halarenderer.NewError(fmt.Sprintf("upload material buffer %d failed", materialIndex), err)
		}
	}
	return nil
}

func uploadImages(
	device gfx.Device,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	useForMeshShader bool,
	useForRayTracing bool,
	out *Scene,
) error {
	// Samplers are one per texture mapping entry, fixed policy: linear
	// filtering, linear mipmaps, repeat addressing.
	textureIndices := sortedKeys(sceneInCPU.TextureToImage)
	for _, textureIndex := range textureIndices {
		imageIndex := sceneInCPU.TextureToImage[textureIndex]
		dataIndex, ok := sceneInCPU.ImageToData[imageIndex]
		if !ok {
			return halarenderer.NewError(fmt.Sprintf("the image %d is not found", imageIndex), nil)
		}
		out.Textures = append(out.Textures, dataIndex)

		sampler, err := device.CreateSampler(
			gfx.FilterLinear, gfx.FilterLinear,
			gfx.SamplerMipmapModeLinear,
			gfx.SamplerAddressModeRepeat, gfx.SamplerAddressModeRepeat, gfx.SamplerAddressModeRepeat,
			fmt.Sprintf("texture_%d.sampler", textureIndex))
		if err != nil {
			return halarenderer.NewError(fmt.Sprintf("create sampler for texture %d failed", textureIndex), err)
		}
		out.Samplers = append(out.Samplers, sampler)
	}

	maxTextureSize := 0
	for i := range sceneInCPU.ImageData {
		if sceneInCPU.ImageData[i].NumBytes > maxTextureSize {
			maxTextureSize = sceneInCPU.ImageData[i].NumBytes
		}
	}
	if maxTextureSize == 0 {
		return nil
	}

	// One large staging buffer, reused for every image in turn.
	imageStaging, err := device.CreateBuffer(uint64(maxTextureSize), gfx.BufferUsageTransferSrc, gfx.MemoryLocationCpuToGpu, "image_staging.buffer")
	if err != nil {
		return halarenderer.NewError("create image staging buffer failed", err)
	}
	defer imageStaging.Destroy()

	stages := gfx.PipelineStageComputeShader | gfx.PipelineStageTransfer
	if useForMeshShader {
		stages |= gfx.PipelineStageTaskShader | gfx.PipelineStageMeshShader
	}
	if useForRayTracing {
		stages |= gfx.PipelineStageRayTracingShader
	}

	for index := range sceneInCPU.ImageData {
		data := &sceneInCPU.ImageData[index]
		image, err := device.CreateImage2D(
			gfx.ImageUsageSampled|gfx.ImageUsageTransferDst,
			data.Format,
			data.Width, data.Height,
			1, 1,
			gfx.MemoryLocationGpuOnly,
			fmt.Sprintf("texture_%d.image", index))
		if err != nil {
			return halarenderer.NewError(fmt.Sprintf("create image %d failed", index), err)
		}
		out.Images = append(out.Images, image)

		imageStages := stages
		if data.Floats == nil {
			imageStages |= gfx.PipelineStageVertexShader | gfx.PipelineStageFragmentShader
		}
		if err := image.Upload(data.Payload(), imageStages, imageStaging, transferCmds); err != nil {
			return halarenderer.NewError(fmt.Sprintf("upload image %d failed", index), err)
		}
	}
	return nil
}

func uploadMeshes(
	device gfx.Device,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	useForRayTracing bool,
	out *Scene,
	logger halarenderer.Logger,
) error {
	maxVertexBufferSize := 0
	maxIndexBufferSize := 0
	for i := range sceneInCPU.Meshes {
		for j := range sceneInCPU.Meshes[i].Primitives {
			prim := &sceneInCPU.Meshes[i].Primitives[j]
			if size := len(prim.Vertices) * scene.SizeOfVertex; size > maxVertexBufferSize {
				maxVertexBufferSize = size
			}
			if size := len(prim.Indices) * 4; size > maxIndexBufferSize {
				maxIndexBufferSize = size
			}
		}
	}
	meshStagingSize := uint64(maxVertexBufferSize)
	if uint64(maxIndexBufferSize) > meshStagingSize {
		meshStagingSize = uint64(maxIndexBufferSize)
	}
	if meshStagingSize == 0 {
		return nil
	}

	meshStaging, err := device.CreateBuffer(meshStagingSize, gfx.BufferUsageTransferSrc, gfx.MemoryLocationCpuToGpu, "mesh_staging.buffer")
	if err != nil {
		return halarenderer.NewError("create mesh staging buffer failed", err)
	}
	defer meshStaging.Destroy()

	rtUsage := gfx.BufferUsage(0)
	if useForRayTracing {
		rtUsage = gfx.BufferUsageAccelerationStructureBuildInput
	}

	for meshIndex := range sceneInCPU.Meshes {
		mesh := &sceneInCPU.Meshes[meshIndex]
		gpuMesh := Mesh{Transform: mgl32.Ident4()}
		for primIndex := range mesh.Primitives {
			prim := &mesh.Primitives[primIndex]

			vertexBytes := scene.VerticesToBytes(prim.Vertices)
			vertexBuffer, err := device.CreateBuffer(
				uint64(len(vertexBytes)),
				gfx.BufferUsageVertex|gfx.BufferUsageTransferDst|gfx.BufferUsageShaderDeviceAddress|gfx.BufferUsageStorage|rtUsage,
				gfx.MemoryLocationGpuOnly,
				fmt.Sprintf("mesh_%d_prim_%d_vertex.buffer", meshIndex, primIndex))
			if err != nil {
				return halarenderer.NewError(fmt.Sprintf("create vertex buffer for mesh %d primitive %d failed", meshIndex, primIndex), err)
			}
			if err := vertexBuffer.Upload(vertexBytes, meshStaging, transferCmds); err != nil {
				return halarenderer.NewError(fmt.Sprintf("upload vertex buffer for mesh %d primitive %d failed", meshIndex, primIndex), err)
			}

			indexBytes := scene.IndicesToBytes(prim.Indices)
			indexBuffer, err := device.CreateBuffer(
				uint64(len(indexBytes)),
				gfx.BufferUsageIndex|gfx.BufferUsageTransferDst|gfx.BufferUsageShaderDeviceAddress|gfx.BufferUsageStorage|rtUsage,
				gfx.MemoryLocationGpuOnly,
				fmt.Sprintf("mesh_%d_prim_%d_index.buffer", meshIndex, primIndex))
			if err != nil {
				return halarenderer.NewError(fmt.Sprintf("create index buffer for mesh %d primitive %d failed", meshIndex, primIndex), err)
			}
			if err := indexBuffer.Upload(indexBytes, meshStaging, transferCmds); err != nil {
				return halarenderer.NewError(fmt.Sprintf("upload index buffer for mesh %d primitive %d failed", meshIndex, primIndex), err)
			}

			gpuMesh.Primitives = append(gpuMesh.Primitives, Primitive{
				VertexBuffer:  vertexBuffer,
				IndexBuffer:   indexBuffer,
				VertexCount:   uint32(len(prim.Vertices)),
				IndexCount:    uint32(len(prim.Indices)),
				MaterialIndex: prim.MaterialIndex,
			})
		}
		out.Meshes = append(out.Meshes, gpuMesh)
	}

	// Assign each mesh its owning node's world transform. The rasterization
	// path keeps one transform per mesh; a mesh referenced by several nodes
	// is only drawn correctly through the ray-tracing instance list.
	assigned := make([]bool, len(out.Meshes))
	for i := range sceneInCPU.Nodes {
		node := &sceneInCPU.Nodes[i]
		if node.MeshIndex == scene.NoIndex {
			continue
		}
		if assigned[node.MeshIndex] {
			logger.Warnf("Mesh %d is referenced by more than one node; the last node's transform wins for rasterization.", node.MeshIndex)
		}
		out.Meshes[node.MeshIndex].Transform = node.WorldTransform
		assigned[node.MeshIndex] = true
	}
	return nil
}

func uploadMeshlets(
	device gfx.Device,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	out *Scene,
) error {
	maxStagingSize := 0
	for i := range sceneInCPU.Meshes {
		for j := range sceneInCPU.Meshes[i].Primitives {
			prim := &sceneInCPU.Meshes[i].Primitives[j]
			if len(prim.Meshlets) == 0 {
				if err := meshlet.Build(prim); err != nil {
					return err
				}
			}
			sizes := [3]int{
				len(prim.Meshlets) * scene.SizeOfMeshlet,
				len(prim.MeshletVertices) * 4,
				len(prim.MeshletPrimitives) * 4,
			}
			for _, size := range sizes {
				if size > maxStagingSize {
					maxStagingSize = size
				}
			}
		}
	}
	if maxStagingSize == 0 {
		return nil
	}

	meshletStaging, err := device.CreateBuffer(uint64(maxStagingSize), gfx.BufferUsageTransferSrc, gfx.MemoryLocationCpuToGpu, "meshlet_staging.buffer")
	if err != nil {
		return halarenderer.NewError("create meshlet staging buffer failed", err)
	}
	defer meshletStaging.Destroy()

	for meshIndex := range sceneInCPU.Meshes {
		for primIndex := range sceneInCPU.Meshes[meshIndex].Primitives {
			prim := &sceneInCPU.Meshes[meshIndex].Primitives[primIndex]
			gpuPrim := &out.Meshes[meshIndex].Primitives[primIndex]
			if len(prim.Meshlets) == 0 {
				continue
			}

			meshletBytes := make([]byte, 0, len(prim.Meshlets)*scene.SizeOfMeshlet)
			for k := range prim.Meshlets {
				meshletBytes = append(meshletBytes, prim.Meshlets[k].ToBytes()...)
			}
			name := fmt.Sprintf("mesh_%d_prim_%d", meshIndex, primIndex)
			meshletBuffer, err := createAndUpload(device, transferCmds, meshletStaging, meshletBytes,
				gfx.BufferUsageStorage|gfx.BufferUsageTransferDst, name+"_meshlet.buffer")
			if err != nil {
				return err
			}
			vertexBuffer, err := createAndUpload(device, transferCmds, meshletStaging, scene.IndicesToBytes(prim.MeshletVertices),
				gfx.BufferUsageStorage|gfx.BufferUsageTransferDst, name+"_meshlet_vertex.buffer")
			if err != nil {
				return err
			}
			primitiveBuffer, err := createAndUpload(device, transferCmds, meshletStaging, scene.IndicesToBytes(prim.MeshletPrimitives),
				gfx.BufferUsageStorage|gfx.BufferUsageTransferDst, name+"_meshlet_primitive.buffer")
			if err != nil {
				return err
			}

			gpuPrim.MeshletCount = uint32(len(prim.Meshlets))
			gpuPrim.MeshletBuffer = meshletBuffer
			gpuPrim.MeshletVertexBuffer = vertexBuffer
			gpuPrim.MeshletPrimitiveBuffer = primitiveBuffer
		}
	}
	return nil
}

func createAndUpload(
	device gfx.Device,
	transferCmds gfx.CommandBuffers,
	staging gfx.Buffer,
	data []byte,
	usage gfx.BufferUsage,
	name string,
) (gfx.Buffer, error) {
	buffer, err := device.CreateBuffer(uint64(len(data)), usage, gfx.MemoryLocationGpuOnly, name)
	if err != nil {
		return nil, halarenderer.NewError(fmt.Sprintf("create buffer %q failed", name), err)
	}
	if err := buffer.Upload(data, staging, transferCmds); err != nil {
		return nil, halarenderer.NewError(fmt.Sprintf("upload buffer %q failed", name), err)
	}
	return buffer, nil
}

func sortedKeys(m map[uint32]uint32) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
