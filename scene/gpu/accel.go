package gpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	halarenderer "github.com/zhing2006/hala-renderer"
	"github.com/zhing2006/hala-renderer/gfx"
	"github.com/zhing2006/hala-renderer/scene"
)

// buildAccelerationStructures builds one bottom-level structure per
// triangle primitive, one for the light AABBs, and a single top-level
// structure over instances of all of them. Geometry buffers must already
// be resident; the build commands go to the graphics stream while the
// instance and primitive description uploads go to the transfer stream.
func buildAccelerationStructures(
	device gfx.Device,
	graphicsCmds gfx.CommandBuffers,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	out *Scene,
) error {
	if err := buildPrimitiveBLAS(device, graphicsCmds, out); err != nil {
		return err
	}
	if err := buildLightBLAS(device, graphicsCmds, out); err != nil {
		return err
	}
	if err := buildInstancesAndTLAS(device, graphicsCmds, transferCmds, sceneInCPU, out); err != nil {
		return err
	}
	return nil
}

func buildPrimitiveBLAS(device gfx.Device, graphicsCmds gfx.CommandBuffers, out *Scene) error {
	for meshIndex := range out.Meshes {
		for primIndex := range out.Meshes[meshIndex].Primitives {
			prim := &out.Meshes[meshIndex].Primitives[primIndex]
			triangleCount := prim.IndexCount / 3

			geometry := gfx.Geometry{
				Type:  gfx.GeometryTypeTriangles,
				Flags: gfx.GeometryFlagsOpaque,
				Triangles: &gfx.TrianglesData{
					VertexFormat:      gfx.FormatR32G32B32Sfloat,
					VertexDataAddress: prim.VertexBuffer.DeviceAddress(),
					VertexStride:      uint64(scene.SizeOfVertex),
					VertexCount:       prim.VertexCount,
					IndexType:         gfx.IndexTypeUint32,
					IndexDataAddress:  prim.IndexBuffer.DeviceAddress(),
				},
			}
			buildRange := gfx.BuildRangeInfo{PrimitiveCount: triangleCount}

			blas, err := device.CreateAccelerationStructure(
				graphicsCmds,
				gfx.AccelerationStructureLevelBottom,
				[]gfx.Geometry{geometry},
				[][]gfx.BuildRangeInfo{{buildRange}},
				[]uint32{triangleCount},
				fmt.Sprintf("mesh_%d_prim_%d.btlas", meshIndex, primIndex))
			if err != nil {
				return halarenderer.NewError(fmt.Sprintf("build bottom level acceleration structure for mesh %d primitive %d failed", meshIndex, primIndex), err)
			}
			prim.BTlas = blas
		}
	}
	return nil
}

func buildLightBLAS(device gfx.Device, graphicsCmds gfx.CommandBuffers, out *Scene) error {
	if len(out.LightData) == 0 {
		return nil
	}

	lightCount := uint32(len(out.LightData))
	geometry := gfx.Geometry{
		Type:  gfx.GeometryTypeAABBs,
		Flags: gfx.GeometryFlagsOpaque,
		AABBs: &gfx.AABBsData{
			DataAddress: out.LightAABBs.DeviceAddress(),
			Stride:      uint64(gfx.SizeOfAABB),
		},
	}
	buildRange := gfx.BuildRangeInfo{PrimitiveCount: lightCount}

	blas, err := device.CreateAccelerationStructure(
		graphicsCmds,
		gfx.AccelerationStructureLevelBottom,
		[]gfx.Geometry{geometry},
		[][]gfx.BuildRangeInfo{{buildRange}},
		[]uint32{lightCount},
		"light.btlas")
	if err != nil {
		return halarenderer.NewError("build light bottom level acceleration structure failed", err)
	}
	out.LightBTlas = blas
	return nil
}

func buildInstancesAndTLAS(
	device gfx.Device,
	graphicsCmds gfx.CommandBuffers,
	transferCmds gfx.CommandBuffers,
	sceneInCPU *scene.Scene,
	out *Scene,
) error {
	var instances []gfx.Instance
	var primitiveDescs []byte

	// Mesh instances come from the node graph: one instance per
	// node-primitive pair, in node order. The custom index points at the
	// matching entry of the primitive description table.
	for i := range sceneInCPU.Nodes {
		node := &sceneInCPU.Nodes[i]
		if node.MeshIndex == scene.NoIndex {
			continue
		}
		mesh := &out.Meshes[node.MeshIndex]
		for primIndex := range mesh.Primitives {
			prim := &mesh.Primitives[primIndex]
			desc := MeshData{
				Transform:     node.WorldTransform,
				MaterialIndex: prim.MaterialIndex,
				Vertices:      prim.VertexBuffer.DeviceAddress(),
				Indices:       prim.IndexBuffer.DeviceAddress(),
			}
			instances = append(instances, gfx.Instance{
				Transform:                    gfx.InstanceTransformFromMat4(node.WorldTransform),
				CustomIndex:                  uint32(len(out.PrimitiveData)),
				Mask:                         0xff,
				ShaderBindingTableOffset:     0,
				Flags:                        gfx.InstanceFlagsTriangleFacingCullDisable,
				AccelerationStructureAddress: prim.BTlas.DeviceAddress(),
			})
			out.PrimitiveData = append(out.PrimitiveData, desc)
			primitiveDescs = append(primitiveDescs, desc.ToBytes()...)
		}
	}

	if len(out.PrimitiveData) > 0 {
		primitivesBuffer, err := device.CreateBuffer(
			uint64(len(primitiveDescs)),
			gfx.BufferUsageStorage|gfx.BufferUsageTransferDst|gfx.BufferUsageShaderDeviceAddress,
			gfx.MemoryLocationGpuOnly,
			"scene.primitives_buffer")
		if err != nil {
			return halarenderer.NewError("create primitives buffer failed", err)
		}
		out.Primitives = primitivesBuffer
	}

	// The light structure rides along as the last instance, identity
	// transform, second shader binding table record.
	if out.LightBTlas != nil {
		instances = append(instances, gfx.Instance{
			Transform:                    gfx.InstanceTransformFromMat4(mgl32.Ident4()),
			CustomIndex:                  0,
			Mask:                         0xff,
			ShaderBindingTableOffset:     1,
			Flags:                        gfx.InstanceFlagsTriangleFacingCullDisable,
			AccelerationStructureAddress: out.LightBTlas.DeviceAddress(),
		})
	}
	if len(instances) == 0 {
		return nil
	}

	instanceBytes := make([]byte, 0, len(instances)*gfx.SizeOfInstance)
	for i := range instances {
		instanceBytes = append(instanceBytes, instances[i].ToBytes()...)
	}

	instanceBuffer, err := device.CreateBuffer(
		uint64(len(instanceBytes)),
		gfx.BufferUsageTransferDst|gfx.BufferUsageShaderDeviceAddress|gfx.BufferUsageAccelerationStructureBuildInput,
		gfx.MemoryLocationGpuOnly,
		"scene.instance_buffer")
	if err != nil {
		return halarenderer.NewError("create instance buffer failed", err)
	}
	out.Instances = instanceBuffer

	stagingSize := uint64(len(instanceBytes))
	if uint64(len(primitiveDescs)) > stagingSize {
		stagingSize = uint64(len(primitiveDescs))
	}
	staging, err := device.CreateBuffer(stagingSize, gfx.BufferUsageTransferSrc, gfx.MemoryLocationCpuToGpu, "tlas_staging.buffer")
	if err != nil {
		return halarenderer.NewError("create acceleration structure staging buffer failed", err)
	}
	defer staging.Destroy()

	if out.Primitives != nil {
		if err := out.Primitives.Upload(primitiveDescs, staging, transferCmds); err != nil {
			return halarenderer.NewError("upload primitives buffer failed", err)
		}
	}
	if err := instanceBuffer.Upload(instanceBytes, staging, transferCmds); err != nil {
		return halarenderer.NewError("upload instance buffer failed", err)
	}

	instanceCount := uint32(len(instances))
	geometry := gfx.Geometry{
		Type:  gfx.GeometryTypeInstances,
		Flags: gfx.GeometryFlagsOpaque,
		Instances: &gfx.InstancesData{
			DataAddress: instanceBuffer.DeviceAddress(),
		},
	}
	buildRange := gfx.BuildRangeInfo{PrimitiveCount: instanceCount}

	tlas, err := device.CreateAccelerationStructure(
		graphicsCmds,
		gfx.AccelerationStructureLevelTop,
		[]gfx.Geometry{geometry},
		[][]gfx.BuildRangeInfo{{buildRange}},
		[]uint32{instanceCount},
		"scene.tplas")
	if err != nil {
		return halarenderer.NewError("build top level acceleration structure failed", err)
	}
	out.TPlas = tlas
	return nil
}
