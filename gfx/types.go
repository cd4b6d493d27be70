package gfx

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc BufferUsage = 1 << iota
	BufferUsageTransferDst
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndex
	BufferUsageVertex
	BufferUsageShaderDeviceAddress
	BufferUsageAccelerationStructureBuildInput
)

type ImageUsage uint32

const (
	ImageUsageSampled ImageUsage = 1 << iota
	ImageUsageStorage
	ImageUsageTransferDst
)

type MemoryLocation uint32

const (
	MemoryLocationGpuOnly MemoryLocation = iota
	MemoryLocationCpuToGpu
)

type Format uint32

const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatR8G8Unorm
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatR16Unorm
	FormatR16G16Unorm
	FormatR16G16B16Unorm
	FormatR16G16B16A16Unorm
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
)

type Filter uint32

const (
	FilterNearest Filter = iota
	FilterLinear
)

type SamplerMipmapMode uint32

const (
	SamplerMipmapModeNearest SamplerMipmapMode = iota
	SamplerMipmapModeLinear
)

type SamplerAddressMode uint32

const (
	SamplerAddressModeRepeat SamplerAddressMode = iota
	SamplerAddressModeMirroredRepeat
	SamplerAddressModeClampToEdge
)

// PipelineStage names the stages that consume a resource after an upload.
type PipelineStage uint64

const (
	PipelineStageTransfer PipelineStage = 1 << iota
	PipelineStageVertexShader
	PipelineStageFragmentShader
	PipelineStageComputeShader
	PipelineStageTaskShader
	PipelineStageMeshShader
	PipelineStageRayTracingShader
)

type AccelerationStructureLevel uint32

const (
	AccelerationStructureLevelBottom AccelerationStructureLevel = iota
	AccelerationStructureLevelTop
)

type GeometryType uint32

const (
	GeometryTypeTriangles GeometryType = iota
	GeometryTypeAABBs
	GeometryTypeInstances
)

type GeometryFlags uint32

const (
	GeometryFlagsOpaque GeometryFlags = 1 << iota
	GeometryFlagsNoDuplicateAnyHit
)

type IndexType uint32

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

type InstanceFlags uint32

const (
	InstanceFlagsTriangleFacingCullDisable InstanceFlags = 1 << iota
	InstanceFlagsTriangleFlipFacing
	InstanceFlagsForceOpaque
)

// TrianglesData describes triangle geometry for a bottom-level build.
// Addresses come from Buffer.DeviceAddress.
type TrianglesData struct {
	VertexFormat      Format
	VertexDataAddress uint64
	VertexStride      uint64
	VertexCount       uint32
	IndexType         IndexType
	IndexDataAddress  uint64
}

// AABBsData describes procedural AABB geometry for a bottom-level build.
type AABBsData struct {
	DataAddress uint64
	Stride      uint64
}

// InstancesData describes the instance array for a top-level build.
type InstancesData struct {
	ArrayOfPointers bool
	DataAddress     uint64
}

// Geometry is a tagged union; exactly one of Triangles, AABBs or Instances
// is set, matching Type.
type Geometry struct {
	Type      GeometryType
	Flags     GeometryFlags
	Triangles *TrianglesData
	AABBs     *AABBsData
	Instances *InstancesData
}

type BuildRangeInfo struct {
	PrimitiveCount  uint32
	PrimitiveOffset uint32
	FirstVertex     uint32
	TransformOffset uint32
}

// SizeOfAABB is the byte size of one packed AABB record.
const SizeOfAABB = 24

// AABB is an axis-aligned box laid out as six consecutive floats, the shape
// acceleration-structure AABB geometry consumes.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (a *AABB) ToBytes() []byte {
	buf := make([]byte, SizeOfAABB)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(a.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(a.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(a.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(a.Max.X()))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(a.Max.Y()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(a.Max.Z()))
	return buf
}

// SizeOfInstance is the byte size of one packed Instance record.
const SizeOfInstance = 64

// Instance is one entry of a top-level instance array.
//
// Packed layout, 64 bytes:
//
//	transform    : f32[12]  row-major 3x4, translation in the last column
//	customIndex  : u24  |  mask : u8
//	sbtOffset    : u24  |  flags : u8
//	blasAddress  : u64
type Instance struct {
	Transform                    [12]float32
	CustomIndex                  uint32
	Mask                         uint8
	ShaderBindingTableOffset     uint32
	Flags                        InstanceFlags
	AccelerationStructureAddress uint64
}

func (in *Instance) ToBytes() []byte {
	buf := make([]byte, SizeOfInstance)
	for i, f := range in.Transform {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[48:52], in.CustomIndex&0x00ffffff|uint32(in.Mask)<<24)
	binary.LittleEndian.PutUint32(buf[52:56], in.ShaderBindingTableOffset&0x00ffffff|uint32(in.Flags)<<24)
	binary.LittleEndian.PutUint64(buf[56:64], in.AccelerationStructureAddress)
	return buf
}

// InstanceTransformFromMat4 converts a column-major 4x4 transform into the
// row-major 3x4 layout instance records use.
func InstanceTransformFromMat4(m mgl32.Mat4) [12]float32 {
	return [12]float32{
		m.At(0, 0), m.At(0, 1), m.At(0, 2), m.At(0, 3),
		m.At(1, 0), m.At(1, 1), m.At(1, 2), m.At(1, 3),
		m.At(2, 0), m.At(2, 1), m.At(2, 2), m.At(2, 3),
	}
}
