package gpu

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zhing2006/hala-renderer/gfx"
)

// Primitive is the device-side mirror of one CPU primitive. The meshlet
// buffers are set only when the scene was uploaded for mesh shading, the
// BLAS only when uploaded for ray tracing.
type Primitive struct {
	VertexBuffer gfx.Buffer
	IndexBuffer  gfx.Buffer
	VertexCount  uint32
	IndexCount   uint32

	MaterialIndex uint32

	MeshletCount           uint32
	MeshletBuffer          gfx.Buffer
	MeshletVertexBuffer    gfx.Buffer
	MeshletPrimitiveBuffer gfx.Buffer

	BTlas gfx.AccelerationStructure
}

// Mesh is the device-side mirror of one CPU mesh. Transform is the world
// transform of the (single) node referencing it.
type Mesh struct {
	Transform  mgl32.Mat4
	Primitives []Primitive
}

// SizeOfMeshData is the byte size of one packed per-instance primitive
// description.
const SizeOfMeshData = 96

// MeshData describes one mesh instance to ray-tracing shaders: the world
// transform, the material, and the vertex/index buffer device addresses for
// bindless fetches.
//
// Packed layout, 96 bytes:
//
//	transform: f32[16] column-major
//	materialIndex, pad
//	vertices: u64 device address
//	indices:  u64 device address
//	pad, pad
type MeshData struct {
	Transform     mgl32.Mat4
	MaterialIndex uint32
	Vertices      uint64
	Indices       uint64
}

func (d *MeshData) ToBytes() []byte {
	buf := make([]byte, SizeOfMeshData)
	putMat4(buf[0:], d.Transform)
	binary.LittleEndian.PutUint32(buf[64:], d.MaterialIndex)
	binary.LittleEndian.PutUint64(buf[72:], d.Vertices)
	binary.LittleEndian.PutUint64(buf[80:], d.Indices)
	return buf
}
