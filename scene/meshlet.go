package scene

import (
	"encoding/binary"
	"math"
)

// SizeOfMeshlet is the byte size of one packed meshlet record.
const SizeOfMeshlet = 64

// Meshlet is one cluster of a primitive's triangles, sized for task/mesh
// shader consumption. VertexOffset/VertexCount index the primitive's shared
// MeshletVertices remap array; TriangleOffset/TriangleCount index the shared
// MeshletPrimitives array of packed triangles (one u32 word per triangle).
//
// Packed layout, 64 bytes:
//
//	center.xyz, radius
//	coneApex.xyz, coneCutoff
//	coneAxis.xyz, vertexOffset
//	vertexCount, triangleOffset, triangleCount, pad
type Meshlet struct {
	Center     [3]float32
	Radius     float32
	ConeApex   [3]float32
	ConeCutoff float32
	ConeAxis   [3]float32

	VertexOffset   uint32
	VertexCount    uint32
	TriangleOffset uint32
	TriangleCount  uint32
}

func (m *Meshlet) ToBytes() []byte {
	buf := make([]byte, SizeOfMeshlet)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(m.Center[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(m.ConeApex[i]))
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(m.ConeAxis[i]))
	}
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(m.Radius))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(m.ConeCutoff))
	binary.LittleEndian.PutUint32(buf[44:], m.VertexOffset)
	binary.LittleEndian.PutUint32(buf[48:], m.VertexCount)
	binary.LittleEndian.PutUint32(buf[52:], m.TriangleOffset)
	binary.LittleEndian.PutUint32(buf[56:], m.TriangleCount)
	return buf
}
