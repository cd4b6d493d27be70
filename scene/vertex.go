package scene

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SizeOfVertex is the byte stride of one packed vertex.
const SizeOfVertex = 44

// Vertex is the interleaved vertex record shared by every primitive.
// Position comes first; acceleration-structure triangle geometry reads it
// as three 32-bit floats at stride SizeOfVertex.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Tangent  mgl32.Vec3
	TexCoord mgl32.Vec2
}

func putVec3(buf []byte, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z()))
}

// VerticesToBytes packs vertices into the device layout.
func VerticesToBytes(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*SizeOfVertex)
	for i, v := range vertices {
		o := i * SizeOfVertex
		putVec3(buf[o:], v.Position)
		putVec3(buf[o+12:], v.Normal)
		putVec3(buf[o+24:], v.Tangent)
		binary.LittleEndian.PutUint32(buf[o+36:o+40], math.Float32bits(v.TexCoord.X()))
		binary.LittleEndian.PutUint32(buf[o+40:o+44], math.Float32bits(v.TexCoord.Y()))
	}
	return buf
}

// IndicesToBytes packs a u32 triangle list into the device layout.
func IndicesToBytes(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], idx)
	}
	return buf
}
