// Package meshlet clusters a primitive's triangle list into meshlets for
// task/mesh shader pipelines. Each meshlet keeps a bounding sphere and a
// backface-culling cone alongside offsets into the primitive's shared
// vertex-remap and packed-triangle arrays.
package meshlet

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	halarenderer "github.com/zhing2006/hala-renderer"
	"github.com/zhing2006/hala-renderer/scene"
)

const (
	// MaxVertices and MaxTriangles bound one meshlet.
	MaxVertices  = 64
	MaxTriangles = 124
	// ConeWeight trades cluster count against cone-culling efficiency. A
	// meshlet is closed early rather than accept a triangle facing more
	// than this far away from the cluster's mean normal.
	ConeWeight = 0.5
)

// Build partitions prim's triangle list into meshlets, appending to the
// primitive's Meshlets, MeshletVertices and MeshletPrimitives arrays. Every
// input triangle lands in exactly one meshlet, in input order.
func Build(prim *scene.Primitive) error {
	if len(prim.Indices)%3 != 0 {
		return halarenderer.NewError("index count is not a multiple of 3", nil)
	}
	for _, idx := range prim.Indices {
		if idx >= uint32(len(prim.Vertices)) {
			return halarenderer.NewError("vertex index out of range", nil)
		}
	}

	b := builder{prim: prim, local: make(map[uint32]uint8, MaxVertices)}
	for tri := 0; tri+2 < len(prim.Indices); tri += 3 {
		b.addTriangle(prim.Indices[tri], prim.Indices[tri+1], prim.Indices[tri+2])
	}
	b.flush()
	return nil
}

type builder struct {
	prim *scene.Primitive

	local     map[uint32]uint8 // global vertex index -> meshlet-local index
	vertices  []uint32         // global indices, meshlet-local order
	triangles []uint32         // packed 3x8-bit local triangles
	normalSum mgl32.Vec3
	normals   []mgl32.Vec3
}

func (b *builder) addTriangle(i0, i1, i2 uint32) {
	newVertices := 0
	for _, idx := range [3]uint32{i0, i1, i2} {
		if _, ok := b.local[idx]; !ok {
			newVertices++
		}
	}
	if len(b.local)+newVertices > MaxVertices || len(b.triangles)+1 > MaxTriangles {
		b.flush()
	}

	n := b.triangleNormal(i0, i1, i2)
	if len(b.triangles) > 0 && n.Len() > 0 {
		axis := b.normalSum
		if axis.Len() > 0 && axis.Normalize().Dot(n) < -ConeWeight {
			// Opposite-facing triangle; keep the cone tight.
			b.flush()
		}
	}

	var locals [3]uint8
	for i, idx := range [3]uint32{i0, i1, i2} {
		l, ok := b.local[idx]
		if !ok {
			l = uint8(len(b.vertices))
			b.local[idx] = l
			b.vertices = append(b.vertices, idx)
		}
		locals[i] = l
	}
	b.triangles = append(b.triangles, uint32(locals[0])|uint32(locals[1])<<8|uint32(locals[2])<<16)
	b.normalSum = b.normalSum.Add(n)
	b.normals = append(b.normals, n)
}

func (b *builder) triangleNormal(i0, i1, i2 uint32) mgl32.Vec3 {
	p0 := b.prim.Vertices[i0].Position
	p1 := b.prim.Vertices[i1].Position
	p2 := b.prim.Vertices[i2].Position
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Len() == 0 {
		return mgl32.Vec3{}
	}
	return n.Normalize()
}

func (b *builder) flush() {
	if len(b.triangles) == 0 {
		return
	}

	positions := make([]mgl32.Vec3, len(b.vertices))
	for i, idx := range b.vertices {
		positions[i] = b.prim.Vertices[idx].Position
	}
	bounds := scene.BoundsOfPoints(positions)
	center := bounds.Center
	radius := float32(0)
	for _, p := range positions {
		radius = math32.Max(radius, p.Sub(center).Len())
	}

	axis, cutoff := b.cone()

	prim := b.prim
	m := scene.Meshlet{
		Center:         [3]float32{center.X(), center.Y(), center.Z()},
		Radius:         radius,
		ConeApex:       [3]float32{center.X(), center.Y(), center.Z()},
		ConeCutoff:     cutoff,
		ConeAxis:       [3]float32{axis.X(), axis.Y(), axis.Z()},
		VertexOffset:   uint32(len(prim.MeshletVertices)),
		VertexCount:    uint32(len(b.vertices)),
		TriangleOffset: uint32(len(prim.MeshletPrimitives)),
		TriangleCount:  uint32(len(b.triangles)),
	}
	// Triangle words are 4 bytes each, so byte offsets stay 4-aligned.
	prim.Meshlets = append(prim.Meshlets, m)
	prim.MeshletVertices = append(prim.MeshletVertices, b.vertices...)
	prim.MeshletPrimitives = append(prim.MeshletPrimitives, b.triangles...)

	b.local = make(map[uint32]uint8, MaxVertices)
	b.vertices = b.vertices[:0]
	b.triangles = b.triangles[:0]
	b.normalSum = mgl32.Vec3{}
	b.normals = b.normals[:0]
}

// cone derives the culling cone: axis is the mean triangle normal, cutoff
// the spread term. The shader culls a meshlet when every triangle faces
// away, i.e. dot(axis, -view) >= cutoff. A cutoff of 1 disables culling.
func (b *builder) cone() (mgl32.Vec3, float32) {
	if b.normalSum.Len() == 0 {
		return mgl32.Vec3{0, 0, 1}, 1
	}
	axis := b.normalSum.Normalize()
	minDot := float32(1)
	for _, n := range b.normals {
		if n.Len() == 0 {
			continue
		}
		minDot = math32.Min(minDot, axis.Dot(n))
	}
	if minDot <= 0 {
		return axis, 1
	}
	return axis, math32.Sqrt(1 - minDot*minDot)
}
