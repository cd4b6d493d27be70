package scene

// Primitive owns one draw's worth of geometry. The meshlet arrays start
// empty and are appended in place by the meshlet builder; everything else is
// immutable once the loader returns.
type Primitive struct {
	Indices       []uint32
	Vertices      []Vertex
	MaterialIndex uint32

	Meshlets          []Meshlet
	MeshletVertices   []uint32 // meshlet-local to primitive-global vertex remap
	MeshletPrimitives []uint32 // one packed triangle (3 x u8 local indices) per word
}

// Mesh is a collection of primitives referenced together by a node.
type Mesh struct {
	Primitives []Primitive
}
