package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// NoIndex marks an absent mesh/camera/light/parent reference on a node and
// an absent texture map on a material.
const NoIndex = ^uint32(0)

// Node is one element of the scene hierarchy. WorldTransform is derived by
// Scene.UpdateNodeHierarchies; until then it equals the identity.
type Node struct {
	Name           string
	Parent         uint32
	Children       []uint32
	LocalTransform mgl32.Mat4
	WorldTransform mgl32.Mat4

	MeshIndex   uint32
	CameraIndex uint32
	LightIndex  uint32
}

func NewNode(name string) Node {
	return Node{
		Name:           name,
		Parent:         NoIndex,
		LocalTransform: mgl32.Ident4(),
		WorldTransform: mgl32.Ident4(),
		MeshIndex:      NoIndex,
		CameraIndex:    NoIndex,
		LightIndex:     NoIndex,
	}
}
