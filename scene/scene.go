// Package scene holds the CPU-side scene model: the plain data a loader
// produces and the GPU uploader consumes.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Scene owns every node, mesh, material, light, camera and image payload of
// one loaded scene. It is read-only for the uploader, except that the
// meshlet builder appends derived meshlet arrays to primitives in place.
//
// TextureToImage maps texture indices to image indices; ImageToData maps
// image indices to positions in ImageData. Iteration over them must be in
// ascending key order to stay deterministic.
type Scene struct {
	Nodes          []Node
	Meshes         []Mesh
	Materials      []Material
	TextureToImage map[uint32]uint32
	ImageToData    map[uint32]uint32
	ImageData      []ImageData
	Lights         []Light
	Cameras        []Camera
}

// UpdateNodeHierarchies fills every node's children list and derives world
// transforms top-down. It relies on the loader invariant that a parent
// always appears before its children in Nodes.
func (s *Scene) UpdateNodeHierarchies() {
	children := make([][]uint32, len(s.Nodes))
	worldTransforms := make([]mgl32.Mat4, len(s.Nodes))
	for idx := range s.Nodes {
		node := &s.Nodes[idx]
		if node.Parent != NoIndex {
			children[node.Parent] = append(children[node.Parent], uint32(idx))
			worldTransforms[idx] = worldTransforms[node.Parent].Mul4(node.LocalTransform)
		} else {
			worldTransforms[idx] = node.LocalTransform
		}
	}
	for idx := range s.Nodes {
		s.Nodes[idx].Children = children[idx]
		s.Nodes[idx].WorldTransform = worldTransforms[idx]
	}
}

// HasLight reports whether the scene contains any light source.
func (s *Scene) HasLight() bool {
	return len(s.Lights) > 0
}

// HasMedium reports whether any material carries a participating medium.
func (s *Scene) HasMedium() bool {
	for i := range s.Materials {
		if s.Materials[i].Medium.Type != MediumTypeNone {
			return true
		}
	}
	return false
}

// HasMediumWith reports whether any material carries a medium of the given
// type.
func (s *Scene) HasMediumWith(mediumType MediumType) bool {
	for i := range s.Materials {
		if s.Materials[i].Medium.Type == mediumType {
			return true
		}
	}
	return false
}

// HasTransparent reports whether any material is not fully opaque.
func (s *Scene) HasTransparent() bool {
	for i := range s.Materials {
		if s.Materials[i].Opacity < 1.0-1e-6 {
			return true
		}
	}
	return false
}
