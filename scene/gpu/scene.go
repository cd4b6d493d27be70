// Package gpu holds the device-resident scene model and the uploader that
// builds it from the CPU model.
package gpu

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zhing2006/hala-renderer/gfx"
)

// Scene is the device-resident mirror of a loaded scene. It exclusively
// owns every buffer, image, sampler and acceleration structure it holds;
// Destroy releases them all. The view/projection matrix slices are CPU-kept
// copies for per-frame matrix math without GPU read-back.
type Scene struct {
	CameraViewMatrices []mgl32.Mat4
	CameraProjMatrices []mgl32.Mat4

	Cameras    gfx.Buffer
	Lights     gfx.Buffer
	LightAABBs gfx.Buffer
	Materials  []gfx.Buffer

	MaterialTypes []uint32
	Textures      []uint32 // texture index -> position in Images
	Samplers      []gfx.Sampler
	Images        []gfx.Image
	Meshes        []Mesh

	// Set only when uploaded for ray tracing.
	Instances  gfx.Buffer
	TPlas      gfx.AccelerationStructure
	Primitives gfx.Buffer
	LightBTlas gfx.AccelerationStructure

	// CPU-kept copies of the uploaded light and primitive description
	// records.
	LightData     []Light
	PrimitiveData []MeshData
}

// Destroy releases every owned device resource in reverse-dependency order:
// acceleration structures drop before the buffers their builds referenced.
func (s *Scene) Destroy() {
	if s.TPlas != nil {
		s.TPlas.Destroy()
		s.TPlas = nil
	}
	if s.LightBTlas != nil {
		s.LightBTlas.Destroy()
		s.LightBTlas = nil
	}
	for i := range s.Meshes {
		for j := range s.Meshes[i].Primitives {
			prim := &s.Meshes[i].Primitives[j]
			if prim.BTlas != nil {
				prim.BTlas.Destroy()
				prim.BTlas = nil
			}
		}
	}

	if s.Instances != nil {
		s.Instances.Destroy()
		s.Instances = nil
	}
	if s.Primitives != nil {
		s.Primitives.Destroy()
		s.Primitives = nil
	}

	for i := range s.Meshes {
		for j := range s.Meshes[i].Primitives {
			prim := &s.Meshes[i].Primitives[j]
			if prim.MeshletPrimitiveBuffer != nil {
				prim.MeshletPrimitiveBuffer.Destroy()
			}
			if prim.MeshletVertexBuffer != nil {
				prim.MeshletVertexBuffer.Destroy()
			}
			if prim.MeshletBuffer != nil {
				prim.MeshletBuffer.Destroy()
			}
			prim.IndexBuffer.Destroy()
			prim.VertexBuffer.Destroy()
		}
	}
	s.Meshes = nil

	for _, img := range s.Images {
		img.Destroy()
	}
	s.Images = nil
	for _, sampler := range s.Samplers {
		sampler.Destroy()
	}
	s.Samplers = nil
	for _, mat := range s.Materials {
		mat.Destroy()
	}
	s.Materials = nil

	if s.LightAABBs != nil {
		s.LightAABBs.Destroy()
		s.LightAABBs = nil
	}
	if s.Lights != nil {
		s.Lights.Destroy()
		s.Lights = nil
	}
	if s.Cameras != nil {
		s.Cameras.Destroy()
		s.Cameras = nil
	}
}
