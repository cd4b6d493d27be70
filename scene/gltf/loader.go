// Package gltf loads a subset of glTF 2.0 (.gltf and .glb) into the CPU
// scene model: node hierarchy, triangle meshes, physically-based materials,
// punctual lights (extended with quad and sphere area lights via extras),
// cameras, and PNG/JPEG textures.
package gltf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	halarenderer "github.com/zhing2006/hala-renderer"
	"github.com/zhing2006/hala-renderer/gfx"
	"github.com/zhing2006/hala-renderer/scene"
)

// Load parses the glTF file at path and returns the scene with node world
// transforms already derived. Only the first scene of a multi-scene file is
// loaded.
func Load(path string, logger halarenderer.Logger) (*scene.Scene, error) {
	if logger == nil {
		logger = halarenderer.NewNopLogger()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, halarenderer.NewError(fmt.Sprintf("load glTF file %q failed", path), err)
	}

	var binChunk []byte
	if strings.EqualFold(filepath.Ext(path), ".glb") {
		raw, binChunk, err = splitGLB(raw)
		if err != nil {
			return nil, halarenderer.NewError(fmt.Sprintf("load glTF file %q failed", path), err)
		}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, halarenderer.NewError(fmt.Sprintf("parse glTF file %q failed", path), err)
	}
	if len(doc.Scenes) == 0 {
		return nil, halarenderer.NewError(fmt.Sprintf("no scene in glTF file %q", path), nil)
	}
	if len(doc.Scenes) > 1 {
		logger.Warnf("More than one scene in glTF file %q. Only the first scene will be loaded.", path)
	}

	baseDir := filepath.Dir(path)
	buffers, err := loadBuffers(&doc, baseDir, binChunk)
	if err != nil {
		return nil, err
	}
	r := &reader{doc: &doc, buffers: buffers}

	sceneIndex := 0
	if doc.Scene != nil {
		sceneIndex = int(*doc.Scene)
	}
	if sceneIndex >= len(doc.Scenes) {
		sceneIndex = 0
	}

	out := &scene.Scene{
		TextureToImage: make(map[uint32]uint32),
		ImageToData:    make(map[uint32]uint32),
	}

	if err := loadNodes(&doc, &doc.Scenes[sceneIndex], out, logger); err != nil {
		return nil, err
	}

	for i := range doc.Meshes {
		mesh, err := loadMesh(r, &doc.Meshes[i], logger)
		if err != nil {
			return nil, err
		}
		out.Meshes = append(out.Meshes, mesh)
	}

	for i := range doc.Materials {
		material, err := loadMaterial(&doc.Materials[i], logger)
		if err != nil {
			return nil, err
		}
		out.Materials = append(out.Materials, material)
	}

	for index, texture := range doc.Textures {
		if texture.Source == nil {
			return nil, halarenderer.NewError(fmt.Sprintf("texture %d has no source image", index), nil)
		}
		out.TextureToImage[uint32(index)] = *texture.Source
	}
	for index := range doc.Images {
		data, err := loadImageData(r, &doc.Images[index], baseDir, logger)
		if err != nil {
			return nil, err
		}
		out.ImageToData[uint32(index)] = uint32(len(out.ImageData))
		out.ImageData = append(out.ImageData, data)
	}

	if doc.Extensions.LightsPunctual != nil {
		for i := range doc.Extensions.LightsPunctual.Lights {
			light, err := loadLight(&doc.Extensions.LightsPunctual.Lights[i], logger)
			if err != nil {
				return nil, err
			}
			out.Lights = append(out.Lights, light)
		}
	}

	for i := range doc.Cameras {
		camera, err := loadCamera(&doc.Cameras[i], logger)
		if err != nil {
			return nil, err
		}
		out.Cameras = append(out.Cameras, camera)
	}

	out.UpdateNodeHierarchies()
	return out, nil
}

// loadNodes flattens the scene graph breadth-first so every parent lands
// before its children, the order UpdateNodeHierarchies relies on.
func loadNodes(doc *document, root *docScene, out *scene.Scene, logger halarenderer.Logger) error {
	logger.Debugf("Loading scene %q.", nameOr(root.Name))

	type queued struct {
		parent uint32
		index  uint32
	}
	queue := make([]queued, 0, len(root.Nodes))
	for _, index := range root.Nodes {
		queue = append(queue, queued{parent: scene.NoIndex, index: index})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if int(item.index) >= len(doc.Nodes) {
			return halarenderer.NewError(fmt.Sprintf("node %d out of range", item.index), nil)
		}
		src := &doc.Nodes[item.index]

		node := scene.NewNode(nameOr(src.Name))
		node.Parent = item.parent
		node.LocalTransform = localTransform(src)
		if src.Mesh != nil {
			node.MeshIndex = *src.Mesh
		}
		if src.Camera != nil {
			node.CameraIndex = *src.Camera
		}
		if src.Extensions.LightsPunctual != nil {
			node.LightIndex = src.Extensions.LightsPunctual.Light
		}

		currentIndex := uint32(len(out.Nodes))
		out.Nodes = append(out.Nodes, node)
		for _, child := range src.Children {
			queue = append(queue, queued{parent: currentIndex, index: child})
		}
	}
	return nil
}

func localTransform(node *docNode) mgl32.Mat4 {
	if node.Matrix != nil {
		var m mgl32.Mat4
		copy(m[:], node.Matrix[:]) // both column-major
		return m
	}
	m := mgl32.Ident4()
	if node.Translation != nil {
		m = m.Mul4(mgl32.Translate3D(node.Translation[0], node.Translation[1], node.Translation[2]))
	}
	if node.Rotation != nil {
		q := mgl32.Quat{
			W: node.Rotation[3],
			V: mgl32.Vec3{node.Rotation[0], node.Rotation[1], node.Rotation[2]},
		}
		m = m.Mul4(q.Normalize().Mat4())
	}
	if node.Scale != nil {
		m = m.Mul4(mgl32.Scale3D(node.Scale[0], node.Scale[1], node.Scale[2]))
	}
	return m
}

func loadMesh(r *reader, docMesh *docMesh, logger halarenderer.Logger) (scene.Mesh, error) {
	meshName := nameOr(docMesh.Name)
	logger.Debugf("Loading mesh %q.", meshName)

	var mesh scene.Mesh
	for primIndex, prim := range docMesh.Primitives {
		logger.Debugf("Loading primitive %d from mesh %q.", primIndex, meshName)
		if prim.Mode != nil && *prim.Mode != 4 {
			return scene.Mesh{}, halarenderer.NewError(fmt.Sprintf("primitive %d of mesh %q is not a triangle list", primIndex, meshName), nil)
		}
		if prim.Indices == nil {
			return scene.Mesh{}, halarenderer.NewError(fmt.Sprintf("read indices from mesh %q failed", meshName), nil)
		}
		indices, err := r.readIndices(*prim.Indices)
		if err != nil {
			return scene.Mesh{}, err
		}

		positions, err := readAttribute(r, prim.Attributes, "POSITION", 3, meshName)
		if err != nil {
			return scene.Mesh{}, err
		}
		normals, err := readAttribute(r, prim.Attributes, "NORMAL", 3, meshName)
		if err != nil {
			return scene.Mesh{}, err
		}
		texCoords, err := readAttribute(r, prim.Attributes, "TEXCOORD_0", 2, meshName)
		if err != nil {
			return scene.Mesh{}, err
		}

		vertexCount := len(positions) / 3
		tangents, err := loadTangents(r, prim.Attributes, indices, positions, texCoords, vertexCount)
		if err != nil {
			return scene.Mesh{}, err
		}

		vertices := make([]scene.Vertex, vertexCount)
		for i := 0; i < vertexCount; i++ {
			vertices[i] = scene.Vertex{
				Position: mgl32.Vec3{positions[i*3], positions[i*3+1], positions[i*3+2]},
				Normal:   mgl32.Vec3{normals[i*3], normals[i*3+1], normals[i*3+2]},
				Tangent:  tangents[i],
				TexCoord: mgl32.Vec2{texCoords[i*2], texCoords[i*2+1]},
			}
		}

		materialIndex := scene.NoIndex
		if prim.Material != nil {
			materialIndex = *prim.Material
		}

		mesh.Primitives = append(mesh.Primitives, scene.Primitive{
			Indices:       indices,
			Vertices:      vertices,
			MaterialIndex: materialIndex,
		})
	}
	return mesh, nil
}

func readAttribute(r *reader, attributes map[string]uint32, name string, components int, meshName string) ([]float32, error) {
	accessor, ok := attributes[name]
	if !ok {
		return nil, halarenderer.NewError(fmt.Sprintf("read %s from mesh %q failed", strings.ToLower(name), meshName), nil)
	}
	return r.readFloats(accessor, components)
}

// loadTangents uses authored VEC4 tangents when present (xyz scaled by the
// handedness w, matching the shading model's expectation), otherwise
// derives one face tangent per triangle from positions and UVs.
func loadTangents(r *reader, attributes map[string]uint32, indices []uint32, positions, texCoords []float32, vertexCount int) ([]mgl32.Vec3, error) {
	if accessor, ok := attributes["TANGENT"]; ok {
		raw, err := r.readFloats(accessor, 4)
		if err != nil {
			return nil, err
		}
		tangents := make([]mgl32.Vec3, vertexCount)
		for i := 0; i < vertexCount && i*4+3 < len(raw); i++ {
			w := raw[i*4+3]
			tangents[i] = mgl32.Vec3{raw[i*4] / w, raw[i*4+1] / w, raw[i*4+2] / w}
		}
		return tangents, nil
	}

	tangents := make([]mgl32.Vec3, vertexCount)
	pos := func(i uint32) mgl32.Vec3 {
		return mgl32.Vec3{positions[i*3], positions[i*3+1], positions[i*3+2]}
	}
	uv := func(i uint32) mgl32.Vec2 {
		return mgl32.Vec2{texCoords[i*2], texCoords[i*2+1]}
	}
	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		deltaPos1 := pos(i1).Sub(pos(i0))
		deltaPos2 := pos(i2).Sub(pos(i0))
		deltaUV1 := uv(i1).Sub(uv(i0))
		deltaUV2 := uv(i2).Sub(uv(i0))

		invdet := 1.0 / (deltaUV1.X()*deltaUV2.Y() - deltaUV1.Y()*deltaUV2.X())
		tangent := deltaPos1.Mul(deltaUV2.Y()).Sub(deltaPos2.Mul(deltaUV1.Y())).Mul(invdet).Normalize()
		tangents[i0] = tangent
		tangents[i1] = tangent
		tangents[i2] = tangent
	}
	return tangents, nil
}

func loadMaterial(docMat *docMaterial, logger halarenderer.Logger) (scene.Material, error) {
	logger.Debugf("Loading material %q.", nameOr(docMat.Name))

	extras := defaultMaterialExtras()
	if len(docMat.Extras) > 0 {
		if err := json.Unmarshal(docMat.Extras, &extras); err != nil {
			return scene.Material{}, halarenderer.NewError("parse material extras failed", err)
		}
	}
	materialType, err := scene.MaterialTypeFromUint8(extras.Type)
	if err != nil {
		return scene.Material{}, err
	}
	mediumType, err := scene.MediumTypeFromUint8(extras.MediumType)
	if err != nil {
		return scene.Material{}, err
	}

	pbr := &docMat.PBRMetallicRoughness
	baseColor := mgl32.Vec3{1, 1, 1}
	if pbr.BaseColorFactor != nil {
		baseColor = mgl32.Vec3{pbr.BaseColorFactor[0], pbr.BaseColorFactor[1], pbr.BaseColorFactor[2]}
	}
	metallic := float32(1)
	if pbr.MetallicFactor != nil {
		metallic = *pbr.MetallicFactor
	}
	roughness := float32(1)
	if pbr.RoughnessFactor != nil {
		roughness = *pbr.RoughnessFactor
	}

	emission := mgl32.Vec3{}
	if docMat.EmissiveFactor != nil {
		emission = mgl32.Vec3{docMat.EmissiveFactor[0], docMat.EmissiveFactor[1], docMat.EmissiveFactor[2]}
	}
	if docMat.Extensions.EmissiveStrength != nil {
		emission = emission.Mul(docMat.Extensions.EmissiveStrength.EmissiveStrength)
	}

	specularTransmission := float32(0)
	if docMat.Extensions.Transmission != nil {
		specularTransmission = docMat.Extensions.Transmission.TransmissionFactor
	}
	ior := float32(1.5)
	if docMat.Extensions.IOR != nil {
		ior = docMat.Extensions.IOR.IOR
	}

	return scene.Material{
		Type:                 materialType,
		BaseColor:            baseColor,
		Opacity:              extras.Opacity,
		Emission:             emission,
		Anisotropic:          extras.Anisotropic,
		Metallic:             metallic,
		Roughness:            roughness,
		Subsurface:           extras.Subsurface,
		SpecularTint:         extras.SpecularTint,
		Sheen:                extras.Sheen,
		SheenTint:            extras.SheenTint,
		Clearcoat:            extras.Clearcoat,
		ClearcoatRoughness:   extras.ClearcoatRoughness,
		ClearcoatTint:        mgl32.Vec3{extras.ClearcoatTint[0], extras.ClearcoatTint[1], extras.ClearcoatTint[2]},
		SpecularTransmission: specularTransmission,
		IOR:                  ior,
		Medium: scene.Medium{
			Type:       mediumType,
			Color:      mgl32.Vec3{extras.MediumColor[0], extras.MediumColor[1], extras.MediumColor[2]},
			Density:    extras.MediumDensity,
			Anisotropy: extras.MediumAnisotropy,
		},
		BaseColorMapIndex:         texRefIndex(pbr.BaseColorTexture),
		EmissionMapIndex:          texRefIndex(docMat.EmissiveTexture),
		NormalMapIndex:            texRefIndex(docMat.NormalTexture),
		MetallicRoughnessMapIndex: texRefIndex(pbr.MetallicRoughnessTexture),
	}, nil
}

func texRefIndex(ref *docTexRef) uint32 {
	if ref == nil {
		return scene.NoIndex
	}
	return ref.Index
}

// loadImageData decodes a PNG/JPEG payload into tightly packed RGBA bytes.
// Three-channel sources widen to four; device formats have no 24-bit texel.
func loadImageData(r *reader, docImg *docImage, baseDir string, logger halarenderer.Logger) (scene.ImageData, error) {
	logger.Debugf("Loading image %q.", nameOr(docImg.Name))

	var payload []byte
	switch {
	case docImg.BufferView != nil:
		if int(*docImg.BufferView) >= len(r.doc.BufferViews) {
			return scene.ImageData{}, halarenderer.NewError(fmt.Sprintf("image buffer view %d out of range", *docImg.BufferView), nil)
		}
		bv := &r.doc.BufferViews[*docImg.BufferView]
		buffer := r.buffers[bv.Buffer]
		if int(bv.ByteOffset+bv.ByteLength) > len(buffer) {
			return scene.ImageData{}, halarenderer.NewError("image buffer view overruns buffer", nil)
		}
		payload = buffer[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
	case docImg.URI != "":
		data, err := resolveURI(baseDir, docImg.URI)
		if err != nil {
			return scene.ImageData{}, err
		}
		payload = data
	default:
		return scene.ImageData{}, halarenderer.NewError(fmt.Sprintf("image %q has no payload", nameOr(docImg.Name)), nil)
	}

	decoded, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return scene.ImageData{}, halarenderer.NewError(fmt.Sprintf("decode image %q failed", nameOr(docImg.Name)), err)
	}

	bounds := decoded.Bounds()
	rgba := image.NewNRGBA(bounds)
	draw.Draw(rgba, bounds, decoded, bounds.Min, draw.Src)

	return scene.ImageData{
		Format:   gfx.FormatR8G8B8A8Srgb,
		Width:    uint32(bounds.Dx()),
		Height:   uint32(bounds.Dy()),
		Bytes:    rgba.Pix,
		NumBytes: len(rgba.Pix),
	}, nil
}

func loadLight(docL *docLight, logger halarenderer.Logger) (scene.Light, error) {
	logger.Debugf("Loading light %q.", nameOr(docL.Name))

	color := mgl32.Vec3{1, 1, 1}
	if docL.Color != nil {
		color = mgl32.Vec3{docL.Color[0], docL.Color[1], docL.Color[2]}
	}
	intensity := float32(1)
	if docL.Intensity != nil {
		intensity = *docL.Intensity
	}

	var lightType scene.LightType
	var param0, param1 float32
	switch docL.Type {
	case "directional":
		lightType = scene.LightTypeDirectional
	case "point":
		lightType = scene.LightTypePoint
	case "spot":
		lightType = scene.LightTypeSpot
		if docL.Spot != nil {
			param0 = docL.Spot.InnerConeAngle
			param1 = float32(math.Pi / 4)
			if docL.Spot.OuterConeAngle != nil {
				param1 = *docL.Spot.OuterConeAngle
			}
		}
	default:
		return scene.Light{}, halarenderer.NewError(fmt.Sprintf("unknown light type %q", docL.Type), nil)
	}

	if len(docL.Extras) > 0 {
		var extras lightExtras
		if err := json.Unmarshal(docL.Extras, &extras); err != nil {
			return scene.Light{}, halarenderer.NewError("parse light extras failed", err)
		}
		switch extras.Type {
		case 1:
			lightType = scene.LightTypeQuad
		case 2:
			lightType = scene.LightTypeSphere
		}
		param0 = extras.Param0
		param1 = extras.Param1
	}

	// Authoring tools export edge angles in degrees through extras.
	switch lightType {
	case scene.LightTypeDirectional:
		param0 = mgl32.DegToRad(clamp(param0, 0, 90))
	case scene.LightTypeSpot:
		param0 = clamp(param0, 0, 90)
		param1 = clamp(param1, 0, 90)
		if param0 > param1 {
			param0, param1 = param1, param0
		}
	}

	return scene.Light{
		Color:     color,
		Intensity: intensity,
		Type:      lightType,
		Params:    [2]float32{param0, param1},
	}, nil
}

func loadCamera(docCam *docCamera, logger halarenderer.Logger) (scene.Camera, error) {
	logger.Debugf("Loading camera %q.", nameOr(docCam.Name))

	switch docCam.Type {
	case "orthographic":
		if docCam.Orthographic == nil {
			return nil, halarenderer.NewError("orthographic camera has no parameters", nil)
		}
		o := docCam.Orthographic
		return scene.NewOrthographicCamera(o.XMag, o.YMag, o.ZNear, o.ZFar), nil
	case "perspective":
		if docCam.Perspective == nil {
			return nil, halarenderer.NewError("perspective camera has no parameters", nil)
		}
		p := docCam.Perspective
		aspect := float32(1)
		if p.AspectRatio != nil {
			aspect = *p.AspectRatio
		}
		zfar := float32(1000)
		if p.ZFar != nil {
			zfar = *p.ZFar
		}
		extras := cameraExtras{FocalDist: 10}
		if len(docCam.Extras) > 0 {
			if err := json.Unmarshal(docCam.Extras, &extras); err != nil {
				return nil, halarenderer.NewError("parse camera extras failed", err)
			}
		}
		return scene.NewPerspectiveCamera(aspect, p.YFov, p.ZNear, zfar, extras.FocalDist, extras.Aperture), nil
	default:
		return nil, halarenderer.NewError(fmt.Sprintf("unknown camera type %q", docCam.Type), nil)
	}
}

func nameOr(name string) string {
	if name == "" {
		return "<Unnamed>"
	}
	return name
}

func clamp(v, lo, hi float32) float32 {
	return math32.Min(math32.Max(v, lo), hi)
}
