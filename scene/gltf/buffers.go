package gltf

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	halarenderer "github.com/zhing2006/hala-renderer"
)

const (
	glbMagic     = 0x46546c67
	glbChunkJSON = 0x4e4f534a
	glbChunkBin  = 0x004e4942
)

// splitGLB separates the JSON and binary chunks of a .glb container. The
// binary chunk may be absent.
func splitGLB(data []byte) (jsonChunk, binChunk []byte, err error) {
	if len(data) < 12 {
		return nil, nil, halarenderer.NewError("glb header truncated", nil)
	}
	if binary.LittleEndian.Uint32(data[0:4]) != glbMagic {
		return nil, nil, halarenderer.NewError("not a glb container", nil)
	}
	offset := 12
	for offset+8 <= len(data) {
		length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		kind := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8
		if offset+length > len(data) {
			return nil, nil, halarenderer.NewError("glb chunk truncated", nil)
		}
		chunk := data[offset : offset+length]
		switch kind {
		case glbChunkJSON:
			jsonChunk = chunk
		case glbChunkBin:
			binChunk = chunk
		}
		offset += length
	}
	if jsonChunk == nil {
		return nil, nil, halarenderer.NewError("glb has no JSON chunk", nil)
	}
	return jsonChunk, binChunk, nil
}

// resolveURI loads a buffer or image URI: either a base64 data URI or a
// file path relative to the document directory.
func resolveURI(baseDir, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		comma := strings.IndexByte(uri, ',')
		if comma < 0 {
			return nil, halarenderer.NewError("malformed data URI", nil)
		}
		if !strings.HasSuffix(uri[:comma], ";base64") {
			return nil, halarenderer.NewError("unsupported data URI encoding", nil)
		}
		data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
		if err != nil {
			return nil, halarenderer.NewError("decode data URI failed", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filepath.Join(baseDir, uri))
	if err != nil {
		return nil, halarenderer.NewError(fmt.Sprintf("read %q failed", uri), err)
	}
	return data, nil
}

// loadBuffers materializes every buffer. An empty URI refers to the glb
// binary chunk (only valid for buffer 0).
func loadBuffers(doc *document, baseDir string, binChunk []byte) ([][]byte, error) {
	buffers := make([][]byte, len(doc.Buffers))
	for i, buf := range doc.Buffers {
		if buf.URI == "" {
			if i != 0 || binChunk == nil {
				return nil, halarenderer.NewError(fmt.Sprintf("buffer %d has no URI and no binary chunk", i), nil)
			}
			buffers[i] = binChunk
			continue
		}
		data, err := resolveURI(baseDir, buf.URI)
		if err != nil {
			return nil, err
		}
		buffers[i] = data
	}
	return buffers, nil
}

// reader pulls typed element streams out of accessors.
type reader struct {
	doc     *document
	buffers [][]byte
}

func componentSize(componentType uint32) int {
	switch componentType {
	case componentByte, componentUnsignedByte:
		return 1
	case componentShort, componentUnsignedShort:
		return 2
	case componentUnsignedInt, componentFloat:
		return 4
	}
	return 0
}

func elementCount(accessorType string) int {
	switch accessorType {
	case "SCALAR":
		return 1
	case "VEC2":
		return 2
	case "VEC3":
		return 3
	case "VEC4":
		return 4
	}
	return 0
}

// view returns the accessor's backing bytes and the stride between
// elements. Sparse accessors and accessors without a view are not
// supported.
func (r *reader) view(index uint32) (data []byte, stride int, acc *docAccessor, err error) {
	if int(index) >= len(r.doc.Accessors) {
		return nil, 0, nil, halarenderer.NewError(fmt.Sprintf("accessor %d out of range", index), nil)
	}
	acc = &r.doc.Accessors[index]
	if acc.BufferView == nil {
		return nil, 0, nil, halarenderer.NewError(fmt.Sprintf("accessor %d has no buffer view", index), nil)
	}
	if int(*acc.BufferView) >= len(r.doc.BufferViews) {
		return nil, 0, nil, halarenderer.NewError(fmt.Sprintf("buffer view %d out of range", *acc.BufferView), nil)
	}
	bv := &r.doc.BufferViews[*acc.BufferView]
	if int(bv.Buffer) >= len(r.buffers) {
		return nil, 0, nil, halarenderer.NewError(fmt.Sprintf("buffer %d out of range", bv.Buffer), nil)
	}
	buffer := r.buffers[bv.Buffer]

	elemSize := componentSize(acc.ComponentType) * elementCount(acc.Type)
	if elemSize == 0 {
		return nil, 0, nil, halarenderer.NewError(fmt.Sprintf("accessor %d has unsupported layout %s/%d", index, acc.Type, acc.ComponentType), nil)
	}
	stride = elemSize
	if bv.ByteStride != nil && *bv.ByteStride != 0 {
		stride = int(*bv.ByteStride)
	}

	start := int(bv.ByteOffset) + int(acc.ByteOffset)
	need := start + stride*(int(acc.Count)-1) + elemSize
	if acc.Count == 0 {
		need = start
	}
	if need > len(buffer) {
		return nil, 0, nil, halarenderer.NewError(fmt.Sprintf("accessor %d overruns buffer %d", index, bv.Buffer), nil)
	}
	return buffer[start:], stride, acc, nil
}

func (r *reader) readFloats(index uint32, components int) ([]float32, error) {
	data, stride, acc, err := r.view(index)
	if err != nil {
		return nil, err
	}
	if elementCount(acc.Type) != components {
		return nil, halarenderer.NewError(fmt.Sprintf("accessor %d is %s, want %d components", index, acc.Type, components), nil)
	}

	out := make([]float32, 0, int(acc.Count)*components)
	for i := 0; i < int(acc.Count); i++ {
		base := i * stride
		for c := 0; c < components; c++ {
			switch acc.ComponentType {
			case componentFloat:
				bits := binary.LittleEndian.Uint32(data[base+c*4:])
				out = append(out, math.Float32frombits(bits))
			case componentUnsignedByte:
				out = append(out, float32(data[base+c])/255.0)
			case componentUnsignedShort:
				v := binary.LittleEndian.Uint16(data[base+c*2:])
				out = append(out, float32(v)/65535.0)
			default:
				return nil, halarenderer.NewError(fmt.Sprintf("accessor %d has unsupported component type %d", index, acc.ComponentType), nil)
			}
		}
	}
	return out, nil
}

func (r *reader) readIndices(index uint32) ([]uint32, error) {
	data, stride, acc, err := r.view(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != "SCALAR" {
		return nil, halarenderer.NewError(fmt.Sprintf("index accessor %d is %s, want SCALAR", index, acc.Type), nil)
	}

	out := make([]uint32, 0, acc.Count)
	for i := 0; i < int(acc.Count); i++ {
		base := i * stride
		switch acc.ComponentType {
		case componentUnsignedByte:
			out = append(out, uint32(data[base]))
		case componentUnsignedShort:
			out = append(out, uint32(binary.LittleEndian.Uint16(data[base:])))
		case componentUnsignedInt:
			out = append(out, binary.LittleEndian.Uint32(data[base:]))
		default:
			return nil, halarenderer.NewError(fmt.Sprintf("index accessor %d has unsupported component type %d", index, acc.ComponentType), nil)
		}
	}
	return out, nil
}
