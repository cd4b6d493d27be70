// Package gfxtest provides an in-memory gfx.Device for tests. It captures
// every created resource and every staged upload so tests can assert on what
// the uploader recorded without touching a real GPU.
package gfxtest

import (
	"fmt"

	"github.com/zhing2006/hala-renderer/gfx"
)

type CommandBuffers struct {
	Name string
}

func (c *CommandBuffers) Label() string { return c.Name }

type Device struct {
	Buffers    []*Buffer
	Images     []*Image
	Samplers   []*Sampler
	Structures []*AccelerationStructure

	// DestroyLog records resource names in destruction order.
	DestroyLog []string

	// BufferFailAfter makes CreateBuffer fail once this many buffers exist.
	// Negative disables the fault.
	BufferFailAfter int

	nextAddress uint64
}

func NewDevice() *Device {
	return &Device{
		BufferFailAfter: -1,
		nextAddress:     0x1000,
	}
}

// FindBuffer returns the first non-destroyed buffer with the given name.
func (d *Device) FindBuffer(name string) *Buffer {
	for _, b := range d.Buffers {
		if b.Name == name && !b.Destroyed {
			return b
		}
	}
	return nil
}

func (d *Device) CreateBuffer(size uint64, usage gfx.BufferUsage, location gfx.MemoryLocation, name string) (gfx.Buffer, error) {
	if d.BufferFailAfter >= 0 && len(d.Buffers) >= d.BufferFailAfter {
		return nil, fmt.Errorf("gfxtest: buffer budget exhausted creating %q", name)
	}
	b := &Buffer{
		device:   d,
		Name:     name,
		BufSize:  size,
		Usage:    usage,
		Location: location,
		address:  d.nextAddress,
	}
	d.nextAddress += 0x1000
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateImage2D(usage gfx.ImageUsage, format gfx.Format, width, height, mipLevels, layers uint32, location gfx.MemoryLocation, name string) (gfx.Image, error) {
	img := &Image{
		device:    d,
		Name:      name,
		Usage:     usage,
		ImgFormat: format,
		Width:     width,
		Height:    height,
		MipLevels: mipLevels,
		Layers:    layers,
	}
	d.Images = append(d.Images, img)
	return img, nil
}

func (d *Device) CreateSampler(minFilter, magFilter gfx.Filter, mipmapMode gfx.SamplerMipmapMode, addressU, addressV, addressW gfx.SamplerAddressMode, name string) (gfx.Sampler, error) {
	s := &Sampler{
		device:     d,
		Name:       name,
		MinFilter:  minFilter,
		MagFilter:  magFilter,
		MipmapMode: mipmapMode,
		AddressU:   addressU,
		AddressV:   addressV,
		AddressW:   addressW,
	}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreateAccelerationStructure(cmds gfx.CommandBuffers, level gfx.AccelerationStructureLevel, geometries []gfx.Geometry, buildRanges [][]gfx.BuildRangeInfo, maxPrimitiveCounts []uint32, name string) (gfx.AccelerationStructure, error) {
	if cmds == nil {
		return nil, fmt.Errorf("gfxtest: nil command buffers building %q", name)
	}
	if len(geometries) == 0 {
		return nil, fmt.Errorf("gfxtest: no geometry building %q", name)
	}
	as := &AccelerationStructure{
		device:             d,
		Name:               name,
		Level:              level,
		Geometries:         geometries,
		BuildRanges:        buildRanges,
		MaxPrimitiveCounts: maxPrimitiveCounts,
		address:            d.nextAddress,
	}
	d.nextAddress += 0x1000
	d.Structures = append(d.Structures, as)
	return as, nil
}

type Buffer struct {
	device    *Device
	Name      string
	BufSize   uint64
	Usage     gfx.BufferUsage
	Location  gfx.MemoryLocation
	Data      []byte
	Destroyed bool

	address uint64
}

func (b *Buffer) Size() uint64          { return b.BufSize }
func (b *Buffer) DeviceAddress() uint64 { return b.address }

func (b *Buffer) Upload(data []byte, staging gfx.Buffer, cmds gfx.CommandBuffers) error {
	if b.Destroyed {
		return fmt.Errorf("gfxtest: upload to destroyed buffer %q", b.Name)
	}
	if staging == nil {
		return fmt.Errorf("gfxtest: nil staging buffer uploading %q", b.Name)
	}
	if staging.Size() < uint64(len(data)) {
		return fmt.Errorf("gfxtest: staging buffer too small uploading %q: %d < %d", b.Name, staging.Size(), len(data))
	}
	if uint64(len(data)) > b.BufSize {
		return fmt.Errorf("gfxtest: upload overflows buffer %q: %d > %d", b.Name, len(data), b.BufSize)
	}
	if cmds == nil {
		return fmt.Errorf("gfxtest: nil command buffers uploading %q", b.Name)
	}
	b.Data = append([]byte(nil), data...)
	return nil
}

func (b *Buffer) Destroy() {
	if b.Destroyed {
		return
	}
	b.Destroyed = true
	b.device.DestroyLog = append(b.device.DestroyLog, b.Name)
}

type Image struct {
	device    *Device
	Name      string
	Usage     gfx.ImageUsage
	ImgFormat gfx.Format
	Width     uint32
	Height    uint32
	MipLevels uint32
	Layers    uint32
	Data      []byte
	Stages    gfx.PipelineStage
	Destroyed bool
}

func (i *Image) Format() gfx.Format { return i.ImgFormat }

func (i *Image) Upload(data []byte, stages gfx.PipelineStage, staging gfx.Buffer, cmds gfx.CommandBuffers) error {
	if staging == nil {
		return fmt.Errorf("gfxtest: nil staging buffer uploading image %q", i.Name)
	}
	if staging.Size() < uint64(len(data)) {
		return fmt.Errorf("gfxtest: staging buffer too small uploading image %q", i.Name)
	}
	i.Data = append([]byte(nil), data...)
	i.Stages = stages
	return nil
}

func (i *Image) Destroy() {
	if i.Destroyed {
		return
	}
	i.Destroyed = true
	i.device.DestroyLog = append(i.device.DestroyLog, i.Name)
}

type Sampler struct {
	device     *Device
	Name       string
	MinFilter  gfx.Filter
	MagFilter  gfx.Filter
	MipmapMode gfx.SamplerMipmapMode
	AddressU   gfx.SamplerAddressMode
	AddressV   gfx.SamplerAddressMode
	AddressW   gfx.SamplerAddressMode
	Destroyed  bool
}

func (s *Sampler) Destroy() {
	if s.Destroyed {
		return
	}
	s.Destroyed = true
	s.device.DestroyLog = append(s.device.DestroyLog, s.Name)
}

type AccelerationStructure struct {
	device             *Device
	Name               string
	Level              gfx.AccelerationStructureLevel
	Geometries         []gfx.Geometry
	BuildRanges        [][]gfx.BuildRangeInfo
	MaxPrimitiveCounts []uint32
	Destroyed          bool

	address uint64
}

func (a *AccelerationStructure) DeviceAddress() uint64 { return a.address }

func (a *AccelerationStructure) Destroy() {
	if a.Destroyed {
		return
	}
	a.Destroyed = true
	a.device.DestroyLog = append(a.device.DestroyLog, a.Name)
}
