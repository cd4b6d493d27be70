// Package gfx declares the contract between the renderer layer and the
// underlying GPU library. The renderer only records work: it creates
// resources and issues staged copies and acceleration-structure builds into
// caller-supplied command streams. Submission, fencing and cross-queue
// synchronization stay with the caller.
package gfx

// CommandBuffers is an open command recording stream. The uploader never
// creates or submits one; it only records into streams handed to it.
type CommandBuffers interface {
	Label() string
}

// Device creates GPU resources. Every create call takes a debug name.
type Device interface {
	CreateBuffer(size uint64, usage BufferUsage, location MemoryLocation, name string) (Buffer, error)
	CreateImage2D(usage ImageUsage, format Format, width, height, mipLevels, layers uint32, location MemoryLocation, name string) (Image, error)
	CreateSampler(minFilter, magFilter Filter, mipmapMode SamplerMipmapMode, addressU, addressV, addressW SamplerAddressMode, name string) (Sampler, error)
	CreateAccelerationStructure(cmds CommandBuffers, level AccelerationStructureLevel, geometries []Geometry, buildRanges [][]BuildRangeInfo, maxPrimitiveCounts []uint32, name string) (AccelerationStructure, error)
}

// Buffer is a device buffer. Upload records a staged copy through a
// host-visible staging buffer into the given command stream; the staging
// buffer must be at least len(data) bytes.
type Buffer interface {
	Size() uint64
	DeviceAddress() uint64
	Upload(data []byte, staging Buffer, cmds CommandBuffers) error
	Destroy()
}

// Image is a device image. Upload records a staged copy of the whole
// subresource; stages names the pipeline stages that will sample the image
// after the copy.
type Image interface {
	Format() Format
	Upload(data []byte, stages PipelineStage, staging Buffer, cmds CommandBuffers) error
	Destroy()
}

type Sampler interface {
	Destroy()
}

// AccelerationStructure is a built BLAS or TLAS. Its device address is what
// instance records and descriptor writes reference.
type AccelerationStructure interface {
	DeviceAddress() uint64
	Destroy()
}
