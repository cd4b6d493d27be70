package scene

import (
	"encoding/binary"
	"math"

	"github.com/zhing2006/hala-renderer/gfx"
)

// ImageData is one decoded image payload. Exactly one of Bytes or Floats is
// set, depending on Format. NumBytes is the staged upload size.
type ImageData struct {
	Format   gfx.Format
	Width    uint32
	Height   uint32
	Bytes    []byte
	Floats   []float32
	NumBytes int
}

// Payload returns the raw bytes to stage, converting float texels to their
// little-endian bit patterns.
func (d *ImageData) Payload() []byte {
	if d.Floats != nil {
		buf := make([]byte, len(d.Floats)*4)
		for i, f := range d.Floats {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		return buf
	}
	return d.Bytes
}
