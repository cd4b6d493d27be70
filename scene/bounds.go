package scene

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Bounds is a center/extents axis-aligned box.
type Bounds struct {
	Center  mgl32.Vec3
	Extents mgl32.Vec3
}

func NewBounds(center, extents mgl32.Vec3) Bounds {
	return Bounds{Center: center, Extents: extents}
}

// BoundsOfPoints returns the tightest bounds covering all points. An empty
// slice yields a degenerate box at the origin.
func BoundsOfPoints(points []mgl32.Vec3) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{Center: points[0]}
	for _, p := range points[1:] {
		b.EncapsulatePoint(p)
	}
	return b
}

func (b *Bounds) Size() mgl32.Vec3 {
	return b.Extents.Mul(2)
}

func (b *Bounds) SetSize(size mgl32.Vec3) {
	b.Extents = size.Mul(0.5)
}

func (b *Bounds) Min() mgl32.Vec3 {
	return b.Center.Sub(b.Extents)
}

func (b *Bounds) Max() mgl32.Vec3 {
	return b.Center.Add(b.Extents)
}

func (b *Bounds) SetMinMax(min, max mgl32.Vec3) {
	b.Extents = max.Sub(min).Mul(0.5)
	b.Center = min.Add(b.Extents)
}

// EncapsulatePoint grows the bounds to include the given point.
func (b *Bounds) EncapsulatePoint(p mgl32.Vec3) {
	min := b.Min()
	max := b.Max()
	b.SetMinMax(
		mgl32.Vec3{
			math32.Min(min.X(), p.X()),
			math32.Min(min.Y(), p.Y()),
			math32.Min(min.Z(), p.Z()),
		},
		mgl32.Vec3{
			math32.Max(max.X(), p.X()),
			math32.Max(max.Y(), p.Y()),
			math32.Max(max.Z(), p.Z()),
		},
	)
}

// EncapsulateBounds grows the bounds to include another bounds.
func (b *Bounds) EncapsulateBounds(other Bounds) {
	b.EncapsulatePoint(other.Min())
	b.EncapsulatePoint(other.Max())
}

// Expand grows every side by half the given amount.
func (b *Bounds) Expand(amount float32) {
	half := amount * 0.5
	b.Extents = b.Extents.Add(mgl32.Vec3{half, half, half})
}

func (b *Bounds) ExpandBy(amounts mgl32.Vec3) {
	b.Extents = b.Extents.Add(amounts.Mul(0.5))
}

func (b *Bounds) Intersects(other Bounds) bool {
	min := b.Min()
	max := b.Max()
	otherMin := other.Min()
	otherMax := other.Max()
	return min.X() <= otherMax.X() && max.X() >= otherMin.X() &&
		min.Y() <= otherMax.Y() && max.Y() >= otherMin.Y() &&
		min.Z() <= otherMax.Z() && max.Z() >= otherMin.Z()
}
