package spatial

import (
	"math"

	"github.com/golang/geo/r3"
)

// GlobalExtent is the half size of the box used by objects that are present
// everywhere, such as the scene root.
const GlobalExtent = 1e10

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func InRangeWithEpsilon(value float64, min float64, max float64, epsilon float64) bool {
	return value+epsilon >= min && value-epsilon <= max
}

// Box is an axis aligned bounding box in world space.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBox returns the box spanning the two given corners, in any order.
func NewBox(a r3.Vector, b r3.Vector) Box {
	return Box{
		Min: r3.Vector{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)},
		Max: r3.Vector{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)},
	}
}

// NewBoxFromCenter builds a box from its center and half extents.
func NewBoxFromCenter(center r3.Vector, extents r3.Vector) Box {
	extents = extents.Abs()
	return Box{
		Min: center.Sub(extents),
		Max: center.Add(extents),
	}
}

// GlobalBox returns a box that overlaps every finite object of the world.
func GlobalBox() Box {
	return Box{
		Min: r3.Vector{X: -GlobalExtent, Y: -GlobalExtent, Z: -GlobalExtent},
		Max: r3.Vector{X: GlobalExtent, Y: GlobalExtent, Z: GlobalExtent},
	}
}

func (b Box) IsValid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// IsGlobal reports whether the box reaches the global extent on any axis.
func (b Box) IsGlobal() bool {
	return b.Min.X <= -GlobalExtent || b.Min.Y <= -GlobalExtent || b.Min.Z <= -GlobalExtent ||
		b.Max.X >= GlobalExtent || b.Max.Y >= GlobalExtent || b.Max.Z >= GlobalExtent
}

func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Extents returns the half extents of the box.
func (b Box) Extents() r3.Vector {
	return b.Max.Sub(b.Min).Mul(0.5)
}

// IsOverlapped reports whether the two boxes share at least one point.
// Touching faces count as an overlap.
func (b Box) IsOverlapped(o Box) bool {
	if o.Min.X > b.Max.X || o.Min.Y > b.Max.Y || o.Min.Z > b.Max.Z {
		return false
	}
	if o.Max.X < b.Min.X || o.Max.Y < b.Min.Y || o.Max.Z < b.Min.Z {
		return false
	}
	return true
}

// IsContained reports whether o lies entirely inside b.
func (b Box) IsContained(o Box) bool {
	return o.Min.X >= b.Min.X && o.Min.Y >= b.Min.Y && o.Min.Z >= b.Min.Z &&
		o.Max.X <= b.Max.X && o.Max.Y <= b.Max.Y && o.Max.Z <= b.Max.Z
}

// ContainsPoint uses half open ranges: min is inside, max is not.
func (b Box) ContainsPoint(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// ClosestPoint returns the point of the box closest to p.
func (b Box) ClosestPoint(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: clamp(p.X, b.Min.X, b.Max.X),
		Y: clamp(p.Y, b.Min.Y, b.Max.Y),
		Z: clamp(p.Z, b.Min.Z, b.Max.Z),
	}
}

// Intersect returns the overlapping part of both boxes. The result is not
// valid when the boxes do not overlap.
func (b Box) Intersect(o Box) Box {
	return Box{
		Min: r3.Vector{X: math.Max(b.Min.X, o.Min.X), Y: math.Max(b.Min.Y, o.Min.Y), Z: math.Max(b.Min.Z, o.Min.Z)},
		Max: r3.Vector{X: math.Min(b.Max.X, o.Max.X), Y: math.Min(b.Max.Y, o.Max.Y), Z: math.Min(b.Max.Z, o.Max.Z)},
	}
}

func (b Box) Translate(d r3.Vector) Box {
	return Box{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Expand grows the box by d on every side.
func (b Box) Expand(d float64) Box {
	v := r3.Vector{X: d, Y: d, Z: d}
	return Box{Min: b.Min.Sub(v), Max: b.Max.Add(v)}
}

// BoundingSphere returns the smallest sphere enclosing the box.
func (b Box) BoundingSphere() Sphere {
	return Sphere{
		Center: b.Center(),
		Radius: b.Extents().Norm(),
	}
}

func (b Box) Equal(o Box) bool {
	return b.Min == o.Min && b.Max == o.Max
}

// Sphere is a world space bounding sphere.
type Sphere struct {
	Center r3.Vector
	Radius float64
}

// Plane is defined by a point and a unit normal.
type Plane struct {
	Point  r3.Vector
	Normal r3.Vector
}

func NewPlane(point r3.Vector, normal r3.Vector) Plane {
	return Plane{
		Point:  point,
		Normal: normal.Normalize(),
	}
}

// Distance returns the signed distance from p to the plane. Positive values
// are on the side the normal points to.
func (pl Plane) Distance(p r3.Vector) float64 {
	return p.Sub(pl.Point).Dot(pl.Normal)
}

// Reflect mirrors p across the plane.
func (pl Plane) Reflect(p r3.Vector) r3.Vector {
	return p.Sub(pl.Normal.Mul(2 * pl.Distance(p)))
}

func clamp(v float64, min float64, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
