package geom

import "math"

// ColumnScale is the multiplier applied to X when hashing a column.
const ColumnScale = 65536

// Vec3 is an integer block coordinate.
type Vec3 struct{ X, Y, Z int }

var (
	Up   = Vec3{Y: 1}
	Down = Vec3{Y: -1}
)

func FromArray(a [3]int) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3) Offset(dx, dy, dz int) Vec3 { return Vec3{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz} }

// DistanceTo is the euclidean distance between block coordinates.
func (v Vec3) DistanceTo(o Vec3) float64 {
	return math.Sqrt(float64(v.DistanceSq(o)))
}

func (v Vec3) DistanceSq(o Vec3) int {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

// Column identifies a vertical column, ignoring elevation.
type Column int64

func ColumnOf(v Vec3) Column {
	return Column(int64(v.X)*ColumnScale + int64(v.Z))
}

// ColumnSet is a set of column hashes. The zero value is empty and ready to use
// for reads; Add allocates on first use.
type ColumnSet struct {
	m map[Column]struct{}
}

func (s *ColumnSet) Add(v Vec3) {
	if s.m == nil {
		s.m = map[Column]struct{}{}
	}
	s.m[ColumnOf(v)] = struct{}{}
}

func (s *ColumnSet) Has(v Vec3) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m[ColumnOf(v)]
	return ok
}

func (s *ColumnSet) Len() int { return len(s.m) }

func (s *ColumnSet) Clear() { s.m = nil }
