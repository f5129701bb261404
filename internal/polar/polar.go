// Package polar implements the conversions between (magnitude, angle) pairs and
// Cartesian points together with their local derivatives.
//
// Every conversion returns the 2×2 Jacobian of its outputs with respect to its
// inputs so callers can compose chain rules without recomputing trigonometry.
package polar

import "math"

// Vector is a Cartesian point.
type Vector struct {
	X, Y float64
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns s*v.
func (v Vector) Scale(s float64) Vector {
	return Vector{X: s * v.X, Y: s * v.Y}
}

// Dot returns the dot product of v and o.
func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Norm returns the Euclidean length of v.
func (v Vector) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Jacobian holds d(out_r)/d(in_c) at [r][c] for a map R² → R².
type Jacobian [2][2]float64

// Identity is the identity Jacobian.
var Identity = Jacobian{{1, 0}, {0, 1}}

// Mul returns j·k.
func (j Jacobian) Mul(k Jacobian) Jacobian {
	return Jacobian{
		{j[0][0]*k[0][0] + j[0][1]*k[1][0], j[0][0]*k[0][1] + j[0][1]*k[1][1]},
		{j[1][0]*k[0][0] + j[1][1]*k[1][0], j[1][0]*k[0][1] + j[1][1]*k[1][1]},
	}
}

// Apply returns j·v.
func (j Jacobian) Apply(v Vector) Vector {
	return Vector{
		X: j[0][0]*v.X + j[0][1]*v.Y,
		Y: j[1][0]*v.X + j[1][1]*v.Y,
	}
}

// Scale returns s*j.
func (j Jacobian) Scale(s float64) Jacobian {
	return Jacobian{{s * j[0][0], s * j[0][1]}, {s * j[1][0], s * j[1][1]}}
}

// Sub returns j - k.
func (j Jacobian) Sub(k Jacobian) Jacobian {
	return Jacobian{
		{j[0][0] - k[0][0], j[0][1] - k[0][1]},
		{j[1][0] - k[1][0], j[1][1] - k[1][1]},
	}
}

// Neg returns -j.
func (j Jacobian) Neg() Jacobian {
	return j.Scale(-1)
}

// Decode converts (magnitude, angle) to a Cartesian point.
// The Jacobian columns are (magnitude, angle), rows are (x, y).
func Decode(magnitude, angle float64) (Vector, Jacobian) {
	sin, cos := math.Sincos(angle)
	v := Vector{X: magnitude * cos, Y: magnitude * sin}
	j := Jacobian{
		{cos, -magnitude * sin},
		{sin, magnitude * cos},
	}
	return v, j
}

// Encode converts a Cartesian point back to (magnitude, angle).
// The angle comes from atan2 so every quadrant is resolved.
//
// The Jacobian rows are (magnitude, angle), columns are (x, y). Denominators
// are guarded with eps: dM/dx = x/(M+eps) and dA/dx = -y/(x²+y²+eps).
// The forward values are not guarded, so Encode(0, 0) is (0, 0).
func Encode(v Vector, eps float64) (magnitude, angle float64, j Jacobian) {
	sq := v.X*v.X + v.Y*v.Y
	magnitude = math.Sqrt(sq)
	angle = math.Atan2(v.Y, v.X)

	mDen := magnitude + eps
	aDen := sq + eps
	j = Jacobian{
		{v.X / mDen, v.Y / mDen},
		{-v.Y / aDen, v.X / aDen},
	}
	return magnitude, angle, j
}

// Rotation returns the rotation matrix for angle theta and its derivative
// with respect to theta.
func Rotation(theta float64) (rot, dRot Jacobian) {
	sin, cos := math.Sincos(theta)
	rot = Jacobian{{cos, -sin}, {sin, cos}}
	dRot = Jacobian{{-sin, -cos}, {cos, -sin}}
	return rot, dRot
}
