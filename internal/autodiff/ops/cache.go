package ops

import (
	"fmt"

	"github.com/born-ml/polargrad/internal/checkpoint"
	"github.com/born-ml/polargrad/internal/polar"
)

// PolarPartial is the derivative with respect to one polar vector.
type PolarPartial struct {
	Magnitude float64
	Angle     float64
}

// Partials holds the derivatives of one result component with respect to the
// polar components of both source vectors and the weight.
// The same record doubles as a gradient contribution in backward.
type Partials struct {
	InputMagnitude float64
	InputAngle     float64
	OtherMagnitude float64 // Second vector or pivot.
	OtherAngle     float64
	Weight         float64

	// Pivots holds one partial per pivot of a multi-pivot operation, which
	// leaves the Other fields zero. Nil for two-vector operations.
	Pivots []PolarPartial
}

// ElementDerivatives is the per-element derivative cache record filled during
// forward and read during backward.
type ElementDerivatives struct {
	Magnitude Partials // d(result magnitude)/d(...)
	Angle     Partials // d(result angle)/d(...)
}

// backprop turns output gradients (gm, ga) into contributions for each source.
func (d *ElementDerivatives) backprop(gm, ga float64) Partials {
	return Partials{
		InputMagnitude: gm*d.Magnitude.InputMagnitude + ga*d.Angle.InputMagnitude,
		InputAngle:     gm*d.Magnitude.InputAngle + ga*d.Angle.InputAngle,
		OtherMagnitude: gm*d.Magnitude.OtherMagnitude + ga*d.Angle.OtherMagnitude,
		OtherAngle:     gm*d.Magnitude.OtherAngle + ga*d.Angle.OtherAngle,
		Weight:         gm*d.Magnitude.Weight + ga*d.Angle.Weight,
	}
}

// pivot is backprop for pivot k of a multi-pivot operation.
func (d *ElementDerivatives) pivot(k int, gm, ga float64) (float64, float64) {
	m, a := d.Magnitude.Pivots[k], d.Angle.Pivots[k]
	return gm*m.Magnitude + ga*a.Magnitude, gm*m.Angle + ga*a.Angle
}

// combination is a Cartesian result built from two source vectors and a
// weight, with its local Jacobians.
type combination struct {
	result  polar.Vector
	dInput  polar.Jacobian   // d(result)/d(input x, y)
	dOther  polar.Jacobian   // d(result)/d(other x, y)
	dPivots []polar.Jacobian // d(result)/d(pivot k x, y), multi-pivot only
	dWeight polar.Vector     // d(result)/d(weight)
	scale   float64          // Multiplies the result magnitude.
	dScale  float64          // d(scale)/d(weight)
}

// combiner builds a combination from decoded inputs.
type combiner func(v, o polar.Vector, w float64) combination

// encode reconverts the combination to polar and chains every partial back to
// the polar components of the sources. decIn and decOther are the Jacobians of
// the decode step of each source.
func (c combination) encode(decIn, decOther polar.Jacobian, eps float64) (float64, float64, ElementDerivatives) {
	magnitude, angle, enc := polar.Encode(c.result, eps)
	return magnitude * c.scale, angle, c.derivatives(enc, magnitude, decIn, decOther)
}

// encodePivots is encode for a combination of the input with several pivots.
// decPivots holds the decode Jacobian of every pivot, in dPivots order.
func (c combination) encodePivots(decIn polar.Jacobian, decPivots []polar.Jacobian, eps float64) (float64, float64, ElementDerivatives) {
	magnitude, angle, enc := polar.Encode(c.result, eps)
	d := c.derivatives(enc, magnitude, decIn, polar.Jacobian{})

	d.Magnitude.Pivots = make([]PolarPartial, len(decPivots))
	d.Angle.Pivots = make([]PolarPartial, len(decPivots))
	for k, dec := range decPivots {
		p := enc.Mul(c.dPivots[k]).Mul(dec)
		d.Magnitude.Pivots[k] = PolarPartial{Magnitude: c.scale * p[0][0], Angle: c.scale * p[0][1]}
		d.Angle.Pivots[k] = PolarPartial{Magnitude: p[1][0], Angle: p[1][1]}
	}
	return magnitude * c.scale, angle, d
}

// derivatives chains the combination's Jacobians through the encode Jacobian
// enc of the unscaled result magnitude.
func (c combination) derivatives(enc polar.Jacobian, magnitude float64, decIn, decOther polar.Jacobian) ElementDerivatives {
	in := enc.Mul(c.dInput).Mul(decIn)
	other := enc.Mul(c.dOther).Mul(decOther)
	w := enc.Apply(c.dWeight)

	return ElementDerivatives{
		Magnitude: Partials{
			InputMagnitude: c.scale * in[0][0],
			InputAngle:     c.scale * in[0][1],
			OtherMagnitude: c.scale * other[0][0],
			OtherAngle:     c.scale * other[0][1],
			Weight:         c.scale*w.X + magnitude*c.dScale,
		},
		Angle: Partials{
			InputMagnitude: in[1][0],
			InputAngle:     in[1][1],
			OtherMagnitude: other[1][0],
			OtherAngle:     other[1][1],
			Weight:         w.Y,
		},
	}
}

// retained keeps an operation's forward state between forward and backward
// and implements Checkpointer for it.
type retained[S any] struct {
	state *S
}

// keep replaces the retained state.
func (r *retained[S]) keep(s *S) {
	r.state = s
}

// current returns the retained state or ErrNoForward.
func (r *retained[S]) current(name string) (*S, error) {
	if r.state == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoForward)
	}
	return r.state, nil
}

// Store moves the retained state into arena.
func (r *retained[S]) Store(arena *checkpoint.Arena) (checkpoint.Handle, error) {
	if r.state == nil {
		return 0, fmt.Errorf("store: %w", ErrNoForward)
	}
	h := arena.Put(r.state)
	r.state = nil
	return h, nil
}

// Restore reinstates the state stored under h.
func (r *retained[S]) Restore(arena *checkpoint.Arena, h checkpoint.Handle) error {
	v, err := arena.Get(h)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s, ok := v.(*S)
	if !ok {
		return fmt.Errorf("restore: %T: %w", v, ErrCheckpointType)
	}
	r.state = s
	return nil
}
