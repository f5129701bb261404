package ops

import "github.com/born-ml/polargrad/internal/polar"

// addVectors combines v + o and scales the magnitude by w.
func addVectors(v, o polar.Vector, w float64) combination {
	return combination{
		result: v.Add(o),
		dInput: polar.Identity,
		dOther: polar.Identity,
		scale:  w,
		dScale: 1,
	}
}

// selectDelta picks o - v for positive weights and v - o otherwise, and scales
// the magnitude by w².
func selectDelta(v, o polar.Vector, w float64) combination {
	c := combination{scale: w * w, dScale: 2 * w}
	if w > 0 {
		c.result = o.Sub(v)
		c.dInput = polar.Identity.Neg()
		c.dOther = polar.Identity
	} else {
		c.result = v.Sub(o)
		c.dInput = polar.Identity
		c.dOther = polar.Identity.Neg()
	}
	return c
}

// rotateAbout rotates v about the pivot o by w radians.
func rotateAbout(v, o polar.Vector, w float64) combination {
	rot, dRot := polar.Rotation(w)
	offset := v.Sub(o)
	return combination{
		result:  o.Add(rot.Apply(offset)),
		dInput:  rot,
		dOther:  polar.Identity.Sub(rot),
		dWeight: dRot.Apply(offset),
		scale:   1,
	}
}

// projection returns the projection of v onto the pivot p and its Jacobians.
// The pivot norm is guarded with eps.
func projection(v, p polar.Vector, eps float64) (polar.Vector, polar.Jacobian, polar.Jacobian) {
	den := p.Dot(p) + eps
	dot := v.Dot(p)
	s := dot / den

	dsdpx := v.X/den - 2*p.X*dot/(den*den)
	dsdpy := v.Y/den - 2*p.Y*dot/(den*den)

	dv := polar.Jacobian{
		{p.X * p.X / den, p.X * p.Y / den},
		{p.Y * p.X / den, p.Y * p.Y / den},
	}
	dp := polar.Jacobian{
		{s + p.X*dsdpx, p.X * dsdpy},
		{p.Y * dsdpx, s + p.Y*dsdpy},
	}
	return p.Scale(s), dv, dp
}

// projectOnto is the projection slot of a decomposition.
func projectOnto(eps float64) combiner {
	return func(v, p polar.Vector, _ float64) combination {
		proj, dv, dp := projection(v, p, eps)
		return combination{result: proj, dInput: dv, dOther: dp, scale: 1}
	}
}

// rejectFrom is the rejection slot of a decomposition: v minus its projection.
func rejectFrom(eps float64) combiner {
	return func(v, p polar.Vector, _ float64) combination {
		proj, dv, dp := projection(v, p, eps)
		return combination{
			result: v.Sub(proj),
			dInput: polar.Identity.Sub(dv),
			dOther: dp.Neg(),
			scale:  1,
		}
	}
}
