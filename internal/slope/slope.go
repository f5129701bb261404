// Package slope estimates derivatives empirically with a one-sided finite difference.
//
// Operations use it where a Cartesian sum depends on many polar terms and the
// derivative is taken numerically during forward and reused during backward.
// The estimate is one-sided: only the positive perturbation is
// sampled.
package slope

// DefaultEpsilon is the relative perturbation used when none is configured.
const DefaultEpsilon = 1e-4

// Step returns the perturbation applied to x: eps*x, or eps when x is zero.
func Step(x, eps float64) float64 {
	if x == 0 {
		return eps
	}
	return eps * x
}

// Estimate2 returns (f(x+dx) - f(x)) / ((x+dx) - x) with dx = Step(x, eps)
// for both outputs of f, which share the one perturbation.
func Estimate2(x, eps float64, f func(float64) (float64, float64)) (float64, float64) {
	perturbed := x + Step(x, eps)
	px, py := f(perturbed)
	ox, oy := f(x)
	den := perturbed - x
	return (px - ox) / den, (py - oy) / den
}
