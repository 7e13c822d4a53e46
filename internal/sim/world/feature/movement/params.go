package movement

import "math"

// ClampStep turns a requested displacement (dx, dy), measured as hyperbolic
// distance in the walker's frame, into a unit direction and a length no
// longer than maxStep. A zero request yields a zero length.
func ClampStep(dx, dy, maxStep float64) (dir complex128, dist float64) {
	dist = math.Hypot(dx, dy)
	if dist == 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return 0, 0
	}
	dir = complex(dx/dist, dy/dist)
	if maxStep > 0 && dist > maxStep {
		dist = maxStep
	}
	return dir, dist
}
