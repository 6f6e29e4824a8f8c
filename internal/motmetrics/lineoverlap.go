package motmetrics

import "math"

// LineOverlapRatio computes the fraction of two 2D line segments that
// overlap along their shared dominant axis, a 1D analogue of box IoU.
// Segments are projected onto whichever axis (x or y) has the larger
// extent on segment a, intersected as intervals, and the intersection
// length is divided by the union length.
//
// Returns 0 when the segments are degenerate (zero length) or share no
// overlap, and 1 when they coincide exactly.
func LineOverlapRatio(aS, aE, bS, bE [2]float64) float64 {
	dx := math.Abs(aE[0] - aS[0])
	dy := math.Abs(aE[1] - aS[1])

	var a0, a1, b0, b1 float64
	if dx >= dy {
		a0, a1 = aS[0], aE[0]
		b0, b1 = bS[0], bE[0]
	} else {
		a0, a1 = aS[1], aE[1]
		b0, b1 = bS[1], bE[1]
	}
	if a0 > a1 {
		a0, a1 = a1, a0
	}
	if b0 > b1 {
		b0, b1 = b1, b0
	}

	interLo := math.Max(a0, b0)
	interHi := math.Min(a1, b1)
	var inter float64
	if interHi > interLo {
		inter = interHi - interLo
	}

	union := math.Max(a1, b1) - math.Min(a0, b0)
	if union <= 0 {
		return 0
	}
	return inter / union
}
