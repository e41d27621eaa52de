package mamdani

import (
	"math"
	"strings"
)

// DefuzzMethod selects how an aggregated curve becomes a crisp value.
type DefuzzMethod string

const (
	// Centroid is the membership-weighted mean of the sample points.
	Centroid DefuzzMethod = "centroid"
	// Bisector splits the area under the curve into two equal halves.
	Bisector DefuzzMethod = "bisector"
	// MeanOfMaximum averages the points where the curve peaks.
	MeanOfMaximum DefuzzMethod = "mom"
	// SmallestOfMaximum is the lowest point where the curve peaks.
	SmallestOfMaximum DefuzzMethod = "som"
	// LargestOfMaximum is the highest point where the curve peaks.
	LargestOfMaximum DefuzzMethod = "lom"
)

// DefuzzMethods lists every supported method.
var DefuzzMethods = []DefuzzMethod{Centroid, Bisector, MeanOfMaximum, SmallestOfMaximum, LargestOfMaximum}

// ParseDefuzzMethod is case-insensitive; the empty string selects Centroid.
func ParseDefuzzMethod(s string) (DefuzzMethod, bool) {
	m := DefuzzMethod(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return Centroid, true
	}
	return m, m.valid()
}

func (m DefuzzMethod) valid() bool {
	for _, known := range DefuzzMethods {
		if m == known {
			return true
		}
	}
	return false
}

// apply returns false when the curve carries no membership at all or its
// points and degrees differ in length.
func (m DefuzzMethod) apply(c Curve) (float64, bool) {
	if len(c.Points) != len(c.Degrees) {
		return 0, false
	}
	switch m {
	case Centroid, "":
		return centroid(c)
	case Bisector:
		return bisector(c)
	case MeanOfMaximum, SmallestOfMaximum, LargestOfMaximum:
		return maxima(c, m)
	default:
		return 0, false
	}
}

func centroid(c Curve) (float64, bool) {
	var num, den float64
	for i, x := range c.Points {
		num += x * c.Degrees[i]
		den += c.Degrees[i]
	}
	if den <= 0 {
		return 0, false
	}
	return num / den, true
}

// bisector integrates the piecewise-linear curve and solves for the exact
// point inside the segment that crosses half the area.
func bisector(c Curve) (float64, bool) {
	n := len(c.Points)
	if n == 0 {
		return 0, false
	}
	areas := make([]float64, n-1)
	var total float64
	for i := 0; i < n-1; i++ {
		areas[i] = (c.Points[i+1] - c.Points[i]) * (c.Degrees[i] + c.Degrees[i+1]) / 2
		total += areas[i]
	}
	if total <= 0 {
		// A lone nonzero sample has no area but still has a location.
		return maxima(c, MeanOfMaximum)
	}

	half := total / 2
	var acc float64
	for i, a := range areas {
		if a > 0 && acc+a >= half {
			return c.Points[i] + splitSegment(c.Points[i+1]-c.Points[i], c.Degrees[i], c.Degrees[i+1], half-acc), true
		}
		acc += a
	}
	return c.Points[n-1], true
}

// splitSegment returns the offset u into a segment of width h, running
// linearly from y0 to y1, where the area y0*u + slope*u*u/2 reaches r.
func splitSegment(h, y0, y1, r float64) float64 {
	if r <= 0 {
		return 0
	}
	slope := (y1 - y0) / h
	// Root of slope/2*u^2 + y0*u - r = 0 in the form that stays finite when
	// the slope is zero.
	u := 2 * r / (y0 + math.Sqrt(math.Max(0, y0*y0+2*slope*r)))
	return math.Min(u, h)
}

func maxima(c Curve, m DefuzzMethod) (float64, bool) {
	peak := 0.0
	for _, mu := range c.Degrees {
		peak = math.Max(peak, mu)
	}
	if peak <= 0 {
		return 0, false
	}

	first, last := math.NaN(), math.NaN()
	var sum float64
	var count int
	for i, mu := range c.Degrees {
		if mu != peak {
			continue
		}
		x := c.Points[i]
		if count == 0 {
			first = x
		}
		last = x
		sum += x
		count++
	}

	switch m {
	case SmallestOfMaximum:
		return first, true
	case LargestOfMaximum:
		return last, true
	default:
		return sum / float64(count), true
	}
}
