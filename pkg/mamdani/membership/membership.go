// Package membership implements the piecewise-linear membership functions
// used by linguistic variables: triangular and trapezoidal shapes.
//
// Functions are immutable once constructed and safe for concurrent use.
package membership

import (
	"errors"
	"fmt"
	"math"
)

// Kind identifies the shape of a membership function.
type Kind string

const (
	Triangular  Kind = "triangular"
	Trapezoidal Kind = "trapezoidal"
)

var (
	// ErrBreakpointOrder is returned when breakpoints are not non-decreasing.
	ErrBreakpointOrder = errors.New("breakpoints must be non-decreasing")
	// ErrNonFinite is returned when a breakpoint is NaN or infinite.
	ErrNonFinite = errors.New("breakpoints must be finite")
	// ErrBreakpointCount is returned by New when the point count does not match the kind.
	ErrBreakpointCount = errors.New("wrong number of breakpoints")
	// ErrUnknownKind is returned by New for an unsupported shape.
	ErrUnknownKind = errors.New("unknown membership function kind")
)

// Function evaluates a crisp value against a fuzzy set shape.
type Function interface {
	// Degree returns the membership degree of x in [0,1].
	Degree(x float64) float64
	Kind() Kind
	// Breakpoints returns a copy of the ordered breakpoints.
	Breakpoints() []float64
	// Support returns the first and last breakpoint.
	Support() (lo, hi float64)
}

// Triangle is a triangular membership function with feet A and C and peak B.
type Triangle struct {
	a, b, c float64
}

// NewTriangle validates a <= b <= c and returns the triangle.
func NewTriangle(a, b, c float64) (Triangle, error) {
	if err := checkPoints(a, b, c); err != nil {
		return Triangle{}, err
	}
	return Triangle{a: a, b: b, c: c}, nil
}

// Degree is 1 at the peak, 0 at or beyond the feet and linear in between.
// A degenerate side (a == b or b == c) is a shoulder pinned to 1.
func (t Triangle) Degree(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x == t.b:
		return 1
	case x <= t.a || x >= t.c:
		return 0
	case x < t.b:
		return (x - t.a) / (t.b - t.a)
	default:
		return (t.c - x) / (t.c - t.b)
	}
}

func (t Triangle) Kind() Kind { return Triangular }

func (t Triangle) Breakpoints() []float64 { return []float64{t.a, t.b, t.c} }

func (t Triangle) Support() (float64, float64) { return t.a, t.c }

func (t Triangle) String() string {
	return fmt.Sprintf("triangular(%g, %g, %g)", t.a, t.b, t.c)
}

// Trapezoid is a trapezoidal membership function with feet A and D and a
// plateau from B to C.
type Trapezoid struct {
	a, b, c, d float64
}

// NewTrapezoid validates a <= b <= c <= d and returns the trapezoid.
func NewTrapezoid(a, b, c, d float64) (Trapezoid, error) {
	if err := checkPoints(a, b, c, d); err != nil {
		return Trapezoid{}, err
	}
	return Trapezoid{a: a, b: b, c: c, d: d}, nil
}

// Degree is 1 on the plateau [B,C], 0 at or beyond the feet and linear on
// the slopes. Degenerate slopes are open shoulders.
func (t Trapezoid) Degree(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= t.b && x <= t.c:
		return 1
	case x <= t.a || x >= t.d:
		return 0
	case x < t.b:
		return (x - t.a) / (t.b - t.a)
	default:
		return (t.d - x) / (t.d - t.c)
	}
}

func (t Trapezoid) Kind() Kind { return Trapezoidal }

func (t Trapezoid) Breakpoints() []float64 { return []float64{t.a, t.b, t.c, t.d} }

func (t Trapezoid) Support() (float64, float64) { return t.a, t.d }

func (t Trapezoid) String() string {
	return fmt.Sprintf("trapezoidal(%g, %g, %g, %g)", t.a, t.b, t.c, t.d)
}

// New builds a function of the given kind from its breakpoints.
func New(kind Kind, points []float64) (Function, error) {
	switch kind {
	case Triangular:
		if len(points) != 3 {
			return nil, fmt.Errorf("%w: %s takes 3, got %d", ErrBreakpointCount, kind, len(points))
		}
		t, err := NewTriangle(points[0], points[1], points[2])
		if err != nil {
			return nil, err
		}
		return t, nil
	case Trapezoidal:
		if len(points) != 4 {
			return nil, fmt.Errorf("%w: %s takes 4, got %d", ErrBreakpointCount, kind, len(points))
		}
		t, err := NewTrapezoid(points[0], points[1], points[2], points[3])
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func checkPoints(points ...float64) error {
	for i, p := range points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: point %d is %v", ErrNonFinite, i, p)
		}
		if i > 0 && p < points[i-1] {
			return fmt.Errorf("%w: %v", ErrBreakpointOrder, points)
		}
	}
	return nil
}
