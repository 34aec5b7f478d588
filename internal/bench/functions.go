package bench

import (
	"fmt"
	"math"
)

// function is the common shape of the registered test functions: uniform
// scalar bounds replicated across dimensions and a pure evaluation closure.
type function struct {
	name    string
	dim     int
	lower   float64
	upper   float64
	optimum float64
	eval    func(x []float64) float64
}

func (f *function) Name() string             { return f.name }
func (f *function) Dim() int                 { return f.dim }
func (f *function) Eval(x []float64) float64 { return f.eval(x) }
func (f *function) Optimum() float64         { return f.optimum }

func (f *function) Bounds() (lower, upper []float64) {
	lower = make([]float64, f.dim)
	upper = make([]float64, f.dim)
	for i := 0; i < f.dim; i++ {
		lower[i] = f.lower
		upper[i] = f.upper
	}
	return lower, upper
}

func init() {
	Register("sphere", func(dim int) (Problem, error) {
		if dim <= 0 {
			dim = 3
		}
		return &function{
			name:  "sphere",
			dim:   dim,
			lower: -5.12,
			upper: 5.12,
			eval:  Sphere,
		}, nil
	})

	Register("rosenbrock", func(dim int) (Problem, error) {
		if dim <= 0 {
			dim = 2
		}
		if dim < 2 {
			return nil, fmt.Errorf("rosenbrock needs at least 2 dimensions, got %d", dim)
		}
		return &function{
			name:  "rosenbrock",
			dim:   dim,
			lower: -2.048,
			upper: 2.048,
			eval:  Rosenbrock,
		}, nil
	})

	Register("rastrigin", func(dim int) (Problem, error) {
		if dim <= 0 {
			dim = 3
		}
		return &function{
			name:  "rastrigin",
			dim:   dim,
			lower: -5.12,
			upper: 5.12,
			eval:  Rastrigin,
		}, nil
	})

	Register("ackley", func(dim int) (Problem, error) {
		if dim <= 0 {
			dim = 3
		}
		return &function{
			name:  "ackley",
			dim:   dim,
			lower: -32.768,
			upper: 32.768,
			eval:  Ackley,
		}, nil
	})

	Register("eggholder", func(dim int) (Problem, error) {
		if dim > 0 && dim != 2 {
			return nil, fmt.Errorf("eggholder is defined for 2 dimensions, got %d", dim)
		}
		return &function{
			name:    "eggholder",
			dim:     2,
			lower:   -512,
			upper:   512,
			optimum: -959.6407,
			eval:    Eggholder,
		}, nil
	})
}

// Sphere is f(x) = sum(x_i^2), minimum 0 at the origin.
func Sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// Rosenbrock is the banana-valley function, minimum 0 at (1, ..., 1).
func Rosenbrock(x []float64) float64 {
	var sum float64
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// Rastrigin is the highly multimodal cosine-modulated sphere, minimum 0 at
// the origin.
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Ackley is the exponential well with a nearly flat outer region, minimum 0
// at the origin.
func Ackley(x []float64) float64 {
	n := float64(len(x))
	var sumSq, sumCos float64
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E
}

// Eggholder is the 2-D eggholder function, minimum about -959.6407 at
// (512, 404.2319).
func Eggholder(x []float64) float64 {
	a := x[1] + 47
	return -a*math.Sin(math.Sqrt(math.Abs(x[0]/2+a))) - x[0]*math.Sin(math.Sqrt(math.Abs(x[0]-a)))
}
