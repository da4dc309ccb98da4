package layers

import (
	"fmt"
	"math"

	"hawkdove/nn"
	"hawkdove/tensor"
)

// activationFn pairs a pointwise function with its derivative. The
// derivative receives both the input and the cached output.
type activationFn struct {
	f  func(x float64) float64
	df func(x, y float64) float64
}

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

var activationLookup = map[string]activationFn{
	"tanh": {
		f:  math.Tanh,
		df: func(_, y float64) float64 { return 1 - y*y },
	},
	"relu": {
		f: func(x float64) float64 { return math.Max(0, x) },
		df: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	"gelu": {
		f: func(x float64) float64 { return 0.5 * x * (1 + math.Erf(x/math.Sqrt2)) },
		df: func(x, _ float64) float64 {
			return 0.5*(1+math.Erf(x/math.Sqrt2)) + x*math.Exp(-x*x/2)*invSqrt2Pi
		},
	},
}

// Activation applies a named pointwise nonlinearity.
type Activation struct {
	name string
	fn   activationFn

	lastIn, lastOut *tensor.Tensor
}

// NewActivation looks the function up by name (tanh, relu, gelu).
func NewActivation(name string) (*Activation, error) {
	fn, ok := activationLookup[name]
	if !ok {
		return nil, fmt.Errorf("unknown activation %q", name)
	}
	return &Activation{name: name, fn: fn}, nil
}

func (a *Activation) Forward(input interface{}) (interface{}, error) {
	x, ok := input.(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("activation expects *tensor.Tensor input, got %T", input)
	}
	out := tensor.New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = a.fn.f(v)
	}
	a.lastIn, a.lastOut = x.Clone(), out
	return out, nil
}

func (a *Activation) Backward(gradOut interface{}) (interface{}, error) {
	g, ok := gradOut.(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("activation expects *tensor.Tensor gradOut, got %T", gradOut)
	}
	if a.lastIn == nil {
		return nil, fmt.Errorf("activation %s: backward before forward", a.name)
	}
	grad := tensor.New(g.Shape...)
	for i, v := range g.Data {
		grad.Data[i] = v * a.fn.df(a.lastIn.Data[i], a.lastOut.Data[i])
	}
	return grad, nil
}

func (a *Activation) Params() []*nn.Param { return nil }

func (a *Activation) Name() string { return a.name }

func (a *Activation) Tag() string { return "Activation(" + a.name + ")" }
