package layers

import (
	"fmt"

	"hawkdove/nn"
	"hawkdove/tensor"

	"gonum.org/v1/gonum/mat"
)

// Linear is a fully-connected layer y = Wx + b over a single example.
type Linear struct {
	W, B *nn.Param

	inDim, outDim int
	lastInput     *mat.VecDense
}

// NewLinear allocates a zeroed inDim -> outDim layer: W is outDim×inDim.
func NewLinear(name string, inDim, outDim int) *Linear {
	return &Linear{
		W:      nn.NewParam(name+".weight", outDim, inDim),
		B:      nn.NewParam(name+".bias", outDim),
		inDim:  inDim,
		outDim: outDim,
	}
}

// InDim and OutDim report the layer geometry.
func (l *Linear) InDim() int  { return l.inDim }
func (l *Linear) OutDim() int { return l.outDim }

func (l *Linear) weights() *mat.Dense {
	return mat.NewDense(l.outDim, l.inDim, l.W.Value.Data)
}

// ForwardPlaintext computes Wx + b.
func (l *Linear) ForwardPlaintext(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Data) != l.inDim {
		return nil, fmt.Errorf("linear %s: input has %d values, want %d", l.W.Name, len(x.Data), l.inDim)
	}
	l.lastInput = mat.NewVecDense(l.inDim, append([]float64(nil), x.Data...))

	out := tensor.New(l.outDim)
	y := mat.NewVecDense(l.outDim, out.Data)
	y.MulVec(l.weights(), l.lastInput)
	y.AddVec(y, mat.NewVecDense(l.outDim, l.B.Value.Data))
	return out, nil
}

func (l *Linear) Forward(input interface{}) (interface{}, error) {
	x, ok := input.(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("linear expects *tensor.Tensor input, got %T", input)
	}
	return l.ForwardPlaintext(x)
}

// Backward accumulates dL/dW += g xᵀ and dL/db += g, and returns Wᵀ g.
func (l *Linear) Backward(gradOut interface{}) (interface{}, error) {
	g, ok := gradOut.(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("linear expects *tensor.Tensor gradOut, got %T", gradOut)
	}
	if l.lastInput == nil {
		return nil, fmt.Errorf("linear %s: backward before forward", l.W.Name)
	}
	if len(g.Data) != l.outDim {
		return nil, fmt.Errorf("linear %s: gradient has %d values, want %d", l.W.Name, len(g.Data), l.outDim)
	}
	gv := mat.NewVecDense(l.outDim, g.Data)

	gw := mat.NewDense(l.outDim, l.inDim, l.W.Grad.Data)
	gw.RankOne(gw, 1, gv, l.lastInput)

	gb := mat.NewVecDense(l.outDim, l.B.Grad.Data)
	gb.AddVec(gb, gv)

	gradIn := tensor.New(l.inDim)
	gx := mat.NewVecDense(l.inDim, gradIn.Data)
	gx.MulVec(l.weights().T(), gv)
	return gradIn, nil
}

func (l *Linear) Params() []*nn.Param { return []*nn.Param{l.W, l.B} }

func (l *Linear) Tag() string {
	return fmt.Sprintf("Linear(%d→%d)", l.inDim, l.outDim)
}
