package nn

import (
	"errors"
	"fmt"
	"math"

	"hawkdove/tensor"
)

// ErrNonFiniteGradient is returned by Step when a gradient is NaN or Inf.
var ErrNonFiniteGradient = errors.New("non-finite gradient")

// AdamW implements Adam with decoupled weight decay. Defaults follow the
// usual fine-tuning setup: betas (0.9, 0.999), eps 1e-8, weight decay 0.01.
type AdamW struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	step int
	m    map[*Param][]float64
	v    map[*Param][]float64
}

func NewAdamW(learningRate float64) *AdamW {
	return &AdamW{
		LR:          learningRate,
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: 0.01,
		m:           make(map[*Param][]float64),
		v:           make(map[*Param][]float64),
	}
}

// Steps is the number of updates applied so far.
func (o *AdamW) Steps() int { return o.step }

// Step applies one update to params using their accumulated gradients.
// Gradients are left untouched; callers zero them before the next batch.
// A NaN or Inf gradient fails the step before any parameter changes.
func (o *AdamW) Step(params []*Param) error {
	for _, p := range params {
		for i, g := range p.Grad.Data {
			if math.IsNaN(g) || math.IsInf(g, 0) {
				return fmt.Errorf("%w: %s[%d] = %v", ErrNonFiniteGradient, p.Name, i, g)
			}
		}
	}
	o.step++
	t := float64(o.step)
	bc1 := 1 - math.Pow(o.Beta1, t)
	bc2 := 1 - math.Pow(o.Beta2, t)

	for _, p := range params {
		m, ok := o.m[p]
		if !ok {
			m = make([]float64, len(p.Value.Data))
			o.m[p] = m
		}
		v, ok := o.v[p]
		if !ok {
			v = make([]float64, len(p.Value.Data))
			o.v[p] = v
		}
		if err := tensor.AddScaled(p.Value, -o.LR*o.WeightDecay, p.Value); err != nil {
			return err
		}
		w := p.Value.Data
		for i, g := range p.Grad.Data {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*g
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*g*g
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			w[i] -= o.LR * mHat / (math.Sqrt(vHat) + o.Eps)
		}
	}
	return nil
}
