package nn

import (
	"math"
	"testing"

	"hawkdove/tensor"

	"github.com/stretchr/testify/require"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	p := Softmax(tensor.NewWithData([]float64{1000, 1001, 999}))
	sum := 0.0
	for _, v := range p.Data {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-12)
	require.Equal(t, 1, tensor.Argmax(p))
}

func TestCrossEntropyUniformLogits(t *testing.T) {
	var ce CrossEntropyLoss
	loss, probs, err := ce.Forward(tensor.New(3), 2)
	require.NoError(t, err)
	require.InDelta(t, math.Log(3), loss, 1e-12)

	grad := ce.Backward(probs, 2)
	require.InDelta(t, 1.0/3, grad.Data[0], 1e-12)
	require.InDelta(t, -2.0/3, grad.Data[2], 1e-12)
}

func TestCrossEntropyRejectsBadLabel(t *testing.T) {
	var ce CrossEntropyLoss
	_, _, err := ce.Forward(tensor.New(3), 3)
	require.Error(t, err)
}
