package nn

import (
	"fmt"
	"math"

	"hawkdove/tensor"
)

// probFloor keeps log() finite when a class probability underflows.
const probFloor = 1e-12

type CrossEntropyLoss struct{}

// Forward returns -log softmax(logits)[label] together with the softmax output.
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor, label int) (float64, *tensor.Tensor, error) {
	if label < 0 || label >= len(logits.Data) {
		return 0, nil, fmt.Errorf("label %d out of range for %d classes", label, len(logits.Data))
	}
	probs := Softmax(logits)
	p := probs.Data[label]
	if p < probFloor {
		p = probFloor
	}
	return -math.Log(p), probs, nil
}

// Backward computes the gradient of the cross-entropy loss with softmax.
// grad = (softmax_output - one_hot_label)
func (c *CrossEntropyLoss) Backward(softmaxOut *tensor.Tensor, label int) *tensor.Tensor {
	grad := tensor.New(len(softmaxOut.Data))
	copy(grad.Data, softmaxOut.Data)
	grad.Data[label] -= 1
	return grad
}

// Softmax applies the softmax function to a tensor.
func Softmax(logits *tensor.Tensor) *tensor.Tensor {
	maxLogit := logits.Data[0]
	for _, v := range logits.Data {
		if v > maxLogit {
			maxLogit = v
		}
	}
	expSum := 0.0
	exps := make([]float64, len(logits.Data))
	for i, v := range logits.Data {
		e := math.Exp(v - maxLogit)
		exps[i] = e
		expSum += e
	}
	softmax := tensor.New(len(logits.Data))
	for i, e := range exps {
		softmax.Data[i] = e / expSum
	}
	return softmax
}
