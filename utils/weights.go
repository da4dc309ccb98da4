package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"hawkdove/tensor"
)

// WeightData represents serializable weight data for one parameter
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights represents all weights in a model, keyed by parameter name
type ModelWeights struct {
	Version string                 `json:"version"`
	Params  map[string]*WeightData `json:"params"`
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	return &weights, nil
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: t.Shape,
		Data:  append([]float64{}, t.Data...), // copy
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) *tensor.Tensor {
	t := tensor.New(wd.Shape...)
	copy(t.Data, wd.Data)
	return t
}

// CopyInto overwrites dst with wd after checking the shapes agree.
func CopyInto(dst *tensor.Tensor, wd *WeightData) error {
	src := &tensor.Tensor{Shape: wd.Shape, Data: wd.Data}
	if !tensor.SameShape(dst, src) || len(wd.Data) != len(dst.Data) {
		return fmt.Errorf("weight %s: shape %v does not match %v", wd.Name, wd.Shape, dst.Shape)
	}
	copy(dst.Data, wd.Data)
	return nil
}
