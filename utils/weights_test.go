package utils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"hawkdove/tensor"
)

func TestTensorToWeightData(t *testing.T) {
	ten := tensor.New(2, 3)
	for i := range ten.Data {
		ten.Data[i] = float64(i) * 0.5
	}

	wd := TensorToWeightData("test_weight", ten)

	if wd.Name != "test_weight" {
		t.Errorf("Name = %s, want test_weight", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	if len(wd.Data) != 6 {
		t.Errorf("Data length = %d, want 6", len(wd.Data))
	}
	ten.Data[0] = 99
	if wd.Data[0] != 0 {
		t.Errorf("weight data aliases the tensor")
	}
}

func TestWeightDataToTensor(t *testing.T) {
	wd := &WeightData{
		Name:  "test",
		Shape: []int{3, 4},
		Data:  make([]float64, 12),
	}
	for i := range wd.Data {
		wd.Data[i] = float64(i)
	}

	ten := WeightDataToTensor(wd)

	if len(ten.Shape) != 2 || ten.Shape[0] != 3 || ten.Shape[1] != 4 {
		t.Errorf("Shape = %v, want [3, 4]", ten.Shape)
	}
	for i, v := range ten.Data {
		if v != float64(i) {
			t.Errorf("Data[%d] = %f, want %f", i, v, float64(i))
		}
	}
}

func TestCopyIntoChecksShape(t *testing.T) {
	dst := tensor.New(2, 2)
	if err := CopyInto(dst, &WeightData{Name: "w", Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}}); err != nil {
		t.Fatalf("CopyInto: %v", err)
	}
	if dst.At(1, 1) != 4 {
		t.Errorf("At(1,1) = %f, want 4", dst.At(1, 1))
	}
	if err := CopyInto(dst, &WeightData{Name: "w", Shape: []int{4}, Data: []float64{1, 2, 3, 4}}); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestSaveLoadWeights(t *testing.T) {
	weightsFile := filepath.Join(t.TempDir(), "weights.json")

	weights := &ModelWeights{
		Version: "1.0",
		Params: map[string]*WeightData{
			"pooler.weight": {Name: "pooler.weight", Shape: []int{4, 4}, Data: make([]float64, 16)},
			"pooler.bias":   {Name: "pooler.bias", Shape: []int{4}, Data: make([]float64, 4)},
		},
	}
	for i := range weights.Params["pooler.weight"].Data {
		weights.Params["pooler.weight"].Data[i] = float64(i) * 0.001
	}

	if err := SaveWeights(weightsFile, weights); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}
	loaded, err := LoadWeights(weightsFile)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}

	if loaded.Version != "1.0" {
		t.Errorf("Version = %s, want 1.0", loaded.Version)
	}
	if len(loaded.Params) != 2 {
		t.Errorf("Params count = %d, want 2", len(loaded.Params))
	}
	w := loaded.Params["pooler.weight"]
	if w == nil {
		t.Fatal("pooler.weight is nil")
	}
	if w.Data[1] != 0.001 {
		t.Errorf("pooler.weight.Data[1] = %f, want 0.001", w.Data[1])
	}
}

func TestLoadWeightsNotFound(t *testing.T) {
	_, err := LoadWeights("/nonexistent/path/weights.json")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadWeightsInvalidJSON(t *testing.T) {
	badFile := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badFile, []byte("not valid json"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if _, err := LoadWeights(badFile); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
