package models

import (
	"fmt"
	"sort"

	"hawkdove/nn"
	"hawkdove/nn/layers"
	"hawkdove/tokenizer"
)

// Predictor classifies raw sentences with a fine-tuned model directory.
type Predictor struct {
	Model     *Classifier
	Tokenizer tokenizer.Tokenizer
}

// LoadPredictor restores the classifier and tokenizer saved in dir.
func LoadPredictor(dir string) (*Predictor, error) {
	model, err := LoadClassifier(dir)
	if err != nil {
		return nil, err
	}
	tok, err := tokenizer.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer from %s: %w", dir, err)
	}
	if tok.VocabSize() != model.Config.VocabSize {
		return nil, fmt.Errorf("tokenizer vocabulary %d does not match model %d", tok.VocabSize(), model.Config.VocabSize)
	}
	return &Predictor{Model: model, Tokenizer: tok}, nil
}

// Prediction is the class distribution for one sentence.
type Prediction struct {
	Label string
	Probs [NumLabels]float64
}

// Ranked returns label indices ordered by decreasing probability.
func (p Prediction) Ranked() []int {
	idx := []int{0, 1, 2}
	sort.SliceStable(idx, func(a, b int) bool { return p.Probs[idx[a]] > p.Probs[idx[b]] })
	return idx
}

// Classify tokenizes text with the model's max length and returns the
// predicted stance.
func (p *Predictor) Classify(text string) (Prediction, error) {
	ids := tokenizer.Encode(p.Tokenizer, text, p.Model.Config.MaxLength)
	mask := make([]int, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	logits, err := p.Model.Predict(layers.Tokens{IDs: ids, Mask: mask})
	if err != nil {
		return Prediction{}, err
	}
	probs := nn.Softmax(logits)
	var out Prediction
	copy(out.Probs[:], probs.Data)
	out.Label = Label(logits)
	return out, nil
}
