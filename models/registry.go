// Package models maps model keys to pretrained tokenizer/encoder sources and
// builds 3-way sequence classifiers from them.
package models

import (
	"errors"
	"fmt"
	"sort"

	"hawkdove/tensor"
	"hawkdove/tokenizer"
)

// NumLabels is the number of stance classes: dovish, hawkish, neutral.
const NumLabels = 3

const (
	DefaultMaxLength = 256

	baseHidden  = 64
	largeHidden = 128

	r50kVocab   = 50257
	cl100kVocab = 100256
)

// ErrUnknownModel is returned for a model key that is not in the registry.
var ErrUnknownModel = errors.New("unknown model")

// Spec describes where a model's pretrained pieces come from.
type Spec struct {
	Key string
	// Source is the directory, relative to the loader root, holding
	// vocab.txt and weights.json.
	Source    string
	Tokenizer tokenizer.Kind
	// Lowercase is set for uncased checkpoints.
	Lowercase bool
	// Encoding and BaseVocab apply to BPE tokenizers only.
	Encoding  string
	BaseVocab int
	Hidden    int
	MaxLength int
}

var registry = map[string]Spec{
	"bert":              {Source: "bert-base-uncased", Tokenizer: tokenizer.KindWordPiece, Lowercase: true, Hidden: baseHidden},
	"roberta":           {Source: "roberta-base", Tokenizer: tokenizer.KindBPE, Encoding: "r50k_base", BaseVocab: r50kVocab, Hidden: baseHidden},
	"flangroberta":      {Source: "SALT-NLP/FLANG-Roberta", Tokenizer: tokenizer.KindBPE, Encoding: "r50k_base", BaseVocab: r50kVocab, Hidden: baseHidden, MaxLength: 128},
	"finbert":           {Source: "finbert-uncased", Tokenizer: tokenizer.KindWordPiece, Lowercase: true, Hidden: baseHidden},
	"flangbert":         {Source: "SALT-NLP/FLANG-BERT", Tokenizer: tokenizer.KindWordPiece, Lowercase: true, Hidden: baseHidden},
	"bert-large":        {Source: "bert-large-uncased", Tokenizer: tokenizer.KindWordPiece, Lowercase: true, Hidden: largeHidden},
	"roberta-large":     {Source: "roberta-large", Tokenizer: tokenizer.KindBPE, Encoding: "r50k_base", BaseVocab: r50kVocab, Hidden: largeHidden},
	"pretrain_roberta":  {Source: "pretrained_roberta_output", Tokenizer: tokenizer.KindBPE, Encoding: "r50k_base", BaseVocab: r50kVocab, Hidden: baseHidden},
	"xlnet":             {Source: "xlnet-base-cased", Tokenizer: tokenizer.KindBPE, Encoding: "cl100k_base", BaseVocab: cl100kVocab, Hidden: baseHidden},
	"xlm-roberta-base":  {Source: "xlm-roberta-base", Tokenizer: tokenizer.KindBPE, Encoding: "cl100k_base", BaseVocab: cl100kVocab, Hidden: baseHidden},
	"xlm-roberta-large": {Source: "xlm-roberta-large", Tokenizer: tokenizer.KindBPE, Encoding: "cl100k_base", BaseVocab: cl100kVocab, Hidden: largeHidden},
}

// Lookup returns the Spec registered under key.
func Lookup(key string) (Spec, error) {
	spec, ok := registry[key]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	spec.Key = key
	if spec.MaxLength == 0 {
		spec.MaxLength = DefaultMaxLength
	}
	return spec, nil
}

// Keys lists every registered model key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LabelNames are the stance classes in label order.
var LabelNames = [NumLabels]string{"dovish", "hawkish", "neutral"}

// Label returns the stance name for a predicted logit vector.
func Label(logits *tensor.Tensor) string {
	return LabelNames[tensor.Argmax(logits)]
}
