package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"hawkdove/nn"
	"hawkdove/nn/layers"
	"hawkdove/tensor"
	"hawkdove/utils"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	ConfigFile  = "config.json"
	WeightsFile = "weights.json"

	weightsVersion = "1.0"
	initStd        = 0.02
)

// ClassifierConfig is the geometry of a Classifier; it is persisted as
// config.json next to the weights.
type ClassifierConfig struct {
	Model      string `json:"model"`
	VocabSize  int    `json:"vocab_size"`
	MaxLength  int    `json:"max_length"`
	Hidden     int    `json:"hidden_size"`
	NumLabels  int    `json:"num_labels"`
	Activation string `json:"activation"`
}

// Output is the result of one forward pass.
type Output struct {
	Loss   float64
	Logits *tensor.Tensor
	Pred   int

	label int
	probs *tensor.Tensor
}

// Classifier is an embedding encoder with a pooled classification head:
// embeddings -> mean pool -> pooler dense -> tanh -> classifier dense.
type Classifier struct {
	Config ClassifierConfig

	Embeddings *layers.Embedding
	Pooler     *layers.Linear
	Activation *layers.Activation
	Head       *layers.Linear

	net  nn.Sequential
	loss nn.CrossEntropyLoss
}

// NewClassifier allocates a classifier with zeroed weights.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if cfg.VocabSize <= 0 || cfg.MaxLength <= 0 || cfg.Hidden <= 0 || cfg.NumLabels <= 0 {
		return nil, fmt.Errorf("invalid classifier config %+v", cfg)
	}
	if cfg.Activation == "" {
		cfg.Activation = "tanh"
	}
	act, err := layers.NewActivation(cfg.Activation)
	if err != nil {
		return nil, err
	}
	c := &Classifier{
		Config:     cfg,
		Embeddings: layers.NewEmbedding(cfg.VocabSize, cfg.MaxLength, cfg.Hidden),
		Pooler:     layers.NewLinear("pooler", cfg.Hidden, cfg.Hidden),
		Activation: act,
		Head:       layers.NewLinear("classifier", cfg.Hidden, cfg.NumLabels),
	}
	c.net = nn.Sequential{Layers: []nn.Module{c.Embeddings, c.Pooler, c.Activation, c.Head}}
	return c, nil
}

// Params returns every trainable parameter.
func (c *Classifier) Params() []*nn.Param { return c.net.Params() }

// EncoderParams are the parameters a pretrained checkpoint provides.
func (c *Classifier) EncoderParams() []*nn.Param {
	return append(c.Embeddings.Params(), c.Pooler.Params()...)
}

// InitRandom draws every weight from seed: embeddings from N(0, 0.02),
// dense layers uniformly in ±1/sqrt(fan-in), biases zero.
func (c *Classifier) InitRandom(seed uint64) {
	src := rand.NewSource(seed)
	c.initEmbeddings(src)
	c.initDense(src, c.Pooler)
	c.initDense(src, c.Head)
}

// InitHead re-initializes only the classification head.
func (c *Classifier) InitHead(seed uint64) {
	c.initDense(rand.NewSource(seed), c.Head)
}

func (c *Classifier) initEmbeddings(src rand.Source) {
	dist := distuv.Normal{Mu: 0, Sigma: initStd, Src: src}
	for _, p := range c.Embeddings.Params() {
		for i := range p.Value.Data {
			p.Value.Data[i] = dist.Rand()
		}
	}
}

func (c *Classifier) initDense(src rand.Source, l *layers.Linear) {
	bound := 1 / math.Sqrt(float64(l.InDim()))
	dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
	for i := range l.W.Value.Data {
		l.W.Value.Data[i] = dist.Rand()
	}
	l.B.Value.Zero()
}

// Forward runs one example and computes the cross-entropy against label.
func (c *Classifier) Forward(tokens layers.Tokens, label int) (Output, error) {
	out, err := c.net.Forward(tokens)
	if err != nil {
		return Output{}, err
	}
	logits := out.(*tensor.Tensor)
	loss, probs, err := c.loss.Forward(logits, label)
	if err != nil {
		return Output{}, err
	}
	return Output{Loss: loss, Logits: logits, Pred: tensor.Argmax(logits), label: label, probs: probs}, nil
}

// Backward accumulates gradients for the example of the most recent Forward.
func (c *Classifier) Backward(out Output) error {
	if out.probs == nil {
		return errors.New("backward without a forward output")
	}
	_, err := c.net.Backward(c.loss.Backward(out.probs, out.label))
	return err
}

// Predict returns the logits for one example.
func (c *Classifier) Predict(tokens layers.Tokens) (*tensor.Tensor, error) {
	out, err := c.net.Forward(tokens)
	if err != nil {
		return nil, err
	}
	return out.(*tensor.Tensor), nil
}

// Weights snapshots the given parameters (all of them when none are given).
func (c *Classifier) Weights(params ...*nn.Param) *utils.ModelWeights {
	if len(params) == 0 {
		params = c.Params()
	}
	w := &utils.ModelWeights{Version: weightsVersion, Params: make(map[string]*utils.WeightData, len(params))}
	for _, p := range params {
		w.Params[p.Name] = utils.TensorToWeightData(p.Name, p.Value)
	}
	return w
}

// LoadWeights copies the named parameters present in w into the model,
// restricted to params when any are given. Entries for other model
// parameters are skipped; names the model does not have are an error.
func (c *Classifier) LoadWeights(w *utils.ModelWeights, params ...*nn.Param) error {
	known := make(map[string]bool)
	for _, p := range c.Params() {
		known[p.Name] = true
	}
	if len(params) == 0 {
		params = c.Params()
	}
	byName := make(map[string]*nn.Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	for name, wd := range w.Params {
		if !known[name] {
			return fmt.Errorf("weights contain unknown parameter %q", name)
		}
		p, ok := byName[name]
		if !ok {
			continue
		}
		if err := utils.CopyInto(p.Value, wd); err != nil {
			return err
		}
	}
	return nil
}

// Save writes config.json and weights.json into dir, creating it.
func (c *Classifier) Save(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0644); err != nil {
		return err
	}
	return utils.SaveWeights(filepath.Join(dir, WeightsFile), c.Weights())
}

// LoadClassifier restores a classifier written by Save.
func LoadClassifier(dir string) (*Classifier, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("reading model config: %w", err)
	}
	var cfg ClassifierConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling model config: %w", err)
	}
	c, err := NewClassifier(cfg)
	if err != nil {
		return nil, err
	}
	w, err := utils.LoadWeights(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, err
	}
	if err := c.LoadWeights(w); err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	return c, nil
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }
