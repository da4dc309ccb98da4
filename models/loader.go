package models

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"hawkdove/tokenizer"
	"hawkdove/utils"

	"github.com/charmbracelet/log"
)

// DefaultRetryDelay is how long to wait before the single retry of a failed
// pretrained-resource load.
const DefaultRetryDelay = 600 * time.Second

const defaultCacheBytes = 32 << 20

// RetryPolicy retries a failed operation once after Delay.
type RetryPolicy struct {
	Delay time.Duration
	// Sleep waits for d or until ctx is done; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn, and on failure waits and runs it exactly one more time. The
// second error is returned wrapped.
func (p RetryPolicy) Do(ctx context.Context, what string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	log.Warn("load failed, retrying", "what", what, "err", err, "delay", p.Delay)
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	if serr := sleep(ctx, p.Delay); serr != nil {
		return fmt.Errorf("loading %s: %w (retry aborted: %v)", what, err, serr)
	}
	if err := fn(); err != nil {
		return fmt.Errorf("loading %s after retry: %w", what, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loader resolves model keys against a local directory of pretrained
// sources. Tokenizers are kept for the life of the Loader so a sweep does
// not re-resolve them for every experiment.
type Loader struct {
	Root  string
	Retry RetryPolicy
	// CacheBytes bounds each tokenizer's encode cache; 0 picks a default.
	CacheBytes int

	tokenizers map[string]tokenizer.Tokenizer
}

func NewLoader(root string) *Loader {
	return &Loader{Root: root, Retry: RetryPolicy{Delay: DefaultRetryDelay}}
}

func (l *Loader) sourceDir(spec Spec) string {
	return filepath.Join(l.Root, filepath.FromSlash(spec.Source))
}

// Tokenizer loads the tokenizer for key. Unknown keys fail immediately
// with ErrUnknownModel; load failures are retried once.
func (l *Loader) Tokenizer(ctx context.Context, key string) (tokenizer.Tokenizer, error) {
	spec, err := Lookup(key)
	if err != nil {
		return nil, err
	}
	if t, ok := l.tokenizers[key]; ok {
		return t, nil
	}
	var tok tokenizer.Tokenizer
	err = l.Retry.Do(ctx, "tokenizer "+spec.Source, func() error {
		var lerr error
		tok, lerr = l.loadTokenizer(spec)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	size := l.CacheBytes
	if size <= 0 {
		size = defaultCacheBytes
	}
	tok = tokenizer.NewCached(tok, size)
	if l.tokenizers == nil {
		l.tokenizers = make(map[string]tokenizer.Tokenizer)
	}
	l.tokenizers[key] = tok
	return tok, nil
}

func (l *Loader) loadTokenizer(spec Spec) (tokenizer.Tokenizer, error) {
	switch spec.Tokenizer {
	case tokenizer.KindWordPiece:
		return tokenizer.LoadWordPiece(filepath.Join(l.sourceDir(spec), tokenizer.VocabFile), spec.Lowercase)
	case tokenizer.KindBPE:
		return tokenizer.NewBPE(spec.Encoding, spec.BaseVocab, spec.Lowercase)
	default:
		return nil, fmt.Errorf("model %s: unsupported tokenizer kind %q", spec.Key, spec.Tokenizer)
	}
}

// Model builds a classifier for key sized for tok. Encoder weights come
// from <root>/<source>/weights.json when it exists and are drawn from seed
// otherwise; the classification head is always drawn from seed.
func (l *Loader) Model(ctx context.Context, key string, tok tokenizer.Tokenizer, seed int64) (*Classifier, error) {
	spec, err := Lookup(key)
	if err != nil {
		return nil, err
	}
	var model *Classifier
	err = l.Retry.Do(ctx, "model "+spec.Source, func() error {
		var lerr error
		model, lerr = l.loadModel(spec, tok, seed)
		return lerr
	})
	return model, err
}

func (l *Loader) loadModel(spec Spec, tok tokenizer.Tokenizer, seed int64) (*Classifier, error) {
	c, err := NewClassifier(ClassifierConfig{
		Model:      spec.Key,
		VocabSize:  tok.VocabSize(),
		MaxLength:  spec.MaxLength,
		Hidden:     spec.Hidden,
		NumLabels:  NumLabels,
		Activation: "tanh",
	})
	if err != nil {
		return nil, err
	}
	c.InitRandom(uint64(seed))

	path := filepath.Join(l.sourceDir(spec), WeightsFile)
	w, err := utils.LoadWeights(path)
	switch {
	case isNotExist(err):
		log.Debug("no pretrained weights, using seeded initialization", "model", spec.Key, "path", path)
		return c, nil
	case err != nil:
		return nil, err
	}
	if err := c.LoadWeights(w, c.EncoderParams()...); err != nil {
		return nil, fmt.Errorf("pretrained weights %s: %w", path, err)
	}
	c.InitHead(uint64(seed))
	return c, nil
}
