// Package tokenizer turns sentences into fixed-length id sequences for the
// classifier: WordPiece for the BERT family, byte-level BPE for the
// RoBERTa/XLNet family.
package tokenizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFile is the file written next to a saved model describing how to
// rebuild its tokenizer.
const ConfigFile = "tokenizer.json"

// Kind names a tokenizer family.
type Kind string

const (
	KindWordPiece Kind = "wordpiece"
	KindBPE       Kind = "bpe"
)

// Tokenizer converts text to ids. Tokenize returns content ids only;
// Prefix/Suffix are the special ids wrapped around every sequence.
type Tokenizer interface {
	Tokenize(text string) []int
	Prefix() []int
	Suffix() []int
	PadID() int
	VocabSize() int
	Kind() Kind
	// Save writes everything Load needs into dir.
	Save(dir string) error
}

// Encoding is a batch of padded sequences with matching attention masks.
type Encoding struct {
	IDs  [][]int
	Mask [][]int
}

// Len is the padded sequence length of the batch.
func (e Encoding) Len() int {
	if len(e.IDs) == 0 {
		return 0
	}
	return len(e.IDs[0])
}

// Encode wraps a single sentence in its special tokens, truncating the
// content so the result is at most maxLength ids.
func Encode(t Tokenizer, text string, maxLength int) []int {
	pre, suf := t.Prefix(), t.Suffix()
	content := t.Tokenize(text)
	if room := maxLength - len(pre) - len(suf); len(content) > room {
		if room < 0 {
			room = 0
		}
		content = content[:room]
	}
	ids := make([]int, 0, len(pre)+len(content)+len(suf))
	ids = append(ids, pre...)
	ids = append(ids, content...)
	ids = append(ids, suf...)
	return ids
}

// EncodeBatch tokenizes every sentence with truncation to maxLength and pads
// all of them to the longest resulting sequence.
func EncodeBatch(t Tokenizer, texts []string, maxLength int) Encoding {
	seqs := make([][]int, len(texts))
	longest := 0
	for i, text := range texts {
		seqs[i] = Encode(t, text, maxLength)
		if len(seqs[i]) > longest {
			longest = len(seqs[i])
		}
	}
	enc := Encoding{IDs: make([][]int, len(texts)), Mask: make([][]int, len(texts))}
	for i, seq := range seqs {
		ids := make([]int, longest)
		mask := make([]int, longest)
		copy(ids, seq)
		for j := range seq {
			mask[j] = 1
		}
		for j := len(seq); j < longest; j++ {
			ids[j] = t.PadID()
		}
		enc.IDs[i], enc.Mask[i] = ids, mask
	}
	return enc
}

type savedConfig struct {
	Kind      Kind   `json:"kind"`
	Lowercase bool   `json:"lowercase,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
	BaseVocab int    `json:"base_vocab,omitempty"`
}

func writeConfig(dir string, cfg savedConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokenizer config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFile), data, 0644)
}

// Load rebuilds a tokenizer previously written with Save.
func Load(dir string) (Tokenizer, error) {
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer config: %w", err)
	}
	var cfg savedConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tokenizer config: %w", err)
	}
	switch cfg.Kind {
	case KindWordPiece:
		return LoadWordPiece(filepath.Join(dir, VocabFile), cfg.Lowercase)
	case KindBPE:
		return NewBPE(cfg.Encoding, cfg.BaseVocab, cfg.Lowercase)
	default:
		return nil, fmt.Errorf("unknown tokenizer kind %q", cfg.Kind)
	}
}

// ErrEmptyVocab is returned when a vocabulary file has no entries.
var ErrEmptyVocab = errors.New("tokenizer: empty vocabulary")
