package tokenizer

import (
	"fmt"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// BPE is a byte-level BPE tokenizer backed by a tiktoken encoding. The
// classifier's special tokens sit directly above the encoding's base
// vocabulary: bos, eos, pad, unk.
type BPE struct {
	encoding  string
	enc       *tiktoken.Tiktoken
	baseVocab int
	lowercase bool
}

// NewBPE resolves a tiktoken encoding by name. Resolving may download the
// encoding's rank file when it is not cached locally, so it can fail on
// transient network errors. Byte-level models are case-sensitive; lowercase
// is only set for checkpoints trained on lowercased text.
func NewBPE(encoding string, baseVocab int, lowercase bool) (*BPE, error) {
	encoding = strings.TrimSpace(encoding)
	if encoding == "" {
		encoding = "r50k_base"
	}
	if baseVocab <= 0 {
		return nil, fmt.Errorf("bpe %s: base vocabulary size must be positive", encoding)
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading bpe encoding %s: %w", encoding, err)
	}
	return &BPE{encoding: encoding, enc: enc, baseVocab: baseVocab, lowercase: lowercase}, nil
}

func (b *BPE) bos() int { return b.baseVocab }
func (b *BPE) eos() int { return b.baseVocab + 1 }
func (b *BPE) unk() int { return b.baseVocab + 3 }

func (b *BPE) Prefix() []int  { return []int{b.bos()} }
func (b *BPE) Suffix() []int  { return []int{b.eos()} }
func (b *BPE) PadID() int     { return b.baseVocab + 2 }
func (b *BPE) VocabSize() int { return b.baseVocab + 4 }
func (b *BPE) Kind() Kind     { return KindBPE }

// Encoding is the tiktoken encoding name.
func (b *BPE) Encoding() string { return b.encoding }

func (b *BPE) Tokenize(text string) []int {
	if b.lowercase {
		text = strings.ToLower(text)
	}
	raw := b.enc.EncodeOrdinary(text)
	out := make([]int, len(raw))
	for i, id := range raw {
		if id < 0 || id >= b.baseVocab {
			id = b.unk()
		}
		out[i] = id
	}
	return out
}

func (b *BPE) Save(dir string) error {
	return writeConfig(dir, savedConfig{Kind: KindBPE, Encoding: b.encoding, BaseVocab: b.baseVocab, Lowercase: b.lowercase})
}
