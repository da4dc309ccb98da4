package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// VocabFile is the WordPiece vocabulary file name, one token per line.
const VocabFile = "vocab.txt"

const (
	tokenCLS = "[CLS]"
	tokenSEP = "[SEP]"
	tokenPAD = "[PAD]"
	tokenUNK = "[UNK]"

	maxCharsPerWord = 100
)

// WordPiece is a BERT-style tokenizer: basic whitespace/punctuation
// splitting followed by greedy longest-match subword lookup.
type WordPiece struct {
	vocab     map[string]int
	tokens    []string
	lowercase bool

	cls, sep, pad, unk int
}

// LoadWordPiece reads a vocab.txt file.
func LoadWordPiece(path string, lowercase bool) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	return NewWordPiece(tokens, lowercase)
}

// NewWordPiece builds a tokenizer from an in-memory vocabulary. The four
// BERT special tokens must be present.
func NewWordPiece(tokens []string, lowercase bool) (*WordPiece, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyVocab
	}
	w := &WordPiece{vocab: make(map[string]int, len(tokens)), tokens: tokens, lowercase: lowercase}
	for i, t := range tokens {
		if _, dup := w.vocab[t]; !dup {
			w.vocab[t] = i
		}
	}
	for _, s := range []struct {
		name string
		dst  *int
	}{{tokenCLS, &w.cls}, {tokenSEP, &w.sep}, {tokenPAD, &w.pad}, {tokenUNK, &w.unk}} {
		id, ok := w.vocab[s.name]
		if !ok {
			return nil, fmt.Errorf("vocabulary is missing special token %s", s.name)
		}
		*s.dst = id
	}
	return w, nil
}

func (w *WordPiece) Prefix() []int  { return []int{w.cls} }
func (w *WordPiece) Suffix() []int  { return []int{w.sep} }
func (w *WordPiece) PadID() int     { return w.pad }
func (w *WordPiece) VocabSize() int { return len(w.tokens) }
func (w *WordPiece) Kind() Kind     { return KindWordPiece }

func (w *WordPiece) Tokenize(text string) []int {
	var ids []int
	for _, word := range w.basicSplit(text) {
		ids = append(ids, w.wordPiece(word)...)
	}
	return ids
}

// basicSplit lowercases, strips accents, and separates punctuation and CJK
// characters into their own words.
func (w *WordPiece) basicSplit(text string) []string {
	if w.lowercase {
		text = stripAccents(strings.ToLower(text))
	}
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		case unicode.IsSpace(r):
			flush()
		case isPunct(r) || isCJK(r):
			flush()
			words = append(words, string(r))
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

func (w *WordPiece) wordPiece(word string) []int {
	runes := []rune(word)
	if len(runes) > maxCharsPerWord {
		return []int{w.unk}
	}
	var ids []int
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.vocab[sub]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return []int{w.unk}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

func (w *WordPiece) Save(dir string) error {
	f, err := os.Create(filepath.Join(dir, VocabFile))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, t := range w.tokens {
		if _, err := bw.WriteString(t + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("writing vocabulary: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing vocabulary: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return writeConfig(dir, savedConfig{Kind: KindWordPiece, Lowercase: w.lowercase})
}

func stripAccents(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isPunct treats all non-alphanumeric ASCII as punctuation, as BERT does.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
