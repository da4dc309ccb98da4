package tokenizer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"the", "fed", "rate", "##s", "hike", ",", ".", "inflation", "cut", "café",
}

func newTestWordPiece(t *testing.T) *WordPiece {
	t.Helper()
	w, err := NewWordPiece(testVocab, true)
	require.NoError(t, err)
	return w
}

func TestWordPieceTokenize(t *testing.T) {
	w := newTestWordPiece(t)
	// "Rates" -> rate ##s, "," split off, unknown word -> [UNK]
	got := w.Tokenize("The Fed hike, Rates zzz.")
	require.Equal(t, []int{4, 5, 8, 9, 6, 7, 1, 10}, got)
}

func TestWordPieceStripsAccentsWhenLowercasing(t *testing.T) {
	w, err := NewWordPiece([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "cafe"}, true)
	require.NoError(t, err)
	require.Equal(t, []int{4}, w.Tokenize("CAFÉ"))
}

func TestWordPieceRequiresSpecialTokens(t *testing.T) {
	_, err := NewWordPiece([]string{"[PAD]", "the"}, true)
	require.Error(t, err)
	_, err = NewWordPiece(nil, true)
	require.ErrorIs(t, err, ErrEmptyVocab)
}

func TestEncodeBatchPadsToLongest(t *testing.T) {
	w := newTestWordPiece(t)
	enc := EncodeBatch(w, []string{"the fed", "inflation"}, 256)
	require.Equal(t, 4, enc.Len())
	require.Equal(t, []int{2, 4, 5, 3}, enc.IDs[0])
	require.Equal(t, []int{1, 1, 1, 1}, enc.Mask[0])
	require.Equal(t, []int{2, 11, 3, 0}, enc.IDs[1])
	require.Equal(t, []int{1, 1, 1, 0}, enc.Mask[1])
}

func TestEncodeTruncatesKeepingSpecials(t *testing.T) {
	w := newTestWordPiece(t)
	ids := Encode(w, "the fed cut the rate", 4)
	require.Equal(t, []int{2, 4, 5, 3}, ids)

	enc := EncodeBatch(w, []string{"the fed cut the rate", "the"}, 4)
	require.Equal(t, 4, enc.Len())
	for _, seq := range enc.IDs {
		require.LessOrEqual(t, len(seq), 4)
	}
}

func TestSaveLoadWordPiece(t *testing.T) {
	dir := t.TempDir()
	w := newTestWordPiece(t)
	require.NoError(t, w.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, KindWordPiece, loaded.Kind())
	require.Equal(t, w.VocabSize(), loaded.VocabSize())
	require.Equal(t, w.Tokenize("the fed hikes rates"), loaded.Tokenize("the fed hikes rates"))
}

func TestBPEKeepsCaseSetting(t *testing.T) {
	for _, lowercase := range []bool{false, true} {
		dir := t.TempDir()
		b := &BPE{encoding: "r50k_base", baseVocab: 50257, lowercase: lowercase}
		require.NoError(t, b.Save(dir))

		data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
		require.NoError(t, err)
		var cfg savedConfig
		require.NoError(t, json.Unmarshal(data, &cfg))
		require.Equal(t, KindBPE, cfg.Kind)
		require.Equal(t, lowercase, cfg.Lowercase)
	}
}

func TestLoadMissingConfig(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

type countingTokenizer struct {
	*WordPiece
	calls int
}

func (c *countingTokenizer) Tokenize(text string) []int {
	c.calls++
	return c.WordPiece.Tokenize(text)
}

func TestCachedTokenizerHitsCache(t *testing.T) {
	inner := &countingTokenizer{WordPiece: newTestWordPiece(t)}
	c := NewCached(inner, 1<<20)

	first := c.Tokenize("the fed cut rates")
	second := c.Tokenize("the fed cut rates")
	require.Equal(t, first, second)
	require.Equal(t, 1, inner.calls)

	require.Empty(t, c.Tokenize(""))
	require.Empty(t, c.Tokenize(""))
	require.Equal(t, 2, inner.calls)

	// Encode goes through the wrapper too.
	_ = Encode(c, "the fed cut rates", 16)
	require.Equal(t, 2, inner.calls)
}

func TestIDCodecRoundTrip(t *testing.T) {
	ids := []int{0, 1, 127, 128, 50256, 100276}
	require.Equal(t, ids, decodeIDs(encodeIDs(ids)))
}
