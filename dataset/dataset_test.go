package dataset

import (
	"path/filepath"
	"strings"
	"testing"

	"hawkdove/tokenizer"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFilterDropsOnlyNonStrings(t *testing.T) {
	raw := []RawExample{
		{Sentence: "rates will rise", Label: 1},
		{Sentence: 3.5, Label: 0},
		{Sentence: nil, Label: 2},
		{Sentence: "", Label: 2},
		{Sentence: true, Label: 0},
		{Sentence: "policy on hold", Label: 2},
	}
	got := Filter(raw)
	require.Equal(t, []Example{
		{Sentence: "rates will rise", Label: 1},
		{Sentence: "", Label: 2},
		{Sentence: "policy on hold", Label: 2},
	}, got)

	kept := 0
	for _, r := range raw {
		if _, ok := r.Sentence.(string); ok {
			kept++
		}
	}
	require.Len(t, got, kept)
}

func TestReadCSV(t *testing.T) {
	in := "label,sentence\n1,the fed will hike\n0,\n,\n2,\"rates, unchanged\"\n"
	raw, err := ReadCSV("test.csv", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, raw, 4)
	require.Equal(t, "the fed will hike", raw[0].Sentence)
	require.Nil(t, raw[1].Sentence)
	require.Nil(t, raw[2].Sentence)
	require.Equal(t, NoLabel, raw[2].Label)
	require.Equal(t, "rates, unchanged", raw[3].Sentence)
	require.Equal(t, 2, raw[3].Label)
	require.Len(t, Filter(raw), 2)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV("x.csv", strings.NewReader("text,label\na,1\n"))
	require.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadCSV("x.csv", strings.NewReader("sentence,label\na,7\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "row 2")

	_, err = ReadCSV("x.csv", strings.NewReader("sentence,label\na,1.5\n"))
	require.Error(t, err)
}

func TestReadXLSXTypesCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train-5768.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"sentence", "label"},
		{"inflation pressures are building", 1},
		{42, 0},
		{nil, 2},
		{7, nil},
		{nil, "n/a"},
		{"growth is moderate", 2.0},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	raw, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, 6)
	require.Equal(t, "inflation pressures are building", raw[0].Sentence)
	require.IsType(t, float64(0), raw[1].Sentence)
	require.Nil(t, raw[2].Sentence)
	require.Equal(t, NoLabel, raw[3].Label)
	require.Equal(t, NoLabel, raw[4].Label)
	require.Equal(t, 2, raw[5].Label)

	examples, err := Load(path)
	require.NoError(t, err)
	require.Len(t, examples, 2)
}

func TestSplitSizes(t *testing.T) {
	for _, n := range []int{0, 1, 4, 5, 9, 10, 11, 99, 1234} {
		train, val := SplitSizes(n, ValFraction)
		require.Equal(t, n, train+val)
		require.Equal(t, int(float64(n)*0.2), val)
	}
}

func seqDataset(n int) *Dataset {
	d := &Dataset{Items: make([]Item, n)}
	for i := range d.Items {
		d.Items[i] = Item{Label: i % NumLabels}
		d.Items[i].Tokens.IDs = []int{i}
	}
	return d
}

func TestSplitIsSeededPartition(t *testing.T) {
	d := seqDataset(53)
	train, val, err := Split(d, 5768, ValFraction)
	require.NoError(t, err)
	require.Equal(t, 43, train.Len())
	require.Equal(t, 10, val.Len())

	seen := make(map[int]bool)
	for _, it := range append(append([]Item{}, train.Items...), val.Items...) {
		id := it.Tokens.IDs[0]
		require.False(t, seen[id])
		seen[id] = true
	}
	require.Len(t, seen, 53)

	train2, val2, err := Split(d, 5768, ValFraction)
	require.NoError(t, err)
	require.Equal(t, train.Items, train2.Items)
	require.Equal(t, val.Items, val2.Items)

	other, _, err := Split(d, 78516, ValFraction)
	require.NoError(t, err)
	require.NotEqual(t, train.Items, other.Items)
}

func TestSourceIntnRange(t *testing.T) {
	src, err := NewSource(1)
	require.NoError(t, err)
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		v := src.Intn(3)
		require.GreaterOrEqual(t, v, 0)
		require.Less(t, v, 3)
		counts[v]++
	}
	for _, c := range counts {
		require.Greater(t, c, 800)
	}
}

func TestLoaderBatches(t *testing.T) {
	d := seqDataset(10)
	src, err := NewSource(3)
	require.NoError(t, err)
	l, err := NewLoader(d, 4, true, src)
	require.NoError(t, err)
	require.Equal(t, 3, l.NumBatches())

	batches := l.Epoch()
	require.Len(t, batches, 3)
	require.Len(t, batches[2], 2)
	seen := make(map[int]bool)
	for _, b := range batches {
		for _, it := range b {
			seen[it.Tokens.IDs[0]] = true
		}
	}
	require.Len(t, seen, 10)

	plain, err := NewLoader(d, 4, false, nil)
	require.NoError(t, err)
	require.Equal(t, 0, plain.Epoch()[0][0].Tokens.IDs[0])

	_, err = NewLoader(d, 0, false, nil)
	require.Error(t, err)
}

func TestBuildPadsToLongest(t *testing.T) {
	tok, err := tokenizer.NewWordPiece([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "the", "fed", "hike"}, true)
	require.NoError(t, err)
	d := Build(tok, []Example{{Sentence: "the fed hike", Label: 1}, {Sentence: "fed", Label: 0}}, 256)
	require.Equal(t, 2, d.Len())
	require.Equal(t, []int{2, 4, 5, 6, 3}, d.Items[0].Tokens.IDs)
	require.Equal(t, []int{2, 5, 3, 0, 0}, d.Items[1].Tokens.IDs)
	require.Equal(t, []int{1, 1, 1, 0, 0}, d.Items[1].Tokens.Mask)
	require.Equal(t, 1, d.Items[0].Label)
	require.Equal(t, 0, d.Items[1].Label)
}
