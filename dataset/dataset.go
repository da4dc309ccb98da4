package dataset

import (
	"encoding/binary"
	"fmt"

	"hawkdove/nn/layers"
	"hawkdove/tokenizer"

	"github.com/tuneinsight/lattigo/v5/utils/sampling"
)

// ValFraction is the share of examples held out for validation.
const ValFraction = 0.2

// Item is one tokenized, padded example.
type Item struct {
	Tokens layers.Tokens
	Label  int
}

// Dataset is a list of tokenized examples padded to a common length.
type Dataset struct {
	Items []Item
}

func (d *Dataset) Len() int { return len(d.Items) }

// Build tokenizes every sentence in one batch, truncating to maxLength and
// padding to the longest sequence.
func Build(tok tokenizer.Tokenizer, examples []Example, maxLength int) *Dataset {
	texts := make([]string, len(examples))
	for i, ex := range examples {
		texts[i] = ex.Sentence
	}
	enc := tokenizer.EncodeBatch(tok, texts, maxLength)
	d := &Dataset{Items: make([]Item, len(examples))}
	for i, ex := range examples {
		d.Items[i] = Item{
			Tokens: layers.Tokens{IDs: enc.IDs[i], Mask: enc.Mask[i]},
			Label:  ex.Label,
		}
	}
	return d
}

// SplitSizes returns the train and validation sizes for n examples, with
// validation = floor(fraction*n).
func SplitSizes(n int, fraction float64) (train, val int) {
	val = int(float64(n) * fraction)
	return n - val, val
}

// Split partitions d into train and validation sets by a random
// permutation seeded by seed. The same seed always yields the same split.
func Split(d *Dataset, seed int64, fraction float64) (train, val *Dataset, err error) {
	if fraction < 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("validation fraction %v out of range [0, 1)", fraction)
	}
	nTrain, _ := SplitSizes(d.Len(), fraction)
	src, err := NewSource(seed)
	if err != nil {
		return nil, nil, err
	}
	perm := src.Perm(d.Len())
	train = &Dataset{Items: make([]Item, 0, nTrain)}
	val = &Dataset{Items: make([]Item, 0, d.Len()-nTrain)}
	for i, idx := range perm {
		if i < nTrain {
			train.Items = append(train.Items, d.Items[idx])
		} else {
			val.Items = append(val.Items, d.Items[idx])
		}
	}
	return train, val, nil
}

// Source is a deterministic integer stream keyed by an experiment seed.
type Source struct {
	prng *sampling.KeyedPRNG
	buf  [8]byte
}

// NewSource keys a PRNG with the big-endian bytes of seed.
func NewSource(seed int64) (*Source, error) {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(seed))
	prng, err := sampling.NewKeyedPRNG(key)
	if err != nil {
		return nil, fmt.Errorf("seeding prng: %w", err)
	}
	return &Source{prng: prng}, nil
}

func (s *Source) next64() uint64 {
	if _, err := s.prng.Read(s.buf[:]); err != nil {
		panic(fmt.Sprintf("prng read: %v", err))
	}
	return binary.BigEndian.Uint64(s.buf[:])
}

// Intn returns a uniform integer in [0, n) without modulo bias.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("Intn: non-positive n")
	}
	bound := uint64(n)
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		v := s.next64()
		if v < limit {
			return int(v % bound)
		}
	}
}

// Perm returns a random permutation of [0, n).
func (s *Source) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	s.Shuffle(p)
	return p
}

// Shuffle permutes idx in place (Fisher-Yates).
func (s *Source) Shuffle(idx []int) {
	for i := len(idx) - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
}

// Loader serves a dataset in batches, reshuffled every epoch when Shuffle
// is set.
type Loader struct {
	Data      *Dataset
	BatchSize int
	Shuffle   bool

	src   *Source
	order []int
}

func NewLoader(d *Dataset, batchSize int, shuffle bool, src *Source) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if shuffle && src == nil {
		return nil, fmt.Errorf("shuffling loader needs a source")
	}
	return &Loader{Data: d, BatchSize: batchSize, Shuffle: shuffle, src: src}, nil
}

// NumBatches is ceil(len/batch).
func (l *Loader) NumBatches() int {
	return (l.Data.Len() + l.BatchSize - 1) / l.BatchSize
}

// Epoch returns the batches for one pass over the data. The last batch may
// be short.
func (l *Loader) Epoch() [][]Item {
	n := l.Data.Len()
	if l.order == nil {
		l.order = make([]int, n)
	}
	for i := range l.order {
		l.order[i] = i
	}
	if l.Shuffle {
		l.src.Shuffle(l.order)
	}
	batches := make([][]Item, 0, l.NumBatches())
	for start := 0; start < n; start += l.BatchSize {
		end := start + l.BatchSize
		if end > n {
			end = n
		}
		batch := make([]Item, end-start)
		for i, idx := range l.order[start:end] {
			batch[i] = l.Data.Items[idx]
		}
		batches = append(batches, batch)
	}
	return batches
}
