package layers

import (
	"fmt"

	"hawkdove/nn"
	"hawkdove/tensor"
)

// Tokens is one encoded sentence: ids plus the attention mask (1 = real
// token, 0 = padding).
type Tokens struct {
	IDs  []int
	Mask []int
}

// Embedding maps a token sequence to a single vector: token and position
// embeddings are summed per position and averaged over unmasked positions.
type Embedding struct {
	Token    *nn.Param
	Position *nn.Param

	vocab, maxLen, dim int

	last      Tokens
	lastCount int
}

func NewEmbedding(vocab, maxLen, dim int) *Embedding {
	return &Embedding{
		Token:    nn.NewParam("embeddings.token", vocab, dim),
		Position: nn.NewParam("embeddings.position", maxLen, dim),
		vocab:    vocab,
		maxLen:   maxLen,
		dim:      dim,
	}
}

func (e *Embedding) Dim() int    { return e.dim }
func (e *Embedding) Vocab() int  { return e.vocab }
func (e *Embedding) MaxLen() int { return e.maxLen }

func (e *Embedding) Forward(input interface{}) (interface{}, error) {
	in, ok := input.(Tokens)
	if !ok {
		return nil, fmt.Errorf("embedding expects layers.Tokens input, got %T", input)
	}
	if len(in.IDs) != len(in.Mask) {
		return nil, fmt.Errorf("embedding: %d ids but %d mask entries", len(in.IDs), len(in.Mask))
	}
	if len(in.IDs) > e.maxLen {
		return nil, fmt.Errorf("embedding: sequence length %d exceeds %d", len(in.IDs), e.maxLen)
	}
	out := tensor.New(e.dim)
	count := 0
	for pos, id := range in.IDs {
		if in.Mask[pos] == 0 {
			continue
		}
		if id < 0 || id >= e.vocab {
			return nil, fmt.Errorf("embedding: token id %d outside vocabulary of %d", id, e.vocab)
		}
		tok := e.Token.Value.Row(id)
		p := e.Position.Value.Row(pos)
		for j := range out.Data {
			out.Data[j] += tok[j] + p[j]
		}
		count++
	}
	if count > 0 {
		inv := 1 / float64(count)
		for j := range out.Data {
			out.Data[j] *= inv
		}
	}
	e.last, e.lastCount = in, count
	return out, nil
}

// Backward scatters the pooled gradient back onto the rows that were used.
// There is nothing below the embedding, so it returns nil.
func (e *Embedding) Backward(gradOut interface{}) (interface{}, error) {
	g, ok := gradOut.(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("embedding expects *tensor.Tensor gradOut, got %T", gradOut)
	}
	if e.lastCount == 0 {
		return nil, nil
	}
	inv := 1 / float64(e.lastCount)
	for pos, id := range e.last.IDs {
		if e.last.Mask[pos] == 0 {
			continue
		}
		tok := e.Token.Grad.Row(id)
		p := e.Position.Grad.Row(pos)
		for j, v := range g.Data {
			tok[j] += v * inv
			p[j] += v * inv
		}
	}
	return nil, nil
}

func (e *Embedding) Params() []*nn.Param { return []*nn.Param{e.Token, e.Position} }

func (e *Embedding) Tag() string {
	return fmt.Sprintf("Embedding(vocab=%d, len=%d, dim=%d)", e.vocab, e.maxLen, e.dim)
}
