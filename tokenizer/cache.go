package tokenizer

import (
	"encoding/binary"

	"github.com/VictoriaMetrics/fastcache"
)

// Cached memoizes Tokenize results. A sweep re-tokenizes the same train and
// test sentences for every experiment, so the cache outlives a single run.
type Cached struct {
	Tokenizer
	cache *fastcache.Cache
}

// NewCached wraps t with an in-memory cache of at most maxBytes.
func NewCached(t Tokenizer, maxBytes int) *Cached {
	return &Cached{Tokenizer: t, cache: fastcache.New(maxBytes)}
}

func (c *Cached) Tokenize(text string) []int {
	key := []byte(text)
	if buf, ok := c.cache.HasGet(nil, key); ok {
		return decodeIDs(buf)
	}
	ids := c.Tokenizer.Tokenize(text)
	c.cache.Set(key, encodeIDs(ids))
	return ids
}

// Stats reports cache hits and misses.
func (c *Cached) Stats() (hits, misses uint64) {
	var s fastcache.Stats
	c.cache.UpdateStats(&s)
	return s.GetCalls - s.Misses, s.Misses
}

// Reset drops every cached entry.
func (c *Cached) Reset() { c.cache.Reset() }

func encodeIDs(ids []int) []byte {
	buf := make([]byte, 0, len(ids)*2)
	for _, id := range ids {
		buf = binary.AppendUvarint(buf, uint64(id))
	}
	return buf
}

func decodeIDs(buf []byte) []int {
	ids := make([]int, 0, len(buf))
	for len(buf) > 0 {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			break
		}
		ids = append(ids, int(v))
		buf = buf[n:]
	}
	return ids
}
