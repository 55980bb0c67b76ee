// Package distributions implements the small library of primitive value
// distributions generators are built from: weighted booleans, bounded
// integers, a repeat-count controller, and a weighted alias sampler.
// Every distribution draws exclusively through a data.DataSource, so its
// choices are recorded and can be replayed and shrunk like any other draw.
package distributions

import (
	"container/heap"
	"math/bits"
	"sort"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
)

// Weighted draws a boolean that is true with probability p, 0 <= p <= 1.
// The decision is made from a single 64-bit draw compared against a
// threshold, so it costs exactly one word of the record.
func Weighted(source *data.DataSource, p float64) (bool, error) {
	if p <= 0 {
		return drawFixed(source, 0)
	}
	if p >= 1 {
		return drawFixed(source, 1)
	}
	threshold := uint64(p * float64(^uint64(0)))
	v, err := source.Bits(64)
	if err != nil {
		return false, err
	}
	return v <= threshold, nil
}

func drawFixed(source *data.DataSource, v uint64) (bool, error) {
	if err := source.Write(v); err != nil {
		return false, err
	}
	return v != 0, nil
}

// BoundedInt draws a uniformly distributed integer in [0, max] using
// rejection sampling on the minimal bit width that can represent max.
func BoundedInt(source *data.DataSource, max uint64) (uint64, error) {
	if max == 0 {
		if err := source.Write(0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	width := uint8(bits.Len64(max))
	for {
		v, err := source.Bits(width)
		if err != nil {
			return 0, err
		}
		if v <= max {
			return v, nil
		}
	}
}

// Repeat drives a bounded-count loop: ShouldContinue returns whether the
// caller should perform one more iteration, forcing true below MinCount and
// false at MaxCount, and otherwise flipping a PContinue-weighted coin.
type Repeat struct {
	MinCount     uint64
	MaxCount     uint64
	PContinue    float64
	currentCount uint64
}

// NewRepeat constructs a Repeat controller over [minCount, maxCount] with
// the given per-iteration continuation probability.
func NewRepeat(minCount, maxCount uint64, pContinue float64) *Repeat {
	return &Repeat{MinCount: minCount, MaxCount: maxCount, PContinue: pContinue}
}

// ShouldContinue reports whether another iteration should run, and advances
// the internal count.
func (r *Repeat) ShouldContinue(source *data.DataSource) (bool, error) {
	if r.currentCount < r.MinCount {
		if err := source.Write(1); err != nil {
			return false, err
		}
		r.currentCount++
		return true, nil
	}
	if r.currentCount >= r.MaxCount {
		if err := source.Write(0); err != nil {
			return false, err
		}
		return false, nil
	}
	cont, err := Weighted(source, r.PContinue)
	if err != nil {
		return false, err
	}
	if cont {
		r.currentCount++
	}
	return cont, nil
}

// samplerEntry is one slot of the alias table: a draw landing in this slot
// resolves to Primary unless it falls in the alternate region, in which case
// it resolves to Alternate.
type samplerEntry struct {
	primary     uint64
	alternate   uint64
	useAlternate uint64 // threshold, out of the sampler's per-slot scale
}

// Sampler draws indices from a fixed weighted distribution in O(1) per draw
// via Vose's alias method.
type Sampler struct {
	table []samplerEntry
}

// NewSampler builds the alias table for the given non-negative weights.
// Weights need not sum to anything in particular; they are normalized
// internally.
func NewSampler(weights []float64) *Sampler {
	n := len(weights)
	table := make([]samplerEntry, n)
	if n == 0 {
		return &Sampler{table: table}
	}

	scaled := make([]float64, n)
	var total float64
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		total = 1
	}
	for i, w := range weights {
		scaled[i] = w * float64(n) / total
	}

	small := &indexHeap{}
	large := &indexHeap{}
	heap.Init(small)
	heap.Init(large)
	for i, s := range scaled {
		if s < 1 {
			heap.Push(small, i)
		} else {
			heap.Push(large, i)
		}
	}

	const scale = uint64(1) << 32
	for small.Len() > 0 && large.Len() > 0 {
		lo := heap.Pop(small).(int)
		hi := heap.Pop(large).(int)
		table[lo] = samplerEntry{
			primary:      uint64(lo),
			alternate:    uint64(hi),
			useAlternate: uint64(scaled[lo] * float64(scale)),
		}
		scaled[hi] = scaled[hi] + scaled[lo] - 1
		if scaled[hi] < 1 {
			heap.Push(small, hi)
		} else {
			heap.Push(large, hi)
		}
	}
	for small.Len() > 0 {
		i := heap.Pop(small).(int)
		table[i] = samplerEntry{primary: uint64(i), alternate: uint64(i), useAlternate: scale}
	}
	for large.Len() > 0 {
		i := heap.Pop(large).(int)
		table[i] = samplerEntry{primary: uint64(i), alternate: uint64(i), useAlternate: scale}
	}

	return &Sampler{table: table}
}

// Sample draws one index in [0, len(weights)).
func (s *Sampler) Sample(source *data.DataSource) (uint64, error) {
	n := uint64(len(s.table))
	if n == 0 {
		return 0, nil
	}
	slot, err := BoundedInt(source, n-1)
	if err != nil {
		return 0, err
	}
	entry := s.table[slot]
	const scale = uint64(1) << 32
	coin, err := BoundedInt(source, scale-1)
	if err != nil {
		return 0, err
	}
	if coin < entry.useAlternate {
		return entry.primary, nil
	}
	return entry.alternate, nil
}

// goodBitlengths is a small table of bit widths weighted toward the ones
// that tend to expose the most bugs: very small, and the byte/word
// boundaries up to 64 bits.
func goodBitlengths() (lengths []uint8, weights []float64) {
	table := []struct {
		width  uint8
		weight float64
	}{
		{1, 4}, {2, 4}, {4, 4}, {8, 16}, {16, 8}, {24, 4},
		{32, 8}, {40, 2}, {48, 2}, {56, 2}, {64, 9},
	}
	for _, e := range table {
		lengths = append(lengths, e.width)
		weights = append(weights, e.weight)
	}
	return lengths, weights
}

// IntegerFromBitlengths draws a signed integer whose magnitude's bit width
// is chosen from goodBitlengths, then its sign, matching the integer
// distribution the reference engine uses for its own int generator.
func IntegerFromBitlengths(source *data.DataSource, sampler *Sampler) (int64, error) {
	lengths, _ := goodBitlengths()
	idx, err := sampler.Sample(source)
	if err != nil {
		return 0, err
	}
	width := lengths[idx%uint64(len(lengths))]
	magnitude, err := source.Bits(width)
	if err != nil {
		return 0, err
	}
	negative, err := Weighted(source, 0.5)
	if err != nil {
		return 0, err
	}
	if negative {
		return -int64(magnitude), nil
	}
	return int64(magnitude), nil
}

// NewBitlengthSampler builds the alias sampler over goodBitlengths' weights,
// for callers that want to share one sampler across many
// IntegerFromBitlengths draws.
func NewBitlengthSampler() *Sampler {
	_, weights := goodBitlengths()
	return NewSampler(weights)
}

// indexHeap is a min-heap of slot indices, used as the "small"/"large"
// worklists in the alias table construction.
type indexHeap []int

func (h indexHeap) Len() int            { return len(h) }
func (h indexHeap) Less(i, j int) bool   { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)        { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x interface{})  { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

var _ sort.Interface = indexHeap{}
