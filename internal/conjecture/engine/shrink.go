package engine

import (
	"sort"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
	"github.com/conjecture-labs/conjecture/internal/conjecture/intminimize"
)

// shrinker drives one target down to a local minimum under predicate,
// re-running the cheap passes until a round makes no progress, then adding
// the more expensive passes to every later round until a round of all
// passes makes no progress.
type shrinker struct {
	predicate              func(data.TestResult) bool
	shrinkTarget           data.TestResult
	changes                int
	expensivePassesEnabled bool
	mainLoop               *mainLoop
}

func newShrinker(m *mainLoop, target data.TestResult, predicate func(data.TestResult) bool) *shrinker {
	if !predicate(target) {
		panic("conjecture: BUG: shrink target does not satisfy its own predicate")
	}
	return &shrinker{mainLoop: m, shrinkTarget: target, predicate: predicate}
}

// run repeats the pass set until a full round changes nothing. The first
// round in which the cheap passes change nothing turns the expensive passes
// on, and they stay on for every round after it.
func (s *shrinker) run() error {
	prev := s.changes + 1
	for prev != s.changes {
		prev = s.changes

		if err := s.adaptiveDelete(); err != nil {
			return err
		}
		if err := s.minimizeIndividualBlocks(); err != nil {
			return err
		}
		if err := s.minimizeDuplicatedBlocks(); err != nil {
			return err
		}

		if prev == s.changes {
			s.expensivePassesEnabled = true
		}
		if !s.expensivePassesEnabled {
			continue
		}

		if err := s.reorderBlocks(); err != nil {
			return err
		}
		if err := s.lowerAndDelete(); err != nil {
			return err
		}
		if err := s.deleteAllRanges(); err != nil {
			return err
		}
	}
	return nil
}

// execute runs buf through the main loop and reports whether it satisfies
// this shrinker's predicate.
func (s *shrinker) execute(buf []uint64) (bool, data.TestResult, error) {
	result, err := s.mainLoop.execute(data.NewRecordedSource(append([]uint64(nil), buf...)))
	if err != nil {
		return false, data.TestResult{}, err
	}
	return s.testPredicate(result), result, nil
}

// testPredicate checks result against the predicate and adopts it as the new
// shrink target only when the predicate holds and it is strictly smaller
// under the total order.
func (s *shrinker) testPredicate(result data.TestResult) bool {
	ok := s.predicate(result)
	if ok && result.Less(s.shrinkTarget) {
		s.changes++
		s.shrinkTarget = result
	}
	return ok
}

// incorporate validates buf against the shrink target's invariants (never
// longer, and strictly smaller when the same length) before spending an
// execution on it. A candidate that is merely the shrink target's record
// with a suffix removed is never improving on its own — the prefix would
// have already been tried — so it's rejected without an execution.
func (s *shrinker) incorporate(buf []uint64) (bool, error) {
	if len(buf) > len(s.shrinkTarget.Record) {
		panic("conjecture: BUG: incorporate candidate is longer than the shrink target")
	}
	if len(buf) == len(s.shrinkTarget.Record) && !wordsLess(buf, s.shrinkTarget.Record) {
		panic("conjecture: BUG: incorporate candidate is not smaller than the shrink target")
	}
	if startsWith(s.shrinkTarget.Record, buf) {
		return false, nil
	}
	ok, _, err := s.execute(buf)
	return ok, err
}

// tryDeleteRange greedily collects up to k non-overlapping draws starting
// at or after draw index i, then tries deleting all of them at once.
func (s *shrinker) tryDeleteRange(target data.TestResult, i, k int) (bool, error) {
	type span struct{ start, end int }
	var stack []span
	for _, d := range target.Draws[i:] {
		if len(stack) >= k {
			break
		}
		if len(stack) > 0 && d.Start < stack[len(stack)-1].end {
			continue
		}
		stack = append(stack, span{d.Start, d.End})
	}
	if len(stack) == 0 {
		return false, nil
	}

	attempt := append([]uint64(nil), target.Record...)
	for j := len(stack) - 1; j >= 0; j-- {
		sp := stack[j]
		attempt = append(attempt[:sp.start], attempt[sp.end:]...)
	}
	if len(attempt) >= len(s.shrinkTarget.Record) {
		return false, nil
	}
	return s.incorporate(attempt)
}

// adaptiveDelete probes, for each draw, how many consecutive draws from
// that point can be deleted at once, escalating from a cheap k=2 probe to
// an exponential search and finally a binary search for the largest
// deletable range.
func (s *shrinker) adaptiveDelete() error {
	target := s.shrinkTarget.Clone()
	for i := 0; i < len(target.Draws); i++ {
		ok2, err := s.tryDeleteRange(target, i, 2)
		if err != nil {
			return err
		}
		if !ok2 {
			if _, err := s.tryDeleteRange(target, i, 1); err != nil {
				return err
			}
			continue
		}

		ok3, err := s.tryDeleteRange(target, i, 3)
		if err != nil {
			return err
		}
		if !ok3 {
			continue
		}
		ok4, err := s.tryDeleteRange(target, i, 4)
		if err != nil {
			return err
		}
		if !ok4 {
			continue
		}

		hi := 5
		for {
			okHi, err := s.tryDeleteRange(target, i, hi)
			if err != nil {
				return err
			}
			if !okHi {
				break
			}
			hi *= 2
		}
		lo := 4
		for lo+1 < hi {
			mid := lo + (hi-lo)/2
			okMid, err := s.tryDeleteRange(target, i, mid)
			if err != nil {
				return err
			}
			if okMid {
				lo = mid
			} else {
				hi = mid
			}
		}
	}
	return nil
}

// minimizeIndividualBlocks minimizes each drawn word independently, leaving
// written (non-drawn) words untouched.
func (s *shrinker) minimizeIndividualBlocks() error {
	for i := 0; i < len(s.shrinkTarget.Record); i++ {
		if _, written := s.shrinkTarget.WrittenIndices[i]; written {
			continue
		}
		i := i
		var innerErr error
		intminimize.MinimizeInteger(s.shrinkTarget.Record[i], func(v uint64) bool {
			ok, err := s.tryLoweringValue(i, v)
			if err != nil {
				innerErr = err
				return false
			}
			return ok
		})
		if innerErr != nil {
			return innerErr
		}
	}
	return nil
}

// tryLoweringValue lowers record[i] to v. If that alone doesn't satisfy the
// predicate but the resulting record came back shorter (a later draw's
// shape depended on this value), it also tries trimming the words the
// shrink shed from just after i.
func (s *shrinker) tryLoweringValue(i int, v uint64) (bool, error) {
	if v >= s.shrinkTarget.Record[i] {
		return false, nil
	}
	attempt := append([]uint64(nil), s.shrinkTarget.Record...)
	attempt[i] = v
	ok, result, err := s.execute(attempt)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	lostBytes := len(s.shrinkTarget.Record) - len(result.Record)
	if result.Status.Kind == data.Valid && lostBytes > 0 && i+1+lostBytes <= len(attempt) {
		trimmed := append(append([]uint64(nil), attempt[:i+1]...), attempt[i+1+lostBytes:]...)
		return s.incorporate(trimmed)
	}
	return false, nil
}

type duplicateGroup struct {
	value   uint64
	indices []int
}

// calcDuplicates groups non-written record positions that currently share
// both value and bit width, since those are the positions a single
// intminimize.MinimizeInteger run can move together.
func (s *shrinker) calcDuplicates() []duplicateGroup {
	type key struct {
		value uint64
		size  uint8
	}
	groups := make(map[key][]int)
	var order []key
	for i, v := range s.shrinkTarget.Record {
		if _, written := s.shrinkTarget.WrittenIndices[i]; written {
			continue
		}
		k := key{v, s.shrinkTarget.Sizes[i]}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	result := make([]duplicateGroup, 0, len(order))
	for _, k := range order {
		idx := groups[k]
		if len(idx) > 1 {
			result = append(result, duplicateGroup{value: k.value, indices: idx})
		}
	}
	sort.Slice(result, func(a, b int) bool { return len(result[a].indices) > len(result[b].indices) })
	return result
}

// minimizeDuplicatedBlocks minimizes every position of a duplicate group in
// lockstep, so equal values that must stay equal (e.g. a length recorded
// twice) shrink together instead of getting pulled apart.
func (s *shrinker) minimizeDuplicatedBlocks() error {
	groups := s.calcDuplicates()
	for gi := 0; gi < len(groups); gi++ {
		g := groups[gi]
		var innerErr error
		intminimize.MinimizeInteger(g.value, func(v uint64) bool {
			attempt := append([]uint64(nil), s.shrinkTarget.Record...)
			changed := false
			for _, idx := range g.indices {
				if idx < len(attempt) && attempt[idx] != v {
					attempt[idx] = v
					changed = true
				}
			}
			if !changed {
				return false
			}
			ok, err := s.incorporate(attempt)
			if err != nil {
				innerErr = err
				return false
			}
			return ok
		})
		if innerErr != nil {
			return innerErr
		}
		groups = s.calcDuplicates()
	}
	return nil
}

// reorderBlocks swaps a larger value at position i with a smaller one found
// later, for every such pair. It stops scanning a position's partners as
// soon as record[i] is 0, since there is nothing smaller to swap in.
func (s *shrinker) reorderBlocks() error {
	for i := 0; i < len(s.shrinkTarget.Record); i++ {
		for j := i + 1; j < len(s.shrinkTarget.Record); j++ {
			if s.shrinkTarget.Record[i] == 0 {
				break
			}
			if s.shrinkTarget.Record[j] >= s.shrinkTarget.Record[i] {
				continue
			}
			attempt := append([]uint64(nil), s.shrinkTarget.Record...)
			attempt[i], attempt[j] = attempt[j], attempt[i]
			if _, err := s.incorporate(attempt); err != nil {
				return err
			}
		}
	}
	return nil
}

// lowerAndDelete decrements each nonzero value by one and, when that alone
// doesn't satisfy the predicate but still shortens the record, additionally
// tries dropping each later draw entirely.
func (s *shrinker) lowerAndDelete() error {
	for i := 0; i < len(s.shrinkTarget.Record); i++ {
		if s.shrinkTarget.Record[i] == 0 {
			continue
		}
		attempt := append([]uint64(nil), s.shrinkTarget.Record...)
		attempt[i]--
		ok, result, err := s.execute(attempt)
		if err != nil {
			return err
		}
		if ok || len(result.Record) >= len(s.shrinkTarget.Record) {
			continue
		}
		for _, d := range s.shrinkTarget.Draws {
			if d.Start <= i {
				continue
			}
			trimmed := append(append([]uint64(nil), attempt[:d.Start]...), attempt[d.End:]...)
			ok2, err := s.incorporate(trimmed)
			if err != nil {
				return err
			}
			if ok2 {
				break
			}
		}
	}
	return nil
}

// deleteAllRanges is the exhaustive fallback: try deleting every contiguous
// range of the record, growing the range on failure and only moving the
// start once nothing starting there shrinks anything.
func (s *shrinker) deleteAllRanges() error {
	i := 0
	for i < len(s.shrinkTarget.Record) {
		startLength := len(s.shrinkTarget.Record)
		j := i + 1
		for j <= len(s.shrinkTarget.Record) {
			attempt := append(append([]uint64(nil), s.shrinkTarget.Record[:i]...), s.shrinkTarget.Record[j:]...)
			ok, err := s.incorporate(attempt)
			if err != nil {
				return err
			}
			if !ok {
				j++
			}
		}
		if len(s.shrinkTarget.Record) == startLength {
			i++
		}
	}
	return nil
}
