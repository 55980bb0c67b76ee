package data

import (
	"math/rand"
	"testing"

	"github.com/conjecture-labs/conjecture/internal/testrunner/assert"
)

func TestBitsMasksToWidth(t *testing.T) {
	src := NewRandomSource(rand.New(rand.NewSource(1)))
	for k := uint8(1); k < 64; k++ {
		v, err := src.Bits(k)
		if err != nil {
			t.Fatalf("bits(%d): %v", k, err)
		}
		if v >= uint64(1)<<k {
			t.Fatalf("bits(%d) = %d, want < 2^%d", k, v, k)
		}
	}
}

func TestBits64ReturnsFullWord(t *testing.T) {
	src := NewRecordedSource([]uint64{0xFFFFFFFFFFFFFFFF})
	v, err := src.Bits(64)
	if err != nil {
		t.Fatalf("bits(64): %v", err)
	}
	if v != 0xFFFFFFFFFFFFFFFF {
		t.Fatalf("bits(64) = %#x, want full word unmasked", v)
	}
}

func TestRecordedSourceFailsWhenExhausted(t *testing.T) {
	src := NewRecordedSource(nil)
	if _, err := src.Bits(8); err == nil {
		t.Fatal("expected FailedDraw from an empty recorded source")
	}
	if err := src.Write(1); err == nil {
		t.Fatal("expected FailedDraw on write to an empty recorded source")
	}
}

func TestWriteMarksWrittenIndexAndSizeZero(t *testing.T) {
	src := NewRecordedSource([]uint64{7})
	if err := src.Write(99); err != nil {
		t.Fatalf("write: %v", err)
	}
	result := src.IntoResult(StatusValid())
	if result.Sizes[0] != 0 {
		t.Fatalf("sizes[0] = %d, want 0 for a write", result.Sizes[0])
	}
	if _, ok := result.WrittenIndices[0]; !ok {
		t.Fatal("index 0 should be in WrittenIndices")
	}
	if result.Record[0] != 99 {
		t.Fatalf("record[0] = %d, want 99 (unmasked)", result.Record[0])
	}
}

func TestDrawNestingRecordsDepthAndSpan(t *testing.T) {
	src := NewRecordedSource([]uint64{1, 2, 3, 4})
	src.StartDraw() // depth 0
	if _, err := src.Bits(8); err != nil {
		t.Fatal(err)
	}
	src.StartDraw() // depth 1, nested
	if _, err := src.Bits(8); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Bits(8); err != nil {
		t.Fatal(err)
	}
	src.StopDraw() // close depth 1
	src.StopDraw() // close depth 0

	result := src.IntoResult(StatusValid())
	if len(result.Draws) != 2 {
		t.Fatalf("got %d draws, want 2", len(result.Draws))
	}
	outer, inner := result.Draws[0], result.Draws[1]
	if outer.Depth != 0 || outer.Start != 0 || outer.End != 3 {
		t.Fatalf("outer draw = %+v, want depth=0 start=0 end=3", outer)
	}
	if inner.Depth != 1 || inner.Start != 1 || inner.End != 3 {
		t.Fatalf("inner draw = %+v, want depth=1 start=1 end=3", inner)
	}
}

func TestUnclosedDrawDroppedAndRequiresInvalidOrOverflow(t *testing.T) {
	src := NewRecordedSource([]uint64{1})
	src.StartDraw()
	if _, err := src.Bits(8); err != nil {
		t.Fatal(err)
	}
	// Never StopDraw: the draw stays open.
	result := src.IntoResult(StatusInvalid())
	if len(result.Draws) != 0 {
		t.Fatalf("unclosed draw should be dropped, got %v", result.Draws)
	}
}

func TestUnclosedDrawPanicsOnValidStatus(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic when an unclosed draw decays into a Valid result")
		}
	}()
	src := NewRecordedSource([]uint64{1})
	src.StartDraw()
	_, _ = src.Bits(8)
	src.IntoResult(StatusValid())
}

func TestEmptyDrawIsNotRetained(t *testing.T) {
	src := NewRecordedSource([]uint64{1})
	src.StartDraw()
	src.StopDraw() // start == end
	result := src.IntoResult(StatusValid())
	if len(result.Draws) != 0 {
		t.Fatalf("an empty draw (start == end) must not be retained, got %v", result.Draws)
	}
}

func TestResultOrderPrefersShorterThenLexicographic(t *testing.T) {
	short := TestResult{Record: []uint64{5, 5}}
	long := TestResult{Record: []uint64{1, 1, 1}}
	assert.RecordLess(t, short, long, "a shorter record must be Less regardless of lexicographic content")

	a := TestResult{Record: []uint64{1, 2}}
	b := TestResult{Record: []uint64{1, 3}}
	assert.RecordLess(t, a, b, "same-length records must compare lexicographically")
	assert.False(t, b.Less(a), "lexicographically larger record must not be Less")
}

func TestResultEqualityIsRecordEquality(t *testing.T) {
	a := TestResult{Record: []uint64{1, 2, 3}, Status: StatusValid()}
	b := TestResult{Record: []uint64{1, 2, 3}, Status: StatusInteresting(9)}
	assert.RecordEqual(t, a, b, "results with identical records must be Equal regardless of status")
}
