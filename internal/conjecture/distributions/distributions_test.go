package distributions

import (
	"math/rand"
	"testing"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
)

func TestWeightedExtremesAreFixed(t *testing.T) {
	// Each fixed extreme writes one word, and a recorded source only accepts
	// writes while it still has recorded words left.
	source := data.NewRecordedSource([]uint64{0, 0})
	v, err := Weighted(source, 0)
	if err != nil || v != false {
		t.Fatalf("Weighted(p=0) = %v, %v; want false, nil", v, err)
	}
	v, err = Weighted(source, 1)
	if err != nil || v != true {
		t.Fatalf("Weighted(p=1) = %v, %v; want true, nil", v, err)
	}
}

func TestWeightedSkewsTowardProbability(t *testing.T) {
	source := data.NewRandomSource(rand.New(rand.NewSource(42)))
	trials := 2000
	trueCount := 0
	for i := 0; i < trials; i++ {
		v, err := Weighted(source, 0.9)
		if err != nil {
			t.Fatal(err)
		}
		if v {
			trueCount++
		}
	}
	if trueCount < trials/2 {
		t.Fatalf("Weighted(p=0.9) returned true %d/%d times, want a strong majority", trueCount, trials)
	}
}

func TestBoundedIntStaysInRange(t *testing.T) {
	source := data.NewRandomSource(rand.New(rand.NewSource(7)))
	for i := 0; i < 500; i++ {
		v, err := BoundedInt(source, 17)
		if err != nil {
			t.Fatal(err)
		}
		if v > 17 {
			t.Fatalf("BoundedInt(max=17) = %d, out of range", v)
		}
	}
}

func TestBoundedIntZeroMaxIsAlwaysZero(t *testing.T) {
	source := data.NewRecordedSource([]uint64{0})
	v, err := BoundedInt(source, 0)
	if err != nil || v != 0 {
		t.Fatalf("BoundedInt(max=0) = %v, %v; want 0, nil", v, err)
	}
}

func TestRepeatForcesMinAndMax(t *testing.T) {
	source := data.NewRandomSource(rand.New(rand.NewSource(3)))
	r := NewRepeat(2, 4, 0.0)
	count := 0
	for {
		cont, err := r.ShouldContinue(source)
		if err != nil {
			t.Fatal(err)
		}
		if !cont {
			break
		}
		count++
		if count > 10 {
			t.Fatal("Repeat did not respect MaxCount")
		}
	}
	if count < 2 {
		t.Fatalf("Repeat stopped at %d iterations, want at least MinCount=2", count)
	}
	if count > 4 {
		t.Fatalf("Repeat ran %d iterations, want at most MaxCount=4", count)
	}
}

func TestSamplerDrawsWithinRange(t *testing.T) {
	sampler := NewSampler([]float64{1, 2, 3, 4})
	source := data.NewRandomSource(rand.New(rand.NewSource(9)))
	for i := 0; i < 200; i++ {
		idx, err := sampler.Sample(source)
		if err != nil {
			t.Fatal(err)
		}
		if idx >= 4 {
			t.Fatalf("Sample() = %d, out of range [0,4)", idx)
		}
	}
}

func TestSamplerSingleWeightAlwaysReturnsZero(t *testing.T) {
	sampler := NewSampler([]float64{1})
	source := data.NewRandomSource(rand.New(rand.NewSource(1)))
	idx, err := sampler.Sample(source)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Fatalf("Sample() with one weight = %d, want 0", idx)
	}
}

func TestIntegerFromBitlengthsProducesBothSigns(t *testing.T) {
	source := data.NewRandomSource(rand.New(rand.NewSource(123)))
	sampler := NewBitlengthSampler()
	sawNegative, sawPositive := false, false
	for i := 0; i < 200; i++ {
		v, err := IntegerFromBitlengths(source, sampler)
		if err != nil {
			t.Fatal(err)
		}
		if v < 0 {
			sawNegative = true
		} else if v > 0 {
			sawPositive = true
		}
	}
	if !sawNegative || !sawPositive {
		t.Fatalf("IntegerFromBitlengths should produce both signs over 200 draws, negative=%v positive=%v", sawNegative, sawPositive)
	}
}
