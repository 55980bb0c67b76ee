package engine_test

import (
	"testing"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
	"github.com/conjecture-labs/conjecture/internal/conjecture/database"
	"github.com/conjecture-labs/conjecture/internal/conjecture/engine"
)

// runToCompletion drives an Engine with prop until it finishes, returning
// the finished Engine.
func runToCompletion(eng *engine.Engine, prop func(*data.DataSource) data.Status) *engine.Engine {
	for {
		source := eng.NextSource()
		if source == nil {
			return eng
		}
		eng.MarkFinished(source, prop(source))
	}
}

func TestMinimizesAllExamplesEvenOdd(t *testing.T) {
	eng := engine.New("evenodd", 1000, engine.AllPhases(), 0, database.NoDatabase{})
	runToCompletion(eng, func(source *data.DataSource) data.Status {
		n, err := source.Bits(64)
		if err != nil {
			return data.StatusOverflow()
		}
		if n >= 100 {
			return data.StatusInteresting(n % 2)
		}
		return data.StatusValid()
	})

	examples := eng.ListMinimizedExamples()
	if len(examples) != 2 {
		t.Fatalf("got %d minimized examples, want 2", len(examples))
	}
	seen := map[uint64]bool{}
	for _, ex := range examples {
		if len(ex.Record) != 1 {
			t.Fatalf("expected a single-word record, got %v", ex.Record)
		}
		seen[ex.Record[0]] = true
	}
	if !seen[100] || !seen[101] {
		t.Fatalf("expected minimized records {100, 101}, got %v", examples)
	}
}

func TestShrinksDownToThreshold(t *testing.T) {
	eng := engine.New("threshold", 500, engine.AllPhases(), 1, database.NoDatabase{})
	runToCompletion(eng, func(source *data.DataSource) data.Status {
		n, err := source.Bits(16)
		if err != nil {
			return data.StatusOverflow()
		}
		if n >= 50 {
			return data.StatusInteresting(0)
		}
		return data.StatusValid()
	})

	best := eng.BestSource()
	if best == nil {
		t.Fatal("expected a best source after finding a failing example")
	}
	n, err := best.Bits(16)
	if err != nil {
		t.Fatal(err)
	}
	if n != 50 {
		t.Fatalf("shrunk failing value = %d, want the threshold 50", n)
	}
}

func TestUnsatisfiableWhenEverythingIsInvalid(t *testing.T) {
	eng := engine.New("always-invalid", 200, engine.AllPhases(), 2, database.NoDatabase{})
	runToCompletion(eng, func(source *data.DataSource) data.Status {
		if _, err := source.Bits(8); err != nil {
			return data.StatusOverflow()
		}
		return data.StatusInvalid()
	})

	if !eng.WasUnsatisfiable() {
		t.Fatal("expected WasUnsatisfiable when every example is Invalid")
	}
	if len(eng.ListMinimizedExamples()) != 0 {
		t.Fatal("expected no minimized examples when nothing was ever interesting")
	}
}

func TestPersistedExampleIsReplayedBeforeGenerating(t *testing.T) {
	db, err := database.NewDirectoryDatabase(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// Seed the database directly with a known-interesting record, as if a
	// previous run had already found and saved it.
	if err := db.Save("replay", wordsToBytesForTest([]uint64{7})); err != nil {
		t.Fatal(err)
	}

	calls := 0
	eng := engine.New("replay", 1000, engine.AllPhases(), 3, db)
	runToCompletion(eng, func(source *data.DataSource) data.Status {
		calls++
		n, err := source.Bits(64)
		if err != nil {
			return data.StatusOverflow()
		}
		if n == 7 {
			return data.StatusInteresting(0)
		}
		return data.StatusValid()
	})

	if calls == 0 {
		t.Fatal("expected at least the replayed execution to run")
	}
	examples := eng.ListMinimizedExamples()
	if len(examples) != 1 || examples[0].Record[0] != 7 {
		t.Fatalf("expected the replayed record [7] to surface as the minimized example, got %v", examples)
	}
}

func TestShrinksADrawTheGeneratorNeverInspectsToZero(t *testing.T) {
	eng := engine.New("unused-draw", 500, engine.AllPhases(), 4, database.NoDatabase{})
	runToCompletion(eng, func(source *data.DataSource) data.Status {
		source.StartDraw()
		n, err := source.Bits(32)
		if err != nil {
			source.StopDraw()
			return data.StatusOverflow()
		}
		source.StopDraw()

		// A second draw whose value is never inspected by the property.
		// The property always makes this draw, so a record without it
		// overflows; the shrinker can only lower its value to 0.
		source.StartDraw()
		if _, err := source.Bits(32); err != nil {
			source.StopDraw()
			return data.StatusOverflow()
		}
		source.StopDraw()

		if n >= 1000 {
			return data.StatusInteresting(0)
		}
		return data.StatusValid()
	})

	best := eng.BestSource()
	if best == nil {
		t.Fatal("expected a best source")
	}
	examples := eng.ListMinimizedExamples()
	if len(examples) != 1 || len(examples[0].Record) != 2 || examples[0].Record[0] != 1000 || examples[0].Record[1] != 0 {
		t.Fatalf("expected the minimized record [1000 0], got %v", examples)
	}
}

func wordsToBytesForTest(words []uint64) []byte {
	buf := make([]byte, 8*len(words))
	for i, w := range words {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(w >> uint(56-8*b))
		}
	}
	return buf
}
