// Package examples is a small named library of test functions used by the
// command-line front ends; the engine's tests define their own. None of
// these are part of the engine itself; they exist only to give a human a
// property to point the CLI at without writing Go.
package examples

import (
	"fmt"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
)

// Property is a test function: it drives source and reports the outcome.
type Property func(source *data.DataSource) data.Status

// Names lists every registered property, in a stable order suitable for
// -help text.
func Names() []string {
	return []string{
		"minimize-down-to",
		"even-vs-odd",
		"delete-unused-draws",
		"overflow-on-empty",
	}
}

// Lookup returns the named property, or an error listing the valid names.
func Lookup(name string) (Property, error) {
	switch name {
	case "minimize-down-to":
		return minimizeDownTo, nil
	case "even-vs-odd":
		return evenVsOdd, nil
	case "delete-unused-draws":
		return deleteUnusedDraws, nil
	case "overflow-on-empty":
		return overflowOnEmpty, nil
	default:
		return nil, fmt.Errorf("examples: unknown property %q, want one of %v", name, Names())
	}
}

// minimizeDownTo fails as soon as a drawn word reaches 10; the engine
// should be able to shrink any failing record down to the single word [10].
func minimizeDownTo(source *data.DataSource) data.Status {
	x, err := source.Bits(64)
	if err != nil {
		return data.StatusOverflow()
	}
	if x >= 10 {
		return data.StatusInteresting(0)
	}
	return data.StatusValid()
}

// evenVsOdd distinguishes two independent failure labels by the parity of
// the drawn word, exercising the engine's per-label minimum tracking.
func evenVsOdd(source *data.DataSource) data.Status {
	x, err := source.Bits(64)
	if err != nil {
		return data.StatusOverflow()
	}
	if x >= 100 {
		return data.StatusInteresting(x % 2)
	}
	return data.StatusValid()
}

// deleteUnusedDraws opens a draw of three words but only inspects the
// first. It always draws all three, so a shorter record overflows and the
// shrinker cannot drop the other two; it lowers them to 0 instead, ending
// at [1 0 0].
func deleteUnusedDraws(source *data.DataSource) data.Status {
	source.StartDraw()
	a, err := source.Bits(8)
	if err != nil {
		source.StopDraw()
		return data.StatusOverflow()
	}
	if _, err := source.Bits(8); err != nil {
		source.StopDraw()
		return data.StatusOverflow()
	}
	if _, err := source.Bits(8); err != nil {
		source.StopDraw()
		return data.StatusOverflow()
	}
	source.StopDraw()
	if a >= 1 {
		return data.StatusInteresting(0)
	}
	return data.StatusValid()
}

// overflowOnEmpty draws one word and reports Valid; against an empty
// recorded source that draw fails, demonstrating FailedDraw decaying into
// Overflow. It is not interesting under any input and exists for
// replay-CLI smoke testing.
func overflowOnEmpty(source *data.DataSource) data.Status {
	if _, err := source.Bits(64); err != nil {
		return data.StatusOverflow()
	}
	return data.StatusValid()
}
