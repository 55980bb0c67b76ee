// Package engine runs the main generation loop: it draws fresh examples
// until one is interesting, then shrinks every interesting example it
// finds down to a local minimum, replaying persisted examples from a
// database.Database before doing either.
package engine

import (
	"io"
	"log"
	"math/rand"
	"os"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
	"github.com/conjecture-labs/conjecture/internal/conjecture/database"
)

type engineState int

const (
	stateAwaitingCompletion engineState = iota
	stateReadyToProvide
)

// Option configures an Engine at construction time.
type Option func(*mainLoop)

// WithLogger redirects the loop's diagnostic output (stale-example
// deletions, persistence failures) to w. The default is os.Stderr.
func WithLogger(w io.Writer) Option {
	return func(m *mainLoop) { m.logger = log.New(w, "conjecture: ", 0) }
}

// Engine is the host side of the generation loop. A caller drives it with
// NextSource/MarkFinished in lockstep: exactly one DataSource is live
// between a NextSource call and the MarkFinished that reports its outcome.
type Engine struct {
	state        engineState
	loopResponse *loopCommand

	toHost   chan loopCommand
	fromHost chan data.TestResult

	done     chan struct{}
	panicVal interface{}
}

// New starts a generation loop named name against db, generating up to
// maxExamples valid examples, exercising phases, seeded deterministically
// from seed. The loop runs on its own goroutine immediately.
func New(name string, maxExamples int, phases []Phase, seed int64, db database.Database, opts ...Option) *Engine {
	toHost := make(chan loopCommand, 1)
	fromHost := make(chan data.TestResult, 1)

	loop := &mainLoop{
		name:               name,
		database:           db,
		logger:             log.New(os.Stderr, "conjecture: ", 0),
		toHost:             toHost,
		fromHost:           fromHost,
		maxExamples:        maxExamples,
		rng:                rand.New(rand.NewSource(seed)),
		phases:             phases,
		minimizedExamples:  make(map[uint64]data.TestResult),
		fullyMinimized:     make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(loop)
	}

	e := &Engine{
		state:    stateReadyToProvide,
		toHost:   toHost,
		fromHost: fromHost,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(e.done)
		defer func() {
			if r := recover(); r != nil {
				e.panicVal = r
			}
		}()
		loop.run()
	}()

	return e
}

// NextSource blocks until the loop has a source for the caller to drive a
// test with, or returns nil once the loop has finished. It must be paired
// with exactly one MarkFinished call per non-nil source returned.
func (e *Engine) NextSource() *data.DataSource {
	if e.state != stateReadyToProvide {
		panic("conjecture: BUG: NextSource called while not ReadyToProvide")
	}
	e.state = stateAwaitingCompletion
	e.awaitLoopResponse()

	cmd := e.loopResponse
	if cmd.kind == cmdRunThis {
		e.loopResponse = nil
		return cmd.source
	}
	// Finished is sticky: leave it cached and return to ReadyToProvide so
	// repeated calls keep observing the terminal state.
	e.state = stateReadyToProvide
	return nil
}

// MarkFinished reports the outcome of the most recently issued source.
func (e *Engine) MarkFinished(source *data.DataSource, status data.Status) {
	e.consumeTestResult(source.IntoResult(status))
}

func (e *Engine) consumeTestResult(result data.TestResult) {
	if e.state != stateAwaitingCompletion {
		panic("conjecture: BUG: consumeTestResult called while not AwaitingCompletion")
	}
	e.state = stateReadyToProvide
	if e.hasShutdown() {
		return
	}
	e.fromHost <- result
}

// ListMinimizedExamples returns every distinct interesting example found,
// each minimized as far as the shrinker could take it, sorted smallest
// first. It is empty until the loop has finished.
func (e *Engine) ListMinimizedExamples() []data.TestResult {
	if !e.hasShutdown() {
		return nil
	}
	return e.loopResponse.snapshot.minimizedExamples
}

// BestSource replays the single best (smallest, by the total order)
// interesting example found, or nil if the loop hasn't finished or found
// none.
func (e *Engine) BestSource() *data.DataSource {
	if !e.hasShutdown() {
		return nil
	}
	best := e.loopResponse.snapshot.bestExample
	if best == nil {
		return nil
	}
	return data.NewRecordedSource(append([]uint64(nil), best.Record...))
}

// WasUnsatisfiable reports whether the loop finished having produced no
// valid examples at all, interesting or otherwise — a sign the test's own
// preconditions can never be met.
func (e *Engine) WasUnsatisfiable() bool {
	if !e.hasShutdown() {
		return false
	}
	snap := e.loopResponse.snapshot
	return snap.interestingExamples == 0 && snap.validExamples == 0
}

func (e *Engine) hasShutdown() bool {
	return e.loopResponse != nil && e.loopResponse.kind == cmdFinished
}

func (e *Engine) awaitLoopResponse() {
	if e.loopResponse != nil {
		return
	}
	cmd, ok := <-e.toHost
	if !ok {
		e.awaitThreadTermination()
		panic("conjecture: BUG: unexpected silent termination of generation loop")
	}
	e.loopResponse = &cmd
	if cmd.kind == cmdFinished {
		e.awaitThreadTermination()
	}
}

// awaitThreadTermination waits for the loop goroutine to exit and
// re-raises any panic it suffered, so a bug in a test's own generator
// surfaces at the call site instead of vanishing inside the loop
// goroutine.
func (e *Engine) awaitThreadTermination() {
	<-e.done
	switch v := e.panicVal.(type) {
	case nil:
		return
	case string:
		panic(v)
	case error:
		panic(v.Error())
	default:
		panic("conjecture: BUG: unexpected panic format")
	}
}
