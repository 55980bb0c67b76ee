package engine

import (
	"log"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
	"github.com/conjecture-labs/conjecture/internal/conjecture/database"
)

type loopExitReason int

const (
	reasonComplete loopExitReason = iota
	reasonMaxExamples
	reasonShutdown
)

func (r loopExitReason) String() string {
	switch r {
	case reasonComplete:
		return "complete"
	case reasonMaxExamples:
		return "max examples"
	case reasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// loopExit is the sentinel error every path out of loopBody terminates
// with; there is no non-error return, mirroring that the loop always ends
// for one of these three reasons.
type loopExit struct {
	reason loopExitReason
}

func (e *loopExit) Error() string { return "conjecture: generation loop exited: " + e.reason.String() }

type loopCommandKind int

const (
	cmdRunThis loopCommandKind = iota
	cmdFinished
)

// loopSnapshot is the state the engine needs to answer queries after the
// loop has terminated, captured once at the moment of termination since the
// mainLoop itself is not safe to read from another goroutine afterward.
type loopSnapshot struct {
	minimizedExamples   []data.TestResult
	bestExample         *data.TestResult
	validExamples       int
	interestingExamples int
}

// loopCommand is the message the generation loop sends to its host: either
// "run this source next" or "I have finished, here is the final state".
type loopCommand struct {
	kind     loopCommandKind
	source   *data.DataSource
	reason   loopExitReason
	snapshot loopSnapshot
}

// mainLoop drives example generation and shrinking. It runs on its own
// goroutine and communicates with its host Engine exclusively through
// toHost/fromHost, never sharing memory directly.
type mainLoop struct {
	name     string
	database database.Database
	logger   *log.Logger

	toHost   chan loopCommand
	fromHost chan data.TestResult

	maxExamples int
	rng         *rand.Rand
	phases      []Phase

	bestExample         *data.TestResult
	minimizedExamples   map[uint64]data.TestResult
	fullyMinimized      map[uint64]struct{}
	validExamples       int
	invalidExamples     int
	interestingExamples int
}

func (m *mainLoop) hasPhase(p Phase) bool {
	for _, q := range m.phases {
		if q == p {
			return true
		}
	}
	return false
}

// run is the goroutine entry point. It always terminates via loopExit; a
// reasonShutdown exit means the host went away and nothing more is sent.
func (m *mainLoop) run() {
	defer close(m.toHost)
	err := m.loopBody()
	exit, ok := err.(*loopExit)
	if !ok {
		panic("conjecture: BUG: loopBody returned a non-terminal error")
	}
	if exit.reason == reasonShutdown {
		return
	}
	m.toHost <- loopCommand{
		kind:     cmdFinished,
		reason:   exit.reason,
		snapshot: m.snapshot(),
	}
}

func (m *mainLoop) snapshot() loopSnapshot {
	out := make([]data.TestResult, 0, len(m.minimizedExamples))
	for _, r := range m.minimizedExamples {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return loopSnapshot{
		minimizedExamples:   out,
		bestExample:         m.bestExample,
		validExamples:       m.validExamples,
		interestingExamples: m.interestingExamples,
	}
}

func (m *mainLoop) loopBody() error {
	if err := m.runPreviousExamples(); err != nil {
		return err
	}

	if m.interestingExamples == 0 {
		if _, err := m.generateExamples(); err != nil {
			return err
		}
	}

	if !m.hasPhase(PhaseShrink) {
		return &loopExit{reasonComplete}
	}

	for len(m.minimizedExamples) > len(m.fullyMinimized) {
		labels := make([]uint64, 0, len(m.minimizedExamples))
		for label := range m.minimizedExamples {
			labels = append(labels, label)
		}
		for _, label := range labels {
			if _, done := m.fullyMinimized[label]; done {
				continue
			}
			m.fullyMinimized[label] = struct{}{}
			target := m.minimizedExamples[label].Clone()
			label := label
			s := newShrinker(m, target, func(r data.TestResult) bool {
				return r.IsInteresting(label)
			})
			if err := s.run(); err != nil {
				return err
			}
		}
	}
	return &loopExit{reasonComplete}
}

// generateExamples draws fresh random sources until either an interesting
// one turns up or the example budget (maxExamples valid, 10x that many
// invalid) is exhausted.
func (m *mainLoop) generateExamples() (data.TestResult, error) {
	for m.validExamples < m.maxExamples && m.invalidExamples < 10*m.maxExamples {
		source := data.NewRandomSource(m.rng)
		result, err := m.execute(source)
		if err != nil {
			return data.TestResult{}, err
		}
		if result.Status.Kind == data.Interesting {
			return result, nil
		}
	}
	return data.TestResult{}, &loopExit{reasonMaxExamples}
}

// runPreviousExamples replays every example persisted under this loop's
// name. An entry that no longer reproduces, or whose record was altered by
// its own replay (e.g. a generator that now behaves differently), is
// deleted rather than kept around stale.
func (m *mainLoop) runPreviousExamples() error {
	blobs, err := m.database.Fetch(m.name)
	if err != nil {
		m.logger.Printf("fetching previous examples for %q: %v", m.name, err)
		return nil
	}
	if len(blobs) == 0 {
		return nil
	}

	records := make([][]uint64, len(blobs))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, blob := range blobs {
		i, blob := i, blob
		g.Go(func() error {
			records[i] = bytesToWords(blob)
			return nil
		})
	}
	_ = g.Wait() // decoding is pure; only parallelized to bound CPU use on a large corpus

	for i, record := range records {
		source := data.NewRecordedSource(record)
		result, err := m.execute(source)
		if err != nil {
			return err
		}
		keep := result.Status.Kind == data.Interesting && wordsEqual(result.Record, record)
		if keep {
			continue
		}
		m.logger.Printf("deleting stale example for %q", m.name)
		if derr := m.database.Delete(m.name, blobs[i]); derr != nil {
			m.logger.Printf("delete failed for %q: %v", m.name, derr)
		}
	}
	return nil
}

// execute is the one place a DataSource crosses to the host: it hands the
// source over, blocks for the TestResult, then folds the result into this
// loop's state (best example, minimized-example table, and persistence).
func (m *mainLoop) execute(source *data.DataSource) (data.TestResult, error) {
	m.toHost <- loopCommand{kind: cmdRunThis, source: source}
	result, ok := <-m.fromHost
	if !ok {
		return data.TestResult{}, &loopExit{reasonShutdown}
	}

	switch result.Status.Kind {
	case data.Invalid, data.Overflow:
		m.invalidExamples++
	default:
		m.validExamples++
	}

	if result.Status.Kind == data.Interesting {
		label := result.Status.Label
		if m.bestExample == nil || result.Less(*m.bestExample) {
			best := result
			m.bestExample = &best
		}

		existing, has := m.minimizedExamples[label]
		if !has {
			m.minimizedExamples[label] = result
		} else if result.Less(existing) {
			m.minimizedExamples[label] = result
			delete(m.fullyMinimized, label)
			if derr := m.database.Delete(m.name, wordsToBytes(existing.Record)); derr != nil {
				m.logger.Printf("delete of superseded example failed for %q: %v", m.name, derr)
			}
		}
		m.interestingExamples++

		if serr := m.database.Save(m.name, wordsToBytes(result.Record)); serr != nil {
			m.logger.Printf("save failed for %q: %v", m.name, serr)
		}
	}

	return result, nil
}
