package workload

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/bridge"
)

// session is the worker-side state of one configured trial. A new trial
// request replaces the previous session; run requests execute against the
// current one.
type session struct {
	trialID int
	method  string
	loop    bridge.LoopSpec
	params  Params

	timed TimedFunc
	value ValueFunc
	unit  string
}

// newSession binds a trial request to the registered method body matching
// its loop kind.
func newSession(b *Benchmark, request *bridge.TrialRequest) (*session, error) {
	s := &session{
		trialID: request.TrialID,
		method:  request.Method,
		loop:    request.Loop,
		params:  Params(request.Params),
	}

	switch request.Loop.Kind {
	case bridge.LoopRepetition, bridge.LoopDuration:
		fn, ok := b.timed[request.Method]
		if !ok {
			return nil, errors.Errorf("benchmark %q has no timed method %q", b.name, request.Method)
		}
		s.timed = fn
	case bridge.LoopSingleShot:
		method, ok := b.value[request.Method]
		if !ok {
			return nil, errors.Errorf("benchmark %q has no value method %q", b.name, request.Method)
		}
		s.value = method.fn
		s.unit = method.unit
	default:
		return nil, errors.Errorf("unknown loop kind %q", request.Loop.Kind)
	}
	return s, nil
}

// dryRun invokes the method body once without timing it.
func (s *session) dryRun() error {
	return invoke(func() error {
		if s.timed != nil {
			return s.timed(s.params, 1)
		}
		_, err := s.value(s.params)
		return err
	})
}

// measure executes the configured loop once and composes its measurement
// section. reps overrides the loop's repetition count when positive.
func (s *session) measure(reps int64) ([]bridge.LogMessage, error) {
	switch s.loop.Kind {
	case bridge.LoopRepetition:
		return s.repetitionLoop(reps)
	case bridge.LoopDuration:
		return s.durationLoop(reps)
	default:
		return s.singleShot()
	}
}

// repetitionLoop times one fixed-size loop around the method body.
func (s *session) repetitionLoop(reps int64) ([]bridge.LogMessage, error) {
	if reps < 1 {
		reps = 1
	}

	before := readGC()
	var elapsed time.Duration
	err := invoke(func() error {
		start := time.Now()
		if err := s.timed(s.params, reps); err != nil {
			return err
		}
		elapsed = time.Since(start)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.section(before, &bridge.RuntimeMeasurement{
		ElapsedNs: elapsed.Nanoseconds(),
		Reps:      reps,
	}), nil
}

// durationLoop repeats fixed-size loops until the time budget is spent and
// reports the accumulated elapsed time and repetitions. At least one loop
// always runs.
func (s *session) durationLoop(reps int64) ([]bridge.LogMessage, error) {
	inner := reps
	if inner < 1 {
		inner = s.loop.Reps
	}
	if inner < 1 {
		inner = 1
	}
	budget := time.Duration(s.loop.DurationNs)

	before := readGC()
	var total time.Duration
	var totalReps int64
	err := invoke(func() error {
		for {
			start := time.Now()
			if err := s.timed(s.params, inner); err != nil {
				return err
			}
			total += time.Since(start)
			totalReps += inner
			if total >= budget {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return s.section(before, &bridge.RuntimeMeasurement{
		ElapsedNs: total.Nanoseconds(),
		Reps:      totalReps,
	}), nil
}

// singleShot invokes the value method once and reports its scalar.
func (s *session) singleShot() ([]bridge.LogMessage, error) {
	before := readGC()
	var value float64
	err := invoke(func() error {
		v, err := s.value(s.params)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.section(before, &bridge.ArbitraryMeasurement{
		Value:       value,
		Unit:        s.unit,
		Description: s.method,
	}), nil
}

// section wraps one measurement message in the start/stop delimiters, with
// the garbage collection delta when the loop spec asks for it.
func (s *session) section(before gcSnapshot, measurement bridge.LogMessage) []bridge.LogMessage {
	messages := []bridge.LogMessage{&bridge.StartMeasurement{}}
	if s.loop.EmitGC {
		messages = append(messages, gcDelta(before))
	}
	return append(messages, measurement, &bridge.StopMeasurement{})
}

type gcSnapshot struct {
	collections uint32
	pauseNs     uint64
}

func readGC() gcSnapshot {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return gcSnapshot{collections: stats.NumGC, pauseNs: stats.PauseTotalNs}
}

// gcDelta reports the garbage collection activity since the snapshot.
func gcDelta(before gcSnapshot) *bridge.GCLog {
	after := readGC()
	return &bridge.GCLog{
		Collections: int64(after.collections - before.collections),
		PauseNs:     int64(after.pauseNs - before.pauseNs),
	}
}

// panicError keeps the stack of a benchmark body that panicked, so the
// runner can log where the method blew up.
type panicError struct {
	cause string
	stack string
}

// Error implements the error interface.
func (e *panicError) Error() string {
	return fmt.Sprintf("benchmark panicked: %s", e.cause)
}

// invoke runs one benchmark body, converting panics into errors.
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{cause: fmt.Sprint(r), stack: string(debug.Stack())}
		}
	}()
	return fn()
}
