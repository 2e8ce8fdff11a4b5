package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/intelsdi-x/chronos/pkg/instrument"
	"github.com/intelsdi-x/chronos/pkg/worker"
)

// TrialState is the lifecycle state of one trial.
type TrialState int

const (
	// Pending trials are enumerated but not yet driven to an end.
	Pending TrialState = iota
	// Success trials collected every requested measurement.
	Success
	// Failed trials hit a startup, calibration, protocol or measurement
	// error. The reason is kept on the result.
	Failed
	// TimedOut trials exceeded the per-trial deadline; their worker was
	// force-terminated.
	TimedOut
)

// String implements fmt.Stringer.
func (s TrialState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed-out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Trial is one scheduled unit of work: one benchmark method measured by one
// instrument on one worker flavor under one parameter assignment. Trials are
// immutable once enumerated.
type Trial struct {
	// ID is dense and unique within a run. Workers echo it in dry run
	// replies.
	ID int
	// Instrumented pairs the measured method with its instrument.
	Instrumented instrument.InstrumentedMethod
	// Params is the parameter assignment driven into the worker.
	Params map[string]string
	// VM is the worker flavor the trial runs on.
	VM worker.VMConfig
	// Measurements is the number of recorded timing sections the trial
	// collects.
	Measurements int
	// Options are the instrument options embedded into the trial request.
	Options map[string]string
}

// String implements fmt.Stringer.
func (t Trial) String() string {
	return fmt.Sprintf("trial %d: %s%s on %s", t.ID, t.Instrumented, paramString(t.Params), t.VM.Name)
}

// paramString renders a parameter assignment with sorted keys, so trial
// descriptions are stable across runs. Empty assignments render empty.
func paramString(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, params[key]))
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// TrialResult is the immutable outcome of one trial: the recorded
// measurements in completion order plus the terminal state. Failed and timed
// out trials keep whatever measurements were recorded before the error and
// the reason in Failure.
type TrialResult struct {
	Trial        Trial
	State        TrialState
	Measurements []instrument.Measurement
	// Failure holds the reason of Failed and TimedOut results.
	Failure string
	// PartialWarmup marks results whose calibration hit the warmup cap
	// before the steadiness criterion was met.
	PartialWarmup bool
	// RuntimeName and RuntimeVersion identify the worker runtime announced
	// in its handshake, e.g. "go" and "go1.21.5".
	RuntimeName    string
	RuntimeVersion string
	// RuntimeOptions are the VM options the worker announced, e.g.
	// GOMAXPROCS and GOGC.
	RuntimeOptions map[string]string
}

// EventKind classifies the advisory events of a run.
type EventKind int

const (
	// InstrumentDropped reports an instrument removed at setup because a
	// configured VM type does not support it.
	InstrumentDropped EventKind = iota
	// PartialWarmup reports a trial whose warmup was cut short.
	PartialWarmup
	// TrialFailed reports a trial that reached the Failed state.
	TrialFailed
	// TrialTimedOut reports a trial that exceeded its deadline.
	TrialTimedOut
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case InstrumentDropped:
		return "instrument-dropped"
	case PartialWarmup:
		return "partial-warmup"
	case TrialFailed:
		return "trial-failed"
	case TrialTimedOut:
		return "trial-timed-out"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one advisory observation made while driving trials. Events
// supplement the results, they never replace a terminal state.
type Event struct {
	Kind EventKind
	// TrialID is the affected trial, or -1 for run-level events.
	TrialID int
	Message string
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e.TrialID < 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s (trial %d): %s", e.Kind, e.TrialID, e.Message)
}
