package instrument

import (
	"time"

	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/bridge"
)

// RuntimeKey is the registry key of the wall-clock runtime instrument.
const RuntimeKey = "runtime"

const (
	runtimeModeOption     = "mode"
	runtimeDurationOption = "duration"

	runtimeModeRepetition = "repetition"
	runtimeModeDuration   = "duration"

	defaultRuntimeMeasurements = 9
	defaultRuntimeBudget       = 100 * time.Millisecond
)

// Runtime measures wall-clock time of timed methods. The worker drives a
// repetition loop sized by calibration, or a duration-budget loop when the
// "mode" option is set to "duration".
type Runtime struct {
	mode   string
	budget time.Duration
}

// NewRuntime builds the runtime instrument from its configured options.
func NewRuntime(config *Config) (Instrument, error) {
	instrument := &Runtime{mode: runtimeModeRepetition, budget: defaultRuntimeBudget}

	if mode, ok := config.Option(runtimeModeOption); ok {
		switch mode {
		case runtimeModeRepetition, runtimeModeDuration:
			instrument.mode = mode
		default:
			return nil, errors.Wrapf(ErrConfiguration,
				"runtime instrument: unknown mode %q", mode)
		}
	}
	if raw, ok := config.Option(runtimeDurationOption); ok {
		budget, err := time.ParseDuration(raw)
		if err != nil || budget <= 0 {
			return nil, errors.Wrapf(ErrConfiguration,
				"runtime instrument: invalid duration %q", raw)
		}
		instrument.budget = budget
	}

	return instrument, nil
}

// Name implements Instrument.
func (r *Runtime) Name() string {
	return RuntimeKey
}

// IsBenchmarkMethod accepts methods driven by an iteration count.
func (r *Runtime) IsBenchmarkMethod(method benchmark.Method) bool {
	return method.Kind == benchmark.KindTimed
}

// CreateInstrumentedMethod implements Instrument.
func (r *Runtime) CreateInstrumentedMethod(method benchmark.Method) (InstrumentedMethod, error) {
	if !r.IsBenchmarkMethod(method) {
		return InstrumentedMethod{}, errors.Errorf(
			"method %q is not a timed method; the runtime instrument cannot measure it",
			method.Name)
	}
	return InstrumentedMethod{Method: method, Instrument: r}, nil
}

// WorkerLoop implements Instrument.
func (r *Runtime) WorkerLoop() bridge.LoopSpec {
	if r.mode == runtimeModeDuration {
		return bridge.LoopSpec{
			Kind:       bridge.LoopDuration,
			DurationNs: r.budget.Nanoseconds(),
			EmitGC:     true,
		}
	}
	return bridge.LoopSpec{Kind: bridge.LoopRepetition, EmitGC: true}
}

// ToMeasurement expects one start/stop delimited section containing a single
// runtime message and turns it into a nanosecond measurement weighted by the
// executed repetitions. Sections overlapping a garbage collection are
// flagged, not rejected.
func (r *Runtime) ToMeasurement(section []bridge.LogMessage) (Measurement, error) {
	if err := checkSectionFraming(section); err != nil {
		return Measurement{}, err
	}

	var runtime *bridge.RuntimeMeasurement
	gcDisturbed := false
	for _, message := range section {
		switch m := message.(type) {
		case *bridge.RuntimeMeasurement:
			if runtime != nil {
				return Measurement{}, errors.Wrap(ErrMeasurement,
					"timing section carries more than one runtime message")
			}
			runtime = m
		case *bridge.GCLog:
			if m.Collections > 0 {
				gcDisturbed = true
			}
		}
	}
	if runtime == nil {
		return Measurement{}, errors.Wrap(ErrMeasurement,
			"timing section carries no runtime message")
	}

	measurement, err := NewMeasurement("runtime", float64(runtime.ElapsedNs), "ns", float64(runtime.Reps))
	if err != nil {
		return Measurement{}, err
	}
	if gcDisturbed {
		measurement.Flags = append(measurement.Flags, FlagGCDisturbed)
	}
	return measurement, nil
}

// NeedsCalibration implements Instrument.
func (r *Runtime) NeedsCalibration() bool {
	return true
}

// DefaultMeasurements implements Instrument.
func (r *Runtime) DefaultMeasurements() int {
	return defaultRuntimeMeasurements
}

// SupportedOnVM implements Instrument. Runtime timing needs nothing beyond
// the protocol, so every VM type is supported.
func (r *Runtime) SupportedOnVM(string) bool {
	return true
}

// checkSectionFraming verifies the start/stop delimiters of one section.
func checkSectionFraming(section []bridge.LogMessage) error {
	if len(section) < 2 {
		return errors.Wrap(ErrMeasurement, "timing section is truncated")
	}
	if _, ok := section[0].(*bridge.StartMeasurement); !ok {
		return errors.Wrap(ErrMeasurement, "timing section does not begin with a start message")
	}
	if _, ok := section[len(section)-1].(*bridge.StopMeasurement); !ok {
		return errors.Wrap(ErrMeasurement, "timing section does not end with a stop message")
	}
	return nil
}
