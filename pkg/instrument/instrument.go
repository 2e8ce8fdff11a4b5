// Package instrument defines the measurement strategies applied to benchmark
// methods. An instrument decides which methods it can measure, how the worker
// should loop around them, and how raw worker messages become validated
// measurements. Instruments are stateless with respect to trials; one
// instance is shared by every trial that uses it.
package instrument

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/bridge"
)

var (
	// ErrConfiguration marks unusable run configuration detected before any
	// worker process spawns: unknown instrument keys, empty instrument sets
	// or benchmark selections that match nothing.
	ErrConfiguration = errors.New("invalid run configuration")

	// ErrMeasurement marks worker output that an instrument refused to turn
	// into a measurement.
	ErrMeasurement = errors.New("invalid measurement")
)

// FlagGCDisturbed marks a measurement whose timing section overlapped a
// garbage collection in the worker.
const FlagGCDisturbed = "gc-disturbed"

// Measurement is one validated data point: a named value with unit and
// weight. Weight is the number of method invocations the value spans, so the
// normalized cost of a single invocation is Value / Weight.
type Measurement struct {
	Description string
	Value       float64
	Unit        string
	Weight      float64
	Flags       []string
}

// NewMeasurement validates the Measurement invariants: a finite, non-negative
// value and a weight of at least one.
func NewMeasurement(description string, value float64, unit string, weight float64) (Measurement, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return Measurement{}, errors.Wrapf(ErrMeasurement,
			"%s: value %v is not a finite non-negative number", description, value)
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 1 {
		return Measurement{}, errors.Wrapf(ErrMeasurement,
			"%s: weight %v is below one", description, weight)
	}

	return Measurement{
		Description: description,
		Value:       value,
		Unit:        unit,
		Weight:      weight,
	}, nil
}

// PerInvocation returns the measured cost normalized to one invocation.
func (m Measurement) PerInvocation() float64 {
	return m.Value / m.Weight
}

// Instrument is one measurement strategy.
type Instrument interface {
	// Name returns the registry key of the instrument.
	Name() string

	// IsBenchmarkMethod reports whether the instrument can measure the given
	// method. It is a pure predicate used during trial enumeration.
	IsBenchmarkMethod(method benchmark.Method) bool

	// CreateInstrumentedMethod binds the instrument to a method, failing for
	// methods whose shape the instrument cannot drive.
	CreateInstrumentedMethod(method benchmark.Method) (InstrumentedMethod, error)

	// WorkerLoop describes the measurement loop the worker must run for one
	// timing section.
	WorkerLoop() bridge.LoopSpec

	// ToMeasurement converts the messages of one completed timing section
	// into a measurement, rejecting malformed sections with ErrMeasurement.
	ToMeasurement(section []bridge.LogMessage) (Measurement, error)

	// NeedsCalibration reports whether trials must run timer calibration and
	// warmup before measuring.
	NeedsCalibration() bool

	// DefaultMeasurements is the number of measurements collected per trial
	// when the run configuration does not override it.
	DefaultMeasurements() int

	// SupportedOnVM reports whether the instrument can measure workers of
	// the given VM type.
	SupportedOnVM(vmType string) bool
}

// InstrumentedMethod pairs a method with the instrument measuring it. A trial
// runs exactly one instrumented method.
type InstrumentedMethod struct {
	Method     benchmark.Method
	Instrument Instrument
}

// String renders "instrument(method)" for logs and trial listings.
func (im InstrumentedMethod) String() string {
	return fmt.Sprintf("%s(%s)", im.Instrument.Name(), im.Method.Name)
}

// Config carries the per-instrument options from the run configuration.
// Options are resolved once, immutable afterwards and shared by reference;
// Keys iterates them in a reproducible order.
type Config struct {
	name    string
	options map[string]string
	keys    []string
}

// NewConfig copies the given options into an immutable Config.
func NewConfig(name string, options map[string]string) *Config {
	copied := make(map[string]string, len(options))
	keys := make([]string, 0, len(options))
	for key, value := range options {
		copied[key] = value
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return &Config{name: name, options: copied, keys: keys}
}

// Name returns the instrument key the options belong to.
func (c *Config) Name() string {
	return c.name
}

// Option returns one option value and whether it was set.
func (c *Config) Option(key string) (string, bool) {
	value, ok := c.options[key]
	return value, ok
}

// Keys returns the option names in sorted order.
func (c *Config) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Map returns a copy of all options, for embedding into trial requests.
func (c *Config) Map() map[string]string {
	copied := make(map[string]string, len(c.options))
	for key, value := range c.options {
		copied[key] = value
	}
	return copied
}
