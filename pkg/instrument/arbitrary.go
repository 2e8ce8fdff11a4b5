package instrument

import (
	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/bridge"
)

// ArbitraryKey is the registry key of the arbitrary-value instrument.
const ArbitraryKey = "arbitrary"

// Arbitrary measures value methods: the method itself computes a scalar and
// the worker invokes it exactly once per timing section. No calibration or
// warmup applies.
type Arbitrary struct{}

// NewArbitrary builds the arbitrary instrument. It takes no options.
func NewArbitrary(*Config) (Instrument, error) {
	return &Arbitrary{}, nil
}

// Name implements Instrument.
func (a *Arbitrary) Name() string {
	return ArbitraryKey
}

// IsBenchmarkMethod accepts methods that report their own scalar.
func (a *Arbitrary) IsBenchmarkMethod(method benchmark.Method) bool {
	return method.Kind == benchmark.KindValue
}

// CreateInstrumentedMethod implements Instrument.
func (a *Arbitrary) CreateInstrumentedMethod(method benchmark.Method) (InstrumentedMethod, error) {
	if !a.IsBenchmarkMethod(method) {
		return InstrumentedMethod{}, errors.Errorf(
			"method %q does not report a value; the arbitrary instrument cannot measure it",
			method.Name)
	}
	return InstrumentedMethod{Method: method, Instrument: a}, nil
}

// WorkerLoop implements Instrument.
func (a *Arbitrary) WorkerLoop() bridge.LoopSpec {
	return bridge.LoopSpec{Kind: bridge.LoopSingleShot}
}

// ToMeasurement extracts the single reported value of one section. The
// weight is always one invocation.
func (a *Arbitrary) ToMeasurement(section []bridge.LogMessage) (Measurement, error) {
	if err := checkSectionFraming(section); err != nil {
		return Measurement{}, err
	}

	var value *bridge.ArbitraryMeasurement
	for _, message := range section {
		if m, ok := message.(*bridge.ArbitraryMeasurement); ok {
			if value != nil {
				return Measurement{}, errors.Wrap(ErrMeasurement,
					"timing section carries more than one value message")
			}
			value = m
		}
	}
	if value == nil {
		return Measurement{}, errors.Wrap(ErrMeasurement,
			"timing section carries no value message")
	}

	description := value.Description
	if description == "" {
		description = ArbitraryKey
	}
	return NewMeasurement(description, value.Value, value.Unit, 1)
}

// NeedsCalibration implements Instrument.
func (a *Arbitrary) NeedsCalibration() bool {
	return false
}

// DefaultMeasurements implements Instrument.
func (a *Arbitrary) DefaultMeasurements() int {
	return 1
}

// SupportedOnVM implements Instrument.
func (a *Arbitrary) SupportedOnVM(string) bool {
	return true
}
