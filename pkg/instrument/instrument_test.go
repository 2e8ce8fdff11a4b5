package instrument

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/bridge"
)

func TestMeasurementValidation(t *testing.T) {
	Convey("While validating measurements", t, func() {
		Convey("a finite non-negative value with weight one or more passes", func() {
			measurement, err := NewMeasurement("runtime", 1500, "ns", 3)
			So(err, ShouldBeNil)
			So(measurement.PerInvocation(), ShouldEqual, 500)
		})

		Convey("non-finite and negative values are rejected", func() {
			for _, value := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
				_, err := NewMeasurement("runtime", value, "ns", 1)
				So(errors.Cause(err), ShouldEqual, ErrMeasurement)
			}
		})

		Convey("weights below one are rejected", func() {
			_, err := NewMeasurement("runtime", 1500, "ns", 0)
			So(errors.Cause(err), ShouldEqual, ErrMeasurement)
		})
	})
}

func timingSection(inner ...bridge.LogMessage) []bridge.LogMessage {
	section := []bridge.LogMessage{&bridge.StartMeasurement{}}
	section = append(section, inner...)
	return append(section, &bridge.StopMeasurement{})
}

func TestRuntimeInstrument(t *testing.T) {
	Convey("While using the runtime instrument", t, func() {
		runtime, err := NewRuntime(NewConfig(RuntimeKey, nil))
		So(err, ShouldBeNil)

		Convey("it measures timed methods only", func() {
			So(runtime.IsBenchmarkMethod(benchmark.Method{Name: "hash", Kind: benchmark.KindTimed}), ShouldBeTrue)
			So(runtime.IsBenchmarkMethod(benchmark.Method{Name: "allocated", Kind: benchmark.KindValue}), ShouldBeFalse)

			_, err := runtime.CreateInstrumentedMethod(benchmark.Method{Name: "allocated", Kind: benchmark.KindValue})
			So(err, ShouldNotBeNil)
		})

		Convey("it requires calibration and defaults to nine measurements", func() {
			So(runtime.NeedsCalibration(), ShouldBeTrue)
			So(runtime.DefaultMeasurements(), ShouldEqual, 9)
		})

		Convey("its default loop counts repetitions and tracks collections", func() {
			So(runtime.WorkerLoop(), ShouldResemble, bridge.LoopSpec{Kind: bridge.LoopRepetition, EmitGC: true})
		})

		Convey("the duration mode loops against a time budget", func() {
			budgeted, err := NewRuntime(NewConfig(RuntimeKey, map[string]string{
				"mode":     "duration",
				"duration": "250ms",
			}))
			So(err, ShouldBeNil)
			So(budgeted.WorkerLoop(), ShouldResemble, bridge.LoopSpec{
				Kind:       bridge.LoopDuration,
				DurationNs: 250 * 1000 * 1000,
				EmitGC:     true,
			})
		})

		Convey("unknown modes and unparsable budgets fail fast", func() {
			_, err := NewRuntime(NewConfig(RuntimeKey, map[string]string{"mode": "turbo"}))
			So(errors.Cause(err), ShouldEqual, ErrConfiguration)

			_, err = NewRuntime(NewConfig(RuntimeKey, map[string]string{"duration": "soon"}))
			So(errors.Cause(err), ShouldEqual, ErrConfiguration)
		})

		Convey("a complete timing section becomes a weighted measurement", func() {
			section := timingSection(&bridge.RuntimeMeasurement{ElapsedNs: 9000, Reps: 3})
			measurement, err := runtime.ToMeasurement(section)
			So(err, ShouldBeNil)
			So(measurement.Value, ShouldEqual, 9000)
			So(measurement.Weight, ShouldEqual, 3)
			So(measurement.Unit, ShouldEqual, "ns")
			So(measurement.Flags, ShouldBeEmpty)
		})

		Convey("a section overlapping a collection is flagged, not rejected", func() {
			section := timingSection(
				&bridge.RuntimeMeasurement{ElapsedNs: 9000, Reps: 3},
				&bridge.GCLog{Collections: 2, PauseNs: 120},
			)
			measurement, err := runtime.ToMeasurement(section)
			So(err, ShouldBeNil)
			So(measurement.Flags, ShouldResemble, []string{FlagGCDisturbed})
		})

		Convey("sections without a runtime message are rejected", func() {
			_, err := runtime.ToMeasurement(timingSection())
			So(errors.Cause(err), ShouldEqual, ErrMeasurement)
		})

		Convey("sections with two runtime messages are rejected", func() {
			section := timingSection(
				&bridge.RuntimeMeasurement{ElapsedNs: 1, Reps: 1},
				&bridge.RuntimeMeasurement{ElapsedNs: 2, Reps: 1},
			)
			_, err := runtime.ToMeasurement(section)
			So(errors.Cause(err), ShouldEqual, ErrMeasurement)
		})

		Convey("sections with broken framing are rejected", func() {
			_, err := runtime.ToMeasurement([]bridge.LogMessage{
				&bridge.RuntimeMeasurement{ElapsedNs: 1, Reps: 1},
				&bridge.StopMeasurement{},
			})
			So(errors.Cause(err), ShouldEqual, ErrMeasurement)
		})
	})
}

func TestArbitraryInstrument(t *testing.T) {
	Convey("While using the arbitrary instrument", t, func() {
		arbitrary, err := NewArbitrary(NewConfig(ArbitraryKey, nil))
		So(err, ShouldBeNil)

		Convey("it measures value methods with a single invocation", func() {
			So(arbitrary.IsBenchmarkMethod(benchmark.Method{Name: "allocated", Kind: benchmark.KindValue}), ShouldBeTrue)
			So(arbitrary.IsBenchmarkMethod(benchmark.Method{Name: "hash", Kind: benchmark.KindTimed}), ShouldBeFalse)
			So(arbitrary.NeedsCalibration(), ShouldBeFalse)
			So(arbitrary.DefaultMeasurements(), ShouldEqual, 1)
			So(arbitrary.WorkerLoop(), ShouldResemble, bridge.LoopSpec{Kind: bridge.LoopSingleShot})
		})

		Convey("it extracts the reported value with weight one", func() {
			section := timingSection(&bridge.ArbitraryMeasurement{
				Value:       4096,
				Unit:        "bytes",
				Description: "allocated",
			})
			measurement, err := arbitrary.ToMeasurement(section)
			So(err, ShouldBeNil)
			So(measurement, ShouldResemble, Measurement{
				Description: "allocated",
				Value:       4096,
				Unit:        "bytes",
				Weight:      1,
			})
		})

		Convey("sections without a value message are rejected", func() {
			_, err := arbitrary.ToMeasurement(timingSection())
			So(errors.Cause(err), ShouldEqual, ErrMeasurement)
		})
	})
}

// vmBoundInstrument is supported on a single VM type only.
type vmBoundInstrument struct {
	Instrument
	vmType string
}

func (i vmBoundInstrument) Name() string                { return "vmbound" }
func (i vmBoundInstrument) SupportedOnVM(t string) bool { return t == i.vmType }

func TestRegistryAndResolve(t *testing.T) {
	Convey("While resolving the instrument selection", t, func() {
		registry := NewRegistry()

		Convey("the built-in instruments are registered", func() {
			So(registry.Keys(), ShouldResemble, []string{ArbitraryKey, RuntimeKey})
		})

		Convey("registering a key twice fails", func() {
			err := registry.Register(RuntimeKey, NewRuntime)
			So(errors.Cause(err), ShouldEqual, ErrConfiguration)
		})

		Convey("unknown instrument names fail before anything spawns", func() {
			_, _, err := Resolve(registry, Selection{Selected: []string{"allocation"}})
			So(errors.Cause(err), ShouldEqual, ErrConfiguration)
			So(err.Error(), ShouldContainSubstring, `unknown instrument "allocation"`)
		})

		Convey("defaults apply when nothing was selected", func() {
			instruments, warnings, err := Resolve(registry, Selection{
				Defaults: []string{RuntimeKey, ArbitraryKey},
				VMTypes:  []string{"go"},
			})
			So(err, ShouldBeNil)
			So(warnings, ShouldBeEmpty)
			So(instruments, ShouldHaveLength, 2)
			So(instruments[0].Name(), ShouldEqual, RuntimeKey)
			So(instruments[1].Name(), ShouldEqual, ArbitraryKey)
		})

		Convey("duplicate names resolve to a single instance", func() {
			instruments, _, err := Resolve(registry, Selection{
				Selected: []string{RuntimeKey, RuntimeKey},
			})
			So(err, ShouldBeNil)
			So(instruments, ShouldHaveLength, 1)
		})

		Convey("an empty selection with no defaults fails", func() {
			_, _, err := Resolve(registry, Selection{})
			So(errors.Cause(err), ShouldEqual, ErrConfiguration)
		})

		Convey("with a VM-restricted instrument registered", func() {
			err := registry.Register("vmbound", func(*Config) (Instrument, error) {
				return vmBoundInstrument{vmType: "go"}, nil
			})
			So(err, ShouldBeNil)

			Convey("unsupported instruments are dropped with a warning", func() {
				instruments, warnings, err := Resolve(registry, Selection{
					Selected: []string{RuntimeKey, "vmbound"},
					VMTypes:  []string{"go", "tinygo"},
				})
				So(err, ShouldBeNil)
				So(instruments, ShouldHaveLength, 1)
				So(instruments[0].Name(), ShouldEqual, RuntimeKey)
				So(warnings, ShouldHaveLength, 1)
				So(warnings[0], ShouldContainSubstring, `instrument "vmbound" dropped`)
				So(warnings[0], ShouldContainSubstring, "tinygo")
			})

			Convey("dropping the last instrument is fatal", func() {
				_, warnings, err := Resolve(registry, Selection{
					Selected: []string{"vmbound"},
					VMTypes:  []string{"tinygo"},
				})
				So(errors.Cause(err), ShouldEqual, ErrConfiguration)
				So(warnings, ShouldHaveLength, 1)
			})
		})
	})
}

func TestInstrumentedMethods(t *testing.T) {
	Convey("While pairing instruments with benchmark methods", t, func() {
		target, err := benchmark.NewTarget("hashing", []benchmark.Method{
			{Name: "hashSmall", Kind: benchmark.KindTimed},
			{Name: "hashLarge", Kind: benchmark.KindTimed},
			{Name: "allocated", Kind: benchmark.KindValue, Unit: "bytes"},
		})
		So(err, ShouldBeNil)

		runtime, err := NewRuntime(NewConfig(RuntimeKey, nil))
		So(err, ShouldBeNil)
		arbitrary, err := NewArbitrary(NewConfig(ArbitraryKey, nil))
		So(err, ShouldBeNil)

		Convey("each instrument pairs with its compatible methods in order", func() {
			pairs, err := InstrumentedMethods([]Instrument{runtime, arbitrary}, target, nil)
			So(err, ShouldBeNil)
			So(pairs, ShouldHaveLength, 3)
			So(pairs[0].String(), ShouldEqual, "runtime(hashSmall)")
			So(pairs[1].String(), ShouldEqual, "runtime(hashLarge)")
			So(pairs[2].String(), ShouldEqual, "arbitrary(allocated)")
		})

		Convey("selected method names narrow the pairing", func() {
			pairs, err := InstrumentedMethods([]Instrument{runtime, arbitrary}, target, []string{"hashLarge"})
			So(err, ShouldBeNil)
			So(pairs, ShouldHaveLength, 1)
			So(pairs[0].String(), ShouldEqual, "runtime(hashLarge)")
		})

		Convey("selected names matching no method fail with the sorted list", func() {
			_, err := InstrumentedMethods([]Instrument{runtime}, target, []string{"warble", "hashLarge", "alloc"})
			So(errors.Cause(err), ShouldEqual, ErrConfiguration)
			So(err.Error(), ShouldContainSubstring, "[alloc warble]")
		})
	})
}
