package report

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/instrument"
	"github.com/intelsdi-x/chronos/pkg/scheduler"
	"github.com/intelsdi-x/chronos/pkg/worker"
)

func runtimePair(method string) instrument.InstrumentedMethod {
	runtime, err := instrument.NewRuntime(instrument.NewConfig(instrument.RuntimeKey, nil))
	So(err, ShouldBeNil)

	pair, err := runtime.CreateInstrumentedMethod(benchmark.Method{Name: method, Kind: benchmark.KindTimed})
	So(err, ShouldBeNil)
	return pair
}

func nsMeasurement(value, weight float64, flags ...string) instrument.Measurement {
	m, err := instrument.NewMeasurement("runtime", value, "ns", weight)
	So(err, ShouldBeNil)
	m.Flags = flags
	return m
}

func successResult(id int, pair instrument.InstrumentedMethod, params map[string]string, measurements ...instrument.Measurement) scheduler.TrialResult {
	return scheduler.TrialResult{
		Trial: scheduler.Trial{
			ID:           id,
			Instrumented: pair,
			Params:       params,
			VM:           worker.VMConfig{Name: "box", Type: "sh"},
			Measurements: len(measurements),
		},
		State:        scheduler.Success,
		Measurements: measurements,
	}
}

func flagConfig(percentiles ...float64) Config {
	return Config{Percentiles: percentiles, Outliers: OutlierFlag}
}

func TestReportAggregation(t *testing.T) {
	Convey("While aggregating trial results", t, func() {
		pair := runtimePair("fnv")

		Convey("measurements merge weighted by their repetitions", func() {
			results := []scheduler.TrialResult{
				successResult(0, pair, nil, nsMeasurement(300, 3)),
				successResult(1, pair, nil, nsMeasurement(200, 1)),
			}

			built, err := Build(results, flagConfig(50, 100))
			So(err, ShouldBeNil)
			So(built.TotalTrials(), ShouldEqual, 2)
			So(built.Failures(), ShouldBeEmpty)

			groups := built.Groups()
			So(groups, ShouldHaveLength, 1)

			group := groups[0]
			So(group.Key, ShouldResemble, Key{Method: "fnv", Instrument: "runtime"})
			So(group.Unit, ShouldEqual, "ns")
			So(group.Trials, ShouldEqual, 2)
			So(group.Measurements, ShouldEqual, 2)
			// Per invocation the samples are 100 (weight 3) and 200 (weight 1).
			So(group.Mean, ShouldEqual, 125)
			So(group.StdDev, ShouldEqual, 50)
			So(group.Min, ShouldEqual, 100)
			So(group.Max, ShouldEqual, 200)
			So(group.Percentiles, ShouldHaveLength, 2)
			So(group.Percentiles[0].Value, ShouldEqual, 100)
			So(group.Percentiles[1].Value, ShouldEqual, 200)
		})

		Convey("a single measurement reports a zero standard deviation", func() {
			results := []scheduler.TrialResult{
				successResult(0, pair, nil, nsMeasurement(400, 1)),
			}

			built, err := Build(results, flagConfig(50))
			So(err, ShouldBeNil)

			group := built.Groups()[0]
			So(group.Mean, ShouldEqual, 400)
			So(group.StdDev, ShouldEqual, 0)
		})

		Convey("failed trials are listed and never merged", func() {
			results := []scheduler.TrialResult{
				successResult(0, pair, nil, nsMeasurement(100, 1)),
				{
					Trial:   scheduler.Trial{ID: 1, Instrumented: pair, VM: worker.VMConfig{Name: "flaky"}},
					State:   scheduler.Failed,
					Failure: "worker reported: boom",
				},
				{
					Trial:   scheduler.Trial{ID: 2, Instrumented: pair, VM: worker.VMConfig{Name: "mute"}},
					State:   scheduler.TimedOut,
					Failure: "deadline of 1s exceeded",
				},
			}

			built, err := Build(results, flagConfig(50))
			So(err, ShouldBeNil)
			So(built.TotalTrials(), ShouldEqual, 3)

			So(built.Groups(), ShouldHaveLength, 1)
			So(built.Groups()[0].Trials, ShouldEqual, 1)
			So(built.Groups()[0].Mean, ShouldEqual, 100)

			failures := built.Failures()
			So(failures, ShouldHaveLength, 2)
			So(failures[0].TrialID, ShouldEqual, 1)
			So(failures[0].State, ShouldEqual, scheduler.Failed)
			So(failures[0].Reason, ShouldContainSubstring, "boom")
			So(failures[1].TrialID, ShouldEqual, 2)
			So(failures[1].State, ShouldEqual, scheduler.TimedOut)
			So(failures[1].VM, ShouldEqual, "mute")
		})

		Convey("groups split by parameter assignment and sort by key", func() {
			sha := runtimePair("sha")
			results := []scheduler.TrialResult{
				successResult(0, sha, map[string]string{"size": "64"}, nsMeasurement(100, 1)),
				successResult(1, pair, map[string]string{"size": "1024"}, nsMeasurement(100, 1)),
				successResult(2, pair, map[string]string{"size": "64"}, nsMeasurement(100, 1)),
			}

			built, err := Build(results, flagConfig(50))
			So(err, ShouldBeNil)

			groups := built.Groups()
			So(groups, ShouldHaveLength, 3)
			So(groups[0].Key.String(), ShouldEqual, "runtime(fnv){size=1024}")
			So(groups[1].Key.String(), ShouldEqual, "runtime(fnv){size=64}")
			So(groups[2].Key.String(), ShouldEqual, "runtime(sha){size=64}")
		})

		Convey("warmup and measurement flags surface on the group", func() {
			result := successResult(0, pair, nil,
				nsMeasurement(100, 1, instrument.FlagGCDisturbed))
			result.PartialWarmup = true

			built, err := Build([]scheduler.TrialResult{result}, flagConfig(50))
			So(err, ShouldBeNil)
			So(built.Groups()[0].Flags, ShouldResemble,
				[]string{instrument.FlagGCDisturbed, FlagPartialWarmup})
		})

		Convey("clashing units inside one group fail the build", func() {
			odd, err := instrument.NewMeasurement("runtime", 5, "ms", 1)
			So(err, ShouldBeNil)

			results := []scheduler.TrialResult{
				successResult(0, pair, nil, nsMeasurement(100, 1), odd),
			}
			built, err := Build(results, flagConfig(50))
			So(built, ShouldBeNil)
			So(err.Error(), ShouldContainSubstring, `unit "ms" clashes`)
		})

		Convey("percentiles outside (0, 100] fail the build", func() {
			_, err := Build(nil, flagConfig(0))
			So(err, ShouldNotBeNil)
			_, err = Build(nil, flagConfig(101))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestOutlierPolicies(t *testing.T) {
	Convey("With one sample far beyond the Tukey fences", t, func() {
		pair := runtimePair("fnv")
		results := []scheduler.TrialResult{
			successResult(0, pair, nil,
				nsMeasurement(10, 1),
				nsMeasurement(10, 1),
				nsMeasurement(10, 1),
				nsMeasurement(10, 1),
				nsMeasurement(1000, 1)),
		}

		Convey("the flag policy keeps it in the numbers and marks the group", func() {
			built, err := Build(results, Config{Percentiles: []float64{50}, Outliers: OutlierFlag})
			So(err, ShouldBeNil)

			group := built.Groups()[0]
			So(group.Outliers, ShouldEqual, 1)
			So(group.Measurements, ShouldEqual, 5)
			So(group.Mean, ShouldEqual, 208)
			So(group.Flags, ShouldContain, FlagOutliers)
		})

		Convey("the trim policy removes it from the numbers", func() {
			built, err := Build(results, Config{Percentiles: []float64{50}, Outliers: OutlierTrim})
			So(err, ShouldBeNil)

			group := built.Groups()[0]
			So(group.Outliers, ShouldEqual, 1)
			So(group.Measurements, ShouldEqual, 4)
			So(group.Mean, ShouldEqual, 10)
			So(group.Max, ShouldEqual, 10)
			So(group.Flags, ShouldContain, FlagOutliersTrimmed)
		})

		Convey("the keep policy leaves it alone and unreported", func() {
			built, err := Build(results, Config{Percentiles: []float64{50}, Outliers: OutlierKeep})
			So(err, ShouldBeNil)

			group := built.Groups()[0]
			So(group.Outliers, ShouldEqual, 0)
			So(group.Measurements, ShouldEqual, 5)
			So(group.Mean, ShouldEqual, 208)
			So(group.Flags, ShouldBeEmpty)
		})
	})
}

func TestReportConfig(t *testing.T) {
	Convey("While resolving the aggregation configuration", t, func() {
		Convey("the defaults ask for the 50th, 90th and 99th percentile", func() {
			config, err := DefaultConfig()
			So(err, ShouldBeNil)
			So(config.Percentiles, ShouldResemble, []float64{50, 90, 99})
			So(config.Outliers, ShouldEqual, OutlierFlag)
		})

		Convey("policy words map to policies", func() {
			policy, err := ParseOutlierPolicy("trim")
			So(err, ShouldBeNil)
			So(policy, ShouldEqual, OutlierTrim)

			policy, err = ParseOutlierPolicy("keep")
			So(err, ShouldBeNil)
			So(policy, ShouldEqual, OutlierKeep)

			_, err = ParseOutlierPolicy("bogus")
			So(err, ShouldNotBeNil)
		})
	})
}
