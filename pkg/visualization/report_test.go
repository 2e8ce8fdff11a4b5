package visualization

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/instrument"
	"github.com/intelsdi-x/chronos/pkg/report"
	"github.com/intelsdi-x/chronos/pkg/scheduler"
	"github.com/intelsdi-x/chronos/pkg/worker"
)

func buildReport() *report.Report {
	runtime, err := instrument.NewRuntime(instrument.NewConfig(instrument.RuntimeKey, nil))
	So(err, ShouldBeNil)
	pair, err := runtime.CreateInstrumentedMethod(benchmark.Method{Name: "fnv", Kind: benchmark.KindTimed})
	So(err, ShouldBeNil)

	first, err := instrument.NewMeasurement("runtime", 300, "ns", 3)
	So(err, ShouldBeNil)
	second, err := instrument.NewMeasurement("runtime", 200, "ns", 1)
	So(err, ShouldBeNil)

	results := []scheduler.TrialResult{
		{
			Trial:        scheduler.Trial{ID: 0, Instrumented: pair, VM: worker.VMConfig{Name: "box"}, Measurements: 2},
			State:        scheduler.Success,
			Measurements: []instrument.Measurement{first, second},
		},
		{
			Trial:   scheduler.Trial{ID: 1, Instrumented: pair, VM: worker.VMConfig{Name: "box"}},
			State:   scheduler.TimedOut,
			Failure: "deadline of 10s exceeded",
		},
	}

	rep, err := report.Build(results, report.Config{Percentiles: []float64{50, 99}, Outliers: report.OutlierFlag})
	So(err, ShouldBeNil)
	return rep
}

func TestReportRendering(t *testing.T) {
	Convey("While rendering a report", t, func() {
		rep := buildReport()

		Convey("the summary table lists each group with its statistics", func() {
			var buffer bytes.Buffer
			SummaryTable(rep).Render(&buffer)

			rendered := buffer.String()
			So(rendered, ShouldContainSubstring, "GROUP")
			So(rendered, ShouldContainSubstring, "P50")
			So(rendered, ShouldContainSubstring, "P99")
			So(rendered, ShouldContainSubstring, "runtime(fnv)")
			// Weighted mean of 100 (weight 3) and 200 (weight 1).
			So(rendered, ShouldContainSubstring, "125")
			So(rendered, ShouldContainSubstring, "ns")
		})

		Convey("the failure table lists trials verbatim", func() {
			var buffer bytes.Buffer
			FailureTable(rep).Render(&buffer)

			rendered := buffer.String()
			So(rendered, ShouldContainSubstring, "timed-out")
			So(rendered, ShouldContainSubstring, "deadline of 10s exceeded")
			So(rendered, ShouldContainSubstring, "box")
		})

		Convey("the full report starts with the run id", func() {
			var buffer bytes.Buffer
			PrintReport(&buffer, "550e8400", rep)

			rendered := buffer.String()
			So(rendered, ShouldStartWith, "Run id: 550e8400")
			So(rendered, ShouldContainSubstring, "1 of 2 trials did not succeed")
		})

		Convey("lists print labeled lines", func() {
			var buffer bytes.Buffer
			NewList([]string{"one", "two"}, "event: ").Render(&buffer)
			So(buffer.String(), ShouldEqual, "event: one\nevent: two\n")
		})
	})
}
