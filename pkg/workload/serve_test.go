package workload

import (
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/intelsdi-x/chronos/pkg/bridge"
)

// testWorker runs serve over in-process pipes. Tests must consume every
// reply they trigger; the pipes are unbuffered.
type testWorker struct {
	toWorker   *bridge.Writer
	fromWorker *bridge.Reader
	stdin      *io.PipeWriter
	done       chan error
}

func startWorker(b *Benchmark) *testWorker {
	inReader, inWriter := io.Pipe()
	outReader, outWriter := io.Pipe()

	worker := &testWorker{
		toWorker:   bridge.NewWriter(inWriter),
		fromWorker: bridge.NewReader(outReader),
		stdin:      inWriter,
		done:       make(chan error, 1),
	}
	go func() {
		worker.done <- serve(b, inReader, outWriter)
		outWriter.Close()
	}()
	return worker
}

func (w *testWorker) send(message bridge.LogMessage) {
	So(w.toWorker.Write(message), ShouldBeNil)
}

func (w *testWorker) receive() bridge.LogMessage {
	message, err := w.fromWorker.Read()
	So(err, ShouldBeNil)
	return message
}

func (w *testWorker) receiveFailure() *bridge.Failure {
	failure, ok := w.receive().(*bridge.Failure)
	So(ok, ShouldBeTrue)
	return failure
}

func (w *testWorker) handshake() (*bridge.ProcessStarted, *bridge.VMOptions) {
	started, ok := w.receive().(*bridge.ProcessStarted)
	So(ok, ShouldBeTrue)
	options, ok := w.receive().(*bridge.VMOptions)
	So(ok, ShouldBeTrue)
	return started, options
}

func (w *testWorker) waitDone() error {
	select {
	case err := <-w.done:
		return err
	case <-time.After(5 * time.Second):
		return errors.New("worker did not finish in time")
	}
}

func TestServeProtocol(t *testing.T) {
	Convey("While serving the worker protocol", t, func() {
		b := NewBenchmark("hashing")
		So(b.Timed("spin", func(params Params, reps int64) error {
			for i := int64(0); i < reps; i++ {
				time.Sleep(50 * time.Microsecond)
			}
			return nil
		}), ShouldBeNil)
		So(b.Timed("dying", func(Params, int64) error {
			return errors.New("this method always fails")
		}), ShouldBeNil)
		So(b.Timed("panicky", func(Params, int64) error {
			panic("kaboom")
		}), ShouldBeNil)
		So(b.Value("size", "bytes", func(params Params) (float64, error) {
			block, err := params.Int("block")
			if err != nil {
				return 0, err
			}
			return float64(block), nil
		}), ShouldBeNil)

		worker := startWorker(b)
		defer worker.stdin.Close()

		Convey("the worker announces itself before anything else", func() {
			started, options := worker.handshake()
			So(started.Runtime, ShouldEqual, "go")
			So(started.RuntimeVersion, ShouldStartWith, "go")
			So(started.PID, ShouldBeGreaterThan, 0)
			So(options.Options["gomaxprocs"], ShouldNotBeEmpty)
			So(options.Options["goos"], ShouldNotBeEmpty)

			Convey("a repetition run reports one delimited timing section", func() {
				worker.send(&bridge.TrialRequest{
					TrialID: 4,
					Method:  "spin",
					Loop:    bridge.LoopSpec{Kind: bridge.LoopRepetition, EmitGC: true},
				})
				worker.send(&bridge.RunRequest{Reps: 3})

				So(worker.receive().Kind(), ShouldEqual, bridge.KindStartMeasurement)
				So(worker.receive().Kind(), ShouldEqual, bridge.KindGCLog)

				measurement, ok := worker.receive().(*bridge.RuntimeMeasurement)
				So(ok, ShouldBeTrue)
				So(measurement.Reps, ShouldEqual, 3)
				So(measurement.ElapsedNs, ShouldBeGreaterThan, 0)

				So(worker.receive().Kind(), ShouldEqual, bridge.KindStopMeasurement)
			})

			Convey("a duration run accumulates loops until the budget is spent", func() {
				worker.send(&bridge.TrialRequest{
					TrialID: 5,
					Method:  "spin",
					Loop: bridge.LoopSpec{
						Kind:       bridge.LoopDuration,
						Reps:       2,
						DurationNs: (2 * time.Millisecond).Nanoseconds(),
					},
				})
				worker.send(&bridge.RunRequest{})

				So(worker.receive().Kind(), ShouldEqual, bridge.KindStartMeasurement)
				measurement, ok := worker.receive().(*bridge.RuntimeMeasurement)
				So(ok, ShouldBeTrue)
				So(measurement.ElapsedNs, ShouldBeGreaterThanOrEqualTo, (2 * time.Millisecond).Nanoseconds())
				So(measurement.Reps, ShouldBeGreaterThanOrEqualTo, 2)
				So(worker.receive().Kind(), ShouldEqual, bridge.KindStopMeasurement)
			})

			Convey("a single shot run reports the method's own scalar", func() {
				worker.send(&bridge.TrialRequest{
					TrialID: 6,
					Method:  "size",
					Params:  map[string]string{"block": "4096"},
					Loop:    bridge.LoopSpec{Kind: bridge.LoopSingleShot},
				})
				worker.send(&bridge.RunRequest{})

				So(worker.receive().Kind(), ShouldEqual, bridge.KindStartMeasurement)
				measurement, ok := worker.receive().(*bridge.ArbitraryMeasurement)
				So(ok, ShouldBeTrue)
				So(measurement.Value, ShouldEqual, 4096)
				So(measurement.Unit, ShouldEqual, "bytes")
				So(measurement.Description, ShouldEqual, "size")
				So(worker.receive().Kind(), ShouldEqual, bridge.KindStopMeasurement)
			})

			Convey("a dry run acknowledges the configured trial id", func() {
				worker.send(&bridge.TrialRequest{
					TrialID: 7,
					Method:  "spin",
					Loop:    bridge.LoopSpec{Kind: bridge.LoopRepetition},
				})
				worker.send(&bridge.DryRunRequest{})

				success, ok := worker.receive().(*bridge.DryRunSuccess)
				So(ok, ShouldBeTrue)
				So(success.IDs, ShouldResemble, []int{7})
			})

			Convey("a failing method turns into a failure reply, not an exit", func() {
				worker.send(&bridge.TrialRequest{
					TrialID: 8,
					Method:  "dying",
					Loop:    bridge.LoopSpec{Kind: bridge.LoopRepetition},
				})
				worker.send(&bridge.RunRequest{Reps: 1})

				failure := worker.receiveFailure()
				So(failure.Message, ShouldContainSubstring, "always fails")

				worker.send(&bridge.StopRequest{})
				So(worker.receive().Kind(), ShouldEqual, bridge.KindStopAck)
				So(worker.waitDone(), ShouldBeNil)
			})

			Convey("a panicking method reports its stack and the worker lives on", func() {
				worker.send(&bridge.TrialRequest{
					TrialID: 9,
					Method:  "panicky",
					Loop:    bridge.LoopSpec{Kind: bridge.LoopRepetition},
				})
				worker.send(&bridge.RunRequest{Reps: 1})

				failure := worker.receiveFailure()
				So(failure.Message, ShouldContainSubstring, "benchmark panicked: kaboom")
				So(failure.Stack, ShouldNotBeEmpty)

				worker.send(&bridge.StopRequest{})
				So(worker.receive().Kind(), ShouldEqual, bridge.KindStopAck)
			})

			Convey("an unknown method is refused at trial configuration", func() {
				worker.send(&bridge.TrialRequest{
					TrialID: 10,
					Method:  "warp",
					Loop:    bridge.LoopSpec{Kind: bridge.LoopRepetition},
				})
				failure := worker.receiveFailure()
				So(failure.Message, ShouldContainSubstring, `no timed method "warp"`)
			})

			Convey("a run without a configured trial is refused", func() {
				worker.send(&bridge.RunRequest{Reps: 1})
				failure := worker.receiveFailure()
				So(failure.Message, ShouldContainSubstring, "no trial configured")
			})

			Convey("a garbled line is reported and the worker keeps serving", func() {
				_, err := worker.stdin.Write([]byte("this is not a protocol line\n"))
				So(err, ShouldBeNil)

				failure := worker.receiveFailure()
				So(failure.Message, ShouldContainSubstring, "envelope")

				worker.send(&bridge.StopRequest{})
				So(worker.receive().Kind(), ShouldEqual, bridge.KindStopAck)
				So(worker.waitDone(), ShouldBeNil)
			})

			Convey("a stop request is acknowledged before exiting", func() {
				worker.send(&bridge.StopRequest{})
				So(worker.receive().Kind(), ShouldEqual, bridge.KindStopAck)
				So(worker.waitDone(), ShouldBeNil)
			})

			Convey("a closed stdin ends the worker cleanly", func() {
				So(worker.stdin.Close(), ShouldBeNil)
				So(worker.waitDone(), ShouldBeNil)
			})
		})
	})
}
