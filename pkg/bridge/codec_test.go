package bridge

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCodec(t *testing.T) {
	Convey("While using the bridge codec", t, func() {
		Convey("Every message variant should round-trip through the wire form", func() {
			messages := []LogMessage{
				&ProcessStarted{PID: 4242, Runtime: "go", RuntimeVersion: "go1.21"},
				&VMOptions{Options: map[string]string{"GOGC": "100", "GOMAXPROCS": "8"}},
				&GCLog{Collections: 3, PauseNs: 1500},
				&Failure{Message: "benchmark panicked", Stack: "goroutine 1 [running]"},
				&StartMeasurement{},
				&StopMeasurement{},
				&RuntimeMeasurement{ElapsedNs: 1200300, Reps: 1000},
				&ArbitraryMeasurement{Value: 42.5, Unit: "bytes", Description: "allocated"},
				&DryRunSuccess{IDs: []int{1, 2, 5}},
				&StopAck{},
				&TrialRequest{
					TrialID: 7,
					Method:  "Fnv64",
					Params:  map[string]string{"size": "1024"},
					Loop:    LoopSpec{Kind: LoopRepetition, Reps: 10, EmitGC: true},
					Options: map[string]string{"mode": "repetition"},
				},
				&RunRequest{Reps: 2048},
				&DryRunRequest{},
				&StopRequest{},
			}

			for _, original := range messages {
				line, err := Marshal(original)
				So(err, ShouldBeNil)

				decoded, err := Unmarshal(line)
				So(err, ShouldBeNil)
				So(decoded, ShouldResemble, original)
			}
		})

		Convey("When a line carries an unknown kind", func() {
			_, err := Unmarshal([]byte(`{"type":"teleport","body":{}}`))

			Convey("Decoding should fail with a protocol error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Cause(err), ShouldEqual, ErrProtocol)
			})
		})

		Convey("When a line is not valid JSON", func() {
			_, err := Unmarshal([]byte("not json at all"))

			Convey("Decoding should fail with a protocol error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Cause(err), ShouldEqual, ErrProtocol)
			})
		})

		Convey("When a body does not match its declared kind", func() {
			_, err := Unmarshal([]byte(`{"type":"runtimeMeasurement","body":{"elapsedNs":"soon"}}`))

			Convey("Decoding should fail with a protocol error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Cause(err), ShouldEqual, ErrProtocol)
			})
		})

		Convey("When messages are streamed through a Writer and a Reader", func() {
			var buffer bytes.Buffer
			writer := NewWriter(&buffer)

			So(writer.Write(&ProcessStarted{PID: 1}), ShouldBeNil)
			So(writer.Write(&RuntimeMeasurement{ElapsedNs: 10, Reps: 1}), ShouldBeNil)
			So(writer.Write(&StopAck{}), ShouldBeNil)

			reader := NewReader(&buffer)

			Convey("They should arrive decoded, in FIFO order", func() {
				first, err := reader.Read()
				So(err, ShouldBeNil)
				So(first, ShouldResemble, &ProcessStarted{PID: 1})

				second, err := reader.Read()
				So(err, ShouldBeNil)
				So(second, ShouldResemble, &RuntimeMeasurement{ElapsedNs: 10, Reps: 1})

				third, err := reader.Read()
				So(err, ShouldBeNil)
				So(third, ShouldResemble, &StopAck{})

				Convey("And the stream end should surface as EOF", func() {
					_, err := reader.Read()
					So(err, ShouldEqual, io.EOF)
				})
			})
		})

		Convey("When the stream contains blank lines between messages", func() {
			reader := NewReader(bytes.NewBufferString(
				"\n{\"type\":\"stopAck\"}\n\n  \n{\"type\":\"stopRequest\"}\n"))

			Convey("Blank lines should be skipped", func() {
				first, err := reader.Read()
				So(err, ShouldBeNil)
				So(first.Kind(), ShouldEqual, KindStopAck)

				second, err := reader.Read()
				So(err, ShouldBeNil)
				So(second.Kind(), ShouldEqual, KindStopRequest)
			})
		})

		Convey("When the final line has no trailing newline", func() {
			reader := NewReader(bytes.NewBufferString(`{"type":"stopAck"}`))

			Convey("It should still decode as a message", func() {
				msg, err := reader.Read()
				So(err, ShouldBeNil)
				So(msg.Kind(), ShouldEqual, KindStopAck)
			})
		})
	})
}
