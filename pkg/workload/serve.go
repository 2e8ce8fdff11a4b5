package workload

import (
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/bridge"
)

// Serve announces this process to the runner and answers its requests on
// the standard streams. It blocks until a stop request arrives or the
// runner closes the worker's stdin, which both end the worker cleanly.
func Serve(b *Benchmark) error {
	return serve(b, os.Stdin, os.Stdout)
}

func serve(b *Benchmark, in io.Reader, out io.Writer) error {
	reader := bridge.NewReader(in)
	writer := bridge.NewWriter(out)

	if err := writer.Write(&bridge.ProcessStarted{
		PID:            os.Getpid(),
		Runtime:        "go",
		RuntimeVersion: runtime.Version(),
	}); err != nil {
		return err
	}
	if err := writer.Write(&bridge.VMOptions{Options: vmOptions()}); err != nil {
		return err
	}

	var current *session
	for {
		message, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if errors.Cause(err) == bridge.ErrProtocol {
				// Report the garbled request and keep serving.
				if err := writeFailure(writer, err); err != nil {
					return err
				}
				continue
			}
			return err
		}

		switch request := message.(type) {
		case *bridge.TrialRequest:
			session, err := newSession(b, request)
			if err != nil {
				current = nil
				if err := writeFailure(writer, err); err != nil {
					return err
				}
				continue
			}
			current = session

		case *bridge.DryRunRequest:
			if current == nil {
				if err := writeFailure(writer, errors.New("no trial configured")); err != nil {
					return err
				}
				continue
			}
			if err := current.dryRun(); err != nil {
				if err := writeFailure(writer, err); err != nil {
					return err
				}
				continue
			}
			if err := writer.Write(&bridge.DryRunSuccess{IDs: []int{current.trialID}}); err != nil {
				return err
			}

		case *bridge.RunRequest:
			if current == nil {
				if err := writeFailure(writer, errors.New("no trial configured")); err != nil {
					return err
				}
				continue
			}
			section, err := current.measure(request.Reps)
			if err != nil {
				if err := writeFailure(writer, err); err != nil {
					return err
				}
				continue
			}
			for _, message := range section {
				if err := writer.Write(message); err != nil {
					return err
				}
			}

		case *bridge.StopRequest:
			if err := writer.Write(&bridge.StopAck{}); err != nil {
				return err
			}
			return nil

		default:
			if err := writeFailure(writer, errors.Errorf("unexpected %q message", message.Kind())); err != nil {
				return err
			}
		}
	}
}

// writeFailure reports a failed request to the runner. Benchmark panics
// keep their stack context.
func writeFailure(writer *bridge.Writer, err error) error {
	failure := &bridge.Failure{Message: err.Error()}
	if panicked, ok := errors.Cause(err).(*panicError); ok {
		failure.Stack = panicked.stack
	}
	return writer.Write(failure)
}

// vmOptions reports the runtime knobs of this worker process.
func vmOptions() map[string]string {
	options := map[string]string{
		"goVersion":  runtime.Version(),
		"goos":       runtime.GOOS,
		"goarch":     runtime.GOARCH,
		"gomaxprocs": strconv.Itoa(runtime.GOMAXPROCS(0)),
	}
	if gogc := os.Getenv("GOGC"); gogc != "" {
		options["gogc"] = gogc
	}
	return options
}
