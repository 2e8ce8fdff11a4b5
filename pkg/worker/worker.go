// Package worker spawns and supervises benchmark worker processes. A worker
// is a child process speaking the bridge protocol on its standard streams:
// requests go to its stdin, measurement messages come back on its stdout and
// free-form diagnostics land in a stderr file. The package offers a Launcher
// for spawning single workers and a Pool that reuses idle ones between
// trials.
package worker

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/bridge"
	"github.com/intelsdi-x/chronos/pkg/conf"
)

var (
	// ErrStartup marks workers that could not be spawned or did not complete
	// the protocol handshake within the startup timeout.
	ErrStartup = errors.New("worker failed to start")

	// ErrChannelClosed marks send or receive attempts on a worker whose
	// process has exited or whose streams are gone.
	ErrChannelClosed = errors.New("worker channel closed")
)

var (
	startupTimeoutFlag = conf.NewDurationFlag(
		"worker_startup_timeout",
		"Maximum wait for the worker handshake after spawning the process.",
		10*time.Second)
	stopGracePeriodFlag = conf.NewDurationFlag(
		"worker_grace_period",
		"Grace given to a worker after a stop request before it is killed.",
		5*time.Second)
	freshWorkersFlag = conf.NewBoolFlag(
		"fresh_workers",
		"Destroy workers after every trial instead of reusing idle ones.",
		false)
)

// State is an enum presenting current worker process state.
type State int

const (
	// RUNNING worker state means that the process is still alive.
	RUNNING State = iota
	// TERMINATED worker state means that the process exited or was killed.
	TERMINATED
)

// VMConfig describes one worker flavor: the command spawning it, extra
// environment and the VM type instruments check support against.
type VMConfig struct {
	// Name identifies the flavor in trial listings and pool bookkeeping.
	Name string
	// Type is matched against instrument support, e.g. "go".
	Type string
	// Command is the argv of the worker process.
	Command []string
	// Env holds extra KEY=VALUE entries appended to the runner environment.
	Env []string
}

// Handle represents one live worker process and its protocol channel.
type Handle interface {
	// Send writes one request message to the worker. It fails with
	// ErrChannelClosed once the process is gone.
	Send(message bridge.LogMessage) error
	// Receive blocks for the next worker message. Malformed lines surface a
	// protocol error and reading continues; a closed stream fails with
	// ErrChannelClosed.
	Receive(ctx context.Context) (bridge.LogMessage, error)
	// Stop asks the worker to exit and escalates to SIGKILL after the grace
	// period. Stopping an already terminated worker is a no-op.
	Stop() error
	// Terminate kills the worker process group without a stop request.
	Terminate() error
	// Status returns a state of the worker process.
	Status() State
	// ExitCode returns the exit code. If the worker is still running it
	// returns an error.
	ExitCode() (int, error)
	// Wait blocks until the process terminates or the timeout passes. A zero
	// timeout waits without bound. It returns true if the process is
	// terminated.
	Wait(timeout time.Duration) bool
	// PID returns the worker process id.
	PID() int
	// VM returns the flavor the worker was spawned from.
	VM() VMConfig
	// Runtime returns the runtime name and version the worker announced in
	// its handshake.
	Runtime() (name, version string)
	// RuntimeOptions returns the VM options the worker announced in its
	// handshake.
	RuntimeOptions() map[string]string
	// StderrFile returns a file handle to the worker's stderr file.
	StderrFile() (*os.File, error)
	// Clean closes the worker's stderr file.
	Clean() error
	// EraseOutput removes the worker's stderr file.
	EraseOutput() error
	// String renders a short description for logs.
	String() string
}
