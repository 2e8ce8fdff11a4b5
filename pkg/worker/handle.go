package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/intelsdi-x/chronos/pkg/bridge"
)

const killTimeout = 5 * time.Second

type receiveResult struct {
	message bridge.LogMessage
	err     error
}

// processHandle implements Handle for a locally spawned worker process.
type processHandle struct {
	vm          VMConfig
	cmdHandler  *exec.Cmd
	pid         int
	writer      *bridge.Writer
	stdin       io.WriteCloser
	stderrFile  *os.File
	gracePeriod time.Duration

	messages chan receiveResult
	// discard, once closed, lets the reading goroutine drop further messages
	// so a kill can always drain the stdout pipe to EOF.
	discard     chan struct{}
	discardOnce sync.Once

	// waitEndChannel is closed when the process has been reaped; exitCode is
	// valid only afterwards.
	waitEndChannel chan struct{}
	exitCode       int

	runtimeName    string
	runtimeVersion string
	runtimeOptions map[string]string
}

func newProcessHandle(
	vm VMConfig,
	cmd *exec.Cmd,
	stdin io.WriteCloser,
	stdout io.Reader,
	stderrFile *os.File,
	gracePeriod time.Duration) *processHandle {

	handle := &processHandle{
		vm:             vm,
		cmdHandler:     cmd,
		pid:            cmd.Process.Pid,
		writer:         bridge.NewWriter(stdin),
		stdin:          stdin,
		stderrFile:     stderrFile,
		gracePeriod:    gracePeriod,
		messages:       make(chan receiveResult, 16),
		discard:        make(chan struct{}),
		waitEndChannel: make(chan struct{}),
		exitCode:       -1,
	}

	readEnd := make(chan struct{})
	go handle.readMessages(stdout, readEnd)
	go handle.waitForProcess(readEnd)

	return handle
}

// readMessages pumps decoded worker messages into the handle's channel until
// the stdout pipe ends. Malformed lines are delivered as in-band errors and
// reading continues.
func (handle *processHandle) readMessages(stdout io.Reader, readEnd chan struct{}) {
	defer close(readEnd)
	defer close(handle.messages)

	reader := bridge.NewReader(stdout)
	for {
		message, err := reader.Read()
		if err != nil {
			if errors.Cause(err) == bridge.ErrProtocol {
				select {
				case handle.messages <- receiveResult{err: err}:
				case <-handle.discard:
				}
				continue
			}
			// EOF or a broken pipe: the stream is over.
			return
		}

		select {
		case handle.messages <- receiveResult{message: message}:
		case <-handle.discard:
		}
	}
}

// waitForProcess reaps the worker once its stdout has been drained and
// records the exit code, mirroring signal deaths as negative codes.
func (handle *processHandle) waitForProcess(readEnd chan struct{}) {
	defer close(handle.waitEndChannel)

	// Wait would reclaim the stdout pipe from under the reader.
	<-readEnd
	handle.cmdHandler.Wait()

	waitStatus := handle.cmdHandler.ProcessState.Sys().(syscall.WaitStatus)
	if waitStatus.Exited() {
		handle.exitCode = waitStatus.ExitStatus()
	} else {
		handle.exitCode = -int(waitStatus.Signal())
	}

	log.Debug("Worker ", handle.vm.Name, " with pid ", handle.pid,
		" ended with code ", handle.exitCode,
		" with err output in file: ", handle.stderrFile.Name())
}

// handshake consumes the worker's opening announcements: the process start
// message followed by its VM options.
func (handle *processHandle) handshake(ctx context.Context, timeout time.Duration) error {
	handshakeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	first, err := handle.Receive(handshakeCtx)
	if err != nil {
		return errors.Wrapf(ErrStartup, "worker %s did not announce itself: %s", handle, err)
	}
	started, ok := first.(*bridge.ProcessStarted)
	if !ok {
		return errors.Wrapf(ErrStartup, "worker %s opened with %q instead of the start announcement",
			handle, first.Kind())
	}

	second, err := handle.Receive(handshakeCtx)
	if err != nil {
		return errors.Wrapf(ErrStartup, "worker %s did not announce its VM options: %s", handle, err)
	}
	options, ok := second.(*bridge.VMOptions)
	if !ok {
		return errors.Wrapf(ErrStartup, "worker %s sent %q instead of its VM options",
			handle, second.Kind())
	}

	handle.runtimeName = started.Runtime
	handle.runtimeVersion = started.RuntimeVersion
	handle.runtimeOptions = options.Options

	log.Debug("Worker ", handle, " announced runtime ",
		handle.runtimeName, " ", handle.runtimeVersion)
	return nil
}

// isTerminated checks if waitEndChannel is closed. If it is closed, it means
// that the process was reaped and the handle is in terminated state.
func (handle *processHandle) isTerminated() bool {
	select {
	case <-handle.waitEndChannel:
		return true
	default:
		return false
	}
}

// Send implements Handle.
func (handle *processHandle) Send(message bridge.LogMessage) error {
	if handle.isTerminated() {
		return errors.Wrapf(ErrChannelClosed, "worker %s already terminated", handle)
	}
	if err := handle.writer.Write(message); err != nil {
		return errors.Wrapf(ErrChannelClosed, "writing to worker %s: %s", handle, err)
	}
	return nil
}

// Receive implements Handle. Messages buffered before process exit are still
// delivered; afterwards it fails with ErrChannelClosed.
func (handle *processHandle) Receive(ctx context.Context) (bridge.LogMessage, error) {
	select {
	case result, ok := <-handle.messages:
		if !ok {
			return nil, errors.Wrapf(ErrChannelClosed, "worker %s closed its message stream", handle)
		}
		if result.err != nil {
			return nil, result.err
		}
		return result.message, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop implements Handle: stop request first, SIGKILL when the grace period
// runs out.
func (handle *processHandle) Stop() error {
	if handle.isTerminated() {
		return nil
	}

	handle.discardOnce.Do(func() { close(handle.discard) })

	if err := handle.writer.Write(&bridge.StopRequest{}); err != nil {
		log.Debug("Stop request for worker ", handle, " not written: ", err)
	}
	handle.stdin.Close()

	if handle.Wait(handle.gracePeriod) {
		return nil
	}

	log.Debug("Worker ", handle, " ignored the stop request, killing its process group")
	return handle.killProcessGroup()
}

// Terminate implements Handle: immediate SIGKILL without a stop request.
func (handle *processHandle) Terminate() error {
	if handle.isTerminated() {
		return nil
	}

	handle.discardOnce.Do(func() { close(handle.discard) })
	handle.stdin.Close()

	return handle.killProcessGroup()
}

func (handle *processHandle) killProcessGroup() error {
	// The kill syscall interprets a negated PID N as the process group N
	// belongs to.
	err := syscall.Kill(-handle.pid, syscall.SIGKILL)
	if err != nil && err != syscall.ESRCH {
		return errors.Wrapf(err, "could not kill worker %s", handle)
	}

	if !handle.Wait(killTimeout) {
		return errors.Errorf("worker %s did not terminate after SIGKILL", handle)
	}
	return nil
}

// Status implements Handle.
func (handle *processHandle) Status() State {
	if !handle.isTerminated() {
		return RUNNING
	}
	return TERMINATED
}

// ExitCode implements Handle.
func (handle *processHandle) ExitCode() (int, error) {
	if !handle.isTerminated() {
		return 0, errors.Errorf("worker %s is still running", handle)
	}
	return handle.exitCode, nil
}

// Wait implements Handle.
func (handle *processHandle) Wait(timeout time.Duration) bool {
	if handle.isTerminated() {
		return true
	}

	var timeoutChannel <-chan time.Time
	if timeout != 0 {
		timeoutChannel = time.After(timeout)
	}

	select {
	case <-handle.waitEndChannel:
		return true
	case <-timeoutChannel:
		return false
	}
}

// PID implements Handle.
func (handle *processHandle) PID() int {
	return handle.pid
}

// VM implements Handle.
func (handle *processHandle) VM() VMConfig {
	return handle.vm
}

// Runtime implements Handle.
func (handle *processHandle) Runtime() (string, string) {
	return handle.runtimeName, handle.runtimeVersion
}

// RuntimeOptions implements Handle.
func (handle *processHandle) RuntimeOptions() map[string]string {
	return handle.runtimeOptions
}

// StderrFile implements Handle.
func (handle *processHandle) StderrFile() (*os.File, error) {
	if _, err := os.Stat(handle.stderrFile.Name()); err != nil {
		return nil, err
	}

	handle.stderrFile.Seek(0, io.SeekStart)
	return handle.stderrFile, nil
}

// Clean implements Handle.
func (handle *processHandle) Clean() error {
	return handle.stderrFile.Close()
}

// EraseOutput implements Handle.
func (handle *processHandle) EraseOutput() error {
	if _, err := os.Stat(handle.stderrFile.Name()); err != nil {
		return err
	}
	return os.Remove(handle.stderrFile.Name())
}

// String implements Handle.
func (handle *processHandle) String() string {
	return fmt.Sprintf("%s[pid=%d]", handle.vm.Name, handle.pid)
}
