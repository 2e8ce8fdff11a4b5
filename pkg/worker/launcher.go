package worker

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/intelsdi-x/chronos/pkg/utils/fs"
)

const chronosTmpFilesPrefix = "chronos_worker_"

const stderrTailLines = 3

// LauncherConfig bounds worker startup and shutdown.
type LauncherConfig struct {
	// StartupTimeout caps the wait for the protocol handshake.
	StartupTimeout time.Duration
	// StopGracePeriod is the time a worker gets to exit after a stop request
	// before SIGKILL.
	StopGracePeriod time.Duration
}

// DefaultLauncherConfig builds the launcher configuration from command line
// flags.
func DefaultLauncherConfig() LauncherConfig {
	return LauncherConfig{
		StartupTimeout:  startupTimeoutFlag.Value(),
		StopGracePeriod: stopGracePeriodFlag.Value(),
	}
}

// Launcher spawns worker processes of one VM flavor.
type Launcher struct {
	vm     VMConfig
	config LauncherConfig
}

// NewLauncher returns a Launcher instance.
func NewLauncher(vm VMConfig, config LauncherConfig) Launcher {
	return Launcher{vm: vm, config: config}
}

// VM returns the flavor this launcher spawns.
func (l Launcher) VM() VMConfig {
	return l.vm
}

// Launch spawns one worker process and completes the protocol handshake.
// The returned Handle is ready for trial requests. Spawn and handshake
// failures reclaim the process and fail with ErrStartup.
func (l Launcher) Launch(ctx context.Context) (Handle, error) {
	if len(l.vm.Command) == 0 {
		return nil, errors.Wrapf(ErrStartup, "worker flavor %q has an empty command", l.vm.Name)
	}

	log.Debug("Spawning worker ", l.vm.Name, ": ", strings.Join(l.vm.Command, " "))

	stderrFile, err := os.CreateTemp(os.TempDir(), chronosTmpFilesPrefix+"stderr_")
	if err != nil {
		return nil, errors.Wrap(err, "could not create worker stderr file")
	}

	cmd := exec.Command(l.vm.Command[0], l.vm.Command[1:]...)
	cmd.Env = append(os.Environ(), l.vm.Env...)
	cmd.Stderr = stderrFile
	// An own process group id for the worker and its children gives us the
	// ability to kill all of them together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		removeFile(stderrFile)
		return nil, errors.Wrap(err, "could not open worker stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		removeFile(stderrFile)
		return nil, errors.Wrap(err, "could not open worker stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		removeFile(stderrFile)
		return nil, errors.Wrapf(ErrStartup, "spawning worker %q: %s", l.vm.Name, err)
	}

	log.Debug("Worker ", l.vm.Name, " started with pid ", cmd.Process.Pid)

	handle := newProcessHandle(l.vm, cmd, stdin, stdout, stderrFile, l.config.StopGracePeriod)

	if err := handle.handshake(ctx, l.config.StartupTimeout); err != nil {
		if terminateErr := handle.Terminate(); terminateErr != nil {
			log.Error("Could not terminate worker ", handle, " after failed handshake: ", terminateErr)
		}
		logStderrTail(handle)
		return nil, err
	}

	return handle, nil
}

func removeFile(file *os.File) {
	file.Close()
	os.Remove(file.Name())
}

// logStderrTail logs the last lines of a failed worker's stderr file, so
// startup failures are diagnosable without digging for the file.
func logStderrTail(handle Handle) {
	stderrFile, err := handle.StderrFile()
	if err != nil {
		log.Error("Could not read stderr filename of worker ", handle, ": ", err)
		return
	}

	log.Errorf("Worker %s failed, stderr stored in %q", handle, stderrFile.Name())

	tail, err := fs.ReadTail(stderrFile.Name(), stderrTailLines)
	if err != nil {
		log.Error("Could not read stderr tail of worker ", handle, ": ", err)
		return
	}
	for _, line := range strings.Split(strings.TrimRight(tail, "\n"), "\n") {
		if line != "" {
			log.Errorf("%d %s", handle.PID(), line)
		}
	}
}
