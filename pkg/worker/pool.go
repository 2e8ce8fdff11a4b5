package worker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	errcollection "github.com/intelsdi-x/chronos/pkg/utils/err_collection"
)

const (
	defaultSpawnAttempts = 2
	defaultSpawnBackoff  = 500 * time.Millisecond
)

// PoolConfig shapes worker reuse between trials.
type PoolConfig struct {
	// FreshWorkerPerTrial destroys workers on release instead of parking
	// them for reuse.
	FreshWorkerPerTrial bool
	// SpawnAttempts is the total number of spawn tries per acquire.
	SpawnAttempts int
	// SpawnBackoff is the pause between spawn tries.
	SpawnBackoff time.Duration
}

// DefaultPoolConfig builds the pool configuration from command line flags.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		FreshWorkerPerTrial: freshWorkersFlag.Value(),
		SpawnAttempts:       defaultSpawnAttempts,
		SpawnBackoff:        defaultSpawnBackoff,
	}
}

// Pool hands out worker handles per VM flavor, reusing idle workers when the
// configuration allows it. All methods are safe for concurrent use.
type Pool struct {
	config    PoolConfig
	launchers map[string]Launcher

	mu       sync.Mutex
	idle     map[string][]Handle
	borrowed map[Handle]bool
	stopped  bool
}

// NewPool builds a pool over the given launchers, keyed by VM name.
func NewPool(launchers []Launcher, config PoolConfig) (*Pool, error) {
	if config.SpawnAttempts < 1 {
		config.SpawnAttempts = defaultSpawnAttempts
	}
	if config.SpawnBackoff <= 0 {
		config.SpawnBackoff = defaultSpawnBackoff
	}

	pool := &Pool{
		config:    config,
		launchers: map[string]Launcher{},
		idle:      map[string][]Handle{},
		borrowed:  map[Handle]bool{},
	}
	for _, launcher := range launchers {
		name := launcher.VM().Name
		if name == "" {
			return nil, errors.New("worker pool: a VM flavor has no name")
		}
		if _, ok := pool.launchers[name]; ok {
			return nil, errors.Errorf("worker pool: VM flavor %q configured twice", name)
		}
		pool.launchers[name] = launcher
	}
	return pool, nil
}

// Acquire returns a ready worker of the given VM flavor: an idle one when
// available, otherwise a freshly spawned one. Spawning is retried after a
// backoff before the startup failure is reported.
func (p *Pool) Acquire(ctx context.Context, vmName string) (Handle, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, errors.New("worker pool is stopped")
	}
	launcher, ok := p.launchers[vmName]
	if !ok {
		p.mu.Unlock()
		return nil, errors.Errorf("worker pool knows no VM flavor %q", vmName)
	}

	for len(p.idle[vmName]) > 0 {
		last := len(p.idle[vmName]) - 1
		handle := p.idle[vmName][last]
		p.idle[vmName] = p.idle[vmName][:last]

		if handle.Status() != RUNNING {
			// Died while parked; reap it and try the next one.
			p.mu.Unlock()
			p.destroy(handle)
			p.mu.Lock()
			continue
		}

		p.borrowed[handle] = true
		p.mu.Unlock()
		log.Debug("Reusing idle worker ", handle)
		return handle, nil
	}
	p.mu.Unlock()

	handle, err := p.spawn(ctx, launcher)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.borrowed[handle] = true
	p.mu.Unlock()
	return handle, nil
}

func (p *Pool) spawn(ctx context.Context, launcher Launcher) (Handle, error) {
	var lastErr error
	for attempt := 1; attempt <= p.config.SpawnAttempts; attempt++ {
		handle, err := launcher.Launch(ctx)
		if err == nil {
			return handle, nil
		}
		lastErr = err

		if attempt == p.config.SpawnAttempts {
			break
		}
		log.Warnf("Spawning worker %q failed (attempt %d of %d), retrying: %v",
			launcher.VM().Name, attempt, p.config.SpawnAttempts, err)
		select {
		case <-time.After(p.config.SpawnBackoff):
		case <-ctx.Done():
			return nil, errors.Wrapf(ErrStartup, "spawning worker %q: %s",
				launcher.VM().Name, ctx.Err())
		}
	}
	return nil, lastErr
}

// Release returns a borrowed handle to the pool. Dead workers and workers of
// a fresh-per-trial pool are destroyed instead of parked. Releasing a handle
// that is not borrowed is a no-op.
func (p *Pool) Release(handle Handle) {
	if handle == nil {
		return
	}

	p.mu.Lock()
	if !p.borrowed[handle] {
		p.mu.Unlock()
		return
	}
	delete(p.borrowed, handle)

	if p.stopped || p.config.FreshWorkerPerTrial || handle.Status() != RUNNING {
		p.mu.Unlock()
		p.destroy(handle)
		return
	}

	p.idle[handle.VM().Name] = append(p.idle[handle.VM().Name], handle)
	p.mu.Unlock()
	log.Debug("Parked worker ", handle, " for reuse")
}

// Discard kills a borrowed handle instead of parking it, keeping its stderr
// file for diagnosis. Used after crashes and trial timeouts.
func (p *Pool) Discard(handle Handle) {
	if handle == nil {
		return
	}

	p.mu.Lock()
	delete(p.borrowed, handle)
	p.mu.Unlock()

	if err := handle.Terminate(); err != nil {
		log.Error("Could not terminate worker ", handle, ": ", err)
	}
	log.Debug("Discarded worker ", handle, ", stderr kept for diagnosis")
}

// IdleCount reports the parked workers of one VM flavor.
func (p *Pool) IdleCount(vmName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle[vmName])
}

// DrainAndStop destroys all idle workers and refuses further acquires.
// Borrowed handles are untouched; their owners release them.
func (p *Pool) DrainAndStop() error {
	p.mu.Lock()
	p.stopped = true
	var parked []Handle
	for name, handles := range p.idle {
		parked = append(parked, handles...)
		delete(p.idle, name)
	}
	p.mu.Unlock()

	var errs errcollection.ErrorCollection
	for _, handle := range parked {
		if err := p.stopAndClean(handle); err != nil {
			errs.Add(err)
		}
	}
	return errs.GetErrIfAny()
}

// destroy gracefully stops one worker. Output files of cleanly exited
// workers are erased; a non-zero exit keeps the stderr file around.
func (p *Pool) destroy(handle Handle) {
	if err := p.stopAndClean(handle); err != nil {
		log.Error("Could not destroy worker ", handle, ": ", err)
	}
}

func (p *Pool) stopAndClean(handle Handle) error {
	if err := handle.Stop(); err != nil {
		return err
	}

	exitCode, err := handle.ExitCode()
	if err != nil {
		return err
	}
	if exitCode != 0 {
		log.Debug("Worker ", handle, " exited with code ", exitCode,
			", keeping its stderr file")
		return nil
	}

	var errs errcollection.ErrorCollection
	if err := handle.Clean(); err != nil {
		errs.Add(err)
	}
	if err := handle.EraseOutput(); err != nil {
		errs.Add(err)
	}
	return errs.GetErrIfAny()
}
