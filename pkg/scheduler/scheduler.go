// Package scheduler enumerates and drives benchmark trials. A trial is the
// unit of work of a run: one benchmark method measured by one instrument on
// one worker flavor under one parameter assignment. The scheduler owns the
// top-level control loop: it enumerates the cross-product at setup, fails
// fast on configuration errors before any worker spawns, and then drives
// every trial through the worker protocol with bounded parallelism,
// isolating per-trial failures from the rest of the run.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/bridge"
	"github.com/intelsdi-x/chronos/pkg/calibrate"
	"github.com/intelsdi-x/chronos/pkg/conf"
	"github.com/intelsdi-x/chronos/pkg/instrument"
	"github.com/intelsdi-x/chronos/pkg/worker"
)

var (
	parallelismFlag = conf.NewIntFlag(
		"parallelism",
		"Number of trials driven concurrently.",
		1)
	trialDeadlineFlag = conf.NewDurationFlag(
		"trial_deadline",
		"Deadline for one trial including worker spawn; exceeding it kills the worker.",
		10*time.Minute)
	measurementsFlag = conf.NewIntFlag(
		"measurements",
		"Recorded timing loops per trial. Zero picks the instrument's default.",
		0)
	dryRunFlag = conf.NewBoolFlag(
		"dry_run_validation",
		"Validate every trial with an untimed invocation before measuring.",
		false)
)

// Config bundles the scheduling knobs of one run.
type Config struct {
	// Parallelism bounds the number of concurrently driven trials.
	Parallelism int
	// TrialDeadline caps one trial end to end. Zero disables the deadline.
	TrialDeadline time.Duration
	// Measurements overrides the recorded sections per trial when positive;
	// zero defers to each instrument's default.
	Measurements int
	// DryRun inserts an untimed validation invocation before measuring.
	DryRun bool
	// Calibration is applied to instruments that require calibration.
	Calibration calibrate.Policy
}

// DefaultConfig applies the scheduling settings from the command line flags
// and environment variables.
func DefaultConfig() Config {
	return Config{
		Parallelism:   parallelismFlag.Value(),
		TrialDeadline: trialDeadlineFlag.Value(),
		Measurements:  measurementsFlag.Value(),
		DryRun:        dryRunFlag.Value(),
		Calibration:   calibrate.DefaultPolicy(),
	}
}

// Setup describes one run: the benchmark target, the instruments measuring
// it and the worker flavors trials execute on. All fields are read-only
// after New.
type Setup struct {
	// Target is the benchmark under measurement.
	Target *benchmark.Target
	// Methods narrows the run to the named methods; empty selects all.
	Methods []string
	// Registry supplies the instrument factories; nil means the built-ins.
	Registry *instrument.Registry
	// Selection picks and configures the instruments. Its VMTypes field is
	// overwritten with the types of the configured flavors.
	Selection instrument.Selection
	// VMs are the worker flavors every instrumented method runs on.
	VMs []worker.VMConfig
}

// Scheduler drives every enumerated trial to a terminal state.
type Scheduler struct {
	config Config
	pool   *worker.Pool
	trials []Trial
	events chan Event

	started bool
}

// New enumerates the trials of a run and validates its configuration. Every
// error it returns wraps ErrConfiguration and occurs before any worker
// process spawns.
func New(config Config, setup Setup, pool *worker.Pool) (*Scheduler, error) {
	if setup.Target == nil {
		return nil, errors.Wrap(instrument.ErrConfiguration, "run setup needs a benchmark target")
	}
	if pool == nil {
		return nil, errors.Wrap(instrument.ErrConfiguration, "run setup needs a worker pool")
	}
	if len(setup.VMs) == 0 {
		return nil, errors.Wrap(instrument.ErrConfiguration, "run setup needs at least one VM flavor")
	}
	names := map[string]bool{}
	for _, vm := range setup.VMs {
		if vm.Name == "" {
			return nil, errors.Wrap(instrument.ErrConfiguration, "a VM flavor has no name")
		}
		if names[vm.Name] {
			return nil, errors.Wrapf(instrument.ErrConfiguration, "VM flavor %q configured twice", vm.Name)
		}
		names[vm.Name] = true
	}
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}

	registry := setup.Registry
	if registry == nil {
		registry = instrument.NewRegistry()
	}
	selection := setup.Selection
	selection.VMTypes = vmTypes(setup.VMs)

	instruments, warnings, err := instrument.Resolve(registry, selection)
	if err != nil {
		return nil, err
	}
	pairs, err := instrument.InstrumentedMethods(instruments, setup.Target, setup.Methods)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errors.Wrapf(instrument.ErrConfiguration,
			"no method of benchmark %q is measurable by the selected instruments", setup.Target.Name())
	}

	combinations := setup.Target.ParamCombinations()

	var trials []Trial
	for _, pair := range pairs {
		measurements := config.Measurements
		if measurements <= 0 {
			measurements = pair.Instrument.DefaultMeasurements()
		}
		var options map[string]string
		if instrumentConfig := selection.Configs[pair.Instrument.Name()]; instrumentConfig != nil {
			options = instrumentConfig.Map()
		}

		for _, params := range combinations {
			for _, vm := range setup.VMs {
				trials = append(trials, Trial{
					ID:           len(trials),
					Instrumented: pair,
					Params:       params,
					VM:           vm,
					Measurements: measurements,
					Options:      options,
				})
			}
		}
	}

	scheduler := &Scheduler{
		config: config,
		pool:   pool,
		trials: trials,
		// Sized for the worst case of two events per trial plus the setup
		// warnings, so emit never blocks a trial goroutine.
		events: make(chan Event, 2*len(trials)+len(warnings)+4),
	}
	for _, warning := range warnings {
		scheduler.events <- Event{Kind: InstrumentDropped, TrialID: -1, Message: warning}
		log.Warn(warning)
	}
	return scheduler, nil
}

// Trials returns the enumerated trials in execution order.
func (s *Scheduler) Trials() []Trial {
	return append([]Trial(nil), s.trials...)
}

// Events returns the advisory stream of the run: setup warnings and
// per-trial advisories. It is closed when Run returns. Reading it is
// optional and never required for the run to make progress.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Run drives every enumerated trial to a terminal state and returns the
// results in trial order. Per-trial failures land in the results and never
// halt the remaining trials; cancelling the context fails the trials still
// in flight.
func (s *Scheduler) Run(ctx context.Context) ([]TrialResult, error) {
	if s.started {
		return nil, errors.New("the scheduler has already run")
	}
	s.started = true
	defer close(s.events)

	log.Infof("Driving %d trial(s) with parallelism %d", len(s.trials), s.config.Parallelism)

	results := make([]TrialResult, len(s.trials))

	var group errgroup.Group
	group.SetLimit(s.config.Parallelism)
	for i, trial := range s.trials {
		i, trial := i, trial
		group.Go(func() error {
			results[i] = s.runTrial(ctx, trial)
			return nil
		})
	}
	// Trial goroutines return no errors; failures live in the results.
	_ = group.Wait()

	return results, nil
}

// runTrial acquires a worker, drives one trial on it and settles the
// terminal state. Successful workers go back to the pool; failed and timed
// out ones are discarded with their stderr file kept for diagnosis.
func (s *Scheduler) runTrial(ctx context.Context, trial Trial) TrialResult {
	result := TrialResult{Trial: trial, State: Pending}

	if s.config.TrialDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TrialDeadline)
		defer cancel()
	}

	log.Debug("Starting ", trial)

	handle, err := s.pool.Acquire(ctx, trial.VM.Name)
	if err != nil {
		result.State = Failed
		result.Failure = err.Error()
		s.emit(Event{Kind: TrialFailed, TrialID: trial.ID, Message: result.Failure})
		log.Errorf("%s failed: %v", trial, err)
		return result
	}

	result.RuntimeName, result.RuntimeVersion = handle.Runtime()
	result.RuntimeOptions = handle.RuntimeOptions()

	err = s.driveTrial(ctx, trial, handle, &result)
	switch {
	case err == nil:
		result.State = Success
		s.pool.Release(handle)
		log.Debug("Finished ", trial)
	case errors.Cause(err) == context.DeadlineExceeded:
		result.State = TimedOut
		result.Failure = fmt.Sprintf("deadline of %s exceeded", s.config.TrialDeadline)
		s.emit(Event{Kind: TrialTimedOut, TrialID: trial.ID, Message: result.Failure})
		log.Errorf("%s timed out after %s", trial, s.config.TrialDeadline)
		s.pool.Discard(handle)
	default:
		result.State = Failed
		result.Failure = err.Error()
		s.emit(Event{Kind: TrialFailed, TrialID: trial.ID, Message: result.Failure})
		log.Errorf("%s failed: %+v", trial, err)
		s.pool.Discard(handle)
	}
	return result
}

// driveTrial walks one acquired worker through the trial protocol: the trial
// request, the optional dry run, calibration when the instrument requires it
// and the requested measurement sections. It returns nil only when every
// measurement was recorded.
func (s *Scheduler) driveTrial(ctx context.Context, trial Trial, handle worker.Handle, result *TrialResult) error {
	request := &bridge.TrialRequest{
		TrialID: trial.ID,
		Method:  trial.Instrumented.Method.Name,
		Params:  trial.Params,
		Loop:    trial.Instrumented.Instrument.WorkerLoop(),
		Options: trial.Options,
	}
	if err := handle.Send(request); err != nil {
		return err
	}

	if s.config.DryRun {
		if err := s.dryRun(ctx, trial, handle); err != nil {
			return err
		}
	}

	reps := int64(1)
	if trial.Instrumented.Instrument.NeedsCalibration() {
		calibration, err := calibrate.New(s.config.Calibration, workerLoop(handle)).Run(ctx)
		if err != nil {
			return err
		}
		reps = calibration.Reps
		if calibration.PartialWarmup {
			result.PartialWarmup = true
			s.emit(Event{Kind: PartialWarmup, TrialID: trial.ID,
				Message: "warmup gave up before reaching a steady state"})
			log.Warnf("%s: warmup cut short, measurements may be unsteady", trial)
		}
		log.Debugf("%s: calibrated to %d rep(s) per timing loop", trial, reps)
	}

	for i := 0; i < trial.Measurements; i++ {
		section, err := runSection(ctx, handle, reps)
		if err != nil {
			return err
		}
		measurement, err := trial.Instrumented.Instrument.ToMeasurement(section)
		if err != nil {
			return err
		}
		result.Measurements = append(result.Measurements, measurement)
	}
	return nil
}

// dryRun asks the worker for one untimed invocation, surfacing benchmark
// failures before any measurement is recorded.
func (s *Scheduler) dryRun(ctx context.Context, trial Trial, handle worker.Handle) error {
	if err := handle.Send(&bridge.DryRunRequest{}); err != nil {
		return err
	}

	message, err := handle.Receive(ctx)
	if err != nil {
		return err
	}
	switch m := message.(type) {
	case *bridge.DryRunSuccess:
		for _, id := range m.IDs {
			if id == trial.ID {
				return nil
			}
		}
		return errors.Errorf("dry run acknowledged trial(s) %v, not this trial", m.IDs)
	case *bridge.Failure:
		return workerFailure(m)
	default:
		return errors.Errorf("dry run answered with unexpected %q message", message.Kind())
	}
}

// runSection requests one timing loop and collects its delimited message
// section. A failure message aborts the section with the worker's cause.
func runSection(ctx context.Context, handle worker.Handle, reps int64) ([]bridge.LogMessage, error) {
	if err := handle.Send(&bridge.RunRequest{Reps: reps}); err != nil {
		return nil, err
	}

	var section []bridge.LogMessage
	for {
		message, err := handle.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if failure, ok := message.(*bridge.Failure); ok {
			return nil, workerFailure(failure)
		}
		section = append(section, message)
		if _, ok := message.(*bridge.StopMeasurement); ok {
			return section, nil
		}
	}
}

// workerLoop adapts a worker handle to the calibration loop contract: one
// run request per call, elapsed time read from the returned section. The
// sections themselves are discarded, warmup loops are never recorded.
func workerLoop(handle worker.Handle) calibrate.LoopFunc {
	return func(ctx context.Context, reps int64) (time.Duration, error) {
		section, err := runSection(ctx, handle, reps)
		if err != nil {
			return 0, err
		}
		for _, message := range section {
			if runtime, ok := message.(*bridge.RuntimeMeasurement); ok {
				return time.Duration(runtime.ElapsedNs), nil
			}
		}
		return 0, errors.New("calibration loop produced no runtime message")
	}
}

// workerFailure turns a failure message into an error. The worker's stack
// context goes to the debug log only.
func workerFailure(failure *bridge.Failure) error {
	if failure.Stack != "" {
		log.Debug("Worker failure stack:\n", failure.Stack)
	}
	return errors.Errorf("worker reported: %s", failure.Message)
}

// emit publishes one event without ever blocking a trial goroutine. The
// channel is sized for the worst case, so a drop indicates a reader bug.
func (s *Scheduler) emit(event Event) {
	select {
	case s.events <- event:
	default:
		log.Warn("Event channel full, dropping: ", event)
	}
}

// vmTypes collects the distinct VM types of the configured flavors in first
// appearance order. Flavors without a type impose no support constraint.
func vmTypes(vms []worker.VMConfig) []string {
	var types []string
	seen := map[string]bool{}
	for _, vm := range vms {
		if vm.Type == "" || seen[vm.Type] {
			continue
		}
		seen[vm.Type] = true
		types = append(types, vm.Type)
	}
	return types
}
