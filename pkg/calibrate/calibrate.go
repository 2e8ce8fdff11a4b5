// Package calibrate brings a worker to a measurable steady state before any
// timing section is recorded. Calibration first probes the granularity of the
// monotonic clock, then scales the invocation count of one timing loop until
// its elapsed time spans a safe multiple of that granularity, and finally
// runs discarded warmup loops until their per-invocation cost settles.
package calibrate

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/intelsdi-x/chronos/pkg/conf"
)

// ErrCalibration marks workers whose timing loops never satisfied the
// granularity margin within the attempt budget.
var ErrCalibration = errors.New("calibration failed")

var (
	marginFlag = conf.NewIntFlag(
		"calibration_margin",
		"Required ratio between the elapsed time of one timing loop and the timer granularity.",
		100)
	attemptsFlag = conf.NewIntFlag(
		"calibration_attempts",
		"Rep scaling rounds before calibration is aborted.",
		10)
	warmupWindowFlag = conf.NewIntFlag(
		"warmup_window",
		"Trailing loops inspected for steady state. Zero disables the variation criterion.",
		5)
	warmupToleranceFlag = conf.NewIntFlag(
		"warmup_tolerance_percent",
		"Highest coefficient of variation, in percent, accepted as steady state.",
		5)
	warmupMinDurationFlag = conf.NewDurationFlag(
		"warmup_min_duration",
		"Warmup runs at least this long regardless of the variation criterion.",
		0)
	warmupMaxDurationFlag = conf.NewDurationFlag(
		"warmup_max_duration",
		"Warmup is cut short after this long and the trial is flagged as partially warmed.",
		10*time.Second)
)

// State is an enum presenting the stage a calibration run is in.
type State int

const (
	// GranularityProbe scales the timing loop until it outgrows the clock.
	GranularityProbe State = iota
	// Warmup runs discarded loops until the per-invocation cost settles.
	Warmup
	// Ready means subsequent loops can be recorded.
	Ready
	// Aborted means the worker never reached a measurable state.
	Aborted
)

func (s State) String() string {
	switch s {
	case GranularityProbe:
		return "granularity-probe"
	case Warmup:
		return "warmup"
	case Ready:
		return "ready"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// LoopFunc runs one timing loop of reps invocations on the worker and returns
// its elapsed time. Calibration never records these loops.
type LoopFunc func(ctx context.Context, reps int64) (time.Duration, error)

// WarmupPolicy controls when warmup loops stop.
type WarmupPolicy struct {
	// Window is the number of trailing loops the coefficient of variation is
	// computed over. Zero selects the fixed duration criterion instead.
	Window int
	// CVThreshold is the highest coefficient of variation accepted as steady.
	CVThreshold float64
	// MinDuration keeps warmup running even when the window is already steady.
	MinDuration time.Duration
	// MaxDuration cuts warmup short; the result is then flagged as partial.
	// Zero leaves warmup bounded only by the trial deadline.
	MaxDuration time.Duration
}

// Policy bundles all calibration knobs.
type Policy struct {
	// ResolutionMargin is the multiple of the timer granularity one timing
	// loop must span before its measurements are trusted.
	ResolutionMargin int64
	// MaxAttempts bounds the rep scaling rounds of the granularity probe.
	MaxAttempts int
	Warmup      WarmupPolicy
}

// DefaultPolicy applies the calibration settings from the command line flags
// and environment variables.
func DefaultPolicy() Policy {
	return Policy{
		ResolutionMargin: int64(marginFlag.Value()),
		MaxAttempts:      attemptsFlag.Value(),
		Warmup: WarmupPolicy{
			Window:      warmupWindowFlag.Value(),
			CVThreshold: float64(warmupToleranceFlag.Value()) / 100.0,
			MinDuration: warmupMinDurationFlag.Value(),
			MaxDuration: warmupMaxDurationFlag.Value(),
		},
	}
}

// Result describes the steady state a calibration run reached.
type Result struct {
	State State
	// Reps is the invocation count per timing loop satisfying the margin.
	Reps int64
	// Granularity is the measured granularity of the monotonic clock.
	Granularity time.Duration
	// PartialWarmup is set when warmup hit its duration cap before the
	// variation criterion was met.
	PartialWarmup bool
}

const granularitySamples = 10

// TimerGranularity measures the smallest observable increment of the
// monotonic clock by spinning until time.Since reports progress. The minimum
// over a handful of samples is taken.
func TimerGranularity() time.Duration {
	smallest := time.Duration(math.MaxInt64)
	for i := 0; i < granularitySamples; i++ {
		start := time.Now()
		delta := time.Since(start)
		for delta <= 0 {
			delta = time.Since(start)
		}
		if delta < smallest {
			smallest = delta
		}
	}
	return smallest
}

// Calibrator drives one worker through the calibration states. It is used by
// a single trial goroutine and holds no locks.
type Calibrator struct {
	policy Policy
	loop   LoopFunc
	state  State
}

// New returns a Calibrator in the GranularityProbe state.
func New(policy Policy, loop LoopFunc) *Calibrator {
	return &Calibrator{policy: policy, loop: loop, state: GranularityProbe}
}

// State returns the stage the calibrator is in.
func (c *Calibrator) State() State {
	return c.state
}

// Run probes the timer granularity, scales the timing loop until it spans the
// required margin and warms the worker up. On success the returned result
// carries the rep count measurements should use. Errors from the worker are
// passed through; a loop that cannot outgrow the clock fails with
// ErrCalibration as the cause.
func (c *Calibrator) Run(ctx context.Context) (Result, error) {
	granularity := TimerGranularity()
	target := time.Duration(c.policy.ResolutionMargin) * granularity
	log.Debugf("calibration: timer granularity %v, one loop must span %v", granularity, target)

	reps, err := c.scaleReps(ctx, target)
	if err != nil {
		c.state = Aborted
		return Result{State: Aborted, Granularity: granularity}, err
	}

	c.state = Warmup
	partial, err := c.runWarmup(ctx, reps)
	if err != nil {
		c.state = Aborted
		return Result{State: Aborted, Reps: reps, Granularity: granularity}, err
	}

	c.state = Ready
	return Result{
		State:         Ready,
		Reps:          reps,
		Granularity:   granularity,
		PartialWarmup: partial,
	}, nil
}

// scaleReps grows the invocation count until one timing loop spans target.
func (c *Calibrator) scaleReps(ctx context.Context, target time.Duration) (int64, error) {
	reps := int64(1)
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		elapsed, err := c.loop(ctx, reps)
		if err != nil {
			return 0, errors.Wrapf(err, "timing loop of %d reps failed during calibration", reps)
		}

		if elapsed >= target {
			log.Debugf("calibration: %d reps span %v, granularity margin satisfied", reps, elapsed)
			return reps, nil
		}

		reps = nextReps(reps, elapsed, target)
		log.Debugf("calibration: loop too short (%v), retrying with %d reps", elapsed, reps)
	}

	return 0, errors.Wrapf(ErrCalibration,
		"no timing loop spanned %v within %d attempts", target, c.policy.MaxAttempts)
}

// nextReps at least doubles and jumps proportionally when the observed
// elapsed time suggests a larger factor.
func nextReps(reps int64, observed, target time.Duration) int64 {
	next := reps * 2
	if observed > 0 {
		proportional := int64(float64(reps) * float64(target) / float64(observed))
		if proportional > next {
			next = proportional
		}
	}
	return next
}

// runWarmup runs discarded loops until the stop criterion from the policy is
// met. It reports whether warmup was cut short by the duration cap.
func (c *Calibrator) runWarmup(ctx context.Context, reps int64) (partial bool, err error) {
	policy := c.policy.Warmup
	start := time.Now()
	window := make([]float64, 0, policy.Window)

	for {
		if err := ctx.Err(); err != nil {
			return false, errors.Wrap(err, "warmup interrupted")
		}

		elapsed, err := c.loop(ctx, reps)
		if err != nil {
			return false, errors.Wrapf(err, "timing loop of %d reps failed during warmup", reps)
		}

		if policy.Window > 0 {
			window = append(window, float64(elapsed)/float64(reps))
			if len(window) > policy.Window {
				window = window[1:]
			}
		}

		ran := time.Since(start)
		if ran < policy.MinDuration {
			continue
		}

		if policy.Window == 0 {
			// Fixed duration criterion: the minimum is enough.
			return false, nil
		}

		if len(window) == policy.Window && coefficientOfVariation(window) <= policy.CVThreshold {
			log.Debugf("calibration: steady state after %v", ran)
			return false, nil
		}

		if policy.MaxDuration > 0 && ran >= policy.MaxDuration {
			log.Warnf("calibration: steady state not reached within %v, continuing with partial warmup", policy.MaxDuration)
			return true, nil
		}
	}
}

// coefficientOfVariation is the relative spread of the trailing window.
func coefficientOfVariation(samples []float64) float64 {
	mean, stddev := stat.MeanStdDev(samples, nil)
	if mean == 0 {
		return 0
	}
	return stddev / mean
}
