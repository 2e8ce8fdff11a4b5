package bridge

// LoopKind selects how the worker invokes the benchmark method during one
// run request.
type LoopKind string

const (
	// LoopRepetition invokes the method with a fixed iteration count and
	// reports the elapsed time for the whole loop.
	LoopRepetition LoopKind = "repetition"
	// LoopDuration repeats fixed-size loops until a time budget is spent
	// and reports the accumulated elapsed time and iterations.
	LoopDuration LoopKind = "duration"
	// LoopSingleShot invokes the method exactly once and reports the value
	// it produced.
	LoopSingleShot LoopKind = "singleShot"
)

// LoopSpec describes to the worker how to drive the benchmark method and
// which measurement messages to emit.
type LoopSpec struct {
	Kind LoopKind `json:"kind"`
	// Reps is the iteration count for repetition loops and the inner loop
	// size for duration loops.
	Reps int64 `json:"reps,omitempty"`
	// DurationNs is the time budget for duration loops.
	DurationNs int64 `json:"durationNs,omitempty"`
	// EmitGC asks the worker to report garbage collection deltas around
	// each measured section.
	EmitGC bool `json:"emitGc,omitempty"`
}

// ProcessStarted is the first message a worker sends. The runner treats its
// arrival as a successful handshake.
type ProcessStarted struct {
	PID            int    `json:"pid"`
	Runtime        string `json:"runtime"`
	RuntimeVersion string `json:"runtimeVersion"`
}

// Kind implements LogMessage.
func (ProcessStarted) Kind() Kind { return KindProcessStarted }

// VMOptions echoes the runtime options the worker resolved at startup.
type VMOptions struct {
	Options map[string]string `json:"options"`
}

// Kind implements LogMessage.
func (VMOptions) Kind() Kind { return KindVMOptions }

// GCLog reports garbage collection activity since the previous GCLog on the
// same channel.
type GCLog struct {
	Collections int64 `json:"collections"`
	PauseNs     int64 `json:"pauseNs"`
}

// Kind implements LogMessage.
func (GCLog) Kind() Kind { return KindGCLog }

// Failure reports a benchmark failure with a human readable cause and
// optional stack context.
type Failure struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Kind implements LogMessage.
func (Failure) Kind() Kind { return KindFailure }

// StartMeasurement brackets the beginning of a measured section.
type StartMeasurement struct{}

// Kind implements LogMessage.
func (StartMeasurement) Kind() Kind { return KindStartMeasurement }

// StopMeasurement brackets the end of a measured section.
type StopMeasurement struct{}

// Kind implements LogMessage.
func (StopMeasurement) Kind() Kind { return KindStopMeasurement }

// RuntimeMeasurement reports the elapsed wall time of one loop execution.
type RuntimeMeasurement struct {
	ElapsedNs int64 `json:"elapsedNs"`
	Reps      int64 `json:"reps"`
}

// Kind implements LogMessage.
func (RuntimeMeasurement) Kind() Kind { return KindRuntimeMeasurement }

// ArbitraryMeasurement reports a value produced by the benchmark method
// itself, for methods that measure something other than time.
type ArbitraryMeasurement struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	Description string  `json:"description,omitempty"`
}

// Kind implements LogMessage.
func (ArbitraryMeasurement) Kind() Kind { return KindArbitraryMeasurement }

// DryRunSuccess lists the ids of the trials that were dry-run successfully.
type DryRunSuccess struct {
	IDs []int `json:"ids"`
}

// Kind implements LogMessage.
func (DryRunSuccess) Kind() Kind { return KindDryRunSuccess }

// StopAck confirms a StopRequest.
type StopAck struct{}

// Kind implements LogMessage.
func (StopAck) Kind() Kind { return KindStopAck }

// TrialRequest configures the worker for one trial: the method to invoke,
// its parameter assignment, the loop to drive it with and the resolved
// instrument options.
type TrialRequest struct {
	TrialID int               `json:"trialId"`
	Method  string            `json:"method"`
	Params  map[string]string `json:"params,omitempty"`
	Loop    LoopSpec          `json:"loop"`
	Options map[string]string `json:"options,omitempty"`
}

// Kind implements LogMessage.
func (TrialRequest) Kind() Kind { return KindTrialRequest }

// RunRequest asks the worker for one execution of the configured loop,
// overriding the iteration count when Reps is positive.
type RunRequest struct {
	Reps int64 `json:"reps,omitempty"`
}

// Kind implements LogMessage.
func (RunRequest) Kind() Kind { return KindRunRequest }

// DryRunRequest asks the worker to invoke the configured method once,
// without timing, to surface failures before measurement starts.
type DryRunRequest struct{}

// Kind implements LogMessage.
func (DryRunRequest) Kind() Kind { return KindDryRunRequest }

// StopRequest asks the worker to acknowledge and exit gracefully.
type StopRequest struct{}

// Kind implements LogMessage.
func (StopRequest) Kind() Kind { return KindStopRequest }
