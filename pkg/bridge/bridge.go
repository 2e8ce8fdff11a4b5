// Package bridge defines the messages exchanged between the runner and a
// worker process, together with their wire codec. Messages ride a reliable
// local transport (the worker's standard streams), so the protocol carries
// no acknowledgements or retransmission: loss of the transport is reported
// as the channel closing, not as a message-level condition.
package bridge

import (
	"github.com/pkg/errors"
)

// Kind identifies a message variant on the wire.
type Kind string

// Worker to runner messages.
const (
	// KindProcessStarted is the handshake sent by a worker immediately
	// after launch.
	KindProcessStarted Kind = "processStarted"
	// KindVMOptions echoes the worker's runtime options.
	KindVMOptions Kind = "vmOptions"
	// KindGCLog reports garbage collection activity observed by the worker.
	KindGCLog Kind = "gcLog"
	// KindFailure reports a benchmark or worker failure with a cause.
	KindFailure Kind = "failure"
	// KindStartMeasurement brackets the beginning of a measured section.
	KindStartMeasurement Kind = "startMeasurement"
	// KindStopMeasurement brackets the end of a measured section.
	KindStopMeasurement Kind = "stopMeasurement"
	// KindRuntimeMeasurement carries one timed loop observation.
	KindRuntimeMeasurement Kind = "runtimeMeasurement"
	// KindArbitraryMeasurement carries one benchmark-reported value.
	KindArbitraryMeasurement Kind = "arbitraryMeasurement"
	// KindDryRunSuccess lists the ids of trials that passed a dry run.
	KindDryRunSuccess Kind = "dryRunSuccess"
	// KindStopAck confirms a stop request; the worker exits right after.
	KindStopAck Kind = "stopAck"
)

// Runner to worker messages.
const (
	// KindTrialRequest configures the worker for one trial.
	KindTrialRequest Kind = "trialRequest"
	// KindRunRequest asks for one execution of the configured loop.
	KindRunRequest Kind = "runRequest"
	// KindDryRunRequest asks for a single validation invocation.
	KindDryRunRequest Kind = "dryRunRequest"
	// KindStopRequest asks the worker to acknowledge and exit.
	KindStopRequest Kind = "stopRequest"
)

// LogMessage is implemented by every message variant. Variants are immutable
// value objects; they carry only the fields relevant to them.
type LogMessage interface {
	Kind() Kind
}

// ErrProtocol is the cause of every decode failure: an unrecognized message
// kind or a malformed byte sequence. Reading sides must treat it as a
// recoverable condition, never as a reason to crash.
var ErrProtocol = errors.New("unrecognized or malformed bridge message")
