package bridge

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// envelope frames every message as one JSON object per line.
type envelope struct {
	Type Kind            `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// decoders maps a message kind to a factory for its concrete type. The set
// is closed: kinds absent from this map fail decoding with ErrProtocol.
var decoders = map[Kind]func() LogMessage{
	KindProcessStarted:       func() LogMessage { return &ProcessStarted{} },
	KindVMOptions:            func() LogMessage { return &VMOptions{} },
	KindGCLog:                func() LogMessage { return &GCLog{} },
	KindFailure:              func() LogMessage { return &Failure{} },
	KindStartMeasurement:     func() LogMessage { return &StartMeasurement{} },
	KindStopMeasurement:      func() LogMessage { return &StopMeasurement{} },
	KindRuntimeMeasurement:   func() LogMessage { return &RuntimeMeasurement{} },
	KindArbitraryMeasurement: func() LogMessage { return &ArbitraryMeasurement{} },
	KindDryRunSuccess:        func() LogMessage { return &DryRunSuccess{} },
	KindStopAck:              func() LogMessage { return &StopAck{} },
	KindTrialRequest:         func() LogMessage { return &TrialRequest{} },
	KindRunRequest:           func() LogMessage { return &RunRequest{} },
	KindDryRunRequest:        func() LogMessage { return &DryRunRequest{} },
	KindStopRequest:          func() LogMessage { return &StopRequest{} },
}

// Marshal serializes a message to its single-line wire form, without the
// trailing newline.
func Marshal(m LogMessage) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot marshal %q message body", m.Kind())
	}

	line, err := json.Marshal(envelope{Type: m.Kind(), Body: body})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot marshal %q message envelope", m.Kind())
	}

	return line, nil
}

// Unmarshal decodes one wire line back into its concrete message type.
// Unknown kinds and malformed bytes fail with ErrProtocol as the cause.
func Unmarshal(line []byte) (LogMessage, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, errors.Wrapf(ErrProtocol, "bad envelope %q: %v", truncate(line), err)
	}

	factory, ok := decoders[env.Type]
	if !ok {
		return nil, errors.Wrapf(ErrProtocol, "unknown message kind %q", env.Type)
	}

	msg := factory()
	if len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, msg); err != nil {
			return nil, errors.Wrapf(ErrProtocol, "bad %q body: %v", env.Type, err)
		}
	}

	return msg, nil
}

// Writer serializes messages onto a byte stream, one per line. It is safe
// for concurrent use; message order on the stream is write order.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write serializes one message and flushes it to the underlying stream.
func (w *Writer) Write(m LogMessage) error {
	line, err := Marshal(m)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(append(line, '\n')); err != nil {
		return errors.Wrapf(err, "cannot write %q message", m.Kind())
	}

	return nil
}

// Reader decodes messages from a byte stream in FIFO order.
type Reader struct {
	r *bufio.Reader
}

// NewReader returns a Reader consuming from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read blocks until the next message arrives and returns it. It returns
// io.EOF once the stream ends, and an error with cause ErrProtocol for
// lines that cannot be decoded. Blank lines are skipped.
func (r *Reader) Read() (LogMessage, error) {
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(line) != "" {
				// A final unterminated line is still a message.
				return Unmarshal([]byte(line))
			}
			return nil, err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		return Unmarshal([]byte(line))
	}
}

func truncate(line []byte) string {
	const max = 120
	if len(line) <= max {
		return string(line)
	}
	return string(line[:max]) + "..."
}
