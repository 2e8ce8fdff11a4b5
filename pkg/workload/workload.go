// Package workload is the worker side of the benchmark protocol: a registry
// of benchmark method bodies plus the loop engine invoking them under the
// runner's direction. A worker main registers its methods and calls Serve,
// which speaks the bridge protocol on the standard streams until the runner
// stops it.
package workload

import (
	"strconv"

	"github.com/pkg/errors"
)

// Params is the parameter assignment of one trial as delivered to the
// benchmark method bodies.
type Params map[string]string

// Int parses one parameter as a decimal integer.
func (p Params) Int(name string) (int, error) {
	raw, ok := p[name]
	if !ok {
		return 0, errors.Errorf("parameter %q is not set", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "parameter %q", name)
	}
	return value, nil
}

// TimedFunc is the body of a timed method: it runs the measured operation
// reps times in a row. The engine times the whole call, so the body must do
// nothing but the operation under measurement.
type TimedFunc func(params Params, reps int64) error

// ValueFunc is the body of a value method: a single invocation computing
// the scalar it reports.
type ValueFunc func(params Params) (float64, error)

type valueMethod struct {
	fn   ValueFunc
	unit string
}

// Benchmark is the worker-side definition of one measurable target: method
// bodies keyed by the names the runner requests.
type Benchmark struct {
	name  string
	timed map[string]TimedFunc
	value map[string]valueMethod
}

// NewBenchmark returns an empty benchmark definition.
func NewBenchmark(name string) *Benchmark {
	return &Benchmark{
		name:  name,
		timed: map[string]TimedFunc{},
		value: map[string]valueMethod{},
	}
}

// Name returns the benchmark name.
func (b *Benchmark) Name() string {
	return b.name
}

// Timed registers a timed method body. Method names are unique across both
// kinds.
func (b *Benchmark) Timed(name string, fn TimedFunc) error {
	if name == "" || fn == nil {
		return errors.New("a timed method needs a name and a body")
	}
	if b.has(name) {
		return errors.Errorf("benchmark %q: method %q registered twice", b.name, name)
	}
	b.timed[name] = fn
	return nil
}

// Value registers a value method body together with the unit of its scalar.
func (b *Benchmark) Value(name, unit string, fn ValueFunc) error {
	if name == "" || fn == nil {
		return errors.New("a value method needs a name and a body")
	}
	if b.has(name) {
		return errors.Errorf("benchmark %q: method %q registered twice", b.name, name)
	}
	b.value[name] = valueMethod{fn: fn, unit: unit}
	return nil
}

func (b *Benchmark) has(name string) bool {
	_, timed := b.timed[name]
	_, value := b.value[name]
	return timed || value
}
