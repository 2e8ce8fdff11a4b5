// Package benchmark describes the code under measurement: a target exposing
// a set of invocable methods and the parameter axes they accept. The runner
// treats targets as read-only input resolved once at setup; the actual
// function bodies live in the worker process (see pkg/workload).
package benchmark

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// MethodKind tells instruments how a method is invoked.
type MethodKind int

const (
	// KindTimed methods take an iteration count and are measured by a
	// time-based instrument driving a loop around them.
	KindTimed MethodKind = iota
	// KindValue methods report a single scalar themselves and are measured
	// with one invocation.
	KindValue
)

// String returns a human readable kind name.
func (k MethodKind) String() string {
	switch k {
	case KindTimed:
		return "timed"
	case KindValue:
		return "value"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// Method describes one benchmark method. Methods are immutable; they are
// created once from the benchmark handle and shared without locking.
type Method struct {
	// Name is unique within a target after overload rejection.
	Name string
	// Kind selects the invocation style.
	Kind MethodKind
	// Unit is the unit reported by KindValue methods, e.g. "bytes".
	Unit string
}

// Axis is one declared parameter with the values to cross.
type Axis struct {
	Name   string
	Values []string
}

// OverloadError reports benchmark methods sharing a name. Overloads are a
// configuration error surfaced before any worker spawns.
type OverloadError struct {
	Target string
	// Names lists the overloaded method names, sorted.
	Names []string
}

// Error implements the error interface.
func (e *OverloadError) Error() string {
	return fmt.Sprintf(
		"overloads are disallowed for benchmark methods, found overloads of %v in benchmark %q",
		e.Names, e.Target)
}

// Target is the benchmark handle: a named, ordered set of methods plus the
// declared parameter axes. Immutable after construction.
type Target struct {
	name    string
	methods []Method
	axes    []Axis
}

// NewTarget validates and builds a target. Duplicate method names fail with
// an OverloadError listing exactly the overloaded names; axes without values
// and methods without a name are rejected as well.
func NewTarget(name string, methods []Method, axes ...Axis) (*Target, error) {
	if name == "" {
		return nil, errors.New("benchmark target needs a name")
	}
	if len(methods) == 0 {
		return nil, errors.Errorf("benchmark %q declares no methods", name)
	}

	seen := map[string]bool{}
	overloaded := map[string]bool{}
	for _, method := range methods {
		if method.Name == "" {
			return nil, errors.Errorf("benchmark %q declares a method without a name", name)
		}
		if seen[method.Name] {
			overloaded[method.Name] = true
		}
		seen[method.Name] = true
	}
	if len(overloaded) > 0 {
		names := make([]string, 0, len(overloaded))
		for overload := range overloaded {
			names = append(names, overload)
		}
		sort.Strings(names)
		return nil, &OverloadError{Target: name, Names: names}
	}

	for _, axis := range axes {
		if axis.Name == "" {
			return nil, errors.Errorf("benchmark %q declares a parameter axis without a name", name)
		}
		if len(axis.Values) == 0 {
			return nil, errors.Errorf("parameter %q of benchmark %q has no values", axis.Name, name)
		}
	}

	return &Target{
		name:    name,
		methods: append([]Method(nil), methods...),
		axes:    append([]Axis(nil), axes...),
	}, nil
}

// Name returns the target name.
func (t *Target) Name() string {
	return t.name
}

// Methods returns the declared methods in declaration order.
func (t *Target) Methods() []Method {
	return append([]Method(nil), t.methods...)
}

// Axes returns the declared parameter axes in declaration order.
func (t *Target) Axes() []Axis {
	return append([]Axis(nil), t.axes...)
}

// ParamCombinations enumerates the cross product of all axis values in a
// reproducible order: axes in declaration order, values in declared order,
// rightmost axis varying fastest. A target without axes yields exactly one
// empty combination.
func (t *Target) ParamCombinations() []map[string]string {
	combinations := []map[string]string{{}}

	for _, axis := range t.axes {
		var next []map[string]string
		for _, combination := range combinations {
			for _, value := range axis.Values {
				assignment := make(map[string]string, len(combination)+1)
				for k, v := range combination {
					assignment[k] = v
				}
				assignment[axis.Name] = value
				next = append(next, assignment)
			}
		}
		combinations = next
	}

	return combinations
}
