package instrument

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
)

// Factory builds one instrument instance from its configured options.
type Factory func(config *Config) (Instrument, error)

// Registry maps instrument keys to factories. It is populated during startup
// and read-only afterwards.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the built-in instruments.
func NewRegistry() *Registry {
	registry := &Registry{factories: map[string]Factory{}}
	// Built-ins cannot collide in a fresh registry.
	_ = registry.Register(RuntimeKey, NewRuntime)
	_ = registry.Register(ArbitraryKey, NewArbitrary)
	return registry
}

// Register adds a factory under the given key. Registering a key twice is a
// configuration error.
func (r *Registry) Register(key string, factory Factory) error {
	if key == "" || factory == nil {
		return errors.Wrap(ErrConfiguration, "instrument registration needs a key and a factory")
	}
	if _, ok := r.factories[key]; ok {
		return errors.Wrapf(ErrConfiguration, "instrument %q registered twice", key)
	}
	r.factories[key] = factory
	return nil
}

// Keys returns the registered instrument keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// New instantiates the instrument registered under key. Unknown keys fail
// with ErrConfiguration before any worker process spawns.
func (r *Registry) New(key string, config *Config) (Instrument, error) {
	factory, ok := r.factories[key]
	if !ok {
		return nil, errors.Wrapf(ErrConfiguration,
			"unknown instrument %q, registered instruments are %v", key, r.Keys())
	}
	if config == nil {
		config = NewConfig(key, nil)
	}
	instrument, err := factory(config)
	if err != nil {
		return nil, errors.Wrapf(err, "building instrument %q", key)
	}
	return instrument, nil
}

// Selection is the input to Resolve: the instrument names picked for this
// run, the defaults to use when nothing was picked, per-instrument options,
// and the VM types all chosen instruments must support.
type Selection struct {
	Selected []string
	Defaults []string
	Configs  map[string]*Config
	VMTypes  []string
}

// Resolve instantiates the chosen instruments. Unknown names fail with
// ErrConfiguration. Instruments unsupported by one of the VM types are
// dropped with a warning instead of failing, unless the drop would leave no
// instrument at all. Duplicate names resolve to a single instance.
func Resolve(registry *Registry, selection Selection) ([]Instrument, []string, error) {
	names := selection.Selected
	if len(names) == 0 {
		names = selection.Defaults
	}
	if len(names) == 0 {
		return nil, nil, errors.Wrap(ErrConfiguration, "no instruments selected and no defaults configured")
	}

	var (
		instruments []Instrument
		warnings    []string
		taken       = map[string]bool{}
	)
	for _, name := range names {
		if taken[name] {
			continue
		}
		taken[name] = true

		instrument, err := registry.New(name, selection.Configs[name])
		if err != nil {
			return nil, nil, err
		}

		if unsupported := unsupportedVMs(instrument, selection.VMTypes); len(unsupported) > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"instrument %q dropped: not supported on VM type(s) %v", name, unsupported))
			continue
		}
		instruments = append(instruments, instrument)
	}

	if len(instruments) == 0 {
		return nil, warnings, errors.Wrapf(ErrConfiguration,
			"none of the selected instruments %v is usable with the configured VMs", names)
	}
	return instruments, warnings, nil
}

func unsupportedVMs(instrument Instrument, vmTypes []string) []string {
	var unsupported []string
	for _, vmType := range vmTypes {
		if !instrument.SupportedOnVM(vmType) {
			unsupported = append(unsupported, vmType)
		}
	}
	sort.Strings(unsupported)
	return unsupported
}

// InstrumentedMethods pairs every instrument with every compatible method of
// the target, preserving instrument order then method declaration order.
// When methodNames is non-empty only those methods are considered, and names
// matching no method fail with an error listing them sorted.
func InstrumentedMethods(instruments []Instrument, target *benchmark.Target, methodNames []string) ([]InstrumentedMethod, error) {
	selected := map[string]bool{}
	for _, name := range methodNames {
		selected[name] = true
	}

	matched := map[string]bool{}
	var pairs []InstrumentedMethod
	for _, instrument := range instruments {
		for _, method := range target.Methods() {
			if len(selected) > 0 && !selected[method.Name] {
				continue
			}
			if len(selected) > 0 {
				matched[method.Name] = true
			}
			if !instrument.IsBenchmarkMethod(method) {
				continue
			}
			pair, err := instrument.CreateInstrumentedMethod(method)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair)
		}
	}

	if len(selected) > 0 && len(matched) != len(selected) {
		var missing []string
		for name := range selected {
			if !matched[name] {
				missing = append(missing, name)
			}
		}
		sort.Strings(missing)
		return nil, errors.Wrapf(ErrConfiguration,
			"no method of benchmark %q matches the selected name(s) %v", target.Name(), missing)
	}
	return pairs, nil
}
