// Package report folds trial results into an immutable run summary.
// Successful trials merge into groups keyed by method, instrument and
// parameter assignment; their measurements are normalized to one invocation
// and aggregated with weighted statistics. Failed and timed out trials are
// always listed alongside, never merged into the numbers and never dropped.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/intelsdi-x/chronos/pkg/conf"
	"github.com/intelsdi-x/chronos/pkg/scheduler"
)

// iqrFenceFactor stretches the interquartile range into the Tukey fences.
const iqrFenceFactor = 1.5

var (
	percentilesFlag = conf.NewSliceFlag(
		"percentiles",
		"Percentiles computed per result group.",
		"50", "90", "99")
	outlierPolicyFlag = conf.NewStringFlag(
		"outlier_policy",
		"Outlier handling per result group: keep, flag or trim.",
		"flag")
)

// Group advisories reported alongside the aggregated numbers.
const (
	// FlagPartialWarmup marks groups containing trials whose warmup was cut
	// short.
	FlagPartialWarmup = "partial-warmup"
	// FlagOutliers marks groups whose outliers stayed in the aggregate.
	FlagOutliers = "outliers"
	// FlagOutliersTrimmed marks groups whose outliers were removed from the
	// aggregate.
	FlagOutliersTrimmed = "outliers-trimmed"
)

// OutlierPolicy decides what happens to measurements beyond the IQR fences.
type OutlierPolicy int

const (
	// OutlierFlag keeps outliers in the numbers and flags the group.
	OutlierFlag OutlierPolicy = iota
	// OutlierTrim removes outliers from the numbers and flags the group.
	OutlierTrim
	// OutlierKeep leaves outliers alone and unreported.
	OutlierKeep
)

// String implements fmt.Stringer.
func (p OutlierPolicy) String() string {
	switch p {
	case OutlierFlag:
		return "flag"
	case OutlierTrim:
		return "trim"
	case OutlierKeep:
		return "keep"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParseOutlierPolicy maps a configuration word to its policy.
func ParseOutlierPolicy(name string) (OutlierPolicy, error) {
	switch name {
	case "flag":
		return OutlierFlag, nil
	case "trim":
		return OutlierTrim, nil
	case "keep":
		return OutlierKeep, nil
	}
	return OutlierFlag, errors.Errorf("unknown outlier policy %q, pick keep, flag or trim", name)
}

// Config shapes the aggregation.
type Config struct {
	// Percentiles are computed per group, each in (0, 100].
	Percentiles []float64
	// Outliers picks the outlier handling policy.
	Outliers OutlierPolicy
}

// DefaultConfig applies the aggregation settings from the command line flags
// and environment variables.
func DefaultConfig() (Config, error) {
	config := Config{Percentiles: []float64{50, 90, 99}}

	if raw := percentilesFlag.Value(); len(raw) > 0 {
		parsed := make([]float64, 0, len(raw))
		for _, entry := range raw {
			percentile, err := strconv.ParseFloat(entry, 64)
			if err != nil {
				return Config{}, errors.Wrapf(err, "could not parse percentile %q", entry)
			}
			parsed = append(parsed, percentile)
		}
		config.Percentiles = parsed
	}

	policy, err := ParseOutlierPolicy(outlierPolicyFlag.Value())
	if err != nil {
		return Config{}, err
	}
	config.Outliers = policy
	return config, nil
}

// Key identifies one result group: a method measured by one instrument under
// one parameter assignment.
type Key struct {
	Method     string
	Instrument string
	// Params is the canonical parameter rendering with sorted keys.
	Params string
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return fmt.Sprintf("%s(%s)%s", k.Instrument, k.Method, k.Params)
}

// Percentile is one computed percentile of a group.
type Percentile struct {
	P     float64
	Value float64
}

// Group is the aggregate of all successful trials of one key. Measurement
// values are normalized to a single invocation before aggregation and
// weighted by the invocations they span.
type Group struct {
	Key  Key
	Unit string
	// Trials counts the successful trials merged into the group.
	Trials int
	// Measurements counts the aggregated data points, after trimming.
	Measurements int
	// Outliers counts the points beyond the IQR fences, flagged or trimmed.
	Outliers    int
	Mean        float64
	StdDev      float64
	Min         float64
	Max         float64
	Percentiles []Percentile
	// Flags carries measurement flags and aggregation advisories, sorted.
	Flags []string
}

// Failure is one trial that did not reach success, listed verbatim.
type Failure struct {
	TrialID int
	Key     Key
	VM      string
	State   scheduler.TrialState
	Reason  string
}

// Report is the outcome of one aggregation. It is immutable; accessors
// return copies whose contents callers must treat as read-only.
type Report struct {
	groups   []Group
	failures []Failure
	total    int
}

// Groups returns the aggregated groups ordered by key.
func (r *Report) Groups() []Group {
	return append([]Group(nil), r.groups...)
}

// Failures returns the failed and timed out trials in trial order.
func (r *Report) Failures() []Failure {
	return append([]Failure(nil), r.failures...)
}

// TotalTrials returns the number of trials that went into the report.
func (r *Report) TotalTrials() int {
	return r.total
}

// Build aggregates trial results into a report. Successful trials merge into
// groups; every other trial lands in the failure listing with its terminal
// state. No trial is ever dropped.
func Build(results []scheduler.TrialResult, config Config) (*Report, error) {
	for _, percentile := range config.Percentiles {
		if percentile <= 0 || percentile > 100 {
			return nil, errors.Errorf("percentile %v is outside (0, 100]", percentile)
		}
	}

	groups := map[Key]*groupData{}
	var order []Key
	var failures []Failure

	for _, result := range results {
		key := Key{
			Method:     result.Trial.Instrumented.Method.Name,
			Instrument: result.Trial.Instrumented.Instrument.Name(),
			Params:     paramKey(result.Trial.Params),
		}

		if result.State != scheduler.Success {
			failures = append(failures, Failure{
				TrialID: result.Trial.ID,
				Key:     key,
				VM:      result.Trial.VM.Name,
				State:   result.State,
				Reason:  result.Failure,
			})
			continue
		}

		data, ok := groups[key]
		if !ok {
			data = &groupData{}
			groups[key] = data
			order = append(order, key)
		}
		if err := data.add(result); err != nil {
			return nil, errors.Wrapf(err, "merging %s", result.Trial)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].Method != order[j].Method {
			return order[i].Method < order[j].Method
		}
		if order[i].Instrument != order[j].Instrument {
			return order[i].Instrument < order[j].Instrument
		}
		return order[i].Params < order[j].Params
	})

	report := &Report{total: len(results), failures: failures}
	for _, key := range order {
		report.groups = append(report.groups, groups[key].summarize(key, config))
	}
	return report, nil
}

// groupData accumulates one group until its summary is computed.
type groupData struct {
	unit    string
	trials  int
	samples []sample
	flags   map[string]bool
}

type sample struct {
	// value is the measured value normalized to one invocation.
	value  float64
	weight float64
}

func (g *groupData) add(result scheduler.TrialResult) error {
	g.trials++
	if result.PartialWarmup {
		g.flag(FlagPartialWarmup)
	}

	for _, measurement := range result.Measurements {
		if g.unit == "" {
			g.unit = measurement.Unit
		} else if g.unit != measurement.Unit {
			return errors.Errorf("unit %q clashes with the group's %q", measurement.Unit, g.unit)
		}

		g.samples = append(g.samples, sample{
			value:  measurement.PerInvocation(),
			weight: measurement.Weight,
		})
		for _, name := range measurement.Flags {
			g.flag(name)
		}
	}
	return nil
}

func (g *groupData) flag(name string) {
	if g.flags == nil {
		g.flags = map[string]bool{}
	}
	g.flags[name] = true
}

func (g *groupData) summarize(key Key, config Config) Group {
	group := Group{
		Key:    key,
		Unit:   g.unit,
		Trials: g.trials,
	}

	samples := g.samples
	if len(samples) > 0 && config.Outliers != OutlierKeep {
		kept, outliers := fence(samples)
		group.Outliers = len(outliers)
		if len(outliers) > 0 {
			if config.Outliers == OutlierTrim {
				samples = kept
				g.flag(FlagOutliersTrimmed)
			} else {
				g.flag(FlagOutliers)
			}
		}
	}

	group.Measurements = len(samples)
	if len(samples) > 0 {
		values, weights := split(samples)
		group.Mean = stat.Mean(values, weights)
		if len(values) > 1 {
			group.StdDev = stat.StdDev(values, weights)
		}
		group.Min = values[0]
		group.Max = values[len(values)-1]
		for _, percentile := range config.Percentiles {
			group.Percentiles = append(group.Percentiles, Percentile{
				P:     percentile,
				Value: stat.Quantile(percentile/100, stat.Empirical, values, weights),
			})
		}
	}

	for name := range g.flags {
		group.Flags = append(group.Flags, name)
	}
	sort.Strings(group.Flags)
	return group
}

// fence splits samples into those inside the Tukey fences and the outliers
// beyond iqrFenceFactor times the interquartile range.
func fence(samples []sample) (kept, outliers []sample) {
	values, weights := split(samples)
	q1 := stat.Quantile(0.25, stat.Empirical, values, weights)
	q3 := stat.Quantile(0.75, stat.Empirical, values, weights)
	spread := (q3 - q1) * iqrFenceFactor
	low, high := q1-spread, q3+spread

	for _, s := range samples {
		if s.value < low || s.value > high {
			outliers = append(outliers, s)
		} else {
			kept = append(kept, s)
		}
	}
	return kept, outliers
}

// split orders the samples by value and returns parallel value and weight
// slices, the shape gonum quantiles require.
func split(samples []sample) (values, weights []float64) {
	ordered := append([]sample(nil), samples...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].value < ordered[j].value })

	values = make([]float64, len(ordered))
	weights = make([]float64, len(ordered))
	for i, s := range ordered {
		values[i] = s.value
		weights[i] = s.weight
	}
	return values, weights
}

// paramKey canonicalizes a parameter assignment with sorted keys, making it
// usable as a map key and stable in listings.
func paramKey(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, params[key]))
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}
