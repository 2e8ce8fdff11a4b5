// Package benchmarks defines the hashing benchmark shared by the runner
// and worker binaries: the target description the runner enumerates trials
// from, and the method bodies the worker serves.
package benchmarks

import (
	"crypto/sha256"
	"hash/fnv"
	"strings"

	"github.com/intelsdi-x/chronos/pkg/benchmark"
	"github.com/intelsdi-x/chronos/pkg/conf"
	"github.com/intelsdi-x/chronos/pkg/workload"
)

// Name identifies the benchmark in trial listings and reports.
const Name = "hashing"

// SizeAxis is the payload size parameter of every method.
const SizeAxis = "size"

// Config is a config for the hashing benchmark.
type Config struct {
	Sizes      string `help:"Comma separated payload sizes for the size axis, in bytes" default:"64,1024,65536"`
	flagPrefix string
}

var defaultConfig = Config{
	flagPrefix: Name,
}

func init() {
	conf.Process(&defaultConfig)
}

// DefaultConfig is a constructor for Config with default parameters.
func DefaultConfig() Config {
	conf.Process(&defaultConfig)
	return defaultConfig
}

// Target describes the hashing benchmark to the runner.
func Target() (*benchmark.Target, error) {
	config := DefaultConfig()
	return benchmark.NewTarget(Name,
		[]benchmark.Method{
			{Name: "fnv64a", Kind: benchmark.KindTimed},
			{Name: "sha256", Kind: benchmark.KindTimed},
			{Name: "payload", Kind: benchmark.KindValue, Unit: "bytes"},
		},
		benchmark.Axis{Name: SizeAxis, Values: strings.Split(config.Sizes, ",")},
	)
}

// Register installs the method bodies into a worker side benchmark.
func Register() (*workload.Benchmark, error) {
	b := workload.NewBenchmark(Name)
	if err := b.Timed("fnv64a", timedFnv64a); err != nil {
		return nil, err
	}
	if err := b.Timed("sha256", timedSha256); err != nil {
		return nil, err
	}
	if err := b.Value("payload", "bytes", payloadSize); err != nil {
		return nil, err
	}
	return b, nil
}

func payload(params workload.Params) ([]byte, error) {
	size, err := params.Int(SizeAxis)
	if err != nil {
		return nil, err
	}
	block := make([]byte, size)
	for i := range block {
		block[i] = byte(i)
	}
	return block, nil
}

// Sinks keep the hash loops from being optimized away.
var (
	fnvSink uint64
	shaSink [sha256.Size]byte
)

func timedFnv64a(params workload.Params, reps int64) error {
	block, err := payload(params)
	if err != nil {
		return err
	}
	var sum uint64
	for i := int64(0); i < reps; i++ {
		digest := fnv.New64a()
		_, _ = digest.Write(block)
		sum += digest.Sum64()
	}
	fnvSink = sum
	return nil
}

func timedSha256(params workload.Params, reps int64) error {
	block, err := payload(params)
	if err != nil {
		return err
	}
	var sum [sha256.Size]byte
	for i := int64(0); i < reps; i++ {
		sum = sha256.Sum256(block)
	}
	shaSink = sum
	return nil
}

func payloadSize(params workload.Params) (float64, error) {
	block, err := payload(params)
	if err != nil {
		return 0, err
	}
	return float64(len(block)), nil
}
