package main

import (
	"github.com/intelsdi-x/chronos/experiments/hashing/benchmarks"
	"github.com/intelsdi-x/chronos/pkg/utils/errutil"
	"github.com/intelsdi-x/chronos/pkg/workload"
)

// The worker speaks the benchmark protocol on its standard streams; all
// diagnostics must go to stderr, which the runner captures.
func main() {
	b, err := benchmarks.Register()
	errutil.Check(err)
	errutil.Check(workload.Serve(b))
}
