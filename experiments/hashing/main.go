package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/intelsdi-x/chronos/experiments/hashing/benchmarks"
	"github.com/intelsdi-x/chronos/pkg/conf"
	"github.com/intelsdi-x/chronos/pkg/instrument"
	"github.com/intelsdi-x/chronos/pkg/metadata"
	"github.com/intelsdi-x/chronos/pkg/report"
	"github.com/intelsdi-x/chronos/pkg/scheduler"
	"github.com/intelsdi-x/chronos/pkg/utils/errutil"
	"github.com/intelsdi-x/chronos/pkg/utils/uuid"
	"github.com/intelsdi-x/chronos/pkg/visualization"
	"github.com/intelsdi-x/chronos/pkg/worker"
)

var (
	workerCommandFlag = conf.NewStringFlag(
		"worker_command",
		"Command spawning the hashing worker binary. Arguments are space separated.",
		"hashing-worker")
	instrumentsFlag = conf.NewSliceFlag(
		"instrument",
		"Instrument measuring every trial. Can be stated many times (--instrument=runtime --instrument=arbitrary).")
	methodsFlag = conf.NewSliceFlag(
		"method",
		"Benchmark method to measure. Can be stated many times; all methods when absent.")
	recordMetadataFlag = conf.NewBoolFlag(
		"record_metadata",
		"Record the runtime environment and results to the metadata database.",
		false)
)

func main() {
	runStart := time.Now()

	// Preparing application - setting name, help, parsing flags etc.
	conf.SetAppName("hashing")
	conf.SetHelp(`Hashing runner spawns hashing workers and measures fnv64a and sha256 over a range of payload sizes with the configured instruments, then prints the aggregated report.`)
	errutil.Check(conf.ParseFlags())
	logrus.SetLevel(conf.LogLevel())

	if conf.DumpConfigFlag.Value() {
		fmt.Println(conf.DumpConfig())
		os.Exit(0)
	}

	// Generate a run ID and output it.
	runID := uuid.New()
	logrus.Info("Starting run ", conf.AppName(), " with id ", runID)
	fmt.Println(runID)

	// Connect the metadata session and record configuration up front.
	var store metadata.Metadata
	if recordMetadataFlag.Value() {
		connected, err := metadata.NewDefault(runID)
		errutil.CheckWithContext(err, "Cannot connect to metadata database")
		err = metadata.RecordRuntimeEnv(connected, runStart)
		errutil.CheckWithContext(err, "Cannot record runtime environment metadata")
		store = connected
	}

	target, err := benchmarks.Target()
	errutil.Check(err)

	// One local worker flavor running the installed worker binary.
	vm := worker.VMConfig{
		Name:    "local-go",
		Type:    "go",
		Command: strings.Fields(workerCommandFlag.Value()),
	}
	launcher := worker.NewLauncher(vm, worker.DefaultLauncherConfig())
	pool, err := worker.NewPool([]worker.Launcher{launcher}, worker.DefaultPoolConfig())
	errutil.Check(err)
	defer pool.DrainAndStop()

	setup := scheduler.Setup{
		Target:  target,
		Methods: methodsFlag.Value(),
		Selection: instrument.Selection{
			Selected: instrumentsFlag.Value(),
			Defaults: []string{instrument.RuntimeKey, instrument.ArbitraryKey},
		},
		VMs: []worker.VMConfig{vm},
	}
	run, err := scheduler.New(scheduler.DefaultConfig(), setup, pool)
	errutil.Check(err)
	logrus.Infof("Enumerated %d trials", len(run.Trials()))

	// Advisory events are logged as they happen and listed after the report.
	eventLines := []string{}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for event := range run.Events() {
			logrus.Warn(event.String())
			eventLines = append(eventLines, event.String())
		}
	}()

	results, err := run.Run(context.Background())
	errutil.Check(err)
	<-drained

	reportConfig, err := report.DefaultConfig()
	errutil.Check(err)
	built, err := report.Build(results, reportConfig)
	errutil.Check(err)

	visualization.PrintReport(os.Stdout, runID, built)
	if len(eventLines) > 0 {
		fmt.Println()
		visualization.PrintList(visualization.NewList(eventLines, "event: "))
	}

	if store != nil {
		err = metadata.RecordWorkerRuntimes(store, results)
		errutil.CheckWithContext(err, "Cannot record worker runtimes to metadata database")
		err = metadata.RecordResults(store, built)
		errutil.CheckWithContext(err, "Cannot record run results to metadata database")
	}

	logrus.Infof("Ended run %s with id %s in %s", conf.AppName(), runID, time.Since(runStart).String())
}
