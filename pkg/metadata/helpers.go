// Copyright (c) 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metadata

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/conf"
	"github.com/intelsdi-x/chronos/pkg/report"
	"github.com/intelsdi-x/chronos/pkg/scheduler"
)

// RecordRuntimeEnv stores the runner's configuration and host context:
// parsed flags, the CHRONOS_ environment, hostname, start time and
// platform characteristics.
func RecordRuntimeEnv(metadata Metadata, runStart time.Time) error {
	// Store configuration.
	err := recordFlags(metadata)
	if err != nil {
		return err
	}

	// Store CHRONOS_ environment configuration.
	err = recordEnv(metadata, conf.EnvironmentPrefix)
	if err != nil {
		return err
	}

	hostname, err := os.Hostname()
	if err != nil {
		return errors.Wrap(err, "cannot retrieve hostname")
	}
	// Store hostname and start time.
	err = metadata.RecordMap(map[string]string{"time": runStart.Format(time.RFC822Z), "host": hostname}, TypeEmpty)
	if err != nil {
		return err
	}

	// Store hardware & OS details.
	err = recordPlatformMetrics(metadata)
	if err != nil {
		return err
	}

	return nil
}

// recordFlags saves the whole flag based configuration in the metadata.
func recordFlags(metadata Metadata) error {
	flags := conf.GetFlags()
	return metadata.RecordMap(flags, TypeFlags)
}

// recordEnv adds all OS environment variables that start with prefix to
// the metadata.
func recordEnv(metadata Metadata, prefix string) error {
	envMetadata := map[string]string{}
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, prefix) {
			fields := strings.SplitN(env, "=", 2)
			envMetadata[fields[0]] = fields[1]
		}
	}
	return metadata.RecordMap(envMetadata, TypeEnviron)
}

// recordPlatformMetrics stores platform specific metadata.
// Platform metrics are of the TypePlatform kind.
func recordPlatformMetrics(metadata Metadata) error {
	return metadata.RecordMap(PlatformMetrics(), TypePlatform)
}

// RecordWorkerRuntimes stores the runtime identification the workers
// announced, one entry per VM flavor, under TypeRuntimes. Trials that
// never reached a worker handshake contribute nothing.
func RecordWorkerRuntimes(metadata Metadata, results []scheduler.TrialResult) error {
	runtimes := map[string]string{}
	for _, result := range results {
		if result.RuntimeName == "" {
			continue
		}
		runtimes[result.Trial.VM.Name] = describeRuntime(result)
	}
	if len(runtimes) == 0 {
		return nil
	}
	return metadata.RecordMap(runtimes, TypeRuntimes)
}

// describeRuntime renders one announced runtime with its options sorted,
// e.g. "go go1.21.5 (GOGC=100, GOMAXPROCS=8)".
func describeRuntime(result scheduler.TrialResult) string {
	described := fmt.Sprintf("%s %s", result.RuntimeName, result.RuntimeVersion)
	if len(result.RuntimeOptions) == 0 {
		return described
	}

	keys := make([]string, 0, len(result.RuntimeOptions))
	for key := range result.RuntimeOptions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, result.RuntimeOptions[key]))
	}
	return fmt.Sprintf("%s (%s)", described, strings.Join(pairs, ", "))
}

// RecordResults stores the summary of a finished run under TypeResults:
// one entry per result group and one per trial that did not succeed.
func RecordResults(metadata Metadata, rep *report.Report) error {
	results := map[string]string{}
	for _, group := range rep.Groups() {
		results[group.Key.String()] = fmt.Sprintf("mean %g %s over %d measurements from %d trials",
			group.Mean, group.Unit, group.Measurements, group.Trials)
	}
	for _, failure := range rep.Failures() {
		results[fmt.Sprintf("trial-%d", failure.TrialID)] = fmt.Sprintf("%s: %s", failure.State, failure.Reason)
	}
	return metadata.RecordMap(results, TypeResults)
}
