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

// Package metadata records the context of a benchmark run in a database,
// keyed by the run id: the parsed flags, the relevant environment, the
// host characteristics and the summarized results. A result can then
// always be traced back to the exact configuration that produced it.
package metadata

import (
	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/conf"
)

// Predefined kinds of metadata. A kind groups entries sharing a common
// source: TypeFlags holds the parsed flag values, TypeEnviron the
// CHRONOS_ environment, TypePlatform the recorded host characteristics,
// TypeRuntimes the worker runtimes per VM flavor and TypeResults the
// per-group summary of a finished run. The kind is just a string; a
// runner can record kinds of its own as well.
const (
	TypeEmpty    = ""
	TypeFlags    = "flags"
	TypeEnviron  = "environ"
	TypePlatform = "platform"
	TypeRuntimes = "runtimes"
	TypeResults  = "results"
)

// Metadata is one run's metadata store.
type Metadata interface {
	// Record stores a key and value and associates them with the run id.
	Record(key string, value string, kind string) error
	// RecordMap stores a whole map and associates it with the run id.
	RecordMap(metadata map[string]string, kind string) error
	// GetByKind retrieves the single metadata map of one kind.
	// Returns an error if the kind is absent or recorded more than once.
	GetByKind(kind string) (map[string]string, error)
	// Clear deletes all metadata entries associated with the run id.
	Clear() error
}

// NewDefault returns the metadata store selected by the metadata_db flag.
func NewDefault(runID string) (Metadata, error) {
	switch conf.DefaultMetadataDB.Value() {
	case "cassandra":
		return NewCassandra(runID, DefaultCassandraConfig())
	case "influxdb":
		return NewInfluxDB(runID, DefaultInfluxDBConfig())
	}

	return nil, errors.Errorf("unsupported metadata database %q", conf.DefaultMetadataDB.Value())
}
