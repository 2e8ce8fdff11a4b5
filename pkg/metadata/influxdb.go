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
	"strings"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"

	"github.com/intelsdi-x/chronos/pkg/conf"
)

const (
	influxMetadata = "metadata"
)

// InfluxDBConfig holds configuration for InfluxDB.
type InfluxDBConfig struct {
	httpConfig client.HTTPConfig
	dbName     string
}

// InfluxDB keeps the InfluxDB session alive and holds the run id the
// metadata is tagged with.
type InfluxDB struct {
	runID   string
	session client.Client
	config  InfluxDBConfig
}

// DefaultInfluxDBConfig applies the InfluxDB settings from the command
// line flags and environment variables.
func DefaultInfluxDBConfig() InfluxDBConfig {
	return InfluxDBConfig{
		dbName: conf.InfluxDBName.Value(),
		httpConfig: client.HTTPConfig{
			Addr:               fmt.Sprintf("http://%s:%d", conf.InfluxDBAddress.Value(), conf.InfluxDBPort.Value()),
			Password:           conf.InfluxDBPassword.Value(),
			Username:           conf.InfluxDBUsername.Value(),
			InsecureSkipVerify: conf.InfluxDBInsecureSkipVerify.Value(),
		},
	}
}

// NewInfluxDB returns the Metadata store from a run id and configuration.
func NewInfluxDB(runID string, config InfluxDBConfig) (Metadata, error) {
	var err error

	metadata := &InfluxDB{
		runID:  runID,
		config: config,
	}

	metadata.session, err = client.NewHTTPClient(metadata.config.httpConfig)

	if err != nil {
		return nil, errors.Wrapf(err, "cannot create influx client for run %s", runID)
	}

	if conf.InfluxDBCreateDatabase.Value() {
		response, err := metadata.session.Query(client.Query{
			Command:  fmt.Sprintf("CREATE DATABASE %s", config.dbName),
			Database: ""})
		if err != nil {
			return nil, errors.Wrapf(err, "cannot create influx database for run %s", runID)
		}
		if response.Error() != nil {
			return nil, errors.Wrapf(response.Error(), "response contains error for run %s", runID)
		}
	}

	return metadata, nil
}

// influxDBStoreMap writes metadata to the database with tags attached.
// Values are written one by one, row by row. No aggregation is being done.
func influxDBStoreMap(m *InfluxDB, metadata map[string]string, kind string) error {
	batchPoints, err := client.NewBatchPoints(client.BatchPointsConfig{Database: m.config.dbName})
	if err != nil {
		return errors.Wrapf(err, "creation of batch points for InfluxDB failed for metadata kind %q", kind)
	}

	tags := map[string]string{"kind": kind, "run_id": m.runID}

	now := time.Now()
	fields := make(map[string]interface{})
	for key := range metadata {
		fields[key] = metadata[key]
	}
	point, err := client.NewPoint(influxMetadata, tags, fields, now)
	if err != nil {
		return errors.Wrapf(err, "cannot create new point, kind %q", kind)
	}

	batchPoints.AddPoint(point)

	err = m.session.Write(batchPoints)
	if err != nil {
		return errors.Wrapf(err, "cannot publish metadata of kind %q", kind)
	}
	return nil
}

// Record stores a key and value and associates them with the run id.
func (m *InfluxDB) Record(key, value, kind string) error {
	metadata := map[string]string{}
	metadata[key] = value
	return influxDBStoreMap(m, metadata, kind)
}

// RecordMap stores a whole map and associates it with the run id.
func (m *InfluxDB) RecordMap(metadata map[string]string, kind string) error {
	return influxDBStoreMap(m, metadata, kind)
}

// GetByKind retrieves the single metadata map of one kind from the
// database. If duplicates are found then the last one is returned.
func (m *InfluxDB) GetByKind(kind string) (map[string]string, error) {
	var metadata = make(map[string]string)
	// There are two tags currently and the query gets rid of them by grouping.
	cmd := fmt.Sprintf("SELECT last(*) FROM %s WHERE run_id='%s' AND kind='%s' GROUP BY run_id,kind", influxMetadata, m.runID, kind)

	query := client.Query{
		Command:  cmd,
		Database: m.config.dbName,
	}

	response, err := m.session.Query(query)

	if err != nil {
		return nil, errors.Wrapf(err, "cannot query influxdb for run %s", m.runID)
	}

	if response.Error() != nil {
		return nil, errors.Wrapf(response.Error(), "influxdb response contains error for run %s", m.runID)
	}

	for _, result := range response.Results {
		for _, row := range result.Series {
			for _, value := range row.Values {
				for idx, cell := range value {
					// Index 0 carries the timestamp, which is not metadata.
					// The results may also be sparse, so skip empty cells.
					if cell != nil && idx != 0 {
						column := strings.Replace(row.Columns[idx], "last_", "", 1)
						metadata[column] = cell.(string)
					}
				}
			}
		}
	}

	return metadata, nil
}

// Clear deletes all metadata entries associated with the run id.
func (m *InfluxDB) Clear() error {
	cmd := fmt.Sprintf("DROP SERIES FROM %s WHERE run_id ='%s'", influxMetadata, m.runID)

	query := client.Query{
		Command:  cmd,
		Database: m.config.dbName,
	}

	response, err := m.session.Query(query)

	if err != nil {
		return errors.Wrapf(err, "cannot query influxdb for run %s", m.runID)
	}

	if response.Error() != nil {
		return errors.Wrapf(response.Error(), "influxdb response contains error for run %s", m.runID)
	}
	return nil
}
