// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/faultline/client"
	"github.com/bureau-foundation/faultline/lib/codec"
)

// ErrFormat is returned for a path whose extension names no known
// report format.
var ErrFormat = errors.New("unknown report format")

// csvHeader is the first row of a CSV report.
var csvHeader = []string{"iteration", "latency_ns"}

// Report is one client run.
type Report struct {
	Binding    string    `cbor:"binding"`
	LabelWidth int       `cbor:"label_width"`
	StartedAt  time.Time `cbor:"started_at"`

	Summary Summary         `cbor:"summary"`
	Samples []client.Sample `cbor:"samples"`
}

// Summary is the aggregate view of a run. The latency fields are
// absent when no exchange completed.
type Summary struct {
	Rounds     int     `cbor:"rounds"`
	Count      uint64  `cbor:"count"`
	AverageNS  *uint64 `cbor:"avg_ns,omitempty"`
	MinNS      *uint64 `cbor:"min_ns,omitempty"`
	MaxNS      *uint64 `cbor:"max_ns,omitempty"`
	Gaps       int     `cbor:"gaps"`
	Mismatches int     `cbor:"mismatches"`
}

// New builds a Report from a client result.
func New(result client.Result, binding string, labelWidth int, startedAt time.Time) Report {
	summary := Summary{
		Rounds:     result.Rounds,
		Count:      result.Stats.Count,
		Gaps:       result.Gaps,
		Mismatches: result.Mismatches,
	}
	if average, ok := result.Stats.Average(); ok {
		minimum, maximum := result.Stats.Min, result.Stats.Max
		summary.AverageNS = &average
		summary.MinNS = &minimum
		summary.MaxNS = &maximum
	}
	return Report{
		Binding:    binding,
		LabelWidth: labelWidth,
		StartedAt:  startedAt.UTC(),
		Summary:    summary,
		Samples:    result.Samples,
	}
}

// Encode renders report in the format path names.
func Encode(path string, report Report) ([]byte, error) {
	base, compression := splitCompression(path)

	var data []byte
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv":
		var buffer bytes.Buffer
		if err := writeCSV(&buffer, report.Samples); err != nil {
			return nil, fmt.Errorf("encoding report: %w", err)
		}
		data = buffer.Bytes()
	case ".cbor":
		encoded, err := codec.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("encoding report: %w", err)
		}
		data = encoded
	default:
		return nil, fmt.Errorf("%s: %w (want .csv or .cbor, optionally .zst or .lz4)", path, ErrFormat)
	}
	return compress(data, compression)
}

// writeCSV writes one row per sample. Iteration numbers here are
// sample indices, two per round, matching the plotting input.
func writeCSV(w io.Writer, samples []client.Sample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for index, sample := range samples {
		row := []string{
			strconv.Itoa(index + 1),
			strconv.FormatUint(sample.LatencyNS, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", index+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

// Write encodes report and writes it atomically to path. The parent
// directory must already exist.
func Write(path string, report Report) error {
	data, err := Encode(path, report)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// writeAtomic writes to a temporary file, syncs, and renames it into
// place.
func writeAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary report file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary report file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary report file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary report file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming report into place: %w", err)
	}

	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Read loads a CBOR report written by Write.
func Read(path string) (Report, error) {
	data, err := readPlain(path)
	if err != nil {
		return Report{}, err
	}
	base, _ := splitCompression(path)
	if strings.ToLower(filepath.Ext(base)) != ".cbor" {
		return Report{}, fmt.Errorf("%s: %w (Read wants .cbor)", path, ErrFormat)
	}
	var report Report
	if err := codec.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return report, nil
}

// ReadLatencies loads the latency column of a CSV report.
func ReadLatencies(path string) ([]uint64, error) {
	data, err := readPlain(path)
	if err != nil {
		return nil, err
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	if len(records) == 0 || strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("report %s: missing %q header", path, strings.Join(csvHeader, ","))
	}
	latencies := make([]uint64, 0, len(records)-1)
	for line, record := range records[1:] {
		value, err := strconv.ParseUint(record[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("report %s line %d: %w", path, line+2, err)
		}
		latencies = append(latencies, value)
	}
	return latencies, nil
}

func readPlain(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	_, compression := splitCompression(path)
	return decompress(data, compression)
}
