// Package datalog records one report row per attempted measurement. Rows go
// to a CSV file by default; a SQLite sink is available for deployments that
// prefer querying the history.
package datalog

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
)

// Row is one measurement's processing report.
type Row struct {
	ProcessStart  string
	DataFolder    string
	DataFile      string
	SystemID      string
	MeasurementID string
	Uploaded      bool
	Downloaded    bool
	SCCVersion    string
	Result        string
}

var csvHeader = []string{
	"Process Start", "Data Folder", "Data File", "SCC System ID",
	"Measurement ID", "Uploaded", "Downloaded", "SCC Version", "Result",
}

// Sink persists report rows at the end of a run.
type Sink interface {
	Append(rows []Row) error
}

// CSVSink appends rows to a CSV file, writing the header row when the file
// does not exist yet.
type CSVSink struct {
	Path string
}

// Append implements Sink.
func (s *CSVSink) Append(rows []Row) error {
	_, statErr := os.Stat(s.Path)
	writeHeader := os.IsNotExist(statErr)

	file, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening datalog %s", s.Path)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if writeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return errors.Wrap(err, "writing datalog header")
		}
	}

	for _, row := range rows {
		record := []string{
			row.ProcessStart,
			row.DataFolder,
			row.DataFile,
			row.SystemID,
			row.MeasurementID,
			boolCell(row.Uploaded),
			boolCell(row.Downloaded),
			row.SCCVersion,
			row.Result,
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "writing datalog row for %s", row.MeasurementID)
		}
	}

	writer.Flush()
	return errors.Wrap(writer.Error(), "flushing datalog")
}

func boolCell(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

var _ Sink = (*CSVSink)(nil)
