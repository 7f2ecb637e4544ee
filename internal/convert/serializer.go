package convert

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

// MeasurementID derives the external identifier for a measurement: the UTC
// date of its first data file, the station's call sign, and the day-scoped
// sequence number.
func MeasurementID(m lidar.Measurement, stationCode string) string {
	return fmt.Sprintf("%s%s%s", m.Start().UTC().Format("20060102"), stationCode, m.NumberAsString())
}

// ConversionError wraps a serializer failure for one measurement. The
// measurement is skipped, the run continues.
type ConversionError struct {
	MeasurementID string
	Err           error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("converting %s: %v", e.MeasurementID, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Serializer writes a measurement, with its dark files, into the SCC
// exchange format and returns the path of the produced file. The format
// itself is handled outside this module.
type Serializer interface {
	Serialize(ctx context.Context, m lidar.Measurement, measurementID, outDir string) (string, error)
}

// ExecSerializer shells out to an external converter. The command receives
// the output path, the dark files and the data files as arguments.
type ExecSerializer struct {
	// Command is the converter binary, e.g. "licel2scc".
	Command string

	// ExtraArgs are prepended to the generated arguments, typically the
	// path of the system's netcdf parameter set.
	ExtraArgs []string
}

// Serialize implements Serializer.
func (s *ExecSerializer) Serialize(ctx context.Context, m lidar.Measurement, measurementID, outDir string) (string, error) {
	outPath := filepath.Join(outDir, measurementID+".nc")

	args := append([]string{}, s.ExtraArgs...)
	args = append(args, "--output", outPath, "--measurement-id", measurementID)
	for _, dark := range m.DarkFiles {
		args = append(args, "--dark", dark.Path)
	}
	for _, data := range m.DataFiles {
		args = append(args, data.Path)
	}

	cmd := exec.CommandContext(ctx, s.Command, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Wrapf(err, "%s failed: %s", s.Command, string(output))
	}

	return outPath, nil
}

var _ Serializer = (*ExecSerializer)(nil)
