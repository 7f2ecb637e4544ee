// Package convert resolves the lidar system a measurement belongs to and
// turns it into the SCC exchange format through the Serializer contract.
package convert

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

// IdentityError means a measurement could not be tied to exactly one known
// system configuration. Zero candidates and more than one candidate are
// both errors; the measurement is skipped, the run continues.
type IdentityError struct {
	Path    string
	Matches int
}

func (e *IdentityError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("no system configuration matches %s", e.Path)
	}
	return fmt.Sprintf("%d system configurations match %s", e.Matches, e.Path)
}

type system struct {
	id       string
	channels []lidar.ChannelSignature
}

// SystemIndex maps channel configurations to the system IDs registered on
// the SCC. It is built from a folder of sample raw files, one per system,
// named after the system's SCC ID.
type SystemIndex struct {
	systems []system
}

// NewSystemIndex reads every sample file in the folder. Files that cannot
// be read as raw data are logged and skipped.
func NewSystemIndex(folder string, reader lidar.HeaderReader) (*SystemIndex, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "reading configurations folder %s", folder)
	}

	idx := &SystemIndex{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(folder, entry.Name())

		info, err := reader.ReadHeader(path)
		if err != nil {
			log.Printf("File %s is not a valid sample file: %v", path, err)
			continue
		}

		idx.systems = append(idx.systems, system{
			id:       entry.Name(),
			channels: info.Channels,
		})
	}

	if len(idx.systems) == 0 {
		return nil, errors.Errorf("no valid sample files in %s", folder)
	}
	return idx, nil
}

// SystemID returns the ID of the unique system whose channel configuration
// matches the given file.
func (idx *SystemIndex) SystemID(record lidar.FileRecord) (string, error) {
	var matches []string
	for _, s := range idx.systems {
		if lidar.SameChannels(record.Channels, s.channels) {
			matches = append(matches, s.id)
		}
	}

	if len(matches) != 1 {
		return "", &IdentityError{Path: record.Path, Matches: len(matches)}
	}
	return matches[0], nil
}
