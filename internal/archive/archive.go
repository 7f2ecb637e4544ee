// Package archive crawls a licel data folder and groups the raw files it
// finds into continuous measurements ready for conversion and upload.
package archive

import (
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

// Archive holds the state of one discovery run over a data folder. A fresh
// Archive is created per run; nothing here outlives it.
type Archive struct {
	folder string
	reader lidar.HeaderReader

	records []lidar.FileRecord

	// Single files that cannot form a measurement on their own. They are
	// kept aside so the run can copy them out for later inspection.
	testFiles []lidar.FileRecord
}

// New creates an archive over the given folder. The header reader supplies
// the metadata for every discovered file.
func New(folder string, reader lidar.HeaderReader) (*Archive, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving data folder %s", folder)
	}

	return &Archive{
		folder: abs,
		reader: reader,
	}, nil
}

// Folder returns the absolute path of the data folder.
func (a *Archive) Folder() string {
	return a.folder
}

// Records returns the discovered files sorted ascending by start time.
func (a *Archive) Records() []lidar.FileRecord {
	return a.records
}

// TestFiles returns the files set aside during segmentation because they
// could not form a measurement.
func (a *Archive) TestFiles() []lidar.FileRecord {
	return a.testFiles
}

// Scan walks the folder tree and reads every raw licel file whose filename
// timestamp falls inside [start, end]. A nil boundary leaves that side open.
// Files that do not carry a licel timestamp in their name, or whose header
// cannot be read, are skipped; neither is an error for the run.
func (a *Archive) Scan(start, end *time.Time) error {
	a.records = nil

	err := filepath.WalkDir(a.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		date, perr := lidar.TimestampFromFilename(d.Name())
		if perr != nil {
			// Not a raw licel file.
			return nil
		}
		if !inWindow(date, start, end) {
			return nil
		}

		info, herr := a.reader.ReadHeader(path)
		if herr != nil {
			log.Printf("Skipping %s: %v", path, herr)
			return nil
		}

		a.records = append(a.records, lidar.FileRecord{
			Path:     path,
			Start:    info.Start,
			End:      info.End,
			Site:     info.Site,
			Channels: info.Channels,
		})
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "scanning %s", a.folder)
	}

	sort.Slice(a.records, func(i, j int) bool {
		return a.records[i].Start.Before(a.records[j].Start)
	})

	log.Printf("Found %d raw data files in %s", len(a.records), a.folder)
	return nil
}

// FindDarkRecords walks the folder for background recordings within one day
// of the given time. The walk is independent of Scan: a matching dark file
// may lie outside the run's own date window.
func (a *Archive) FindDarkRecords(around time.Time) ([]lidar.FileRecord, error) {
	windowStart := around.Add(-24 * time.Hour)
	windowEnd := around.Add(24 * time.Hour)

	var darks []lidar.FileRecord

	err := filepath.WalkDir(a.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		date, perr := lidar.TimestampFromFilename(d.Name())
		if perr != nil {
			return nil
		}
		if date.Before(windowStart) || date.After(windowEnd) {
			return nil
		}

		info, herr := a.reader.ReadHeader(path)
		if herr != nil {
			return nil
		}
		if info.Site != lidar.DarkSite {
			return nil
		}

		darks = append(darks, lidar.FileRecord{
			Path:     path,
			Start:    info.Start,
			End:      info.End,
			Site:     info.Site,
			Channels: info.Channels,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "searching dark files in %s", a.folder)
	}

	sort.Slice(darks, func(i, j int) bool {
		return darks[i].Start.Before(darks[j].Start)
	})

	return darks, nil
}

func inWindow(date time.Time, start, end *time.Time) bool {
	if start != nil && date.Before(*start) {
		return false
	}
	if end != nil && date.After(*end) {
		return false
	}
	return true
}
