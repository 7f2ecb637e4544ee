package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

const debugDirLayout = "2006-01-02-15-04"

// DebugMeasurement copies a measurement's raw files, dark files and the
// converted NetCDF file into a timestamped folder under debugDir. Dark
// files go into a "D" subfolder. If a folder for the same timestamp
// already exists a numeric suffix is appended.
func DebugMeasurement(m lidar.Measurement, netCDFPath, debugDir string) error {
	if len(m.DataFiles) == 0 {
		return errors.New("measurement has no data files")
	}

	dir := filepath.Join(debugDir, m.Start().Format(debugDirLayout))
	dir = uniqueDir(dir)

	darkDir := filepath.Join(dir, "D")
	if err := os.MkdirAll(darkDir, 0o755); err != nil {
		return errors.Wrap(err, "could not create debug folder")
	}

	for _, file := range m.DataFiles {
		if err := copyFileInto(file.Path, dir); err != nil {
			return err
		}
	}
	for _, file := range m.DarkFiles {
		if err := copyFileInto(file.Path, darkDir); err != nil {
			return err
		}
	}
	return copyFileInto(netCDFPath, dir)
}

// CopyTestFiles sorts gap-grouped test recordings into folders under
// debugDir/Tests. A group whose site appears in one of the configured
// lists lands in a Test_List_<n>_<start> folder; everything else goes to
// Other_Tests_<end>.
func CopyTestFiles(groups [][]lidar.FileRecord, debugDir string, testLists [][]string) error {
	if len(groups) == 0 {
		return nil
	}

	testsDir := filepath.Join(debugDir, "Tests")
	if err := os.MkdirAll(testsDir, 0o755); err != nil {
		return errors.Wrap(err, "could not create tests folder")
	}

	for _, group := range groups {
		for _, file := range group {
			listed := false
			for j, list := range testLists {
				if !containsSite(list, file.Site) {
					continue
				}
				listed = true
				dir := filepath.Join(testsDir, fmt.Sprintf("Test_List_%d_%s",
					j+1, group[0].Start.Format(debugDirLayout)))
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errors.Wrap(err, "could not create test list folder")
				}
				if err := copyFileInto(file.Path, dir); err != nil {
					return err
				}
			}
			if !listed {
				dir := filepath.Join(testsDir,
					"Other_Tests_"+group[len(group)-1].End.Format(debugDirLayout))
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errors.Wrap(err, "could not create test folder")
				}
				if err := copyFileInto(file.Path, dir); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func containsSite(list []string, site string) bool {
	for _, entry := range list {
		if entry == site {
			return true
		}
	}
	return false
}

func uniqueDir(dir string) string {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return dir
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", dir, i)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func copyFileInto(path, dir string) error {
	src, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", path)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		return errors.Wrapf(err, "could not create copy of %s", path)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(err, "could not copy %s", path)
	}
	return nil
}
