package archive

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	watermarkDateLayout = "2006-01-02"
	watermarkTimeLayout = "2006-01-02 15:04:05"
)

// Watermark is the persisted boundary below which data counts as already
// processed. It lives in a small two-line text file: the date of the last
// scan on the first line, the end time of the last confirmed sent
// measurement on the second.
type Watermark struct {
	LastScanned time.Time
	LastSentEnd time.Time

	path string
}

// LoadWatermark reads the watermark file. A missing file yields an empty
// watermark; a present but malformed file is an error.
func LoadWatermark(path string) (*Watermark, error) {
	wm := &Watermark{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return wm, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading watermark file %s", path)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, errors.Errorf("watermark file %s: expected two lines, got %d", path, len(lines))
	}

	if line := strings.TrimSpace(lines[0]); line != "" {
		wm.LastScanned, err = time.ParseInLocation(watermarkDateLayout, line, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "watermark file %s: bad scan date", path)
		}
	}
	if line := strings.TrimSpace(lines[1]); line != "" {
		wm.LastSentEnd, err = time.ParseInLocation(watermarkTimeLayout, line, time.UTC)
		if err != nil {
			return nil, errors.Wrapf(err, "watermark file %s: bad sent time", path)
		}
	}

	return wm, nil
}

// Save rewrites the watermark file.
func (w *Watermark) Save() error {
	var scanned, sent string
	if !w.LastScanned.IsZero() {
		scanned = w.LastScanned.Format(watermarkDateLayout)
	}
	if !w.LastSentEnd.IsZero() {
		sent = w.LastSentEnd.Format(watermarkTimeLayout)
	}

	content := fmt.Sprintf("%s\n%s\n", scanned, sent)
	if err := os.WriteFile(w.path, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, "writing watermark file %s", w.path)
	}
	return nil
}

// Advance moves the sent boundary forward. Earlier times are ignored.
func (w *Watermark) Advance(sentEnd time.Time) {
	if sentEnd.After(w.LastSentEnd) {
		w.LastSentEnd = sentEnd
	}
}
