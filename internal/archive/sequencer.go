package archive

import (
	"log"
	"time"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

// SegmentOptions holds the segmentation parameters for one run.
type SegmentOptions struct {
	// MaxGap is the largest gap between two consecutive files that still
	// counts as one continuous recording.
	MaxGap time.Duration

	// MinLength and MaxLength bound the duration of an emitted measurement.
	MinLength time.Duration
	MaxLength time.Duration

	// CenterType selects the splitting mode: CenterDisabled, CenterHalfHour
	// or CenterHour.
	CenterType int
}

// ContinuousMeasurements turns the scanned records into the run's ordered
// list of measurements: files are grouped by gap, groups made up entirely of
// dark recordings are dropped, the rest are split by time or length, each
// segment gets its dark match attached, and sequence numbers are assigned
// per calendar day.
func (a *Archive) ContinuousMeasurements(opts SegmentOptions, wm *Watermark) []lidar.Measurement {
	groups := GroupByGap(a.records, opts.MaxGap, true)

	var measurements []lidar.Measurement
	number := 0
	var lastStart *time.Time

	for _, group := range groups {
		if allDark(group) {
			continue
		}

		var segments [][]lidar.FileRecord
		if opts.CenterType != CenterDisabled {
			segments = a.SplitByTime(group, opts.MinLength, opts.MaxLength, opts.CenterType, wm)
		} else {
			segments = SplitByLength(group, opts.MaxLength, opts.MinLength)
		}

		for _, segment := range segments {
			dark, err := a.MatchDark(segment, opts.MaxGap)
			if err != nil {
				log.Printf("Dark file search failed for segment starting %s: %v", segment[0].Start, err)
				dark = nil
			}

			start := segment[0].Start
			if lastStart == nil {
				number = 0
			} else if !sameDay(start, *lastStart) {
				number = 0
			} else {
				number++
			}
			lastStart = &start

			measurements = append(measurements, lidar.Measurement{
				DataFiles: segment,
				DarkFiles: dark,
				Number:    number,
			})
		}
	}

	return measurements
}

func allDark(group []lidar.FileRecord) bool {
	for _, r := range group {
		if !r.IsDark() {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
