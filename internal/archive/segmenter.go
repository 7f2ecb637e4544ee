package archive

import (
	"time"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

// Center type values for SplitByTime. Disabled falls back to plain
// length-based splitting.
const (
	CenterDisabled = -1
	CenterHalfHour = 0
	CenterHour     = 1
)

// GroupByGap splits records, which must be sorted ascending by start time,
// into maximal runs of adjacent files. A new group starts whenever the gap
// since the previous file's end exceeds maxGap, whenever a file's channel
// configuration differs from the file that opened the current group, or,
// with sameLocation set, whenever the site label changes between two
// consecutive files. A gap of exactly maxGap does not split.
func GroupByGap(records []lidar.FileRecord, maxGap time.Duration, sameLocation bool) [][]lidar.FileRecord {
	if len(records) < 1 {
		return nil
	}

	var groups [][]lidar.FileRecord
	group := []lidar.FileRecord{records[0]}

	// Channel compatibility is checked against the record that opened the
	// current group, not the immediately preceding one.
	opening := records[0]

	for i := 1; i < len(records); i++ {
		gap := records[i].Start.Sub(records[i-1].End) > maxGap
		incompatible := !records[i].Compatible(opening)
		location := sameLocation && records[i-1].Site != records[i].Site

		if gap || incompatible || location {
			groups = append(groups, group)
			group = nil
			opening = records[i]
		}

		group = append(group, records[i])
	}

	if len(group) > 0 {
		groups = append(groups, group)
	}

	return groups
}

// SplitByLength cuts one continuous group into segments no longer than
// maxLength. When the remaining tail, measured from the current file to the
// group's last end, would fall short of minLength, the tail is absorbed into
// the current segment instead of opening a new one.
func SplitByLength(records []lidar.FileRecord, maxLength, minLength time.Duration) [][]lidar.FileRecord {
	if len(records) < 1 {
		return nil
	}

	lastEnd := records[len(records)-1].End
	segmentStart := records[0].Start

	var segments [][]lidar.FileRecord
	segment := []lidar.FileRecord{records[0]}

	for i := 1; i < len(records); i++ {
		currentStart := records[i].Start

		if lastEnd.Sub(currentStart) < minLength {
			segment = append(segment, records[i:]...)
			segments = append(segments, segment)
			return segments
		}

		if currentStart.Sub(segmentStart) > maxLength {
			segments = append(segments, segment)
			segment = []lidar.FileRecord{records[i]}
			segmentStart = records[i].Start
			continue
		}

		segment = append(segment, records[i])
	}

	segments = append(segments, segment)
	return segments
}

// SplitByTime cuts one continuous group into segments aligned on clock
// boundaries: the top of the hour for CenterHour, the half-hour mark for
// CenterHalfHour. A countdown of hours, initialized from maxLength, is
// decremented each time a file (or the seam between two consecutive files)
// straddles the boundary; when it reaches zero the segment closes.
//
// The watermark suppresses groups that were already sent, and groups still
// shorter than maxLength+minLength are held back until more data
// accumulates. A group of a single file cannot form a measurement and is
// routed to the archive's test-file collection instead.
func (a *Archive) SplitByTime(records []lidar.FileRecord, minLength, maxLength time.Duration, centerType int, wm *Watermark) [][]lidar.FileRecord {
	if len(records) < 1 {
		return nil
	}
	if len(records) == 1 {
		a.testFiles = append(a.testFiles, records[0])
		return nil
	}

	if wm != nil {
		alreadySent, longEnough := a.setIsSendable(wm.LastSentEnd, minLength, maxLength)
		if alreadySent || !longEnough {
			return nil
		}
	}

	hours := int(maxLength / time.Hour)
	if hours < 1 {
		hours = 1
	}
	remaining := hours

	var segments [][]lidar.FileRecord
	segment := []lidar.FileRecord{records[0]}

	closeOnBoundary := func() {
		remaining--
		if remaining == 0 {
			segments = append(segments, segment)
			segment = nil
			remaining = hours
		}
	}

	if straddlesBoundary(records[0], centerType) {
		closeOnBoundary()
	}

	for i := 1; i < len(records); i++ {
		segment = append(segment, records[i])

		if straddlesBoundary(records[i], centerType) {
			closeOnBoundary()
			continue
		}
		if seamStraddlesBoundary(records[i-1], records[i], centerType) {
			closeOnBoundary()
		}
	}

	if len(segment) > 0 {
		segments = append(segments, segment)
	}

	return mergeShortEdges(segments, minLength)
}

// setIsSendable checks the whole scanned set against the recorded last-sent
// end time. The set start is taken from the first file past the leading dark
// recordings.
func (a *Archive) setIsSendable(lastSent time.Time, minLength, maxLength time.Duration) (alreadySent, longEnough bool) {
	darkCount := 0
	for _, r := range a.records {
		if r.IsDark() {
			darkCount++
		}
	}
	if darkCount >= len(a.records) {
		return false, false
	}

	currentStart := a.records[darkCount].Start
	currentEnd := a.records[len(a.records)-1].End

	if !lastSent.IsZero() && currentEnd.Equal(lastSent) {
		return true, false
	}

	return false, currentEnd.Sub(currentStart) >= maxLength+minLength
}

// straddlesBoundary reports whether a single file crosses the clock boundary
// selected by centerType. Crossing the top of the hour shows up as the end
// minute being numerically smaller than the start minute.
func straddlesBoundary(r lidar.FileRecord, centerType int) bool {
	switch centerType {
	case CenterHour:
		return r.End.Minute()-r.Start.Minute() < 0
	case CenterHalfHour:
		return r.Start.Minute() <= 30 && r.End.Minute() >= 30
	}
	return false
}

// seamStraddlesBoundary reports whether the boundary falls between the end
// of one file and the start of the next.
func seamStraddlesBoundary(prev, cur lidar.FileRecord, centerType int) bool {
	switch centerType {
	case CenterHour:
		return cur.Start.Minute()-prev.End.Minute() < 0
	case CenterHalfHour:
		return prev.End.Minute() < 30 && cur.Start.Minute() >= 30
	}
	return false
}

// mergeShortEdges folds an undersized first segment into its successor and
// an undersized last segment into its predecessor.
func mergeShortEdges(segments [][]lidar.FileRecord, minLength time.Duration) [][]lidar.FileRecord {
	if len(segments) == 0 {
		return segments
	}

	if len(segments) > 1 && segmentSpan(segments[0]) < minLength {
		merged := append(segments[0], segments[1]...)
		segments = append([][]lidar.FileRecord{merged}, segments[2:]...)
	}

	if len(segments) > 1 && segmentSpan(segments[len(segments)-1]) < minLength {
		last := len(segments) - 1
		segments[last-1] = append(segments[last-1], segments[last]...)
		segments = segments[:last]
	}

	return segments
}

func segmentSpan(segment []lidar.FileRecord) time.Duration {
	if len(segment) == 0 {
		return 0
	}
	return segment[len(segment)-1].End.Sub(segment[0].Start)
}
