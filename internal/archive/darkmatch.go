package archive

import (
	"time"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

// MatchDark finds the background recordings belonging to a data segment. It
// searches all dark files within one day of the segment start, keeps the
// ones recorded with the segment's channel configuration, and, when several
// candidate groups exist, picks the group closest in time to the segment.
// A segment without any usable dark files simply gets none.
func (a *Archive) MatchDark(segment []lidar.FileRecord, maxGap time.Duration) ([]lidar.FileRecord, error) {
	if len(segment) == 0 {
		return nil, nil
	}

	darks, err := a.FindDarkRecords(segment[0].Start)
	if err != nil {
		return nil, err
	}

	var matching []lidar.FileRecord
	for _, dark := range darks {
		if dark.Compatible(segment[0]) {
			matching = append(matching, dark)
		}
	}

	if len(matching) == 0 {
		return nil, nil
	}
	if len(matching) == 1 {
		return matching, nil
	}

	// All candidates carry the same site label, so location cannot split
	// the groups here.
	groups := GroupByGap(matching, maxGap, false)

	nearest := groups[0]
	smallest := darkDistance(groups[0], segment)

	for _, group := range groups[1:] {
		if d := darkDistance(group, segment); d < smallest {
			smallest = d
			nearest = group
		}
	}

	return nearest, nil
}

// darkDistance measures the time between a dark group and a data segment,
// taken from whichever group boundary is nearest. A group overlapping the
// segment is at distance zero.
func darkDistance(group, segment []lidar.FileRecord) time.Duration {
	groupStart := group[0].Start
	groupEnd := group[len(group)-1].End
	segmentStart := segment[0].Start
	segmentEnd := segment[len(segment)-1].End

	switch {
	case groupEnd.Before(segmentStart):
		return segmentStart.Sub(groupEnd)
	case groupStart.After(segmentEnd):
		return groupStart.Sub(segmentEnd)
	default:
		return 0
	}
}
