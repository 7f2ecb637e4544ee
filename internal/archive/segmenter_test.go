package archive

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaduCristea123/OBIWAN/internal/lidar"
)

var (
	day = time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)

	channelsA = []lidar.ChannelSignature{
		{Name: "BT0", Resolution: 7.5, Wavelength: 532, Laser: 1, ADCBits: 12, Analog: true, Active: true},
		{Name: "BC0", Resolution: 7.5, Wavelength: 532, Laser: 1, ADCBits: 0, Analog: false, Active: true},
	}
	channelsB = []lidar.ChannelSignature{
		{Name: "BT1", Resolution: 15, Wavelength: 355, Laser: 2, ADCBits: 16, Analog: true, Active: true},
	}
)

// rec builds a data file record spanning [startMin, endMin] minutes past
// midnight of the test day.
func rec(startMin, endMin int, site string, channels []lidar.ChannelSignature) lidar.FileRecord {
	return lidar.FileRecord{
		Path:     fmt.Sprintf("/data/f_%04d", startMin),
		Start:    day.Add(time.Duration(startMin) * time.Minute),
		End:      day.Add(time.Duration(endMin) * time.Minute),
		Site:     "Bucharest",
		Channels: channels,
	}
}

func recAt(site string, startMin, endMin int) lidar.FileRecord {
	r := rec(startMin, endMin, site, channelsA)
	r.Site = site
	return r
}

func flatten(groups [][]lidar.FileRecord) []lidar.FileRecord {
	var out []lidar.FileRecord
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func TestGroupByGapEmptyAndSingle(t *testing.T) {
	assert.Nil(t, GroupByGap(nil, 5*time.Minute, true))

	single := []lidar.FileRecord{rec(0, 14, "", channelsA)}
	groups := GroupByGap(single, 5*time.Minute, true)
	require.Len(t, groups, 1)
	assert.Equal(t, single, groups[0])
}

func TestGroupByGapSplitsOnGap(t *testing.T) {
	// 09:00-09:14 and 09:15-09:29 are 60s apart; the third file starts
	// 16 minutes after the second ends.
	records := []lidar.FileRecord{
		rec(540, 554, "", channelsA),
		rec(555, 569, "", channelsA),
		rec(585, 599, "", channelsA),
	}

	groups := GroupByGap(records[:2], 300*time.Second, true)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)

	groups = GroupByGap(records, 300*time.Second, true)
	require.Len(t, groups, 2)
	assert.Equal(t, records[:2], groups[0])
	assert.Equal(t, records[2:], groups[1])
}

func TestGroupByGapBoundaryIsExclusive(t *testing.T) {
	// Exactly maxGap between end and next start must not split.
	records := []lidar.FileRecord{
		rec(0, 10, "", channelsA),
		rec(15, 25, "", channelsA),
	}

	groups := GroupByGap(records, 5*time.Minute, true)
	assert.Len(t, groups, 1)

	groups = GroupByGap(records, 5*time.Minute-time.Second, true)
	assert.Len(t, groups, 2)
}

func TestGroupByGapSplitsOnChannels(t *testing.T) {
	records := []lidar.FileRecord{
		rec(0, 10, "", channelsA),
		rec(10, 20, "", channelsB),
		rec(20, 30, "", channelsB),
	}

	groups := GroupByGap(records, time.Hour, false)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 1)
	assert.Len(t, groups[1], 2)
}

func TestGroupByGapChecksChannelsAgainstGroupOpener(t *testing.T) {
	mixed := append(append([]lidar.ChannelSignature{}, channelsA...), channelsB...)

	// The third file differs from the file that opened the group, so a
	// boundary forms there even though there is no time gap at all.
	records := []lidar.FileRecord{
		rec(0, 10, "", channelsA),
		rec(10, 20, "", channelsA),
		rec(20, 30, "", mixed),
		rec(30, 40, "", mixed),
	}

	groups := GroupByGap(records, time.Hour, false)
	require.Len(t, groups, 2)
	assert.Equal(t, records[:2], groups[0])
	assert.Equal(t, records[2:], groups[1])
}

func TestGroupByGapLocation(t *testing.T) {
	records := []lidar.FileRecord{
		recAt("Bucharest", 0, 10),
		recAt("Bucharest", 10, 20),
		recAt("Magurele", 20, 30),
	}

	groups := GroupByGap(records, time.Hour, true)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)

	groups = GroupByGap(records, time.Hour, false)
	assert.Len(t, groups, 1)
}

func TestGroupByGapPreservesAllRecords(t *testing.T) {
	var records []lidar.FileRecord
	for i := 0; i < 40; i++ {
		channels := channelsA
		if i%7 == 0 {
			channels = channelsB
		}
		records = append(records, rec(i*20, i*20+10, "", channels))
	}

	groups := GroupByGap(records, 5*time.Minute, true)
	assert.Equal(t, records, flatten(groups), "no record may be gained or lost")
}

func TestSplitByLength(t *testing.T) {
	// Ten files of 14 minutes each, back to back: 0-14, 15-29, ...
	var records []lidar.FileRecord
	for i := 0; i < 10; i++ {
		records = append(records, rec(i*15, i*15+14, "", channelsA))
	}

	segments := SplitByLength(records, time.Hour, 30*time.Minute)
	require.NotEmpty(t, segments)

	assert.Equal(t, records, flatten(segments))

	// No segment but the last may exceed maxLength.
	for i, segment := range segments[:len(segments)-1] {
		span := segmentSpan(segment)
		assert.LessOrEqualf(t, span, time.Hour+14*time.Minute, "segment %d too long", i)
	}

	// The terminal segment absorbs the short tail instead of emitting a
	// fragment below minLength.
	last := segments[len(segments)-1]
	assert.GreaterOrEqual(t, segmentSpan(last), 30*time.Minute)
}

func TestSplitByLengthShortInput(t *testing.T) {
	assert.Nil(t, SplitByLength(nil, time.Hour, time.Minute))

	records := []lidar.FileRecord{rec(0, 14, "", channelsA)}
	segments := SplitByLength(records, time.Hour, time.Minute)
	require.Len(t, segments, 1)
	assert.Equal(t, records, segments[0])
}

func TestSplitByLengthTailAbsorption(t *testing.T) {
	// 0-59 and 60-74: starting a second segment at minute 60 would leave a
	// 15 minute tail, below the 30 minute minimum, so it gets absorbed.
	records := []lidar.FileRecord{
		rec(0, 59, "", channelsA),
		rec(60, 74, "", channelsA),
	}

	segments := SplitByLength(records, 30*time.Minute, 30*time.Minute)
	require.Len(t, segments, 1)
	assert.Len(t, segments[0], 2)
}

func newTestArchive(t *testing.T, records []lidar.FileRecord) *Archive {
	t.Helper()
	a, err := New(t.TempDir(), headerMap{})
	require.NoError(t, err)
	a.records = records
	return a
}

func TestSplitByTimeHourCentered(t *testing.T) {
	// Four back-to-back files straddling the tops of consecutive hours.
	// maxLength of two hours closes a segment every second hour boundary.
	records := []lidar.FileRecord{
		rec(30, 89, "", channelsA),   // crosses 01:00
		rec(90, 149, "", channelsA),  // crosses 02:00
		rec(150, 209, "", channelsA), // crosses 03:00
		rec(210, 269, "", channelsA), // crosses 04:00
	}

	a := newTestArchive(t, records)
	segments := a.SplitByTime(records, 0, 2*time.Hour, CenterHour, nil)

	require.Len(t, segments, 2)
	assert.Equal(t, records[:2], segments[0])
	assert.Equal(t, records[2:], segments[1])
}

func TestSplitByTimeHalfHourCentered(t *testing.T) {
	records := []lidar.FileRecord{
		rec(15, 44, "", channelsA),  // crosses 00:30
		rec(45, 74, "", channelsA),  // crosses 01:00, not a half-hour mark here
		rec(75, 104, "", channelsA), // crosses 01:30
		rec(105, 134, "", channelsA),
	}

	a := newTestArchive(t, records)
	segments := a.SplitByTime(records, 0, time.Hour, CenterHalfHour, nil)

	require.NotEmpty(t, segments)
	assert.Equal(t, records, flatten(segments))
	assert.Equal(t, records[:1], segments[0], "segment closes on the first half-hour crossing")
}

func TestSplitByTimeMergesShortFirstSegment(t *testing.T) {
	// The first segment closes after a few minutes; with minLength at half
	// an hour it must be folded into the following segment.
	records := []lidar.FileRecord{
		rec(55, 64, "", channelsA), // crosses 01:00 almost immediately
		rec(65, 114, "", channelsA),
		rec(115, 174, "", channelsA), // crosses 02:00
	}

	a := newTestArchive(t, records)
	segments := a.SplitByTime(records, 30*time.Minute, time.Hour, CenterHour, nil)

	require.Len(t, segments, 1)
	assert.Equal(t, records, segments[0])
}

func TestSplitByTimeSingleRecordGoesToTestFiles(t *testing.T) {
	records := []lidar.FileRecord{rec(0, 14, "", channelsA)}

	a := newTestArchive(t, records)
	segments := a.SplitByTime(records, time.Minute, time.Hour, CenterHour, nil)

	assert.Nil(t, segments)
	assert.Equal(t, records, a.TestFiles())
}

func TestSplitByTimeWatermarkSuppression(t *testing.T) {
	records := []lidar.FileRecord{
		rec(30, 89, "", channelsA),
		rec(90, 149, "", channelsA),
		rec(150, 209, "", channelsA),
	}

	a := newTestArchive(t, records)

	// End time already recorded as sent: nothing is emitted.
	sent := &Watermark{LastSentEnd: records[2].End}
	assert.Nil(t, a.SplitByTime(records, 0, time.Hour, CenterHour, sent))

	// Fresh end time and a long enough span: segments come out.
	fresh := &Watermark{LastSentEnd: records[0].End}
	assert.NotEmpty(t, a.SplitByTime(records, 0, time.Hour, CenterHour, fresh))
}

func TestSplitByTimeHoldsBackShortAccumulatingSet(t *testing.T) {
	// Total span is 45 minutes, below maxLength+minLength: the set is still
	// accumulating and must not be emitted yet.
	records := []lidar.FileRecord{
		rec(0, 20, "", channelsA),
		rec(21, 45, "", channelsA),
	}

	a := newTestArchive(t, records)
	wm := &Watermark{}
	assert.Nil(t, a.SplitByTime(records, 30*time.Minute, time.Hour, CenterHour, wm))
}
