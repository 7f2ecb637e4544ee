package lidar

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// TimestampFromFilename recovers the acquisition start time encoded in a raw
// licel file name. The format is positional: characters 2-3 hold the
// two-digit year (59-99 map to 19xx, everything else to 20xx), character 4
// the month with A/B/C standing in for 10/11/12, characters 5-6 the day,
// 7-8 the hour, 10-11 the minutes and the final character the tens of
// seconds. Anything that does not fit is not a raw licel file.
func TimestampFromFilename(name string) (time.Time, error) {
	if len(name) < 12 {
		return time.Time{}, errors.Errorf("filename %q too short for a licel timestamp", name)
	}

	year, err := strconv.Atoi(name[2:4])
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "filename %q: bad year", name)
	}
	if year >= 59 {
		year += 1900
	} else {
		year += 2000
	}

	var month int
	switch name[4] {
	case 'A':
		month = 10
	case 'B':
		month = 11
	case 'C':
		month = 12
	default:
		month, err = strconv.Atoi(name[4:5])
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "filename %q: bad month", name)
		}
	}
	if month < 1 || month > 12 {
		return time.Time{}, errors.Errorf("filename %q: month %d out of range", name, month)
	}

	day, err := strconv.Atoi(name[5:7])
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "filename %q: bad day", name)
	}
	if day < 1 || day > 31 {
		return time.Time{}, errors.Errorf("filename %q: day %d out of range", name, day)
	}

	hour, err := strconv.Atoi(name[7:9])
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "filename %q: bad hour", name)
	}
	if hour > 23 {
		return time.Time{}, errors.Errorf("filename %q: hour %d out of range", name, hour)
	}

	minute, err := strconv.Atoi(name[10:12])
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "filename %q: bad minute", name)
	}
	if minute > 59 {
		return time.Time{}, errors.Errorf("filename %q: minute %d out of range", name, minute)
	}

	// Last character encodes the tens of seconds.
	second, err := strconv.Atoi(name[len(name)-1:])
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "filename %q: bad seconds digit", name)
	}
	second *= 10
	if second > 59 {
		return time.Time{}, errors.Errorf("filename %q: seconds %d out of range", name, second)
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}
