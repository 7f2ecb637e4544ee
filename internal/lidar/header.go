package lidar

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const headerTimeLayout = "02/01/2006 15:04:05"

// LicelHeaderReader reads the textual header at the top of a licel data
// file. Only the header is touched; the binary profile data that follows
// is never read.
type LicelHeaderReader struct{}

func (LicelHeaderReader) ReadHeader(path string) (HeaderInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return HeaderInfo{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	// First header line repeats the file name.
	if _, err := readHeaderLine(r); err != nil {
		return HeaderInfo{}, errors.Wrapf(err, "%s: missing header", path)
	}

	info, err := parseLocationLine(r)
	if err != nil {
		return HeaderInfo{}, errors.Wrapf(err, "%s: bad location line", path)
	}

	datasets, err := parseLaserLine(r)
	if err != nil {
		return HeaderInfo{}, errors.Wrapf(err, "%s: bad laser line", path)
	}

	for i := 0; i < datasets; i++ {
		ch, err := parseChannelLine(r)
		if err != nil {
			return HeaderInfo{}, errors.Wrapf(err, "%s: bad channel line %d", path, i+1)
		}
		info.Channels = append(info.Channels, ch)
	}

	return info, nil
}

func readHeaderLine(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	return strings.Fields(line), nil
}

// parseLocationLine handles the second header line:
//
//	Site StartDate StartTime EndDate EndTime Altitude Longitude Latitude Zenith
func parseLocationLine(r *bufio.Reader) (HeaderInfo, error) {
	fields, err := readHeaderLine(r)
	if err != nil {
		return HeaderInfo{}, err
	}
	if len(fields) < 5 {
		return HeaderInfo{}, errors.Errorf("expected at least 5 fields, got %d", len(fields))
	}

	// The site name may itself contain spaces; the eight trailing
	// fields anchor the split.
	var site string
	var tail []string
	if len(fields) >= 9 {
		site = strings.Join(fields[:len(fields)-8], " ")
		tail = fields[len(fields)-8:]
	} else {
		site = fields[0]
		tail = fields[1:]
	}

	start, err := time.ParseInLocation(headerTimeLayout, tail[0]+" "+tail[1], time.UTC)
	if err != nil {
		return HeaderInfo{}, errors.Wrap(err, "start time")
	}
	end, err := time.ParseInLocation(headerTimeLayout, tail[2]+" "+tail[3], time.UTC)
	if err != nil {
		return HeaderInfo{}, errors.Wrap(err, "end time")
	}

	return HeaderInfo{Site: site, Start: start, End: end}, nil
}

// parseLaserLine handles the third header line and returns the number of
// channel lines that follow:
//
//	LS1 Rate1 LS2 Rate2 DataSets
func parseLaserLine(r *bufio.Reader) (int, error) {
	fields, err := readHeaderLine(r)
	if err != nil {
		return 0, err
	}
	if len(fields) < 5 {
		return 0, errors.Errorf("expected at least 5 fields, got %d", len(fields))
	}

	datasets, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0, errors.Wrap(err, "dataset count")
	}
	if datasets < 1 {
		return 0, errors.Errorf("no datasets in header")
	}
	return datasets, nil
}

// parseChannelLine handles one dataset descriptor line:
//
//	active analog laser ndata 1 hv binwidth wavelength.pol p0 p1 p2 p3 adcbits shots discr id
func parseChannelLine(r *bufio.Reader) (ChannelSignature, error) {
	fields, err := readHeaderLine(r)
	if err != nil {
		return ChannelSignature{}, err
	}
	if len(fields) < 16 {
		return ChannelSignature{}, errors.Errorf("expected 16 fields, got %d", len(fields))
	}

	laser, err := strconv.Atoi(fields[2])
	if err != nil {
		return ChannelSignature{}, errors.Wrap(err, "laser")
	}
	resolution, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return ChannelSignature{}, errors.Wrap(err, "bin width")
	}
	wavelength, err := strconv.ParseFloat(strings.SplitN(fields[7], ".", 2)[0], 64)
	if err != nil {
		return ChannelSignature{}, errors.Wrap(err, "wavelength")
	}
	adcBits, err := strconv.Atoi(fields[12])
	if err != nil {
		return ChannelSignature{}, errors.Wrap(err, "adc bits")
	}

	return ChannelSignature{
		Name:       fields[15],
		Resolution: resolution,
		Wavelength: wavelength,
		Laser:      laser,
		ADCBits:    adcBits,
		Analog:     fields[1] == "0",
		Active:     fields[0] == "1",
	}, nil
}
