package lidar

import (
	"fmt"
	"time"
)

// DarkSite is the site label licel systems write into the header of
// background recordings.
const DarkSite = "Dark"

// ChannelSignature describes a single lidar system channel as read from a
// raw data file header.
type ChannelSignature struct {
	Name       string
	Resolution float64
	Wavelength float64
	Laser      int
	ADCBits    int
	Analog     bool
	Active     bool
}

// Equal compares two channel signatures. Wavelength is deliberately left out
// of the comparison; matching follows the acquisition parameters only.
func (c ChannelSignature) Equal(other ChannelSignature) bool {
	return c.Name == other.Name &&
		c.Resolution == other.Resolution &&
		c.Laser == other.Laser &&
		c.ADCBits == other.ADCBits &&
		c.Analog == other.Analog &&
		c.Active == other.Active
}

// SameChannels reports whether two channel sets are equal as multisets:
// same cardinality, every signature paired with exactly one counterpart.
func SameChannels(a, b []ChannelSignature) bool {
	if len(a) != len(b) {
		return false
	}

	remaining := make([]ChannelSignature, len(b))
	copy(remaining, b)

	for _, ch := range a {
		found := false
		for i, other := range remaining {
			if ch.Equal(other) {
				remaining = append(remaining[:i], remaining[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return len(remaining) == 0
}

// FileRecord is one discovered raw data file with the metadata parsed from
// its header. Records are created once during discovery and never mutated.
type FileRecord struct {
	Path     string
	Start    time.Time
	End      time.Time
	Site     string
	Channels []ChannelSignature
}

// IsDark reports whether the file is a background recording.
func (r FileRecord) IsDark() bool {
	return r.Site == DarkSite
}

// Compatible reports whether two files were recorded with the same channel
// configuration.
func (r FileRecord) Compatible(other FileRecord) bool {
	return SameChannels(r.Channels, other.Channels)
}

// Measurement is one unit of work emitted by segmentation: a chronological
// run of data files, the matched dark files (possibly none), and a sequence
// number unique within the calendar day of the first data file.
type Measurement struct {
	DataFiles []FileRecord
	DarkFiles []FileRecord
	Number    int
}

// NumberAsString renders the sequence number the way measurement IDs embed
// it, zero-padded to four digits.
func (m Measurement) NumberAsString() string {
	return fmt.Sprintf("%04d", m.Number)
}

// Start returns the start time of the first data file.
func (m Measurement) Start() time.Time {
	if len(m.DataFiles) == 0 {
		return time.Time{}
	}
	return m.DataFiles[0].Start
}

// End returns the end time of the last data file.
func (m Measurement) End() time.Time {
	if len(m.DataFiles) == 0 {
		return time.Time{}
	}
	return m.DataFiles[len(m.DataFiles)-1].End
}

// HeaderInfo is the metadata a header reader extracts from a raw file.
type HeaderInfo struct {
	Start    time.Time
	End      time.Time
	Site     string
	Channels []ChannelSignature
}

// HeaderReader parses the header of a raw licel file. Binary parsing lives
// outside this module; implementations wrap whatever reader the deployment
// uses.
type HeaderReader interface {
	ReadHeader(path string) (HeaderInfo, error)
}
