package lidar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHeader = ` b2306150.070000
 Bucharest 15/06/2023 09:00:00 15/06/2023 09:01:00 0093 026.0 044.3 00.0
 0001111 0010 0000000 0055 2
 1 0 1 16380 1 0800 3.75 00355.o 0 0 00 000 16 012240 3.1746E-4 BT0
 1 1 1 16380 1 0000 3.75 00355.p 0 0 00 000 0 012240 0 BC0
`

func writeRawFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "b2306150.070000")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLicelHeaderReader(t *testing.T) {
	info, err := LicelHeaderReader{}.ReadHeader(writeRawFile(t, sampleHeader))
	require.NoError(t, err)

	assert.Equal(t, "Bucharest", info.Site)
	assert.Equal(t, time.Date(2023, 6, 15, 9, 0, 0, 0, time.UTC), info.Start)
	assert.Equal(t, time.Date(2023, 6, 15, 9, 1, 0, 0, time.UTC), info.End)

	require.Len(t, info.Channels, 2)

	analog := info.Channels[0]
	assert.Equal(t, "BT0", analog.Name)
	assert.True(t, analog.Analog)
	assert.True(t, analog.Active)
	assert.Equal(t, 3.75, analog.Resolution)
	assert.Equal(t, 355.0, analog.Wavelength)
	assert.Equal(t, 16, analog.ADCBits)
	assert.Equal(t, 1, analog.Laser)

	photon := info.Channels[1]
	assert.Equal(t, "BC0", photon.Name)
	assert.False(t, photon.Analog)
}

func TestLicelHeaderReaderSiteWithSpaces(t *testing.T) {
	header := ` b2306150.070000
 Cluj Napoca 15/06/2023 21:30:00 15/06/2023 21:31:00 0405 023.6 046.8 00.0
 0001111 0010 0000000 0055 1
 1 0 1 16380 1 0800 3.75 00532.o 0 0 00 000 16 012240 3.1746E-4 BT1
`

	info, err := LicelHeaderReader{}.ReadHeader(writeRawFile(t, header))
	require.NoError(t, err)
	assert.Equal(t, "Cluj Napoca", info.Site)
	require.Len(t, info.Channels, 1)
}

func TestLicelHeaderReaderRejectsTruncatedFile(t *testing.T) {
	header := ` b2306150.070000
 Bucharest 15/06/2023 09:00:00 15/06/2023 09:01:00 0093 026.0 044.3 00.0
 0001111 0010 0000000 0055 3
 1 0 1 16380 1 0800 3.75 00355.o 0 0 00 000 16 012240 3.1746E-4 BT0
`

	_, err := LicelHeaderReader{}.ReadHeader(writeRawFile(t, header))
	require.Error(t, err)
}

func TestLicelHeaderReaderRejectsGarbage(t *testing.T) {
	_, err := LicelHeaderReader{}.ReadHeader(writeRawFile(t, "not a licel file\n"))
	require.Error(t, err)
}
