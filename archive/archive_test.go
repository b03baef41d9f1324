package archive

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.db")

	a, err := Open(path, testLogger())
	require.NoError(t, err)
	defer a.Close()

	frame := wmbus.NewFrame([]byte{0x2F, 0x44, 0x01, 0x02, 0x03, 0x04}, wmbus.ModeT1, wmbus.FormatA, -82)
	a.HandleFrame(frame)
	require.Equal(t, 1, frame.HandledCount())

	n, err := a.Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	var row FrameRow
	require.NoError(t, a.db.First(&row).Error)
	require.Equal(t, "T1", row.Mode)
	require.Equal(t, "A", row.Format)
	require.EqualValues(t, -82, row.RSSI)
	require.Equal(t, 6, row.Length)
	require.Equal(t, "2f4401020304", row.Payload)
}

func TestArchiveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.db")

	a, err := Open(path, testLogger())
	require.NoError(t, err)
	a.HandleFrame(wmbus.NewFrame([]byte{0x01, 0x02}, wmbus.ModeC1, wmbus.FormatB, -60))
	require.NoError(t, a.Close())

	a, err = Open(path, testLogger())
	require.NoError(t, err)
	defer a.Close()

	n, err := a.Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
