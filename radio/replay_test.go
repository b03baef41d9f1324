package radio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReplay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bursts.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReplayParsing(t *testing.T) {
	path := writeReplay(t, `
# capture 2026-08-01, roof antenna
-61,54cd14
54cd15

-102 , 543d20
`)
	r, err := OpenReplay(path)
	require.NoError(t, err)

	require.Len(t, r.bursts, 3)
	assert.Equal(t, []byte{0x54, 0xCD, 0x14}, r.bursts[0])
	assert.EqualValues(t, -61, r.rssis[0])
	assert.EqualValues(t, replayDefaultRSSI, r.rssis[1])
	assert.EqualValues(t, -102, r.rssis[2])
}

func TestReplayRejectsBadLines(t *testing.T) {
	for _, content := range []string{"xyz\n", "-300,54cd\n", "-61,54c\n"} {
		_, err := OpenReplay(writeReplay(t, content))
		assert.Error(t, err, content)
	}
}

func TestReplayServesBursts(t *testing.T) {
	path := writeReplay(t, "-61,54cd1402\n-72,543d\n")
	r, err := OpenReplay(path)
	require.NoError(t, err)

	fired := 0
	r.AttachDataInterrupt(func() { fired++ })

	// The sync word ping-pongs on every restart.
	first := r.ArmedSyncWord()
	r.RestartRx()
	assert.NotEqual(t, first, r.ArmedSyncWord())
	assert.Equal(t, 1, fired)

	buf := make([]byte, 3)
	require.True(t, r.ReadInTask(buf))
	assert.Equal(t, []byte{0x54, 0xCD, 0x14}, buf)
	assert.EqualValues(t, -61, r.RSSI())

	require.True(t, r.ReadInTask(buf[:1]))
	assert.Equal(t, byte(0x02), buf[0])
	assert.EqualValues(t, -61, r.RSSI())

	// Burst consumed; reads fail until the radio is re-armed.
	assert.False(t, r.ReadInTask(buf[:1]))

	r.RestartRx()
	assert.Equal(t, 2, fired)

	// Over-reading the second burst fails like a FIFO timeout.
	assert.False(t, r.ReadInTask(buf))
	assert.True(t, r.Exhausted())

	// Nothing left: no further interrupts.
	r.RestartRx()
	assert.Equal(t, 2, fired)
}
