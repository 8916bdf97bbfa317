package device

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logfs/logfs/pkg/types"
)

func TestFileReadWriteRoundTrip(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "logfs-device-*.img")
	require.NoError(t, err)
	require.NoError(t, tmp.Truncate(types.BlockSize*4))
	require.NoError(t, tmp.Close())

	dev, err := Open(tmp.Name())
	require.NoError(t, err)
	defer dev.Close()

	var buf [types.BlockSize]byte
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	require.NoError(t, dev.WriteBlock(2, buf[:]))

	var out [types.BlockSize]byte
	require.NoError(t, dev.ReadBlock(2, out[:]))
	assert.Equal(t, buf, out)

	var zero [types.BlockSize]byte
	require.NoError(t, dev.ReadBlock(0, out[:]))
	assert.Equal(t, zero, out)
}

func TestFileRejectsWrongBufferSize(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "logfs-device-*.img")
	require.NoError(t, err)
	require.NoError(t, tmp.Truncate(types.BlockSize))
	require.NoError(t, tmp.Close())

	dev, err := Open(tmp.Name())
	require.NoError(t, err)
	defer dev.Close()

	assert.Error(t, dev.WriteBlock(0, make([]byte, 10)))
	assert.Error(t, dev.ReadBlock(0, make([]byte, 10)))
}

func TestFileCloseIsIdempotent(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "logfs-device-*.img")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	dev, err := Open(tmp.Name())
	require.NoError(t, err)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())
}

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	dev := NewMemory(8)

	var buf [types.BlockSize]byte
	buf[0] = 0xAB
	require.NoError(t, dev.WriteBlock(3, buf[:]))

	var out [types.BlockSize]byte
	require.NoError(t, dev.ReadBlock(3, out[:]))
	assert.Equal(t, buf, out)

	assert.Error(t, dev.ReadBlock(100, out[:]))
	assert.Error(t, dev.WriteBlock(100, out[:]))

	require.NoError(t, dev.Close())
	assert.Error(t, dev.ReadBlock(0, out[:]))
}
