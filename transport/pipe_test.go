package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	buf := []byte{1, 2, 3}
	require.NoError(t, a.Write(buf))
	buf[0] = 9

	got, err := b.Read(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, b.Write([]byte{4}))
	got, err = a.Read(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got)
}

func TestPipeTimeout(t *testing.T) {
	a, _ := Pipe()
	defer a.Close()

	start := time.Now()
	_, err := a.Read(20 * time.Millisecond)
	assert.Equal(t, ErrTimeout, err)
	assert.GreaterOrEqual(t, int64(time.Since(start)), int64(20*time.Millisecond))
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := a.Read(time.Second)
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, a.Write([]byte{1}))
}
