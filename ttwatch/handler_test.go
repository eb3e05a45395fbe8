package ttwatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanwen/go-ttwatch/transport"
)

// scriptTransport records writes and serves reads from a channel.
type scriptTransport struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	reads    chan []byte

	// onWrite, if set, runs after each successful write.
	onWrite func(b []byte)
}

func newScript() *scriptTransport {
	return &scriptTransport{reads: make(chan []byte, 16)}
}

func (s *scriptTransport) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, append([]byte{}, b...))
	if s.onWrite != nil {
		s.onWrite(b)
	}
	return nil
}

func (s *scriptTransport) Read(timeout time.Duration) ([]byte, error) {
	select {
	case b := <-s.reads:
		return b, nil
	case <-time.After(timeout):
		return nil, transport.ErrTimeout
	}
}

func (s *scriptTransport) Close() error { return nil }

func (s *scriptTransport) writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte{}, s.written...)
}

func (s *scriptTransport) respond(t *testing.T, counter uint8, p Payload) {
	s.reads <- rxPacket(t, counter, p).Bytes()
}

func TestExecute(t *testing.T) {
	s := newScript()
	h := NewHandler(s, time.Second, nil)
	s.respond(t, 0, &GetFileSizeRx{FileID: 0x00910003, Size: 4096})

	var rep GetFileSizeRx
	require.NoError(t, h.Execute(&GetFileSizeTx{FileID: 0x00910003}, &rep))
	assert.Equal(t, uint32(4096), rep.Size)
	assert.Equal(t, StateIdle, h.State())
	assert.Equal(t, OutcomeMatched, h.LastOutcome())

	w := s.writes()
	require.Len(t, w, 1)
	assert.NoError(t, diffIndex(w[0], parseHex("0906 0005 0091 0003")))
}

func TestExecuteChunked(t *testing.T) {
	s := newScript()
	h := NewHandler(s, time.Second, nil)
	raw := rxPacket(t, 1, &GetFirmwareVersionRx{Version: "1.8.42"}).Bytes()
	for _, b := range raw {
		s.reads <- []byte{b}
	}

	var rep GetFirmwareVersionRx
	require.NoError(t, h.Execute(&GetFirmwareVersionTx{}, &rep))
	assert.Equal(t, "1.8.42", rep.Version)
}

func TestExecutePadded(t *testing.T) {
	s := newScript()
	h := NewHandler(s, time.Second, nil)
	report := make([]byte, 64)
	copy(report, rxPacket(t, 1, &GetProductIDRx{ProductID: 0x7474}).Bytes())
	s.reads <- report

	var rep GetProductIDRx
	require.NoError(t, h.Execute(&GetProductIDTx{}, &rep))
	assert.Equal(t, uint32(0x7474), rep.ProductID)
}

func TestExecuteTimeout(t *testing.T) {
	s := newScript()
	timeout := 100 * time.Millisecond
	h := NewHandler(s, timeout, nil)

	start := time.Now()
	var rep GetProductIDRx
	err := h.Execute(&GetProductIDTx{}, &rep)
	elapsed := time.Since(start)

	var te *TimeoutError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.True(t, IsRecoverable(err))
	assert.GreaterOrEqual(t, int64(elapsed), int64(timeout))
	assert.Less(t, int64(elapsed), int64(timeout+500*time.Millisecond))
	assert.Equal(t, OutcomeTimedOut, h.LastOutcome())
	assert.Equal(t, StateIdle, h.State())

	// the connection is still usable
	s.onWrite = func(b []byte) {
		s.reads <- rxPacket(t, b[2], &GetProductIDRx{ProductID: 0x7480}).Bytes()
	}
	require.NoError(t, h.Execute(&GetProductIDTx{}, &rep))
	assert.Equal(t, uint32(0x7480), rep.ProductID)
}

func TestExecuteTruncated(t *testing.T) {
	s := newScript()
	h := NewHandler(s, 100*time.Millisecond, nil)
	raw := rxPacket(t, 1, &GetFileSizeRx{}).Bytes()
	s.reads <- raw[:10]

	var rep GetFileSizeRx
	err := h.Execute(&GetFileSizeTx{}, &rep)
	var me *MalformedPacketError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, OutcomeErrored, h.LastOutcome())
}

func TestExecuteUnexpected(t *testing.T) {
	s := newScript()
	h := NewHandler(s, time.Second, nil)
	s.respond(t, 1, &CloseFileRx{})

	var rep OpenFileReadRx
	err := h.Execute(&OpenFileReadTx{FileID: 1}, &rep)
	var ue *UnexpectedPacketError
	require.True(t, errors.As(err, &ue), "got %v", err)
	assert.True(t, IsRecoverable(err))
}

func TestExecuteWriteFailure(t *testing.T) {
	s := newScript()
	s.writeErr = errors.New("no such device")
	h := NewHandler(s, time.Second, nil)

	var rep DeleteFileRx
	err := h.Execute(&DeleteFileTx{FileID: 1}, &rep)
	var ce *ConnectionError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, StateIdle, h.State())
}

func TestExecuteWrongResponseType(t *testing.T) {
	h := NewHandler(newScript(), time.Second, nil)
	var rep CloseFileRx
	assert.Error(t, h.Execute(&OpenFileReadTx{}, &rep))
	assert.Error(t, h.Execute(&OpenFileReadRx{}, &rep))
}

func TestExecuteBusy(t *testing.T) {
	s := newScript()
	h := NewHandler(s, 2*time.Second, nil)

	done := make(chan error)
	go func() {
		var rep GetProductIDRx
		done <- h.Execute(&GetProductIDTx{}, &rep)
	}()
	require.Eventually(t, func() bool { return h.State() == StateAwaitingResponse },
		time.Second, time.Millisecond)

	var rep GetBLEVersionRx
	assert.Equal(t, ErrBusy, h.Execute(&GetBLEVersionTx{}, &rep))

	s.respond(t, 0, &GetProductIDRx{ProductID: 0x7474})
	require.NoError(t, <-done)
}

func TestStrictCounter(t *testing.T) {
	s := newScript()
	h := NewHandler(s, time.Second, nil)
	h.SetStrictCounter(true)
	s.respond(t, 9, &GetProductIDRx{})

	var rep GetProductIDRx
	err := h.Execute(&GetProductIDTx{}, &rep)
	var ue *UnexpectedPacketError
	require.True(t, errors.As(err, &ue), "got %v", err)
}

func TestSend(t *testing.T) {
	s := newScript()
	h := NewHandler(s, time.Second, nil)
	require.NoError(t, h.Send(&ResetDeviceTx{}))
	w := s.writes()
	require.Len(t, w, 1)
	assert.NoError(t, diffIndex(w[0], parseHex("0902 0010")))

	assert.Error(t, h.Send(&GetProductIDTx{}))
}

func TestCounterStartsAtZero(t *testing.T) {
	s := newScript()
	h := NewHandler(s, time.Second, nil)
	s.respond(t, 0, &GetProductIDRx{})
	s.respond(t, 1, &GetProductIDRx{})

	var rep GetProductIDRx
	require.NoError(t, h.Execute(&GetProductIDTx{}, &rep))
	require.NoError(t, h.Execute(&GetProductIDTx{}, &rep))
	w := s.writes()
	require.Len(t, w, 2)
	assert.Equal(t, byte(0), w[0][2])
	assert.Equal(t, byte(1), w[1][2])
}

// A reply queued after a timeout must not answer the next request.
func TestLateResponseDrained(t *testing.T) {
	s := newScript()
	h := NewHandler(s, 50*time.Millisecond, nil)

	var rep GetFileSizeRx
	err := h.Execute(&GetFileSizeTx{FileID: 0xA}, &rep)
	require.True(t, IsTimeout(err), "got %v", err)

	s.respond(t, 0, &GetFileSizeRx{FileID: 0xA, Size: 111})
	s.onWrite = func(b []byte) {
		s.reads <- rxPacket(t, b[2], &GetFileSizeRx{FileID: 0xB, Size: 222}).Bytes()
	}

	require.NoError(t, h.Execute(&GetFileSizeTx{FileID: 0xB}, &rep))
	assert.Equal(t, uint32(0xB), rep.FileID)
	assert.Equal(t, uint32(222), rep.Size)
}

// A late reply that shows up after the next request was written is
// told apart by its counter.
func TestLateResponseAfterSend(t *testing.T) {
	s := newScript()
	h := NewHandler(s, 50*time.Millisecond, nil)

	var rep GetFileSizeRx
	require.True(t, IsTimeout(h.Execute(&GetFileSizeTx{FileID: 0xA}, &rep)))

	s.onWrite = func(b []byte) {
		s.reads <- rxPacket(t, 0, &GetFileSizeRx{FileID: 0xA, Size: 111}).Bytes()
		s.reads <- rxPacket(t, b[2], &GetFileSizeRx{FileID: 0xB, Size: 222}).Bytes()
	}
	require.NoError(t, h.Execute(&GetFileSizeTx{FileID: 0xB}, &rep))
	assert.Equal(t, uint32(222), rep.Size)

	// back in sync: counters are no longer compared
	s.onWrite = nil
	s.respond(t, 77, &GetFileSizeRx{FileID: 0xC, Size: 333})
	require.NoError(t, h.Execute(&GetFileSizeTx{FileID: 0xC}, &rep))
	assert.Equal(t, uint32(333), rep.Size)
}
