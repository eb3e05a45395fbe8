package ttwatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/hanwen/go-ttwatch/log"
	"github.com/hanwen/go-ttwatch/transport"
)

// Chunk limits of the watch firmware. A read response carries 8
// bytes of header fields, a write request 4.
const (
	DefaultReadChunk  = 242
	DefaultWriteChunk = 246
	MaxReadChunk      = MaxPayloadSize - 8
	MaxWriteChunk     = MaxPayloadSize - 4
)

type options struct {
	timeout       time.Duration
	retries       int
	strictCounter bool
	readChunk     int
	writeChunk    int
	progress      ProgressFunc
	logs          *log.Children
	usbReportSize int
	ble           transport.BLEOptions
}

func defaultOptions() options {
	return options{
		timeout:    DefaultTimeout,
		retries:    1,
		readChunk:  DefaultReadChunk,
		writeChunk: DefaultWriteChunk,
		ble:        transport.DefaultBLEOptions,
	}
}

// Option tunes a connection.
type Option func(*options)

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetries sets how often idempotent queries are repeated after a
// timeout.
func WithRetries(n int) Option {
	return func(o *options) { o.retries = n }
}

func WithStrictCounter(on bool) Option {
	return func(o *options) { o.strictCounter = on }
}

// WithChunkSizes sets the transfer sizes of file reads and writes,
// clamped to what a packet can carry.
func WithChunkSizes(read, write int) Option {
	return func(o *options) {
		if read > 0 && read <= MaxReadChunk {
			o.readChunk = read
		}
		if write > 0 && write <= MaxWriteChunk {
			o.writeChunk = write
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

func WithLogger(logs *log.Children) Option {
	return func(o *options) { o.logs = logs }
}

func WithUSBReportSize(n int) Option {
	return func(o *options) { o.usbReportSize = n }
}

func WithBLE(b transport.BLEOptions) Option {
	return func(o *options) { o.ble = b }
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logs == nil {
		o.logs = log.Quiet()
	}
	if o.retries < 0 {
		o.retries = 0
	}
	return o
}

type listState int

const (
	listNone listState = iota
	listActive
	listExhausted
)

// Conn is an open connection to one watch. It owns the transport and
// the packet handler; Close tears both down. Methods may be called
// from several goroutines; they are serialised.
type Conn struct {
	info transport.DeviceInfo
	t    transport.Transport
	h    *Handler
	opts options

	// mu serialises command-layer operations, so chunked transfers
	// and listings are never interleaved.
	mu      sync.Mutex
	listing listState
	closed  bool
}

// NewConn wraps an already opened transport.
func NewConn(info transport.DeviceInfo, t transport.Transport, opts ...Option) *Conn {
	o := buildOptions(opts)
	h := NewHandler(t, o.timeout, o.logs)
	h.SetStrictCounter(o.strictCounter)
	return &Conn{
		info: info,
		t:    t,
		h:    h,
		opts: o,
	}
}

func (c *Conn) Info() transport.DeviceInfo {
	return c.info
}

func (c *Conn) Handler() *Handler {
	return c.h
}

// Close closes the transport. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.opts.logs.Proto.Debugf("closing %s", c.info.ID())
	return c.t.Close()
}

func (c *Conn) execute(req, rep Payload) error {
	if c.closed {
		return &ConnectionError{Op: "execute", Err: transport.ErrClosed}
	}
	return c.h.Execute(req, rep)
}

// query executes an idempotent request, repeating it after a
// timeout up to the configured number of retries.
func (c *Conn) query(req, rep Payload) error {
	var err error
	for i := 0; i <= c.opts.retries; i++ {
		err = c.execute(req, rep)
		if !IsTimeout(err) {
			return err
		}
		if i < c.opts.retries {
			c.opts.logs.Proto.Infof("%v, retrying (%d/%d)", err, i+1, c.opts.retries)
		}
	}
	return err
}

// Opener opens the transport for a device.
type Opener func(info transport.DeviceInfo) (transport.Transport, error)

// Factory opens connections, choosing the transport from
// DeviceInfo.Transport.
type Factory struct {
	openers map[transport.Type]Opener
	opts    []Option
}

// NewFactory returns a factory with the USB and BLE transports
// registered. opts apply to every connection it opens.
func NewFactory(opts ...Option) *Factory {
	o := buildOptions(opts)
	f := &Factory{
		openers: map[transport.Type]Opener{},
		opts:    opts,
	}
	f.Register(transport.USB, func(info transport.DeviceInfo) (transport.Transport, error) {
		return transport.OpenUSB(info, o.usbReportSize, o.logs.USB)
	})
	f.Register(transport.BLE, func(info transport.DeviceInfo) (transport.Transport, error) {
		return transport.OpenBLE(info, o.ble, o.logs.BLE)
	})
	return f
}

// Register replaces the opener for a transport type.
func (f *Factory) Register(t transport.Type, op Opener) {
	f.openers[t] = op
}

// Open connects to the device. Failures are ConnectionErrors.
func (f *Factory) Open(info transport.DeviceInfo) (*Conn, error) {
	op, ok := f.openers[info.Transport]
	if !ok {
		return nil, &ConnectionError{Op: "open " + info.ID(),
			Err: fmt.Errorf("no transport for %s", info.Transport)}
	}
	t, err := op(info)
	if err != nil {
		return nil, &ConnectionError{Op: "open " + info.ID(), Err: err}
	}
	return NewConn(info, t, f.opts...), nil
}
