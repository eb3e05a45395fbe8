package transport

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/hanwen/go-ttwatch/log"
)

type BLEOptions struct {
	ServiceUUID string
	WriteUUID   string
	NotifyUUID  string

	// MTU is the largest attribute write; longer writes are split.
	MTU int

	ScanTimeout time.Duration
}

// DefaultBLEOptions holds the GATT layout of the watch family.
var DefaultBLEOptions = BLEOptions{
	ServiceUUID: "170d0d30-4213-11e3-aa6e-0800200c9a66",
	WriteUUID:   "170d0d32-4213-11e3-aa6e-0800200c9a66",
	NotifyUUID:  "170d0d31-4213-11e3-aa6e-0800200c9a66",
	MTU:         20,
	ScanTimeout: 10 * time.Second,
}

// BLETransport writes requests to a GATT characteristic and collects
// responses from notifications on another.
type BLETransport struct {
	dev    bluetooth.Device
	write  bluetooth.DeviceCharacteristic
	notify bluetooth.DeviceCharacteristic
	mtu    int

	in   chan []byte
	done chan struct{}
	once sync.Once

	log *log.ChildLogger
}

// OpenBLE scans for the watch at info.BLE.Address and connects to it.
func OpenBLE(info DeviceInfo, opts BLEOptions, logger *log.ChildLogger) (*BLETransport, error) {
	if info.BLE == nil {
		return nil, fmt.Errorf("%s has no BLE address", info.ID())
	}
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %v", err)
	}

	var found *bluetooth.ScanResult
	err := scan(adapter, opts.ScanTimeout, func(r bluetooth.ScanResult) bool {
		if strings.EqualFold(r.Address.String(), info.BLE.Address) {
			found = &r
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%s not seen within %v", info.ID(), opts.ScanTimeout)
	}

	logger.Debugf("connecting to %s (%s, rssi %d)", found.Address, found.LocalName(), found.RSSI)
	dev, err := adapter.Connect(found.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %v", info.ID(), err)
	}

	b := &BLETransport{
		dev:  dev,
		mtu:  opts.MTU,
		in:   make(chan []byte, 64),
		done: make(chan struct{}),
		log:  logger,
	}
	if b.mtu <= 0 {
		b.mtu = DefaultBLEOptions.MTU
	}
	if err := b.discover(opts); err != nil {
		dev.Disconnect()
		return nil, err
	}
	if err := b.notify.EnableNotifications(b.onNotify); err != nil {
		dev.Disconnect()
		return nil, fmt.Errorf("enable notifications: %v", err)
	}
	return b, nil
}

func (b *BLETransport) discover(opts BLEOptions) error {
	svcUUID, err := bluetooth.ParseUUID(opts.ServiceUUID)
	if err != nil {
		return fmt.Errorf("service uuid: %v", err)
	}
	writeUUID, err := bluetooth.ParseUUID(opts.WriteUUID)
	if err != nil {
		return fmt.Errorf("write uuid: %v", err)
	}
	notifyUUID, err := bluetooth.ParseUUID(opts.NotifyUUID)
	if err != nil {
		return fmt.Errorf("notify uuid: %v", err)
	}

	srvs, err := b.dev.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil || len(srvs) == 0 {
		return fmt.Errorf("watch service %s not found: %v", opts.ServiceUUID, err)
	}
	chars, err := srvs[0].DiscoverCharacteristics([]bluetooth.UUID{writeUUID, notifyUUID})
	if err != nil {
		return fmt.Errorf("discover characteristics: %v", err)
	}

	var haveWrite, haveNotify bool
	for _, c := range chars {
		switch c.UUID() {
		case writeUUID:
			b.write, haveWrite = c, true
		case notifyUUID:
			b.notify, haveNotify = c, true
		}
	}
	if !haveWrite || !haveNotify {
		return fmt.Errorf("watch service lacks write/notify characteristics")
	}
	return nil
}

func (b *BLETransport) onNotify(buf []byte) {
	c := append([]byte{}, buf...)
	select {
	case b.in <- c:
	case <-b.done:
	}
}

// Write splits data into MTU sized attribute writes.
func (b *BLETransport) Write(data []byte) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	for len(data) > 0 {
		n := len(data)
		if n > b.mtu {
			n = b.mtu
		}
		if _, err := b.write.WriteWithoutResponse(data[:n]); err != nil {
			return fmt.Errorf("gatt write: %v", err)
		}
		data = data[n:]
	}
	return nil
}

// Read returns the next notification.
func (b *BLETransport) Read(timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c := <-b.in:
		return c, nil
	case <-b.done:
		return nil, ErrClosed
	case <-t.C:
		return nil, ErrTimeout
	}
}

func (b *BLETransport) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		err = b.dev.Disconnect()
	})
	return err
}

// scan runs a BLE scan until fn returns false or timeout elapses.
func scan(adapter *bluetooth.Adapter, timeout time.Duration, fn func(bluetooth.ScanResult) bool) error {
	var mu sync.Mutex
	stopped := false
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			stopped = true
			adapter.StopScan()
		}
	}
	timer := time.AfterFunc(timeout, stop)
	defer timer.Stop()

	err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if !fn(r) {
			stop()
		}
	})
	if err != nil {
		return fmt.Errorf("scan: %v", err)
	}
	return nil
}
