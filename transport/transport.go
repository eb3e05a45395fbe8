// Package transport provides the byte channels a watch is reached
// through: the HID interrupt endpoints of its USB interface, or the
// GATT service it exposes over Bluetooth Low Energy.
package transport

import (
	"errors"
	"fmt"
	"time"
)

// Transport is an ordered, duplicate-free duplex byte channel. Reads
// may return any chunking of the byte stream.
type Transport interface {
	Write(data []byte) error

	// Read returns the next chunk of bytes, or ErrTimeout if none
	// arrived within timeout.
	Read(timeout time.Duration) ([]byte, error)

	Close() error
}

var (
	ErrTimeout = errors.New("transport: read timed out")
	ErrClosed  = errors.New("transport: closed")
)

// Type selects the physical link.
type Type int

const (
	USB Type = iota
	BLE
)

func (t Type) String() string {
	switch t {
	case USB:
		return "usb"
	case BLE:
		return "ble"
	}
	return fmt.Sprintf("transport(%d)", int(t))
}

type USBDetails struct {
	Bus     int
	Address int
}

type BLEDetails struct {
	Address string
	Name    string
	RSSI    int16
}

// DeviceInfo is the identity of a discovered watch. It is not
// modified after discovery.
type DeviceInfo struct {
	Transport    Type
	VendorID     uint16
	ProductID    uint16
	Serial       string
	Manufacturer string
	Product      string

	USB *USBDetails
	BLE *BLEDetails
}

// ID is a stable textual address, eg. "usb:001:007" or
// "ble:E4:04:39:11:22:33".
func (d DeviceInfo) ID() string {
	switch {
	case d.Transport == USB && d.USB != nil:
		return fmt.Sprintf("usb:%03d:%03d", d.USB.Bus, d.USB.Address)
	case d.Transport == BLE && d.BLE != nil:
		return "ble:" + d.BLE.Address
	}
	return fmt.Sprintf("%s:%04x:%04x", d.Transport, d.VendorID, d.ProductID)
}

func (d DeviceInfo) Model() string {
	return ModelName(d.ProductID)
}

func (d DeviceInfo) String() string {
	s := fmt.Sprintf("%s %s", d.ID(), d.Model())
	if d.Serial != "" {
		s += " serial " + d.Serial
	}
	return s
}
