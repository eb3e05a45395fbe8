package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/hanwen/go-ttwatch/log"
)

// writeTimeout bounds a single interrupt OUT transfer.
const writeTimeout = 2 * time.Second

// USBTransport talks to the HID interface of a watch through its
// interrupt endpoints, via gousb.
type USBTransport struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	cfg   *gousb.Config
	iface *gousb.Interface

	sendEP      *gousb.OutEndpoint
	fetchEP     *gousb.InEndpoint
	sendEPDesc  gousb.EndpointDesc
	fetchEPDesc gousb.EndpointDesc

	// reportSize is the size of a HID output report. Writes are
	// split and zero padded to it.
	reportSize int

	log *log.ChildLogger
}

func matchUSB(info DeviceInfo, desc *gousb.DeviceDesc) bool {
	if info.USB != nil {
		return desc.Bus == info.USB.Bus && desc.Address == info.USB.Address
	}
	return uint16(desc.Vendor) == info.VendorID && uint16(desc.Product) == info.ProductID
}

// OpenUSB opens the watch described by info. reportSize 0 uses the
// endpoint packet size.
func OpenUSB(info DeviceInfo, reportSize int, logger *log.ChildLogger) (*USBTransport, error) {
	ctx := gousb.NewContext()
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return matchUSB(info, desc)
	})
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("open %s: %v", info.ID(), err)
	}

	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && serialMatches(d, info.Serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("no USB device matches %s", info.ID())
	}

	u := &USBTransport{
		ctx:        ctx,
		dev:        dev,
		reportSize: reportSize,
		log:        logger,
	}
	if err := u.open(); err != nil {
		u.Close()
		return nil, err
	}
	return u, nil
}

func serialMatches(d *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	s, err := d.SerialNumber()
	return err == nil && s == serial
}

func (u *USBTransport) open() error {
	if err := u.dev.SetAutoDetach(true); err != nil {
		u.log.Warningf("auto detach: %v", err)
	}

	num, err := u.dev.ActiveConfigNum()
	if err != nil {
		num = 1
	}
	u.cfg, err = u.dev.Config(num)
	if err != nil {
		return fmt.Errorf("failed to open configuration %d: %v", num, err)
	}

	u.iface, err = u.cfg.Interface(0, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface: %v", err)
	}
	if u.iface.Setting.Class != gousb.ClassHID {
		u.log.Warningf("interface 0 has class %s, want HID", u.iface.Setting.Class)
	}

	var haveIn, haveOut bool
	for _, ep := range u.iface.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeInterrupt {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionIn {
			u.fetchEPDesc, haveIn = ep, true
		} else {
			u.sendEPDesc, haveOut = ep, true
		}
	}
	if !haveIn || !haveOut {
		return fmt.Errorf("interface has no interrupt IN/OUT endpoint pair")
	}

	u.fetchEP, err = u.iface.InEndpoint(u.fetchEPDesc.Number)
	if err != nil {
		return fmt.Errorf("failed to open fetch EP: %v", err)
	}
	u.sendEP, err = u.iface.OutEndpoint(u.sendEPDesc.Number)
	if err != nil {
		return fmt.Errorf("failed to open send EP: %v", err)
	}
	if u.reportSize <= 0 {
		u.reportSize = u.sendEPDesc.MaxPacketSize
	}

	u.log.Debugf("opened %s: in %s out %s report %d", u.dev, u.fetchEPDesc, u.sendEPDesc, u.reportSize)
	return nil
}

// Write sends data as a sequence of zero padded output reports.
func (u *USBTransport) Write(data []byte) error {
	if u.sendEP == nil {
		return ErrClosed
	}
	report := make([]byte, u.reportSize)
	for len(data) > 0 {
		n := copy(report, data)
		for i := n; i < len(report); i++ {
			report[i] = 0
		}
		data = data[n:]

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		_, err := u.sendEP.WriteContext(ctx, report)
		cancel()
		if err != nil {
			return fmt.Errorf("interrupt out: %v", err)
		}
	}
	return nil
}

// Read returns one input report, including its padding.
func (u *USBTransport) Read(timeout time.Duration) ([]byte, error) {
	if u.fetchEP == nil {
		return nil, ErrClosed
	}
	buf := make([]byte, u.fetchEPDesc.MaxPacketSize)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	n, err := u.fetchEP.ReadContext(ctx, buf)
	if err != nil {
		if ctx.Err() != nil || err == gousb.TransferTimedOut || err == gousb.TransferCancelled {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("interrupt in: %v", err)
	}
	return buf[:n], nil
}

// Close releases the interface and closes the device.
func (u *USBTransport) Close() error {
	u.sendEP = nil
	u.fetchEP = nil
	if u.iface != nil {
		u.iface.Close()
		u.iface = nil
	}
	if u.cfg != nil {
		if err := u.cfg.Close(); err != nil {
			u.log.Errorf("failed to close configuration: %v", err)
		}
		u.cfg = nil
	}
	var err error
	if u.dev != nil {
		err = u.dev.Close()
		u.dev = nil
	}
	if u.ctx != nil {
		u.ctx.Close()
		u.ctx = nil
	}
	return err
}
