package ttwatch

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanwen/go-ttwatch/transport"
)

// Identity is what a watch reports about itself.
type Identity struct {
	Info       transport.DeviceInfo
	ProductID  uint32
	Firmware   string
	BLEVersion string
	Time       time.Time
}

func (id *Identity) String() string {
	return fmt.Sprintf("%s: product 0x%x (%s) firmware %q ble %q time %s",
		id.Info.ID(), id.ProductID, transport.ModelName(uint16(id.ProductID)),
		id.Firmware, id.BLEVersion, id.Time.Format(time.RFC3339))
}

// Identify queries product id, versions and clock.
func (c *Conn) Identify() (*Identity, error) {
	id := &Identity{Info: c.info}
	var err error
	if id.ProductID, err = c.GetProductID(); err != nil {
		return nil, err
	}
	if id.Firmware, err = c.GetFirmwareVersion(); err != nil {
		return nil, err
	}
	if id.BLEVersion, err = c.GetBLEVersion(); err != nil {
		return nil, err
	}
	if id.Time, err = c.GetWatchTime(); err != nil {
		return nil, err
	}
	return id, nil
}

// ProbeAll opens each device, identifies it and closes it again.
// Devices are probed concurrently; the result is in the order of
// infos. The first error is returned along with the identities
// gathered.
//
// BLE opens scan on the shared adapter, which cannot run two scans at
// once, so they are done one at a time.
func ProbeAll(f *Factory, infos []transport.DeviceInfo) ([]*Identity, error) {
	ids := make([]*Identity, len(infos))
	var bleMu sync.Mutex
	open := func(info transport.DeviceInfo) (*Conn, error) {
		if info.Transport == transport.BLE {
			bleMu.Lock()
			defer bleMu.Unlock()
		}
		return f.Open(info)
	}

	var eg errgroup.Group
	for i := range infos {
		i := i
		eg.Go(func() error {
			c, err := open(infos[i])
			if err != nil {
				return err
			}
			defer c.Close()
			id, err := c.Identify()
			if err != nil {
				return fmt.Errorf("%s: %w", infos[i].ID(), err)
			}
			ids[i] = id
			return nil
		})
	}
	return ids, eg.Wait()
}
