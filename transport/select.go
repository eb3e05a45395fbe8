package transport

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	"tinygo.org/x/bluetooth"
)

// FindUSB lists the supported watches attached over USB. The devices
// are opened briefly to read their string descriptors.
func FindUSB() ([]DeviceInfo, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return IsWatch(uint16(desc.Vendor), uint16(desc.Product))
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("enumerate USB: %v", err)
	}

	var infos []DeviceInfo
	for _, d := range devs {
		info := DeviceInfo{
			Transport: USB,
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
			USB:       &USBDetails{Bus: d.Desc.Bus, Address: d.Desc.Address},
		}
		info.Serial, _ = d.SerialNumber()
		info.Manufacturer, _ = d.Manufacturer()
		info.Product, _ = d.Product()
		infos = append(infos, info)
	}
	return infos, nil
}

// ScanBLE scans for timeout and returns the devices whose advertised
// name starts with namePrefix.
func ScanBLE(timeout time.Duration, namePrefix string) ([]DeviceInfo, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %v", err)
	}

	var mu sync.Mutex
	seen := map[string]bool{}
	var infos []DeviceInfo
	err := scan(adapter, timeout, func(r bluetooth.ScanResult) bool {
		name := r.LocalName()
		if name == "" || !strings.HasPrefix(name, namePrefix) {
			return true
		}
		mu.Lock()
		defer mu.Unlock()
		addr := r.Address.String()
		if !seen[addr] {
			seen[addr] = true
			infos = append(infos, DeviceInfo{
				Transport: BLE,
				VendorID:  VendorTomTom,
				Product:   name,
				BLE:       &BLEDetails{Address: addr, Name: name, RSSI: r.RSSI},
			})
		}
		return true
	})
	return infos, err
}

// Select returns the one device whose ID or serial matches pattern.
// An empty pattern matches everything.
func Select(infos []DeviceInfo, pattern string) (DeviceInfo, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return DeviceInfo{}, err
	}
	if len(infos) == 0 {
		return DeviceInfo{}, fmt.Errorf("no watches found")
	}

	var found []DeviceInfo
	var ids []string
	for _, cand := range infos {
		if pattern == "" || re.MatchString(cand.ID()) || (cand.Serial != "" && re.MatchString(cand.Serial)) {
			found = append(found, cand)
			ids = append(ids, cand.ID())
		}
	}

	if len(found) > 1 {
		return DeviceInfo{}, fmt.Errorf("ambiguous devices: %s", strings.Join(ids, ", "))
	}
	if len(found) == 0 {
		return DeviceInfo{}, fmt.Errorf("no device matched %q", pattern)
	}
	return found[0], nil
}
