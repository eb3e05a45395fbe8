package ttwatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

func (c *Conn) GetProductID() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep GetProductIDRx
	if err := c.query(&GetProductIDTx{}, &rep); err != nil {
		return 0, err
	}
	return rep.ProductID, nil
}

func (c *Conn) GetFirmwareVersion() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep GetFirmwareVersionRx
	if err := c.query(&GetFirmwareVersionTx{}, &rep); err != nil {
		return "", err
	}
	return strings.TrimSpace(rep.Version), nil
}

// FirmwareSemver returns the firmware version in semantic version
// form, eg. "1.8.42" as 1.8.42.
func (c *Conn) FirmwareSemver() (*semver.Version, error) {
	v, err := c.GetFirmwareVersion()
	if err != nil {
		return nil, err
	}
	return ParseFirmwareVersion(v)
}

func ParseFirmwareVersion(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("firmware version %q: %v", s, err)
	}
	return v, nil
}

func (c *Conn) GetBLEVersion() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep GetBLEVersionRx
	if err := c.query(&GetBLEVersionTx{}, &rep); err != nil {
		return "", err
	}
	return strings.TrimSpace(rep.Version), nil
}

// GetWatchTime returns the watch clock in UTC.
func (c *Conn) GetWatchTime() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep GetWatchTimeRx
	if err := c.query(&GetWatchTimeTx{}, &rep); err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(rep.Time), 0).UTC(), nil
}

// FormatWatch erases all files on the watch.
func (c *Conn) FormatWatch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep FormatWatchRx
	if err := c.execute(&FormatWatchTx{}, &rep); err != nil {
		return err
	}
	return checkStatus("format", 0, rep.Error)
}

// ResetDevice reboots the watch. The watch drops off the bus, so the
// connection must be closed afterwards.
func (c *Conn) ResetDevice() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &ConnectionError{Op: "reset", Err: fmt.Errorf("connection closed")}
	}
	return c.h.Send(&ResetDeviceTx{})
}

// ResetGPS restarts the GPS processor and returns its status message.
func (c *Conn) ResetGPS() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep ResetGPSRx
	if err := c.execute(&ResetGPSTx{}, &rep); err != nil {
		return "", err
	}
	return strings.TrimSpace(rep.Message), nil
}
