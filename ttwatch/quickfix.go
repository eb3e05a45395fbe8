package ttwatch

import (
	"bytes"
	"errors"
	"fmt"
)

// UpdateQuickFix writes GPS ephemeris data to FileGPSQuickFix and,
// if resetGPS is set, restarts the GPS processor so it loads the new
// data. It returns the processor's reset message.
func (c *Conn) UpdateQuickFix(data []byte, resetGPS bool) (string, error) {
	if len(data) == 0 {
		return "", errors.New("quickfix: no data")
	}
	c.opts.logs.Proto.Infof("writing %d bytes of GPS QuickFix data", len(data))
	if _, err := c.WriteFile(FileGPSQuickFix, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("quickfix: %w", err)
	}
	if !resetGPS {
		return "", nil
	}
	msg, err := c.ResetGPS()
	if err != nil {
		return "", fmt.Errorf("quickfix: reset GPS: %w", err)
	}
	c.opts.logs.Proto.Debugf("GPS reset: %s", msg)
	return msg, nil
}
