package ttwatch

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Preferences is the settings document the watch keeps in
// FilePreferences. Elements this type does not know are kept in
// Extra and written back unchanged.
type Preferences struct {
	XMLName xml.Name `xml:"preferences"`

	Version  string `xml:"version"`
	Modified int64  `xml:"modified,omitempty"`
	Name     string `xml:"name"`

	ConfigURL         string `xml:"config_url,omitempty"`
	EphemerisURL      string `xml:"ephemeris_url,omitempty"`
	EphemerisModified int64  `xml:"ephemeris_modified,omitempty"`

	AuthToken   string `xml:"auth_token,omitempty"`
	TokenSecret string `xml:"token_secret,omitempty"`
	UserID      string `xml:"user_id,omitempty"`

	Language string `xml:"language,omitempty"`
	Units    string `xml:"units,omitempty"`

	Extra []PreferenceElement `xml:",any"`
}

// PreferenceElement is an element of the preferences document without
// a field of its own.
type PreferenceElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// ModifiedTime is the last change of the document, zero if unset.
func (p *Preferences) ModifiedTime() time.Time {
	return unixOrZero(p.Modified)
}

// EphemerisTime is the time of the last GPS QuickFix update.
func (p *Preferences) EphemerisTime() time.Time {
	return unixOrZero(p.EphemerisModified)
}

func unixOrZero(s int64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(s, 0).UTC()
}

// ParsePreferences decodes a preferences document. Trailing NUL
// padding is ignored.
func ParsePreferences(data []byte) (*Preferences, error) {
	data = bytes.TrimRight(data, "\x00")
	var p Preferences
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("preferences: %v", err)
	}
	return &p, nil
}

// Marshal encodes p as the watch expects it. An empty version becomes
// "1.0" and an unset modification time becomes now.
func (p *Preferences) Marshal(now time.Time) ([]byte, error) {
	out := *p
	if out.Version == "" {
		out.Version = "1.0"
	}
	if out.Modified == 0 {
		out.Modified = now.Unix()
	}
	body, err := xml.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FileExists reports whether id can be opened for reading.
func (c *Conn) FileExists(id FileID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.openFileRead(id)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, c.closeFile(h)
}

// Preferences reads and parses the preferences file.
func (c *Conn) Preferences() (*Preferences, error) {
	data, err := c.ReadFileBytes(FilePreferences)
	if err != nil {
		return nil, err
	}
	return ParsePreferences(data)
}

// SetPreferences replaces the preferences file. An unset
// modification time is stamped with the current time.
func (c *Conn) SetPreferences(p *Preferences) error {
	data, err := p.Marshal(time.Now())
	if err != nil {
		return err
	}
	c.opts.logs.Proto.Debugf("writing preferences, %d bytes", len(data))
	return c.WriteFileBytes(FilePreferences, data)
}

// PreferencesExist reports whether the watch has a preferences file.
func (c *Conn) PreferencesExist() (bool, error) {
	return c.FileExists(FilePreferences)
}
