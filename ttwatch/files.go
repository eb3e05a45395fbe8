package ttwatch

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known files.
const (
	FilePreferences    FileID = 0x00F20000
	FileSystemFirmware FileID = 0x000000F0
	FileBLEFirmware    FileID = 0x00000012
	FileGPSQuickFix    FileID = 0x00010100
	FileGPSFirmware    FileID = 0x00010200
	FileSystemLog      FileID = 0x00013100
)

// FileKind groups file ids. Indexed kinds hold many files told apart
// by the low 16 bits of the id.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindPreferences
	KindSystemFirmware
	KindBLEFirmware
	KindGPSQuickFix
	KindGPSFirmware
	KindSystemLog
	KindActivity
	KindActivitySummary
	KindManifest
	KindTrackingUpload
	KindTrackingWeekly
	KindRoute
	KindWorkout
	KindRace
)

var kindNames = map[FileKind]string{
	KindUnknown:         "unknown",
	KindPreferences:     "preferences",
	KindSystemFirmware:  "firmware",
	KindBLEFirmware:     "ble-firmware",
	KindGPSQuickFix:     "quickfix",
	KindGPSFirmware:     "gps-firmware",
	KindSystemLog:       "log",
	KindActivity:        "activity",
	KindActivitySummary: "summary",
	KindManifest:        "manifest",
	KindTrackingUpload:  "tracking",
	KindTrackingWeekly:  "weekly",
	KindRoute:           "route",
	KindWorkout:         "workout",
	KindRace:            "race",
}

func (k FileKind) String() string {
	n, ok := kindNames[k]
	if ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var singleFiles = map[FileID]FileKind{
	FilePreferences:    KindPreferences,
	FileSystemFirmware: KindSystemFirmware,
	FileBLEFirmware:    KindBLEFirmware,
	FileGPSQuickFix:    KindGPSQuickFix,
	FileGPSFirmware:    KindGPSFirmware,
	FileSystemLog:      KindSystemLog,
}

const indexMask = 0xFFFF

var indexedBase = map[FileKind]FileID{
	KindActivity:        0x00910000,
	KindActivitySummary: 0x00830000,
	KindManifest:        0x00850000,
	KindTrackingUpload:  0x00B10000,
	KindTrackingWeekly:  0x00B30000,
	KindRoute:           0x00B80000,
	KindWorkout:         0x00BE0000,
	KindRace:            0x00710000,
}

// Indexed reports whether k names a family of files.
func (k FileKind) Indexed() bool {
	_, ok := indexedBase[k]
	return ok
}

// File returns the id of the i-th file of an indexed kind, or of the
// single file of any other kind.
func (k FileKind) File(i int) (FileID, error) {
	if base, ok := indexedBase[k]; ok {
		if i < 0 || i > indexMask {
			return 0, fmt.Errorf("%s index %d out of range", k, i)
		}
		return base | FileID(i), nil
	}
	for id, kind := range singleFiles {
		if kind == k {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no file of kind %s", k)
}

func (id FileID) Kind() FileKind {
	if k, ok := singleFiles[id]; ok {
		return k
	}
	for k, base := range indexedBase {
		if id&^indexMask == base {
			return k
		}
	}
	return KindUnknown
}

// Index is the position of the file within its kind; 0 for kinds
// that are not indexed.
func (id FileID) Index() int {
	if id.Kind().Indexed() {
		return int(id & indexMask)
	}
	return 0
}

// Name is a short human-readable name, eg. "activity:3".
func (id FileID) Name() string {
	k := id.Kind()
	switch {
	case k == KindUnknown:
		return id.String()
	case k.Indexed():
		return fmt.Sprintf("%s:%d", k, id.Index())
	}
	return k.String()
}

func (e FileEntry) Kind() FileKind { return e.ID.Kind() }

func (e FileEntry) Name() string { return e.ID.Name() }

// ParseFileID accepts a number (0x prefix for hex) or a name as
// produced by FileID.Name.
func ParseFileID(s string) (FileID, error) {
	if v, err := strconv.ParseUint(s, 0, 32); err == nil {
		return FileID(v), nil
	}

	name, idx := s, ""
	if i := strings.IndexByte(s, ':'); i >= 0 {
		name, idx = s[:i], s[i+1:]
	}
	for k, n := range kindNames {
		if n != name || k == KindUnknown {
			continue
		}
		i := 0
		if k.Indexed() {
			v, err := strconv.Atoi(idx)
			if err != nil {
				return 0, fmt.Errorf("file %q: %s needs an index", s, name)
			}
			i = v
		} else if idx != "" {
			return 0, fmt.Errorf("file %q: %s takes no index", s, name)
		}
		return k.File(i)
	}
	return 0, fmt.Errorf("unknown file %q", s)
}
