package transport

import "fmt"

const VendorTomTom = 0x1390

const PID_Multisport = 0x7474
const PID_SparkMusic = 0x7475
const PID_SparkCardio = 0x7477
const PID_Touch = 0x7480

var PID_names = map[int]string{0x7474: "Multisport",
	0x7475: "Spark Music",
	0x7477: "Spark Cardio",
	0x7480: "Touch",
}

func ModelName(pid uint16) string {
	n, ok := PID_names[int(pid)]
	if ok {
		return n
	}
	return fmt.Sprintf("product 0x%04x", pid)
}

// IsWatch reports whether a USB vendor/product pair is a supported
// watch.
func IsWatch(vid, pid uint16) bool {
	if vid != VendorTomTom {
		return false
	}
	_, ok := PID_names[int(pid)]
	return ok
}
