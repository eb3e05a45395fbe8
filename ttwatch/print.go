package ttwatch

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func getName(m map[int]string, v int) string {
	n, ok := m[v]
	if !ok {
		return fmt.Sprintf("0x%x", v)
	}
	return n
}

func hexDump(data []byte) string {
	return strings.TrimRight(hex.Dump(data), "\n")
}

func (e FileEntry) String() string {
	return fmt.Sprintf("%s %8d %s", e.ID, e.Size, e.Name())
}
