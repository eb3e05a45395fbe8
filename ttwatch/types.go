// Package ttwatch implements the host side of the TomTom GPS watch
// protocol. It frames typed request payloads, exchanges them with a
// watch over a transport.Transport and decodes the responses. Beyond
// the communication primitive, it implements the file and kernel
// operations in ops_file.go and ops_kernel.go.
package ttwatch

import (
	"fmt"
	"io"
)

// MessageType identifies the logical operation of a packet.
type MessageType uint8

func (t MessageType) String() string {
	return getName(MT_names, int(t))
}

// Known reports whether t is a message type this package understands.
func (t MessageType) Known() bool {
	_, ok := MT_names[int(t)]
	return ok && t != MT_Unknown
}

// Direction is the first header byte: host to watch or back.
type Direction uint8

func (d Direction) String() string {
	return getName(DIR_names, int(d))
}

func (d Direction) Known() bool {
	return d == DIR_TX || d == DIR_RX
}

// HeaderSize is the size of the packet header on the wire.
const HeaderSize = 4

// MaxPayloadSize is the largest payload a single packet can carry;
// the header length byte also counts the counter and type bytes.
const MaxPayloadSize = 0xFF - 2

// Header precedes every packet. Length counts the Counter and Type
// bytes plus the payload.
type Header struct {
	Direction Direction
	Length    uint8
	Counter   uint8
	Type      MessageType
}

// PayloadSize is the number of payload bytes announced by the header.
func (h *Header) PayloadSize() int {
	return int(h.Length) - 2
}

func (h Header) String() string {
	return fmt.Sprintf("%s %s #%d len %d", h.Direction, h.Type, h.Counter, h.PayloadSize())
}

// Packet is a header plus the raw payload bytes; the unit exchanged
// with the transport.
type Packet struct {
	Header
	Payload []byte
}

// FileID names a file on the watch. The watch has no directories;
// see files.go for the well-known identifiers.
type FileID uint32

func (id FileID) String() string {
	return fmt.Sprintf("0x%08x", uint32(id))
}

// Handle is the device-issued reference returned when opening a file.
type Handle uint32

// FileEntry is one result of a find-first/find-next enumeration.
type FileEntry struct {
	ID   FileID
	Size uint32
}

// Payload is a typed request or response body. Every payload type
// is registered with its message type and direction in payload.go.
type Payload interface{}

// The Decoder interface is for payloads that need special decoding
// support, eg. ones with an inner length field.
type Decoder interface {
	Decode(r io.Reader) error
}

type Encoder interface {
	Encode(w io.Writer) error
}
