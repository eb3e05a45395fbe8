package ttwatch

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// ProtocolError is the outcome code the watch reports inside a
// response payload. It is carried as data; the command layer turns
// values other than PE_Success into a FileError.
type ProtocolError uint32

func (e ProtocolError) Error() string {
	n, ok := PE_names[int(e)]
	if ok {
		return n
	}
	return fmt.Sprintf("ProtocolError %x", uint32(e))
}

// ConnectionError is a transport failure. The connection is unusable
// afterwards and must be reopened.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Fatal() bool { return true }

// TimeoutError is returned when no response arrived in time. The
// connection stays usable.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no response after %v", e.Op, e.After)
}

func (e *TimeoutError) Timeout() bool { return true }

// MalformedPacketError means the received bytes do not parse as a
// packet.
type MalformedPacketError struct {
	Reason string
}

func (e *MalformedPacketError) Error() string {
	return "malformed packet: " + e.Reason
}

// UnexpectedPacketError indicates a well-formed packet that does not
// answer the pending request.
type UnexpectedPacketError struct {
	WantType MessageType
	GotType  MessageType
	WantDir  Direction
	GotDir   Direction
	Reason   string
}

func (e *UnexpectedPacketError) Error() string {
	if e.Reason != "" {
		return "unexpected packet: " + e.Reason
	}
	return fmt.Sprintf("unexpected packet: got %s/%s, want %s/%s",
		e.GotType, e.GotDir, e.WantType, e.WantDir)
}

// CodecError is a payload that does not match its declared layout.
type CodecError struct {
	Payload string
	Reason  string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %s", e.Payload, e.Reason)
}

// ErrBusy is returned when a request is issued while another one is
// still awaiting its response on the same connection.
var ErrBusy = errors.New("ttwatch: request already in flight")

// FileError is a non-success ProtocolError translated by the command
// layer. It unwraps to fs.ErrNotExist, fs.ErrPermission or
// fs.ErrInvalid where one applies. ID is zero for operations on the
// whole file system.
type FileError struct {
	Op   string
	ID   FileID
	Code ProtocolError
}

func (e *FileError) Error() string {
	what := e.Op
	if e.ID != 0 {
		what += " " + e.ID.String()
	}
	switch e.Code {
	case PE_FileNotFound:
		return what + ": no such file"
	case PE_AccessDenied:
		return what + ": access denied"
	case PE_InvalidHandle:
		return what + ": invalid handle"
	}
	return fmt.Sprintf("%s: %v", what, e.Code)
}

func (e *FileError) Unwrap() error {
	switch e.Code {
	case PE_FileNotFound:
		return fs.ErrNotExist
	case PE_AccessDenied:
		return fs.ErrPermission
	case PE_InvalidHandle:
		return fs.ErrInvalid
	}
	return e.Code
}

func checkStatus(op string, id uint32, code ProtocolError) error {
	if code == PE_Success {
		return nil
	}
	return &FileError{Op: op, ID: FileID(id), Code: code}
}

// IsRecoverable reports whether the connection can still be used
// after err.
func IsRecoverable(err error) bool {
	var ce *ConnectionError
	return !errors.As(err, &ce)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
