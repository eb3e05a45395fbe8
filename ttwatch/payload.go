package ttwatch

import (
	"fmt"
	"io"
)

// FileOperationResponse acknowledges open, close, delete and write
// requests.
type FileOperationResponse struct {
	Reserved1 uint32
	FileID    uint32
	Reserved2 uint32
	Reserved3 uint32
	Error     ProtocolError
}

// FindResponse carries one listing entry. EndOfList is non-zero once
// the watch has no more files to report; FileID and Size are then
// meaningless.
type FindResponse struct {
	Reserved1 uint32
	FileID    uint32
	Reserved2 uint32
	Size      uint32
	EndOfList uint32
}

func (f *FindResponse) Last() bool {
	return f.EndOfList != 0
}

func (f *FindResponse) Entry() FileEntry {
	return FileEntry{ID: FileID(f.FileID), Size: f.Size}
}

type OpenFileReadTx struct {
	FileID uint32
}

type OpenFileReadRx struct {
	FileOperationResponse
}

type OpenFileWriteTx struct {
	FileID uint32
}

type OpenFileWriteRx struct {
	FileOperationResponse
}

type CloseFileTx struct {
	FileID uint32
}

type CloseFileRx struct {
	FileOperationResponse
}

type DeleteFileTx struct {
	FileID uint32
}

type DeleteFileRx struct {
	FileOperationResponse
}

type GetFileSizeTx struct {
	FileID uint32
}

type GetFileSizeRx struct {
	Reserved1 uint32
	FileID    uint32
	Reserved2 uint32
	Size      uint32
	Error     ProtocolError
}

// ReadFileDataTx asks for up to Length bytes from the current read
// position of an open file.
type ReadFileDataTx struct {
	FileID uint32
	Length uint32
}

// ReadFileDataRx returns Length bytes of file data. It travels as
// message type ReadFileDataResponse, not ReadFileDataRequest.
type ReadFileDataRx struct {
	FileID uint32
	Length uint32
	Data   []byte
}

func (p *ReadFileDataRx) Encode(w io.Writer) error {
	var hdr [8]byte
	byteOrder.PutUint32(hdr[0:], p.FileID)
	byteOrder.PutUint32(hdr[4:], uint32(len(p.Data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(p.Data)
	return err
}

func (p *ReadFileDataRx) Decode(r io.Reader) error {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	p.FileID = byteOrder.Uint32(hdr[0:])
	p.Length = byteOrder.Uint32(hdr[4:])
	if p.Length > MaxPayloadSize {
		return fmt.Errorf("data length %d exceeds packet", p.Length)
	}
	p.Data = nil
	if p.Length == 0 {
		return nil
	}
	p.Data = make([]byte, p.Length)
	n, err := io.ReadFull(r, p.Data)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return fmt.Errorf("data length %d exceeds remaining %d bytes", p.Length, n)
	}
	return err
}

type WriteFileDataTx struct {
	FileID uint32
	Data   []byte
}

// WriteFileDataRx acknowledges a chunk. The last word sits where
// FileOperationResponse keeps its error and is read the same way.
type WriteFileDataRx struct {
	FileOperationResponse
}

type FindFirstFileTx struct {
	Reserved1 uint32
	Reserved2 uint32
}

type FindFirstFileRx struct {
	FindResponse
}

type FindNextFileTx struct{}

type FindNextFileRx struct {
	FindResponse
}

type GetWatchTimeTx struct{}

// GetWatchTimeRx holds the watch clock as seconds since the Unix
// epoch, in UTC.
type GetWatchTimeRx struct {
	Time      uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
	Reserved4 uint32
}

type GetProductIDTx struct{}

type GetProductIDRx struct {
	ProductID uint32
}

type GetFirmwareVersionTx struct{}

type GetFirmwareVersionRx struct {
	Version string
}

type GetBLEVersionTx struct{}

type GetBLEVersionRx struct {
	Version string
}

type FormatWatchTx struct{}

type FormatWatchRx struct {
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
	Reserved4 uint32
	Error     ProtocolError
}

// ResetDeviceTx reboots the watch. There is no response; the link
// goes away.
type ResetDeviceTx struct{}

type ResetGPSTx struct{}

type ResetGPSRx struct {
	Message string
}

func init() {
	pair(&OpenFileReadTx{}, &OpenFileReadRx{}, MT_OpenFileRead, MT_OpenFileRead)
	pair(&OpenFileWriteTx{}, &OpenFileWriteRx{}, MT_OpenFileWrite, MT_OpenFileWrite)
	pair(&CloseFileTx{}, &CloseFileRx{}, MT_CloseFile, MT_CloseFile)
	pair(&DeleteFileTx{}, &DeleteFileRx{}, MT_DeleteFile, MT_DeleteFile)
	pair(&GetFileSizeTx{}, &GetFileSizeRx{}, MT_GetFileSize, MT_GetFileSize)
	pair(&ReadFileDataTx{}, &ReadFileDataRx{}, MT_ReadFileDataRequest, MT_ReadFileDataResponse)
	pair(&WriteFileDataTx{}, &WriteFileDataRx{}, MT_WriteFileData, MT_WriteFileData)
	pair(&FindFirstFileTx{}, &FindFirstFileRx{}, MT_FindFirstFile, MT_FindFirstFile)
	pair(&FindNextFileTx{}, &FindNextFileRx{}, MT_FindNextFile, MT_FindNextFile)
	pair(&GetWatchTimeTx{}, &GetWatchTimeRx{}, MT_GetWatchTime, MT_GetWatchTime)
	pair(&GetProductIDTx{}, &GetProductIDRx{}, MT_GetProductID, MT_GetProductID)
	pair(&GetFirmwareVersionTx{}, &GetFirmwareVersionRx{}, MT_GetFirmwareVersion, MT_GetFirmwareVersion)
	pair(&GetBLEVersionTx{}, &GetBLEVersionRx{}, MT_GetBLEVersion, MT_GetBLEVersion)
	pair(&FormatWatchTx{}, &FormatWatchRx{}, MT_FormatWatch, MT_FormatWatch)
	pair(&ResetDeviceTx{}, nil, MT_ResetDevice, 0)
	pair(&ResetGPSTx{}, &ResetGPSRx{}, MT_ResetGPSProcessor, MT_ResetGPSProcessor)
}
