package ttwatch

import (
	"bytes"
	"fmt"
	"io"
)

// checkEcho rejects a response that names a different file than the
// request did.
func checkEcho(op string, want, got uint32) error {
	if want == got {
		return nil
	}
	return &UnexpectedPacketError{
		Reason: fmt.Sprintf("%s %s: response is for %s", op, FileID(want), FileID(got)),
	}
}

// OpenFileRead opens a file for reading.
func (c *Conn) OpenFileRead(id FileID) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openFileRead(id)
}

func (c *Conn) openFileRead(id FileID) (Handle, error) {
	var rep OpenFileReadRx
	if err := c.execute(&OpenFileReadTx{FileID: uint32(id)}, &rep); err != nil {
		return 0, err
	}
	if err := checkEcho("open", uint32(id), rep.FileID); err != nil {
		return 0, err
	}
	if err := checkStatus("open", uint32(id), rep.Error); err != nil {
		return 0, err
	}
	return Handle(rep.FileID), nil
}

// OpenFileWrite opens a file for writing, creating it if needed.
func (c *Conn) OpenFileWrite(id FileID) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openFileWrite(id)
}

func (c *Conn) openFileWrite(id FileID) (Handle, error) {
	var rep OpenFileWriteRx
	if err := c.execute(&OpenFileWriteTx{FileID: uint32(id)}, &rep); err != nil {
		return 0, err
	}
	if err := checkEcho("create", uint32(id), rep.FileID); err != nil {
		return 0, err
	}
	if err := checkStatus("create", uint32(id), rep.Error); err != nil {
		return 0, err
	}
	return Handle(rep.FileID), nil
}

func (c *Conn) CloseFile(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeFile(h)
}

func (c *Conn) closeFile(h Handle) error {
	var rep CloseFileRx
	if err := c.execute(&CloseFileTx{FileID: uint32(h)}, &rep); err != nil {
		return err
	}
	if err := checkEcho("close", uint32(h), rep.FileID); err != nil {
		return err
	}
	return checkStatus("close", uint32(h), rep.Error)
}

// closeQuiet closes a file after a failed transfer. The transfer
// error is what the caller reports.
func (c *Conn) closeQuiet(h Handle) {
	if err := c.closeFile(h); err != nil {
		c.opts.logs.Proto.Debugf("close %s after error: %v", FileID(h), err)
	}
}

func (c *Conn) DeleteFile(id FileID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rep DeleteFileRx
	if err := c.execute(&DeleteFileTx{FileID: uint32(id)}, &rep); err != nil {
		return err
	}
	if err := checkEcho("delete", uint32(id), rep.FileID); err != nil {
		return err
	}
	return checkStatus("delete", uint32(id), rep.Error)
}

func (c *Conn) GetFileSize(h Handle) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getFileSize(h)
}

func (c *Conn) getFileSize(h Handle) (uint32, error) {
	var rep GetFileSizeRx
	if err := c.query(&GetFileSizeTx{FileID: uint32(h)}, &rep); err != nil {
		return 0, err
	}
	if err := checkEcho("stat", uint32(h), rep.FileID); err != nil {
		return 0, err
	}
	if err := checkStatus("stat", uint32(h), rep.Error); err != nil {
		return 0, err
	}
	return rep.Size, nil
}

// ReadFileData reads up to n bytes from the current position of an
// open file. A short result means the end of the file.
func (c *Conn) ReadFileData(h Handle, n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readFileData(h, n)
}

func (c *Conn) readFileData(h Handle, n int) ([]byte, error) {
	if n < 0 || n > MaxReadChunk {
		return nil, fmt.Errorf("read of %d bytes, max %d", n, MaxReadChunk)
	}
	var rep ReadFileDataRx
	if err := c.execute(&ReadFileDataTx{FileID: uint32(h), Length: uint32(n)}, &rep); err != nil {
		return nil, err
	}
	if err := checkEcho("read", uint32(h), rep.FileID); err != nil {
		return nil, err
	}
	if len(rep.Data) > n {
		return nil, &CodecError{Payload: "ReadFileDataRx",
			Reason: fmt.Sprintf("got %d bytes, asked for %d", len(rep.Data), n)}
	}
	return rep.Data, nil
}

// WriteFileData appends one chunk to an open file.
func (c *Conn) WriteFileData(h Handle, data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeFileData(h, data)
}

func (c *Conn) writeFileData(h Handle, data []byte) (int, error) {
	if len(data) > MaxWriteChunk {
		return 0, fmt.Errorf("write of %d bytes, max %d", len(data), MaxWriteChunk)
	}
	var rep WriteFileDataRx
	if err := c.execute(&WriteFileDataTx{FileID: uint32(h), Data: data}, &rep); err != nil {
		return 0, err
	}
	if err := checkEcho("write", uint32(h), rep.FileID); err != nil {
		return 0, err
	}
	if err := checkStatus("write", uint32(h), rep.Error); err != nil {
		return 0, err
	}
	return len(data), nil
}

// ReadFile copies a whole file to w and returns the number of bytes
// copied. Short chunks are followed up until the size reported by the
// watch is reached; an empty chunk before that is an error wrapping
// io.ErrUnexpectedEOF.
func (c *Conn) ReadFile(id FileID, w io.Writer) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.openFileRead(id)
	if err != nil {
		return 0, err
	}
	size, err := c.getFileSize(h)
	if err != nil {
		c.closeQuiet(h)
		return 0, err
	}

	p := newProgress(c.opts.progress, id, int64(size))
	var done int64
	for done < int64(size) {
		want := c.opts.readChunk
		if rest := int64(size) - done; rest < int64(want) {
			want = int(rest)
		}
		data, err := c.readFileData(h, want)
		if err != nil {
			c.closeQuiet(h)
			return done, err
		}
		if len(data) == 0 {
			break
		}
		if _, err := w.Write(data); err != nil {
			c.closeQuiet(h)
			return done, err
		}
		done += int64(len(data))
		p.add(len(data))
	}
	if done < int64(size) {
		c.closeQuiet(h)
		return done, fmt.Errorf("read %s: got %d of %d bytes: %w", id, done, size, io.ErrUnexpectedEOF)
	}
	return done, c.closeFile(h)
}

// ReadFileBytes returns the contents of a file.
func (c *Conn) ReadFileBytes(id FileID) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.ReadFile(id, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile replaces a file with the contents of r. size is only
// used for progress reports and may be -1.
func (c *Conn) WriteFile(id FileID, r io.Reader, size int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.openFileWrite(id)
	if err != nil {
		return 0, err
	}

	p := newProgress(c.opts.progress, id, size)
	buf := make([]byte, c.opts.writeChunk)
	var done int64
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if _, err := c.writeFileData(h, buf[:n]); err != nil {
				c.closeQuiet(h)
				return done, err
			}
			done += int64(n)
			p.add(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			c.closeQuiet(h)
			return done, rerr
		}
	}
	return done, c.closeFile(h)
}

func (c *Conn) WriteFileBytes(id FileID, data []byte) error {
	_, err := c.WriteFile(id, bytes.NewReader(data), int64(len(data)))
	return err
}

// FindFirstFile starts a listing. ok is false when the watch has no
// files.
func (c *Conn) FindFirstFile() (e FileEntry, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findFirstFile()
}

func (c *Conn) findFirstFile() (FileEntry, bool, error) {
	var rep FindFirstFileRx
	if err := c.query(&FindFirstFileTx{}, &rep); err != nil {
		c.listing = listNone
		return FileEntry{}, false, err
	}
	return c.found(&rep.FindResponse)
}

// FindNextFile continues the listing started by FindFirstFile. Once
// the listing is exhausted, or if none was started, it returns
// ok == false without talking to the watch.
func (c *Conn) FindNextFile() (e FileEntry, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findNextFile()
}

func (c *Conn) findNextFile() (FileEntry, bool, error) {
	if c.listing != listActive {
		return FileEntry{}, false, nil
	}
	var rep FindNextFileRx
	if err := c.execute(&FindNextFileTx{}, &rep); err != nil {
		c.listing = listNone
		return FileEntry{}, false, err
	}
	return c.found(&rep.FindResponse)
}

func (c *Conn) found(r *FindResponse) (FileEntry, bool, error) {
	if r.Last() {
		c.listing = listExhausted
		return FileEntry{}, false, nil
	}
	c.listing = listActive
	return r.Entry(), true, nil
}

// ListFiles returns all files on the watch.
func (c *Conn) ListFiles() ([]FileEntry, error) {
	var all []FileEntry
	l := c.Files()
	for l.Next() {
		all = append(all, l.Entry())
	}
	return all, l.Err()
}
