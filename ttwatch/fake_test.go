package ttwatch

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hanwen/go-ttwatch/transport"
)

// fakeWatch answers protocol requests on one end of a pipe, backed by
// an in-memory file table.
type fakeWatch struct {
	t    *testing.T
	end  *transport.PipeEnd
	done chan struct{}

	mu        sync.Mutex
	files     map[FileID][]byte
	readPos   map[FileID]int
	writing   map[FileID]bool
	listing   []FileID
	listPos   int
	requests  []MessageType
	dropFirst map[MessageType]int
	late      map[MessageType]int
	pending   [][]byte
	chunk     int
	readLimit int
	sizeExtra uint32
	formatErr ProtocolError

	productID uint32
	firmware  string
	ble       string
	clock     uint32
	resets    int
}

func newFakeWatch(t *testing.T) (*fakeWatch, *transport.PipeEnd) {
	host, dev := transport.Pipe()
	w := &fakeWatch{
		t:         t,
		end:       dev,
		done:      make(chan struct{}),
		files:     map[FileID][]byte{},
		readPos:   map[FileID]int{},
		writing:   map[FileID]bool{},
		dropFirst: map[MessageType]int{},
		late:      map[MessageType]int{},
		productID: 0x7474,
		firmware:  "1.8.42",
		ble:       "2.3.1",
		clock:     1500000000,
	}
	go w.serve()
	t.Cleanup(func() {
		host.Close()
		<-w.done
	})
	return w, host
}

// newFakeConn returns a connection to a fresh fake watch.
func newFakeConn(t *testing.T, opts ...Option) (*fakeWatch, *Conn) {
	w, host := newFakeWatch(t)
	info := transport.DeviceInfo{
		Transport: transport.USB,
		VendorID:  transport.VendorTomTom,
		ProductID: transport.PID_Multisport,
		Serial:    "HC4354G00150",
		USB:       &transport.USBDetails{Bus: 1, Address: 7},
	}
	opts = append([]Option{WithTimeout(200 * time.Millisecond)}, opts...)
	return w, NewConn(info, host, opts...)
}

func (w *fakeWatch) put(id FileID, data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[id] = append([]byte{}, data...)
}

func (w *fakeWatch) get(id FileID) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.files[id]
	return d, ok
}

// drop makes the watch ignore the next n requests of type mt.
func (w *fakeWatch) drop(mt MessageType, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropFirst[mt] = n
}

// delay holds back the reply to the next n requests of type mt and
// sends it just before the reply to the request after.
func (w *fakeWatch) delay(mt MessageType, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.late[mt] = n
}

// limitReads caps the data returned per read request.
func (w *fakeWatch) limitReads(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.readLimit = n
}

func (w *fakeWatch) setChunk(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunk = n
}

func (w *fakeWatch) log() []MessageType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]MessageType{}, w.requests...)
}

func (w *fakeWatch) count(mt MessageType) int {
	n := 0
	for _, r := range w.log() {
		if r == mt {
			n++
		}
	}
	return n
}

func (w *fakeWatch) serve() {
	defer close(w.done)
	for {
		raw, err := w.end.Read(50 * time.Millisecond)
		if errors.Is(err, transport.ErrTimeout) {
			continue
		}
		if err != nil {
			return
		}
		pkt, err := Unwrap(raw)
		if err != nil {
			w.t.Errorf("fake: %v", err)
			continue
		}
		tr, ok := Lookup(pkt.Type, pkt.Direction)
		if !ok {
			w.t.Errorf("fake: unknown request %s", pkt.Header)
			continue
		}
		req := tr.New()
		if err := DecodePayload(pkt.Payload, req); err != nil {
			w.t.Errorf("fake: %v", err)
			continue
		}

		w.mu.Lock()
		w.requests = append(w.requests, pkt.Type)
		if w.dropFirst[pkt.Type] > 0 {
			w.dropFirst[pkt.Type]--
			w.mu.Unlock()
			continue
		}
		rep := w.handle(req)
		chunk := w.chunk
		if rep == nil {
			w.mu.Unlock()
			continue
		}
		raw = w.encode(pkt.Counter, rep)
		if w.late[pkt.Type] > 0 {
			w.late[pkt.Type]--
			w.pending = append(w.pending, raw)
			w.mu.Unlock()
			continue
		}
		stale := w.pending
		w.pending = nil
		w.mu.Unlock()

		for _, p := range stale {
			w.write(p, 0)
		}
		w.write(raw, chunk)
	}
}

func (w *fakeWatch) encode(counter uint8, rep Payload) []byte {
	tr, err := TraitsOf(rep)
	if err != nil {
		w.t.Errorf("fake: %v", err)
		return nil
	}
	payload, err := EncodePayload(rep)
	if err != nil {
		w.t.Errorf("fake: %v", err)
		return nil
	}
	pkt, err := Wrap(tr.Type, DIR_RX, counter, payload)
	if err != nil {
		w.t.Errorf("fake: %v", err)
		return nil
	}
	return pkt.Bytes()
}

func (w *fakeWatch) write(raw []byte, chunk int) {
	if chunk <= 0 {
		chunk = len(raw)
	}
	for len(raw) > 0 {
		n := chunk
		if n > len(raw) {
			n = len(raw)
		}
		if w.end.Write(raw[:n]) != nil {
			return
		}
		raw = raw[n:]
	}
}

func fileOp(id uint32, code ProtocolError) FileOperationResponse {
	return FileOperationResponse{FileID: id, Error: code}
}

func (w *fakeWatch) handle(req Payload) Payload {
	switch r := req.(type) {
	case *OpenFileReadTx:
		id := FileID(r.FileID)
		if _, ok := w.files[id]; !ok {
			return &OpenFileReadRx{fileOp(r.FileID, PE_FileNotFound)}
		}
		w.readPos[id] = 0
		return &OpenFileReadRx{fileOp(r.FileID, PE_Success)}
	case *OpenFileWriteTx:
		id := FileID(r.FileID)
		if id.Kind() == KindUnknown {
			return &OpenFileWriteRx{fileOp(r.FileID, PE_AccessDenied)}
		}
		w.files[id] = nil
		w.writing[id] = true
		return &OpenFileWriteRx{fileOp(r.FileID, PE_Success)}
	case *CloseFileTx:
		id := FileID(r.FileID)
		_, reading := w.readPos[id]
		if !reading && !w.writing[id] {
			return &CloseFileRx{fileOp(r.FileID, PE_InvalidHandle)}
		}
		delete(w.readPos, id)
		delete(w.writing, id)
		return &CloseFileRx{fileOp(r.FileID, PE_Success)}
	case *DeleteFileTx:
		id := FileID(r.FileID)
		if _, ok := w.files[id]; !ok {
			return &DeleteFileRx{fileOp(r.FileID, PE_FileNotFound)}
		}
		delete(w.files, id)
		return &DeleteFileRx{fileOp(r.FileID, PE_Success)}
	case *GetFileSizeTx:
		d, ok := w.files[FileID(r.FileID)]
		if !ok {
			return &GetFileSizeRx{FileID: r.FileID, Error: PE_FileNotFound}
		}
		return &GetFileSizeRx{FileID: r.FileID, Size: uint32(len(d)) + w.sizeExtra}
	case *ReadFileDataTx:
		id := FileID(r.FileID)
		d := w.files[id]
		pos := w.readPos[id]
		n := int(r.Length)
		if w.readLimit > 0 && n > w.readLimit {
			n = w.readLimit
		}
		end := pos + n
		if end > len(d) {
			end = len(d)
		}
		w.readPos[id] = end
		return &ReadFileDataRx{FileID: r.FileID, Data: append([]byte{}, d[pos:end]...)}
	case *WriteFileDataTx:
		id := FileID(r.FileID)
		if !w.writing[id] {
			return &WriteFileDataRx{fileOp(r.FileID, PE_InvalidHandle)}
		}
		w.files[id] = append(w.files[id], r.Data...)
		return &WriteFileDataRx{fileOp(r.FileID, PE_Success)}
	case *FindFirstFileTx:
		w.listing = w.listing[:0]
		for id := range w.files {
			w.listing = append(w.listing, id)
		}
		sort.Slice(w.listing, func(i, j int) bool { return w.listing[i] < w.listing[j] })
		w.listPos = 0
		return &FindFirstFileRx{w.nextEntry()}
	case *FindNextFileTx:
		return &FindNextFileRx{w.nextEntry()}
	case *GetWatchTimeTx:
		return &GetWatchTimeRx{Time: w.clock}
	case *GetProductIDTx:
		return &GetProductIDRx{ProductID: w.productID}
	case *GetFirmwareVersionTx:
		return &GetFirmwareVersionRx{Version: w.firmware}
	case *GetBLEVersionTx:
		return &GetBLEVersionRx{Version: w.ble}
	case *FormatWatchTx:
		if w.formatErr != PE_Success {
			return &FormatWatchRx{Error: w.formatErr}
		}
		w.files = map[FileID][]byte{}
		return &FormatWatchRx{}
	case *ResetDeviceTx:
		w.resets++
		return nil
	case *ResetGPSTx:
		return &ResetGPSRx{Message: "GPS reset"}
	}
	w.t.Errorf("fake: unhandled %T", req)
	return nil
}

func (w *fakeWatch) nextEntry() FindResponse {
	if w.listPos >= len(w.listing) {
		return FindResponse{EndOfList: 1}
	}
	id := w.listing[w.listPos]
	w.listPos++
	return FindResponse{FileID: uint32(id), Size: uint32(len(w.files[id]))}
}
