package ttwatch

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

const fileSizeRxStr = `0000 0000 0091 0003 0000 0000 0000 1000
0000 0000`

const readDataRxStr = `00f2 0000 0000 0005 6865 6c6c 6f`

func parseHex(s string) []byte {
	hex := strings.Replace(s, " ", "", -1)
	hex = strings.Replace(hex, "\n", "", -1)
	buf := bytes.NewBufferString(hex)
	bin := make([]byte, len(hex)/2)

	_, err := fmt.Fscanf(buf, "%x", &bin)
	if err != nil {
		panic(err)
	}
	if buf.Len() > 0 {
		panic("consume")
	}
	return bin
}

func diffIndex(a, b []byte) error {
	l := len(b)
	if len(a) < len(b) {
		l = len(a)
	}

	for i := 0; i < l; i++ {
		if a[i] != b[i] {
			return fmt.Errorf("data idx 0x%x got %x want %x",
				i, a[i], b[i])
		}
	}

	if len(a) != len(b) {
		return fmt.Errorf("length mismatch got %d want %d",
			len(a), len(b))
	}
	return nil
}

func TestDecodeFileSize(t *testing.T) {
	bin := parseHex(fileSizeRxStr)
	var rep GetFileSizeRx
	if err := DecodePayload(bin, &rep); err != nil {
		t.Fatalf("unexpected decode error %v", err)
	}
	if rep.FileID != 0x00910003 || rep.Size != 4096 || rep.Error != PE_Success {
		t.Fatalf("got %+v", rep)
	}

	enc, err := EncodePayload(&rep)
	if err != nil {
		t.Fatalf("unexpected encode error %v", err)
	}
	if err := diffIndex(enc, bin); err != nil {
		t.Error(err)
		t.Logf("got\n%s\nwant\n%s", hexDump(enc), hexDump(bin))
	}
}

func TestDecodeReadData(t *testing.T) {
	bin := parseHex(readDataRxStr)
	var rep ReadFileDataRx
	if err := DecodePayload(bin, &rep); err != nil {
		t.Fatalf("unexpected decode error %v", err)
	}
	if rep.FileID != uint32(FilePreferences) || rep.Length != 5 || string(rep.Data) != "hello" {
		t.Fatalf("got %+v", rep)
	}
}

func TestEncodeBigEndian(t *testing.T) {
	enc, err := EncodePayload(&ReadFileDataTx{FileID: 0x00F20000, Length: 242})
	if err != nil {
		t.Fatal(err)
	}
	if err := diffIndex(enc, parseHex("00f2 0000 0000 00f2")); err != nil {
		t.Error(err)
	}
}

func TestEncodeEmpty(t *testing.T) {
	enc, err := EncodePayload(&FindNextFileTx{})
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != 0 {
		t.Fatalf("empty payload encoded to %x", enc)
	}
}

// fill sets every field of v to a distinct non-zero value.
func fill(v reflect.Value, seed *uint32) {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint32:
		*seed++
		v.SetUint(uint64(*seed))
	case reflect.String:
		*seed++
		v.SetString(fmt.Sprintf("v%d", *seed))
	case reflect.Slice:
		*seed++
		v.SetBytes([]byte{byte(*seed), 0, 0xFF})
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			fill(v.Field(i), seed)
		}
	}
}

func roundTrip(t *testing.T, p Payload) {
	enc, err := EncodePayload(p)
	if err != nil {
		t.Fatalf("%T: encode: %v", p, err)
	}
	back := reflect.New(reflect.TypeOf(p).Elem()).Interface()
	if err := DecodePayload(enc, back); err != nil {
		t.Fatalf("%T: decode: %v", p, err)
	}
	if !reflect.DeepEqual(back, p) {
		t.Errorf("round trip %T: got %+v, want %+v", back, back, p)
	}
}

func TestRoundTrip(t *testing.T) {
	all := Registered()
	if len(all) != len(allPayloads) {
		t.Fatalf("registered %d payloads, want %d", len(all), len(allPayloads))
	}
	var seed uint32
	for _, tr := range all {
		roundTrip(t, tr.New())

		p := tr.New()
		fill(reflect.ValueOf(p).Elem(), &seed)
		if rd, ok := p.(*ReadFileDataRx); ok {
			rd.Length = uint32(len(rd.Data))
		}
		roundTrip(t, p)
	}
}

func TestRoundTripEdges(t *testing.T) {
	for _, p := range []Payload{
		&OpenFileWriteRx{FileOperationResponse{FileID: 0x00B80002, Error: PE_AccessDenied}},
		&GetFileSizeRx{FileID: 0x00F20000, Size: 0xFFFFFFFF},
		&ReadFileDataRx{FileID: 7, Length: MaxReadChunk, Data: bytes.Repeat([]byte{0x55}, MaxReadChunk)},
		&WriteFileDataTx{FileID: 7, Data: bytes.Repeat([]byte{0xAA}, MaxWriteChunk)},
		&WriteFileDataTx{FileID: 7},
		&ReadFileDataRx{FileID: 7},
		&FindNextFileRx{FindResponse{FileID: 0x00910004, Size: 120}},
		&FindNextFileRx{FindResponse{EndOfList: 1}},
		&GetBLEVersionRx{Version: "2.3.1"},
	} {
		roundTrip(t, p)
	}
}

func TestDecodeTrimsNUL(t *testing.T) {
	var rep GetBLEVersionRx
	if err := DecodePayload([]byte("2.1\x00\x00\x00"), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Version != "2.1" {
		t.Errorf("got %q", rep.Version)
	}
}

func TestDecodeWrongLength(t *testing.T) {
	var rep GetFileSizeRx
	err := DecodePayload(parseHex(fileSizeRxStr)[:19], &rep)
	var ce *CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want CodecError", err)
	}

	err = DecodePayload(append(parseHex(fileSizeRxStr), 0), &rep)
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want CodecError", err)
	}
}

func TestDecodeInnerLengthOverrun(t *testing.T) {
	// announces 9 data bytes, carries 5
	bin := parseHex(`00f2 0000 0000 0009 6865 6c6c 6f`)
	var rep ReadFileDataRx
	err := DecodePayload(bin, &rep)
	var ce *CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want CodecError", err)
	}
}

func TestEncodeTooLong(t *testing.T) {
	_, err := EncodePayload(&WriteFileDataTx{Data: make([]byte, MaxWriteChunk+1)})
	var ce *CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want CodecError", err)
	}
}

func TestUnregisteredPayload(t *testing.T) {
	type stray struct{ X uint32 }
	_, err := EncodePayload(&stray{})
	var ce *CodecError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want CodecError", err)
	}
}
