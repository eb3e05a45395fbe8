package ttwatch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"reflect"
)

var byteOrder = binary.BigEndian

func decodeTail(r io.Reader) ([]byte, error) {
	return ioutil.ReadAll(r)
}

func decodeField(r io.Reader, f reflect.Value) error {
	if !f.CanAddr() {
		return fmt.Errorf("canaddr false")
	}

	switch f.Kind() {
	case reflect.Uint8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		f.SetUint(uint64(b[0]))
	case reflect.Uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		f.SetUint(uint64(byteOrder.Uint32(b[:])))
	case reflect.String:
		tail, err := decodeTail(r)
		if err != nil {
			return err
		}
		f.SetString(string(bytes.TrimRight(tail, "\x00")))
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.Uint8 {
			panic(fmt.Sprintf("unimplemented slice kind %v", f.Type()))
		}
		tail, err := decodeTail(r)
		if err != nil {
			return err
		}
		if len(tail) == 0 {
			tail = nil
		}
		f.SetBytes(tail)
	case reflect.Struct:
		return decodeStruct(r, f)
	default:
		panic(fmt.Sprintf("unimplemented kind %v", f))
	}
	return nil
}

func encodeField(w io.Writer, f reflect.Value) error {
	switch f.Kind() {
	case reflect.Uint8:
		_, err := w.Write([]byte{byte(f.Uint())})
		return err
	case reflect.Uint32:
		var b [4]byte
		byteOrder.PutUint32(b[:], uint32(f.Uint()))
		_, err := w.Write(b[:])
		return err
	case reflect.String:
		_, err := io.WriteString(w, f.String())
		return err
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.Uint8 {
			panic(fmt.Sprintf("unimplemented slice kind %v", f.Type()))
		}
		_, err := w.Write(f.Bytes())
		return err
	case reflect.Struct:
		return encodeStruct(w, f)
	default:
		panic(fmt.Sprintf("unimplemented kind %v", f))
	}
}

func decodeStruct(r io.Reader, val reflect.Value) error {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		if err := decodeField(r, val.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func encodeStruct(w io.Writer, val reflect.Value) error {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		if err := encodeField(w, val.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

// Decode a payload byte stream into a data structure. Fixed fields are
// big-endian; a trailing []byte or string takes the rest of the
// stream.
func Decode(r io.Reader, iface interface{}) error {
	decoder, ok := iface.(Decoder)
	if ok {
		return decoder.Decode(r)
	}

	val := reflect.ValueOf(iface)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("need ptr argument: %T", iface)
	}
	return decodeStruct(r, val.Elem())
}

// Encode a data structure into a payload byte stream.
func Encode(w io.Writer, iface interface{}) error {
	encoder, ok := iface.(Encoder)
	if ok {
		return encoder.Encode(w)
	}

	val := reflect.ValueOf(iface)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("need ptr argument: %T", iface)
	}
	return encodeStruct(w, val.Elem())
}

// EncodePayload encodes a registered payload and checks the result
// against its traits.
func EncodePayload(p Payload) ([]byte, error) {
	tr, err := TraitsOf(p)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, &CodecError{Payload: tr.goType.Name(), Reason: err.Error()}
	}
	if !tr.Fits(buf.Len()) {
		return nil, &CodecError{Payload: tr.goType.Name(),
			Reason: fmt.Sprintf("encoded %d bytes, layout wants %s", buf.Len(), tr.sizeString())}
	}
	return buf.Bytes(), nil
}

// DecodePayload decodes data into p. It never reads beyond data.
func DecodePayload(data []byte, p Payload) error {
	tr, err := TraitsOf(p)
	if err != nil {
		return err
	}
	if !tr.Fits(len(data)) {
		return &CodecError{Payload: tr.goType.Name(),
			Reason: fmt.Sprintf("have %d bytes, layout wants %s", len(data), tr.sizeString())}
	}
	r := bytes.NewReader(data)
	if err := Decode(r, p); err != nil {
		return &CodecError{Payload: tr.goType.Name(), Reason: err.Error()}
	}
	if r.Len() > 0 {
		return &CodecError{Payload: tr.goType.Name(),
			Reason: fmt.Sprintf("%d trailing bytes", r.Len())}
	}
	return nil
}

func (t *Traits) sizeString() string {
	if t.Variable {
		return fmt.Sprintf("at least %d", t.Size)
	}
	return fmt.Sprintf("%d", t.Size)
}
