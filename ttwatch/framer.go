package ttwatch

import "fmt"

// Wrap builds a packet around an encoded payload.
func Wrap(t MessageType, d Direction, counter uint8, payload []byte) (*Packet, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload of %d bytes exceeds maximum %d", len(payload), MaxPayloadSize)
	}
	return &Packet{
		Header: Header{
			Direction: d,
			Length:    uint8(len(payload) + 2),
			Counter:   counter,
			Type:      t,
		},
		Payload: payload,
	}, nil
}

// Bytes returns the wire representation of the packet.
func (p *Packet) Bytes() []byte {
	b := make([]byte, HeaderSize, HeaderSize+len(p.Payload))
	b[0] = byte(p.Direction)
	b[1] = p.Length
	b[2] = p.Counter
	b[3] = byte(p.Type)
	return append(b, p.Payload...)
}

// frameSize returns the total size of the packet at the front of
// raw, or 0 if the header is not complete yet.
func frameSize(raw []byte) (int, error) {
	if len(raw) < HeaderSize {
		return 0, nil
	}
	if raw[1] < 2 {
		return 0, &MalformedPacketError{Reason: fmt.Sprintf("header length %d below minimum 2", raw[1])}
	}
	return HeaderSize - 2 + int(raw[1]), nil
}

// Unwrap parses the packet at the front of raw. Bytes beyond the
// declared length are ignored; USB reports arrive zero padded. The
// payload is copied out of raw.
func Unwrap(raw []byte) (*Packet, error) {
	if len(raw) < HeaderSize {
		return nil, &MalformedPacketError{
			Reason: fmt.Sprintf("have %d bytes, header needs %d", len(raw), HeaderSize)}
	}
	n, err := frameSize(raw)
	if err != nil {
		return nil, err
	}
	if n > len(raw) {
		return nil, &MalformedPacketError{
			Reason: fmt.Sprintf("header announces %d payload bytes, have %d", n-HeaderSize, len(raw)-HeaderSize)}
	}

	p := &Packet{
		Header: Header{
			Direction: Direction(raw[0]),
			Length:    raw[1],
			Counter:   raw[2],
			Type:      MessageType(raw[3]),
		},
	}
	p.Payload = append([]byte{}, raw[HeaderSize:n]...)
	return p, nil
}
