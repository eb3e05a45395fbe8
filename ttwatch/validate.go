package ttwatch

import "fmt"

// Validate checks that pkt answers a request expecting wantType in
// direction wantDir: direction first, then message type, then the
// payload length against the registered layout.
func Validate(wantType MessageType, wantDir Direction, pkt *Packet) error {
	if pkt.Direction != wantDir {
		return &UnexpectedPacketError{
			WantType: wantType, GotType: pkt.Type,
			WantDir: wantDir, GotDir: pkt.Direction,
		}
	}
	if pkt.Type != wantType {
		return &UnexpectedPacketError{
			WantType: wantType, GotType: pkt.Type,
			WantDir: wantDir, GotDir: pkt.Direction,
		}
	}
	tr, ok := Lookup(wantType, wantDir)
	if !ok {
		return &MalformedPacketError{Reason: fmt.Sprintf("no layout registered for %s/%s", wantType, wantDir)}
	}
	if !tr.Fits(len(pkt.Payload)) {
		return &MalformedPacketError{
			Reason: fmt.Sprintf("%s carries %d payload bytes, layout wants %s",
				pkt.Type, len(pkt.Payload), tr.sizeString())}
	}
	return nil
}
