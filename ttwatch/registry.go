package ttwatch

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
)

// Traits describe how a payload type travels on the wire.
type Traits struct {
	Type      MessageType
	Direction Direction

	// Size is the exact encoded size, or the minimum size when
	// Variable is set.
	Size     int
	Variable bool

	// Response is the payload type answering a request, nil for
	// responses and for requests the watch does not answer.
	Response reflect.Type

	goType reflect.Type
}

// Fits reports whether n payload bytes are consistent with the
// layout.
func (t *Traits) Fits(n int) bool {
	if t.Variable {
		return n >= t.Size && n <= MaxPayloadSize
	}
	return n == t.Size
}

// New returns a pointer to a zero payload of this type.
func (t *Traits) New() Payload {
	return reflect.New(t.goType).Interface()
}

func (t *Traits) String() string {
	return fmt.Sprintf("%s/%s (%s)", t.Type, t.Direction, t.goType.Name())
}

type traitKey struct {
	t MessageType
	d Direction
}

var (
	traitsByGoType = map[reflect.Type]*Traits{}
	traitsByKey    = map[traitKey]*Traits{}
)

// register adds a payload type. It panics on a second registration
// of the same Go type or the same (type, direction) pair, so the
// mapping stays injective.
func register(p Payload, t MessageType, d Direction) *Traits {
	rt := reflect.TypeOf(p)
	if rt.Kind() != reflect.Ptr || rt.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("payload %T must be a struct pointer", p))
	}
	rt = rt.Elem()
	if prev, ok := traitsByGoType[rt]; ok {
		panic(fmt.Sprintf("payload %s registered twice, first as %s", rt.Name(), prev))
	}
	k := traitKey{t, d}
	if prev, ok := traitsByKey[k]; ok {
		panic(fmt.Sprintf("payload %s collides with %s", rt.Name(), prev))
	}

	var buf bytes.Buffer
	if err := Encode(&buf, reflect.New(rt).Interface()); err != nil {
		panic(fmt.Sprintf("payload %s: %v", rt.Name(), err))
	}
	tr := &Traits{
		Type:      t,
		Direction: d,
		Size:      buf.Len(),
		Variable:  hasTail(rt),
		goType:    rt,
	}
	traitsByGoType[rt] = tr
	traitsByKey[k] = tr
	return tr
}

// pair registers a request and the response that answers it. rep
// may be nil for requests without response.
func pair(req, rep Payload, reqType, repType MessageType) {
	tr := register(req, reqType, DIR_TX)
	if rep != nil {
		tr.Response = register(rep, repType, DIR_RX).goType
	}
}

// hasTail reports whether the last field of the struct consumes the
// rest of the payload.
func hasTail(t reflect.Type) bool {
	if t.NumField() == 0 {
		return false
	}
	f := t.Field(t.NumField() - 1)
	switch f.Type.Kind() {
	case reflect.Slice, reflect.String:
		return true
	case reflect.Struct:
		return hasTail(f.Type)
	}
	return false
}

// TraitsOf returns the traits of a registered payload.
func TraitsOf(p Payload) (*Traits, error) {
	rt := reflect.TypeOf(p)
	if rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	tr, ok := traitsByGoType[rt]
	if !ok {
		return nil, &CodecError{Payload: fmt.Sprintf("%T", p), Reason: "not a registered payload"}
	}
	return tr, nil
}

// Lookup returns the traits registered for a message type and
// direction.
func Lookup(t MessageType, d Direction) (*Traits, bool) {
	tr, ok := traitsByKey[traitKey{t, d}]
	return tr, ok
}

// Registered lists all payload traits, ordered by type and direction.
func Registered() []*Traits {
	var all []*Traits
	for _, tr := range traitsByKey {
		all = append(all, tr)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Type != all[j].Type {
			return all[i].Type < all[j].Type
		}
		return all[i].Direction > all[j].Direction
	})
	return all
}
