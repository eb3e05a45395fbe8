package ttwatch

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/atomic"

	"github.com/hanwen/go-ttwatch/log"
	"github.com/hanwen/go-ttwatch/transport"
)

// DefaultTimeout bounds the wait for a response.
const DefaultTimeout = 2 * time.Second

// drainTimeout is how long send waits for stale bytes before a
// request, once a previous exchange has failed.
const drainTimeout = 5 * time.Millisecond

// State of the request/response engine.
type State int32

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	if s == StateAwaitingResponse {
		return "awaiting-response"
	}
	return "idle"
}

// Outcome of the last exchange.
type Outcome int32

const (
	OutcomeNone Outcome = iota
	OutcomeMatched
	OutcomeTimedOut
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeTimedOut:
		return "timed-out"
	case OutcomeErrored:
		return "errored"
	}
	return "none"
}

// Handler runs one request/response exchange at a time over a
// transport. It never retries.
type Handler struct {
	t       transport.Transport
	timeout time.Duration
	strict  bool

	state   *atomic.Int32
	outcome *atomic.Int32
	counter uint8

	// resync is set when an exchange ended without its response,
	// so a late answer may still be in flight. Until a response
	// with the right counter arrives, others are discarded.
	resync bool

	log *log.Children
}

func NewHandler(t transport.Transport, timeout time.Duration, logs *log.Children) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logs == nil {
		logs = log.Quiet()
	}
	return &Handler{
		t:       t,
		timeout: timeout,
		state:   atomic.NewInt32(int32(StateIdle)),
		outcome: atomic.NewInt32(int32(OutcomeNone)),
		log:     logs,
	}
}

// SetStrictCounter makes responses whose counter differs from the
// request's fail with UnexpectedPacketError.
func (h *Handler) SetStrictCounter(on bool) {
	h.strict = on
}

func (h *Handler) State() State {
	return State(h.state.Load())
}

func (h *Handler) LastOutcome() Outcome {
	return Outcome(h.outcome.Load())
}

func (h *Handler) Timeout() time.Duration {
	return h.timeout
}

// Execute sends req and decodes the matching response into rep,
// which must be a pointer to the response type registered for req.
//
// Transport failures yield a ConnectionError, after which the
// connection should be closed. TimeoutError, MalformedPacketError,
// UnexpectedPacketError and CodecError only fail this request.
func (h *Handler) Execute(req, rep Payload) error {
	reqTr, err := TraitsOf(req)
	if err != nil {
		return err
	}
	if reqTr.Direction != DIR_TX || reqTr.Response == nil {
		return fmt.Errorf("%s is not a request with a response", reqTr)
	}
	if rt := reflect.TypeOf(rep); rt == nil || rt.Kind() != reflect.Ptr || rt.Elem() != reqTr.Response {
		return fmt.Errorf("%s is answered by %s, got %T", reqTr, reqTr.Response.Name(), rep)
	}
	repTr, _ := TraitsOf(rep)

	if !h.state.CAS(int32(StateIdle), int32(StateAwaitingResponse)) {
		return ErrBusy
	}
	defer h.state.Store(int32(StateIdle))

	err = h.runTransaction(reqTr, req, repTr, rep)
	switch {
	case err == nil:
		h.resync = false
		h.outcome.Store(int32(OutcomeMatched))
	case IsTimeout(err):
		h.resync = true
		h.outcome.Store(int32(OutcomeTimedOut))
	default:
		h.resync = true
		h.outcome.Store(int32(OutcomeErrored))
	}
	return err
}

// Send writes a request the watch does not answer.
func (h *Handler) Send(req Payload) error {
	tr, err := TraitsOf(req)
	if err != nil {
		return err
	}
	if tr.Direction != DIR_TX || tr.Response != nil {
		return fmt.Errorf("%s expects a response; use Execute", tr)
	}
	if !h.state.CAS(int32(StateIdle), int32(StateAwaitingResponse)) {
		return ErrBusy
	}
	defer h.state.Store(int32(StateIdle))

	_, err = h.send(tr, req)
	if err != nil {
		h.outcome.Store(int32(OutcomeErrored))
	} else {
		h.outcome.Store(int32(OutcomeMatched))
	}
	return err
}

func (h *Handler) runTransaction(reqTr *Traits, req Payload, repTr *Traits, rep Payload) error {
	out, err := h.send(reqTr, req)
	if err != nil {
		return err
	}

	in, err := h.receive(reqTr.Type, out.Counter)
	if err != nil {
		return err
	}
	if err := Validate(repTr.Type, DIR_RX, in); err != nil {
		return err
	}
	if h.strict && in.Counter != out.Counter {
		return &UnexpectedPacketError{
			WantType: repTr.Type, GotType: in.Type, WantDir: DIR_RX, GotDir: in.Direction,
			Reason: fmt.Sprintf("counter %d, want %d", in.Counter, out.Counter),
		}
	}
	if err := DecodePayload(in.Payload, rep); err != nil {
		return err
	}
	h.log.Proto.Debugf("response %s %+v", in.Header, rep)
	return nil
}

func (h *Handler) send(tr *Traits, req Payload) (*Packet, error) {
	payload, err := EncodePayload(req)
	if err != nil {
		return nil, err
	}
	pkt, err := Wrap(tr.Type, DIR_TX, h.counter, payload)
	if err != nil {
		return nil, &CodecError{Payload: tr.goType.Name(), Reason: err.Error()}
	}
	h.counter++

	if h.resync {
		if err := h.drain(); err != nil {
			return nil, err
		}
	}

	h.log.Proto.Debugf("request %s %+v", pkt.Header, req)
	raw := pkt.Bytes()
	h.dataPrint("send", raw)
	if err := h.t.Write(raw); err != nil {
		return nil, &ConnectionError{Op: "write " + tr.Type.String(), Err: err}
	}
	return pkt, nil
}

// drain discards whatever the transport still holds from earlier
// exchanges.
func (h *Handler) drain() error {
	for {
		chunk, err := h.t.Read(drainTimeout)
		if errors.Is(err, transport.ErrTimeout) {
			return nil
		}
		if err != nil {
			return &ConnectionError{Op: "drain", Err: err}
		}
		h.dataPrint("stale", chunk)
	}
}

// receive collects transport chunks until a whole packet is present
// or the deadline passes. Bytes past the packet are padding and are
// dropped. While resynchronising, packets whose counter differs from
// counter are discarded.
func (h *Handler) receive(op MessageType, counter uint8) (*Packet, error) {
	deadline := time.Now().Add(h.timeout)
	var buf []byte
	for {
		n, err := frameSize(buf)
		if err != nil {
			return nil, err
		}
		if n > 0 && len(buf) >= n {
			if len(buf) > n {
				h.log.Data.Debugf("dropping %d bytes after packet", len(buf)-n)
			}
			pkt, err := Unwrap(buf)
			if err != nil {
				return nil, err
			}
			if !h.resync || pkt.Counter == counter {
				return pkt, nil
			}
			h.log.Proto.Infof("discarding late response %s, waiting for counter %d", pkt.Header, counter)
			buf = nil
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, h.expired(op, buf)
		}
		chunk, err := h.t.Read(remaining)
		if errors.Is(err, transport.ErrTimeout) {
			return nil, h.expired(op, buf)
		}
		if err != nil {
			return nil, &ConnectionError{Op: "read " + op.String(), Err: err}
		}
		h.dataPrint("recv", chunk)
		buf = append(buf, chunk...)
	}
}

func (h *Handler) expired(op MessageType, buf []byte) error {
	if len(buf) == 0 {
		return &TimeoutError{Op: op.String(), After: h.timeout}
	}
	return &MalformedPacketError{Reason: fmt.Sprintf("truncated: %d bytes before timeout", len(buf))}
}

// Prints data going over the transport.
func (h *Handler) dataPrint(dir string, data []byte) {
	if !h.log.Data.IsDebug() {
		return
	}
	h.log.Data.Debugf("%s: 0x%x bytes:\n%s", dir, len(data), hexDump(data))
}
