package transport

import (
	"sync"
	"time"
)

// PipeEnd is one side of an in-memory transport. Whatever one end
// writes, the other end reads, one chunk per Write.
type PipeEnd struct {
	in   chan []byte
	peer *PipeEnd
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected ends. Closing either closes both.
func Pipe() (*PipeEnd, *PipeEnd) {
	done := make(chan struct{})
	once := &sync.Once{}
	a := &PipeEnd{in: make(chan []byte, 64), done: done, once: once}
	b := &PipeEnd{in: make(chan []byte, 64), done: done, once: once}
	a.peer, b.peer = b, a
	return a, b
}

func (p *PipeEnd) Write(data []byte) error {
	c := append([]byte{}, data...)
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.in <- c:
		return nil
	case <-p.done:
		return ErrClosed
	}
}

func (p *PipeEnd) Read(timeout time.Duration) ([]byte, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case b := <-p.in:
		return b, nil
	case <-p.done:
		return nil, ErrClosed
	case <-t.C:
		return nil, ErrTimeout
	}
}

func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
