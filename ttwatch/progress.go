package ttwatch

import (
	"time"

	"github.com/paulbellamy/ratecounter"
)

// Progress of a file transfer. Total is -1 when unknown.
type Progress struct {
	ID    FileID
	Done  int64
	Total int64

	// Rate is bytes transferred during the last second.
	Rate int64
}

type ProgressFunc func(Progress)

type progress struct {
	fn   ProgressFunc
	rate *ratecounter.RateCounter
	p    Progress
}

func newProgress(fn ProgressFunc, id FileID, total int64) *progress {
	return &progress{
		fn:   fn,
		rate: ratecounter.NewRateCounter(time.Second),
		p:    Progress{ID: id, Total: total},
	}
}

func (p *progress) add(n int) {
	p.rate.Incr(int64(n))
	p.p.Done += int64(n)
	p.p.Rate = p.rate.Rate()
	if p.fn != nil {
		p.fn(p.p)
	}
}
