package client

import (
	"io"
	"sync"
)

// ProgressFunc receives upload progress in percent. Calls are non-decreasing
// and 100 is reported only once the server has accepted the upload.
type ProgressFunc func(percent int)

// progress deduplicates and orders reports.
type progress struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last int
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn, last: -1}
}

func (p *progress) report(pct int) {
	if p == nil || p.fn == nil {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

// progressReader reports transfer progress of a body of known size. It tops
// out at 99 so completion stays tied to the server response.
type progressReader struct {
	r     io.Reader
	total int64
	sent  int64
	p     *progress
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 && pr.total > 0 {
		pr.sent += int64(n)
		pct := int(pr.sent * 100 / pr.total)
		if pct > 99 {
			pct = 99
		}
		pr.p.report(pct)
	}
	return n, err
}
