// Package ratelimit throttles data-connection throughput.
//
// It wraps golang.org/x/time/rate with io.Reader and io.Writer adapters
// that honour a context, so a transfer blocked on the limiter ends when
// its session is torn down.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxChunk bounds a single read or write so waits stay short and the
// limiter is consulted often enough to be accurate.
const maxChunk = 32 * 1024

// Limiter limits a byte rate. A nil *Limiter means unlimited.
type Limiter struct {
	lim *rate.Limiter
}

// New returns a limiter for bytesPerSecond, or nil if the rate is not
// positive. The bucket holds one second worth of data, capped to maxChunk.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(min(bytesPerSecond, maxChunk))
	return &Limiter{lim: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

func (l *Limiter) chunk(n int) int {
	return min(n, l.lim.Burst())
}

func (l *Limiter) wait(ctx context.Context, n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	return l.lim.WaitN(ctx, n)
}

type reader struct {
	ctx      context.Context
	r        io.Reader
	limiters []*Limiter
}

// NewReader returns r throttled by every non-nil limiter. If none are set
// r is returned unchanged.
func NewReader(ctx context.Context, r io.Reader, limiters ...*Limiter) io.Reader {
	active := compact(limiters)
	if len(active) == 0 {
		return r
	}
	return &reader{ctx: ctx, r: r, limiters: active}
}

func (r *reader) Read(p []byte) (int, error) {
	size := len(p)
	for _, l := range r.limiters {
		size = l.chunk(size)
	}
	n, err := r.r.Read(p[:size])
	for _, l := range r.limiters {
		if werr := l.wait(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type writer struct {
	ctx      context.Context
	w        io.Writer
	limiters []*Limiter
}

// NewWriter returns w throttled by every non-nil limiter. If none are set
// w is returned unchanged.
func NewWriter(ctx context.Context, w io.Writer, limiters ...*Limiter) io.Writer {
	active := compact(limiters)
	if len(active) == 0 {
		return w
	}
	return &writer{ctx: ctx, w: w, limiters: active}
}

func (w *writer) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		size := len(p) - total
		for _, l := range w.limiters {
			size = l.chunk(size)
		}
		for _, l := range w.limiters {
			if err := l.wait(w.ctx, size); err != nil {
				return total, err
			}
		}
		n, err := w.w.Write(p[total : total+size])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func compact(limiters []*Limiter) []*Limiter {
	var out []*Limiter
	for _, l := range limiters {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}
