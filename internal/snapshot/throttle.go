package snapshot

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Throttle limits a reader to bytesPerSec. Reads are split into chunks no
// larger than the burst so a single large read cannot overrun the budget.
type Throttle struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewThrottle returns r unchanged when bytesPerSec <= 0.
func NewThrottle(ctx context.Context, r io.Reader, bytesPerSec int) io.Reader {
	if bytesPerSec <= 0 {
		return r
	}
	burst := min(bytesPerSec, 256<<10)
	return &Throttle{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

func (t *Throttle) Read(p []byte) (int, error) {
	if b := t.limiter.Burst(); len(p) > b {
		p = p[:b]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
