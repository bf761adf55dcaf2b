package throttle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// maxBurst caps the limiter's bucket so a single large read cannot
// drain more than this many bytes without waiting.
const maxBurst = 64 << 10 // 64KB

// reader is an io.Reader, using the time/rate token bucket
// limiter to restrict the number of bytes per second.
type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
	bps     int64
	burst   int
	logFn   func() *slog.Logger
}

// NewReader returns an io.Reader that throttles reads from r to bps bytes
// per second using a token bucket rate limiter. logFn lazily resolves the
// logger at read time. A nil-returning logFn skips wait logging.
func NewReader(ctx context.Context, r io.Reader, bps int64, logFn func() *slog.Logger) (io.Reader, error) {
	if bps <= 0 {
		return nil, fmt.Errorf("bytes per second[%d] %w", bps, ErrMustNotBeZero)
	}

	burst := int(min(bps, maxBurst))

	t := &reader{
		ctx:     ctx,
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bps), burst),
		bps:     bps,
		burst:   burst,
		logFn:   logFn,
	}

	// Start with an empty bucket so the first read is paced as well.
	t.limiter.AllowN(time.Now(), burst)

	return t, nil
}

// Read never hands out more than one bucket's worth of bytes, then waits
// for enough tokens to cover what was actually read.
func (t *reader) Read(p []byte) (int, error) {
	if err := t.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if len(p) > t.burst {
		p = p[:t.burst]
	}

	n, err := t.r.Read(p)
	if n <= 0 {
		return n, err
	}

	if werr := t.wait(n); werr != nil {
		return n, werr
	}

	return n, err
}

func (t *reader) wait(n int) error {
	var waited time.Duration

	var logger *slog.Logger
	if t.logFn != nil {
		logger = t.logFn()
	}

	if logger != nil && t.limiter.Tokens() < float64(n) {
		logger.Info("throttle tokens exhausted", "bps", t.bps, "bytes", n)

		defer func() {
			logger.Info("throttle wait complete", "waited", waited.String(), "bps", t.bps)
		}()
	}

	start := time.Now()

	err := t.limiter.WaitN(t.ctx, n)
	waited = time.Since(start)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := t.ctx.Err(); err != nil { // Check context hasn't expired again.
		return fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return nil
}
