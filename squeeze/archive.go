package squeeze

import (
	"io"
	"log/slog"

	"github.com/sqzarchive/squeeze/internal/pool"
)

// Archive is a squeeze archive bound to an underlying stream. The stream is
// owned by the caller; Archive never opens or closes it (spec section 5's
// "all file/stream handles are owned by the caller").
type Archive struct {
	rw     io.ReadWriteSeeker
	pool   *pool.EncoderPool
	logger *slog.Logger

	pendingAppends []*PendingAppend
	pendingRemoves []*PendingRemove
}

// Option configures an Archive at construction time.
type Option func(*Archive)

// WithWorkers sets the EncoderPool's worker count (<=0 means available CPU
// cores, the default).
func WithWorkers(n int) Option {
	return func(a *Archive) { a.pool = pool.NewEncoderPool(n) }
}

// WithLogger overrides the default logger (slog.Default()) used for
// per-block scheduling events, recoverable per-entry failures, and hard I/O
// errors.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// Open binds an Archive to rw. rw's current contents (if any) are treated as
// the existing archive; appends land at its current end, per spec section
// 4.9.
func Open(rw io.ReadWriteSeeker, opts ...Option) *Archive {
	a := &Archive{rw: rw, pool: pool.NewEncoderPool(0), logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	a.pool.SetLogger(a.logger)
	return a
}

// Close drains the Archive's EncoderPool, blocking until every outstanding
// compression task has finished (spec section 5's ThreadPool lifecycle).
func (a *Archive) Close() error {
	return a.pool.Close()
}

func (a *Archive) end() (int64, error) {
	return a.rw.Seek(0, io.SeekEnd)
}
