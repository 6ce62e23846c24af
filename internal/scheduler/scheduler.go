// Package scheduler implements AppendScheduler: it serializes an output
// stream while multiple compression workers race ahead of it, per spec
// section 4.9.
package scheduler

import (
	"io"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/sqzarchive/squeeze/entry"
	"github.com/sqzarchive/squeeze/internal/pool"
)

// ErrUnknownBlockTask is an internal consistency error: a BlockTask was
// constructed outside this package's constructors.
var ErrUnknownBlockTask = errors.New("scheduler: unknown block task kind")

type blockTaskKind uint8

const (
	blockTaskBuffer blockTaskKind = iota
	blockTaskFuture
	blockTaskString
	blockTaskError
)

// BlockTask is one unit of an entry's inner queue: a ready buffer, a future
// that will resolve to one, a raw string (used for symlink targets, which
// are never compressed), or an error that aborts the entry.
type BlockTask struct {
	kind   blockTaskKind
	buf    []byte
	future *pool.Future[[]byte]
	str    string
	err    error
}

func BufferTask(buf []byte) BlockTask                { return BlockTask{kind: blockTaskBuffer, buf: buf} }
func FutureTask(f *pool.Future[[]byte]) BlockTask    { return BlockTask{kind: blockTaskFuture, future: f} }
func StringTask(s string) BlockTask                  { return BlockTask{kind: blockTaskString, str: s} }
func ErrorTask(err error) BlockTask                  { return BlockTask{kind: blockTaskError, err: err} }

func (t BlockTask) bytes() ([]byte, error) {
	switch t.kind {
	case blockTaskBuffer:
		return t.buf, nil
	case blockTaskFuture:
		return t.future.Get()
	case blockTaskString:
		return []byte(t.str), nil
	case blockTaskError:
		return nil, t.err
	default:
		return nil, ErrUnknownBlockTask
	}
}

// Status is an entry's per-run outcome slot, written exactly once by the
// scheduler's runner goroutine.
type Status struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewStatus() *Status { return &Status{done: make(chan struct{})} }

func (s *Status) resolve(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Wait blocks until the entry's run has finished, returning its error (nil
// on success).
func (s *Status) Wait() error {
	<-s.done
	return s.err
}

// EntryTask is one outer-queue item: a header to write (its ContentSize is
// a placeholder, patched in place once the real size is known) and the
// entry's inner FIFO of block tasks.
type EntryTask struct {
	Header entry.EntryHeader
	Blocks *pool.TaskQueue[BlockTask]
	Status *Status
}

// NewEntryTask creates an EntryTask with a fresh inner queue and status
// slot. Callers push BlockTasks to Blocks and call Blocks.Close() once the
// entry's content is fully scheduled (spec's finalize_entry_append).
func NewEntryTask(header entry.EntryHeader, blockBuffer int) *EntryTask {
	return &EntryTask{
		Header: header,
		Blocks: pool.NewTaskQueue[BlockTask](blockBuffer),
		Status: NewStatus(),
	}
}

// AppendScheduler drains a single-producer outer queue of EntryTasks on one
// runner goroutine, writing headers and content to w in submission order
// and patching each header's content_size once its content is fully
// written.
type AppendScheduler struct {
	w      io.WriteSeeker
	outer  *pool.TaskQueue[*EntryTask]
	pos    int64
	logger *slog.Logger

	done chan struct{}
	err  error
}

// NewAppendScheduler starts the runner goroutine. startPos is the stream
// offset the first scheduled entry's header will be written at (the current
// end of the archive). Logging goes to slog.Default(); use SetLogger to
// override it.
func NewAppendScheduler(w io.WriteSeeker, startPos int64) *AppendScheduler {
	s := &AppendScheduler{
		w:      w,
		outer:  pool.NewTaskQueue[*EntryTask](0),
		pos:    startPos,
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// SetLogger overrides the default logger, as long as it is called before
// any entry has been scheduled.
func (s *AppendScheduler) SetLogger(l *slog.Logger) { s.logger = l }

// ScheduleEntry enqueues an entry for writing. The Appender is the single
// producer; this may block if the outer queue has no buffer and the runner
// is busy.
func (s *AppendScheduler) ScheduleEntry(t *EntryTask) { s.outer.Push(t) }

// Finalize closes the outer queue: no more entries will be scheduled. Wait
// will return once the runner has drained everything already queued.
func (s *AppendScheduler) Finalize() { s.outer.Close() }

// Wait blocks until the outer queue has been closed and drained, returning
// the first hard I/O error encountered (per-entry logical errors are
// reported through each EntryTask's Status, not here).
func (s *AppendScheduler) Wait() error {
	<-s.done
	return s.err
}

func (s *AppendScheduler) run() {
	defer close(s.done)
	for {
		t, ok := s.outer.Pop()
		if !ok {
			return
		}
		if err := s.runEntry(t); err != nil {
			s.err = err
			return
		}
	}
}

// runEntry writes one entry's header and content, returning non-nil only
// for a hard I/O failure (which aborts the whole runner). A block-level
// logical error instead aborts just this entry and is reported through
// t.Status.
func (s *AppendScheduler) runEntry(t *EntryTask) error {
	initialPos := s.pos
	header := t.Header
	header.ContentSize = 0
	s.logger.Debug("scheduling entry", "path", header.Path, "pos", initialPos)
	if err := header.Encode(s.w); err != nil {
		s.rewind(initialPos)
		return err
	}
	s.pos += int64(entry.StaticHeaderSize) + int64(len(header.Path))
	contentPos := s.pos

	for {
		bt, ok := t.Blocks.Pop()
		if !ok {
			break
		}
		buf, err := bt.bytes()
		if err != nil {
			s.logger.Warn("entry aborted by block error", "path", header.Path, "err", err)
			t.Status.resolve(err)
			s.drainAndDiscard(t.Blocks)
			s.rewind(initialPos)
			return nil
		}
		if _, err := s.w.Write(buf); err != nil {
			s.rewind(initialPos)
			return err
		}
		s.pos += int64(len(buf))
	}

	finalPos := s.pos
	contentSize := uint64(finalPos - contentPos)
	if err := entry.RewriteContentSize(s.w, initialPos, contentSize); err != nil {
		return err
	}
	if _, err := s.w.Seek(finalPos, io.SeekStart); err != nil {
		return err
	}
	s.pos = finalPos

	t.Status.resolve(nil) // no-op if a block error already resolved it
	return nil
}

// drainAndDiscard empties the rest of an aborted entry's inner queue so its
// producer (still pushing blocks concurrently) never blocks forever on a
// queue nobody is reading anymore.
func (s *AppendScheduler) drainAndDiscard(q *pool.TaskQueue[BlockTask]) {
	for {
		if _, ok := q.Pop(); !ok {
			return
		}
	}
}

func (s *AppendScheduler) rewind(pos int64) {
	if _, err := s.w.Seek(pos, io.SeekStart); err != nil {
		s.logger.Error("rewind failed", "pos", pos, "err", err)
		return
	}
	s.pos = pos
	// Everything past pos belongs to the failed entry; drop it where the
	// stream supports truncation so no partial header is left behind.
	if t, ok := s.w.(interface{ Truncate(int64) error }); ok {
		if err := t.Truncate(pos); err != nil {
			s.logger.Error("truncate after rewind failed", "pos", pos, "err", err)
		}
	}
}
