package squeeze

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/sqzarchive/squeeze/entry"
	"github.com/sqzarchive/squeeze/internal/blockcodec"
	"github.com/sqzarchive/squeeze/internal/scheduler"
)

const blockQueueDepth = 4

// PendingAppend is one entry scheduled by WillAppend but not yet written;
// PerformAppends resolves it. Wait blocks until that entry's write has
// finished (success or this entry's own failure), per spec section 4.9.
type PendingAppend struct {
	header      entry.EntryHeader
	input       entry.EntryInput
	compression entry.CompressionParams
	status      *scheduler.Status
}

// Wait blocks until PerformAppends has written (or failed to write) this
// entry. Called before PerformAppends has picked the entry up, it returns
// nil at once without waiting.
func (p *PendingAppend) Wait() error {
	if p.status == nil {
		return nil
	}
	return p.status.Wait()
}

// WillAppend registers input for writing on the next PerformAppends call.
// compression is ignored for Directory and Symlink entries, which are
// always written uncompressed. Returns an error immediately (before any
// scheduling) if input's path or type cannot be encoded at all.
func (a *Archive) WillAppend(input entry.EntryInput, compression entry.CompressionParams) (*PendingAppend, error) {
	path := input.Path()
	if len(path) > 0xFFFF {
		return nil, ErrPathTooLong
	}
	typ := input.Attributes().Type()
	if typ != entry.TypeRegularFile && typ != entry.TypeDirectory && typ != entry.TypeSymlink {
		return nil, entry.ErrInvalidEntryType
	}

	params := compression
	if typ != entry.TypeRegularFile {
		params = entry.CompressionParams{Method: blockcodec.MethodNone}
	}

	p := &PendingAppend{
		input:       input,
		compression: params,
		header: entry.EntryHeader{
			Version:     entry.FormatVersion,
			Compression: params,
			Attributes:  input.Attributes(),
			Path:        path,
		},
	}
	a.pendingAppends = append(a.pendingAppends, p)
	return p, nil
}

// PerformAppends writes every entry registered since the last PerformAppends
// call, in registration order, and waits for all of them to finish. It
// returns a non-nil error only for a hard I/O failure on the output stream;
// per-entry logical failures (a bad input reader, a symlink with no target)
// are instead recorded on that entry's PendingAppend and do not stop the
// others (spec section 7's propagation rule).
func (a *Archive) PerformAppends() error {
	pending := a.pendingAppends
	a.pendingAppends = nil
	if len(pending) == 0 {
		return nil
	}

	pos, err := a.end()
	if err != nil {
		return mark(err, ErrStreamWrite)
	}

	sch := scheduler.NewAppendScheduler(a.rw, pos)
	sch.SetLogger(a.logger)
	for _, p := range pending {
		task := scheduler.NewEntryTask(p.header, blockQueueDepth)
		p.status = task.Status
		sch.ScheduleEntry(task)
		a.scheduleContent(task, p)
	}
	sch.Finalize()
	if err := sch.Wait(); err != nil {
		return mark(err, ErrStreamWrite)
	}
	return nil
}

// scheduleContent pushes p's content onto task.Blocks and closes it once
// exhausted. Running on the caller's (producer) goroutine keeps block order
// naturally tied to read order, per spec section 5.
func (a *Archive) scheduleContent(task *scheduler.EntryTask, p *PendingAppend) {
	defer task.Blocks.Close()

	switch p.header.Attributes.Type() {
	case entry.TypeDirectory:
		return

	case entry.TypeSymlink:
		target, err := p.input.SymlinkTarget()
		if err != nil {
			task.Blocks.Push(scheduler.ErrorTask(mark(err, ErrInputRead)))
			return
		}
		if target == "" {
			task.Blocks.Push(scheduler.ErrorTask(ErrSymlinkNoTarget))
			return
		}
		task.Blocks.Push(scheduler.StringTask(target))

	case entry.TypeRegularFile:
		a.scheduleFileContent(task, p)
	}
}

func (a *Archive) scheduleFileContent(task *scheduler.EntryTask, p *PendingAppend) {
	rc, err := p.input.Open()
	if err != nil {
		task.Blocks.Push(scheduler.ErrorTask(mark(err, ErrInputInit)))
		return
	}
	defer rc.Close()

	method := p.compression.Method
	level := p.compression.Level
	size := blockcodec.BlockSize(int(level))
	buf := make([]byte, size)
	for {
		n, rerr := io.ReadFull(rc, buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if method == blockcodec.MethodNone {
				task.Blocks.Push(scheduler.BufferTask(chunk))
			} else {
				task.Blocks.Push(scheduler.FutureTask(a.pool.Encode(chunk, method, level)))
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return
			}
			task.Blocks.Push(scheduler.ErrorTask(mark(rerr, ErrInputRead)))
			return
		}
	}
}
