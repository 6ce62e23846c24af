package pool

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"

	"github.com/sqzarchive/squeeze/internal/blockcodec"
)

const (
	blockCacheSize    = 4096
	blockCacheSamples = blockCacheSize * 10
)

// blockKey addresses a cached compressed block by the content hash of its
// plaintext plus the method/level that produced it, so the same bytes under
// a different CompressionParams never collide.
type blockKey uint64

func keyFor(data []byte, method blockcodec.Method, level uint8) blockKey {
	h := xxhash.Sum64(data)
	return blockKey(h ^ uint64(method)<<61 ^ uint64(level)<<53)
}

func identityHash(k blockKey) uint64 { return uint64(k) }

// EncoderPool schedules block-compression tasks onto a ThreadPool and
// deduplicates identical (content, method, level) blocks through a
// content-addressed cache, per spec sections 4.9/4.10.
type EncoderPool struct {
	tp     *ThreadPool
	cache  *tinylfu.T[blockKey, []byte]
	logger *slog.Logger
}

// NewEncoderPool creates a pool with workers worker goroutines (<=0 means
// available CPU cores). Logging goes to slog.Default(); use SetLogger to
// override it.
func NewEncoderPool(workers int) *EncoderPool {
	return &EncoderPool{
		tp:     NewThreadPool(workers),
		cache:  tinylfu.New[blockKey, []byte](blockCacheSize, blockCacheSamples, identityHash),
		logger: slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (p *EncoderPool) SetLogger(l *slog.Logger) { p.logger = l }

// Encode submits one block for compression, returning a Future for its
// compressed bytes. A cache hit resolves the future immediately without
// touching the pool.
func (p *EncoderPool) Encode(data []byte, method blockcodec.Method, level uint8) *Future[[]byte] {
	fut := NewFuture[[]byte]()
	key := keyFor(data, method, level)
	if cached, ok := p.cache.Get(key); ok {
		p.logger.Debug("block cache hit", "key", key, "len", len(data))
		fut.Resolve(cached, nil)
		return fut
	}
	p.logger.Debug("block scheduled", "key", key, "len", len(data), "method", method, "level", level)
	p.tp.Submit(func() error {
		var buf bytes.Buffer
		err := blockcodec.Encode(&buf, data, method, int(level))
		if err != nil {
			p.logger.Error("block encode failed", "key", key, "err", err)
			fut.Resolve(nil, err)
			return err
		}
		out := buf.Bytes()
		p.cache.Add(key, out)
		fut.Resolve(out, nil)
		return nil
	})
	return fut
}

// ScheduleStreamEncode reads BlockSize(level) chunks from r, submitting one
// task per full chunk and yielding its Future on the returned channel in
// submission order; a final partial chunk is submitted too, but an empty
// one is not. The channel is closed once r is exhausted or a read error
// occurs (in which case a final, already-failed Future carries the error).
func (p *EncoderPool) ScheduleStreamEncode(r io.Reader, method blockcodec.Method, level uint8) <-chan *Future[[]byte] {
	out := make(chan *Future[[]byte])
	size := blockcodec.BlockSize(int(level))
	go func() {
		defer close(out)
		buf := make([]byte, size)
		for {
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				out <- p.Encode(chunk, method, level)
			}
			if err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return
				}
				failed := NewFuture[[]byte]()
				failed.Resolve(nil, err)
				out <- failed
				return
			}
		}
	}()
	return out
}

// Close drains all outstanding tasks and blocks until the pool's workers
// have finished, per spec section 4.10's "destroying the pool blocks until
// the queue empties".
func (p *EncoderPool) Close() error {
	return p.tp.Wait()
}
