package pool

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sqzarchive/squeeze/internal/blockcodec"
)

func TestThreadPoolRunsAllTasks(t *testing.T) {
	tp := NewThreadPool(4)
	results := make([]*Future[int], 10)
	for i := range results {
		i := i
		f := NewFuture[int]()
		results[i] = f
		tp.Submit(func() error {
			f.Resolve(i*i, nil)
			return nil
		})
	}
	if err := tp.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for i, f := range results {
		v, err := f.Get()
		if err != nil || v != i*i {
			t.Fatalf("task %d: got (%d,%v) want (%d,nil)", i, v, err, i*i)
		}
	}
}

func TestTaskQueueFIFO(t *testing.T) {
	q := NewTaskQueue[int](0)
	go func() {
		for i := 0; i < 5; i++ {
			q.Push(i)
		}
		q.Close()
	}()
	var got []int
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got %v, want sequential 0..4", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("got %d items, want 5", len(got))
	}
}

func TestEncoderPoolEncodesAndCaches(t *testing.T) {
	p := NewEncoderPool(2)
	data := []byte("hello hello hello hello hello hello")

	f1 := p.Encode(data, blockcodec.MethodDeflate, 6)
	out1, err := f1.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	got, err := blockcodec.Decode(bytes.NewReader(out1), int64(len(out1)), blockcodec.MethodDeflate, 6)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round-trip mismatch")
	}

	f2 := p.Encode(data, blockcodec.MethodDeflate, 6)
	out2, err := f2.Get()
	if err != nil {
		t.Fatalf("Get (cached): %v", err)
	}
	if !bytes.Equal(out1, out2) {
		t.Fatalf("cached encode differs from original")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestScheduleStreamEncodeOrdersFutures(t *testing.T) {
	p := NewEncoderPool(4)
	src := strings.Repeat("abcdefgh", 2000) // larger than one level-0 block (4 KiB)
	futures := p.ScheduleStreamEncode(strings.NewReader(src), blockcodec.MethodHuffman, 0)

	var out bytes.Buffer
	blockSize := blockcodec.BlockSize(0)
	remaining := len(src)
	for f := range futures {
		chunk, err := f.Get()
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		n := blockSize
		if n > remaining {
			n = remaining
		}
		decoded, err := blockcodec.Decode(bytes.NewReader(chunk), int64(len(chunk)), blockcodec.MethodHuffman, 0)
		if err != nil {
			t.Fatalf("Decode chunk: %v", err)
		}
		out.Write(decoded)
		remaining -= n
	}
	if out.String() != src {
		t.Fatalf("stream-encoded chunks did not reassemble source (got %d bytes, want %d)", out.Len(), len(src))
	}
}
