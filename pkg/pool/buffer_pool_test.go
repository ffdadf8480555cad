package pool

import (
	"bytes"
	"testing"
)

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool(1024)

	buf := pool.Get()
	if buf.Len() != 0 {
		t.Errorf("expected fresh buffer to be empty, got len %d", buf.Len())
	}
	if buf.Cap() < 1024 {
		t.Errorf("expected buffer capacity >= 1024, got %d", buf.Cap())
	}

	buf.WriteString("hello")
	pool.Put(buf)

	buf2 := pool.Get()
	if buf2.Len() != 0 {
		t.Errorf("expected reused buffer to be reset, got len %d", buf2.Len())
	}
}

func TestBufferPoolConcurrent(t *testing.T) {
	pool := NewBufferPool(512)
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				buf := pool.Get()
				buf.WriteByte(byte(j))
				pool.Put(buf)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestEnvelopeBufferPool(t *testing.T) {
	buf := EnvelopeBufferPool.Get()
	if buf.Len() != 0 {
		t.Errorf("expected empty buffer, got len %d", buf.Len())
	}
	buf.WriteString(`{"dest":"a.b.c"}`)
	EnvelopeBufferPool.Put(buf)

	buf2 := EnvelopeBufferPool.Get()
	if buf2.Len() != 0 {
		t.Errorf("expected buffer reset after Put/Get, got len %d", buf2.Len())
	}
}

func BenchmarkBufferPoolGetPut(b *testing.B) {
	pool := NewBufferPool(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := pool.Get()
		pool.Put(buf)
	}
}

func BenchmarkBufferPoolGetPutParallel(b *testing.B) {
	pool := NewBufferPool(1024)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := pool.Get()
			pool.Put(buf)
		}
	})
}

func BenchmarkNoPooling(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := make([]byte, 1024)
		_ = buf
	}
}

func TestBufferPoolMultipleGetPut(t *testing.T) {
	pool := NewBufferPool(1024)

	bufs := make([]*bytes.Buffer, 5)
	for i := range bufs {
		bufs[i] = pool.Get()
	}

	for _, b := range bufs {
		pool.Put(b)
	}

	for i := 0; i < 5; i++ {
		buf := pool.Get()
		if buf.Len() != 0 {
			t.Errorf("reused buffer %d: expected empty, got len %d", i, buf.Len())
		}
		pool.Put(buf)
	}
}
