// Package pool provides resource pooling for performance optimization.
// This package includes a byte-buffer pool used by the transport adapters
// to avoid re-allocating scratch space on every envelope encode.
package pool

import (
	"bytes"
	"sync"
)

// BufferPool provides a pool of reusable *bytes.Buffer values sized for a
// typical wire envelope so repeated JSON encoding does not allocate a new
// buffer per call.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool. size is a hint for the initial
// capacity of buffers the pool creates; buffers grow beyond it as needed.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, size))
			},
		},
	}
}

// Get retrieves an empty buffer from the pool.
func (p *BufferPool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool for reuse.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	p.pool.Put(buf)
}

// EnvelopeBufferPool is a pre-configured pool for encoding wire envelopes,
// sized for a typical routed or broadcast Frame plus its path.
var EnvelopeBufferPool = NewBufferPool(1024)
