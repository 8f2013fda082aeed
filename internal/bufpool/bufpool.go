// Package bufpool provides pooled, growable byte buffers so the format
// modules can assemble a tag payload or buffer a "prepare then flush"
// section without allocating fresh memory on every call.
package bufpool

import (
	"io"
	"sync"
)

// Default and ceiling sizes for the two buffer tiers the format modules use:
// ChunkDefaultSize/ChunkMaxThreshold size the scratch buffer used while
// assembling or splitting a tag payload (spec: O(longest single
// chunk/segment)); SectionDefaultSize/SectionMaxThreshold size the larger
// "prepare then flush" buffer RIFF uses when a length field must be
// backfilled before anything can be written to the sink.
const (
	ChunkDefaultSize      = 1024       // 1KiB
	ChunkMaxThreshold     = 1024 * 64  // 64KiB
	SectionDefaultSize    = 1024 * 64  // 64KiB
	SectionMaxThreshold   = 1024 * 1024 * 16 // 16MiB
)

// Buffer is a growable byte slice wrapper, reused across calls via a Pool.
type Buffer struct {
	B []byte
}

// NewBuffer creates a new Buffer with the given default capacity.
func NewBuffer(defaultSize int) *Buffer {
	return &Buffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the underlying byte slice.
func (b *Buffer) Bytes() []byte {
	return b.B
}

// Len returns the length of the buffer.
func (b *Buffer) Len() int {
	return len(b.B)
}

// Reset empties the buffer but keeps its backing array for reuse.
func (b *Buffer) Reset() {
	b.B = b.B[:0]
}

// Write appends data to the buffer, growing it as needed. Implements io.Writer.
func (b *Buffer) Write(data []byte) (int, error) {
	b.B = append(b.B, data...)
	return len(data), nil
}

// WriteTo writes the buffer's contents to w. Implements io.WriterTo.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.B)
	return int64(n), err
}

// Pool is a sync.Pool of Buffers with an eviction threshold so a single
// oversized read doesn't permanently inflate the pool's steady-state memory.
type Pool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewPool creates a Pool whose buffers start at defaultSize and are
// discarded, rather than recycled, once they grow past maxThreshold.
func NewPool(defaultSize, maxThreshold int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any { return NewBuffer(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a Buffer from the pool.
func (p *Pool) Get() *Buffer {
	buf, _ := p.pool.Get().(*Buffer)
	return buf
}

// Put returns a Buffer to the pool for reuse.
func (p *Pool) Put(buf *Buffer) {
	if buf == nil {
		return
	}
	if p.maxThreshold > 0 && cap(buf.B) > p.maxThreshold {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}

var (
	chunkPool   = NewPool(ChunkDefaultSize, ChunkMaxThreshold)
	sectionPool = NewPool(SectionDefaultSize, SectionMaxThreshold)
)

// GetChunkBuffer retrieves a Buffer from the default chunk-scratch pool.
func GetChunkBuffer() *Buffer { return chunkPool.Get() }

// PutChunkBuffer returns a Buffer to the default chunk-scratch pool.
func PutChunkBuffer(buf *Buffer) { chunkPool.Put(buf) }

// GetSectionBuffer retrieves a Buffer from the default section-buffering pool.
func GetSectionBuffer() *Buffer { return sectionPool.Get() }

// PutSectionBuffer returns a Buffer to the default section-buffering pool.
func PutSectionBuffer(buf *Buffer) { sectionPool.Put(buf) }
