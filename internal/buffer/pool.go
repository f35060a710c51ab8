// Package buffer provides the fixed-capacity read chunks the demultiplexer
// fills from its input.
package buffer

import (
	"sync"
)

// DefaultSize is the capacity of pooled chunks.
const DefaultSize = 8192

// Pool manages reusable chunks of DefaultSize bytes to reduce GC pressure.
var Pool = &sync.Pool{
	New: func() interface{} {
		b := make([]byte, DefaultSize)
		return &b
	},
}

// Get returns a chunk of exactly size bytes. Chunks of DefaultSize come from
// the pool; any other size is freshly allocated.
func Get(size int) []byte {
	if size != DefaultSize {
		return make([]byte, size)
	}
	b := Pool.Get().(*[]byte)
	return (*b)[:size]
}

// Put returns a chunk to the pool. Chunks whose capacity is not DefaultSize
// are dropped.
func Put(b []byte) {
	if cap(b) != DefaultSize {
		return
	}
	b = b[:DefaultSize]
	Pool.Put(&b)
}
