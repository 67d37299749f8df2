// File: internal/bufpool/bufpool.go
// Author: momentics <momentics@gmail.com>
//
// BufferPool hands out reusable byte slices for adapter read loops and
// write-backlog staging, adapted from the teacher's NUMA-segmented
// BufferPoolManager (pool/bufferpool.go) with the NUMA dimension
// dropped: the engine pools by size class only. Buffers returned by
// Get must be returned via Put once the caller is done with them;
// Message events borrow directly from these buffers, so adapters must
// not Put a buffer until every borrow into it has been consumed by the
// user callback.
package bufpool

import "sync"

// sizeClasses mirrors the teacher's tiered bucket idea (bufferpool.go's
// per-NUMA-node map) applied to message sizes instead of NUMA nodes.
var sizeClasses = []int{4 << 10, 16 << 10, 64 << 10, 256 << 10}

type Pool struct {
	pools []sync.Pool
}

func New() *Pool {
	p := &Pool{pools: make([]sync.Pool, len(sizeClasses))}
	for i, sz := range sizeClasses {
		sz := sz
		p.pools[i].New = func() any {
			buf := make([]byte, sz)
			return &buf
		}
	}
	return p
}

func classFor(n int) int {
	for i, sz := range sizeClasses {
		if n <= sz {
			return i
		}
	}
	return -1
}

// Get returns a []byte with length n, backed by a pooled buffer when n
// fits a known size class, or a fresh allocation otherwise.
func (p *Pool) Get(n int) []byte {
	idx := classFor(n)
	if idx < 0 {
		return make([]byte, n)
	}
	buf := p.pools[idx].Get().(*[]byte)
	return (*buf)[:n]
}

// Put returns a buffer obtained from Get back to its size class. Slices
// not originally produced by Get (oversized allocations) are dropped.
func (p *Pool) Put(buf []byte) {
	idx := classFor(cap(buf))
	if idx < 0 {
		return
	}
	full := buf[:cap(buf)]
	p.pools[idx].Put(&full)
}
