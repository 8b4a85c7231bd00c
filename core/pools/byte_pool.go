package pools

import "sync"

// BytePool hands out byte slices from tiered sync.Pools so the reactor's
// read loop and response composition reuse buffers instead of allocating
// per event.
type BytePool struct {
	pools []*sync.Pool
	sizes []int
}

// Tier sizes chosen around typical request reads: one poller read, a header
// block, a small body, a large body.
var defaultSizes = []int{512, 2048, 8192, 32768}

// NewBytePool creates a pool with the standard size tiers.
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a pool with custom ascending size tiers.
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}
	for i, size := range sizes {
		sz := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}
	return bp
}

// Get returns a slice of the requested length, drawn from the smallest tier
// that fits. Oversized requests allocate directly.
func (bp *BytePool) Get(size int) []byte {
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			bufPtr := bp.pools[i].Get().(*[]byte)
			return (*bufPtr)[:size]
		}
	}
	return make([]byte, size)
}

// Put returns a slice to its tier. Slices whose capacity matches no tier
// are dropped for the GC.
func (bp *BytePool) Put(buf []byte) {
	capacity := cap(buf)
	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.pools[i].Put(&buf)
			return
		}
	}
}

var globalBytePool = NewBytePool()

// GetBytes draws from the process-wide pool.
func GetBytes(size int) []byte { return globalBytePool.Get(size) }

// PutBytes returns bytes to the process-wide pool.
func PutBytes(buf []byte) { globalBytePool.Put(buf) }
