package abi

import "sync"

// pinTable holds the buffers a guest has handed out to its host, keyed by
// their address in linear memory. Holding the slice keeps the GC from
// reclaiming memory the host is still writing to, and the table doubles as
// the set of regions the host may legally address.
type pinTable struct {
	mu    sync.Mutex
	bufs  map[uint32][]byte
	total int
	limit int
}

func newPinTable(limit int) *pinTable {
	return &pinTable{
		bufs:  make(map[uint32][]byte),
		limit: limit,
	}
}

// fits reports whether size more bytes stay within the limit.
func (p *pinTable) fits(size uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total+int(size) <= p.limit
}

// add pins buf at ptr. It reports false when the limit would be exceeded.
func (p *pinTable) add(ptr uint32, buf []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total+len(buf) > p.limit {
		return false
	}
	p.bufs[ptr] = buf
	p.total += len(buf)
	return true
}

// remove unpins the buffer at ptr. Unknown pointers are ignored.
func (p *pinTable) remove(ptr uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf, ok := p.bufs[ptr]
	if !ok {
		return
	}
	delete(p.bufs, ptr)
	p.total -= len(buf)
}

// window returns the n bytes at offset when they lie inside one pinned
// buffer. The slice aliases that buffer.
func (p *pinTable) window(offset, n uint32) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if buf, ok := p.bufs[offset]; ok {
		if uint64(n) > uint64(len(buf)) {
			return nil, false
		}
		return buf[:n:n], true
	}

	end := uint64(offset) + uint64(n)
	for start, buf := range p.bufs {
		if offset < start {
			continue
		}
		if end <= uint64(start)+uint64(len(buf)) {
			lo := offset - start
			return buf[lo : lo+n : lo+n], true
		}
	}
	return nil, false
}

// stats returns the number of pinned buffers and their total size.
func (p *pinTable) stats() (count, bytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bufs), p.total
}
