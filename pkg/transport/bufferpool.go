package transport

// bufferPool recycles fixed-size read buffers through a channel
type bufferPool struct {
	pool    chan []byte
	bufSize int
}

func newBufferPool(bufSize, count int) *bufferPool {
	return &bufferPool{
		pool:    make(chan []byte, count),
		bufSize: bufSize,
	}
}

func (bp *bufferPool) get() []byte {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		return make([]byte, bp.bufSize)
	}
}

func (bp *bufferPool) put(buf []byte) {
	if cap(buf) != bp.bufSize {
		return
	}
	select {
	case bp.pool <- buf[:bp.bufSize]:
	default:
	}
}
