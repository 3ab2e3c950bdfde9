package packets

import "sync"

// bufferPool recycles scratch buffers used for packet serialization and for
// reading packet bodies. 4KB covers the vast majority of MQTT packets.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// GetBuffer returns a zero-length buffer from the pool.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool. Oversized buffers are dropped so
// one huge packet does not pin memory forever.
func PutBuffer(b *[]byte) {
	if cap(*b) > 64*1024 {
		return
	}
	*b = (*b)[:0]
	bufferPool.Put(b)
}
