package event

import (
	"bytes"
	"encoding/json"
	"sync"
)

// bufferPool provides sync.Pool for journal payload encoding.
// Every command passes through EncodePayload once on the write path.
//
// Usage:
//
//	buf := AcquireBuffer()
//	// ... write into buf ...
//	ReleaseBuffer(buf) // Return to pool after copying the bytes out
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// maxPooledBuffer keeps one oversized payload from pinning memory in the pool.
const maxPooledBuffer = 64 << 10

// AcquireBuffer gets an empty buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// ReleaseBuffer resets buf and returns it to the pool.
func ReleaseBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// EncodePayload marshals ev to JSON using a pooled buffer. The returned slice
// is owned by the caller.
func EncodePayload(ev Event) (json.RawMessage, error) {
	buf := AcquireBuffer()
	defer ReleaseBuffer(buf)

	if err := json.NewEncoder(buf).Encode(ev); err != nil {
		return nil, err
	}
	// Encoder appends a newline
	out := bytes.TrimRight(buf.Bytes(), "\n")
	return append(json.RawMessage(nil), out...), nil
}

// Warmup pre-allocates buffers to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 64

	bufs := make([]*bytes.Buffer, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		buf := AcquireBuffer()
		buf.Grow(512)
		bufs = append(bufs, buf)
	}
	for _, buf := range bufs {
		ReleaseBuffer(buf)
	}
}
