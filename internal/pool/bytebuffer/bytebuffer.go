// Package bytebuffer 为可复用的字节缓冲区对象池，用于降低编解码过程中的分配与 GC 压力。
package bytebuffer

import "github.com/valyala/bytebufferpool"

// ByteBuffer 是 bytebufferpool.ByteBuffer 的别名。
type ByteBuffer = bytebufferpool.ByteBuffer

// Get 从池中取出一个空缓冲区。
func Get() *ByteBuffer {
	return bytebufferpool.Get()
}

// Put 将缓冲区归还到池中，归还后不得再使用。
func Put(b *ByteBuffer) {
	if b != nil {
		bytebufferpool.Put(b)
	}
}
