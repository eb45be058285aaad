// Package framer 实现事件流消息的分帧与解帧。
//
// 一帧的线上格式（大端）：
//
//	[4 字节总长度][4 字节头部长度][4 字节 prelude CRC][头部][负载][4 字节消息 CRC]
//
// prelude CRC 覆盖前 8 字节，消息 CRC 覆盖 CRC 之前的全部字节，均为 CRC-32 (IEEE)。
// 头部与负载的编解码由 aws-sdk-go-v2 的 eventstream 包完成。
package framer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/awswire-go/internal/pool/bytebuffer"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// Message 为一帧解码后的内容：头部与负载。
type Message = eventstream.Message

// Headers 为帧头部集合，保持插入顺序。
type Headers = eventstream.Headers

const (
	preludeLen = 12
	crcLen     = 4
	// MinFrameSize 为没有头部与负载时一帧的长度。
	MinFrameSize = preludeLen + crcLen

	defaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB
)

// Framer 抽象了事件流消息的打包/解包能力。
type Framer interface {
	// WriteFrame 将消息打包为一帧并一次性写入 w，不会写出半帧。
	WriteFrame(w io.Writer, msg Message) error

	// ReadFrame 从 r 中读取一帧并校验两段 CRC。
	// r 在帧边界处结束时返回 io.EOF。
	ReadFrame(r io.Reader) (Message, error)
}

// CRCFramer 为带长度前缀与 CRC 校验的事件流帧编码器，可并发使用。
type CRCFramer struct {
	// MaxFrameSize 为允许的最大帧大小，单位字节。
	// 为 0 时使用默认值 defaultMaxFrameSize。
	MaxFrameSize uint32
}

var _ Framer = (*CRCFramer)(nil)

// NewCRCFramer 创建一个事件流帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewCRCFramer(maxFrameSize uint32) *CRCFramer {
	if maxFrameSize == 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &CRCFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// EncodeFrame 将消息编码为一帧完整的字节序列。
func (f *CRCFramer) EncodeFrame(msg Message) ([]byte, error) {
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	if err := f.encode(buf, msg); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.B), nil
}

// WriteFrame 先在缓冲区中完成整帧编码，再一次写入 w。
func (f *CRCFramer) WriteFrame(w io.Writer, msg Message) error {
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	if err := f.encode(buf, msg); err != nil {
		return err
	}
	if _, err := w.Write(buf.B); err != nil {
		return errors.Wrap(err, "framer: write frame failed")
	}
	return nil
}

func (f *CRCFramer) encode(buf *bytebuffer.ByteBuffer, msg Message) error {
	if err := eventstream.NewEncoder().Encode(buf, msg); err != nil {
		return merr.WrapErrStreamMalformed(err.Error(), "encode frame")
	}
	if size := uint32(buf.Len()); size > f.effectiveMaxSize() {
		return merr.WrapErrStreamMalformed("frame too large", frameSizeMsg(size, f.effectiveMaxSize()))
	}
	return nil
}

// ReadFrame 读取一帧。
//
// 先校验 prelude CRC 再信任长度字段，读完整帧后校验消息 CRC，最后才解析头部，
// 因此任何单字节损坏都会以 ErrStreamChecksum 失败，而不会得到错误的解码结果。
func (f *CRCFramer) ReadFrame(r io.Reader) (Message, error) {
	var prelude [preludeLen]byte
	n, err := io.ReadFull(r, prelude[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, merr.WrapErrStreamTruncated(err)
	}

	if crc32.ChecksumIEEE(prelude[:8]) != binary.BigEndian.Uint32(prelude[8:]) {
		return Message{}, merr.WrapErrStreamChecksum(eventstream.ChecksumError{})
	}

	total := binary.BigEndian.Uint32(prelude[0:4])
	headersLen := binary.BigEndian.Uint32(prelude[4:8])
	if total < MinFrameSize || headersLen > total-MinFrameSize {
		return Message{}, merr.WrapErrStreamMalformed("invalid frame length", frameSizeMsg(total, f.effectiveMaxSize()))
	}
	if total > f.effectiveMaxSize() {
		return Message{}, merr.WrapErrStreamMalformed("frame too large", frameSizeMsg(total, f.effectiveMaxSize()))
	}

	// 使用 ByteBuffer 池降低频繁 make 带来的分配与 GC 压力。
	buf := bytebuffer.Get()
	defer bytebuffer.Put(buf)

	if cap(buf.B) < int(total) {
		buf.B = make([]byte, int(total))
	} else {
		buf.B = buf.B[:int(total)]
	}
	copy(buf.B, prelude[:])
	if _, err := io.ReadFull(r, buf.B[preludeLen:]); err != nil {
		return Message{}, merr.WrapErrStreamTruncated(err)
	}

	body := buf.B[:total-crcLen]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(buf.B[total-crcLen:]) {
		return Message{}, merr.WrapErrStreamChecksum(eventstream.ChecksumError{})
	}

	return decode(buf.B)
}

// decode 解析已通过 CRC 校验的帧。未知的头部值类型会使底层解码器 panic，这里转为错误。
func decode(frame []byte) (msg Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = Message{}, merr.WrapErrStreamMalformed(fmt.Sprint(r), "decode frame")
		}
	}()
	// 负载缓冲区传 nil，解码结果不引用池中的内存。
	msg, err = eventstream.NewDecoder().Decode(bytes.NewReader(frame), nil)
	if err != nil {
		return Message{}, merr.WrapErrStreamMalformed(err.Error(), "decode frame")
	}
	return msg, nil
}

func (f *CRCFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return defaultMaxFrameSize
	}
	return f.MaxFrameSize
}

func frameSizeMsg(size, max uint32) string {
	return fmt.Sprintf("size %d max %d", size, max)
}
