package eventstream

import (
	"io"

	"go.uber.org/atomic"

	"github.com/lk2023060901/awswire-go/internal/protocol/framer"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/metrics"
)

// Body 为事件流请求体：每次缓冲区耗尽时从事件源取下一个事件并编码为整帧。
//
// 帧在交出任何字节之前已完整编码；Close 之后已开始输出的帧仍会输出完毕，不会出现半帧。
// Body 只允许一个读取方。
type Body struct {
	codec  *Codec
	framer *framer.CRCFramer
	source shape.EventStream

	initial *framer.Message

	buf    []byte
	err    error
	closed atomic.Bool
}

var _ io.ReadCloser = (*Body)(nil)

// BodyOption 为 Body 的可选配置。
type BodyOption func(*Body)

// WithInitialMessage 在第一个事件之前发送 msg（如 initial-request）。
func WithInitialMessage(msg framer.Message) BodyOption {
	return func(b *Body) {
		b.initial = &msg
	}
}

// NewBody 创建一个从 source 读取事件的惰性请求体。
func NewBody(codec *Codec, fr *framer.CRCFramer, source shape.EventStream, opts ...BodyOption) *Body {
	b := &Body{codec: codec, framer: fr, source: source}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Body) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		if b.closed.Load() {
			return 0, io.EOF
		}
		b.err = b.next()
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *Body) next() error {
	var msg framer.Message
	if b.initial != nil {
		msg, b.initial = *b.initial, nil
	} else {
		ev, err := b.source.Recv()
		if err != nil {
			return err
		}
		msg, err = b.codec.Encode(ev)
		if err != nil {
			return err
		}
	}
	frame, err := b.framer.EncodeFrame(msg)
	if err != nil {
		return err
	}
	metrics.EventFrames.WithLabelValues(metrics.DirectionOutbound, headerString(msg.Headers, HeaderMessageType)).Inc()
	metrics.EventFrameSize.WithLabelValues(metrics.DirectionOutbound).Observe(float64(len(frame)))
	b.buf = frame
	return nil
}

// Close 关闭事件源，可与 Read 并发调用。
func (b *Body) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.source.Close()
}
