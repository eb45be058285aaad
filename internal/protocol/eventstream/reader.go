package eventstream

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/lk2023060901/awswire-go/internal/protocol/framer"
	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/log"
	"github.com/lk2023060901/awswire-go/pkg/metrics"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// Reader 为输出事件流的接收端，按帧顺序交付事件，每个事件只交付一次。
//
// 服务端错误帧与帧损坏都会终止事件流；流结束、出错、Close 或 ctx 结束时关闭底层响应体。
// Recv 只允许一个调用方，Close 可与 Recv 并发调用。
type Reader struct {
	ctx    context.Context
	codec  *Codec
	framer *framer.CRCFramer
	body   io.ReadCloser

	pending *framer.Message
	err     error
	closed  atomic.Bool
	stop    func() bool
}

var _ shape.EventStream = (*Reader)(nil)

// NewReader 创建一个从 body 逐帧读取事件的 Reader。ctx 提供日志字段，
// ctx 结束后阻塞中的 Recv 立即返回 ctx 的错误。
func NewReader(ctx context.Context, codec *Codec, fr *framer.CRCFramer, body io.ReadCloser) *Reader {
	r := &Reader{ctx: ctx, codec: codec, framer: fr, body: body}
	r.stop = context.AfterFunc(ctx, r.closeBody)
	return r
}

// ReadInitial 读取首帧，若其事件类型为 eventType 则解码到 v 并返回 true。
// 否则该帧留给后续的 Recv，返回 false。
func (r *Reader) ReadInitial(eventType string, sh *shape.Shape, v any) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	msg, err := r.readFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.pending = nil
			r.err = io.EOF
			r.release()
			return false, nil
		}
		return false, r.fail(err)
	}
	if headerString(msg.Headers, HeaderMessageType) != MessageTypeEvent ||
		headerString(msg.Headers, HeaderEventType) != eventType {
		r.pending = &msg
		return false, nil
	}
	if err := r.codec.DecodeInitial(msg, sh, v); err != nil {
		return false, r.fail(err)
	}
	return true, nil
}

// Recv 返回下一个事件。正常结束时返回 io.EOF；出错后每次调用都返回同一个错误。
func (r *Reader) Recv() (any, error) {
	for {
		if r.err != nil {
			return nil, r.err
		}

		var msg framer.Message
		if r.pending != nil {
			msg, r.pending = *r.pending, nil
		} else {
			var err error
			msg, err = r.readFrame()
			if err != nil {
				if errors.Is(err, io.EOF) {
					r.err = io.EOF
					r.release()
					return nil, io.EOF
				}
				return nil, r.fail(err)
			}
		}

		ev, err := r.codec.Decode(msg)
		if err != nil {
			return nil, r.fail(err)
		}
		if unknown, ok := ev.(*UnknownEvent); ok {
			metrics.UnknownEvents.WithLabelValues(unknown.Type).Inc()
			log.Ctx(r.ctx).RatedWarn(10, "skip unknown event",
				log.FieldComponent("eventstream"),
				zap.String("eventType", unknown.Type),
				zap.String("stream", r.codec.Shape().Name))
			continue
		}
		return ev, nil
	}
}

func (r *Reader) readFrame() (framer.Message, error) {
	if r.closed.Load() || r.ctx.Err() != nil {
		return framer.Message{}, r.closedErr()
	}
	msg, err := r.framer.ReadFrame(r.body)
	if err != nil {
		if r.closed.Load() {
			return framer.Message{}, r.closedErr()
		}
		return framer.Message{}, err
	}
	metrics.EventFrames.WithLabelValues(metrics.DirectionInbound, headerString(msg.Headers, HeaderMessageType)).Inc()
	metrics.EventFrameSize.WithLabelValues(metrics.DirectionInbound).
		Observe(float64(framer.MinFrameSize + len(msg.Payload)))
	return msg, nil
}

// closedErr 区分 ctx 结束与调用方主动 Close。
func (r *Reader) closedErr() error {
	if err := r.ctx.Err(); err != nil {
		return errors.Wrap(err, "receive event")
	}
	return merr.WrapErrStreamClosed("receive event")
}

func (r *Reader) fail(err error) error {
	r.err = err
	r.release()
	logger := log.Ctx(r.ctx).With(
		log.FieldComponent("eventstream"),
		zap.String("stream", r.codec.Shape().Name))
	switch _, isService := merr.AsServiceError(err); {
	case isService, errors.Is(err, merr.ErrStreamClosed):
	case merr.IsCanceledOrTimeout(err):
		logger.Debug("event stream canceled", zap.Error(err))
	default:
		logger.Warn("event stream terminated", zap.Error(err))
	}
	return err
}

func (r *Reader) release() {
	r.stop()
	if r.closed.Swap(true) {
		return
	}
	if err := r.body.Close(); err != nil {
		log.Ctx(r.ctx).Debug("close event stream body failed", zap.Error(err))
	}
}

func (r *Reader) closeBody() {
	if r.closed.Swap(true) {
		return
	}
	_ = r.body.Close()
}

// Close 停止接收并释放响应体，可重复调用。之后的 Recv 返回流已关闭错误。
func (r *Reader) Close() error {
	r.stop()
	if r.closed.Swap(true) {
		return nil
	}
	return r.body.Close()
}
