package eventstream

import (
	"context"
	"io"
	"sync"

	"github.com/lk2023060901/awswire-go/internal/protocol/shape"
	"github.com/lk2023060901/awswire-go/pkg/util/merr"
)

// Publisher 为输入事件流的发送端：调用方按顺序 Send，请求体按同样顺序取出。
//
// Send 在事件被请求体取走之前阻塞，因此同一时刻最多只有一个待发送事件。
// Publisher 只允许一个发送方。
type Publisher struct {
	events chan any
	done   chan struct{}
	once   sync.Once
}

var _ shape.EventStream = (*Publisher)(nil)

func NewPublisher() *Publisher {
	return &Publisher{
		events: make(chan any),
		done:   make(chan struct{}),
	}
}

// Send 发送一个事件。ctx 取消或 Publisher 已关闭时返回错误，事件不会被部分发送。
func (p *Publisher) Send(ctx context.Context, ev any) error {
	select {
	case <-p.done:
		return merr.WrapErrStreamClosed("send event")
	default:
	}
	select {
	case p.events <- ev:
		return nil
	case <-p.done:
		return merr.WrapErrStreamClosed("send event")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv 由请求体调用，Close 之后返回 io.EOF。
func (p *Publisher) Recv() (any, error) {
	select {
	case ev := <-p.events:
		return ev, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// Close 结束事件流，可重复调用。
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
