package streaming

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/teamflow/llm"
)

// ErrRelayDone 表示流已正常结束且缓冲已排空。
var ErrRelayDone = errors.New("relay done")

// Token represents a streaming token.
type Token struct {
	Content   string    `json:"content"`
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Final     bool      `json:"final"`
	Err       error     `json:"-"`
}

const (
	DefaultBufferSize  = 256
	DefaultPollTimeout = time.Second
)

// Relay 在生产者 goroutine 与消费者之间中继 token。
// 生产者 Push 后以 Finish/Fail 收尾；消费者用 Next 轮询，
// 超时后重新检查完成标志而不是永久阻塞。
type Relay struct {
	buf         chan Token
	done        chan struct{}
	pollTimeout time.Duration

	finishOnce sync.Once
	errMu      sync.Mutex
	err        error

	produced atomic.Int64
	consumed atomic.Int64
	dropped  atomic.Int64
}

// Option configures a Relay.
type Option func(*Relay)

// WithBufferSize 设置缓冲容量。
func WithBufferSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.buf = make(chan Token, n)
		}
	}
}

// WithPollTimeout 设置 Next 的单次轮询超时。
func WithPollTimeout(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollTimeout = d
		}
	}
}

// NewRelay creates a relay with a bounded buffer.
func NewRelay(opts ...Option) *Relay {
	r := &Relay{
		buf:         make(chan Token, DefaultBufferSize),
		done:        make(chan struct{}),
		pollTimeout: DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Push 向缓冲写入一个 token，缓冲满时阻塞直到有空位或流结束。
// 流已结束时丢弃并计数，返回 false。
func (r *Relay) Push(tok Token) bool {
	select {
	case <-r.done:
		r.dropped.Add(1)
		return false
	default:
	}

	select {
	case <-r.done:
		r.dropped.Add(1)
		return false
	case r.buf <- tok:
		r.produced.Add(1)
		return true
	}
}

// Next 返回下一个 token。流结束后先排空缓冲，再返回 Fail 记录的
// 错误或 ErrRelayDone。ctx 取消时返回 ctx.Err()。
func (r *Relay) Next(ctx context.Context) (Token, error) {
	for {
		select {
		case tok := <-r.buf:
			r.consumed.Add(1)
			return tok, nil

		case <-ctx.Done():
			return Token{}, ctx.Err()

		case <-r.done:
			// 完成标志与缓冲可能同时就绪，先排空缓冲
			select {
			case tok := <-r.buf:
				r.consumed.Add(1)
				return tok, nil
			default:
			}
			return Token{}, r.terminalErr()

		case <-time.After(r.pollTimeout):
			if r.finished() {
				select {
				case tok := <-r.buf:
					r.consumed.Add(1)
					return tok, nil
				default:
				}
				return Token{}, r.terminalErr()
			}
			// 未完成，继续轮询
		}
	}
}

// Finish 标记流正常结束，可重复调用。
func (r *Relay) Finish() {
	r.finishOnce.Do(func() { close(r.done) })
}

// Fail 以错误结束流，消费者排空缓冲后收到该错误。首个错误生效。
func (r *Relay) Fail(err error) {
	if err != nil {
		r.errMu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.errMu.Unlock()
	}
	r.Finish()
}

func (r *Relay) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *Relay) terminalErr() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.err != nil {
		return r.err
	}
	return ErrRelayDone
}

// RelayStats 是中继的计数快照。
type RelayStats struct {
	Produced int64 `json:"produced"`
	Consumed int64 `json:"consumed"`
	Dropped  int64 `json:"dropped"`
	Buffered int   `json:"buffered"`
	Finished bool  `json:"finished"`
}

// Stats returns a snapshot of relay counters.
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Produced: r.produced.Load(),
		Consumed: r.consumed.Load(),
		Dropped:  r.dropped.Load(),
		Buffered: len(r.buf),
		Finished: r.finished(),
	}
}

// Stream 将 Provider 的流式输出经由 Relay 转成普通 channel，
// 便于 SSE handler 直接 range 消费。流中错误以带 Err 的最终 Token
// 传出，随后 channel 关闭；正常结束直接关闭。
func Stream(ctx context.Context, p llm.Provider, req *llm.ChatRequest, opts ...Option) (<-chan Token, error) {
	chunks, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	r := NewRelay(opts...)

	// 生产者：provider chunk -> relay
	go func() {
		idx := 0
		for chunk := range chunks {
			if chunk.Err != nil {
				r.Fail(chunk.Err)
				return
			}
			if chunk.Delta.Content == "" {
				continue
			}
			tok := Token{
				Content:   chunk.Delta.Content,
				Index:     idx,
				Timestamp: time.Now(),
				Final:     chunk.FinishReason != "",
			}
			if !r.Push(tok) {
				return
			}
			idx++
		}
		r.Finish()
	}()

	// 消费者桥：relay -> plain channel
	out := make(chan Token)
	go func() {
		defer close(out)
		for {
			tok, err := r.Next(ctx)
			if err != nil {
				if errors.Is(err, ErrRelayDone) {
					return
				}
				// 取消或生产者错误：挂在最终 token 上传出
				select {
				case out <- Token{Err: err, Final: true, Timestamp: time.Now()}:
				case <-ctx.Done():
				}
				r.Finish()
				return
			}
			select {
			case out <- tok:
			case <-ctx.Done():
				r.Finish()
				return
			}
		}
	}()

	return out, nil
}
