package streaming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/teamflow/llm"
	"github.com/BaSui01/teamflow/types"
)

func TestRelay_PushNext(t *testing.T) {
	r := NewRelay()

	ok := r.Push(Token{Content: "a", Index: 0})
	require.True(t, ok)
	r.Push(Token{Content: "b", Index: 1})

	tok, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", tok.Content)

	tok, err = r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", tok.Content)
}

func TestRelay_FinishDrainsThenDone(t *testing.T) {
	r := NewRelay(WithPollTimeout(50 * time.Millisecond))

	r.Push(Token{Content: "x", Index: 0})
	r.Push(Token{Content: "y", Index: 1})
	r.Finish()

	// Finish 后先排空缓冲
	tok, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", tok.Content)

	tok, err = r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "y", tok.Content)

	// 排空后返回 ErrRelayDone
	_, err = r.Next(context.Background())
	require.ErrorIs(t, err, ErrRelayDone)

	// 重复调用仍然安全
	r.Finish()
	_, err = r.Next(context.Background())
	require.ErrorIs(t, err, ErrRelayDone)
}

func TestRelay_FailSurfacesAfterDrain(t *testing.T) {
	r := NewRelay()
	boom := errors.New("provider exploded")

	r.Push(Token{Content: "partial", Index: 0})
	r.Fail(boom)

	tok, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "partial", tok.Content)

	_, err = r.Next(context.Background())
	require.ErrorIs(t, err, boom)

	// 后续 Fail 不覆盖首个错误
	r.Fail(errors.New("later"))
	_, err = r.Next(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestRelay_PushAfterFinishDropped(t *testing.T) {
	r := NewRelay()
	r.Finish()

	ok := r.Push(Token{Content: "late"})
	assert.False(t, ok)

	stats := r.Stats()
	assert.Equal(t, int64(0), stats.Produced)
	assert.Equal(t, int64(1), stats.Dropped)
	assert.True(t, stats.Finished)
}

func TestRelay_NextContextCancel(t *testing.T) {
	r := NewRelay()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Next(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after context cancel")
	}
}

func TestRelay_PollTimeoutKeepsWaiting(t *testing.T) {
	r := NewRelay(WithPollTimeout(10 * time.Millisecond))

	// 多个轮询周期之后才有数据，Next 不应提前放弃
	go func() {
		time.Sleep(60 * time.Millisecond)
		r.Push(Token{Content: "late", Index: 0})
	}()

	tok, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late", tok.Content)
}

func TestRelay_ProducerConsumerOrdered(t *testing.T) {
	const total = 500
	r := NewRelay(WithBufferSize(8), WithPollTimeout(20*time.Millisecond))

	// 生产者
	go func() {
		for i := 0; i < total; i++ {
			r.Push(Token{Content: fmt.Sprintf("tok-%d", i), Index: i})
		}
		r.Finish()
	}()

	// 消费者
	got := make([]Token, 0, total)
	for {
		tok, err := r.Next(context.Background())
		if err != nil {
			require.ErrorIs(t, err, ErrRelayDone)
			break
		}
		got = append(got, tok)
	}

	require.Len(t, got, total)
	for i, tok := range got {
		assert.Equal(t, i, tok.Index)
	}

	stats := r.Stats()
	assert.Equal(t, int64(total), stats.Produced)
	assert.Equal(t, int64(total), stats.Consumed)
	assert.Equal(t, int64(0), stats.Dropped)
	assert.Equal(t, 0, stats.Buffered)
}

func TestRelay_SlowConsumerBackpressure(t *testing.T) {
	r := NewRelay(WithBufferSize(2))

	var pushed sync.WaitGroup
	pushed.Add(1)
	blocked := make(chan struct{})
	go func() {
		defer pushed.Done()
		r.Push(Token{Index: 0})
		r.Push(Token{Index: 1})
		close(blocked)
		r.Push(Token{Index: 2}) // 缓冲已满，阻塞到消费者取走一个
	}()

	<-blocked
	// 确认第三个 Push 尚未完成
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), r.Stats().Produced)

	_, err := r.Next(context.Background())
	require.NoError(t, err)

	pushed.Wait()
	assert.Equal(t, int64(3), r.Stats().Produced)
	r.Finish()
}

// ===== Stream 适配器 =====

// stubProvider 返回预置的 chunk 序列。
type stubProvider struct {
	chunks []llm.StreamChunk
	err    error
}

func (s *stubProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, chunk := range s.chunks {
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string                        { return "stub" }
func (s *stubProvider) SupportsNativeFunctionCalling() bool { return true }

func textChunk(content string) llm.StreamChunk {
	return llm.StreamChunk{Delta: types.Message{Role: types.RoleAssistant, Content: content}}
}

func TestStream_Adapter(t *testing.T) {
	p := &stubProvider{chunks: []llm.StreamChunk{
		textChunk("流"), textChunk("式"), textChunk("输出"),
		{FinishReason: "stop", Delta: types.Message{Role: types.RoleAssistant}},
	}}

	ch, err := Stream(context.Background(), p, &llm.ChatRequest{}, WithPollTimeout(50*time.Millisecond))
	require.NoError(t, err)

	var content string
	for tok := range ch {
		require.NoError(t, tok.Err)
		content += tok.Content
	}
	assert.Equal(t, "流式输出", content)
}

func TestStream_AdapterProviderError(t *testing.T) {
	p := &stubProvider{err: &llm.Error{Code: llm.ErrRateLimited, Message: "slow down"}}

	_, err := Stream(context.Background(), p, &llm.ChatRequest{})
	require.Error(t, err)

	var llmErr *llm.Error
	assert.ErrorAs(t, err, &llmErr)
}

func TestStream_AdapterMidStreamError(t *testing.T) {
	p := &stubProvider{chunks: []llm.StreamChunk{
		textChunk("部分"),
		{Err: &llm.Error{Code: llm.ErrUpstreamError, Message: "connection reset"}},
	}}

	ch, err := Stream(context.Background(), p, &llm.ChatRequest{}, WithPollTimeout(50*time.Millisecond))
	require.NoError(t, err)

	var got []Token
	for tok := range ch {
		got = append(got, tok)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "部分", got[0].Content)
	require.Error(t, got[1].Err)
	assert.True(t, got[1].Final)
}

func TestStream_AdapterConsumerCancel(t *testing.T) {
	chunks := make([]llm.StreamChunk, 100)
	for i := range chunks {
		chunks[i] = textChunk("t")
	}
	p := &stubProvider{chunks: chunks}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Stream(ctx, p, &llm.ChatRequest{}, WithBufferSize(4))
	require.NoError(t, err)

	<-ch
	cancel()

	// channel 必须在取消后关闭，不能泄漏
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel not closed after cancel")
		}
	}
}
