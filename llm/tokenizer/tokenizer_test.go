package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/teamflow/types"
)

func TestEstimator_CountTokens(t *testing.T) {
	est := NewEstimator("test-model", 0)

	tests := []struct {
		name string
		text string
		min  int
		max  int
	}{
		{"空字符串", "", 0, 0},
		{"单个字符至少一个 token", "a", 1, 1},
		{"英文文本约 4 字符一个 token", "hello world this is a test", 5, 8},
		{"中文文本约 1.5 字符一个 token", "研究人工智能的最新进展", 6, 9},
		{"中英混合", "分析 machine learning 趋势", 5, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := est.CountTokens(tt.text)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, tt.min)
			assert.LessOrEqual(t, count, tt.max)
		})
	}
}

func TestEstimator_CJKDenserThanASCII(t *testing.T) {
	est := NewEstimator("test-model", 0)

	// 同样 10 个字符，CJK 的 token 数应明显高于 ASCII
	cjk, err := est.CountTokens("数据分析报告生成完毕了")
	require.NoError(t, err)
	ascii, err := est.CountTokens("abcdefghij")
	require.NoError(t, err)
	assert.Greater(t, cjk, ascii)
}

func TestEstimator_CountMessages(t *testing.T) {
	est := NewEstimator("test-model", 0)

	msgs := []types.Message{
		{Role: types.RoleUser, Content: "搜索最新的大模型新闻"},
		{Role: types.RoleAssistant, Content: "好的，我来搜索。"},
	}

	total, err := est.CountMessages(msgs)
	require.NoError(t, err)

	// 每条消息 4 token 开销加会话结束 3 token
	c1, _ := est.CountTokens(msgs[0].Content)
	c2, _ := est.CountTokens(msgs[1].Content)
	assert.Equal(t, c1+c2+4*2+3, total)
}

func TestEstimator_EncodeDecode(t *testing.T) {
	est := NewEstimator("test-model", 0)

	tokens, err := est.Encode("hello world test")
	require.NoError(t, err)
	count, _ := est.CountTokens("hello world test")
	assert.Len(t, tokens, count)

	_, err = est.Decode([]int{1, 2, 3})
	assert.Error(t, err)
}

func TestEstimator_MaxTokensDefault(t *testing.T) {
	assert.Equal(t, 4096, NewEstimator("m", 0).MaxTokens())
	assert.Equal(t, 4096, NewEstimator("m", -1).MaxTokens())
	assert.Equal(t, 65536, NewEstimator("m", 65536).MaxTokens())
}

func TestRegistry_GetAndPrefixMatch(t *testing.T) {
	est := NewEstimator("qwen", 32768)
	Register("qwen", est)

	got, err := Get("qwen")
	require.NoError(t, err)
	assert.Same(t, est, got)

	// 前缀匹配
	got, err = Get("qwen-turbo")
	require.NoError(t, err)
	assert.Same(t, est, got)

	_, err = Get("totally-unknown-model")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "totally-unknown-model")
}

func TestForModel_FallsBackToEstimator(t *testing.T) {
	tok := ForModel("no-such-model-anywhere")
	require.NotNil(t, tok)
	assert.Equal(t, "estimator", tok.Name())

	count, err := tok.CountTokens("fallback path works")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestNewTiktoken_ModelMapping(t *testing.T) {
	tests := []struct {
		model    string
		wantName string
		wantMax  int
	}{
		{"deepseek-chat", "tiktoken[cl100k_base]", 65536},
		{"command-r", "tiktoken[cl100k_base]", 128000},
		{"gpt-4o", "tiktoken[o200k_base]", 128000},
		{"gpt-4o-2024-08-06", "tiktoken[o200k_base]", 128000}, // 前缀匹配
		{"unknown-model", "tiktoken[cl100k_base]", 8192},      // 默认编码
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			tok, err := NewTiktoken(tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, tok.Name())
			assert.Equal(t, tt.wantMax, tok.MaxTokens())
		})
	}
}

func TestTiktoken_CountTokens(t *testing.T) {
	tok, err := NewTiktoken("gpt-4")
	require.NoError(t, err)

	count, err := tok.CountTokens("Hello, world!")
	if err != nil {
		t.Skipf("tiktoken encoding data unavailable: %v", err)
	}

	// cl100k_base 下 "Hello, world!" 通常是 4 个 token
	assert.Greater(t, count, 0)
	assert.LessOrEqual(t, count, 10)

	tokens, err := tok.Encode("Hello, world!")
	require.NoError(t, err)
	assert.Len(t, tokens, count)

	decoded, err := tok.Decode(tokens)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", decoded)
}

func TestRegisterDefaults(t *testing.T) {
	RegisterDefaults()

	tok, err := Get("deepseek-chat")
	require.NoError(t, err)
	assert.Contains(t, tok.Name(), "tiktoken")

	tok = ForModel("command-r-plus")
	assert.Contains(t, tok.Name(), "tiktoken")
}
