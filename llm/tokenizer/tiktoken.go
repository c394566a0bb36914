package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/BaSui01/teamflow/types"
)

// Tiktoken 基于 tiktoken BPE 编码的精确分词器。
// 编码数据在首次使用时惰性加载。
type Tiktoken struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

// modelEncodings 将模型名称映射到 tiktoken 编码与上下文大小。
// DeepSeek 与 Cohere 没有公开的 tiktoken 编码，cl100k_base
// 是统计用途下足够接近的近似。
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"deepseek-chat":     {encoding: "cl100k_base", maxTokens: 65536},
	"deepseek-reasoner": {encoding: "cl100k_base", maxTokens: 65536},
	"command-r":         {encoding: "cl100k_base", maxTokens: 128000},
	"command-r-plus":    {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4o":            {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":       {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":       {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":             {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":     {encoding: "cl100k_base", maxTokens: 16385},
}

// NewTiktoken 为给定模型创建 tiktoken 分词器。
// 未知模型回退到 cl100k_base。
func NewTiktoken(model string) (*Tiktoken, error) {
	info, ok := modelEncodings[model]
	if !ok {
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) {
				info = i
				ok = true
				break
			}
		}
	}

	if !ok {
		info = struct {
			encoding  string
			maxTokens int
		}{encoding: "cl100k_base", maxTokens: 8192}
	}

	return &Tiktoken{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}, nil
}

// init 惰性加载编码数据，首次调用可能触发下载。
func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) CountMessages(messages []types.Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// 每条消息的开销: <|start|>role\n content<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	total += 3 // 会话结束开销
	return total, nil
}

func (t *Tiktoken) Encode(text string) ([]int, error) {
	if err := t.init(); err != nil {
		return nil, err
	}
	return t.enc.Encode(text, nil, nil), nil
}

func (t *Tiktoken) Decode(tokens []int) (string, error) {
	if err := t.init(); err != nil {
		return "", err
	}
	return t.enc.Decode(tokens), nil
}

func (t *Tiktoken) MaxTokens() int {
	return t.maxTokens
}

func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// RegisterDefaults 为所有已知模型注册 tiktoken 分词器。
func RegisterDefaults() {
	for model := range modelEncodings {
		t, err := NewTiktoken(model)
		if err != nil {
			continue
		}
		Register(model, t)
	}
}
