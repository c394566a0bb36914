package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/teamflow/types"
)

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数。
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数，
	// 含每条消息的角色标记与分隔符开销。
	CountMessages(messages []types.Message) (int, error)

	// Encode 将文本转换为 token ID 列表。
	Encode(text string) ([]int, error)

	// Decode 将 token ID 转换回文本。
	Decode(tokens []int) (string, error)

	// MaxTokens 返回模型的最大上下文长度。
	MaxTokens() int

	// Name 返回分词器的名称。
	Name() string
}

// 全局分词器注册表。
var (
	registry   = make(map[string]Tokenizer)
	registryMu sync.RWMutex
)

// Register 为给定的模型名称注册分词器。
func Register(model string, t Tokenizer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[model] = t
}

// Get 返回为给定模型注册的分词器，支持前缀匹配
// （如 "deepseek-chat" 命中 "deepseek" 前缀的注册项）。
func Get(model string) (Tokenizer, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if t, ok := registry[model]; ok {
		return t, nil
	}

	for prefix, t := range registry {
		if strings.HasPrefix(model, prefix) {
			return t, nil
		}
	}

	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// ForModel 返回该模型的注册分词器，未注册时回退到 CJK 估算器。
// 调用方永远能拿到可用的分词器，适合 token 用量统计这类
// 允许近似的场景。
func ForModel(model string) Tokenizer {
	t, err := Get(model)
	if err != nil {
		return NewEstimator(model, 0)
	}
	return t
}
