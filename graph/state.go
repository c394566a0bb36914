package graph

import (
	"github.com/BaSui01/teamflow/types"
)

// AgentState 是图执行过程中流转的共享状态。
// 每次运行持有自己的副本，节点函数返回修改后的状态而不是原地修改。
type AgentState struct {
	// Messages 对话转写（按时间顺序）
	Messages []types.Message `json:"messages"`
	// CurrentStep 最近执行的节点名
	CurrentStep string `json:"current_step"`
	// Team 主管选择的团队标签
	Team string `json:"team"`
	// Task 当前任务描述
	Task string `json:"task"`
	// Results 各节点的产出，键为节点自定义的结果名
	Results map[string]any `json:"results"`
	// Errors 非致命错误的累积记录
	Errors []string `json:"errors"`
}

// NewAgentState 从一条用户输入构造初始状态。
func NewAgentState(task string) AgentState {
	return AgentState{
		Messages: []types.Message{types.NewUserMessage(task)},
		Task:     task,
		Results:  make(map[string]any),
	}
}

// Clone 返回状态的独立副本。
// Messages、Errors 切片与 Results 顶层映射均会复制；
// Results 中的值视为不可变数据，不做深拷贝。
func (s AgentState) Clone() AgentState {
	out := s
	if s.Messages != nil {
		out.Messages = make([]types.Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	if s.Errors != nil {
		out.Errors = make([]string, len(s.Errors))
		copy(out.Errors, s.Errors)
	}
	out.Results = make(map[string]any, len(s.Results))
	for k, v := range s.Results {
		out.Results[k] = v
	}
	return out
}

// AddMessage 追加一条消息并返回新状态。
func (s AgentState) AddMessage(msg types.Message) AgentState {
	out := s
	out.Messages = append(append([]types.Message(nil), s.Messages...), msg)
	return out
}

// SetResult 写入一个节点产出并返回新状态。
func (s AgentState) SetResult(key string, value any) AgentState {
	out := s
	out.Results = make(map[string]any, len(s.Results)+1)
	for k, v := range s.Results {
		out.Results[k] = v
	}
	out.Results[key] = value
	return out
}

// Result 读取节点产出。
func (s AgentState) Result(key string) (any, bool) {
	v, ok := s.Results[key]
	return v, ok
}

// ResultString 读取字符串类型的节点产出，不存在或类型不符时返回 ""。
func (s AgentState) ResultString(key string) string {
	if v, ok := s.Results[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// HasResult 判断某个产出是否存在且非空。
func (s AgentState) HasResult(key string) bool {
	v, ok := s.Results[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	}
	return true
}

// AddError 记录一个非致命错误并返回新状态。
func (s AgentState) AddError(msg string) AgentState {
	out := s
	out.Errors = append(append([]string(nil), s.Errors...), msg)
	return out
}

// LastUserMessage 返回最近一条用户消息内容。
func (s AgentState) LastUserMessage() string {
	return types.LastUserContent(s.Messages)
}

// MergeFrom 把子图运行后的状态合并回父状态。
// 子图状态由父状态派生而来，因此转写和错误记录直接取子图的，
// Results 取并集且子图产出覆盖同名键。
func (s AgentState) MergeFrom(sub AgentState) AgentState {
	out := s
	out.Messages = append([]types.Message(nil), sub.Messages...)
	out.Errors = append([]string(nil), sub.Errors...)
	out.Results = make(map[string]any, len(s.Results)+len(sub.Results))
	for k, v := range s.Results {
		out.Results[k] = v
	}
	for k, v := range sub.Results {
		out.Results[k] = v
	}
	return out
}
