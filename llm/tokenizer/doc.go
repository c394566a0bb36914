// Package tokenizer 提供统一的 token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于缓存节省统计
// 与用量记录。
package tokenizer
