// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 TeamFlow 框架的全局共享类型定义。

# 概述

types 是框架最底层的公共包，不依赖任何内部包，为 graph、agent、llm、
cache、api 等上层模块提供统一的类型契约。所有跨包共享的结构体、枚举和
错误码均定义于此，以避免循环依赖。

# 核心类型

  - Message / Role    — 对话消息（System / User / Assistant / Tool）
  - ToolCall          — LLM 发起的工具调用请求
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - 消息构造：NewSystemMessage / NewUserMessage / NewAssistantMessage / NewToolMessage
  - 错误工具链：AsError / IsRetryable / GetErrorCode
  - 转写辅助：LastUserContent（取最近一条用户消息）
*/
package types
