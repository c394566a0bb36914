// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
包 llm 提供统一的大语言模型接入层，屏蔽不同模型服务商在接口、
鉴权、错误语义和流式协议上的差异。

# 概述

上层编排代码只依赖 [Provider] 接口，切换底层模型服务时调用方无需改动。
请求与响应模型复用 types 包的消息类型，流式输出以 [StreamChunk]
增量片段通过 channel 传递。

# 核心接口与类型

  - [Provider]：LLM 提供者接口，提供 Completion / Stream / HealthCheck /
    Name / SupportsNativeFunctionCalling
  - [ChatRequest] / [ChatResponse]：聊天补全的请求与响应模型
  - [StreamChunk]：流式输出的增量片段，Err 字段承载流中错误
  - [Error]：结构化 Provider 错误，带错误码、HTTP 状态与重试标记

# 子包

  - providers/openaicompat：OpenAI 兼容 API 的通用 Provider 基座
  - providers/deepseek：DeepSeek 适配（OpenAI 兼容格式）
  - providers/cohere：Cohere v2 Chat API 原生适配
  - factory：按名称创建 Provider 的集中工厂
  - streaming：生产者/消费者之间的 token 中继
*/
package llm
