// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 TeamFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 TeamFlow 所有 HTTP 端点的请求处理逻辑，
包括任务编排、SSE 流式输出、会话管理、健康检查以及统一的
响应/错误处理。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - ChatHandler          — 任务编排处理器，支持同步与 SSE 流式响应
  - AgentsHandler        — 编排器状态与工具清单
  - ConversationsHandler — 会话 CRUD（事务内写入）
  - HealthHandler        — 服务健康检查（/health, /healthz, /ready）
  - Response             — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo            — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter       — 包装 http.ResponseWriter 以捕获状态码
  - HealthCheck          — 可插拔健康检查接口（Database、Redis、Provider）

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - SSE 流式输出：node/token/done/error 四类事件加 [DONE] 结束标记
  - 会话落库：任务结果在事务内追加到会话消息
  - 可扩展健康检查：RegisterCheck 注册自定义 HealthCheck 实现
*/
package handlers
