// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
包 streaming 提供生产者与消费者之间的 token 中继。

# 概述

LLM 的流式响应由后台 goroutine 逐 token 产出，HTTP/SSE 层在另一侧
消费。两侧速率不一致，且任何一侧都可能提前退出。本包的 [Relay]
用有界缓冲连接两侧：

  - 生产者 Push 写入，缓冲满时施加反压（阻塞）。
  - 消费者 Next 以有界超时轮询，超时后重查完成标志，避免在生产者
    已崩溃时永久阻塞。
  - Finish 标记正常结束；Fail 携带错误结束。两者之后消费者先排空
    缓冲，再得到 ErrRelayDone 或失败原因。
  - 结束后的 Push 被丢弃并计数，不会 panic。

# 核心接口与类型

  - [Relay] — Push / Next / Finish / Fail / Stats
  - [Token] — 单个流式片段，Err 字段承载流中错误
  - [Stream] — 把 Provider 流接到普通 channel 的适配器
*/
package streaming
