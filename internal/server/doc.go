// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP 监听器的生命周期管理：非阻塞启动、优雅关闭
与异步错误传播。

# 概述

本包通过 Manager 封装 net/http.Server 与 net.Listener。每个
Manager 有名字（"api"、"metrics"），日志与错误信息都带上它，
多监听器进程里能直接看出是谁出了问题。生命周期是单向状态机：
未启动 → 服务中 → 已关闭，Start 在关闭后拒绝复用。

# 核心类型

  - Manager：监听器管理器，提供 Start/Shutdown/Errors/Addr/
    IsRunning 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与
    优雅关闭超时；零值字段在启动时回填默认值。

# 主要能力

  - 非阻塞启动：Start 先同步完成端口绑定（地址写 ":0" 时由内核
    分配，Addr 返回实际端口），再在后台 goroutine 中服务。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空，重复调用幂等。
  - 错误传播：Errors() 返回容量为 1 的错误通道，服务 goroutine
    意外退出时写入，调用方 select 监听即可。

进程级的信号处理（SIGINT/SIGTERM）不在本包，由 cmd 入口统一
监听并逐个关闭各 Manager。
*/
package server
