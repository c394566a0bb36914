// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
包 tools 提供工具注册中心与执行器，以及内置的团队工具集。

# 概述

ToolRegistry 管理工具函数与元数据（Schema、超时、速率限制），
ToolExecutor 负责带超时与限流的执行，把结果封装为统一的
ToolResult 信封。执行失败不会中断批次，信封同时携带错误文本
与结构化的 *ToolExecutionError，上层节点可按需降级。

# 内置工具

  - web_search：可插拔搜索后端（内置 Tavily），默认返回 5 条结果。
  - web_scraper：抓取网页并抽取可见文本（golang.org/x/net/html）。
  - document_writer：将文档落盘为 markdown 或纯文本。
  - note_taking：写作过程中的进程内笔记板。
  - chart_generator：从标注数据生成 Mermaid 图表定义。

# 使用示例

	registry := tools.NewDefaultRegistry(logger)
	_ = tools.RegisterSearchTool(registry, searchCfg, logger)
	_ = tools.RegisterScraperTool(registry, tools.DefaultScraperConfig(), logger)

	executor := tools.NewDefaultExecutor(registry, logger)
	results := executor.Execute(ctx, calls)
*/
package tools
