// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
Package agent 实现层级多智能体编排。

顶层监督器用 LLM 对用户任务分类，按决策把任务派给研究团队、
写作团队、两者接力（both）或直接作答（direct）。每个团队是一张
独立编译的子图：路由节点按关键词在工作节点间调度，工作节点产出
写入共享状态，最终节点把全部成果综合成回复。

基本用法：

	supervisor, err := agent.NewSupervisor(provider, registry, cacheMgr, agent.Config{
		Model: "deepseek-chat",
	}, logger)
	if err != nil {
		return err
	}

	result, err := supervisor.Process(ctx, "研究量子计算最新进展并写一份报告")
	if err != nil {
		return err
	}
	fmt.Println(result.Response)

流式消费用 ProcessStream，节点进度与最终综合的逐 token 输出
以事件形式下发：

	events, err := supervisor.ProcessStream(ctx, task)
	for ev := range events {
		switch ev.Type {
		case agent.EventToken:
			fmt.Print(ev.Content)
		case agent.EventDone:
			// ev.Result 为完整结果
		}
	}

错误处理约定：Provider 调用失败终止整次运行；工具失败与模型输出
解析失败降级为状态中的非致命错误记录，运行继续。决策解析失败时
回退到 direct 路由。
*/
package agent
