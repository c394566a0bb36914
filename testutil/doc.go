// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 TeamFlow 测试的共享工具。

子包组织：

  - mocks: llm.Provider 与工具层的可编程测试替身
  - fixtures: 预定义的响应、决策 JSON 与路由用例样本

顶层包本身提供上下文、JSON、通道收集等通用辅助函数。

基本用法：

	func TestSupervisorRouting(t *testing.T) {
		ctx := testutil.TestContext(t)
		provider := mocks.NewScriptedProvider(
			fixtures.DecisionJSON("research"),
			fixtures.SynthesisReply(),
		)
		// 用 provider 组装监督器并断言路由行为
	}

mocks.MockProvider 的脚本队列按调用顺序出队，一次多阶段编排
（决策、团队工作、最终综合）可以用一条队列写完整个剧本。
*/
package testutil
