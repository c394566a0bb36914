// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

package fixtures

// RoutingCase 描述一条"任务文本应路由到哪个节点"的用例
type RoutingCase struct {
	Name string
	Task string
	Want string
}

// ResearchRoutingCases 返回研究团队路由用例（无历史结果时）
func ResearchRoutingCases() []RoutingCase {
	return []RoutingCase{
		{Name: "英文搜索关键词", Task: "search for the latest quantum computing papers", Want: "search"},
		{Name: "中文搜索关键词", Task: "搜索量子计算最新进展", Want: "search"},
		{Name: "查找关键词", Task: "帮我查找相关资料", Want: "search"},
		{Name: "英文抓取关键词", Task: "scrape https://example.com for details", Want: "scrape"},
		{Name: "中文抓取关键词", Task: "抓取这个网页的正文", Want: "scrape"},
		{Name: "http链接", Task: "读取 http://example.com/report 的内容", Want: "scrape"},
		{Name: "无关键词默认搜索", Task: "量子计算的历史", Want: "search"},
	}
}

// WritingRoutingCases 返回写作团队路由用例（无历史产物时）
func WritingRoutingCases() []RoutingCase {
	return []RoutingCase{
		{Name: "英文大纲关键词", Task: "create an outline for the report", Want: "outline"},
		{Name: "中文大纲关键词", Task: "先列一个文档大纲", Want: "outline"},
		{Name: "撰写关键词", Task: "撰写一篇关于量子计算的文章", Want: "write"},
		{Name: "英文写作关键词", Task: "write the introduction section", Want: "write"},
		{Name: "图表关键词", Task: "为这些数据生成图表", Want: "chart"},
		{Name: "英文图表关键词", Task: "create a chart of quarterly revenue", Want: "chart"},
		{Name: "无关键词默认大纲", Task: "量子计算年度报告", Want: "outline"},
	}
}

// SupervisorTasks 返回顶层监督器的任务样本，键为期望的团队标签
func SupervisorTasks() map[string]string {
	return map[string]string{
		"research": "调研 2025 年量子纠错领域的主要突破",
		"writing":  "撰写一份量子计算科普文档",
		"both":     "研究量子计算最新进展并写成一份完整报告",
		"direct":   "你好，请介绍一下你自己",
	}
}
