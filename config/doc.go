// Package config 提供 TeamFlow 的统一配置加载。
// 加载优先级: 默认值 → YAML 文件 → 环境变量（TEAMFLOW_ 前缀）。
package config
