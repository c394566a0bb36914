// Copyright (c) TeamFlow Authors.
// Licensed under the MIT License.

// Package openapi 从 OpenAPI 3.x 规范自动生成可执行工具。
//
// 支持从 URL 或本地文件加载 JSON/YAML 规范，将每个操作转换为带
// JSON Schema 的工具描述，并构造对应的 HTTP 调用函数注册进
// tools.ToolRegistry：
//
//	gen := openapi.NewGenerator(openapi.GeneratorConfig{}, logger)
//	spec, err := gen.LoadSpec(ctx, "https://api.example.com/openapi.json")
//	generated, _ := gen.GenerateTools(spec, openapi.GenerateOptions{})
//	err = gen.RegisterAll(registry, generated, openapi.InvokerConfig{
//		Headers: map[string]string{"Authorization": "Bearer " + apiKey},
//	})
//
// 生成的工具名优先取 operationId，缺省时由方法加路径推导。
package openapi
