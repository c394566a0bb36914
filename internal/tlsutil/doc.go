// Package tlsutil 提供集中式 TLS 配置，
// 为出站 HTTP 客户端（LLM Provider、搜索、抓取、OpenAPI 工具）提供
// 安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
