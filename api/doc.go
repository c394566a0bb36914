// Package api provides request and response types for the TeamFlow HTTP API.
//
// # API Overview
//
// TeamFlow provides a RESTful API for:
//   - Hierarchical task orchestration (supervisor plus research/writing teams)
//   - SSE streaming of node progress and response tokens
//   - Conversation persistence and retrieval
//   - Orchestrator status, tool listing, and health monitoring
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8000
//
// # Endpoints
//
//	POST   /v1/chat                 execute a task and return the final result
//	POST   /v1/chat/stream          execute a task as an SSE stream
//	GET    /v1/agents/status        orchestrator and provider status
//	GET    /v1/tools                registered tool listing
//	POST   /v1/conversations        create a conversation
//	GET    /v1/conversations        list conversations
//	GET    /v1/conversations/{id}   conversation detail with messages
//	DELETE /v1/conversations/{id}   delete a conversation and its messages
//	GET    /health, /healthz        liveness probes
//	GET    /ready                   readiness probe with dependency checks
//
// # Generating Documentation
//
// To regenerate Swagger documentation using swag:
//
//	swag init -g cmd/teamflow/main.go -o api --parseDependency --parseInternal
package api
