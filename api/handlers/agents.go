package handlers

import (
	"net/http"

	"github.com/BaSui01/teamflow/agent"
	"github.com/BaSui01/teamflow/api"
	"github.com/BaSui01/teamflow/tools"
	"go.uber.org/zap"
)

// =============================================================================
// 🎭 编排器状态 Handler
// =============================================================================

// AgentsHandler 编排器状态与工具清单处理器
type AgentsHandler struct {
	supervisor *agent.Supervisor
	registry   tools.ToolRegistry
	logger     *zap.Logger
}

// NewAgentsHandler 创建编排器状态处理器
func NewAgentsHandler(supervisor *agent.Supervisor, registry tools.ToolRegistry, logger *zap.Logger) *AgentsHandler {
	return &AgentsHandler{
		supervisor: supervisor,
		registry:   registry,
		logger:     logger,
	}
}

// HandleStatus 返回编排器运行状态
// @Summary 编排器状态
// @Description 返回 Provider 健康、模型与团队编成
// @Tags 编排器
// @Produce json
// @Success 200 {object} Response{data=api.StatusResponse} "编排器状态"
// @Router /v1/agents/status [get]
func (h *AgentsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	report := h.supervisor.Status(r.Context())

	resp := api.StatusResponse{
		Provider:     report.Provider,
		Model:        report.Model,
		Healthy:      report.Healthy,
		Latency:      report.Latency.String(),
		Teams:        report.Teams,
		CacheEnabled: report.CacheEnabled,
	}

	WriteSuccess(w, resp)
}

// HandleListTools 返回已注册的工具清单
// @Summary 工具清单
// @Description 返回工具注册表中的全部工具
// @Tags 编排器
// @Produce json
// @Success 200 {object} Response{data=api.ToolListResponse} "工具清单"
// @Router /v1/tools [get]
func (h *AgentsHandler) HandleListTools(w http.ResponseWriter, r *http.Request) {
	schemas := h.registry.AsSchemas()

	infos := make([]api.ToolInfo, 0, len(schemas))
	for _, s := range schemas {
		infos = append(infos, api.ToolInfo{
			Name:        s.Name,
			Description: s.Description,
		})
	}

	WriteSuccess(w, api.ToolListResponse{Tools: infos})
}
