package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/BaSui01/teamflow/llm"
	"go.uber.org/zap"
)

// =============================================================================
// 🏥 活跃度与就绪探针
// =============================================================================

// checkTimeout 单项就绪检查的时间上限
const checkTimeout = 3 * time.Second

// HealthCheck 就绪检查项
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthHandler 提供活跃度与就绪探针。
// 就绪检查项由装配层按实际启用的依赖注册。
type HealthHandler struct {
	logger *zap.Logger
	mu     sync.RWMutex
	checks []HealthCheck
}

// HealthStatus 探针响应。
// Status 取值：healthy 全部通过，degraded 部分失败，unhealthy 全部失败。
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单项检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// NewHealthHandler 创建探针处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		checks: make([]HealthCheck, 0),
	}
}

// RegisterCheck 注册一项就绪检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// snapshotChecks 拷贝检查列表，检查执行期间不持锁
func (h *HealthHandler) snapshotChecks() []HealthCheck {
	h.mu.RLock()
	defer h.mu.RUnlock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	return checks
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health
// @Summary 活跃度探针
// @Produce json
// @Success 200 {object} HealthStatus
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeLiveness(w)
}

// HandleHealthz 处理 /healthz（Kubernetes liveness）
// @Summary Kubernetes 活跃度探针
// @Produce json
// @Success 200 {object} HealthStatus
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeLiveness(w)
}

// 活跃度只说明进程在运行，不触达任何依赖
func (h *HealthHandler) writeLiveness(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// HandleReady 处理 /ready 与 /readyz，并发执行全部就绪检查。
// 任一检查失败都返回 503，响应体区分 degraded 与 unhealthy。
// @Summary 就绪探针
// @Produce json
// @Success 200 {object} HealthStatus
// @Failure 503 {object} HealthStatus
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks := h.snapshotChecks()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.runCheck(r.Context(), check)
		}()
	}
	wg.Wait()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	failed := 0
	for i, check := range checks {
		status.Checks[check.Name()] = results[i]
		if results[i].Status == "fail" {
			failed++
		}
	}

	switch {
	case failed == 0:
		WriteJSON(w, http.StatusOK, status)
	case failed < len(checks):
		status.Status = "degraded"
		WriteJSON(w, http.StatusServiceUnavailable, status)
	default:
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
	}
}

// runCheck 在独立超时内执行单项检查并量测耗时
func (h *HealthHandler) runCheck(ctx context.Context, check HealthCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	if err != nil {
		h.logger.Warn("readiness check failed",
			zap.String("check", check.Name()),
			zap.Error(err),
			zap.Duration("latency", latency),
		)
		return CheckResult{
			Status:  "fail",
			Message: err.Error(),
			Latency: latency.String(),
		}
	}

	return CheckResult{
		Status:  "pass",
		Latency: latency.String(),
	}
}

// HandleVersion 处理 /version，构建元数据由编译期 ldflags 注入
// @Summary 版本信息
// @Produce json
// @Success 200 {object} Response
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
			"go_version": runtime.Version(),
		})
	}
}

// =============================================================================
// 🔧 内置检查项
// =============================================================================

// PingHealthCheck 把依赖的 Ping 方法适配成就绪检查项。
// 数据库连接池与缓存存储层都走这一个适配器。
type PingHealthCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingHealthCheck 创建 Ping 适配检查项
func NewPingHealthCheck(name string, ping func(ctx context.Context) error) *PingHealthCheck {
	return &PingHealthCheck{
		name: name,
		ping: ping,
	}
}

func (c *PingHealthCheck) Name() string {
	return c.name
}

func (c *PingHealthCheck) Check(ctx context.Context) error {
	return c.ping(ctx)
}

// ProviderHealthCheck 探测 LLM Provider 可用性
type ProviderHealthCheck struct {
	provider llm.Provider
}

// NewProviderHealthCheck 创建 Provider 检查项
func NewProviderHealthCheck(provider llm.Provider) *ProviderHealthCheck {
	return &ProviderHealthCheck{provider: provider}
}

func (c *ProviderHealthCheck) Name() string {
	return "provider:" + c.provider.Name()
}

func (c *ProviderHealthCheck) Check(ctx context.Context) error {
	status, err := c.provider.HealthCheck(ctx)
	if err != nil {
		return err
	}
	if status == nil || !status.Healthy {
		return fmt.Errorf("provider %s unhealthy", c.provider.Name())
	}
	return nil
}
