package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/teamflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📦 统一响应信封
// =============================================================================

// Response 所有 JSON 端点共用的响应信封。
// request_id 来自 RequestID 中间件写入的 X-Request-ID 头，
// 客户端拿它对应服务端日志。
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorInfo 信封中的错误体
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	HTTPStatus int    `json:"-"` // 不序列化到 JSON
}

// requestIDFrom 取中间件已写入响应头的请求 ID，未经过中间件时为空
func requestIDFrom(w http.ResponseWriter) string {
	return w.Header().Get("X-Request-ID")
}

// =============================================================================
// 🎯 响应写入
// =============================================================================

// WriteJSON 以给定状态码写入 JSON 响应体
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	// 状态行已发出，编码失败（通常是连接中断）无法补救
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess 写入成功信封
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestIDFrom(w),
	})
}

// WriteError 把 types.Error 翻译成错误信封并记录日志。
// HTTPStatus 未显式设置时按错误码映射。
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:       string(err.Code),
			Message:    err.Message,
			Retryable:  err.Retryable,
			HTTPStatus: status,
		},
		Timestamp: time.Now(),
		RequestID: requestIDFrom(w),
	})
}

// WriteErrorMessage 按状态码与错误码写入简单错误信封
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	err := types.NewError(code, message).WithHTTPStatus(status)
	WriteError(w, err, logger)
}

// =============================================================================
// 🔄 错误码 → HTTP 状态码
// =============================================================================

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	// 4xx 客户端错误
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrAuthentication:
		return http.StatusUnauthorized
	case types.ErrModelNotFound, types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrRateLimit:
		return http.StatusTooManyRequests
	case types.ErrContextTooLong:
		return http.StatusRequestEntityTooLarge

	// 5xx 服务端错误
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	case types.ErrServiceUnavailable, types.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrUpstreamError, types.ErrDecisionParse:
		return http.StatusBadGateway
	case types.ErrRoutingFailure, types.ErrRoutingLoop,
		types.ErrToolExecution, types.ErrCacheFailure,
		types.ErrInternalError:
		return http.StatusInternalServerError

	// 默认
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// 🛡️ 请求解析
// =============================================================================

// maxRequestBodyBytes 请求体大小上限
const maxRequestBodyBytes = 1 << 20 // 1 MB

// DecodeJSONBody 严格解码 JSON 请求体：未知字段、超限、
// 同一请求体里的第二个 JSON 值都按客户端错误拒绝。
// 出错时已写入错误响应，调用方直接 return 即可。
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil || r.Body == http.NoBody {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := translateDecodeError(err)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	if decoder.More() {
		apiErr := types.NewError(types.ErrInvalidRequest, "request body must contain a single JSON object").
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	return nil
}

// translateDecodeError 把解码失败翻译成对外错误，隐藏内部细节
func translateDecodeError(err error) *types.Error {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit)).
			WithCause(err).
			WithHTTPStatus(http.StatusRequestEntityTooLarge)
	case errors.Is(err, io.EOF):
		return types.NewError(types.ErrInvalidRequest, "request body is empty").
			WithHTTPStatus(http.StatusBadRequest)
	default:
		return types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
	}
}

// ValidateContentType 要求 application/json，charset 只接受 utf-8
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "Content-Type must be application/json"), logger)
		return false
	}
	if cs, ok := params["charset"]; ok && !strings.EqualFold(cs, "utf-8") {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "unsupported charset"), logger)
		return false
	}
	return true
}

// =============================================================================
// 📊 状态码捕获包装器
// =============================================================================

// ResponseWriter 包装 http.ResponseWriter，记录首次写入的状态码，
// 供日志与指标中间件读取。
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter 包装 w，默认状态码 200
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader 只记录第一次写入的状态码，后续调用忽略
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush 透传 http.Flusher，流式响应经过包装器时仍能逐块下发
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap 暴露内层 writer，配合 http.ResponseController 使用
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
