package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/llm"
)

// =============================================================================
// 📝 文档写入工具
// =============================================================================

// WriterConfig 文档写入配置
type WriterConfig struct {
	OutputDir string // 输出目录，默认 "outputs"
}

type writeDocArgs struct {
	Filename string `json:"filename,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Format   string `json:"format,omitempty"` // markdown 或 text，默认 markdown
}

type writeDocResponse struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// NewDocumentWriterTool 创建文档写入工具函数
//
// 将生成的文档落盘到输出目录，文件名缺省时由标题派生。
func NewDocumentWriterTool(config WriterConfig, logger *zap.Logger) (ToolFunc, ToolMetadata) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.OutputDir == "" {
		config.OutputDir = "outputs"
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params writeDocArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid document_writer arguments: %w", err)
		}

		if params.Content == "" {
			return nil, fmt.Errorf("content is required")
		}

		ext := ".md"
		if params.Format == "text" {
			ext = ".txt"
		}

		name := params.Filename
		if name == "" {
			name = params.Title
		}
		if name == "" {
			name = "document"
		}
		name = sanitizeFilename(name)

		if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}

		var body string
		if params.Title != "" && params.Format != "text" {
			body = fmt.Sprintf("# %s\n\n%s", params.Title, params.Content)
		} else {
			body = params.Content
		}

		path := filepath.Join(config.OutputDir, name+ext)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write document: %w", err)
		}

		logger.Info("document written",
			zap.String("path", path),
			zap.Int("bytes", len(body)),
		)

		return json.Marshal(writeDocResponse{Path: path, Bytes: len(body)})
	}

	metadata := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "document_writer",
			Description: "Write a document to the output directory as markdown or plain text.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"filename": {
						"type": "string",
						"description": "Target file name without extension (derived from title when omitted)"
					},
					"title": {
						"type": "string",
						"description": "Document title"
					},
					"content": {
						"type": "string",
						"description": "Document body"
					},
					"format": {
						"type": "string",
						"enum": ["markdown", "text"],
						"description": "Output format (default: markdown)"
					}
				},
				"required": ["content"]
			}`),
		},
		Timeout:     10 * time.Second,
		Description: "Persists generated documents to disk.",
	}

	return fn, metadata
}

// RegisterDocumentWriterTool 创建并注册文档写入工具
func RegisterDocumentWriterTool(registry ToolRegistry, config WriterConfig, logger *zap.Logger) error {
	fn, metadata := NewDocumentWriterTool(config, logger)
	return registry.Register("document_writer", fn, metadata)
}

// sanitizeFilename 清理文件名中的路径分隔符与空白
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		"..", "-",
		" ", "-",
		":", "-",
	)
	name = replacer.Replace(name)
	if name == "" || name == "-" {
		name = "document"
	}
	return name
}

// =============================================================================
// 🗒️ 笔记工具
// =============================================================================

// Note 单条笔记
type Note struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NotesStore 进程内笔记存储，并发安全
type NotesStore struct {
	mu    sync.Mutex
	notes []Note
	next  int
}

// NewNotesStore 创建笔记存储
func NewNotesStore() *NotesStore {
	return &NotesStore{next: 1}
}

// Add 追加一条笔记并返回其 ID
func (s *NotesStore) Add(content string) Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := Note{ID: s.next, Content: content, CreatedAt: time.Now()}
	s.next++
	s.notes = append(s.notes, note)
	return note
}

// List 返回全部笔记快照
func (s *NotesStore) List() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Clear 清空笔记，返回清除数量
func (s *NotesStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.notes)
	s.notes = nil
	return n
}

type noteArgs struct {
	Action string `json:"action"`
	Note   string `json:"note,omitempty"`
}

// NewNoteTakingTool 创建笔记工具函数
func NewNoteTakingTool(store *NotesStore, logger *zap.Logger) (ToolFunc, ToolMetadata) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params noteArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid note_taking arguments: %w", err)
		}

		switch params.Action {
		case "add":
			if params.Note == "" {
				return nil, fmt.Errorf("note is required for action add")
			}
			note := store.Add(params.Note)
			logger.Debug("note added", zap.Int("id", note.ID))
			return json.Marshal(map[string]any{"id": note.ID, "total": len(store.List())})

		case "list":
			return json.Marshal(map[string]any{"notes": store.List()})

		case "clear":
			cleared := store.Clear()
			return json.Marshal(map[string]any{"cleared": cleared})

		default:
			return nil, fmt.Errorf("unknown action: %s (supported: add, list, clear)", params.Action)
		}
	}

	metadata := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "note_taking",
			Description: "Record, list, or clear working notes during a writing session.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"action": {
						"type": "string",
						"enum": ["add", "list", "clear"],
						"description": "Operation to perform"
					},
					"note": {
						"type": "string",
						"description": "Note content (required for add)"
					}
				},
				"required": ["action"]
			}`),
		},
		Timeout:     5 * time.Second,
		Description: "In-memory note pad shared by the writing team.",
	}

	return fn, metadata
}

// RegisterNoteTakingTool 创建并注册笔记工具
func RegisterNoteTakingTool(registry ToolRegistry, store *NotesStore, logger *zap.Logger) error {
	fn, metadata := NewNoteTakingTool(store, logger)
	return registry.Register("note_taking", fn, metadata)
}

// =============================================================================
// 📊 图表生成工具
// =============================================================================

type chartArgs struct {
	ChartType string    `json:"chart_type"`
	Title     string    `json:"title,omitempty"`
	Labels    []string  `json:"labels"`
	Values    []float64 `json:"values"`
}

type chartResponse struct {
	ChartType string `json:"chart_type"`
	Mermaid   string `json:"mermaid"`
	Points    int    `json:"points"`
}

// NewChartGeneratorTool 创建图表生成工具函数
//
// 输出 Mermaid 图表定义（pie / xychart-beta），前端直接渲染。
func NewChartGeneratorTool(logger *zap.Logger) (ToolFunc, ToolMetadata) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fn := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var params chartArgs
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid chart_generator arguments: %w", err)
		}

		if len(params.Labels) == 0 || len(params.Labels) != len(params.Values) {
			return nil, fmt.Errorf("labels and values must be non-empty and of equal length")
		}

		mermaid, err := renderMermaid(params)
		if err != nil {
			return nil, err
		}

		logger.Debug("chart generated",
			zap.String("type", params.ChartType),
			zap.Int("points", len(params.Labels)),
		)

		return json.Marshal(chartResponse{
			ChartType: params.ChartType,
			Mermaid:   mermaid,
			Points:    len(params.Labels),
		})
	}

	metadata := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "chart_generator",
			Description: "Generate a Mermaid chart definition (pie, bar, or line) from labeled data.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"chart_type": {
						"type": "string",
						"enum": ["pie", "bar", "line"],
						"description": "Chart type"
					},
					"title": {
						"type": "string",
						"description": "Chart title"
					},
					"labels": {
						"type": "array",
						"items": {"type": "string"},
						"description": "Category labels"
					},
					"values": {
						"type": "array",
						"items": {"type": "number"},
						"description": "Data values, one per label"
					}
				},
				"required": ["chart_type", "labels", "values"]
			}`),
		},
		Timeout:     5 * time.Second,
		Description: "Chart builder emitting renderable Mermaid definitions.",
	}

	return fn, metadata
}

// RegisterChartGeneratorTool 创建并注册图表生成工具
func RegisterChartGeneratorTool(registry ToolRegistry, logger *zap.Logger) error {
	fn, metadata := NewChartGeneratorTool(logger)
	return registry.Register("chart_generator", fn, metadata)
}

func renderMermaid(params chartArgs) (string, error) {
	var sb strings.Builder

	switch params.ChartType {
	case "pie":
		sb.WriteString("pie")
		if params.Title != "" {
			sb.WriteString(" title " + params.Title)
		}
		sb.WriteByte('\n')
		for i, label := range params.Labels {
			fmt.Fprintf(&sb, "    %q : %g\n", label, params.Values[i])
		}

	case "bar", "line":
		sb.WriteString("xychart-beta\n")
		if params.Title != "" {
			fmt.Fprintf(&sb, "    title %q\n", params.Title)
		}
		quoted := make([]string, len(params.Labels))
		for i, label := range params.Labels {
			quoted[i] = fmt.Sprintf("%q", label)
		}
		fmt.Fprintf(&sb, "    x-axis [%s]\n", strings.Join(quoted, ", "))

		nums := make([]string, len(params.Values))
		for i, v := range params.Values {
			nums[i] = fmt.Sprintf("%g", v)
		}
		fmt.Fprintf(&sb, "    %s [%s]\n", params.ChartType, strings.Join(nums, ", "))

	default:
		return "", fmt.Errorf("unknown chart_type: %s (supported: pie, bar, line)", params.ChartType)
	}

	return sb.String(), nil
}
