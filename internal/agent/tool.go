package agent

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/internal/service"
	"github.com/RobustH/copilot/pkg/log"
)

// SearchKnowledgeToolName 是暴露给 LLM 的工具名。
const SearchKnowledgeToolName = "search_knowledge"

// SearchKnowledgeToolDescription 是暴露给 LLM 的工具说明。
const SearchKnowledgeToolDescription = "Search the user's knowledge base (codebase and documents) for relevant information. " +
	"Returns matching code snippets, documentation, and file references based on semantic similarity. " +
	"Use this when you need to find specific information in the user's project, " +
	"such as code examples, configuration files, class definitions, or documentation. " +
	"IMPORTANT: The 'query' parameter should describe WHAT you are looking for semantically " +
	"(e.g. 'project introduction', 'user authentication implementation', 'database configuration'), " +
	"NOT include user IDs, folder names, or system identifiers. " +
	"Parameters: query (required), file_type (optional: CODE/DOCUMENT/CONFIG), top_k (optional, default 5)."

const (
	maxQueryLength     = 500
	minToolTopK        = 1
	maxToolTopK        = 20
	defaultToolResults = 5
)

// SearchParams 是 search_knowledge 工具的参数。
type SearchParams struct {
	// 搜索查询
	Query string `json:"query"`
	// 文件类型过滤 (可选): CODE, DOCUMENT, CONFIG
	FileType string `json:"file_type,omitempty"`
	// 返回结果数量 (可选,默认 5)
	TopK *int `json:"top_k,omitempty"`
}

// SearchKnowledgeTool 允许 AI 主动搜索用户的知识库，查找相关代码和文档。
// 租户不是工具参数，从调用上下文解析，降级到环境会话。
type SearchKnowledgeTool struct {
	knowledgeService *service.KnowledgeService
	session          SessionFunc
	defaultTopK      int
}

// NewSearchKnowledgeTool 创建一个新的 SearchKnowledgeTool 实例。
// defaultTopK <= 0 时使用内置默认值 5。
func NewSearchKnowledgeTool(knowledgeService *service.KnowledgeService, session SessionFunc, defaultTopK int) *SearchKnowledgeTool {
	if defaultTopK <= 0 {
		defaultTopK = defaultToolResults
	}
	return &SearchKnowledgeTool{knowledgeService: knowledgeService, session: session, defaultTopK: defaultTopK}
}

// Execute 执行一次工具调用，返回喂给 LLM 的文本。
// 参数或租户问题以 "Error: ..." 字符串返回，不抛错。
func (t *SearchKnowledgeTool) Execute(ctx context.Context, params SearchParams, toolCtx map[string]interface{}) string {
	if msg := validateParams(params); msg != "" {
		return "Error: " + msg
	}

	userID := ResolveUserID(nil, toolCtx, t.session)
	if userID == "" {
		return "Error: User ID not found in context"
	}

	log.Infof("搜索知识库: userId=%s, query=%s, fileType=%s", userID, params.Query, params.FileType)

	results, err := t.search(ctx, userID, params)
	if err != nil {
		log.Errorf("知识库搜索失败: query=%s, err=%v", params.Query, err)
		return "Error: Failed to search knowledge base: " + err.Error()
	}

	formatted := t.knowledgeService.FormatAsContext(results)
	if strings.TrimSpace(formatted) == "" {
		return "No relevant knowledge found for query: " + params.Query
	}

	log.Infof("知识库搜索完成: userId=%s, 找到 %d 条结果", userID, len(results))
	return formatted
}

// validateParams 校验工具参数，返回错误描述；合法时返回空串。
func validateParams(params SearchParams) string {
	if strings.TrimSpace(params.Query) == "" {
		return "Query cannot be empty"
	}
	if utf8.RuneCountInString(params.Query) > maxQueryLength {
		return "Query is too long (max 500 characters)"
	}
	if params.FileType != "" {
		switch strings.ToUpper(params.FileType) {
		case "CODE", "DOCUMENT", "CONFIG":
		default:
			return "Invalid file_type. Must be one of: CODE, DOCUMENT, CONFIG"
		}
	}
	if params.TopK != nil && (*params.TopK < minToolTopK || *params.TopK > maxToolTopK) {
		return "top_k must be between 1 and 20"
	}
	return ""
}

// search 根据参数选择通用融合检索或按类型过滤检索。
func (t *SearchKnowledgeTool) search(ctx context.Context, userID string, params SearchParams) ([]model.Document, error) {
	topK := t.defaultTopK
	if params.TopK != nil {
		topK = *params.TopK
	}

	if params.FileType == "" {
		return t.knowledgeService.Search(ctx, userID, params.Query, topK), nil
	}

	switch strings.ToUpper(params.FileType) {
	case "CODE":
		return t.knowledgeService.SearchCode(ctx, userID, params.Query, topK)
	case "DOCUMENT":
		return t.knowledgeService.SearchDocuments(ctx, userID, params.Query, topK)
	case "CONFIG":
		return t.knowledgeService.SearchConfig(ctx, userID, params.Query, topK)
	default:
		return t.knowledgeService.Search(ctx, userID, params.Query, topK), nil
	}
}
