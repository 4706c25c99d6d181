package agent

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/RobustH/copilot/internal/service"
	"github.com/RobustH/copilot/pkg/log"
)

const (
	// 最多注入的知识条数
	maxHookResults = 3
	// 触发检索的最小查询长度（字符）
	minQueryLength = 5
)

// KnowledgeContextHook 在模型调用前自动从知识库检索相关内容并注入上下文。
// 在每个用户轮次的首次模型调用时注入（多轮对话的后续轮次同样注入）；工具调用内部循环不干预。
type KnowledgeContextHook struct {
	knowledgeService *service.KnowledgeService
	session          SessionFunc
}

// NewKnowledgeContextHook 创建一个新的 KnowledgeContextHook 实例。
func NewKnowledgeContextHook(knowledgeService *service.KnowledgeService, session SessionFunc) *KnowledgeContextHook {
	return &KnowledgeContextHook{knowledgeService: knowledgeService, session: session}
}

// Name 返回 Hook 名称。
func (h *KnowledgeContextHook) Name() string {
	return "knowledge_context_hook"
}

// BeforeModel 在每次模型调用前被框架以当前消息列表调用，
// 返回（可能被修改的）消息列表。任何失败都不干预消息流。
func (h *KnowledgeContextHook) BeforeModel(ctx context.Context, messages []Message, cfg *RunnableConfig) []Message {
	// 向量库不可用时直接跳过，不干预消息流
	if !h.knowledgeService.Available() {
		log.Debugf("向量数据库不可用，跳过知识上下文注入")
		return messages
	}

	// 只跳过工具调用内部循环（最后一条消息是工具响应时）。
	// 多轮对话也能注入知识，不能因为有历史 assistant 消息就跳过。
	if len(messages) > 0 && messages[len(messages)-1].Role == RoleTool {
		log.Debugf("工具调用内部循环, 跳过知识上下文注入")
		return messages
	}

	userID := ResolveUserID(cfg, nil, h.session)
	if userID == "" {
		log.Warnf("未找到 userId，跳过知识上下文注入")
		return messages
	}

	userQuery := extractUserQuery(messages)
	if utf8.RuneCountInString(userQuery) < minQueryLength {
		log.Debugf("用户查询为空或太短, 跳过知识上下文注入")
		return messages
	}

	log.Infof("开始知识库搜索: userId=%s, query=%s", userID, userQuery)
	docs := h.knowledgeService.Search(ctx, userID, userQuery, maxHookResults)
	log.Infof("知识库搜索结果: userId=%s, 结果数=%d", userID, len(docs))
	if len(docs) == 0 {
		log.Debugf("未找到相关知识, 跳过上下文注入: query=%s", userQuery)
		return messages
	}

	knowledgeContext := h.knowledgeService.FormatAsContext(docs)
	if strings.TrimSpace(knowledgeContext) == "" {
		return messages
	}

	contextMessage := Message{
		Role: RoleSystem,
		Content: "## 用户项目上下文\n\n" +
			"以下是从用户知识库中检索到的相关内容,可以帮助你更好地理解用户的项目:\n\n" +
			knowledgeContext + "\n\n" +
			"请基于这些上下文信息回答用户的问题。",
	}

	updated := injectContext(messages, contextMessage)
	log.Infof("已注入知识上下文: userId=%s, 知识块数=%d, 查询=%s", userID, len(docs), userQuery)
	return updated
}

// extractUserQuery 从后往前找第一条用户消息的文本。
func extractUserQuery(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// injectContext 在第一条 system 消息之后插入上下文；
// 没有 system 消息时插到最前面。
func injectContext(messages []Message, contextMessage Message) []Message {
	result := make([]Message, 0, len(messages)+1)

	injected := false
	for _, msg := range messages {
		result = append(result, msg)
		if !injected && msg.Role == RoleSystem {
			result = append(result, contextMessage)
			injected = true
		}
	}

	if !injected {
		result = append([]Message{contextMessage}, result...)
	}
	return result
}
