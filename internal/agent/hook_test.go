package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userConfig(userID string) *RunnableConfig {
	return &RunnableConfig{Metadata: map[string]interface{}{"userId": userID}}
}

func newHookWithDocs(t *testing.T) *KnowledgeContextHook {
	t.Helper()
	store := &stubVectorStore{available: true}
	seedDoc(store, "u1", "/ws/Auth.java", "class Auth {}")
	return NewKnowledgeContextHook(newStubKnowledgeService(t, store), nil)
}

func TestHook_InjectsAfterFirstSystemMessage(t *testing.T) {
	hook := newHookWithDocs(t)
	messages := []Message{
		{Role: RoleSystem, Content: "You are a coding assistant."},
		{Role: RoleUser, Content: "explain the auth flow"},
	}

	updated := hook.BeforeModel(context.Background(), messages, userConfig("u1"))

	require.Len(t, updated, 3)
	assert.Equal(t, RoleSystem, updated[0].Role)
	assert.Equal(t, "You are a coding assistant.", updated[0].Content)
	// 注入的消息紧跟在第一条 system 消息之后
	assert.Equal(t, RoleSystem, updated[1].Role)
	assert.Contains(t, updated[1].Content, "## 用户项目上下文")
	assert.Contains(t, updated[1].Content, "/ws/Auth.java")
	assert.Equal(t, RoleUser, updated[2].Role)
}

func TestHook_InjectsAtHeadWhenNoSystemMessage(t *testing.T) {
	hook := newHookWithDocs(t)
	messages := []Message{{Role: RoleUser, Content: "explain the auth flow"}}

	updated := hook.BeforeModel(context.Background(), messages, userConfig("u1"))

	require.Len(t, updated, 2)
	assert.Equal(t, RoleSystem, updated[0].Role)
	assert.Contains(t, updated[0].Content, "## 用户项目上下文")
	assert.Equal(t, RoleUser, updated[1].Role)
}

func TestHook_SkipsToolCallLoop(t *testing.T) {
	hook := newHookWithDocs(t)
	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "explain the auth flow"},
		{Role: RoleAssistant, Content: "calling tool"},
		{Role: RoleTool, Content: "tool output"},
	}

	updated := hook.BeforeModel(context.Background(), messages, userConfig("u1"))
	assert.Equal(t, messages, updated)
}

func TestHook_SkipsShortQuery(t *testing.T) {
	hook := newHookWithDocs(t)
	messages := []Message{{Role: RoleUser, Content: "hey"}}

	updated := hook.BeforeModel(context.Background(), messages, userConfig("u1"))
	assert.Equal(t, messages, updated)
}

func TestHook_SkipsWhenVectorStoreUnavailable(t *testing.T) {
	store := &stubVectorStore{available: false}
	seedDoc(store, "u1", "/ws/Auth.java", "class Auth {}")
	hook := NewKnowledgeContextHook(newStubKnowledgeService(t, store), nil)

	messages := []Message{{Role: RoleUser, Content: "explain the auth flow"}}
	updated := hook.BeforeModel(context.Background(), messages, userConfig("u1"))
	assert.Equal(t, messages, updated)
}

func TestHook_SkipsWhenNoTenantResolvable(t *testing.T) {
	hook := newHookWithDocs(t)
	messages := []Message{{Role: RoleUser, Content: "explain the auth flow"}}

	updated := hook.BeforeModel(context.Background(), messages, nil)
	assert.Equal(t, messages, updated)
}

func TestHook_SkipsWhenNoResults(t *testing.T) {
	hook := NewKnowledgeContextHook(newStubKnowledgeService(t, &stubVectorStore{available: true}), nil)
	messages := []Message{{Role: RoleUser, Content: "explain the auth flow"}}

	updated := hook.BeforeModel(context.Background(), messages, userConfig("u1"))
	assert.Equal(t, messages, updated)
}

func TestHook_MultiTurnConversationStillInjects(t *testing.T) {
	hook := newHookWithDocs(t)
	messages := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "first question about auth"},
		{Role: RoleAssistant, Content: "first answer"},
		{Role: RoleUser, Content: "follow-up about the auth flow"},
	}

	updated := hook.BeforeModel(context.Background(), messages, userConfig("u1"))
	require.Len(t, updated, 5)
	assert.True(t, strings.Contains(updated[1].Content, "## 用户项目上下文"))
}

func TestResolveUserID_PriorityOrder(t *testing.T) {
	session := func() (string, bool) { return "session-user", true }

	// 1. RunnableConfig 优先
	assert.Equal(t, "cfg-user", ResolveUserID(userConfig("cfg-user"), nil, session))

	// 2. 工具上下文候选 key
	toolCtx := map[string]interface{}{"runnableConfig": userConfig("ctx-user")}
	assert.Equal(t, "ctx-user", ResolveUserID(nil, toolCtx, session))

	// 3. 会话兜底
	assert.Equal(t, "session-user", ResolveUserID(nil, nil, session))

	// 4. 全部缺席
	assert.Equal(t, "", ResolveUserID(nil, nil, nil))
}
