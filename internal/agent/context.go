package agent

import (
	"github.com/RobustH/copilot/pkg/log"
)

// Agent 框架可能以不同的 key 注入 RunnableConfig，逐一尝试。
var configKeys = []string{"_AGENT_CONFIG_", "config", "runnableConfig", "agentConfig"}

// userIDFromConfig 从 RunnableConfig 元数据中读取 userId。
func userIDFromConfig(cfg *RunnableConfig) string {
	if v, ok := cfg.MetaValue("userId"); ok && v != nil {
		if s, ok := v.(string); ok && s != "" {
			log.Infof("从 RunnableConfig.metadata 获取到 userId: %s", s)
			return s
		}
	}
	return ""
}

// ResolveUserID 按优先级解析租户：
//  1. RunnableConfig 元数据
//  2. 工具上下文中携带的 RunnableConfig（多个候选 key）
//  3. 环境会话
//
// 全部失败时返回空串，由调用方执行「缺租户即跳过」策略。
// 租户只在边界解析一次，不下沉到深层调用点。
func ResolveUserID(cfg *RunnableConfig, toolCtx map[string]interface{}, session SessionFunc) string {
	if cfg != nil {
		if userID := userIDFromConfig(cfg); userID != "" {
			return userID
		}
	}

	for _, key := range configKeys {
		rc, ok := toolCtx[key].(*RunnableConfig)
		if !ok {
			continue
		}
		if userID := userIDFromConfig(rc); userID != "" {
			log.Infof("从 ToolContext[%s] 获取到 userId: %s", key, userID)
			return userID
		}
	}

	if session != nil {
		if userID, ok := session(); ok && userID != "" {
			log.Infof("从环境会话降级获取到 userId: %s", userID)
			return userID
		}
	}

	log.Warnf("无法解析 userId")
	return ""
}
