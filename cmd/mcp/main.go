// Package main 启动一个 stdio MCP 服务器，把知识库检索暴露给本地 LLM 客户端。
// 日志走 stderr，stdout 留给 MCP 协议。
package main

import (
	"context"
	"flag"
	"os"

	"github.com/RobustH/copilot/internal/agent"
	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/internal/knowledge/splitter"
	"github.com/RobustH/copilot/internal/repository"
	"github.com/RobustH/copilot/internal/service"
	"github.com/RobustH/copilot/pkg/database"
	"github.com/RobustH/copilot/pkg/embedding"
	"github.com/RobustH/copilot/pkg/es"
	"github.com/RobustH/copilot/pkg/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf

	log.InitStderr(cfg.Log.Level)
	defer log.Sync()

	database.InitMySQL(cfg.Database.MySQL.DSN)

	esReady := true
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Warnf("Elasticsearch 不可用，向量检索已禁用: %v", err)
		esReady = false
	}

	ftsRepo := repository.NewKnowledgeFtsRepository(database.DB)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	vectorStore := service.NewVectorStore(esReady, embeddingClient, cfg.Elasticsearch)
	ftsService := service.NewKnowledgeFtsService(ftsRepo)
	vectorStoreService := service.NewKnowledgeVectorStoreService(vectorStore, ftsService, cfg.Knowledge.Search)
	splitterFactory := splitter.NewFactory(cfg.Knowledge.Splitter)
	knowledgeService := service.NewKnowledgeService(splitterFactory, vectorStoreService, ftsService)

	// stdio 模式是单用户进程：租户来自环境变量，空值拒绝检索
	session := func() (string, bool) {
		userID := os.Getenv("COPILOT_USER_ID")
		return userID, userID != ""
	}
	searchTool := agent.NewSearchKnowledgeTool(knowledgeService, session, cfg.Knowledge.Search.DefaultTopK)

	s := mcpserver.NewMCPServer("copilot-knowledge", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchKnowledgeTool(), makeSearchHandler(searchTool))

	if err := mcpserver.ServeStdio(s); err != nil {
		log.Fatal("MCP 服务器退出", err)
	}
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchKnowledgeTool() mcp.Tool {
	return mcp.NewTool(agent.SearchKnowledgeToolName,
		mcp.WithDescription(agent.SearchKnowledgeToolDescription),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Semantic description of what to look for (max 500 characters)"),
		),
		mcp.WithString("file_type",
			mcp.Description("Optional filter: CODE, DOCUMENT or CONFIG"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of results to return, 1..20 (default 5)"),
		),
	)
}

func makeSearchHandler(tool *agent.SearchKnowledgeTool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := agent.SearchParams{
			Query:    req.GetString("query", ""),
			FileType: req.GetString("file_type", ""),
		}
		if topK := req.GetInt("top_k", -1); topK >= 0 {
			params.TopK = &topK
		}

		// 参数与租户问题以 "Error: ..." 文本返回，交给模型自行处理
		result := tool.Execute(ctx, params, nil)
		return mcp.NewToolResultText(result), nil
	}
}
