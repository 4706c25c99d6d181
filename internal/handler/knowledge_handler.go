// Package handler 实现 HTTP 接口层。
package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RobustH/copilot/internal/middleware"
	"github.com/RobustH/copilot/internal/repository"
	"github.com/RobustH/copilot/internal/service"
	"github.com/RobustH/copilot/pkg/log"
	"github.com/gin-gonic/gin"
)

// KnowledgeHandler 处理知识库相关的 HTTP 请求。
type KnowledgeHandler struct {
	indexer          *service.CodebaseIndexer
	knowledgeService *service.KnowledgeService
	reportRepo       repository.RefreshReportRepository
	workspaceDir     string
}

// NewKnowledgeHandler 创建一个新的 KnowledgeHandler 实例。
func NewKnowledgeHandler(
	indexer *service.CodebaseIndexer,
	knowledgeService *service.KnowledgeService,
	reportRepo repository.RefreshReportRepository,
	workspaceDir string,
) *KnowledgeHandler {
	return &KnowledgeHandler{
		indexer:          indexer,
		knowledgeService: knowledgeService,
		reportRepo:       reportRepo,
		workspaceDir:     workspaceDir,
	}
}

// indexRequest 是触发索引刷新的请求体。
type indexRequest struct {
	WorkspacePath string `json:"workspacePath" binding:"required"`
}

// RefreshIndex 触发全量/增量代码索引，同步执行直到完成。
func (h *KnowledgeHandler) RefreshIndex(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.String(http.StatusUnauthorized, "未登录")
		return
	}

	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "无效的请求参数")
		return
	}

	log.Infof("接收到索引请求: userId=%s, path=%s", userID, req.WorkspacePath)

	report, err := h.indexer.Refresh(c.Request.Context(), userID, req.WorkspacePath)
	if err != nil {
		log.Error("索引失败", err)
		c.String(http.StatusInternalServerError, "索引失败: %s", err.Error())
		return
	}

	c.String(http.StatusOK, "索引完成: 新增 %d, 更新 %d, 删除 %d, 跳过 %d, 错误 %d",
		report.Added, report.Updated, report.Deleted, report.Skipped, report.Errors)
}

// GetWorkspacePath 返回 workspace 根目录的绝对路径，前端用它来触发索引。
func (h *KnowledgeHandler) GetWorkspacePath(c *gin.Context) {
	workingDir, err := os.Getwd()
	if err != nil {
		log.Error("获取 workspace 路径失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取路径失败: " + err.Error()})
		return
	}
	workspacePath, err := filepath.Abs(filepath.Join(workingDir, h.workspaceDir))
	if err != nil {
		log.Error("获取 workspace 路径失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取路径失败: " + err.Error()})
		return
	}

	log.Infof("返回 workspace 路径: %s", workspacePath)
	c.JSON(http.StatusOK, gin.H{
		"workspacePath": workspacePath,
		"workingDir":    workingDir,
	})
}

// GetIndexStatus 返回该用户最近一次索引刷新的结果。
func (h *KnowledgeHandler) GetIndexStatus(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	report, err := h.reportRepo.FindByUser(c.Request.Context(), userID)
	if err != nil {
		log.Error("读取刷新状态失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取刷新状态失败"})
		return
	}
	if report == nil {
		c.JSON(http.StatusOK, gin.H{"indexed": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": true, "report": report})
}

// Search 执行混合检索并返回结果列表。
func (h *KnowledgeHandler) Search(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
		return
	}

	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", "10"))
	if err != nil || topK <= 0 {
		topK = 10
	}

	docs := h.knowledgeService.Search(c.Request.Context(), userID, query, topK)

	type searchItem struct {
		ID        string `json:"id"`
		FilePath  string `json:"filePath"`
		Content   string `json:"content"`
		StartLine any    `json:"startLine"`
		EndLine   any    `json:"endLine"`
	}
	items := make([]searchItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, searchItem{
			ID:        doc.ID,
			FilePath:  doc.MetaString("file_path"),
			Content:   doc.Content,
			StartLine: doc.Metadata["start_line"],
			EndLine:   doc.Metadata["end_line"],
		})
	}

	log.Infof("混合检索成功, query='%s', 返回 %d 条结果", query, len(items))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": items, "message": "success"})
}
