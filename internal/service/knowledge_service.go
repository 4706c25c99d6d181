package service

import (
	"context"
	"crypto/md5"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/RobustH/copilot/internal/knowledge/splitter"
	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
	"github.com/google/uuid"
)

// KnowledgeService 是知识库模块的统一入口。
//
// 职责:
//  1. 文件/目录处理: 读取、切割、转换为知识块
//  2. 知识库操作: 添加、搜索、删除
//  3. 结果格式化: 提取内容、格式化上下文
type KnowledgeService struct {
	splitterFactory    *splitter.Factory
	vectorStoreService *KnowledgeVectorStoreService
	ftsService         *KnowledgeFtsService
}

// NewKnowledgeService 创建一个新的 KnowledgeService 实例。
func NewKnowledgeService(
	splitterFactory *splitter.Factory,
	vectorStoreService *KnowledgeVectorStoreService,
	ftsService *KnowledgeFtsService,
) *KnowledgeService {
	return &KnowledgeService{
		splitterFactory:    splitterFactory,
		vectorStoreService: vectorStoreService,
		ftsService:         ftsService,
	}
}

// Available 返回向量检索是否可用（FTS 不受影响）。
func (s *KnowledgeService) Available() bool {
	return s.vectorStoreService.Available()
}

// ==================== 文件处理 ====================

// AddFile 添加单个文件到知识库，返回添加的知识块数量。
//
// 增量更新策略：先删除该文件的所有旧 chunks，再插入新的。
// 这里没有做块级 hash 比对，而是文件级别的全量替换，简单可靠。
func (s *KnowledgeService) AddFile(ctx context.Context, userID, filePath string) int {
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		log.Warnf("文件不存在或不是文件: %s", filePath)
		return 0
	}

	chunks := s.processFile(userID, filePath)

	if err := s.vectorStoreService.DeleteKnowledgeByFilePath(ctx, userID, filePath); err != nil {
		log.Warnf("清理旧知识失败: 用户=%s, 文件=%s, err=%v", userID, filePath, err)
	}

	return s.saveChunks(ctx, userID, chunks)
}

// AddDirectory 递归添加目录下的所有常规文件，返回成功添加的知识块总数。
func (s *KnowledgeService) AddDirectory(ctx context.Context, userID, directoryPath string) int {
	info, err := os.Stat(directoryPath)
	if err != nil || !info.IsDir() {
		log.Warnf("目录不存在或不是目录: %s", directoryPath)
		return 0
	}

	var chunks []model.KnowledgeChunk
	walkErr := filepath.WalkDir(directoryPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		chunks = append(chunks, s.processFile(userID, path)...)
		return nil
	})
	if walkErr != nil {
		log.Errorf("处理目录失败: %s, err=%v", directoryPath, walkErr)
		return 0
	}

	return s.saveChunks(ctx, userID, chunks)
}

// AddKnowledge 添加通用文本内容到知识库，默认使用 TOKEN 切割策略。
func (s *KnowledgeService) AddKnowledge(ctx context.Context, userID, content string) int {
	return s.AddKnowledgeWithStrategy(ctx, userID, content, splitter.StrategyToken)
}

// AddKnowledgeWithStrategy 按指定策略直接添加内容，
// 适用于已知内容类型、无需提供文件路径的场景。
func (s *KnowledgeService) AddKnowledgeWithStrategy(ctx context.Context, userID, content string, strategy splitter.Strategy) int {
	if strings.TrimSpace(content) == "" {
		return 0
	}

	// 生成虚拟路径，避免 ID 冲突
	virtualPath := "dynamic-" + uuid.NewString()
	chunks := s.splitterFactory.ForStrategy(strategy).Split(content, virtualPath)
	s.fillChunkOwner(userID, contentHash(content), chunks)

	return s.saveChunks(ctx, userID, chunks)
}

// AddKnowledgeWithPath 添加知识内容并指定虚拟文件路径，
// 工厂根据扩展名自动推断最合适的切割策略。
func (s *KnowledgeService) AddKnowledgeWithPath(ctx context.Context, userID, content, filePath string) int {
	if strings.TrimSpace(content) == "" {
		return 0
	}

	chunks := s.splitterFactory.ForPath(filePath).Split(content, filePath)
	s.fillChunkOwner(userID, contentHash(content), chunks)

	return s.saveChunks(ctx, userID, chunks)
}

// processFile 读取并切割单个文件。
// IO 错误只记录日志并返回空列表，保证目录遍历不因单个文件失败而中断。
func (s *KnowledgeService) processFile(userID, filePath string) []model.KnowledgeChunk {
	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Errorf("读取文件失败: %s, err=%v", filePath, err)
		return nil
	}
	chunks := s.splitterFactory.ForPath(filePath).Split(string(data), filePath)
	s.fillChunkOwner(userID, fmt.Sprintf("%x", md5.Sum(data)), chunks)
	return chunks
}

// fillChunkOwner 补充租户与文件哈希信息。
func (s *KnowledgeService) fillChunkOwner(userID, hash string, chunks []model.KnowledgeChunk) {
	for i := range chunks {
		chunks[i].UserID = userID
		chunks[i].ContentHash = hash
	}
}

// saveChunks 统一保存知识块到向量库与 FTS。
func (s *KnowledgeService) saveChunks(ctx context.Context, userID string, chunks []model.KnowledgeChunk) int {
	if len(chunks) == 0 {
		return 0
	}
	if err := s.vectorStoreService.AddKnowledgeBatch(ctx, userID, chunks); err != nil {
		log.Errorf("存储知识失败: 用户=%s, err=%v", userID, err)
		return 0
	}
	log.Infof("已存储知识: 用户=%s, 块数=%d", userID, len(chunks))
	return len(chunks)
}

// ==================== 知识库搜索 ====================

// Search 三路合并语义检索。
//
// 权重分配：
//
//	50% → 向量语义搜索（embeddings）
//	25% → FTS 全文关键词搜索
//	25% → 最近索引文件（暂未实现，槽位保留）
//
// 结果按 filePath+startLine+endLine 去重，向量命中在前，截断到 nFinal。
func (s *KnowledgeService) Search(ctx context.Context, userID, query string, nFinal int) []model.Document {
	embeddingsN := quota(nFinal, 50)
	ftsN := quota(nFinal, 25)

	var vecResults, ftsResults []model.Document
	var wg sync.WaitGroup

	// --- 路径1：向量语义搜索（50%）---
	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := s.vectorStoreService.SearchKnowledge(ctx, userID, query, embeddingsN)
		if err != nil {
			log.Warnf("向量搜索失败: %v", err)
			return
		}
		log.Infof("[向量] userId=%s, 返回 %d 条", userID, len(results))
		vecResults = results
	}()

	// --- 路径2：FTS 全文关键词搜索（25%）---
	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := s.ftsService.Search(userID, query, ftsN)
		if err != nil {
			log.Warnf("FTS 搜索失败: %v", err)
			return
		}
		log.Infof("[FTS] userId=%s, 返回 %d 条", userID, len(results))
		ftsResults = results
	}()

	wg.Wait()

	// --- 路径3：最近索引文件（25%）---
	// 槽位已预留，recentN 配额尚无数据来源，恒为空贡献。
	recentResults := s.searchRecentlyIndexed(userID, query, quota(nFinal, 25))

	merged := make([]model.Document, 0, len(vecResults)+len(ftsResults)+len(recentResults))
	merged = append(merged, vecResults...)
	merged = append(merged, ftsResults...)
	merged = append(merged, recentResults...)

	deduped := deduplicateChunks(merged)
	log.Infof("[合并去重] query=%s, 合并前=%d, 去重后=%d", query, len(merged), len(deduped))

	if len(deduped) > nFinal {
		return deduped[:nFinal]
	}
	return deduped
}

// searchRecentlyIndexed 是融合检索的第三路数据源。
// 尚未实现：始终返回空，保持接缝以便后续接入。
func (s *KnowledgeService) searchRecentlyIndexed(userID, query string, n int) []model.Document {
	_ = n
	return nil
}

// quota 计算配额：nFinal 的 percent%，向下取整且至少为 1。
func quota(nFinal, percent int) int {
	n := nFinal * percent / 100
	if n < 1 {
		return 1
	}
	return n
}

// deduplicateChunks 按 filePath+startLine+endLine 去重，
// 保留首次出现的 chunk（向量结果优先，因为先加入合并列表）。
func deduplicateChunks(docs []model.Document) []model.Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		key := fmt.Sprintf("%v#%v-%v",
			doc.Metadata["file_path"], doc.Metadata["start_line"], doc.Metadata["end_line"])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, doc)
	}
	return out
}

// SearchByFileType 按文件类型过滤搜索（只走向量库，不融合）。
func (s *KnowledgeService) SearchByFileType(ctx context.Context, userID, query string, fileType model.FileType, topK int) ([]model.Document, error) {
	return s.vectorStoreService.SearchKnowledgeByFileType(ctx, userID, query, fileType, topK)
}

// SearchCode 搜索代码知识。
func (s *KnowledgeService) SearchCode(ctx context.Context, userID, query string, topK int) ([]model.Document, error) {
	return s.SearchByFileType(ctx, userID, query, model.FileTypeCode, topK)
}

// SearchDocuments 搜索文档知识。
func (s *KnowledgeService) SearchDocuments(ctx context.Context, userID, query string, topK int) ([]model.Document, error) {
	return s.SearchByFileType(ctx, userID, query, model.FileTypeDocument, topK)
}

// SearchConfig 搜索配置知识。
func (s *KnowledgeService) SearchConfig(ctx context.Context, userID, query string, topK int) ([]model.Document, error) {
	return s.SearchByFileType(ctx, userID, query, model.FileTypeConfig, topK)
}

// ==================== 辅助方法 ====================

// ExtractContents 提取搜索结果中的纯文本内容。
func (s *KnowledgeService) ExtractContents(docs []model.Document) []string {
	contents := make([]string, 0, len(docs))
	for _, doc := range docs {
		contents = append(contents, doc.Content)
	}
	return contents
}

// FormatAsContext 将搜索结果格式化为适合 LLM 上下文的字符串 (RAG 格式)。
//
// 输出示例:
//
//	文件: src/Main.java
//	内容:
//	public class Main { ... }
//
//	---
func (s *KnowledgeService) FormatAsContext(docs []model.Document) string {
	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		filePath := doc.MetaString("file_path")
		if filePath == "" {
			filePath = "unknown"
		}
		blocks = append(blocks, fmt.Sprintf("文件: %s\n内容:\n%s", filePath, doc.Content))
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// DeleteUserKnowledge 删除指定用户的所有知识库数据。
func (s *KnowledgeService) DeleteUserKnowledge(ctx context.Context, userID string) error {
	if err := s.vectorStoreService.DeleteUserKnowledge(ctx, userID); err != nil {
		return err
	}
	log.Infof("已删除用户知识: %s", userID)
	return nil
}

// contentHash 计算内容的 MD5。
func contentHash(content string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(content)))
}
