package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
)

// KnowledgeVectorStoreService 管理知识块在向量库中的写入、检索与清理，
// 并保持 FTS 表与向量库同步。
type KnowledgeVectorStoreService struct {
	store      VectorStore
	ftsService *KnowledgeFtsService
	searchCfg  config.SearchConfig
}

// NewKnowledgeVectorStoreService 创建一个新的 KnowledgeVectorStoreService 实例。
func NewKnowledgeVectorStoreService(store VectorStore, ftsService *KnowledgeFtsService, searchCfg config.SearchConfig) *KnowledgeVectorStoreService {
	return &KnowledgeVectorStoreService{
		store:      store,
		ftsService: ftsService,
		searchCfg:  searchCfg,
	}
}

// Available 返回向量库是否可用。FTS 不受此状态影响。
func (s *KnowledgeVectorStoreService) Available() bool {
	return s.store.Available()
}

// AddKnowledgeBatch 批量添加知识块：向量库与 FTS 同步写入。
// 向量库降级为空操作时，FTS 写入照常进行，检索退化为纯关键词。
func (s *KnowledgeVectorStoreService) AddKnowledgeBatch(ctx context.Context, userID string, chunks []model.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]model.EsKnowledgeDoc, 0, len(chunks))
	for i := range chunks {
		docs = append(docs, s.convertToDoc(userID, &chunks[i]))
	}
	if err := s.store.Add(ctx, docs); err != nil {
		return err
	}

	if err := s.ftsService.AddBatch(userID, chunks); err != nil {
		return err
	}

	log.Infof("已批量添加 %d 个知识块（向量+FTS）, 用户: %s", len(chunks), userID)
	return nil
}

// SearchKnowledge 执行向量相似度检索。
func (s *KnowledgeVectorStoreService) SearchKnowledge(ctx context.Context, userID, query string, topK int) ([]model.Document, error) {
	log.Infof("执行向量搜索: userId=%s, query=%s, topK=%d", userID, query, topK)
	docs, err := s.store.SimilaritySearch(ctx, userID, query, topK, "")
	if err != nil {
		return nil, err
	}
	log.Infof("向量搜索结束: userId=%s, 返回 %d 条结果", userID, len(docs))
	return toDocuments(docs), nil
}

// SearchKnowledgeByFileType 检索指定文件类型的知识。
func (s *KnowledgeVectorStoreService) SearchKnowledgeByFileType(ctx context.Context, userID, query string, fileType model.FileType, topK int) ([]model.Document, error) {
	docs, err := s.store.SimilaritySearch(ctx, userID, query, topK, string(fileType))
	if err != nil {
		return nil, err
	}
	return toDocuments(docs), nil
}

// DeleteKnowledgeByFilePath 删除指定文件的所有知识（用于更新文件时清理旧数据）。
// 向量库不支持按条件删除，用「过滤检索收集 ID + 批量删除」模拟；
// 检索上限取配置的 max_file_chunks，单文件块数需保持在其之下。
func (s *KnowledgeVectorStoreService) DeleteKnowledgeByFilePath(ctx context.Context, userID, filePath string) error {
	docs, err := s.store.FilterSearch(ctx, userID, filePath, s.searchCfg.MaxFileChunks)
	if err != nil {
		log.Warnf("清理旧文件数据失败 (可能是首次添加): %v", err)
	} else if len(docs) > 0 {
		ids := make([]string, len(docs))
		for i, doc := range docs {
			ids[i] = doc.ID
		}
		if err := s.store.Delete(ctx, ids); err != nil {
			return err
		}
		log.Infof("已清理旧文件数据: 用户=%s, 文件=%s, 删除条数=%d", userID, filePath, len(ids))
	}

	// FTS 清理不依赖向量检索结果：向量库降级时路径对应的 FTS 记录也必须删掉
	return s.ftsService.DeleteByFilePath(userID, filePath)
}

// DeleteUserKnowledge 删除用户的所有知识。
func (s *KnowledgeVectorStoreService) DeleteUserKnowledge(ctx context.Context, userID string) error {
	docs, err := s.store.FilterSearch(ctx, userID, "", s.searchCfg.MaxUserChunks)
	if err != nil {
		log.Warnf("清理用户知识失败: %v", err)
	} else if len(docs) > 0 {
		ids := make([]string, len(docs))
		for i, doc := range docs {
			ids[i] = doc.ID
		}
		if err := s.store.Delete(ctx, ids); err != nil {
			return err
		}
		log.Infof("已清理用户知识: 用户=%s, 删除条数=%d", userID, len(ids))
	}
	return s.ftsService.DeleteByUserID(userID)
}

// convertToDoc 把知识块转换为向量库文档。内容前追加中文语义描述头
// （类 Continue 的 context augmentation），缓解中文查询与英文代码之间的
// 跨语言语义鸿沟。描述头是存储内容的一部分，检索时不剥离。
func (s *KnowledgeVectorStoreService) convertToDoc(userID string, chunk *model.KnowledgeChunk) model.EsKnowledgeDoc {
	return model.EsKnowledgeDoc{
		ID:           chunk.ID,
		UserID:       userID,
		FilePath:     chunk.FilePath,
		FileType:     string(chunk.FileType),
		Language:     chunk.Language,
		Content:      buildEnrichedContent(chunk),
		StartLine:    chunk.StartLine,
		EndLine:      chunk.EndLine,
		ChunkIndex:   chunk.ChunkIndex,
		ContentHash:  chunk.ContentHash,
		SymbolName:   chunk.SymbolName,
		SymbolKind:   chunk.SymbolKind,
		ParentSymbol: chunk.ParentSymbol,
		CreatedAt:    chunk.CreatedAt,
	}
}

// buildEnrichedContent 在原始内容前拼接自然语言描述头。
// 示例：
//
//	文件: StudentNotFoundException.java | 类型: 类 | 符号: StudentNotFoundException
//	[原始代码...]
func buildEnrichedContent(chunk *model.KnowledgeChunk) string {
	var prefix strings.Builder

	if chunk.FilePath != "" {
		prefix.WriteString("文件: ")
		prefix.WriteString(filepath.Base(chunk.FilePath))
	}
	if chunk.SymbolKind != "" {
		prefix.WriteString(" | 类型: ")
		prefix.WriteString(symbolKindChinese(chunk.SymbolKind))
	}
	if chunk.SymbolName != "" {
		prefix.WriteString(" | 符号: ")
		prefix.WriteString(chunk.SymbolName)
	}
	if chunk.ParentSymbol != "" {
		prefix.WriteString(" | 所属: ")
		prefix.WriteString(chunk.ParentSymbol)
	}

	if prefix.Len() == 0 {
		return chunk.Content
	}
	return prefix.String() + "\n" + chunk.Content
}

// symbolKindChinese 把符号类型翻译为中文描述。
func symbolKindChinese(kind string) string {
	switch strings.ToUpper(kind) {
	case model.SymbolClass:
		return "类"
	case model.SymbolInterface:
		return "接口"
	case model.SymbolMethod:
		return "方法"
	case model.SymbolField:
		return "字段"
	case model.SymbolEnum:
		return "枚举"
	case model.SymbolAnnotation:
		return "注解"
	default:
		return kind
	}
}

// toDocuments 把向量库文档折算为统一的检索结果视图。
func toDocuments(docs []model.EsKnowledgeDoc) []model.Document {
	results := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		metadata := map[string]interface{}{
			"user_id":      doc.UserID,
			"file_path":    doc.FilePath,
			"file_type":    doc.FileType,
			"language":     doc.Language,
			"start_line":   doc.StartLine,
			"end_line":     doc.EndLine,
			"chunk_index":  doc.ChunkIndex,
			"content_hash": doc.ContentHash,
			"created_at":   doc.CreatedAt,
		}
		if doc.SymbolName != "" {
			metadata["symbol_name"] = doc.SymbolName
		}
		if doc.SymbolKind != "" {
			metadata["symbol_kind"] = doc.SymbolKind
		}
		if doc.ParentSymbol != "" {
			metadata["parent_symbol"] = doc.ParentSymbol
		}
		results = append(results, model.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadata,
		})
	}
	return results
}
