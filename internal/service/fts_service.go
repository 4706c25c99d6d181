package service

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/internal/repository"
	"github.com/RobustH/copilot/pkg/log"
)

// KnowledgeFtsService 是 FTS 全文检索服务。
//   - 用 MySQL ngram 解析器处理分词（ngram_token_size=2，默认）
//   - 用户输入的中/英文关键词直接传入 BOOLEAN MODE 查询
type KnowledgeFtsService struct {
	ftsRepo repository.KnowledgeFtsRepository
}

// NewKnowledgeFtsService 创建一个新的 KnowledgeFtsService 实例。
func NewKnowledgeFtsService(ftsRepo repository.KnowledgeFtsRepository) *KnowledgeFtsService {
	return &KnowledgeFtsService{ftsRepo: ftsRepo}
}

// AddBatch 批量写入 FTS 记录（在索引时与向量写入同步调用）。
func (s *KnowledgeFtsService) AddBatch(userID string, chunks []model.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	records := make([]*model.KnowledgeFts, 0, len(chunks))
	for i := range chunks {
		records = append(records, s.toFtsRecord(userID, &chunks[i]))
	}
	if err := s.ftsRepo.BatchInsert(records); err != nil {
		return err
	}
	log.Debugf("FTS 写入: userId=%s, count=%d", userID, len(records))
	return nil
}

// Search 全文检索，返回按相关性降序排列的结果。
func (s *KnowledgeFtsService) Search(userID, query string, n int) ([]model.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	booleanQuery := buildBooleanQuery(query)
	log.Infof("FTS 搜索: userId=%s, booleanQuery=%s, n=%d", userID, booleanQuery, n)

	records, err := s.ftsRepo.FullTextSearch(userID, booleanQuery, n)
	if err != nil {
		return nil, err
	}
	log.Infof("FTS 搜索结果: userId=%s, 返回 %d 条", userID, len(records))

	docs := make([]model.Document, 0, len(records))
	for _, record := range records {
		docs = append(docs, toFtsDocument(record))
	}
	return docs, nil
}

// DeleteByFilePath 按文件路径删除 FTS 记录。
func (s *KnowledgeFtsService) DeleteByFilePath(userID, filePath string) error {
	return s.ftsRepo.DeleteByFilePath(userID, filePath)
}

// DeleteByUserID 删除用户全部 FTS 记录。
func (s *KnowledgeFtsService) DeleteByUserID(userID string) error {
	return s.ftsRepo.DeleteByUserID(userID)
}

// 查询分词：空白 + 中英文标点。
var queryTermSplitter = regexp.MustCompile(`[\s　,，。？?！!、；;]+`)

// 停用词：过滤掉没有检索价值的功能词。
var stopWords = map[string]struct{}{
	"是": {}, "的": {}, "了": {}, "在": {}, "有": {}, "这": {}, "那": {},
	"和": {}, "与": {}, "怎么": {}, "如何": {}, "什么": {}, "哪些": {}, "为什么": {},
}

// buildBooleanQuery 构建 MySQL BOOLEAN MODE 查询词。
//
//	StudentNotFoundException 异常  →  +StudentNotFoundException +异常 （关键词加号强制匹配）
//
// 简化策略：分词后每个词加 + 号做 AND 必须包含搜索；
// 只剩一个词时直接用词本身（交给 ngram 分词）；全部被过滤时原样透传。
func buildBooleanQuery(query string) string {
	terms := queryTermSplitter.Split(strings.TrimSpace(query), -1)

	var meaningful []string
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if _, stop := stopWords[term]; stop {
			continue
		}
		meaningful = append(meaningful, term)
	}

	if len(meaningful) == 0 {
		return query
	}
	if len(meaningful) == 1 {
		return meaningful[0]
	}

	var sb strings.Builder
	for i, term := range meaningful {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('+')
		sb.WriteString(term)
	}
	return sb.String()
}

// toFtsRecord 构建 FTS 行。content = 文件名 + 符号信息 + 块正文
// （文件名放最前，靠词频获得权重）。
func (s *KnowledgeFtsService) toFtsRecord(userID string, chunk *model.KnowledgeChunk) *model.KnowledgeFts {
	return &model.KnowledgeFts{
		ID:        chunk.ID,
		UserID:    userID,
		FilePath:  chunk.FilePath,
		Content:   buildFtsContent(chunk),
		StartLine: chunk.StartLine,
		EndLine:   chunk.EndLine,
	}
}

// buildFtsContent 拼接全文检索内容。
func buildFtsContent(chunk *model.KnowledgeChunk) string {
	var sb strings.Builder

	if chunk.FilePath != "" {
		sb.WriteString(filepath.Base(chunk.FilePath))
		sb.WriteByte('\n')
	}

	if chunk.SymbolName != "" {
		sb.WriteString(chunk.SymbolName)
		sb.WriteByte(' ')
	}
	if chunk.SymbolKind != "" {
		sb.WriteString(chunk.SymbolKind)
		sb.WriteByte(' ')
	}
	if chunk.ParentSymbol != "" {
		sb.WriteString(chunk.ParentSymbol)
	}
	if chunk.SymbolName != "" || chunk.SymbolKind != "" || chunk.ParentSymbol != "" {
		sb.WriteByte('\n')
	}

	sb.WriteString(chunk.Content)
	return sb.String()
}

// toFtsDocument 把 FTS 行折算为统一的检索结果视图。
func toFtsDocument(record *model.KnowledgeFts) model.Document {
	return model.Document{
		ID:      record.ID,
		Content: record.Content,
		Metadata: map[string]interface{}{
			"user_id":    record.UserID,
			"file_path":  record.FilePath,
			"start_line": record.StartLine,
			"end_line":   record.EndLine,
			"source":     "fts", // 标记来源，方便调试
		},
	}
}
