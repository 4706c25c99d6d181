// Package service 实现知识库的索引、存储与检索业务逻辑。
package service

import (
	"context"

	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/embedding"
	"github.com/RobustH/copilot/pkg/es"
	"github.com/RobustH/copilot/pkg/log"
)

// VectorStore 抽象一个余弦相似度向量库。
// 实现负责向量化：Add 的文档只带文本内容，向量在内部生成。
type VectorStore interface {
	// Add 向量化并持久化一批文档。
	Add(ctx context.Context, docs []model.EsKnowledgeDoc) error

	// Delete 按主键批量删除。
	Delete(ctx context.Context, ids []string) error

	// SimilaritySearch 返回与查询语义最接近的至多 topK 条文档，
	// 服务端按 user_id 过滤；fileType 非空时追加 file_type 过滤。
	// 本层不做相似度阈值过滤，阈值是调用方的策略。
	SimilaritySearch(ctx context.Context, userID, query string, topK int, fileType string) ([]model.EsKnowledgeDoc, error)

	// FilterSearch 按元数据过滤做全量检索，用于收集待删除的文档 ID；
	// filePath 为空时只按 user_id 过滤。
	FilterSearch(ctx context.Context, userID, filePath string, size int) ([]model.EsKnowledgeDoc, error)

	// Available 返回底层向量库是否可用。
	Available() bool
}

// NewVectorStore 按可用性选择实现：esReady 为 false 时返回空操作实现，
// 写入被静默接受、检索返回空，系统其余部分照常服务。
func NewVectorStore(esReady bool, embeddingClient embedding.Client, esCfg config.ElasticsearchConfig) VectorStore {
	if !esReady {
		log.Warnf("向量数据库不可用，知识库向量检索已降级为空操作")
		return &noopVectorStore{}
	}
	return &esVectorStore{
		embeddingClient: embeddingClient,
		indexName:       esCfg.IndexName,
	}
}

// esVectorStore 基于 Elasticsearch dense_vector 的实现。
type esVectorStore struct {
	embeddingClient embedding.Client
	indexName       string
}

func (s *esVectorStore) Add(ctx context.Context, docs []model.EsKnowledgeDoc) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embeddingClient.CreateEmbeddings(ctx, texts)
	if err != nil {
		return err
	}

	for i := range docs {
		docs[i].Vector = vectors[i]
		if err := es.IndexDocument(ctx, s.indexName, docs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *esVectorStore) Delete(ctx context.Context, ids []string) error {
	return es.DeleteByIDs(ctx, s.indexName, ids)
}

func (s *esVectorStore) SimilaritySearch(ctx context.Context, userID, query string, topK int, fileType string) ([]model.EsKnowledgeDoc, error) {
	vector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return es.KnnSearch(ctx, s.indexName, vector, topK, tenantFilters(userID, "", fileType))
}

func (s *esVectorStore) FilterSearch(ctx context.Context, userID, filePath string, size int) ([]model.EsKnowledgeDoc, error) {
	return es.FilterSearch(ctx, s.indexName, tenantFilters(userID, filePath, ""), size)
}

func (s *esVectorStore) Available() bool {
	return true
}

// tenantFilters 构建带租户隔离的 term 过滤条件。
// user_id 恒定存在，跨租户泄漏是严重缺陷。
func tenantFilters(userID, filePath, fileType string) []map[string]interface{} {
	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"user_id": userID}},
	}
	if filePath != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"file_path": filePath},
		})
	}
	if fileType != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"file_type": fileType},
		})
	}
	return filters
}

// noopVectorStore 在向量库不可用时安装的空操作实现，所有操作静默忽略。
type noopVectorStore struct{}

func (s *noopVectorStore) Add(ctx context.Context, docs []model.EsKnowledgeDoc) error {
	log.Warnf("NoOpVectorStore: 向量库不可用，忽略 %d 条写入", len(docs))
	return nil
}

func (s *noopVectorStore) Delete(ctx context.Context, ids []string) error {
	return nil
}

func (s *noopVectorStore) SimilaritySearch(ctx context.Context, userID, query string, topK int, fileType string) ([]model.EsKnowledgeDoc, error) {
	return nil, nil
}

func (s *noopVectorStore) FilterSearch(ctx context.Context, userID, filePath string, size int) ([]model.EsKnowledgeDoc, error) {
	return nil, nil
}

func (s *noopVectorStore) Available() bool {
	return false
}
