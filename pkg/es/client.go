// Package es 提供了与 Elasticsearch 交互的客户端功能。
// 知识库把它当作余弦相似度向量索引使用。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端并确保向量索引存在。
// dims 为向量维度，需与 Embedding 模型输出一致。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}

	// 建连探测：Ping 失败视为向量库不可用，由上层决定降级
	res, err := client.Ping(client.Ping.WithContext(context.Background()))
	if err != nil {
		return fmt.Errorf("elasticsearch ping 失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping 返回错误: %s", res.Status())
	}

	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName, dims)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	// 如果 res.StatusCode 是 200，说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 元数据字段全部 keyword，content 保留全文可读性，向量用 cosine 相似度
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"id": { "type": "keyword" },
				"user_id": { "type": "keyword" },
				"file_path": { "type": "keyword" },
				"file_type": { "type": "keyword" },
				"language": { "type": "keyword" },
				"content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"start_line": { "type": "integer" },
				"end_line": { "type": "integer" },
				"chunk_index": { "type": "integer" },
				"content_hash": { "type": "keyword" },
				"symbol_name": { "type": "keyword" },
				"symbol_kind": { "type": "keyword" },
				"parent_symbol": { "type": "keyword" },
				"created_at": { "type": "long" }
			}
		}
	}`, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexDocument 将单个知识文档索引到 Elasticsearch。
func IndexDocument(ctx context.Context, indexName string, doc model.EsKnowledgeDoc) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}

	return nil
}

// KnnSearch 执行 knn 向量检索，filters 为附加的 term 过滤条件（如 user_id）。
// 返回按相似度降序排列的文档。
func KnnSearch(ctx context.Context, indexName string, vector []float32, topK int, filters []map[string]interface{}) ([]model.EsKnowledgeDoc, error) {
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
			"filter": map[string]interface{}{
				"bool": map[string]interface{}{
					"must": filters,
				},
			},
		},
		"size":    topK,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
	return doSearch(ctx, indexName, query)
}

// FilterSearch 按过滤条件做 match_all 检索，用于收集待删除文档。
func FilterSearch(ctx context.Context, indexName string, filters []map[string]interface{}, size int) ([]model.EsKnowledgeDoc, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filters,
			},
		},
		"size":    size,
		"_source": map[string]interface{}{"excludes": []string{"vector", "content"}},
	}
	return doSearch(ctx, indexName, query)
}

func doSearch(ctx context.Context, indexName string, query map[string]interface{}) ([]model.EsKnowledgeDoc, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(indexName),
		ESClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				ID     string               `json:"_id"`
				Source model.EsKnowledgeDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	docs := make([]model.EsKnowledgeDoc, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		doc := hit.Source
		if doc.ID == "" {
			doc.ID = hit.ID
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteByIDs 按主键批量删除文档。
func DeleteByIDs(ctx context.Context, indexName string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, id := range ids {
		meta := map[string]interface{}{
			"delete": map[string]interface{}{"_index": indexName, "_id": id},
		}
		line, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: "true",
	}
	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("批量删除文档出错: %s", res.String())
		return errors.New("failed to bulk delete documents")
	}
	return nil
}
