package service

import (
	"context"
	"testing"

	"github.com/RobustH/copilot/internal/config"
	"github.com/RobustH/copilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEnrichedContent_CodeChunk(t *testing.T) {
	chunk := &model.KnowledgeChunk{
		FilePath:     "/ws/src/StudentNotFoundException.java",
		SymbolKind:   model.SymbolClass,
		SymbolName:   "StudentNotFoundException",
		ParentSymbol: "com.acme",
		Content:      "public class StudentNotFoundException {}",
	}

	got := buildEnrichedContent(chunk)
	want := "文件: StudentNotFoundException.java | 类型: 类 | 符号: StudentNotFoundException | 所属: com.acme\n" +
		"public class StudentNotFoundException {}"
	assert.Equal(t, want, got)
}

func TestBuildEnrichedContent_NoSymbols(t *testing.T) {
	chunk := &model.KnowledgeChunk{
		FilePath: "/docs/guide.md",
		Content:  "# Guide",
	}
	assert.Equal(t, "文件: guide.md\n# Guide", buildEnrichedContent(chunk))
}

func TestSymbolKindChinese(t *testing.T) {
	assert.Equal(t, "类", symbolKindChinese("CLASS"))
	assert.Equal(t, "接口", symbolKindChinese("INTERFACE"))
	assert.Equal(t, "方法", symbolKindChinese("method"))
	assert.Equal(t, "字段", symbolKindChinese("FIELD"))
	assert.Equal(t, "枚举", symbolKindChinese("ENUM"))
	assert.Equal(t, "注解", symbolKindChinese("ANNOTATION"))
	assert.Equal(t, "WIDGET", symbolKindChinese("WIDGET"))
}

func TestAddKnowledgeBatch_EnrichmentStoredNotStripped(t *testing.T) {
	store := newFakeVectorStore()
	_, vectorStoreService, _ := newTestServices(t, store, newFakeFtsRepo())

	chunks := []model.KnowledgeChunk{{
		ID: "c1", FilePath: "/ws/Foo.java",
		SymbolKind: model.SymbolMethod, SymbolName: "bar", ParentSymbol: "class Foo",
		FileType: model.FileTypeCode, Content: "int bar() {}",
	}}
	require.NoError(t, vectorStoreService.AddKnowledgeBatch(context.Background(), "u1", chunks))

	docs, err := vectorStoreService.SearchKnowledge(context.Background(), "u1", "bar", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	// 描述头是存储内容的一部分，检索时不剥离
	assert.Contains(t, docs[0].Content, "文件: Foo.java")
	assert.Contains(t, docs[0].Content, "类型: 方法")
	assert.Contains(t, docs[0].Content, "int bar() {}")
	assert.Equal(t, "u1", docs[0].MetaString("user_id"))
}

// 向量库不可用时系统必须继续服务：写入被接受、FTS 照常、检索退化为纯关键词。
func TestNoopVectorStore_GracefulDegradation(t *testing.T) {
	store := NewVectorStore(false, nil, config.ElasticsearchConfig{IndexName: "copilot_knowledge"})
	assert.False(t, store.Available())

	ftsRepo := newFakeFtsRepo()
	ftsService := NewKnowledgeFtsService(ftsRepo)
	vectorStoreService := NewKnowledgeVectorStoreService(store, ftsService, testSearchConfig())
	knowledgeService := NewKnowledgeService(testSplitterFactory(), vectorStoreService, ftsService)

	assert.False(t, knowledgeService.Available())

	// 写入静默接受，FTS 同步写入照常发生
	chunks := []model.KnowledgeChunk{{
		ID: "c1", FilePath: "/ws/Foo.java", Content: "void bar() {}",
		SymbolName: "bar", FileType: model.FileTypeCode,
	}}
	require.NoError(t, vectorStoreService.AddKnowledgeBatch(context.Background(), "u1", chunks))
	assert.NotEmpty(t, ftsRepo.recordsForPath("u1", "/ws/Foo.java"))

	// 检索只有 FTS 贡献
	results := knowledgeService.Search(context.Background(), "u1", "bar", 4)
	require.Len(t, results, 1)
	assert.Equal(t, "fts", results[0].MetaString("source"))

	// 向量检索本身返回空
	docs, err := vectorStoreService.SearchKnowledge(context.Background(), "u1", "bar", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// 向量库降级时按路径删除仍要清掉 FTS 行，两个存储都不能残留。
func TestDeleteByFilePath_CleansFtsEvenWhenVectorStoreDown(t *testing.T) {
	store := NewVectorStore(false, nil, config.ElasticsearchConfig{})
	ftsRepo := newFakeFtsRepo()
	ftsService := NewKnowledgeFtsService(ftsRepo)
	vectorStoreService := NewKnowledgeVectorStoreService(store, ftsService, testSearchConfig())

	require.NoError(t, ftsService.AddBatch("u1", []model.KnowledgeChunk{
		{ID: "c1", FilePath: "/ws/Foo.java", Content: "x"},
	}))

	require.NoError(t, vectorStoreService.DeleteKnowledgeByFilePath(context.Background(), "u1", "/ws/Foo.java"))
	assert.Empty(t, ftsRepo.recordsForPath("u1", "/ws/Foo.java"))
}

func TestDeleteKnowledgeByFilePath_RemovesBothStores(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	_, vectorStoreService, ftsService := newTestServices(t, store, ftsRepo)

	chunks := []model.KnowledgeChunk{
		{ID: "c1", FilePath: "/ws/Foo.java", Content: "a", FileType: model.FileTypeCode},
		{ID: "c2", FilePath: "/ws/Foo.java", Content: "b", FileType: model.FileTypeCode},
		{ID: "c3", FilePath: "/ws/Bar.java", Content: "c", FileType: model.FileTypeCode},
	}
	require.NoError(t, vectorStoreService.AddKnowledgeBatch(context.Background(), "u1", chunks))
	_ = ftsService

	require.NoError(t, vectorStoreService.DeleteKnowledgeByFilePath(context.Background(), "u1", "/ws/Foo.java"))

	assert.Empty(t, store.docsForPath("u1", "/ws/Foo.java"))
	assert.Len(t, store.docsForPath("u1", "/ws/Bar.java"), 1)
	assert.Empty(t, ftsRepo.recordsForPath("u1", "/ws/Foo.java"))
	assert.NotEmpty(t, ftsRepo.recordsForPath("u1", "/ws/Bar.java"))
}
