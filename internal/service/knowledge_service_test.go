package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/RobustH/copilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedVectorDoc 直接向假向量库塞入一条文档。
func seedVectorDoc(t *testing.T, store *fakeVectorStore, id, userID, filePath string, start, end int) {
	t.Helper()
	require.NoError(t, store.Add(context.Background(), []model.EsKnowledgeDoc{{
		ID: id, UserID: userID, FilePath: filePath,
		FileType: string(model.FileTypeCode), Content: "content-" + id,
		StartLine: start, EndLine: end,
	}}))
}

func TestQuota(t *testing.T) {
	// 50% 向下取整，至少为 1
	assert.Equal(t, 2, quota(4, 50))
	assert.Equal(t, 1, quota(4, 25))
	assert.Equal(t, 1, quota(1, 50))
	assert.Equal(t, 1, quota(1, 25))
	assert.Equal(t, 12, quota(25, 50))
	assert.Equal(t, 6, quota(25, 25))
}

func TestSearch_QuotaSplit(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	svc, _, _ := newTestServices(t, store, ftsRepo)

	svc.Search(context.Background(), "u1", "anything", 8)

	assert.Equal(t, 4, store.lastTopK)    // 50%
	assert.Equal(t, 2, ftsRepo.lastLimit) // 25%
}

func TestSearch_VectorHitsFirstAndDeduped(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	svc, _, ftsService := newTestServices(t, store, ftsRepo)

	// 向量命中 2 条
	seedVectorDoc(t, store, "v1", "u1", "/ws/A.java", 1, 10)
	seedVectorDoc(t, store, "v2", "u1", "/ws/B.java", 5, 9)

	// FTS 命中 2 条，其中一条与 v1 的 (file_path,start,end) 重合
	require.NoError(t, ftsService.AddBatch("u1", []model.KnowledgeChunk{
		{ID: "f1", FilePath: "/ws/A.java", StartLine: 1, EndLine: 10, Content: "needle one"},
		{ID: "f2", FilePath: "/ws/C.java", StartLine: 2, EndLine: 4, Content: "needle two"},
	}))

	results := svc.Search(context.Background(), "u1", "needle", 8)

	// 重合的那条被去掉，保留的是向量来源（先加入合并列表）
	require.Len(t, results, 3)
	assert.Equal(t, "v1", results[0].ID)
	assert.Equal(t, "v2", results[1].ID)
	assert.Equal(t, "f2", results[2].ID)
}

func TestSearch_TruncatesToNFinal(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	svc, _, ftsService := newTestServices(t, store, ftsRepo)

	for i := 0; i < 4; i++ {
		seedVectorDoc(t, store, fmt.Sprintf("v%d", i), "u1", fmt.Sprintf("/ws/V%d.java", i), 1, 2)
	}
	require.NoError(t, ftsService.AddBatch("u1", []model.KnowledgeChunk{
		{ID: "f1", FilePath: "/ws/F1.java", StartLine: 1, EndLine: 2, Content: "needle"},
		{ID: "f2", FilePath: "/ws/F2.java", StartLine: 1, EndLine: 2, Content: "needle"},
	}))

	results := svc.Search(context.Background(), "u1", "needle", 4)
	assert.LessOrEqual(t, len(results), 4)
}

func TestSearch_SubSourceFailureYieldsEmptyContribution(t *testing.T) {
	store := newFakeVectorStore()
	store.searchErr = errors.New("vector transport down")
	ftsRepo := newFakeFtsRepo()
	svc, _, ftsService := newTestServices(t, store, ftsRepo)

	require.NoError(t, ftsService.AddBatch("u1", []model.KnowledgeChunk{
		{ID: "f1", FilePath: "/ws/A.java", StartLine: 1, EndLine: 2, Content: "needle"},
	}))

	// 向量侧故障只丢掉向量贡献，检索本身不失败
	results := svc.Search(context.Background(), "u1", "needle", 4)
	require.Len(t, results, 1)
	assert.Equal(t, "f1", results[0].ID)
}

func TestSearch_TenantIsolation(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	svc, _, ftsService := newTestServices(t, store, ftsRepo)

	seedVectorDoc(t, store, "va", "alice", "/a/A.java", 1, 2)
	seedVectorDoc(t, store, "vb", "bob", "/b/B.java", 1, 2)
	require.NoError(t, ftsService.AddBatch("alice", []model.KnowledgeChunk{
		{ID: "fa", FilePath: "/a/A2.java", StartLine: 1, EndLine: 2, Content: "shared needle"},
	}))
	require.NoError(t, ftsService.AddBatch("bob", []model.KnowledgeChunk{
		{ID: "fb", FilePath: "/b/B2.java", StartLine: 1, EndLine: 2, Content: "shared needle"},
	}))

	for _, doc := range svc.Search(context.Background(), "alice", "shared needle", 10) {
		assert.NotEqual(t, "bob", doc.MetaString("user_id"))
		assert.NotContains(t, []string{"vb", "fb"}, doc.ID)
	}
}

func TestSearchByFileType_BypassesFTS(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	svc, _, ftsService := newTestServices(t, store, ftsRepo)

	seedVectorDoc(t, store, "v1", "u1", "/ws/A.java", 1, 2)
	require.NoError(t, ftsService.AddBatch("u1", []model.KnowledgeChunk{
		{ID: "f1", FilePath: "/ws/B.md", StartLine: 1, EndLine: 2, Content: "needle"},
	}))

	docs, err := svc.SearchCode(context.Background(), "u1", "needle", 7)
	require.NoError(t, err)

	// 只返回向量库里 file_type=CODE 的命中，FTS 不参与；topK 原样传递
	require.Len(t, docs, 1)
	assert.Equal(t, "v1", docs[0].ID)
	assert.Equal(t, 7, store.lastTopK)
}

func TestFormatAsContext(t *testing.T) {
	svc, _, _ := newTestServices(t, newFakeVectorStore(), newFakeFtsRepo())

	docs := []model.Document{
		{ID: "1", Content: "public class Main {}", Metadata: map[string]interface{}{"file_path": "src/Main.java"}},
		{ID: "2", Content: "some text", Metadata: map[string]interface{}{}},
	}

	got := svc.FormatAsContext(docs)
	want := "文件: src/Main.java\n内容:\npublic class Main {}" +
		"\n\n---\n\n" +
		"文件: unknown\n内容:\nsome text"
	assert.Equal(t, want, got)
}

func TestFormatAsContext_Empty(t *testing.T) {
	svc, _, _ := newTestServices(t, newFakeVectorStore(), newFakeFtsRepo())
	assert.Equal(t, "", svc.FormatAsContext(nil))
}

func TestExtractContents(t *testing.T) {
	svc, _, _ := newTestServices(t, newFakeVectorStore(), newFakeFtsRepo())
	docs := []model.Document{{Content: "a"}, {Content: "b"}}
	assert.Equal(t, []string{"a", "b"}, svc.ExtractContents(docs))
}

func TestAddFile_ReplacesOldChunksAndReturnsCount(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	svc, _, _ := newTestServices(t, store, ftsRepo)

	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("First version."), 0o644))

	count := svc.AddFile(context.Background(), "u1", path)
	require.Greater(t, count, 0)
	firstIDs := map[string]bool{}
	for _, doc := range store.docsForPath("u1", path) {
		firstIDs[doc.ID] = true
	}

	require.NoError(t, os.WriteFile(path, []byte("Second version entirely."), 0o644))
	count = svc.AddFile(context.Background(), "u1", path)
	require.Greater(t, count, 0)

	// 旧块全部被替换，没有 ID 残留
	for _, doc := range store.docsForPath("u1", path) {
		assert.False(t, firstIDs[doc.ID])
	}
	assert.NotEmpty(t, ftsRepo.recordsForPath("u1", path))
}

func TestAddFile_MissingFileReturnsZero(t *testing.T) {
	svc, _, _ := newTestServices(t, newFakeVectorStore(), newFakeFtsRepo())
	assert.Equal(t, 0, svc.AddFile(context.Background(), "u1", "/no/such/file.txt"))
}

func TestAddKnowledge_EmptyContentReturnsZero(t *testing.T) {
	svc, _, _ := newTestServices(t, newFakeVectorStore(), newFakeFtsRepo())
	assert.Equal(t, 0, svc.AddKnowledge(context.Background(), "u1", "   "))
}

func TestAddKnowledgeWithPath_UsesExtensionStrategy(t *testing.T) {
	store := newFakeVectorStore()
	svc, _, _ := newTestServices(t, store, newFakeFtsRepo())

	count := svc.AddKnowledgeWithPath(context.Background(), "u1", "# Title\n\nBody text.", "docs/manual.md")
	require.Greater(t, count, 0)

	docs, err := store.FilterSearch(context.Background(), "u1", "", 100)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, string(model.FileTypeDocument), docs[0].FileType)
}

func TestDeleteUserKnowledge(t *testing.T) {
	store := newFakeVectorStore()
	ftsRepo := newFakeFtsRepo()
	svc, _, ftsService := newTestServices(t, store, ftsRepo)

	seedVectorDoc(t, store, "v1", "u1", "/ws/A.java", 1, 2)
	require.NoError(t, ftsService.AddBatch("u1", []model.KnowledgeChunk{
		{ID: "f1", FilePath: "/ws/A.java", Content: "x"},
	}))

	require.NoError(t, svc.DeleteUserKnowledge(context.Background(), "u1"))

	docs, err := store.FilterSearch(context.Background(), "u1", "", 100)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, ftsRepo.recordsForPath("u1", "/ws/A.java"))
}
