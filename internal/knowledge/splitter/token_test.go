package splitter

import (
	"strings"
	"testing"

	"github.com/RobustH/copilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSplitter_SmallContentSingleChunk(t *testing.T) {
	s := NewTokenSplitter(2000, 100)
	chunks := s.Split("line one\nline two\n", "/tmp/notes.go")

	require.Len(t, chunks, 1)
	assert.Equal(t, "line one\nline two\n", chunks[0].Content)
	assert.Equal(t, model.FileTypeCode, chunks[0].FileType)
	assert.Equal(t, "Go", chunks[0].Language)
	// 行号不可用时保持 (1,1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}

func TestTokenSplitter_SplitsOnLineBoundaries(t *testing.T) {
	// chunkSize=10 token ≈ 40 字符；每行 20 字符 → 每块 2 行
	s := NewTokenSplitter(10, 1)
	line := strings.Repeat("a", 19) + "\n"
	content := strings.Repeat(line, 6)

	chunks := s.Split(content, "big.log")
	require.Greater(t, len(chunks), 1)

	// 分隔符保留：重新拼接还原原文
	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c.Content)
	}
	assert.Equal(t, content, rebuilt.String())

	// 除末块外，每块都以换行结束（在行边界断开）
	for i := 0; i < len(chunks)-1; i++ {
		assert.True(t, strings.HasSuffix(chunks[i].Content, "\n"), "chunk %d", i)
	}
}

func TestTokenSplitter_OverlongLineHardSplit(t *testing.T) {
	s := NewTokenSplitter(10, 1) // 窗口 40 字符
	content := strings.Repeat("x", 100)

	chunks := s.Split(content, "blob.bin")
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 40), chunks[0].Content)
	assert.Equal(t, strings.Repeat("x", 20), chunks[2].Content)
}

func TestTokenSplitter_TinyTailMergedIntoPrevious(t *testing.T) {
	s := NewTokenSplitter(10, 100)
	// 一行恰好填满一块后剩个短尾巴
	content := strings.Repeat("a", 36) + "\n" + "tail"

	chunks := s.Split(content, "t.txt.bak")
	require.Len(t, chunks, 1)
	assert.True(t, strings.HasSuffix(chunks[0].Content, "tail"))
}

func TestTokenSplitter_EmptyContent(t *testing.T) {
	s := NewTokenSplitter(2000, 100)
	assert.Empty(t, s.Split("", "a.go"))
	assert.Empty(t, s.Split("   \n\t", "a.go"))
}
