package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/RobustH/copilot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveSplitter_ShortDocSingleChunk(t *testing.T) {
	s := NewRecursiveCharacterSplitter(500, 50)
	chunks := s.Split("# Title\n\nShort document body.", "README.md")

	require.Len(t, chunks, 1)
	assert.Equal(t, model.FileTypeDocument, chunks[0].FileType)
	assert.Equal(t, "markdown", chunks[0].Language)
}

func TestRecursiveSplitter_PrefersBlankLineBoundary(t *testing.T) {
	s := NewRecursiveCharacterSplitter(100, 0)
	para := strings.Repeat("word ", 16) // 80 字符
	content := para + "\n\n" + para + "\n\n" + para

	chunks := s.Split(content, "doc.md")
	require.Greater(t, len(chunks), 1)
	// 段落本身小于目标大小，不应在段落内部断开
	for _, c := range chunks {
		assert.NotContains(t, strings.TrimSuffix(c.Content, "\n\n"), "\n\n")
	}
}

func TestRecursiveSplitter_CJKSentenceBoundary(t *testing.T) {
	s := NewRecursiveCharacterSplitter(20, 0)
	content := "这是第一句话。这是第二句话。这是第三句话。这是第四句话。"

	chunks := s.Split(content, "doc.md")
	require.Greater(t, len(chunks), 1)
	// 在中文句号之后断开
	for i := 0; i < len(chunks)-1; i++ {
		assert.True(t, strings.HasSuffix(chunks[i].Content, "。"), "chunk %d = %q", i, chunks[i].Content)
	}
}

func TestRecursiveSplitter_OverlapCarriedIntoNextChunk(t *testing.T) {
	overlap := 10
	s := NewRecursiveCharacterSplitter(50, overlap)
	content := strings.Repeat("alpha beta gamma delta. ", 10)

	chunks := s.Split(content, "doc.md")
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		carried := string(prev[len(prev)-overlap:])
		assert.True(t, strings.HasPrefix(chunks[i].Content, carried),
			"chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func TestRecursiveSplitter_DropsWhitespaceOnlyChunks(t *testing.T) {
	s := NewRecursiveCharacterSplitter(500, 50)
	chunks := s.Split("   \n\n   \n", "empty.md")
	assert.Empty(t, chunks)
}

func TestRecursiveSplitter_ChunkSizeRoughlyHonored(t *testing.T) {
	s := NewRecursiveCharacterSplitter(100, 10)
	content := strings.Repeat("Sentence with several words inside. ", 30)

	for _, c := range s.Split(content, "doc.md") {
		// 目标是约 100 字符，允许合并时的轻微超出
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 160)
	}
}
