package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/RobustH/copilot/internal/knowledge"
	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
)

// TokenSplitter 按近似 token 数切割文本，尊重换行分隔并保留分隔符。
// token 数按 4 个字符 ≈ 1 token 估算，对中英文混排都足够稳定。
type TokenSplitter struct {
	chunkSize    int // 目标块大小（token）
	minChunkSize int // 尾块小于该字符数时并入前一块
}

// NewTokenSplitter 创建 Token 切割器。
func NewTokenSplitter(chunkSize, minChunkSize int) *TokenSplitter {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if minChunkSize <= 0 {
		minChunkSize = 100
	}
	return &TokenSplitter{chunkSize: chunkSize, minChunkSize: minChunkSize}
}

func (s *TokenSplitter) Strategy() Strategy {
	return StrategyToken
}

// Split 切割文档内容。行号信息不可用，保持 (1,1)。
func (s *TokenSplitter) Split(content, filePath string) []model.KnowledgeChunk {
	fileType := knowledge.ClassifyFileType(filePath)
	language := knowledge.DetectLanguage(filePath)

	pieces := s.splitText(content)
	log.Debugf("Token 切割: 路径=%s, 类型=%s, 语言=%s, 块数=%d", filePath, fileType, language, len(pieces))

	chunks := make([]model.KnowledgeChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, newChunk(piece, filePath, fileType, language, i))
	}
	return chunks
}

// splitText 按行累积到目标 token 数后断块；超长的单行按字符硬切。
func (s *TokenSplitter) splitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []string
	var cur strings.Builder
	curTokens := 0

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curTokens = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		t := estimateTokens(line)

		// 单行就超过目标大小：先断当前块，再把该行按字符硬切
		if t > s.chunkSize {
			flush()
			for _, part := range hardSplitRunes(line, s.chunkSize*4) {
				out = append(out, part)
			}
			continue
		}

		if curTokens > 0 && curTokens+t > s.chunkSize {
			flush()
		}
		cur.WriteString(line)
		curTokens += t
	}
	flush()

	// 过小的尾块并入前一块，避免产生无意义的碎片
	if n := len(out); n >= 2 && utf8.RuneCountInString(out[n-1]) < s.minChunkSize {
		out[n-2] += out[n-1]
		out = out[:n-1]
	}
	return out
}

// estimateTokens 以 4 字符 ≈ 1 token 估算文本 token 数。
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// hardSplitRunes 把文本按固定字符窗口切开。
func hardSplitRunes(text string, window int) []string {
	runes := []rune(text)
	var parts []string
	for i := 0; i < len(runes); i += window {
		end := i + window
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}
