package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
)

// 递归切割的分隔符优先级：空行 → 换行 → 中文句读 → 逗号 → 空格。
var recursiveSeparators = []string{"\n\n", "\n", "。", "！", "？", "；", "，", ", ", " "}

// RecursiveCharacterSplitter 递归字符切割器，用于 Markdown 文档。
// 按分隔符优先级递归拆分，再贪心合并到目标大小并携带重叠。
type RecursiveCharacterSplitter struct {
	chunkSize    int // 目标块大小（字符）
	chunkOverlap int // 相邻块之间的重叠字符数
}

// NewRecursiveCharacterSplitter 创建递归字符切割器。
func NewRecursiveCharacterSplitter(chunkSize, chunkOverlap int) *RecursiveCharacterSplitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 50
	}
	return &RecursiveCharacterSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func (s *RecursiveCharacterSplitter) Strategy() Strategy {
	return StrategyRecursiveCharacter
}

// Split 切割 Markdown 内容，空白块被丢弃。
// 任一环节失败时降级为整篇单块。
func (s *RecursiveCharacterSplitter) Split(content, filePath string) []model.KnowledgeChunk {
	pieces := s.splitText(content)
	log.Debugf("Markdown 文件 %s 切割为 %d 个 chunks", filePath, len(pieces))

	chunks := make([]model.KnowledgeChunk, 0, len(pieces))
	index := 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, newChunk(piece, filePath, model.FileTypeDocument, "markdown", index))
		index++
	}
	if len(chunks) == 0 && strings.TrimSpace(content) != "" {
		// 降级：整篇作为单个 chunk
		chunks = append(chunks, newChunk(content, filePath, model.FileTypeDocument, "markdown", 0))
	}
	return chunks
}

// splitText 先递归拆成不超过目标大小的片段，再合并。
func (s *RecursiveCharacterSplitter) splitText(text string) []string {
	pieces := s.splitRecursive(text, recursiveSeparators)
	return s.mergePieces(pieces)
}

// splitRecursive 用当前最高优先级的分隔符拆分，过大的片段递归下探。
// 分隔符保留在片段尾部，分隔符用尽后按字符硬切。
func (s *RecursiveCharacterSplitter) splitRecursive(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}
	if len(seps) == 0 {
		return hardSplitRunes(text, s.chunkSize)
	}

	sep := seps[0]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		// 当前分隔符不存在，下探一级
		return s.splitRecursive(text, seps[1:])
	}

	var pieces []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) > s.chunkSize {
			pieces = append(pieces, s.splitRecursive(part, seps[1:])...)
		} else {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// mergePieces 贪心合并片段到目标大小；开新块时把上一块尾部
// chunkOverlap 个字符带入，保持上下文连续。
func (s *RecursiveCharacterSplitter) mergePieces(pieces []string) []string {
	var out []string
	cur := ""
	for _, piece := range pieces {
		if cur != "" && utf8.RuneCountInString(cur)+utf8.RuneCountInString(piece) > s.chunkSize {
			out = append(out, cur)
			cur = tailRunes(cur, s.chunkOverlap)
		}
		cur += piece
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// tailRunes 返回文本末尾 n 个字符。
func tailRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
