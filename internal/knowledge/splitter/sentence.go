package splitter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/RobustH/copilot/internal/model"
	"github.com/RobustH/copilot/pkg/log"
)

// SentenceSplitter 基于句子边界的切割器，用于纯文本类文档。
// 按句聚合到目标大小，绝不在句子中间断开。
type SentenceSplitter struct {
	chunkSize int // 目标块大小（字符）
}

// NewSentenceSplitter 创建句子切割器。
func NewSentenceSplitter(chunkSize int) *SentenceSplitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &SentenceSplitter{chunkSize: chunkSize}
}

func (s *SentenceSplitter) Strategy() Strategy {
	return StrategySentence
}

// Split 切割文本内容为句子聚合块。
func (s *SentenceSplitter) Split(content, filePath string) []model.KnowledgeChunk {
	sentences := splitSentences(content)
	log.Debugf("文件 %s 识别出 %d 个句子", filePath, len(sentences))

	var pieces []string
	cur := ""
	for _, sentence := range sentences {
		if cur != "" && utf8.RuneCountInString(cur)+utf8.RuneCountInString(sentence) > s.chunkSize {
			pieces = append(pieces, cur)
			cur = ""
		}
		cur += sentence
	}
	if cur != "" {
		pieces = append(pieces, cur)
	}

	chunks := make([]model.KnowledgeChunk, 0, len(pieces))
	index := 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, newChunk(piece, filePath, model.FileTypeDocument, detectTextLanguage(piece), index))
		index++
	}
	return chunks
}

// 句子终止符，覆盖中英文标点。
var sentenceTerminators = map[rune]struct{}{
	'.': {}, '!': {}, '?': {},
	'。': {}, '！': {}, '？': {}, '；': {},
}

// splitSentences 在终止符之后断句，终止符保留在句尾。
// 终止符后面紧跟的引号与空白归入同一句。
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur.WriteRune(r)
		if _, ok := sentenceTerminators[r]; !ok {
			continue
		}
		// 吸收后续的闭合引号和空白
		for i+1 < len(runes) {
			next := runes[i+1]
			if next == '"' || next == '\'' || next == '”' || next == '’' || unicode.IsSpace(next) {
				cur.WriteRune(next)
				i++
				continue
			}
			break
		}
		sentences = append(sentences, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		sentences = append(sentences, cur.String())
	}
	return sentences
}

// detectTextLanguage 根据内容是否包含汉字做简单的语言判断。
func detectTextLanguage(content string) string {
	if content == "" {
		return "unknown"
	}
	for _, r := range content {
		if unicode.Is(unicode.Han, r) {
			return "zh"
		}
	}
	return "en"
}
